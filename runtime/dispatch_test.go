package runtime

import (
	"errors"
	"testing"
)

// defineChain registers the value classes A, B derives A, C derives B
// and returns one instance of each.
func defineChain(t *testing.T, r *Runtime) (a, b, c Value) {
	t.Helper()
	for _, def := range []struct {
		name    string
		parents []string
	}{
		{"A", nil},
		{"B", []string{"A"}},
		{"C", []string{"B"}},
	} {
		if _, err := r.DefineClass(def.name, ClassOptions{Parents: def.parents}); err != nil {
			t.Fatalf("DefineClass(%s) failed: %v", def.name, err)
		}
	}
	mk := func(name string) Value {
		inst, err := r.Construct(name, nil)
		if err != nil {
			t.Fatalf("Construct(%s) failed: %v", name, err)
		}
		return InstanceValue(inst)
	}
	return mk("A"), mk("B"), mk("C")
}

// constHandler returns a handler that records its tag and returns it.
func constHandler(tag string, visits *[]string) HandlerFunc {
	return func(c *Cursor, args []Value) (Value, error) {
		if visits != nil {
			*visits = append(*visits, tag)
		}
		return StringValue(tag), nil
	}
}

// chainHandler records its tag, then continues to the next handler
// and returns that handler's result.
func chainHandler(tag string, visits *[]string) HandlerFunc {
	return func(c *Cursor, args []Value) (Value, error) {
		*visits = append(*visits, tag)
		return c.CallNext()
	}
}

// ---------------------------------------------------------------------------
// Single dispatch
// ---------------------------------------------------------------------------

func TestSingleDispatchMostSpecificWins(t *testing.T) {
	r := New()
	_, b, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)

	// Register the less specific handler last; order must not matter.
	r.RegisterMethod("describe", Signature{"B"}, constHandler("B", nil))
	r.RegisterMethod("describe", Signature{"A"}, constHandler("A", nil))

	got, err := r.Invoke("describe", b)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.AsString() != "B" {
		t.Errorf("dispatch on B selected %q, want B", got.AsString())
	}

	// And with the registration order reversed.
	r2 := New()
	_, b2, _ := defineChain(t, r2)
	r2.DefineGeneric("describe", 1, nil)
	r2.RegisterMethod("describe", Signature{"A"}, constHandler("A", nil))
	r2.RegisterMethod("describe", Signature{"B"}, constHandler("B", nil))

	got, err = r2.Invoke("describe", b2)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.AsString() != "B" {
		t.Errorf("dispatch on B selected %q, want B", got.AsString())
	}
}

func TestInheritanceFallback(t *testing.T) {
	r := New()
	a, b, c := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{"A"}, constHandler("A", nil))

	for _, recv := range []Value{a, b, c} {
		got, err := r.Invoke("describe", recv)
		if err != nil {
			t.Fatalf("Invoke on %s failed: %v", recv.ClassName(), err)
		}
		if got.AsString() != "A" {
			t.Errorf("dispatch on %s selected %q, want A", recv.ClassName(), got.AsString())
		}
	}
}

func TestDispatchOnBuiltinValues(t *testing.T) {
	r := New()
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{ClassNumeric}, constHandler("numeric", nil))
	r.RegisterMethod("describe", Signature{ClassCharacter}, constHandler("character", nil))

	got, err := r.Invoke("describe", IntValue(7))
	if err != nil {
		t.Fatalf("Invoke on integer failed: %v", err)
	}
	if got.AsString() != "numeric" {
		t.Errorf("integer dispatched to %q, want numeric", got.AsString())
	}

	got, err = r.Invoke("describe", StringValue("hi"))
	if err != nil {
		t.Fatalf("Invoke on character failed: %v", err)
	}
	if got.AsString() != "character" {
		t.Errorf("string dispatched to %q, want character", got.AsString())
	}
}

// ---------------------------------------------------------------------------
// Continuation
// ---------------------------------------------------------------------------

func TestContinuationChain(t *testing.T) {
	r := New()
	_, _, c := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)

	var visits []string
	r.RegisterMethod("describe", Signature{"C"}, chainHandler("C", &visits))
	r.RegisterMethod("describe", Signature{"B"}, chainHandler("B", &visits))
	r.RegisterMethod("describe", Signature{"A"}, constHandler("A", &visits))

	got, err := r.Invoke("describe", c)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(visits) != 3 || visits[0] != "C" || visits[1] != "B" || visits[2] != "A" {
		t.Errorf("visit order = %v, want [C B A]", visits)
	}
	if got.AsString() != "A" {
		t.Errorf("chain result = %q, want A (threaded through CallNext)", got.AsString())
	}
}

func TestContinuationSkipsUnregisteredClass(t *testing.T) {
	r := New()
	_, _, c := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)

	var visits []string
	r.RegisterMethod("describe", Signature{"C"}, chainHandler("C", &visits))
	r.RegisterMethod("describe", Signature{"A"}, constHandler("A", &visits))

	if _, err := r.Invoke("describe", c); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if len(visits) != 2 || visits[0] != "C" || visits[1] != "A" {
		t.Errorf("visit order = %v, want [C A]", visits)
	}
}

func TestContinuationPastLastHandler(t *testing.T) {
	r := New()
	a, _, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{"A"}, func(c *Cursor, args []Value) (Value, error) {
		return c.CallNext()
	})

	_, err := r.Invoke("describe", a)
	var noMethod *NoApplicableMethodError
	if !errors.As(err, &noMethod) {
		t.Fatalf("CallNext past last handler returned %v, want NoApplicableMethodError", err)
	}
}

func TestContinuationFallsThroughToDefault(t *testing.T) {
	r := New()
	a, _, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, constHandler("default", nil))
	r.RegisterMethod("describe", Signature{"A"}, func(c *Cursor, args []Value) (Value, error) {
		return c.CallNext()
	})

	got, err := r.Invoke("describe", a)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.AsString() != "default" {
		t.Errorf("result = %q, want default", got.AsString())
	}
}

func TestCallNextWithOverrideArgs(t *testing.T) {
	r := New()
	_, b, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{"B"}, func(c *Cursor, args []Value) (Value, error) {
		return c.CallNext(StringValue("override"))
	})
	r.RegisterMethod("describe", Signature{"A"}, func(c *Cursor, args []Value) (Value, error) {
		return args[0], nil
	})

	got, err := r.Invoke("describe", b)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.AsString() != "override" {
		t.Errorf("next handler saw %q, want override", got.AsString())
	}
}

func TestCallNextOutsideDispatch(t *testing.T) {
	r := New()
	a, _, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)

	var leaked *Cursor
	r.RegisterMethod("describe", Signature{"A"}, func(c *Cursor, args []Value) (Value, error) {
		leaked = c
		return Nil, nil
	})

	if _, err := r.Invoke("describe", a); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	_, err := leaked.CallNext()
	var invalid *InvalidContinuationError
	if !errors.As(err, &invalid) {
		t.Fatalf("CallNext on dead cursor returned %v, want InvalidContinuationError", err)
	}
	if invalid.Generic != "describe" {
		t.Errorf("error names generic %q, want describe", invalid.Generic)
	}
}

// ---------------------------------------------------------------------------
// Multiple dispatch
// ---------------------------------------------------------------------------

func TestMultiDispatchSpecificity(t *testing.T) {
	r := New()
	r.DefineGeneric("combine", 2, nil)
	r.RegisterMethod("combine", Signature{ClassNumeric, ClassNumeric}, constHandler("num-num", nil))
	r.RegisterMethod("combine", Signature{ClassInteger, ClassNumeric}, constHandler("int-num", nil))

	got, err := r.Invoke("combine", IntValue(1), FloatValue(2))
	if err != nil {
		t.Fatalf("Invoke(int, float) failed: %v", err)
	}
	if got.AsString() != "int-num" {
		t.Errorf("(integer, double) selected %q, want int-num", got.AsString())
	}

	got, err = r.Invoke("combine", FloatValue(1), FloatValue(2))
	if err != nil {
		t.Fatalf("Invoke(float, float) failed: %v", err)
	}
	if got.AsString() != "num-num" {
		t.Errorf("(double, double) selected %q, want num-num", got.AsString())
	}
}

func TestMultiDispatchTieBreaksByRegistrationOrder(t *testing.T) {
	r := New()
	if _, err := r.DefineClass("W", ClassOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.DefineClass("X", ClassOptions{Parents: []string{"W"}}); err != nil {
		t.Fatal(err)
	}
	inst, err := r.Construct("X", nil)
	if err != nil {
		t.Fatal(err)
	}
	x := InstanceValue(inst)

	r.DefineGeneric("pair", 2, nil)
	// Both signatures score 1 against (X, X): one ancestor step each.
	r.RegisterMethod("pair", Signature{"W", "X"}, constHandler("first", nil))
	r.RegisterMethod("pair", Signature{"X", "W"}, constHandler("second", nil))

	got, err := r.Invoke("pair", x, x)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.AsString() != "first" {
		t.Errorf("tie selected %q, want first (earlier registration)", got.AsString())
	}
}

func TestMissingArgumentDispatch(t *testing.T) {
	r := New()
	a, _, _ := defineChain(t, r)
	r.DefineGeneric("show", 2, nil)
	r.RegisterMethod("show", Signature{"A", ClassInteger}, constHandler("with-width", nil))
	r.RegisterMethod("show", Signature{"A", SigMissing}, constHandler("no-width", nil))

	got, err := r.Invoke("show", a)
	if err != nil {
		t.Fatalf("Invoke with missing arg failed: %v", err)
	}
	if got.AsString() != "no-width" {
		t.Errorf("missing arg selected %q, want no-width", got.AsString())
	}

	got, err = r.Invoke("show", a, IntValue(80))
	if err != nil {
		t.Fatalf("Invoke with both args failed: %v", err)
	}
	if got.AsString() != "with-width" {
		t.Errorf("supplied arg selected %q, want with-width", got.AsString())
	}
}

func TestWildcardOutranksMissing(t *testing.T) {
	r := New()
	a, _, _ := defineChain(t, r)
	r.DefineGeneric("show", 2, nil)
	r.RegisterMethod("show", Signature{"A", SigMissing}, constHandler("missing", nil))
	r.RegisterMethod("show", Signature{"A", SigAny}, constHandler("any", nil))

	got, err := r.Invoke("show", a)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.AsString() != "any" {
		t.Errorf("selected %q, want any (wildcard ranks ahead of missing)", got.AsString())
	}
}

// ---------------------------------------------------------------------------
// Registration and failure modes
// ---------------------------------------------------------------------------

func TestDuplicateSignatureReplaces(t *testing.T) {
	r := New()
	a, _, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{"A"}, constHandler("old", nil))
	r.RegisterMethod("describe", Signature{"A"}, constHandler("new", nil))

	if n := len(r.Methods.MethodsFor("describe")); n != 1 {
		t.Fatalf("method count = %d, want 1 (replacement, not addition)", n)
	}
	got, err := r.Invoke("describe", a)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.AsString() != "new" {
		t.Errorf("selected %q, want new (last registration wins)", got.AsString())
	}
}

func TestNoApplicableMethod(t *testing.T) {
	r := New()
	a, _, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{ClassInteger}, constHandler("int", nil))

	_, err := r.Invoke("describe", a)
	var noMethod *NoApplicableMethodError
	if !errors.As(err, &noMethod) {
		t.Fatalf("Invoke returned %v, want NoApplicableMethodError", err)
	}
	if noMethod.Generic != "describe" {
		t.Errorf("error names generic %q, want describe", noMethod.Generic)
	}
	if len(noMethod.Classes) != 1 || noMethod.Classes[0] != "A" {
		t.Errorf("error names classes %v, want [A]", noMethod.Classes)
	}
}

func TestDefaultHandler(t *testing.T) {
	r := New()
	a, _, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, constHandler("default", nil))

	got, err := r.Invoke("describe", a)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.AsString() != "default" {
		t.Errorf("result = %q, want default", got.AsString())
	}
}

func TestUnknownGeneric(t *testing.T) {
	r := New()
	_, err := r.Invoke("nope", IntValue(1))
	var unknown *UnknownGenericError
	if !errors.As(err, &unknown) {
		t.Fatalf("Invoke returned %v, want UnknownGenericError", err)
	}
}

func TestRespondsTo(t *testing.T) {
	r := New()
	a, b, _ := defineChain(t, r)
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{"B"}, constHandler("B", nil))

	if r.RespondsTo("describe", a) {
		t.Error("A should not respond to describe")
	}
	if !r.RespondsTo("describe", b) {
		t.Error("B should respond to describe")
	}
	if r.RespondsTo("nope", b) {
		t.Error("undefined generic should not respond")
	}
}

// ---------------------------------------------------------------------------
// Benchmarks
// ---------------------------------------------------------------------------

func BenchmarkInvokeExact(b *testing.B) {
	r := New()
	r.DefineClass("A", ClassOptions{})
	inst, _ := r.Construct("A", nil)
	a := InstanceValue(inst)
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{"A"}, constHandler("A", nil))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Invoke("describe", a)
	}
}

func BenchmarkInvokeInherited(b *testing.B) {
	r := New()
	r.DefineClass("A", ClassOptions{})
	r.DefineClass("B", ClassOptions{Parents: []string{"A"}})
	r.DefineClass("C", ClassOptions{Parents: []string{"B"}})
	inst, _ := r.Construct("C", nil)
	c := InstanceValue(inst)
	r.DefineGeneric("describe", 1, nil)
	r.RegisterMethod("describe", Signature{"A"}, constHandler("A", nil))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Invoke("describe", c)
	}
}

func BenchmarkCandidates(b *testing.B) {
	r := New()
	r.DefineGeneric("combine", 2, nil)
	r.RegisterMethod("combine", Signature{ClassNumeric, ClassNumeric}, constHandler("nn", nil))
	r.RegisterMethod("combine", Signature{ClassInteger, ClassNumeric}, constHandler("in", nil))
	chains := [][]string{
		{ClassInteger, ClassNumeric, ClassAny},
		{ClassDouble, ClassNumeric, ClassAny},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Methods.Candidates("combine", chains)
	}
}
