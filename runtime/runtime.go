// Package runtime implements the genera object system: a class
// registry with multiple inheritance and precedence-list method
// resolution, generic functions with single and multiple dispatch,
// explicit continuation to the next applicable handler, and instances
// with either value (copy-on-write) or reference (shared cell)
// semantics.
package runtime

// Runtime bundles the process state of one object system: classes,
// generics, methods, live reference instances, and the dispatcher
// over them. Runtimes are instantiable; tests create a fresh one (or
// call Reset) per scenario to avoid cross-test leakage.
type Runtime struct {
	Classes    *ClassTable
	Generics   *GenericTable
	Methods    *MethodTable
	Instances  *InstanceTable
	Dispatcher *Dispatcher
}

// New creates an empty runtime.
func New() *Runtime {
	r := &Runtime{}
	r.Reset()
	return r
}

// Reset discards all registered classes, generics, methods and
// instances, returning the runtime to its initial state.
func (r *Runtime) Reset() {
	r.Classes = NewClassTable()
	r.Generics = NewGenericTable()
	r.Methods = NewMethodTable()
	r.Instances = NewInstanceTable()
	r.Dispatcher = NewDispatcher(r.Classes, r.Generics, r.Methods)
}

// DefineClass registers a class definition.
func (r *Runtime) DefineClass(name string, opts ClassOptions) (*ClassDef, error) {
	return r.Classes.Define(name, opts)
}

// DefineGeneric defines a generic function with the given dispatch
// arity and optional default handler.
func (r *Runtime) DefineGeneric(name string, arity int, def HandlerFunc) *GenericDef {
	return r.Generics.Define(name, arity, def)
}

// RegisterMethod registers a handler for a generic under a signature.
func (r *Runtime) RegisterMethod(generic string, sig Signature, handler HandlerFunc) *MethodEntry {
	return r.Methods.Register(generic, sig, handler)
}

// Invoke dispatches a generic call. See Dispatcher.Invoke.
func (r *Runtime) Invoke(generic string, args ...Value) (Value, error) {
	return r.Dispatcher.Invoke(generic, args...)
}

// RespondsTo reports whether a dispatch of the generic on the given
// arguments would find a handler.
func (r *Runtime) RespondsTo(generic string, args ...Value) bool {
	return r.Dispatcher.RespondsTo(generic, args...)
}

// Construct creates an instance of a registered class. Every declared
// slot not supplied gets its default, or a type-appropriate empty
// value. Supplied values are checked against the slot's declared type
// and the class validator, if any, runs once after all slots are
// populated. Reference instances are tracked in the instance table.
func (r *Runtime) Construct(className string, fields map[string]Value) (*Instance, error) {
	class := r.Classes.Lookup(className)
	if class == nil {
		return nil, &UnknownClassError{Name: className}
	}
	if class.Abstract {
		return nil, &AbstractInstantiationError{Class: className}
	}

	slots := class.AllSlots()
	declared := make(map[string]SlotSpec, len(slots))
	for _, s := range slots {
		declared[s.Name] = s
	}
	for name := range fields {
		if _, ok := declared[name]; !ok {
			return nil, &UnknownSlotError{Class: className, Slot: name}
		}
	}

	populated := make(map[string]Value, len(slots))
	for _, s := range slots {
		if v, ok := fields[s.Name]; ok {
			if !slotAccepts(s.Type, v) {
				return nil, &TypeMismatchError{
					Class: className,
					Slot:  s.Name,
					Want:  s.Type,
					Got:   v.typeName(),
				}
			}
			populated[s.Name] = v
		} else if s.HasDefault {
			populated[s.Name] = copyDefault(s.Default)
		} else {
			populated[s.Name] = slotZero(s.Type)
		}
	}

	inst := newInstance(class, populated)
	if class.Validator != nil && !class.Validator(inst) {
		return nil, &ValidationError{Class: className, ID: inst.ID}
	}
	if class.Kind == KindReference {
		r.Instances.Register(inst)
	}
	return inst, nil
}

// Revalidate re-runs the instance's class validator. Mutating a
// reference instance never triggers validation implicitly; callers
// invoke this explicitly when they want the check.
func (r *Runtime) Revalidate(inst *Instance) error {
	if inst.Class.Validator == nil {
		return nil
	}
	if !inst.Class.Validator(inst) {
		return &ValidationError{Class: inst.Class.Name, ID: inst.ID}
	}
	return nil
}

// RestoreInstance rebuilds an instance with a known ID and field
// state, bypassing defaults and validation. Used when loading
// instances from a snapshot or a persistence store; stored state is
// taken as-is. Reference instances are tracked in the instance table.
func (r *Runtime) RestoreInstance(class *ClassDef, id string, fields map[string]Value) *Instance {
	inst := &Instance{
		ID:    id,
		Class: class,
		cell:  newFieldCell(fields),
	}
	if class.Kind == KindReference {
		r.Instances.Register(inst)
	}
	return inst
}

// RestoreField writes a field on a restored instance directly,
// bypassing the read-only rule for value instances. Only valid while
// the restoring loader holds the sole alias.
func RestoreField(inst *Instance, name string, v Value) {
	inst.cell.set(name, v)
}

// copyDefault keeps instances from sharing a default list's backing
// array.
func copyDefault(v Value) Value {
	if v.Type == TypeList {
		return ListValue(append([]Value(nil), v.ListVal...))
	}
	return v
}
