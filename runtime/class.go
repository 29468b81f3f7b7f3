package runtime

import "sync"

// Validator is a class-level predicate checked at construction time and
// on explicit Revalidate. It is never run automatically after mutation.
type Validator func(inst *Instance) bool

// SlotSpec declares one field of a class: its name, its declared type
// (a builtin class name, a registered class name, or "any") and an
// optional default used when construction omits the slot.
type SlotSpec struct {
	Name       string
	Type       string
	Default    Value
	HasDefault bool
}

// ClassDef is an immutable class definition. Classes are created once
// at registration time; there is no dynamic re-parenting.
type ClassDef struct {
	Name      string
	Parents   []*ClassDef // declaration order, breaks precedence ties
	Kind      InstanceKind
	Abstract  bool
	Slots     []SlotSpec // declared on this class only
	Validator Validator

	precOnce   sync.Once
	precedence []*ClassDef

	slotsOnce sync.Once
	allSlots  []SlotSpec
}

// ParentNames returns the declared parent names in order.
func (c *ClassDef) ParentNames() []string {
	names := make([]string, len(c.Parents))
	for i, p := range c.Parents {
		names[i] = p.Name
	}
	return names
}

// AllSlots returns the class's effective slots: inherited slots first
// (in precedence order, least specific class contributing earliest),
// with redeclarations in more-derived classes overriding.
func (c *ClassDef) AllSlots() []SlotSpec {
	c.slotsOnce.Do(func() {
		prec := c.Precedence()
		index := make(map[string]int)
		var slots []SlotSpec
		for i := len(prec) - 1; i >= 0; i-- {
			for _, s := range prec[i].Slots {
				if at, ok := index[s.Name]; ok {
					slots[at] = s
					continue
				}
				index[s.Name] = len(slots)
				slots = append(slots, s)
			}
		}
		c.allSlots = slots
	})
	return c.allSlots
}

// HasSlot returns true if the class (or an ancestor) declares the slot.
func (c *ClassDef) HasSlot(name string) bool {
	for _, s := range c.AllSlots() {
		if s.Name == name {
			return true
		}
	}
	return false
}

// String implements the Stringer interface.
func (c *ClassDef) String() string {
	return c.Name
}

// ---------------------------------------------------------------------------
// ClassTable: class registry
// ---------------------------------------------------------------------------

// ClassOptions carries everything DefineClass needs besides the name.
// The zero value declares a rootless, concrete value class with no slots.
type ClassOptions struct {
	Parents   []string
	Kind      InstanceKind
	Abstract  bool
	Slots     []SlotSpec
	Validator Validator
}

// ClassTable manages registered classes by name.
// It's thread-safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*ClassDef
	order   []string // registration order, for deterministic iteration
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[string]*ClassDef),
	}
}

// Define registers a class. The name must be unused and every parent
// must already be registered (no forward references).
func (ct *ClassTable) Define(name string, opts ClassOptions) (*ClassDef, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if _, ok := ct.classes[name]; ok {
		return nil, &DuplicateClassError{Name: name}
	}

	parents := make([]*ClassDef, 0, len(opts.Parents))
	for _, pname := range opts.Parents {
		p, ok := ct.classes[pname]
		if !ok {
			return nil, &UnknownParentError{Class: name, Parent: pname}
		}
		parents = append(parents, p)
	}

	c := &ClassDef{
		Name:      name,
		Parents:   parents,
		Kind:      opts.Kind,
		Abstract:  opts.Abstract,
		Slots:     opts.Slots,
		Validator: opts.Validator,
	}
	ct.classes[name] = c
	ct.order = append(ct.order, name)
	return c, nil
}

// Lookup finds a class by name. Returns nil if not registered.
func (ct *ClassTable) Lookup(name string) *ClassDef {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// Has returns true if a class with this name is registered.
func (ct *ClassTable) Has(name string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.classes[name]
	return ok
}

// All returns all registered classes in registration order.
func (ct *ClassTable) All() []*ClassDef {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*ClassDef, 0, len(ct.order))
	for _, name := range ct.order {
		result = append(result, ct.classes[name])
	}
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}

// ---------------------------------------------------------------------------
// Slot typing
// ---------------------------------------------------------------------------

// slotAccepts reports whether a value is compatible with a declared
// slot type. Nil is accepted everywhere (an unset slot); "numeric"
// accepts both integers and doubles; a class-name type accepts any
// instance whose precedence chain contains it.
func slotAccepts(declared string, v Value) bool {
	if declared == "" || declared == ClassAny || v.IsNil() {
		return true
	}
	for _, name := range v.ClassChain() {
		if name == declared {
			return true
		}
	}
	return false
}

// slotZero returns the type-appropriate empty value for slots with no
// default and no construction argument.
func slotZero(declared string) Value {
	switch declared {
	case ClassInteger:
		return IntValue(0)
	case ClassDouble, ClassNumeric:
		return FloatValue(0)
	case ClassLogical:
		return BoolValue(false)
	case ClassCharacter:
		return StringValue("")
	case ClassList:
		return ListValue(nil)
	default:
		return Nil
	}
}
