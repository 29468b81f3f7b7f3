package runtime

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InstanceKind selects the mutation semantics of a class's instances.
type InstanceKind int

const (
	// KindValue instances never mutate in place: SetField fails and
	// WithField returns a reconstructed copy. Aliases are unaffected
	// by each other's "mutations".
	KindValue InstanceKind = iota

	// KindReference instances share one mutable field cell across all
	// aliases; SetField is visible through every alias immediately.
	KindReference
)

func (k InstanceKind) String() string {
	if k == KindReference {
		return "reference"
	}
	return "value"
}

// fieldCell is the shared mutable storage of a reference instance.
// Every alias of the instance points at the same cell; Clone is the
// only way to get a new one.
type fieldCell struct {
	mu     sync.RWMutex
	fields map[string]Value
}

func newFieldCell(fields map[string]Value) *fieldCell {
	if fields == nil {
		fields = make(map[string]Value)
	}
	return &fieldCell{fields: fields}
}

func (fc *fieldCell) get(name string) Value {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	if v, ok := fc.fields[name]; ok {
		return v
	}
	return Nil
}

func (fc *fieldCell) set(name string, v Value) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.fields[name] = v
}

func (fc *fieldCell) snapshot() map[string]Value {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	out := make(map[string]Value, len(fc.fields))
	for k, v := range fc.fields {
		out[k] = v
	}
	return out
}

// Instance represents an object instance. Its class never changes
// after construction; for reference instances the field cell contents
// may be replaced at any time.
type Instance struct {
	ID    string
	Class *ClassDef
	cell  *fieldCell
}

// newInstance builds an instance with a fresh cell and generated ID.
func newInstance(class *ClassDef, fields map[string]Value) *Instance {
	return &Instance{
		ID:    GenerateID(class.Name),
		Class: class,
		cell:  newFieldCell(fields),
	}
}

// GenerateID creates a new unique instance ID for the given class name.
func GenerateID(className string) string {
	return strings.ToLower(className) + "_" + uuid.New().String()
}

// ClassName returns the name of the instance's class.
func (inst *Instance) ClassName() string {
	return inst.Class.Name
}

// Kind returns the instance's mutation semantics.
func (inst *Instance) Kind() InstanceKind {
	return inst.Class.Kind
}

// GetField returns a field value, or Nil if the field is unset.
func (inst *Instance) GetField(name string) Value {
	return inst.cell.get(name)
}

// SetField mutates a field in place. Only reference instances allow
// this; value instances return ReadOnlyFieldError and are changed via
// WithField instead.
func (inst *Instance) SetField(name string, v Value) error {
	if inst.Kind() != KindReference {
		return &ReadOnlyFieldError{Class: inst.Class.Name, Field: name}
	}
	inst.cell.set(name, v)
	return nil
}

// WithField returns a new instance of the same class with one field
// replaced and all others copied. This is the only way a value
// instance changes; the receiver is left untouched.
func (inst *Instance) WithField(name string, v Value) *Instance {
	fields := inst.cell.snapshot()
	fields[name] = v
	return newInstance(inst.Class, fields)
}

// FieldNames returns the instance's field names, sorted.
func (inst *Instance) FieldNames() []string {
	fields := inst.cell.snapshot()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns a copy of the instance's field map.
func (inst *Instance) Fields() map[string]Value {
	return inst.cell.snapshot()
}

// ---------------------------------------------------------------------------
// InstanceTable: live reference-instance registry
// ---------------------------------------------------------------------------

// InstanceTable tracks reference instances by ID so that aliases,
// persistence and snapshots can resolve an ID back to the one shared
// instance. Value instances are transient and are not tracked.
type InstanceTable struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewInstanceTable creates a new empty instance table.
func NewInstanceTable() *InstanceTable {
	return &InstanceTable{
		instances: make(map[string]*Instance),
	}
}

// Register adds an instance to the table.
func (it *InstanceTable) Register(inst *Instance) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.instances[inst.ID] = inst
}

// Get retrieves an instance by ID, or nil.
func (it *InstanceTable) Get(id string) *Instance {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.instances[id]
}

// Remove removes an instance from the table.
func (it *InstanceTable) Remove(id string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	delete(it.instances, id)
}

// Len returns the number of tracked instances.
func (it *InstanceTable) Len() int {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return len(it.instances)
}
