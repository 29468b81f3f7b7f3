package runtime

import (
	"sort"
	"sync"
)

// HandlerFunc is a concrete handler registered for a generic. The
// cursor identifies the dispatch this handler is running under; its
// CallNext continues the search with the next applicable handler.
type HandlerFunc func(c *Cursor, args []Value) (Value, error)

// GenericDef describes a named generic function: how many leading
// argument positions participate in dispatch and an optional default
// handler used when no registered method matches.
type GenericDef struct {
	Name    string
	Arity   int
	Default HandlerFunc
}

// GenericTable manages defined generics by name.
// It's thread-safe for concurrent access.
type GenericTable struct {
	mu       sync.RWMutex
	generics map[string]*GenericDef
}

// NewGenericTable creates a new empty generic table.
func NewGenericTable() *GenericTable {
	return &GenericTable{
		generics: make(map[string]*GenericDef),
	}
}

// Define registers a generic. Arity values below 1 are treated as 1
// (single dispatch on the first argument). Redefining a name replaces
// the prior definition; registered methods keyed by the name survive.
func (gt *GenericTable) Define(name string, arity int, def HandlerFunc) *GenericDef {
	if arity < 1 {
		arity = 1
	}
	g := &GenericDef{Name: name, Arity: arity, Default: def}

	gt.mu.Lock()
	defer gt.mu.Unlock()
	gt.generics[name] = g
	return g
}

// Lookup finds a generic by name. Returns nil if not defined.
func (gt *GenericTable) Lookup(name string) *GenericDef {
	gt.mu.RLock()
	defer gt.mu.RUnlock()
	return gt.generics[name]
}

// Has returns true if a generic with this name is defined.
func (gt *GenericTable) Has(name string) bool {
	gt.mu.RLock()
	defer gt.mu.RUnlock()
	_, ok := gt.generics[name]
	return ok
}

// All returns all defined generics, sorted by name.
func (gt *GenericTable) All() []*GenericDef {
	gt.mu.RLock()
	defer gt.mu.RUnlock()

	result := make([]*GenericDef, 0, len(gt.generics))
	for _, g := range gt.generics {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Len returns the number of defined generics.
func (gt *GenericTable) Len() int {
	gt.mu.RLock()
	defer gt.mu.RUnlock()
	return len(gt.generics)
}
