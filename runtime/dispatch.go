package runtime

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("genera.dispatch")

// Dispatcher resolves generic calls to handlers. A call moves through
// a small state machine: search the method table for the best
// remaining candidate, invoke it, and either complete or — when the
// handler calls CallNext — resume the search from where it left off
// on the same cursor.
type Dispatcher struct {
	classes  *ClassTable
	generics *GenericTable
	methods  *MethodTable
}

// NewDispatcher creates a dispatcher over the given tables.
func NewDispatcher(classes *ClassTable, generics *GenericTable, methods *MethodTable) *Dispatcher {
	return &Dispatcher{
		classes:  classes,
		generics: generics,
		methods:  methods,
	}
}

// Cursor is the per-call continuation state of one dispatch: the
// ranked candidate list and the position of the next untried entry.
// It is created when Invoke starts and dies when Invoke returns;
// CallNext on a retained cursor fails with InvalidContinuationError.
type Cursor struct {
	generic     *GenericDef
	args        []Value
	classes     []string // concrete dispatch classes, for error reporting
	candidates  []*MethodEntry
	next        int
	depth       int
	usedDefault bool
	active      bool
}

// Generic returns the name of the generic being dispatched.
func (c *Cursor) Generic() string {
	return c.generic.Name
}

// Depth returns how many handlers have run on this cursor so far.
func (c *Cursor) Depth() int {
	return c.depth
}

// Invoke dispatches a generic call. The first Arity arguments select
// the handler; any further arguments are passed through untouched.
// The result is whatever the selected handler returns. When the
// handler chains with CallNext, each CallNext returns the next
// handler's result to its caller, so a handler that wants the deeper
// result simply returns it.
func (d *Dispatcher) Invoke(name string, args ...Value) (Value, error) {
	g := d.generics.Lookup(name)
	if g == nil {
		return Nil, &UnknownGenericError{Name: name}
	}

	chains := make([][]string, g.Arity)
	var classes []string
	for i := 0; i < g.Arity; i++ {
		if i < len(args) {
			chains[i] = args[i].ClassChain()
			classes = append(classes, args[i].ClassName())
		}
	}

	cur := &Cursor{
		generic:    g,
		args:       args,
		classes:    classes,
		candidates: d.methods.Candidates(name, chains),
		active:     true,
	}
	result, err := cur.step(args)
	cur.active = false
	return result, err
}

// RespondsTo reports whether invoking the generic on the given
// arguments would find at least one handler or a default.
func (d *Dispatcher) RespondsTo(name string, args ...Value) bool {
	g := d.generics.Lookup(name)
	if g == nil {
		return false
	}
	if g.Default != nil {
		return true
	}
	chains := make([][]string, g.Arity)
	for i := 0; i < g.Arity && i < len(args); i++ {
		chains[i] = args[i].ClassChain()
	}
	return len(d.methods.Candidates(name, chains)) > 0
}

// CallNext continues the dispatch with the next applicable handler.
// With no arguments the original call arguments are reused; passing
// arguments overrides what the next handler receives without
// recomputing the candidate set. Falls through to the generic's
// default handler when the candidates are exhausted, and fails with
// NoApplicableMethodError after that.
func (c *Cursor) CallNext(args ...Value) (Value, error) {
	if c == nil || !c.active {
		e := &InvalidContinuationError{}
		if c != nil && c.generic != nil {
			e.Generic = c.generic.Name
		}
		return Nil, e
	}
	if len(args) == 0 {
		args = c.args
	}
	return c.step(args)
}

// step picks the top-ranked untried candidate and invokes it. Already
// invoked candidates stay consumed, so a continuation resumes rather
// than restarts the search.
func (c *Cursor) step(args []Value) (Value, error) {
	if c.next < len(c.candidates) {
		entry := c.candidates[c.next]
		c.next++
		c.depth++
		log.Debugf("%s %s depth=%d", c.generic.Name, entry.Signature, c.depth)
		return entry.Handler(c, args)
	}

	if !c.usedDefault && c.generic.Default != nil {
		c.usedDefault = true
		c.depth++
		log.Debugf("%s default depth=%d", c.generic.Name, c.depth)
		return c.generic.Default(c, args)
	}

	return Nil, &NoApplicableMethodError{
		Generic: c.generic.Name,
		Classes: c.classes,
	}
}
