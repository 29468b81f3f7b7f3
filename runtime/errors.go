package runtime

import (
	"fmt"
	"strings"
)

// Every failure in the runtime is one of the error kinds below. They
// are all detected synchronously and returned to the immediate caller;
// none is transient, so nothing is ever retried.

// DuplicateClassError reports registration of an already-used class name.
type DuplicateClassError struct {
	Name string
}

func (e *DuplicateClassError) Error() string {
	return fmt.Sprintf("class already defined: %s", e.Name)
}

// UnknownParentError reports a class declared with a parent that has
// not been registered yet. Parents must be declared before children.
type UnknownParentError struct {
	Class  string
	Parent string
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("class %s declares unknown parent: %s", e.Class, e.Parent)
}

// UnknownClassError reports a reference to a class name that is not registered.
type UnknownClassError struct {
	Name string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("unknown class: %s", e.Name)
}

// UnknownGenericError reports an invoke of a generic that was never defined.
type UnknownGenericError struct {
	Name string
}

func (e *UnknownGenericError) Error() string {
	return fmt.Sprintf("unknown generic: %s", e.Name)
}

// UnknownSlotError reports a construction argument for a slot the
// class does not declare.
type UnknownSlotError struct {
	Class string
	Slot  string
}

func (e *UnknownSlotError) Error() string {
	return fmt.Sprintf("class %s has no slot %q", e.Class, e.Slot)
}

// AbstractInstantiationError reports construction of an abstract class.
type AbstractInstantiationError struct {
	Class string
}

func (e *AbstractInstantiationError) Error() string {
	return fmt.Sprintf("cannot instantiate abstract class: %s", e.Class)
}

// TypeMismatchError reports a construction argument whose runtime type
// is incompatible with the slot's declared type.
type TypeMismatchError struct {
	Class string
	Slot  string
	Want  string
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("class %s slot %q wants %s, got %s", e.Class, e.Slot, e.Want, e.Got)
}

// ValidationError reports a validator predicate rejecting an instance's
// field state, at construction or on explicit revalidation.
type ValidationError struct {
	Class string
	ID    string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("validation failed for %s instance %s", e.Class, e.ID)
	}
	return fmt.Sprintf("validation failed for %s instance", e.Class)
}

// NoApplicableMethodError reports a dispatch that found no matching
// handler and no default. It names the generic and the concrete
// classes of the dispatch arguments.
type NoApplicableMethodError struct {
	Generic string
	Classes []string
}

func (e *NoApplicableMethodError) Error() string {
	return fmt.Sprintf("no applicable method for %s on (%s)",
		e.Generic, strings.Join(e.Classes, ", "))
}

// InvalidContinuationError reports CallNext used outside an active
// dispatch, i.e. on a cursor retained after its call completed.
type InvalidContinuationError struct {
	Generic string
}

func (e *InvalidContinuationError) Error() string {
	if e.Generic != "" {
		return fmt.Sprintf("CallNext outside active dispatch of %s", e.Generic)
	}
	return "CallNext outside active dispatch"
}

// ReadOnlyFieldError reports in-place mutation of a value instance's
// field. Value instances change only by reconstruction (WithField).
type ReadOnlyFieldError struct {
	Class string
	Field string
}

func (e *ReadOnlyFieldError) Error() string {
	return fmt.Sprintf("field %q of value class %s is read-only; use WithField", e.Field, e.Class)
}
