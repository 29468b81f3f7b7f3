package runtime

import (
	"strconv"
	"strings"
)

// ValueType represents the type of a genera value.
type ValueType int

const (
	TypeNil ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeList
	TypeInstance
)

// Builtin class names used for dispatch on non-instance values.
// Integers and floats share the "numeric" ancestor so a handler
// registered on numeric applies to both.
const (
	ClassNil       = "nil"
	ClassLogical   = "logical"
	ClassInteger   = "integer"
	ClassDouble    = "double"
	ClassNumeric   = "numeric"
	ClassCharacter = "character"
	ClassList      = "list"

	// ClassAny is the implicit terminal class; every precedence chain
	// ends here and a signature position of "any" matches everything.
	ClassAny = "any"
)

// Value is the Go representation of a genera value.
type Value struct {
	Type        ValueType
	IntVal      int64
	FloatVal    float64
	StringVal   string
	ListVal     []Value
	InstanceVal *Instance
}

// Nil is the canonical nil value.
var Nil = Value{Type: TypeNil}

// NilValue returns a nil value.
func NilValue() Value {
	return Value{Type: TypeNil}
}

// BoolValue creates a logical value.
func BoolValue(b bool) Value {
	if b {
		return Value{Type: TypeBool, IntVal: 1}
	}
	return Value{Type: TypeBool, IntVal: 0}
}

// IntValue creates an integer value.
func IntValue(n int64) Value {
	return Value{Type: TypeInt, IntVal: n}
}

// FloatValue creates a double value.
func FloatValue(f float64) Value {
	return Value{Type: TypeFloat, FloatVal: f}
}

// StringValue creates a character value.
func StringValue(s string) Value {
	return Value{Type: TypeString, StringVal: s}
}

// ListValue creates a list value. The slice is used directly, not copied.
func ListValue(elems []Value) Value {
	return Value{Type: TypeList, ListVal: elems}
}

// InstanceValue creates an instance reference value.
func InstanceValue(inst *Instance) Value {
	return Value{Type: TypeInstance, InstanceVal: inst}
}

// IsNil returns true if the value is nil.
func (v Value) IsNil() bool {
	return v.Type == TypeNil
}

// AsBool converts the value to a Go bool.
func (v Value) AsBool() bool {
	switch v.Type {
	case TypeBool, TypeInt:
		return v.IntVal != 0
	case TypeFloat:
		return v.FloatVal != 0
	case TypeString:
		return v.StringVal != "" && v.StringVal != "false"
	default:
		return false
	}
}

// AsInt converts the value to an integer.
func (v Value) AsInt() int64 {
	switch v.Type {
	case TypeInt, TypeBool:
		return v.IntVal
	case TypeFloat:
		return int64(v.FloatVal)
	case TypeString:
		n, _ := strconv.ParseInt(v.StringVal, 10, 64)
		return n
	default:
		return 0
	}
}

// AsFloat converts the value to a float.
func (v Value) AsFloat() float64 {
	switch v.Type {
	case TypeFloat:
		return v.FloatVal
	case TypeInt, TypeBool:
		return float64(v.IntVal)
	case TypeString:
		f, _ := strconv.ParseFloat(v.StringVal, 64)
		return f
	default:
		return 0
	}
}

// AsString converts the value to a string representation.
func (v Value) AsString() string {
	switch v.Type {
	case TypeNil:
		return ""
	case TypeBool:
		if v.IntVal != 0 {
			return "true"
		}
		return "false"
	case TypeInt:
		return strconv.FormatInt(v.IntVal, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.FloatVal, 'f', -1, 64)
	case TypeString:
		return v.StringVal
	case TypeList:
		parts := make([]string, len(v.ListVal))
		for i, e := range v.ListVal {
			parts[i] = e.AsString()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeInstance:
		if v.InstanceVal != nil {
			return v.InstanceVal.ID
		}
		return ""
	default:
		return ""
	}
}

// ClassName returns the dispatch class of the value: the most-derived
// class name for instances, a builtin class name otherwise.
func (v Value) ClassName() string {
	switch v.Type {
	case TypeNil:
		return ClassNil
	case TypeBool:
		return ClassLogical
	case TypeInt:
		return ClassInteger
	case TypeFloat:
		return ClassDouble
	case TypeString:
		return ClassCharacter
	case TypeList:
		return ClassList
	case TypeInstance:
		if v.InstanceVal != nil {
			return v.InstanceVal.ClassName()
		}
		return ClassNil
	default:
		return ClassNil
	}
}

// ClassChain returns the precedence chain for the value's class, most
// specific first, ending with the implicit "any" class. For instances
// this is the class's precedence list.
func (v Value) ClassChain() []string {
	if v.Type == TypeInstance && v.InstanceVal != nil {
		return v.InstanceVal.Class.PrecedenceNames()
	}
	return builtinChain(v.Type)
}

func builtinChain(t ValueType) []string {
	switch t {
	case TypeInt:
		return []string{ClassInteger, ClassNumeric, ClassAny}
	case TypeFloat:
		return []string{ClassDouble, ClassNumeric, ClassAny}
	case TypeBool:
		return []string{ClassLogical, ClassAny}
	case TypeString:
		return []string{ClassCharacter, ClassAny}
	case TypeList:
		return []string{ClassList, ClassAny}
	default:
		return []string{ClassNil, ClassAny}
	}
}

// typeName returns the slot-type name for a value's runtime type,
// used in type mismatch reporting.
func (v Value) typeName() string {
	return v.ClassName()
}
