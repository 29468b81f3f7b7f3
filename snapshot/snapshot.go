// Package snapshot exports and imports the state of a genera runtime:
// class definitions with content digests, plus a set of instances with
// their field graphs. The wire format is canonical CBOR, so equal
// snapshots encode to equal bytes.
package snapshot

import (
	"fmt"

	"github.com/jmallory/genera/runtime"
)

// Version identifies the snapshot record layout.
const Version = 1

// Snapshot is a serializable capture of classes and instances.
type Snapshot struct {
	Version   int              `cbor:"version"`
	Classes   []ClassRecord    `cbor:"classes"`
	Instances []InstanceRecord `cbor:"instances"`
}

// ClassRecord is the portable form of a class definition. Validators
// are Go functions and do not travel; the hash covers structure only.
type ClassRecord struct {
	Name     string       `cbor:"name"`
	Parents  []string     `cbor:"parents,omitempty"`
	Kind     string       `cbor:"kind"`
	Abstract bool         `cbor:"abstract,omitempty"`
	Slots    []SlotRecord `cbor:"slots,omitempty"`
	Hash     [32]byte     `cbor:"hash"`
}

// SlotRecord is the portable form of a slot declaration.
type SlotRecord struct {
	Name    string       `cbor:"name"`
	Type    string       `cbor:"type,omitempty"`
	Default *ValueRecord `cbor:"default,omitempty"`
}

// InstanceRecord is the portable form of one instance. Nested
// instances appear as Ref values pointing at their own records, so an
// arbitrary object graph (cycles included) flattens into one list.
type InstanceRecord struct {
	ID     string                 `cbor:"id"`
	Class  string                 `cbor:"class"`
	Fields map[string]ValueRecord `cbor:"fields,omitempty"`
}

// ValueRecord is the portable form of a runtime value.
type ValueRecord struct {
	Type  string        `cbor:"type"`
	Int   int64         `cbor:"int,omitempty"`
	Float float64       `cbor:"float,omitempty"`
	Bool  bool          `cbor:"bool,omitempty"`
	Str   string        `cbor:"str,omitempty"`
	List  []ValueRecord `cbor:"list,omitempty"`
	Ref   string        `cbor:"ref,omitempty"` // instance ID
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

// Export captures every registered class and the given instances,
// along with every instance transitively reachable through their
// fields.
func Export(r *runtime.Runtime, roots []*runtime.Instance) *Snapshot {
	snap := &Snapshot{Version: Version}

	for _, c := range r.Classes.All() {
		snap.Classes = append(snap.Classes, classRecord(c))
	}

	e := &exporter{visited: make(map[string]bool)}
	for _, inst := range roots {
		e.addInstance(inst)
	}
	snap.Instances = e.records
	return snap
}

func classRecord(c *runtime.ClassDef) ClassRecord {
	rec := ClassRecord{
		Name:     c.Name,
		Parents:  c.ParentNames(),
		Kind:     c.Kind.String(),
		Abstract: c.Abstract,
		Hash:     HashClass(c),
	}
	for _, s := range c.Slots {
		sr := SlotRecord{Name: s.Name, Type: s.Type}
		if s.HasDefault {
			v := encodeScalar(s.Default)
			sr.Default = &v
		}
		rec.Slots = append(rec.Slots, sr)
	}
	return rec
}

type exporter struct {
	visited map[string]bool
	records []InstanceRecord
}

func (e *exporter) addInstance(inst *runtime.Instance) {
	if e.visited[inst.ID] {
		return
	}
	e.visited[inst.ID] = true

	rec := InstanceRecord{
		ID:     inst.ID,
		Class:  inst.ClassName(),
		Fields: make(map[string]ValueRecord),
	}
	// Reserve this record's position before descending so cycles
	// terminate; fields are filled in afterwards.
	at := len(e.records)
	e.records = append(e.records, rec)

	// Sorted field order keeps the record list stable across exports.
	for _, name := range inst.FieldNames() {
		rec.Fields[name] = e.encode(inst.GetField(name))
	}
	e.records[at] = rec
}

func (e *exporter) encode(v runtime.Value) ValueRecord {
	switch v.Type {
	case runtime.TypeInstance:
		if v.InstanceVal == nil {
			return ValueRecord{Type: "nil"}
		}
		e.addInstance(v.InstanceVal)
		return ValueRecord{Type: "ref", Ref: v.InstanceVal.ID}
	case runtime.TypeList:
		rec := ValueRecord{Type: "list", List: make([]ValueRecord, len(v.ListVal))}
		for i, el := range v.ListVal {
			rec.List[i] = e.encode(el)
		}
		return rec
	default:
		return encodeScalar(v)
	}
}

func encodeScalar(v runtime.Value) ValueRecord {
	switch v.Type {
	case runtime.TypeBool:
		return ValueRecord{Type: "bool", Bool: v.AsBool()}
	case runtime.TypeInt:
		return ValueRecord{Type: "int", Int: v.IntVal}
	case runtime.TypeFloat:
		return ValueRecord{Type: "float", Float: v.FloatVal}
	case runtime.TypeString:
		return ValueRecord{Type: "str", Str: v.StringVal}
	case runtime.TypeList:
		rec := ValueRecord{Type: "list", List: make([]ValueRecord, len(v.ListVal))}
		for i, el := range v.ListVal {
			rec.List[i] = encodeScalar(el)
		}
		return rec
	default:
		return ValueRecord{Type: "nil"}
	}
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

// Import applies a snapshot to a runtime: classes are defined in
// record order (classes already present under the same name are left
// alone) and instances are rebuilt with their recorded IDs, including
// reference cycles. Returns the rebuilt instances keyed by ID.
func Import(r *runtime.Runtime, snap *Snapshot) (map[string]*runtime.Instance, error) {
	if snap.Version != Version {
		return nil, fmt.Errorf("snapshot: unsupported version %d", snap.Version)
	}

	for _, rec := range snap.Classes {
		if r.Classes.Has(rec.Name) {
			continue
		}
		opts := runtime.ClassOptions{
			Parents:  rec.Parents,
			Abstract: rec.Abstract,
		}
		if rec.Kind == "reference" {
			opts.Kind = runtime.KindReference
		}
		for _, s := range rec.Slots {
			spec := runtime.SlotSpec{Name: s.Name, Type: s.Type}
			if s.Default != nil {
				v, err := decodeValue(*s.Default, nil)
				if err != nil {
					return nil, err
				}
				spec.Default = v
				spec.HasDefault = true
			}
			opts.Slots = append(opts.Slots, spec)
		}
		if _, err := r.Classes.Define(rec.Name, opts); err != nil {
			return nil, fmt.Errorf("snapshot: class %s: %w", rec.Name, err)
		}
	}

	// First pass: create every instance with empty fields so refs and
	// cycles resolve; second pass: decode fields.
	instances := make(map[string]*runtime.Instance, len(snap.Instances))
	for _, rec := range snap.Instances {
		class := r.Classes.Lookup(rec.Class)
		if class == nil {
			return nil, fmt.Errorf("snapshot: instance %s has unknown class %s", rec.ID, rec.Class)
		}
		instances[rec.ID] = r.RestoreInstance(class, rec.ID, nil)
	}
	for _, rec := range snap.Instances {
		inst := instances[rec.ID]
		for name, vr := range rec.Fields {
			v, err := decodeValue(vr, instances)
			if err != nil {
				return nil, fmt.Errorf("snapshot: instance %s field %s: %w", rec.ID, name, err)
			}
			runtime.RestoreField(inst, name, v)
		}
	}
	return instances, nil
}

func decodeValue(rec ValueRecord, instances map[string]*runtime.Instance) (runtime.Value, error) {
	switch rec.Type {
	case "nil":
		return runtime.Nil, nil
	case "bool":
		return runtime.BoolValue(rec.Bool), nil
	case "int":
		return runtime.IntValue(rec.Int), nil
	case "float":
		return runtime.FloatValue(rec.Float), nil
	case "str":
		return runtime.StringValue(rec.Str), nil
	case "list":
		elems := make([]runtime.Value, len(rec.List))
		for i, el := range rec.List {
			v, err := decodeValue(el, instances)
			if err != nil {
				return runtime.Nil, err
			}
			elems[i] = v
		}
		return runtime.ListValue(elems), nil
	case "ref":
		inst, ok := instances[rec.Ref]
		if !ok {
			return runtime.Nil, fmt.Errorf("dangling instance ref %s", rec.Ref)
		}
		return runtime.InstanceValue(inst), nil
	default:
		return runtime.Nil, fmt.Errorf("unknown value record type %q", rec.Type)
	}
}
