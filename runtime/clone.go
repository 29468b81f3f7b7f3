package runtime

// Clone returns a copy of a reference instance backed by a new field
// cell. A shallow clone copies top-level field values as-is, so a
// field holding a reference instance still aliases the original
// nested instance. A deep clone recursively clones every reference
// instance reachable through fields, including through lists.
//
// Deep cloning tolerates cycles: the visited set is keyed by cell
// identity and an already-cloned target is reused instead of being
// cloned again.
//
// Value instances are immutable, so Clone returns the receiver.
func (inst *Instance) Clone(deep bool) *Instance {
	if inst.Kind() != KindReference {
		return inst
	}
	if !deep {
		return newInstance(inst.Class, inst.cell.snapshot())
	}
	return cloneDeep(inst, make(map[*fieldCell]*Instance))
}

func cloneDeep(inst *Instance, visited map[*fieldCell]*Instance) *Instance {
	if done, ok := visited[inst.cell]; ok {
		return done
	}

	// Register the clone before descending so a cycle back to this
	// instance resolves to the clone in progress.
	clone := newInstance(inst.Class, nil)
	visited[inst.cell] = clone

	for name, v := range inst.cell.snapshot() {
		clone.cell.set(name, cloneValue(v, visited))
	}
	return clone
}

func cloneValue(v Value, visited map[*fieldCell]*Instance) Value {
	switch v.Type {
	case TypeInstance:
		if v.InstanceVal != nil && v.InstanceVal.Kind() == KindReference {
			return InstanceValue(cloneDeep(v.InstanceVal, visited))
		}
		return v
	case TypeList:
		elems := make([]Value, len(v.ListVal))
		for i, e := range v.ListVal {
			elems[i] = cloneValue(e, visited)
		}
		return ListValue(elems)
	default:
		return v
	}
}
