package runtime

// Precedence returns the class's linearized ancestor list, most
// specific first, starting with the class itself. The order is a
// depth-first, left-to-right walk of the parent graph; each class is
// kept at its earliest discovery position and skipped afterwards.
//
// This is deliberately not a C3 linearization. For diamond-shaped
// multiple inheritance the shared ancestor is placed where the walk
// first reaches it, which can put it ahead of a more specific class
// on a later branch. The order is deterministic and is what the
// method search uses.
//
// The list is computed lazily on first use and cached for the
// lifetime of the ClassDef; classes are immutable after registration
// so it never needs invalidation.
func (c *ClassDef) Precedence() []*ClassDef {
	c.precOnce.Do(func() {
		seen := make(map[*ClassDef]bool)
		var walk func(cls *ClassDef)
		walk = func(cls *ClassDef) {
			if seen[cls] {
				return
			}
			seen[cls] = true
			c.precedence = append(c.precedence, cls)
			for _, p := range cls.Parents {
				walk(p)
			}
		}
		walk(c)
	})
	return c.precedence
}

// PrecedenceNames returns the precedence list as class names, with the
// implicit terminal "any" class appended after all real ancestors.
func (c *ClassDef) PrecedenceNames() []string {
	prec := c.Precedence()
	names := make([]string, 0, len(prec)+1)
	for _, cls := range prec {
		names = append(names, cls.Name)
	}
	return append(names, ClassAny)
}

// IsSubclassOf returns true if c is other or has other as an ancestor.
func (c *ClassDef) IsSubclassOf(other *ClassDef) bool {
	for _, cls := range c.Precedence() {
		if cls == other {
			return true
		}
	}
	return false
}

// IsSuperclassOf returns true if c is other or an ancestor of other.
func (c *ClassDef) IsSuperclassOf(other *ClassDef) bool {
	return other.IsSubclassOf(c)
}
