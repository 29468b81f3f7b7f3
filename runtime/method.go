package runtime

import (
	"sort"
	"strings"
	"sync"
)

// Signature position markers. A position may name a class, match any
// supplied argument, or match an argument that was not supplied.
const (
	SigAny     = ClassAny
	SigMissing = "missing"
)

// Signature is an ordered list of class-name patterns, one per
// dispatch-relevant argument position.
type Signature []string

// Key returns the canonical string form of the signature, used to
// detect duplicate registrations.
func (s Signature) Key() string {
	return strings.Join(s, ",")
}

func (s Signature) String() string {
	return "(" + strings.Join(s, ", ") + ")"
}

// MethodEntry binds a handler to a generic under a signature.
type MethodEntry struct {
	Generic   string
	Signature Signature
	Handler   HandlerFunc

	// seq is the registration order; among candidates of equal
	// specificity the earlier registration wins.
	seq int
}

// Per-position specificity ranks. A concrete class match ranks by its
// index in the argument's precedence chain, so exact matches score 0
// and remote ancestors score higher. Wildcards rank behind every real
// ancestor, and "missing" is the last fallback.
const (
	rankWildcard = 1 << 16
	rankMissing  = rankWildcard + 1
)

// MethodTable maps (generic name, signature) to handlers and answers
// ranked candidate queries for a concrete call.
// It's thread-safe for concurrent access.
type MethodTable struct {
	mu        sync.RWMutex
	byGeneric map[string][]*MethodEntry
	nextSeq   int
}

// NewMethodTable creates a new empty method table.
func NewMethodTable() *MethodTable {
	return &MethodTable{
		byGeneric: make(map[string][]*MethodEntry),
	}
}

// Register adds a method entry. Registering a signature that is
// already present replaces the prior handler in place, keeping its
// original position in the tie-break order.
func (mt *MethodTable) Register(generic string, sig Signature, handler HandlerFunc) *MethodEntry {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	key := sig.Key()
	for _, e := range mt.byGeneric[generic] {
		if e.Signature.Key() == key {
			e.Handler = handler
			return e
		}
	}

	e := &MethodEntry{
		Generic:   generic,
		Signature: sig,
		Handler:   handler,
		seq:       mt.nextSeq,
	}
	mt.nextSeq++
	mt.byGeneric[generic] = append(mt.byGeneric[generic], e)
	return e
}

// MethodsFor returns all entries registered for a generic, in
// registration order.
func (mt *MethodTable) MethodsFor(generic string) []*MethodEntry {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	entries := mt.byGeneric[generic]
	out := make([]*MethodEntry, len(entries))
	copy(out, entries)
	return out
}

// Len returns the total number of registered entries.
func (mt *MethodTable) Len() int {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	n := 0
	for _, entries := range mt.byGeneric {
		n += len(entries)
	}
	return n
}

// Candidates returns the entries applicable to a call, best first.
// chains holds, per dispatch position, the precedence chain of the
// supplied argument (ending in "any"), or nil when the position was
// not supplied. Entries are ranked by summed per-position specificity;
// ties break toward earlier registration.
func (mt *MethodTable) Candidates(generic string, chains [][]string) []*MethodEntry {
	mt.mu.RLock()
	entries := mt.byGeneric[generic]
	mt.mu.RUnlock()

	type ranked struct {
		entry *MethodEntry
		score int
	}
	var matches []ranked

	for _, e := range entries {
		score, ok := scoreSignature(e.Signature, chains)
		if ok {
			matches = append(matches, ranked{entry: e, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score < matches[j].score
		}
		return matches[i].entry.seq < matches[j].entry.seq
	})

	out := make([]*MethodEntry, len(matches))
	for i, m := range matches {
		out[i] = m.entry
	}
	return out
}

// scoreSignature ranks one signature against the call's chains.
// Returns false if any position fails to match.
func scoreSignature(sig Signature, chains [][]string) (int, bool) {
	total := 0
	for i, chain := range chains {
		pattern := SigMissing
		if i < len(sig) {
			pattern = sig[i]
		}
		rank, ok := scorePosition(pattern, chain)
		if !ok {
			return 0, false
		}
		total += rank
	}
	// A signature longer than the dispatch arity can never match.
	if len(sig) > len(chains) {
		return 0, false
	}
	return total, true
}

func scorePosition(pattern string, chain []string) (int, bool) {
	if chain == nil {
		// Position not supplied: only the missing marker and the
		// wildcard apply, wildcard first.
		switch pattern {
		case SigAny:
			return rankWildcard, true
		case SigMissing:
			return rankMissing, true
		}
		return 0, false
	}

	if pattern == SigMissing {
		return 0, false
	}
	for idx, name := range chain {
		if name == pattern {
			if pattern == SigAny {
				return rankWildcard, true
			}
			return idx, true
		}
	}
	return 0, false
}
