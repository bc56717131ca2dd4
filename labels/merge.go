package labels

import (
	"fmt"
	"sort"
)

// MergeEdge declares that Source and Target are the same object.  Target is
// never larger than Source so edges always point toward the canonical label.
type MergeEdge struct {
	Source, Target uint64
}

// NewMergeEdge orders two equivalent labels as (larger, smaller).
func NewMergeEdge(l1, l2 uint64) MergeEdge {
	if l1 < l2 {
		return MergeEdge{Source: l2, Target: l1}
	}
	return MergeEdge{Source: l1, Target: l2}
}

func (e MergeEdge) String() string {
	return fmt.Sprintf("(%d,%d)", e.Source, e.Target)
}

// MergeHistory is the append-only log of raw equivalence edges of a block.
type MergeHistory []MergeEdge

// Extend returns a new history with the edges appended verbatim.  The receiver
// is not modified.
func (h MergeHistory) Extend(edges MergeHistory) MergeHistory {
	out := make(MergeHistory, 0, len(h)+len(edges))
	out = append(out, h...)
	return append(out, edges...)
}

// Contains returns true if every edge of other also appears in h.
func (h MergeHistory) Contains(other MergeHistory) bool {
	set := make(map[MergeEdge]struct{}, len(h))
	for _, e := range h {
		set[e] = struct{}{}
	}
	for _, e := range other {
		if _, found := set[e]; !found {
			return false
		}
	}
	return true
}

// NewEdges converts a matching back to raw labels as (larger, smaller) edges,
// ordered by block A dense id.  Pairs with the same raw label on both sides need
// no merge and are dropped.
func NewEdges(m Matching, in *Interner) MergeHistory {
	var edges MergeHistory
	for _, p := range m.Pairs() {
		l1, l2 := in.Label(p.A), in.Label(p.B)
		if l1 == 0 || l2 == 0 || l1 == l2 {
			continue
		}
		edges = append(edges, NewMergeEdge(l1, l2))
	}
	return edges
}

// UpdateHistories returns the output histories of a reconciliation: block A's
// previous history followed by the new edges, and block B's history unchanged.
// Each new edge is thus recorded once, on the block closer to the origin.
func UpdateHistories(prevA, prevB, newEdges MergeHistory) (outA, outB MergeHistory) {
	outA = prevA.Extend(newEdges)
	if len(prevB) != 0 {
		outB = prevB.Extend(nil)
	}
	return
}

// CanonicalMap maps every label to the smallest label it is equivalent to.
// Labels never merged map to themselves and background always maps to 0.
type CanonicalMap struct {
	parent  map[uint64]uint64
	skipped int
}

// Resolve unions every edge of the given histories and flattens all chains, so
// that (9,4) followed by (4,2) sends 9 to 2.  Edges touching background are ignored.
func Resolve(histories ...MergeHistory) *CanonicalMap {
	cm := &CanonicalMap{parent: make(map[uint64]uint64)}
	for _, h := range histories {
		for _, e := range h {
			if e.Source == 0 || e.Target == 0 {
				cm.skipped++
				continue
			}
			cm.union(e.Source, e.Target)
		}
	}
	for label := range cm.parent {
		cm.parent[label] = cm.find(label)
	}
	return cm
}

// find chases parents to the root with path halving.  Parents are always
// strictly smaller than their children, so the chase ends within the number of
// labels in the map.
func (cm *CanonicalMap) find(label uint64) uint64 {
	for {
		p, found := cm.parent[label]
		if !found || p == label {
			return label
		}
		gp, found := cm.parent[p]
		if found && gp != p {
			cm.parent[label] = gp
		}
		label = p
	}
}

func (cm *CanonicalMap) union(a, b uint64) {
	ra, rb := cm.find(a), cm.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		ra, rb = rb, ra
	}
	cm.parent[ra] = rb
	if _, found := cm.parent[rb]; !found {
		cm.parent[rb] = rb
	}
}

// Map returns the canonical label.  It does not modify the map and is safe for
// concurrent use.
func (cm *CanonicalMap) Map(label uint64) uint64 {
	if root, found := cm.parent[label]; found {
		return root
	}
	return label
}

// Len returns the number of labels that take part in some merge.
func (cm *CanonicalMap) Len() int {
	return len(cm.parent)
}

// Skipped returns the number of edges ignored because they touched background.
func (cm *CanonicalMap) Skipped() int {
	return cm.skipped
}

// Remapped returns the labels that map to a different label, ascending.
func (cm *CanonicalMap) Remapped() []uint64 {
	var out []uint64
	for label, root := range cm.parent {
		if label != root {
			out = append(out, label)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Table returns the canonical label for every dense id of the interner.
func (cm *CanonicalMap) Table(in *Interner) []uint64 {
	table := make([]uint64, in.Len())
	for id := range table {
		table[id] = cm.Map(in.Label(uint32(id)))
	}
	return table
}
