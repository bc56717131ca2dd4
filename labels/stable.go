package labels

import (
	"sort"
)

// Preference is one candidate partner and its overlap with the owner of the list.
type Preference struct {
	ID    uint32
	Count uint64
}

// PreferenceList is ordered by overlap count descending, ties in histogram
// enumeration order.
type PreferenceList []Preference

// Preferences holds the preference list of every label on one side.
type Preferences struct {
	ids   []uint32 // ascending dense id
	lists map[uint32]PreferenceList
	rank  map[uint64]int // pairKey(owner, candidate) -> position in owner's list
}

// BuildPreferences ranks, for every non-background id on each side, the ids of
// the other side that it overlaps.
func BuildPreferences(h *Histogram) (prefsA, prefsB *Preferences) {
	prefsA = &Preferences{lists: make(map[uint32]PreferenceList), rank: make(map[uint64]int)}
	prefsB = &Preferences{lists: make(map[uint32]PreferenceList), rank: make(map[uint64]int)}
	for _, p := range h.Foreground() {
		prefsA.lists[p.A] = append(prefsA.lists[p.A], Preference{p.B, p.Count})
		prefsB.lists[p.B] = append(prefsB.lists[p.B], Preference{p.A, p.Count})
	}
	prefsA.finish()
	prefsB.finish()
	return
}

func (p *Preferences) finish() {
	p.ids = make([]uint32, 0, len(p.lists))
	for id, list := range p.lists {
		p.ids = append(p.ids, id)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Count > list[j].Count
		})
		for pos, pref := range list {
			p.rank[pairKey(id, pref.ID)] = pos
		}
	}
	sort.Slice(p.ids, func(i, j int) bool { return p.ids[i] < p.ids[j] })
}

// IDs returns the ids that have a preference list, ascending.
func (p *Preferences) IDs() []uint32 {
	return p.ids
}

// List returns the preference list of an id.
func (p *Preferences) List(id uint32) PreferenceList {
	return p.lists[id]
}

// Rank returns the position of candidate in the owner's list, lower is preferred.
func (p *Preferences) Rank(owner, candidate uint32) (int, bool) {
	pos, found := p.rank[pairKey(owner, candidate)]
	return pos, found
}

// Pair is a matched (block A id, block B id).
type Pair struct {
	A, B uint32
}

// Matching is a partial one-to-one correspondence of block A and block B ids.
type Matching struct {
	aToB map[uint32]uint32
	bToA map[uint32]uint32
}

// PartnerOfA returns the block B id matched to block A id a.
func (m Matching) PartnerOfA(a uint32) (uint32, bool) {
	b, found := m.aToB[a]
	return b, found
}

// PartnerOfB returns the block A id matched to block B id b.
func (m Matching) PartnerOfB(b uint32) (uint32, bool) {
	a, found := m.bToA[b]
	return a, found
}

// Len returns the number of matched pairs.
func (m Matching) Len() int {
	return len(m.aToB)
}

// Pairs returns the matched pairs ordered by block A id.
func (m Matching) Pairs() []Pair {
	pairs := make([]Pair, 0, len(m.aToB))
	for a, b := range m.aToB {
		pairs = append(pairs, Pair{a, b})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].A < pairs[j].A })
	return pairs
}

// StableMatch runs deferred acceptance with block A ids proposing in ascending id
// order.  A receiver keeps whichever proposer ranks higher in its own list; a
// proposer whose list runs out stays unmatched.  Background never takes part.
func StableMatch(h *Histogram) (Matching, *Preferences, *Preferences) {
	prefsA, prefsB := BuildPreferences(h)

	next := make(map[uint32]int, len(prefsA.ids))
	engaged := make(map[uint32]uint32, len(prefsB.ids)) // receiver -> proposer
	free := make([]uint32, len(prefsA.ids))
	copy(free, prefsA.ids)

	for head := 0; head < len(free); head++ {
		m := free[head]
		list := prefsA.lists[m]
		if next[m] >= len(list) {
			continue
		}
		w := list[next[m]].ID
		next[m]++

		fiance, taken := engaged[w]
		if !taken {
			engaged[w] = m
			continue
		}
		newRank, _ := prefsB.Rank(w, m)
		curRank, _ := prefsB.Rank(w, fiance)
		if newRank < curRank {
			engaged[w] = m
			if next[fiance] < len(prefsA.lists[fiance]) {
				free = append(free, fiance)
			}
		} else if next[m] < len(list) {
			free = append(free, m)
		}
	}

	matching := Matching{
		aToB: make(map[uint32]uint32, len(engaged)),
		bToA: make(map[uint32]uint32, len(engaged)),
	}
	for b, a := range engaged {
		matching.aToB[a] = b
		matching.bToA[b] = a
	}
	return matching, prefsA, prefsB
}

// BlockingPairs returns every pair (a, b) with overlap that both would rather be
// matched with each other than with their current partners.  A stable matching
// has none.
func (m Matching) BlockingPairs(prefsA, prefsB *Preferences) []Pair {
	var blocking []Pair
	for _, a := range prefsA.ids {
		partner, matched := m.aToB[a]
		for _, pref := range prefsA.lists[a] {
			if matched && pref.ID == partner {
				break // everything after is less preferred by a
			}
			b := pref.ID
			cur, bMatched := m.bToA[b]
			if !bMatched {
				blocking = append(blocking, Pair{a, b})
				continue
			}
			rankNew, _ := prefsB.Rank(b, a)
			rankCur, _ := prefsB.Rank(b, cur)
			if rankNew < rankCur {
				blocking = append(blocking, Pair{a, b})
			}
		}
	}
	return blocking
}
