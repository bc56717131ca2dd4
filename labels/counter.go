package labels

import (
	"github.com/janelia-flyem/stitch/stitch"
)

// OverlapPair is the number of voxel positions where dense id A in block A's
// region coincides with dense id B in block B's region.
type OverlapPair struct {
	A, B  uint32
	Count uint64
}

// Histogram is a sparse joint histogram of co-occurring dense ids plus the
// per-id area over both comparison regions.
type Histogram struct {
	index map[uint64]int // packed pair -> position in pairs
	pairs []OverlapPair  // first-seen order
	areas map[uint32]uint64
	total uint64
}

func pairKey(a, b uint32) uint64 {
	return uint64(a)<<32 | uint64(b)
}

// CountOverlap builds the joint histogram of two equal-shaped regions.  Pairs are
// enumerated in the order they are first met during a row-major scan.
func CountOverlap(ra, rb Region) (*Histogram, error) {
	if ra.Shape() != rb.Shape() {
		return nil, stitch.NewError(stitch.ShapeMismatch, "cannot count overlap of regions %v and %v", ra.Shape(), rb.Shape())
	}
	h := &Histogram{
		index: make(map[uint64]int),
		areas: make(map[uint32]uint64),
	}
	idsA, idsB := ra.src.IDs, rb.src.IDs
	var n int
	var lastKey uint64 = 1<<64 - 1
	var lastPos int
	eachAligned(ra, rb, func(offA, offB int) {
		a := idsA[offA]
		b := idsB[offB]
		n++
		h.areas[a]++
		h.areas[b]++
		key := pairKey(a, b)
		if key != lastKey {
			pos, found := h.index[key]
			if !found {
				pos = len(h.pairs)
				h.index[key] = pos
				h.pairs = append(h.pairs, OverlapPair{A: a, B: b})
			}
			lastKey, lastPos = key, pos
		}
		h.pairs[lastPos].Count++
	})
	h.total = uint64(n)
	return h, nil
}

// eachAligned visits corresponding voxels of two equal-shaped regions in row-major order.
func eachAligned(ra, rb Region, fn func(offA, offB int)) {
	shape := ra.Shape()
	sa1, sa2 := ra.src.Shape[1], ra.src.Shape[2]
	sb1, sb2 := rb.src.Shape[1], rb.src.Shape[2]
	for d0 := 0; d0 < shape[0]; d0++ {
		for d1 := 0; d1 < shape[1]; d1++ {
			baseA := ((ra.Lo[0]+d0)*sa1+ra.Lo[1]+d1)*sa2 + ra.Lo[2]
			baseB := ((rb.Lo[0]+d0)*sb1+rb.Lo[1]+d1)*sb2 + rb.Lo[2]
			for d2 := 0; d2 < shape[2]; d2++ {
				fn(baseA+d2, baseB+d2)
			}
		}
	}
}

// Pairs returns every co-occurring pair, background included, in first-seen order.
func (h *Histogram) Pairs() []OverlapPair {
	return h.pairs
}

// Foreground returns the pairs where neither side is background, in first-seen order.
func (h *Histogram) Foreground() []OverlapPair {
	fg := make([]OverlapPair, 0, len(h.pairs))
	for _, p := range h.pairs {
		if p.A != BackgroundID && p.B != BackgroundID {
			fg = append(fg, p)
		}
	}
	return fg
}

// Count returns the co-occurrence count of a dense id pair.
func (h *Histogram) Count(a, b uint32) uint64 {
	pos, found := h.index[pairKey(a, b)]
	if !found {
		return 0
	}
	return h.pairs[pos].Count
}

// Area returns the number of voxels holding the dense id across both regions.
func (h *Histogram) Area(id uint32) uint64 {
	return h.areas[id]
}

// Areas returns the per-id voxel counts across both regions.
func (h *Histogram) Areas() map[uint32]uint64 {
	return h.areas
}

// NumVoxels returns the number of voxel positions compared.
func (h *Histogram) NumVoxels() uint64 {
	return h.total
}
