package labels

import (
	"fmt"
	"strings"

	"github.com/janelia-flyem/stitch/stitch"
)

// MatchMode selects how much of the halo is compared.
type MatchMode uint8

const (
	// ThinSlice compares one voxel-thick slice at the halo midpoint on each side.
	ThinSlice MatchMode = iota

	// FullHalo compares the full 2*halo overlap on each side.
	FullHalo
)

func (m MatchMode) String() string {
	switch m {
	case ThinSlice:
		return "thin"
	case FullHalo:
		return "halo"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMatchMode accepts "thin" or "halo".
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "thin", "slice":
		return ThinSlice, nil
	case "halo", "full":
		return FullHalo, nil
	}
	return ThinSlice, fmt.Errorf("unknown matching mode %q", s)
}

func (m *MatchMode) UnmarshalText(text []byte) error {
	mode, err := ParseMatchMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Bounds is a half-open box [Lo, Hi) of array positions.
type Bounds struct {
	Lo, Hi [3]int
}

// Shape returns the extent of the box along each axis.
func (b Bounds) Shape() [3]int {
	return [3]int{b.Hi[0] - b.Lo[0], b.Hi[1] - b.Lo[1], b.Hi[2] - b.Lo[2]}
}

// NumVoxels returns the number of voxels in the box.
func (b Bounds) NumVoxels() int {
	s := b.Shape()
	return s[0] * s[1] * s[2]
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d, %d:%d]", b.Lo[0], b.Hi[0], b.Lo[1], b.Hi[1], b.Lo[2], b.Hi[2])
}

// Region is the comparison sub-array of a packed block.
type Region struct {
	Bounds
	src *Packed
}

// Each calls fn with the flat offset of every voxel in the region, in row-major order.
func (r Region) Each(fn func(offset int)) {
	s1, s2 := r.src.Shape[1], r.src.Shape[2]
	for i0 := r.Lo[0]; i0 < r.Hi[0]; i0++ {
		for i1 := r.Lo[1]; i1 < r.Hi[1]; i1++ {
			base := (i0*s1 + i1) * s2
			for i2 := r.Lo[2]; i2 < r.Hi[2]; i2++ {
				fn(base + i2)
			}
		}
	}
}

// OverlapBounds returns the comparison boxes for block A (closer to the origin)
// and block B (farther along the axis).  Direction is 1-based (1, 2, 3 => X, Y, Z)
// and halo is the number of voxels of true overlap on each side of the boundary.
func OverlapBounds(shapeA, shapeB [3]int, direction, halo int, mode MatchMode) (ba, bb Bounds, err error) {
	axis, err := stitch.AxisFromDirection(direction)
	if err != nil {
		return ba, bb, stitch.WrapError(stitch.ShapeMismatch, err)
	}
	if halo < 1 {
		return ba, bb, stitch.NewError(stitch.ShapeMismatch, "halo width must be positive, got %d", halo)
	}
	ba.Hi, bb.Hi = shapeA, shapeB

	a := int(axis)
	switch mode {
	case ThinSlice:
		ba.Lo[a] = shapeA[a] - halo
		ba.Hi[a] = ba.Lo[a] + 1
		bb.Lo[a] = halo
		bb.Hi[a] = halo + 1
	case FullHalo:
		ba.Lo[a] = shapeA[a] - 2*halo
		bb.Hi[a] = 2 * halo
	default:
		return ba, bb, fmt.Errorf("unknown matching mode %s", mode)
	}
	if ba.Lo[a] < 0 || ba.Hi[a] > shapeA[a] {
		return ba, bb, stitch.NewError(stitch.ShapeMismatch, "halo %d does not fit block A of extent %d along %s", halo, shapeA[a], axis)
	}
	if bb.Lo[a] < 0 || bb.Hi[a] > shapeB[a] {
		return ba, bb, stitch.NewError(stitch.ShapeMismatch, "halo %d does not fit block B of extent %d along %s", halo, shapeB[a], axis)
	}
	if ba.Shape() != bb.Shape() {
		return ba, bb, stitch.NewError(stitch.ShapeMismatch, "comparison regions %v and %v differ in shape", ba.Shape(), bb.Shape())
	}
	return ba, bb, nil
}

// ExtractOverlap returns equal-shaped comparison regions of the two packed blocks.
func ExtractOverlap(a, b *Packed, direction, halo int, mode MatchMode) (ra, rb Region, err error) {
	ba, bb, err := OverlapBounds(a.Shape, b.Shape, direction, halo, mode)
	if err != nil {
		return
	}
	return Region{ba, a}, Region{bb, b}, nil
}
