package labels

import (
	"testing"

	"github.com/janelia-flyem/stitch/stitch"
)

// planeBlocks returns two 2 x 1 x n volumes whose compared slices for
// direction 1 with halo 1 hold the given labels.  The other slice of each
// volume repeats the compared one.
func planeBlocks(t *testing.T, planeA, planeB []uint64) (*Volume, *Volume) {
	if len(planeA) != len(planeB) {
		t.Fatalf("planes must be same size: %d != %d\n", len(planeA), len(planeB))
	}
	n := len(planeA)
	a := NewVolume([3]int{2, 1, n}, Uint64)
	b := NewVolume([3]int{2, 1, n}, Uint64)
	for i0 := 0; i0 < 2; i0++ {
		for i := 0; i < n; i++ {
			a.Set(i0, 0, i, planeA[i])
			b.Set(i0, 0, i, planeB[i])
		}
	}
	return a, b
}

func repeatLabel(label uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = label
	}
	return out
}

func concatLabels(runs ...[]uint64) []uint64 {
	var out []uint64
	for _, run := range runs {
		out = append(out, run...)
	}
	return out
}

func histogramFrom(pairs []OverlapPair) *Histogram {
	h := &Histogram{
		index: make(map[uint64]int),
		areas: make(map[uint32]uint64),
	}
	for _, p := range pairs {
		key := pairKey(p.A, p.B)
		if _, found := h.index[key]; found {
			continue
		}
		h.index[key] = len(h.pairs)
		h.pairs = append(h.pairs, p)
		h.areas[p.A] += p.Count
		h.areas[p.B] += p.Count
		h.total += p.Count
	}
	return h
}

func TestInterner(t *testing.T) {
	v := NewVolume([3]int{1, 2, 3}, Uint64)
	copy(v.Data, []uint64{0, 1 << 60, 1 << 60, 7, 0, 7})
	in := NewInterner()
	packed, err := in.Pack(v)
	if err != nil {
		t.Fatal(err)
	}
	expected := []uint32{0, 1, 1, 2, 0, 2}
	for i, id := range packed.IDs {
		if id != expected[i] {
			t.Fatalf("voxel %d: expected dense id %d, got %d\n", i, expected[i], id)
		}
	}
	if in.Len() != 3 {
		t.Fatalf("expected 3 dense ids, got %d\n", in.Len())
	}
	if in.Label(BackgroundID) != 0 || in.Label(1) != 1<<60 || in.Label(2) != 7 {
		t.Fatalf("bad reverse mapping: %v\n", in.labels)
	}
	if id, found := in.Lookup(7); !found || id != 2 {
		t.Fatalf("bad lookup of 7: %d %t\n", id, found)
	}
	if _, found := in.Lookup(8); found {
		t.Fatalf("unexpected lookup of unseen label\n")
	}
}

func TestVolumeBinary(t *testing.T) {
	v := NewVolume([3]int{2, 2, 2}, Uint16)
	copy(v.Data, []uint64{0, 1, 2, 3, 65535, 5, 6, 7})
	b, err := v.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 16 {
		t.Fatalf("expected 16 bytes for uint16 volume, got %d\n", len(b))
	}
	got := &Volume{Shape: v.Shape, DType: Uint16}
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatal(err)
	}
	for i := range v.Data {
		if got.Data[i] != v.Data[i] {
			t.Fatalf("voxel %d: expected %d, got %d\n", i, v.Data[i], got.Data[i])
		}
	}
	v.Data[0] = 65536
	if _, err := v.MarshalBinary(); err == nil {
		t.Fatalf("expected error on label out of uint16 range\n")
	}
	if err := got.UnmarshalBinary(b[:15]); err == nil {
		t.Fatalf("expected error on short data\n")
	}
}

func TestVolumeCounts(t *testing.T) {
	v := NewVolume([3]int{1, 1, 6}, Uint32)
	copy(v.Data, []uint64{3, 3, 0, 3, 9, 9})
	counts := v.Counts()
	if counts[3] != 3 || counts[0] != 1 || counts[9] != 2 || len(counts) != 3 {
		t.Fatalf("bad counts: %v\n", counts)
	}
}

func TestOverlapBounds(t *testing.T) {
	shapeA := [3]int{20, 10, 12}
	shapeB := [3]int{16, 10, 12}

	ba, bb, err := OverlapBounds(shapeA, shapeB, 1, 3, ThinSlice)
	if err != nil {
		t.Fatal(err)
	}
	if ba.Lo != [3]int{17, 0, 0} || ba.Hi != [3]int{18, 10, 12} {
		t.Errorf("bad thin A bounds %s\n", ba)
	}
	if bb.Lo != [3]int{3, 0, 0} || bb.Hi != [3]int{4, 10, 12} {
		t.Errorf("bad thin B bounds %s\n", bb)
	}

	ba, bb, err = OverlapBounds(shapeA, shapeB, 1, 3, FullHalo)
	if err != nil {
		t.Fatal(err)
	}
	if ba.Lo != [3]int{14, 0, 0} || ba.Hi != [3]int{20, 10, 12} {
		t.Errorf("bad halo A bounds %s\n", ba)
	}
	if bb.Lo != [3]int{0, 0, 0} || bb.Hi != [3]int{6, 10, 12} {
		t.Errorf("bad halo B bounds %s\n", bb)
	}
	if ba.NumVoxels() != 6*10*12 {
		t.Errorf("bad voxel count %d\n", ba.NumVoxels())
	}

	ba, bb, err = OverlapBounds([3]int{4, 5, 9}, [3]int{4, 5, 9}, 3, 2, ThinSlice)
	if err != nil {
		t.Fatal(err)
	}
	if ba.Lo[2] != 7 || bb.Lo[2] != 2 || ba.Shape() != [3]int{4, 5, 1} {
		t.Errorf("bad Z bounds %s %s\n", ba, bb)
	}

	bad := []struct {
		shapeA, shapeB [3]int
		direction      int
		halo           int
		mode           MatchMode
	}{
		{shapeA, [3]int{16, 11, 12}, 1, 3, ThinSlice}, // non-matched axis differs
		{shapeA, shapeB, 2, 3, ThinSlice},             // axis 0 now non-matched and differs
		{shapeA, shapeB, 1, 0, ThinSlice},
		{shapeA, shapeB, 1, 16, ThinSlice},
		{shapeA, shapeB, 1, 9, FullHalo},
		{shapeA, shapeB, 4, 3, ThinSlice},
	}
	for i, tc := range bad {
		_, _, err := OverlapBounds(tc.shapeA, tc.shapeB, tc.direction, tc.halo, tc.mode)
		if err == nil {
			t.Errorf("case %d: expected error\n", i)
			continue
		}
		if !stitch.IsKind(err, stitch.ShapeMismatch) {
			t.Errorf("case %d: expected shape mismatch, got %v\n", i, err)
		}
	}
}

func TestCountOverlap(t *testing.T) {
	a, b := planeBlocks(t,
		[]uint64{0, 5, 5, 5, 6, 6},
		[]uint64{0, 7, 7, 9, 9, 0})
	in := NewInterner()
	pa, _ := in.Pack(a)
	pb, _ := in.Pack(b)
	ra, rb, err := ExtractOverlap(pa, pb, 1, 1, ThinSlice)
	if err != nil {
		t.Fatal(err)
	}
	h, err := CountOverlap(ra, rb)
	if err != nil {
		t.Fatal(err)
	}
	id := func(label uint64) uint32 {
		v, found := in.Lookup(label)
		if !found {
			t.Fatalf("label %d never interned\n", label)
		}
		return v
	}
	expected := []OverlapPair{
		{0, 0, 1},
		{id(5), id(7), 2},
		{id(5), id(9), 1},
		{id(6), id(9), 1},
		{id(6), 0, 1},
	}
	pairs := h.Pairs()
	if len(pairs) != len(expected) {
		t.Fatalf("expected %d pairs, got %v\n", len(expected), pairs)
	}
	for i := range expected {
		if pairs[i] != expected[i] {
			t.Errorf("pair %d: expected %v, got %v\n", i, expected[i], pairs[i])
		}
	}
	if len(h.Foreground()) != 3 {
		t.Errorf("expected 3 foreground pairs, got %v\n", h.Foreground())
	}
	if h.Area(id(5)) != 3 || h.Area(id(9)) != 2 || h.Area(BackgroundID) != 3 {
		t.Errorf("bad areas: %v\n", h.Areas())
	}
	if h.Count(id(5), id(7)) != 2 || h.Count(id(7), id(5)) != 0 {
		t.Errorf("bad counts lookup\n")
	}
	if h.NumVoxels() != 6 {
		t.Errorf("expected 6 voxels compared, got %d\n", h.NumVoxels())
	}

	var visited int
	ra.Each(func(offset int) {
		if offset < 6 {
			t.Errorf("region A should only visit the second slice, got offset %d\n", offset)
		}
		visited++
	})
	if visited != 6 {
		t.Errorf("expected 6 voxels visited, got %d\n", visited)
	}
}
