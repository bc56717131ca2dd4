package labels

import (
	"context"
	"runtime"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/stitch/stitch"
)

// Boundary describes the shared face of two adjacent blocks.
type Boundary struct {
	Direction int // 1-based axis, 1, 2, 3 => X, Y, Z
	Halo      int
	Mode      MatchMode
}

// Block is a label volume with its accumulated merge history.
type Block struct {
	*Volume
	Merges MergeHistory
}

// Reconciliation is the result of matching two adjacent blocks.
type Reconciliation struct {
	A, B      Block        // remapped volumes with their output histories
	NewEdges  MergeHistory // edges discovered by this reconciliation
	Matching  Matching
	Histogram *Histogram
	Interner  *Interner
	Canonical *CanonicalMap
}

// remapSpan is the number of voxels remapped per goroutine.
const remapSpan = 1 << 20

// Reconcile matches block A (closer to the origin) with block B across the
// boundary and returns both blocks rewritten through the resolved canonical map.
// The inputs are not modified.
func Reconcile(ctx context.Context, a, b Block, bd Boundary) (*Reconciliation, error) {
	timedLog := stitch.NewTimeLog()

	in := NewInterner()
	packedA, err := in.Pack(a.Volume)
	if err != nil {
		return nil, err
	}
	packedB, err := in.Pack(b.Volume)
	if err != nil {
		return nil, err
	}
	ra, rb, err := ExtractOverlap(packedA, packedB, bd.Direction, bd.Halo, bd.Mode)
	if err != nil {
		return nil, err
	}
	stitch.Debugf("block A region %s, block B region %s, %d distinct labels\n", ra.Bounds, rb.Bounds, in.Len())

	hist, err := CountOverlap(ra, rb)
	if err != nil {
		return nil, err
	}
	if stitch.LogMode() <= stitch.DebugMode {
		stitch.Debugf("histogram of %s voxels has %d pairs using ~%s\n",
			humanize.Comma(int64(hist.NumVoxels())), len(hist.Pairs()), humanize.Bytes(uint64(size.Of(hist))))
	}

	matching, _, _ := StableMatch(hist)
	newEdges := NewEdges(matching, in)
	for _, e := range newEdges {
		stitch.Debugf("merging segments %d -> %d\n", e.Source, e.Target)
	}

	cm := Resolve(newEdges, a.Merges, b.Merges)
	if cm.Skipped() != 0 {
		stitch.Warningf("ignored %d merge edges involving background\n", cm.Skipped())
	}
	table := cm.Table(in)

	outA := &Volume{Shape: a.Shape, Chunks: a.Chunks, DType: a.DType, Data: make([]uint64, len(a.Data))}
	outB := &Volume{Shape: b.Shape, Chunks: b.Chunks, DType: b.DType, Data: make([]uint64, len(b.Data))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, job := range []struct {
		dst []uint64
		src *Packed
	}{{outA.Data, packedA}, {outB.Data, packedB}} {
		dst, src := job.dst, job.src
		for lo := 0; lo < len(dst); lo += remapSpan {
			hi := lo + remapSpan
			if hi > len(dst) {
				hi = len(dst)
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				src.Unpack(dst, table, lo, hi)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, stitch.WrapError(stitch.Cancelled, err)
	}

	histA, histB := UpdateHistories(a.Merges, b.Merges, newEdges)
	timedLog.Infof("matched %d label pairs among %d labels across %s boundary, %d new merges",
		matching.Len(), in.Len()-1, axisName(bd.Direction), len(newEdges))

	return &Reconciliation{
		A:         Block{outA, histA},
		B:         Block{outB, histB},
		NewEdges:  newEdges,
		Matching:  matching,
		Histogram: hist,
		Interner:  in,
		Canonical: cm,
	}, nil
}

func axisName(direction int) string {
	axis, err := stitch.AxisFromDirection(direction)
	if err != nil {
		return "unknown"
	}
	return axis.String()
}
