package labels

import (
	"fmt"
	"math"
)

// BackgroundID is the dense id reserved for label 0.
const BackgroundID uint32 = 0

// Interner maps raw labels, which may be arbitrarily large, onto a small dense
// alphabet so counting never allocates in proportion to the raw label universe.
// Ids are handed out in first-seen order; label 0 always has BackgroundID.
// An Interner belongs to one reconciliation and is never persisted.
type Interner struct {
	ids    map[uint64]uint32
	labels []uint64
}

// NewInterner returns an Interner that only knows the background label.
func NewInterner() *Interner {
	return &Interner{
		ids:    map[uint64]uint32{0: BackgroundID},
		labels: []uint64{0},
	}
}

// Intern returns the dense id for the label, assigning the next id if unseen.
func (in *Interner) Intern(label uint64) uint32 {
	id, found := in.ids[label]
	if !found {
		id = uint32(len(in.labels))
		in.ids[label] = id
		in.labels = append(in.labels, label)
	}
	return id
}

// Lookup returns the dense id for a label seen previously.
func (in *Interner) Lookup(label uint64) (uint32, bool) {
	id, found := in.ids[label]
	return id, found
}

// Label returns the raw label for a dense id.
func (in *Interner) Label(id uint32) uint64 {
	return in.labels[id]
}

// Len returns the number of dense ids, including background.
func (in *Interner) Len() int {
	return len(in.labels)
}

// Packed is a volume whose labels are replaced by dense ids.
type Packed struct {
	Shape [3]int
	IDs   []uint32
}

// Pack interns every voxel of the volume in row-major order.
func (in *Interner) Pack(v *Volume) (*Packed, error) {
	p := &Packed{Shape: v.Shape, IDs: make([]uint32, len(v.Data))}
	var last uint64
	var lastID uint32 = BackgroundID
	for i, label := range v.Data {
		if label != last {
			if len(in.labels) == math.MaxUint32 {
				return nil, fmt.Errorf("too many distinct labels to intern %s", v)
			}
			lastID = in.Intern(label)
			last = label
		}
		p.IDs[i] = lastID
	}
	return p, nil
}

// Unpack writes table[id] for every id in [lo, hi) of the packed voxels into dst.
// The table must cover every id in the Interner that packed p.
func (p *Packed) Unpack(dst []uint64, table []uint64, lo, hi int) {
	for i := lo; i < hi; i++ {
		dst[i] = table[p.IDs[i]]
	}
}
