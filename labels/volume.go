package labels

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DataType is the stored integer width of a label array.
type DataType uint8

const (
	Uint8 DataType = iota + 1
	Uint16
	Uint32
	Uint64
)

func (t DataType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(t))
	}
}

// ParseDataType returns the DataType for names like "uint32".
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "uint8":
		return Uint8, nil
	case "uint16":
		return Uint16, nil
	case "uint32":
		return Uint32, nil
	case "uint64":
		return Uint64, nil
	}
	return 0, fmt.Errorf("unsupported label data type %q", s)
}

// BytesPerVoxel returns the stored width of one voxel.
func (t DataType) BytesPerVoxel() int {
	switch t {
	case Uint8:
		return 1
	case Uint16:
		return 2
	case Uint32:
		return 4
	case Uint64:
		return 8
	}
	return 0
}

// MaxLabel is the largest label representable by the type.
func (t DataType) MaxLabel() uint64 {
	switch t {
	case Uint8:
		return 1<<8 - 1
	case Uint16:
		return 1<<16 - 1
	case Uint32:
		return 1<<32 - 1
	}
	return 1<<64 - 1
}

// Volume is a dense 3-D label array in row-major order, i.e., the last axis
// varies fastest.  Chunks is layout metadata that is carried through unchanged.
type Volume struct {
	Shape  [3]int
	Chunks [3]int
	DType  DataType
	Data   []uint64
}

// NewVolume returns a zeroed volume.
func NewVolume(shape [3]int, dtype DataType) *Volume {
	return &Volume{
		Shape:  shape,
		Chunks: shape,
		DType:  dtype,
		Data:   make([]uint64, shape[0]*shape[1]*shape[2]),
	}
}

func (v *Volume) String() string {
	return fmt.Sprintf("%s volume %dx%dx%d", v.DType, v.Shape[0], v.Shape[1], v.Shape[2])
}

// NumVoxels returns the number of voxels in the volume.
func (v *Volume) NumVoxels() int {
	return v.Shape[0] * v.Shape[1] * v.Shape[2]
}

func (v *Volume) offset(i0, i1, i2 int) int {
	return (i0*v.Shape[1]+i1)*v.Shape[2] + i2
}

// Value returns the label at the given array position.
func (v *Volume) Value(i0, i1, i2 int) uint64 {
	return v.Data[v.offset(i0, i1, i2)]
}

// Set sets the label at the given array position.
func (v *Volume) Set(i0, i1, i2 int, label uint64) {
	v.Data[v.offset(i0, i1, i2)] = label
}

// Fill sets every voxel within [lo, hi) to the label.
func (v *Volume) Fill(lo, hi [3]int, label uint64) {
	for i0 := lo[0]; i0 < hi[0]; i0++ {
		for i1 := lo[1]; i1 < hi[1]; i1++ {
			for i2 := lo[2]; i2 < hi[2]; i2++ {
				v.Data[v.offset(i0, i1, i2)] = label
			}
		}
	}
}

// Counts returns the number of voxels per label.
func (v *Volume) Counts() map[uint64]uint64 {
	counts := make(map[uint64]uint64)
	var last uint64
	var run uint64
	for i, label := range v.Data {
		if i != 0 && label != last {
			counts[last] += run
			run = 0
		}
		last = label
		run++
	}
	if run != 0 {
		counts[last] += run
	}
	return counts
}

// MarshalBinary returns the little-endian voxel bytes at the volume's data type width.
func (v *Volume) MarshalBinary() ([]byte, error) {
	width := v.DType.BytesPerVoxel()
	if width == 0 {
		return nil, fmt.Errorf("cannot serialize volume with data type %s", v.DType)
	}
	max := v.DType.MaxLabel()
	buf := make([]byte, len(v.Data)*width)
	for i, label := range v.Data {
		if label > max {
			return nil, fmt.Errorf("label %d at voxel %d exceeds %s range", label, i, v.DType)
		}
		pos := i * width
		switch v.DType {
		case Uint8:
			buf[pos] = uint8(label)
		case Uint16:
			binary.LittleEndian.PutUint16(buf[pos:], uint16(label))
		case Uint32:
			binary.LittleEndian.PutUint32(buf[pos:], uint32(label))
		case Uint64:
			binary.LittleEndian.PutUint64(buf[pos:], label)
		}
	}
	return buf, nil
}

// UnmarshalBinary fills Data from little-endian bytes.  Shape and DType must already be set.
func (v *Volume) UnmarshalBinary(b []byte) error {
	width := v.DType.BytesPerVoxel()
	if width == 0 {
		return fmt.Errorf("cannot deserialize volume with data type %s", v.DType)
	}
	n := v.NumVoxels()
	if len(b) != n*width {
		return fmt.Errorf("expected %d bytes for %s, got %d", n*width, v, len(b))
	}
	v.Data = make([]uint64, n)
	for i := range v.Data {
		pos := i * width
		switch v.DType {
		case Uint8:
			v.Data[i] = uint64(b[pos])
		case Uint16:
			v.Data[i] = uint64(binary.LittleEndian.Uint16(b[pos:]))
		case Uint32:
			v.Data[i] = uint64(binary.LittleEndian.Uint32(b[pos:]))
		case Uint64:
			v.Data[i] = binary.LittleEndian.Uint64(b[pos:])
		}
	}
	return nil
}
