/*
	Package blockfile reads and writes the per-block file holding a "labels"
	dataset and an optional "merges" dataset.

	A block file is the magic "LBLK" followed by one msgpack map:

		{"version": "1.0.0", "datasets": {"labels": {...}, "merges": {...}}}

	Each dataset is a map with "shape", "dtype", "data" and, for labels, "chunks".
	Labels data is the little-endian voxel array passed through the stitch
	serializer.  Merges data is N*16 little-endian bytes of (source, target) rows.
*/
package blockfile

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/blang/semver"
	"github.com/tinylib/msgp/msgp"

	"github.com/janelia-flyem/stitch/labels"
	"github.com/janelia-flyem/stitch/stitch"
)

// Magic starts every block file.
const Magic = "LBLK"

// Dataset names.
const (
	LabelsDataset = "labels"
	MergesDataset = "merges"
)

// Version of the block file format written by this package.  Files with a
// different major version are rejected.
var Version = semver.MustParse("1.0.0")

// File is the decoded content of a block file.  Merges is nil if the block has
// never been merged, in which case no merges dataset is written.
type File struct {
	Labels *labels.Volume
	Merges labels.MergeHistory
}

// Block returns the file as a block for reconciliation.
func (f *File) Block() labels.Block {
	return labels.Block{Volume: f.Labels, Merges: f.Merges}
}

// Dataset describes one dataset without its payload.
type Dataset struct {
	Name   string
	Shape  []int
	Chunks []int
	DType  string
	Size   int // bytes of stored payload
}

func (d Dataset) String() string {
	return fmt.Sprintf("%s %v %s (%d bytes)", d.Name, d.Shape, d.DType, d.Size)
}

// Encode serializes a block file, compressing the labels payload.
func Encode(f *File, compress stitch.Compression) ([]byte, error) {
	if f.Labels == nil {
		return nil, fmt.Errorf("block file requires a labels volume")
	}
	raw, err := f.Labels.MarshalBinary()
	if err != nil {
		return nil, err
	}
	payload, err := stitch.SerializeData(raw, compress, stitch.CRC32)
	if err != nil {
		return nil, err
	}
	numDatasets := uint32(1)
	if len(f.Merges) != 0 {
		numDatasets = 2
	}

	b := make([]byte, 0, len(payload)+len(f.Merges)*16+256)
	b = append(b, Magic...)
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "version")
	b = msgp.AppendString(b, Version.String())
	b = msgp.AppendString(b, "datasets")
	b = msgp.AppendMapHeader(b, numDatasets)

	v := f.Labels
	b = msgp.AppendString(b, LabelsDataset)
	b = msgp.AppendMapHeader(b, 4)
	b = appendInts(msgp.AppendString(b, "shape"), v.Shape[:])
	b = appendInts(msgp.AppendString(b, "chunks"), v.Chunks[:])
	b = msgp.AppendString(msgp.AppendString(b, "dtype"), v.DType.String())
	b = msgp.AppendBytes(msgp.AppendString(b, "data"), payload)

	if len(f.Merges) != 0 {
		b = msgp.AppendString(b, MergesDataset)
		b = msgp.AppendMapHeader(b, 3)
		b = appendInts(msgp.AppendString(b, "shape"), []int{len(f.Merges), 2})
		b = msgp.AppendString(msgp.AppendString(b, "dtype"), labels.Uint64.String())
		b = msgp.AppendBytes(msgp.AppendString(b, "data"), encodeMerges(f.Merges))
	}
	return b, nil
}

func appendInts(b []byte, vals []int) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(vals)))
	for _, v := range vals {
		b = msgp.AppendInt(b, v)
	}
	return b
}

func encodeMerges(h labels.MergeHistory) []byte {
	buf := make([]byte, len(h)*16)
	for i, e := range h {
		binary.LittleEndian.PutUint64(buf[i*16:], e.Source)
		binary.LittleEndian.PutUint64(buf[i*16+8:], e.Target)
	}
	return buf
}

func decodeMerges(buf []byte) (labels.MergeHistory, error) {
	if len(buf)%16 != 0 {
		return nil, fmt.Errorf("merges payload of %d bytes is not a whole number of rows", len(buf))
	}
	h := make(labels.MergeHistory, len(buf)/16)
	for i := range h {
		h[i].Source = binary.LittleEndian.Uint64(buf[i*16:])
		h[i].Target = binary.LittleEndian.Uint64(buf[i*16+8:])
	}
	return h, nil
}

// header walks the container, calling fn with each dataset description and its
// undecoded payload.
func header(data []byte, fn func(d Dataset, payload []byte) error) error {
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return fmt.Errorf("not a block file: bad magic")
	}
	b := data[len(Magic):]
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return err
	}
	var sawVersion bool
	for i := uint32(0); i < sz; i++ {
		var field string
		if field, b, err = msgp.ReadStringBytes(b); err != nil {
			return err
		}
		switch field {
		case "version":
			var s string
			if s, b, err = msgp.ReadStringBytes(b); err != nil {
				return err
			}
			ver, err := semver.Parse(s)
			if err != nil {
				return fmt.Errorf("bad block file version %q: %v", s, err)
			}
			if ver.Major != Version.Major {
				return fmt.Errorf("block file version %s is incompatible with %s", ver, Version)
			}
			sawVersion = true
		case "datasets":
			if !sawVersion {
				return fmt.Errorf("block file datasets precede version")
			}
			var n uint32
			if n, b, err = msgp.ReadMapHeaderBytes(b); err != nil {
				return err
			}
			for j := uint32(0); j < n; j++ {
				var d Dataset
				var payload []byte
				if d.Name, b, err = msgp.ReadStringBytes(b); err != nil {
					return err
				}
				if d, payload, b, err = readDataset(d, b); err != nil {
					return fmt.Errorf("dataset %q: %v", d.Name, err)
				}
				if err := fn(d, payload); err != nil {
					return err
				}
			}
		default:
			if b, err = msgp.Skip(b); err != nil {
				return err
			}
		}
	}
	if !sawVersion {
		return fmt.Errorf("block file has no version")
	}
	return nil
}

func readDataset(d Dataset, b []byte) (Dataset, []byte, []byte, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return d, nil, b, err
	}
	var payload []byte
	for i := uint32(0); i < sz; i++ {
		var field string
		if field, b, err = msgp.ReadStringBytes(b); err != nil {
			return d, nil, b, err
		}
		switch field {
		case "shape":
			d.Shape, b, err = readInts(b)
		case "chunks":
			d.Chunks, b, err = readInts(b)
		case "dtype":
			d.DType, b, err = msgp.ReadStringBytes(b)
		case "data":
			payload, b, err = msgp.ReadBytesZC(b)
			d.Size = len(payload)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return d, nil, b, err
		}
	}
	return d, payload, b, nil
}

func readInts(b []byte) ([]int, []byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	vals := make([]int, n)
	for i := range vals {
		if vals[i], b, err = msgp.ReadIntBytes(b); err != nil {
			return nil, b, err
		}
	}
	return vals, b, nil
}

// Inspect returns the datasets of a block file, sorted by name, without
// decompressing any payload.
func Inspect(data []byte) ([]Dataset, error) {
	var datasets []Dataset
	err := header(data, func(d Dataset, payload []byte) error {
		datasets = append(datasets, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Name < datasets[j].Name })
	return datasets, nil
}

// DatasetNames returns the sorted top-level dataset names of a block file.
func DatasetNames(data []byte) ([]string, error) {
	datasets, err := Inspect(data)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(datasets))
	for i, d := range datasets {
		names[i] = d.Name
	}
	return names, nil
}

func toShape3(vals []int) ([3]int, error) {
	var shape [3]int
	if len(vals) != 3 {
		return shape, fmt.Errorf("expected 3 dimensions, got %v", vals)
	}
	for i, v := range vals {
		if v < 0 {
			return shape, fmt.Errorf("negative extent in %v", vals)
		}
		shape[i] = v
	}
	return shape, nil
}

// Decode parses a block file.
func Decode(data []byte) (*File, error) {
	f := new(File)
	err := header(data, func(d Dataset, payload []byte) error {
		switch d.Name {
		case LabelsDataset:
			if f.Labels != nil {
				return fmt.Errorf("duplicate %q dataset", d.Name)
			}
			v, err := decodeLabels(d, payload)
			if err != nil {
				return err
			}
			f.Labels = v
		case MergesDataset:
			if err := checkMergesShape(d); err != nil {
				return err
			}
			h, err := decodeMerges(payload)
			if err != nil {
				return err
			}
			if len(h) != d.Shape[0] {
				return fmt.Errorf("merges declares %d rows but holds %d", d.Shape[0], len(h))
			}
			if len(h) != 0 {
				f.Merges = h
			}
		default:
			stitch.Debugf("ignoring unknown dataset %s\n", d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if f.Labels == nil {
		return nil, fmt.Errorf("block file has no %q dataset", LabelsDataset)
	}
	return f, nil
}

func decodeLabels(d Dataset, payload []byte) (*labels.Volume, error) {
	shape, err := toShape3(d.Shape)
	if err != nil {
		return nil, fmt.Errorf("labels shape: %v", err)
	}
	dtype, err := labels.ParseDataType(d.DType)
	if err != nil {
		return nil, err
	}
	v := &labels.Volume{Shape: shape, Chunks: shape, DType: dtype}
	if d.Chunks != nil {
		if v.Chunks, err = toShape3(d.Chunks); err != nil {
			return nil, fmt.Errorf("labels chunks: %v", err)
		}
	}
	raw, _, err := stitch.DeserializeData(payload)
	if err != nil {
		return nil, err
	}
	if err := v.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return v, nil
}

func checkMergesShape(d Dataset) error {
	if len(d.Shape) != 2 || d.Shape[1] != 2 || d.Shape[0] < 0 {
		return fmt.Errorf("merges dataset must be N x 2, got shape %v", d.Shape)
	}
	if d.DType != labels.Uint64.String() {
		return fmt.Errorf("merges dataset must be %s, got %q", labels.Uint64, d.DType)
	}
	if d.Size != d.Shape[0]*16 {
		return fmt.Errorf("merges dataset of shape %v holds %d bytes", d.Shape, d.Size)
	}
	return nil
}
