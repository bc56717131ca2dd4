package blockfile

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/stitch/labels"
	"github.com/janelia-flyem/stitch/stitch"
	"github.com/janelia-flyem/stitch/storage"
)

// Verify checks that a block file holds exactly the datasets {labels} or
// {labels, merges}, with a 3-D labels array of a known data type and an N x 2
// uint64 merges array.  Payloads are not decompressed.
func Verify(data []byte) error {
	datasets, err := Inspect(data)
	if err != nil {
		return stitch.WrapError(stitch.VerificationFailure, err)
	}
	seen := make(map[string]bool, len(datasets))
	for _, d := range datasets {
		if seen[d.Name] {
			return stitch.NewError(stitch.VerificationFailure, "duplicate %q dataset", d.Name)
		}
		seen[d.Name] = true
		switch d.Name {
		case LabelsDataset:
			if _, err := toShape3(d.Shape); err != nil {
				return stitch.NewError(stitch.VerificationFailure, "labels shape: %v", err)
			}
			if _, err := labels.ParseDataType(d.DType); err != nil {
				return stitch.WrapError(stitch.VerificationFailure, err)
			}
		case MergesDataset:
			if err := checkMergesShape(d); err != nil {
				return stitch.WrapError(stitch.VerificationFailure, err)
			}
		default:
			return stitch.NewError(stitch.VerificationFailure, "unexpected dataset %q", d.Name)
		}
	}
	if !seen[LabelsDataset] {
		return stitch.NewError(stitch.VerificationFailure, "no %q dataset", LabelsDataset)
	}
	return nil
}

// VerifyFile returns true if the path holds a valid block file.  A file that
// exists but fails verification is deleted and reported as absent.  Errors are
// only returned when the store itself fails.
func VerifyFile(ctx context.Context, store storage.Store, path string) (bool, error) {
	exists, err := store.Exists(ctx, path)
	if err != nil {
		return false, stitch.WrapError(stitch.TransientIO, err)
	}
	if !exists {
		return false, nil
	}
	data, err := store.ReadFile(ctx, path)
	if storage.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, stitch.WrapError(stitch.TransientIO, err)
	}
	if err := Verify(data); err != nil {
		stitch.Warningf("Removing invalid block file %s: %v\n", path, err)
		if err := store.Remove(ctx, path); err != nil {
			return false, stitch.WrapError(stitch.TransientIO, err)
		}
		return false, nil
	}
	return true, nil
}

// ReadFile reads and decodes a block file.
func ReadFile(ctx context.Context, store storage.Store, path string) (*File, error) {
	data, err := store.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return f, nil
}

// WriteFile encodes and stores a block file.
func WriteFile(ctx context.Context, store storage.Store, path string, f *File, compress stitch.Compression) error {
	data, err := Encode(f, compress)
	if err != nil {
		return err
	}
	return store.WriteFile(ctx, path, data)
}
