package pairwise

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/stitch/blockfile"
	"github.com/janelia-flyem/stitch/stitch"
	"github.com/janelia-flyem/stitch/storage"
)

// WritePair stores both block files as temporary files and only then renames
// them, A before B, onto their destinations.  A failure before the renames
// leaves both destinations untouched.
func WritePair(ctx context.Context, store storage.Store, out OutputConfig, pathA string, a *blockfile.File, pathB string, b *blockfile.File) error {
	files := []struct {
		path string
		f    *blockfile.File
		data []byte
	}{
		{path: pathA, f: a},
		{path: pathB, f: b},
	}
	for i := range files {
		data, err := blockfile.Encode(files[i].f, out.Compression)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", files[i].path, err)
		}
		files[i].data = data
	}

	var written []string
	cleanup := func() {
		for _, tmp := range written {
			if err := store.Remove(context.Background(), tmp); err != nil {
				stitch.Warningf("unable to remove temporary file %s: %v\n", tmp, err)
			}
		}
	}
	for _, file := range files {
		tmp := file.path + out.PartialSuffix
		if err := store.WriteFile(ctx, tmp, file.data); err != nil {
			cleanup()
			return stitch.WrapError(stitch.TransientIO, fmt.Errorf("writing %s: %w", tmp, err))
		}
		written = append(written, tmp)
		stitch.Debugf("wrote %d bytes to %s\n", len(file.data), tmp)
	}
	for i, file := range files {
		tmp := file.path + out.PartialSuffix
		if err := store.Rename(ctx, tmp, file.path); err != nil {
			written = written[i:]
			cleanup()
			return stitch.WrapError(stitch.TransientIO, fmt.Errorf("renaming %s to %s: %w", tmp, file.path, err))
		}
	}
	return nil
}
