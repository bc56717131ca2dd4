// Command block-info displays the datasets, label areas and merge history of
// block files.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/stitch/blockfile"
	"github.com/janelia-flyem/stitch/stitch"
	"github.com/janelia-flyem/stitch/storage"
)

const helpMessage = `
block-info displays information on block files

Usage: block-info [options] <block file> ...

      -labels  =number   Show voxel counts of the N largest labels, 0 for all (default 20).
      -merges  (flag)    List every merge edge.
      -verbose (flag)    Run in verbose mode.
  -h, -help    (flag)    Show help message
`

var (
	showHelp   = flag.Bool("help", false, "Show help message")
	runVerbose = flag.Bool("verbose", false, "Run in verbose mode")
	showMerges = flag.Bool("merges", false, "List every merge edge")
	numLabels  = flag.Int("labels", 20, "Number of largest labels to show")
)

var usage = func() {
	fmt.Print(helpMessage)
}

func show(ctx context.Context, store storage.Store, path string) error {
	data, err := store.ReadFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", path, humanize.Bytes(uint64(len(data))))
	datasets, err := blockfile.Inspect(data)
	if err != nil {
		return err
	}
	for _, d := range datasets {
		fmt.Printf("  dataset %-8s shape %v chunks %v dtype %s, %s stored\n",
			d.Name, d.Shape, d.Chunks, d.DType, humanize.Bytes(uint64(d.Size)))
	}
	if err := blockfile.Verify(data); err != nil {
		fmt.Printf("  INVALID: %v\n", err)
		return nil
	}
	f, err := blockfile.Decode(data)
	if err != nil {
		return err
	}

	counts := f.Labels.Counts()
	type labelCount struct {
		label, count uint64
	}
	sorted := make([]labelCount, 0, len(counts))
	for label, count := range counts {
		sorted = append(sorted, labelCount{label, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].label < sorted[j].label
	})
	fmt.Printf("  %s labels over %s voxels\n", humanize.Comma(int64(len(counts))), humanize.Comma(int64(f.Labels.NumVoxels())))
	for i, lc := range sorted {
		if *numLabels > 0 && i >= *numLabels {
			fmt.Printf("  ... %d more labels\n", len(sorted)-i)
			break
		}
		fmt.Printf("  Label %10d: %s voxels\n", lc.label, humanize.Comma(int64(lc.count)))
	}

	fmt.Printf("  %d merges in history\n", len(f.Merges))
	if *showMerges {
		for _, e := range f.Merges {
			fmt.Printf("    %d -> %d\n", e.Source, e.Target)
		}
	}
	return nil
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 || *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *runVerbose {
		stitch.SetLogMode(stitch.DebugMode)
	}

	store := storage.NewRouter()
	defer store.Close()
	var failed bool
	for _, path := range flag.Args() {
		if err := show(context.Background(), store, path); err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		store.Close()
		os.Exit(1)
	}
}
