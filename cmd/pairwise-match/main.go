// Command pairwise-match reconciles the labels of two adjacent blocks and writes
// both remapped blocks.  It exits non-zero unless both outputs verify.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/janelia-flyem/stitch/labels"
	"github.com/janelia-flyem/stitch/pairwise"
	"github.com/janelia-flyem/stitch/stitch"
	"github.com/janelia-flyem/stitch/storage"
)

var (
	showHelp    = flag.Bool("help", false, "")
	runVerbose  = flag.Bool("verbose", false, "")
	configFile  = flag.String("config", "", "")
	mode        = flag.String("mode", "", "")
	compression = flag.String("compression", "", "")
	attempts    = flag.Int("attempts", 0, "")
	metricsFile = flag.String("metrics", "", "")
)

const helpMessage = `
pairwise-match reconciles labels across the shared face of two adjacent blocks

Usage: pairwise-match [options] <block A> <block B> <direction> <halo> <output A> <output B>

  Block A is closer to the origin along direction (1, 2, 3 => X, Y, Z) and halo is
  the number of voxels of true overlap on each side of the boundary.  Paths may be
  local files or gs://, s3://, vast://, file:// URLs.

      -config      =string   TOML configuration file.
      -mode        =string   Matching mode: "thin" (default) or "halo".
      -compression =string   Labels compression: none, snappy, lz4, gzip, zstd.
      -attempts    =number   Pipeline attempts before giving up.
      -metrics     =string   Write Prometheus metrics to this textfile on exit.
      -verbose     (flag)    Run in verbose mode.
  -h, -help        (flag)    Show help message
`

var usage = func() {
	fmt.Print(helpMessage)
}

func loadConfig() (*pairwise.Config, error) {
	cfg, err := pairwise.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	if *mode != "" {
		if cfg.Matching.Mode, err = labels.ParseMatchMode(*mode); err != nil {
			return nil, err
		}
	}
	if *compression != "" {
		if cfg.Output.Compression, err = stitch.ParseCompression(*compression); err != nil {
			return nil, err
		}
	}
	if *attempts != 0 {
		cfg.Retry.Attempts = *attempts
	}
	if *metricsFile != "" {
		cfg.Metrics.Textfile = *metricsFile
	}
	return cfg, cfg.Validate()
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 2
	}
	job, err := pairwise.ParseJob(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	cfg.Logging.SetLogger()
	defer stitch.Shutdown()
	stitch.SetLogPrefix(strings.TrimSuffix(filepath.Base(job.OutA), filepath.Ext(job.OutA)) + "+" +
		strings.TrimSuffix(filepath.Base(job.OutB), filepath.Ext(job.OutB)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.NewRouter()
	defer store.Close()

	var metrics *pairwise.Metrics
	reg := prometheus.NewRegistry()
	if cfg.Metrics.Textfile != "" {
		metrics = pairwise.NewMetrics(reg)
	}

	res, err := pairwise.NewReconciler(store, cfg, metrics).Run(ctx, job)
	if cfg.Metrics.Textfile != "" {
		if err := pairwise.WriteTextfile(cfg.Metrics.Textfile, reg); err != nil {
			stitch.Errorf("Unable to write metrics to %s: %v\n", cfg.Metrics.Textfile, err)
		}
	}
	if err != nil {
		stitch.Criticalf("Reconciliation of %s failed (%s): %v\n", job, stitch.KindOf(err), err)
		return 1
	}
	if res.Skipped {
		stitch.Infof("Outputs already present for %s\n", job)
	} else {
		stitch.Infof("Wrote %s and %s with %d new merges in %s\n", job.OutA, job.OutB, len(res.NewEdges), res.Elapsed)
	}
	return 0
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if flag.NArg() != 6 {
		flag.Usage()
		os.Exit(2)
	}
	if *runVerbose {
		stitch.Verbose = true
		stitch.SetLogMode(stitch.DebugMode)
	}
	os.Exit(run())
}
