// Command stitch-plan plans the even/odd pairwise rounds over a directory of
// blocks and either lists the jobs for an external scheduler or runs them.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/janelia-flyem/stitch/pairwise"
	"github.com/janelia-flyem/stitch/schedule"
	"github.com/janelia-flyem/stitch/stitch"
	"github.com/janelia-flyem/stitch/storage"
)

var (
	showHelp   = flag.Bool("help", false, "")
	runVerbose = flag.Bool("verbose", false, "")
	configFile = flag.String("config", "", "")
	outputRoot = flag.String("output", "", "")
	jobsFile   = flag.String("jobs", "-", "")
	runJobs    = flag.Bool("run", false, "")
	workers    = flag.Int("workers", 0, "")
	halo       = flag.String("halo", "", "")
)

const helpMessage = `
stitch-plan schedules pairwise reconciliation over a grid of blocks

Usage: stitch-plan [options] <block directory>

  Blocks are files named block_<x>_<y>_<z>.<ext>.  Outputs of each round go to
  <output>/pairwise_matches_<axis>_<even|odd>/ with the block's file name.

      -config   =string   TOML configuration file.
      -output   =string   Root directory for round outputs (default: [schedule] output_root or ".").
      -jobs     =string   Write the job list to this file, "-" for stdout (default).
      -run      (flag)    Run all rounds in this process instead of only listing them.
      -workers  =number   Concurrent jobs per round when running (default: number of CPUs).
      -halo     =string   Halo per axis as "x,y,z" (default 64,64,6).
      -verbose  (flag)    Run in verbose mode.
  -h, -help     (flag)    Show help message
`

var usage = func() {
	fmt.Print(helpMessage)
}

func loadConfig() (*pairwise.Config, error) {
	cfg, err := pairwise.LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	if *outputRoot != "" {
		cfg.Schedule.OutputRoot = *outputRoot
	}
	if cfg.Schedule.OutputRoot == "" {
		cfg.Schedule.OutputRoot = "."
	}
	if *workers != 0 {
		cfg.Schedule.Workers = *workers
	}
	if *halo != "" {
		pt, err := stitch.StringToPoint3d(*halo, ",")
		if err != nil {
			return nil, err
		}
		cfg.Schedule.Halo = [3]int{int(pt[0]), int(pt[1]), int(pt[2])}
	}
	return cfg, cfg.Validate()
}

func writeJobs(s *schedule.Schedule) error {
	var w io.Writer = os.Stdout
	if *jobsFile != "-" {
		f, err := os.Create(*jobsFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return schedule.WriteJobs(w, s)
}

func run(dir string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 2
	}
	cfg.Logging.SetLogger()
	defer stitch.Shutdown()

	grid, err := schedule.Discover(dir)
	if err != nil {
		stitch.Criticalf("%v\n", err)
		return 1
	}
	s, err := schedule.Plan(grid, cfg.Schedule.OutputRoot, cfg.Schedule.Halo)
	if err != nil {
		stitch.Criticalf("Unable to plan rounds: %v\n", err)
		return 1
	}
	stitch.Infof("Planned %d pairs over %d blocks\n", s.NumTasks(), len(grid))

	if !*runJobs {
		for _, d := range s.OutputDirs() {
			if stitch.HasScheme(d) {
				continue
			}
			if err := os.MkdirAll(d, 0755); err != nil {
				stitch.Criticalf("Unable to create output directory %s: %v\n", d, err)
				return 1
			}
		}
		if err := writeJobs(s); err != nil {
			stitch.Criticalf("Unable to write job list: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	store := storage.NewRouter()
	defer store.Close()

	reg := prometheus.NewRegistry()
	metrics := pairwise.NewMetrics(reg)
	err = schedule.Run(ctx, s, pairwise.NewReconciler(store, cfg, metrics), cfg.Schedule.Workers)
	if cfg.Metrics.Textfile != "" {
		if err := pairwise.WriteTextfile(cfg.Metrics.Textfile, reg); err != nil {
			stitch.Errorf("Unable to write metrics to %s: %v\n", cfg.Metrics.Textfile, err)
		}
	}
	if err != nil {
		stitch.Criticalf("Stitching failed: %v\n", err)
		return 1
	}
	if *jobsFile != "-" {
		if err := writeJobs(s); err != nil {
			stitch.Errorf("Unable to write job list: %v\n", err)
		}
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
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *runVerbose {
		stitch.Verbose = true
		stitch.SetLogMode(stitch.DebugMode)
	}
	os.Exit(run(flag.Arg(0)))
}
