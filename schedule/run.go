package schedule

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/stitch/pairwise"
	"github.com/janelia-flyem/stitch/stitch"
)

// Runner executes one pairwise job.  *pairwise.Reconciler is a Runner.
type Runner interface {
	Run(ctx context.Context, job pairwise.Job) (*pairwise.Result, error)
}

// Run executes the rounds in order.  Tasks within a round run concurrently on
// up to workers goroutines, or GOMAXPROCS if workers is zero.  The first failed
// task cancels its round and stops the schedule.
func Run(ctx context.Context, s *Schedule, runner Runner, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	for _, round := range s.Rounds {
		if len(round.Tasks) == 0 {
			continue
		}
		timedLog := stitch.NewTimeLog()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, task := range round.Tasks {
			job := task.Job
			g.Go(func() error {
				if _, err := runner.Run(gctx, job); err != nil {
					return fmt.Errorf("job %s: %w", job, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("round %s: %w", round.Name(), err)
		}
		timedLog.Infof("Finished round %s with %d pairs", round.Name(), len(round.Tasks))
	}
	return nil
}

func quoteArg(arg string) string {
	if arg == "" || strings.ContainsAny(arg, " \t\n\"'\\") {
		return strconv.Quote(arg)
	}
	return arg
}

// WriteJobs writes every pairwise job as a line of positional arguments
//
//	blockA blockB direction halo outA outB
//
// grouped under a "# round <axis>_<parity>" comment, followed by a "# final"
// section listing the last path of each block.  Each round must finish before
// the next round starts.
func WriteJobs(w io.Writer, s *Schedule) error {
	bw := bufio.NewWriter(w)
	for _, round := range s.Rounds {
		if len(round.Tasks) == 0 {
			continue
		}
		fmt.Fprintf(bw, "# round %s\n", round.Name())
		for _, task := range round.Tasks {
			args := task.Job.Args()
			for i := range args {
				args[i] = quoteArg(args[i])
			}
			fmt.Fprintln(bw, strings.Join(args, " "))
		}
	}
	fmt.Fprintln(bw, "# final")
	for _, c := range s.Final.Coords() {
		fmt.Fprintln(bw, quoteArg(s.Final[c]))
	}
	return bw.Flush()
}
