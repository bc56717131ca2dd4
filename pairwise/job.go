package pairwise

import (
	"fmt"
	"strconv"

	"github.com/janelia-flyem/stitch/stitch"
)

// Job is one reconciliation of adjacent blocks A and B.  Block A is the block
// closer to the origin along the 1-based Direction.
type Job struct {
	BlockA, BlockB string
	Direction      int
	Halo           int
	OutA, OutB     string
}

func (j Job) String() string {
	return fmt.Sprintf("%s + %s along %s (halo %d) -> %s, %s",
		j.BlockA, j.BlockB, axisName(j.Direction), j.Halo, j.OutA, j.OutB)
}

// Args returns the positional arguments of the job, the inverse of ParseJob.
func (j Job) Args() []string {
	return []string{j.BlockA, j.BlockB, strconv.Itoa(j.Direction), strconv.Itoa(j.Halo), j.OutA, j.OutB}
}

// ParseJob reads the positional form: blockA blockB direction halo outA outB.
func ParseJob(args []string) (Job, error) {
	var j Job
	if len(args) != 6 {
		return j, fmt.Errorf("expected 6 arguments (blockA blockB direction halo outA outB), got %d", len(args))
	}
	j.BlockA, j.BlockB, j.OutA, j.OutB = args[0], args[1], args[4], args[5]
	var err error
	if j.Direction, err = strconv.Atoi(args[2]); err != nil {
		return j, fmt.Errorf("bad direction %q: %v", args[2], err)
	}
	if j.Halo, err = strconv.Atoi(args[3]); err != nil {
		return j, fmt.Errorf("bad halo %q: %v", args[3], err)
	}
	return j, j.Validate()
}

// Validate checks the job before any block is read.
func (j Job) Validate() error {
	if _, err := stitch.AxisFromDirection(j.Direction); err != nil {
		return err
	}
	if j.Halo < 1 {
		return fmt.Errorf("halo must be positive, got %d", j.Halo)
	}
	for _, p := range []string{j.BlockA, j.BlockB, j.OutA, j.OutB} {
		if p == "" {
			return fmt.Errorf("job has an empty path: %v", j.Args())
		}
	}
	if j.OutA == j.OutB {
		return fmt.Errorf("both outputs go to %s", j.OutA)
	}
	for _, out := range []string{j.OutA, j.OutB} {
		if out == j.BlockA || out == j.BlockB {
			return fmt.Errorf("output %s would overwrite an input block", out)
		}
	}
	return nil
}

func axisName(direction int) string {
	axis, err := stitch.AxisFromDirection(direction)
	if err != nil {
		return fmt.Sprintf("direction %d", direction)
	}
	return axis.String()
}
