/*
	Package schedule plans the pairwise reconciliation of a 3-D grid of blocks.

	Reconciliation runs in six ordered rounds, one even and one odd sub-round per
	axis X, Y, Z.  In the even sub-round along an axis, every block with an even
	index along that axis is paired with its +1 neighbor, and in the odd sub-round
	every block with an odd index.  No block takes part in two pairs of the same
	round, so all pairs of a round can run at once.  The outputs of a round become
	the inputs of the later rounds.
*/
package schedule

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/janelia-flyem/stitch/pairwise"
	"github.com/janelia-flyem/stitch/stitch"
)

// Parity selects the sub-round of an axis.
type Parity uint8

const (
	Even Parity = iota
	Odd
)

func (p Parity) String() string {
	if p == Even {
		return "even"
	}
	return "odd"
}

// Grid maps block grid coordinates to the current path of each block.
type Grid map[stitch.Point3d]string

// Coords returns the grid coordinates in x, then y, then z order.
func (g Grid) Coords() []stitch.Point3d {
	coords := make([]stitch.Point3d, 0, len(g))
	for c := range g {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		for d := 0; d < 3; d++ {
			if a[d] != b[d] {
				return a[d] < b[d]
			}
		}
		return false
	})
	return coords
}

var blockName = regexp.MustCompile(`^(?:fused)?block_(\d+_\d+_\d+)\.[A-Za-z0-9]+$`)

// Discover returns the grid of block files named block_X_Y_Z.<ext> in a directory.
func Discover(dir string) (Grid, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	grid := make(Grid)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := blockName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		coord, err := stitch.StringToPoint3d(m[1], "_")
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, entry.Name())
		if prev, found := grid[coord]; found {
			return nil, fmt.Errorf("block %s has two files: %s and %s", coord, prev, p)
		}
		grid[coord] = p
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("no block files found in %s", dir)
	}
	stitch.Infof("Found %d blocks in %s\n", len(grid), dir)
	return grid, nil
}

// Task is one pairwise job of a round.
type Task struct {
	A, B stitch.Point3d // grid coordinates, B is A's +1 neighbor
	Job  pairwise.Job
}

// Round is a set of tasks with no block in common.
type Round struct {
	Axis   stitch.Axis
	Parity Parity
	Tasks  []Task
}

func (r Round) Name() string {
	return r.Axis.String() + "_" + r.Parity.String()
}

// OutputDir returns the directory receiving the outputs of the round.
func (r Round) OutputDir(root string) string {
	return joinPath(root, "pairwise_matches_"+r.Name())
}

// Schedule is the ordered list of rounds and the path of every block after all
// rounds have run.
type Schedule struct {
	Rounds []Round
	Final  Grid
}

// NumTasks returns the number of pairwise jobs in all rounds.
func (s *Schedule) NumTasks() int {
	var n int
	for _, r := range s.Rounds {
		n += len(r.Tasks)
	}
	return n
}

// OutputDirs returns the output directory of each non-empty round.
func (s *Schedule) OutputDirs() []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, r := range s.Rounds {
		for _, t := range r.Tasks {
			for _, out := range []string{t.Job.OutA, t.Job.OutB} {
				dir := parentDir(out)
				if !seen[dir] {
					seen[dir] = true
					dirs = append(dirs, dir)
				}
			}
		}
	}
	return dirs
}

// Plan builds the six rounds over the grid.  Outputs are written under root in
// one directory per round, keeping each block's file name.  Halo is the halo
// width along each axis.
func Plan(grid Grid, root string, halo [3]int) (*Schedule, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("cannot plan an empty grid")
	}
	current := make(Grid, len(grid))
	for c, p := range grid {
		current[c] = p
	}
	coords := grid.Coords()
	s := new(Schedule)
	for axis := stitch.AxisX; axis <= stitch.AxisZ; axis++ {
		if halo[axis] < 1 {
			return nil, fmt.Errorf("halo along %s must be positive, got %d", axis, halo[axis])
		}
		for _, parity := range []Parity{Even, Odd} {
			round := Round{Axis: axis, Parity: parity}
			outdir := round.OutputDir(root)
			for _, a := range coords {
				if Parity(a[axis]%2) != parity {
					continue
				}
				b := a.Neighbor(axis)
				if _, found := current[b]; !found {
					continue
				}
				job := pairwise.Job{
					BlockA:    current[a],
					BlockB:    current[b],
					Direction: axis.Direction(),
					Halo:      halo[axis],
					OutA:      joinPath(outdir, baseName(grid[a])),
					OutB:      joinPath(outdir, baseName(grid[b])),
				}
				round.Tasks = append(round.Tasks, Task{A: a, B: b, Job: job})
			}
			// Pairs of a round are disjoint, so updating after the round is
			// the same as updating after each pair.
			for _, t := range round.Tasks {
				current[t.A] = t.Job.OutA
				current[t.B] = t.Job.OutB
			}
			s.Rounds = append(s.Rounds, round)
		}
	}
	s.Final = current
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that no block appears twice within a round, that every pair
// is a +1 neighbor along the round's axis starting at the round's parity, and
// that no two tasks write the same output.
func Validate(s *Schedule) error {
	outputs := make(map[string]string)
	for _, r := range s.Rounds {
		busy := make(map[stitch.Point3d]bool)
		for _, t := range r.Tasks {
			if t.A.Neighbor(r.Axis) != t.B {
				return fmt.Errorf("round %s pairs %s with %s which are not neighbors along %s", r.Name(), t.A, t.B, r.Axis)
			}
			if Parity(t.A[r.Axis]%2) != r.Parity {
				return fmt.Errorf("round %s starts a pair at %s of the wrong parity", r.Name(), t.A)
			}
			if t.Job.Direction != r.Axis.Direction() {
				return fmt.Errorf("round %s task %s has direction %d", r.Name(), t.A, t.Job.Direction)
			}
			for _, c := range []stitch.Point3d{t.A, t.B} {
				if busy[c] {
					return fmt.Errorf("block %s is used twice in round %s", c, r.Name())
				}
				busy[c] = true
			}
			for _, out := range []string{t.Job.OutA, t.Job.OutB} {
				if prev, found := outputs[out]; found {
					return fmt.Errorf("output %s written by round %s and round %s", out, prev, r.Name())
				}
				outputs[out] = r.Name()
			}
		}
	}
	return nil
}

// joinPath joins path elements with forward slashes for bucket URLs and with
// the OS separator for local paths.
func joinPath(root, elem string) string {
	if stitch.HasScheme(root) {
		return strings.TrimSuffix(root, "/") + "/" + elem
	}
	return filepath.Join(root, elem)
}

func baseName(p string) string {
	if stitch.HasScheme(p) {
		return path.Base(p)
	}
	return filepath.Base(p)
}

func parentDir(p string) string {
	if stitch.HasScheme(p) {
		return p[:strings.LastIndex(p, "/")]
	}
	return filepath.Dir(p)
}
