package schedule

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/janelia-flyem/stitch/blockfile"
	"github.com/janelia-flyem/stitch/labels"
	"github.com/janelia-flyem/stitch/pairwise"
	"github.com/janelia-flyem/stitch/stitch"
	"github.com/janelia-flyem/stitch/storage"
)

func makeGrid(nx, ny, nz int) Grid {
	g := make(Grid)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				c := stitch.Point3d{int32(x), int32(y), int32(z)}
				g[c] = filepath.Join("/in", "block_"+strings.Join([]string{itoa(x), itoa(y), itoa(z)}, "_")+".lblk")
			}
		}
	}
	return g
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func TestPlanRow(t *testing.T) {
	s, err := Plan(makeGrid(3, 1, 1), "/work", [3]int{64, 64, 6})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Rounds) != 6 {
		t.Fatalf("expected 6 rounds, got %d\n", len(s.Rounds))
	}
	names := []string{"X_even", "X_odd", "Y_even", "Y_odd", "Z_even", "Z_odd"}
	for i, r := range s.Rounds {
		if r.Name() != names[i] {
			t.Errorf("round %d expected %s, got %s\n", i, names[i], r.Name())
		}
	}
	even, odd := s.Rounds[0], s.Rounds[1]
	if len(even.Tasks) != 1 || len(odd.Tasks) != 1 || s.NumTasks() != 2 {
		t.Fatalf("expected one pair in each X round, got %d and %d of %d\n", len(even.Tasks), len(odd.Tasks), s.NumTasks())
	}
	expected := pairwise.Job{
		BlockA:    "/in/block_0_0_0.lblk",
		BlockB:    "/in/block_1_0_0.lblk",
		Direction: 1,
		Halo:      64,
		OutA:      "/work/pairwise_matches_X_even/block_0_0_0.lblk",
		OutB:      "/work/pairwise_matches_X_even/block_1_0_0.lblk",
	}
	if even.Tasks[0].Job != expected {
		t.Errorf("expected even job %+v, got %+v\n", expected, even.Tasks[0].Job)
	}
	expected = pairwise.Job{
		BlockA:    "/work/pairwise_matches_X_even/block_1_0_0.lblk",
		BlockB:    "/in/block_2_0_0.lblk",
		Direction: 1,
		Halo:      64,
		OutA:      "/work/pairwise_matches_X_odd/block_1_0_0.lblk",
		OutB:      "/work/pairwise_matches_X_odd/block_2_0_0.lblk",
	}
	if odd.Tasks[0].Job != expected {
		t.Errorf("expected odd job %+v, got %+v\n", expected, odd.Tasks[0].Job)
	}
	final := map[stitch.Point3d]string{
		{0, 0, 0}: "/work/pairwise_matches_X_even/block_0_0_0.lblk",
		{1, 0, 0}: "/work/pairwise_matches_X_odd/block_1_0_0.lblk",
		{2, 0, 0}: "/work/pairwise_matches_X_odd/block_2_0_0.lblk",
	}
	for c, p := range final {
		if s.Final[c] != p {
			t.Errorf("final path of %s expected %s, got %s\n", c, p, s.Final[c])
		}
	}
}

func TestPlanCube(t *testing.T) {
	s, err := Plan(makeGrid(2, 2, 2), "/work", [3]int{64, 64, 6})
	if err != nil {
		t.Fatal(err)
	}
	if s.NumTasks() != 12 {
		t.Errorf("expected 12 pairs, got %d\n", s.NumTasks())
	}
	for _, r := range s.Rounds {
		if r.Parity == Odd && len(r.Tasks) != 0 {
			t.Errorf("odd round %s should be empty for 2 blocks per axis\n", r.Name())
		}
		for _, task := range r.Tasks {
			expectedHalo := 64
			if r.Axis == stitch.AxisZ {
				expectedHalo = 6
			}
			if task.Job.Halo != expectedHalo {
				t.Errorf("round %s uses halo %d\n", r.Name(), task.Job.Halo)
			}
		}
	}
	for c, p := range s.Final {
		if filepath.Dir(p) != "/work/pairwise_matches_Z_even" {
			t.Errorf("block %s should end in the Z even round, got %s\n", c, p)
		}
	}
	if dirs := s.OutputDirs(); len(dirs) != 3 {
		t.Errorf("expected 3 output dirs, got %v\n", dirs)
	}
}

func TestPlanBucketRoot(t *testing.T) {
	grid := Grid{
		{0, 0, 0}: "gs://bucket/in/block_0_0_0.lblk",
		{0, 0, 1}: "gs://bucket/in/block_0_0_1.lblk",
	}
	s, err := Plan(grid, "gs://bucket/work/", [3]int{64, 64, 6})
	if err != nil {
		t.Fatal(err)
	}
	job := s.Rounds[4].Tasks[0].Job
	if job.OutB != "gs://bucket/work/pairwise_matches_Z_even/block_0_0_1.lblk" || job.Direction != 3 || job.Halo != 6 {
		t.Errorf("bad bucket job %+v\n", job)
	}
	if dirs := s.OutputDirs(); len(dirs) != 1 || dirs[0] != "gs://bucket/work/pairwise_matches_Z_even" {
		t.Errorf("bad output dirs %v\n", dirs)
	}
}

func TestValidate(t *testing.T) {
	s, err := Plan(makeGrid(4, 1, 1), "/work", [3]int{64, 64, 6})
	if err != nil {
		t.Fatal(err)
	}
	even := &s.Rounds[0]
	if len(even.Tasks) != 2 {
		t.Fatalf("expected 2 even pairs, got %d\n", len(even.Tasks))
	}
	// Overlapping pair (1,2) within the even round.
	bad := *s
	bad.Rounds = append([]Round(nil), s.Rounds...)
	badTask := even.Tasks[0]
	badTask.A, badTask.B = stitch.Point3d{1, 0, 0}, stitch.Point3d{2, 0, 0}
	bad.Rounds[0].Tasks = append(append([]Task(nil), even.Tasks...), badTask)
	if err := Validate(&bad); err == nil {
		t.Errorf("expected overlapping round to fail validation\n")
	}

	bad.Rounds[0].Tasks = []Task{even.Tasks[0]}
	bad.Rounds[0].Tasks[0].B = stitch.Point3d{0, 1, 0}
	if err := Validate(&bad); err == nil {
		t.Errorf("expected non-neighbor pair to fail validation\n")
	}

	if _, err := Plan(makeGrid(2, 1, 1), "/work", [3]int{64, 0, 6}); err == nil {
		t.Errorf("expected zero halo to fail\n")
	}
	if _, err := Plan(Grid{}, "/work", [3]int{64, 64, 6}); err == nil {
		t.Errorf("expected empty grid to fail\n")
	}
}

func TestWriteJobs(t *testing.T) {
	s, err := Plan(makeGrid(2, 1, 1), "/work dir", [3]int{64, 64, 6})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteJobs(&buf, s); err != nil {
		t.Fatal(err)
	}
	expected := `# round X_even
/in/block_0_0_0.lblk /in/block_1_0_0.lblk 1 64 "/work dir/pairwise_matches_X_even/block_0_0_0.lblk" "/work dir/pairwise_matches_X_even/block_1_0_0.lblk"
# final
"/work dir/pairwise_matches_X_even/block_0_0_0.lblk"
"/work dir/pairwise_matches_X_even/block_1_0_0.lblk"
`
	if buf.String() != expected {
		t.Errorf("expected job list:\n%s\ngot:\n%s\n", expected, buf.String())
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"block_0_0_0.lblk", "block_1_0_0.lblk", "block_0_1_0.lblk", "notes.txt", "block_1_0_0.lblk_partial"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	grid, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) != 3 {
		t.Fatalf("expected 3 blocks, got %v\n", grid)
	}
	if grid[stitch.Point3d{0, 1, 0}] != filepath.Join(dir, "block_0_1_0.lblk") {
		t.Errorf("bad path for (0,1,0): %s\n", grid[stitch.Point3d{0, 1, 0}])
	}
	if err := os.WriteFile(filepath.Join(dir, "block_0_0_0.h5"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Discover(dir); err == nil {
		t.Errorf("expected error for duplicate block files\n")
	}
	if _, err := Discover(t.TempDir()); err == nil {
		t.Errorf("expected error for empty directory\n")
	}
}

// recordingRunner checks that concurrent jobs never share a block.
type recordingRunner struct {
	mu      sync.Mutex
	active  map[string]bool
	order   []string
	failOn  string
	overlap bool
}

func (r *recordingRunner) Run(ctx context.Context, job pairwise.Job) (*pairwise.Result, error) {
	r.mu.Lock()
	for _, p := range []string{filepath.Base(job.BlockA), filepath.Base(job.BlockB)} {
		if r.active[p] {
			r.overlap = true
		}
		r.active[p] = true
	}
	r.order = append(r.order, filepath.Base(filepath.Dir(job.OutA)))
	r.mu.Unlock()

	time.Sleep(time.Millisecond)

	r.mu.Lock()
	delete(r.active, filepath.Base(job.BlockA))
	delete(r.active, filepath.Base(job.BlockB))
	r.mu.Unlock()
	if job.OutA == r.failOn {
		return nil, errors.New("job failed")
	}
	return &pairwise.Result{Job: job}, nil
}

func TestRunRoundOrder(t *testing.T) {
	s, err := Plan(makeGrid(3, 3, 3), "/work", [3]int{64, 64, 6})
	if err != nil {
		t.Fatal(err)
	}
	runner := &recordingRunner{active: make(map[string]bool)}
	if err := Run(context.Background(), s, runner, 8); err != nil {
		t.Fatal(err)
	}
	if runner.overlap {
		t.Errorf("two concurrent jobs used the same block\n")
	}
	if len(runner.order) != s.NumTasks() {
		t.Fatalf("expected %d jobs run, got %d\n", s.NumTasks(), len(runner.order))
	}
	last := ""
	seen := make(map[string]bool)
	for _, dir := range runner.order {
		if dir != last {
			if seen[dir] {
				t.Fatalf("round %s resumed after a later round started\n", dir)
			}
			seen[dir] = true
			last = dir
		}
	}

	failing := &recordingRunner{active: make(map[string]bool), failOn: s.Rounds[0].Tasks[0].Job.OutA}
	if err := Run(context.Background(), s, failing, 2); err == nil {
		t.Fatalf("expected failure\n")
	}
	for _, dir := range failing.order {
		if dir != "pairwise_matches_X_even" {
			t.Fatalf("later round %s ran after a failure\n", dir)
		}
	}
}

func TestRunReconciles(t *testing.T) {
	dir := t.TempDir()
	indir := filepath.Join(dir, "fusedblocks")
	store := storage.LocalStore{}
	ctx := context.Background()
	// Three blocks along x that all hold a single object with different labels.
	for x, label := range []uint64{30, 20, 10} {
		v := labels.NewVolume([3]int{4, 2, 2}, labels.Uint64)
		v.Fill([3]int{}, v.Shape, label)
		path := filepath.Join(indir, "block_"+itoa(x)+"_0_0.lblk")
		if err := blockfile.WriteFile(ctx, store, path, &blockfile.File{Labels: v}, stitch.Gzip); err != nil {
			t.Fatal(err)
		}
	}
	grid, err := Discover(indir)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Plan(grid, dir, [3]int{1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	cfg := pairwise.DefaultConfig()
	if err := Run(ctx, s, pairwise.NewReconciler(store, cfg, nil), 0); err != nil {
		t.Fatal(err)
	}
	var edges labels.MergeHistory
	for _, c := range s.Final.Coords() {
		f, err := blockfile.ReadFile(ctx, store, s.Final[c])
		if err != nil {
			t.Fatal(err)
		}
		edges = append(edges, f.Merges...)
		for i, label := range f.Labels.Data {
			if c[0] == 0 && label != 20 {
				t.Fatalf("block %s voxel %d: expected 20, got %d\n", c, i, label)
			}
			if c[0] > 0 && label != 10 {
				t.Fatalf("block %s voxel %d: expected 10, got %d\n", c, i, label)
			}
		}
	}
	// Global consolidation over all final histories joins the three labels.
	cm := labels.Resolve(edges)
	for _, label := range []uint64{30, 20, 10} {
		if got := cm.Map(label); got != 10 {
			t.Errorf("label %d resolves to %d, expected 10\n", label, got)
		}
	}
}
