package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftree/internal/core/config"
	"ftree/internal/core/errors"
	"ftree/internal/core/ports"
	"ftree/internal/engine/graph"
	"ftree/internal/engine/unit"
)

var project = map[string]string{
	"kinds.f90": `
module kinds
  integer, parameter :: dp = kind(1.0d0)
end module kinds
`,
	"solver.f90": `
module solver
  use kinds
contains
  subroutine solve(x)
    real(dp) :: x
  end subroutine solve
end module solver
`,
	"main.f90": `
program main
  use solver
  real :: x
  call solve(x)
end program main
`,
	"build/generated.f90": `
module generated
end module generated
`,
	"notes.txt": "not fortran\n",
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range project {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	testChdir(t, dir)
	return dir
}

func newApp(t *testing.T) *App {
	t.Helper()
	a, err := New(config.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestApp_ScanAndQuery(t *testing.T) {
	writeProject(t)
	a := newApp(t)
	ctx := context.Background()

	res, err := a.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.FilesScanned)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 3, res.Summary.Files)
	assert.Equal(t, 2, res.Summary.CompilationEdges)
	assert.Positive(t, res.Summary.ExecutionEdges)
	assert.FileExists(t, "ftree.json")

	needs, err := a.NeedsFile(ctx, "main.f90", graph.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, []string{"kinds.f90", "solver.f90"}, needs)

	direct, err := a.NeedsFile(ctx, "./main.f90", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"solver.f90"}, direct)

	users, err := a.NeededByFile(ctx, "kinds.f90", graph.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.f90", "solver.f90"}, users)

	solve := unit.MustParse("module:SOLVER/sub:SOLVE")
	calls, err := a.CallsScopes(ctx, unit.MustParse("prog:MAIN"), graph.Unbounded)
	require.NoError(t, err)
	assert.Contains(t, calls, solve)

	callers, err := a.CalledByScope(ctx, solve, 1)
	require.NoError(t, err)
	assert.Equal(t, []unit.Path{unit.MustParse("prog:MAIN")}, callers)

	under, err := a.IsUnderStopScopes(ctx, solve, []unit.Path{unit.MustParse("prog:MAIN")}, graph.StopOptions{})
	require.NoError(t, err)
	assert.True(t, under)

	_, err = a.IsUnderStopScopes(ctx, unit.MustParse("sub:GHOST"), nil, graph.StopOptions{})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, err = a.NeedsFile(ctx, "missing.f90", 1)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestApp_IncrementalScanPrunesAndAdds(t *testing.T) {
	writeProject(t)
	a := newApp(t)
	ctx := context.Background()

	_, err := a.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)

	require.NoError(t, os.Remove("kinds.f90"))
	require.NoError(t, os.WriteFile("extra.f90", []byte("subroutine extra()\nend subroutine extra\n"), 0o644))

	res, err := a.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.FilesScanned)
	assert.Equal(t, []string{"extra.f90", "main.f90", "solver.f90"}, a.Index.KnownFiles())

	res, err = a.RunScan(ctx, ports.ScanRequest{Paths: []string{"build"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesScanned)
	assert.Contains(t, a.Index.KnownFiles(), "build/generated.f90")
	assert.Contains(t, a.Index.KnownFiles(), "main.f90")
}

func TestApp_SaveAndLoad(t *testing.T) {
	writeProject(t)
	ctx := context.Background()

	first, err := New(config.DefaultConfig())
	require.NoError(t, err)
	_, err = first.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx))
	want := first.Index.KnownFiles()
	require.NoError(t, first.Close(ctx))

	second := newApp(t)
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, want, second.Index.KnownFiles())

	needs, err := second.NeedsFile(ctx, "main.f90", graph.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, []string{"kinds.f90", "solver.f90"}, needs)
}

func TestApp_LoadReplacesPopulatedIndex(t *testing.T) {
	writeProject(t)
	a := newApp(t)
	ctx := context.Background()
	_, err := a.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)
	require.Equal(t, 3, a.Summary(ctx).Files)

	require.NoError(t, os.Remove("ftree.json"))
	require.NoError(t, a.Load(ctx))
	assert.Equal(t, 0, a.Summary(ctx).Files, "an empty store empties the index")
}

func TestApp_HandleChanges(t *testing.T) {
	writeProject(t)
	a := newApp(t)
	ctx := context.Background()
	_, err := a.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)

	var updates []ports.Summary
	a.SetUpdateHandler(func(s ports.Summary) { updates = append(updates, s) })

	require.NoError(t, os.WriteFile("main.f90", []byte("program main\nend program main\n"), 0o644))
	a.HandleChanges([]string{"main.f90", "notes.txt"})
	require.Len(t, updates, 1)
	assert.Equal(t, 1, updates[0].CompilationEdges)

	needs, err := a.NeedsFile(ctx, "main.f90", graph.Unbounded)
	require.NoError(t, err)
	assert.Empty(t, needs)

	require.NoError(t, os.Remove("solver.f90"))
	a.HandleChanges([]string{"solver.f90"})
	require.Len(t, updates, 2)
	assert.Equal(t, []string{"kinds.f90", "main.f90"}, a.Index.KnownFiles())

	a.HandleChanges([]string{"notes.txt"})
	assert.Len(t, updates, 2)
}

func TestApp_Plot(t *testing.T) {
	writeProject(t)
	a := newApp(t)
	ctx := context.Background()
	_, err := a.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)

	require.NoError(t, a.Plot(ctx, ports.PlotRequest{
		Graph: GraphCompilation, Central: "solver.f90", Output: "plots/compil.dot", Upper: 1, Lower: 1,
	}))
	data, err := os.ReadFile("plots/compil.dot")
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph D {")
	assert.Contains(t, string(data), `label="kinds.f90"`)

	require.NoError(t, a.Plot(ctx, ports.PlotRequest{
		Graph: GraphExecution, Central: "prog:MAIN", Output: "plots/exec.mmd", Upper: 0, Lower: graph.Unbounded,
	}))
	data, err = os.ReadFile("plots/exec.mmd")
	require.NoError(t, err)
	assert.Contains(t, string(data), "flowchart TD")

	err = a.Plot(ctx, ports.PlotRequest{Graph: "callgraph", Central: "main.f90", Output: "x.dot"})
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	err = a.Plot(ctx, ports.PlotRequest{Graph: GraphExecution, Central: "sub:GHOST", Output: "x.dot"})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestApp_CyclesAndTrace(t *testing.T) {
	writeProject(t)
	a := newApp(t)
	ctx := context.Background()
	_, err := a.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)

	groups, err := a.Cycles(ctx, GraphCompilation)
	require.NoError(t, err)
	assert.Empty(t, groups)

	_, err = a.Cycles(ctx, "callgraph")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	chain, ok, err := a.Trace(ctx, "main.f90", "kinds.f90")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"main.f90", "solver.f90", "kinds.f90"}, chain)

	chain, ok, err = a.Trace(ctx, "prog:MAIN", "module:SOLVER/sub:SOLVE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"prog:MAIN", "module:SOLVER/sub:SOLVE"}, chain)

	_, ok, err = a.Trace(ctx, "kinds.f90", "main.f90")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = a.Trace(ctx, "main.f90", "prog:MAIN")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestScanDirectories_Excludes(t *testing.T) {
	writeProject(t)
	a := newApp(t)

	files, err := a.ScanDirectories([]string{"."}, []string{"build"}, []string{"kinds*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.f90", "solver.f90"}, files)

	files, err = a.ScanDirectories([]string{".", "./"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"build/generated.f90", "kinds.f90", "main.f90", "solver.f90"}, files)

	_, err = a.ScanDirectories([]string{"."}, []string{"[bad"}, nil)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	_, err = a.ScanDirectories([]string{"does-not-exist"}, nil, nil)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestHealthService(t *testing.T) {
	writeProject(t)
	a := newApp(t)
	ctx := context.Background()

	health := NewHealthService(a)
	assert.Equal(t, "degraded", health.Check(ctx).Status)

	_, err := a.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)
	status := health.Check(ctx)
	assert.Equal(t, "up", status.Status)
	assert.Contains(t, status.Components["index"], "3 files")
	assert.Contains(t, status.Components["store"], "ftree.json")
}

// testChdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
