package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ftree/internal/core/app"
	"ftree/internal/core/config"
	"ftree/internal/core/ports"
	"ftree/internal/engine/graph"
	"ftree/internal/engine/unit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFiles(t *testing.T, tmpDir string) {
	files := map[string]string{
		"src/constants.f90": `
module constants
  implicit none
  real, parameter :: pi = 3.14159
end module constants
`,
		"src/geometry.f90": `
module geometry
  use constants
  implicit none
contains
  function circle(r) result(a)
    real :: r, a
    a = pi * r * r
  end function circle
  subroutine report(r)
    real :: r
    include 'format.inc'
    print fmt, circle(r)
  end subroutine report
end module geometry
`,
		"src/format.inc": "character(*), parameter :: fmt = '(f8.3)'\n",
		"src/legacy.f": `      SUBROUTINE OLDCALC(X)
      REAL X
      CALL REPORT(X)
      END
`,
		"app/main.f90": `
program main
  use geometry
  implicit none
  call report(2.0)
end program main
`,
	}
	for name, src := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
}

func TestFullPipelineIntegration(t *testing.T) {
	tmpDir := t.TempDir()
	createTestFiles(t, tmpDir)
	testChdir(t, tmpDir)

	cfg := config.DefaultConfig()
	cfg.Roots = []string{"src", "app"}
	cfg.Store.Path = "ftree.db"

	appInstance, err := app.New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	res, err := appInstance.RunScan(ctx, ports.ScanRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 5, res.Summary.Files)

	needs, err := appInstance.NeedsFile(ctx, "app/main.f90", graph.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/constants.f90", "src/format.inc", "src/geometry.f90"}, needs)

	report := unit.MustParse("module:GEOMETRY/sub:REPORT")
	callers, err := appInstance.CalledByScope(ctx, report, graph.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, []unit.Path{unit.MustParse("prog:MAIN")}, callers,
		"an external call to REPORT does not see the module procedure")

	calls, err := appInstance.CallsScopes(ctx, report, 1)
	require.NoError(t, err)
	assert.Equal(t, []unit.Path{unit.MustParse("module:GEOMETRY/func:CIRCLE")}, calls)

	chain, ok, err := appInstance.Trace(ctx, "app/main.f90", "src/constants.f90")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"app/main.f90", "src/geometry.f90", "src/constants.f90"}, chain)

	before := appInstance.Summary(ctx)
	require.NoError(t, appInstance.Close(ctx))
	assert.FileExists(t, filepath.Join(tmpDir, "ftree.db"))

	// A second process starts from the stored index without rescanning.
	reopened, err := app.New(cfg)
	require.NoError(t, err)
	defer func() { _ = reopened.Close(ctx) }()
	require.NoError(t, reopened.Load(ctx))

	after := reopened.Summary(ctx)
	assert.Equal(t, before.Files, after.Files)
	assert.Equal(t, before.CompilationEdges, after.CompilationEdges)
	assert.Equal(t, before.ExecutionEdges, after.ExecutionEdges)

	needs, err = reopened.NeedsFile(ctx, "app/main.f90", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/geometry.f90"}, needs)
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
