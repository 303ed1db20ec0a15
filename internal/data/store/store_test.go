package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftree/internal/engine/graph"
	"ftree/internal/engine/index"
	"ftree/internal/engine/parser"
	"ftree/internal/engine/unit"
)

var projectSources = map[string]string{
	"kinds.f90": `
module kinds
  integer, parameter :: dp = kind(1.0d0)
end module kinds
`,
	"solver.f90": `
module solver
  use kinds, only: dp, wp => dp
  include 'consts.inc'
contains
  subroutine solve(x)
    real(dp) :: x(10)
    call step(x)
    x(1) = norm(x)
  end subroutine solve
  subroutine step(x)
    real(dp) :: x(10)
  end subroutine step
  real(dp) function norm(x)
    real(dp) :: x(10)
    norm = sum(x)
  end function norm
end module solver
`,
	"main.f90": `
program main
  use solver
  real :: x(10)
  call solve(x)
end program main
`,
}

func buildIndex(t *testing.T) *index.Index {
	t.Helper()
	p := parser.NewParser(parser.DefaultOptions())
	ix := index.New(p)
	ix.SetCwd("/work/project")
	for name, src := range projectSources {
		rec, err := p.ParseFile(name, []byte(src))
		require.NoError(t, err)
		ix.AnalyzeRecord(rec)
	}
	return ix
}

func snapshotOf(ix *index.Index) Snapshot {
	return Snapshot{Cwd: ix.Cwd(), Records: ix.Records()}
}

func reload(t *testing.T, s Store) *index.Index {
	t.Helper()
	snap, err := s.Load()
	require.NoError(t, err)
	ix := index.New(parser.NewParser(parser.DefaultOptions()))
	ix.Replace(snap.Cwd, snap.Records)
	return ix
}

func backends(t *testing.T) map[string]func(string) (Store, error) {
	t.Helper()
	return map[string]func(string) (Store, error){
		"index.json": func(p string) (Store, error) { return Open(p) },
		"index.db":   func(p string) (Store, error) { return Open(p) },
	}
}

func TestStore_RoundTripKeepsQueries(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state", name)
			s, err := open(path)
			require.NoError(t, err)
			defer s.Close()

			original := buildIndex(t)
			require.NoError(t, s.Save(snapshotOf(original)))

			restored := reload(t, s)
			assert.Equal(t, "/work/project", restored.Cwd())
			assert.Equal(t, original.KnownFiles(), restored.KnownFiles())

			before, after := graph.New(original), graph.New(restored)

			wantFiles, err := before.NeededByFile("kinds.f90", graph.Unbounded)
			require.NoError(t, err)
			gotFiles, err := after.NeededByFile("kinds.f90", graph.Unbounded)
			require.NoError(t, err)
			assert.Equal(t, wantFiles, gotFiles)
			assert.Equal(t, []string{"main.f90", "solver.f90"}, gotFiles)

			main := unit.MustParse("prog:MAIN")
			wantScopes, err := before.CallsScopes(main, graph.Unbounded)
			require.NoError(t, err)
			gotScopes, err := after.CallsScopes(main, graph.Unbounded)
			require.NoError(t, err)
			assert.Equal(t, wantScopes, gotScopes)
			assert.Contains(t, gotScopes, unit.MustParse("module:SOLVER/func:NORM"))

			wantUnits, err := before.FileToScopes("solver.f90")
			require.NoError(t, err)
			gotUnits, err := after.FileToScopes("solver.f90")
			require.NoError(t, err)
			assert.Equal(t, wantUnits, gotUnits)

			rec, ok := restored.Record("solver.f90")
			require.True(t, ok)
			uses := rec.Uses[unit.MustParse("module:SOLVER")]
			require.Len(t, uses, 1)
			assert.Equal(t, "KINDS", uses[0].Module)
			assert.Equal(t, map[string]string{"WP": "DP"}, uses[0].Renames)
			assert.Equal(t, []string{"consts.inc"}, rec.Includes[unit.MustParse("module:SOLVER")])
		})
	}
}

func TestStore_MissingFileLoadsEmpty(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s, err := open(filepath.Join(t.TempDir(), name))
			require.NoError(t, err)
			defer s.Close()

			snap, err := s.Load()
			require.NoError(t, err)
			assert.Empty(t, snap.Cwd)
			assert.Empty(t, snap.Records)
		})
	}
}

func TestStore_SaveReplacesPreviousContent(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s, err := open(filepath.Join(t.TempDir(), name))
			require.NoError(t, err)
			defer s.Close()

			ix := buildIndex(t)
			require.NoError(t, s.Save(snapshotOf(ix)))
			ix.Forget("main.f90")
			require.NoError(t, s.Save(snapshotOf(ix)))

			restored := reload(t, s)
			assert.Equal(t, []string{"kinds.f90", "solver.f90"}, restored.KnownFiles())
		})
	}
}

func TestJSONStore_DeterministicOutput(t *testing.T) {
	dir := t.TempDir()
	first, second := filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")

	for _, path := range []string{first, second} {
		s, err := OpenJSON(path)
		require.NoError(t, err)
		require.NoError(t, s.Save(snapshotOf(buildIndex(t))))
	}

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"useList"`)
	assert.NoFileExists(t, first+".tmp")
}

func TestJSONStore_RejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scopes": {"a.f90": ["nonsense"]}}`), 0o644))

	s, err := OpenJSON(path)
	require.NoError(t, err)
	_, err = s.Load()
	assert.Error(t, err)
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open("   ")
	assert.Error(t, err)

	_, err = Open(t.TempDir())
	assert.Error(t, err)

	s, err := Open(filepath.Join(t.TempDir(), "x.sqlite3"))
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*SQLiteStore)
	assert.True(t, ok)
}
