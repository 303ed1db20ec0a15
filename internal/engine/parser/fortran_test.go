package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftree/internal/core/errors"
	"ftree/internal/engine/unit"
)

func parse(t *testing.T, path, src string) *Record {
	t.Helper()
	rec, err := NewParser(DefaultOptions()).ParseFile(path, []byte(src))
	require.NoError(t, err)
	return rec
}

func TestExtractModuleWithContainedProcedures(t *testing.T) {
	rec := parse(t, "src/geometry.f90", `
module geometry
  use kinds, only: dp, wp => working_precision
  implicit none
  real(dp), allocatable :: table(:)
contains
  subroutine solve(n)
    integer, intent(in) :: n
    real(dp) :: work(n), x
    x = norm(work(1))   ! comment with call fake(1)
    call helper(x)
    if (n > 0) call report(area(x))
    table(1) = x
  end subroutine solve

  function norm(v) result(r)
    real(dp) :: v, r
    r = abs(v)
  end function
end module geometry
`)

	mod := unit.MustParse("module:GEOMETRY")
	solve := unit.MustParse("module:GEOMETRY/sub:SOLVE")
	norm := unit.MustParse("module:GEOMETRY/func:NORM")

	assert.Equal(t, []unit.Path{mod, solve, norm}, rec.Units)
	assert.Equal(t, []string{"HELPER", "REPORT"}, rec.Calls[solve])
	assert.Equal(t, []string{"AREA", "NORM"}, rec.Funcs[solve], "arrays of the unit and its host are not references")
	assert.Equal(t, []string{"ABS"}, rec.Funcs[norm])

	require.Len(t, rec.Uses[mod], 1)
	use := rec.Uses[mod][0]
	assert.Equal(t, "KINDS", use.Module)
	assert.Equal(t, []string{"DP", "WP"}, use.Only)
	remote, ok := use.Imports("WP")
	assert.True(t, ok)
	assert.Equal(t, "WORKING_PRECISION", remote)
	_, ok = use.Imports("OTHER")
	assert.False(t, ok)
}

func TestExtractFixedForm(t *testing.T) {
	src := "      PROGRAM MAIN\n" +
		"C     a comment line\n" +
		"      CALL SETUP(1,\n" +
		"     &           2)\n" +
		"   10 X = F(3)\n" +
		"      END\n"
	rec := parse(t, "legacy/main.f", src)

	prog := unit.MustParse("prog:MAIN")
	assert.Equal(t, []unit.Path{prog}, rec.Units)
	assert.Equal(t, []string{"SETUP"}, rec.Calls[prog])
	assert.Equal(t, []string{"F"}, rec.Funcs[prog])
}

func TestExtractIncludes(t *testing.T) {
	rec := parse(t, "io.F90", `#include "defs.h"
module io
  include 'params.inc'
end module io
subroutine standalone()
end subroutine
`)

	io := unit.MustParse("module:IO")
	assert.Equal(t, []string{"defs.h", "params.inc"}, rec.Includes[io], "includes before the first unit belong to it")
	assert.True(t, rec.HasUnit(unit.MustParse("sub:STANDALONE")))
	assert.Empty(t, rec.Includes[unit.MustParse("sub:STANDALONE")])
}

func TestExtractInterfaces(t *testing.T) {
	rec := parse(t, "shapes.f90", `
module shapes
  interface area
    module procedure area_circle, area_square
  end interface area
  interface
    subroutine external_hook(x)
      real :: x
    end subroutine
  end interface
  interface operator(+)
    module procedure add_shapes
  end interface
contains
  real function area_circle(r)
    real :: r
    area_circle = 3.14 * r * r
  end function area_circle
  subroutine area_square(s)
    real :: s
  end subroutine area_square
end module shapes
`)

	for _, raw := range []string{
		"module:SHAPES",
		"module:SHAPES/interface:AREA",
		"module:SHAPES/interface:AREA/func:AREA_CIRCLE",
		"module:SHAPES/interface:AREA/sub:AREA_SQUARE",
		"module:SHAPES/interface:--UNKNOWN--",
		"module:SHAPES/interface:--UNKNOWN--/sub:EXTERNAL_HOOK",
		"module:SHAPES/func:AREA_CIRCLE",
		"module:SHAPES/sub:AREA_SQUARE",
	} {
		assert.True(t, rec.HasUnit(unit.MustParse(raw)), raw)
	}
	assert.False(t, rec.HasUnit(unit.MustParse("module:SHAPES/interface:--UNKNOWN--/sub:ADD_SHAPES")),
		"bindings to procedures defined elsewhere are not units of this file")
}

func TestExtractTypesAndSelectType(t *testing.T) {
	rec := parse(t, "types.f90", `
module types
  type :: point
    real :: x, y
  contains
    procedure :: norm => point_norm
  end type point
  type, extends(point) :: point3
    real :: z
  end type
contains
  subroutine show(p)
    class(point) :: p
    type(point) :: q
    select type (p)
    type is (point3)
      call dump(p)
    end select
  end subroutine
end module
`)

	show := unit.MustParse("module:TYPES/sub:SHOW")
	assert.Equal(t, []unit.Path{
		unit.MustParse("module:TYPES"),
		unit.MustParse("module:TYPES/type:POINT"),
		unit.MustParse("module:TYPES/type:POINT3"),
		show,
	}, rec.Units)
	assert.Equal(t, []string{"DUMP"}, rec.Calls[show])
	assert.Empty(t, rec.Funcs[show])
}

func TestExtractSubmoduleProcedure(t *testing.T) {
	rec := parse(t, "geometry_impl.f90", `
submodule (geometry) geometry_impl
contains
  module procedure solve
    call helper()
  end procedure solve
end submodule geometry_impl
`)

	solve := unit.MustParse("submodule:GEOMETRY_IMPL/sub:SOLVE")
	assert.True(t, rec.HasUnit(solve))
	assert.Equal(t, []string{"HELPER"}, rec.Calls[solve])
}

func TestExtractTypeBoundCallsAreSkipped(t *testing.T) {
	rec := parse(t, "oo.f90", `
subroutine run(obj)
  call obj%step(compute(1))
end subroutine
`)

	run := unit.MustParse("sub:RUN")
	assert.Empty(t, rec.Calls[run])
	assert.Equal(t, []string{"COMPUTE"}, rec.Funcs[run])
}

func TestExtractErrors(t *testing.T) {
	p := NewParser(DefaultOptions())

	t.Run("MismatchedEnd", func(t *testing.T) {
		_, err := p.ParseFile("bad.f90", []byte("module m\nsubroutine s\nend module m\n"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeParse))
		assert.Contains(t, err.Error(), "line=3")
		assert.Contains(t, err.Error(), "path=bad.f90")
	})

	t.Run("Unterminated", func(t *testing.T) {
		_, err := p.ParseFile("open.f90", []byte("module m\ncontains\nsubroutine s\nend subroutine\n"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeParse))
		assert.Contains(t, err.Error(), "module:M")
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := p.ParsePath("does/not/exist.f90")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeParse))
	})
}

func TestParserPathRules(t *testing.T) {
	p := NewParser(DefaultOptions())
	assert.True(t, p.IsSupportedPath("a/b.f90"))
	assert.True(t, p.IsSupportedPath("a/b.inc"))
	assert.False(t, p.IsSupportedPath("a/b.json"))
	assert.False(t, p.IsSupportedPath("Makefile"))
	assert.True(t, p.IsFixedForm("old.F"))
	assert.False(t, p.IsFixedForm("new.f90"))

	restricted := NewParser(Options{Extensions: []string{"f90", ".F"}})
	assert.True(t, restricted.IsSupportedPath("x.f90"))
	assert.True(t, restricted.IsSupportedPath("x.f"))
	assert.False(t, restricted.IsSupportedPath("x.inc"))
	assert.Equal(t, []string{".f", ".f90"}, restricted.SupportedExtensions())
}

func TestRecordCloneIsDeep(t *testing.T) {
	rec := parse(t, "m.f90", "module m\nuse other, only: a\nend module\n")
	clone := rec.Clone()
	m := unit.MustParse("module:M")
	clone.Uses[m][0].Only[0] = "CHANGED"
	assert.Equal(t, "A", rec.Uses[m][0].Only[0])
}

func FuzzParseFile(f *testing.F) {
	f.Add([]byte("module m\ncontains\nsubroutine s\ncall x(1)\nend subroutine\nend module\n"))
	f.Add([]byte("      PROGRAM P\n     &X\n      END\n"))
	f.Add([]byte("interface operator(.x.)\nend interface\n"))
	p := NewParser(DefaultOptions())
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = p.ParseFile("fuzz.f90", data)
		_, _ = p.ParseFile("fuzz.f", data)
	})
}
