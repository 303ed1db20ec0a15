package app

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"ftree/internal/core/errors"
	"ftree/internal/core/ports"
	"ftree/internal/engine/graph"
	"ftree/internal/engine/unit"
	"ftree/internal/output"
	"ftree/internal/shared/observability"
)

const (
	GraphExecution   = "execution"
	GraphCompilation = "compilation"
)

func (a *App) NeedsFile(ctx context.Context, file string, level int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer observe("needs", time.Now())
	return a.Tree.NeedsFile(file, level)
}

func (a *App) NeededByFile(ctx context.Context, file string, level int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer observe("needed_by", time.Now())
	return a.Tree.NeededByFile(file, level)
}

func (a *App) CallsScopes(ctx context.Context, scope unit.Path, level int) ([]unit.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer observe("calls", time.Now())
	return a.Tree.CallsScopes(scope, level)
}

func (a *App) CalledByScope(ctx context.Context, scope unit.Path, level int) ([]unit.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer observe("called_by", time.Now())
	return a.Tree.CalledByScope(scope, level)
}

// IsUnderStopScopes fails with NOT_FOUND when scope is not defined
// anywhere, so that a typo is not mistaken for "not under".
func (a *App) IsUnderStopScopes(ctx context.Context, scope unit.Path, stop []unit.Path, opts graph.StopOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer observe("under", time.Now())
	if len(a.Tree.ScopeToFiles(scope)) == 0 {
		if _, _, ok := a.Tree.FindScopeInterface(scope); !ok {
			return false, errors.AddContext(errors.New(errors.CodeNotFound, "scope not defined"), errors.CtxScope, scope.String())
		}
	}
	return a.Tree.IsUnderStopScopes(scope, stop, opts), nil
}

// Plot writes a plot of one graph around req.Central. A central value
// that parses as a unit path is a scope, anything else a file.
func (a *App) Plot(ctx context.Context, req ports.PlotRequest) error {
	ctx, span := observability.Tracer.Start(ctx, "app.Plot")
	defer span.End()
	span.SetAttributes(
		attribute.String("graph", req.Graph),
		attribute.String("central", req.Central),
		attribute.String("output", req.Output),
	)

	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer observe("plot", time.Now())

	depth := output.Depth{Upper: req.Upper, Lower: req.Lower}
	scope, isScope := parseScope(req.Central)
	switch strings.ToLower(strings.TrimSpace(req.Graph)) {
	case GraphExecution:
		if isScope {
			return output.PlotExecutionFromScope(ctx, a.Tree, scope, req.Output, depth, a.renderer)
		}
		return output.PlotExecutionFromFile(ctx, a.Tree, req.Central, req.Output, depth, a.renderer)
	case GraphCompilation:
		if isScope {
			return output.PlotCompilationFromScope(ctx, a.Tree, scope, req.Output, depth, a.renderer)
		}
		return output.PlotCompilationFromFile(ctx, a.Tree, req.Central, req.Output, depth, a.renderer)
	default:
		return errors.AddContext(errors.New(errors.CodeValidationError, "unknown graph"), "graph", req.Graph)
	}
}

// Cycles lists the cyclic groups of one graph, files for the compilation
// graph and unit paths for the execution graph.
func (a *App) Cycles(ctx context.Context, graphName string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer observe("cycles", time.Now())

	switch strings.ToLower(strings.TrimSpace(graphName)) {
	case GraphCompilation:
		return a.Tree.CompilationCycles(), nil
	case GraphExecution:
		groups := a.Tree.ExecutionCycles()
		out := make([][]string, 0, len(groups))
		for _, g := range groups {
			out = append(out, pathStrings(g))
		}
		return out, nil
	default:
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, "unknown graph"), "graph", graphName)
	}
}

// Trace returns the shortest chain from one node to another. Two unit
// paths are traced through the execution graph, anything else through the
// compilation graph. The bool is false when no chain exists.
func (a *App) Trace(ctx context.Context, from, to string) ([]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	defer observe("trace", time.Now())

	fromScope, fromIsScope := parseScope(from)
	toScope, toIsScope := parseScope(to)
	switch {
	case fromIsScope && toIsScope:
		chain, ok, err := a.Tree.TraceScopes(fromScope, toScope)
		return pathStrings(chain), ok, err
	case !fromIsScope && !toIsScope:
		return a.Tree.TraceFiles(from, to)
	default:
		return nil, false, errors.AddContext(
			errors.New(errors.CodeValidationError, "cannot trace between a file and a scope"),
			errors.CtxOperation, "trace",
		)
	}
}

func pathStrings(paths []unit.Path) []string {
	if paths == nil {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func parseScope(raw string) (unit.Path, bool) {
	if !strings.Contains(raw, ":") {
		return unit.Path{}, false
	}
	p, err := unit.Parse(raw)
	if err != nil {
		return unit.Path{}, false
	}
	return p, true
}

func (a *App) Summary(ctx context.Context) ports.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}

func (a *App) summaryLocked() ports.Summary {
	units := 0
	for _, file := range a.Index.KnownFiles() {
		if rec, ok := a.Index.Record(file); ok {
			units += len(rec.Units)
		}
	}
	return ports.Summary{
		Files:            a.Index.Len(),
		Units:            units,
		CompilationEdges: a.Tree.CompilationGraph().EdgeCount(),
		ExecutionEdges:   a.Tree.ExecutionGraph().EdgeCount(),
	}
}

func observe(task string, start time.Time) {
	observability.AnalysisDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
}
