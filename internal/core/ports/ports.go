package ports

import (
	"context"
	"time"

	"ftree/internal/engine/graph"
	"ftree/internal/engine/parser"
	"ftree/internal/engine/unit"
)

// SourceParser abstracts Fortran extraction and file-support checks.
type SourceParser interface {
	ParsePath(path string) (*parser.Record, error)
	IsSupportedPath(filePath string) bool
	SupportedExtensions() []string
}

// ScanRequest defines a scan operation request for driving adapters. An
// empty Paths scans the configured roots. Full re-analyses every file
// found instead of only new ones.
type ScanRequest struct {
	Paths []string
	Full  bool
}

// ScanResult summarizes a completed scan operation.
type ScanResult struct {
	FilesScanned int
	Failed       []string
	Summary      Summary
}

// Summary describes the current index and graphs.
type Summary struct {
	Files            int
	Units            int
	CompilationEdges int
	ExecutionEdges   int
	Duration         time.Duration
}

// PlotRequest selects a plot. Central is a file path or a unit path such
// as module:M/sub:S.
type PlotRequest struct {
	Graph   string
	Central string
	Output  string
	Upper   int
	Lower   int
}

// TreeService is the driving port used by the CLI.
type TreeService interface {
	Load(ctx context.Context) error
	RunScan(ctx context.Context, req ScanRequest) (ScanResult, error)
	NeedsFile(ctx context.Context, file string, level int) ([]string, error)
	NeededByFile(ctx context.Context, file string, level int) ([]string, error)
	CallsScopes(ctx context.Context, scope unit.Path, level int) ([]unit.Path, error)
	CalledByScope(ctx context.Context, scope unit.Path, level int) ([]unit.Path, error)
	IsUnderStopScopes(ctx context.Context, scope unit.Path, stop []unit.Path, opts graph.StopOptions) (bool, error)
	Plot(ctx context.Context, req PlotRequest) error
	Cycles(ctx context.Context, graphName string) ([][]string, error)
	Trace(ctx context.Context, from, to string) ([]string, bool, error)
	Summary(ctx context.Context) Summary
	Save(ctx context.Context) error
	Close(ctx context.Context) error
	WatchService
}

// WatchService keeps the index current while files change. The handler
// receives a fresh Summary after every applied batch.
type WatchService interface {
	StartWatcher() error
	SetUpdateHandler(handler func(Summary))
}
