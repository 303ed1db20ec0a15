package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ftree/internal/core/errors"
	"ftree/internal/core/ports"
	"ftree/internal/engine/index"
	"ftree/internal/shared/observability"
	"ftree/internal/shared/util"
)

// RunScan walks the requested paths (the configured roots by default) and
// brings the index up to date. Files that fail to parse are logged and
// reported, not fatal.
func (a *App) RunScan(ctx context.Context, req ports.ScanRequest) (ports.ScanResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.RunScan", trace.WithAttributes(
		attribute.Bool("full", req.Full),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.ScanResult{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	roots := req.Paths
	if len(roots) == 0 {
		roots = a.Config.Roots
	}
	files, err := a.ScanDirectories(roots, a.Config.Scan.ExcludeDirs, a.Config.Scan.ExcludeFiles)
	if err != nil {
		return ports.ScanResult{}, errors.AddContext(err, errors.CtxOperation, "scan_directories")
	}
	span.SetAttributes(attribute.Int("files", len(files)))

	failed := a.applyScan(ctx, files, req.Full || a.Index.Len() == 0, len(req.Paths) == 0)
	if len(files) > 0 || len(failed) > 0 {
		a.autosaveLocked()
	}

	summary := a.summaryLocked()
	summary.Duration = time.Since(start)
	observability.AnalysisDuration.WithLabelValues("scan").Observe(summary.Duration.Seconds())
	slog.Info("scan finished", "files", len(files), "failed", len(failed), "duration", summary.Duration)
	return ports.ScanResult{FilesScanned: len(files), Failed: failed, Summary: summary}, nil
}

// applyScan forgets indexed files no longer found under the roots and
// analyses either every file found or only new ones.
func (a *App) applyScan(ctx context.Context, files []string, full, prune bool) []string {
	found := make(map[string]bool, len(files))
	for _, f := range files {
		found[index.Normalize(f)] = true
	}
	if prune {
		var gone []string
		for _, known := range a.Index.KnownFiles() {
			if !found[known] {
				gone = append(gone, known)
			}
		}
		a.Index.Forget(gone...)
	}

	var failed []string
	for i, path := range files {
		if i%100 == 0 && ctx.Err() != nil {
			break
		}
		if !full && a.Index.Has(path) {
			continue
		}
		if err := a.Tree.Update(path); err != nil {
			slog.Warn("failed to analyze file", "path", path, "error", err)
			failed = append(failed, index.Normalize(path))
		}
	}
	return failed
}

// ScanDirectories lists the supported source files under paths, skipping
// directories and files whose base name matches an exclude pattern.
func (a *App) ScanDirectories(paths []string, excludeDirs, excludeFiles []string) ([]string, error) {
	dirGlobs, err := compilePatterns(excludeDirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compilePatterns(excludeFiles, "exclude file")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if path == root {
					return nil
				}
				if dirGlobs.MatchBase(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !a.Parser.IsSupportedPath(path) || fileGlobs.MatchBase(path) {
				return nil
			}
			key := index.Normalize(path)
			if !seen[key] {
				seen[key] = true
				files = append(files, key)
			}
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "walk source root"), errors.CtxPath, root)
		}
	}
	sort.Strings(files)
	return files, nil
}

func compilePatterns(patterns []string, label string) (util.PatternSet, error) {
	set, err := util.CompilePatterns(patterns)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid %s pattern", label))
	}
	return set, nil
}
