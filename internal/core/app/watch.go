package app

import (
	"log/slog"
	"time"

	"ftree/internal/core/watcher"
	"ftree/internal/engine/index"
	"ftree/internal/shared/observability"
)

func (a *App) StartWatcher() error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Scan.ExcludeDirs,
		a.Config.Scan.ExcludeFiles,
		a.HandleChanges,
	)
	if err != nil {
		return err
	}
	w.SetFilter(a.Parser.IsSupportedPath)

	a.mu.Lock()
	a.activeWatcher = w
	a.mu.Unlock()
	return w.Watch(a.Config.Roots)
}

// HandleChanges re-analyses changed files, forgets removed ones and saves
// the index when autosave is on.
func (a *App) HandleChanges(paths []string) {
	a.mu.Lock()
	start := time.Now()
	relevant := make([]string, 0, len(paths))
	for _, path := range paths {
		if a.Parser.IsSupportedPath(path) || a.Index.Has(index.Normalize(path)) {
			relevant = append(relevant, path)
		}
	}
	if len(relevant) == 0 {
		a.mu.Unlock()
		return
	}
	slog.Info("detected changes", "count", len(relevant))

	for _, path := range relevant {
		if err := a.Tree.Update(path); err != nil {
			slog.Warn("failed to re-analyze file", "path", path, "error", err)
		}
	}
	a.autosaveLocked()

	summary := a.summaryLocked()
	summary.Duration = time.Since(start)
	observability.AnalysisDuration.WithLabelValues("update").Observe(summary.Duration.Seconds())
	a.mu.Unlock()

	a.emitUpdate(summary)
}
