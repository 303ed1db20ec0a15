// Package app wires configuration, the project index, the Tree, the store
// and the watcher behind one serialized service.
package app

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"ftree/internal/core/config"
	"ftree/internal/core/errors"
	"ftree/internal/core/ports"
	"ftree/internal/core/watcher"
	"ftree/internal/data/store"
	"ftree/internal/engine/graph"
	"ftree/internal/engine/index"
	"ftree/internal/engine/parser"
	"ftree/internal/output"
)

// App owns one Tree. The Tree and its index are not safe for concurrent
// use, so every exported method holds mu.
type App struct {
	Config *config.Config
	Parser *parser.Parser
	Index  *index.Index
	Tree   *graph.Tree

	store    store.Store
	renderer output.Renderer

	mu            sync.Mutex
	activeWatcher *watcher.Watcher

	updateMu sync.RWMutex
	onUpdate func(ports.Summary)
}

var _ ports.TreeService = (*App)(nil)

func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	p := parser.NewParser(parser.Options{
		Extensions:          cfg.Scan.Extensions,
		IgnoreExtensions:    cfg.Scan.IgnoreExtensions,
		FixedFormExtensions: cfg.Scan.FixedFormExtensions,
	})
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	ix := index.New(p)
	if cwd, err := os.Getwd(); err == nil {
		ix.SetCwd(cwd)
	}
	return &App{
		Config:   cfg,
		Parser:   p,
		Index:    ix,
		Tree:     graph.New(ix),
		store:    st,
		renderer: output.GraphvizRenderer{Command: cfg.Output.DotCommand},
	}, nil
}

// SetRenderer replaces the Graphviz renderer used for image formats.
func (a *App) SetRenderer(r output.Renderer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.renderer = r
}

func (a *App) SetUpdateHandler(handler func(ports.Summary)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(summary ports.Summary) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(summary)
	}
}

// Load replaces the index with the persisted snapshot. A store that was
// never saved empties the index.
func (a *App) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	snap, err := a.store.Load()
	if err != nil {
		return err
	}
	if cwd := a.Index.Cwd(); snap.Cwd != "" && cwd != "" && snap.Cwd != cwd {
		slog.Warn("index was saved from another directory; relative paths may not resolve", "saved", snap.Cwd, "cwd", cwd)
	}
	cwd := a.Index.Cwd()
	if cwd == "" {
		cwd = snap.Cwd
	}
	a.Index.Replace(cwd, snap.Records)
	slog.Debug("loaded index", "path", a.store.Path(), "files", len(snap.Records))
	return nil
}

// Save writes the index to the store.
func (a *App) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saveLocked()
}

func (a *App) saveLocked() error {
	if err := a.store.Save(store.Snapshot{Cwd: a.Index.Cwd(), Records: a.Index.Records()}); err != nil {
		return err
	}
	slog.Debug("saved index", "path", a.store.Path(), "files", a.Index.Len())
	return nil
}

func (a *App) autosaveLocked() {
	if !a.Config.Store.AutosaveEnabled() {
		return
	}
	if err := a.saveLocked(); err != nil {
		slog.Error("failed to save index", "path", a.store.Path(), "error", err)
	}
}

func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	w := a.activeWatcher
	a.activeWatcher = nil
	a.mu.Unlock()

	var firstErr error
	if w != nil {
		if err := w.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
