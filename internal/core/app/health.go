package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

// Check reports "degraded" while the index is empty, which is the state
// before the first scan or load.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	summary := s.app.Summary(ctx)
	if summary.Files == 0 {
		status.Status = "degraded"
		status.Components["index"] = "empty"
	} else {
		status.Components["index"] = fmt.Sprintf("ok (%d files, %d units)", summary.Files, summary.Units)
	}
	status.Components["graphs"] = fmt.Sprintf("compilation=%d edges, execution=%d edges", summary.CompilationEdges, summary.ExecutionEdges)

	if s.app.store != nil {
		status.Components["store"] = "ok (" + s.app.store.Path() + ")"
	} else {
		status.Status = "degraded"
		status.Components["store"] = "missing"
	}

	s.app.mu.Lock()
	watching := s.app.activeWatcher != nil
	s.app.mu.Unlock()
	if watching {
		status.Components["watcher"] = "running"
	}
	return status
}
