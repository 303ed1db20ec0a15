package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadPattern(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"[unterminated"}, nil, func([]string) {}); err == nil {
		t.Fatal("expected invalid glob to be rejected")
	}
}

func waitFor(t *testing.T, changes <-chan []string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changes:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, []string{"exclude_dir"}, []string{"*_old.f90"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.SetFilter(func(path string) bool {
		return strings.EqualFold(filepath.Ext(path), ".f90")
	})

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "solver.f90")
	if err := os.WriteFile(testFile, []byte("module solver\nend module solver\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile)

	for _, name := range []string{"notes.txt", "solver_old.f90"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			base := filepath.Base(p)
			if base == "notes.txt" || base == "solver_old.f90" {
				t.Errorf("excluded file %s triggered event", base)
			}
		}
	case <-time.After(500 * time.Millisecond):
	}

	// New directories are watched recursively once created.
	subdir := filepath.Join(tmpDir, "newdir")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "nested.f90")
	if err := os.WriteFile(subFile, []byte("program nested\nend program\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, subFile)
}

func TestWatcher_RemoveTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "gone.f90")
	if err := os.WriteFile(target, []byte("subroutine gone\nend subroutine\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, target)
}

func TestWatcher_DebounceBatches(t *testing.T) {
	batches := make(chan []string, 4)
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		batches <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.scheduleChange("b.f90")
	w.scheduleChange("a.f90")
	w.scheduleChange("b.f90")

	select {
	case paths := <-batches:
		if strings.Join(paths, ",") != "a.f90,b.f90" {
			t.Fatalf("expected one sorted batch, got %v", paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestWatcher_Filters(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, []string{"build*"}, []string{"*.bak"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.SetFilter(func(path string) bool { return filepath.Ext(path) != ".txt" })

	if !w.shouldExcludeFile("readme.txt") {
		t.Fatal("expected filter to reject .txt")
	}
	if !w.shouldExcludeFile("x.f90.bak") {
		t.Fatal("expected file glob to exclude .bak")
	}
	if w.shouldExcludeFile("src/x.f90") {
		t.Fatal("expected x.f90 to be accepted")
	}
	if !w.shouldExcludeDir("/tmp/build-debug") {
		t.Fatal("expected build* directory to be excluded")
	}
}
