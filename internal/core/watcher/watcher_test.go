package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, changed <-chan []string, want string, within time.Duration) {
	t.Helper()
	timeout := time.After(within)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change event on %s", want)
		}
	}
}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(Options{Debounce: 100 * time.Millisecond}, nil)
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

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(Options{
		Debounce:     100 * time.Millisecond,
		Extensions:   []string{".py"},
		ExcludeDirs:  []string{"exclude_dir"},
		ExcludeFiles: []string{"skip_*.py"},
	}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	script := filepath.Join(tmpDir, "flow.py")
	if err := os.WriteFile(script, []byte("factory.create_point(1, 2, 3)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, script, 2*time.Second)

	skipped := filepath.Join(tmpDir, "skip_me.py")
	if err := os.WriteFile(skipped, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case paths := <-changedFiles:
		for _, p := range paths {
			if p == skipped {
				t.Error("excluded file triggered event")
			}
		}
	case <-time.After(500 * time.Millisecond):
	}

	subdir := filepath.Join(tmpDir, "steps")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(subdir, "nested.py")
	if err := os.WriteFile(nested, []byte("doc.save()\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, nested, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(Options{Debounce: 100 * time.Millisecond}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.py")
	newPath := filepath.Join(tmpDir, "new.py")
	if err := os.WriteFile(oldPath, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p == oldPath || p == newPath {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_FileFilters(t *testing.T) {
	w, err := NewWatcher(Options{ExcludeFiles: []string{"*_generated.py"}}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	tests := []struct {
		path    string
		exclude bool
	}{
		{"flow.py", false},
		{"FLOW.PY", false},
		{"notes.txt", true},
		{"steps_generated.py", true},
	}
	for _, tt := range tests {
		if got := w.shouldExcludeFile(tt.path); got != tt.exclude {
			t.Errorf("shouldExcludeFile(%q) = %v, want %v", tt.path, got, tt.exclude)
		}
	}
}
