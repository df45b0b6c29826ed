package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReportsWatchedFileOnly(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "gridmesh.yaml")
	otherFile := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(configFile, []byte("log:\n  level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Watch(configFile); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	changed := make(chan string, 10)
	w.OnChange(func(path string) {
		select {
		case changed <- path:
		default:
		}
	})
	w.StartAsync()
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(otherFile, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case path := <-changed:
		if filepath.Base(path) != "gridmesh.yaml" {
			t.Errorf("OnChange() path = %q, want gridmesh.yaml", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnChange() callback was not triggered within timeout")
	}
}

func TestWatcher_Watch_NonexistentDir(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.Watch("/nonexistent/dir/gridmesh.yaml"); err == nil {
		t.Error("Watch() on a missing directory should fail")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	w.StartAsync()

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
