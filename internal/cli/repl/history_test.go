package repl

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
)

func TestHistory_AddAndGet(t *testing.T) {
	h := NewHistory("")
	h.Add("members")
	h.Add("get-count gate")
	h.Add("get-count gate")

	if got := h.Entries(); !reflect.DeepEqual(got, []string{"members", "get-count gate"}) {
		t.Errorf("Entries() = %v, repeated lines should collapse", got)
	}
	if h.Get(0) != "get-count gate" || h.Get(1) != "members" {
		t.Errorf("Get() order wrong: %q %q", h.Get(0), h.Get(1))
	}
	if h.Get(2) != "" || h.Get(-1) != "" {
		t.Error("Get() out of range should be empty")
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory("")
	h.maxSize = 3
	for i := 0; i < 5; i++ {
		h.Add("cmd" + strconv.Itoa(i))
	}
	if got := h.Entries(); !reflect.DeepEqual(got, []string{"cmd2", "cmd3", "cmd4"}) {
		t.Errorf("Entries() = %v", got)
	}
}

func TestHistory_SaveAndLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "dir", "history")
	h := NewHistory(file)
	h.Add("members")
	h.Add("count-down gate")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded := NewHistory(file)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded.Entries(), h.Entries()) {
		t.Errorf("loaded %v, want %v", loaded.Entries(), h.Entries())
	}
}

func TestHistory_LoadMissingFile(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "absent"))
	if err := h.Load(); err != nil {
		t.Errorf("Load() error = %v", err)
	}
	if err := NewHistory("").Save(); err != nil {
		t.Errorf("Save() of an in-memory history error = %v", err)
	}
}
