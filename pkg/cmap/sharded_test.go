package cmap

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

type point struct {
	x, y int
}

func (p point) key() string { return strconv.Itoa(p.x) + "," + strconv.Itoa(p.y) }

func TestNew_ShardCount(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{64, 64},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewString[int](WithShardCount(tt.input))
			if m.ShardCount() != tt.expected {
				t.Errorf("ShardCount() = %d, want %d", m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := NewString[int]()

	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	if v, ok := m.Get("a"); !ok || v != 3 {
		t.Errorf("Get(a) = (%d, %v), want (3, true)", v, ok)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("a")
	m.Delete("missing")
	if m.Has("a") {
		t.Error("a should not exist after deletion")
	}

	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", m.Count())
	}
}

func TestStructKey(t *testing.T) {
	m := New[point, string](point.key)
	m.Set(point{1, 2}, "p")

	if v, ok := m.Get(point{1, 2}); !ok || v != "p" {
		t.Errorf("Get(point) = (%q, %v), want (p, true)", v, ok)
	}
	if m.Has(point{2, 1}) {
		t.Error("distinct key should be absent")
	}
}

func TestGetOrSet(t *testing.T) {
	m := NewString[int]()

	v, loaded := m.GetOrSet("k", 1)
	if loaded || v != 1 {
		t.Errorf("first GetOrSet = (%d, %v), want (1, false)", v, loaded)
	}
	v, loaded = m.GetOrSet("k", 2)
	if !loaded || v != 1 {
		t.Errorf("second GetOrSet = (%d, %v), want (1, true)", v, loaded)
	}
	if m.SetIfAbsent("k", 3) {
		t.Error("SetIfAbsent should fail for an existing key")
	}
}

func TestGetOrCreate_CreatesOnce(t *testing.T) {
	m := NewString[*int64]()
	var created atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.GetOrCreate("latch", func() *int64 {
				created.Add(1)
				return new(int64)
			})
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Errorf("create called %d times, want 1", got)
	}
}

func TestUpdatePop(t *testing.T) {
	m := NewString[int]()

	m.Update("n", func(v int, exists bool) int {
		if exists {
			t.Error("key should not exist yet")
		}
		return v + 5
	})
	if got := m.Update("n", func(v int, _ bool) int { return v * 2 }); got != 10 {
		t.Errorf("Update() = %d, want 10", got)
	}

	v, ok := m.Pop("n")
	if !ok || v != 10 {
		t.Errorf("Pop() = (%d, %v), want (10, true)", v, ok)
	}
	if _, ok := m.Pop("n"); ok {
		t.Error("second Pop should report absent")
	}
}

func TestCompareAndDelete(t *testing.T) {
	m := NewString[int]()
	m.Set("k", 7)

	if m.CompareAndDelete("k", func(v int) bool { return v == 8 }) {
		t.Error("CompareAndDelete should not delete on mismatch")
	}
	if !m.CompareAndDelete("k", func(v int) bool { return v == 7 }) {
		t.Error("CompareAndDelete should delete on match")
	}
	if m.CompareAndDelete("k", func(int) bool { return true }) {
		t.Error("CompareAndDelete on a missing key should report false")
	}
}

func TestRangeKeysValues(t *testing.T) {
	m := NewString[int]()
	for i := 0; i < 10; i++ {
		m.Set(strconv.Itoa(i), i)
	}

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 10 || keys[0] != "0" || keys[9] != "9" {
		t.Errorf("Keys() = %v", keys)
	}

	sum := 0
	for _, v := range m.Values() {
		sum += v
	}
	if sum != 45 {
		t.Errorf("sum of Values() = %d, want 45", sum)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("Range visited %d items after early stop, want 3", visited)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewString[int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-%d", g, i)
				m.Set(key, i)
				m.Get(key)
				if i%2 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if got := m.Count(); got != 8*100 {
		t.Errorf("Count() = %d, want %d", got, 8*100)
	}
}
