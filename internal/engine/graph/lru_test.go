package graph

import "testing"

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[memoKey, []string](2)
	a := memoKey{node: "a.f90", dir: Down, level: Unbounded}
	b := memoKey{node: "b.f90", dir: Down, level: Unbounded}
	up := memoKey{node: "a.f90", dir: Up, level: Unbounded}

	c.Put(a, []string{"x.f90"})
	c.Put(b, []string{"y.f90"})
	if _, ok := c.Get(a); !ok {
		t.Fatal("expected hit for a")
	}

	c.Put(up, nil)
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
	if _, ok := c.Get(b); ok {
		t.Fatal("expected b to be evicted")
	}
	if v, ok := c.Get(a); !ok || len(v) != 1 || v[0] != "x.f90" {
		t.Fatalf("unexpected value for a: %v (ok=%v)", v, ok)
	}
}

func TestLRUCache_UpdateAndClear(t *testing.T) {
	c := NewLRUCache[string, int](0)
	c.Put("a", 1)
	c.Put("a", 2)
	if v, _ := c.Get("a"); v != 2 || c.Len() != 1 {
		t.Fatalf("expected single updated entry, got %d (len %d)", v, c.Len())
	}
	c.Put("b", 3)
	if _, ok := c.Get("a"); ok {
		t.Fatal("capacity 0 is raised to 1, a should be gone")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}
