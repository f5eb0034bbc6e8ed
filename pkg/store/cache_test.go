package store

import (
	"testing"
	"time"
)

func TestCacheFreshness(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)
	c := NewCache(10 * time.Minute)
	c.now = func() time.Time { return now }

	c.Set("members", []string{"a", "b"})

	if !c.Fresh("members") {
		t.Error("entry should be fresh right after Set")
	}
	if v, ok := c.Get("members"); !ok || len(v.([]string)) != 2 {
		t.Errorf("Get = %v, %v", v, ok)
	}

	now = now.Add(9 * time.Minute)
	if !c.Fresh("members") {
		t.Error("entry should still be fresh inside the TTL")
	}

	now = now.Add(2 * time.Minute)
	if c.Fresh("members") {
		t.Error("entry should be stale past the TTL")
	}
	// Stale entries are still readable until swept.
	if _, ok := c.Get("members"); !ok {
		t.Error("stale entry should remain readable before Sweep")
	}
}

func TestCacheSweep(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)
	c := NewCache(10 * time.Minute)
	c.now = func() time.Time { return now }

	c.Set("old", 1)
	now = now.Add(11 * time.Minute)
	c.Set("new", 2)

	if removed := c.Sweep(); removed != 1 {
		t.Errorf("Sweep removed %d entries, want 1", removed)
	}
	if _, ok := c.Get("old"); ok {
		t.Error("stale entry should be gone after Sweep")
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("fresh entry should survive Sweep")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCacheMissingKey(t *testing.T) {
	c := NewCache(0)
	if c.Fresh("nope") {
		t.Error("missing key should not be fresh")
	}
	if _, ok := c.Get("nope"); ok {
		t.Error("missing key should not be readable")
	}
}
