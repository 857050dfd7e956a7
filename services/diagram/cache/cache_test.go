// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"testing"
)

func TestCache_Basic(t *testing.T) {
	t.Run("get and set", func(t *testing.T) {
		c := New("test")
		c.Set("a", 1)

		if v, ok := c.Get("a"); !ok || v != 1 {
			t.Errorf("expected (1, true), got (%v, %v)", v, ok)
		}
		if _, ok := c.Get("missing"); ok {
			t.Error("expected ok=false for missing key")
		}
		if s := c.Stats(); s.Hits != 1 || s.Misses != 1 {
			t.Errorf("expected 1 hit and 1 miss, got %+v", s)
		}
	})

	t.Run("delete several keys", func(t *testing.T) {
		c := New("test")
		c.Set("a", 1)
		c.Set("b", 2)
		c.Set("c", 3)

		c.Delete("a", "b", "nope")

		if c.Has("a") || c.Has("b") {
			t.Error("expected a and b to be deleted")
		}
		if !c.Has("c") {
			t.Error("expected c to survive")
		}
		if c.Len() != 1 {
			t.Errorf("expected len=1, got %d", c.Len())
		}
	})

	t.Run("clear", func(t *testing.T) {
		c := New("test")
		c.Set("a", 1)
		c.Set("b", 2)
		c.Clear()

		if c.Len() != 0 {
			t.Errorf("expected empty cache, got len=%d", c.Len())
		}
	})
}

func TestMemo(t *testing.T) {
	t.Run("computes once until invalidated", func(t *testing.T) {
		c := New("test")
		calls := 0
		compute := func() int {
			calls++
			return calls * 10
		}

		first := Memo(c, "k", compute)
		second := Memo(c, "k", compute)
		if first != 10 || second != 10 {
			t.Errorf("expected memoized 10, got %d then %d", first, second)
		}
		if calls != 1 {
			t.Errorf("expected 1 computation, got %d", calls)
		}

		c.Delete("k")
		if got := Memo(c, "k", compute); got != 20 {
			t.Errorf("expected recomputed 20, got %d", got)
		}
	})

	t.Run("returns the same slice backing array on hit", func(t *testing.T) {
		c := New("test")
		compute := func() []string { return []string{"x", "y"} }

		a := Memo(c, "list", compute)
		b := Memo(c, "list", compute)
		if &a[0] != &b[0] {
			t.Error("expected the cached slice to be returned on hit")
		}
	})

	t.Run("type mismatch recomputes", func(t *testing.T) {
		c := New("test")
		c.Set("k", "not an int")

		if got := Memo(c, "k", func() int { return 7 }); got != 7 {
			t.Errorf("expected 7, got %d", got)
		}
		if v, _ := c.Get("k"); v != 7 {
			t.Errorf("expected stored value to be replaced, got %v", v)
		}
	})
}
