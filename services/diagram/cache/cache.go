// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the per-entity memoization map that keeps derived
// geometry cheap to read under frequent mutation.
//
// A Cache is owned by exactly one entity. Entries live until the owner
// explicitly deletes them; there is no TTL, no size bound and no locking.
// Correctness depends on every mutator of the owner deleting the keys whose
// values it changes.
package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for memoized lookups.
var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicgraph_cache_lookups_total",
		Help: "Memoized geometry lookups by owner kind and result",
	}, []string{"owner_kind", "result"})
)

// Stats holds lookup counters for one cache.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache is a single-level memoization map scoped to one owner.
//
// Thread Safety: NOT safe for concurrent use.
type Cache struct {
	entries map[string]any
	stats   Stats

	hitCounter  prometheus.Counter
	missCounter prometheus.Counter
}

// New creates an empty cache.
//
// Inputs:
//
//	ownerKind - Label describing the owning entity kind ("node", "edge").
//	            Used only for metrics.
func New(ownerKind string) *Cache {
	return &Cache{
		entries:     make(map[string]any),
		hitCounter:  lookupsTotal.WithLabelValues(ownerKind, "hit"),
		missCounter: lookupsTotal.WithLabelValues(ownerKind, "miss"),
	}
}

// Get returns the stored value for key.
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.entries[key]
	if ok {
		c.stats.Hits++
		c.hitCounter.Inc()
	} else {
		c.stats.Misses++
		c.missCounter.Inc()
	}
	return v, ok
}

// Has reports whether key is cached without counting a lookup.
func (c *Cache) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}

// Set stores value under key, replacing any previous value.
func (c *Cache) Set(key string, value any) {
	c.entries[key] = value
}

// Delete removes the given keys. Missing keys are ignored.
func (c *Cache) Delete(keys ...string) {
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// Clear removes every entry. Stats are kept.
func (c *Cache) Clear() {
	clear(c.entries)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Stats returns the hit and miss counts since creation.
func (c *Cache) Stats() Stats {
	return c.stats
}

// Memo returns the cached value for key, computing and storing it on a miss.
//
// Description:
//
//	On a hit the stored value is returned without calling compute. A stored
//	value of a different type than T is treated as a miss and overwritten.
//
// Example:
//
//	bounds := cache.Memo(n.cache, "bounds", n.computeBounds)
func Memo[T any](c *Cache, key string, compute func() T) T {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	value := compute()
	c.Set(key, value)
	return value
}
