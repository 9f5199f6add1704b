// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package verify tracks identity verification results (a verified date of
// birth per user) in an injected expiring cache, and lets clients poll for
// them.
package verify

import (
	"sync"
	"time"
)

// Cache is a key/value store whose entries expire. Implementations must be
// safe for concurrent use.
type Cache[V any] interface {
	// Get returns the value stored under key. An expired entry is removed
	// and reported as missing.
	Get(key string) (V, bool)
	// Put stores value under key until ttl elapses.
	Put(key string, value V, ttl time.Duration)
	// Delete removes key.
	Delete(key string)
}

type entry[V any] struct {
	value  V
	expiry time.Time
}

// MemoryCache is an in-process Cache that evicts expired entries when they
// are read.
type MemoryCache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
}

// NewMemoryCache creates an empty cache using the wall clock.
func NewMemoryCache[V any]() *MemoryCache[V] {
	return NewMemoryCacheWithClock[V](time.Now)
}

// NewMemoryCacheWithClock creates an empty cache reading time from now.
func NewMemoryCacheWithClock[V any](now func() time.Time) *MemoryCache[V] {
	return &MemoryCache[V]{entries: make(map[string]entry[V]), now: now}
}

func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiry) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

func (c *MemoryCache[V]) Put(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiry: c.now().Add(ttl)}
}

func (c *MemoryCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
