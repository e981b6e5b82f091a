// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package convert

import (
	"fmt"
	"sync"

	"github.com/AleutianAI/symbridge/services/symbols/merged"
	"github.com/AleutianAI/symbridge/services/symbols/platform"
)

// entry is one cache slot. done is closed once sym or err is final.
type entry struct {
	done chan struct{}
	sym  merged.Symbol
	err  error
}

// Cache maps platform identities to merged symbols.
//
// Description:
//
//	Each key is computed at most once at a time. Concurrent callers for a
//	key that is being computed wait for that computation and share its
//	result. A failed computation leaves no entry behind, so a later call
//	computes again.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[platform.Key]*entry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[platform.Key]*entry)}
}

// Get returns the completed symbol for key.
func (c *Cache) Get(key platform.Key) (merged.Symbol, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-e.done:
		return e.sym, e.err == nil
	default:
		return nil, false
	}
}

// Len returns the number of entries, including in-flight ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns a snapshot of the completed keys.
func (c *Cache) Keys() []platform.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]platform.Key, 0, len(c.entries))
	for k, e := range c.entries {
		select {
		case <-e.done:
			out = append(out, k)
		default:
		}
	}
	return out
}

// computeFunc builds the symbol for one key. members are additional
// identities the computation accounts for; they are adopted only when the
// computation succeeds.
type computeFunc func() (sym merged.Symbol, members map[platform.Key]merged.Symbol, err error)

// lookupResult says how compute obtained its answer.
type lookupResult string

const (
	lookupHit  lookupResult = "hit"
	lookupWait lookupResult = "wait"
	lookupMiss lookupResult = "miss"
)

// compute returns the symbol for key, running fn if no entry exists.
//
// Description:
//
//	Check-or-insert is atomic under the cache lock. The caller that inserts
//	runs fn outside the lock; everyone else waits on the entry. On success
//	the members are adopted put-if-absent before the entry is published.
//	On failure or panic the entry is removed and waiters see the error.
func (c *Cache) compute(key platform.Key, fn computeFunc) (merged.Symbol, lookupResult, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		select {
		case <-e.done:
			return e.sym, lookupHit, e.err
		default:
		}
		<-e.done
		return e.sym, lookupWait, e.err
	}
	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	finished := false
	defer func() {
		if finished {
			return
		}
		r := recover()
		c.mu.Lock()
		delete(c.entries, key)
		e.err = fmt.Errorf("conversion of %s aborted: %v", key, r)
		close(e.done)
		c.mu.Unlock()
		if r != nil {
			panic(r)
		}
	}()

	sym, members, err := fn()

	c.mu.Lock()
	if err != nil {
		delete(c.entries, key)
		e.err = err
	} else {
		e.sym = sym
		for k, m := range members {
			if k == key {
				continue
			}
			c.adoptLocked(k, m)
		}
	}
	close(e.done)
	c.mu.Unlock()
	finished = true
	if err != nil {
		return nil, lookupMiss, err
	}
	return sym, lookupMiss, nil
}

// adoptLocked records sym for key unless key already has an entry. Caller
// must hold c.mu.
func (c *Cache) adoptLocked(key platform.Key, sym merged.Symbol) {
	if _, exists := c.entries[key]; exists {
		return
	}
	done := make(chan struct{})
	close(done)
	c.entries[key] = &entry{done: done, sym: sym}
}
