// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache is the fixed-capacity write-back block cache that sits
// between the FAT table / FAT32 volume and the raw block device:
// modified blocks are written to the device on eviction or SyncAll.
// It is the only path to the device from the rest of the kernel, so
// reads are always coherent with prior writes made through it.
package cache

import (
	"container/list"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/chaoskernel/rvos/internal/logger"
)

// syncFanout bounds how many WriteBlock calls SyncAll issues at once.
const syncFanout = 8

type entry struct {
	blockID  uint32
	buf      [blockdev.BlockSize]byte
	dirty    bool
	refcount int32
	elem     *list.Element
}

// Cache is a fixed-capacity cache of disk blocks. Entries are tracked
// in an insertion-ordered list; Get moves nothing on hit (this is not
// an access-order LRU), and eviction on miss scans from the front for
// the first entry whose only reference is the cache itself.
type Cache struct {
	mu       sync.Mutex
	dev      blockdev.Device
	capacity int
	order    *list.List // of *entry, oldest at Front
	byID     map[uint32]*entry
}

// New constructs a Cache of the given capacity over dev. capacity must
// be positive.
func New(dev blockdev.Device, capacity int) *Cache {
	if capacity <= 0 {
		panic(fmt.Sprintf("cache: capacity must be positive, got %d", capacity))
	}
	return &Cache{
		dev:      dev,
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[uint32]*entry),
	}
}

// Ref is a handle to a cached block. Callers must call Release when
// done; until then the entry can never be evicted.
type Ref struct {
	c *Cache
	e *entry
}

// Get returns a Ref to blockID, reading it from the device on a miss.
// The Ref's reference is counted against eviction until Release.
func (c *Cache) Get(blockID uint32) (*Ref, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byID[blockID]; ok {
		e.refcount++
		return &Ref{c: c, e: e}, nil
	}

	if len(c.byID) >= c.capacity {
		if err := c.evictLocked(); err != nil {
			return nil, err
		}
	}

	e := &entry{blockID: blockID, refcount: 1}
	if err := c.dev.ReadBlock(blockID, e.buf[:]); err != nil {
		return nil, fmt.Errorf("cache: reading block %d: %w", blockID, err)
	}
	e.elem = c.order.PushBack(e)
	c.byID[blockID] = e

	return &Ref{c: c, e: e}, nil
}

// evictLocked evicts the oldest cache-only entry (refcount == 0: no
// outstanding Ref, held only by the cache's own map). Called with c.mu
// held.
func (c *Cache) evictLocked() error {
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.refcount > 0 {
			continue
		}
		if e.dirty {
			if err := c.dev.WriteBlock(e.blockID, e.buf[:]); err != nil {
				return fmt.Errorf("cache: writing back block %d on eviction: %w", e.blockID, err)
			}
		}
		c.order.Remove(el)
		delete(c.byID, e.blockID)
		return nil
	}
	logger.Panicf("cache: overcommitted — all %d entries are held outside the cache", c.capacity)
	return nil
}

// Read invokes f with a read-only view of the block's contents at
// offset, which must leave room for len(f's view); f must not retain
// the slice past the call.
func (r *Ref) Read(offset int, f func(buf []byte)) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	f(r.e.buf[offset:])
}

// Modify invokes f with a writable view of the block's contents at
// offset and marks the entry dirty.
func (r *Ref) Modify(offset int, f func(buf []byte)) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	f(r.e.buf[offset:])
	r.e.dirty = true
}

// Release drops this reference. The underlying entry remains cached
// (subject to eviction) until all references are released.
func (r *Ref) Release() {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	r.e.refcount--
}

// SyncAll flushes every dirty entry to the device. This is the only
// point writes are guaranteed durable. Writes are fanned out across
// distinct block offsets via an errgroup bounded to syncFanout
// concurrent calls — safe because blockdev.FileDevice.WriteBlock writes
// through os.File.WriteAt at non-overlapping offsets, and because
// SyncAll only ever runs once, at shutdown, after the scheduler loop
// that could otherwise race a Get/Modify/Release against this snapshot
// has already stopped.
func (c *Cache) SyncAll() error {
	c.mu.Lock()
	var dirty []*entry
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.dirty {
			dirty = append(dirty, e)
			e.dirty = false
		}
	}
	c.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(syncFanout)
	for _, e := range dirty {
		e := e
		g.Go(func() error {
			if err := c.dev.WriteBlock(e.blockID, e.buf[:]); err != nil {
				return fmt.Errorf("cache: sync_all: writing block %d: %w", e.blockID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
