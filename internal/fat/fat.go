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

// Package fat implements the FAT32 File Allocation Table: the array
// mapping each cluster id to either the next cluster in its chain, a
// free marker, or an end-of-chain sentinel. It is the layer directly
// above the block cache; the FAT32 volume layer (package fat32) never
// touches cluster-chain bookkeeping directly.
package fat

import (
	"encoding/binary"
	"sync"

	"github.com/chaoskernel/rvos/internal/cache"
	"github.com/chaoskernel/rvos/internal/logger"
)

const (
	entrySize       = 4
	freeEntry       = 0x00000000
	endOfChainMin   = 0x0FFFFFF8
	endOfChainWrite = 0x0FFFFFFF
	entryMask       = 0x0FFFFFFF // top 4 bits of a FAT32 entry are reserved
)

// Geometry describes the on-disk layout needed to translate between
// cluster ids and sectors. It is populated from the volume's BPB.
type Geometry struct {
	FATStartSector    uint32
	SectorsPerFAT     uint32
	DataStartSector   uint32
	SectorsPerCluster uint32
	TotalClusters     uint32
}

// Table is the FAT32 allocation table. Writes go only to the primary
// FAT copy; the mirrored second FAT is never updated, a documented
// limitation inherited from the design this implements.
type Table struct {
	mu       sync.Mutex
	cache    *cache.Cache
	geom     Geometry
	lastHint uint32
}

// New constructs a Table over an already-populated block cache.
func New(c *cache.Cache, geom Geometry) *Table {
	return &Table{cache: c, geom: geom, lastHint: 2}
}

func (t *Table) sectorAndOffset(cluster uint32) (sector uint32, offset int) {
	byteOffset := cluster * entrySize
	bytesPerSector := uint32(512)
	sector = t.geom.FATStartSector + byteOffset/bytesPerSector
	offset = int(byteOffset % bytesPerSector)
	return
}

func (t *Table) readEntry(cluster uint32) (uint32, error) {
	sector, offset := t.sectorAndOffset(cluster)
	ref, err := t.cache.Get(sector)
	if err != nil {
		return 0, err
	}
	defer ref.Release()

	var v uint32
	ref.Read(offset, func(buf []byte) {
		v = binary.LittleEndian.Uint32(buf[:entrySize]) & entryMask
	})
	return v, nil
}

func (t *Table) writeEntry(cluster, value uint32) error {
	sector, offset := t.sectorAndOffset(cluster)
	ref, err := t.cache.Get(sector)
	if err != nil {
		return err
	}
	defer ref.Release()

	ref.Modify(offset, func(buf []byte) {
		binary.LittleEndian.PutUint32(buf[:entrySize], value&entryMask)
	})
	return nil
}

// NextClusterID returns the cluster following c in its chain, or false
// if c is an end-of-chain or free entry.
func (t *Table) NextClusterID(c uint32) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, err := t.readEntry(c)
	if err != nil {
		panicFATCorruption(c, err)
	}
	if v == freeEntry || v >= endOfChainMin {
		return 0, false
	}
	return v, true
}

// AllocNewCluster scans from the last-allocated hint for a free
// cluster, marks it end-of-chain, and returns its id. Returns false
// when the volume is full.
func (t *Table) AllocNewCluster() (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := t.lastHint
	for i := uint32(0); i < t.geom.TotalClusters; i++ {
		c := 2 + (start-2+i)%(t.geom.TotalClusters)
		v, err := t.readEntry(c)
		if err != nil {
			panicFATCorruption(c, err)
		}
		if v == freeEntry {
			if err := t.writeEntry(c, endOfChainWrite); err != nil {
				panicFATCorruption(c, err)
			}
			t.lastHint = c
			return c, true
		}
	}
	return 0, false
}

// LinkCluster sets prev's FAT entry to point at next, extending a
// chain in place.
func (t *Table) LinkCluster(prev, next uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writeEntry(prev, next); err != nil {
		panicFATCorruption(prev, err)
	}
}

// FreeChain walks the chain starting at c, zeroing every entry. Used by
// unlink to reclaim clusters — the reference design this implements
// leaked them; this kernel frees them instead (see DESIGN.md).
func (t *Table) FreeChain(c uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := c
	for {
		next, err := t.readEntry(cur)
		if err != nil {
			panicFATCorruption(cur, err)
		}
		if err := t.writeEntry(cur, freeEntry); err != nil {
			panicFATCorruption(cur, err)
		}
		if next == freeEntry || next >= endOfChainMin {
			return
		}
		cur = next
	}
}

// ClusterIDToSectorID converts a cluster id to the first sector of its
// data-region location.
func (t *Table) ClusterIDToSectorID(c uint32) uint32 {
	return t.geom.DataStartSector + (c-2)*t.geom.SectorsPerCluster
}

func panicFATCorruption(cluster uint32, err error) {
	logger.Panicf("fat: I/O error at cluster %d: %v", cluster, err)
}
