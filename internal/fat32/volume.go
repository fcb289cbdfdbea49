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

package fat32

import (
	"fmt"

	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/chaoskernel/rvos/internal/cache"
	"github.com/chaoskernel/rvos/internal/fat"
	"github.com/chaoskernel/rvos/internal/logger"
)

// Volume is a mounted FAT32 filesystem: the super-block plus the FAT
// table and block cache it sits on.
type Volume struct {
	SB    SuperBlock
	FAT   *fat.Table
	Cache *cache.Cache
}

// Load reads and validates the boot sector at block 0 and constructs
// the FAT table above it.
func Load(dev blockdev.Device, cacheCapacity int) (*Volume, error) {
	c := cache.New(dev, cacheCapacity)

	ref, err := c.Get(0)
	if err != nil {
		return nil, fmt.Errorf("fat32: reading boot sector: %w", err)
	}
	var boot [blockdev.BlockSize]byte
	ref.Read(0, func(buf []byte) { copy(boot[:], buf) })
	ref.Release()

	sb, err := ParseSuperBlock(boot[:])
	if err != nil {
		return nil, err
	}

	geom := fat.Geometry{
		FATStartSector:    sb.FATStartSector(),
		SectorsPerFAT:     sb.SectorsPerFAT,
		DataStartSector:   sb.DataStartSector(),
		SectorsPerCluster: uint32(sb.SectorsPerCluster),
		TotalClusters:     sb.TotalClusters(),
	}
	return &Volume{SB: sb, FAT: fat.New(c, geom), Cache: c}, nil
}

// ClusterChain materialises the full chain of cluster ids starting at
// start. Finite by the invariant that every live chain terminates.
func (v *Volume) ClusterChain(start uint32) []uint32 {
	var chain []uint32
	cur := start
	for {
		chain = append(chain, cur)
		next, ok := v.FAT.NextClusterID(cur)
		if !ok {
			return chain
		}
		cur = next
	}
}

// ReadCluster copies the whole cluster starting at cluster id c into
// buf, which must be exactly SB.ClusterSize() bytes.
func (v *Volume) ReadCluster(c uint32, buf []byte) {
	sector := v.FAT.ClusterIDToSectorID(c)
	spc := int(v.SB.SectorsPerCluster)
	for i := 0; i < spc; i++ {
		ref, err := v.Cache.Get(sector + uint32(i))
		if err != nil {
			logger.Panicf("fat32: reading cluster %d sector %d: %v", c, i, err)
		}
		ref.Read(0, func(b []byte) {
			copy(buf[i*blockdev.BlockSize:(i+1)*blockdev.BlockSize], b[:blockdev.BlockSize])
		})
		ref.Release()
	}
}

// WriteCluster writes buf (SB.ClusterSize() bytes) back to cluster c.
func (v *Volume) WriteCluster(c uint32, buf []byte) {
	sector := v.FAT.ClusterIDToSectorID(c)
	spc := int(v.SB.SectorsPerCluster)
	for i := 0; i < spc; i++ {
		ref, err := v.Cache.Get(sector + uint32(i))
		if err != nil {
			logger.Panicf("fat32: writing cluster %d sector %d: %v", c, i, err)
		}
		ref.Modify(0, func(b []byte) {
			copy(b[:blockdev.BlockSize], buf[i*blockdev.BlockSize:(i+1)*blockdev.BlockSize])
		})
		ref.Release()
	}
}

// DirEntry is a fully decoded directory entry: the short entry plus
// the reconstructed long name, if any, and enough positional
// information to remove it later.
type DirEntry struct {
	Name         string
	Attr         byte
	StartCluster uint32
	FileSize     uint32

	// ShortSector/ShortOffset locate the short entry. LongHeadSector/
	// LongHeadOffset locate the first (highest-order) long entry in
	// the chain preceding it, or equal the short position if there is
	// no long chain.
	ShortSector    uint32
	ShortOffset    int
	LongHeadSector uint32
	LongHeadOffset int
}

func (v *Volume) IsDir(d DirEntry) bool  { return d.Attr&AttrDirectory != 0 }
func (v *Volume) IsFile(d DirEntry) bool { return d.Attr&AttrDirectory == 0 && d.Attr&AttrVolumeID == 0 }

// nextDentryPos advances (sector, offset) by one 32-byte slot,
// crossing into the next sector and, at a cluster boundary, following
// the FAT chain. Returns ok=false if the chain ends.
func (v *Volume) nextDentryPos(sector uint32, offset int) (uint32, int, bool) {
	nextOffset := offset + DentrySize
	if nextOffset < blockdev.BlockSize {
		return sector, nextOffset, true
	}

	nextSector := sector + 1
	spc := uint32(v.SB.SectorsPerCluster)
	dataStart := v.SB.DataStartSector()
	if spc == 0 {
		return nextSector, 0, true
	}
	// Did we just cross a cluster boundary?
	if (nextSector-dataStart)%spc == 0 {
		curCluster := (sector-dataStart)/spc + 2
		next, ok := v.FAT.NextClusterID(curCluster)
		if !ok {
			return 0, 0, false
		}
		return v.FAT.ClusterIDToSectorID(next), 0, true
	}
	return nextSector, 0, true
}

// GetDentry reads the next live (non-deleted, non-long-header)
// directory entry starting at (*sector, *offset), advancing the
// cursor past it. Returns ok=false at end-of-directory.
func (v *Volume) GetDentry(sector *uint32, offset *int) (DirEntry, bool) {
	for {
		if *sector == 0 {
			// Sector 0 is the boot sector, never part of a directory: it
			// is the cursor left behind once the chain has ended.
			return DirEntry{}, false
		}
		ref, err := v.Cache.Get(*sector)
		if err != nil {
			logger.Panicf("fat32: reading dentry at sector %d: %v", *sector, err)
		}
		var raw [DentrySize]byte
		ref.Read(*offset, func(b []byte) { copy(raw[:], b[:DentrySize]) })
		ref.Release()

		if IsFree(raw[:]) {
			return DirEntry{}, false
		}

		if IsDeleted(raw[:]) {
			ns, no, ok := v.nextDentryPos(*sector, *offset)
			if !ok {
				return DirEntry{}, false
			}
			*sector, *offset = ns, no
			continue
		}

		longHeadSector, longHeadOffset := *sector, *offset
		var longChunks []LongChunk
		for IsLongEntry(raw[:]) {
			longChunks = append(longChunks, DecodeLongChunk(raw[:]))
			ns, no, ok := v.nextDentryPos(*sector, *offset)
			if !ok {
				return DirEntry{}, false
			}
			*sector, *offset = ns, no

			ref, err := v.Cache.Get(*sector)
			if err != nil {
				logger.Panicf("fat32: reading dentry at sector %d: %v", *sector, err)
			}
			ref.Read(*offset, func(b []byte) { copy(raw[:], b[:DentrySize]) })
			ref.Release()
		}

		short := DecodeShort(raw[:])
		d := DirEntry{
			Name:           short.Name,
			Attr:           short.Attr,
			StartCluster:   short.StartCluster,
			FileSize:       short.FileSize,
			ShortSector:    *sector,
			ShortOffset:    *offset,
			LongHeadSector: longHeadSector,
			LongHeadOffset: longHeadOffset,
		}
		if len(longChunks) > 0 {
			d.Name = decodeLongName(longChunks)
		}

		ns, no, ok := v.nextDentryPos(*sector, *offset)
		*sector, *offset = ns, no
		if !ok {
			// Still return this entry; the cursor is now (0, 0), which the
			// next call reports as end-of-directory (chain ended right
			// after it).
			return d, true
		}
		return d, true
	}
}

// InsertDentry writes a new directory entry named name into
// dirCluster's entry list, growing the chain if it is exhausted. name
// need not fit 8.3; a generated short alias carries the real name via
// preceding long entries.
func (v *Volume) InsertDentry(dirCluster uint32, name string, attr byte, fileSize, startCluster uint32) DirEntry {
	sector := v.FAT.ClusterIDToSectorID(dirCluster)
	offset := 0

	// Scan to the first free (0x00) slot, extending the chain on
	// exhaustion.
	for {
		ref, err := v.Cache.Get(sector)
		if err != nil {
			logger.Panicf("fat32: scanning for free dentry at sector %d: %v", sector, err)
		}
		var first byte
		ref.Read(offset, func(b []byte) { first = b[0] })
		ref.Release()
		if first == entryFree {
			break
		}

		ns, no, ok := v.nextDentryPos(sector, offset)
		if !ok {
			// Chain exhausted: allocate and link a new cluster, then
			// continue scanning from its first slot (which starts
			// zeroed, i.e. free).
			cur := (sector-v.SB.DataStartSector())/uint32(v.SB.SectorsPerCluster) + 2
			next, ok := v.FAT.AllocNewCluster()
			if !ok {
				logger.Panicf("fat32: volume full while inserting dentry %q", name)
			}
			v.FAT.LinkCluster(cur, next)
			zero := make([]byte, v.SB.ClusterSize())
			v.WriteCluster(next, zero)
			sector, offset = v.FAT.ClusterIDToSectorID(next), 0
			continue
		}
		sector, offset = ns, no
	}

	var shortRaw [DentrySize]byte
	short := ShortDentry{Name: name, Attr: attr, StartCluster: startCluster, FileSize: fileSize}
	EncodeShort(shortRaw[:], short)
	checksum := ShortNameChecksum(shortRaw[0:11])

	longChain := BuildLongChain(name, checksum)
	longHeadSector, longHeadOffset := sector, offset
	for i, chunk := range longChain {
		if i > 0 {
			ns, no, ok := v.advanceOrGrow(dirCluster, sector, offset)
			if !ok {
				logger.Panicf("fat32: volume full while inserting long entries for %q", name)
			}
			sector, offset = ns, no
		}
		var raw [DentrySize]byte
		EncodeLongChunk(raw[:], chunk)
		v.writeDentryRaw(sector, offset, raw[:])
	}
	if len(longChain) > 0 {
		ns, no, ok := v.advanceOrGrow(dirCluster, sector, offset)
		if !ok {
			logger.Panicf("fat32: volume full while inserting short entry for %q", name)
		}
		sector, offset = ns, no
	}
	v.writeDentryRaw(sector, offset, shortRaw[:])

	return DirEntry{
		Name:           name,
		Attr:           attr,
		StartCluster:   startCluster,
		FileSize:       fileSize,
		ShortSector:    sector,
		ShortOffset:    offset,
		LongHeadSector: longHeadSector,
		LongHeadOffset: longHeadOffset,
	}
}

func (v *Volume) writeDentryRaw(sector uint32, offset int, raw []byte) {
	ref, err := v.Cache.Get(sector)
	if err != nil {
		logger.Panicf("fat32: writing dentry at sector %d: %v", sector, err)
	}
	ref.Modify(offset, func(b []byte) { copy(b[:DentrySize], raw) })
	ref.Release()
}

// advanceOrGrow is nextDentryPos, but extends dirCluster's chain with a
// fresh zeroed cluster instead of reporting end-of-chain.
func (v *Volume) advanceOrGrow(dirCluster, sector uint32, offset int) (uint32, int, bool) {
	ns, no, ok := v.nextDentryPos(sector, offset)
	if ok {
		return ns, no, true
	}
	last := v.ClusterChain(dirCluster)
	tail := last[len(last)-1]
	next, ok := v.FAT.AllocNewCluster()
	if !ok {
		return 0, 0, false
	}
	v.FAT.LinkCluster(tail, next)
	zero := make([]byte, v.SB.ClusterSize())
	v.WriteCluster(next, zero)
	return v.FAT.ClusterIDToSectorID(next), 0, true
}

// SetShortFileSize patches just the FileSize field of the short entry
// at (sector, offset) in place, leaving its position and any preceding
// long entries untouched. Used to persist a growing file's size
// without disturbing its directory slot.
func (v *Volume) SetShortFileSize(sector uint32, offset int, size uint32) {
	ref, err := v.Cache.Get(sector)
	if err != nil {
		logger.Panicf("fat32: patching file size at sector %d: %v", sector, err)
	}
	ref.Modify(offset+28, func(b []byte) {
		b[0] = byte(size)
		b[1] = byte(size >> 8)
		b[2] = byte(size >> 16)
		b[3] = byte(size >> 24)
	})
	ref.Release()
}

// RemoveDentry tombstones every entry in d's long chain and its short
// entry. It does not free d's cluster chain — callers that want the
// space reclaimed call FAT.FreeChain separately (see the inode layer).
func (v *Volume) RemoveDentry(d DirEntry) {
	sector, offset := d.LongHeadSector, d.LongHeadOffset
	for sector != d.ShortSector || offset != d.ShortOffset {
		ref, err := v.Cache.Get(sector)
		if err != nil {
			logger.Panicf("fat32: removing dentry at sector %d: %v", sector, err)
		}
		ref.Modify(offset, func(b []byte) { SetDeleted(b) })
		ref.Release()

		ns, no, ok := v.nextDentryPos(sector, offset)
		if !ok {
			logger.Panicf("fat32: long entry chain ran off the end of directory while removing a dentry")
		}
		sector, offset = ns, no
	}

	ref, err := v.Cache.Get(d.ShortSector)
	if err != nil {
		logger.Panicf("fat32: removing dentry at sector %d: %v", d.ShortSector, err)
	}
	ref.Modify(d.ShortOffset, func(b []byte) { SetDeleted(b) })
	ref.Release()
}
