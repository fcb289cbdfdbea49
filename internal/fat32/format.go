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
)

const (
	defaultReservedSectors   = 32
	defaultSectorsPerCluster = 1
	defaultNumFATs           = 2
	rootCluster              = 2
)

// Format lays down a fresh FAT32 volume across totalBlocks 512-byte
// blocks of dev: a BPB at block 0, two zeroed FATs with the root
// directory's cluster marked end-of-chain, and a zeroed root directory
// cluster. This bootstraps a new disk image for the mkfs subcommand;
// the reference kernel this design is modelled on assumes a
// pre-formatted image and never formats one itself.
func Format(dev blockdev.Device, totalBlocks int64) error {
	if totalBlocks <= int64(defaultReservedSectors+4) {
		return fmt.Errorf("fat32: image too small to format (%d blocks)", totalBlocks)
	}

	dataSectors := uint32(totalBlocks) - defaultReservedSectors
	totalClusters := dataSectors / defaultSectorsPerCluster
	// Each FAT sector holds 128 4-byte entries.
	sectorsPerFAT := (totalClusters + 127) / 128
	if sectorsPerFAT == 0 {
		sectorsPerFAT = 1
	}
	dataStart := defaultReservedSectors + defaultNumFATs*sectorsPerFAT
	if dataStart >= uint32(totalBlocks) {
		return fmt.Errorf("fat32: image too small for %d FAT sectors", sectorsPerFAT)
	}

	sb := SuperBlock{
		BytesPerSector:    blockdev.BlockSize,
		SectorsPerCluster: defaultSectorsPerCluster,
		ReservedSectors:   defaultReservedSectors,
		NumFATs:           defaultNumFATs,
		SectorsPerFAT:     sectorsPerFAT,
		RootCluster:       rootCluster,
		TotalSectors:      uint32(totalBlocks),
	}

	var boot [blockdev.BlockSize]byte
	sb.Encode(boot[:])
	if err := dev.WriteBlock(0, boot[:]); err != nil {
		return fmt.Errorf("fat32: writing boot sector: %w", err)
	}

	var zero [blockdev.BlockSize]byte
	for fatCopy := uint32(0); fatCopy < defaultNumFATs; fatCopy++ {
		start := defaultReservedSectors + fatCopy*sectorsPerFAT
		for s := uint32(0); s < sectorsPerFAT; s++ {
			if err := dev.WriteBlock(start+s, zero[:]); err != nil {
				return fmt.Errorf("fat32: zeroing FAT copy %d sector %d: %w", fatCopy, s, err)
			}
		}
	}

	// Mark the root directory's cluster (2) end-of-chain in the
	// primary FAT, per the design's documented choice of writing only
	// the primary copy.
	const endOfChainWrite = 0x0FFFFFFF
	var fatEntrySector [blockdev.BlockSize]byte
	if err := dev.ReadBlock(defaultReservedSectors, fatEntrySector[:]); err != nil {
		return fmt.Errorf("fat32: reading primary FAT sector 0: %w", err)
	}
	putUint32LE(fatEntrySector[rootCluster*4:], endOfChainWrite)
	if err := dev.WriteBlock(defaultReservedSectors, fatEntrySector[:]); err != nil {
		return fmt.Errorf("fat32: writing root directory FAT entry: %w", err)
	}

	rootSector := dataStart + (rootCluster-2)*defaultSectorsPerCluster
	if err := dev.WriteBlock(rootSector, zero[:]); err != nil {
		return fmt.Errorf("fat32: zeroing root directory cluster: %w", err)
	}

	return nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
