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

// Package fat32 implements the on-disk FAT32 volume: BIOS Parameter
// Block parsing, directory-entry iteration and mutation, and whole-
// cluster I/O, all layered over package fat's cluster-chain management
// and package cache's block cache.
package fat32

import (
	"encoding/binary"
	"fmt"

	"github.com/chaoskernel/rvos/internal/blockdev"
)

const (
	bootSignatureOffset = 510
	bootSignature       = 0xAA55
)

// SuperBlock holds the fields of the BIOS Parameter Block relevant to
// this implementation. Byte offsets below match the standard FAT32 BPB
// layout at sector 0.
type SuperBlock struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	SectorsPerFAT     uint32
	RootCluster       uint32
	TotalSectors      uint32
}

// ParseSuperBlock decodes a SuperBlock from a 512-byte boot sector.
func ParseSuperBlock(boot []byte) (SuperBlock, error) {
	if len(boot) < blockdev.BlockSize {
		return SuperBlock{}, fmt.Errorf("fat32: boot sector must be %d bytes", blockdev.BlockSize)
	}
	if sig := binary.LittleEndian.Uint16(boot[bootSignatureOffset:]); sig != bootSignature {
		return SuperBlock{}, fmt.Errorf("fat32: bad boot signature %#04x", sig)
	}

	sb := SuperBlock{
		BytesPerSector:    binary.LittleEndian.Uint16(boot[11:13]),
		SectorsPerCluster: boot[13],
		ReservedSectors:   binary.LittleEndian.Uint16(boot[14:16]),
		NumFATs:           boot[16],
		SectorsPerFAT:     binary.LittleEndian.Uint32(boot[36:40]),
		RootCluster:       binary.LittleEndian.Uint32(boot[44:48]),
	}
	totalSectors32 := binary.LittleEndian.Uint32(boot[32:36])
	sb.TotalSectors = totalSectors32

	if sb.BytesPerSector != blockdev.BlockSize {
		return SuperBlock{}, fmt.Errorf("fat32: unsupported bytes-per-sector %d", sb.BytesPerSector)
	}
	if sb.NumFATs == 0 || sb.SectorsPerCluster == 0 {
		return SuperBlock{}, fmt.Errorf("fat32: degenerate BPB (fats=%d spc=%d)", sb.NumFATs, sb.SectorsPerCluster)
	}
	return sb, nil
}

// Encode writes sb into a 512-byte boot sector buffer.
func (sb SuperBlock) Encode(boot []byte) {
	for i := range boot {
		boot[i] = 0
	}
	boot[0] = 0xEB // short jmp, filler — real boot code is out of scope
	binary.LittleEndian.PutUint16(boot[11:13], sb.BytesPerSector)
	boot[13] = sb.SectorsPerCluster
	binary.LittleEndian.PutUint16(boot[14:16], sb.ReservedSectors)
	boot[16] = sb.NumFATs
	binary.LittleEndian.PutUint32(boot[32:36], sb.TotalSectors)
	binary.LittleEndian.PutUint32(boot[36:40], sb.SectorsPerFAT)
	binary.LittleEndian.PutUint32(boot[44:48], sb.RootCluster)
	binary.LittleEndian.PutUint16(boot[bootSignatureOffset:], bootSignature)
}

// FATStartSector is the first sector of the first FAT.
func (sb SuperBlock) FATStartSector() uint32 {
	return uint32(sb.ReservedSectors)
}

// DataStartSector is the first sector of the data region, where
// cluster 2 begins.
func (sb SuperBlock) DataStartSector() uint32 {
	return uint32(sb.ReservedSectors) + uint32(sb.NumFATs)*sb.SectorsPerFAT
}

// TotalClusters is the number of addressable data clusters.
func (sb SuperBlock) TotalClusters() uint32 {
	dataSectors := sb.TotalSectors - sb.DataStartSector()
	return dataSectors / uint32(sb.SectorsPerCluster)
}

// ClusterSize is the size in bytes of one cluster.
func (sb SuperBlock) ClusterSize() int {
	return int(sb.BytesPerSector) * int(sb.SectorsPerCluster)
}
