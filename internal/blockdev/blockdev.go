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

// Package blockdev is the lowest layer of the storage stack: a flat
// 512-byte-block device backed by a regular file. Everything above it
// (the FAT table, the FAT32 volume) only ever sees whole blocks through
// the block cache in package cache; nothing reads or writes the file
// directly except this package.
package blockdev

import (
	"fmt"
	"os"
)

// BlockSize is the sector size assumed throughout the FAT32 stack.
const BlockSize = 512

// Device is the contract the block cache requires of its backing
// store. Out of scope per the kernel design: the real driver below this
// interface (virtio-blk, SD card) — here it is always a file.
type Device interface {
	ReadBlock(id uint32, buf []byte) error
	WriteBlock(id uint32, buf []byte) error
	BlockCount() uint32
	Close() error
}

// FileDevice implements Device over an *os.File, treating it as a flat
// array of BlockSize-byte blocks.
type FileDevice struct {
	f      *os.File
	blocks uint32
}

var _ Device = (*FileDevice)(nil)

// OpenFile opens an existing disk image for reading and writing.
func OpenFile(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening disk image %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statting disk image %s: %w", path, err)
	}
	return &FileDevice{f: f, blocks: uint32(info.Size() / BlockSize)}, nil
}

// CreateFile creates a new zero-filled disk image of totalBlocks
// BlockSize-byte blocks, truncating any existing file at path.
func CreateFile(path string, totalBlocks int64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating disk image %s: %w", path, err)
	}
	if err := f.Truncate(totalBlocks * BlockSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("sizing disk image %s: %w", path, err)
	}
	return &FileDevice{f: f, blocks: uint32(totalBlocks)}, nil
}

func (d *FileDevice) ReadBlock(id uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return fmt.Errorf("ReadBlock: buf must be %d bytes, got %d", BlockSize, len(buf))
	}
	if id >= d.blocks {
		return fmt.Errorf("ReadBlock: block %d out of range (%d blocks)", id, d.blocks)
	}
	_, err := d.f.ReadAt(buf, int64(id)*BlockSize)
	return err
}

func (d *FileDevice) WriteBlock(id uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return fmt.Errorf("WriteBlock: buf must be %d bytes, got %d", BlockSize, len(buf))
	}
	if id >= d.blocks {
		return fmt.Errorf("WriteBlock: block %d out of range (%d blocks)", id, d.blocks)
	}
	_, err := d.f.WriteAt(buf, int64(id)*BlockSize)
	return err
}

func (d *FileDevice) BlockCount() uint32 { return d.blocks }

func (d *FileDevice) Close() error { return d.f.Close() }
