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

package blockdev

import "fmt"

// MemoryDevice is an in-memory Device used by tests that want a disk
// image without touching the filesystem.
type MemoryDevice struct {
	blocks [][BlockSize]byte
}

var _ Device = (*MemoryDevice)(nil)

func NewMemoryDevice(totalBlocks uint32) *MemoryDevice {
	return &MemoryDevice{blocks: make([][BlockSize]byte, totalBlocks)}
}

func (d *MemoryDevice) ReadBlock(id uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return fmt.Errorf("ReadBlock: buf must be %d bytes, got %d", BlockSize, len(buf))
	}
	if id >= uint32(len(d.blocks)) {
		return fmt.Errorf("ReadBlock: block %d out of range (%d blocks)", id, len(d.blocks))
	}
	copy(buf, d.blocks[id][:])
	return nil
}

func (d *MemoryDevice) WriteBlock(id uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return fmt.Errorf("WriteBlock: buf must be %d bytes, got %d", BlockSize, len(buf))
	}
	if id >= uint32(len(d.blocks)) {
		return fmt.Errorf("WriteBlock: block %d out of range (%d blocks)", id, len(d.blocks))
	}
	copy(d.blocks[id][:], buf)
	return nil
}

func (d *MemoryDevice) BlockCount() uint32 { return uint32(len(d.blocks)) }

func (d *MemoryDevice) Close() error { return nil }
