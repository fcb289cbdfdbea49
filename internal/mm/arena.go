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

// Package mm models the kernel's physical memory and SV39-style address
// spaces entirely in userspace: physical frames are slices of a plain
// []byte arena rather than real hardware pages, and VPN->PPN translation
// is a safe lookup rather than a pointer cast, so every user-visible
// operation in this package stays inside ordinary Go memory safety.
package mm

import "github.com/chaoskernel/rvos/internal/logger"

// PageSize matches the RISC-V Sv39 page size.
const PageSize = 4096

// Frame identifies one physical page in the arena.
type Frame uint64

// Arena is the kernel's entire simulated physical memory: a fixed
// number of PageSize frames, allocated and freed by a simple free list.
// Exhaustion is fatal — the design treats out-of-memory on frame
// allocation as a panic, never a recoverable error.
type Arena struct {
	pages [][PageSize]byte
	free  []Frame
}

// NewArena allocates an arena of the given number of physical frames.
func NewArena(frames int) *Arena {
	a := &Arena{
		pages: make([][PageSize]byte, frames),
		free:  make([]Frame, frames),
	}
	for i := range a.free {
		a.free[i] = Frame(frames - 1 - i)
	}
	return a
}

// Alloc removes one frame from the free list and zeroes it, panicking
// if the arena is exhausted.
func (a *Arena) Alloc() Frame {
	if len(a.free) == 0 {
		logger.Panicf("mm: physical frame arena exhausted")
	}
	f := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.pages[f] = [PageSize]byte{}
	return f
}

// Free returns f to the free list. Freeing a frame twice is a bug in
// the caller (an address-space invariant violation), so it panics
// rather than silently corrupting the free list.
func (a *Arena) Free(f Frame) {
	for _, existing := range a.free {
		if existing == f {
			logger.Panicf("mm: double free of physical frame %d", f)
		}
	}
	a.free = append(a.free, f)
}

// Page returns the byte slice backing frame f.
func (a *Arena) Page(f Frame) []byte {
	return a.pages[f][:]
}

// Available reports how many frames remain unallocated.
func (a *Arena) Available() int { return len(a.free) }
