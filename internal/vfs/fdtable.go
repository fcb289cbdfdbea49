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

package vfs

import "sync"

// FDTable is a process's file descriptor table: an ordered sequence of
// optional shared File handles. dup/dup3 alias the same handle across
// two slots, matching the reference design's Arc::clone of the stored
// handle rather than a deep copy.
type FDTable struct {
	mu    sync.Mutex
	slots []File
}

// NewFDTable returns a table with stdin/stdout/stderr already
// populated at fds 0/1/2, per the design's "reserved at process
// creation" rule.
func NewFDTable(stdin, stdout, stderr File) *FDTable {
	return &FDTable{slots: []File{stdin, stdout, stderr}}
}

// Get returns the file at fd, or nil if fd is out of range or closed.
func (t *FDTable) Get(fd int) File {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getLocked(fd)
}

func (t *FDTable) getLocked(fd int) File {
	if fd < 0 || fd >= len(t.slots) {
		return nil
	}
	return t.slots[fd]
}

// Alloc installs f in the lowest free slot (growing the table if
// needed) and returns the assigned fd.
func (t *FDTable) Alloc(f File) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = f
			return i
		}
	}
	t.slots = append(t.slots, f)
	return len(t.slots) - 1
}

// Close releases and removes the handle at fd, reporting false if it
// was already empty or out of range.
func (t *FDTable) Close(fd int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.getLocked(fd)
	if f == nil {
		return false
	}
	f.Close()
	t.slots[fd] = nil
	return true
}

// CloseAll releases and removes every live handle, used when a
// process exits to run its fd-table teardown.
func (t *FDTable) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, f := range t.slots {
		if f != nil {
			f.Close()
			t.slots[i] = nil
		}
	}
}

// Dup aliases fd onto the lowest free slot, sharing the same handle.
func (t *FDTable) Dup(fd int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.getLocked(fd)
	if f == nil {
		return -1
	}
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = f
			return i
		}
	}
	t.slots = append(t.slots, f)
	return len(t.slots) - 1
}

// Dup3 aliases fd onto newFd specifically, growing the table as
// needed, failing if newFd is already occupied (matching the
// reference design's sys_dup3, which refuses to clobber a live fd).
func (t *FDTable) Dup3(fd, newFd int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.getLocked(fd)
	if f == nil {
		return -1
	}
	for len(t.slots) <= newFd {
		t.slots = append(t.slots, nil)
	}
	if t.slots[newFd] != nil {
		return -1
	}
	t.slots[newFd] = f
	return newFd
}

// Fork returns a new table sharing every live handle by reference,
// matching the design's "duplicate fd table" requirement for fork
// (shallow: the handles themselves are shared, not deep-copied).
func (t *FDTable) Fork() *FDTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	clone := make([]File, len(t.slots))
	copy(clone, t.slots)
	return &FDTable{slots: clone}
}

// CloseOnExec clears every slot for which keep(fd) reports false,
// leaving the rest untouched; callers pass a predicate derived from
// whatever close-on-exec bookkeeping they maintain.
func (t *FDTable) CloseOnExec(keep func(fd int) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if t.slots[i] != nil && !keep(i) {
			t.slots[i] = nil
		}
	}
}
