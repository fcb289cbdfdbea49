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

// Package vfs is the unified file-descriptor layer above internal/inode:
// a polymorphic File handle (inode-backed, pipe end, console), shared by
// reference so dup/dup3 alias cheaply, and the per-process fd table that
// holds them.
package vfs

import "sync"

// File is the capability set every fd-table entry presents, independent
// of whether it backs a regular file, a pipe end, or the console.
type File interface {
	Readable() bool
	Writable() bool
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	ReadAll() ([]byte, error)
	Fstat() (mode uint32, size uint64, ok bool)
	IsDir() bool
	// Close releases whatever this handle holds (a pipe end's share of
	// its ring buffer, a console's underlying stream). A regular file
	// handle has nothing to release and always returns nil.
	Close() error
}

// InodeFile is the regular-file variant: an inode plus the read/write
// offset, which is external to the inode itself and travels with the
// handle so dup'd fds share a cursor the way Unix dup does.
type InodeFile struct {
	mu       sync.Mutex
	node     FileInode
	offset   int64
	readable bool
	writable bool
}

// FileInode is the subset of *inode.Inode that the vfs layer needs,
// named separately to avoid an import cycle concern and to make the
// dependency explicit.
type FileInode interface {
	ReadAt(offset int64, buf []byte) int
	WriteAt(offset int64, buf []byte) int
	Fstat() (mode uint32, size uint64)
	Dir() bool
}

// NewInodeFile wraps node for use through the fd table.
func NewInodeFile(node FileInode, readable, writable bool) *InodeFile {
	return &InodeFile{node: node, readable: readable, writable: writable}
}

func (f *InodeFile) Readable() bool { return f.readable }
func (f *InodeFile) Writable() bool { return f.writable }

func (f *InodeFile) Read(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.node.ReadAt(f.offset, buf)
	f.offset += int64(n)
	return n, nil
}

func (f *InodeFile) Write(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.node.WriteAt(f.offset, buf)
	f.offset += int64(n)
	return n, nil
}

func (f *InodeFile) ReadAll() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, size := f.node.Fstat()
	buf := make([]byte, size)
	n := f.node.ReadAt(0, buf)
	return buf[:n], nil
}

func (f *InodeFile) Fstat() (mode uint32, size uint64, ok bool) {
	mode, size = f.node.Fstat()
	return mode, size, true
}

func (f *InodeFile) IsDir() bool { return f.node.Dir() }

// Close is a no-op: a regular file's backing inode lives on the
// volume regardless of how many fds reference it.
func (f *InodeFile) Close() error { return nil }

// Node returns the underlying inode handle, for callers (the syscall
// surface) that need path resolution relative to an open directory fd
// rather than just the byte-stream File capability.
func (f *InodeFile) Node() FileInode { return f.node }
