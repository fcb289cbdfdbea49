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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeInode is a minimal FileInode for exercising InodeFile without
// pulling in the real fat32-backed inode package.
type fakeInode struct {
	data []byte
}

func (f *fakeInode) ReadAt(offset int64, buf []byte) int {
	if offset >= int64(len(f.data)) {
		return 0
	}
	n := copy(buf, f.data[offset:])
	return n
}

func (f *fakeInode) WriteAt(offset int64, buf []byte) int {
	end := offset + int64(len(buf))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	return copy(f.data[offset:], buf)
}

func (f *fakeInode) Fstat() (mode uint32, size uint64) { return 0o100000, uint64(len(f.data)) }
func (f *fakeInode) Dir() bool                         { return false }

func TestFDDupAliasing(t *testing.T) {
	node := &fakeInode{}
	f := NewInodeFile(node, true, true)

	table := NewFDTable(nil, nil, nil)
	a := table.Alloc(f)
	b := table.Dup(a)
	require.NotEqual(t, a, b)

	n, err := table.Get(a).Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	// a and b share one handle and so one offset, which the write left
	// at end of file: the read through b sees EOF, and the bytes written
	// through a are in the inode both fds refer to.
	buf := make([]byte, 5)
	n, err = table.Get(b).Read(buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, "hello", string(node.data))
}

func TestDup3RefusesOccupiedSlot(t *testing.T) {
	node1 := &fakeInode{}
	node2 := &fakeInode{}
	table := NewFDTable(nil, nil, nil)
	a := table.Alloc(NewInodeFile(node1, true, true))
	b := table.Alloc(NewInodeFile(node2, true, true))

	require.Equal(t, -1, table.Dup3(a, b))
}

func TestDup3AssignsExactFd(t *testing.T) {
	node := &fakeInode{}
	table := NewFDTable(nil, nil, nil)
	a := table.Alloc(NewInodeFile(node, true, true))

	got := table.Dup3(a, 10)
	require.Equal(t, 10, got)
	require.Same(t, table.Get(a), table.Get(10))
}

func TestPipeEcho(t *testing.T) {
	r, w := NewPipe()

	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	buf := make([]byte, 3)
	n, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "abc", string(buf))
}

func TestPipeReadEmptyBlocksUntilEOFAfterClose(t *testing.T) {
	r, w := NewPipe()

	buf := make([]byte, 1)
	_, err := r.Read(buf)
	require.ErrorIs(t, err, ErrWouldBlock)

	w.Close()
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 0, n, "EOF once every writer has closed")
}

func TestPipeWriteAfterReaderClosedFails(t *testing.T) {
	r, w := NewPipe()
	r.Close()

	_, err := w.Write([]byte("x"))
	require.ErrorIs(t, err, ErrPipeClosed)
}

func TestPipeWriteFullBlocks(t *testing.T) {
	r, w := NewPipe()
	big := bytes.Repeat([]byte("x"), pipeCapacity)

	n, err := w.Write(big)
	require.NoError(t, err)
	require.Equal(t, pipeCapacity, n)

	_, err = w.Write([]byte("y"))
	require.ErrorIs(t, err, ErrWouldBlock)

	buf := make([]byte, pipeCapacity)
	r.Read(buf)
}

func TestFDTableCloseFreesSlotForReuse(t *testing.T) {
	table := NewFDTable(nil, nil, nil)
	a := table.Alloc(NewInodeFile(&fakeInode{}, true, true))
	require.True(t, table.Close(a))
	require.Nil(t, table.Get(a))

	b := table.Alloc(NewInodeFile(&fakeInode{}, true, true))
	require.Equal(t, a, b, "closed slot should be reused before growing the table")
}
