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

package mm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrkMonotonicity(t *testing.T) {
	as := NewAddressSpace(NewArena(64))
	as.InitHeap(0x1000)

	cur, err := as.Brk(0)
	require.NoError(t, err)
	require.EqualValues(t, 0x1000, cur)

	newEnd, err := as.Brk(0x1000 + 100)
	require.NoError(t, err)
	require.EqualValues(t, PageRoundUp(0x1000+100), newEnd)

	cur, err = as.Brk(0)
	require.NoError(t, err)
	require.Equal(t, newEnd, cur)
}

func TestBrkRejectsBelowBase(t *testing.T) {
	as := NewAddressSpace(NewArena(64))
	as.InitHeap(0x1000)
	_, err := as.Brk(0x500)
	require.ErrorIs(t, err, ErrBadAddr)
}

func TestMmapAnonymousWriteReadBack(t *testing.T) {
	as := NewAddressSpace(NewArena(64))

	addr, err := as.Mmap(0, 8192, PermR|PermW|PermU, BackingAnonymous, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, addr%PageSize, "mmap must return a page-aligned address")

	data := []byte("hello from userspace")
	require.NoError(t, CopyOut(as, addr, data))

	buf := make([]byte, len(data))
	require.NoError(t, CopyIn(as, addr, buf))
	require.Equal(t, data, buf)
}

func TestMunmapRequiresExactMatch(t *testing.T) {
	as := NewAddressSpace(NewArena(64))
	addr, err := as.Mmap(0, 8192, PermR|PermW|PermU, BackingAnonymous, nil)
	require.NoError(t, err)

	require.ErrorIs(t, as.Munmap(addr, 4096), ErrNoSuchVMA)
	require.NoError(t, as.Munmap(addr, 8192))
}

func TestMmapOverlapRejected(t *testing.T) {
	as := NewAddressSpace(NewArena(64))
	addr, err := as.Mmap(0x2000_0000, 4096, PermR|PermW|PermU, BackingAnonymous, nil)
	require.NoError(t, err)

	_, err = as.Mmap(addr, 4096, PermR|PermW|PermU, BackingAnonymous, nil)
	require.ErrorIs(t, err, ErrOverlap)
}

func TestTranslatedStrCrossesPageBoundary(t *testing.T) {
	as := NewAddressSpace(NewArena(64))
	addr, err := as.Mmap(0, 8192, PermR|PermW|PermU, BackingAnonymous, nil)
	require.NoError(t, err)

	// Place a string straddling the first page boundary.
	start := addr + PageSize - 3
	msg := "hi!\x00"
	require.NoError(t, CopyOut(as, start, []byte(msg)))

	got, err := TranslatedStr(as, start)
	require.NoError(t, err)
	require.Equal(t, "hi!", got)
}

func TestTranslatedByteBufferFaultsOnUnmappedPage(t *testing.T) {
	as := NewAddressSpace(NewArena(64))
	_, err := TranslatedByteBuffer(as, 0xDEAD_0000, 8)
	require.ErrorIs(t, err, ErrFault)
}
