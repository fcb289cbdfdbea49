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
	"testing"

	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/stretchr/testify/require"
)

func newTestVolume(t *testing.T) *Volume {
	t.Helper()
	dev := blockdev.NewMemoryDevice(512)
	require.NoError(t, Format(dev, 512))
	v, err := Load(dev, 16)
	require.NoError(t, err)
	return v
}

func TestDentryRoundTrip(t *testing.T) {
	v := newTestVolume(t)

	start, ok := v.FAT.AllocNewCluster()
	require.True(t, ok)

	v.InsertDentry(v.SB.RootCluster, "hello.txt", AttrArchive, 123, start)

	sector, offset := v.FAT.ClusterIDToSectorID(v.SB.RootCluster), 0
	d, ok := v.GetDentry(&sector, &offset)
	require.True(t, ok)
	require.Equal(t, "hello.txt", d.Name)
	require.Equal(t, start, d.StartCluster)
	require.EqualValues(t, 123, d.FileSize)

	v.RemoveDentry(d)

	sector, offset = v.FAT.ClusterIDToSectorID(v.SB.RootCluster), 0
	_, ok = v.GetDentry(&sector, &offset)
	require.False(t, ok, "removed dentry must no longer be found")
}

func TestDentryLongNameRoundTrip(t *testing.T) {
	v := newTestVolume(t)
	start, _ := v.FAT.AllocNewCluster()

	longName := "a-rather-long-file-name-that-does-not-fit-8.3.txt"
	v.InsertDentry(v.SB.RootCluster, longName, AttrArchive, 0, start)

	sector, offset := v.FAT.ClusterIDToSectorID(v.SB.RootCluster), 0
	d, ok := v.GetDentry(&sector, &offset)
	require.True(t, ok)
	require.Equal(t, longName, d.Name)
}

func TestClusterChainFiniteAndNonRepeating(t *testing.T) {
	v := newTestVolume(t)

	c1, _ := v.FAT.AllocNewCluster()
	c2, _ := v.FAT.AllocNewCluster()
	c3, _ := v.FAT.AllocNewCluster()
	v.FAT.LinkCluster(c1, c2)
	v.FAT.LinkCluster(c2, c3)

	chain := v.ClusterChain(c1)
	require.Equal(t, []uint32{c1, c2, c3}, chain)

	seen := map[uint32]bool{}
	for _, c := range chain {
		require.False(t, seen[c], "cluster chain must not repeat a cluster")
		seen[c] = true
	}
}

func TestReadWriteClusterRoundTrip(t *testing.T) {
	v := newTestVolume(t)
	c, _ := v.FAT.AllocNewCluster()

	buf := make([]byte, v.SB.ClusterSize())
	copy(buf, []byte("cluster payload"))
	v.WriteCluster(c, buf)

	readBack := make([]byte, v.SB.ClusterSize())
	v.ReadCluster(c, readBack)
	require.Equal(t, buf, readBack)
}

func TestInsertDentryGrowsDirectoryChain(t *testing.T) {
	v := newTestVolume(t)

	// Stuff the root directory with enough entries to exhaust its
	// single cluster and force a chain extension.
	entriesPerCluster := v.SB.ClusterSize() / DentrySize
	for i := 0; i < entriesPerCluster+2; i++ {
		start, ok := v.FAT.AllocNewCluster()
		require.True(t, ok)
		name := shortUniqueName(i)
		v.InsertDentry(v.SB.RootCluster, name, AttrArchive, 0, start)
	}

	chain := v.ClusterChain(v.SB.RootCluster)
	require.Greater(t, len(chain), 1, "root directory must have grown past one cluster")

	sector, offset := v.FAT.ClusterIDToSectorID(v.SB.RootCluster), 0
	count := 0
	for {
		_, ok := v.GetDentry(&sector, &offset)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, entriesPerCluster+2, count)
}

func shortUniqueName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + string(letters[(i/len(letters))%len(letters)]) + ".txt"
}
