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

package fat

import (
	"testing"

	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/chaoskernel/rvos/internal/cache"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T, totalClusters uint32) *Table {
	t.Helper()
	dev := blockdev.NewMemoryDevice(16)
	c := cache.New(dev, 4)
	return New(c, Geometry{
		FATStartSector:    0,
		SectorsPerFAT:     4,
		DataStartSector:   8,
		SectorsPerCluster: 1,
		TotalClusters:     totalClusters,
	})
}

func TestAllocThenChainIsFinite(t *testing.T) {
	tbl := newTestTable(t, 8)

	c1, ok := tbl.AllocNewCluster()
	require.True(t, ok)
	c2, ok := tbl.AllocNewCluster()
	require.True(t, ok)
	tbl.LinkCluster(c1, c2)

	chain := []uint32{c1}
	cur := c1
	for {
		next, has := tbl.NextClusterID(cur)
		if !has {
			break
		}
		chain = append(chain, next)
		cur = next
	}
	require.Equal(t, []uint32{c1, c2}, chain)
}

func TestAllocExhaustsVolume(t *testing.T) {
	tbl := newTestTable(t, 2)

	_, ok := tbl.AllocNewCluster()
	require.True(t, ok)
	_, ok = tbl.AllocNewCluster()
	require.True(t, ok)

	_, ok = tbl.AllocNewCluster()
	require.False(t, ok, "volume should report full once every cluster is allocated")
}

func TestFreeChainReclaimsClusters(t *testing.T) {
	tbl := newTestTable(t, 2)

	c1, _ := tbl.AllocNewCluster()
	c2, _ := tbl.AllocNewCluster()
	tbl.LinkCluster(c1, c2)

	tbl.FreeChain(c1)

	_, ok := tbl.AllocNewCluster()
	require.True(t, ok, "freed clusters must become allocatable again")
}

func TestClusterIDToSectorID(t *testing.T) {
	tbl := newTestTable(t, 8)
	require.Equal(t, uint32(8), tbl.ClusterIDToSectorID(2))
	require.Equal(t, uint32(9), tbl.ClusterIDToSectorID(3))
}
