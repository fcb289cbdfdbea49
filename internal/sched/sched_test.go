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

package sched

import (
	"testing"

	"github.com/chaoskernel/rvos/internal/task"
	"github.com/stretchr/testify/require"
)

const bigStride = 10000

func TestStrideFairnessAmongEqualPriority(t *testing.T) {
	s := New()
	proc := task.NewRootProcess()

	k := 4
	threads := make([]*task.Thread, k)
	runCount := make(map[*task.Thread]int)
	for i := 0; i < k; i++ {
		threads[i] = task.NewThread(proc, 16, bigStride, 2)
		s.Enqueue(threads[i])
	}

	N := 400
	for round := 0; round < N; round++ {
		th, ok := s.PickNext()
		require.True(t, ok)
		runCount[th]++
		s.Yield(th)
	}

	for _, th := range threads {
		want := N / k
		got := runCount[th]
		diff := got - want
		if diff < 0 {
			diff = -diff
		}
		require.LessOrEqual(t, diff, 1, "thread ran %d times, want within 1 of %d", got, want)
	}
}

func TestPickNextFIFOTieBreak(t *testing.T) {
	s := New()
	proc := task.NewRootProcess()
	a := task.NewThread(proc, 16, bigStride, 2)
	b := task.NewThread(proc, 16, bigStride, 2)
	s.Enqueue(a)
	s.Enqueue(b)

	got, ok := s.PickNext()
	require.True(t, ok)
	require.Same(t, a, got, "equal strides must break ties FIFO")
}

func TestRemoveTakesThreadOutOfQueue(t *testing.T) {
	s := New()
	proc := task.NewRootProcess()
	a := task.NewThread(proc, 16, bigStride, 2)
	s.Enqueue(a)
	require.True(t, s.Remove(a))
	require.Equal(t, task.Blocked, a.StatusVal)
	require.Equal(t, 0, s.Len())
}

func TestStridePriorityRatio(t *testing.T) {
	s := New()
	proc := task.NewRootProcess()
	lo := task.NewThread(proc, 16, bigStride, 2)
	hi := task.NewThread(proc, 32, bigStride, 2)
	s.Enqueue(lo)
	s.Enqueue(hi)

	loRuns, hiRuns := 0, 0
	for i := 0; i < 1000; i++ {
		th, ok := s.PickNext()
		require.True(t, ok)
		if th == lo {
			loRuns++
		} else {
			hiRuns++
		}
		s.Yield(th)
	}

	ratio := float64(hiRuns) / float64(loRuns)
	require.InDelta(t, 2.0, ratio, 0.2, "priority-32 thread should run ~2x as often as priority-16")
}
