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

// Package sched is the stride scheduler: a single ready queue of TCBs
// ordered by stride, picked minimum-first with FIFO tie-breaking.
package sched

import (
	"sync"

	"github.com/chaoskernel/rvos/internal/task"
)

// BigStrideWatermark bounds how far stride is allowed to grow before
// Scheduler subtracts the queue's current minimum from every stride,
// avoiding uint64 overflow without changing relative order.
const BigStrideWatermark = 1 << 62

// Scheduler owns the single ready queue for one hart.
type Scheduler struct {
	mu    sync.Mutex
	ready []*task.Thread
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Enqueue adds t to the ready queue, marking it Ready. Safe to call for
// a freshly created thread or one waking from Blocked.
func (s *Scheduler) Enqueue(t *task.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.StatusVal = task.Ready
	s.ready = append(s.ready, t)
}

// PickNext removes and returns the Ready thread with the minimum
// stride, breaking ties by queue position (FIFO: the thread that has
// been waiting longest among equal strides). It returns ok=false if
// the queue is empty.
func (s *Scheduler) PickNext() (*task.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return nil, false
	}

	minIdx := 0
	for i, t := range s.ready {
		if t.Stride < s.ready[minIdx].Stride {
			minIdx = i
		}
	}
	t := s.ready[minIdx]
	s.ready = append(s.ready[:minIdx:minIdx], s.ready[minIdx+1:]...)
	t.StatusVal = task.Running
	return t, true
}

// Yield advances t's stride by its pass, rebalancing t together with
// the whole queue against their minimum if it has grown past the
// watermark, then re-enqueues t as Ready.
func (s *Scheduler) Yield(t *task.Thread) {
	t.Stride += t.Pass
	s.mu.Lock()
	if t.Stride > BigStrideWatermark {
		s.ready = append(s.ready, t)
		s.rebalanceLocked()
		s.ready = s.ready[:len(s.ready)-1]
	}
	s.mu.Unlock()
	s.Enqueue(t)
}

// rebalanceLocked subtracts the minimum stride among the threads in
// s.ready from every one of them, preventing unbounded stride growth
// without disturbing relative order. Yield puts the just-run thread in
// s.ready for the duration of the call, so it is rebalanced with the
// rest. Caller holds s.mu.
func (s *Scheduler) rebalanceLocked() {
	if len(s.ready) == 0 {
		return
	}
	min := s.ready[0].Stride
	for _, t := range s.ready[1:] {
		if t.Stride < min {
			min = t.Stride
		}
	}
	for _, t := range s.ready {
		t.Stride -= min
	}
}

// Remove takes t out of the ready queue (for a thread that's about to
// block on a resource), reporting whether it was present.
func (s *Scheduler) Remove(t *task.Thread) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, candidate := range s.ready {
		if candidate == t {
			s.ready = append(s.ready[:i:i], s.ready[i+1:]...)
			t.StatusVal = task.Blocked
			return true
		}
	}
	return false
}

// Len reports the number of threads currently ready.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ready)
}
