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

// Package task holds the process and thread control blocks: the
// mutable bookkeeping every syscall reads or updates, and the
// clone/exec/wait/exit operations that create and tear them down.
package task

import (
	"sync"
	"sync/atomic"

	"github.com/chaoskernel/rvos/internal/inode"
	"github.com/chaoskernel/rvos/internal/mm"
	"github.com/chaoskernel/rvos/internal/vfs"
	"github.com/jacobsa/gcloud/syncutil"
)

var nextPid int64

func allocPid() int {
	return int(atomic.AddInt64(&nextPid, 1))
}

// SigAction is one entry of a process's signal action table.
type SigAction struct {
	Handler uint64 // 0 (SIG_DFL) or a user PC
	Mask    uint64
}

// Process is the PCB: everything scoped to the whole process rather
// than to one of its threads.
type Process struct {
	Pid int

	/////////////////////////
	// Constant data
	/////////////////////////

	// Parent is a non-owning back-reference; Process never keeps its
	// parent alive. Nil for the root process.
	Parent *Process

	/////////////////////////
	// Mutable state
	/////////////////////////

	// Mu guards every field below, per the design's lock ordering
	// (PCB-inner is the outermost lock any syscall takes).
	Mu syncutil.InvariantMutex

	// GUARDED_BY(Mu)
	Children []*Process
	// GUARDED_BY(Mu)
	AS *mm.AddressSpace
	// GUARDED_BY(Mu)
	Fds *vfs.FDTable
	// GUARDED_BY(Mu)
	Cwd *inode.Inode
	// GUARDED_BY(Mu)
	CwdPath string
	// GUARDED_BY(Mu)
	SigMask uint64
	// GUARDED_BY(Mu)
	SigPending uint64
	// GUARDED_BY(Mu)
	SigActions [64]SigAction
	// GUARDED_BY(Mu)
	ExitCode int
	// GUARDED_BY(Mu)
	Zombie bool
	// GUARDED_BY(Mu)
	Threads []*Thread

	// mu2 is a plain mutex (not an InvariantMutex) covering only
	// next-tid allocation, split out so Thread construction doesn't
	// need to re-enter Mu.
	mu2     sync.Mutex
	nextTid int
}

// NewRootProcess returns the init-like root process that reaps every
// orphan unconditionally, with an empty address space and fd table the
// caller populates (normally from boot's Exec call).
func NewRootProcess() *Process {
	p := &Process{Pid: allocPid(), CwdPath: "/"}
	p.Mu = syncutil.NewInvariantMutex(p.checkInvariants)
	return p
}

func (p *Process) checkInvariants() {
	if p.Zombie && len(p.Threads) > 0 {
		panic("task.Process: a zombie must have no live threads")
	}
}

// allocTid returns the next never-reused tid for a thread of p. The
// first call (the process's main thread) gets tid == Pid; later calls
// count up from Pid+1.
func (p *Process) allocTid() int {
	p.mu2.Lock()
	defer p.mu2.Unlock()
	tid := p.Pid
	if p.nextTid > 0 {
		tid = p.Pid + p.nextTid
	}
	p.nextTid++
	return tid
}

// Reparent moves every child of p onto root, per the design's "orphans
// are re-parented to the root process which reaps unconditionally".
func (p *Process) Reparent(root *Process) {
	root.Mu.Lock()
	defer root.Mu.Unlock()
	for _, c := range p.Children {
		c.Parent = root
		root.Children = append(root.Children, c)
	}
	p.Children = nil
}
