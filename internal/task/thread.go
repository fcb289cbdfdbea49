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

package task

import "time"

// Status is a TCB's scheduling state.
type Status int

const (
	Ready Status = iota
	Running
	Blocked
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// TrapContext is the saved user register file plus the kernel sp/satp
// needed to resume a trapped task, placed on a dedicated frame per the
// design (modelled here as a plain struct since this kernel never
// actually traps real RISC-V hardware).
type TrapContext struct {
	Regs     [32]uint64
	Sepc     uint64
	KernelSP uint64
	UserSP   uint64
}

// Context is a TCB's saved callee-registers for a kernel-to-kernel
// context switch (goroutine scheduling stands in for this; kept as
// data so sched can still reason about "a switch happened").
type Context struct {
	Entry uint64
}

// Thread is the TCB: a schedulable unit inside a Process.
type Thread struct {
	Tid     int
	Process *Process // weak in spirit: never kept alive past its process

	KernelStack []byte
	TrapCtx     TrapContext
	SavedCtx    Context

	// GUARDED_BY(Process.Mu)
	StatusVal Status
	// GUARDED_BY(Process.Mu)
	Stride uint64
	// GUARDED_BY(Process.Mu)
	Pass uint64
	// GUARDED_BY(Process.Mu)
	Priority int
	// GUARDED_BY(Process.Mu)
	SyscallCounts map[int]int
	// GUARDED_BY(Process.Mu)
	FirstRun time.Time
	// GUARDED_BY(Process.Mu)
	ClearChildTID uint64
	// GUARDED_BY(Process.Mu)
	ExitCode int

	// SavedTrapCtx holds the interrupted user context while a signal
	// handler runs, so Sigreturn can restore it; nil outside a handler.
	// GUARDED_BY(Process.Mu)
	SavedTrapCtx *TrapContext
}

// NewThread allocates a TCB for proc with the given priority and a
// fresh kernel stack of kstackPages pages, appends it to proc's thread
// list, and returns it Ready.
func NewThread(proc *Process, priority int, bigStride uint64, kstackPages int) *Thread {
	t := &Thread{
		Tid:           proc.allocTid(),
		Process:       proc,
		KernelStack:   make([]byte, kstackPages*4096),
		StatusVal:     Ready,
		Priority:      priority,
		Pass:          bigStride / uint64(priority),
		SyscallCounts: make(map[int]int),
	}
	proc.Threads = append(proc.Threads, t)
	return t
}

// RecordSyscall increments the per-thread counter for syscall number n
// and sets FirstRun the first time any syscall runs on this thread.
func (t *Thread) RecordSyscall(n int) {
	if t.FirstRun.IsZero() {
		t.FirstRun = time.Now()
	}
	t.SyscallCounts[n]++
}
