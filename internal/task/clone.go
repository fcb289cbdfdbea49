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

import (
	"errors"

	"github.com/chaoskernel/rvos/internal/mm"
	"github.com/jacobsa/gcloud/syncutil"
)

// Linux-compatible clone(2) flag bits. Only CLONE_THREAD branches
// kernel behavior here; CLONE_VM/CLONE_FS/CLONE_FILES/CLONE_SIGHAND
// are accepted as no-ops (this design already copies the whole address
// space and fd table eagerly on fork, and a CLONE_THREAD child already
// shares everything by construction), a decision recorded for this
// implementation.
const (
	CLONESighand       = 0x00000800
	CLONEVM            = 0x00000100
	CLONEFS            = 0x00000200
	CLONEFiles         = 0x00000400
	CLONEThread        = 0x00010000
	CLONEParentSetTID  = 0x00100000
	CLONEChildClearTID = 0x00200000
	CLONEChildSetTID   = 0x01000000
	CSignalMask        = 0xff
)

var ErrBadStack = errors.New("task: CLONE_THREAD requires a non-zero new stack pointer")

// CloneRequest bundles a clone(2) call's arguments past the flags
// already split into CSIGNAL/clone bits.
type CloneRequest struct {
	Flags        uint64
	Stack        uint64 // new user stack top for CLONE_THREAD; must be non-zero
	TLS          uint64
	ParentTIDPtr uint64
	ChildTIDPtr  uint64
}

// NewChildProcess allocates a pid, links parentage, and copies the
// caller's fd table by reference (shared handles, matching Unix
// fork). The caller still needs to set the child's AS from a cloned
// address space and give it its first thread via NewThread; it is
// appended to parent.Children before it's returned.
func NewChildProcess(parent *Process) *Process {
	p := &Process{
		Pid:    allocPid(),
		Parent: parent,
	}
	p.Mu = syncutil.NewInvariantMutex(p.checkInvariants)
	if parent.Fds != nil {
		p.Fds = parent.Fds.Fork()
	}
	p.Cwd = parent.Cwd
	p.CwdPath = parent.CwdPath
	p.SigMask = parent.SigMask
	p.SigActions = parent.SigActions
	parent.Children = append(parent.Children, p)
	return p
}

// CloneThread creates a new TCB inside proc (CLONE_THREAD case): it
// does not fork the process, only adds a thread sharing proc's address
// space and fd table. req.Stack must be non-zero.
func CloneThread(proc *Process, priority int, bigStride uint64, kstackPages int, req CloneRequest) (*Thread, error) {
	if req.Stack == 0 {
		return nil, ErrBadStack
	}
	t := NewThread(proc, priority, bigStride, kstackPages)
	t.TrapCtx.UserSP = req.Stack
	if req.Flags&CLONEChildClearTID != 0 {
		t.ClearChildTID = req.ChildTIDPtr
	}
	return t, nil
}

// Exit runs the deferred cleanup a process's death requires: clears
// every thread's CLONE_CHILD_CLEARTID address, closes every open fd,
// drops the address space, marks proc a zombie with the given code,
// reparents its children to root, and raises SIGCHLD against the
// parent it leaves behind. It does not itself wake the parent or run
// the scheduler — the caller (the kernel's syscall surface) does that
// after releasing proc.Mu, honoring the lock-drop-before-suspend rule.
func Exit(proc *Process, code int, root *Process) {
	if proc.AS != nil {
		for _, t := range proc.Threads {
			if t.ClearChildTID != 0 {
				mm.CopyOut(proc.AS, t.ClearChildTID, make([]byte, 8))
			}
		}
	}
	if proc.Fds != nil {
		proc.Fds.CloseAll()
	}
	proc.AS = nil

	proc.ExitCode = code
	proc.Zombie = true
	proc.Threads = nil
	if proc == root {
		// The root process itself is exiting (init shutting down the
		// whole simulation): there is no further ancestor to hand
		// orphans or a SIGCHLD to, and root.Reparent(root) would
		// self-deadlock on Mu, which the caller already holds.
		proc.Children = nil
		return
	}
	proc.Reparent(root)
	if proc.Parent != nil {
		proc.Parent.Mu.Lock()
		Raise(proc.Parent, SIGCHLD)
		proc.Parent.Mu.Unlock()
	}
}

// Wait4 scans parent's children for a zombie whose pid matches want
// (-1 means any), reaps the first match by removing it from Children,
// and returns its (pid, exitCode). found is false if no match exists
// yet; the caller decides whether to suspend (blocking wait) or return
// 0 (WNOHANG) based on whether any matching child exists at all.
func Wait4(parent *Process, want int) (pid, exitCode int, found, anyMatch bool) {
	for i, c := range parent.Children {
		if want != -1 && c.Pid != want {
			continue
		}
		anyMatch = true
		if c.Zombie {
			parent.Children = append(parent.Children[:i:i], parent.Children[i+1:]...)
			return c.Pid, c.ExitCode, true, true
		}
	}
	return 0, 0, false, anyMatch
}
