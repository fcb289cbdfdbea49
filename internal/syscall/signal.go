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

package syscall

import (
	"time"

	"github.com/chaoskernel/rvos/internal/mm"
	"github.com/chaoskernel/rvos/internal/task"
)

// Kill implements sys_kill: raises sig against the process with the
// given pid, found by searching down the process tree from e.Root
// (this kernel keeps no global pid table).
func (e *Env) Kill(pid int, sig int) int64 {
	target := e.findProcess(pid)
	if target == nil {
		return ESRCH
	}
	target.Mu.Lock()
	task.Raise(target, sig)
	target.Mu.Unlock()
	return 0
}

// findProcess searches the process tree rooted at e.Root for pid.
func (e *Env) findProcess(pid int) *task.Process {
	if e.Root.Pid == pid {
		return e.Root
	}
	var walk func(p *task.Process) *task.Process
	walk = func(p *task.Process) *task.Process {
		for _, c := range p.Children {
			if c.Pid == pid {
				return c
			}
			if found := walk(c); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(e.Root)
}

// Sigaction implements sys_sigaction: installs handler/mask for sig and
// writes the previous action to oldActPtr if non-zero.
func (e *Env) Sigaction(sig int, handler uint64, mask uint64, oldActPtr uint64) int64 {
	if sig < 1 || sig > 64 {
		return EINVAL
	}
	if sig == task.SIGKILL || sig == task.SIGSTOP {
		return EINVAL
	}
	e.Proc.Mu.Lock()
	defer e.Proc.Mu.Unlock()

	old := e.Proc.SigActions[sig-1]
	if oldActPtr != 0 {
		out := make([]byte, 16)
		putU64LE(out[0:8], old.Handler)
		putU64LE(out[8:16], old.Mask)
		if err := mm.CopyOut(e.AS, oldActPtr, out); err != nil {
			return EFAULT
		}
	}
	e.Proc.SigActions[sig-1] = task.SigAction{Handler: handler, Mask: mask}
	return 0
}

// Sigprocmask implements sys_sigprocmask: applies how/set to the
// calling process's mask and writes the previous mask to oldSetPtr if
// non-zero.
func (e *Env) Sigprocmask(how int, set uint64, oldSetPtr uint64) int64 {
	e.Proc.Mu.Lock()
	defer e.Proc.Mu.Unlock()

	old := e.Proc.SigMask
	if oldSetPtr != 0 {
		out := make([]byte, 8)
		putU64LE(out, old)
		if err := mm.CopyOut(e.AS, oldSetPtr, out); err != nil {
			return EFAULT
		}
	}
	task.ApplySigProcMask(e.Proc, how, set)
	return 0
}

// Sigreturn implements sys_sigreturn: restores the trap context that
// task.DeliverSignal saved before pointing Sepc at the handler, so
// execution resumes exactly where the signal interrupted it. Absent a
// saved context (called other than from a handler), this is a no-op.
func (e *Env) Sigreturn() int64 {
	if e.Thread.SavedTrapCtx == nil {
		return 0
	}
	saved := *e.Thread.SavedTrapCtx
	e.Thread.SavedTrapCtx = nil
	e.Thread.TrapCtx = saved
	return int64(saved.Regs[10])
}

// Nanosleep implements sys_nanosleep: reads a (seconds, nanoseconds)
// timespec from the user buffer at reqPtr and blocks on e.Clock.After
// for that duration. Routing through Clock rather than time.Sleep
// directly lets a test drive it with a clock.SimulatedClock instead of
// actually waiting, since no simulated timer/SBI interrupt exists for
// this kernel to wait on instead.
func (e *Env) Nanosleep(reqPtr uint64) int64 {
	buf := make([]byte, 16)
	if err := mm.CopyIn(e.AS, reqPtr, buf); err != nil {
		return EFAULT
	}
	sec := getU64LE(buf[0:8])
	nsec := getU64LE(buf[8:16])
	d := time.Duration(sec)*time.Second + time.Duration(nsec)*time.Nanosecond
	if e.Clock == nil {
		time.Sleep(d)
		return 0
	}
	<-e.Clock.After(d)
	return 0
}

func getU64LE(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
