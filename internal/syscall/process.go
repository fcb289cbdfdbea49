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

// now returns e.Clock's current time, falling back to the wall clock
// if an Env was built without one (e.g. by an older caller).
func (e *Env) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

// Exit implements sys_exit the same way as sys_exit_group: it exits
// the whole process through ExitGroup, not only the calling thread
// (this kernel has no partial-thread-group exit semantics).
func (e *Env) Exit(code int) int64 {
	return e.ExitGroup(code)
}

// ExitGroup implements sys_exit_group: marks the process a zombie,
// reparents its children to root, and removes it from the scheduler.
func (e *Env) ExitGroup(code int) int64 {
	e.Proc.Mu.Lock()
	task.Exit(e.Proc, code, e.Root)
	e.Proc.Mu.Unlock()
	e.Sched.Remove(e.Thread)
	return 0
}

// Yield implements sys_sched_yield: re-enqueues the calling thread
// after advancing its stride, and tells the caller a reschedule
// happened (the kernel loop is expected to pick a new thread next).
func (e *Env) Yield() int64 {
	e.Sched.Yield(e.Thread)
	return 0
}

// Getpid/Getppid implement sys_getpid/sys_getppid.
func (e *Env) Getpid() int64 { return int64(e.Proc.Pid) }

func (e *Env) Getppid() int64 {
	if e.Proc.Parent == nil {
		return 0
	}
	return int64(e.Proc.Parent.Pid)
}

// Getuid/Geteuid/Getgid/Getegid: this kernel has no user/group
// identity concept, so every caller is uid/gid 0, matching the
// design's single-user model.
func (e *Env) Getuid() int64  { return 0 }
func (e *Env) Geteuid() int64 { return 0 }
func (e *Env) Getgid() int64  { return 0 }
func (e *Env) Getegid() int64 { return 0 }

// Clone implements sys_clone. CLONE_THREAD creates a new TCB inside
// the calling process; otherwise this is a fork, deep-copying the
// address space (CLONE_VM is a documented no-op, so every fork gets
// its own arena and page table).
func (e *Env) Clone(flags uint64, stack, parentTIDPtr, tls, childTIDPtr uint64) int64 {
	req := task.CloneRequest{
		Flags:        flags,
		Stack:        stack,
		TLS:          tls,
		ParentTIDPtr: parentTIDPtr,
		ChildTIDPtr:  childTIDPtr,
	}

	if flags&uint64(task.CLONEThread) != 0 {
		t, err := task.CloneThread(e.Proc, e.DefaultPriority, e.BigStride, e.KernelStackPages, req)
		if err != nil {
			return EINVAL
		}
		// CLONE_THREAD shares the process's address space, so both
		// the parent- and child-side tid writes land through e.AS.
		if flags&uint64(task.CLONEParentSetTID) != 0 && parentTIDPtr != 0 {
			writeTID(e.AS, parentTIDPtr, t.Tid)
		}
		if flags&uint64(task.CLONEChildSetTID) != 0 && childTIDPtr != 0 {
			writeTID(e.AS, childTIDPtr, t.Tid)
		}
		e.Sched.Enqueue(t)
		return int64(t.Tid)
	}

	child := task.NewChildProcess(e.Proc)
	child.AS = e.Proc.AS.Clone(mm.NewArena(e.ArenaFrames))
	t := task.NewThread(child, e.DefaultPriority, e.BigStride, e.KernelStackPages)
	t.TrapCtx = e.Thread.TrapCtx
	t.TrapCtx.Regs[10] = 0 // fork's return value in the child is 0
	if flags&uint64(task.CLONEChildClearTID) != 0 {
		t.ClearChildTID = childTIDPtr
	}
	if flags&uint64(task.CLONEParentSetTID) != 0 && parentTIDPtr != 0 {
		writeTID(e.AS, parentTIDPtr, child.Pid)
	}
	if flags&uint64(task.CLONEChildSetTID) != 0 && childTIDPtr != 0 {
		writeTID(child.AS, childTIDPtr, t.Tid)
	}
	e.Sched.Enqueue(t)
	return int64(child.Pid)
}

// writeTID best-effort-copies tid into the 4 bytes at ptr within as,
// matching set_tid_address/CLONE_*_SETTID's int* pointee type. A
// faulting pointer is the caller's bug, not this kernel's to recover
// from differently than any other bad user pointer.
func writeTID(as *mm.AddressSpace, ptr uint64, tid int) {
	buf := make([]byte, 4)
	putU32LE(buf, uint32(tid))
	mm.CopyOut(as, ptr, buf)
}

// Execve implements sys_execve: loads path as a fresh RISC-V ELF image
// into a brand-new address space, replacing Proc.AS entirely, and
// rewires the calling thread's trap context to the new entry point and
// stack. argv/envp are read from the old address space before it is
// discarded.
func (e *Env) Execve(pathPtr, argvPtr, envpPtr uint64) int64 {
	path, err := mm.TranslatedStr(e.AS, pathPtr)
	if err != nil {
		return EFAULT
	}
	argv, err := e.readStringArray(argvPtr)
	if err != nil {
		return EFAULT
	}
	envp, err := e.readStringArray(envpPtr)
	if err != nil {
		return EFAULT
	}

	n, err := e.resolvePath(ATFDCWD, path)
	if err != nil {
		return ENOENT
	}
	if n.IsDirectory {
		return EISDIR
	}
	image := n.ReadAll()

	arena := mm.NewArena(e.ArenaFrames)
	newAS, entry, sp, err := mm.FromELF(arena, image, e.StackPages)
	if err != nil {
		return EINVAL
	}

	sp, envpArr, err := pushUserArgs(newAS, sp, envp)
	if err != nil {
		return ENOMEM
	}
	sp, argvArr, err := pushUserArgs(newAS, sp, argv)
	if err != nil {
		return ENOMEM
	}

	e.Proc.Mu.Lock()
	e.Proc.AS = newAS
	e.Proc.SigActions = [64]task.SigAction{}
	e.Proc.Mu.Unlock()
	e.AS = newAS

	e.Thread.TrapCtx = task.TrapContext{Sepc: entry, UserSP: sp, KernelSP: e.Thread.TrapCtx.KernelSP}
	e.Thread.TrapCtx.Regs[10] = uint64(len(argv))
	e.Thread.TrapCtx.Regs[11] = argvArr
	e.Thread.TrapCtx.Regs[12] = envpArr
	return 0
}

// readStringArray reads a NUL-pointer-terminated array of user string
// pointers starting at arrPtr, translating each entry.
func (e *Env) readStringArray(arrPtr uint64) ([]string, error) {
	if arrPtr == 0 {
		return nil, nil
	}
	var out []string
	ptrBuf := make([]byte, 8)
	for i := uint64(0); ; i++ {
		if err := mm.CopyIn(e.AS, arrPtr+i*8, ptrBuf); err != nil {
			return nil, err
		}
		ptr := getU64LE(ptrBuf)
		if ptr == 0 {
			break
		}
		s, err := mm.TranslatedStr(e.AS, ptr)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// pushUserArgs writes each string in args (NUL-terminated) below sp, in
// reverse order, then a NUL-terminated pointer array to them, 8-byte
// aligned, returning the new stack pointer and the address of the
// pointer array.
func pushUserArgs(as *mm.AddressSpace, sp uint64, args []string) (newSP uint64, arrPtr uint64, err error) {
	ptrs := make([]uint64, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		data := append([]byte(args[i]), 0)
		sp -= uint64(len(data))
		if err := mm.CopyOut(as, sp, data); err != nil {
			return 0, 0, err
		}
		ptrs[i] = sp
	}
	sp &^= 7

	sp -= 8
	if err := mm.CopyOut(as, sp, make([]byte, 8)); err != nil {
		return 0, 0, err
	}
	for i := len(ptrs) - 1; i >= 0; i-- {
		sp -= 8
		buf := make([]byte, 8)
		putU64LE(buf, ptrs[i])
		if err := mm.CopyOut(as, sp, buf); err != nil {
			return 0, 0, err
		}
	}
	return sp, sp, nil
}

// Wait4 implements sys_wait4: reaps a zombie child matching want
// (-1 for any), writing its exit code to statusPtr if non-zero.
// WNOHANG makes a no-matching-zombie-yet result return 0 immediately
// instead of telling the caller to suspend.
func (e *Env) Wait4(want int, statusPtr uint64, options int) int64 {
	e.Proc.Mu.Lock()
	pid, exitCode, found, anyMatch := task.Wait4(e.Proc, want)
	e.Proc.Mu.Unlock()

	if !found {
		if !anyMatch {
			return ECHILD
		}
		if options&WNohang != 0 {
			return 0
		}
		return EAGAIN // caller suspends and retries; see design note in dispatch.go
	}
	if statusPtr != 0 {
		out := make([]byte, 4)
		putU32LE(out, uint32(exitCode)<<8)
		if err := mm.CopyOut(e.AS, statusPtr, out); err != nil {
			return EFAULT
		}
	}
	return int64(pid)
}

// Gettimeofday implements sys_gettimeofday: writes (sec, usec) of
// e.now() (e.Clock, or the host wall clock when Env has none) to the
// user buffer at uptr.
func (e *Env) Gettimeofday(uptr uint64) int64 {
	now := e.now()
	out := make([]byte, 16)
	putU64LE(out[0:8], uint64(now.Unix()))
	putU64LE(out[8:16], uint64(now.Nanosecond()/1000))
	if err := mm.CopyOut(e.AS, uptr, out); err != nil {
		return EFAULT
	}
	return 0
}

// Times implements sys_times: this kernel tracks no separate user/sys
// CPU-time accounting, so it reports all-zero tms and returns the
// current time from e.now(), in milliseconds, as a stand-in tick count.
func (e *Env) Times(uptr uint64) int64 {
	if uptr != 0 {
		out := make([]byte, 32)
		if err := mm.CopyOut(e.AS, uptr, out); err != nil {
			return EFAULT
		}
	}
	return int64(e.now().UnixNano() / int64(time.Millisecond))
}

// Uname implements sys_uname, reporting fixed identity strings padded
// into 65-byte fields per struct utsname.
func (e *Env) Uname(uptr uint64) int64 {
	fields := []string{"chaoskernel", "rvos", "0", "0", "riscv64", ""}
	out := make([]byte, 65*6)
	for i, f := range fields {
		copy(out[i*65:], f)
	}
	if err := mm.CopyOut(e.AS, uptr, out); err != nil {
		return EFAULT
	}
	return 0
}
