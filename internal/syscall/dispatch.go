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
	"github.com/chaoskernel/rvos/common"
	"github.com/chaoskernel/rvos/internal/logger"
	"golang.org/x/sys/unix"
)

// ENOSYS is returned when num isn't in the surface this kernel
// implements.
var ENOSYS = int64(-unix.ENOSYS)

// opNames maps the syscall numbers this kernel implements to the
// structured-logging field names in common, so a trace of a boot can
// be grepped by operation without decoding the raw a7 number.
var opNames = map[Number]string{
	NumRead:        common.OpRead,
	NumWrite:       common.OpWrite,
	NumOpenat:      common.OpOpen,
	NumClose:       common.OpClose,
	NumPipe2:       common.OpPipe,
	NumDup:         common.OpDup,
	NumDup3:        common.OpDup2,
	NumFstat:       common.OpFstat,
	NumLinkat:      common.OpLinkat,
	NumUnlinkat:    common.OpUnlinkat,
	NumGetcwd:      common.OpGetcwd,
	NumChdir:       common.OpChdir,
	NumMkdirat:     common.OpMkdirat,
	NumGetdents64:  common.OpGetDirEntries,
	NumExit:        common.OpExit,
	NumExitGroup:   common.OpExit,
	NumYield:       common.OpYield,
	NumGetpid:      common.OpGetpid,
	NumGetppid:     common.OpGetppid,
	NumClone:       common.OpClone,
	NumExecve:      common.OpExec,
	NumWait4:       common.OpWaitpid,
	NumBrk:         common.OpBrk,
	NumMmap:        common.OpMmap,
	NumMunmap:      common.OpMunmap,
	NumKill:        common.OpKill,
	NumSigaction:   common.OpSigaction,
	NumSigprocmask: common.OpSigprocmask,
	NumSigreturn:   common.OpSigreturn,
}

// Dispatch routes one syscall invocation by its RISC-V a7 number to
// the handler that implements it, translating a0..a5 as that handler
// needs. It is the entry point the kernel's run loop drives the whole
// syscall surface through; this package's own tests call the handler
// methods on Env directly.
//
// Wait4 in blocking mode (no WNOHANG, no zombie child yet) returns
// EAGAIN rather than suspending the caller: this kernel has no trap
// loop to resume into, so a caller wanting blocking-wait semantics is
// expected to re-issue the call (optionally after Yield) until it sees
// a non-EAGAIN result, exactly mirroring what a real suspend-and-retry
// loop would observe from the scheduler's point of view.
func Dispatch(e *Env, num Number, a0, a1, a2, a3, a4, a5 uint64) int64 {
	e.Thread.RecordSyscall(int(num))
	if op, ok := opNames[num]; ok {
		logger.Tracef("pid %d tid %d: syscall %s", e.Proc.Pid, e.Thread.Tid, op)
	}

	switch num {
	case NumRead:
		return e.Read(int32(a0), a1, a2)
	case NumWrite:
		return e.Write(int32(a0), a1, a2)
	case NumOpenat:
		return e.Openat(int32(a0), a1, uint32(a2))
	case NumClose:
		return e.Close(int32(a0))
	case NumPipe2:
		return e.Pipe2(a0)
	case NumDup:
		return e.Dup(int32(a0))
	case NumDup3:
		return e.Dup3(int32(a0), int32(a1))
	case NumFstat:
		return e.Fstat(int32(a0), a1)
	case NumLinkat:
		return e.Linkat(a1, a3)
	case NumUnlinkat:
		return e.Unlinkat(int32(a0), a1)
	case NumGetcwd:
		return e.Getcwd(a0, a1)
	case NumChdir:
		return e.Chdir(a0)
	case NumMkdirat:
		return e.Mkdirat(int32(a0), a1)
	case NumGetdents64:
		return e.Getdents64(int32(a0), a1, a2)
	case NumMount:
		return e.MountStub()
	case NumUmount2:
		return e.UmountStub()

	case NumExit:
		return e.Exit(int(int32(a0)))
	case NumExitGroup:
		return e.ExitGroup(int(int32(a0)))
	case NumYield:
		return e.Yield()
	case NumGetpid:
		return e.Getpid()
	case NumGetppid:
		return e.Getppid()
	case NumGetuid:
		return e.Getuid()
	case NumGeteuid:
		return e.Geteuid()
	case NumGetgid:
		return e.Getgid()
	case NumGetegid:
		return e.Getegid()
	case NumClone:
		return e.Clone(a0, a1, a2, a3, a4)
	case NumExecve:
		return e.Execve(a0, a1, a2)
	case NumWait4:
		return e.Wait4(int(int32(a0)), a2, int(a3))
	case NumGettimeofday:
		return e.Gettimeofday(a0)
	case NumTimes:
		return e.Times(a0)
	case NumUname:
		return e.Uname(a0)
	case NumSetTidAddr:
		return int64(e.Thread.Tid)

	case NumBrk:
		return e.Brk(a0)
	case NumMmap:
		return e.Mmap(a0, a1, uint32(a2), uint32(a3), int32(a4), a5)
	case NumMunmap:
		return e.Munmap(a0, a1)

	case NumKill:
		return e.Kill(int(int32(a0)), int(a1))
	case NumSigaction:
		return e.Sigaction(int(a0), a1, a2, a3)
	case NumSigprocmask:
		return e.Sigprocmask(int(a0), a1, a2)
	case NumSigreturn:
		return e.Sigreturn()
	case NumNanosleep:
		return e.Nanosleep(a0)
	case NumClockGetTime:
		return e.Gettimeofday(a1)
	case NumSigtimedwait:
		return ENOSYS

	case NumFcntl:
		return 0 // no fd flags (e.g. close-on-exec) are modeled beyond CloseOnExec's predicate hook

	default:
		return ENOSYS
	}
}
