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

import "math/bits"

// Standard signal numbers this kernel gives default actions to.
const (
	SIGHUP  = 1
	SIGINT  = 2
	SIGQUIT = 3
	SIGILL  = 4
	SIGTRAP = 5
	SIGABRT = 6
	SIGBUS  = 7
	SIGFPE  = 8
	SIGKILL = 9
	SIGUSR1 = 10
	SIGSEGV = 11
	SIGUSR2 = 12
	SIGPIPE = 13
	SIGALRM = 14
	SIGTERM = 15
	SIGCHLD = 17
	SIGCONT = 18
	SIGSTOP = 19
)

// unmaskable is the set of signals sigaction/sigprocmask may never
// touch, per the design.
const unmaskable = (uint64(1) << (SIGKILL - 1)) | (uint64(1) << (SIGSTOP - 1))

// How values for sigprocmask.
const (
	SigBlock = iota
	SigUnblock
	SigSetMask
)

// Raise sets bit (sig-1) in proc's pending set. Safe to call with
// proc.Mu held, which every signal-raising path (kill, a pipe write
// hitting SIGPIPE, a default-action trigger) already holds.
func Raise(proc *Process, sig int) {
	proc.SigPending |= 1 << uint(sig-1)
}

// ApplySigProcMask updates proc's mask per how (SIG_BLOCK/UNBLOCK/
// SETMASK), refusing to ever mask SIGKILL/SIGSTOP.
func ApplySigProcMask(proc *Process, how int, set uint64) {
	set &^= unmaskable
	switch how {
	case SigBlock:
		proc.SigMask |= set
	case SigUnblock:
		proc.SigMask &^= set
	case SigSetMask:
		proc.SigMask = set
	}
}

// NextDeliverable returns the lowest-numbered signal that is pending
// and not masked, clearing it from pending, or ok=false if none is
// deliverable right now — the design's "signal raised while masked is
// delivered exactly once upon unmask" property falls directly out of
// pending staying set until the mask allows this to find it.
func NextDeliverable(proc *Process) (sig int, ok bool) {
	deliverable := proc.SigPending &^ proc.SigMask
	if deliverable == 0 {
		return 0, false
	}
	sig = bits.TrailingZeros64(deliverable) + 1
	proc.SigPending &^= 1 << uint(sig-1)
	return sig, true
}

// IsDefaultTerminating reports whether sig's default action (absent a
// user sigaction) is to terminate the process, per the design's
// "default actions handle SIGKILL/SIGSTOP/SIGSEGV/SIGILL by
// terminating or pausing".
func IsDefaultTerminating(sig int) bool {
	switch sig {
	case SIGKILL, SIGSEGV, SIGILL, SIGABRT, SIGBUS, SIGFPE, SIGQUIT, SIGTERM, SIGINT:
		return true
	default:
		return false
	}
}

// IsStop reports whether sig's default action is to pause the process.
func IsStop(sig int) bool { return sig == SIGSTOP }

// DeliverSignal rewires t to run the user handler installed for sig:
// it saves the interrupted trap context (so Sigreturn can restore it)
// and points the resumed context at handler with sig as its first
// argument, per the Linux sa_handler(int sig) calling convention.
func DeliverSignal(t *Thread, sig int, handler uint64) {
	saved := t.TrapCtx
	t.SavedTrapCtx = &saved
	t.TrapCtx.Regs[10] = uint64(sig)
	t.TrapCtx.Sepc = handler
}
