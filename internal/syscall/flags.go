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

// AT_FDCWD, per the design, is the dirfd value openat/etc. use to mean
// "relative to the current working directory".
const ATFDCWD = -100

// OpenFlags bits, matching the design's explicit numeric values (not
// the host's unix.O_* numbering, which differs across platforms).
const (
	ORdonly    = 0
	OWronly    = 1
	ORdwr      = 2
	OCreate    = 0o100
	OTrunc     = 0o1000
	ODirectory = 0o200000
)

// WaitOption bits.
const WNohang = 1

// mmap prot bits, matching golang.org/x/sys/unix's PROT_* numbering
// (RISC-V Linux ABI compatible).
const (
	ProtNone  = 0x0
	ProtRead  = 0x1
	ProtWrite = 0x2
	ProtExec  = 0x4
)

// mmap flags bits.
const (
	MapShared  = 0x01
	MapPrivate = 0x02
	MapFixed   = 0x10
	MapAnon    = 0x20
)

// Number is the RISC-V Linux-compatible syscall number carried in a7.
type Number int

// Syscall numbers actually dispatched by this surface, per the
// design's "Implemented" list.
const (
	NumGetcwd       Number = 17
	NumDup          Number = 23
	NumDup3         Number = 24
	NumFcntl        Number = 25
	NumMkdirat      Number = 34
	NumUnlinkat     Number = 35
	NumLinkat       Number = 37
	NumUmount2      Number = 39
	NumMount        Number = 40
	NumChdir        Number = 49
	NumOpenat       Number = 56
	NumClose        Number = 57
	NumPipe2        Number = 59
	NumGetdents64   Number = 61
	NumRead         Number = 63
	NumWrite        Number = 64
	NumFstat        Number = 80
	NumExit         Number = 93
	NumExitGroup    Number = 94
	NumSetTidAddr   Number = 96
	NumNanosleep    Number = 101
	NumClockGetTime Number = 113
	NumYield        Number = 124
	NumKill         Number = 129
	NumSigaction    Number = 134
	NumSigprocmask  Number = 135
	NumSigtimedwait Number = 137
	NumSigreturn    Number = 139
	NumTimes        Number = 153
	NumUname        Number = 160
	NumGettimeofday Number = 169
	NumGetpid       Number = 172
	NumGetppid      Number = 173
	NumGetuid       Number = 174
	NumGeteuid      Number = 175
	NumGetgid       Number = 176
	NumGetegid      Number = 177
	NumBrk          Number = 214
	NumMunmap       Number = 215
	NumClone        Number = 220
	NumExecve       Number = 221
	NumMmap         Number = 222
	NumWait4        Number = 260
)
