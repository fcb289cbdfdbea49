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

// Package syscall is the RISC-V Linux-compatible syscall surface:
// numbers in a7, arguments in a0..a5, return in a0 with negative
// values as errno. It marshals user pointers through internal/mm,
// dispatches to internal/task, internal/sched, internal/vfs, and
// internal/inode, and maps their Go errors onto the errno surface.
package syscall

import "golang.org/x/sys/unix"

// Errno values returned (negated) in a0, drawn from the real Linux
// numbers via golang.org/x/sys/unix so they match what userspace
// expects rather than inventing kernel-local numbering.
const (
	EPERM   = int64(-unix.EPERM)
	ENOENT  = int64(-unix.ENOENT)
	ESRCH   = int64(-unix.ESRCH)
	EINVAL  = int64(-unix.EINVAL)
	EAGAIN  = int64(-unix.EAGAIN)
	ECHILD  = int64(-unix.ECHILD)
	EFAULT  = int64(-unix.EFAULT)
	EPIPE   = int64(-unix.EPIPE)
	EBADF   = int64(-unix.EBADF)
	ENOMEM  = int64(-unix.ENOMEM)
	ENOTDIR = int64(-unix.ENOTDIR)
	EISDIR  = int64(-unix.EISDIR)
	EEXIST  = int64(-unix.EEXIST)
)
