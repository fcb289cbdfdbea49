// Copyright 2024 Google LLC
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

package common

// Syscall operation names, used as structured-logging field values so
// a trace of a boot can be grepped by operation without parsing the
// numeric syscall id.
const (
	OpFork        = "fork"
	OpClone       = "clone"
	OpExec        = "exec"
	OpExit        = "exit"
	OpWaitpid     = "waitpid"
	OpGetpid      = "getpid"
	OpGetppid     = "getppid"
	OpYield       = "yield"
	OpSetPrio     = "set_priority"
	OpKill        = "kill"
	OpSigaction   = "sigaction"
	OpSigprocmask = "sigprocmask"
	OpSigreturn   = "sigreturn"

	OpBrk    = "brk"
	OpMmap   = "mmap"
	OpMunmap = "munmap"

	OpOpen          = "open"
	OpClose         = "close"
	OpRead          = "read"
	OpWrite         = "write"
	OpDup           = "dup"
	OpDup2          = "dup2"
	OpPipe          = "pipe"
	OpFstat         = "fstat"
	OpLinkat        = "linkat"
	OpUnlinkat      = "unlinkat"
	OpMkdirat       = "mkdirat"
	OpChdir         = "chdir"
	OpGetcwd        = "getcwd"
	OpGetDirEntries = "getdents"
)
