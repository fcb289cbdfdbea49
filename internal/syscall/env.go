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
	"errors"
	"strings"

	"github.com/chaoskernel/rvos/clock"
	"github.com/chaoskernel/rvos/internal/inode"
	"github.com/chaoskernel/rvos/internal/mm"
	"github.com/chaoskernel/rvos/internal/sched"
	"github.com/chaoskernel/rvos/internal/task"
	"github.com/chaoskernel/rvos/internal/vfs"
)

var errBadFD = errors.New("syscall: bad file descriptor")

// Env bundles everything one syscall invocation needs: the calling
// thread and its process, the scheduler it's enqueued on, the mounted
// filesystem's root, and the root process that reaps orphans. Dispatch
// takes an *Env so tests can drive the surface directly without a real
// trap gate or CPU interpreter, both named out of scope by the design.
type Env struct {
	Proc    *task.Process
	Thread  *task.Thread
	Sched   *sched.Scheduler
	RootDir *inode.Inode
	Root    *task.Process

	// AS is Proc's address space, used to translate every user
	// pointer argument through internal/mm before touching it.
	AS *mm.AddressSpace

	// Clock backs gettimeofday/times/nanosleep, so a test can swap in
	// a clock.SimulatedClock instead of depending on wall-clock time.
	Clock clock.Clock

	// KernelStackPages/BigStride/StackPages parameterize new threads
	// and processes created by clone/fork, mirroring the boot
	// configuration.
	KernelStackPages int
	BigStride        uint64
	StackPages       int

	// ArenaFrames sizes the physical arena a fresh address space (fork
	// or exec) is given, mirroring the boot configuration's total
	// simulated memory.
	ArenaFrames int

	// DefaultPriority is the stride-scheduler priority newly created
	// threads start at absent any other signal.
	DefaultPriority int
}

// dirNode is the subset of vfs.FileInode that directory resolution
// needs, satisfied by *inode.Inode but not by pipes or the console.
type dirNode interface {
	Find(path string) (*inode.Inode, error)
}

// resolveDirFD returns the directory an openat-family call should
// resolve path against: env.Proc.Cwd for ATFDCWD, or the directory fd
// otherwise.
func (e *Env) resolveDirFD(dirfd int32) (dirNode, error) {
	if dirfd == ATFDCWD {
		return e.Proc.Cwd, nil
	}
	f := e.Proc.Fds.Get(int(dirfd))
	if f == nil {
		return nil, errBadFD
	}
	inodeFile, ok := f.(*vfs.InodeFile)
	if !ok {
		return nil, errBadFD
	}
	dn, ok := inodeFile.Node().(dirNode)
	if !ok {
		return nil, errBadFD
	}
	return dn, nil
}

// resolvePath resolves path (absolute or relative to dirfd) within
// the mounted filesystem.
func (e *Env) resolvePath(dirfd int32, path string) (*inode.Inode, error) {
	if strings.HasPrefix(path, "/") {
		return e.RootDir.Find(strings.TrimPrefix(path, "/"))
	}
	base, err := e.resolveDirFD(dirfd)
	if err != nil {
		return nil, err
	}
	return base.Find(path)
}
