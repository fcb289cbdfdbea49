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

// Package kernel wires every other internal package into a runnable
// boot sequence: it mounts the FAT32 volume, builds the root process's
// fd table and address space from an init ELF image, and runs a
// cooperative trap loop that drives the stride scheduler and dispatches
// syscalls. The actual RISC-V trap vector, timer SBI glue, and a
// hardware instruction interpreter are out of scope for this kernel —
// Hart stands in for "the thing that executes user code between two
// syscalls", and the only Hart this package ships runs nothing at all
// between them, since there is no CPU simulator behind it.
package kernel

import (
	"context"
	"fmt"
	"os"

	"github.com/chaoskernel/rvos/clock"
	"github.com/chaoskernel/rvos/common"
	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/chaoskernel/rvos/cfg"
	"github.com/chaoskernel/rvos/internal/fat32"
	"github.com/chaoskernel/rvos/internal/inode"
	"github.com/chaoskernel/rvos/internal/logger"
	"github.com/chaoskernel/rvos/internal/mm"
	"github.com/chaoskernel/rvos/internal/sched"
	"github.com/chaoskernel/rvos/internal/syscall"
	"github.com/chaoskernel/rvos/internal/task"
	"github.com/chaoskernel/rvos/internal/vfs"
)

// Hart is the boundary this kernel draws around "executing a user
// program between traps". The trap vector assembly, the timer SBI
// glue, and an actual instruction interpreter all live below this
// interface and are out of scope; the only implementation this package
// ships is NoopHart, which reports no syscall at all. Tests install a
// Hart that replays a queued syscall sequence instead, without
// interpreting any instructions.
type Hart interface {
	// RunUntilTrap resumes t until it makes a syscall or exits,
	// returning the requested syscall number and its a0..a5 arguments.
	// ok is false once t has nothing further queued (it already ran to
	// completion).
	RunUntilTrap(t *task.Thread) (num syscall.Number, a0, a1, a2, a3, a4, a5 uint64, ok bool)
}

// Kernel owns the mounted filesystem, the stride scheduler, and the
// root process tree for one boot.
type Kernel struct {
	cfg   cfg.Config
	fs    *inode.FileSystem
	sc    *sched.Scheduler
	root  *task.Process
	hart  Hart
	clock clock.Clock
}

// New mounts dev as a FAT32 volume and constructs an otherwise-empty
// kernel ready for Boot.
func New(c cfg.Config, dev blockdev.Device) (*Kernel, error) {
	cacheCapacity := c.Disk.BlockCacheCapacity
	if cacheCapacity <= 0 {
		cacheCapacity = cfg.DefaultBlockCacheCapacity
	}
	vol, err := fat32.Load(dev, cacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("kernel: loading FAT32 volume: %w", err)
	}
	fs := inode.NewFileSystem(vol)

	return &Kernel{
		cfg:   c,
		fs:    fs,
		sc:    sched.New(),
		hart:  NoopHart{},
		clock: clock.RealClock{},
	}, nil
}

// SetHart overrides the Hart implementation, for tests that want to
// script a fixed sequence of syscalls rather than rely on the no-op
// default.
func (k *Kernel) SetHart(h Hart) { k.hart = h }

// SetClock overrides the clock backing gettimeofday/times/nanosleep,
// for tests that want deterministic or accelerated time.
func (k *Kernel) SetClock(c clock.Clock) { k.clock = c }

// envFor builds the Env a syscall dispatch against t needs.
func (k *Kernel) envFor(t *task.Thread) *syscall.Env {
	return &syscall.Env{
		Proc:             t.Process,
		Thread:           t,
		Sched:            k.sc,
		RootDir:          inode.Root(k.fs),
		Root:             k.root,
		AS:               t.Process.AS,
		KernelStackPages: k.kernelStackPages(),
		BigStride:        uint64(k.bigStride()),
		StackPages:       k.userStackPages(),
		ArenaFrames:      k.physicalFrames(),
		DefaultPriority:  k.defaultPriority(),
		Clock:            k.clock,
	}
}

func (k *Kernel) physicalFrames() int {
	if k.cfg.Memory.PhysicalFrames > 0 {
		return k.cfg.Memory.PhysicalFrames
	}
	return cfg.DefaultPhysicalFrames
}

func (k *Kernel) userStackPages() int {
	if k.cfg.Memory.UserStackPages > 0 {
		return k.cfg.Memory.UserStackPages
	}
	return 16
}

func (k *Kernel) kernelStackPages() int {
	if k.cfg.Memory.KernelStackPages > 0 {
		return k.cfg.Memory.KernelStackPages
	}
	return 2
}

func (k *Kernel) bigStride() int {
	if k.cfg.Scheduler.BigStride > 0 {
		return k.cfg.Scheduler.BigStride
	}
	return cfg.DefaultBigStride
}

func (k *Kernel) defaultPriority() int {
	if k.cfg.Scheduler.DefaultPriority > 0 {
		return k.cfg.Scheduler.DefaultPriority
	}
	return 16
}

// shutdownFn joins every cleanup step this kernel owns into one call,
// run at the end of Boot regardless of how it returns. The backing
// block device itself is the caller's (cmd/boot.go's) to close, since
// it's the caller's to open.
func (k *Kernel) shutdownFn() common.ShutdownFn {
	return common.JoinShutdownFunc(
		func(ctx context.Context) error {
			return k.fs.Vol.Cache.SyncAll()
		},
	)
}

// Boot loads initPath as the root process's program image and runs the
// scheduler loop until the root process exits, returning its exit code.
func (k *Kernel) Boot(ctx context.Context, initPath string, argv []string) (int, error) {
	defer func() {
		if err := k.shutdownFn()(ctx); err != nil {
			logger.Errorf("kernel: shutdown: %v", err)
		}
	}()

	root := task.NewRootProcess()
	root.CwdPath = "/"
	root.Cwd = inode.Root(k.fs)
	root.Fds = vfs.NewFDTable(vfs.NewConsoleIn(os.Stdin), vfs.NewConsoleOut(os.Stdout), vfs.NewConsoleOut(os.Stderr))
	k.root = root

	image, err := k.readInit(initPath)
	if err != nil {
		return 0, err
	}

	arena := mm.NewArena(k.physicalFrames())
	as, entry, sp, err := mm.FromELF(arena, image, k.userStackPages())
	if err != nil {
		return 0, fmt.Errorf("kernel: loading init image: %w", err)
	}
	root.AS = as

	t := task.NewThread(root, k.defaultPriority(), uint64(k.bigStride()), k.kernelStackPages())
	t.TrapCtx.Sepc = entry
	t.TrapCtx.UserSP = sp
	k.sc.Enqueue(t)

	logger.Infof("kernel: booting init (pid %d) at entry 0x%x", root.Pid, entry)
	return k.run(ctx)
}

// readInit resolves initPath against the mounted volume if it names an
// existing in-image file; otherwise it is treated as a host filesystem
// path, letting tests and the mkfs-adjacent workflow pass a raw ELF
// straight through without first copying it onto the image.
func (k *Kernel) readInit(initPath string) ([]byte, error) {
	n, err := inode.Root(k.fs).Find(initPath)
	if err == nil && !n.IsDirectory {
		return n.ReadAll(), nil
	}
	return readHostFile(initPath)
}

// run drains the ready queue, dispatching every syscall a thread
// traps into, until the root process has exited.
func (k *Kernel) run(ctx context.Context) (int, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		root := k.root
		root.Mu.Lock()
		exited := root.Zombie
		code := root.ExitCode
		root.Mu.Unlock()
		if exited {
			return code, nil
		}

		th, ok := k.sc.PickNext()
		if !ok {
			return 0, fmt.Errorf("kernel: ready queue empty before init exited")
		}

		num, a0, a1, a2, a3, a4, a5, trapped := k.hart.RunUntilTrap(th)
		if !trapped {
			k.sc.Remove(th)
			continue
		}

		env := k.envFor(th)
		ret := syscall.Dispatch(env, num, a0, a1, a2, a3, a4, a5)
		th.TrapCtx.Regs[10] = uint64(ret)

		zombie, blocked := k.deliverPendingSignal(th)
		if !zombie && !blocked {
			k.sc.Enqueue(th)
		}
	}
}

// deliverPendingSignal runs the dispatch algorithm's post-syscall,
// pre-return-to-user step: a signal left pending by this trap (or an
// earlier kill/raise) is processed before th is ever resumed or handed
// back to the scheduler. zombie/blocked report whether th must be kept
// off the ready queue because this delivery terminated or stopped it.
func (k *Kernel) deliverPendingSignal(th *task.Thread) (zombie, blocked bool) {
	proc := th.Process
	proc.Mu.Lock()
	zombie = proc.Zombie
	if zombie {
		proc.Mu.Unlock()
		return true, false
	}

	sig, ok := task.NextDeliverable(proc)
	if !ok {
		proc.Mu.Unlock()
		return false, false
	}

	action := proc.SigActions[sig-1]
	switch {
	case action.Handler != 0:
		task.DeliverSignal(th, sig, action.Handler)
		proc.Mu.Unlock()
		return false, false
	case task.IsStop(sig):
		th.StatusVal = task.Blocked
		proc.Mu.Unlock()
		return false, true
	case task.IsDefaultTerminating(sig):
		task.Exit(proc, 128+sig, k.root)
		proc.Mu.Unlock()
		return true, false
	default:
		proc.Mu.Unlock()
		return false, false
	}
}
