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
	"testing"
	"time"

	"github.com/chaoskernel/rvos/clock"
	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/chaoskernel/rvos/internal/fat32"
	"github.com/chaoskernel/rvos/internal/inode"
	"github.com/chaoskernel/rvos/internal/mm"
	"github.com/chaoskernel/rvos/internal/sched"
	"github.com/chaoskernel/rvos/internal/task"
	"github.com/chaoskernel/rvos/internal/vfs"
	"github.com/stretchr/testify/require"
)

const testArenaFrames = 4096

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	dev := blockdev.NewMemoryDevice(512)
	require.NoError(t, fat32.Format(dev, 512))
	vol, err := fat32.Load(dev, 16)
	require.NoError(t, err)
	fs := inode.NewFileSystem(vol)
	root := inode.Root(fs)

	arena := mm.NewArena(testArenaFrames)
	as := mm.NewAddressSpace(arena)
	as.InitHeap(0x1000)
	_, err = as.Brk(0x20000) // map a generous scratch range for test user pointers
	require.NoError(t, err)

	proc := task.NewRootProcess()
	proc.AS = as
	proc.Cwd = root
	proc.CwdPath = "/"
	proc.Fds = vfs.NewFDTable(vfs.NewConsoleIn(nil), vfs.NewConsoleOut(nil), vfs.NewConsoleOut(nil))

	thread := task.NewThread(proc, 16, 10000, 2)
	proc.Threads = []*task.Thread{thread}

	return &Env{
		Proc:             proc,
		Thread:           thread,
		Sched:            sched.New(),
		RootDir:          root,
		Root:             proc,
		AS:               as,
		KernelStackPages: 2,
		BigStride:        10000,
		StackPages:       4,
		ArenaFrames:      testArenaFrames,
		DefaultPriority:  16,
		Clock:            &clock.SimulatedClock{},
	}
}

func writeUserString(t *testing.T, as *mm.AddressSpace, addr uint64, s string) {
	t.Helper()
	require.NoError(t, mm.CopyOut(as, addr, append([]byte(s), 0)))
}

func TestOpenatCreateWriteCloseReopenRead(t *testing.T) {
	e := newTestEnv(t)
	const pathAddr = 0x2000
	const dataAddr = 0x3000
	const bufAddr = 0x4000

	writeUserString(t, e.AS, pathAddr, "hello.txt")
	fd := e.Openat(ATFDCWD, pathAddr, OCreate|ORdwr)
	require.GreaterOrEqual(t, fd, int64(0))

	data := "hello, fat32"
	require.NoError(t, mm.CopyOut(e.AS, dataAddr, []byte(data)))
	n := e.Write(int32(fd), dataAddr, uint64(len(data)))
	require.EqualValues(t, len(data), n)

	require.EqualValues(t, 0, e.Close(int32(fd)))

	fd2 := e.Openat(ATFDCWD, pathAddr, ORdonly)
	require.GreaterOrEqual(t, fd2, int64(0))

	got := e.Read(int32(fd2), bufAddr, uint64(len(data)))
	require.EqualValues(t, len(data), got)

	buf := make([]byte, len(data))
	require.NoError(t, mm.CopyIn(e.AS, bufAddr, buf))
	require.Equal(t, data, string(buf))
}

func TestOpenatMissingWithoutCreateFails(t *testing.T) {
	e := newTestEnv(t)
	const pathAddr = 0x2000
	writeUserString(t, e.AS, pathAddr, "nope.txt")
	require.Equal(t, ENOENT, e.Openat(ATFDCWD, pathAddr, ORdonly))
}

func TestPipeWriteReadRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	const fdsAddr = 0x2000
	const dataAddr = 0x3000
	const bufAddr = 0x4000

	require.EqualValues(t, 0, e.Pipe2(fdsAddr))
	fdBuf := make([]byte, 8)
	require.NoError(t, mm.CopyIn(e.AS, fdsAddr, fdBuf))
	readFd := int32(getU32LE(fdBuf[0:4]))
	writeFd := int32(getU32LE(fdBuf[4:8]))

	msg := "ping"
	require.NoError(t, mm.CopyOut(e.AS, dataAddr, []byte(msg)))
	n := e.Write(writeFd, dataAddr, uint64(len(msg)))
	require.EqualValues(t, len(msg), n)

	got := e.Read(readFd, bufAddr, uint64(len(msg)))
	require.EqualValues(t, len(msg), got)

	buf := make([]byte, len(msg))
	require.NoError(t, mm.CopyIn(e.AS, bufAddr, buf))
	require.Equal(t, msg, string(buf))
}

func TestDup3AliasesSharedOffset(t *testing.T) {
	e := newTestEnv(t)
	const pathAddr = 0x2000
	const dataAddr = 0x3000

	writeUserString(t, e.AS, pathAddr, "dup.txt")
	fd := e.Openat(ATFDCWD, pathAddr, OCreate|ORdwr)
	require.NoError(t, mm.CopyOut(e.AS, dataAddr, []byte("abc")))
	require.EqualValues(t, 3, e.Write(int32(fd), dataAddr, 3))

	newFd := int32(10)
	require.EqualValues(t, newFd, e.Dup3(int32(fd), newFd))

	require.NoError(t, mm.CopyOut(e.AS, dataAddr, []byte("def")))
	require.EqualValues(t, 3, e.Write(newFd, dataAddr, 3))

	require.EqualValues(t, 0, e.Close(int32(fd)))
	fd2 := e.Openat(ATFDCWD, pathAddr, ORdonly)
	buf := make([]byte, 6)
	got := e.Read(int32(fd2), dataAddr+0x1000, 6)
	require.EqualValues(t, 6, got)
	require.NoError(t, mm.CopyIn(e.AS, dataAddr+0x1000, buf))
	require.Equal(t, "abcdef", string(buf))
}

func TestBrkMmapMunmap(t *testing.T) {
	e := newTestEnv(t)

	end := e.Brk(0x2000)
	require.EqualValues(t, 0x2000, end)

	addr := e.Mmap(0, 4096, ProtRead|ProtWrite, MapPrivate|MapAnon, -1, 0)
	require.Greater(t, addr, int64(0))

	require.EqualValues(t, 0, e.Munmap(uint64(addr), 4096))
}

func TestKillAndSignalDelivery(t *testing.T) {
	e := newTestEnv(t)
	require.EqualValues(t, 0, e.Kill(e.Proc.Pid, task.SIGUSR1))

	e.Proc.Mu.Lock()
	sig, ok := task.NextDeliverable(e.Proc)
	e.Proc.Mu.Unlock()
	require.True(t, ok)
	require.Equal(t, task.SIGUSR1, sig)
}

func TestNanosleepUsesInjectedClock(t *testing.T) {
	e := newTestEnv(t)
	sc := e.Clock.(*clock.SimulatedClock)
	const reqAddr = 0x2000

	req := make([]byte, 16)
	putU64LE(req[0:8], 0)          // seconds
	putU64LE(req[8:16], 1_000_000) // nanoseconds
	require.NoError(t, mm.CopyOut(e.AS, reqAddr, req))

	done := make(chan int64, 1)
	go func() { done <- e.Nanosleep(reqAddr) }()

	// Give the goroutine a chance to register its After() wait, then
	// advance the simulated clock past it; SimulatedClock.After never
	// fires on its own.
	require.Eventually(t, func() bool {
		sc.AdvanceTime(2 * time.Millisecond)
		select {
		case ret := <-done:
			require.EqualValues(t, 0, ret)
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func TestSigprocmaskRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	const oldAddr = 0x2000

	mask := uint64(1) << (task.SIGUSR1 - 1)
	require.EqualValues(t, 0, e.Sigprocmask(task.SigBlock, mask, oldAddr))

	e.Proc.Mu.Lock()
	require.Equal(t, mask, e.Proc.SigMask)
	e.Proc.Mu.Unlock()
}

func TestForkChildSharesFilesButHasOwnAddressSpace(t *testing.T) {
	e := newTestEnv(t)
	childPid := e.Clone(0, 0, 0, 0, 0)
	require.Greater(t, childPid, int64(0))
	require.Len(t, e.Proc.Children, 1)

	child := e.Proc.Children[0]
	require.NotSame(t, e.Proc.AS, child.AS)
	require.Same(t, e.Proc.Fds.Get(1), child.Fds.Get(1))
}

func TestWait4ReapsExitedChild(t *testing.T) {
	e := newTestEnv(t)
	childEnv := newTestEnv(t)
	childEnv.Proc.Parent = e.Proc
	childEnv.Root = e.Proc
	e.Proc.Children = append(e.Proc.Children, childEnv.Proc)

	require.EqualValues(t, 0, childEnv.ExitGroup(7))

	pid := e.Wait4(-1, 0, 0)
	require.EqualValues(t, childEnv.Proc.Pid, pid)
}

func TestWait4NoChildrenIsECHILD(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ECHILD, e.Wait4(-1, 0, 0))
}

func TestGetcwdAndChdir(t *testing.T) {
	e := newTestEnv(t)
	const pathAddr = 0x2000
	const bufAddr = 0x3000

	writeUserString(t, e.AS, pathAddr, "sub")
	require.EqualValues(t, 0, e.Mkdirat(ATFDCWD, pathAddr))
	require.EqualValues(t, 0, e.Chdir(pathAddr))
	require.Equal(t, "/sub", e.Proc.CwdPath)

	got := e.Getcwd(bufAddr, 32)
	require.Greater(t, got, int64(0))
}

func getU32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
