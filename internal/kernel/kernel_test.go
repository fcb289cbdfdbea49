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

package kernel

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/chaoskernel/rvos/cfg"
	"github.com/chaoskernel/rvos/internal/blockdev"
	"github.com/chaoskernel/rvos/internal/fat32"
	"github.com/chaoskernel/rvos/internal/inode"
	"github.com/chaoskernel/rvos/internal/syscall"
	"github.com/chaoskernel/rvos/internal/task"
	"github.com/stretchr/testify/require"
)

// scriptedHart replays a fixed sequence of syscall requests, one per
// thread resumption, standing in for an instruction interpreter this
// package doesn't implement.
type scriptedHart struct {
	steps []step
	i     int
}

type step struct {
	num                    syscall.Number
	a0, a1, a2, a3, a4, a5 uint64
}

func (h *scriptedHart) RunUntilTrap(t *task.Thread) (syscall.Number, uint64, uint64, uint64, uint64, uint64, uint64, bool) {
	if h.i >= len(h.steps) {
		return 0, 0, 0, 0, 0, 0, 0, false
	}
	s := h.steps[h.i]
	h.i++
	return s.num, s.a0, s.a1, s.a2, s.a3, s.a4, s.a5, true
}

// buildMinimalRISCVELF returns a single-segment, statically-linked
// rv64 ET_EXEC image with no real code, just enough for debug/elf and
// mm.FromELF to accept it.
func buildMinimalRISCVELF(vaddr uint64) []byte {
	const ehsize = 64
	const phsize = 56
	code := []byte{0x13, 0x00, 0x00, 0x00} // addi x0, x0, 0 (nop)
	filesz := uint64(ehsize + phsize + len(code))

	buf := make([]byte, filesz)
	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB
	buf[6] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(buf[16:18], 2)                 // e_type = ET_EXEC
	binary.LittleEndian.PutUint16(buf[18:20], 243)                // e_machine = EM_RISCV
	binary.LittleEndian.PutUint32(buf[20:24], 1)                  // e_version
	binary.LittleEndian.PutUint64(buf[24:32], vaddr+ehsize+phsize) // e_entry
	binary.LittleEndian.PutUint64(buf[32:40], ehsize)             // e_phoff
	binary.LittleEndian.PutUint16(buf[52:54], ehsize)             // e_ehsize
	binary.LittleEndian.PutUint16(buf[54:56], phsize)             // e_phentsize
	binary.LittleEndian.PutUint16(buf[56:58], 1)                  // e_phnum

	ph := buf[ehsize : ehsize+phsize]
	binary.LittleEndian.PutUint32(ph[0:4], 1)       // p_type = PT_LOAD
	binary.LittleEndian.PutUint32(ph[4:8], 5)       // p_flags = PF_R|PF_X
	binary.LittleEndian.PutUint64(ph[8:16], 0)      // p_offset
	binary.LittleEndian.PutUint64(ph[16:24], vaddr) // p_vaddr
	binary.LittleEndian.PutUint64(ph[24:32], vaddr) // p_paddr
	binary.LittleEndian.PutUint64(ph[32:40], filesz)
	binary.LittleEndian.PutUint64(ph[40:48], filesz)
	binary.LittleEndian.PutUint64(ph[48:56], 0x1000) // p_align

	copy(buf[ehsize+phsize:], code)
	return buf
}

func testConfig() cfg.Config {
	var c cfg.Config
	c.Memory.PhysicalFrames = 256
	c.Memory.UserStackPages = 4
	c.Memory.KernelStackPages = 2
	c.Scheduler.BigStride = 10000
	c.Scheduler.DefaultPriority = 16
	return c
}

func newTestDisk(t *testing.T) *blockdev.MemoryDevice {
	t.Helper()
	dev := blockdev.NewMemoryDevice(512)
	require.NoError(t, fat32.Format(dev, 512))
	return dev
}

func TestNewMountsVolume(t *testing.T) {
	dev := newTestDisk(t)
	k, err := New(testConfig(), dev)
	require.NoError(t, err)
	require.NotNil(t, k.fs)
}

func TestBootRunsInitUntilExitGroup(t *testing.T) {
	dev := newTestDisk(t)
	k, err := New(testConfig(), dev)
	require.NoError(t, err)

	k.SetHart(&scriptedHart{steps: []step{
		{num: syscall.NumExitGroup, a0: 42},
	}})

	dir := t.TempDir()
	initPath := filepath.Join(dir, "init")
	require.NoError(t, os.WriteFile(initPath, buildMinimalRISCVELF(0x10000), 0o644))

	code, err := k.Boot(context.Background(), initPath, nil)
	require.NoError(t, err)
	require.Equal(t, 42, code)
}

func TestBootReadsInitFromMountedVolume(t *testing.T) {
	dev := newTestDisk(t)
	vol, err := fat32.Load(dev, 16)
	require.NoError(t, err)
	fs := inode.NewFileSystem(vol)
	root := inode.Root(fs)

	image := buildMinimalRISCVELF(0x10000)
	n, err := root.Create("init", false)
	require.NoError(t, err)
	require.Equal(t, len(image), n.WriteAt(0, image))
	require.NoError(t, vol.Cache.SyncAll())

	k, err := New(testConfig(), dev)
	require.NoError(t, err)
	k.SetHart(&scriptedHart{steps: []step{{num: syscall.NumExitGroup, a0: 7}}})

	code, err := k.Boot(context.Background(), "/init", nil)
	require.NoError(t, err)
	require.Equal(t, 7, code)
}
