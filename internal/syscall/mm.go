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
	"github.com/chaoskernel/rvos/internal/mm"
	"github.com/chaoskernel/rvos/internal/vfs"
)

// Brk implements sys_brk: addr==0 just reports the current break.
func (e *Env) Brk(addr uint64) int64 {
	end, err := e.AS.Brk(addr)
	if err != nil {
		return EINVAL
	}
	return int64(end)
}

// Mmap implements sys_mmap. This kernel maps everything eagerly
// (anonymous zero-filled or file-backed copied up front), so MAP_FIXED
// is honored as a plain starting hint and there is no fault-in path.
// Absent MAP_ANON, fd is resolved against the caller's fd table and its
// inode's bytes starting at off are read eagerly into the new VMA.
func (e *Env) Mmap(addr, length uint64, prot uint32, flags uint32, fd int32, off uint64) int64 {
	perm := protToPerm(prot)
	if flags&MapFixed == 0 {
		addr = 0
	}

	if flags&MapAnon != 0 {
		start, err := e.AS.Mmap(addr, length, perm, mm.BackingAnonymous, nil)
		if err != nil {
			return ENOMEM
		}
		return int64(start)
	}

	f := e.Proc.Fds.Get(int(fd))
	if f == nil {
		return EBADF
	}
	inodeFile, ok := f.(*vfs.InodeFile)
	if !ok {
		return EBADF
	}
	data := make([]byte, length)
	n := inodeFile.Node().ReadAt(int64(off), data)
	start, err := e.AS.Mmap(addr, length, perm, mm.BackingFile, data[:n])
	if err != nil {
		return ENOMEM
	}
	return int64(start)
}

// Munmap implements sys_munmap: this design only supports unmapping a
// region that exactly matches one VMA previously returned by mmap.
func (e *Env) Munmap(addr, length uint64) int64 {
	if err := e.AS.Munmap(addr, length); err != nil {
		return EINVAL
	}
	return 0
}

func protToPerm(prot uint32) mm.Perm {
	perm := mm.PermU
	if prot&ProtRead != 0 {
		perm |= mm.PermR
	}
	if prot&ProtWrite != 0 {
		perm |= mm.PermW
	}
	if prot&ProtExec != 0 {
		perm |= mm.PermX
	}
	return perm
}
