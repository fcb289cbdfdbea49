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

	"github.com/chaoskernel/rvos/internal/inode"
	"github.com/chaoskernel/rvos/internal/mm"
	"github.com/chaoskernel/rvos/internal/vfs"
)

// Read implements sys_read: reads up to length bytes from fd into the
// user buffer at uptr.
func (e *Env) Read(fd int32, uptr uint64, length uint64) int64 {
	f := e.Proc.Fds.Get(int(fd))
	if f == nil {
		return EBADF
	}
	if !f.Readable() {
		return EBADF
	}
	buf := make([]byte, length)
	n, err := f.Read(buf)
	if errors.Is(err, vfs.ErrWouldBlock) {
		return EAGAIN
	}
	if err != nil {
		return EINVAL
	}
	if err := mm.CopyOut(e.AS, uptr, buf[:n]); err != nil {
		return EFAULT
	}
	return int64(n)
}

// Write implements sys_write: writes length bytes from the user
// buffer at uptr to fd.
func (e *Env) Write(fd int32, uptr uint64, length uint64) int64 {
	f := e.Proc.Fds.Get(int(fd))
	if f == nil {
		return EBADF
	}
	if !f.Writable() {
		return EBADF
	}
	buf := make([]byte, length)
	if err := mm.CopyIn(e.AS, uptr, buf); err != nil {
		return EFAULT
	}
	n, err := f.Write(buf)
	if errors.Is(err, vfs.ErrPipeClosed) {
		return EPIPE
	}
	if errors.Is(err, vfs.ErrWouldBlock) {
		return EAGAIN
	}
	if err != nil {
		return EINVAL
	}
	return int64(n)
}

// Openat implements sys_openat: resolves path (relative to dirfd
// unless absolute), optionally creating it, and installs a new fd.
func (e *Env) Openat(dirfd int32, pathPtr uint64, flags uint32) int64 {
	path, err := mm.TranslatedStr(e.AS, pathPtr)
	if err != nil {
		return EFAULT
	}

	n, err := e.resolvePath(dirfd, path)
	if errors.Is(err, inode.ErrNotFound) {
		if flags&OCreate == 0 {
			return ENOENT
		}
		dir, derr := e.resolveDirFDForCreate(dirfd, path)
		if derr != nil {
			return ENOENT
		}
		name, leafDir, cerr := e.findLeaf(dir, path)
		if cerr != nil {
			return ENOENT
		}
		n, err = leafDir.Create(name, flags&ODirectory != 0)
		if err != nil {
			return EEXIST
		}
	} else if err != nil {
		return ENOENT
	}

	readable := flags&ORdwr != 0 || flags&OWronly == 0
	writable := flags&ORdwr != 0 || flags&OWronly != 0
	fd := e.Proc.Fds.Alloc(vfs.NewInodeFile(n, readable, writable))
	return int64(fd)
}

// findLeaf splits path into (parent directory, leaf name) by walking
// every component but the last, used by Openat's O_CREAT path.
func (e *Env) findLeaf(dir *inode.Inode, path string) (name string, parent *inode.Inode, err error) {
	idx := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return path, dir, nil
	}
	parentPath, leaf := path[:idx], path[idx+1:]
	parent, err = dir.Find(parentPath)
	return leaf, parent, err
}

func (e *Env) resolveDirFDForCreate(dirfd int32, path string) (*inode.Inode, error) {
	if len(path) > 0 && path[0] == '/' {
		return e.RootDir, nil
	}
	n, err := e.resolveDirFD(dirfd)
	if err != nil {
		return nil, err
	}
	concrete, ok := n.(*inode.Inode)
	if !ok {
		return nil, errBadFD
	}
	return concrete, nil
}

// Close implements sys_close.
func (e *Env) Close(fd int32) int64 {
	if !e.Proc.Fds.Close(int(fd)) {
		return EBADF
	}
	return 0
}

// Pipe2 implements sys_pipe2: creates a connected pipe pair and writes
// [readFd, writeFd] to the user buffer at uptr.
func (e *Env) Pipe2(uptr uint64) int64 {
	r, w := vfs.NewPipe()
	readFd := e.Proc.Fds.Alloc(r)
	writeFd := e.Proc.Fds.Alloc(w)

	out := make([]byte, 8)
	putU32LE(out[0:4], uint32(readFd))
	putU32LE(out[4:8], uint32(writeFd))
	if err := mm.CopyOut(e.AS, uptr, out); err != nil {
		return EFAULT
	}
	return 0
}

// Dup implements sys_dup.
func (e *Env) Dup(fd int32) int64 {
	newFD := e.Proc.Fds.Dup(int(fd))
	if newFD < 0 {
		return EBADF
	}
	return int64(newFD)
}

// Dup3 implements sys_dup3.
func (e *Env) Dup3(fd, newFd int32) int64 {
	got := e.Proc.Fds.Dup3(int(fd), int(newFd))
	if got < 0 {
		return EBADF
	}
	return int64(got)
}

// Fstat implements sys_fstat: writes the (mode, size) record to the
// user buffer at uptr.
func (e *Env) Fstat(fd int32, uptr uint64) int64 {
	f := e.Proc.Fds.Get(int(fd))
	if f == nil {
		return EBADF
	}
	mode, size, ok := f.Fstat()
	if !ok {
		return EINVAL
	}
	out := make([]byte, 12)
	putU32LE(out[0:4], mode)
	putU64LE(out[4:12], size)
	if err := mm.CopyOut(e.AS, uptr, out); err != nil {
		return EFAULT
	}
	return 0
}

// Linkat implements sys_linkat, supported only for regular files:
// creates a second directory entry pointing at the same cluster chain.
func (e *Env) Linkat(oldPtr, newPtr uint64) int64 {
	oldPath, err := mm.TranslatedStr(e.AS, oldPtr)
	if err != nil {
		return EFAULT
	}
	newPath, err := mm.TranslatedStr(e.AS, newPtr)
	if err != nil {
		return EFAULT
	}

	src, err := e.RootDir.Find(oldPath)
	if err != nil {
		return ENOENT
	}
	name, parent, err := e.findLeaf(e.RootDir, newPath)
	if err != nil {
		return ENOENT
	}
	if err := parent.Link(name, src); err != nil {
		return EEXIST
	}
	return 0
}

// Unlinkat implements sys_unlinkat.
func (e *Env) Unlinkat(dirfd int32, pathPtr uint64) int64 {
	path, err := mm.TranslatedStr(e.AS, pathPtr)
	if err != nil {
		return EFAULT
	}
	dir, err := e.resolveDirFD(dirfd)
	if err != nil {
		return EBADF
	}
	concrete, ok := dir.(*inode.Inode)
	if !ok {
		return EBADF
	}
	if err := concrete.Unlink(path); err != nil {
		return ENOENT
	}
	return 0
}

// Getcwd implements sys_getcwd: writes the absolute path of Proc.Cwd,
// NUL-terminated, into the user buffer at uptr, capped to length.
func (e *Env) Getcwd(uptr uint64, length uint64) int64 {
	out := append([]byte(e.Proc.CwdPath), 0)
	if uint64(len(out)) > length {
		out = out[:length]
	}
	if err := mm.CopyOut(e.AS, uptr, out); err != nil {
		return EFAULT
	}
	return int64(uptr)
}

// Chdir implements sys_chdir.
func (e *Env) Chdir(pathPtr uint64) int64 {
	path, err := mm.TranslatedStr(e.AS, pathPtr)
	if err != nil {
		return EFAULT
	}
	n, err := e.Proc.Cwd.Find(path)
	if err != nil {
		return ENOENT
	}
	if !n.IsDirectory {
		return ENOTDIR
	}
	e.Proc.Cwd = n
	e.Proc.CwdPath = joinCwd(e.Proc.CwdPath, path)
	return 0
}

// joinCwd computes the new cwd path string after a chdir to path
// (absolute or relative to base), purely for getcwd's benefit — path
// resolution itself always goes through the Inode tree, never this
// string.
func joinCwd(base, path string) string {
	if len(path) > 0 && path[0] == '/' {
		return cleanPath(path)
	}
	if base == "/" {
		return cleanPath("/" + path)
	}
	return cleanPath(base + "/" + path)
}

// cleanPath collapses "." and ".." components and duplicate slashes in
// an absolute path.
func cleanPath(p string) string {
	parts := make([]string, 0, 8)
	for _, part := range splitSlash(p) {
		switch part {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, part)
		}
	}
	out := "/"
	for i, part := range parts {
		if i > 0 {
			out += "/"
		}
		out += part
	}
	return out
}

func splitSlash(p string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			parts = append(parts, p[start:i])
			start = i + 1
		}
	}
	parts = append(parts, p[start:])
	return parts
}

// Mkdirat implements sys_mkdirat.
func (e *Env) Mkdirat(dirfd int32, pathPtr uint64) int64 {
	path, err := mm.TranslatedStr(e.AS, pathPtr)
	if err != nil {
		return EFAULT
	}
	dir, err := e.resolveDirFDForCreate(dirfd, path)
	if err != nil {
		return ENOENT
	}
	name, parent, err := e.findLeaf(dir, path)
	if err != nil {
		return ENOENT
	}
	if _, err := parent.Create(name, true); err != nil {
		return EEXIST
	}
	return 0
}

// Getdents64 implements sys_getdents64: writes each child name of fd's
// directory as a NUL-terminated string, back to back, into the user
// buffer, stopping before exceeding length.
func (e *Env) Getdents64(fd int32, uptr uint64, length uint64) int64 {
	f := e.Proc.Fds.Get(int(fd))
	if f == nil {
		return EBADF
	}
	inodeFile, ok := f.(*vfs.InodeFile)
	if !ok {
		return EBADF
	}
	n, ok := inodeFile.Node().(*inode.Inode)
	if !ok || !n.IsDirectory {
		return ENOTDIR
	}
	names, err := n.ReadDir()
	if err != nil {
		return EINVAL
	}

	var out []byte
	for _, name := range names {
		entry := append([]byte(name), 0)
		if uint64(len(out)+len(entry)) > length {
			break
		}
		out = append(out, entry...)
	}
	if err := mm.CopyOut(e.AS, uptr, out); err != nil {
		return EFAULT
	}
	return int64(len(out))
}

// MountStub / UmountStub implement sys_mount/sys_umount2 as the
// design's documented no-ops: this kernel only ever has one mounted
// volume, fixed at boot.
func (e *Env) MountStub() int64  { return 0 }
func (e *Env) UmountStub() int64 { return 0 }

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
