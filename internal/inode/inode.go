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

// Package inode is the kernel-side handle to a file or directory: path
// resolution, creation, and unlinking over a fat32.Volume, plus the
// cluster-chain-walking read/write that backs regular-file I/O. An
// Inode itself carries no lock — mutations go through the owning
// FileSystem's mutex, per the design's note that the filesystem lock
// subsumes inode-level locking.
package inode

import (
	"errors"
	"strings"

	"github.com/chaoskernel/rvos/common"
	"github.com/chaoskernel/rvos/internal/fat32"
	"github.com/jacobsa/gcloud/syncutil"
)

var (
	ErrNotFound   = errors.New("inode: no such file or directory")
	ErrExists     = errors.New("inode: file exists")
	ErrNotDir     = errors.New("inode: not a directory")
	ErrIsDir      = errors.New("inode: is a directory")
	ErrVolumeFull = errors.New("inode: volume full")
)

// FileSystem owns a mounted volume and the single mutex guarding every
// multi-step tree mutation (lookup-then-insert, lookup-then-remove)
// performed through it. Individual Volume/FAT/cache operations have
// their own locks below this one, per the kernel's lock ordering
// (FS volume -> FAT -> block cache).
type FileSystem struct {
	Vol *fat32.Volume
	Mu  syncutil.InvariantMutex // GUARDED_BY: nothing; guards the tree below
}

// NewFileSystem wraps an already-loaded volume.
func NewFileSystem(vol *fat32.Volume) *FileSystem {
	fs := &FileSystem{Vol: vol}
	fs.Mu = syncutil.NewInvariantMutex(fs.checkInvariants)
	return fs
}

func (fs *FileSystem) checkInvariants() {
	if fs.Vol == nil {
		panic("inode.FileSystem: Vol must never be nil")
	}
}

// Inode is a handle to one file or directory in the volume.
type Inode struct {
	fs           *FileSystem
	IsDirectory  bool
	StartCluster uint32
	FileSize     uint32

	// Position of this inode's own directory entry, used by Unlink and
	// by WriteAt to persist an updated size. Zero value (ShortSector
	// == 0 && ShortOffset == 0) marks the root, which has no entry of
	// its own.
	entry fat32.DirEntry
	// parentDirCluster is where entry lives, needed to rewrite entry
	// after a size-changing write.
	parentDirCluster uint32
}

// Root returns the inode for the volume's root directory.
func Root(fs *FileSystem) *Inode {
	return &Inode{fs: fs, IsDirectory: true, StartCluster: fs.Vol.SB.RootCluster}
}

// Dir reports whether n is a directory, for callers that only hold n
// through an interface and can't see the IsDirectory field directly.
func (n *Inode) Dir() bool { return n.IsDirectory }

// Fstat returns the (mode, size) pair the stat syscall exposes.
func (n *Inode) Fstat() (mode uint32, size uint64) {
	const (
		statModeFile = 0o100000
		statModeDir  = 0o040000
	)
	if n.IsDirectory {
		return statModeDir, 0
	}
	return statModeFile, uint64(n.FileSize)
}

// splitFirst splits path on the first '/', skipping repeated
// separators, and reports whether a remainder follows.
func splitFirst(path string) (name, rest string, hasRest bool) {
	path = strings.TrimPrefix(path, "/")
	i := strings.IndexByte(path, '/')
	if i < 0 {
		return path, "", false
	}
	return path[:i], strings.TrimLeft(path[i+1:], "/"), true
}

// Find resolves a '/'-separated path relative to n, skipping "." and
// matching names case-insensitively against the decoded (possibly long)
// name. A ".." component is not followed up a level by this layer
// (callers track cwd); it fails with ErrNotFound.
func (n *Inode) Find(path string) (*Inode, error) {
	if path == "" || path == "." {
		return n, nil
	}
	if !n.IsDirectory {
		return nil, ErrNotDir
	}

	n.fs.Mu.Lock()
	defer n.fs.Mu.Unlock()
	return n.findLocked(path)
}

func (n *Inode) findLocked(path string) (*Inode, error) {
	name, rest, hasRest := splitFirst(path)
	if name == "" || name == "." {
		if hasRest {
			return n.findLocked(rest)
		}
		return n, nil
	}
	if name == ".." {
		// Parent traversal is resolved by the caller's cwd chain; at
		// the volume layer ".." simply isn't stored, so report not
		// found rather than silently no-op.
		return nil, ErrNotFound
	}

	sector, offset := n.fs.Vol.FAT.ClusterIDToSectorID(n.StartCluster), 0
	for {
		d, ok := n.fs.Vol.GetDentry(&sector, &offset)
		if !ok {
			return nil, ErrNotFound
		}
		if !strings.EqualFold(d.Name, name) {
			continue
		}
		child := &Inode{
			fs:               n.fs,
			IsDirectory:      d.Attr&fat32.AttrDirectory != 0,
			StartCluster:     d.StartCluster,
			FileSize:         d.FileSize,
			entry:            d,
			parentDirCluster: n.StartCluster,
		}
		if hasRest {
			return child.findLocked(rest)
		}
		return child, nil
	}
}

// Create adds a new entry named name as a direct child of directory n.
// Fails with ErrExists if the name is already present.
func (n *Inode) Create(name string, isDir bool) (*Inode, error) {
	if !n.IsDirectory {
		return nil, ErrNotDir
	}

	n.fs.Mu.Lock()
	defer n.fs.Mu.Unlock()

	if _, err := n.findLocked(name); err == nil {
		return nil, ErrExists
	}

	start, ok := n.fs.Vol.FAT.AllocNewCluster()
	if !ok {
		return nil, ErrVolumeFull
	}
	zero := make([]byte, n.fs.Vol.SB.ClusterSize())
	n.fs.Vol.WriteCluster(start, zero)

	attr := byte(fat32.AttrArchive)
	if isDir {
		attr = fat32.AttrDirectory
	}
	d := n.fs.Vol.InsertDentry(n.StartCluster, name, attr, 0, start)

	return &Inode{
		fs:               n.fs,
		IsDirectory:      isDir,
		StartCluster:     start,
		FileSize:         0,
		entry:            d,
		parentDirCluster: n.StartCluster,
	}, nil
}

// Unlink removes path (resolved relative to n) from its parent
// directory and frees its cluster chain. The reference design this
// implements leaks the chain on unlink; this kernel frees it instead
// (see DESIGN.md).
func (n *Inode) Unlink(path string) error {
	n.fs.Mu.Lock()
	defer n.fs.Mu.Unlock()

	target, err := n.findLocked(path)
	if err != nil {
		return err
	}
	if target.entry.ShortSector == 0 && target.entry.ShortOffset == 0 && target != n {
		// Defensive: should be unreachable since only Root has a zero
		// entry and Root is never returned for a non-"."/"" path.
		return ErrNotFound
	}

	n.fs.Vol.RemoveDentry(target.entry)
	n.fs.Vol.FAT.FreeChain(target.StartCluster)
	return nil
}

// Link adds a second directory entry named name under n, pointing at
// target's existing cluster chain, matching target's size and type.
// Fails with ErrExists if name is already present under n.
func (n *Inode) Link(name string, target *Inode) error {
	if !n.IsDirectory {
		return ErrNotDir
	}

	n.fs.Mu.Lock()
	defer n.fs.Mu.Unlock()

	if _, err := n.findLocked(name); err == nil {
		return ErrExists
	}

	attr := byte(fat32.AttrArchive)
	if target.IsDirectory {
		attr = fat32.AttrDirectory
	}
	n.fs.Vol.InsertDentry(n.StartCluster, name, attr, target.FileSize, target.StartCluster)
	return nil
}

// ReadDir returns the names of every live entry directly under n.
func (n *Inode) ReadDir() ([]string, error) {
	if !n.IsDirectory {
		return nil, ErrNotDir
	}
	n.fs.Mu.Lock()
	defer n.fs.Mu.Unlock()

	q := common.NewLinkedListQueue[string]()
	sector, offset := n.fs.Vol.FAT.ClusterIDToSectorID(n.StartCluster), 0
	for {
		d, ok := n.fs.Vol.GetDentry(&sector, &offset)
		if !ok {
			break
		}
		q.Push(d.Name)
	}

	names := make([]string, 0, q.Len())
	for !q.IsEmpty() {
		names = append(names, q.Pop())
	}
	return names, nil
}
