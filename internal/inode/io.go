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

package inode

// ReadAt walks n's cluster chain, skipping whole clusters before
// offset, and copies into buf, clamping to end-of-file. It returns the
// number of bytes actually read.
func (n *Inode) ReadAt(offset int64, buf []byte) int {
	if n.IsDirectory {
		return 0
	}

	n.fs.Mu.Lock()
	defer n.fs.Mu.Unlock()

	clusterSize := int64(n.fs.Vol.SB.ClusterSize())
	if offset >= int64(n.FileSize) {
		return 0
	}

	chain := n.fs.Vol.ClusterChain(n.StartCluster)
	var read int
	var pos int64
	clusterBuf := make([]byte, clusterSize)

	for _, cluster := range chain {
		clusterEnd := pos + clusterSize
		if clusterEnd <= offset {
			pos = clusterEnd
			continue
		}

		n.fs.Vol.ReadCluster(cluster, clusterBuf)

		start := int64(0)
		if pos < offset {
			start = offset - pos
		}
		avail := clusterSize - start
		fileRemaining := int64(n.FileSize) - (pos + start)
		if fileRemaining < avail {
			avail = fileRemaining
		}
		want := int64(len(buf) - read)
		if want < avail {
			avail = want
		}
		if avail > 0 {
			copy(buf[read:int64(read)+avail], clusterBuf[start:start+avail])
			read += int(avail)
		}

		pos = clusterEnd
		if read >= len(buf) || pos >= int64(n.FileSize) {
			break
		}
	}
	return read
}

// WriteAt walks n's cluster chain, allocating and linking new clusters
// past the current end, and writes buf at offset. It always persists
// the resulting file size to the parent directory entry on success —
// the reference design this implements updates size lazily and can
// lose it; this kernel does not.
func (n *Inode) WriteAt(offset int64, buf []byte) int {
	if n.IsDirectory || len(buf) == 0 {
		return 0
	}

	n.fs.Mu.Lock()
	defer n.fs.Mu.Unlock()

	clusterSize := int64(n.fs.Vol.SB.ClusterSize())
	chain := n.fs.Vol.ClusterChain(n.StartCluster)

	var written int
	var pos int64
	clusterBuf := make([]byte, clusterSize)

	idx := 0
	for int64(len(chain))*clusterSize <= offset+int64(len(buf)) {
		// Grow the chain until it can hold offset+len(buf).
		tail := chain[len(chain)-1]
		next, ok := n.fs.Vol.FAT.AllocNewCluster()
		if !ok {
			break
		}
		n.fs.Vol.FAT.LinkCluster(tail, next)
		zero := make([]byte, clusterSize)
		n.fs.Vol.WriteCluster(next, zero)
		chain = append(chain, next)
	}

	for ; idx < len(chain) && written < len(buf); idx++ {
		cluster := chain[idx]
		clusterStart := pos
		clusterEnd := pos + clusterSize
		pos = clusterEnd
		if clusterEnd <= offset {
			continue
		}

		n.fs.Vol.ReadCluster(cluster, clusterBuf)

		start := int64(0)
		if clusterStart < offset {
			start = offset - clusterStart
		}
		avail := clusterSize - start
		want := int64(len(buf) - written)
		if want < avail {
			avail = want
		}
		if avail <= 0 {
			continue
		}
		copy(clusterBuf[start:start+avail], buf[written:int64(written)+avail])
		n.fs.Vol.WriteCluster(cluster, clusterBuf)
		written += int(avail)
	}

	newSize := offset + int64(written)
	if newSize > int64(n.FileSize) {
		n.FileSize = uint32(newSize)
		n.persistSize()
	}
	return written
}

// ReadAll reads n's entire contents; used by execve to load an ELF
// image in one shot.
func (n *Inode) ReadAll() []byte {
	buf := make([]byte, n.FileSize)
	got := n.ReadAt(0, buf)
	return buf[:got]
}

// persistSize patches n's own directory entry with its current
// FileSize in place. Called with fs.Mu already held.
func (n *Inode) persistSize() {
	if n.entry.ShortSector == 0 && n.entry.ShortOffset == 0 {
		return // root has no entry of its own
	}
	n.fs.Vol.SetShortFileSize(n.entry.ShortSector, n.entry.ShortOffset, n.FileSize)
	n.entry.FileSize = n.FileSize
}
