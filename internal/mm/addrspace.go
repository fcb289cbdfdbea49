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

package mm

import (
	"errors"
	"sort"
)

var (
	// ErrOverlap is returned when a requested VMA would overlap an
	// existing one.
	ErrOverlap = errors.New("mm: overlapping virtual memory area")
	// ErrNoSuchVMA is returned by munmap when no VMA exactly matches
	// the requested range — partial unmap is unsupported by this
	// design and also surfaces this error.
	ErrNoSuchVMA = errors.New("mm: no exact VMA match")
	// ErrBadAddr marks a brk target below the heap base.
	ErrBadAddr = errors.New("mm: address below heap base")
)

// TrampolineVA is the fixed virtual address identity-mapped into every
// address space, holding the trap entry/exit code.
const TrampolineVA = 0xFFFF_FFFF_F000

// AddressSpace is one process's page table plus the ordered set of
// VMAs that are a pure function of it (per the design's invariant: the
// page table is derived from the VMA set plus the trampoline mapping).
type AddressSpace struct {
	arena      *Arena
	pt         *PageTable
	areas      []*VMA
	heapVMA    *VMA
	heapBase   uint64
	trampoline *VMA
}

// NewAddressSpace returns an empty space with only the trampoline
// mapped.
func NewAddressSpace(arena *Arena) *AddressSpace {
	as := &AddressSpace{arena: arena, pt: NewPageTable()}
	as.trampoline = &VMA{
		Start: TrampolineVA, End: TrampolineVA + PageSize,
		Perm: PermR | PermX, MapType: Identity,
	}
	as.pt.Map(VPN(TrampolineVA/PageSize), Frame(TrampolineVA/PageSize), as.trampoline.Perm)
	as.areas = append(as.areas, as.trampoline)
	return as
}

// Arena returns the physical arena backing this space's frames.
func (as *AddressSpace) Arena() *Arena { return as.arena }

// PageTable exposes the underlying table for the user-buffer bridge.
func (as *AddressSpace) PageTable() *PageTable { return as.pt }

func (as *AddressSpace) overlapsAny(start, end uint64) bool {
	for _, v := range as.areas {
		if v.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// insertFramed allocates one frame per page in [start, end), maps them
// with perm, and records the VMA. start/end must already be
// page-aligned.
func (as *AddressSpace) insertFramed(start, end uint64, perm Perm, backing Backing) (*VMA, error) {
	if as.overlapsAny(start, end) {
		return nil, ErrOverlap
	}
	v := &VMA{Start: start, End: end, Perm: perm, MapType: Framed, Backing: backing}
	for va := start; va < end; va += PageSize {
		f := as.arena.Alloc()
		v.Frames = append(v.Frames, f)
		as.pt.Map(VPN(va/PageSize), f, perm)
	}
	as.areas = append(as.areas, v)
	return v, nil
}

// removeVMA unmaps and frees every frame of v and drops it from areas.
func (as *AddressSpace) removeVMA(v *VMA) {
	for va := v.Start; va < v.End; va += PageSize {
		as.pt.Unmap(VPN(va / PageSize))
	}
	for _, f := range v.Frames {
		as.arena.Free(f)
	}
	for i, existing := range as.areas {
		if existing == v {
			as.areas = append(as.areas[:i], as.areas[i+1:]...)
			break
		}
	}
}

// WritePage writes data into the page at va (which must fall within a
// Framed VMA already mapped), starting at the page-relative offset.
func (as *AddressSpace) WritePage(va uint64, pageOffset int, data []byte) {
	vpn := VPN(va / PageSize)
	frame, _, ok := as.pt.Translate(vpn)
	if !ok {
		return
	}
	copy(as.arena.Page(frame)[pageOffset:], data)
}

// Mmap adds a new VMA at start (or, if start==0, at the lowest
// available address above every existing VMA) spanning len(page
// rounded) bytes with perm, optionally loading fileData eagerly when
// backing is BackingFile. It returns the chosen start address.
func (as *AddressSpace) Mmap(start, length uint64, perm Perm, backing Backing, fileData []byte) (uint64, error) {
	length = PageRoundUp(length)
	if start == 0 {
		start = as.firstFit(length)
	} else {
		start = PageRoundDown(start)
	}
	v, err := as.insertFramed(start, start+length, perm, backing)
	if err != nil {
		return 0, err
	}
	if backing == BackingFile && fileData != nil {
		for i, f := range v.Frames {
			page := as.arena.Page(f)
			off := i * PageSize
			if off >= len(fileData) {
				break
			}
			end := off + PageSize
			if end > len(fileData) {
				end = len(fileData)
			}
			copy(page, fileData[off:end])
		}
	}
	return start, nil
}

// firstFit finds the lowest address above the highest fixed reservation
// (here: 1<<30, clear of the ELF image and stack this design builds
// below it) at which length bytes fit without overlapping any VMA.
func (as *AddressSpace) firstFit(length uint64) uint64 {
	const mmapBase = 1 << 30
	candidates := []uint64{mmapBase}
	for _, v := range as.areas {
		candidates = append(candidates, v.End)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	for _, c := range candidates {
		if c < mmapBase {
			continue
		}
		if !as.overlapsAny(c, c+length) {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// Munmap removes the VMA exactly matching [start, start+length).
// Partial unmap is not supported by this design and reports
// ErrNoSuchVMA, which the syscall surface maps to EINVAL.
func (as *AddressSpace) Munmap(start, length uint64) error {
	end := start + PageRoundUp(length)
	for _, v := range as.areas {
		if v.Start == start && v.End == end {
			as.removeVMA(v)
			return nil
		}
	}
	return ErrNoSuchVMA
}

// InitHeap installs the heap VMA starting empty (zero length) at base,
// called once while constructing the address space from an ELF image.
func (as *AddressSpace) InitHeap(base uint64) {
	as.heapBase = base
	as.heapVMA = &VMA{Start: base, End: base, Perm: PermR | PermW | PermU, MapType: Framed, Backing: BackingAnonymous}
	as.areas = append(as.areas, as.heapVMA)
}

// Brk grows or shrinks the heap VMA to end addr, page-aligned, and
// returns the new (aligned) heap end; addr==0 just reports the current
// end without changing anything, per the design's brk(0) contract.
func (as *AddressSpace) Brk(addr uint64) (uint64, error) {
	if addr == 0 {
		return as.heapVMA.End, nil
	}
	if addr < as.heapBase {
		return 0, ErrBadAddr
	}
	newEnd := PageRoundUp(addr)
	oldEnd := as.heapVMA.End

	switch {
	case newEnd > oldEnd:
		for va := oldEnd; va < newEnd; va += PageSize {
			f := as.arena.Alloc()
			as.heapVMA.Frames = append(as.heapVMA.Frames, f)
			as.pt.Map(VPN(va/PageSize), f, as.heapVMA.Perm)
		}
	case newEnd < oldEnd:
		keep := int((newEnd - as.heapBase) / PageSize)
		for i := keep; i < len(as.heapVMA.Frames); i++ {
			va := as.heapBase + uint64(i)*PageSize
			as.pt.Unmap(VPN(va / PageSize))
			as.arena.Free(as.heapVMA.Frames[i])
		}
		as.heapVMA.Frames = as.heapVMA.Frames[:keep]
	}
	as.heapVMA.End = newEnd
	return newEnd, nil
}

// HeapBase returns the address heap growth starts from.
func (as *AddressSpace) HeapBase() uint64 { return as.heapBase }

// InsertUserStack maps a framed, user-writable VMA of the given size
// below the trampoline, leaving one unmapped guard page between them,
// and returns its top address (the initial stack pointer).
func (as *AddressSpace) InsertUserStack(pages int) (uint64, error) {
	size := uint64(pages) * PageSize
	end := TrampolineVA - PageSize // one guard page below the trampoline
	start := end - size
	if _, err := as.insertFramed(start, end, PermR|PermW|PermU, BackingAnonymous); err != nil {
		return 0, err
	}
	return end, nil
}

// Clone deep-copies every VMA into a fresh AddressSpace backed by
// arena: each framed page gets its own new frame with identical
// contents, and the trampoline/heap/stack structure is reproduced
// exactly. Used by fork, since this design has no CLONE_VM (shared
// address space) path.
func (as *AddressSpace) Clone(arena *Arena) *AddressSpace {
	out := &AddressSpace{arena: arena, pt: NewPageTable()}
	for _, v := range as.areas {
		switch v.MapType {
		case Identity:
			nv := &VMA{Start: v.Start, End: v.End, Perm: v.Perm, MapType: Identity}
			out.pt.Map(VPN(v.Start/PageSize), Frame(v.Start/PageSize), v.Perm)
			out.areas = append(out.areas, nv)
			if v == as.trampoline {
				out.trampoline = nv
			}
		case Framed:
			nv := &VMA{Start: v.Start, End: v.End, Perm: v.Perm, MapType: Framed, Backing: v.Backing}
			for i := 0; i < v.Pages(); i++ {
				va := v.Start + uint64(i)*PageSize
				f := out.arena.Alloc()
				copy(out.arena.Page(f), as.arena.Page(v.Frames[i]))
				nv.Frames = append(nv.Frames, f)
				out.pt.Map(VPN(va/PageSize), f, v.Perm)
			}
			out.areas = append(out.areas, nv)
			if v == as.heapVMA {
				out.heapVMA = nv
				out.heapBase = as.heapBase
			}
		}
	}
	return out
}

// InsertSegment maps a framed VMA at [start, end) with perm and copies
// data into it, used for ELF program-header loading.
func (as *AddressSpace) InsertSegment(start, end uint64, perm Perm, data []byte) error {
	v, err := as.insertFramed(start, end, perm, BackingFile)
	if err != nil {
		return err
	}
	for i, f := range v.Frames {
		page := as.arena.Page(f)
		off := i * PageSize
		if off >= len(data) {
			break
		}
		segEnd := off + PageSize
		if segEnd > len(data) {
			segEnd = len(data)
		}
		copy(page, data[off:segEnd])
	}
	return nil
}
