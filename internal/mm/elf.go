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
	"bytes"
	"debug/elf"
	"fmt"
)

// defaultUserStackPages is the fallback when the caller doesn't
// request a specific stack size.
const defaultUserStackPages = 16

// FromELF builds a fresh AddressSpace from a RISC-V rv64 ELF image:
// one framed VMA per loadable program header (permissions taken from
// the header's flags), a heap VMA starting just past the highest
// loaded segment, and a user stack one guard page below the trampoline. It
// returns the space, the entry point, and the initial stack pointer.
func FromELF(arena *Arena, image []byte, stackPages int) (as *AddressSpace, entry uint64, sp uint64, err error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("mm: parsing ELF: %w", err)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, 0, 0, fmt.Errorf("mm: not a RISC-V image (machine=%s)", f.Machine)
	}

	as = NewAddressSpace(arena)
	var maxEnd uint64

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		start := PageRoundDown(prog.Vaddr)
		end := PageRoundUp(prog.Vaddr + prog.Filesz)
		if end == start {
			end = start + PageSize
		}

		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, 0, 0, fmt.Errorf("mm: reading segment: %w", err)
		}
		// Place data at the correct in-page offset relative to the
		// page-rounded start.
		padded := make([]byte, end-start)
		copy(padded[prog.Vaddr-start:], data)

		perm := PermU
		if prog.Flags&elf.PF_R != 0 {
			perm |= PermR
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= PermW
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= PermX
		}
		if err := as.InsertSegment(start, end, perm, padded); err != nil {
			return nil, 0, 0, fmt.Errorf("mm: mapping segment: %w", err)
		}
		if end > maxEnd {
			maxEnd = end
		}
	}

	as.InitHeap(PageRoundUp(maxEnd))

	if stackPages <= 0 {
		stackPages = defaultUserStackPages
	}
	sp, err = as.InsertUserStack(stackPages)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("mm: mapping user stack: %w", err)
	}

	return as, f.Entry, sp, nil
}
