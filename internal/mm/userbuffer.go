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

import "errors"

// ErrFault marks a missing or unmapped user page; the syscall surface
// maps it to EFAULT. Unlike the reference design (which does not check
// this), every bridge function here validates every page it touches.
var ErrFault = errors.New("mm: invalid user pointer")

// TranslatedByteBuffer walks as's page table starting at uptr and
// returns a scatter list of kernel-visible slices covering exactly
// length bytes, split at page boundaries. Each returned slice aliases
// the arena directly, so writes through it are visible to the user
// process without a further copy.
func TranslatedByteBuffer(as *AddressSpace, uptr uint64, length uint64) ([][]byte, error) {
	var out [][]byte
	remaining := length
	addr := uptr
	for remaining > 0 {
		pageStart := PageRoundDown(addr)
		vpn := VPN(pageStart / PageSize)
		frame, _, ok := as.pt.Translate(vpn)
		if !ok {
			return nil, ErrFault
		}
		offset := addr - pageStart
		avail := uint64(PageSize) - offset
		if avail > remaining {
			avail = remaining
		}
		out = append(out, as.arena.Page(frame)[offset:offset+avail])
		addr += avail
		remaining -= avail
	}
	return out, nil
}

// TranslatedStr reads a NUL-terminated string starting at uptr,
// crossing page boundaries as needed.
func TranslatedStr(as *AddressSpace, uptr uint64) (string, error) {
	var out []byte
	addr := uptr
	for {
		pageStart := PageRoundDown(addr)
		vpn := VPN(pageStart / PageSize)
		frame, _, ok := as.pt.Translate(vpn)
		if !ok {
			return "", ErrFault
		}
		page := as.arena.Page(frame)
		offset := addr - pageStart
		for offset < PageSize {
			b := page[offset]
			if b == 0 {
				return string(out), nil
			}
			out = append(out, b)
			offset++
			addr++
		}
	}
}

// TranslatedBytes returns a single kernel-visible slice of size bytes
// at uptr, failing with ErrFault if the value would cross a page
// boundary (the design requires translated_refmut's target to lie
// within one page) or if the page isn't mapped.
func TranslatedBytes(as *AddressSpace, uptr uint64, size int) ([]byte, error) {
	pageStart := PageRoundDown(uptr)
	offset := uptr - pageStart
	if offset+uint64(size) > PageSize {
		return nil, ErrFault
	}
	vpn := VPN(pageStart / PageSize)
	frame, _, ok := as.pt.Translate(vpn)
	if !ok {
		return nil, ErrFault
	}
	return as.arena.Page(frame)[offset : offset+uint64(size)], nil
}

// CopyOut writes data into the user buffer starting at uptr, splitting
// across pages as TranslatedByteBuffer would.
func CopyOut(as *AddressSpace, uptr uint64, data []byte) error {
	slices, err := TranslatedByteBuffer(as, uptr, uint64(len(data)))
	if err != nil {
		return err
	}
	off := 0
	for _, s := range slices {
		off += copy(s, data[off:])
	}
	return nil
}

// CopyIn reads len(buf) bytes from the user buffer starting at uptr
// into buf.
func CopyIn(as *AddressSpace, uptr uint64, buf []byte) error {
	slices, err := TranslatedByteBuffer(as, uptr, uint64(len(buf)))
	if err != nil {
		return err
	}
	off := 0
	for _, s := range slices {
		off += copy(buf[off:], s)
	}
	return nil
}
