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

// Perm is the VMA permission bitset: R/W/X/U exactly as SV39 PTE flags
// name them.
type Perm uint8

const (
	PermR Perm = 1 << iota
	PermW
	PermX
	PermU
)

// VPN is a virtual page number (virtual address >> 12).
type VPN uint64

// pte is one simulated SV39 leaf entry: which physical frame backs a
// virtual page, and the permissions the VMA granted it. This stands in
// for the real three-level 9/9/9-bit trie; because translation here is
// always a lookup by this package, never a hardware walk, a flat map
// keyed by VPN is observably equivalent to walking the trie and is the
// invariant the design names: "the page table is a pure function of
// the VMA set."
type pte struct {
	frame Frame
	perm  Perm
}

// PageTable is one address space's VPN -> PPN mapping.
type PageTable struct {
	entries map[VPN]pte
}

// NewPageTable returns an empty table.
func NewPageTable() *PageTable {
	return &PageTable{entries: make(map[VPN]pte)}
}

// Map installs a leaf mapping for vpn, overwriting any existing entry.
func (pt *PageTable) Map(vpn VPN, frame Frame, perm Perm) {
	pt.entries[vpn] = pte{frame: frame, perm: perm}
}

// Unmap removes vpn's mapping, reporting whether it existed.
func (pt *PageTable) Unmap(vpn VPN) bool {
	if _, ok := pt.entries[vpn]; !ok {
		return false
	}
	delete(pt.entries, vpn)
	return true
}

// Translate looks up vpn, returning its frame and permissions.
func (pt *PageTable) Translate(vpn VPN) (Frame, Perm, bool) {
	e, ok := pt.entries[vpn]
	return e.frame, e.perm, ok
}

// PageRoundDown truncates addr to the start of its containing page.
func PageRoundDown(addr uint64) uint64 { return addr &^ (PageSize - 1) }

// PageRoundUp rounds addr up to the next page boundary (addr itself if
// already aligned).
func PageRoundUp(addr uint64) uint64 { return PageRoundDown(addr+PageSize-1) }
