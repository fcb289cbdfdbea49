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

// MapType distinguishes an identity-mapped VMA (used only for the
// trampoline, whose virtual and physical addresses coincide) from a
// framed one (backed by arena frames allocated on construction).
type MapType int

const (
	Framed MapType = iota
	Identity
)

// Backing names what a Framed VMA's bytes come from at construction
// time; both are eager in this design (no lazy fault-in).
type Backing int

const (
	BackingAnonymous Backing = iota
	BackingFile
)

// VMA is one non-overlapping half-open virtual range [Start, End) in
// an address space.
type VMA struct {
	Start, End uint64 // page-aligned
	Perm       Perm
	MapType    MapType
	Backing    Backing
	Frames     []Frame // one per page in [Start, End), Framed only
}

// Pages returns the number of PageSize pages spanned by the VMA.
func (v *VMA) Pages() int { return int((v.End - v.Start) / PageSize) }

// Contains reports whether addr falls inside the VMA.
func (v *VMA) Contains(addr uint64) bool { return addr >= v.Start && addr < v.End }

// Overlaps reports whether [start, end) intersects v's range.
func (v *VMA) Overlaps(start, end uint64) bool { return start < v.End && v.Start < end }
