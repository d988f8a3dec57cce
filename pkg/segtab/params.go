// Copyright 2018 The gVisor Authors.
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

package segtab

import "math/bits"

// Params derives the shape of the segtab radix tree from the hardware page
// size and the machine's address width. A build fixes one Params value for
// its lifetime; nothing here changes at runtime.
//
// Field names follow spec.md §3/§4.A: PTEPerPage, SegShift, SegtabFanout,
// XSegShift. Unlike the teacher's pagetables package, which hard-codes
// pteShift/pmdShift/pudShift/pgdShift as untyped constants for one fixed
// ISA, these are computed fields so the same engine binary can be
// instantiated for either tree depth.
type Params struct {
	// PageShift is log2(PageSize).
	PageShift uint

	// PTEPerPage is the number of PTE slots in one leaf page.
	PTEPerPage uint

	// SegtabFanout is the number of child slots in one segtab node (root
	// and interior). A segtab node must fit in one page, so
	// SegtabFanout == PageSize / sizeof(pointer) in the reference
	// implementation; here it is supplied explicitly, independent of the
	// page size. It does not change how many descriptors are allocated at
	// a time, which is always one (nodesPerPage in freelist.go).
	SegtabFanout uint

	// Wide is true for 64-bit (3-level) builds, false for 32-bit (2-level)
	// builds, per spec.md §3.
	Wide bool

	// derived
	pteShift   uint
	segShift   uint
	xsegShift  uint
	pteMask    uintptr
	segMask    uintptr
	xsegMask   uintptr
	segSize    uintptr
	pageSize   uintptr
}

// NewParams derives a Params from the hardware page size, the number of PTE
// slots per leaf page, the segtab fanout, and the tree width. It panics if
// pteCount or fanout are not powers of two, mirroring the teacher's
// CTASSERT(NBPG >= sizeof(pmap_segtab_t)) static-shape checks with a runtime
// check in the absence of C's compile-time assertions.
func NewParams(pageSize uintptr, pteCount, fanout uint, wide bool) Params {
	if !isPow2(uintptr(pteCount)) {
		panic("segtab: PTEPerPage must be a power of two")
	}
	if !isPow2(uintptr(fanout)) {
		panic("segtab: SegtabFanout must be a power of two")
	}
	if !isPow2(pageSize) {
		panic("segtab: PageSize must be a power of two")
	}

	p := Params{
		PageShift:    uint(bits.TrailingZeros(uint(pageSize))),
		PTEPerPage:   pteCount,
		SegtabFanout: fanout,
		Wide:         wide,
		pageSize:     pageSize,
	}
	p.pteShift = p.PageShift
	p.segShift = p.pteShift + uint(bits.TrailingZeros(pteCount))
	p.segSize = uintptr(1) << p.segShift
	p.segMask = uintptr(fanout-1) << p.segShift
	p.pteMask = uintptr(pteCount-1) << p.pteShift
	if wide {
		p.xsegShift = p.segShift + uint(bits.TrailingZeros(fanout))
		p.xsegMask = uintptr(fanout-1) << p.xsegShift
	}
	return p
}

func isPow2(v uintptr) bool {
	return v != 0 && v&(v-1) == 0
}

// LeafIndex returns the index of va's PTE within its leaf page.
//
//go:nosplit
func (p *Params) LeafIndex(va uintptr) uint {
	return uint((va & p.pteMask) >> p.pteShift)
}

// SegIndex returns the index of va's leaf within its segtab node (the root
// node on 32-bit builds, the interior node on 64-bit builds).
//
//go:nosplit
func (p *Params) SegIndex(va uintptr) uint {
	return uint((va & p.segMask) >> p.segShift)
}

// XSegIndex returns the index of va's interior node within the root. Only
// meaningful when p.Wide.
//
//go:nosplit
func (p *Params) XSegIndex(va uintptr) uint {
	return uint((va & p.xsegMask) >> p.xsegShift)
}

// SegSize is the span of virtual address space covered by one leaf page.
func (p *Params) SegSize() uintptr {
	return p.segSize
}

// XSegSize is the span of virtual address space covered by one interior
// node. Only meaningful when p.Wide.
func (p *Params) XSegSize() uintptr {
	return p.segSize * uintptr(p.SegtabFanout)
}

// TopSpan is the span covered by one child of the root: XSegSize on wide
// builds (root -> interior -> leaf), SegSize on narrow builds (root ->
// leaf), matching the NBXSEG/NBSEG selection in pmap_segtab_destroy.
func (p *Params) TopSpan() uintptr {
	if p.Wide {
		return p.XSegSize()
	}
	return p.SegSize()
}

// TruncSeg rounds va down to the start of its segment.
//
//go:nosplit
func (p *Params) TruncSeg(va uintptr) uintptr {
	return va &^ (p.segSize - 1)
}

// PageSize returns the configured hardware page size.
func (p *Params) PageSize() uintptr {
	return p.pageSize
}
