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

// LeafCallback is invoked once per non-empty segment that Process or
// Destroy visits, before any reclamation decision is made about the leaf
// that segment's PTEs live in. It is the engine's only contact point with
// PTE semantics (spec.md §4.G, §6): segtab never interprets any PTE's bits
// itself, only whether a leaf reads back zero afterward.
//
// leafPTEs addresses the PTE for segStart at index 0 and runs through the
// PTE for segEnd, exclusive; cb owns iterating it and may clear any entry
// (e.g. to tear down a mapping), but must not retain the slice past the
// call. Under Process, returning stop == true ends the walk early, leaving
// the remainder of the range untouched; Destroy ignores the return value
// and always tears down the whole tree.
type LeafCallback func(as *AddressSpace, segStart, segEnd uintptr, leafPTEs []PTE) (stop bool)

// Process invokes cb once for each segment in [sva, eva) that currently has
// a leaf page installed, skipping ranges with no interior node or leaf
// rather than allocating one, per spec.md §4.G ("Process never
// allocates"). It does not reclaim empty leaves or nodes; that is Destroy's
// job.
func (e *Engine) Process(as *AddressSpace, sva, eva uintptr, cb LeafCallback) {
	root := as.root
	if root == nil {
		return
	}
	p := &e.params
	va := p.TruncSeg(sva)
	for va < eva {
		leaf := e.lookupLeaf(as, va)

		// segEnd is the end of this segment clipped to eva, guarding
		// against trunc_seg(sva) + SEG_SIZE overflowing to zero for a
		// range reaching the top of the address space (spec.md §4.G).
		segEnd := va + p.SegSize()
		if segEnd == 0 || segEnd > eva {
			segEnd = eva
		}

		if leaf != nil {
			segStart := va
			if sva > segStart {
				segStart = sva
			}
			startIdx := p.LeafIndex(segStart)
			n := uint((segEnd - segStart) >> p.pteShift)
			if cb(as, segStart, segEnd, leaf.ptes[startIdx:startIdx+n:startIdx+n]) {
				return
			}
		}

		next := va + p.SegSize()
		if next == 0 || next <= va {
			// trunc_seg(sva) + SEG_SIZE overflowed past the top of
			// the address space; this was the final segment.
			break
		}
		va = next
	}
}

// Destroy tears down as's entire tree: cb is invoked once per non-empty
// segment exactly as Process would over [as.MinAddr, top of the address
// space), and every leaf and interior node is then returned to its
// freelist once every PTE or child under it has been visited (verified
// zero with auditLeaf/auditNode on development builds), mirroring
// pmap_segtab_destroy's recursive free walk (spec.md §4.G). After Destroy
// returns, as.Root() is nil and as must be re-Init'd before further use.
func (e *Engine) Destroy(as *AddressSpace, cb LeafCallback) {
	root := as.root
	if root == nil {
		return
	}
	p := &e.params
	minXIdx := uint(0)
	if p.Wide {
		minXIdx = p.XSegIndex(as.MinAddr)
	} else {
		minXIdx = p.SegIndex(as.MinAddr)
	}
	for i := minXIdx; i < p.SegtabFanout; i++ {
		if p.Wide {
			interior := root.segChild[i].Load()
			if interior == nil {
				continue
			}
			base := uintptr(i) << p.xsegShift
			e.destroyInterior(interior, as, base, cb)
			root.segChild[i].Store(nil)
		} else {
			leaf := root.pteChild[i].Load()
			if leaf == nil {
				continue
			}
			base := uintptr(i) << p.segShift
			e.destroyLeaf(leaf, as, base, cb)
			root.pteChild[i].Store(nil)
		}
	}
	auditNode(p, root)
	freeNode(&e.nodes, root)
	as.root = nil
}

// destroyInterior walks one interior node spanning virtual addresses
// starting at base, invoking cb once per non-empty segment beneath it and
// then freeing its leaves and itself.
func (e *Engine) destroyInterior(n *Node, as *AddressSpace, base uintptr, cb LeafCallback) {
	p := &e.params
	for i := uint(0); i < p.SegtabFanout; i++ {
		leaf := n.pteChild[i].Load()
		if leaf == nil {
			continue
		}
		e.destroyLeaf(leaf, as, base+uintptr(i)<<p.segShift, cb)
		n.pteChild[i].Store(nil)
	}
	auditNode(p, n)
	freeNode(&e.nodes, n)
}

// destroyLeaf invokes cb once over the entire segment leaf covers, whose
// PTEs start at virtual address base, and then returns it to the leaf cache
// (or the allocator). It does not clear the leaf itself: cb is what leaves
// the PTEs zero, which auditLeaf checks on development builds.
func (e *Engine) destroyLeaf(leaf *Leaf, as *AddressSpace, base uintptr, cb LeafCallback) {
	p := &e.params
	cb(as, base, base+p.SegSize(), leaf.ptes[:p.PTEPerPage:p.PTEPerPage])
	auditLeaf(p, leaf)
	freeLeaf(e.leaves, e.alloc, leaf)
}
