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

// lookupLeaf walks as's tree down to the Leaf covering va without
// allocating anything, returning nil if any node on the path is unset.
// This is the read-only half of spec.md §4.E ("Lookup never allocates").
func (e *Engine) lookupLeaf(as *AddressSpace, va uintptr) *Leaf {
	root := as.root
	if root == nil {
		return nil
	}
	p := &e.params
	seg := root
	if p.Wide {
		interior := seg.segChild[p.XSegIndex(va)].Load()
		if interior == nil {
			return nil
		}
		seg = interior
	}
	return seg.pteChild[p.SegIndex(va)].Load()
}

// Lookup returns a pointer to the PTE translating va within as, or nil if
// no leaf has ever been reserved to cover va. The returned pointer aliases
// live engine storage: the caller may read and write *PTE directly, but
// must not retain it past any Destroy of as.
//
// Lookup never allocates and never blocks, per spec.md §4.E.
func (e *Engine) Lookup(as *AddressSpace, va uintptr) *PTE {
	leaf := e.lookupLeaf(as, va)
	if leaf == nil {
		return nil
	}
	return &leaf.ptes[e.params.LeafIndex(va)]
}
