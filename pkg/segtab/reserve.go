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

import (
	"context"

	"segtab.dev/segtab/pkg/atomicbitops"
)

// ensureNode returns the interior node at *slot, installing a freshly
// allocated one if it is currently nil. If two callers race to install the
// same slot, the loser's allocation is recycled back to the freelist and
// the winner's node is returned to both, per spec.md invariant I6 ("at
// most one non-null pointer is ever committed to a given slot").
func (e *Engine) ensureNode(ctx context.Context, slot *atomicbitops.Pointer[Node], canFail bool) (*Node, error) {
	if n := slot.Load(); n != nil {
		return n, nil
	}
	candidate, err := e.tryAllocNode(ctx, canFail)
	if err != nil {
		return nil, err
	}
	auditNode(&e.params, candidate)
	if slot.CompareAndSwap(nil, candidate) {
		return candidate, nil
	}
	freeNode(&e.nodes, candidate)
	return slot.Load(), nil
}

// ensureLeaf is ensureNode's counterpart for leaf slots.
func (e *Engine) ensureLeaf(ctx context.Context, slot *atomicbitops.Pointer[Leaf], canFail bool) (*Leaf, error) {
	if l := slot.Load(); l != nil {
		return l, nil
	}
	candidate, err := e.tryAllocLeaf(ctx, canFail)
	if err != nil {
		return nil, err
	}
	auditLeaf(&e.params, candidate)
	if slot.CompareAndSwap(nil, candidate) {
		return candidate, nil
	}
	freeLeaf(e.leaves, e.alloc, candidate)
	return slot.Load(), nil
}

// tryAllocNode allocates one node, either blocking across transient
// exhaustion (canFail == false) or failing immediately with ErrNoMemory
// (canFail == true), matching PMAP_CANFAIL semantics (spec.md §4.F).
func (e *Engine) tryAllocNode(ctx context.Context, canFail bool) (*Node, error) {
	if n := e.nodes.pop(); n != nil {
		return n, nil
	}
	nodes := e.alloc.AllocNodes(nodesPerPage)
	if len(nodes) > 0 {
		n := nodes[0]
		e.nodes.pushAll(nodes[1:])
		return n, nil
	}
	if canFail {
		return nil, ErrNoMemory
	}
	return allocNode(ctx, &e.nodes, e.alloc)
}

// tryAllocLeaf is tryAllocNode's counterpart for leaves.
func (e *Engine) tryAllocLeaf(ctx context.Context, canFail bool) (*Leaf, error) {
	if l := e.leaves.get(); l != nil {
		return l, nil
	}
	if l := e.alloc.AllocLeaf(); l != nil {
		return l, nil
	}
	if canFail {
		return nil, ErrNoMemory
	}
	return allocLeaf(ctx, e.leaves, e.alloc)
}

// Reserve returns a pointer to the PTE translating va within as,
// allocating and CAS-installing whatever interior nodes and leaf page are
// missing along the way (spec.md §4.F). If canFail is true and the leaf
// page cannot be allocated immediately, Reserve returns (nil, ErrNoMemory)
// rather than blocking, mirroring PMAP_CANFAIL; otherwise it blocks (via the
// PageAllocator's WaitForMemory) until memory becomes available or ctx is
// done. Interior nodes are descriptor allocations and always take the
// blocking path, whatever canFail says.
func (e *Engine) Reserve(ctx context.Context, as *AddressSpace, va uintptr, canFail bool) (*PTE, error) {
	if as.root == nil {
		panic("segtab: Reserve called on an uninitialized AddressSpace")
	}
	p := &e.params
	seg := as.root
	if p.Wide {
		interior, err := e.ensureNode(ctx, &seg.segChild[p.XSegIndex(va)], false)
		if err != nil {
			return nil, err
		}
		seg = interior
	}
	leaf, err := e.ensureLeaf(ctx, &seg.pteChild[p.SegIndex(va)], canFail)
	if err != nil {
		return nil, err
	}
	return &leaf.ptes[p.LeafIndex(va)], nil
}
