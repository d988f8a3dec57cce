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

import "segtab.dev/segtab/pkg/atomicbitops"

// PTE is an opaque, caller-defined translation word. segtab treats the zero
// value as "empty" and never interprets any other bit of it; protection,
// dirty/accessed tracking and valid bits are the embedding pmap's concern.
type PTE uint64

// Leaf is a page-aligned array of PTE slots: the tree's leaves. Its length
// is Params.PTEPerPage; callers that need a fixed compile-time type still
// get one (MaxPTEPerPage), but only the first Params.PTEPerPage entries are
// ever touched, so engines built with a smaller PTEPerPage (for tests) can
// share the same underlying type.
type Leaf struct {
	ptes [MaxPTEPerPage]PTE
}

// MaxPTEPerPage bounds the PTE array embedded in Leaf. It is larger than
// any real hardware's PTE-per-page count so that test Params with small,
// easy-to-reason-about fanouts still fit.
const MaxPTEPerPage = 1024

// PTEs returns the live slice of PTE slots for this leaf, sized to p.
func (l *Leaf) PTEs(p *Params) []PTE {
	return l.ptes[:p.PTEPerPage]
}

// Zero reports whether every PTE in the leaf (within p's bound) is empty.
func (l *Leaf) Zero(p *Params) bool {
	for _, pte := range l.ptes[:p.PTEPerPage] {
		if pte != 0 {
			return false
		}
	}
	return true
}

// clear zeroes every PTE in the leaf (within p's bound).
func (l *Leaf) clear(p *Params) {
	for i := range l.ptes[:p.PTEPerPage] {
		l.ptes[i] = 0
	}
}

// Node is a fixed-size segtab descriptor: a root or interior node of the
// radix tree. Its children are either other Nodes (root on a wide build) or
// Leaves (interior on a wide build, root on a narrow build); which is never
// recorded in the Node itself — the caller knows which by the depth it is
// walking at, per the Design Note in spec.md §9.
//
// While the node sits on the descriptor freelist it is linked through its
// separate next field, not through slot 0; see freelist.go.
type Node struct {
	segChild [MaxSegtabFanout]atomicbitops.Pointer[Node]
	pteChild [MaxSegtabFanout]atomicbitops.Pointer[Leaf]

	// next links this node into the descriptor freelist when it is not
	// part of any live tree. It is disjoint storage from segChild/pteChild
	// (not slot 0) so that a node can be audited zero independent of
	// whatever the freelist is doing with it; the "slot 0 reuse" spec.md
	// describes is reproduced logically (both are untyped storage that
	// must read back zero before re-entering the tree) without aliasing
	// the CAS-published pointer type.
	next *Node
}

// MaxSegtabFanout bounds the child arrays embedded in Node, analogous to
// MaxPTEPerPage.
const MaxSegtabFanout = 1024

// SegChildren returns the live slice of interior-node slots, sized to p.
func (n *Node) SegChildren(p *Params) []atomicbitops.Pointer[Node] {
	return n.segChild[:p.SegtabFanout]
}

// PTEChildren returns the live slice of leaf slots, sized to p.
func (n *Node) PTEChildren(p *Params) []atomicbitops.Pointer[Leaf] {
	return n.pteChild[:p.SegtabFanout]
}

// Zero reports whether every child slot (within p's bound) is nil, per
// spec.md invariant I1/I2.
func (n *Node) Zero(p *Params) bool {
	for i := uint(0); i < p.SegtabFanout; i++ {
		if n.segChild[i].Load() != nil || n.pteChild[i].Load() != nil {
			return false
		}
	}
	return true
}

// AddressSpace is the subset of pmap state this engine reads and writes.
// Everything else about an address space (page directory bases, ASID,
// protection bits) belongs to the embedding pmap.
type AddressSpace struct {
	// root is the owning pointer to the root segtab node. It is nil
	// before Init and nil again after Destroy. Per invariant I5, its
	// identity never changes between those two events — only root's
	// children are ever CAS-published.
	root *Node

	// MinAddr is the lowest legal virtual address in this space, used to
	// seed Destroy's walk (spec.md §3's AddressSpace.min_addr).
	MinAddr uintptr

	// Kernel marks this AddressSpace as the kernel pmap. Activate
	// publishes the invalid sentinel (not as.root) to the per-CPU fields
	// for a kernel AddressSpace, per spec.md §4.H.
	Kernel bool
}

// Root returns the current root node, or nil if the space has not been
// initialized or has been destroyed.
func (as *AddressSpace) Root() *Node {
	return as.root
}

// InvalidSegtab is the sentinel published to a CPU's per-CPU segtab
// pointers when no user AddressSpace is active there, or when the active
// AddressSpace is the kernel pmap (spec.md §4.H: "both fields receive a
// sentinel invalid value so user accesses through these cached pointers
// trap"). It is a distinguished, never-installed Node: no tree ever has a
// slot pointing at it, so identity comparison against it is unambiguous.
var InvalidSegtab = &Node{}
