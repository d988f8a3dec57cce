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

import "context"

// nodeFreelist is the segtab descriptor freelist described in spec.md
// §4.C. The descriptors handed back by one PageAllocator.AllocNodes call
// (nodesPerPage of them) become individually reusable; Node.next links them
// together as pmap_segtab_t.seg_seg[0] links free pmap_segtab_t structures
// in the original C implementation (here using Node's disjoint next field
// rather than aliasing slot 0, see node.go).
//
// Each method takes lock itself for the duration of its list update.
type nodeFreelist struct {
	lock  spinLock
	head  *Node
	nfree int
}

// push returns n to the freelist. The caller must have already verified n
// is zero (auditNode) and must not be holding any other reference to n.
func (f *nodeFreelist) push(n *Node) {
	f.lock.Lock()
	n.next = f.head
	f.head = n
	f.nfree++
	f.lock.Unlock()
}

// pushAll returns a run of freshly carved, already-linked nodes to the
// freelist in one critical section, avoiding nfree lock churn when a page
// is first carved.
func (f *nodeFreelist) pushAll(nodes []*Node) {
	if len(nodes) == 0 {
		return
	}
	for i := 0; i < len(nodes)-1; i++ {
		nodes[i].next = nodes[i+1]
	}
	f.lock.Lock()
	nodes[len(nodes)-1].next = f.head
	f.head = nodes[0]
	f.nfree += len(nodes)
	f.lock.Unlock()
}

// pop removes and returns one node from the freelist, or nil if it is
// empty.
func (f *nodeFreelist) pop() *Node {
	f.lock.Lock()
	n := f.head
	if n != nil {
		f.head = n.next
		n.next = nil
		f.nfree--
	}
	f.lock.Unlock()
	return n
}

// nodesPerPage is the number of segtab node descriptors requested from
// PageAllocator.AllocNodes per call. It is fixed at 1 and does not depend on
// Params: every allocation yields a single descriptor, and a page is never
// carved into several. The pushAll of the remaining descriptors in
// allocNode and tryAllocNode therefore always receives an empty slice.
const nodesPerPage = 1

// allocNode returns one zeroed Node, taking it from the freelist if
// possible and otherwise asking alloc to carve a fresh page, blocking via
// alloc.WaitForMemory across transient exhaustion.
func allocNode(ctx context.Context, f *nodeFreelist, alloc PageAllocator) (*Node, error) {
	if n := f.pop(); n != nil {
		return n, nil
	}
	for {
		nodes := alloc.AllocNodes(nodesPerPage)
		if len(nodes) > 0 {
			n := nodes[0]
			f.pushAll(nodes[1:])
			return n, nil
		}
		if err := alloc.WaitForMemory(ctx); err != nil {
			return nil, err
		}
	}
}

// freeNode returns n, which must be zero, to the freelist.
func freeNode(f *nodeFreelist, n *Node) {
	f.push(n)
}
