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

// PageAllocator supplies and reclaims the backing storage for segtab
// descriptor nodes and leaf PTE pages. It is the Go analogue of the C
// implementation's pmap_pagealloc/pmap_pagefree/pmap_alloc_poolpage imports
// (spec.md §6): where the original carves descriptors out of physical
// pages, this engine asks the allocator for Go-typed Node/Leaf storage
// directly, since Go has no notion of an untyped physical page to carve up
// itself.
//
// Implementations must be safe for concurrent use: AllocNodes/AllocLeaf may
// be called from multiple goroutines racing to install the same tree slot.
// The loser's node goes to the Engine's descriptor freelist, not to
// FreeNodes; the loser's leaf goes to the leaf cache, or to FreeLeaf when
// the cache is full or disabled.
type PageAllocator interface {
	// AllocNodes returns count freshly zeroed Node descriptors carved
	// from a single backing page, or nil if none are currently
	// available. segtab's freelist (freelist.go) is what turns a
	// multi-descriptor page into individually reusable nodes, mirroring
	// pmap_segtab_alloc's "carve one page into several pmap_segtab_t"
	// behavior (spec.md §4.C); AllocNodes supplies one such page's worth
	// in one call.
	AllocNodes(count int) []*Node

	// FreeNodes returns a slice of Nodes previously obtained from
	// AllocNodes (all from the same original page) back to the
	// allocator.
	FreeNodes(nodes []*Node)

	// AllocLeaf returns a freshly zeroed Leaf page, or nil if none is
	// currently available.
	AllocLeaf() *Leaf

	// FreeLeaf returns a Leaf previously obtained from AllocLeaf back to
	// the allocator.
	FreeLeaf(leaf *Leaf)

	// WaitForMemory blocks until the allocator believes an allocation is
	// likely to succeed again, or until ctx is done. It mirrors
	// pmap_pagealloc's uvm_wait/kpause retry loop on exhaustion
	// (spec.md §4.F, edge case "Out of memory").
	WaitForMemory(ctx context.Context) error
}

// MDActivator publishes and withdraws an AddressSpace's root on a CPU, the
// machine-dependent half of Activate/Deactivate (spec.md §4.H). segtab
// calls it but never inspects what it does: loading a page-table-base
// register, updating a per-CPU ASID, anything the embedding architecture
// needs.
type MDActivator interface {
	// Activate publishes as as the active address space on the calling
	// CPU.
	Activate(as *AddressSpace)

	// Deactivate withdraws whichever address space is currently active
	// on the calling CPU.
	Deactivate()
}

// CPULocal identifies the calling CPU for Activate/Deactivate bookkeeping
// that must not be preempted mid-update (spec.md §4.H's curcpu() use), and
// owns the cached segtab pointers Activate/Deactivate publish to it
// (spec.md §4.H's per-CPU user_segtab/user_seg0tab fields). Callers
// typically implement this with a fixed runtime-locked goroutine per CPU,
// or with a real per-CPU index for kernel-style embeddings.
type CPULocal interface {
	// CPU returns the index of the calling CPU. The caller must ensure
	// the goroutine cannot migrate CPUs for the duration of the call
	// (e.g. runtime.LockOSThread plus an embedding-specific affinity
	// mechanism); segtab does not enforce this itself.
	CPU() int

	// SetUserSegtab publishes root as the calling CPU's cached top-level
	// segtab pointer, mirroring curcpu()->ci_pmap_user_segtab (spec.md
	// §4.H). Activate passes the active AddressSpace's root, or
	// InvalidSegtab for the kernel pmap; Deactivate passes InvalidSegtab.
	SetUserSegtab(root *Node)

	// SetUserSeg0tab publishes seg0 as the calling CPU's cached slot-0
	// child, mirroring curcpu()->ci_pmap_user_seg0tab on wide builds
	// (spec.md §4.H). Engines built with Params.Wide false never call
	// this method.
	SetUserSeg0tab(seg0 *Node)
}
