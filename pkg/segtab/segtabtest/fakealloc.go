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

// Package segtabtest provides a fake segtab.PageAllocator, MDActivator and
// CPULocal for testing an Engine without a real physical-page backing
// store, in the spirit of the fake devices and loopback collaborators used
// throughout the example corpus's own package tests.
package segtabtest

import (
	"context"
	"sync"

	"segtab.dev/segtab/pkg/segtab"
)

// FakeAllocator is a segtab.PageAllocator backed by the Go heap. It never
// actually runs out of memory unless configured to with SetLimit, which
// exists so tests can exercise the ErrNoMemory/canFail and
// WaitForMemory-retry paths deterministically.
type FakeAllocator struct {
	mu deferredMutex

	limit     int  // <=0 means unlimited
	allocated int  // nodes + leaves currently outstanding
	nAlloc    int  // total successful allocations, for leak checks
	nFree     int  // total frees, for leak checks
	unblocked chan struct{}
}

type deferredMutex = sync.Mutex

// NewFakeAllocator returns a FakeAllocator with no allocation limit.
func NewFakeAllocator() *FakeAllocator {
	return &FakeAllocator{unblocked: make(chan struct{})}
}

// SetLimit caps the number of outstanding node+leaf allocations; once
// reached, AllocNodes/AllocLeaf return nil until a Free call drops the
// count back down. limit <= 0 removes the cap.
func (a *FakeAllocator) SetLimit(limit int) {
	a.mu.Lock()
	a.limit = limit
	a.mu.Unlock()
}

// Stats returns the lifetime allocation and free counts, for leak-detection
// assertions. An Engine keeps destroyed nodes on its descriptor freelist and
// may keep leaves in its leaf cache, so those never show up as frees here.
func (a *FakeAllocator) Stats() (allocs, frees int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nAlloc, a.nFree
}

func (a *FakeAllocator) tryReserve(n int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit > 0 && a.allocated+n > a.limit {
		return false
	}
	a.allocated += n
	a.nAlloc += n
	return true
}

// AllocNodes implements segtab.PageAllocator.
func (a *FakeAllocator) AllocNodes(count int) []*segtab.Node {
	if !a.tryReserve(count) {
		return nil
	}
	nodes := make([]*segtab.Node, count)
	for i := range nodes {
		nodes[i] = new(segtab.Node)
	}
	return nodes
}

// FreeNodes implements segtab.PageAllocator.
func (a *FakeAllocator) FreeNodes(nodes []*segtab.Node) {
	a.mu.Lock()
	a.allocated -= len(nodes)
	a.nFree += len(nodes)
	a.mu.Unlock()
}

// AllocLeaf implements segtab.PageAllocator.
func (a *FakeAllocator) AllocLeaf() *segtab.Leaf {
	if !a.tryReserve(1) {
		return nil
	}
	return new(segtab.Leaf)
}

// FreeLeaf implements segtab.PageAllocator.
func (a *FakeAllocator) FreeLeaf(leaf *segtab.Leaf) {
	a.mu.Lock()
	a.allocated--
	a.nFree++
	a.mu.Unlock()
}

// WaitForMemory implements segtab.PageAllocator. The fake never actually
// frees memory on its own, so it simply waits for ctx to end; raising the
// limit does not wake it. A test that wants to exercise the blocking path
// calls SetLimit, starts a goroutine racing Reserve, then cancels ctx to
// unblock it.
func (a *FakeAllocator) WaitForMemory(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// FakeActivator is a segtab.MDActivator recording the last AddressSpace
// activated and whether it is currently deactivated, for assertions in
// activation tests.
type FakeActivator struct {
	mu     sync.Mutex
	active *segtab.AddressSpace
}

func (f *FakeActivator) Activate(as *segtab.AddressSpace) {
	f.mu.Lock()
	f.active = as
	f.mu.Unlock()
}

func (f *FakeActivator) Deactivate() {
	f.mu.Lock()
	f.active = nil
	f.mu.Unlock()
}

// Active returns the AddressSpace most recently passed to Activate, or nil
// if Deactivate was called since.
func (f *FakeActivator) Active() *segtab.AddressSpace {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// FakeCPU is a segtab.CPULocal that reports a fixed CPU index and records
// the UserSegtab/UserSeg0tab pointers published to it, suitable for
// single-goroutine tests that need to assert what Activate/Deactivate
// publish.
type FakeCPU struct {
	idx int

	mu          sync.Mutex
	userSegtab  *segtab.Node
	userSeg0tab *segtab.Node
}

// NewFakeCPU returns a FakeCPU reporting idx from CPU.
func NewFakeCPU(idx int) *FakeCPU {
	return &FakeCPU{idx: idx}
}

// CPU implements segtab.CPULocal.
func (c *FakeCPU) CPU() int { return c.idx }

// SetUserSegtab implements segtab.CPULocal.
func (c *FakeCPU) SetUserSegtab(root *segtab.Node) {
	c.mu.Lock()
	c.userSegtab = root
	c.mu.Unlock()
}

// SetUserSeg0tab implements segtab.CPULocal.
func (c *FakeCPU) SetUserSeg0tab(seg0 *segtab.Node) {
	c.mu.Lock()
	c.userSeg0tab = seg0
	c.mu.Unlock()
}

// UserSegtab returns the pointer most recently passed to SetUserSegtab.
func (c *FakeCPU) UserSegtab() *segtab.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userSegtab
}

// UserSeg0tab returns the pointer most recently passed to SetUserSeg0tab.
func (c *FakeCPU) UserSeg0tab() *segtab.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userSeg0tab
}
