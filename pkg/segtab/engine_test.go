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

package segtab_test

import (
	"context"
	"sync"
	"testing"

	"segtab.dev/segtab/pkg/segtab"
	"segtab.dev/segtab/pkg/segtab/segtabtest"
)

func newTestEngine(t *testing.T, wide bool) (*segtab.Engine, *segtabtest.FakeAllocator) {
	t.Helper()
	alloc := segtabtest.NewFakeAllocator()
	e := segtab.NewEngine(
		segtab.NewParams(4096, 512, 512, wide),
		alloc,
		&segtabtest.FakeActivator{},
		segtabtest.NewFakeCPU(0),
		segtab.Config{LeafCache: true},
	)
	return e, alloc
}

func newInitialized(t *testing.T, wide bool) (*segtab.Engine, *segtab.AddressSpace, *segtabtest.FakeAllocator) {
	t.Helper()
	e, alloc := newTestEngine(t, wide)
	as := &segtab.AddressSpace{}
	if err := e.Init(context.Background(), as); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return e, as, alloc
}

// TestLookupMissUntilReserve exercises P-E: Lookup never allocates, and
// only Reserve brings a translation into existence.
func TestLookupMissUntilReserve(t *testing.T) {
	e, as, _ := newInitialized(t, true)
	const va = 0x1000

	if pte := e.Lookup(as, va); pte != nil {
		t.Fatalf("Lookup on empty tree returned %v, want nil", pte)
	}

	pte, err := e.Reserve(context.Background(), as, va, false)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if pte == nil {
		t.Fatalf("Reserve returned nil PTE")
	}
	*pte = 0xdead

	got := e.Lookup(as, va)
	if got == nil {
		t.Fatalf("Lookup after Reserve returned nil")
	}
	if *got != 0xdead {
		t.Errorf("Lookup returned PTE %#x, want %#x", *got, 0xdead)
	}
}

// TestReserveIdempotent reserving the same va twice returns the same slot.
func TestReserveIdempotent(t *testing.T) {
	e, as, _ := newInitialized(t, true)
	const va = 0x123000

	p1, err := e.Reserve(context.Background(), as, va, false)
	if err != nil {
		t.Fatalf("Reserve #1: %v", err)
	}
	p2, err := e.Reserve(context.Background(), as, va, false)
	if err != nil {
		t.Fatalf("Reserve #2: %v", err)
	}
	if p1 != p2 {
		t.Errorf("Reserve returned different PTE pointers for the same va: %p != %p", p1, p2)
	}
}

// TestReserveCanFail exercises the ErrNoMemory path (PMAP_CANFAIL analogue).
// canFail covers only the leaf allocation, so the interior node covering
// the target va is installed before the allocator is frozen.
func TestReserveCanFail(t *testing.T) {
	e, as, alloc := newInitialized(t, true)
	if _, err := e.Reserve(context.Background(), as, 0x1000, false); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	allocs, _ := alloc.Stats()
	alloc.SetLimit(allocs) // freeze: nothing further may be allocated

	_, err := e.Reserve(context.Background(), as, 0x200000, true)
	if err != segtab.ErrNoMemory {
		t.Fatalf("Reserve with canFail got err = %v, want ErrNoMemory", err)
	}
}

// TestReserveBlocksThenCancels exercises the !canFail blocking path: with
// the allocator frozen, a Reserve call blocks in WaitForMemory and returns
// an error once its context is cancelled.
func TestReserveBlocksThenCancels(t *testing.T) {
	e, as, alloc := newInitialized(t, true)
	allocs, _ := alloc.Stats()
	alloc.SetLimit(allocs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.Reserve(ctx, as, 0x1000, false)
		done <- err
	}()

	cancel()
	if err := <-done; err == nil {
		t.Fatalf("Reserve did not return an error after context cancellation")
	}
}

// TestDestroyInvokesCallbackAndFreesEverything exercises P3 (no leaks) and
// the Destroy callback contract (spec.md §4.G).
func TestDestroyInvokesCallbackAndFreesEverything(t *testing.T) {
	e, as, alloc := newInitialized(t, true)

	vas := []uintptr{0x1000, 0x200000, 0x40000000, 0x800000000}
	for _, va := range vas {
		pte, err := e.Reserve(context.Background(), as, va, false)
		if err != nil {
			t.Fatalf("Reserve(%#x): %v", va, err)
		}
		*pte = 1
	}

	pageSize := e.Params().PageSize()
	seen := map[uintptr]bool{}
	e.Destroy(as, func(_ *segtab.AddressSpace, segStart, _ uintptr, leafPTEs []segtab.PTE) bool {
		for i, pte := range leafPTEs {
			if pte != 0 {
				seen[segStart+uintptr(i)*pageSize] = true
				leafPTEs[i] = 0
			}
		}
		return false
	})

	for _, va := range vas {
		if !seen[va] {
			t.Errorf("Destroy callback never visited va %#x", va)
		}
	}
	if as.Root() != nil {
		t.Errorf("AddressSpace.Root() non-nil after Destroy")
	}

	// Destroy hands every node to the engine's descriptor freelist and every
	// leaf to its leaf cache rather than back to the allocator, so a lost
	// node or leaf shows up as a fresh allocation when the same tree is
	// rebuilt.
	allocs, _ := alloc.Stats()
	if err := e.Init(context.Background(), as); err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	for _, va := range vas {
		if _, err := e.Reserve(context.Background(), as, va, false); err != nil {
			t.Fatalf("Reserve(%#x) after Destroy: %v", va, err)
		}
	}
	if again, _ := alloc.Stats(); again != allocs {
		t.Errorf("leak: rebuilding the destroyed tree took %d new allocations, want 0", again-allocs)
	}
}

// TestProcessSkipsUnmappedRanges exercises that Process never allocates
// (spec.md §4.G).
func TestProcessSkipsUnmappedRanges(t *testing.T) {
	e, as, alloc := newInitialized(t, true)

	visited := 0
	e.Process(as, 0, 1<<40, func(_ *segtab.AddressSpace, segStart, segEnd uintptr, leafPTEs []segtab.PTE) bool {
		visited++
		return false
	})
	if visited != 0 {
		t.Errorf("Process visited %d slots on an empty tree, want 0", visited)
	}
	allocs, _ := alloc.Stats()
	if allocs != 1 { // just the root from Init
		t.Errorf("Process allocated pages: %d allocations after Init, want 1", allocs)
	}
}

// TestActivateDeactivate exercises Component H: Activate must publish the
// AddressSpace's root (and, on wide builds, its slot-0 child once
// installed) to the CPU's cached segtab pointers, and Deactivate must reset
// both to the invalid sentinel.
func TestActivateDeactivate(t *testing.T) {
	act := &segtabtest.FakeActivator{}
	cpu := segtabtest.NewFakeCPU(1)
	eng := segtab.NewEngine(
		segtab.NewParams(4096, 512, 512, true),
		segtabtest.NewFakeAllocator(),
		act,
		cpu,
		segtab.Config{},
	)
	as := &segtab.AddressSpace{}
	if err := eng.Init(context.Background(), as); err != nil {
		t.Fatalf("Init: %v", err)
	}

	eng.Activate(as)
	if act.Active() != as {
		t.Errorf("Activate did not publish the address space to MDActivator")
	}
	if cpu.UserSegtab() != as.Root() {
		t.Errorf("Activate published UserSegtab = %p, want %p (as.Root())", cpu.UserSegtab(), as.Root())
	}
	// Slot 0 has not been reserved into yet, so the seg0tab publish must
	// fall back to the invalid sentinel rather than a nil pointer.
	if cpu.UserSeg0tab() != segtab.InvalidSegtab {
		t.Errorf("Activate published UserSeg0tab = %p before slot 0 was installed, want InvalidSegtab", cpu.UserSeg0tab())
	}

	if _, err := eng.Reserve(context.Background(), as, 0, false); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	eng.Activate(as)
	if cpu.UserSeg0tab() == segtab.InvalidSegtab || cpu.UserSeg0tab() == nil {
		t.Errorf("Activate did not publish a real UserSeg0tab after slot 0 was installed")
	}

	eng.Deactivate()
	if act.Active() != nil {
		t.Errorf("Deactivate did not clear MDActivator's active address space")
	}
	if cpu.UserSegtab() != segtab.InvalidSegtab {
		t.Errorf("Deactivate left UserSegtab = %p, want InvalidSegtab", cpu.UserSegtab())
	}
	if cpu.UserSeg0tab() != segtab.InvalidSegtab {
		t.Errorf("Deactivate left UserSeg0tab = %p, want InvalidSegtab", cpu.UserSeg0tab())
	}
}

// TestActivateKernelPmap exercises spec.md §4.H's kernel-pmap case: both
// cached fields must receive the invalid sentinel, not the kernel pmap's
// own root, so a stray user access through them traps.
func TestActivateKernelPmap(t *testing.T) {
	cpu := segtabtest.NewFakeCPU(0)
	eng := segtab.NewEngine(
		segtab.NewParams(4096, 512, 512, true),
		segtabtest.NewFakeAllocator(),
		&segtabtest.FakeActivator{},
		cpu,
		segtab.Config{},
	)
	as := &segtab.AddressSpace{Kernel: true}
	if err := eng.Init(context.Background(), as); err != nil {
		t.Fatalf("Init: %v", err)
	}

	eng.Activate(as)
	if cpu.UserSegtab() != segtab.InvalidSegtab {
		t.Errorf("Activate(kernel pmap) published UserSegtab = %p, want InvalidSegtab", cpu.UserSegtab())
	}
	if cpu.UserSeg0tab() != segtab.InvalidSegtab {
		t.Errorf("Activate(kernel pmap) published UserSeg0tab = %p, want InvalidSegtab", cpu.UserSeg0tab())
	}
}

// TestConcurrentReserveSameSlot races many goroutines reserving the same
// va, exercising invariant I6 (at most one pointer is ever committed to a
// slot) and the race-loser recycling path.
func TestConcurrentReserveSameSlot(t *testing.T) {
	e, as, alloc := newInitialized(t, true)
	const va = 0xdeadb000
	const n = 64

	results := make([]*segtab.PTE, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			pte, err := e.Reserve(context.Background(), as, va, false)
			if err != nil {
				t.Errorf("Reserve: %v", err)
				return
			}
			results[i] = pte
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d got a different PTE pointer than goroutine 0: %p != %p", i, results[i], results[0])
		}
	}

	allocs, frees := alloc.Stats()
	if allocs-frees < 2 {
		t.Errorf("expected at least the winning node/leaf pair to remain allocated, got allocs=%d frees=%d", allocs, frees)
	}
}
