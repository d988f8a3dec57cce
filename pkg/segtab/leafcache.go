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

// leafCache is the optional leaf-PTE page cache described in spec.md §4.D
// (PMAP_PTP_CACHE in the reference implementation): a small freelist of
// zeroed Leaf pages that lets a Destroy walk hand leaves back without
// immediately returning them to the PageAllocator, and lets a subsequent
// Reserve reuse one without a round trip through the allocator.
//
// It is structurally identical to nodeFreelist but holds Leaves instead of
// Nodes; they are kept as separate types (rather than a generic freelist)
// because a Leaf has no spare pointer-sized field to link through the way
// Node.next does, so leafCache links leaves through an explicit side slice
// instead of in-place, and is always capped at leafCacheMax entries.
type leafCache struct {
	lock    spinLock
	leaves  []*Leaf
	enabled bool
}

// leafCacheMax bounds how many leaves are retained before freeLeaf returns
// the rest straight to the allocator, keeping the cache from
// growing unboundedly across a process that maps and unmaps large regions
// repeatedly.
const leafCacheMax = 64

// newLeafCache constructs a leafCache. enabled corresponds to the
// reference implementation's PMAP_PTP_CACHE build-time switch; when false,
// put/get always miss and every leaf goes straight to/from the
// PageAllocator.
func newLeafCache(enabled bool) *leafCache {
	return &leafCache{enabled: enabled}
}

// get returns a cached Leaf if one is available, or nil.
func (c *leafCache) get() *Leaf {
	if !c.enabled {
		return nil
	}
	c.lock.Lock()
	var l *Leaf
	if n := len(c.leaves); n > 0 {
		l = c.leaves[n-1]
		c.leaves = c.leaves[:n-1]
	}
	c.lock.Unlock()
	return l
}

// put offers leaf (which must be zero) to the cache. It reports whether the
// cache accepted it; the caller must return leaf to the PageAllocator
// itself when put returns false.
func (c *leafCache) put(leaf *Leaf) bool {
	if !c.enabled {
		return false
	}
	c.lock.Lock()
	ok := len(c.leaves) < leafCacheMax
	if ok {
		c.leaves = append(c.leaves, leaf)
	}
	c.lock.Unlock()
	return ok
}

// allocLeaf returns a zeroed Leaf, preferring the cache over the
// PageAllocator, blocking via alloc.WaitForMemory across transient
// exhaustion of both.
func allocLeaf(ctx context.Context, c *leafCache, alloc PageAllocator) (*Leaf, error) {
	if l := c.get(); l != nil {
		return l, nil
	}
	for {
		if l := alloc.AllocLeaf(); l != nil {
			return l, nil
		}
		if err := alloc.WaitForMemory(ctx); err != nil {
			return nil, err
		}
	}
}

// freeLeaf returns leaf, which must be zero, to the cache, falling back to
// the PageAllocator if the cache is full or disabled.
func freeLeaf(c *leafCache, alloc PageAllocator, leaf *Leaf) {
	if c.put(leaf) {
		return
	}
	alloc.FreeLeaf(leaf)
}
