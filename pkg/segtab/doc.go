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

// Package segtab provides the per-address-space segment-table (segtab)
// engine: the software radix tree that translates a virtual address into
// the pointer to its leaf page-table-entry (PTE) array.
//
// The tree has two levels on narrow (32-bit) builds and three levels on
// wide (64-bit) builds: root -> [interior ->] leaf. Interior and leaf nodes
// are installed lazily and published under multiprocessor races with a
// compare-and-swap and a discard protocol for the loser. Two freelists (one
// for segtab node descriptors, one optionally for zeroed leaf pages) amortize
// physical-page allocation.
//
// segtab only locates and manages PTE slots. It has no notion of PTE
// semantics (valid bits, protection, dirty/accessed tracking) and performs
// no TLB invalidation; those are the caller's responsibility, exercised
// through the LeafCallback passed to Process and Destroy.
package segtab
