// Copyright 2021 The gVisor Authors.
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

package atomicbitops

import "sync/atomic"

// Pointer is an atomic pointer to a value of type T. The zero value holds a
// nil pointer.
//
// It exists alongside Uint32/Uint64/Bool so that radix-tree slots can be
// published with the same CAS discipline used elsewhere in this package,
// without resorting to unsafe.Pointer at call sites.
type Pointer[T any] struct {
	p atomic.Pointer[T]
}

// Load is analogous to atomic.Pointer[T].Load.
//
//go:nosplit
func (p *Pointer[T]) Load() *T {
	return p.p.Load()
}

// Store is analogous to atomic.Pointer[T].Store.
//
//go:nosplit
func (p *Pointer[T]) Store(v *T) {
	p.p.Store(v)
}

// CompareAndSwap is analogous to atomic.Pointer[T].CompareAndSwap. It
// reports whether the swap took place.
//
//go:nosplit
func (p *Pointer[T]) CompareAndSwap(oldVal, newVal *T) bool {
	return p.p.CompareAndSwap(oldVal, newVal)
}
