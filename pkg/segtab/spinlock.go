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
	"runtime"
	"sync/atomic"
)

// spinLock is a simple test-and-set spin lock guarding the
// descriptor freelist and leaf cache. Both are held only across a handful
// of pointer writes (push/pop a freelist entry), so a spin lock avoids the
// scheduling overhead of a full mutex for what is, in practice, always an
// uncontended fast path; this mirrors the simple_lock the original
// implementation takes around seg_nfree/seg_free (spec.md §4.C).
//
// The zero value is unlocked.
type spinLock struct {
	held atomic.Bool
}

func (l *spinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.held.Store(false)
}
