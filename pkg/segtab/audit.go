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
	"segtab.dev/segtab/pkg/atomicbitops"
	"segtab.dev/segtab/pkg/log"
)

// DebugAudit gates the zero-invariant checks in auditNode/auditLeaf. It
// defaults to disabled: the walk they perform is linear in fanout/PTEPerPage
// and is meant for development builds and tests, not production use,
// mirroring the PMAP_SEGTAB_CHECK-gated DIAGNOSTIC asserts in
// pmap_segtab.c's pmap_check_stb/pmap_check_ptes.
var DebugAudit atomicbitops.Bool

// auditNode verifies that every child slot of n is nil, per spec.md
// invariant I1. It logs every violating slot before panicking, rather than
// stopping at the first one, so that a single failure run surfaces the full
// extent of the corruption.
func auditNode(p *Params, n *Node) {
	if !DebugAudit.Load() {
		return
	}
	bad := false
	for i := uint(0); i < p.SegtabFanout; i++ {
		if c := n.segChild[i].Load(); c != nil {
			log.Warningf("segtab: node %p slot %d: non-nil seg child %p", n, i, c)
			bad = true
		}
		if c := n.pteChild[i].Load(); c != nil {
			log.Warningf("segtab: node %p slot %d: non-nil pte child %p", n, i, c)
			bad = true
		}
	}
	if bad {
		panic("segtab: node audit failed, see warnings above")
	}
}

// auditLeaf verifies that every PTE in l is the zero value, per spec.md
// invariant I2.
func auditLeaf(p *Params, l *Leaf) {
	if !DebugAudit.Load() {
		return
	}
	bad := false
	for i := uint(0); i < p.PTEPerPage; i++ {
		if pte := l.ptes[i]; pte != 0 {
			log.Warningf("segtab: leaf %p slot %d: non-zero pte %#x", l, i, pte)
			bad = true
		}
	}
	if bad {
		panic("segtab: leaf audit failed, see warnings above")
	}
}
