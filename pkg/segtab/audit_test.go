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

import "testing"

func TestAuditDisabledByDefault(t *testing.T) {
	if DebugAudit.Load() {
		t.Fatalf("DebugAudit enabled by default")
	}
	p := NewParams(4096, 512, 512, false)
	n := &Node{}
	n.segChild[0].Store(&Node{}) // would violate the zero invariant
	auditNode(&p, n)             // must not panic while disabled
}

func TestAuditNodeCatchesNonZeroSlot(t *testing.T) {
	DebugAudit.Store(true)
	defer DebugAudit.Store(false)

	p := NewParams(4096, 512, 512, false)
	n := &Node{}
	n.pteChild[5].Store(&Leaf{})

	defer func() {
		if recover() == nil {
			t.Fatalf("auditNode did not panic on a non-zero slot")
		}
	}()
	auditNode(&p, n)
}

func TestAuditLeafCatchesNonZeroPTE(t *testing.T) {
	DebugAudit.Store(true)
	defer DebugAudit.Store(false)

	p := NewParams(4096, 512, 512, false)
	l := &Leaf{}
	l.ptes[10] = 1

	defer func() {
		if recover() == nil {
			t.Fatalf("auditLeaf did not panic on a non-zero PTE")
		}
	}()
	auditLeaf(&p, l)
}

func TestAuditPassesOnZeroNode(t *testing.T) {
	DebugAudit.Store(true)
	defer DebugAudit.Store(false)

	p := NewParams(4096, 512, 512, false)
	auditNode(&p, &Node{})
	auditLeaf(&p, &Leaf{})
}
