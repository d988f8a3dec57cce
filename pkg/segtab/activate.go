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

import "segtab.dev/segtab/pkg/log"

// Activate publishes as as the active address space on the calling CPU:
// its root (and, on wide builds, root's slot-0 child) are cached into the
// CPU's UserSegtab/UserSeg0tab fields, and the machine-dependent half of
// the work is delegated to the Engine's MDActivator, per spec.md §4.H. The
// caller must already be running pinned to the CPU it intends to activate
// on; Engine uses CPULocal only to identify and update that CPU, not to
// enforce the pin itself.
//
// Activating the kernel pmap publishes InvalidSegtab to both fields
// instead of as.root, so that any user access still reaching through the
// cached pointers traps rather than silently reading kernel mappings.
func (e *Engine) Activate(as *AddressSpace) {
	if as.root == nil {
		panic("segtab: Activate called on an uninitialized AddressSpace")
	}
	if as.Kernel {
		e.cpu.SetUserSegtab(InvalidSegtab)
		if e.params.Wide {
			e.cpu.SetUserSeg0tab(InvalidSegtab)
		}
	} else {
		e.cpu.SetUserSegtab(as.root)
		if e.params.Wide {
			seg0 := as.root.segChild[0].Load()
			if seg0 == nil {
				seg0 = InvalidSegtab
			}
			e.cpu.SetUserSeg0tab(seg0)
		}
	}
	log.Debugf("segtab: activating address space %p on cpu %d", as, e.cpu.CPU())
	e.md.Activate(as)
}

// Deactivate withdraws whichever address space is currently active on the
// calling CPU, resetting its cached UserSegtab/UserSeg0tab fields to
// InvalidSegtab per spec.md §4.H.
func (e *Engine) Deactivate() {
	e.cpu.SetUserSegtab(InvalidSegtab)
	if e.params.Wide {
		e.cpu.SetUserSeg0tab(InvalidSegtab)
	}
	log.Debugf("segtab: deactivating address space on cpu %d", e.cpu.CPU())
	e.md.Deactivate()
}
