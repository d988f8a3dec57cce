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

// Config selects the optional behaviors spec.md leaves as build-time
// switches in the reference implementation (§4.D, §11's Wide decision).
type Config struct {
	// LeafCache enables the leaf-PTE page cache (PMAP_PTP_CACHE).
	LeafCache bool
}

// Engine is one segtab engine instance: the shared Params, collaborators
// and freelists that every AddressSpace created through it uses. An
// embedding typically constructs one Engine per machine/boot and one
// AddressSpace per process, mirroring how pmap_segtab.c's module-global
// pmap_segtab_pool and pmap_segtab_info are shared across all pmap_t
// instances.
type Engine struct {
	params Params
	alloc  PageAllocator
	md     MDActivator
	cpu    CPULocal

	nodes  nodeFreelist
	leaves *leafCache
}

// NewEngine constructs an Engine from its Params and collaborators.
func NewEngine(params Params, alloc PageAllocator, md MDActivator, cpu CPULocal, cfg Config) *Engine {
	return &Engine{
		params: params,
		alloc:  alloc,
		md:     md,
		cpu:    cpu,
		leaves: newLeafCache(cfg.LeafCache),
	}
}

// Params returns the Engine's tree-shape parameters.
func (e *Engine) Params() *Params {
	return &e.params
}

// Init allocates and installs a fresh, empty root node for as, per spec.md
// §4.A/§7's AddressSpace lifecycle ("Init allocates the root"). It is an
// error to call Init on an AddressSpace that already has a root.
func (e *Engine) Init(ctx context.Context, as *AddressSpace) error {
	if as.root != nil {
		panic("segtab: Init called on an already-initialized AddressSpace")
	}
	root, err := allocNode(ctx, &e.nodes, e.alloc)
	if err != nil {
		return err
	}
	auditNode(&e.params, root)
	as.root = root
	return nil
}
