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

func TestNewParamsNarrow(t *testing.T) {
	p := NewParams(4096, 512, 512, false)
	if p.Wide {
		t.Fatalf("narrow Params reported Wide")
	}
	if got, want := p.SegSize(), uintptr(4096*512); got != want {
		t.Errorf("SegSize() = %d, want %d", got, want)
	}
	if got, want := p.TopSpan(), p.SegSize(); got != want {
		t.Errorf("TopSpan() = %d, want SegSize() = %d", got, want)
	}
}

func TestNewParamsWide(t *testing.T) {
	p := NewParams(4096, 512, 512, true)
	if !p.Wide {
		t.Fatalf("wide Params reported !Wide")
	}
	if got, want := p.TopSpan(), p.XSegSize(); got != want {
		t.Errorf("TopSpan() = %d, want XSegSize() = %d", got, want)
	}
	if got, want := p.XSegSize(), p.SegSize()*512; got != want {
		t.Errorf("XSegSize() = %d, want %d", got, want)
	}
}

func TestNewParamsRejectsNonPow2(t *testing.T) {
	for _, tc := range []struct {
		name         string
		page         uintptr
		pteCount     uint
		fanout       uint
	}{
		{"page", 4097, 512, 512},
		{"pteCount", 4096, 511, 512},
		{"fanout", 4096, 512, 511},
	} {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("NewParams did not panic on non-power-of-two %s", tc.name)
				}
			}()
			NewParams(tc.page, tc.pteCount, tc.fanout, false)
		})
	}
}

func TestIndexMathRoundTrip(t *testing.T) {
	p := NewParams(4096, 512, 512, true)
	// Construct a va from known indices and recover them.
	const xidx, sidx, lidx = 7, 3, 200
	va := uintptr(xidx)<<p.xsegShift | uintptr(sidx)<<p.segShift | uintptr(lidx)<<p.pteShift

	if got := p.XSegIndex(va); got != xidx {
		t.Errorf("XSegIndex() = %d, want %d", got, xidx)
	}
	if got := p.SegIndex(va); got != sidx {
		t.Errorf("SegIndex() = %d, want %d", got, sidx)
	}
	if got := p.LeafIndex(va); got != lidx {
		t.Errorf("LeafIndex() = %d, want %d", got, lidx)
	}
}

func TestTruncSeg(t *testing.T) {
	p := NewParams(4096, 512, 512, false)
	va := p.SegSize()*3 + 123
	if got, want := p.TruncSeg(va), p.SegSize()*3; got != want {
		t.Errorf("TruncSeg(%#x) = %#x, want %#x", va, got, want)
	}
}
