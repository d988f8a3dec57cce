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

import "errors"

// ErrNoMemory is returned by Reserve when canFail is true and no page is
// immediately available, mirroring PMAP_CANFAIL's ENOMEM return in the
// reference implementation's pmap_enter (spec.md §4.F).
var ErrNoMemory = errors.New("segtab: no memory available")
