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

package sync

// NoCopy may be embedded into structs which must not be copied after the
// first use. See https://golang.org/issues/8005#issuecomment-190753527 for
// details. This is used by the atomicbitops aligned types, whose addresses
// are load-bearing.
//
// Note that it must not be embedded into another struct by value, or it
// will lose its lock/unlock methods and go vet's copylocks check won't
// catch accidental copies.
type NoCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*NoCopy) Lock() {}

// Unlock is a no-op used by -copylocks checker from `go vet`.
func (*NoCopy) Unlock() {}
