// Copyright 2024 The Cockroach Authors
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

package dict

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// HashFunc maps a key to a 64-bit hash. The low 7 bits are stored in the
// control byte of the key's slot and the remaining bits select the start of
// its probe sequence.
type HashFunc[K comparable] func(key K) uint64

// MakeDefaultHashFunc returns a hash function for any comparable key type,
// seeded randomly. Hashes are stable for the lifetime of the returned
// function.
func MakeDefaultHashFunc[K comparable]() HashFunc[K] {
	seed := maphash.MakeSeed()

	return func(key K) uint64 {
		return maphash.Comparable(seed, key)
	}
}

// StringHash hashes string keys with xxHash. Unlike the default hash it is
// stable across processes.
func StringHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// IntHash hashes integer keys using Fibonacci hashing, folding the high
// half into the low half so that both H1 and H2 see every input bit.
func IntHash[K constraints.Integer](key K) uint64 {
	h := uint64(key) * 0x9e3779b97f4a7c15
	return h ^ (h >> 32)
}
