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
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFastIter(t *testing.T) {
	m := New[int32, int32]()
	m.Put(10, -1)
	m.Put(20, -1)
	m.Put(30, -1)

	it := m.FastIter()
	var total int32
	for it.Continue() {
		total += it.Item()
		it = it.Next()
	}
	require.EqualValues(t, 60, total)
	require.False(t, it.Continue())
}

func TestFastIterForLoop(t *testing.T) {
	m := New[int32, int32]()
	for k := int32(1); k <= 4; k++ {
		m.Put(k, -1)
	}
	var total int32
	for it := m.FastIter(); it.Continue(); it = it.Next() {
		total += it.Item()
		require.EqualValues(t, -1, it.Value())
	}
	require.EqualValues(t, 10, total)
}

func TestFastIterEmpty(t *testing.T) {
	m := New[int, int]()
	it := m.FastIter()
	require.False(t, it.Continue())
	require.False(t, it.Next().Continue())
	require.Panics(t, func() { it.Item() })
	require.Panics(t, func() { it.Value() })

	var zero Iter[int, int]
	require.False(t, zero.Continue())
	require.False(t, zero.Next().Continue())
}

func TestFastIterImmutable(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 5; i++ {
		m.Put(i, i)
	}
	it := m.FastIter()
	first := it.Item()
	next := it.Next()
	// Advancing returns a new cursor; the original is unchanged and
	// advancing it again yields the same position.
	require.Equal(t, first, it.Item())
	require.Equal(t, next, it.Next())
	require.NotEqual(t, first, next.Item())
}

func TestFastIterSkipsTombstones(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	for i := 0; i < 100; i += 2 {
		require.NoError(t, m.Delete(i))
	}

	var keys []int
	for it := m.FastIter(); it.Continue(); it = it.Next() {
		keys = append(keys, it.Item())
	}
	sort.Ints(keys)
	require.Len(t, keys, 50)
	for i, k := range keys {
		require.EqualValues(t, 2*i+1, k)
	}
}

func TestFastIterSlotOrder(t *testing.T) {
	m := New[int, int](WithHash[int, int](IntHash[int]))
	for i := 0; i < 30; i++ {
		m.Put(i, i)
	}
	var fast, all []int
	for it := m.FastIter(); it.Continue(); it = it.Next() {
		fast = append(fast, it.Item())
	}
	m.Keys(func(k int) bool {
		all = append(all, k)
		return true
	})
	require.Equal(t, all, fast)
}

func TestFastIterInvalidated(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 10; i++ {
		m.Put(i, i)
	}

	// Using an iterator after the map has grown or lost the current entry
	// is undefined, but it must stay in bounds and terminate.
	it := m.FastIter()
	for i := 100; i < 300; i++ {
		m.Put(i, i)
	}
	require.NotPanics(t, func() {
		n := 0
		for ; it.Continue(); it = it.Next() {
			_ = it.Item()
			n++
		}
		require.LessOrEqual(t, n, m.capacity())
	})

	it = m.FastIter()
	require.NoError(t, m.Delete(it.Item()))
	require.False(t, it.Continue())
	require.NotPanics(t, func() { it.Next() })
}
