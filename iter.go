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

import "fmt"

// Iter is a cursor over the keys of a Map in slot order. It is the value
// consumed by lowered for-loops:
//
//	for it := m.FastIter(); it.Continue(); it = it.Next() {
//	  k := it.Item()
//	}
//
// An Iter is immutable: Next returns a new cursor and leaves the receiver
// untouched. The Map must outlive its iterators. Inserting into or deleting
// from the map after the Iter was created invalidates it; continuing to use
// it will not read out of bounds but may skip or repeat keys.
type Iter[K comparable, V comparable] struct {
	m *Map[K, V]
	i int
}

// FastIter returns a cursor positioned at the first live slot of the map.
func (m *Map[K, V]) FastIter() Iter[K, V] {
	return Iter[K, V]{m: m, i: m.nextOccupied(0)}
}

// Continue reports whether the cursor designates a live entry.
func (it Iter[K, V]) Continue() bool {
	return it.m != nil && it.i < len(it.m.ctrls) &&
		it.m.ctrls[it.i].state() == slotOccupied
}

// Item returns the key under the cursor. It panics if Continue is false.
func (it Iter[K, V]) Item() K {
	if !it.Continue() {
		panic(fmt.Sprintf("dict: Item called on exhausted iterator (index %d)", it.i))
	}
	return it.m.slots[it.i].key
}

// Value returns the value under the cursor. It panics if Continue is false.
func (it Iter[K, V]) Value() V {
	if !it.Continue() {
		panic(fmt.Sprintf("dict: Value called on exhausted iterator (index %d)", it.i))
	}
	return it.m.slots[it.i].value
}

// Next returns a cursor positioned at the next live slot after the current
// one. Advancing an exhausted iterator returns an exhausted iterator.
func (it Iter[K, V]) Next() Iter[K, V] {
	if it.m == nil {
		return it
	}
	return Iter[K, V]{m: it.m, i: it.m.nextOccupied(it.i + 1)}
}

// nextOccupied returns the index of the first full slot at or after i, or
// the capacity if there is none.
func (m *Map[K, V]) nextOccupied(i int) int {
	for ; i < len(m.ctrls); i++ {
		if m.ctrls[i].state() == slotOccupied {
			return i
		}
	}
	return len(m.ctrls)
}
