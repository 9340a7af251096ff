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

// Package dict implements the associative container that the virtual
// machine exposes to compiled programs as dict[K, V].
//
// # Layout
//
// A Map is an open-addressed hash table. All entries live directly in a
// single slot array whose length is always a power of two. Next to the slot
// array sits an array of control bytes, one per slot, which records the
// state of the slot:
//
//	   empty: 1 0 0 0 0 0 0 0
//	 deleted: 1 1 1 1 1 1 1 0
//	    full: 0 h h h h h h h  // h represents the H2 hash bits
//
// The 7 H2 bits of a full slot let probing reject most non-matching slots
// without comparing keys.
//
// # Probing
//
// Collisions are resolved with a triangular probe sequence over the slot
// array (see probeSeq). Lookups and deletes walk the sequence until they
// find the key or reach an empty slot. Deleted slots are tombstones: they
// never terminate a lookup, because a key inserted after the deleted one may
// have probed through it. Inserts reuse the first tombstone or empty slot on
// the sequence once they know the key is absent.
//
// # Growth
//
// After a new key is inserted, the map grows if live entries plus
// tombstones exceed 2/3 of the capacity. Growing doubles the capacity and
// reinserts every live entry into a fresh slot array, dropping all
// tombstones. Capacity never shrinks.
//
// # Iteration
//
// Iteration walks the slot array in physical order. FastIter returns the
// cursor value used by lowered for-loops; All and Keys are the
// range-over-func forms. Mutating a map that is being iterated with
// FastIter is undefined: the iterator never reads out of bounds but may skip
// or repeat entries.
package dict

import (
	"fmt"
	"strings"
	"unsafe"

	"go.uber.org/zap"
)

const (
	// MinLogSize is log2 of the capacity every Map starts with.
	MinLogSize = 6

	// A map grows when (used+tombstones)/capacity > maxFillNum/maxFillDen.
	maxFillNum = 2
	maxFillDen = 3

	ctrlEmpty   ctrl = 0b10000000
	ctrlDeleted ctrl = 0b11111110
)

// Slot holds a key and value.
type Slot[K comparable, V any] struct {
	key   K
	value V
}

// Map is an unordered map from keys to values. A *Map is a shared handle:
// every alias of the pointer observes mutations made through any other
// alias.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V comparable] struct {
	hash      HashFunc[K]
	allocator Allocator[K, V]
	logger    *zap.Logger
	// ctrls and slots are both capacity in length.
	ctrls []ctrl
	slots []Slot[K, V]
	// logSize is log2(capacity).
	logSize uint
	// The number of full slots (i.e. the number of elements in the map).
	used int
	// The number of deleted slots. Reset to 0 by resize.
	tombstones int
}

// New constructs an empty Map with 2^MinLogSize slots. The zero value of a
// Map is not usable.
func New[K comparable, V comparable](options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		allocator: defaultAllocator[K, V]{},
		logSize:   MinLogSize,
	}

	for _, op := range options {
		op.apply(m)
	}

	if m.hash == nil {
		m.hash = MakeDefaultHashFunc[K]()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("dict")
	if m.logSize < MinLogSize {
		m.logSize = MinLogSize
	}

	m.alloc(m.logSize)
	m.checkInvariants()
	return m
}

// Close releases the slot array back to the configured allocator. It is
// unnecessary to close a map using the default allocator. It is invalid to
// use a Map after it has been closed, though Close itself is idempotent.
func (m *Map[K, V]) Close() {
	if m.ctrls == nil {
		return
	}
	m.free(m.ctrls, m.slots)
	m.logger.Debug("closed", zap.Int("capacity", len(m.ctrls)))
	m.ctrls = nil
	m.slots = nil
	m.used = 0
	m.tombstones = 0
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting the value of an existing
// entry with the same key. Overwriting never changes Len and never grows
// the map.
func (m *Map[K, V]) Put(key K, value V) {
	h := m.hash(key)

	// The first tombstone or empty slot on the probe sequence. We can only
	// place the key there once the rest of the sequence has been searched
	// for an existing entry, which ends at the first empty slot.
	target := -1
	seq := makeProbeSeq(h1(h), m.mask())
	for n := 0; n < len(m.ctrls); n, seq = n+1, seq.next() {
		i := int(seq.offset)
		c := m.ctrls[i]
		switch c.state() {
		case slotOccupied:
			if c == ctrl(h2(h)) && m.slots[i].key == key {
				m.slots[i].value = value
				m.checkInvariants()
				return
			}
			continue
		case slotTombstone:
			if target < 0 {
				target = i
			}
			continue
		case slotEmpty:
			if target < 0 {
				target = i
			}
		}
		break
	}

	if target < 0 {
		panic(fmt.Sprintf("dict: no free slot for %v\n%s", key, m.debugString()))
	}
	if m.ctrls[target] == ctrlDeleted {
		m.tombstones--
	}
	m.ctrls[target] = ctrl(h2(h))
	m.slots[target] = Slot[K, V]{key: key, value: value}
	m.used++

	if m.overloaded() {
		m.resize(m.logSize + 1)
	}
	m.checkInvariants()
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if i := m.find(key); i >= 0 {
		return m.slots[i].value, true
	}
	return value, false
}

// Lookup retrieves the value for the specified key. If the key is not
// present the returned error is marked with ErrKeyMissing and wraps a
// *KeyError carrying the key.
func (m *Map[K, V]) Lookup(key K) (V, error) {
	if i := m.find(key); i >= 0 {
		return m.slots[i].value, nil
	}
	var zero V
	return zero, newKeyError(key)
}

// Has reports whether the key is present in the map.
func (m *Map[K, V]) Has(key K) bool {
	return m.find(key) >= 0
}

// Delete removes the entry for the specified key, leaving a tombstone in
// its slot. Deleting a key that is not present returns an error marked with
// ErrKeyMissing; in particular deleting the same key twice fails the second
// time.
func (m *Map[K, V]) Delete(key K) error {
	i := m.find(key)
	if i < 0 {
		return newKeyError(key)
	}
	m.slots[i] = Slot[K, V]{}
	m.ctrls[i] = ctrlDeleted
	m.used--
	m.tombstones++
	m.checkInvariants()
	return nil
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Equal reports whether m and other hold the same set of key/value pairs.
// The result does not depend on capacity, slot order or on the deletions
// either map has seen.
func (m *Map[K, V]) Equal(other *Map[K, V]) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m == other {
		return true
	}
	if m.used != other.used {
		return false
	}
	for i, c := range m.ctrls {
		if c.state() != slotOccupied {
			continue
		}
		s := &m.slots[i]
		v, ok := other.Get(s.key)
		if !ok || v != s.value {
			return false
		}
	}
	return true
}

// Clear deletes all entries from the map. The capacity is retained.
func (m *Map[K, V]) Clear() {
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
		m.slots[i] = Slot[K, V]{}
	}
	m.used = 0
	m.tombstones = 0
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map,
// in slot order. If yield returns false, iteration stops. The map can be
// mutated during iteration, though there is no guarantee that the mutations
// will be visible to the iteration.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the controls and slots so that iteration remains in bounds
	// if the map is resized during iteration.
	ctrls, slots := m.ctrls, m.slots
	for i, c := range ctrls {
		if c.state() != slotOccupied {
			continue
		}
		s := &slots[i]
		if !yield(s.key, s.value) {
			return
		}
	}
}

// Keys calls yield sequentially for each key present in the map, in slot
// order. If yield returns false, iteration stops.
func (m *Map[K, V]) Keys(yield func(key K) bool) {
	m.All(func(k K, _ V) bool {
		return yield(k)
	})
}

// capacity returns the number of slots in the slot array.
func (m *Map[K, V]) capacity() int {
	return len(m.ctrls)
}

func (m *Map[K, V]) mask() uint64 {
	return uint64(len(m.ctrls) - 1)
}

// overloaded reports whether live entries plus tombstones exceed the
// maximum fill ratio.
func (m *Map[K, V]) overloaded() bool {
	return (m.used+m.tombstones)*maxFillDen > m.capacity()*maxFillNum
}

// find returns the index of the slot holding key, or -1 if the key is not
// present. Tombstones are probed through; the first empty slot ends the
// search.
func (m *Map[K, V]) find(key K) int {
	h := m.hash(key)
	seq := makeProbeSeq(h1(h), m.mask())
	for n := 0; n < len(m.ctrls); n, seq = n+1, seq.next() {
		i := int(seq.offset)
		c := m.ctrls[i]
		switch c.state() {
		case slotEmpty:
			return -1
		case slotTombstone:
			continue
		case slotOccupied:
			if c == ctrl(h2(h)) && m.slots[i].key == key {
				return i
			}
		}
	}
	return -1
}

// uncheckedPut inserts an entry known not to be in the table into a table
// known not to contain tombstones. Used by resize.
func (m *Map[K, V]) uncheckedPut(h uint64, key K, value V) {
	seq := makeProbeSeq(h1(h), m.mask())
	for n := 0; n < len(m.ctrls); n, seq = n+1, seq.next() {
		i := int(seq.offset)
		if m.ctrls[i].state() == slotEmpty {
			m.ctrls[i] = ctrl(h2(h))
			m.slots[i] = Slot[K, V]{key: key, value: value}
			return
		}
	}
	panic(fmt.Sprintf("dict: no empty slot for %v during resize", key))
}

// resize allocates a slot array of 2^logSize slots, reinserts every live
// entry of the old array through uncheckedPut and releases the old array.
// Tombstones are not carried over.
func (m *Map[K, V]) resize(logSize uint) {
	oldCtrls, oldSlots := m.ctrls, m.slots
	dropped := m.tombstones

	m.alloc(logSize)
	for i, c := range oldCtrls {
		if c.state() != slotOccupied {
			continue
		}
		s := &oldSlots[i]
		m.uncheckedPut(m.hash(s.key), s.key, s.value)
	}
	m.tombstones = 0
	m.free(oldCtrls, oldSlots)

	m.logger.Debug("resized",
		zap.Int("old-capacity", len(oldCtrls)),
		zap.Int("capacity", len(m.ctrls)),
		zap.Int("used", m.used),
		zap.Int("dropped-tombstones", dropped))
}

// alloc installs a fresh, all-empty slot array of 2^logSize slots.
func (m *Map[K, V]) alloc(logSize uint) {
	n := 1 << logSize
	m.slots = m.allocator.AllocSlots(n)
	m.ctrls = unsafeConvertSlice[ctrl](m.allocator.AllocControls(n))
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
		m.slots[i] = Slot[K, V]{}
	}
	m.logSize = logSize
}

func (m *Map[K, V]) free(ctrls []ctrl, slots []Slot[K, V]) {
	m.allocator.FreeSlots(slots)
	m.allocator.FreeControls(unsafeConvertSlice[uint8](ctrls))
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if len(m.ctrls) != 1<<m.logSize || len(m.slots) != len(m.ctrls) {
			panic(fmt.Sprintf("invariant failed: logSize=%d but %d ctrls and %d slots",
				m.logSize, len(m.ctrls), len(m.slots)))
		}

		// For every full slot, verify we can find the key again through the
		// probe sequence. Count the number of used and deleted slots.
		var used, deleted int
		for i, c := range m.ctrls {
			switch c.state() {
			case slotTombstone:
				deleted++
			case slotOccupied:
				s := &m.slots[i]
				h := m.hash(s.key)
				if c != ctrl(h2(h)) {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v has ctrl %02x, expected %02x\n%s",
						i, s.key, c, h2(h), m.debugString()))
				}
				if j := m.find(s.key); j != i {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v found at %d\n%s",
						i, s.key, j, m.debugString()))
				}
				used++
			}
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
		if deleted != m.tombstones {
			panic(fmt.Sprintf("invariant failed: found %d deleted slots, but tombstone count is %d\n%s",
				deleted, m.tombstones, m.debugString()))
		}
		if m.overloaded() {
			panic(fmt.Sprintf("invariant failed: used=%d tombstones=%d exceeds fill ratio of capacity=%d",
				m.used, m.tombstones, m.capacity()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombstones=%d\n", len(m.ctrls), m.used, m.tombstones)
	for i, c := range m.ctrls {
		switch c.state() {
		case slotEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case slotTombstone:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		case slotOccupied:
			fmt.Fprintf(&buf, "  %4d: %v [ctrl=%02x]\n", i, m.slots[i].key, c)
		}
	}
	return buf.String()
}

// ctrl is the control byte of a slot. See the package documentation for the
// bit patterns.
type ctrl uint8

// slotState is the tag of a slot: exactly one of empty, occupied or
// tombstone.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

func (c ctrl) state() slotState {
	switch {
	case c&ctrlEmpty == 0:
		return slotOccupied
	case c == ctrlEmpty:
		return slotEmpty
	case c == ctrlDeleted:
		return slotTombstone
	}
	panic(fmt.Sprintf("dict: invalid control byte %02x", uint8(c)))
}

// probeSeq maintains the state for a probe sequence. The sequence is a
// triangular progression of the form
//
//	p(i) := (i^2 + i)/2 + hash (mod mask+1)
//
// It visits every slot exactly once in mask+1 steps when the number of
// slots is a power of two, since (i^2+i)/2 is a bijection in Z/(2^m). See
// https://en.wikipedia.org/wiki/Quadratic_probing
type probeSeq struct {
	mask   uint64
	offset uint64
	index  uint64
}

func makeProbeSeq(hash, mask uint64) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset = (s.offset + s.index) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}

// Extracts the H1 portion of a hash: the 57 upper bits.
func h1(h uint64) uint64 {
	return h >> 7
}

// Extracts the H2 portion of a hash: the 7 bits not used for h1.
//
// These are stored in the control byte of a full slot.
func h2(h uint64) uint64 {
	return h & 0x7f
}

func unsafeConvertSlice[Dest any, Src any](s []Src) []Dest {
	return unsafe.Slice((*Dest)(unsafe.Pointer(unsafe.SliceData(s))), len(s))
}
