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

import "go.uber.org/zap"

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V comparable] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V comparable] struct {
	hash HashFunc[K]
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map[K,V].
// The function must be deterministic for the lifetime of the map: a key
// whose hash changes while it is stored can no longer be found.
func WithHash[K comparable, V comparable](hash HashFunc[K]) option[K, V] {
	return hashOption[K, V]{hash}
}

type logSizeOption[K comparable, V comparable] struct {
	logSize uint
}

func (op logSizeOption[K, V]) apply(m *Map[K, V]) {
	m.logSize = op.logSize
}

// WithInitialLogSize sets log2 of the initial capacity. Values below
// MinLogSize are raised to MinLogSize.
func WithInitialLogSize[K comparable, V comparable](logSize uint) option[K, V] {
	return logSizeOption[K, V]{logSize}
}

type loggerOption[K comparable, V comparable] struct {
	logger *zap.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	m.logger = op.logger
}

// WithLogger sets the logger used to trace resizes. The default discards
// all output.
func WithLogger[K comparable, V comparable](logger *zap.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Map. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that slots and
// controls be freed then Map.Close must be called in order to ensure
// FreeSlots and FreeControls are called.
type Allocator[K comparable, V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[K,V], n).
	AllocSlots(n int) []Slot[K, V]

	// AllocControls should return a slice equivalent to make([]uint8, n).
	AllocControls(n int) []uint8

	// FreeSlots can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocSlots.
	FreeSlots(v []Slot[K, V])

	// FreeControls can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocControls.
	FreeControls(v []uint8)
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	return make([]Slot[K, V], n)
}

func (defaultAllocator[K, V]) AllocControls(n int) []uint8 {
	return make([]uint8, n)
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

func (defaultAllocator[K, V]) FreeControls(v []uint8) {
}

type allocatorOption[K comparable, V comparable] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V comparable](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
