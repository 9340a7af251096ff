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

package vm

import (
	"fmt"

	"github.com/cockroachdb/dict"
)

// Dict is the runtime object behind dict[K, V]. A *Dict is a reference:
// assigning it shares the underlying map, and a mutation through any alias
// is visible through all of them.
type Dict[K comparable, V comparable] struct {
	m *dict.Map[K, V]
}

var _ Object = (*Dict[int32, int32])(nil)

// NewDict creates an empty dict whose resizes are traced through the VM's
// logger.
func NewDict[K comparable, V comparable](v *VM) *Dict[K, V] {
	return &Dict[K, V]{m: dict.New[K, V](dict.WithLogger[K, V](v.logger))}
}

// WrapDict returns the runtime object for an existing map.
func WrapDict[K comparable, V comparable](m *dict.Map[K, V]) *Dict[K, V] {
	return &Dict[K, V]{m: m}
}

// Map returns the underlying map.
func (d *Dict[K, V]) Map() *dict.Map[K, V] {
	return d.m
}

func (d *Dict[K, V]) TypeName() string {
	return fmt.Sprintf("dict[%s, %s]", typeName[K](), typeName[V]())
}

// GetItem implements d[key].
func (d *Dict[K, V]) GetItem(key K) (V, error) {
	v, err := d.m.Lookup(key)
	return v, toRuntimeError(err)
}

// SetItem implements d[key] = value.
func (d *Dict[K, V]) SetItem(key K, value V) {
	d.m.Put(key, value)
}

// DelItem implements del d[key].
func (d *Dict[K, V]) DelItem(key K) error {
	return toRuntimeError(d.m.Delete(key))
}

// Len implements len(d).
func (d *Dict[K, V]) Len() int {
	return d.m.Len()
}

// Contains implements key in d.
func (d *Dict[K, V]) Contains(key K) bool {
	return d.m.Has(key)
}

// Eq implements d == other.
func (d *Dict[K, V]) Eq(other *Dict[K, V]) bool {
	if other == nil {
		return false
	}
	return d.m.Equal(other.m)
}

// FastIter implements d.__fastiter__().
func (d *Dict[K, V]) FastIter() DictIterator[K, V] {
	return DictIterator[K, V]{it: d.m.FastIter()}
}

func (d *Dict[K, V]) Method(name string) (Method, bool) {
	switch name {
	case "__getitem__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 1); err != nil {
				return nil, err
			}
			k, err := arg[K](name, args, 0)
			if err != nil {
				return nil, err
			}
			return d.GetItem(k)
		}, true
	case "__setitem__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 2); err != nil {
				return nil, err
			}
			k, err := arg[K](name, args, 0)
			if err != nil {
				return nil, err
			}
			v, err := arg[V](name, args, 1)
			if err != nil {
				return nil, err
			}
			d.SetItem(k, v)
			return nil, nil
		}, true
	case "__delitem__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 1); err != nil {
				return nil, err
			}
			k, err := arg[K](name, args, 0)
			if err != nil {
				return nil, err
			}
			return nil, d.DelItem(k)
		}, true
	case "__len__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 0); err != nil {
				return nil, err
			}
			return d.Len(), nil
		}, true
	case "__contains__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 1); err != nil {
				return nil, err
			}
			k, err := arg[K](name, args, 0)
			if err != nil {
				return nil, err
			}
			return d.Contains(k), nil
		}, true
	case "__eq__", "__ne__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 1); err != nil {
				return nil, err
			}
			// Dicts of a different type are never equal.
			other, _ := args[0].(*Dict[K, V])
			eq := d.Eq(other)
			if name == "__ne__" {
				return !eq, nil
			}
			return eq, nil
		}, true
	case "__fastiter__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 0); err != nil {
				return nil, err
			}
			return d.FastIter(), nil
		}, true
	}
	return nil, false
}

// DictIterator is the object returned by __fastiter__. It is an immutable
// value: __next__ returns a new iterator.
type DictIterator[K comparable, V comparable] struct {
	it dict.Iter[K, V]
}

var _ Object = DictIterator[int32, int32]{}

func (it DictIterator[K, V]) TypeName() string {
	return fmt.Sprintf("dict_iterator[%s, %s]", typeName[K](), typeName[V]())
}

// ContinueIteration implements it.__continue_iteration__().
func (it DictIterator[K, V]) ContinueIteration() bool {
	return it.it.Continue()
}

// Item implements it.__item__(). Reading past the end aborts.
func (it DictIterator[K, V]) Item() (K, error) {
	if !it.it.Continue() {
		var zero K
		return zero, Abortf("__item__() called on exhausted %s", it.TypeName())
	}
	return it.it.Item(), nil
}

// Next implements it.__next__().
func (it DictIterator[K, V]) Next() DictIterator[K, V] {
	return DictIterator[K, V]{it: it.it.Next()}
}

func (it DictIterator[K, V]) Method(name string) (Method, bool) {
	switch name {
	case "__continue_iteration__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 0); err != nil {
				return nil, err
			}
			return it.ContinueIteration(), nil
		}, true
	case "__item__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 0); err != nil {
				return nil, err
			}
			return it.Item()
		}, true
	case "__next__":
		return func(args ...any) (any, error) {
			if err := checkArity(name, args, 0); err != nil {
				return nil, err
			}
			return it.Next(), nil
		}, true
	}
	return nil, false
}
