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
	"testing"

	"github.com/cockroachdb/dict"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newI32Dict(v *VM) *Dict[int32, int32] {
	return NewDict[int32, int32](v)
}

func TestSetGetSimple(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	require.NoError(t, v.SetItem(d, int32(1), int32(10)))
	require.NoError(t, v.SetItem(d, int32(2), int32(20)))
	a, err := v.GetItem(d, int32(1))
	require.NoError(t, err)
	b, err := v.GetItem(d, int32(2))
	require.NoError(t, err)
	require.EqualValues(t, 30, a.(int32)+b.(int32))
}

func TestOverwriteValue(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	d.SetItem(1, 1)
	d.SetItem(1, 3)
	got, err := d.GetItem(1)
	require.NoError(t, err)
	require.EqualValues(t, 3, got)
}

func TestLenAndNoGrowthOnUpdate(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	d.SetItem(1, 1)
	d.SetItem(2, 2)
	d.SetItem(3, 3)
	// Updating an existing key does not change the length.
	d.SetItem(2, 22)
	n, err := v.Len(d)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.EqualValues(t, 64, d.Map().Stats().Capacity)
}

func TestMissingKeyRaises(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	_, err := v.GetItem(d, int32(99))
	require.Error(t, err)
	require.Equal(t, KindKeyError, KindOf(err))
	require.EqualError(t, err, "KeyError: 99")
	require.True(t, errors.Is(err, dict.ErrKeyMissing))

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	require.Equal(t, "99", re.Msg)

	_, err = d.GetItem(99)
	require.Equal(t, KindKeyError, KindOf(err))

	s := NewDict[string, int32](v)
	_, err = v.GetItem(s, "foo")
	require.EqualError(t, err, `KeyError: "foo"`)
}

func TestManyInsertsAndLookup(t *testing.T) {
	v := New()
	run := func(n int32) int32 {
		d := newI32Dict(v)
		for i := int32(1); i <= n; i++ {
			require.NoError(t, v.SetItem(d, i, i))
		}
		for i := int32(1); i <= n; i++ {
			got, err := v.GetItem(d, i)
			require.NoError(t, err)
			require.EqualValues(t, i, got)
		}
		got, err := v.GetItem(d, n)
		require.NoError(t, err)
		return got.(int32)
	}
	require.EqualValues(t, 10, run(10))
	// 64 slots and a 2/3 fill ratio: 43 entries trigger a resize.
	require.EqualValues(t, 43, run(43))
	// And 86 entries trigger two.
	require.EqualValues(t, 86, run(86))
}

func TestLenAfterManyInserts(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	for i := int32(0); i < 10; i++ {
		d.SetItem(i, i)
	}
	n, err := v.Len(d)
	require.NoError(t, err)
	require.EqualValues(t, 10, n)
}

func TestDelete(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	d.SetItem(1, 1)
	_, err := v.Call(d, "__delitem__", int32(1))
	require.NoError(t, err)
	require.EqualValues(t, 0, d.Len())
}

func TestDeleteTwiceRaises(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	d.SetItem(1, 1)
	require.NoError(t, v.DelItem(d, int32(1)))
	err := v.DelItem(d, int32(1))
	require.Equal(t, KindKeyError, KindOf(err))
	require.EqualError(t, err, "KeyError: 1")
	require.Equal(t, KindKeyError, KindOf(d.DelItem(1)))
}

func TestFastIter(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	d.SetItem(10, -1)
	d.SetItem(20, -1)
	d.SetItem(30, -1)

	res, err := v.Call(d, "__fastiter__")
	require.NoError(t, err)
	it := res.(Object)
	var total int32
	for {
		more, err := v.Call(it, "__continue_iteration__")
		require.NoError(t, err)
		if !more.(bool) {
			break
		}
		item, err := v.Call(it, "__item__")
		require.NoError(t, err)
		total += item.(int32)
		next, err := v.Call(it, "__next__")
		require.NoError(t, err)
		it = next.(Object)
	}
	require.EqualValues(t, 60, total)

	// Reading past the end aborts rather than panicking.
	_, err = v.Call(it, "__item__")
	require.Equal(t, KindAbort, KindOf(err))
}

func TestForLoop(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	d.SetItem(1, -1)
	d.SetItem(2, -1)
	d.SetItem(3, -1)
	d.SetItem(4, -1)

	var total int32
	require.NoError(t, v.ForEach(d, func(item any) error {
		total += item.(int32)
		return nil
	}))
	require.EqualValues(t, 10, total)
}

func TestForLoopBodyError(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	for i := int32(0); i < 10; i++ {
		d.SetItem(i, i)
	}
	stop := errors.New("stop")
	var n int
	err := v.ForEach(d, func(item any) error {
		n++
		if n == 3 {
			return stop
		}
		return nil
	})
	require.True(t, errors.Is(err, stop))
	require.EqualValues(t, 3, n)

	// Objects without the protocol cannot be iterated.
	it := d.FastIter()
	err = v.ForEach(it, func(any) error { return nil })
	require.Equal(t, KindAttributeError, KindOf(err))
}

func TestContains(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	d.SetItem(1, 1)
	ok, err := v.Contains(d, int32(1))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, v.DelItem(d, int32(1)))
	ok, err = v.Contains(d, int32(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEqual(t *testing.T) {
	v := New()
	build := func(kvs ...int32) *Dict[int32, int32] {
		d := newI32Dict(v)
		for i := 0; i < len(kvs); i += 2 {
			d.SetItem(kvs[i], kvs[i+1])
		}
		return d
	}
	eq := func(a, b Object) bool {
		res, err := v.Eq(a, b)
		require.NoError(t, err)
		ne, err := v.Ne(a, b)
		require.NoError(t, err)
		require.NotEqual(t, res, ne)
		return res
	}

	d1 := build(1, -1, 2, -1, 3, -1)
	require.True(t, eq(d1, build(1, -1, 2, -1, 3, -1)))
	require.False(t, eq(d1, build(1, -1, 2, -1, 3, 0)))
	require.False(t, eq(d1, build(1, -1, 2, -1)))

	d2 := build(1, -1, 2, -1)
	d1.SetItem(33, -1)
	require.False(t, eq(d1, d2))

	// A dict of another type is never equal.
	require.False(t, eq(build(1, 1), NewDict[int32, string](v)))
}

func TestAliasing(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	var alias Object = d
	require.NoError(t, v.SetItem(alias, int32(5), int32(50)))
	got, err := d.GetItem(5)
	require.NoError(t, err)
	require.EqualValues(t, 50, got)

	wrapped := WrapDict(d.Map())
	require.NoError(t, wrapped.DelItem(5))
	require.False(t, d.Contains(5))
}

func TestCallErrors(t *testing.T) {
	v := New()
	d := newI32Dict(v)
	require.Equal(t, "dict[int32, int32]", d.TypeName())

	_, err := v.Call(d, "append", int32(1))
	require.Equal(t, KindAttributeError, KindOf(err))
	require.EqualError(t, err, "AttributeError: 'dict[int32, int32]' object has no attribute 'append'")

	_, err = v.GetItem(d, "x")
	require.Equal(t, KindTypeError, KindOf(err))
	require.EqualError(t, err, "TypeError: __getitem__() argument 1 must be int32, not string")

	err = v.SetItem(d, int32(1), nil)
	require.EqualError(t, err, "TypeError: __setitem__() argument 2 must be int32, not None")

	_, err = v.Call(d, "__len__", int32(1))
	require.Equal(t, KindTypeError, KindOf(err))
	require.EqualError(t, err, "TypeError: __len__() takes 0 argument(s) (1 given)")

	_, err = v.Call(nil, "__len__")
	require.Equal(t, KindAbort, KindOf(err))

	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	v := New(WithLogger(zap.New(core)))
	d := newI32Dict(v)
	for i := int32(0); i < 43; i++ {
		d.SetItem(i, i)
	}
	resized := logs.FilterMessage("resized").All()
	require.Len(t, resized, 1)
	require.Equal(t, "vm.dict", resized[0].LoggerName)

	_, err := v.GetItem(d, int32(1000))
	require.Error(t, err)
	raised := logs.FilterMessage("method raised").All()
	require.Len(t, raised, 1)
	require.Equal(t, "vm", raised[0].LoggerName)
	require.Equal(t, "KeyError", raised[0].ContextMap()["kind"])
	require.Equal(t, "__getitem__", raised[0].ContextMap()["method"])
}
