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

// Package vm is the surface through which compiled programs reach the
// builtin containers. Compiled code never calls a container directly: it
// dispatches protocol methods by name (__getitem__, __fastiter__, ...) on
// an Object and receives either a result or a *RuntimeError.
package vm

import (
	"reflect"

	"go.uber.org/zap"
)

// Object is a value that protocol methods can be dispatched on.
type Object interface {
	// TypeName returns the name of the object's type as the language
	// spells it.
	TypeName() string
	// Method returns the implementation of the named protocol method.
	Method(name string) (Method, bool)
}

// Method implements one protocol method of an Object. Arguments are
// checked by the method itself.
type Method func(args ...any) (any, error)

// Option configures a VM.
type Option func(v *VM)

// WithLogger sets the logger of the VM and of the containers it creates.
func WithLogger(logger *zap.Logger) Option {
	return func(v *VM) {
		v.logger = logger
	}
}

// VM dispatches protocol methods. A VM is not goroutine-safe: the host
// guarantees at most one thread of control touches its heap at a time.
type VM struct {
	logger *zap.Logger
}

// New creates a VM.
func New(options ...Option) *VM {
	v := &VM{}
	for _, opt := range options {
		opt(v)
	}
	if v.logger == nil {
		v.logger = zap.NewNop()
	}
	v.logger = v.logger.Named("vm")
	return v
}

// Logger returns the VM's logger.
func (v *VM) Logger() *zap.Logger {
	return v.logger
}

// Call dispatches the named method on obj. Every error it returns is a
// *RuntimeError.
func (v *VM) Call(obj Object, name string, args ...any) (any, error) {
	if obj == nil {
		return nil, Abortf("%s called on nil object", name)
	}
	m, ok := obj.Method(name)
	if !ok {
		err := toRuntimeError(noMethod(obj, name))
		v.logger.Debug("dispatch failed",
			zap.String("type", obj.TypeName()),
			zap.String("method", name),
			zap.Error(err))
		return nil, err
	}
	res, err := m(args...)
	if err != nil {
		err = toRuntimeError(err)
		v.logger.Debug("method raised",
			zap.String("type", obj.TypeName()),
			zap.String("method", name),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

// ForEach runs body once per item of obj, driving the fast iteration
// protocol the way a lowered for-loop does:
//
//	it = obj.__fastiter__()
//	while it.__continue_iteration__():
//	    body(it.__item__())
//	    it = it.__next__()
//
// An error returned by body stops the loop and is returned unchanged.
func (v *VM) ForEach(obj Object, body func(item any) error) error {
	res, err := v.Call(obj, "__fastiter__")
	if err != nil {
		return err
	}
	it, err := asObject(res, "__fastiter__")
	if err != nil {
		return err
	}
	for {
		res, err := v.Call(it, "__continue_iteration__")
		if err != nil {
			return err
		}
		more, ok := res.(bool)
		if !ok {
			return toRuntimeError(wrongResultType(it, "__continue_iteration__", "bool", res))
		}
		if !more {
			return nil
		}
		item, err := v.Call(it, "__item__")
		if err != nil {
			return err
		}
		if err := body(item); err != nil {
			return err
		}
		res, err = v.Call(it, "__next__")
		if err != nil {
			return err
		}
		if it, err = asObject(res, "__next__"); err != nil {
			return err
		}
	}
}

// GetItem evaluates obj[key].
func (v *VM) GetItem(obj Object, key any) (any, error) {
	return v.Call(obj, "__getitem__", key)
}

// SetItem evaluates obj[key] = value.
func (v *VM) SetItem(obj Object, key, value any) error {
	_, err := v.Call(obj, "__setitem__", key, value)
	return err
}

// DelItem evaluates del obj[key].
func (v *VM) DelItem(obj Object, key any) error {
	_, err := v.Call(obj, "__delitem__", key)
	return err
}

// Len evaluates len(obj).
func (v *VM) Len(obj Object) (int, error) {
	res, err := v.Call(obj, "__len__")
	if err != nil {
		return 0, err
	}
	n, ok := res.(int)
	if !ok {
		return 0, toRuntimeError(wrongResultType(obj, "__len__", "int", res))
	}
	return n, nil
}

// Contains evaluates key in obj.
func (v *VM) Contains(obj Object, key any) (bool, error) {
	return v.callBool(obj, "__contains__", key)
}

// Eq evaluates a == b.
func (v *VM) Eq(a, b Object) (bool, error) {
	return v.callBool(a, "__eq__", b)
}

// Ne evaluates a != b.
func (v *VM) Ne(a, b Object) (bool, error) {
	return v.callBool(a, "__ne__", b)
}

func (v *VM) callBool(obj Object, name string, args ...any) (bool, error) {
	res, err := v.Call(obj, name, args...)
	if err != nil {
		return false, err
	}
	b, ok := res.(bool)
	if !ok {
		return false, toRuntimeError(wrongResultType(obj, name, "bool", res))
	}
	return b, nil
}

func asObject(res any, method string) (Object, error) {
	obj, ok := res.(Object)
	if !ok {
		return nil, Abortf("%s() returned non-object %s", method, typeNameOf(res))
	}
	return obj, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

func typeNameOf(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case Object:
		return v.TypeName()
	default:
		return reflect.TypeOf(v).String()
	}
}
