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
	"github.com/cockroachdb/errors"
)

// Kind is the class of a runtime error as the host reports it.
type Kind string

const (
	KindRuntimeError   Kind = "RuntimeError"
	KindAbort          Kind = "Abort"
	KindKeyError       Kind = "KeyError"
	KindTypeError      Kind = "TypeError"
	KindAttributeError Kind = "AttributeError"
)

var (
	errWrongArgType = errors.New("wrong argument type")
	errWrongArity   = errors.New("wrong number of arguments")
	errNoMethod     = errors.New("no such method")
	errAbort        = errors.New("abort")
)

// RuntimeError is an error raised by compiled code or by a builtin it
// called. It is the only error type Call and its helpers return.
type RuntimeError struct {
	Kind  Kind
	Msg   string
	cause error
}

var _ error = (*RuntimeError)(nil)
var _ fmt.Formatter = (*RuntimeError)(nil)

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the error the runtime error was converted from, if any.
func (e *RuntimeError) Unwrap() error { return e.cause }

func (e *RuntimeError) Format(s fmt.State, verb rune) { errors.FormatError(e, s, verb) }

type errorToKind struct {
	err  error
	kind Kind
}

var errorToKindMappings = []errorToKind{
	{dict.ErrKeyMissing, KindKeyError},
	{errWrongArgType, KindTypeError},
	{errWrongArity, KindTypeError},
	{errNoMethod, KindAttributeError},
	{errAbort, KindAbort},
}

// toRuntimeError converts an error returned by a container or by argument
// checking into a *RuntimeError. Runtime errors pass through unchanged.
func toRuntimeError(err error) error {
	if err == nil {
		return nil
	}
	if e := (*RuntimeError)(nil); errors.As(err, &e) {
		return err
	}
	kind := KindRuntimeError
	for _, rec := range errorToKindMappings {
		if errors.Is(err, rec.err) {
			kind = rec.kind
			break
		}
	}
	msg := err.Error()
	if ke := (*dict.KeyError)(nil); errors.As(err, &ke) {
		msg = ke.Repr()
	}
	return &RuntimeError{Kind: kind, Msg: msg, cause: err}
}

// KindOf returns the kind of a runtime error, or "" if err is not one.
func KindOf(err error) Kind {
	if e := (*RuntimeError)(nil); errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Abortf returns a runtime error that compiled code cannot catch.
func Abortf(format string, args ...interface{}) error {
	return toRuntimeError(errors.Mark(errors.Newf(format, args...), errAbort))
}

func wrongArgType(method string, i int, want string, got any) error {
	return errors.Mark(errors.Newf("%s() argument %d must be %s, not %s",
		method, i+1, want, typeNameOf(got)), errWrongArgType)
}

func checkArity(method string, args []any, n int) error {
	if len(args) != n {
		return errors.Mark(errors.Newf("%s() takes %d argument(s) (%d given)",
			method, n, len(args)), errWrongArity)
	}
	return nil
}

// arg returns args[i] as a T.
func arg[T any](method string, args []any, i int) (T, error) {
	v, ok := args[i].(T)
	if !ok {
		var zero T
		return zero, wrongArgType(method, i, typeName[T](), args[i])
	}
	return v, nil
}

func noMethod(obj Object, name string) error {
	return errors.Mark(errors.Newf("'%s' object has no attribute '%s'",
		obj.TypeName(), name), errNoMethod)
}

func wrongResultType(obj Object, method, want string, got any) error {
	return errors.Mark(errors.Newf("%s.%s() must return %s, not %s",
		obj.TypeName(), method, want, typeNameOf(got)), errWrongArgType)
}
