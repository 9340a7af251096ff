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

// Package diag renders compile-time diagnostics. An Error carries a
// headline message and any number of annotations, each pointing at a span
// of source with a caret underline:
//
//	error: mismatched types
//	   --> main.src:2:12
//	  2 |     return 'hello'
//	    |            ^^^^^^^ expected `i32`, got `str`
package diag

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
)

// Loc is a span of source. Lines are 1-based, columns 0-based; ColEnd is
// exclusive.
type Loc struct {
	Filename  string
	LineStart int
	LineEnd   int
	ColStart  int
	ColEnd    int
}

func (l Loc) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.LineStart, l.ColStart+1)
}

// Level is the severity of an annotation.
type Level string

const (
	LevelError Level = "error"
	LevelNote  Level = "note"
)

func (l Level) color() color.Attribute {
	if l == LevelNote {
		return color.FgGreen
	}
	return color.FgRed
}

// Annotation attaches a message to a span of source.
type Annotation struct {
	Level   Level
	Message string
	Loc     Loc
}

// Kind classifies a compile error. ParseError, TypeError and LookupError
// are all compile errors.
type Kind int

const (
	CompileError Kind = iota
	ParseError
	TypeError
	LookupError
)

var kindNames = [...]string{
	CompileError: "CompileError",
	ParseError:   "ParseError",
	TypeError:    "TypeError",
	LookupError:  "LookupError",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a compile error with its annotations.
type Error struct {
	Kind        Kind
	Message     string
	Annotations []Annotation

	source LineSource
}

var _ error = (*Error)(nil)

// New returns an error without annotations.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Simple returns an error with a single error-level annotation: primary is
// the headline and secondary labels the span.
func Simple(kind Kind, primary, secondary string, loc Loc) *Error {
	e := New(kind, primary)
	e.Add(LevelError, secondary, loc)
	return e
}

// Add appends an annotation.
func (e *Error) Add(level Level, message string, loc Loc) {
	e.Annotations = append(e.Annotations, Annotation{Level: level, Message: message, Loc: loc})
}

// WithSource sets where the source lines shown under annotations come
// from. The default is DefaultSource.
func (e *Error) WithSource(src LineSource) *Error {
	e.source = src
	return e
}

// Error returns the rendering without colors.
func (e *Error) Error() string {
	return e.Render(false)
}

// Render formats the error and its annotations, one line per element,
// optionally with ANSI colors.
func (e *Error) Render(useColors bool) string {
	src := e.source
	if src == nil {
		src = DefaultSource
	}
	f := formatter{useColors: useColors, src: src}
	f.message(LevelError, e.Message)
	for _, ann := range e.Annotations {
		f.annotation(ann)
	}
	return strings.Join(f.lines, "\n")
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	if e := (*Error)(nil); errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// MaybePlural returns singular when n is 1 and the plural otherwise. An
// empty plural means singular+"s".
func MaybePlural(n int, singular, plural string) string {
	switch {
	case n == 1:
		return singular
	case plural == "":
		return singular + "s"
	default:
		return plural
	}
}

type formatter struct {
	useColors bool
	src       LineSource
	lines     []string
}

func (f *formatter) paint(attr color.Attribute, s string) string {
	if !f.useColors {
		return s
	}
	c := color.New(attr)
	// Color output is requested explicitly, regardless of the terminal.
	c.EnableColor()
	return c.Sprint(s)
}

func (f *formatter) message(level Level, msg string) {
	f.lines = append(f.lines, fmt.Sprintf("%s: %s",
		f.paint(level.color(), string(level)), f.paint(color.FgWhite, msg)))
}

func (f *formatter) annotation(ann Annotation) {
	line := ann.Loc.LineStart
	srcline := strings.TrimRight(f.src.Line(ann.Loc.Filename, line), "\r\n")
	f.lines = append(f.lines,
		"   --> "+ann.Loc.String(),
		fmt.Sprintf("%3d | %s", line, srcline),
		"    | "+f.paint(ann.Level.color(), carets(ann.Loc, ann.Message)),
		"",
	)
}

// carets underlines loc and appends message. A span that ends before it
// starts, as multi-line spans may, gets a single caret.
func carets(loc Loc, message string) string {
	n := loc.ColEnd - loc.ColStart
	if n < 1 {
		n = 1
	}
	return strings.Repeat(" ", max(loc.ColStart, 0)) + strings.Repeat("^", n) + " " + message
}
