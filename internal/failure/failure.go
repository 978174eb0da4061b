// Copyright 2025 go-highway Authors
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

// Package failure defines the error kinds shared by every stage of the
// compile pipeline. A Kind is itself an error so callers can test for it
// with errors.Is.
package failure

import "fmt"

// Kind classifies why a compilation attempt failed.
type Kind int

const (
	// Unsupported: a construct or type outside the closed grammar.
	Unsupported Kind = iota + 1
	// Toolchain: the external compiler or extractor failed.
	Toolchain
	// Load: mapping or protecting executable memory failed.
	Load
)

func (k Kind) String() string {
	switch k {
	case Unsupported:
		return "unsupported construct"
	case Toolchain:
		return "toolchain failure"
	case Load:
		return "load failure"
	default:
		return fmt.Sprintf("failure.Kind(%d)", int(k))
	}
}

func (k Kind) Error() string { return k.String() }

// Error is a pipeline failure of a given kind. Op names the stage or
// construct that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Unsupportedf returns an Unsupported error with a formatted description.
func Unsupportedf(format string, args ...any) error {
	return &Error{Kind: Unsupported, Op: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and op to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
