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

// Package loader maps raw machine code into executable memory and binds it
// to a Go function value with a derived C calling convention.
//
// This package is the only place that manipulates raw memory or page
// permissions. Its trust assumption is explicit and unenforced: the bytes
// handed to Load are taken to be one complete, self-contained function whose
// entry is at offset zero, with no relocations and no references to code or
// data outside the blob. Nothing here inspects or validates instructions.
// The toolchain package is responsible for producing bytes that satisfy the
// assumption.
//
// Faults inside the mapped code are not converted to Go errors. A hardware
// trap, such as the SIGFPE of an integer division by zero, kills the process.
package loader

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/samber/lo"

	"github.com/ajroetker/loopjit/internal/ctype"
	"github.com/ajroetker/loopjit/internal/failure"
)

// Register budget shared by SysV AMD64 and AAPCS64. Signatures are limited
// to what both pass entirely in registers.
const (
	MaxIntParams   = 6
	MaxFloatParams = 8
)

// ErrReleased is returned when calling a Binding after Release.
var ErrReleased = errors.New("binding released")

// Signature is the calling convention of a loaded function: ordered
// parameter types and one result type.
type Signature struct {
	Params []ctype.Tag
	Result ctype.Tag
}

// NewSignature validates the types and the register budget.
func NewSignature(params []ctype.Tag, result ctype.Tag) (Signature, error) {
	var ints, floats int
	for i, p := range params {
		if !p.Valid() {
			return Signature{}, failure.Unsupportedf("parameter %d: invalid type %v", i, p)
		}
		if p.IsFloat() {
			floats++
		} else {
			ints++
		}
	}
	if !result.Valid() {
		return Signature{}, failure.Unsupportedf("invalid result type %v", result)
	}
	if ints > MaxIntParams || floats > MaxFloatParams {
		return Signature{}, failure.Unsupportedf("%d integer and %d float parameters exceed the register budget (%d, %d)",
			ints, floats, MaxIntParams, MaxFloatParams)
	}
	return Signature{Params: append([]ctype.Tag(nil), params...), Result: result}, nil
}

// FuncType returns the Go function type matching s.
func (s Signature) FuncType() reflect.Type {
	in := lo.Map(s.Params, func(t ctype.Tag, _ int) reflect.Type { return t.GoType() })
	return reflect.FuncOf(in, []reflect.Type{s.Result.GoType()}, false)
}

func (s Signature) String() string {
	params := lo.Map(s.Params, func(t ctype.Tag, _ int) string { return t.String() })
	return fmt.Sprintf("func(%s) %s", strings.Join(params, ", "), s.Result)
}

// Binding is an executable mapping plus the function value bound to its
// first byte.
type Binding struct {
	sig      Signature
	mem      []byte
	fn       reflect.Value
	released atomic.Bool
}

// Load copies code into a fresh mapping, makes it read+execute, and binds
// its first byte under sig. The mapping is never writable and executable at
// the same time. On failure nothing stays mapped.
func Load(code []byte, sig Signature) (*Binding, error) {
	if len(code) == 0 {
		return nil, &failure.Error{Kind: failure.Load, Op: "empty code"}
	}
	if !sig.Result.Valid() {
		return nil, &failure.Error{Kind: failure.Load, Op: "invalid signature " + sig.String()}
	}
	mem, err := mapExecutable(code)
	if err != nil {
		return nil, err
	}
	b := &Binding{sig: sig, mem: mem}
	if err := b.bind(); err != nil {
		_ = unmap(mem)
		return nil, err
	}
	return b, nil
}

func (b *Binding) bind() error {
	fn, err := bindEntry(b.sig, b.Entry())
	if err != nil {
		return err
	}
	b.fn = fn
	return nil
}

// Signature returns the calling convention the mapping is bound under.
func (b *Binding) Signature() Signature { return b.sig }

// Entry returns the address of the function.
func (b *Binding) Entry() uintptr { return uintptr(unsafe.Pointer(unsafe.SliceData(b.mem))) }

// Size returns the size of the mapping in bytes.
func (b *Binding) Size() int { return len(b.mem) }

// Call invokes the function. Each argument must already have the Go type of
// its declared parameter.
func (b *Binding) Call(args []any) (any, error) {
	if b.released.Load() {
		return nil, ErrReleased
	}
	if len(args) != len(b.sig.Params) {
		return nil, fmt.Errorf("call %s: got %d arguments, want %d", b.sig, len(args), len(b.sig.Params))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		v := reflect.ValueOf(a)
		if !v.IsValid() || v.Type() != b.sig.Params[i].GoType() {
			return nil, fmt.Errorf("call %s: argument %d is %T, want %v", b.sig, i, a, b.sig.Params[i])
		}
		in[i] = v
	}
	return b.fn.Call(in)[0].Interface(), nil
}

// Release unmaps the code. The Binding must not be called afterwards.
func (b *Binding) Release() error {
	if b.released.Swap(true) {
		return nil
	}
	return unmap(b.mem)
}
