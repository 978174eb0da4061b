package jit

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/ajroetker/loopjit/internal/syntax"
)

// Key identifies a routine in the cache: its name and a digest of the
// source it was read from. Routines with equal keys share one binding.
type Key struct {
	Name   string
	Digest [sha256.Size]byte
}

func (k Key) String() string {
	return k.Name + "@" + hex.EncodeToString(k.Digest[:])
}

// Routine describes one eligible function. It is immutable once created.
type Routine struct {
	key      Key
	filename string
	source   []byte
	params   []syntax.Param
	result   string
}

// NewRoutine reads the signature of the named function from src. An empty
// name selects the only function in src. The body is checked on first
// compilation, not here.
func NewRoutine(src, name string) (*Routine, error) {
	f, err := syntax.ParseFile("routine.go", []byte(src))
	if err != nil {
		return nil, err
	}
	return newRoutine(f, "routine.go", []byte(src), name)
}

// ParseFile returns a Routine for every function declared in src.
func ParseFile(filename string, src []byte) ([]*Routine, error) {
	f, err := syntax.ParseFile(filename, src)
	if err != nil {
		return nil, err
	}
	var out []*Routine
	for _, name := range f.FuncNames() {
		r, err := newRoutine(f, filename, src, name)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func newRoutine(f *syntax.File, filename string, src []byte, name string) (*Routine, error) {
	hdr, err := f.Header(name)
	if err != nil {
		return nil, err
	}
	src = slices.Clone(src)
	h := sha256.New()
	h.Write([]byte(hdr.Name))
	h.Write([]byte{0})
	h.Write(src)
	r := &Routine{
		key:      Key{Name: hdr.Name},
		filename: filename,
		source:   src,
		params:   hdr.Params,
		result:   hdr.Result,
	}
	h.Sum(r.key.Digest[:0])
	return r, nil
}

// Name returns the function name.
func (r *Routine) Name() string { return r.key.Name }

// Key returns the cache identity.
func (r *Routine) Key() Key { return r.key }

// Params returns the declared parameters in order.
func (r *Routine) Params() []syntax.Param { return slices.Clone(r.params) }

// Result returns the declared result type name.
func (r *Routine) Result() string { return r.result }

// Source returns the text the routine was read from.
func (r *Routine) Source() string { return string(r.source) }

// Syntax parses the routine body into a fresh tree of the closed grammar.
func (r *Routine) Syntax() (*syntax.FuncDef, error) {
	return syntax.Parse(r.filename, r.source, r.key.Name)
}
