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

// Package lower translates a routine of the closed grammar into a single
// self-contained C function.
package lower

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ajroetker/loopjit/internal/ctype"
	"github.com/ajroetker/loopjit/internal/failure"
	"github.com/ajroetker/loopjit/internal/syntax"
)

// Source is the emitted C translation unit for one routine.
type Source struct {
	Func string // C symbol of the function, equal to the routine name
	Text string
}

// Every literal reaches the function body through one of these helpers. The
// empty asm hides the value from the optimizer, so gcc cannot fold it into a
// .rodata constant, even where a constant divisor would otherwise become a
// reciprocal. The extracted .text stays free of data references.
const (
	i32Helper = `static inline __attribute__((always_inline)) int loopjit_i32(int v) {
	__asm__("" : "+r"(v));
	return v;
}
`
	i64Helper = `static inline __attribute__((always_inline)) long long loopjit_i64(long long v) {
	__asm__("" : "+r"(v));
	return v;
}
`
	// f64Helper materializes a double from its bit pattern.
	f64Helper = `static inline __attribute__((always_inline)) double loopjit_f64(unsigned long long bits) {
	double v;
	__asm__("" : "+r"(bits));
	__builtin_memcpy(&v, &bits, sizeof v);
	return v;
}
`
)

type helper uint8

const (
	useI32 helper = 1 << iota
	useI64
	useF64
)

var helpers = []struct {
	bit  helper
	text string
}{
	{useI32, i32Helper},
	{useI64, i64Helper},
	{useF64, f64Helper},
}

// Translator walks a FuncDef and writes C. A Translator may be reused; each
// Translate call starts from a clean state.
type Translator struct {
	buf    *bytes.Buffer
	indent int

	// scopes holds the names visible at the current point, innermost last.
	scopes []map[string]ctype.Tag

	// uses records which literal helpers must be emitted.
	uses helper
}

// NewTranslator returns a ready Translator.
func NewTranslator() *Translator {
	return &Translator{buf: &bytes.Buffer{}}
}

// Translate is a shorthand for NewTranslator().Translate(fn).
func Translate(fn *syntax.FuncDef) (Source, error) {
	return NewTranslator().Translate(fn)
}

// Signature resolves the declared parameter and result types of fn through
// the closed type table.
func Signature(fn *syntax.FuncDef) ([]ctype.Tag, ctype.Tag, error) {
	params := make([]ctype.Tag, 0, len(fn.Params))
	for _, p := range fn.Params {
		tag, err := resolveType(fn, p.Type)
		if err != nil {
			return nil, ctype.Invalid, err
		}
		params = append(params, tag)
	}
	result, err := resolveType(fn, fn.Result)
	if err != nil {
		return nil, ctype.Invalid, err
	}
	return params, result, nil
}

func resolveType(n syntax.Node, name string) (ctype.Tag, error) {
	tag, ok := ctype.Lookup(name)
	if !ok {
		return ctype.Invalid, failure.Unsupportedf("%s: unknown type %q (supported: %s)",
			n.Pos(), name, strings.Join(ctype.Names(), ", "))
	}
	return tag, nil
}

// Validate reports whether fn is accepted by the translator.
func Validate(fn *syntax.FuncDef) error {
	_, err := Translate(fn)
	return err
}

// Translate emits the C translation unit for fn.
func (t *Translator) Translate(fn *syntax.FuncDef) (Source, error) {
	t.buf.Reset()
	t.indent = 0
	t.scopes = nil
	t.uses = 0

	params, result, err := Signature(fn)
	if err != nil {
		return Source{}, err
	}
	if len(fn.Body) == 0 {
		return Source{}, failure.Unsupportedf("%s: %s has an empty body", fn.Pos(), fn.Name)
	}
	if _, ok := fn.Body[len(fn.Body)-1].(*syntax.Return); !ok {
		return Source{}, failure.Unsupportedf("%s: %s must end with a return statement", fn.Pos(), fn.Name)
	}

	if err := checkIdent(fn, fn.Name); err != nil {
		return Source{}, err
	}
	t.push()
	for i, p := range fn.Params {
		if err := checkIdent(fn, p.Name); err != nil {
			return Source{}, err
		}
		if _, dup := t.scopes[0][p.Name]; dup {
			return Source{}, failure.Unsupportedf("%s: duplicate parameter %s", fn.Pos(), p.Name)
		}
		t.scopes[0][p.Name] = params[i]
	}

	t.emitSignature(fn, params, result)
	t.indent = 1
	if err := t.stmts(fn.Body); err != nil {
		return Source{}, err
	}
	t.indent = 0
	t.writef("}\n")
	t.pop()

	var out strings.Builder
	for _, h := range helpers {
		if t.uses&h.bit != 0 {
			out.WriteString(h.text)
			out.WriteString("\n")
		}
	}
	out.Write(t.buf.Bytes())
	return Source{Func: fn.Name, Text: out.String()}, nil
}

func (t *Translator) emitSignature(fn *syntax.FuncDef, params []ctype.Tag, result ctype.Tag) {
	args := lo.Map(fn.Params, func(p syntax.Param, i int) string {
		return params[i].CName() + " " + p.Name
	})
	list := strings.Join(args, ", ")
	if list == "" {
		list = "void"
	}
	t.writef("%s %s(%s) {\n", result.CName(), fn.Name, list)
}

func (t *Translator) stmts(list []syntax.Stmt) error {
	for _, s := range list {
		if err := t.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

// stmt dispatches on the closed statement set.
func (t *Translator) stmt(s syntax.Stmt) error {
	switch s := s.(type) {
	case *syntax.LocalDecl:
		return t.localDecl(s)
	case *syntax.AugAssign:
		return t.augAssign(s)
	case *syntax.RangeLoop:
		return t.rangeLoop(s)
	case *syntax.Return:
		v, err := t.expr(s.Value)
		if err != nil {
			return err
		}
		t.writef("return %s;\n", v)
		return nil
	default:
		panic(fmt.Sprintf("lower: unexpected statement %T", s))
	}
}

// localDecl declares the name on first sight; a re-declaration of a visible
// name is an assignment and keeps the first declared type.
func (t *Translator) localDecl(s *syntax.LocalDecl) error {
	tag, err := resolveType(s, s.Type)
	if err != nil {
		return err
	}
	v, err := t.expr(s.Value)
	if err != nil {
		return err
	}
	if _, ok := t.lookup(s.Name); ok {
		t.writef("%s = %s;\n", s.Name, v)
		return nil
	}
	if err := checkIdent(s, s.Name); err != nil {
		return err
	}
	t.scopes[len(t.scopes)-1][s.Name] = tag
	t.writef("%s %s = %s;\n", tag.CName(), s.Name, v)
	return nil
}

func (t *Translator) augAssign(s *syntax.AugAssign) error {
	if _, ok := t.lookup(s.Target); !ok {
		return failure.Unsupportedf("%s: undeclared name %s", s.Pos(), s.Target)
	}
	v, err := t.expr(s.Value)
	if err != nil {
		return err
	}
	t.writef("%s %s= %s;\n", s.Target, s.Op, v)
	return nil
}

func (t *Translator) rangeLoop(s *syntax.RangeLoop) error {
	if err := checkIdent(s, s.Var); err != nil {
		return err
	}
	if err := checkLoopInvariant(s); err != nil {
		return err
	}
	from, err := t.expr(s.Lower)
	if err != nil {
		return err
	}
	to, err := t.expr(s.Upper)
	if err != nil {
		return err
	}
	t.writef("for (int %s = %s; %s < %s; ++%s) {\n", s.Var, from, s.Var, to, s.Var)
	t.push()
	t.scopes[len(t.scopes)-1][s.Var] = ctype.Int32
	t.indent++
	if err := t.stmts(s.Body); err != nil {
		return err
	}
	t.indent--
	t.pop()
	t.writef("}\n")
	return nil
}

// cReserved are C keywords and predefined names that are valid Go
// identifiers.
var cReserved = map[string]bool{
	"auto": true, "char": true, "const": true, "do": true, "double": true,
	"enum": true, "extern": true, "float": true, "inline": true, "int": true,
	"long": true, "register": true, "restrict": true, "short": true,
	"signed": true, "sizeof": true, "static": true, "typedef": true,
	"union": true, "unsigned": true, "void": true, "volatile": true,
	"while": true, "asm": true, "bool": true, "true": true, "false": true,
	"main": true,
}

// checkIdent rejects names the emitted C cannot declare.
func checkIdent(n syntax.Node, name string) error {
	if cReserved[name] || strings.HasPrefix(name, "loopjit_") || strings.HasPrefix(name, "__") {
		return failure.Unsupportedf("%s: identifier %s is reserved in the generated code", n.Pos(), name)
	}
	return nil
}

// checkLoopInvariant rejects loops whose counter or upper bound is written
// inside the body. With both fixed, evaluating the bound once or on every
// iteration is indistinguishable, so the C loop matches either reading.
func checkLoopInvariant(s *syntax.RangeLoop) error {
	if n, ok := s.Upper.(*syntax.Name); ok {
		if n.Name == s.Var {
			return failure.Unsupportedf("%s: loop bound refers to loop variable %s", s.Pos(), s.Var)
		}
		if assigns(s.Body, n.Name) {
			return failure.Unsupportedf("%s: loop bound %s is modified in the loop body", s.Pos(), n.Name)
		}
	}
	if assigns(s.Body, s.Var) {
		return failure.Unsupportedf("%s: loop variable %s is modified in the loop body", s.Pos(), s.Var)
	}
	return nil
}

// assigns reports whether any statement in list writes name. Nested loops
// that rebind name shadow it.
func assigns(list []syntax.Stmt, name string) bool {
	for _, s := range list {
		switch s := s.(type) {
		case *syntax.LocalDecl:
			if s.Name == name {
				return true
			}
		case *syntax.AugAssign:
			if s.Target == name {
				return true
			}
		case *syntax.RangeLoop:
			if s.Var != name && assigns(s.Body, name) {
				return true
			}
		}
	}
	return false
}

// expr dispatches on the closed expression set.
func (t *Translator) expr(e syntax.Expr) (string, error) {
	switch e := e.(type) {
	case *syntax.Name:
		if _, ok := t.lookup(e.Name); !ok {
			return "", failure.Unsupportedf("%s: undeclared name %s", e.Pos(), e.Name)
		}
		return e.Name, nil
	case *syntax.Literal:
		return t.literal(e), nil
	case *syntax.BinaryExpr:
		x, err := t.operand(e.X)
		if err != nil {
			return "", err
		}
		y, err := t.operand(e.Y)
		if err != nil {
			return "", err
		}
		return x + " " + e.Op.String() + " " + y, nil
	default:
		panic(fmt.Sprintf("lower: unexpected expression %T", e))
	}
}

// operand parenthesizes nested binary expressions so C evaluates the same
// tree as the source regardless of operator precedence.
func (t *Translator) operand(e syntax.Expr) (string, error) {
	s, err := t.expr(e)
	if err != nil {
		return "", err
	}
	if _, ok := e.(*syntax.BinaryExpr); ok {
		return "(" + s + ")", nil
	}
	return s, nil
}

// literal wraps l in the helper matching its type: int when the value fits
// in 32 bits, long long otherwise, double for float literals.
func (t *Translator) literal(l *syntax.Literal) string {
	switch {
	case l.Kind == syntax.FloatLit:
		t.uses |= useF64
		return fmt.Sprintf("loopjit_f64(0x%016xULL)", math.Float64bits(l.Float))
	case l.Int < math.MinInt32 || l.Int > math.MaxInt32:
		t.uses |= useI64
		return "loopjit_i64(" + intConst(l.Int, math.MinInt64, "LL") + ")"
	default:
		t.uses |= useI32
		return "loopjit_i32(" + intConst(l.Int, math.MinInt32, "") + ")"
	}
}

// intConst spells v as a C constant. C has no negative literals, and the
// magnitude of the most negative value does not fit its own type, so min is
// written as a subtraction.
func intConst(v, min int64, suffix string) string {
	if v == min {
		return strconv.FormatInt(v+1, 10) + suffix + " - 1"
	}
	return strconv.FormatInt(v, 10) + suffix
}

func (t *Translator) push() { t.scopes = append(t.scopes, make(map[string]ctype.Tag)) }
func (t *Translator) pop()  { t.scopes = t.scopes[:len(t.scopes)-1] }

func (t *Translator) lookup(name string) (ctype.Tag, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if tag, ok := t.scopes[i][name]; ok {
			return tag, true
		}
	}
	return ctype.Invalid, false
}

func (t *Translator) writef(format string, args ...any) {
	t.buf.WriteString(strings.Repeat("\t", t.indent))
	fmt.Fprintf(t.buf, format, args...)
}
