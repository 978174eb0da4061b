// Package interp evaluates routines of the closed grammar directly. It
// accepts exactly the routines the translator accepts. It
// follows the C semantics of the translated code (usual arithmetic
// conversions, truncating integer division, float32 rounding per operation)
// and serves as the reference the native code is checked against.
package interp

import (
	"errors"
	"fmt"
	"math"

	"github.com/ajroetker/loopjit/internal/ctype"
	"github.com/ajroetker/loopjit/internal/failure"
	"github.com/ajroetker/loopjit/internal/lower"
	"github.com/ajroetker/loopjit/internal/syntax"
)

// Integer divisions with no defined result in C. Native code traps on both
// (on amd64 the overflow case too), which terminates the process; the
// interpreter reports them instead.
var (
	ErrDivideByZero   = errors.New("integer divide by zero")
	ErrDivideOverflow = errors.New("integer divide overflow")
)

// Value is a typed scalar. Integers live in I, floats in F.
type Value struct {
	Tag ctype.Tag
	I   int64
	F   float64
}

// Interface returns v as the Go value of its type.
func (v Value) Interface() any {
	switch v.Tag {
	case ctype.Int32:
		return int32(v.I)
	case ctype.Int64:
		return v.I
	case ctype.Float32:
		return float32(v.F)
	default:
		return v.F
	}
}

// convert applies a C conversion to tag.
func (v Value) convert(tag ctype.Tag) Value {
	if v.Tag.IsFloat() {
		switch tag {
		case ctype.Int32:
			return Value{Tag: tag, I: int64(int32(int64(v.F)))}
		case ctype.Int64:
			return Value{Tag: tag, I: int64(v.F)}
		case ctype.Float32:
			return Value{Tag: tag, F: float64(float32(v.F))}
		default:
			return Value{Tag: tag, F: v.F}
		}
	}
	switch tag {
	case ctype.Int32:
		return Value{Tag: tag, I: int64(int32(v.I))}
	case ctype.Int64:
		return Value{Tag: tag, I: v.I}
	case ctype.Float32:
		return Value{Tag: tag, F: float64(float32(v.I))}
	default:
		return Value{Tag: tag, F: float64(v.I)}
	}
}

func binary(op syntax.Op, a, b Value) (Value, error) {
	tag := ctype.Promote(a.Tag, b.Tag)
	a, b = a.convert(tag), b.convert(tag)
	switch tag {
	case ctype.Float32:
		x, y := float32(a.F), float32(b.F)
		var r float32
		switch op {
		case syntax.Add:
			r = float32(x + y)
		case syntax.Mul:
			r = float32(x * y)
		case syntax.Div:
			r = float32(x / y)
		}
		return Value{Tag: tag, F: float64(r)}, nil
	case ctype.Float64:
		var r float64
		switch op {
		case syntax.Add:
			r = float64(a.F + b.F)
		case syntax.Mul:
			r = float64(a.F * b.F)
		case syntax.Div:
			r = float64(a.F / b.F)
		}
		return Value{Tag: tag, F: r}, nil
	case ctype.Int32:
		x, y := int32(a.I), int32(b.I)
		var r int32
		switch op {
		case syntax.Add:
			r = x + y
		case syntax.Mul:
			r = x * y
		case syntax.Div:
			if y == 0 {
				return Value{}, ErrDivideByZero
			}
			if x == math.MinInt32 && y == -1 {
				return Value{}, ErrDivideOverflow
			}
			r = x / y
		}
		return Value{Tag: tag, I: int64(r)}, nil
	default:
		var r int64
		switch op {
		case syntax.Add:
			r = a.I + b.I
		case syntax.Mul:
			r = a.I * b.I
		case syntax.Div:
			if b.I == 0 {
				return Value{}, ErrDivideByZero
			}
			if a.I == math.MinInt64 && b.I == -1 {
				return Value{}, ErrDivideOverflow
			}
			r = a.I / b.I
		}
		return Value{Tag: tag, I: r}, nil
	}
}

// less reports a < b after the usual arithmetic conversions.
func less(a, b Value) bool {
	tag := ctype.Promote(a.Tag, b.Tag)
	a, b = a.convert(tag), b.convert(tag)
	if tag.IsFloat() {
		return a.F < b.F
	}
	return a.I < b.I
}

// errReturn unwinds the statement walk once a return value is known.
type errReturn struct{ v Value }

func (errReturn) Error() string { return "return" }

type machine struct {
	scopes []map[string]*Value
}

// Call evaluates fn with args coerced to the declared parameter types and
// returns the result as the Go value of the declared result type.
func Call(fn *syntax.FuncDef, args ...any) (any, error) {
	v, err := Eval(fn, args...)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// Eval is Call returning the typed Value.
func Eval(fn *syntax.FuncDef, args ...any) (Value, error) {
	if len(args) != len(fn.Params) {
		return Value{}, fmt.Errorf("%s: got %d arguments, want %d", fn.Name, len(args), len(fn.Params))
	}
	if err := lower.Validate(fn); err != nil {
		return Value{}, err
	}
	params, result, err := lower.Signature(fn)
	if err != nil {
		return Value{}, err
	}
	m := &machine{}
	m.push()
	for i, p := range fn.Params {
		tag := params[i]
		raw, err := ctype.Convert(args[i], tag)
		if err != nil {
			return Value{}, fmt.Errorf("%s: argument %s: %w", fn.Name, p.Name, err)
		}
		v := fromGo(raw, tag)
		m.scopes[0][p.Name] = &v
	}

	err = m.stmts(fn.Body)
	var ret errReturn
	switch {
	case errors.As(err, &ret):
		return ret.v.convert(result), nil
	case err != nil:
		return Value{}, err
	}
	return Value{}, failure.Unsupportedf("%s: %s finished without returning", fn.Pos(), fn.Name)
}

func fromGo(raw any, tag ctype.Tag) Value {
	switch x := raw.(type) {
	case int32:
		return Value{Tag: tag, I: int64(x)}
	case int64:
		return Value{Tag: tag, I: x}
	case float32:
		return Value{Tag: tag, F: float64(x)}
	case float64:
		return Value{Tag: tag, F: x}
	}
	panic(fmt.Sprintf("interp: unexpected %T", raw))
}

func (m *machine) push() { m.scopes = append(m.scopes, make(map[string]*Value)) }
func (m *machine) pop()  { m.scopes = m.scopes[:len(m.scopes)-1] }

func (m *machine) lookup(name string) (*Value, bool) {
	for i := len(m.scopes) - 1; i >= 0; i-- {
		if v, ok := m.scopes[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (m *machine) stmts(list []syntax.Stmt) error {
	for _, s := range list {
		if err := m.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *machine) stmt(s syntax.Stmt) error {
	switch s := s.(type) {
	case *syntax.LocalDecl:
		tag, ok := ctype.Lookup(s.Type)
		if !ok {
			return failure.Unsupportedf("%s: unknown type %q", s.Pos(), s.Type)
		}
		v, err := m.expr(s.Value)
		if err != nil {
			return err
		}
		if dst, ok := m.lookup(s.Name); ok {
			*dst = v.convert(dst.Tag)
			return nil
		}
		nv := v.convert(tag)
		m.scopes[len(m.scopes)-1][s.Name] = &nv
		return nil
	case *syntax.AugAssign:
		dst, ok := m.lookup(s.Target)
		if !ok {
			return failure.Unsupportedf("%s: undeclared name %s", s.Pos(), s.Target)
		}
		rhs, err := m.expr(s.Value)
		if err != nil {
			return err
		}
		r, err := binary(s.Op, *dst, rhs)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Pos(), err)
		}
		*dst = r.convert(dst.Tag)
		return nil
	case *syntax.RangeLoop:
		return m.loop(s)
	case *syntax.Return:
		v, err := m.expr(s.Value)
		if err != nil {
			return err
		}
		return errReturn{v: v}
	default:
		panic(fmt.Sprintf("interp: unexpected statement %T", s))
	}
}

func (m *machine) loop(s *syntax.RangeLoop) error {
	from, err := m.expr(s.Lower)
	if err != nil {
		return err
	}
	to, err := m.expr(s.Upper)
	if err != nil {
		return err
	}
	if to.Tag.IsFloat() && to.F > math.MaxInt32 || !to.Tag.IsFloat() && to.I > math.MaxInt32 {
		return fmt.Errorf("%s: loop bound exceeds the int counter range", s.Pos())
	}
	counter := from.convert(ctype.Int32)
	m.push()
	defer m.pop()
	m.scopes[len(m.scopes)-1][s.Var] = &counter
	for less(counter, to) {
		m.push()
		err := m.stmts(s.Body)
		m.pop()
		if err != nil {
			return err
		}
		counter.I++
	}
	return nil
}

func (m *machine) expr(e syntax.Expr) (Value, error) {
	switch e := e.(type) {
	case *syntax.Name:
		v, ok := m.lookup(e.Name)
		if !ok {
			return Value{}, failure.Unsupportedf("%s: undeclared name %s", e.Pos(), e.Name)
		}
		return *v, nil
	case *syntax.Literal:
		if e.Kind == syntax.FloatLit {
			return Value{Tag: ctype.Float64, F: e.Float}, nil
		}
		if e.Int < math.MinInt32 || e.Int > math.MaxInt32 {
			return Value{Tag: ctype.Int64, I: e.Int}, nil
		}
		return Value{Tag: ctype.Int32, I: e.Int}, nil
	case *syntax.BinaryExpr:
		x, err := m.expr(e.X)
		if err != nil {
			return Value{}, err
		}
		y, err := m.expr(e.Y)
		if err != nil {
			return Value{}, err
		}
		v, err := binary(e.Op, x, y)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", e.Pos(), err)
		}
		return v, nil
	default:
		panic(fmt.Sprintf("interp: unexpected expression %T", e))
	}
}
