package syntax

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ajroetker/loopjit/internal/failure"
)

func TestParseBench(t *testing.T) {
	src := `func jittedBench() float32 {
	var accumulator float32 = 0
	for x := 0; x < 100; x++ {
		for y := range 100 {
			accumulator += y
		}
		accumulator += x
	}
	return accumulator
}
`
	fn, err := Parse("bench.go", []byte(src), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	lit := func(v int64) *Literal { return &Literal{Kind: IntLit, Int: v} }
	name := func(n string) *Name { return &Name{Name: n} }
	want := &FuncDef{
		Name:   "jittedBench",
		Result: "float32",
		Body: []Stmt{
			&LocalDecl{Name: "accumulator", Type: "float32", Value: lit(0)},
			&RangeLoop{Var: "x", Lower: lit(0), Upper: lit(100), Body: []Stmt{
				&RangeLoop{Var: "y", Lower: lit(0), Upper: lit(100), Body: []Stmt{
					&AugAssign{Target: "accumulator", Op: Add, Value: name("y")},
				}},
				&AugAssign{Target: "accumulator", Op: Add, Value: name("x")},
			}},
			&Return{Value: name("accumulator")},
		},
	}
	ignorePos := cmpopts.IgnoreFields(Name{}, "Position")
	opts := cmp.Options{
		ignorePos,
		cmpopts.IgnoreFields(FuncDef{}, "Position"),
		cmpopts.IgnoreFields(LocalDecl{}, "Position"),
		cmpopts.IgnoreFields(AugAssign{}, "Position"),
		cmpopts.IgnoreFields(RangeLoop{}, "Position"),
		cmpopts.IgnoreFields(Return{}, "Position"),
		cmpopts.IgnoreFields(Literal{}, "Position"),
	}
	if diff := cmp.Diff(want, fn, opts); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	if fn.Pos().Line != 1 {
		t.Errorf("FuncDef line = %d, want 1", fn.Pos().Line)
	}
}

func TestParseExpressions(t *testing.T) {
	src := "func f(a float64, n int64) float64 {\n\treturn (a + -2.5) * n / 3\n}\n"
	fn, err := Parse("f.go", []byte(src), "f")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	ret := fn.Body[0].(*Return)
	div, ok := ret.Value.(*BinaryExpr)
	if !ok || div.Op != Div {
		t.Fatalf("top expression = %#v, want division", ret.Value)
	}
	mul := div.X.(*BinaryExpr)
	add := mul.X.(*BinaryExpr)
	if lit := add.Y.(*Literal); lit.Kind != FloatLit || lit.Float != -2.5 {
		t.Errorf("literal = %#v, want -2.5", lit)
	}
	if got := fn.Params; len(got) != 2 || got[1] != (Param{Name: "n", Type: "int64"}) {
		t.Errorf("Params = %v", got)
	}
}

func TestParseUnsupported(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"method", "func (r T) f() int32 {\n\treturn 0\n}\n", "method"},
		{"generic", "func f[T any]() int32 {\n\treturn 0\n}\n", "type parameters"},
		{"no result", "func f() {\n}\n", "exactly one value"},
		{"two results", "func f() (int32, int32) {\n\treturn 0, 0\n}\n", "exactly one value"},
		{"named result", "func f() (r int32) {\n\treturn 0\n}\n", "named result"},
		{"pointer type", "func f(p *int32) int32 {\n\treturn 0\n}\n", "type expression"},
		{"variadic", "func f(p ...int32) int32 {\n\treturn 0\n}\n", "variadic"},
		{"if", "func f() int32 {\n\tif true {\n\t}\n\treturn 0\n}\n", "statement *ast.IfStmt"},
		{"plain assign", "func f(a int32) int32 {\n\ta = a\n\treturn a\n}\n", "assignment ="},
		{"sub assign", "func f(a int32) int32 {\n\ta -= a\n\treturn a\n}\n", "assignment -="},
		{"aug literal", "func f(a int32) int32 {\n\ta += 1\n\treturn a\n}\n", "value must be a name"},
		{"short var", "func f() int32 {\n\ta := 1\n\treturn a\n}\n", "assignment :="},
		{"untyped var", "func f() int32 {\n\tvar a = 1\n\treturn a\n}\n", "explicit type"},
		{"while loop", "func f(n int32) int32 {\n\tfor n < 3 {\n\t}\n\treturn n\n}\n", "only `for"},
		{"le loop", "func f() int32 {\n\tfor i := 0; i <= 3; i++ {\n\t}\n\treturn 0\n}\n", "only `for"},
		{"step loop", "func f() int32 {\n\tfor i := 0; i < 3; i += 2 {\n\t}\n\treturn 0\n}\n", "only `for"},
		{"range slice", "func f(n int32) int32 {\n\tfor i, v := range n {\n\t}\n\treturn 0\n}\n", "only `for i := range n`"},
		{"subtraction", "func f(a int32) int32 {\n\treturn a - a\n}\n", "operator -"},
		{"call", "func f(a int32) int32 {\n\treturn g(a)\n}\n", "expression"},
		{"string literal", "func f() int32 {\n\treturn \"x\"\n}\n", "literal"},
		{"int overflow", "func f() int64 {\n\treturn 9223372036854775808\n}\n", "literal 9223372036854775808 out of range"},
		{"int underflow", "func f() int64 {\n\treturn -9223372036854775809\n}\n", "literal -9223372036854775809 out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("f.go", []byte(tt.src), "")
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !errors.Is(err, failure.Unsupported) {
				t.Errorf("Parse() error = %v, want Unsupported", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestParseIntegerLimits(t *testing.T) {
	tests := []struct {
		text string
		want int64
	}{
		{"-9223372036854775808", math.MinInt64},
		{"9223372036854775807", math.MaxInt64},
		{"-2147483648", math.MinInt32},
		{"-0x10", -16},
		{"1_000", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			fn, err := Parse("f.go", []byte("func f() int64 {\n\treturn "+tt.text+"\n}\n"), "")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			lit, ok := fn.Body[0].(*Return).Value.(*Literal)
			if !ok || lit.Kind != IntLit || lit.Int != tt.want {
				t.Errorf("return value = %#v, want integer %d", fn.Body[0].(*Return).Value, tt.want)
			}
		})
	}
}

func TestParseBound(t *testing.T) {
	src := "func f(a float32) int32 {\n\tfor i := range a + a {\n\t}\n\treturn 0\n}\n"
	_, err := Parse("f.go", []byte(src), "")
	if !errors.Is(err, ErrNotBound) || !errors.Is(err, failure.Unsupported) {
		t.Errorf("Parse() error = %v, want ErrNotBound", err)
	}
}

func TestParseFile(t *testing.T) {
	src := []byte("package k\n\nfunc a() int32 {\n\treturn 1\n}\n\nfunc b() float64 {\n\treturn 2.0\n}\n")
	f, err := ParseFile("k.go", src)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, f.FuncNames()); diff != "" {
		t.Errorf("FuncNames() mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.Func(""); err == nil {
		t.Error("Func(\"\") on a two-function file succeeded")
	}
	if _, err := f.Func("c"); err == nil {
		t.Error("Func(\"c\") succeeded")
	}
	m, err := f.Module()
	if err != nil {
		t.Fatalf("Module() error = %v", err)
	}
	if len(m.Funcs) != 2 || m.Funcs[1].Result != "float64" {
		t.Errorf("Module() = %+v", m)
	}

	// Header leaves the body unchecked.
	f, err = ParseFile("h.go", []byte("func h(a int32) int32 {\n\treturn a - a\n}\n"))
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := f.Header("h")
	if err != nil || hdr.Body != nil || hdr.Result != "int32" {
		t.Errorf("Header() = %+v, %v", hdr, err)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := ParseFile("e.go", []byte("func f( {")); !errors.Is(err, failure.Unsupported) {
		t.Errorf("syntax error = %v, want Unsupported", err)
	}
	if _, err := ParseFile("e.go", []byte("package p\nvar x = 1\n")); !errors.Is(err, failure.Unsupported) {
		t.Errorf("no functions error = %v, want Unsupported", err)
	}
}
