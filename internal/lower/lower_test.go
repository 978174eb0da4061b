package lower

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ajroetker/loopjit/internal/ctype"
	"github.com/ajroetker/loopjit/internal/failure"
	"github.com/ajroetker/loopjit/internal/syntax"
)

func parse(t *testing.T, src string) *syntax.FuncDef {
	t.Helper()
	fn, err := syntax.Parse("test.go", []byte(src), "")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return fn
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "nested sum",
			src: `func jittedBench() float32 {
	var accumulator float32 = 0
	for x := 0; x < 100; x++ {
		for y := 0; y < 100; y++ {
			accumulator += y
		}
		accumulator += x
	}
	return accumulator
}`,
			want: i32Helper + "\n" +
				"float jittedBench(void) {\n" +
				"\tfloat accumulator = loopjit_i32(0);\n" +
				"\tfor (int x = loopjit_i32(0); x < loopjit_i32(100); ++x) {\n" +
				"\t\tfor (int y = loopjit_i32(0); y < loopjit_i32(100); ++y) {\n" +
				"\t\t\taccumulator += y;\n" +
				"\t\t}\n" +
				"\t\taccumulator += x;\n" +
				"\t}\n" +
				"\treturn accumulator;\n" +
				"}\n",
		},
		{
			name: "params and range",
			src: `func scale(n int32, k int64) int64 {
	var acc int64 = 1
	for i := range n {
		acc *= k
	}
	return acc / (k + 1) * 2
}`,
			want: i32Helper + "\n" +
				"long long scale(int n, long long k) {\n" +
				"\tlong long acc = loopjit_i32(1);\n" +
				"\tfor (int i = loopjit_i32(0); i < n; ++i) {\n" +
				"\t\tacc *= k;\n" +
				"\t}\n" +
				"\treturn (acc / (k + loopjit_i32(1))) * loopjit_i32(2);\n" +
				"}\n",
		},
		{
			name: "redeclaration assigns",
			src: `func f(a int32) int32 {
	var b int32 = a
	for i := 0; i < 3; i++ {
		var b int32 = i
		var c int32 = b
		b += c
	}
	return b
}`,
			want: i32Helper + "\n" +
				"int f(int a) {\n" +
				"\tint b = a;\n" +
				"\tfor (int i = loopjit_i32(0); i < loopjit_i32(3); ++i) {\n" +
				"\t\tb = i;\n" +
				"\t\tint c = b;\n" +
				"\t\tb += c;\n" +
				"\t}\n" +
				"\treturn b;\n" +
				"}\n",
		},
		{
			name: "integer literals",
			src: `func f() int64 {
	var a int64 = -7
	var b int64 = 5000000000
	return a * b + 0x10
}`,
			want: i32Helper + "\n" + i64Helper + "\n" +
				"long long f(void) {\n" +
				"\tlong long a = loopjit_i32(-7);\n" +
				"\tlong long b = loopjit_i64(5000000000LL);\n" +
				"\treturn (a * b) + loopjit_i32(16);\n" +
				"}\n",
		},
		{
			name: "most negative literals",
			src: `func f(a int32) int64 {
	var r int64 = a * -2147483648
	var s int64 = -9223372036854775808
	var u int64 = -2147483649
	return r + s + u
}`,
			want: i32Helper + "\n" + i64Helper + "\n" +
				"long long f(int a) {\n" +
				"\tlong long r = a * loopjit_i32(-2147483647 - 1);\n" +
				"\tlong long s = loopjit_i64(-9223372036854775807LL - 1);\n" +
				"\tlong long u = loopjit_i64(-2147483649LL);\n" +
				"\treturn (r + s) + u;\n" +
				"}\n",
		},
		{
			name: "int literals in float context",
			src: `func f(a float32) float32 {
	var k float32 = 3
	var four int64 = 4
	a *= k
	a /= four
	return a * 3 / 4
}`,
			want: i32Helper + "\n" +
				"float f(float a) {\n" +
				"\tfloat k = loopjit_i32(3);\n" +
				"\tlong long four = loopjit_i32(4);\n" +
				"\ta *= k;\n" +
				"\ta /= four;\n" +
				"\treturn (a * loopjit_i32(3)) / loopjit_i32(4);\n" +
				"}\n",
		},
		{
			name: "float literal uses helper",
			src: `func f(x float64) float64 {
	return x * 0.5
}`,
			want: f64Helper + "\n" +
				"double f(double x) {\n" +
				"\treturn x * loopjit_f64(0x3fe0000000000000ULL);\n" +
				"}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Translate(parse(t, tt.src))
			if err != nil {
				t.Fatalf("Translate() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, src.Text); diff != "" {
				t.Errorf("Translate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTranslateHidesEveryLiteral(t *testing.T) {
	fn := parse(t, `func f(n int32, a float64) float64 {
	var acc float64 = 0.5
	for i := range n {
		var one float32 = 1
		acc += one
	}
	return acc * 3 + -2147483648 / 7000000000
}`)
	src, err := Translate(fn)
	if err != nil {
		t.Fatal(err)
	}
	body := src.Text[strings.Index(src.Text, "double f("):]
	for _, bare := range []string{"= 1;", "= 0;", " 3)", "+ 7", "2147483648"} {
		if strings.Contains(body, bare) {
			t.Errorf("body contains bare literal %q:\n%s", bare, body)
		}
	}
	for _, want := range []string{i32Helper, i64Helper, f64Helper} {
		if !strings.Contains(src.Text, want) {
			t.Errorf("helper missing:\n%s", want)
		}
	}
}

func TestTranslateDeterministic(t *testing.T) {
	fn := parse(t, "func f(a float32, b float64) float64 {\n\tvar c float64 = a * b\n\treturn c / 3.25\n}")
	tr := NewTranslator()
	first, err := tr.Translate(fn)
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		again, err := tr.Translate(fn)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("Translate() not deterministic:\n%s\nvs\n%s", first.Text, again.Text)
		}
	}
	if first.Func != "f" {
		t.Errorf("Func = %q, want f", first.Func)
	}
}

func TestTranslateUnsupported(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown result", "func f() uint8 {\n\treturn 0\n}", `unknown type "uint8"`},
		{"unknown param", "func f(a bool) int32 {\n\treturn 0\n}", `unknown type "bool"`},
		{"unknown local", "func f() int32 {\n\tvar a string = 0\n\treturn 0\n}", `unknown type "string"`},
		{"no final return", "func f(a int32) int32 {\n\treturn a\n\tvar b int32 = a\n}", "must end with a return"},
		{"empty body", "func f() int32 {\n}", "empty body"},
		{"undeclared", "func f() int32 {\n\treturn z\n}", "undeclared name z"},
		{"undeclared target", "func f(a int32) int32 {\n\tz += a\n\treturn a\n}", "undeclared name z"},
		{"loop var out of scope", "func f() int32 {\n\tfor i := 0; i < 2; i++ {\n\t}\n\treturn i\n}", "undeclared name i"},
		{"duplicate param", "func f(a int32, a int64) int32 {\n\treturn 0\n}", "duplicate parameter"},
		{"bound modified", "func f(n int32) int32 {\n\tfor i := range n {\n\t\tn += i\n\t}\n\treturn n\n}", "loop bound n is modified"},
		{"counter modified", "func f() int32 {\n\tfor i := range 4 {\n\t\ti += i\n\t}\n\treturn 0\n}", "loop variable i is modified"},
		{"counter redeclared", "func f() int32 {\n\tfor i := range 4 {\n\t\tvar i int32 = 0\n\t}\n\treturn 0\n}", "loop variable i is modified"},
		{"reserved func name", "func double(a int32) int32 {\n\treturn a\n}", "identifier double is reserved"},
		{"reserved param", "func f(long int64) int64 {\n\treturn long\n}", "identifier long is reserved"},
		{"reserved local", "func f() int32 {\n\tvar loopjit_f64 int32 = 0\n\treturn 0\n}", "reserved"},
		{"reserved loop var", "func f() int32 {\n\tfor while := range 2 {\n\t}\n\treturn 0\n}", "identifier while is reserved"},
		{"bound is counter", "func f() int32 {\n\tfor i := 0; i < i; i++ {\n\t}\n\treturn 0\n}", "refers to loop variable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(parse(t, tt.src))
			if !errors.Is(err, failure.Unsupported) {
				t.Fatalf("Translate() error = %v, want Unsupported", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Translate() error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	fn := parse(t, "func f(a int32, b float32, c int64, d float64) float32 {\n\treturn b\n}")
	params, result, err := Signature(fn)
	if err != nil {
		t.Fatal(err)
	}
	want := []ctype.Tag{ctype.Int32, ctype.Float32, ctype.Int64, ctype.Float64}
	if diff := cmp.Diff(want, params); diff != "" {
		t.Errorf("Signature() params mismatch (-want +got):\n%s", diff)
	}
	if result != ctype.Float32 {
		t.Errorf("Signature() result = %v, want float32", result)
	}
}
