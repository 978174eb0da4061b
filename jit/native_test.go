package jit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/loopjit/internal/interp"
	"github.com/ajroetker/loopjit/internal/loader"
	"github.com/ajroetker/loopjit/internal/toolchain"
)

func requireNative(t *testing.T) toolchain.Config {
	t.Helper()
	if !loader.Supported {
		t.Skip("native loading not supported on this platform")
	}
	cfg := toolchain.DefaultConfig()
	if err := cfg.Available(); err != nil {
		t.Skipf("toolchain not available: %v", err)
	}
	cfg.WorkDir = t.TempDir()
	return cfg
}

// TestNativeMatchesInterpreter runs each routine natively and through the
// interpreter. Both must agree, and both must produce want.
func TestNativeMatchesInterpreter(t *testing.T) {
	cfg := requireNative(t)
	p := NewProxy(NewCache(), WithToolchain(cfg))

	tests := []struct {
		name string
		src  string
		args []any
		want any
	}{
		{
			name: "float times int literal",
			src:  "func f(a float32) float32 {\n\treturn a * 3\n}",
			args: []any{float32(8)},
			want: float32(24),
		},
		{
			name: "float over int literal",
			src:  "func f(a float32) float32 {\n\treturn a / 4\n}",
			args: []any{float32(8)},
			want: float32(2),
		},
		{
			name: "propagated float32 local",
			src:  "func f(a float32) float32 {\n\tvar k float32 = 3\n\treturn a * k\n}",
			args: []any{float32(8)},
			want: float32(24),
		},
		{
			name: "loop adding propagated one",
			src: `func f(n int32) float32 {
	var acc float32 = 0
	for i := range n {
		var one float32 = 1
		acc += one
	}
	return acc
}`,
			args: []any{int32(8)},
			want: float32(8),
		},
		{
			name: "divide by propagated int64",
			src: `func mix(n int32, a float64, b int64) float64 {
	var acc float64 = 0.5
	for i := range n {
		acc += a
	}
	var four int64 = 4
	acc *= b
	acc /= four
	return acc
}`,
			args: []any{int32(10), 1.25, int64(8)},
			want: 26.0,
		},
		{
			name: "most negative int32 literal",
			src:  "func f(a int32) int64 {\n\tvar r int64 = a * -2147483648\n\treturn r\n}",
			args: []any{int32(2)},
			want: int64(0),
		},
		{
			name: "most negative int64 literal",
			src:  "func f(a int64) int64 {\n\treturn a + -9223372036854775808\n}",
			args: []any{int64(5)},
			want: int64(math.MinInt64 + 5),
		},
		{
			name: "large int64 literal",
			src:  "func f(a int32) int64 {\n\tvar b int64 = 5000000000\n\treturn a * b\n}",
			args: []any{int32(3)},
			want: int64(15000000000),
		},
		{
			name: "mixed promotion",
			src:  "func f(a int32, b int64, c float32, d float64) float64 {\n\treturn a * b + c / d\n}",
			args: []any{int32(3), int64(5), float32(1.5), 0.5},
			want: 18.0,
		},
		{
			name: "int32 over float32 stays float32",
			src:  "func f(a int32, c float32) float32 {\n\treturn a / c\n}",
			args: []any{int32(1), float32(3)},
			want: float32(1) / float32(3),
		},
		{
			name: "float32 sum widened by a double literal",
			src:  "func f(a float32, b float32) float64 {\n\tvar s float32 = a + b\n\treturn s * 0.1\n}",
			args: []any{float32(16777216), float32(1)},
			want: float64(float32(16777216)) * 0.1,
		},
		{
			name: "nested binaries",
			src:  "func f(a int64, b int64) int64 {\n\treturn (a + b) * (a + 2) / (b * -3)\n}",
			args: []any{int64(7), int64(2)},
			want: int64(-13),
		},
		{
			name: "negative literals",
			src:  "func f(a float64) float64 {\n\treturn a * -2.5 + -7\n}",
			args: []any{2.0},
			want: -12.0,
		},
		{
			name: "truncating int division",
			src:  "func f(a int32, b int32) int32 {\n\treturn a / b\n}",
			args: []any{int32(-7), int32(2)},
			want: int32(-3),
		},
		{
			name: "range over int64 param",
			src:  "func f(n int64, k float64) float64 {\n\tvar acc float64 = 0\n\tfor i := range n {\n\t\tacc += k\n\t}\n\treturn acc\n}",
			args: []any{int64(4), 0.5},
			want: 2.0,
		},
		{
			name: "counter accumulated into double",
			src: `func f(n int32) float64 {
	var acc float64 = 0
	for i := range n {
		acc += i
	}
	var half float64 = 0.5
	acc *= half
	return acc
}`,
			args: []any{int32(10)},
			want: 22.5,
		},
		{
			name: "small constant loop",
			src:  "func f() float32 {\n\tvar acc float32 = 0\n\tfor i := range 4 {\n\t\tacc += i\n\t}\n\treturn acc\n}",
			want: float32(6),
		},
		{
			name: "loop from a literal start",
			src:  "func f(n int32) int64 {\n\tvar c int64 = 0\n\tfor i := 2; i < n; i++ {\n\t\tc += i\n\t}\n\treturn c\n}",
			args: []any{int32(5)},
			want: int64(9),
		},
		{
			name: "inner declaration per iteration",
			src: `func f() int32 {
	var total int32 = 0
	for i := range 3 {
		var step int32 = 1
		step += i
		total += step
	}
	return total
}`,
			want: int32(6),
		},
		{
			name: "float result truncated to int",
			src:  "func f(a float64) int32 {\n\treturn a * 2\n}",
			args: []any{-1.75},
			want: int32(-3),
		},
		{
			name: "int64 narrowed to int32",
			src:  "func f(a int64) int32 {\n\treturn a\n}",
			args: []any{int64(5000000001)},
			want: int32(705032705),
		},
		{
			name: "nested sum",
			src:  benchSrc,
			want: float32(499950),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRoutine(tt.src, "")
			require.NoError(t, err)
			def, err := r.Syntax()
			require.NoError(t, err)

			ref, err := interp.Call(def, tt.args...)
			require.NoError(t, err)
			require.Equal(t, tt.want, ref, "interpreter")

			got, err := p.Wrap(r).Call(tt.args...)
			require.NoError(t, err)
			require.Equal(t, ref, got, "native")
			require.Equal(t, Ready, p.Cache().State(r.Key()))
		})
	}
}
