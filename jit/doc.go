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

// Package jit compiles small numeric loop routines to native code on first
// call and dispatches every call through the compiled function.
//
// A routine is a Go function restricted to a closed grammar: typed `var`
// declarations, `for i := lo; i < hi; i++` (or `for i := range n`) loops,
// `x += y`, `x *= y`, `x /= y`, `+ * /` expressions over names and
// literals, and a final `return`. Parameter and result types come from a
// fixed table (float32, float64, int32, int64).
//
// Usage:
//
//	proxy := jit.NewProxy(jit.NewCache())
//	fn, err := proxy.WrapSource(src, "Accumulate")
//	if err != nil {
//		return err
//	}
//	v, err := jit.Call[float32](fn)
//
// The first call translates the routine to C, builds it with the external
// compiler and objcopy, maps the code executable and caches the binding.
// Later calls reuse the binding. A failed compilation is not cached; the
// next call retries the whole pipeline. There is no interpreted fallback.
//
// Native code does not check integer division. A zero integer divisor, or
// the most negative int32 or int64 divided by -1 on amd64, raises SIGFPE
// inside the compiled function and terminates the process; it cannot be
// recovered as a Go panic. The reference interpreter (internal/interp)
// reports the same operations as ErrDivideByZero and ErrDivideOverflow.
// Callers that cannot rule out such divisors should keep them out of
// integer arithmetic or check them before calling.
package jit
