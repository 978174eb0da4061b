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

// Package cpuinfo reports the CPU features detected by Go that influence
// the flags passed to the native compiler.
package cpuinfo

import (
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sys/cpu"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Feature is one detected capability.
type Feature struct {
	Name    string
	Present bool
	Note    string
}

// Features returns the features relevant to code generation on the host
// architecture. Unknown architectures report none.
func Features() []Feature {
	switch runtime.GOARCH {
	case "arm64":
		return arm64Features()
	case "amd64":
		return amd64Features()
	}
	return nil
}

// Has reports whether the named feature is present on the host.
func Has(name string) bool {
	for _, f := range Features() {
		if f.Name == name {
			return f.Present
		}
	}
	return false
}

func arm64Features() []Feature {
	return []Feature{
		{"asimd", cpu.ARM64.HasASIMD, "NEON baseline"},
		{"fp", cpu.ARM64.HasFP, "floating point"},
		{"fphp", cpu.ARM64.HasFPHP, "FP16 scalar, ARMv8.2-A"},
		{"asimdhp", cpu.ARM64.HasASIMDHP, "FP16 NEON, ARMv8.2-A"},
		{"sve", cpu.ARM64.HasSVE, "Scalable Vector Extension"},
		{"sve2", cpu.ARM64.HasSVE2, ""},
		{"atomics", cpu.ARM64.HasATOMICS, "Large System Extensions"},
	}
}

func amd64Features() []Feature {
	return []Feature{
		{"sse2", cpu.X86.HasSSE2, ""},
		{"sse41", cpu.X86.HasSSE41, ""},
		{"sse42", cpu.X86.HasSSE42, ""},
		{"avx", cpu.X86.HasAVX, ""},
		{"avx2", cpu.X86.HasAVX2, ""},
		{"fma", cpu.X86.HasFMA, "contraction stays disabled"},
		{"avx512f", cpu.X86.HasAVX512F, ""},
	}
}

// Report writes the platform summary and feature list to w.
func Report(w io.Writer) {
	fmt.Fprintf(w, "GOOS: %s\n", runtime.GOOS)
	fmt.Fprintf(w, "GOARCH: %s\n", runtime.GOARCH)
	fmt.Fprintf(w, "NumCPU: %d\n", runtime.NumCPU())

	features := Features()
	if len(features) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "=== %s features ===\n", cases.Title(language.English).String(runtime.GOARCH))
	for _, f := range features {
		if f.Note != "" {
			fmt.Fprintf(w, "  %-10s %v (%s)\n", f.Name+":", f.Present, f.Note)
		} else {
			fmt.Fprintf(w, "  %-10s %v\n", f.Name+":", f.Present)
		}
	}
}
