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

// Command loopjit translates, compiles and runs loop routines.
//
// Usage:
//
//	loopjit emit   kernels.go [-f name]      print the C translation
//	loopjit run    kernels.go -f name 3 2.5  compile natively and call
//	loopjit interp kernels.go -f name 3 2.5  evaluate without compiling
//	loopjit build  a.go b.go -o out/         build raw code blobs
//	loopjit repl                             define and call routines
//	loopjit env                              show host features and tools
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ajroetker/loopjit/internal/toolchain"
	"github.com/ajroetker/loopjit/jit"
)

// globals are the flags shared by every subcommand.
type globals struct {
	cc        string
	objcopy   string
	workDir   string
	keep      bool
	check     bool
	verbose   bool
	extraArgs []string
}

func (g *globals) register(fs *pflag.FlagSet) {
	env := toolchain.ConfigFromEnv()
	fs.StringVar(&g.cc, "cc", env.CC, "C compiler (env LOOPJIT_CC)")
	fs.StringVar(&g.objcopy, "objcopy", env.Objcopy, "binary extraction tool (env LOOPJIT_OBJCOPY)")
	fs.StringVar(&g.workDir, "work-dir", env.WorkDir, "parent directory for build artifacts (env LOOPJIT_WORKDIR)")
	fs.BoolVar(&g.keep, "keep-artifacts", env.KeepArtifacts, "keep the per-build directory (env LOOPJIT_KEEP)")
	fs.BoolVar(&g.check, "check", false, "parse the emitted C in-process before compiling")
	fs.StringSliceVar(&g.extraArgs, "cflag", nil, "extra compiler flag (repeatable)")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log pipeline stages to stderr")
}

func (g *globals) config() toolchain.Config {
	return toolchain.Config{
		CC:            g.cc,
		Objcopy:       g.objcopy,
		WorkDir:       g.workDir,
		KeepArtifacts: g.keep,
		Check:         g.check,
		ExtraFlags:    g.extraArgs,
	}
}

func (g *globals) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// proxy returns a Proxy over a fresh cache that builds with the configured
// toolchain.
func (g *globals) proxy(log *slog.Logger) *jit.Proxy {
	return jit.NewProxy(jit.NewCache(),
		jit.WithLogger(log),
		jit.WithToolchain(g.config(), toolchain.WithLogger(log)))
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "loopjit",
		Short:         "Compile small numeric loop routines to native code",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.register(root.PersistentFlags())
	root.AddCommand(
		newEmitCmd(g),
		newRunCmd(g),
		newInterpCmd(g),
		newBuildCmd(g),
		newReplCmd(g),
		newEnvCmd(g),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "loopjit:", err)
		os.Exit(1)
	}
}

// readSource reads path, or stdin when path is "-".
func readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// parseValues reads call arguments. Integers stay integers so they convert
// exactly; anything with a fraction or exponent is a float.
func parseValues(args []string) ([]any, error) {
	out := make([]any, 0, len(args))
	for _, a := range args {
		if i, err := strconv.ParseInt(a, 0, 64); err == nil {
			out = append(out, i)
			continue
		}
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a number", a)
		}
		out = append(out, f)
	}
	return out, nil
}

// formatValue prints v the way it would be written as a literal.
func formatValue(v any) string {
	switch x := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func joinValues(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, ", ")
}
