package main

import (
	"fmt"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ajroetker/loopjit/internal/cpuinfo"
	"github.com/ajroetker/loopjit/internal/interp"
	"github.com/ajroetker/loopjit/internal/loader"
	"github.com/ajroetker/loopjit/internal/lower"
	"github.com/ajroetker/loopjit/internal/syntax"
	"github.com/ajroetker/loopjit/internal/toolchain"
)

func newEmitCmd(g *globals) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "emit FILE",
		Short: "Print the C translation of routines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			f, err := syntax.ParseFile(args[0], src)
			if err != nil {
				return err
			}
			names := f.FuncNames()
			if name != "" {
				names = []string{name}
			}
			tr := lower.NewTranslator()
			for i, n := range names {
				fn, err := f.Func(n)
				if err != nil {
					return err
				}
				out, err := tr.Translate(fn)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprint(cmd.OutOrStdout(), out.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "func", "f", "", "routine to translate (default all)")
	return cmd
}

func newRunCmd(g *globals) *cobra.Command {
	var (
		name    string
		repeat  int
		stats   bool
		compare bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE [ARG...]",
		Short: "Compile a routine natively and call it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !loader.Supported {
				return fmt.Errorf("native execution is not supported on this platform; use interp")
			}
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			values, err := parseValues(args[1:])
			if err != nil {
				return err
			}
			log := g.logger(cmd.ErrOrStderr())
			proxy := g.proxy(log)
			fn, err := proxy.WrapSource(string(src), name)
			if err != nil {
				return err
			}

			var (
				result any
				first  time.Duration
				rest   []time.Duration
			)
			for i := range max(repeat, 1) {
				start := time.Now()
				result, err = fn.Call(values...)
				if err != nil {
					return err
				}
				if i == 0 {
					first = time.Since(start)
				} else {
					rest = append(rest, time.Since(start))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatValue(result))

			if compare {
				def, err := fn.Routine().Syntax()
				if err != nil {
					return err
				}
				want, err := interp.Call(def, values...)
				if err != nil {
					return fmt.Errorf("interpreter: %w", err)
				}
				if want != result {
					return fmt.Errorf("native result %s differs from interpreter %s", formatValue(result), formatValue(want))
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "interpreter agrees")
			}
			if stats {
				s := proxy.Cache().Stats()
				w := cmd.ErrOrStderr()
				fmt.Fprintf(w, "routine:  %s\n", fn.Routine().Key())
				fmt.Fprintf(w, "compiles: %d  hits: %d  misses: %d  failures: %d\n", s.Compiles, s.Hits, s.Misses, s.Failures)
				fmt.Fprintf(w, "first call (incl. compile): %v\n", first)
				if len(rest) > 0 {
					mean := lo.Sum(rest) / time.Duration(len(rest))
					fmt.Fprintf(w, "mean of %d cached calls:    %v\n", len(rest), mean)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "func", "f", "", "routine to call (default the only one)")
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "number of calls")
	cmd.Flags().BoolVar(&stats, "stats", false, "print cache counters and timings")
	cmd.Flags().BoolVar(&compare, "compare", false, "check the result against the interpreter")
	return cmd
}

func newInterpCmd(g *globals) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "interp FILE [ARG...]",
		Short: "Evaluate a routine without compiling it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0])
			if err != nil {
				return err
			}
			values, err := parseValues(args[1:])
			if err != nil {
				return err
			}
			fn, err := syntax.Parse(args[0], src, name)
			if err != nil {
				return err
			}
			v, err := interp.Call(fn, values...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatValue(v))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "func", "f", "", "routine to evaluate (default the only one)")
	return cmd
}

func newEnvCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show host CPU features and the toolchain in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			cpuinfo.Report(w)

			cfg := g.config()
			p := toolchain.DefaultProfile()
			fmt.Fprintf(w, "\nProfile: %s (%s, section %s)\n", p.Name, p.Format, p.Section)
			fmt.Fprintf(w, "ISA flags: %v\n", p.Flags)
			fmt.Fprintf(w, "Native loading: %v\n", loader.Supported)
			for _, tool := range []string{cfg.CC, cfg.Objcopy} {
				status := "ok"
				if err := (toolchain.Config{CC: tool, Objcopy: tool}).Available(); err != nil {
					status = err.Error()
				}
				fmt.Fprintf(w, "  %-12s %s\n", tool, status)
			}
			if dir := cfg.WorkDir; dir != "" {
				fmt.Fprintf(w, "Work dir: %s\n", dir)
			} else {
				fmt.Fprintf(w, "Work dir: %s\n", os.TempDir())
			}
			return nil
		},
	}
}
