package main

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/peterh/liner"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ajroetker/loopjit/internal/interp"
	"github.com/ajroetker/loopjit/internal/lower"
	"github.com/ajroetker/loopjit/internal/syntax"
	"github.com/ajroetker/loopjit/jit"
)

const (
	historyFile = ".loopjit_history"
	promptMain  = "loopjit> "
	promptCont  = "....     "
	replHelp    = `Define a routine by typing a func declaration; call it as name(args).
Commands:
  :help              Show this help
  :load FILE         Define every routine in FILE
  :quit / :exit      Exit
  :list              List routines and their compilation state
  :c NAME            Print the C translation of NAME
  :interp NAME(ARGS) Evaluate without compiling
  :stats             Show cache counters
`
)

func newReplCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "repl [FILE]",
		Short: "Define and call routines interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(g.proxy(g.logger(cmd.ErrOrStderr())), cmd.OutOrStdout())
			if len(args) == 1 {
				if err := s.load(args[0]); err != nil {
					return err
				}
			}
			return runREPL(s)
		},
	}
}

func runREPL(s *session) error {
	fmt.Fprintln(s.out, "loopjit REPL. Ctrl+D exits, :help lists commands.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		input, ok := readBalanced(ln)
		if !ok {
			fmt.Fprintln(s.out)
			break
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))
		if s.eval(input) {
			break
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// readBalanced reads lines until every opened brace is closed.
func readBalanced(ln *liner.State) (string, bool) {
	var b strings.Builder
	depth := 0
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			return b.String(), true
		}
	}
}

// session holds the routines defined in one REPL run.
type session struct {
	proxy *jit.Proxy
	funcs map[string]*jit.Func
	out   io.Writer
}

func newSession(p *jit.Proxy, out io.Writer) *session {
	return &session{proxy: p, funcs: make(map[string]*jit.Func), out: out}
}

// eval handles one complete input and reports whether the session ends.
func (s *session) eval(input string) (exit bool) {
	input = strings.TrimSpace(input)
	var err error
	switch {
	case input == ":quit" || input == ":exit":
		return true
	case input == ":help":
		fmt.Fprint(s.out, replHelp)
	case input == ":list":
		s.list()
	case input == ":stats":
		st := s.proxy.Cache().Stats()
		fmt.Fprintf(s.out, "compiles: %d  hits: %d  misses: %d  failures: %d  ready: %d\n",
			st.Compiles, st.Hits, st.Misses, st.Failures, s.proxy.Cache().Len())
	case strings.HasPrefix(input, ":load "):
		err = s.load(strings.TrimSpace(strings.TrimPrefix(input, ":load ")))
	case strings.HasPrefix(input, ":c "):
		err = s.emit(strings.TrimSpace(strings.TrimPrefix(input, ":c ")))
	case strings.HasPrefix(input, ":interp "):
		err = s.call(strings.TrimSpace(strings.TrimPrefix(input, ":interp ")), true)
	case strings.HasPrefix(input, ":"):
		err = fmt.Errorf("unknown command %s; try :help", strings.Fields(input)[0])
	case strings.HasPrefix(input, "func "):
		err = s.define(input)
	default:
		err = s.call(input, false)
	}
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)
	}
	return false
}

func (s *session) define(src string) error {
	r, err := jit.NewRoutine(src, "")
	if err != nil {
		return err
	}
	s.funcs[r.Name()] = s.proxy.Wrap(r)
	params := lo.Map(r.Params(), func(p syntax.Param, _ int) string { return p.Name + " " + p.Type })
	fmt.Fprintf(s.out, "defined %s(%s) %s\n", r.Name(), strings.Join(params, ", "), r.Result())
	return nil
}

// load defines every routine declared in path.
func (s *session) load(path string) error {
	src, err := readSource(path)
	if err != nil {
		return err
	}
	routines, err := jit.ParseFile(path, src)
	if err != nil {
		return err
	}
	for _, r := range routines {
		s.funcs[r.Name()] = s.proxy.Wrap(r)
	}
	fmt.Fprintf(s.out, "loaded %d routines from %s\n", len(routines), path)
	return nil
}

func (s *session) list() {
	for _, n := range slices.Sorted(maps.Keys(s.funcs)) {
		fmt.Fprintf(s.out, "%-16s %s\n", n, s.funcs[n].State())
	}
}

func (s *session) lookup(name string) (*jit.Func, error) {
	fn, ok := s.funcs[name]
	if !ok {
		return nil, fmt.Errorf("no routine named %q", name)
	}
	return fn, nil
}

func (s *session) emit(name string) error {
	fn, err := s.lookup(name)
	if err != nil {
		return err
	}
	def, err := fn.Routine().Syntax()
	if err != nil {
		return err
	}
	out, err := lower.Translate(def)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, out.Text)
	return nil
}

// call evaluates name(args), natively unless interpreted is set.
func (s *session) call(expr string, interpreted bool) error {
	name, rest, ok := strings.Cut(expr, "(")
	if !ok || !strings.HasSuffix(rest, ")") {
		return fmt.Errorf("expected a func declaration or name(args), got %q", expr)
	}
	fn, err := s.lookup(strings.TrimSpace(name))
	if err != nil {
		return err
	}
	inner := strings.TrimSpace(strings.TrimSuffix(rest, ")"))
	var fields []string
	if inner != "" {
		fields = lo.Map(strings.Split(inner, ","), func(f string, _ int) string { return strings.TrimSpace(f) })
	}
	values, err := parseValues(fields)
	if err != nil {
		return err
	}

	var v any
	if interpreted {
		def, err := fn.Routine().Syntax()
		if err != nil {
			return err
		}
		v, err = interp.Call(def, values...)
		if err != nil {
			return err
		}
	} else {
		v, err = fn.Call(values...)
		if err != nil {
			return err
		}
	}
	fmt.Fprintln(s.out, formatValue(v))
	return nil
}
