package main

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/loopjit/internal/lower"
	"github.com/ajroetker/loopjit/internal/syntax"
	"github.com/ajroetker/loopjit/internal/toolchain"
)

type buildResult struct {
	file, fn string
	size     int
	err      error
}

func newBuildCmd(g *globals) *cobra.Command {
	var (
		outDir string
		jobs   int
		emitC  bool
	)
	cmd := &cobra.Command{
		Use:   "build FILE...",
		Short: "Build the raw code blob of every routine without loading it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := g.logger(cmd.ErrOrStderr())
			driver := toolchain.New(g.config(), toolchain.WithLogger(log))
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}

			var (
				mu      sync.Mutex
				results []buildResult
			)
			record := func(r buildResult) {
				mu.Lock()
				defer mu.Unlock()
				results = append(results, r)
			}

			var eg errgroup.Group
			eg.SetLimit(jobs)
			for _, path := range args {
				src, err := readSource(path)
				if err != nil {
					return err
				}
				f, err := syntax.ParseFile(path, src)
				if err != nil {
					return err
				}
				for _, name := range f.FuncNames() {
					eg.Go(func() error {
						size, err := buildOne(driver, f, name, outDir, emitC)
						record(buildResult{file: path, fn: name, size: size, err: err})
						return nil
					})
				}
			}
			_ = eg.Wait()

			slices.SortFunc(results, func(a, b buildResult) int {
				return cmp.Or(cmp.Compare(a.file, b.file), cmp.Compare(a.fn, b.fn))
			})
			failed := 0
			for _, r := range results {
				if r.err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %v\n", r.file, r.fn, r.err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s: %d bytes\n", r.file, r.fn, r.size)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d routines failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write NAME.bin for each routine into this directory")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "concurrent builds")
	cmd.Flags().BoolVar(&emitC, "emit-c", false, "also write NAME.c next to each blob")
	return cmd
}

func buildOne(d *toolchain.Driver, f *syntax.File, name, outDir string, emitC bool) (int, error) {
	fn, err := f.Func(name)
	if err != nil {
		return 0, err
	}
	src, err := lower.Translate(fn)
	if err != nil {
		return 0, err
	}
	code, err := d.Build(src)
	if err != nil {
		return 0, err
	}
	if outDir == "" {
		return len(code), nil
	}
	if emitC {
		if err := os.WriteFile(filepath.Join(outDir, name+".c"), []byte(src.Text), 0o644); err != nil {
			return 0, err
		}
	}
	return len(code), os.WriteFile(filepath.Join(outDir, name+".bin"), code, 0o644)
}
