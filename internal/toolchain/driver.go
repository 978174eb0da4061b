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

// Package toolchain turns emitted C into a raw instruction blob by driving
// an external compiler and objcopy.
package toolchain

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ajroetker/loopjit/internal/failure"
	"github.com/ajroetker/loopjit/internal/lower"
)

// Hooks observe the driver. Nil fields are skipped.
type Hooks struct {
	// OnInvoke runs before each external process with the tool and argv.
	OnInvoke func(tool string, argv []string)
}

// Driver builds CodeBlobs. It is safe for concurrent use: every Build works
// in its own temp directory.
type Driver struct {
	cfg     Config
	profile Profile
	hooks   Hooks
	log     *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithProfile overrides the host profile.
func WithProfile(p Profile) Option { return func(d *Driver) { d.profile = p } }

// WithHooks installs observation hooks.
func WithHooks(h Hooks) Option { return func(d *Driver) { d.hooks = h } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.log = l } }

// New returns a Driver for cfg on the host profile.
func New(cfg Config, opts ...Option) *Driver {
	d := &Driver{
		cfg:     cfg,
		profile: DefaultProfile(),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the driver's configuration.
func (d *Driver) Config() Config { return d.cfg }

// Profile returns the driver's platform profile.
func (d *Driver) Profile() Profile { return d.profile }

// Build compiles src and returns the bytes of its text section. Any failure
// is a failure.Toolchain error; nothing is retried.
func (d *Driver) Build(src lower.Source) ([]byte, error) {
	dir, err := os.MkdirTemp(d.cfg.WorkDir, "loopjit-"+src.Func+"-*")
	if err != nil {
		return nil, failure.Wrap(failure.Toolchain, "create work dir", err)
	}
	if d.cfg.KeepArtifacts {
		d.log.Info("keeping build artifacts", "func", src.Func, "dir", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	cFile := filepath.Join(dir, src.Func+".c")
	oFile := filepath.Join(dir, src.Func+".o")
	binFile := filepath.Join(dir, src.Func+".bin")

	if err := os.WriteFile(cFile, []byte(src.Text), 0o644); err != nil {
		return nil, failure.Wrap(failure.Toolchain, "write source", err)
	}
	if d.cfg.Check {
		if err := checkC(cFile, src.Text); err != nil {
			return nil, failure.Wrap(failure.Toolchain, "preflight parse", err)
		}
	}

	if err := d.run(dir, d.cfg.CC, d.profile.compileArgs(d.cfg, cFile, oFile)); err != nil {
		return nil, err
	}
	if err := checkObject(d.profile.Format, oFile, src.Func); err != nil {
		return nil, failure.Wrap(failure.Toolchain, "inspect object", err)
	}
	if err := d.run(dir, d.cfg.Objcopy, d.profile.extractArgs(oFile, binFile)); err != nil {
		return nil, err
	}

	code, err := os.ReadFile(binFile)
	if err != nil {
		return nil, failure.Wrap(failure.Toolchain, "read extracted code", err)
	}
	if len(code) == 0 {
		return nil, &failure.Error{Kind: failure.Toolchain, Op: fmt.Sprintf("%s: extracted section %s is empty", src.Func, d.profile.Section)}
	}
	d.log.Debug("built", "func", src.Func, "bytes", len(code))
	return code, nil
}

// run executes one external tool, treating a non-zero exit as failure.
func (d *Driver) run(dir, tool string, args []string) error {
	if d.hooks.OnInvoke != nil {
		d.hooks.OnInvoke(tool, args)
	}
	d.log.Debug("invoke", "tool", tool, "args", args)

	cmd := exec.Command(tool, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return failure.Wrap(failure.Toolchain, filepath.Base(tool), fmt.Errorf("%w: %s", err, output))
	}
	return nil
}
