package jit

import (
	"errors"

	"github.com/ajroetker/loopjit/internal/failure"
)

// Error kinds, usable with errors.Is on any error returned by a call.
var (
	// ErrCompilationFailed matches every failed compile attempt.
	ErrCompilationFailed = errors.New("compilation failed")

	ErrUnsupportedConstruct error = failure.Unsupported
	ErrToolchainFailure     error = failure.Toolchain
	ErrLoadFailure          error = failure.Load
)

// Error is a failed compilation of one routine. Err carries the kind.
type Error struct {
	Routine string
	Err     error
}

func (e *Error) Error() string { return "compile " + e.Routine + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrCompilationFailed }
