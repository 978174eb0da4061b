//go:build !((linux || darwin) && (amd64 || arm64))

package loader

import (
	"reflect"
	"runtime"

	"github.com/ajroetker/loopjit/internal/failure"
)

// Supported reports whether Load can map executable code on this platform.
const Supported = false

func mapExecutable([]byte) ([]byte, error) {
	return nil, &failure.Error{Kind: failure.Load, Op: "executable mappings unsupported on " + runtime.GOOS + "/" + runtime.GOARCH}
}

func unmap([]byte) error { return nil }

func bindEntry(sig Signature, _ uintptr) (reflect.Value, error) {
	return reflect.Value{}, &failure.Error{Kind: failure.Load, Op: "bind " + sig.String() + ": unsupported platform"}
}
