//go:build (linux || darwin) && (amd64 || arm64)

package loader

import (
	"fmt"
	"reflect"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"

	"github.com/ajroetker/loopjit/internal/failure"
)

// Supported reports whether Load can map executable code on this platform.
const Supported = true

func mapExecutable(code []byte) ([]byte, error) {
	page := unix.Getpagesize()
	size := (len(code) + page - 1) &^ (page - 1)
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, failure.Wrap(failure.Load, "mmap", err)
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, failure.Wrap(failure.Load, "mprotect", err)
	}
	return mem, nil
}

func unmap(mem []byte) error {
	return unix.Munmap(mem)
}

// bindEntry builds a Go function of the signature's type whose calls jump to
// entry. purego reports unsupported signatures by panicking.
func bindEntry(sig Signature, entry uintptr) (fn reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &failure.Error{Kind: failure.Load, Op: "bind " + sig.String(), Err: fmt.Errorf("%v", r)}
		}
	}()
	fptr := reflect.New(sig.FuncType())
	purego.RegisterFunc(fptr.Interface(), entry)
	return fptr.Elem(), nil
}
