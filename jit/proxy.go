package jit

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ajroetker/loopjit/internal/ctype"
	"github.com/ajroetker/loopjit/internal/loader"
	"github.com/ajroetker/loopjit/internal/lower"
	"github.com/ajroetker/loopjit/internal/toolchain"
)

// Builder turns emitted C into raw machine code.
type Builder interface {
	Build(src lower.Source) ([]byte, error)
}

// Callable is a native function bound to a fixed signature.
type Callable interface {
	Call(args []any) (any, error)
}

// Loader makes machine code callable.
type Loader interface {
	Load(code []byte, sig loader.Signature) (Callable, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(code []byte, sig loader.Signature) (Callable, error)

func (f LoaderFunc) Load(code []byte, sig loader.Signature) (Callable, error) { return f(code, sig) }

// nativeLoader maps code into executable memory of this process.
type nativeLoader struct{}

func (nativeLoader) Load(code []byte, sig loader.Signature) (Callable, error) {
	b, err := loader.Load(code, sig)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Proxy compiles routines into a Cache on first call and dispatches calls
// to the cached bindings.
type Proxy struct {
	cache   *Cache
	builder Builder
	loader  Loader
	log     *slog.Logger
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithBuilder replaces the toolchain driver.
func WithBuilder(b Builder) Option { return func(p *Proxy) { p.builder = b } }

// WithLoader replaces the native loader.
func WithLoader(l Loader) Option { return func(p *Proxy) { p.loader = l } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *slog.Logger) Option { return func(p *Proxy) { p.log = l } }

// WithToolchain builds with a driver for cfg.
func WithToolchain(cfg toolchain.Config, opts ...toolchain.Option) Option {
	return func(p *Proxy) { p.builder = toolchain.New(cfg, opts...) }
}

// NewProxy returns a Proxy over cache. Without options it builds with the
// toolchain named by the LOOPJIT_* environment and loads into this process.
func NewProxy(cache *Cache, opts ...Option) *Proxy {
	p := &Proxy{
		cache:  cache,
		loader: nativeLoader{},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.builder == nil {
		p.builder = toolchain.New(toolchain.ConfigFromEnv(), toolchain.WithLogger(p.log))
	}
	return p
}

// Cache returns the proxy's cache.
func (p *Proxy) Cache() *Cache { return p.cache }

// Wrap returns a callable stand-in for r. Nothing is compiled until the
// first call.
func (p *Proxy) Wrap(r *Routine) *Func { return &Func{proxy: p, routine: r} }

// WrapSource reads the named function from src and wraps it.
func (p *Proxy) WrapSource(src, name string) (*Func, error) {
	r, err := NewRoutine(src, name)
	if err != nil {
		return nil, err
	}
	return p.Wrap(r), nil
}

// Compile makes r ready without calling it.
func (p *Proxy) Compile(r *Routine) error {
	_, err := p.entry(r)
	return err
}

func (p *Proxy) entry(r *Routine) (*entry, error) {
	return p.cache.getOrCompile(r.Key(), func() (*entry, error) {
		e, err := p.compile(r)
		if err != nil {
			p.log.Warn("compile failed", "routine", r.Name(), "err", err)
			return nil, &Error{Routine: r.Name(), Err: err}
		}
		return e, nil
	})
}

// compile runs the pipeline once. Every check that can reject a routine
// happens before the first external process is spawned.
func (p *Proxy) compile(r *Routine) (*entry, error) {
	start := time.Now()
	p.log.Debug("compiling", "routine", r.Name(), "key", r.Key().String())
	fn, err := r.Syntax()
	if err != nil {
		return nil, err
	}
	src, err := lower.Translate(fn)
	if err != nil {
		return nil, err
	}
	params, result, err := lower.Signature(fn)
	if err != nil {
		return nil, err
	}
	sig, err := loader.NewSignature(params, result)
	if err != nil {
		return nil, err
	}
	p.log.Debug("translated", "routine", r.Name(), "signature", sig.String())

	code, err := p.builder.Build(src)
	if err != nil {
		return nil, err
	}
	native, err := p.loader.Load(code, sig)
	if err != nil {
		return nil, err
	}
	p.log.Info("compiled", "routine", r.Name(), "bytes", len(code), "elapsed", time.Since(start))
	return &entry{
		routine: r,
		params:  params,
		result:  result,
		sig:     sig,
		native:  native,
		size:    len(code),
	}, nil
}

func (p *Proxy) call(r *Routine, args []any) (any, error) {
	e, err := p.entry(r)
	if err != nil {
		return nil, err
	}
	if len(args) != len(e.params) {
		return nil, fmt.Errorf("%s: got %d arguments, want %d", r.Name(), len(args), len(e.params))
	}
	native := make([]any, len(args))
	for i, a := range args {
		v, err := ctype.Convert(a, e.params[i])
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", r.Name(), i, err)
		}
		native[i] = v
	}
	out, err := e.native.Call(native)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name(), err)
	}
	return ctype.Convert(out, e.result)
}

// Func is a wrapped routine. Calls compile on first use and are safe for
// concurrent use.
type Func struct {
	proxy   *Proxy
	routine *Routine
}

// Routine returns the wrapped routine.
func (f *Func) Routine() *Routine { return f.routine }

// State reports whether the routine has been compiled.
func (f *Func) State() State { return f.proxy.cache.State(f.routine.Key()) }

// Call invokes the native routine with args in declaration order. Each
// argument is converted to its declared parameter type.
func (f *Func) Call(args ...any) (any, error) { return f.proxy.call(f.routine, args) }

// Call invokes f and asserts the result type.
func Call[R any](f *Func, args ...any) (R, error) {
	var zero R
	v, err := f.Call(args...)
	if err != nil {
		return zero, err
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%s: result is %T, not %T", f.routine.Name(), v, zero)
	}
	return r, nil
}

var _ Builder = (*toolchain.Driver)(nil)
