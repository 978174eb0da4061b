package jit

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ajroetker/loopjit/internal/ctype"
	"github.com/ajroetker/loopjit/internal/loader"
)

// State is the compilation state of one routine in a Cache.
type State int

const (
	Uncompiled State = iota
	Compiling
	Ready
)

func (s State) String() string {
	switch s {
	case Uncompiled:
		return "uncompiled"
	case Compiling:
		return "compiling"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Stats counts cache activity since creation.
type Stats struct {
	Compiles uint64 // pipeline runs, successful or not
	Failures uint64 // pipeline runs that returned an error
	Hits     uint64 // calls served by an existing binding
	Misses   uint64 // calls that had to wait for a compile
}

// entry is a cached native binding together with the signature used to
// marshal calls into it.
type entry struct {
	routine *Routine
	params  []ctype.Tag
	result  ctype.Tag
	sig     loader.Signature
	native  Callable
	size    int
}

// Cache maps routine keys to native bindings. Entries are only ever added;
// a binding lives as long as the Cache. At most one compile per key runs at
// a time and concurrent first callers share its outcome.
type Cache struct {
	mu        sync.RWMutex
	entries   map[Key]*entry
	compiling map[Key]struct{}

	group singleflight.Group

	compiles atomic.Uint64
	failures atomic.Uint64
	hits     atomic.Uint64
	misses   atomic.Uint64
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{
		entries:   make(map[Key]*entry),
		compiling: make(map[Key]struct{}),
	}
}

// State reports where key is in its lifecycle.
func (c *Cache) State(key Key) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.entries[key]; ok {
		return Ready
	}
	if _, ok := c.compiling[key]; ok {
		return Compiling
	}
	return Uncompiled
}

// Len returns the number of ready bindings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the keys of all ready bindings in no particular order.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Compiles: c.compiles.Load(),
		Failures: c.failures.Load(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}

func (c *Cache) lookup(key Key) (*entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// getOrCompile returns the binding for key, running compile if there is
// none. A failed compile leaves no entry behind.
func (c *Cache) getOrCompile(key Key, compile func() (*entry, error)) (*entry, error) {
	if e, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return e, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A compile that finished between lookup and Do already inserted.
		if e, ok := c.lookup(key); ok {
			return e, nil
		}
		c.setCompiling(key, true)
		defer c.setCompiling(key, false)

		c.compiles.Add(1)
		e, err := compile()
		if err != nil {
			c.failures.Add(1)
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

func (c *Cache) setCompiling(key Key, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.compiling[key] = struct{}{}
	} else {
		delete(c.compiling, key)
	}
}
