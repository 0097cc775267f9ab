package queryengine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCompilerFrozen is returned by AddQuery once an async Matcher has been
// vended from the Compiler: the CompiledQuery snapshot already handed to
// worker pool workers must not drift from what subsequently-vended matchers
// advertise, so further additions are refused.
var ErrCompilerFrozen = errors.New("queryengine: AddQuery called after an async matcher was vended")

// Logger receives the engine's one non-fatal diagnostic: a warning when
// AddQuery is called with a query already present. It mirrors the scanner
// package's DebugLogger/NoopLogger split so callers that don't care about
// diagnostics pay nothing for them.
type Logger interface {
	Warnf(format string, args ...any)
}

// NoopLogger discards every message.
type NoopLogger struct{}

// Warnf implements Logger.
func (NoopLogger) Warnf(format string, args ...any) {}

// Compiler holds an ordered mapping from query string to CompiledQuery and
// the Pattern Cache the queries' patterns are interned through. It owns both
// exclusively; Matchers vended from it hold only a non-owning reference and
// must not outlive it.
type Compiler struct {
	mu       sync.Mutex
	cache    *PatternCache
	order    []string
	compiled map[string]CompiledQuery
	logger   Logger

	// frozen is set once the async flavor vends its first Matcher (see
	// pool.go / asyncmatcher.go); further AddQuery calls become fatal.
	frozen bool

	// pool is created lazily by NewAsyncMatcher and torn down by Destroy.
	pool *WorkerPool
}

// NewCompiler creates an empty Compiler with its own Pattern Cache.
func NewCompiler() *Compiler {
	return &Compiler{
		cache:    NewPatternCache(),
		compiled: make(map[string]CompiledQuery),
		logger:   NoopLogger{},
	}
}

// NewCompilerWithLogger is NewCompiler with an explicit diagnostic sink.
func NewCompilerWithLogger(logger Logger) *Compiler {
	c := NewCompiler()
	if logger != nil {
		c.logger = logger
	}
	return c
}

// AddQuery compiles q and adds it to the Compiler. A duplicate query string
// is a warning, not an error, and the prior CompiledQuery is kept unchanged.
// Returns ErrCompilerFrozen if called after an async Matcher has already
// been vended from this Compiler.
func (c *Compiler) AddQuery(q string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return fmt.Errorf("%w: %q", ErrCompilerFrozen, q)
	}

	if _, exists := c.compiled[q]; exists {
		c.logger.Warnf("queryengine: duplicate query ignored: %q", q)
		return nil
	}

	c.order = append(c.order, q)
	c.compiled[q] = compile(NewQuery(q), c.cache)
	return nil
}

// freeze prevents further AddQuery calls. NewAsyncMatcher does not call it:
// it sets frozen itself while already holding c.mu, in the same critical
// section that creates the worker pool and snapshots the CompiledQuery map.
func (c *Compiler) freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// snapshot returns a defensive copy of the compiled-query map, suitable for
// handing to a Matcher or cloning into a worker.
func (c *Compiler) snapshot() map[string]CompiledQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked is snapshot without acquiring c.mu; callers must already
// hold it.
func (c *Compiler) snapshotLocked() map[string]CompiledQuery {
	out := make(map[string]CompiledQuery, len(c.compiled))
	for k, v := range c.compiled {
		out[k] = v
	}
	return out
}

// NewMatcher vends a synchronous Matcher holding a non-owning reference to
// this Compiler's current CompiledQuery snapshot.
func (c *Compiler) NewMatcher() *Matcher {
	return newMatcher(c.snapshot())
}
