package queryengine

import (
	"errors"
	"sync/atomic"
)

// ErrResultsNotReady is returned by AsyncMatcher.GetMatchedResults when
// called before the in-flight FindMatches future has resolved.
var ErrResultsNotReady = errors.New("queryengine: attempted to get results before findMatches resolved")

// AsyncMatcher mirrors Matcher's public surface except FindMatches returns a
// future (here, a receive-only error channel) resolved by a worker from the
// owning Compiler's WorkerPool, rather than running the scan inline.
//
// Unlike the synchronous Matcher, GetMatchedResults does not return a
// stable reference across calls: each resolved FindMatches replaces the
// stored result map wholesale (via an atomic pointer swap), so two calls to
// GetMatchedResults separated by another FindMatches can observe different
// map instances. This mirrors the reference implementation, where the
// "results not ready" error is raised by checking for a nil field that a
// successful resolve replaces outright.
type AsyncMatcher struct {
	pool    *WorkerPool
	sources []string

	result atomic.Pointer[map[string]struct{}]
}

// newAsyncMatcher constructs a facade bound to pool. Vended only through
// Compiler.NewAsyncMatcher.
func newAsyncMatcher(pool *WorkerPool) *AsyncMatcher {
	return &AsyncMatcher{pool: pool}
}

// AddSource stores text for the next FindMatches call. Unlike the
// synchronous Matcher, the facade performs no comment stripping itself: it
// forwards the raw source set to the worker, which runs the full
// synchronous Matcher — comment stripping included — inside the pool.
func (m *AsyncMatcher) AddSource(text string) {
	m.sources = append(m.sources, text)
}

// FindMatches submits the accumulated sources to the worker pool and
// returns a future that resolves to nil once a worker has scanned them, or
// to the worker's error if it crashed. Resolving the future updates the
// results returned by GetMatchedResults.
func (m *AsyncMatcher) FindMatches() <-chan error {
	errCh := make(chan error, 1)
	resultCh := m.pool.Submit(append([]string(nil), m.sources...))

	go func() {
		res := <-resultCh
		if res.Err != nil {
			errCh <- res.Err
			return
		}
		matched := res.Matched
		m.result.Store(&matched)
		errCh <- nil
	}()

	return errCh
}

// GetMatchedResults returns the matched-query set from the most recently
// resolved FindMatches call. It fails with ErrResultsNotReady if no
// FindMatches call has resolved yet.
func (m *AsyncMatcher) GetMatchedResults() (map[string]struct{}, error) {
	p := m.result.Load()
	if p == nil {
		return nil, ErrResultsNotReady
	}
	return *p, nil
}

// NewAsyncMatcher lazily creates the Compiler's WorkerPool on first use and
// vends an AsyncMatcher over it. Once any async matcher has been vended,
// the Compiler freezes against further AddQuery calls: the CompiledQuery
// snapshot already cloned into the pool's workers must not drift from what
// matchers built after it advertise.
func (c *Compiler) NewAsyncMatcher(maxWorkers int) *AsyncMatcher {
	c.mu.Lock()
	if c.pool == nil {
		c.frozen = true
		c.pool = NewWorkerPool(c.snapshotLocked(), maxWorkers)
	}
	pool := c.pool
	c.mu.Unlock()

	return newAsyncMatcher(pool)
}

// Destroy tears down the Compiler's worker pool, if one was ever created.
// Async-only: the synchronous flavor owns no pool to tear down.
func (c *Compiler) Destroy() {
	c.mu.Lock()
	pool := c.pool
	c.pool = nil
	c.mu.Unlock()

	if pool != nil {
		pool.Shutdown()
	}
}
