package queryengine

import "fmt"

// WorkerPool is a bounded pool of worker goroutines, each an isolated
// sandbox hosting its own Matcher built from a cloned snapshot of the
// Compiler's CompiledQuery map. It never shares mutable state between
// workers; all worker/idle/pending bookkeeping lives in the single
// dispatcher goroutine run by run(), so no mutex is needed anywhere in this
// type.
type WorkerPool struct {
	queries    map[string]CompiledQuery
	maxWorkers int

	cmds chan poolCmd
	done chan struct{}
}

// poolTask is one unit of work: a set of source texts to scan, with a
// channel the dispatcher fulfils exactly once.
type poolTask struct {
	sources  []string
	resultCh chan TaskResult
}

// TaskResult is what a worker protocol reply carries: the matched query
// names, or an error if the worker crashed while processing the task.
type TaskResult struct {
	Matched map[string]struct{}
	Err     error
}

// poolCmd is the dispatcher's single-goroutine command stream: either a new
// task to enqueue, a worker reporting it finished its current task, or a
// synchronous stats query.
type poolCmd struct {
	submit   *poolTask
	complete *workerDone
	stats    chan<- PoolStats
}

// PoolStats reports the dispatcher's current worker/idle/pending counts.
// Exposed for tests that need to observe the lazy-spawn growth curve rather
// than just end-to-end task results.
type PoolStats struct {
	Workers int
	Idle    int
	Pending int
}

// Stats synchronously reports the pool's current worker/idle/pending
// counts.
func (p *WorkerPool) Stats() PoolStats {
	ch := make(chan PoolStats, 1)
	select {
	case p.cmds <- poolCmd{stats: ch}:
		return <-ch
	case <-p.done:
		return PoolStats{}
	}
}

type workerDone struct {
	worker *worker
	err    error
}

type worker struct {
	id   int
	inCh chan poolTask
}

// NewWorkerPool creates a pool that will spawn at most maxWorkers workers,
// each preloaded with queries. maxWorkers below 1 is treated as 1; this
// constructor takes the worker count as a plain int and never consults the
// environment itself.
func NewWorkerPool(queries map[string]CompiledQuery, maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &WorkerPool{
		queries:    queries,
		maxWorkers: maxWorkers,
		cmds:       make(chan poolCmd),
		done:       make(chan struct{}),
	}
	go p.run()
	return p
}

// Submit enqueues sources as a pending task and returns a channel that will
// receive exactly one TaskResult once a worker has processed it. Submission
// is FIFO: tasks dispatch to workers in submission order, but completion
// order is whatever order workers finish in — no ordering guarantee is made
// across tasks.
func (p *WorkerPool) Submit(sources []string) <-chan TaskResult {
	resultCh := make(chan TaskResult, 1)
	select {
	case p.cmds <- poolCmd{submit: &poolTask{sources: sources, resultCh: resultCh}}:
	case <-p.done:
		resultCh <- TaskResult{Err: fmt.Errorf("queryengine: worker pool is shut down")}
	}
	return resultCh
}

// Shutdown terminates all workers and clears pool state. Pending tasks left
// dangling at shutdown have undefined resolution — callers must await every
// submitted task's result channel before calling Shutdown.
func (p *WorkerPool) Shutdown() {
	close(p.done)
}

// run is the dispatcher loop: the single goroutine that owns worker, idle,
// and pending-task state, so no locking is needed anywhere else in the pool.
func (p *WorkerPool) run() {
	var (
		workers []*worker
		idle    []*worker
		pending []*poolTask
		nextID  int
	)

	dispatch := func() {
		for len(pending) > 0 {
			w := obtainWorker(&idle, &workers, &nextID, p.maxWorkers, p.queries, p.cmds)
			if w == nil {
				return
			}
			task := pending[0]
			pending = pending[1:]
			w.inCh <- *task
		}
	}

	for {
		select {
		case cmd := <-p.cmds:
			switch {
			case cmd.submit != nil:
				pending = append(pending, cmd.submit)
				dispatch()
			case cmd.complete != nil:
				if cmd.complete.err == nil {
					idle = append(idle, cmd.complete.worker)
				} else {
					workers = removeWorker(workers, cmd.complete.worker)
					close(cmd.complete.worker.inCh)
				}
				dispatch()
			case cmd.stats != nil:
				cmd.stats <- PoolStats{Workers: len(workers), Idle: len(idle), Pending: len(pending)}
			}
		case <-p.done:
			for _, w := range workers {
				close(w.inCh)
			}
			return
		}
	}
}

// obtainWorker implements the "obtain a free worker" step of the submission
// protocol: reuse an idle worker if one exists, else spawn a new one if
// under the ceiling, else return nil so the caller leaves the task pending.
func obtainWorker(idle *[]*worker, workers *[]*worker, nextID *int, maxWorkers int, queries map[string]CompiledQuery, cmds chan poolCmd) *worker {
	if len(*idle) > 0 {
		w := (*idle)[0]
		*idle = (*idle)[1:]
		return w
	}
	if len(*workers) >= maxWorkers {
		return nil
	}

	w := &worker{id: *nextID, inCh: make(chan poolTask)}
	*nextID++
	*workers = append(*workers, w)
	go runWorker(w, queries, cmds)
	return w
}

// removeWorker returns workers with w excised, so a retired worker no
// longer counts against the ceiling.
func removeWorker(workers []*worker, w *worker) []*worker {
	for i, candidate := range workers {
		if candidate == w {
			return append(workers[:i], workers[i+1:]...)
		}
	}
	return workers
}

// runWorker is one worker's entire lifetime: pull a task, scan it with a
// fresh Matcher seeded from the cloned query snapshot, report the result,
// then report completion to the dispatcher and wait for the next task.
func runWorker(w *worker, queries map[string]CompiledQuery, cmds chan poolCmd) {
	for task := range w.inCh {
		result := scanTask(queries, task.sources)
		task.resultCh <- result
		cmds <- poolCmd{complete: &workerDone{worker: w, err: result.Err}}
	}
}

// scanTask runs one task to completion, recovering from a panic inside
// pattern evaluation so a single bad source can't take the worker down
// without reporting an error.
func scanTask(queries map[string]CompiledQuery, sources []string) (result TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			result = TaskResult{Err: fmt.Errorf("queryengine: worker crashed: %v", r)}
		}
	}()

	m := newMatcher(queries)
	for _, s := range sources {
		m.AddSource(s)
	}
	m.FindMatches()

	matched := make(map[string]struct{}, len(m.matched))
	for k := range m.matched {
		matched[k] = struct{}{}
	}
	return TaskResult{Matched: matched}
}
