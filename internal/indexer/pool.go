package indexer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"voxelindex.ai/internal/ingest"
)

// ErrWorkerFailure wraps whatever made a task fail inside a worker.
var ErrWorkerFailure = errors.New("worker failure")

// Executor runs one ingest task. *ingest.Pipeline implements it.
type Executor interface {
	Ingest(task ingest.Task) (ingest.Result, error)
	Failure(task ingest.Task, cause error) ingest.Result
}

type request struct {
	seq  int
	task ingest.Task
}

// Response is the outcome of one request. Err is non-nil when the worker
// failed; Result is then unset.
type Response struct {
	Task   ingest.Task
	Result ingest.Result
	Err    error
}

type PoolStats struct {
	Workers   int
	Completed uint64
	Failed    uint64
}

// Pool is a fixed set of executor goroutines fed by a request channel.
// Start it once, Run batches through it, then Close it.
type Pool struct {
	exec    Executor
	workers int

	requests  chan request
	responses chan indexed
	wg        sync.WaitGroup

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	runMu     sync.Mutex

	completed atomic.Uint64
	failed    atomic.Uint64
}

type indexed struct {
	seq int
	Response
}

// DefaultWorkers leaves one CPU for the caller.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

func NewPool(exec Executor, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Pool{
		exec:      exec,
		workers:   workers,
		requests:  make(chan request, workers*2),
		responses: make(chan indexed, workers*2),
	}
}

func (p *Pool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for r := range p.requests {
				res, err := runTask(p.exec, r.task)
				if err != nil {
					p.failed.Add(1)
				} else {
					p.completed.Add(1)
				}
				p.responses <- indexed{seq: r.seq, Response: Response{Task: r.task, Result: res, Err: err}}
			}
		}()
	}
}

// Run executes tasks and returns their responses in task order.
func (p *Pool) Run(tasks []ingest.Task) ([]Response, error) {
	if !p.started.Load() {
		return nil, errors.New("indexer: pool not started")
	}
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.closed.Load() {
		return nil, errors.New("indexer: pool closed")
	}

	go func() {
		for i, t := range tasks {
			p.requests <- request{seq: i, task: t}
		}
	}()
	out := make([]Response, len(tasks))
	for range tasks {
		r := <-p.responses
		out[r.seq] = r.Response
	}
	return out, nil
}

func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.runMu.Lock()
		defer p.runMu.Unlock()
		p.closed.Store(true)
		close(p.requests)
		p.wg.Wait()
	})
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{Workers: p.workers, Completed: p.completed.Load(), Failed: p.failed.Load()}
}

// runTask turns panics and errors into ErrWorkerFailure.
func runTask(exec Executor, task ingest.Task) (res ingest.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = ingest.Result{}
			err = fmt.Errorf("%w: panic: %v", ErrWorkerFailure, r)
		}
	}()
	res, err = exec.Ingest(task)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("%w: %w", ErrWorkerFailure, err)
	}
	return res, nil
}
