package work

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Handler processes one job payload and produces a result.
type Handler[T, R any] func(ctx context.Context, payload T) (R, error)

// Result carries the handler outcome back to the submitter.
type Result[R any] struct {
	Value   R
	Err     error
	Elapsed time.Duration
}

type job[T, R any] struct {
	ctx     context.Context
	payload T
	result  chan Result[R]
}

// Pool runs a fixed number of workers over a bounded job queue. Every job
// gets its own result channel, so Submit behaves like a synchronous call
// while the pool enforces the concurrency limit.
type Pool[T, R any] struct {
	handler  Handler[T, R]
	jobs     chan job[T, R]
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	workers  int
}

// NewPool creates a pool with the given worker count and queue capacity and
// starts the workers.
func NewPool[T, R any](workers, queueSize int, handler Handler[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool[T, R]{
		handler:  handler,
		jobs:     make(chan job[T, R], queueSize),
		stopChan: make(chan struct{}),
		workers:  workers,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

// Submit enqueues a job and waits for its result. It blocks while the queue
// is full; the context bounds both the wait for a queue slot and the wait
// for the result.
func (p *Pool[T, R]) Submit(ctx context.Context, payload T) (R, error) {
	var zero R

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return zero, ErrPoolClosed
	}
	p.mu.RUnlock()

	j := job[T, R]{
		ctx:     ctx,
		payload: payload,
		result:  make(chan Result[R], 1),
	}

	select {
	case p.jobs <- j:
	case <-p.stopChan:
		return zero, ErrPoolClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case res := <-j.result:
		return res.Value, res.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Stop shuts the pool down and waits for the workers to finish. Jobs already
// queued are still processed; new submissions fail with ErrPoolClosed.
func (p *Pool[T, R]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()
}

// IsStopped checks if the pool has been stopped.
func (p *Pool[T, R]) IsStopped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stopped
}

// Stats returns the number of queued jobs and the worker count.
func (p *Pool[T, R]) Stats() (queued int, workers int) {
	return len(p.jobs), p.workers
}

func (p *Pool[T, R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			// Drain what is already queued so blocked submitters get answers.
			for {
				select {
				case j := <-p.jobs:
					p.process(j)
				default:
					return
				}
			}
		case j := <-p.jobs:
			p.process(j)
		}
	}
}

func (p *Pool[T, R]) process(j job[T, R]) {
	if err := j.ctx.Err(); err != nil {
		j.result <- Result[R]{Err: err}
		return
	}

	start := time.Now()
	value, err := p.handler(j.ctx, j.payload)
	j.result <- Result[R]{Value: value, Err: err, Elapsed: time.Since(start)}
}
