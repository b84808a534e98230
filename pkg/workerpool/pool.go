// Package workerpool provides a bounded goroutine pool with backpressure.
//
// The menu repository resolves item images through a shared Pool so that a
// large menu cannot open an unbounded number of blob-store requests.
//
// Basic usage:
//
//	pool := workerpool.New(8)
//	defer pool.Shutdown()
//
//	var b workerpool.Batch
//	for _, it := range items {
//	    it := it
//	    b.Go(ctx, pool, func() { resolve(it) })
//	}
//	b.Wait()
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolFull is returned by Submit when all workers are busy and the task
// queue is at capacity.
var ErrPoolFull = errors.New("workerpool: pool is full")

// ErrPoolClosed is returned by Submit after Shutdown has been called.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a bounded goroutine pool.
type Pool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closeCh chan struct{}

	// mu is held for reading while a task is being enqueued so Shutdown can
	// wait out in-progress submits before the workers drain the queue.
	mu     sync.RWMutex
	closed bool
}

// New creates a Pool with the given number of workers.
// size must be > 0.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{
		// Buffer equal to 2× the worker count so bursts can be absorbed.
		tasks:   make(chan func(), size*2),
		closeCh: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit enqueues task without blocking.
//   - Returns ErrPoolFull if the task queue is at capacity.
//   - Returns ErrPoolClosed if Shutdown has been called.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until a slot is available, ctx is done, or the pool is
// closed.
func (p *Pool) SubmitWait(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// Shutdown stops accepting new tasks, runs everything already queued, and
// releases all worker goroutines. It is safe to call multiple times.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.closeCh)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			safeRun(task)
		case <-p.closeCh:
			for {
				select {
				case task := <-p.tasks:
					safeRun(task)
				default:
					return
				}
			}
		}
	}
}

// safeRun executes task, recovering from panics so a bad task doesn't kill
// the worker goroutine.
func safeRun(task func()) {
	defer func() { recover() }() //nolint:errcheck
	task()
}

// Batch tracks a group of tasks submitted to a Pool. The zero value is ready
// to use.
type Batch struct {
	wg sync.WaitGroup
}

// Go submits task to p. When the pool refuses the task (closed, or ctx done
// while waiting for a slot) the task runs on the caller's goroutine instead,
// so every task passed to Go runs exactly once.
func (b *Batch) Go(ctx context.Context, p *Pool, task func()) {
	b.wg.Add(1)
	wrapped := func() {
		defer b.wg.Done()
		task()
	}
	if p == nil {
		safeRun(wrapped)
		return
	}
	if err := p.SubmitWait(ctx, wrapped); err != nil {
		safeRun(wrapped)
	}
}

// Wait blocks until every task passed to Go has returned.
func (b *Batch) Wait() { b.wg.Wait() }
