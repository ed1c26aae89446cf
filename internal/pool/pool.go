// Package pool provides a fixed-size worker pool.
//
// A Pool runs submitted jobs on a bounded set of long-lived goroutines.
// Execute never blocks the caller: jobs beyond the pool size wait in a FIFO
// queue until a worker frees up. Join blocks until the queue is empty and no
// job is running. A running job is never preempted, so a job that never
// returns holds its worker for good.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/msgsrv/internal/logging"
	"go.uber.org/zap"
)

// DefaultSize is the number of workers used when New is given a size <= 0.
const DefaultSize = 15

// ErrPoolClosed is returned by Execute after Close.
var ErrPoolClosed = errors.New("pool: closed")

// Job is a unit of work run by one worker.
type Job func()

// Pool is a bounded set of reusable workers.
type Pool struct {
	mu      sync.Mutex
	work    *sync.Cond // signalled when a job is queued or the pool closes
	idle    *sync.Cond // broadcast when the pool has nothing queued or running
	queue   []Job
	active  int
	size    int
	closed  bool
	workers sync.WaitGroup
}

// New starts a pool with size workers.
func New(size int) *Pool {
	if size <= 0 {
		size = DefaultSize
	}

	p := &Pool{size: size}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Execute queues job for execution.
func (p *Pool) Execute(job Job) error {
	if job == nil {
		return fmt.Errorf("pool: nil job")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job)
	p.work.Signal()
	return nil
}

// Join blocks until every queued and running job has completed.
func (p *Pool) Join() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) > 0 || p.active > 0 {
		p.idle.Wait()
	}
}

// Close lets the workers finish the queued jobs, then stops them.
// It is safe to call Close more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.work.Broadcast()
	p.mu.Unlock()

	p.workers.Wait()
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Active returns the number of jobs currently running.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Queued returns the number of jobs waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) worker(id int) {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.work.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		p.run(id, job)

		p.mu.Lock()
		p.active--
		if p.active == 0 && len(p.queue) == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// run executes one job, keeping the worker alive if it panics.
func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Worker job panicked",
				zap.Int("worker", id),
				zap.Any("panic", r),
			)
		}
	}()
	job()
}
