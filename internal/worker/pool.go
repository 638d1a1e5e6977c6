package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers. Cancelling the parent
// context stops the workers the same way Shutdown does.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	queueOnce  sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker goroutines
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns without queueing once the pool is shut
// down. Submit blocks while the queue is full, so callers submitting more
// than a few jobs per worker should use Run instead.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait closes the queue and returns the results of every submitted job
func (p *Pool) Wait() []Result {
	p.closeQueue()
	return p.collect()
}

// Run submits jobs while collecting results, so any number of jobs can
// pass through the bounded queues. Results arrive in completion order.
func (p *Pool) Run(jobs []Job) []Result {
	go func() {
		for _, job := range jobs {
			p.Submit(job)
		}
		p.closeQueue()
	}()
	return p.collect()
}

func (p *Pool) collect() []Result {
	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}
	return results
}

// Shutdown stops the workers without waiting for queued jobs
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeQueue() {
	p.queueOnce.Do(func() {
		close(p.jobQueue)
	})
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
