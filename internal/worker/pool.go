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

// indexed pairs a job or result with its submission order
type indexed[T any] struct {
	seq  int
	item T
}

// Pool runs jobs on a fixed number of goroutines. Wait returns results in
// submission order regardless of completion order.
type Pool struct {
	workers    int
	jobQueue   chan indexed[Job]
	results    chan indexed[Result]
	submitted  int
	collected  map[int]Result
	collector  chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	startOnce  sync.Once
}

// NewPool creates a pool bound to ctx; cancelling ctx stops the workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexed[Job], workers*2),
		results:    make(chan indexed[Result], workers*2),
		collected:  make(map[int]Result),
		collector:  make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
		go p.collect()
	})
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
			result := job.item.Execute(p.ctx)
			select {
			case p.results <- indexed[Result]{seq: job.seq, item: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// collect drains results so workers never block on a slow Wait
func (p *Pool) collect() {
	defer close(p.collector)
	for r := range p.results {
		p.collected[r.seq] = r.item
	}
}

// Submit queues a job. It returns false when the pool has been cancelled.
// Submit and Wait must be called from the same goroutine.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexed[Job]{seq: p.submitted, item: job}:
		p.submitted++
		return true
	}
}

// Wait closes the queue, waits for the workers and returns the results in
// submission order. Jobs dropped by cancellation leave nil entries.
func (p *Pool) Wait() []Result {
	p.Start()
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.collector
	p.cancelFunc()

	ordered := make([]Result, p.submitted)
	for seq, r := range p.collected {
		ordered[seq] = r
	}
	return ordered
}

// Shutdown cancels the pool and waits for the workers to exit
func (p *Pool) Shutdown() {
	p.startOnce.Do(func() { go p.collect() })
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	<-p.collector
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
