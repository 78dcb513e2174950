package pipeline

import (
	"context"
	"errors"
	"sync"

	"clipstream/internal/database"
	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

// Pool errors. When Submit or Do return one of these the request was not
// accepted and the raw upload still belongs to the caller.
var (
	ErrQueueFull    = errors.New("pipeline queue is full")
	ErrShuttingDown = errors.New("pipeline is shutting down")
)

const (
	defaultPoolWorkers = 2
	defaultQueueSize   = 32
)

type result struct {
	entry *database.Entry
	err   error
}

type task struct {
	job  *Job
	ctx  context.Context
	done chan result
}

// Gate holds back queued jobs, typically while memory is under pressure.
type Gate interface {
	WaitIfPaused(ctx context.Context) bool
}

// Pool runs jobs on a fixed number of workers. Capacity is workers plus
// queue size; beyond that new jobs are rejected rather than queued.
type Pool struct {
	coord   *Coordinator
	workers int
	gate    Gate

	ctx    context.Context
	cancel context.CancelFunc

	slots chan struct{}
	queue chan *task
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
	active  map[string]*Job
}

// NewPool creates a Pool. Call Start before submitting work.
func NewPool(coord *Coordinator, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = defaultPoolWorkers
	}
	if queueSize < 0 {
		queueSize = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		coord:   coord,
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		slots:   make(chan struct{}, workers+queueSize),
		queue:   make(chan *task, workers+queueSize),
		active:  make(map[string]*Job),
	}
}

// SetGate makes workers wait on g before starting each job. It must be
// called before Start.
func (p *Pool) SetGate(g Gate) {
	p.gate = g
}

// Start launches the workers.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	logging.Info("Pipeline: %d workers, capacity %d", p.workers, cap(p.slots))
}

// Do runs req on the pool and waits for the outcome. The job is canceled
// when ctx ends or the pool shuts down.
func (p *Pool) Do(ctx context.Context, req UploadRequest) (*database.Entry, error) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	t, err := p.enqueue(jobCtx, req)
	if err != nil {
		return nil, err
	}
	res := <-t.done
	return res.entry, res.err
}

// Submit queues req to run in the background and returns the accepted job.
func (p *Pool) Submit(req UploadRequest) (*Job, error) {
	t, err := p.enqueue(p.ctx, req)
	if err != nil {
		return nil, err
	}
	return t.job, nil
}

func (p *Pool) enqueue(ctx context.Context, req UploadRequest) (*task, error) {
	if p.isClosed() {
		return nil, ErrShuttingDown
	}

	select {
	case p.slots <- struct{}{}:
	default:
		metrics.PipelineQueueRejected.Inc()
		return nil, ErrQueueFull
	}

	job, err := p.coord.Accept(ctx, req)
	if err != nil {
		<-p.slots
		return nil, err
	}

	t := &task{job: job, ctx: ctx, done: make(chan result, 1)}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		p.coord.fail(ctx, job, &Error{Kind: KindCanceled, Stage: StageIntake, Err: ErrShuttingDown})
		return nil, ErrShuttingDown
	}
	p.active[job.ID] = job
	// Never blocks: a slot guarantees room in the queue.
	p.queue <- t
	metrics.PipelineQueueDepth.Inc()
	p.mu.Unlock()

	return t, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		metrics.PipelineQueueDepth.Dec()
		if p.gate != nil && !p.gate.WaitIfPaused(t.ctx) {
			logging.ForJob(t.job.ID).Debug("Started without waiting for memory to recover")
		}
		entry, err := p.coord.Execute(t.ctx, t.job)
		p.release(t.job)
		t.done <- result{entry: entry, err: err}
		<-p.slots
	}
}

func (p *Pool) release(job *Job) {
	p.mu.Lock()
	delete(p.active, job.ID)
	p.mu.Unlock()
}

// Active returns the jobs that are queued or running.
func (p *Pool) Active() []*Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	jobs := make([]*Job, 0, len(p.active))
	for _, job := range p.active {
		jobs = append(jobs, job)
	}
	return jobs
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Shutdown stops accepting work, cancels running and queued jobs, and waits
// for the workers to finish their cleanup or for ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	p.cancel()

	if !started {
		// Nothing will drain the queue; fail what is waiting here.
		for t := range p.queue {
			metrics.PipelineQueueDepth.Dec()
			entry, err := p.coord.Execute(t.ctx, t.job)
			p.release(t.job)
			t.done <- result{entry: entry, err: err}
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
