package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/job"
)

// Executor runs one pending instance to a terminal state.
// *engine.Engine implements it.
type Executor interface {
	Execute(ctx context.Context, inst *job.Instance, params map[string]any) (job.Outcome, error)
}

// Result is the terminal report for one submitted instance.
type Result struct {
	Instance *job.Instance
	Outcome  job.Outcome
	// Err is set when the instance could not be run at all, including
	// jobrun.ErrPoolStopped for work still queued at shutdown.
	Err error
}

type task struct {
	ctx    context.Context
	inst   *job.Instance
	params map[string]any
	result chan Result
}

// Pool manages a set of concurrent worker goroutines that execute
// submitted instances through the Executor.
type Pool struct {
	executor    Executor
	concurrency int
	queueSize   int
	logger      *slog.Logger

	tasks    chan task
	stopCh   chan struct{}
	submitMu sync.RWMutex
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopped  bool

	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithQueueSize sets how many submissions may wait for a free worker
// before Submit blocks.
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) { p.queueSize = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a worker pool. Call Start before submitting.
func NewPool(executor Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		executor:    executor,
		concurrency: 10,
		logger:      slog.Default(),
		stopCh:      make(chan struct{}),
		activeJobs:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	if p.queueSize < 0 {
		p.queueSize = 0
	}
	p.tasks = make(chan task, p.queueSize)
	return p
}

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.stopped {
		return jobrun.ErrPoolStopped
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.Int("concurrency", p.concurrency),
		slog.Int("queue_size", p.queueSize),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.workLoop()
	}
	return nil
}

// Submit queues inst for execution on ctx and returns the channel its
// result will be delivered on. It blocks while the queue is full, and
// fails with jobrun.ErrPoolStopped once Stop has been called.
func (p *Pool) Submit(ctx context.Context, inst *job.Instance, params map[string]any) (<-chan Result, error) {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return nil, jobrun.ErrPoolStopped
	}

	t := task{ctx: ctx, inst: inst, params: params, result: make(chan Result, 1)}
	select {
	case p.tasks <- t:
		return t.result, nil
	case <-p.stopCh:
		return nil, jobrun.ErrPoolStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop signals all workers to stop and waits for in-flight instances to
// finish. If ctx ends first, active instances are cancelled. Submissions
// still queued are answered with jobrun.ErrPoolStopped.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("worker pool stopping")

	close(p.stopCh)
	// Wait out Submit calls racing the close so nothing lands after the drain.
	p.submitMu.Lock()
	p.submitMu.Unlock() //nolint:staticcheck // empty critical section is the barrier

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		<-done
	}

	p.drain()
	return nil
}

// Active returns the number of instances currently executing.
func (p *Pool) Active() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return len(p.activeJobs)
}

func (p *Pool) workLoop() {
	defer p.wg.Done()

	for {
		// Stop wins over queued work; drain answers the rest.
		select {
		case <-p.stopCh:
			return
		default:
		}

		select {
		case <-p.stopCh:
			return
		case t := <-p.tasks:
			p.run(t)
		}
	}
}

func (p *Pool) run(t task) {
	ctx, cancel := context.WithCancel(t.ctx)
	defer cancel()

	key := t.inst.ID.String()
	p.trackJob(key, cancel)
	defer p.untrackJob(key)

	out, err := p.executor.Execute(ctx, t.inst, t.params)
	if err != nil {
		p.logger.Debug("instance could not be executed",
			slog.String("instance_id", key),
			slog.String("job_name", t.inst.JobName),
			slog.String("error", err.Error()),
		)
	}
	t.result <- Result{Instance: t.inst, Outcome: out, Err: err}
}

func (p *Pool) drain() {
	for {
		select {
		case t := <-p.tasks:
			t.result <- Result{Instance: t.inst, Err: jobrun.ErrPoolStopped}
		default:
			return
		}
	}
}

func (p *Pool) trackJob(instanceID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[instanceID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(instanceID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, instanceID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for instanceID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("instance_id", instanceID))
		cancel()
	}
}
