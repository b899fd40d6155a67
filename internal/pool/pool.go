// Package pool runs document parsing across a bounded set of workers.
// Each worker owns its parser outright; work and results move over
// channels so no parsing state is ever shared between goroutines.
package pool

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault/internal/task"
)

// ErrPoolShutDown indicates the pool no longer accepts or executes work.
var ErrPoolShutDown = errors.New("worker pool is shut down")

// Config sizes and throttles the pool.
type Config struct {
	// MaxWorkers caps the worker count. Zero means no cap beyond the
	// CPU-derived size.
	MaxWorkers int `yaml:"max_workers"`
	// TargetUtilization in (0,1] sets the fraction of wall time a worker
	// spends parsing; the remainder is slept off after each unit. 1
	// disables throttling.
	TargetUtilization float64 `yaml:"target_utilization"`
	// QueueSize bounds the pending work queue.
	QueueSize int `yaml:"queue_size"`
}

// DefaultConfig returns full-speed parsing with a moderate queue.
func DefaultConfig() Config {
	return Config{
		TargetUtilization: 1.0,
		QueueSize:         256,
	}
}

// Work is one unit of content to parse.
type Work struct {
	Path    string
	Content string
	ModTime time.Time
}

// Result is the outcome of parsing one unit. Err is set only for fatal
// unit failures (an invalid canvas envelope); per-line problems land in
// Errors and do not fail the unit.
type Result struct {
	Path     string
	Tasks    []*task.Task
	Errors   []task.ParseError
	Err      error
	Duration time.Duration
}

// Future is the handle returned by Submit. Results arrive in completion
// order, not submission order; callers needing order track their own
// futures.
type Future struct {
	done chan Result
}

// Wait blocks for the result or the context.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-f.done:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type job struct {
	work   Work
	future *Future
}

// Pool is a fixed-size parsing worker pool. Submissions after Stop fail
// with ErrPoolShutDown, as do jobs still queued when Stop is called.
type Pool struct {
	cfg     Config
	opts    task.Options
	logger  *zap.SugaredLogger
	queue   chan job
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// New starts the pool's workers. The worker count is the smaller of the
// configured cap and logical CPUs minus one, never below one. Parser
// options are copied into each worker; workers share nothing.
func New(cfg Config, opts task.Options, logger *zap.SugaredLogger) *Pool {
	if cfg.TargetUtilization <= 0 || cfg.TargetUtilization > 1 {
		cfg.TargetUtilization = 1.0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	size := workerCount(cfg.MaxWorkers)
	p := &Pool{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		queue:  make(chan job, cfg.QueueSize),
	}

	p.logger.Debugw("starting worker pool",
		"workers", size,
		"queue_size", cfg.QueueSize,
		"target_utilization", cfg.TargetUtilization)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// workerCount derives the pool size from the logical CPU count, leaving
// one CPU for the orchestrating goroutine.
func workerCount(max int) int {
	cpus, err := cpu.Counts(true)
	if err != nil || cpus <= 0 {
		cpus = runtime.NumCPU()
	}
	size := cpus - 1
	if max > 0 && max < size {
		size = max
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Submit queues one unit for parsing and returns its future.
func (p *Pool) Submit(w Work) (*Future, error) {
	f := &Future{done: make(chan Result, 1)}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, ErrPoolShutDown
	}
	p.queue <- job{work: w, future: f}
	p.mu.Unlock()

	return f, nil
}

// Stop drains the pool. Queued jobs that never ran complete their
// futures with ErrPoolShutDown; jobs already being parsed finish
// normally.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Debugw("worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	parser := task.NewParser(p.opts)
	for j := range p.queue {
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			j.future.done <- Result{Path: j.work.Path, Err: ErrPoolShutDown}
			continue
		}

		start := time.Now()
		res := parseUnit(parser, j.work)
		res.Duration = time.Since(start)
		j.future.done <- res

		p.throttle(res.Duration)
	}
}

// parseUnit dispatches on the unit's document kind.
func parseUnit(parser *task.Parser, w Work) Result {
	if strings.HasSuffix(w.Path, ".canvas") {
		fr, err := parser.ParseCanvasContent(w.Path, []byte(w.Content))
		if err != nil {
			return Result{Path: w.Path, Err: err}
		}
		return Result{Path: w.Path, Tasks: fr.Tasks, Errors: fr.Errors}
	}
	fr := parser.ParseContent(w.Path, w.Content)
	return Result{Path: w.Path, Tasks: fr.Tasks, Errors: fr.Errors}
}

// throttle sleeps after a unit so the worker's busy fraction approaches
// the target utilization.
func (p *Pool) throttle(d time.Duration) {
	if delay := throttleDelay(p.cfg.TargetUtilization, d); delay > 0 {
		time.Sleep(delay)
	}
}

// throttleDelay computes the post-unit pause: for target utilization u
// and processing time d, busy/(busy+idle) = u requires an idle span of
// d*(1/u - 1).
func throttleDelay(u float64, d time.Duration) time.Duration {
	if u >= 1.0 || u <= 0 || d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (1/u - 1))
}
