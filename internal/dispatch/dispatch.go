// Package dispatch runs the asynchronous work units behind the HTTP API:
// interview turns, audio transcription, resume analysis and feedback
// generation. Each queue class has its own worker pool so a burst of
// feedback work cannot starve interview turns.
package dispatch

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gleehq/interviewd/internal/fault"
)

type Queue string

const (
	QueueInterview Queue = "interview"
	QueueAudio     Queue = "audio"
	QueueAnalysis  Queue = "analysis"
	QueueFeedback  Queue = "feedback"
)

var queues = []Queue{QueueInterview, QueueAudio, QueueAnalysis, QueueFeedback}

const queueDepth = 256

// Unit is one scheduled piece of work.
type Unit struct {
	ID         string
	Op         string
	Args       []string
	Queue      Queue
	Attempt    int
	EnqueuedAt time.Time
}

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the observable outcome of a unit, kept for ResultTTL after the
// last update.
type Result struct {
	ID        string
	Op        string
	Status    Status
	Attempts  int
	Error     string
	Kind      fault.Kind
	UpdatedAt time.Time
}

// Handler executes one unit. The context carries the per-attempt hard limit.
type Handler func(ctx context.Context, unit Unit) error

type registration struct {
	queue   Queue
	handler Handler
}

type Options struct {
	Workers     int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	HardLimit   time.Duration
	ResultTTL   time.Duration
}

type trackedResult struct {
	result    Result
	cleanup   func(Result)
	expiresAt time.Time
	waiters   []chan struct{}
}

// Dispatcher owns the queues, the worker pools and the result store.
type Dispatcher struct {
	opts     Options
	logger   *slog.Logger
	handlers map[string]registration
	channels map[Queue]chan Unit

	mu      sync.Mutex
	results map[string]*trackedResult
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options, logger *slog.Logger) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	channels := make(map[Queue]chan Unit, len(queues))
	for _, q := range queues {
		channels[q] = make(chan Unit, queueDepth)
	}
	return &Dispatcher{
		opts:     opts,
		logger:   logger,
		handlers: make(map[string]registration),
		channels: channels,
		results:  make(map[string]*trackedResult),
		now:      time.Now,
	}
}

// Register binds an operation name to a queue class and its handler.
// Registration must complete before Start.
func (d *Dispatcher) Register(op string, queue Queue, handler Handler) {
	if _, ok := d.channels[queue]; !ok {
		panic("dispatch: unknown queue " + string(queue))
	}
	if _, dup := d.handlers[op]; dup {
		panic("dispatch: duplicate handler for " + op)
	}
	d.handlers[op] = registration{queue: queue, handler: handler}
}

// Start launches the worker pools. Stop shuts them down.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	for _, q := range queues {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.worker(ctx, q)
		}
	}
}

// Stop cancels in-flight attempts and waits for the workers to exit. Queued
// units that never ran stay in StatusQueued; their results expire with the
// result TTL.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

type SubmitOption func(*trackedResult)

// WithCleanup attaches a hook invoked exactly once with the terminal result,
// regardless of success.
func WithCleanup(fn func(Result)) SubmitOption {
	return func(tr *trackedResult) { tr.cleanup = fn }
}

// Submit enqueues a unit and returns its ID. A full queue rejects the unit
// rather than blocking the caller.
func (d *Dispatcher) Submit(ctx context.Context, op string, args []string, opts ...SubmitOption) (string, error) {
	reg, ok := d.handlers[op]
	if !ok {
		return "", fault.Newf(fault.KindInvalidInput, "unknown operation %q", op)
	}

	unit := Unit{
		ID:         ulid.Make().String(),
		Op:         op,
		Args:       args,
		Queue:      reg.queue,
		EnqueuedAt: d.now(),
	}

	tr := &trackedResult{result: Result{
		ID:        unit.ID,
		Op:        op,
		Status:    StatusQueued,
		UpdatedAt: d.now(),
	}}
	for _, opt := range opts {
		opt(tr)
	}

	d.mu.Lock()
	d.sweepLocked()
	tr.expiresAt = d.now().Add(d.opts.ResultTTL)
	d.results[unit.ID] = tr
	d.mu.Unlock()

	select {
	case d.channels[reg.queue] <- unit:
	case <-ctx.Done():
		d.drop(unit.ID)
		return "", fault.Wrap(fault.KindTimeout, ctx.Err(), "enqueue "+op)
	default:
		d.drop(unit.ID)
		return "", fault.Newf(fault.KindRateLimited, "queue %s is full", reg.queue)
	}

	d.logger.Debug("unit queued", "unit", unit.ID, "op", op, "queue", reg.queue)
	return unit.ID, nil
}

// Result looks up a unit's result. The second return is false for unknown or
// expired IDs.
func (d *Dispatcher) Result(id string) (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tr, ok := d.results[id]
	if !ok || d.now().After(tr.expiresAt) {
		return Result{}, false
	}
	return tr.result, true
}

// Await blocks until the unit reaches a terminal status or the timeout
// elapses.
func (d *Dispatcher) Await(ctx context.Context, id string, timeout time.Duration) (Result, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		d.mu.Lock()
		tr, ok := d.results[id]
		if !ok || d.now().After(tr.expiresAt) {
			d.mu.Unlock()
			return Result{}, fault.Newf(fault.KindNotFound, "unit %s not found", id)
		}
		if tr.result.Status.Terminal() {
			res := tr.result
			d.mu.Unlock()
			return res, nil
		}
		ch := make(chan struct{})
		tr.waiters = append(tr.waiters, ch)
		d.mu.Unlock()

		select {
		case <-ch:
		case <-deadline.C:
			return Result{}, fault.Newf(fault.KindTimeout, "unit %s still %s", id, StatusProcessing)
		case <-ctx.Done():
			return Result{}, fault.Wrap(fault.KindTimeout, ctx.Err(), "await "+id)
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context, queue Queue) {
	defer d.wg.Done()
	ch := d.channels[queue]
	for {
		select {
		case <-ctx.Done():
			return
		case unit := <-ch:
			d.run(ctx, unit)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, unit Unit) {
	handler := d.handlers[unit.Op].handler
	log := d.logger.With("unit", unit.ID, "op", unit.Op, "queue", unit.Queue)

	var err error
	for unit.Attempt = 1; ; unit.Attempt++ {
		d.update(unit.ID, func(r *Result) {
			r.Status = StatusProcessing
			r.Attempts = unit.Attempt
		})

		err = d.attempt(ctx, handler, unit)
		if err == nil {
			d.finish(unit.ID, func(r *Result) { r.Status = StatusCompleted })
			return
		}

		if unit.Attempt >= d.opts.MaxAttempts || !fault.Retryable(err) {
			break
		}
		delay := d.backoff(unit.Attempt)
		log.Warn("unit attempt failed, retrying", "attempt", unit.Attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			err = fault.Wrap(fault.KindTimeout, ctx.Err(), "dispatcher stopped")
		}
		if ctx.Err() != nil {
			break
		}
	}

	log.Error("unit failed", "attempts", unit.Attempt, "error", err)
	kind := fault.KindOf(err)
	msg := err.Error()
	d.finish(unit.ID, func(r *Result) {
		r.Status = StatusFailed
		r.Error = msg
		r.Kind = kind
	})
}

// attempt runs the handler under the per-attempt hard limit. A blown limit
// is reported as a timeout, which is never retried.
func (d *Dispatcher) attempt(ctx context.Context, handler Handler, unit Unit) error {
	attemptCtx := ctx
	if d.opts.HardLimit > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.opts.HardLimit)
		defer cancel()
	}
	err := handler(attemptCtx, unit)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded {
		return fault.Wrap(fault.KindTimeout, err, "hard limit exceeded")
	}
	return err
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.opts.BackoffBase << (attempt - 1)
	if d.opts.BackoffCap > 0 && delay > d.opts.BackoffCap {
		delay = d.opts.BackoffCap
	}
	if delay <= 0 {
		return 0
	}
	// up to 50% jitter to spread synchronized retries
	return delay + time.Duration(rand.Int63n(int64(delay)/2+1))
}

func (d *Dispatcher) update(id string, fn func(*Result)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	tr, ok := d.results[id]
	if !ok {
		return
	}
	fn(&tr.result)
	tr.result.UpdatedAt = d.now()
	tr.expiresAt = d.now().Add(d.opts.ResultTTL)
	for _, ch := range tr.waiters {
		close(ch)
	}
	tr.waiters = nil
}

// finish applies a terminal update and fires the cleanup hook outside the
// lock.
func (d *Dispatcher) finish(id string, fn func(*Result)) {
	d.mu.Lock()
	tr, ok := d.results[id]
	var cleanup func(Result)
	var res Result
	if ok {
		fn(&tr.result)
		tr.result.UpdatedAt = d.now()
		tr.expiresAt = d.now().Add(d.opts.ResultTTL)
		for _, ch := range tr.waiters {
			close(ch)
		}
		tr.waiters = nil
		cleanup = tr.cleanup
		tr.cleanup = nil
		res = tr.result
	}
	d.mu.Unlock()
	if cleanup != nil {
		cleanup(res)
	}
}

func (d *Dispatcher) drop(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.results, id)
}

// sweepLocked evicts expired results. Callers hold d.mu.
func (d *Dispatcher) sweepLocked() {
	now := d.now()
	for id, tr := range d.results {
		if tr.result.Status.Terminal() && now.After(tr.expiresAt) {
			delete(d.results, id)
		}
	}
}
