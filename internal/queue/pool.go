package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkpress/backend/internal/config"
)

// TaskFunc executes one claimed job. report is advisory progress (0-100);
// it is never used for correctness. A nil error finalizes the job as
// completed with the returned result; an error is subject to the pool's
// retry policy.
type TaskFunc func(ctx context.Context, job Job, report func(pct int)) (json.RawMessage, error)

type PoolConfig struct {
	Queue        string
	Concurrency  int
	MaxPerWindow int
	Window       time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	PollInterval time.Duration
	TaskTimeout  time.Duration
}

func (c *PoolConfig) defaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxPerWindow <= 0 {
		c.MaxPerWindow = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
}

// Pool runs jobs for a single named queue with bounded concurrency and a
// sliding-window cap on task starts. One dispatcher goroutine claims work;
// execution happens in per-job goroutines gated by the slot channel, so
// window checks never race and admission stays FIFO.
type Pool struct {
	cfg    PoolConfig
	store  Store
	task   TaskFunc
	pub    EventPublisher // optional
	slots  chan struct{}
	window *slidingWindow
	wg     sync.WaitGroup
}

func NewPool(cfg PoolConfig, store Store, task TaskFunc, pub EventPublisher) *Pool {
	cfg.defaults()
	return &Pool{
		cfg:    cfg,
		store:  store,
		task:   task,
		pub:    pub,
		slots:  make(chan struct{}, cfg.Concurrency),
		window: newSlidingWindow(cfg.MaxPerWindow, cfg.Window),
	}
}

// Enqueue writes a waiting job and returns its id. It never blocks on
// execution.
func (p *Pool) Enqueue(ctx context.Context, payload json.RawMessage) (string, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New().String(),
		Queue:     p.cfg.Queue,
		Payload:   payload,
		State:     StateWaiting,
		NotBefore: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.Put(ctx, job); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "job enqueued", "queue", p.cfg.Queue, "job_id", job.ID)
	return job.ID, nil
}

// Run dispatches jobs until ctx is canceled, then waits for in-flight
// executions to finish. Store failures inside the loop are logged and
// backed off; they never crash the process.
func (p *Pool) Run(ctx context.Context) {
	slog.Info("worker pool started",
		"queue", p.cfg.Queue,
		"concurrency", p.cfg.Concurrency,
		"max_per_window", p.cfg.MaxPerWindow,
		"window", p.cfg.Window)

	defer p.wg.Wait()

	idle := p.cfg.PollInterval
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker pool stopping", "queue", p.cfg.Queue)
			return
		case p.slots <- struct{}{}:
		}

		job, err := p.claimNext(ctx)
		if err != nil {
			<-p.slots
			if ctx.Err() != nil {
				return
			}
			slog.Error("dispatch failed, backing off", "queue", p.cfg.Queue, "error", err, "delay", idle)
			sleepCtx(ctx, idle)
			if idle *= 2; idle > p.cfg.MaxDelay {
				idle = p.cfg.MaxDelay
			}
			continue
		}
		idle = p.cfg.PollInterval

		if job == nil {
			<-p.slots
			sleepCtx(ctx, p.cfg.PollInterval)
			continue
		}

		p.window.Record(time.Now())
		p.wg.Add(1)
		go p.execute(ctx, job)
	}
}

// claimNext finds the oldest eligible waiting job and claims it. A lost
// claim race moves on to the next candidate; a nil job means no admissible
// work right now (empty queue or exhausted window budget).
func (p *Pool) claimNext(ctx context.Context) (*Job, error) {
	now := time.Now().UTC()
	if !p.window.Allow(now) {
		return nil, nil
	}

	for {
		job, err := p.store.NextWaiting(ctx, p.cfg.Queue, now)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, nil
		}

		attempts := job.Attempts + 1
		claimed, err := p.store.CompareAndTransition(ctx, job.ID, StateWaiting, StateActive, Patch{Attempts: &attempts})
		if errors.Is(err, ErrStateConflict) {
			// Another worker won the claim; it is no longer waiting.
			continue
		}
		if err != nil {
			return nil, err
		}
		return claimed, nil
	}
}

func (p *Pool) execute(ctx context.Context, job *Job) {
	defer p.wg.Done()
	defer func() { <-p.slots }()

	slog.Info("job started", "queue", p.cfg.Queue, "job_id", job.ID, "attempt", job.Attempts)

	taskCtx := ctx
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}

	report := func(pct int) {
		// Advisory only; a conflict here just means the job already moved on.
		if _, err := p.store.CompareAndTransition(context.Background(), job.ID, StateActive, StateActive, Patch{Progress: &pct}); err != nil {
			slog.Debug("progress update skipped", "job_id", job.ID, "error", err)
		}
	}

	result, taskErr := p.task(taskCtx, *job, report)

	// Finalization must survive shutdown; the run context may already be
	// canceled by the time the task returns.
	finCtx := context.Background()

	if taskErr == nil {
		done := 100
		final, err := p.store.CompareAndTransition(finCtx, job.ID, StateActive, StateCompleted, Patch{Result: result, Progress: &done})
		if err != nil {
			slog.Error("failed to finalize completed job", "job_id", job.ID, "error", err)
			return
		}
		slog.Info("job completed", "queue", p.cfg.Queue, "job_id", job.ID, "attempts", final.Attempts)
		p.publishEvent(config.TopicJobCompleted, final)
		return
	}

	if job.Attempts < p.cfg.MaxAttempts && !isPermanent(taskErr) {
		delay := backoffDelay(p.cfg.BaseDelay, p.cfg.MaxDelay, job.Attempts)
		notBefore := time.Now().UTC().Add(delay)
		if _, err := p.store.CompareAndTransition(finCtx, job.ID, StateActive, StateWaiting, Patch{NotBefore: &notBefore}); err != nil {
			slog.Error("failed to schedule retry", "job_id", job.ID, "error", err)
			return
		}
		slog.Warn("job failed, retry scheduled",
			"queue", p.cfg.Queue, "job_id", job.ID, "attempt", job.Attempts, "delay", delay, "error", taskErr)
		return
	}

	reason := taskErr.Error()
	final, err := p.store.CompareAndTransition(finCtx, job.ID, StateActive, StateFailed, Patch{FailureReason: &reason})
	if err != nil {
		slog.Error("failed to finalize failed job", "job_id", job.ID, "error", err)
		return
	}
	slog.Error("job failed permanently", "queue", p.cfg.Queue, "job_id", job.ID, "attempts", final.Attempts, "error", taskErr)
	p.publishEvent(config.TopicJobFailed, final)
}

func (p *Pool) publishEvent(topic string, job *Job) {
	if p.pub == nil {
		return
	}
	body, err := json.Marshal(JobEvent{
		JobID:         job.ID,
		Queue:         job.Queue,
		State:         job.State,
		Payload:       job.Payload,
		Result:        job.Result,
		FailureReason: job.FailureReason,
	})
	if err != nil {
		slog.Error("failed to marshal job event", "job_id", job.ID, "error", err)
		return
	}
	if err := p.pub.Publish(topic, body); err != nil {
		slog.Warn("failed to publish job event", "topic", topic, "job_id", job.ID, "error", err)
	}
}

// isPermanent reports whether err (or anything it wraps) marks itself as
// not retryable. Tasks return such errors when re-running them would redo
// side effects that already happened on the remote end.
func isPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

// backoffDelay is exponential from the attempt that just failed (1-based):
// base, 2x, 4x... capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base << (attempt - 1)
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
