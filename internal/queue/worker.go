package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/draftline-backend/internal/observability"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

// Handler runs one job. A non-nil error marks the attempt failed; the
// worker requeues while attempts remain.
type Handler func(ctx context.Context, job *Job) error

const (
	DefaultMaxJobs     = 3
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 10 * time.Second
	DefaultJobTimeout  = 3600 * time.Second
)

type WorkerConfig struct {
	MaxJobs     int
	MaxAttempts int
	RetryDelay  time.Duration
	JobTimeout  time.Duration
	// PollTimeout bounds each BRPOP so shutdown is responsive.
	PollTimeout time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.MaxJobs <= 0 {
		c.MaxJobs = DefaultMaxJobs
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 2 * time.Second
	}
	return c
}

// Worker consumes the jobs list with a fixed-size pool. Each goroutine
// runs one job at a time; stage execution inside a job stays sequential.
type Worker struct {
	log      *logger.Logger
	client   *Client
	cfg      WorkerConfig
	handlers map[string]Handler
}

func NewWorker(baseLog *logger.Logger, client *Client, cfg WorkerConfig) *Worker {
	return &Worker{
		log:      baseLog.With("component", "QueueWorker"),
		client:   client,
		cfg:      cfg.withDefaults(),
		handlers: map[string]Handler{},
	}
}

func (w *Worker) Register(name string, h Handler) {
	w.handlers[name] = h
}

// MaxAttempts is exposed so handlers can decide retry vs dead-letter.
func (w *Worker) MaxAttempts() int { return w.cfg.MaxAttempts }

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("starting worker pool", "max_jobs", w.cfg.MaxJobs)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.MaxJobs; i++ {
		workerID := i + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	wg.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker loop stopped", "worker_id", workerID)
			return
		default:
		}

		job, err := w.client.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("dequeue failed", "worker_id", workerID, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.runJob(ctx, workerID, job)
	}
}

func (w *Worker) runJob(ctx context.Context, workerID int, job *Job) {
	h, ok := w.handlers[job.Name]
	if !ok {
		w.log.Warn("no handler registered", "worker_id", workerID, "name", job.Name, "job_id", job.ID)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	err := func() (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("job handler panic", "worker_id", workerID, "job_id", job.ID, "name", job.Name, "panic", r)
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		return h(jobCtx, job)
	}()

	if err == nil {
		observability.Current().ObserveJob(job.Name, true)
		if markErr := w.client.MarkCompleted(ctx); markErr != nil {
			w.log.Warn("heartbeat write failed", "error", markErr)
		}
		w.updateDepthGauges(ctx)
		return
	}

	if job.Attempt < w.cfg.MaxAttempts {
		w.log.Warn("job failed, scheduling retry",
			"worker_id", workerID,
			"name", job.Name,
			"job_id", job.ID,
			"attempt", job.Attempt,
			"error", err,
		)
		// Fixed-delay retry. The sleep occupies this pool slot, which also
		// throttles a hot-failing job.
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.RetryDelay):
		}
		if reErr := w.client.Requeue(ctx, *job, job.Attempt+1); reErr != nil {
			w.log.Error("requeue failed", "job_id", job.ID, "error", reErr)
		}
		return
	}

	// Final attempt: the pipeline handler has already dead-lettered.
	observability.Current().ObserveJob(job.Name, false)
	w.log.Error("job failed permanently",
		"worker_id", workerID,
		"name", job.Name,
		"job_id", job.ID,
		"attempts", job.Attempt,
		"error", err,
	)
	w.updateDepthGauges(ctx)
}

func (w *Worker) updateDepthGauges(ctx context.Context) {
	if depth, err := w.client.Depth(ctx); err == nil {
		observability.Current().SetQueueDepth(depth)
	}
	if n, err := w.client.DeadLetterLen(ctx); err == nil {
		observability.Current().SetDeadLetterDepth(n)
	}
}
