package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

func runWorkerUntil(t *testing.T, w *Worker, done <-chan struct{}, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(finished)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Error("worker did not reach the expected state in time")
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerRunsJob(t *testing.T) {
	c, _ := newTestClient(t)
	w := NewWorker(logger.Nop(), c, WorkerConfig{MaxJobs: 1, PollTimeout: 20 * time.Millisecond})

	done := make(chan struct{})
	var once sync.Once
	w.Register(JobRunPipelineStage, func(ctx context.Context, job *Job) error {
		once.Do(func() { close(done) })
		return nil
	})

	if err := c.EnqueuePipeline(context.Background(), uuid.New(), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runWorkerUntil(t, w, done, 3*time.Second)

	last, err := c.LastCompleted(context.Background())
	if err != nil || last == "" {
		t.Fatalf("heartbeat = %q (err %v), want set", last, err)
	}
}

func TestWorkerRetriesWithAdvancedAttempt(t *testing.T) {
	c, _ := newTestClient(t)
	w := NewWorker(logger.Nop(), c, WorkerConfig{
		MaxJobs:     1,
		MaxAttempts: 3,
		RetryDelay:  10 * time.Millisecond,
		PollTimeout: 20 * time.Millisecond,
	})

	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})
	w.Register(JobRunPipelineStage, func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempt)
		n := len(attempts)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return errors.New("always fails")
	})

	if err := c.EnqueuePipeline(context.Background(), uuid.New(), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runWorkerUntil(t, w, done, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 3 {
		t.Fatalf("attempts seen = %v, want 3 entries", attempts)
	}
	for i, got := range attempts {
		if got != i+1 {
			t.Fatalf("attempt sequence = %v, want [1 2 3]", attempts)
		}
	}
}

func TestWorkerStopsRetryingAfterMaxAttempts(t *testing.T) {
	c, _ := newTestClient(t)
	w := NewWorker(logger.Nop(), c, WorkerConfig{
		MaxJobs:     1,
		MaxAttempts: 2,
		RetryDelay:  10 * time.Millisecond,
		PollTimeout: 20 * time.Millisecond,
	})

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{})
	w.Register(JobRunPipelineStage, func(ctx context.Context, job *Job) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			close(done)
		}
		return errors.New("always fails")
	})

	if err := c.EnqueuePipeline(context.Background(), uuid.New(), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	runWorkerUntil(t, w, done, 5*time.Second)

	// Give a would-be third attempt a moment to show up.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
	if depth, _ := c.Depth(context.Background()); depth != 0 {
		t.Fatalf("queue depth = %d, want 0", depth)
	}
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	c, _ := newTestClient(t)
	w := NewWorker(logger.Nop(), c, WorkerConfig{
		MaxJobs:     1,
		MaxAttempts: 2,
		RetryDelay:  10 * time.Millisecond,
		PollTimeout: 20 * time.Millisecond,
	})

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{})
	w.Register(JobCrawlProfileSitemap, func(ctx context.Context, job *Job) error {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			panic("boom")
		}
		close(done)
		return nil
	})

	if err := c.EnqueueCrawl(context.Background(), uuid.New()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// The panic counts as a failed attempt; the retry succeeds.
	runWorkerUntil(t, w, done, 5*time.Second)
}

func TestWorkerIgnoresUnknownJobNames(t *testing.T) {
	c, _ := newTestClient(t)
	w := NewWorker(logger.Nop(), c, WorkerConfig{MaxJobs: 1, PollTimeout: 20 * time.Millisecond})

	done := make(chan struct{})
	w.Register(JobRunPipelineStage, func(ctx context.Context, job *Job) error {
		close(done)
		return nil
	})

	ctx := context.Background()
	if err := c.push(ctx, Job{Name: "mystery_job"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := c.EnqueuePipeline(ctx, uuid.New(), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// The unknown job is skipped and the known one still runs.
	runWorkerUntil(t, w, done, 3*time.Second)
}
