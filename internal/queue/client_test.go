package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c, err := NewClient(logger.Nop(), rdb)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, mr
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	postID := uuid.New()

	if err := c.EnqueuePipeline(ctx, postID, "write"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	depth, err := c.Depth(ctx)
	if err != nil || depth != 1 {
		t.Fatalf("depth = %d (err %v), want 1", depth, err)
	}

	job, err := c.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatal("dequeue returned nil")
	}
	if job.Name != JobRunPipelineStage {
		t.Fatalf("name = %q", job.Name)
	}
	if job.PostID != postID.String() || job.Stage != "write" {
		t.Fatalf("job = %+v", job)
	}
	if job.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", job.Attempt)
	}
	if job.ID == "" || job.EnqueuedAt == "" {
		t.Fatalf("missing id/enqueued_at: %+v", job)
	}
}

func TestDequeueEmptyReturnsNil(t *testing.T) {
	c, _ := newTestClient(t)
	job, err := c.Dequeue(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job != nil {
		t.Fatalf("job = %+v, want nil", job)
	}
}

func TestFIFOOrdering(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	if err := c.EnqueuePipeline(ctx, first, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := c.EnqueuePipeline(ctx, second, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, _ := c.Dequeue(ctx, time.Second)
	if job == nil || job.PostID != first.String() {
		t.Fatalf("first dequeue = %+v, want post %s", job, first)
	}
	job, _ = c.Dequeue(ctx, time.Second)
	if job == nil || job.PostID != second.String() {
		t.Fatalf("second dequeue = %+v, want post %s", job, second)
	}
}

func TestRequeueAdvancesAttempt(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.EnqueueCrawl(ctx, uuid.New()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, _ := c.Dequeue(ctx, time.Second)
	if job == nil {
		t.Fatal("dequeue returned nil")
	}

	if err := c.Requeue(ctx, *job, job.Attempt+1); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	retried, _ := c.Dequeue(ctx, time.Second)
	if retried == nil {
		t.Fatal("retried dequeue returned nil")
	}
	if retried.Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", retried.Attempt)
	}
	if retried.ID != job.ID {
		t.Fatal("requeue must keep the job id")
	}
}

func TestDeadLetterListNewestFirst(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.PushDeadLetter(ctx, DeadLetter{PostID: "a", Stage: "research", Error: "e1", Attempts: 3}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := c.PushDeadLetter(ctx, DeadLetter{PostID: "b", Stage: "write", Error: "e2", Attempts: 3}); err != nil {
		t.Fatalf("push: %v", err)
	}

	entries, err := c.ListDeadLetters(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].PostID != "b" || entries[1].PostID != "a" {
		t.Fatalf("order = %s,%s, want b,a", entries[0].PostID, entries[1].PostID)
	}
	if entries[0].FailedAt == "" {
		t.Fatal("failed_at should be stamped on push")
	}
}

func TestRemoveDeadLetter(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_ = c.PushDeadLetter(ctx, DeadLetter{PostID: "a", Stage: "research"})
	_ = c.PushDeadLetter(ctx, DeadLetter{PostID: "b", Stage: "edit"})

	removed, err := c.RemoveDeadLetter(ctx, "a")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed == nil || removed.Stage != "research" {
		t.Fatalf("removed = %+v", removed)
	}
	if n, _ := c.DeadLetterLen(ctx); n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}

	missing, err := c.RemoveDeadLetter(ctx, "zzz")
	if err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing = %+v, want nil", missing)
	}
}

func TestClearDeadLetters(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_ = c.PushDeadLetter(ctx, DeadLetter{PostID: "a"})
	if err := c.ClearDeadLetters(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := c.DeadLetterLen(ctx); n != 0 {
		t.Fatalf("len = %d, want 0", n)
	}
}

func TestHeartbeat(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	last, err := c.LastCompleted(ctx)
	if err != nil || last != "" {
		t.Fatalf("initial heartbeat = %q (err %v), want empty", last, err)
	}
	if err := c.MarkCompleted(ctx); err != nil {
		t.Fatalf("mark: %v", err)
	}
	last, err = c.LastCompleted(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, perr := time.Parse(time.RFC3339, last); perr != nil {
		t.Fatalf("heartbeat %q is not RFC3339: %v", last, perr)
	}
}
