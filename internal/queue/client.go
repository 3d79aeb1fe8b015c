package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

// Redis keys.
const (
	JobsKey          = "pipeline:jobs"
	DeadLetterKey    = "deadletter"
	LastCompletedKey = "worker:last_completed"
)

// Registered job names.
const (
	JobRunPipelineStage    = "run_pipeline_stage"
	JobCrawlProfileSitemap = "crawl_profile_sitemap"
)

// Job is the wire shape pushed onto the jobs list. Attempt is 1-indexed
// and advanced by the worker on retry.
type Job struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PostID     string `json:"post_id,omitempty"`
	Stage      string `json:"stage,omitempty"`
	ProfileID  string `json:"profile_id,omitempty"`
	Attempt    int    `json:"attempt"`
	EnqueuedAt string `json:"enqueued_at"`
}

// DeadLetter is one quarantined job, newest at the list head.
type DeadLetter struct {
	PostID   string `json:"post_id"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
	FailedAt string `json:"failed_at"`
}

type Client struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewClient(log *logger.Logger, rdb *goredis.Client) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &Client{log: log.With("service", "QueueClient"), rdb: rdb}, nil
}

// NewRedisClient dials REDIS_ADDR for process wiring.
func NewRedisClient() (*goredis.Client, error) {
	addr := envutil.Str("REDIS_ADDR", "")
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.Str("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (c *Client) EnqueuePipeline(ctx context.Context, postID uuid.UUID, stage string) error {
	return c.push(ctx, Job{
		Name:   JobRunPipelineStage,
		PostID: postID.String(),
		Stage:  stage,
	})
}

func (c *Client) EnqueueCrawl(ctx context.Context, profileID uuid.UUID) error {
	return c.push(ctx, Job{
		Name:      JobCrawlProfileSitemap,
		ProfileID: profileID.String(),
	})
}

// Requeue puts a job back for a retry attempt.
func (c *Client) Requeue(ctx context.Context, job Job, attempt int) error {
	job.Attempt = attempt
	job.EnqueuedAt = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.rdb.LPush(ctx, JobsKey, raw).Err()
}

func (c *Client) push(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Attempt == 0 {
		job.Attempt = 1
	}
	job.EnqueuedAt = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := c.rdb.LPush(ctx, JobsKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Name, err)
	}
	c.log.Debug("job enqueued", "name", job.Name, "post_id", job.PostID, "profile_id", job.ProfileID, "stage", job.Stage)
	return nil
}

// Dequeue blocks up to timeout for the next job. Returns nil when the
// queue stayed empty.
func (c *Client) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := c.rdb.BRPop(ctx, timeout, JobsKey).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("bad job payload: %w", err)
	}
	return &job, nil
}

func (c *Client) Depth(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, JobsKey).Result()
}

func (c *Client) PushDeadLetter(ctx context.Context, entry DeadLetter) error {
	if entry.FailedAt == "" {
		entry.FailedAt = time.Now().UTC().Format(time.RFC3339)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.rdb.LPush(ctx, DeadLetterKey, raw).Err()
}

// ListDeadLetters returns entries newest-first.
func (c *Client) ListDeadLetters(ctx context.Context) ([]DeadLetter, error) {
	raws, err := c.rdb.LRange(ctx, DeadLetterKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var entry DeadLetter
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			c.log.Warn("bad deadletter payload", "error", err)
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// RemoveDeadLetter deletes the first entry matching post_id. Returns the
// removed entry, or nil when none matched.
func (c *Client) RemoveDeadLetter(ctx context.Context, postID string) (*DeadLetter, error) {
	raws, err := c.rdb.LRange(ctx, DeadLetterKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for _, raw := range raws {
		var entry DeadLetter
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if entry.PostID != postID {
			continue
		}
		if err := c.rdb.LRem(ctx, DeadLetterKey, 1, raw).Err(); err != nil {
			return nil, err
		}
		return &entry, nil
	}
	return nil, nil
}

func (c *Client) ClearDeadLetters(ctx context.Context) error {
	return c.rdb.Del(ctx, DeadLetterKey).Err()
}

func (c *Client) DeadLetterLen(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, DeadLetterKey).Result()
}

// MarkCompleted records the worker heartbeat after a successful job.
func (c *Client) MarkCompleted(ctx context.Context) error {
	return c.rdb.Set(ctx, LastCompletedKey, time.Now().UTC().Format(time.RFC3339), 0).Err()
}

func (c *Client) LastCompleted(ctx context.Context) (string, error) {
	v, err := c.rdb.Get(ctx, LastCompletedKey).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return v, err
}
