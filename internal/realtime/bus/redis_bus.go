package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/realtime"
)

type redisBus struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewRedisBus wraps an existing redis client. The caller owns the client's
// lifecycle when sharing it with the queue.
func NewRedisBus(log *logger.Logger, rdb *goredis.Client) (realtime.Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisBus{log: log.With("service", "RedisEventBus"), rdb: rdb}, nil
}

// NewFromEnv dials REDIS_ADDR and verifies connectivity.
func NewFromEnv(log *logger.Logger) (realtime.Bus, error) {
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
	return NewRedisBus(log, rdb)
}

func (b *redisBus) Publish(ctx context.Context, postID, event string, fields map[string]any) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("event bus not initialized")
	}
	raw, err := json.Marshal(realtime.NewEvent(postID, event, fields))
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, realtime.PostChannel(postID), raw).Err(); err != nil {
		return err
	}
	return b.rdb.Publish(ctx, realtime.GlobalChannel, raw).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, channel string) (<-chan realtime.Event, func(), error) {
	if b == nil || b.rdb == nil {
		return nil, nil, fmt.Errorf("event bus not initialized")
	}
	sub := b.rdb.Subscribe(ctx, channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan realtime.Event, 64)
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var evt realtime.Event
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					b.log.Warn("bad event payload", "channel", channel, "error", err)
					continue
				}
				select {
				case out <- evt:
				default:
					// slow subscriber: drop rather than block the bus
				}
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
