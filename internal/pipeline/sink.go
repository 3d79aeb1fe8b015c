package pipeline

import (
	"context"

	"github.com/yungbote/draftline-backend/internal/realtime"
)

// The event sink is bound to the job's context, never a process global.
// Stage functions emit progress without taking the bus as a parameter;
// outside a runner context every publish is a safe no-op.

type sinkKey struct{}

type sink struct {
	pub    realtime.Publisher
	postID string
}

// WithSink binds a publisher + post id to ctx for the duration of one
// stage invocation.
func WithSink(ctx context.Context, pub realtime.Publisher, postID string) context.Context {
	return context.WithValue(ctx, sinkKey{}, &sink{pub: pub, postID: postID})
}

func sinkFrom(ctx context.Context) *sink {
	s, _ := ctx.Value(sinkKey{}).(*sink)
	return s
}

// PublishLog emits a `log` event on the bound channels. No-op without a
// sink in ctx.
func PublishLog(ctx context.Context, message, stage, level string) {
	s := sinkFrom(ctx)
	if s == nil || s.pub == nil {
		return
	}
	if level == "" {
		level = "info"
	}
	_ = s.pub.Publish(ctx, s.postID, realtime.EventLog, map[string]any{
		"message": message,
		"stage":   stage,
		"level":   level,
	})
}

// PublishEvent emits an arbitrary event through the bound sink. No-op
// without a sink in ctx.
func PublishEvent(ctx context.Context, event string, fields map[string]any) {
	s := sinkFrom(ctx)
	if s == nil || s.pub == nil {
		return
	}
	_ = s.pub.Publish(ctx, s.postID, event, fields)
}
