package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/realtime"
)

func newTestBus(t *testing.T) realtime.Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	b, err := NewRedisBus(logger.Nop(), rdb)
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	return b
}

func waitEvent(t *testing.T, ch <-chan realtime.Event) realtime.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return realtime.Event{}
}

func TestPublishReachesPostChannel(t *testing.T) {
	b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsub, err := b.Subscribe(ctx, realtime.PostChannel("p-1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if err := b.Publish(ctx, "p-1", realtime.EventStageStart, map[string]any{"stage": "research"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ev := waitEvent(t, events)
	if ev.Name != realtime.EventStageStart || ev.PostID != "p-1" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Fields["stage"] != "research" {
		t.Fatalf("fields = %v", ev.Fields)
	}
}

func TestPublishReachesGlobalChannel(t *testing.T) {
	b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsub, err := b.Subscribe(ctx, realtime.GlobalChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if err := b.Publish(ctx, "p-a", realtime.EventLog, map[string]any{"message": "hi"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish(ctx, "p-b", realtime.EventLog, map[string]any{"message": "ho"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	first := waitEvent(t, events)
	second := waitEvent(t, events)
	if first.PostID != "p-a" || second.PostID != "p-b" {
		t.Fatalf("global channel events = %+v, %+v", first, second)
	}
}

func TestPostChannelIsolation(t *testing.T) {
	b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsub, err := b.Subscribe(ctx, realtime.PostChannel("p-1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if err := b.Publish(ctx, "p-other", realtime.EventLog, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := b.Publish(ctx, "p-1", realtime.EventLog, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ev := waitEvent(t, events)
	if ev.PostID != "p-1" {
		t.Fatalf("received other post's event: %+v", ev)
	}
	select {
	case extra := <-events:
		t.Fatalf("unexpected extra event: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	b := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, unsub, err := b.Subscribe(ctx, realtime.GlobalChannel)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected channel close, got event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}
