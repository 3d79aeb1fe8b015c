package realtime

import (
	"context"
	"sync"
)

// Publisher fans one event out to the post channel and the global channel.
// Fire-and-forget: no replay, best-effort delivery.
type Publisher interface {
	Publish(ctx context.Context, postID, event string, fields map[string]any) error
}

// Bus adds subscription for SSE forwarding.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, channel string) (<-chan Event, func(), error)
	Close() error
}

// Recorder is an in-memory Publisher for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, postID, event string, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEvent(postID, event, fields))
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) CountByName(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}
