package realtime

import (
	"encoding/json"
	"time"
)

// Channel names. Every publish lands on the post channel and the global
// channel with an identical record.
const GlobalChannel = "pipeline:global"

func PostChannel(postID string) string {
	return "pipeline:post:" + postID
}

// Event names emitted by the engine.
const (
	EventStageStart       = "stage_start"
	EventStageReview      = "stage_review"
	EventStageComplete    = "stage_complete"
	EventStageError       = "stage_error"
	EventPipelineComplete = "pipeline_complete"
	EventLog              = "log"
	EventImageGenerated   = "image_generated"
	EventImageFailed      = "image_failed"
	EventCrawlStarted     = "crawl_started"
	EventCrawlComplete    = "crawl_complete"
	EventCrawlFailed      = "crawl_failed"
)

// Event is one progress record. On the wire it is a flat JSON object:
// {event, post_id, timestamp, ...fields}.
type Event struct {
	Name      string
	PostID    string
	Timestamp string
	Fields    map[string]any
}

func NewEvent(postID, name string, fields map[string]any) Event {
	return Event{
		Name:      name,
		PostID:    postID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Fields:    fields,
	}
}

func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		flat[k] = v
	}
	flat["event"] = e.Name
	flat["post_id"] = e.PostID
	flat["timestamp"] = e.Timestamp
	return json.Marshal(flat)
}

func (e *Event) UnmarshalJSON(raw []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return err
	}
	if v, ok := flat["event"].(string); ok {
		e.Name = v
	}
	if v, ok := flat["post_id"].(string); ok {
		e.PostID = v
	}
	if v, ok := flat["timestamp"].(string); ok {
		e.Timestamp = v
	}
	delete(flat, "event")
	delete(flat, "post_id")
	delete(flat, "timestamp")
	if len(flat) > 0 {
		e.Fields = flat
	} else {
		e.Fields = nil
	}
	return nil
}
