package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/draftline-backend/internal/http/response"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/realtime"
)

// heartbeatEvery keeps proxies from reaping idle SSE streams.
const heartbeatEvery = 25 * time.Second

type EventsHandler struct {
	log *logger.Logger
	bus realtime.Bus
}

func NewEventsHandler(baseLog *logger.Logger, bus realtime.Bus) *EventsHandler {
	return &EventsHandler{
		log: baseLog.With("handler", "EventsHandler"),
		bus: bus,
	}
}

// GET /api/events/stream — firehose of every post's events.
// GET /api/events/stream?post_id=<uuid> — one post's channel.
func (h *EventsHandler) Stream(c *gin.Context) {
	channel := realtime.GlobalChannel
	if raw := c.Query("post_id"); raw != "" {
		postID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
			return
		}
		channel = realtime.PostChannel(postID.String())
	}

	events, cancel, err := h.bus.Subscribe(c.Request.Context(), channel)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "subscribe_failed", err)
		return
	}
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	h.log.Debug("SSE stream open", "channel", channel)
	heartbeat := time.NewTicker(heartbeatEvery)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-heartbeat.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		case ev, ok := <-events:
			if !ok {
				return false
			}
			raw, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn("event encode failed", "event", ev.Name, "error", err)
				return true
			}
			if _, err := io.WriteString(w, "data: "+string(raw)+"\n\n"); err != nil {
				return false
			}
			return true
		}
	})
	h.log.Debug("SSE stream closed", "channel", channel)
}
