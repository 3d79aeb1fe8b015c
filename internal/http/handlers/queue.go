package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/draftline-backend/internal/http/response"
	"github.com/yungbote/draftline-backend/internal/services"
)

type QueueHandler struct {
	control *services.ControlService
}

func NewQueueHandler(control *services.ControlService) *QueueHandler {
	return &QueueHandler{control: control}
}

// GET /api/queue/status
func (h *QueueHandler) Status(c *gin.Context) {
	status, err := h.control.QueueStatus(c.Request.Context())
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, status)
}

// GET /api/queue/review
func (h *QueueHandler) ReviewQueue(c *gin.Context) {
	posts, err := h.control.ReviewQueue(c.Request.Context())
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"posts": posts})
}

// POST /api/queue/pause-all
func (h *QueueHandler) PauseAll(c *gin.Context) {
	n, err := h.control.PauseAll(c.Request.Context())
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"paused": n})
}

// POST /api/queue/resume-all
func (h *QueueHandler) ResumeAll(c *gin.Context) {
	n, err := h.control.ResumeAll(c.Request.Context())
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"resumed": n})
}

// GET /api/queue/deadletters
func (h *QueueHandler) DeadLetters(c *gin.Context) {
	entries, err := h.control.DeadLetters(c.Request.Context())
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deadletters": entries})
}

// POST /api/queue/deadletters/:post_id/retry
func (h *QueueHandler) RetryDeadLetter(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("post_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	if err := h.control.RetryDeadLetter(c.Request.Context(), postID); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"retried": postID})
}

// DELETE /api/queue/deadletters
func (h *QueueHandler) ClearDeadLetters(c *gin.Context) {
	if err := h.control.ClearDeadLetters(c.Request.Context()); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cleared": true})
}
