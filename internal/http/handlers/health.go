package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/draftline-backend/internal/http/response"
	"github.com/yungbote/draftline-backend/internal/observability"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /metrics — JSON snapshot of the process counters.
func (h *HealthHandler) Metrics(c *gin.Context) {
	response.RespondOK(c, observability.Current().Snapshot())
}
