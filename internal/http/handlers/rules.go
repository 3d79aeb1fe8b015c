package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/draftline-backend/internal/http/response"
	"github.com/yungbote/draftline-backend/internal/services"
)

type RulesHandler struct {
	rules *services.RulesService
}

func NewRulesHandler(rules *services.RulesService) *RulesHandler {
	return &RulesHandler{rules: rules}
}

// GET /api/rules
func (h *RulesHandler) ListRules(c *gin.Context) {
	response.RespondOK(c, gin.H{"rules": h.rules.List()})
}

// GET /api/rules/:name
func (h *RulesHandler) GetRule(c *gin.Context) {
	name := c.Param("name")
	content, err := h.rules.Get(name)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"name": name, "content": content})
}

type ruleUpdateRequest struct {
	Content string `json:"content"`
}

// PUT /api/rules/:name
func (h *RulesHandler) UpdateRule(c *gin.Context) {
	name := c.Param("name")
	var req ruleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.rules.Put(name, req.Content); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"name": name, "content": req.Content})
}
