package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/draftline-backend/internal/data/repos"
	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/http/response"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/services"
)

type ProfileHandler struct {
	log     *logger.Logger
	repos   *repos.Set
	control *services.ControlService
}

func NewProfileHandler(baseLog *logger.Logger, reps *repos.Set, control *services.ControlService) *ProfileHandler {
	return &ProfileHandler{
		log:     baseLog.With("handler", "ProfileHandler"),
		repos:   reps,
		control: control,
	}
}

type profileRequest struct {
	Name        string `json:"name"`
	WebsiteURL  string `json:"website_url"`
	Description string `json:"description"`

	DefaultTone         string `json:"default_tone"`
	DefaultAudience     string `json:"default_audience"`
	DefaultWordCount    int    `json:"default_word_count"`
	DefaultOutputFormat string `json:"default_output_format"`
	DefaultImageStyle   string `json:"default_image_style"`

	RecrawlInterval string `json:"recrawl_interval"`
}

func validRecrawlInterval(v string) bool {
	switch v {
	case "", content.RecrawlWeekly, content.RecrawlMonthly, content.RecrawlDisabled:
		return true
	}
	return false
}

// POST /api/profiles
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Name == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_name", fmt.Errorf("name is required"))
		return
	}
	if req.WebsiteURL == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_website_url", fmt.Errorf("website_url is required"))
		return
	}
	if !validRecrawlInterval(req.RecrawlInterval) {
		response.RespondError(c, http.StatusBadRequest, "invalid_recrawl_interval",
			fmt.Errorf("unknown recrawl_interval %q", req.RecrawlInterval))
		return
	}

	profile := &content.WebsiteProfile{
		Name:                req.Name,
		WebsiteURL:          req.WebsiteURL,
		Description:         req.Description,
		DefaultTone:         req.DefaultTone,
		DefaultAudience:     req.DefaultAudience,
		DefaultWordCount:    req.DefaultWordCount,
		DefaultOutputFormat: req.DefaultOutputFormat,
		DefaultImageStyle:   req.DefaultImageStyle,
		RecrawlInterval:     req.RecrawlInterval,
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	created, err := h.repos.Profiles.Create(dbc, []*content.WebsiteProfile{profile})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "profile_create_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"profile": created[0]})
}

// GET /api/profiles
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	profiles, err := h.repos.Profiles.List(dbc)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "profile_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"profiles": profiles})
}

// GET /api/profiles/:id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	profile, err := h.repos.Profiles.GetByID(dbc, profileID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "profile_load_failed", err)
		return
	}
	if profile == nil {
		response.RespondError(c, http.StatusNotFound, "profile_not_found", fmt.Errorf("profile %s not found", profileID))
		return
	}
	response.RespondOK(c, gin.H{"profile": profile})
}

// PATCH /api/profiles/:id
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	// Only whitelisted columns are updatable.
	allowed := map[string]string{
		"name":                  "name",
		"website_url":           "website_url",
		"description":           "description",
		"default_tone":          "default_tone",
		"default_audience":      "default_audience",
		"default_word_count":    "default_word_count",
		"default_output_format": "default_output_format",
		"default_image_style":   "default_image_style",
		"recrawl_interval":      "recrawl_interval",
	}
	updates := map[string]interface{}{}
	for key, val := range req {
		col, ok := allowed[key]
		if !ok {
			response.RespondError(c, http.StatusBadRequest, "unknown_field", fmt.Errorf("field %q is not updatable", key))
			return
		}
		if key == "recrawl_interval" {
			s, _ := val.(string)
			if !validRecrawlInterval(s) {
				response.RespondError(c, http.StatusBadRequest, "invalid_recrawl_interval",
					fmt.Errorf("unknown recrawl_interval %q", s))
				return
			}
		}
		updates[col] = val
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.repos.Profiles.UpdateFields(dbc, profileID, updates); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "profile_update_failed", err)
		return
	}
	profile, err := h.repos.Profiles.GetByID(dbc, profileID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "profile_load_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"profile": profile})
}

// DELETE /api/profiles/:id
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.repos.Profiles.Delete(dbc, profileID); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "profile_delete_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": profileID})
}

// POST /api/profiles/:id/crawl
func (h *ProfileHandler) TriggerCrawl(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	if err := h.control.TriggerCrawl(c.Request.Context(), profileID); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"enqueued": profileID})
}

// GET /api/profiles/:id/links
func (h *ProfileHandler) ListLinks(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	links, err := h.repos.Links.ListByProfile(dbc, profileID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "link_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"links": links})
}
