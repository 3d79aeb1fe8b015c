package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/draftline-backend/internal/data/repos"
	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/http/response"
	"github.com/yungbote/draftline-backend/internal/pipeline"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/services"
)

type PostHandler struct {
	log     *logger.Logger
	repos   *repos.Set
	control *services.ControlService
}

func NewPostHandler(baseLog *logger.Logger, reps *repos.Set, control *services.ControlService) *PostHandler {
	return &PostHandler{
		log:     baseLog.With("handler", "PostHandler"),
		repos:   reps,
		control: control,
	}
}

type createPostRequest struct {
	WebsiteProfileID *uuid.UUID `json:"website_profile_id"`
	Slug             string     `json:"slug"`
	Topic            string     `json:"topic"`
	Audience         string     `json:"audience"`
	Tone             string     `json:"tone"`
	TargetWordCount  int        `json:"target_word_count"`
	OutputFormat     string     `json:"output_format"`
	Priority         int        `json:"priority"`

	RelatedKeywords  []string `json:"related_keywords"`
	ImageStyle       string   `json:"image_style"`
	ImageColors      []string `json:"image_colors"`
	ImageExclusions  string   `json:"image_exclusions"`
	RequiredMentions []string `json:"required_mentions"`
	ThingsToAvoid    []string `json:"things_to_avoid"`
	CompetitorURLs   []string `json:"competitor_urls"`

	StageSettings map[string]string `json:"stage_settings"`
}

// POST /api/posts
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Topic == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_topic", fmt.Errorf("topic is required"))
		return
	}
	if req.Slug == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_slug", fmt.Errorf("slug is required"))
		return
	}
	for stage, mode := range req.StageSettings {
		if !pipeline.IsStageName(stage) {
			response.RespondError(c, http.StatusBadRequest, "unknown_stage",
				fmt.Errorf("unknown stage %q in stage_settings", stage))
			return
		}
		switch mode {
		case content.ModeAuto, content.ModeReview, content.ModeApproveOnly:
		default:
			response.RespondError(c, http.StatusBadRequest, "unknown_mode",
				fmt.Errorf("unknown mode %q for stage %q", mode, stage))
			return
		}
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	var profile *content.WebsiteProfile
	if req.WebsiteProfileID != nil {
		var err error
		profile, err = h.repos.Profiles.GetByID(dbc, *req.WebsiteProfileID)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "profile_load_failed", err)
			return
		}
		if profile == nil {
			response.RespondError(c, http.StatusNotFound, "profile_not_found",
				fmt.Errorf("profile %s not found", *req.WebsiteProfileID))
			return
		}
	}

	post := &content.Post{
		WebsiteProfileID: req.WebsiteProfileID,
		Slug:             req.Slug,
		Topic:            req.Topic,
		Audience:         req.Audience,
		Tone:             req.Tone,
		TargetWordCount:  req.TargetWordCount,
		OutputFormat:     req.OutputFormat,
		Priority:         req.Priority,
		RelatedKeywords:  req.RelatedKeywords,
		ImageStyle:       req.ImageStyle,
		ImageColors:      req.ImageColors,
		ImageExclusions:  req.ImageExclusions,
		RequiredMentions: req.RequiredMentions,
		ThingsToAvoid:    req.ThingsToAvoid,
		CompetitorURLs:   req.CompetitorURLs,
	}
	if len(req.StageSettings) > 0 {
		post.StageSettings = datatypes.NewJSONType(req.StageSettings)
	}
	services.NewPostDefaults(post, profile)

	created, err := h.repos.Posts.Create(dbc, []*content.Post{post})
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "post_create_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"post": created[0]})
}

// GET /api/posts
func (h *PostHandler) ListPosts(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if raw := c.Query("profile_id"); raw != "" {
		profileID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_profile_id", err)
			return
		}
		posts, err := h.repos.Posts.ListByProfile(dbc, profileID)
		if err != nil {
			response.RespondError(c, http.StatusInternalServerError, "post_list_failed", err)
			return
		}
		response.RespondOK(c, gin.H{"posts": posts})
		return
	}
	posts, err := h.repos.Posts.List(dbc)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "post_list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"posts": posts})
}

// GET /api/posts/:id
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	post, err := h.repos.Posts.GetByID(dbc, postID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "post_load_failed", err)
		return
	}
	if post == nil {
		response.RespondError(c, http.StatusNotFound, "post_not_found", fmt.Errorf("post %s not found", postID))
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// DELETE /api/posts/:id
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.repos.Posts.Delete(dbc, postID); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "post_delete_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": postID})
}

// POST /api/posts/:id/start
func (h *PostHandler) StartPipeline(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	post, err := h.control.StartPipeline(c.Request.Context(), postID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// POST /api/posts/:id/run-all
func (h *PostHandler) RunAll(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	post, err := h.control.RunAll(c.Request.Context(), postID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// POST /api/posts/:id/stages/:stage/rerun
func (h *PostHandler) RerunStage(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	post, err := h.control.RerunStage(c.Request.Context(), postID, c.Param("stage"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

type approveRequest struct {
	Content string `json:"content"`
}

// POST /api/posts/:id/approve
func (h *PostHandler) Approve(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	var req approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}
	post, err := h.control.Approve(c.Request.Context(), postID, req.Content)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// POST /api/posts/:id/pause
func (h *PostHandler) Pause(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	post, err := h.control.Pause(c.Request.Context(), postID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}

// POST /api/posts/:id/resume
func (h *PostHandler) Resume(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_post_id", err)
		return
	}
	post, err := h.control.Resume(c.Request.Context(), postID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"post": post})
}
