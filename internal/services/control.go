package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/yungbote/draftline-backend/internal/data/repos"
	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/pipeline"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/apierr"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/queue"
)

// ControlService is the approval API surface: everything the HTTP layer
// does to posts besides plain CRUD goes through here. It only mutates
// the store and enqueues jobs; the runner does the actual work.
type ControlService struct {
	log   *logger.Logger
	repos *repos.Set
	queue *queue.Client
}

func NewControlService(baseLog *logger.Logger, reps *repos.Set, qc *queue.Client) *ControlService {
	return &ControlService{
		log:   baseLog.With("service", "ControlService"),
		repos: reps,
		queue: qc,
	}
}

func (s *ControlService) loadPost(ctx context.Context, postID uuid.UUID) (*content.Post, error) {
	dbc := dbctx.Context{Ctx: ctx}
	post, err := s.repos.Posts.GetByID(dbc, postID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "post_load_failed", err)
	}
	if post == nil {
		return nil, apierr.New(http.StatusNotFound, "post_not_found", fmt.Errorf("post %s not found", postID))
	}
	return post, nil
}

// StartPipeline resets the post to the first stage and enqueues a full
// run.
func (s *ControlService) StartPipeline(ctx context.Context, postID uuid.UUID) (*content.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	first := pipeline.Registry[0].Name
	post.CurrentStage = first
	post.SetStatus(first, content.StageRunning)
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.repos.Posts.Save(dbc, post); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "post_save_failed", err)
	}
	if err := s.queue.EnqueuePipeline(ctx, postID, ""); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "enqueue_failed", err)
	}
	s.log.Info("pipeline started", "post_id", postID)
	return post, nil
}

// RunAll flips every non-complete stage to auto and enqueues a full run.
func (s *ControlService) RunAll(ctx context.Context, postID uuid.UUID) (*content.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	for _, name := range pipeline.StageNames() {
		if post.StatusFor(name) != content.StageComplete {
			post.SetSetting(name, content.ModeAuto)
		}
	}
	if post.CurrentStage == content.StatePaused || post.CurrentStage == content.StateFailed {
		post.CurrentStage = content.StatePending
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.repos.Posts.Save(dbc, post); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "post_save_failed", err)
	}
	if err := s.queue.EnqueuePipeline(ctx, postID, ""); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "enqueue_failed", err)
	}
	s.log.Info("run-all enqueued", "post_id", postID)
	return post, nil
}

// RerunStage re-executes one stage regardless of gates.
func (s *ControlService) RerunStage(ctx context.Context, postID uuid.UUID, stage string) (*content.Post, error) {
	if !pipeline.IsStageName(stage) {
		return nil, apierr.New(http.StatusBadRequest, "unknown_stage", fmt.Errorf("unknown stage %q", stage))
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	post.SetStatus(stage, content.StageRunning)
	post.CurrentStage = stage
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.repos.Posts.Save(dbc, post); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "post_save_failed", err)
	}
	if err := s.queue.EnqueuePipeline(ctx, postID, stage); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "enqueue_failed", err)
	}
	s.log.Info("stage rerun enqueued", "post_id", postID, "stage", stage)
	return post, nil
}

// Approve releases a review gate. edited may overwrite the stage's
// content unless the gate is approve_only. Resumption is a fresh
// full-pipeline job so normal gate checks apply downstream.
func (s *ControlService) Approve(ctx context.Context, postID uuid.UUID, edited string) (*content.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	stage := post.CurrentStage
	st, ok := pipeline.Lookup(stage)
	if !ok {
		return nil, apierr.New(http.StatusBadRequest, "not_reviewable",
			fmt.Errorf("post is at %q, nothing to approve", stage))
	}
	if post.StatusFor(stage) != content.StageReview {
		return nil, apierr.New(http.StatusBadRequest, "stage_not_in_review",
			fmt.Errorf("stage %q is %q, not review", stage, post.StatusFor(stage)))
	}
	if edited != "" {
		if post.SettingFor(stage) == content.ModeApproveOnly {
			return nil, apierr.New(http.StatusBadRequest, "content_not_editable",
				fmt.Errorf("stage %q is approve_only", stage))
		}
		st.Apply(post, &pipeline.Result{Output: edited})
	}
	post.SetStatus(stage, content.StageComplete)
	if next := pipeline.NextIncomplete(post); next != "" {
		post.CurrentStage = next
	} else {
		post.CurrentStage = content.StateComplete
	}
	post.AppendExecutionLog(content.ExecutionLog{
		Stage:   stage,
		Level:   "info",
		Event:   "stage_approved",
		Message: fmt.Sprintf("stage %s approved", stage),
		Data:    map[string]any{"edited": edited != ""},
	})
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.repos.Posts.Save(dbc, post); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "post_save_failed", err)
	}
	if err := s.queue.EnqueuePipeline(ctx, postID, ""); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "enqueue_failed", err)
	}
	s.log.Info("stage approved", "post_id", postID, "stage", stage, "edited", edited != "")
	return post, nil
}

// Pause takes effect at the next job boundary; in-flight stages finish.
func (s *ControlService) Pause(ctx context.Context, postID uuid.UUID) (*content.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	post.CurrentStage = content.StatePaused
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.repos.Posts.Save(dbc, post); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "post_save_failed", err)
	}
	s.log.Info("post paused", "post_id", postID)
	return post, nil
}

// Resume moves a paused post back to its next incomplete stage and
// enqueues a full run.
func (s *ControlService) Resume(ctx context.Context, postID uuid.UUID) (*content.Post, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.CurrentStage != content.StatePaused {
		return nil, apierr.New(http.StatusBadRequest, "not_paused",
			fmt.Errorf("post is at %q, not paused", post.CurrentStage))
	}
	if next := pipeline.NextIncomplete(post); next != "" {
		post.CurrentStage = next
	} else {
		post.CurrentStage = content.StateComplete
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.repos.Posts.Save(dbc, post); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "post_save_failed", err)
	}
	if post.CurrentStage != content.StateComplete {
		if err := s.queue.EnqueuePipeline(ctx, postID, ""); err != nil {
			return nil, apierr.New(http.StatusInternalServerError, "enqueue_failed", err)
		}
	}
	s.log.Info("post resumed", "post_id", postID)
	return post, nil
}

// PauseAll pauses every post that is mid-pipeline.
func (s *ControlService) PauseAll(ctx context.Context) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	posts, err := s.repos.Posts.List(dbc)
	if err != nil {
		return 0, apierr.New(http.StatusInternalServerError, "post_list_failed", err)
	}
	paused := 0
	for _, post := range posts {
		if !pipeline.IsStageName(post.CurrentStage) && post.CurrentStage != content.StatePending {
			continue
		}
		post.CurrentStage = content.StatePaused
		if err := s.repos.Posts.Save(dbc, post); err != nil {
			return paused, apierr.New(http.StatusInternalServerError, "post_save_failed", err)
		}
		paused++
	}
	s.log.Info("paused all active posts", "count", paused)
	return paused, nil
}

// ResumeAll resumes every paused post.
func (s *ControlService) ResumeAll(ctx context.Context) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	posts, err := s.repos.Posts.List(dbc)
	if err != nil {
		return 0, apierr.New(http.StatusInternalServerError, "post_list_failed", err)
	}
	resumed := 0
	for _, post := range posts {
		if post.CurrentStage != content.StatePaused {
			continue
		}
		if _, err := s.Resume(ctx, post.ID); err != nil {
			return resumed, err
		}
		resumed++
	}
	s.log.Info("resumed all paused posts", "count", resumed)
	return resumed, nil
}

// QueueStatus is the operator dashboard payload.
type QueueStatus struct {
	ByStage       map[string]int64 `json:"by_stage"`
	ReviewCount   int              `json:"review_count"`
	QueueDepth    int64            `json:"queue_depth"`
	DeadLetters   int64            `json:"dead_letters"`
	LastCompleted string           `json:"last_completed,omitempty"`
}

func (s *ControlService) QueueStatus(ctx context.Context) (*QueueStatus, error) {
	dbc := dbctx.Context{Ctx: ctx}
	byStage, err := s.repos.Posts.CountByCurrentStage(dbc)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "count_failed", err)
	}
	review, err := s.ReviewQueue(ctx)
	if err != nil {
		return nil, err
	}
	depth, err := s.queue.Depth(ctx)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "queue_depth_failed", err)
	}
	dlq, err := s.queue.DeadLetterLen(ctx)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "deadletter_len_failed", err)
	}
	last, err := s.queue.LastCompleted(ctx)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "heartbeat_read_failed", err)
	}
	return &QueueStatus{
		ByStage:       byStage,
		ReviewCount:   len(review),
		QueueDepth:    depth,
		DeadLetters:   dlq,
		LastCompleted: last,
	}, nil
}

// ReviewQueue lists posts whose current stage is waiting for review.
func (s *ControlService) ReviewQueue(ctx context.Context) ([]*content.Post, error) {
	dbc := dbctx.Context{Ctx: ctx}
	posts, err := s.repos.Posts.List(dbc)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "post_list_failed", err)
	}
	out := []*content.Post{}
	for _, post := range posts {
		if pipeline.IsStageName(post.CurrentStage) && post.StatusFor(post.CurrentStage) == content.StageReview {
			out = append(out, post)
		}
	}
	return out, nil
}

// DeadLetters lists quarantined jobs, newest first.
func (s *ControlService) DeadLetters(ctx context.Context) ([]queue.DeadLetter, error) {
	entries, err := s.queue.ListDeadLetters(ctx)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "deadletter_list_failed", err)
	}
	return entries, nil
}

// RetryDeadLetter removes the post's DLQ entry, clears the failure
// record and enqueues a fresh full run.
func (s *ControlService) RetryDeadLetter(ctx context.Context, postID uuid.UUID) error {
	entry, err := s.queue.RemoveDeadLetter(ctx, postID.String())
	if err != nil {
		return apierr.New(http.StatusInternalServerError, "deadletter_remove_failed", err)
	}
	if entry == nil {
		return apierr.New(http.StatusNotFound, "deadletter_not_found",
			fmt.Errorf("no dead-letter entry for post %s", postID))
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	post.ClearStageLog(content.ErrorLogKey)
	post.CurrentStage = content.StatePending
	if entry.Stage != "" && post.StatusFor(entry.Stage) == content.StageFailed {
		post.SetStatus(entry.Stage, "")
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.repos.Posts.Save(dbc, post); err != nil {
		return apierr.New(http.StatusInternalServerError, "post_save_failed", err)
	}
	if err := s.queue.EnqueuePipeline(ctx, postID, ""); err != nil {
		return apierr.New(http.StatusInternalServerError, "enqueue_failed", err)
	}
	s.log.Info("dead-letter retried", "post_id", postID, "stage", entry.Stage)
	return nil
}

func (s *ControlService) ClearDeadLetters(ctx context.Context) error {
	if err := s.queue.ClearDeadLetters(ctx); err != nil {
		return apierr.New(http.StatusInternalServerError, "deadletter_clear_failed", err)
	}
	return nil
}

// TriggerCrawl enqueues a sitemap crawl for the profile.
func (s *ControlService) TriggerCrawl(ctx context.Context, profileID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	profile, err := s.repos.Profiles.GetByID(dbc, profileID)
	if err != nil {
		return apierr.New(http.StatusInternalServerError, "profile_load_failed", err)
	}
	if profile == nil {
		return apierr.New(http.StatusNotFound, "profile_not_found", fmt.Errorf("profile %s not found", profileID))
	}
	if profile.CrawlStatus == content.CrawlCrawling {
		return apierr.New(http.StatusConflict, "crawl_in_progress", fmt.Errorf("profile %s is already crawling", profileID))
	}
	if err := s.queue.EnqueueCrawl(ctx, profileID); err != nil {
		return apierr.New(http.StatusInternalServerError, "enqueue_failed", err)
	}
	return nil
}

// NewPostDefaults prefills a post's empty config fields from its profile.
func NewPostDefaults(post *content.Post, profile *content.WebsiteProfile) {
	if post.Tone == "" {
		if profile != nil && profile.DefaultTone != "" {
			post.Tone = profile.DefaultTone
		}
	}
	if post.Audience == "" && profile != nil {
		post.Audience = profile.DefaultAudience
	}
	if post.TargetWordCount <= 0 {
		if profile != nil && profile.DefaultWordCount > 0 {
			post.TargetWordCount = profile.DefaultWordCount
		}
	}
	if post.OutputFormat == "" {
		if profile != nil && profile.DefaultOutputFormat != "" {
			post.OutputFormat = profile.DefaultOutputFormat
		}
	}
	if post.ImageStyle == "" && profile != nil {
		post.ImageStyle = profile.DefaultImageStyle
	}
}
