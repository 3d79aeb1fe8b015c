package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/draftline-backend/internal/data/repos"
	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/queue"
	"github.com/yungbote/draftline-backend/internal/realtime"
)

// Runner drives a post through the registry. It is stateless between
// invocations: every iteration re-reads the post and skips completed
// stages, so resumption after a pause is just another full run.
type Runner struct {
	db          *gorm.DB
	repos       *repos.Set
	queue       *queue.Client
	bus         realtime.Publisher
	exec        *Executor
	log         *logger.Logger
	maxAttempts int
}

func NewRunner(db *gorm.DB, reps *repos.Set, qc *queue.Client, bus realtime.Publisher, exec *Executor, baseLog *logger.Logger, maxAttempts int) *Runner {
	if maxAttempts <= 0 {
		maxAttempts = queue.DefaultMaxAttempts
	}
	return &Runner{
		db:          db,
		repos:       reps,
		queue:       qc,
		bus:         bus,
		exec:        exec,
		log:         baseLog.With("component", "PipelineRunner"),
		maxAttempts: maxAttempts,
	}
}

// Handler adapts the runner to the queue contract.
func (r *Runner) Handler() queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		postID, err := uuid.Parse(job.PostID)
		if err != nil {
			r.log.Error("bad post id in job", "job_id", job.ID, "post_id", job.PostID)
			return nil
		}
		return r.Run(ctx, postID, job.Stage, job.Attempt)
	}
}

// Run executes a full-pipeline run (stage == "") or a single stage.
// Attempt is the queue's 1-indexed try counter.
func (r *Runner) Run(ctx context.Context, postID uuid.UUID, stage string, attempt int) error {
	if attempt <= 0 {
		attempt = 1
	}
	dbc := dbctx.Context{Ctx: ctx}
	post, err := r.repos.Posts.GetByID(dbc, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		r.log.Warn("post not found, dropping job", "post_id", postID)
		return nil
	}
	if post.CurrentStage == content.StatePaused {
		r.log.Info("post is paused, refusing run", "post_id", postID)
		return nil
	}

	if stage != "" {
		return r.runSingle(ctx, post, stage, attempt)
	}
	return r.runFull(ctx, post, attempt)
}

func (r *Runner) runFull(ctx context.Context, post *content.Post, attempt int) error {
	dbc := dbctx.Context{Ctx: ctx}

	if post.CurrentStage == content.StateComplete && AllComplete(post) {
		r.log.Info("post already complete", "post_id", post.ID)
		return nil
	}

	if attempt == 1 {
		post.AppendExecutionLog(content.ExecutionLog{
			Level:   "info",
			Event:   "pipeline_start",
			Message: "pipeline run started",
		})
		if err := r.repos.Posts.Save(dbc, post); err != nil {
			return fmt.Errorf("record pipeline start: %w", err)
		}
	}

	for _, st := range Registry {
		fresh, err := r.repos.Posts.GetByID(dbc, post.ID)
		if err != nil {
			return fmt.Errorf("reload post: %w", err)
		}
		if fresh == nil {
			r.log.Warn("post disappeared mid-run", "post_id", post.ID)
			return nil
		}
		if fresh.StatusFor(st.Name) == content.StageComplete {
			continue
		}

		decision := Decide(fresh, st.Name)
		if decision.Pauses() {
			fresh.SetStatus(st.Name, content.StageReview)
			fresh.CurrentStage = st.Name
			fresh.AppendExecutionLog(content.ExecutionLog{
				Stage:   st.Name,
				Level:   "info",
				Event:   "stage_review",
				Message: "waiting for review",
				Data:    map[string]any{"gate": decision.String()},
			})
			if err := r.repos.Posts.Save(dbc, fresh); err != nil {
				return fmt.Errorf("persist review pause: %w", err)
			}
			r.publish(ctx, fresh.ID, realtime.EventStageReview, map[string]any{
				"stage": st.Name,
				"gate":  decision.String(),
			})
			r.log.Info("pipeline paused for review", "post_id", fresh.ID, "stage", st.Name)
			return nil
		}

		if err := r.executeStage(ctx, fresh, st, attempt); err != nil {
			return err
		}
	}

	final, err := r.repos.Posts.GetByID(dbc, post.ID)
	if err != nil || final == nil {
		return err
	}
	return r.complete(ctx, final)
}

func (r *Runner) runSingle(ctx context.Context, post *content.Post, stageName string, attempt int) error {
	st, ok := Lookup(stageName)
	if !ok {
		r.log.Error("unknown stage in job, dropping", "post_id", post.ID, "stage", stageName)
		return nil
	}
	if err := r.executeStage(ctx, post, st, attempt); err != nil {
		return err
	}

	dbc := dbctx.Context{Ctx: ctx}
	fresh, err := r.repos.Posts.GetByID(dbc, post.ID)
	if err != nil || fresh == nil {
		return err
	}
	if AllComplete(fresh) {
		return r.complete(ctx, fresh)
	}
	if next := NextIncomplete(fresh); next != "" && fresh.CurrentStage != next {
		fresh.CurrentStage = next
		if err := r.repos.Posts.Save(dbc, fresh); err != nil {
			return fmt.Errorf("advance current stage: %w", err)
		}
	}
	return nil
}

func (r *Runner) executeStage(ctx context.Context, post *content.Post, st Stage, attempt int) error {
	dbc := dbctx.Context{Ctx: ctx}

	snap, err := r.buildSnapshot(dbc, post)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}

	post.CurrentStage = st.Name
	post.SetStatus(st.Name, content.StageRunning)
	if err := r.repos.Posts.Save(dbc, post); err != nil {
		return fmt.Errorf("mark stage running: %w", err)
	}
	r.publish(ctx, post.ID, realtime.EventStageStart, map[string]any{"stage": st.Name})

	stageCtx := WithSink(ctx, r.bus, post.ID.String())
	res, execErr := r.exec.Run(stageCtx, snap, st.Name)
	if execErr != nil {
		return r.failStage(ctx, post.ID, st.Name, attempt, execErr)
	}

	txErr := r.db.Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		fresh, err := r.repos.Posts.GetByID(txc, post.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return fmt.Errorf("post %s vanished during stage %s", post.ID, st.Name)
		}
		st.Apply(fresh, res)
		fresh.SetStatus(st.Name, content.StageComplete)
		for k, v := range res.StatusDelta {
			fresh.SetStatus(k, v)
		}
		fresh.CurrentStage = st.Name
		fresh.SetStageLog(st.Name, StageLogFromMeta(st.Name, res.Meta))
		fresh.AppendExecutionLog(content.ExecutionLog{
			Stage:   st.Name,
			Level:   "info",
			Event:   "stage_complete",
			Message: fmt.Sprintf("stage %s complete", st.Name),
			Data: map[string]any{
				"model":      res.Meta.Model,
				"tokens_in":  res.Meta.TokensIn,
				"tokens_out": res.Meta.TokensOut,
				"duration_s": res.Meta.DurationS,
				"cost_usd":   res.Meta.CostUSD,
			},
		})
		return r.repos.Posts.Save(txc, fresh)
	})
	if txErr != nil {
		return r.failStage(ctx, post.ID, st.Name, attempt, txErr)
	}

	r.publish(ctx, post.ID, realtime.EventStageComplete, map[string]any{
		"stage":      st.Name,
		"model":      res.Meta.Model,
		"duration_s": res.Meta.DurationS,
		"cost_usd":   res.Meta.CostUSD,
	})
	return nil
}

// failStage records the failure, decides retry vs dead-letter, and
// re-raises so the queue advances the attempt counter.
func (r *Runner) failStage(ctx context.Context, postID uuid.UUID, stage string, attempt int, cause error) error {
	r.publish(ctx, postID, realtime.EventStageError, map[string]any{
		"stage":   stage,
		"error":   cause.Error(),
		"attempt": attempt,
	})

	dbc := dbctx.Context{Ctx: ctx}
	fresh, err := r.repos.Posts.GetByID(dbc, postID)
	if err != nil || fresh == nil {
		return cause
	}

	fresh.SetStatus(stage, content.StageFailed)
	fresh.AppendExecutionLog(content.ExecutionLog{
		Stage:   stage,
		Level:   "warning",
		Event:   "retry",
		Message: fmt.Sprintf("attempt %d failed: %v", attempt, cause),
		Data:    map[string]any{"attempt": attempt, "error": cause.Error()},
	})

	if attempt < r.maxAttempts {
		if err := r.repos.Posts.Save(dbc, fresh); err != nil {
			r.log.Error("persist retry log failed", "post_id", postID, "error", err)
		}
		r.log.Warn("stage failed, will retry", "post_id", postID, "stage", stage, "attempt", attempt, "error", cause)
		return cause
	}

	failedAt := time.Now().UTC().Format(time.RFC3339)
	fresh.CurrentStage = content.StateFailed
	fresh.SetStageLog(content.ErrorLogKey, content.StageLog{
		Stage:    stage,
		Message:  cause.Error(),
		FailedAt: failedAt,
	})
	fresh.AppendExecutionLog(content.ExecutionLog{
		Stage:   stage,
		Level:   "error",
		Event:   "stage_error",
		Message: fmt.Sprintf("moved to dead-letter queue after %d attempts", attempt),
		Data:    map[string]any{"attempts": attempt, "error": cause.Error()},
	})
	if err := r.repos.Posts.Save(dbc, fresh); err != nil {
		r.log.Error("persist terminal failure failed", "post_id", postID, "error", err)
	}
	if err := r.queue.PushDeadLetter(ctx, queue.DeadLetter{
		PostID:   postID.String(),
		Stage:    stage,
		Error:    cause.Error(),
		Attempts: attempt,
		FailedAt: failedAt,
	}); err != nil {
		r.log.Error("dead-letter push failed", "post_id", postID, "error", err)
	}
	r.log.Error("stage failed permanently", "post_id", postID, "stage", stage, "attempts", attempt, "error", cause)
	return cause
}

// complete runs the completion hook: finalise the post and promote it
// into the profile's link catalog.
func (r *Runner) complete(ctx context.Context, post *content.Post) error {
	dbc := dbctx.Context{Ctx: ctx}

	now := time.Now().UTC()
	post.CurrentStage = content.StateComplete
	post.CompletedAt = &now
	post.AppendExecutionLog(content.ExecutionLog{
		Level:   "info",
		Event:   "pipeline_complete",
		Message: "all stages complete",
	})
	if err := r.repos.Posts.Save(dbc, post); err != nil {
		return fmt.Errorf("finalise post: %w", err)
	}

	var canonicalURL string
	if post.WebsiteProfileID != nil {
		profile, err := r.repos.Profiles.GetByID(dbc, *post.WebsiteProfileID)
		if err == nil && profile != nil && profile.WebsiteURL != "" {
			canonicalURL = strings.TrimRight(profile.WebsiteURL, "/") + "/" + post.Slug + "/"
			existing, err := r.repos.Links.GetByProfileAndURL(dbc, profile.ID, canonicalURL)
			if err != nil {
				r.log.Warn("link catalog lookup failed", "post_id", post.ID, "error", err)
			} else if existing == nil {
				postID := post.ID
				_, err := r.repos.Links.Create(dbc, []*content.InternalLink{{
					WebsiteProfileID: profile.ID,
					URL:              canonicalURL,
					Title:            post.Topic,
					Slug:             post.Slug,
					Source:           content.LinkSourceGenerated,
					GeneratedPostID:  &postID,
					Keywords:         post.RelatedKeywords,
				}})
				if err != nil {
					r.log.Warn("link catalog insert failed", "post_id", post.ID, "error", err)
				}
			}
		}
	}

	fields := map[string]any{}
	if canonicalURL != "" {
		fields["url"] = canonicalURL
	}
	r.publish(ctx, post.ID, realtime.EventPipelineComplete, fields)
	r.log.Info("pipeline complete", "post_id", post.ID, "url", canonicalURL)
	return nil
}

func (r *Runner) buildSnapshot(dbc dbctx.Context, post *content.Post) (*Snapshot, error) {
	var profile *content.WebsiteProfile
	var links []*content.InternalLink
	if post.WebsiteProfileID != nil {
		var err error
		profile, err = r.repos.Profiles.GetByID(dbc, *post.WebsiteProfileID)
		if err != nil {
			return nil, err
		}
		links, err = r.repos.Links.ListByProfile(dbc, *post.WebsiteProfileID)
		if err != nil {
			return nil, err
		}
	}
	return BuildSnapshot(post, profile, links), nil
}

func (r *Runner) publish(ctx context.Context, postID uuid.UUID, event string, fields map[string]any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, postID.String(), event, fields); err != nil {
		r.log.Warn("event publish failed", "event", event, "post_id", postID, "error", err)
	}
}
