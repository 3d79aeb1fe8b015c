package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/draftline-backend/internal/data/repos"
	"github.com/yungbote/draftline-backend/internal/data/repos/testutil"
	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/queue"
	"github.com/yungbote/draftline-backend/internal/realtime"
)

type runnerEnv struct {
	runner *Runner
	repos  *repos.Set
	queue  *queue.Client
	rec    *realtime.Recorder
	gdb    *gorm.DB
}

func newRunnerEnv(t *testing.T, fns map[string]StageFunc) *runnerEnv {
	t.Helper()
	gdb := testutil.MemDB(t)
	reps := repos.NewSet(gdb, logger.Nop())

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	qc, err := queue.NewClient(logger.Nop(), rdb)
	if err != nil {
		t.Fatalf("queue client: %v", err)
	}

	rec := &realtime.Recorder{}
	pricing := &Pricing{Models: map[string]ModelPrice{"test-model": {Input: 1, Output: 2}}}
	exec := NewExecutor(logger.Nop(), fns, pricing)

	return &runnerEnv{
		runner: NewRunner(gdb, reps, qc, rec, exec, logger.Nop(), 3),
		repos:  reps,
		queue:  qc,
		rec:    rec,
		gdb:    gdb,
	}
}

// stubFuncs returns stage functions producing "generated <stage>", with
// per-stage error overrides.
func stubFuncs(fail map[string]error) map[string]StageFunc {
	fns := map[string]StageFunc{}
	for _, name := range StageNames() {
		name := name
		fns[name] = func(ctx context.Context, snap *Snapshot) (*Result, error) {
			if err := fail[name]; err != nil {
				return nil, err
			}
			return &Result{
				Output: "generated " + name,
				Meta:   Meta{Model: "test-model", TokensIn: 100, TokensOut: 200},
			}, nil
		}
	}
	return fns
}

func createPost(t *testing.T, env *runnerEnv, post *content.Post) *content.Post {
	t.Helper()
	created, err := env.repos.Posts.Create(dbctx.Context{Ctx: context.Background()}, []*content.Post{post})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return created[0]
}

func reload(t *testing.T, env *runnerEnv, id uuid.UUID) *content.Post {
	t.Helper()
	post, err := env.repos.Posts.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		t.Fatalf("reload post: %v", err)
	}
	if post == nil {
		t.Fatalf("post %s vanished", id)
	}
	return post
}

func allAuto(post *content.Post) {
	for _, name := range StageNames() {
		post.SetSetting(name, content.ModeAuto)
	}
}

func countExecEvents(post *content.Post, event string) int {
	n := 0
	for _, entry := range post.ExecutionLogs {
		if entry.Event == event {
			n++
		}
	}
	return n
}

func TestRunFullAutoCompletes(t *testing.T) {
	env := newRunnerEnv(t, stubFuncs(nil))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	profiles, err := env.repos.Profiles.Create(dbc, []*content.WebsiteProfile{{
		Name:       "Acme",
		WebsiteURL: "https://acme.example/",
	}})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	profileID := profiles[0].ID

	post := &content.Post{WebsiteProfileID: &profileID, Slug: "go-routines", Topic: "Goroutines in Go", RelatedKeywords: []string{"go", "concurrency"}}
	allAuto(post)
	post = createPost(t, env, post)

	if err := env.runner.Run(ctx, post.ID, "", 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := reload(t, env, post.ID)
	if got.CurrentStage != content.StateComplete {
		t.Fatalf("current_stage = %q, want complete", got.CurrentStage)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	for _, name := range StageNames() {
		if got.StatusFor(name) != content.StageComplete {
			t.Fatalf("stage %s status = %q, want complete", name, got.StatusFor(name))
		}
		entry, ok := got.StageLogFor(name)
		if !ok {
			t.Fatalf("stage %s has no stage log", name)
		}
		if entry.Model != "test-model" || entry.TokensIn != 100 || entry.TokensOut != 200 {
			t.Fatalf("stage %s log = %+v", name, entry)
		}
		if entry.CostUSD <= 0 {
			t.Fatalf("stage %s cost = %v, want > 0", name, entry.CostUSD)
		}
	}
	if got.ResearchContent != "generated research" || got.DraftContent != "generated write" {
		t.Fatalf("content slots not written: research=%q draft=%q", got.ResearchContent, got.DraftContent)
	}

	// Completion hook promoted the post into the link catalog.
	wantURL := "https://acme.example/go-routines/"
	link, err := env.repos.Links.GetByProfileAndURL(dbc, profileID, wantURL)
	if err != nil {
		t.Fatalf("link lookup: %v", err)
	}
	if link == nil {
		t.Fatalf("no link created for %s", wantURL)
	}
	if link.Source != content.LinkSourceGenerated {
		t.Fatalf("link source = %q, want generated", link.Source)
	}
	if link.GeneratedPostID == nil || *link.GeneratedPostID != post.ID {
		t.Fatal("link not tied back to the post")
	}
	if len(link.Keywords) != 2 {
		t.Fatalf("link keywords = %v", link.Keywords)
	}

	if n := env.rec.CountByName(realtime.EventStageStart); n != len(StageNames()) {
		t.Fatalf("stage_start events = %d, want %d", n, len(StageNames()))
	}
	if n := env.rec.CountByName(realtime.EventStageComplete); n != len(StageNames()) {
		t.Fatalf("stage_complete events = %d, want %d", n, len(StageNames()))
	}
	if n := env.rec.CountByName(realtime.EventPipelineComplete); n != 1 {
		t.Fatalf("pipeline_complete events = %d, want 1", n)
	}

	// A duplicate job for a finished post must not re-fire completion.
	if err := env.runner.Run(ctx, post.ID, "", 1); err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if n := env.rec.CountByName(realtime.EventPipelineComplete); n != 1 {
		t.Fatalf("pipeline_complete events after re-run = %d, want 1", n)
	}
}

func TestRunFullPausesBeforeReviewStage(t *testing.T) {
	outlineRan := false
	fns := stubFuncs(nil)
	base := fns[StageOutline]
	fns[StageOutline] = func(ctx context.Context, snap *Snapshot) (*Result, error) {
		outlineRan = true
		return base(ctx, snap)
	}
	env := newRunnerEnv(t, fns)
	ctx := context.Background()

	post := &content.Post{Slug: "s", Topic: "T"}
	allAuto(post)
	post.SetSetting(StageOutline, content.ModeReview)
	post = createPost(t, env, post)

	if err := env.runner.Run(ctx, post.ID, "", 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := reload(t, env, post.ID)
	if got.StatusFor(StageResearch) != content.StageComplete {
		t.Fatalf("research status = %q, want complete", got.StatusFor(StageResearch))
	}
	if got.CurrentStage != StageOutline {
		t.Fatalf("current_stage = %q, want outline", got.CurrentStage)
	}
	if got.StatusFor(StageOutline) != content.StageReview {
		t.Fatalf("outline status = %q, want review", got.StatusFor(StageOutline))
	}
	// The gate pauses before execution: no outline content yet.
	if outlineRan {
		t.Fatal("outline stage function ran before approval")
	}
	if got.OutlineContent != "" {
		t.Fatalf("outline content = %q, want empty", got.OutlineContent)
	}
	if got.DraftContent != "" {
		t.Fatal("write stage must not run past a paused gate")
	}
	if n := env.rec.CountByName(realtime.EventStageReview); n != 1 {
		t.Fatalf("stage_review events = %d, want 1", n)
	}
	if n := env.rec.CountByName(realtime.EventPipelineComplete); n != 0 {
		t.Fatalf("pipeline_complete events = %d, want 0", n)
	}
}

func TestRunFullDefaultsAbsentGateToReview(t *testing.T) {
	env := newRunnerEnv(t, stubFuncs(nil))
	post := createPost(t, env, &content.Post{Slug: "s", Topic: "T"})

	if err := env.runner.Run(context.Background(), post.ID, "", 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := reload(t, env, post.ID)
	if got.CurrentStage != StageResearch {
		t.Fatalf("current_stage = %q, want research", got.CurrentStage)
	}
	if got.StatusFor(StageResearch) != content.StageReview {
		t.Fatalf("research status = %q, want review", got.StatusFor(StageResearch))
	}
}

func TestRunSingleStage(t *testing.T) {
	env := newRunnerEnv(t, stubFuncs(nil))
	ctx := context.Background()

	post := &content.Post{Slug: "s", Topic: "T"}
	post.SetStatus(StageResearch, content.StageComplete)
	post.SetStatus(StageOutline, content.StageComplete)
	post = createPost(t, env, post)

	if err := env.runner.Run(ctx, post.ID, StageWrite, 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := reload(t, env, post.ID)
	if got.DraftContent != "generated write" {
		t.Fatalf("draft = %q", got.DraftContent)
	}
	if got.StatusFor(StageWrite) != content.StageComplete {
		t.Fatalf("write status = %q", got.StatusFor(StageWrite))
	}
	if got.CurrentStage != StageEdit {
		t.Fatalf("current_stage = %q, want edit", got.CurrentStage)
	}
	if n := env.rec.CountByName(realtime.EventPipelineComplete); n != 0 {
		t.Fatalf("pipeline_complete events = %d, want 0", n)
	}
}

func TestRunSingleLastStageCompletesPipeline(t *testing.T) {
	env := newRunnerEnv(t, stubFuncs(nil))
	ctx := context.Background()

	post := &content.Post{Slug: "s", Topic: "T"}
	for _, name := range StageNames() {
		if name != StageReady {
			post.SetStatus(name, content.StageComplete)
		}
	}
	post = createPost(t, env, post)

	if err := env.runner.Run(ctx, post.ID, StageReady, 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := reload(t, env, post.ID)
	if got.CurrentStage != content.StateComplete {
		t.Fatalf("current_stage = %q, want complete", got.CurrentStage)
	}
	if n := env.rec.CountByName(realtime.EventPipelineComplete); n != 1 {
		t.Fatalf("pipeline_complete events = %d, want 1", n)
	}
}

func TestStageFailureRetriesThenDeadLetters(t *testing.T) {
	boom := errors.New("provider down")
	env := newRunnerEnv(t, stubFuncs(map[string]error{StageResearch: boom}))
	ctx := context.Background()

	post := &content.Post{Slug: "s", Topic: "T"}
	allAuto(post)
	post = createPost(t, env, post)

	for attempt := 1; attempt <= 3; attempt++ {
		err := env.runner.Run(ctx, post.ID, "", attempt)
		if !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want %v", attempt, err, boom)
		}
	}

	got := reload(t, env, post.ID)
	if got.CurrentStage != content.StateFailed {
		t.Fatalf("current_stage = %q, want failed", got.CurrentStage)
	}
	if got.StatusFor(StageResearch) != content.StageFailed {
		t.Fatalf("research status = %q, want failed", got.StatusFor(StageResearch))
	}

	// One retry record per failed attempt, then the terminal record.
	if n := countExecEvents(got, "retry"); n != 3 {
		t.Fatalf("retry log entries = %d, want 3", n)
	}
	if n := countExecEvents(got, "stage_error"); n != 1 {
		t.Fatalf("stage_error log entries = %d, want 1", n)
	}

	errLog, ok := got.StageLogFor(content.ErrorLogKey)
	if !ok {
		t.Fatal("no _error stage log recorded")
	}
	if errLog.Stage != StageResearch || !strings.Contains(errLog.Message, "provider down") || errLog.FailedAt == "" {
		t.Fatalf("_error log = %+v", errLog)
	}

	entries, err := env.queue.ListDeadLetters(ctx)
	if err != nil {
		t.Fatalf("list deadletters: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("deadletter entries = %d, want 1", len(entries))
	}
	dl := entries[0]
	if dl.PostID != post.ID.String() || dl.Stage != StageResearch || dl.Attempts != 3 {
		t.Fatalf("deadletter = %+v", dl)
	}

	if n := env.rec.CountByName(realtime.EventStageError); n != 3 {
		t.Fatalf("stage_error events = %d, want 3", n)
	}
}

func TestEarlyAttemptKeepsPostRetryable(t *testing.T) {
	boom := errors.New("transient")
	env := newRunnerEnv(t, stubFuncs(map[string]error{StageResearch: boom}))
	ctx := context.Background()

	post := &content.Post{Slug: "s", Topic: "T"}
	allAuto(post)
	post = createPost(t, env, post)

	if err := env.runner.Run(ctx, post.ID, "", 1); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	got := reload(t, env, post.ID)
	if got.CurrentStage == content.StateFailed {
		t.Fatal("post marked failed before attempts exhausted")
	}
	if _, ok := got.StageLogFor(content.ErrorLogKey); ok {
		t.Fatal("_error log written before attempts exhausted")
	}
	if n, err := env.queue.DeadLetterLen(ctx); err != nil || n != 0 {
		t.Fatalf("deadletter len = %d (err %v), want 0", n, err)
	}
}

func TestPausedPostRefusesRun(t *testing.T) {
	env := newRunnerEnv(t, stubFuncs(nil))
	ctx := context.Background()

	post := &content.Post{Slug: "s", Topic: "T", CurrentStage: content.StatePaused}
	allAuto(post)
	post = createPost(t, env, post)

	if err := env.runner.Run(ctx, post.ID, "", 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := reload(t, env, post.ID)
	if got.CurrentStage != content.StatePaused {
		t.Fatalf("current_stage = %q, want paused", got.CurrentStage)
	}
	if got.ResearchContent != "" {
		t.Fatal("no stage should run on a paused post")
	}
	if len(env.rec.Events()) != 0 {
		t.Fatalf("events published for a paused post: %v", env.rec.Events())
	}
}

func TestImagesSoftFailureProceeds(t *testing.T) {
	fns := stubFuncs(nil)
	fns[StageImages] = func(ctx context.Context, snap *Snapshot) (*Result, error) {
		return &Result{
			Output:      `{"images":[],"error":"manifest was not valid JSON"}`,
			StatusDelta: map[string]string{StageImages: content.StageFailed},
			Meta:        Meta{Model: "test-model"},
		}, nil
	}
	env := newRunnerEnv(t, fns)
	ctx := context.Background()

	post := &content.Post{Slug: "s", Topic: "T"}
	allAuto(post)
	post = createPost(t, env, post)

	if err := env.runner.Run(ctx, post.ID, "", 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	got := reload(t, env, post.ID)
	if got.CurrentStage != content.StateComplete {
		t.Fatalf("current_stage = %q, want complete", got.CurrentStage)
	}
	if got.StatusFor(StageImages) != content.StageFailed {
		t.Fatalf("images status = %q, want failed", got.StatusFor(StageImages))
	}
	if got.ReadyContent == "" {
		t.Fatal("ready stage should still run after an images soft failure")
	}
	if !strings.Contains(string(got.ImageManifest), "manifest was not valid JSON") {
		t.Fatalf("image manifest = %s", got.ImageManifest)
	}
	if n, err := env.queue.DeadLetterLen(ctx); err != nil || n != 0 {
		t.Fatalf("deadletter len = %d (err %v), want 0", n, err)
	}
}

func TestUnknownPostOrStageDropsJob(t *testing.T) {
	env := newRunnerEnv(t, stubFuncs(nil))
	ctx := context.Background()

	if err := env.runner.Run(ctx, uuid.New(), "", 1); err != nil {
		t.Fatalf("missing post should drop cleanly, got %v", err)
	}

	post := createPost(t, env, &content.Post{Slug: "s", Topic: "T"})
	if err := env.runner.Run(ctx, post.ID, "no-such-stage", 1); err != nil {
		t.Fatalf("unknown stage should drop cleanly, got %v", err)
	}
}
