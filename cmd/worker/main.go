package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/draftline-backend/internal/crawler"
	"github.com/yungbote/draftline-backend/internal/data/db"
	"github.com/yungbote/draftline-backend/internal/data/repos"
	"github.com/yungbote/draftline-backend/internal/observability"
	"github.com/yungbote/draftline-backend/internal/pipeline"
	"github.com/yungbote/draftline-backend/internal/pipeline/stages"
	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/imagegen"
	"github.com/yungbote/draftline-backend/internal/platform/llm"
	"github.com/yungbote/draftline-backend/internal/platform/localmedia"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/platform/search"
	"github.com/yungbote/draftline-backend/internal/queue"
	"github.com/yungbote/draftline-backend/internal/realtime/bus"
	"github.com/yungbote/draftline-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "draftline-worker",
		Environment: envutil.Str("ENVIRONMENT", "development"),
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(shutdownCtx)
	}()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("postgres init failed", "error", err)
	}
	if err := pg.AutoMigrate(); err != nil {
		log.Fatal("postgres migration failed", "error", err)
	}

	rdb, err := queue.NewRedisClient()
	if err != nil {
		log.Fatal("redis init failed", "error", err)
	}
	defer rdb.Close()

	queueClient, err := queue.NewClient(log, rdb)
	if err != nil {
		log.Fatal("queue client init failed", "error", err)
	}
	eventBus, err := bus.NewFromEnv(log)
	if err != nil {
		log.Fatal("event bus init failed", "error", err)
	}
	defer eventBus.Close()

	repoSet := repos.NewSet(pg.DB(), log)

	// Providers
	llmClient, err := llm.NewAnthropicClient(log)
	if err != nil {
		log.Fatal("llm client init failed", "error", err)
	}
	searchClient, err := search.NewPerplexityClient(log)
	if err != nil {
		log.Fatal("search client init failed", "error", err)
	}
	imageClient, err := newImageClient(ctx, log)
	if err != nil {
		log.Fatal("image client init failed", "error", err)
	}
	media, err := localmedia.NewStore(log)
	if err != nil {
		log.Fatal("media store init failed", "error", err)
	}

	pricing, err := pipeline.LoadPricing()
	if err != nil {
		log.Fatal("pricing load failed", "error", err)
	}

	deps := &stages.Deps{
		Log:      log,
		LLM:      llmClient,
		Search:   searchClient,
		Images:   imageClient,
		Media:    media,
		RulesDir: envutil.Str("RULES_DIR", "./rules"),
	}
	exec := pipeline.NewExecutor(log, deps.Funcs(), pricing)

	workerCfg := queue.WorkerConfig{
		MaxJobs:     envutil.Int("WORKER_MAX_JOBS", queue.DefaultMaxJobs),
		MaxAttempts: envutil.Int("WORKER_MAX_ATTEMPTS", queue.DefaultMaxAttempts),
		RetryDelay:  envutil.Dur("WORKER_RETRY_DELAY", queue.DefaultRetryDelay),
		JobTimeout:  envutil.Dur("WORKER_JOB_TIMEOUT", queue.DefaultJobTimeout),
	}
	runner := pipeline.NewRunner(pg.DB(), repoSet, queueClient, eventBus, exec, log, workerCfg.MaxAttempts)
	crawlWorker := crawler.NewWorker(log, repoSet, crawler.NewFetcher(log), eventBus)

	worker := queue.NewWorker(log, queueClient, workerCfg)
	worker.Register(queue.JobRunPipelineStage, runner.Handler())
	worker.Register(queue.JobCrawlProfileSitemap, crawlWorker.Handler())

	scheduler := services.NewScheduler(log, repoSet, queueClient)
	if err := scheduler.Start(); err != nil {
		log.Fatal("scheduler start failed", "error", err)
	}

	worker.Run(ctx)

	log.Info("worker stopped, draining scheduler")
	scheduler.Stop()
}

// newImageClient picks Gemini when a key is configured, otherwise the
// offline renderer so the pipeline still produces placeholder art.
func newImageClient(ctx context.Context, log *logger.Logger) (imagegen.Client, error) {
	if envutil.Str("GEMINI_API_KEY", "") != "" {
		return imagegen.NewGeminiClient(ctx, log)
	}
	log.Warn("GEMINI_API_KEY not set, using local image renderer")
	return imagegen.NewLocalRenderer(log), nil
}
