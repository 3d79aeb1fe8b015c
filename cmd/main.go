package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/draftline-backend/internal/data/db"
	"github.com/yungbote/draftline-backend/internal/data/repos"
	httpx "github.com/yungbote/draftline-backend/internal/http"
	httpH "github.com/yungbote/draftline-backend/internal/http/handlers"
	"github.com/yungbote/draftline-backend/internal/observability"
	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
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
		ServiceName: "draftline-api",
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
	control := services.NewControlService(log, repoSet, queueClient)

	server := httpx.NewServer(httpx.RouterConfig{
		Log:            log,
		PostHandler:    httpH.NewPostHandler(log, repoSet, control),
		ProfileHandler: httpH.NewProfileHandler(log, repoSet, control),
		QueueHandler:   httpH.NewQueueHandler(control),
		EventsHandler:  httpH.NewEventsHandler(log, eventBus),
		RulesHandler:   httpH.NewRulesHandler(services.NewRulesService(log)),
		HealthHandler:  httpH.NewHealthHandler(),
	})

	addr := envutil.Str("API_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}
