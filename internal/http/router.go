package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/draftline-backend/internal/http/handlers"
	httpMW "github.com/yungbote/draftline-backend/internal/http/middleware"
	"github.com/yungbote/draftline-backend/internal/observability"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	PostHandler    *httpH.PostHandler
	ProfileHandler *httpH.ProfileHandler
	QueueHandler   *httpH.QueueHandler
	EventsHandler  *httpH.EventsHandler
	RulesHandler   *httpH.RulesHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("draftline"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(observability.Current()))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/metrics", cfg.HealthHandler.Metrics)
	}

	api := r.Group("/api")
	{
		if cfg.PostHandler != nil {
			api.POST("/posts", cfg.PostHandler.CreatePost)
			api.GET("/posts", cfg.PostHandler.ListPosts)
			api.GET("/posts/:id", cfg.PostHandler.GetPost)
			api.DELETE("/posts/:id", cfg.PostHandler.DeletePost)

			api.POST("/posts/:id/start", cfg.PostHandler.StartPipeline)
			api.POST("/posts/:id/run-all", cfg.PostHandler.RunAll)
			api.POST("/posts/:id/stages/:stage/rerun", cfg.PostHandler.RerunStage)
			api.POST("/posts/:id/approve", cfg.PostHandler.Approve)
			api.POST("/posts/:id/pause", cfg.PostHandler.Pause)
			api.POST("/posts/:id/resume", cfg.PostHandler.Resume)
		}

		if cfg.ProfileHandler != nil {
			api.POST("/profiles", cfg.ProfileHandler.CreateProfile)
			api.GET("/profiles", cfg.ProfileHandler.ListProfiles)
			api.GET("/profiles/:id", cfg.ProfileHandler.GetProfile)
			api.PATCH("/profiles/:id", cfg.ProfileHandler.UpdateProfile)
			api.DELETE("/profiles/:id", cfg.ProfileHandler.DeleteProfile)
			api.POST("/profiles/:id/crawl", cfg.ProfileHandler.TriggerCrawl)
			api.GET("/profiles/:id/links", cfg.ProfileHandler.ListLinks)
		}

		if cfg.QueueHandler != nil {
			api.GET("/queue/status", cfg.QueueHandler.Status)
			api.GET("/queue/review", cfg.QueueHandler.ReviewQueue)
			api.POST("/queue/pause-all", cfg.QueueHandler.PauseAll)
			api.POST("/queue/resume-all", cfg.QueueHandler.ResumeAll)
			api.GET("/queue/deadletters", cfg.QueueHandler.DeadLetters)
			api.POST("/queue/deadletters/:post_id/retry", cfg.QueueHandler.RetryDeadLetter)
			api.DELETE("/queue/deadletters", cfg.QueueHandler.ClearDeadLetters)
		}

		if cfg.EventsHandler != nil {
			api.GET("/events/stream", cfg.EventsHandler.Stream)
		}

		if cfg.RulesHandler != nil {
			api.GET("/rules", cfg.RulesHandler.ListRules)
			api.GET("/rules/:name", cfg.RulesHandler.GetRule)
			api.PUT("/rules/:name", cfg.RulesHandler.UpdateRule)
		}
	}

	return r
}
