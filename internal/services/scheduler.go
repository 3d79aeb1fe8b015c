package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/draftline-backend/internal/data/repos"
	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/queue"
)

// Recrawl cadences as durations. Monthly is a flat 30 days.
const (
	weeklyEvery  = 7 * 24 * time.Hour
	monthlyEvery = 30 * 24 * time.Hour
)

// Scheduler runs the daily recrawl sweep at midnight UTC. The sweep is
// idempotent: a crawl that finds nothing new changes nothing.
type Scheduler struct {
	log   *logger.Logger
	repos *repos.Set
	queue *queue.Client
	cron  *cron.Cron
}

func NewScheduler(baseLog *logger.Logger, reps *repos.Set, qc *queue.Client) *Scheduler {
	return &Scheduler{
		log:   baseLog.With("service", "Scheduler"),
		repos: reps,
		queue: qc,
		cron:  cron.New(cron.WithLocation(time.UTC)),
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("0 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.SweepRecrawls(ctx); err != nil {
			s.log.Error("recrawl sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("recrawl scheduler started", "schedule", "0 0 * * * UTC")
	return nil
}

// Stop waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SweepRecrawls enqueues a crawl for every profile whose cadence has
// elapsed. Never-crawled profiles are always due. Returns the number of
// crawls enqueued.
func (s *Scheduler) SweepRecrawls(ctx context.Context) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	profiles, err := s.repos.Profiles.ListRecrawlCandidates(dbc)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	enqueued := 0
	for _, profile := range profiles {
		if !recrawlDue(profile, now) {
			continue
		}
		if err := s.queue.EnqueueCrawl(ctx, profile.ID); err != nil {
			return enqueued, err
		}
		s.log.Info("recrawl enqueued", "profile_id", profile.ID, "interval", profile.RecrawlInterval)
		enqueued++
	}
	if enqueued > 0 {
		s.log.Info("recrawl sweep done", "candidates", len(profiles), "enqueued", enqueued)
	}
	return enqueued, nil
}

func recrawlDue(profile *content.WebsiteProfile, now time.Time) bool {
	var every time.Duration
	switch profile.RecrawlInterval {
	case content.RecrawlWeekly:
		every = weeklyEvery
	case content.RecrawlMonthly:
		every = monthlyEvery
	default:
		return false
	}
	if profile.LastCrawledAt == nil {
		return true
	}
	return now.Sub(*profile.LastCrawledAt) >= every
}
