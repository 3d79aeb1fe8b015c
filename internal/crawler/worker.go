package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/draftline-backend/internal/data/repos"
	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/observability"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/queue"
	"github.com/yungbote/draftline-backend/internal/realtime"
)

// Worker refreshes a profile's link catalog from its sitemap. Crawl
// failures mark the profile failed and are swallowed: they never reach
// the dead-letter queue and never touch posts.
type Worker struct {
	log     *logger.Logger
	repos   *repos.Set
	fetcher *Fetcher
	bus     realtime.Publisher
}

func NewWorker(baseLog *logger.Logger, reps *repos.Set, fetcher *Fetcher, bus realtime.Publisher) *Worker {
	return &Worker{
		log:     baseLog.With("component", "CrawlWorker"),
		repos:   reps,
		fetcher: fetcher,
		bus:     bus,
	}
}

// Handler adapts the worker to the queue contract.
func (w *Worker) Handler() queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		profileID, err := uuid.Parse(job.ProfileID)
		if err != nil {
			w.log.Error("bad profile id in job", "job_id", job.ID, "profile_id", job.ProfileID)
			return nil
		}
		return w.Crawl(ctx, profileID)
	}
}

// Crawl always returns nil: there is nothing to retry that a recrawl
// won't redo, and the schedule will come back around.
func (w *Worker) Crawl(ctx context.Context, profileID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	profile, err := w.repos.Profiles.GetByID(dbc, profileID)
	if err != nil {
		w.log.Error("load profile failed", "profile_id", profileID, "error", err)
		return nil
	}
	if profile == nil {
		w.log.Warn("profile not found, dropping crawl", "profile_id", profileID)
		return nil
	}

	if err := w.repos.Profiles.UpdateFields(dbc, profileID, map[string]interface{}{
		"crawl_status": content.CrawlCrawling,
	}); err != nil {
		w.log.Error("mark crawling failed", "profile_id", profileID, "error", err)
		return nil
	}
	w.publish(ctx, profileID, realtime.EventCrawlStarted, map[string]any{"website_url": profile.WebsiteURL})

	added, seen, crawlErr := w.syncLinks(ctx, profile)
	if crawlErr != nil {
		w.log.Warn("crawl failed", "profile_id", profileID, "url", profile.WebsiteURL, "error", crawlErr)
		_ = w.repos.Profiles.UpdateFields(dbc, profileID, map[string]interface{}{
			"crawl_status": content.CrawlFailed,
		})
		w.publish(ctx, profileID, realtime.EventCrawlFailed, map[string]any{"error": crawlErr.Error()})
		observability.Current().ObserveCrawl(false)
		return nil
	}

	if err := w.repos.Profiles.UpdateFields(dbc, profileID, map[string]interface{}{
		"crawl_status":    content.CrawlComplete,
		"last_crawled_at": time.Now().UTC(),
	}); err != nil {
		w.log.Error("mark crawl complete failed", "profile_id", profileID, "error", err)
	}
	w.publish(ctx, profileID, realtime.EventCrawlComplete, map[string]any{
		"urls_seen":   seen,
		"links_added": added,
	})
	observability.Current().ObserveCrawl(true)
	w.log.Info("crawl complete", "profile_id", profileID, "urls_seen", seen, "links_added", added)
	return nil
}

// syncLinks upserts sitemap entries into the catalog. Rows with
// source=generated are never touched.
func (w *Worker) syncLinks(ctx context.Context, profile *content.WebsiteProfile) (added, seen int, err error) {
	dbc := dbctx.Context{Ctx: ctx}
	entries, err := w.fetcher.Discover(ctx, profile.WebsiteURL)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range entries {
		seen++
		existing, err := w.repos.Links.GetByProfileAndURL(dbc, profile.ID, entry.URL)
		if err != nil {
			return added, seen, err
		}
		if existing != nil {
			if existing.Source == content.LinkSourceGenerated {
				continue
			}
			if existing.Title == "" {
				if title := w.fetcher.FetchTitle(ctx, entry.URL); title != "" {
					if err := w.repos.Links.UpdateFields(dbc, existing.ID, map[string]interface{}{"title": title}); err != nil {
						w.log.Warn("link title update failed", "url", entry.URL, "error", err)
					}
				}
			}
			continue
		}
		_, err = w.repos.Links.Create(dbc, []*content.InternalLink{{
			WebsiteProfileID: profile.ID,
			URL:              entry.URL,
			Title:            w.fetcher.FetchTitle(ctx, entry.URL),
			Slug:             SlugFromURL(entry.URL),
			Source:           content.LinkSourceSitemap,
		}})
		if err != nil {
			return added, seen, err
		}
		added++
	}
	return added, seen, nil
}

func (w *Worker) publish(ctx context.Context, profileID uuid.UUID, event string, fields map[string]any) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(ctx, profileID.String(), event, fields); err != nil {
		w.log.Warn("crawl event publish failed", "event", event, "error", err)
	}
}
