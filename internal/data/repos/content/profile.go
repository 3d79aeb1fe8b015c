package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/draftline-backend/internal/domain"
	model "github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

type ProfileRepo interface {
	Create(dbc dbctx.Context, profiles []*types.WebsiteProfile) ([]*types.WebsiteProfile, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.WebsiteProfile, error)
	List(dbc dbctx.Context) ([]*types.WebsiteProfile, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// ListRecrawlCandidates returns profiles with a recrawl cadence that are
	// not currently being crawled. Elapsed-interval filtering is the caller's.
	ListRecrawlCandidates(dbc dbctx.Context) ([]*types.WebsiteProfile, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (r *profileRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *profileRepo) Create(dbc dbctx.Context, profiles []*types.WebsiteProfile) ([]*types.WebsiteProfile, error) {
	if len(profiles) == 0 {
		return []*types.WebsiteProfile{}, nil
	}
	if err := r.conn(dbc).Create(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.WebsiteProfile, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var profile types.WebsiteProfile
	err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == uuid.Nil {
		return nil, nil
	}
	return &profile, nil
}

func (r *profileRepo) List(dbc dbctx.Context) ([]*types.WebsiteProfile, error) {
	var out []*types.WebsiteProfile
	if err := r.conn(dbc).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *profileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.conn(dbc).Model(&types.WebsiteProfile{}).Where("id = ?", id).Updates(updates).Error
}

func (r *profileRepo) ListRecrawlCandidates(dbc dbctx.Context) ([]*types.WebsiteProfile, error) {
	var out []*types.WebsiteProfile
	err := r.conn(dbc).
		Where("recrawl_interval IN ?", []string{model.RecrawlWeekly, model.RecrawlMonthly}).
		Where("crawl_status <> ?", model.CrawlCrawling).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the profile and its link catalog in one transaction.
func (r *profileRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.conn(dbc).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("website_profile_id = ?", id).Delete(&types.InternalLink{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&types.WebsiteProfile{}).Error
	})
}
