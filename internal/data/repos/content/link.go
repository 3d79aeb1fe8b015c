package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/draftline-backend/internal/domain"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

type LinkRepo interface {
	Create(dbc dbctx.Context, links []*types.InternalLink) ([]*types.InternalLink, error)
	GetByProfileAndURL(dbc dbctx.Context, profileID uuid.UUID, url string) (*types.InternalLink, error)
	ListByProfile(dbc dbctx.Context, profileID uuid.UUID) ([]*types.InternalLink, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteByProfile(dbc dbctx.Context, profileID uuid.UUID) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type linkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLinkRepo(db *gorm.DB, baseLog *logger.Logger) LinkRepo {
	return &linkRepo{db: db, log: baseLog.With("repo", "LinkRepo")}
}

func (r *linkRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *linkRepo) Create(dbc dbctx.Context, links []*types.InternalLink) ([]*types.InternalLink, error) {
	if len(links) == 0 {
		return []*types.InternalLink{}, nil
	}
	if err := r.conn(dbc).Create(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *linkRepo) GetByProfileAndURL(dbc dbctx.Context, profileID uuid.UUID, url string) (*types.InternalLink, error) {
	if profileID == uuid.Nil || url == "" {
		return nil, nil
	}
	var link types.InternalLink
	err := r.conn(dbc).
		Where("website_profile_id = ? AND url = ?", profileID, url).
		Limit(1).
		Find(&link).Error
	if err != nil {
		return nil, err
	}
	if link.ID == uuid.Nil {
		return nil, nil
	}
	return &link, nil
}

func (r *linkRepo) ListByProfile(dbc dbctx.Context, profileID uuid.UUID) ([]*types.InternalLink, error) {
	var out []*types.InternalLink
	if profileID == uuid.Nil {
		return out, nil
	}
	if err := r.conn(dbc).
		Where("website_profile_id = ?", profileID).
		Order("url ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *linkRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.conn(dbc).Model(&types.InternalLink{}).Where("id = ?", id).Updates(updates).Error
}

func (r *linkRepo) DeleteByProfile(dbc dbctx.Context, profileID uuid.UUID) error {
	if profileID == uuid.Nil {
		return nil
	}
	return r.conn(dbc).Where("website_profile_id = ?", profileID).Delete(&types.InternalLink{}).Error
}

func (r *linkRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.conn(dbc).Where("id = ?", id).Delete(&types.InternalLink{}).Error
}
