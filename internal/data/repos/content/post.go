package content

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/draftline-backend/internal/domain"
	"github.com/yungbote/draftline-backend/internal/pkg/dbctx"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

type PostRepo interface {
	Create(dbc dbctx.Context, posts []*types.Post) ([]*types.Post, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Post, error)
	List(dbc dbctx.Context) ([]*types.Post, error)
	ListByProfile(dbc dbctx.Context, profileID uuid.UUID) ([]*types.Post, error)
	Save(dbc dbctx.Context, post *types.Post) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	CountByCurrentStage(dbc dbctx.Context) (map[string]int64, error)
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type postRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostRepo(db *gorm.DB, baseLog *logger.Logger) PostRepo {
	return &postRepo{db: db, log: baseLog.With("repo", "PostRepo")}
}

func (r *postRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *postRepo) Create(dbc dbctx.Context, posts []*types.Post) ([]*types.Post, error) {
	if len(posts) == 0 {
		return []*types.Post{}, nil
	}
	if err := r.conn(dbc).Create(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Post, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var post types.Post
	err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&post).Error
	if err != nil {
		return nil, err
	}
	if post.ID == uuid.Nil {
		return nil, nil
	}
	return &post, nil
}

func (r *postRepo) List(dbc dbctx.Context) ([]*types.Post, error) {
	var out []*types.Post
	if err := r.conn(dbc).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) ListByProfile(dbc dbctx.Context, profileID uuid.UUID) ([]*types.Post, error) {
	var out []*types.Post
	if profileID == uuid.Nil {
		return out, nil
	}
	if err := r.conn(dbc).
		Where("website_profile_id = ?", profileID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepo) Save(dbc dbctx.Context, post *types.Post) error {
	if post == nil || post.ID == uuid.Nil {
		return nil
	}
	return r.conn(dbc).Save(post).Error
}

func (r *postRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.conn(dbc).Model(&types.Post{}).Where("id = ?", id).Updates(updates).Error
}

func (r *postRepo) CountByCurrentStage(dbc dbctx.Context) (map[string]int64, error) {
	type row struct {
		CurrentStage string
		N            int64
	}
	var rows []row
	err := r.conn(dbc).Model(&types.Post{}).
		Select("current_stage, count(*) as n").
		Group("current_stage").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.CurrentStage] = rw.N
	}
	return out, nil
}

// Delete removes the post and nulls the back-ref on any catalog link the
// post generated, so promoted links survive as plain catalog entries.
func (r *postRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.conn(dbc).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&types.InternalLink{}).
			Where("generated_post_id = ?", id).
			Update("generated_post_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&types.Post{}).Error
	})
}
