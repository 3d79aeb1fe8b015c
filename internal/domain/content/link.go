package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Link sources.
const (
	LinkSourceSitemap   = "sitemap"
	LinkSourceGenerated = "generated"
	LinkSourceManual    = "manual"
)

// InternalLink is one known URL under a profile's site. Uniqueness is
// (profile, url); generated rows carry a back-ref to their post.
type InternalLink struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WebsiteProfileID uuid.UUID  `gorm:"type:uuid;column:website_profile_id;not null;uniqueIndex:idx_link_profile_url" json:"website_profile_id"`
	URL              string     `gorm:"column:url;not null;uniqueIndex:idx_link_profile_url" json:"url"`
	Title            string     `gorm:"column:title" json:"title,omitempty"`
	Slug             string     `gorm:"column:slug" json:"slug,omitempty"`
	Source           string     `gorm:"column:source;not null;default:manual;index" json:"source"`
	GeneratedPostID  *uuid.UUID `gorm:"type:uuid;column:generated_post_id" json:"generated_post_id,omitempty"`

	Keywords datatypes.JSONSlice[string] `gorm:"column:keywords" json:"keywords,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (InternalLink) TableName() string { return "internal_link" }

func (l *InternalLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Source == "" {
		l.Source = LinkSourceManual
	}
	return nil
}
