package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Crawl cadence values for WebsiteProfile.RecrawlInterval.
const (
	RecrawlWeekly   = "weekly"
	RecrawlMonthly  = "monthly"
	RecrawlDisabled = "disabled"
)

// Crawl status lifecycle.
const (
	CrawlPending  = "pending"
	CrawlCrawling = "crawling"
	CrawlComplete = "complete"
	CrawlFailed   = "failed"
)

type WebsiteProfile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	WebsiteURL  string    `gorm:"column:website_url;not null" json:"website_url"`
	Description string    `gorm:"column:description" json:"description,omitempty"`

	DefaultTone         string `gorm:"column:default_tone" json:"default_tone,omitempty"`
	DefaultAudience     string `gorm:"column:default_audience" json:"default_audience,omitempty"`
	DefaultWordCount    int    `gorm:"column:default_word_count;not null;default:0" json:"default_word_count"`
	DefaultOutputFormat string `gorm:"column:default_output_format" json:"default_output_format,omitempty"`
	DefaultImageStyle   string `gorm:"column:default_image_style" json:"default_image_style,omitempty"`

	RecrawlInterval string     `gorm:"column:recrawl_interval;not null;default:disabled" json:"recrawl_interval"`
	CrawlStatus     string     `gorm:"column:crawl_status;not null;default:pending" json:"crawl_status"`
	LastCrawledAt   *time.Time `gorm:"column:last_crawled_at" json:"last_crawled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (WebsiteProfile) TableName() string { return "website_profile" }

func (p *WebsiteProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RecrawlInterval == "" {
		p.RecrawlInterval = RecrawlDisabled
	}
	if p.CrawlStatus == "" {
		p.CrawlStatus = CrawlPending
	}
	return nil
}
