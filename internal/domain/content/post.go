package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reserved current_stage tokens. Disjoint from registered stage names.
const (
	StatePending  = "pending"
	StatePaused   = "paused"
	StateComplete = "complete"
	StateFailed   = "failed"
)

// Stage gate modes.
const (
	ModeAuto        = "auto"
	ModeReview      = "review"
	ModeApproveOnly = "approve_only"
)

// Per-stage statuses.
const (
	StageRunning  = "running"
	StageReview   = "review"
	StageComplete = "complete"
	StageFailed   = "failed"
)

// ErrorLogKey is the stage_logs slot that records a terminal failure.
const ErrorLogKey = "_error"

// StageLog holds the metrics recorded after a stage execution. The same
// shape doubles as the _error record, where Message and FailedAt are set.
type StageLog struct {
	Stage     string  `json:"stage,omitempty"`
	Model     string  `json:"model,omitempty"`
	TokensIn  int     `json:"tokens_in,omitempty"`
	TokensOut int     `json:"tokens_out,omitempty"`
	DurationS float64 `json:"duration_s,omitempty"`
	CostUSD   float64 `json:"cost_usd,omitempty"`
	Message   string  `json:"message,omitempty"`
	FailedAt  string  `json:"failed_at,omitempty"`
}

// ExecutionLog is one append-only audit trail entry.
type ExecutionLog struct {
	Timestamp string         `json:"timestamp"`
	Stage     string         `json:"stage,omitempty"`
	Level     string         `json:"level"`
	Event     string         `json:"event"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

type Post struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WebsiteProfileID *uuid.UUID `gorm:"type:uuid;column:website_profile_id;index" json:"website_profile_id,omitempty"`

	Slug     string `gorm:"column:slug;not null;index" json:"slug"`
	Topic    string `gorm:"column:topic;not null" json:"topic"`
	Audience string `gorm:"column:audience" json:"audience,omitempty"`
	Tone     string `gorm:"column:tone" json:"tone,omitempty"`

	TargetWordCount int    `gorm:"column:target_word_count;not null;default:0" json:"target_word_count"`
	OutputFormat    string `gorm:"column:output_format" json:"output_format,omitempty"`
	Priority        int    `gorm:"column:priority;not null;default:0" json:"priority"`

	RelatedKeywords  datatypes.JSONSlice[string] `gorm:"column:related_keywords" json:"related_keywords,omitempty"`
	ImageStyle       string                      `gorm:"column:image_style" json:"image_style,omitempty"`
	ImageColors      datatypes.JSONSlice[string] `gorm:"column:image_colors" json:"image_colors,omitempty"`
	ImageExclusions  string                      `gorm:"column:image_exclusions" json:"image_exclusions,omitempty"`
	RequiredMentions datatypes.JSONSlice[string] `gorm:"column:required_mentions" json:"required_mentions,omitempty"`
	ThingsToAvoid    datatypes.JSONSlice[string] `gorm:"column:things_to_avoid" json:"things_to_avoid,omitempty"`
	CompetitorURLs   datatypes.JSONSlice[string] `gorm:"column:competitor_urls" json:"competitor_urls,omitempty"`

	ResearchContent  string         `gorm:"column:research_content" json:"research_content,omitempty"`
	OutlineContent   string         `gorm:"column:outline_content" json:"outline_content,omitempty"`
	DraftContent     string         `gorm:"column:draft_content" json:"draft_content,omitempty"`
	FinalMDContent   string         `gorm:"column:final_md_content" json:"final_md_content,omitempty"`
	FinalHTMLContent string         `gorm:"column:final_html_content" json:"final_html_content,omitempty"`
	ImageManifest    datatypes.JSON `gorm:"column:image_manifest" json:"image_manifest,omitempty"`
	ReadyContent     string         `gorm:"column:ready_content" json:"ready_content,omitempty"`

	StageSettings datatypes.JSONType[map[string]string]   `gorm:"column:stage_settings" json:"stage_settings"`
	StageStatus   datatypes.JSONType[map[string]string]   `gorm:"column:stage_status" json:"stage_status"`
	StageLogs     datatypes.JSONType[map[string]StageLog] `gorm:"column:stage_logs" json:"stage_logs"`
	ExecutionLogs datatypes.JSONSlice[ExecutionLog]       `gorm:"column:execution_logs" json:"execution_logs"`

	CurrentStage string     `gorm:"column:current_stage;not null;default:pending;index" json:"current_stage"`
	CreatedAt    time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Post) TableName() string { return "post" }

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CurrentStage == "" {
		p.CurrentStage = StatePending
	}
	return nil
}

// SettingFor returns the gate mode for a stage, defaulting to review when
// the setting is absent or unrecognised.
func (p *Post) SettingFor(stage string) string {
	mode, ok := p.StageSettings.Data()[stage]
	if !ok {
		return ModeReview
	}
	switch mode {
	case ModeAuto, ModeReview, ModeApproveOnly:
		return mode
	default:
		return ModeReview
	}
}

func (p *Post) SetSetting(stage, mode string) {
	m := p.StageSettings.Data()
	if m == nil {
		m = map[string]string{}
	}
	m[stage] = mode
	p.StageSettings = datatypes.NewJSONType(m)
}

// StatusFor returns the recorded status for a stage ("" when absent).
func (p *Post) StatusFor(stage string) string {
	return p.StageStatus.Data()[stage]
}

func (p *Post) SetStatus(stage, status string) {
	m := p.StageStatus.Data()
	if m == nil {
		m = map[string]string{}
	}
	m[stage] = status
	p.StageStatus = datatypes.NewJSONType(m)
}

func (p *Post) StageLogFor(stage string) (StageLog, bool) {
	entry, ok := p.StageLogs.Data()[stage]
	return entry, ok
}

func (p *Post) SetStageLog(stage string, entry StageLog) {
	m := p.StageLogs.Data()
	if m == nil {
		m = map[string]StageLog{}
	}
	m[stage] = entry
	p.StageLogs = datatypes.NewJSONType(m)
}

func (p *Post) ClearStageLog(stage string) {
	m := p.StageLogs.Data()
	if m == nil {
		return
	}
	delete(m, stage)
	p.StageLogs = datatypes.NewJSONType(m)
}

func (p *Post) AppendExecutionLog(entry ExecutionLog) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	p.ExecutionLogs = append(p.ExecutionLogs, entry)
}
