package pipeline

import (
	"github.com/yungbote/draftline-backend/internal/domain/content"
)

// Decision is the gate outcome for one stage.
type Decision int

const (
	Proceed Decision = iota
	PauseForReview
	PauseForApproval
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case PauseForReview:
		return "pause_for_review"
	case PauseForApproval:
		return "pause_for_approval"
	default:
		return "unknown"
	}
}

// Pauses reports whether the decision suspends the pipeline.
func (d Decision) Pauses() bool { return d != Proceed }

// Decide maps a post's gate mode for a stage onto a decision. Absent or
// unrecognised modes default to review.
func Decide(p *content.Post, stage string) Decision {
	switch p.SettingFor(stage) {
	case content.ModeAuto:
		return Proceed
	case content.ModeApproveOnly:
		return PauseForApproval
	default:
		return PauseForReview
	}
}
