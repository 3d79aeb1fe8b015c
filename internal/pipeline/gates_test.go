package pipeline

import (
	"testing"

	"github.com/yungbote/draftline-backend/internal/domain/content"
)

func TestDecideMapsModes(t *testing.T) {
	p := &content.Post{}
	p.SetSetting(StageResearch, content.ModeAuto)
	p.SetSetting(StageOutline, content.ModeReview)
	p.SetSetting(StageWrite, content.ModeApproveOnly)

	if got := Decide(p, StageResearch); got != Proceed {
		t.Fatalf("auto: got %v, want Proceed", got)
	}
	if got := Decide(p, StageOutline); got != PauseForReview {
		t.Fatalf("review: got %v, want PauseForReview", got)
	}
	if got := Decide(p, StageWrite); got != PauseForApproval {
		t.Fatalf("approve_only: got %v, want PauseForApproval", got)
	}
}

func TestDecideDefaultsToReview(t *testing.T) {
	p := &content.Post{}
	if got := Decide(p, StageEdit); got != PauseForReview {
		t.Fatalf("absent setting: got %v, want PauseForReview", got)
	}

	p.SetSetting(StageEdit, "yolo")
	if got := Decide(p, StageEdit); got != PauseForReview {
		t.Fatalf("unknown mode: got %v, want PauseForReview", got)
	}
}

func TestDecisionPauses(t *testing.T) {
	if Proceed.Pauses() {
		t.Fatal("Proceed should not pause")
	}
	if !PauseForReview.Pauses() || !PauseForApproval.Pauses() {
		t.Fatal("review/approval decisions should pause")
	}
}
