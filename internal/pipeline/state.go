package pipeline

import (
	"github.com/google/uuid"

	"github.com/yungbote/draftline-backend/internal/domain/content"
)

// LinkRef is one internal-link candidate handed to the edit stage.
type LinkRef struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Snapshot is the immutable state handed to a stage function. Built from
// a fresh Post read at the start of each iteration; stage functions never
// see the Post itself.
type Snapshot struct {
	PostID uuid.UUID
	Slug   string

	Topic            string
	Audience         string
	Tone             string
	TargetWordCount  int
	OutputFormat     string
	RelatedKeywords  []string
	ImageStyle       string
	ImageColors      []string
	ImageExclusions  string
	RequiredMentions []string
	ThingsToAvoid    []string
	CompetitorURLs   []string

	Research      string
	Outline       string
	Draft         string
	FinalMD       string
	FinalHTML     string
	ImageManifest string
	Ready         string

	WebsiteURL string
	Links      []LinkRef
}

// BuildSnapshot copies the post's config and prior outputs. profile and
// links may be nil/empty for posts without a profile.
func BuildSnapshot(p *content.Post, profile *content.WebsiteProfile, links []*content.InternalLink) *Snapshot {
	snap := &Snapshot{
		PostID:           p.ID,
		Slug:             p.Slug,
		Topic:            p.Topic,
		Audience:         p.Audience,
		Tone:             p.Tone,
		TargetWordCount:  p.TargetWordCount,
		OutputFormat:     p.OutputFormat,
		RelatedKeywords:  append([]string(nil), p.RelatedKeywords...),
		ImageStyle:       p.ImageStyle,
		ImageColors:      append([]string(nil), p.ImageColors...),
		ImageExclusions:  p.ImageExclusions,
		RequiredMentions: append([]string(nil), p.RequiredMentions...),
		ThingsToAvoid:    append([]string(nil), p.ThingsToAvoid...),
		CompetitorURLs:   append([]string(nil), p.CompetitorURLs...),
		Research:         p.ResearchContent,
		Outline:          p.OutlineContent,
		Draft:            p.DraftContent,
		FinalMD:          p.FinalMDContent,
		FinalHTML:        p.FinalHTMLContent,
		ImageManifest:    string(p.ImageManifest),
		Ready:            p.ReadyContent,
	}
	if profile != nil {
		snap.WebsiteURL = profile.WebsiteURL
	}
	for _, l := range links {
		if l == nil {
			continue
		}
		snap.Links = append(snap.Links, LinkRef{URL: l.URL, Title: l.Title})
	}
	return snap
}
