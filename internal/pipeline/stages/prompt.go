package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/draftline-backend/internal/pipeline"
)

// Config defaults applied when a post leaves a field empty.
const (
	DefaultTone      = "Conversational and friendly"
	DefaultWordCount = 2000
	DefaultFormat    = "both"
)

// rulesFor loads the stage's rules file (blog-<stage>.md). Missing file
// means an empty rules block, never an error.
func (d *Deps) rulesFor(stage string) string {
	st, ok := pipeline.Lookup(stage)
	if !ok || d.RulesDir == "" || st.RulesFile == "" {
		return ""
	}
	raw, err := os.ReadFile(filepath.Join(d.RulesDir, st.RulesFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// configBlock renders the post's brief the same way for every stage.
func configBlock(snap *pipeline.Snapshot) string {
	tone := snap.Tone
	if tone == "" {
		tone = DefaultTone
	}
	words := snap.TargetWordCount
	if words <= 0 {
		words = DefaultWordCount
	}
	format := snap.OutputFormat
	if format == "" {
		format = DefaultFormat
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", snap.Topic)
	if snap.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", snap.Audience)
	}
	fmt.Fprintf(&b, "Tone: %s\n", tone)
	fmt.Fprintf(&b, "Target word count: %d\n", words)
	fmt.Fprintf(&b, "Output format: %s\n", format)
	if len(snap.RelatedKeywords) > 0 {
		fmt.Fprintf(&b, "Related keywords: %s\n", strings.Join(snap.RelatedKeywords, ", "))
	}
	if len(snap.RequiredMentions) > 0 {
		fmt.Fprintf(&b, "Must mention: %s\n", strings.Join(snap.RequiredMentions, ", "))
	}
	if len(snap.ThingsToAvoid) > 0 {
		fmt.Fprintf(&b, "Avoid: %s\n", strings.Join(snap.ThingsToAvoid, ", "))
	}
	if len(snap.CompetitorURLs) > 0 {
		fmt.Fprintf(&b, "Competitors: %s\n", strings.Join(snap.CompetitorURLs, ", "))
	}
	return b.String()
}

// assemble builds the final prompt: rules, brief, then the stage-specific
// sections in order.
func assemble(rules, brief string, sections ...string) string {
	var parts []string
	if rules != "" {
		parts = append(parts, "## Rules\n"+rules)
	}
	parts = append(parts, "## Brief\n"+brief)
	for i := 0; i+1 < len(sections); i += 2 {
		title, body := sections[i], strings.TrimSpace(sections[i+1])
		if body == "" {
			continue
		}
		parts = append(parts, "## "+title+"\n"+body)
	}
	return strings.Join(parts, "\n\n")
}

// linksBlock renders internal-link candidates for the edit stage, capped
// at 50 entries.
func linksBlock(links []pipeline.LinkRef) string {
	if len(links) == 0 {
		return ""
	}
	if len(links) > 50 {
		links = links[:50]
	}
	var b strings.Builder
	for _, l := range links {
		title := l.Title
		if title == "" {
			title = l.URL
		}
		fmt.Fprintf(&b, "- [%s](%s)\n", title, l.URL)
	}
	return b.String()
}

// extractFencedBlock pulls the first ```lang fenced block out of text,
// returning the remainder and the block body.
func extractFencedBlock(text, lang string) (rest, block string) {
	open := "```" + lang
	start := strings.Index(text, open)
	if start < 0 {
		return text, ""
	}
	bodyStart := start + len(open)
	end := strings.Index(text[bodyStart:], "```")
	if end < 0 {
		return text, ""
	}
	block = strings.TrimSpace(text[bodyStart : bodyStart+end])
	rest = strings.TrimSpace(text[:start] + text[bodyStart+end+3:])
	return rest, block
}
