package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/draftline-backend/internal/pipeline"
)

func TestConfigBlockAppliesDefaults(t *testing.T) {
	got := configBlock(&pipeline.Snapshot{Topic: "Go generics"})

	if !strings.Contains(got, "Topic: Go generics\n") {
		t.Fatalf("topic missing:\n%s", got)
	}
	if !strings.Contains(got, "Tone: "+DefaultTone+"\n") {
		t.Fatalf("default tone missing:\n%s", got)
	}
	if !strings.Contains(got, fmt.Sprintf("Target word count: %d\n", DefaultWordCount)) {
		t.Fatalf("default word count missing:\n%s", got)
	}
	if !strings.Contains(got, "Output format: "+DefaultFormat+"\n") {
		t.Fatalf("default format missing:\n%s", got)
	}
	if strings.Contains(got, "Audience:") {
		t.Fatalf("empty audience should be omitted:\n%s", got)
	}
}

func TestConfigBlockExplicitValuesWin(t *testing.T) {
	got := configBlock(&pipeline.Snapshot{
		Topic:            "Go generics",
		Audience:         "Backend developers",
		Tone:             "Formal",
		TargetWordCount:  1200,
		OutputFormat:     "markdown",
		RelatedKeywords:  []string{"type parameters", "constraints"},
		RequiredMentions: []string{"go 1.18"},
		ThingsToAvoid:    []string{"hype"},
	})

	for _, want := range []string{
		"Audience: Backend developers\n",
		"Tone: Formal\n",
		"Target word count: 1200\n",
		"Output format: markdown\n",
		"Related keywords: type parameters, constraints\n",
		"Must mention: go 1.18\n",
		"Avoid: hype\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}

func TestAssemble(t *testing.T) {
	got := assemble("be brief", "Topic: x",
		"Research", "some findings",
		"Outline", "",
		"Task", "write it")

	wantOrder := []string{"## Rules\nbe brief", "## Brief\nTopic: x", "## Research\nsome findings", "## Task\nwrite it"}
	last := -1
	for _, part := range wantOrder {
		idx := strings.Index(got, part)
		if idx < 0 {
			t.Fatalf("missing %q in:\n%s", part, got)
		}
		if idx < last {
			t.Fatalf("section out of order: %q", part)
		}
		last = idx
	}
	if strings.Contains(got, "## Outline") {
		t.Fatalf("empty section should be skipped:\n%s", got)
	}

	noRules := assemble("", "Topic: x")
	if strings.Contains(noRules, "## Rules") {
		t.Fatalf("rules header without rules:\n%s", noRules)
	}
}

func TestLinksBlockCapsAtFifty(t *testing.T) {
	var links []pipeline.LinkRef
	for i := 0; i < 60; i++ {
		links = append(links, pipeline.LinkRef{URL: fmt.Sprintf("https://x.example/p%d/", i), Title: fmt.Sprintf("Post %d", i)})
	}
	got := linksBlock(links)
	if n := strings.Count(got, "\n"); n != 50 {
		t.Fatalf("rendered %d links, want 50", n)
	}

	if linksBlock(nil) != "" {
		t.Fatal("no links must render empty")
	}

	untitled := linksBlock([]pipeline.LinkRef{{URL: "https://x.example/p/"}})
	if !strings.Contains(untitled, "[https://x.example/p/](https://x.example/p/)") {
		t.Fatalf("title fallback missing: %q", untitled)
	}
}

func TestExtractFencedBlock(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"a\": 1}\n```\nThanks."
	rest, block := extractFencedBlock(text, "json")
	if block != `{"a": 1}` {
		t.Fatalf("block = %q", block)
	}
	if strings.Contains(rest, "```") {
		t.Fatalf("rest still fenced: %q", rest)
	}

	rest, block = extractFencedBlock("no fence here", "json")
	if block != "" || rest != "no fence here" {
		t.Fatalf("rest=%q block=%q", rest, block)
	}

	_, block = extractFencedBlock("```json\n{\"a\": 1}", "json")
	if block != "" {
		t.Fatalf("unterminated fence should yield empty block, got %q", block)
	}
}

func TestRulesFor(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "blog-write.md"), []byte("  Keep sentences short.\n"), 0o644); err != nil {
		t.Fatalf("write rule: %v", err)
	}
	d := &Deps{RulesDir: dir}

	if got := d.rulesFor(pipeline.StageWrite); got != "Keep sentences short." {
		t.Fatalf("rules = %q", got)
	}
	if got := d.rulesFor(pipeline.StageEdit); got != "" {
		t.Fatalf("missing file should be empty, got %q", got)
	}
	if got := d.rulesFor("bogus"); got != "" {
		t.Fatalf("unknown stage should be empty, got %q", got)
	}
}
