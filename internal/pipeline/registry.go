package pipeline

import (
	"strings"

	"gorm.io/datatypes"

	"github.com/yungbote/draftline-backend/internal/domain/content"
)

// Stage names, in execution order.
const (
	StageResearch = "research"
	StageOutline  = "outline"
	StageWrite    = "write"
	StageEdit     = "edit"
	StageImages   = "images"
	StageReady    = "ready"
)

// Provider tags.
const (
	ProviderSearch   = "search"
	ProviderLLMText  = "llm-text"
	ProviderImageGen = "image-gen"
)

// Stage is one registry row. The runner is oblivious to what a stage
// does; adding one is a row here plus a stage function.
type Stage struct {
	Name      string
	OutputKey string
	RulesFile string
	Providers []string

	// Content reads the persisted slot; Apply writes a result into it.
	Content func(p *content.Post) string
	Apply   func(p *content.Post, res *Result)
}

// Registry declares the fixed stage order.
var Registry = []Stage{
	{
		Name:      StageResearch,
		OutputKey: "research",
		RulesFile: "blog-research.md",
		Providers: []string{ProviderSearch},
		Content:   func(p *content.Post) string { return p.ResearchContent },
		Apply:     func(p *content.Post, res *Result) { p.ResearchContent = res.Output },
	},
	{
		Name:      StageOutline,
		OutputKey: "outline",
		RulesFile: "blog-outline.md",
		Providers: []string{ProviderLLMText},
		Content:   func(p *content.Post) string { return p.OutlineContent },
		Apply:     func(p *content.Post, res *Result) { p.OutlineContent = res.Output },
	},
	{
		Name:      StageWrite,
		OutputKey: "draft",
		RulesFile: "blog-write.md",
		Providers: []string{ProviderLLMText},
		Content:   func(p *content.Post) string { return p.DraftContent },
		Apply:     func(p *content.Post, res *Result) { p.DraftContent = res.Output },
	},
	{
		Name:      StageEdit,
		OutputKey: "final_md",
		RulesFile: "blog-edit.md",
		Providers: []string{ProviderLLMText},
		Content:   func(p *content.Post) string { return p.FinalMDContent },
		Apply: func(p *content.Post, res *Result) {
			p.FinalMDContent = res.Output
			if res.HTML != "" {
				p.FinalHTMLContent = res.HTML
			}
		},
	},
	{
		Name:      StageImages,
		OutputKey: "image_manifest",
		RulesFile: "blog-images.md",
		Providers: []string{ProviderLLMText, ProviderImageGen},
		Content:   func(p *content.Post) string { return string(p.ImageManifest) },
		Apply: func(p *content.Post, res *Result) {
			p.ImageManifest = datatypes.JSON([]byte(res.Output))
		},
	},
	{
		Name:      StageReady,
		OutputKey: "ready",
		RulesFile: "blog-ready.md",
		Providers: []string{ProviderLLMText},
		Content:   func(p *content.Post) string { return p.ReadyContent },
		Apply:     func(p *content.Post, res *Result) { p.ReadyContent = res.Output },
	},
}

// StageNames returns the registry order.
func StageNames() []string {
	out := make([]string, len(Registry))
	for i, s := range Registry {
		out[i] = s.Name
	}
	return out
}

// Lookup returns the registry row for a stage name.
func Lookup(name string) (Stage, bool) {
	name = strings.TrimSpace(name)
	for _, s := range Registry {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// IsStageName reports whether name is a registered stage (as opposed to
// a reserved current_stage token).
func IsStageName(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// NextIncomplete returns the lowest-indexed stage whose status is not
// complete, or "" when every stage is complete.
func NextIncomplete(p *content.Post) string {
	for _, s := range Registry {
		if p.StatusFor(s.Name) != content.StageComplete {
			return s.Name
		}
	}
	return ""
}

// AllComplete reports whether every registered stage is complete.
func AllComplete(p *content.Post) bool {
	return NextIncomplete(p) == ""
}
