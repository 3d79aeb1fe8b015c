package stages

import (
	"context"
	"fmt"

	"github.com/yungbote/draftline-backend/internal/pipeline"
	"github.com/yungbote/draftline-backend/internal/platform/llm"
)

const (
	researchSystem = "You are an expert SEO researcher. Gather current facts, statistics, sources and search intent for the topic. Cite sources inline."
	outlineSystem  = "You are an SEO content strategist. Produce a detailed, hierarchical outline in markdown with H2/H3 headings and per-section notes."
	writeSystem    = "You are an expert content writer. Write the complete article in markdown following the outline exactly. Hit the target word count."
	editSystem     = "You are a senior editor. Polish the draft for clarity, flow and SEO. Weave in relevant internal links from the provided list. Return the final markdown; when the output format includes wordpress, append an ```html block with the full HTML rendering."
	readySystem    = "You are a publication checker. Verify the final article is publication-ready and return a short readiness report: checklist of title, headings, links, images, word count, and any remaining issues."
)

func (d *Deps) research(ctx context.Context, snap *pipeline.Snapshot) (*pipeline.Result, error) {
	pipeline.PublishLog(ctx, "researching topic", pipeline.StageResearch, "info")
	prompt := assemble(
		d.rulesFor(pipeline.StageResearch),
		configBlock(snap),
		"Task", fmt.Sprintf("Research the topic %q for a blog post. Cover facts, statistics, common questions, and competitor angles.", snap.Topic),
	)
	comp, err := d.Search.Research(ctx, researchSystem, prompt)
	if err != nil {
		return nil, err
	}
	return textResult(comp), nil
}

func (d *Deps) outline(ctx context.Context, snap *pipeline.Snapshot) (*pipeline.Result, error) {
	prompt := assemble(
		d.rulesFor(pipeline.StageOutline),
		configBlock(snap),
		"Research", snap.Research,
		"Task", "Create the article outline.",
	)
	comp, err := d.LLM.Complete(ctx, llm.Request{System: outlineSystem, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return textResult(comp), nil
}

func (d *Deps) write(ctx context.Context, snap *pipeline.Snapshot) (*pipeline.Result, error) {
	prompt := assemble(
		d.rulesFor(pipeline.StageWrite),
		configBlock(snap),
		"Research", snap.Research,
		"Outline", snap.Outline,
		"Task", "Write the full article draft in markdown.",
	)
	comp, err := d.LLM.Complete(ctx, llm.Request{System: writeSystem, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return textResult(comp), nil
}

func (d *Deps) edit(ctx context.Context, snap *pipeline.Snapshot) (*pipeline.Result, error) {
	prompt := assemble(
		d.rulesFor(pipeline.StageEdit),
		configBlock(snap),
		"Draft", snap.Draft,
		"Internal links", linksBlock(snap.Links),
		"Task", "Edit the draft into the final article.",
	)
	comp, err := d.LLM.Complete(ctx, llm.Request{System: editSystem, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	md, html := extractFencedBlock(comp.Text, "html")
	res := textResult(comp)
	res.Output = md
	res.HTML = html
	return res, nil
}

func (d *Deps) ready(ctx context.Context, snap *pipeline.Snapshot) (*pipeline.Result, error) {
	prompt := assemble(
		d.rulesFor(pipeline.StageReady),
		configBlock(snap),
		"Final article", snap.FinalMD,
		"Image manifest", snap.ImageManifest,
		"Task", "Produce the readiness report.",
	)
	comp, err := d.LLM.Complete(ctx, llm.Request{System: readySystem, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	return textResult(comp), nil
}

func textResult(comp *llm.Completion) *pipeline.Result {
	return &pipeline.Result{
		Output: comp.Text,
		Meta: pipeline.Meta{
			Model:     comp.Model,
			TokensIn:  comp.TokensIn,
			TokensOut: comp.TokensOut,
		},
	}
}
