package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/pipeline"
	"github.com/yungbote/draftline-backend/internal/platform/imagegen"
	"github.com/yungbote/draftline-backend/internal/platform/llm"
	"github.com/yungbote/draftline-backend/internal/realtime"
)

const imagesSystem = `You are an art director. Return STRICT JSON only, no prose, shaped as:
{"images": [{"placement": "featured" | "<section slug>", "prompt": "<detailed image prompt>", "alt": "<alt text>"}]}
Include exactly one featured image plus one image per major section.`

// imageConcurrency bounds the generation fan-out.
const imageConcurrency = 3

// Manifest is the persisted image_manifest shape. A manifest-level Error
// marks a soft failure: the pipeline proceeds and the user can rerun.
type Manifest struct {
	Images         []ManifestImage `json:"images"`
	Error          string          `json:"error,omitempty"`
	TotalGenerated int             `json:"total_generated"`
	TotalFailed    int             `json:"total_failed"`
}

type ManifestImage struct {
	Placement string `json:"placement"`
	Prompt    string `json:"prompt"`
	Alt       string `json:"alt,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Generated bool   `json:"generated"`
	Error     string `json:"error,omitempty"`
}

func (d *Deps) images(ctx context.Context, snap *pipeline.Snapshot) (*pipeline.Result, error) {
	article := snap.FinalMD
	if article == "" {
		article = snap.Draft
	}
	prompt := assemble(
		d.rulesFor(pipeline.StageImages),
		configBlock(snap),
		"Image style", snap.ImageStyle,
		"Image colors", strings.Join(snap.ImageColors, ", "),
		"Exclusions", snap.ImageExclusions,
		"Article", article,
		"Task", "Plan the image set for this article.",
	)
	comp, err := d.LLM.Complete(ctx, llm.Request{System: imagesSystem, Prompt: prompt})
	if err != nil {
		return nil, err
	}
	meta := pipeline.Meta{Model: comp.Model, TokensIn: comp.TokensIn, TokensOut: comp.TokensOut}

	manifest, parseErr := parseManifest(comp.Text)
	if parseErr != nil {
		// Soft failure: record it on the manifest and let the runner proceed.
		pipeline.PublishLog(ctx, "image manifest parse failed: "+parseErr.Error(), pipeline.StageImages, "warning")
		bad := Manifest{Error: parseErr.Error()}
		raw, _ := json.Marshal(bad)
		return &pipeline.Result{
			Output:      string(raw),
			StatusDelta: map[string]string{pipeline.StageImages: content.StageFailed},
			Meta:        meta,
		}, nil
	}

	d.generateAll(ctx, snap, manifest)

	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return &pipeline.Result{Output: string(raw), Meta: meta}, nil
}

// generateAll fans the manifest out to the image provider, at most
// imageConcurrency in flight. Per-image failures are captured on the
// entry, never propagated.
func (d *Deps) generateAll(ctx context.Context, snap *pipeline.Snapshot, manifest *Manifest) {
	sem := semaphore.NewWeighted(imageConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	day := time.Now().UTC().Format("010206")
	for i := range manifest.Images {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			manifest.Images[i].Error = err.Error()
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			entry := &manifest.Images[idx]
			featured := strings.EqualFold(entry.Placement, "featured")

			data, err := d.Images.Generate(ctx, imagegen.Spec{Prompt: imagePrompt(snap, entry.Prompt), Featured: featured})
			if err == nil {
				name := fmt.Sprintf("%s-%s-%02d", snap.Slug, entry.Placement, idx+1)
				if featured {
					name = fmt.Sprintf("featured-%s-%02d", day, idx+1)
				}
				var saved string
				saved, err = d.Media.SaveImage(name, data)
				if err == nil {
					mu.Lock()
					entry.Filename = saved
					entry.Generated = true
					mu.Unlock()
					pipeline.PublishEvent(ctx, realtime.EventImageGenerated, map[string]any{
						"stage":     pipeline.StageImages,
						"placement": entry.Placement,
						"filename":  saved,
					})
					return
				}
			}
			mu.Lock()
			entry.Generated = false
			entry.Error = err.Error()
			mu.Unlock()
			pipeline.PublishEvent(ctx, realtime.EventImageFailed, map[string]any{
				"stage":     pipeline.StageImages,
				"placement": entry.Placement,
				"error":     err.Error(),
			})
		}(i)
	}
	wg.Wait()

	for _, img := range manifest.Images {
		if img.Generated {
			manifest.TotalGenerated++
		} else {
			manifest.TotalFailed++
		}
	}
}

func imagePrompt(snap *pipeline.Snapshot, base string) string {
	var b strings.Builder
	b.WriteString(base)
	if snap.ImageStyle != "" {
		b.WriteString("\nStyle: " + snap.ImageStyle)
	}
	if len(snap.ImageColors) > 0 {
		b.WriteString("\nPalette: " + strings.Join(snap.ImageColors, ", "))
	}
	if snap.ImageExclusions != "" {
		b.WriteString("\nDo not include: " + snap.ImageExclusions)
	}
	return b.String()
}

// parseManifest tolerates a fenced ```json block around the payload.
func parseManifest(text string) (*Manifest, error) {
	body := strings.TrimSpace(text)
	if _, block := extractFencedBlock(body, "json"); block != "" {
		body = block
	}
	if start := strings.Index(body, "{"); start > 0 {
		body = body[start:]
	}
	var m Manifest
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("manifest is not valid JSON: %w", err)
	}
	if len(m.Images) == 0 {
		return nil, fmt.Errorf("manifest contains no images")
	}
	return &m, nil
}
