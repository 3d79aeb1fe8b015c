package stages

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/pipeline"
	"github.com/yungbote/draftline-backend/internal/platform/imagegen"
	"github.com/yungbote/draftline-backend/internal/platform/llm"
	"github.com/yungbote/draftline-backend/internal/platform/localmedia"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

type fakeLLM struct {
	text string
}

func (f *fakeLLM) Complete(_ context.Context, _ llm.Request) (*llm.Completion, error) {
	return &llm.Completion{Text: f.text, Model: "test-model", TokensIn: 10, TokensOut: 20}, nil
}

type fakeImages struct {
	failOn map[string]error
	calls  int
}

func (f *fakeImages) Generate(_ context.Context, spec imagegen.Spec) ([]byte, error) {
	f.calls++
	for frag, err := range f.failOn {
		if strings.Contains(spec.Prompt, frag) {
			return nil, err
		}
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (f *fakeImages) ModelName() string { return "fake-image-model" }

func newMediaStore(t *testing.T) *localmedia.Store {
	t.Helper()
	t.Setenv("MEDIA_DIR", t.TempDir())
	store, err := localmedia.NewStore(logger.Nop())
	if err != nil {
		t.Fatalf("media store: %v", err)
	}
	return store
}

func TestParseManifest(t *testing.T) {
	raw := `{"images":[{"placement":"featured","prompt":"a gopher","alt":"gopher"}]}`

	m, err := parseManifest(raw)
	if err != nil {
		t.Fatalf("bare json: %v", err)
	}
	if len(m.Images) != 1 || m.Images[0].Placement != "featured" {
		t.Fatalf("manifest = %+v", m)
	}

	fenced := "Sure, here is the plan:\n```json\n" + raw + "\n```"
	if _, err := parseManifest(fenced); err != nil {
		t.Fatalf("fenced json: %v", err)
	}

	prosed := "The manifest follows. " + raw
	if _, err := parseManifest(prosed); err != nil {
		t.Fatalf("leading prose: %v", err)
	}

	if _, err := parseManifest("not json at all"); err == nil {
		t.Fatal("invalid json must error")
	}
	if _, err := parseManifest(`{"images":[]}`); err == nil {
		t.Fatal("empty image list must error")
	}
}

func TestImagesStageGeneratesManifest(t *testing.T) {
	manifest := `{"images":[
		{"placement":"featured","prompt":"hero gopher","alt":"gopher"},
		{"placement":"intro","prompt":"small gopher","alt":"gopher"}
	]}`
	imgs := &fakeImages{}
	d := &Deps{
		Log:    logger.Nop(),
		LLM:    &fakeLLM{text: "```json\n" + manifest + "\n```"},
		Images: imgs,
		Media:  newMediaStore(t),
	}

	res, err := d.images(context.Background(), &pipeline.Snapshot{Slug: "go-routines", Topic: "T", FinalMD: "# Article"})
	if err != nil {
		t.Fatalf("images: %v", err)
	}
	if res.StatusDelta != nil {
		t.Fatalf("unexpected status delta: %v", res.StatusDelta)
	}
	if res.Meta.Model != "test-model" || res.Meta.TokensOut != 20 {
		t.Fatalf("meta = %+v", res.Meta)
	}

	var m Manifest
	if err := json.Unmarshal([]byte(res.Output), &m); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if m.TotalGenerated != 2 || m.TotalFailed != 0 {
		t.Fatalf("manifest counts = %+v", m)
	}
	for _, img := range m.Images {
		if !img.Generated || img.Filename == "" {
			t.Fatalf("image not saved: %+v", img)
		}
	}
	if imgs.calls != 2 {
		t.Fatalf("generator calls = %d, want 2", imgs.calls)
	}
}

func TestImagesStageSoftFailsOnBadManifest(t *testing.T) {
	d := &Deps{
		Log:    logger.Nop(),
		LLM:    &fakeLLM{text: "I could not produce a plan, sorry."},
		Images: &fakeImages{},
		Media:  newMediaStore(t),
	}

	res, err := d.images(context.Background(), &pipeline.Snapshot{Slug: "s", Topic: "T", Draft: "body"})
	if err != nil {
		t.Fatalf("soft failure must not return an error, got %v", err)
	}
	if res.StatusDelta[pipeline.StageImages] != content.StageFailed {
		t.Fatalf("status delta = %v, want images failed", res.StatusDelta)
	}

	var m Manifest
	if err := json.Unmarshal([]byte(res.Output), &m); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if m.Error == "" {
		t.Fatal("manifest error not recorded")
	}
}

func TestGenerateAllCapturesPerImageFailures(t *testing.T) {
	imgs := &fakeImages{failOn: map[string]error{"broken": errors.New("provider down")}}
	d := &Deps{Log: logger.Nop(), Images: imgs, Media: newMediaStore(t)}

	m := &Manifest{Images: []ManifestImage{
		{Placement: "featured", Prompt: "fine gopher"},
		{Placement: "intro", Prompt: "broken gopher"},
	}}
	d.generateAll(context.Background(), &pipeline.Snapshot{Slug: "s"}, m)

	if m.TotalGenerated != 1 || m.TotalFailed != 1 {
		t.Fatalf("counts = %+v", m)
	}
	if m.Images[1].Error != "provider down" || m.Images[1].Generated {
		t.Fatalf("failed image = %+v", m.Images[1])
	}
	if !m.Images[0].Generated {
		t.Fatalf("good image = %+v", m.Images[0])
	}
}
