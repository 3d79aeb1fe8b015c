package imagegen

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

const defaultImageModel = "gemini-2.0-flash-exp"

type GeminiClient struct {
	log     *logger.Logger
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, baseLog *logger.Logger) (*GeminiClient, error) {
	apiKey := envutil.Str("GEMINI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{
		log:     baseLog.With("service", "GeminiImageClient"),
		client:  client,
		model:   envutil.Str("IMAGE_MODEL", defaultImageModel),
		timeout: envutil.Dur("IMAGEGEN_TIMEOUT", 180*time.Second),
	}, nil
}

func (c *GeminiClient) ModelName() string { return c.model }

func (c *GeminiClient) Generate(ctx context.Context, spec Spec) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := spec.Prompt
	if spec.Featured {
		prompt += "\n\nWide 16:9 hero composition, 2K resolution."
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	resp, err := c.client.Models.GenerateContent(callCtx, c.model, genai.Text(prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini image generation: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("no image data in response from %s", c.model)
}
