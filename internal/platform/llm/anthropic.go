package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yungbote/draftline-backend/internal/pkg/httpx"
	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192
	maxTries         = 3
	backoffBase      = 1 * time.Second
	backoffCap       = 10 * time.Second
)

type AnthropicClient struct {
	log       *logger.Logger
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func NewAnthropicClient(baseLog *logger.Logger) (*AnthropicClient, error) {
	apiKey := envutil.Str("ANTHROPIC_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	return &AnthropicClient{
		log:       baseLog.With("service", "AnthropicClient"),
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     envutil.Str("LLM_MODEL", defaultModel),
		maxTokens: envutil.Int("LLM_MAX_TOKENS", defaultMaxTokens),
		timeout:   envutil.Dur("LLM_TIMEOUT", 300*time.Second),
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	var resp *anthropic.Message
	var callErr error
	for try := 1; try <= maxTries; try++ {
		resp, callErr = c.client.Messages.New(callCtx, params)
		if callErr == nil {
			break
		}
		if try == maxTries || !isRetryable(callErr) {
			break
		}
		sleepFor := backoffBase << (try - 1)
		if sleepFor > backoffCap {
			sleepFor = backoffCap
		}
		c.log.Warn("anthropic call failed, retrying", "try", try, "error", callErr)
		select {
		case <-callCtx.Done():
			return nil, callCtx.Err()
		case <-time.After(httpx.JitterSleep(sleepFor)):
		}
	}
	if callErr != nil {
		return nil, fmt.Errorf("anthropic completion: %w", callErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from model %s", c.model)
	}
	return &Completion{
		Text:      text.String(),
		Model:     c.model,
		TokensIn:  int(resp.Usage.InputTokens),
		TokensOut: int(resp.Usage.OutputTokens),
	}, nil
}

func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return httpx.IsRetryableHTTPStatus(apiErr.StatusCode)
	}
	return httpx.IsRetryableError(err)
}
