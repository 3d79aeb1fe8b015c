package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yungbote/draftline-backend/internal/pkg/httpx"
	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/llm"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

// Client is the web-grounded research surface. Completions come back in
// the same shape as plain LLM calls so the executor prices them uniformly.
type Client interface {
	Research(ctx context.Context, system, query string) (*llm.Completion, error)
}

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar-pro"
	maxTries       = 3
	backoffBase    = 1 * time.Second
	backoffCap     = 10 * time.Second
)

type PerplexityClient struct {
	log     *logger.Logger
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewPerplexityClient(baseLog *logger.Logger) (*PerplexityClient, error) {
	apiKey := envutil.Str("PERPLEXITY_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing PERPLEXITY_API_KEY")
	}
	return &PerplexityClient{
		log:     baseLog.With("service", "PerplexityClient"),
		http:    &http.Client{Timeout: envutil.Dur("SEARCH_TIMEOUT", 120*time.Second)},
		baseURL: envutil.Str("PERPLEXITY_BASE_URL", defaultBaseURL),
		apiKey:  apiKey,
		model:   envutil.Str("SEARCH_MODEL", defaultModel),
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *PerplexityClient) Research(ctx context.Context, system, query string) (*llm.Completion, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: query},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	var callErr error
	for try := 1; try <= maxTries; try++ {
		parsed, callErr = c.call(ctx, body)
		if callErr == nil {
			break
		}
		if try == maxTries || !httpx.IsRetryableError(callErr) {
			break
		}
		backoff := backoffBase << (try - 1)
		if backoff > backoffCap {
			backoff = backoffCap
		}
		c.log.Warn("search call failed, retrying", "try", try, "error", callErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(httpx.JitterSleep(backoff)):
		}
	}
	if callErr != nil {
		return nil, fmt.Errorf("perplexity research: %w", callErr)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty research response from %s", c.model)
	}
	return &llm.Completion{
		Text:      parsed.Choices[0].Message.Content,
		Model:     c.model,
		TokensIn:  parsed.Usage.PromptTokens,
		TokensOut: parsed.Usage.CompletionTokens,
	}, nil
}

func (c *PerplexityClient) call(ctx context.Context, body []byte) (chatResponse, error) {
	var parsed chatResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return parsed, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return parsed, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return parsed, err
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := &httpx.StatusError{Status: resp.StatusCode, Body: string(raw)}
		if httpx.IsRetryableHTTPStatus(resp.StatusCode) {
			// Retry-After wins over the exponential schedule.
			if wait := httpx.RetryAfterDuration(resp, 0, backoffCap); wait > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
			}
		}
		return parsed, statusErr
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return parsed, fmt.Errorf("decode research response: %w", err)
	}
	return parsed, nil
}
