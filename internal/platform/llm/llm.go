package llm

import "context"

// Request is one text-completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion carries the text plus the accounting the executor prices.
type Completion struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
}

// Client is the text-model surface the stages depend on.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}
