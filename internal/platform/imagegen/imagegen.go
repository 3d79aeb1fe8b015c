package imagegen

import "context"

// Spec describes one image to generate.
type Spec struct {
	Prompt string
	// Featured images render larger and wide (16:9).
	Featured bool
}

// Client turns a prompt into PNG bytes.
type Client interface {
	Generate(ctx context.Context, spec Spec) ([]byte, error)
	ModelName() string
}
