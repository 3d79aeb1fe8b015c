package pipeline

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pricing.yaml
var defaultPricingYAML []byte

// ModelPrice is USD per million tokens.
type ModelPrice struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

type Pricing struct {
	Models map[string]ModelPrice `yaml:"models"`
}

// LoadPricing reads the model price table. PRICING_FILE overrides the
// embedded defaults.
func LoadPricing() (*Pricing, error) {
	raw := defaultPricingYAML
	if path := strings.TrimSpace(os.Getenv("PRICING_FILE")); path != "" {
		fileRaw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pricing file: %w", err)
		}
		raw = fileRaw
	}
	var p Pricing
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse pricing: %w", err)
	}
	return &p, nil
}

// Cost computes tokens/1e6 × price. Unknown models cost 0.
func (p *Pricing) Cost(model string, tokensIn, tokensOut int) float64 {
	if p == nil {
		return 0
	}
	price, ok := p.Models[model]
	if !ok {
		return 0
	}
	return float64(tokensIn)/1e6*price.Input + float64(tokensOut)/1e6*price.Output
}
