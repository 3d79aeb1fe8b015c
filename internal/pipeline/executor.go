package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/draftline-backend/internal/domain/content"
	"github.com/yungbote/draftline-backend/internal/observability"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

// Meta is the per-execution accounting attached to stage_logs.
type Meta struct {
	Model     string
	TokensIn  int
	TokensOut int
	DurationS float64
	CostUSD   float64
}

// Result is what a stage function returns. Output goes into the stage's
// content slot via the registry row's Apply. StatusDelta overrides the
// default `complete` status (the images stage uses it for soft failures).
type Result struct {
	Output      string
	HTML        string
	StatusDelta map[string]string
	Meta        Meta
}

// StageFunc computes one stage from an immutable snapshot. No side
// effects on the store; all persistence happens in the runner.
type StageFunc func(ctx context.Context, snap *Snapshot) (*Result, error)

// Executor invokes stage functions, times them and prices their token
// usage.
type Executor struct {
	log     *logger.Logger
	fns     map[string]StageFunc
	pricing *Pricing
}

func NewExecutor(baseLog *logger.Logger, fns map[string]StageFunc, pricing *Pricing) *Executor {
	return &Executor{
		log:     baseLog.With("component", "StageExecutor"),
		fns:     fns,
		pricing: pricing,
	}
}

func (e *Executor) Run(ctx context.Context, snap *Snapshot, stage string) (*Result, error) {
	fn, ok := e.fns[stage]
	if !ok {
		return nil, fmt.Errorf("no stage function registered for %q", stage)
	}
	start := time.Now()
	res, err := fn(ctx, snap)
	elapsed := time.Since(start)
	observability.Current().ObserveStage(stage, elapsed, err == nil)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("stage %q returned no result", stage)
	}
	res.Meta.DurationS = elapsed.Seconds()
	res.Meta.CostUSD = e.pricing.Cost(res.Meta.Model, res.Meta.TokensIn, res.Meta.TokensOut)
	observability.Current().AddLLMUsage(res.Meta.Model, res.Meta.TokensIn, res.Meta.TokensOut, res.Meta.CostUSD)
	return res, nil
}

// StageLogFromMeta converts executor accounting into the persisted shape.
func StageLogFromMeta(stage string, m Meta) content.StageLog {
	return content.StageLog{
		Stage:     stage,
		Model:     m.Model,
		TokensIn:  m.TokensIn,
		TokensOut: m.TokensOut,
		DurationS: m.DurationS,
		CostUSD:   m.CostUSD,
	}
}
