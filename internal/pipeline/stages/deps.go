package stages

import (
	"github.com/yungbote/draftline-backend/internal/pipeline"
	"github.com/yungbote/draftline-backend/internal/platform/imagegen"
	"github.com/yungbote/draftline-backend/internal/platform/llm"
	"github.com/yungbote/draftline-backend/internal/platform/localmedia"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
	"github.com/yungbote/draftline-backend/internal/platform/search"
)

// Deps carries the provider clients the stage functions close over.
type Deps struct {
	Log      *logger.Logger
	LLM      llm.Client
	Search   search.Client
	Images   imagegen.Client
	Media    *localmedia.Store
	RulesDir string
}

// Funcs maps every registered stage to its function.
func (d *Deps) Funcs() map[string]pipeline.StageFunc {
	return map[string]pipeline.StageFunc{
		pipeline.StageResearch: d.research,
		pipeline.StageOutline:  d.outline,
		pipeline.StageWrite:    d.write,
		pipeline.StageEdit:     d.edit,
		pipeline.StageImages:   d.images,
		pipeline.StageReady:    d.ready,
	}
}
