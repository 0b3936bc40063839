package analysis

import (
	"github.com/JSH-Team/mediabatch/internal/batch"
	"github.com/JSH-Team/mediabatch/internal/config"
	"github.com/JSH-Team/mediabatch/internal/utils/logger"
	"github.com/JSH-Team/mediabatch/internal/workers"
)

// Factory builds analysis tasks for a project.
type Factory struct {
	editor Editor
	pool   *workers.Pool
	params config.AlgorithmsConfig
}

var _ batch.TaskFactory = (*Factory)(nil)

func NewFactory(editor Editor, pool *workers.Pool, params config.AlgorithmsConfig) *Factory {
	return &Factory{
		editor: editor,
		pool:   pool,
		params: params,
	}
}

// Create returns false for algorithms without an implementation and for
// items that do not exist or have no active source.
func (f *Factory) Create(alg batch.Algorithm, item batch.ItemRef) (batch.Task, bool) {
	process, ok := processorFor(alg, f.params)
	if !ok {
		logger.Debug("%s is not implemented", alg)
		return nil, false
	}

	source, err := f.editor.ActiveSource(string(item))
	if err != nil {
		logger.Warn("Item %s has no usable source: %v", item, err)
		return nil, false
	}

	return newTask(alg, item, source, f.editor, f.pool, process), true
}
