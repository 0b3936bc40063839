package process

import (
	"context"
	"testing"

	"github.com/JSH-Team/mediabatch/internal/config"
	"github.com/JSH-Team/mediabatch/internal/workers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPoolConfig(t *testing.T, poolWorkers, queue, maxJobs int) {
	t.Helper()
	oldWorkers, oldQueue, oldMax := config.AnalysisWorkers, config.AnalysisQueueSize, config.MaxConcurrentJobs
	config.AnalysisWorkers, config.AnalysisQueueSize, config.MaxConcurrentJobs = poolWorkers, queue, maxJobs
	t.Cleanup(func() {
		config.AnalysisWorkers, config.AnalysisQueueSize, config.MaxConcurrentJobs = oldWorkers, oldQueue, oldMax
	})
}

func TestJobLimit(t *testing.T) {
	withPoolConfig(t, 4, 64, 4)

	assert.Equal(t, 4, jobLimit(0))
	assert.Equal(t, 2, jobLimit(2))
	assert.Equal(t, 200, jobLimit(200))
}

func TestAnalysisPoolFitsEveryActiveJob(t *testing.T) {
	withPoolConfig(t, 1, 2, 4)
	limit := jobLimit(50)

	pool := newAnalysisPool(limit)
	require.NoError(t, pool.Start())
	defer pool.Stop()

	// Nothing finishes until the pool stops, so every job past the single
	// worker has to wait in the queue.
	for i := 0; i < limit; i++ {
		err := pool.Submit(workers.Job{Name: "hold", Run: func(ctx context.Context) { <-ctx.Done() }})
		require.NoError(t, err, "job %d", i)
	}
}
