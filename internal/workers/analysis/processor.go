package analysis

import (
	"context"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/batch"
	"github.com/JSH-Team/mediabatch/internal/config"
)

// Result is what a processor hands back to the tick goroutine.
type Result struct {
	Markers []Slice
	Takes   []RenderedTake
}

// Slice is a slice point in seconds from the item start.
type Slice struct {
	Position float64
	Label    string
}

// RenderedTake is audio to be written as a new take.
type RenderedTake struct {
	Suffix string
	Buffer *audio.Buffer
}

// processFunc runs one analysis on a decoded source. It must return ctx.Err()
// promptly once ctx is cancelled.
type processFunc func(ctx context.Context, buf *audio.Buffer, p *progress) (*Result, error)

// processorFor returns the analysis implementing alg.
func processorFor(alg batch.Algorithm, params config.AlgorithmsConfig) (processFunc, bool) {
	switch alg {
	case batch.NoveltySlice:
		return noveltySlice(params.NoveltySlice), true
	case batch.OnsetSlice:
		return onsetSlice(params.OnsetSlice), true
	case batch.TransientSlice:
		return transientSlice(params.TransientSlice), true
	case batch.AmpGate:
		return ampGate(params.AmpGate), true
	case batch.Transients:
		return transients(params.Transients), true
	case batch.HPSS:
		return hpss(params.HPSS), true
	case batch.NMF:
		return nmf(params.NMF), true
	}
	return nil, false
}

func slicesAt(frames []int, sampleRate int) []Slice {
	out := make([]Slice, 0, len(frames))
	for _, f := range frames {
		out = append(out, Slice{Position: frameSeconds(f, sampleRate)})
	}
	return out
}
