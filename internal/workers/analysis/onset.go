package analysis

import (
	"context"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/config"
)

// onsetSlice marks rises in the energy envelope.
func onsetSlice(params config.OnsetSliceParams) processFunc {
	return func(ctx context.Context, buf *audio.Buffer, p *progress) (*Result, error) {
		env, err := rmsEnvelope(ctx, buf.Mono(), p, 0, 0.9)
		if err != nil {
			return nil, err
		}
		det := normalize(positiveFlux(env))
		peaks := peakPick(det, params.Threshold, params.MinSliceLength)
		p.set(1)
		return &Result{Markers: slicesAt(peaks, buf.SampleRate)}, nil
	}
}
