package analysis

import (
	"context"
	"math"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/config"
)

// transientSlice marks frames whose sample-to-sample change peaks, which
// catches clicks and hits that barely move the energy envelope.
func transientSlice(params config.TransientSliceParams) processFunc {
	return func(ctx context.Context, buf *audio.Buffer, p *progress) (*Result, error) {
		det, err := differenceEnvelope(ctx, buf.Mono(), p, 0, 0.9)
		if err != nil {
			return nil, err
		}
		peaks := peakPick(normalize(positiveFlux(det)), params.Threshold, params.MinSliceLength)
		p.set(1)
		return &Result{Markers: slicesAt(peaks, buf.SampleRate)}, nil
	}
}

// differenceEnvelope is the peak absolute first difference per hop.
func differenceEnvelope(ctx context.Context, x []float64, p *progress, from, to float64) ([]float64, error) {
	frames := frameCount(len(x))
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.span(from, to, i, frames)
		}
		start := i * HopSize
		end := start + HopSize
		if end > len(x) {
			end = len(x)
		}
		var peak float64
		for j := start; j < end; j++ {
			if j == 0 {
				continue
			}
			if d := math.Abs(x[j] - x[j-1]); d > peak {
				peak = d
			}
		}
		out[i] = peak
	}
	p.set(to)
	return out, nil
}
