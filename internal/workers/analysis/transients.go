package analysis

import (
	"context"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/config"
)

// transients splits the source into two takes: the attacks, gated on the
// derivative of the energy envelope, and everything else.
func transients(params config.TransientsParams) processFunc {
	return func(ctx context.Context, buf *audio.Buffer, p *progress) (*Result, error) {
		env, err := rmsEnvelope(ctx, buf.Mono(), p, 0, 0.5)
		if err != nil {
			return nil, err
		}
		det := normalize(positiveFlux(env))

		release := params.Release
		if release < 1 {
			release = 1
		}
		gate := make([]float64, len(det))
		hold := 0
		for i, v := range det {
			if v >= params.Threshold && v > 0 {
				hold = release
			}
			if hold > 0 {
				gate[i] = 1
				hold--
			}
		}

		frames := buf.Frames()
		attack := &audio.Buffer{SampleRate: buf.SampleRate, Channels: buf.Channels, Data: make([]float32, len(buf.Data))}
		residual := &audio.Buffer{SampleRate: buf.SampleRate, Channels: buf.Channels, Data: make([]float32, len(buf.Data))}

		for n := 0; n < frames; n++ {
			if n%(checkEvery*HopSize) == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				p.span(0.5, 1, n, frames)
			}
			g := float32(gateAt(gate, n))
			for c := 0; c < buf.Channels; c++ {
				idx := n*buf.Channels + c
				attack.Data[idx] = buf.Data[idx] * g
				residual.Data[idx] = buf.Data[idx] - attack.Data[idx]
			}
		}

		p.set(1)
		return &Result{Takes: []RenderedTake{
			{Suffix: "residual", Buffer: residual},
			{Suffix: "transients", Buffer: attack},
		}}, nil
	}
}

// gateAt interpolates the per-hop gate at sample n. Gate changes ramp over
// one hop instead of clicking.
func gateAt(gate []float64, n int) float64 {
	if len(gate) == 0 {
		return 0
	}
	i := n / HopSize
	if i >= len(gate)-1 {
		return gate[len(gate)-1]
	}
	frac := float64(n%HopSize) / HopSize
	return gate[i]*(1-frac) + gate[i+1]*frac
}
