package analysis

import (
	"context"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/config"
)

// ampGate slices where the level crosses the on and off thresholds. The off
// threshold sits below the on threshold so a level hovering around one of them
// does not chatter. Gates shorter than MinSliceLength frames are ignored.
func ampGate(params config.AmpGateParams) processFunc {
	return func(ctx context.Context, buf *audio.Buffer, p *progress) (*Result, error) {
		env, err := rmsEnvelope(ctx, buf.Mono(), p, 0, 0.9)
		if err != nil {
			return nil, err
		}

		off := params.OffThresholdDB
		if off > params.OnThresholdDB {
			off = params.OnThresholdDB
		}

		var slices []Slice
		open := -1
		closeGate := func(end int) {
			if end-open >= params.MinSliceLength {
				slices = append(slices,
					Slice{Position: frameSeconds(open, buf.SampleRate), Label: "on"},
					Slice{Position: frameSeconds(end, buf.SampleRate), Label: "off"},
				)
			}
			open = -1
		}

		for i, v := range env {
			db := toDB(v)
			switch {
			case open < 0 && db >= params.OnThresholdDB:
				open = i
			case open >= 0 && db < off:
				closeGate(i)
			}
		}
		if open >= 0 {
			closeGate(len(env))
		}

		p.set(1)
		return &Result{Markers: slices}, nil
	}
}
