package analysis

import (
	"context"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/config"
)

// hpss splits every channel into a harmonic and a percussive take. Steady
// partials survive a median filter across time and attacks survive one
// across frequency; each bin is shared between the two takes by a soft mask,
// so the takes add up to the source.
func hpss(params config.HPSSParams) processFunc {
	harmSize := oddSize(params.HarmonicFilterSize)
	percSize := oddSize(params.PercussiveFilterSize)

	return func(ctx context.Context, buf *audio.Buffer, p *progress) (*Result, error) {
		if buf.Frames() == 0 {
			return nil, errEmptySource
		}
		st := newSTFT()
		harmonic := silentLike(buf)
		percussive := silentLike(buf)

		share := 1 / float64(buf.Channels)
		for c := 0; c < buf.Channels; c++ {
			from := float64(c) * share
			step := share / 5

			x := channelOf(buf, c)
			spec, err := st.forward(ctx, x, p, from, from+step)
			if err != nil {
				return nil, err
			}
			mag := magnitudes(spec)

			harm, err := medianAcrossFrames(ctx, mag, harmSize, p, from+step, from+2*step)
			if err != nil {
				return nil, err
			}
			perc, err := medianAcrossBins(ctx, mag, percSize, p, from+2*step, from+3*step)
			if err != nil {
				return nil, err
			}

			// perc becomes the percussive mask, mag the harmonic one.
			for k := range mag {
				for f := range mag[k] {
					hh := harm[k][f] * harm[k][f]
					pp := perc[k][f] * perc[k][f]
					m := 0.5
					if hh+pp > 0 {
						m = pp / (hh + pp)
					}
					perc[k][f] = m
					mag[k][f] = 1 - m
				}
			}

			for _, out := range []struct {
				mask [][]float64
				buf  *audio.Buffer
				from float64
			}{
				{mag, harmonic, from + 3*step},
				{perc, percussive, from + 4*step},
			} {
				y, err := st.synthesize(ctx, len(spec), len(x), func(k int, dst []complex128) {
					for f, coeff := range spec[k] {
						dst[f] = coeff * complex(out.mask[k][f], 0)
					}
				}, p, out.from, out.from+step)
				if err != nil {
					return nil, err
				}
				setChannel(out.buf, c, y)
			}
		}

		p.set(1)
		return &Result{Takes: []RenderedTake{
			{Suffix: "harmonic", Buffer: harmonic},
			{Suffix: "percussive", Buffer: percussive},
		}}, nil
	}
}

// medianAcrossFrames smooths every bin of mag along time.
func medianAcrossFrames(ctx context.Context, mag [][]float64, size int, p *progress, from, to float64) ([][]float64, error) {
	out := make([][]float64, len(mag))
	for k := range out {
		out[k] = make([]float64, binCount)
	}
	column := make([]float64, len(mag))
	for f := 0; f < binCount; f++ {
		if f%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.span(from, to, f, binCount)
		}
		for k := range mag {
			column[k] = mag[k][f]
		}
		for k, v := range medianFilter(column, size) {
			out[k][f] = v
		}
	}
	p.set(to)
	return out, nil
}

// medianAcrossBins smooths every frame of mag along frequency.
func medianAcrossBins(ctx context.Context, mag [][]float64, size int, p *progress, from, to float64) ([][]float64, error) {
	out := make([][]float64, len(mag))
	for k := range mag {
		if k%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.span(from, to, k, len(mag))
		}
		out[k] = medianFilter(mag[k], size)
	}
	p.set(to)
	return out, nil
}

func oddSize(n int) int {
	if n < 3 {
		return 3
	}
	if n%2 == 0 {
		return n + 1
	}
	return n
}
