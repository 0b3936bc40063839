package analysis

import (
	"context"
	"math"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/config"
)

// minNovelty is the smallest change of the level feature worth a slice,
// about 1 dB.
const minNovelty = 0.01

// noveltySlice marks boundaries between regions of different loudness by
// sliding a checkerboard kernel along the diagonal of the self-similarity of
// the dB envelope.
func noveltySlice(params config.NoveltySliceParams) processFunc {
	return func(ctx context.Context, buf *audio.Buffer, p *progress) (*Result, error) {
		env, err := rmsEnvelope(ctx, buf.Mono(), p, 0, 0.3)
		if err != nil {
			return nil, err
		}

		feature := make([]float64, len(env))
		for i, v := range env {
			// -100 dB..0 dB onto 0..1
			feature[i] = math.Max(0, math.Min(1, (toDB(v)+100)/100))
		}

		nov, err := novelty(ctx, feature, params.KernelSize, p, 0.3, 0.9)
		if err != nil {
			return nil, err
		}
		det := medianFilter(nov, params.FilterSize)
		for i, v := range det {
			if v < minNovelty {
				det[i] = 0
			}
		}
		det = normalize(det)
		peaks := peakPick(det, params.Threshold, params.MinSliceLength)
		p.set(1)
		return &Result{Markers: slicesAt(peaks, buf.SampleRate)}, nil
	}
}

// novelty correlates a Gaussian-tapered checkerboard kernel of the given size
// with the similarity matrix of feature, one value per frame. The result is
// divided by the kernel's negative weight, so a step of d in feature scores
// about d. The edges are padded with the first and last feature so they read
// as steady.
func novelty(ctx context.Context, feature []float64, size int, p *progress, from, to float64) ([]float64, error) {
	if size < 2 {
		size = 2
	}
	half := size / 2
	kernel := checkerboard(half)
	var weight float64
	for _, row := range kernel {
		for _, k := range row {
			if k < 0 {
				weight -= k
			}
		}
	}

	out := make([]float64, len(feature))
	for i := range feature {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.span(from, to, i, len(feature))
		}
		var sum float64
		for a := -half; a < half; a++ {
			ia := clampIndex(i+a, len(feature))
			for b := -half; b < half; b++ {
				ib := clampIndex(i+b, len(feature))
				sim := 1 - math.Abs(feature[ia]-feature[ib])
				sum += kernel[a+half][b+half] * sim
			}
		}
		if sum > 0 {
			out[i] = sum / weight
		}
	}
	p.set(to)
	return out, nil
}

func checkerboard(half int) [][]float64 {
	size := 2 * half
	sigma := float64(half) / 2
	k := make([][]float64, size)
	for r := range k {
		k[r] = make([]float64, size)
		a := float64(r-half) + 0.5
		for c := range k[r] {
			b := float64(c-half) + 0.5
			sign := 1.0
			if (a < 0) != (b < 0) {
				sign = -1
			}
			k[r][c] = sign * math.Exp(-(a*a+b*b)/(2*sigma*sigma))
		}
	}
	return k
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
