package analysis

import (
	"context"
	"fmt"
	"math/cmplx"
	"math/rand/v2"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/config"

	"gonum.org/v1/gonum/mat"
)

const (
	minComponents = 2
	maxComponents = 10
	maxIterations = 1000

	nmfEpsilon = 1e-12
)

// nmf factorises the magnitude spectrogram into components, each a spectral
// template with its own activation curve, and renders one take per
// component. Every bin is shared between the components in proportion to
// their share of the model, so the takes add up to the source.
func nmf(params config.NMFParams) processFunc {
	rank := min(max(params.Components, minComponents), maxComponents)
	iterations := min(max(params.Iterations, 1), maxIterations)

	return func(ctx context.Context, buf *audio.Buffer, p *progress) (*Result, error) {
		if buf.Frames() == 0 {
			return nil, errEmptySource
		}
		st := newSTFT()

		specs := make([][][]complex128, buf.Channels)
		share := 0.2 / float64(buf.Channels)
		for c := range specs {
			spec, err := st.forward(ctx, channelOf(buf, c), p, float64(c)*share, float64(c+1)*share)
			if err != nil {
				return nil, err
			}
			specs[c] = spec
		}
		frames := len(specs[0])

		// The model is fitted to the channel average.
		v := mat.NewDense(binCount, frames, nil)
		for _, spec := range specs {
			for k, frame := range spec {
				for f, coeff := range frame {
					v.Set(f, k, v.At(f, k)+cmplx.Abs(coeff)/float64(buf.Channels))
				}
			}
		}

		w, h, err := factorize(ctx, v, rank, iterations, p, 0.2, 0.8)
		if err != nil {
			return nil, err
		}
		var model mat.Dense
		model.Mul(w, h)

		takes := make([]RenderedTake, rank)
		share = 0.2 / float64(rank*buf.Channels)
		from := 0.8
		for r := range takes {
			out := silentLike(buf)
			for c, spec := range specs {
				y, err := st.synthesize(ctx, frames, buf.Frames(), func(k int, dst []complex128) {
					for f, coeff := range spec[k] {
						total := model.At(f, k)
						m := 1 / float64(rank)
						if total > nmfEpsilon {
							m = w.At(f, r) * h.At(r, k) / total
						}
						dst[f] = coeff * complex(m, 0)
					}
				}, p, from, from+share)
				if err != nil {
					return nil, err
				}
				setChannel(out, c, y)
				from += share
			}
			takes[r] = RenderedTake{Suffix: fmt.Sprintf("nmf-%d", r+1), Buffer: out}
		}

		p.set(1)
		return &Result{Takes: takes}, nil
	}
}

// factorize approximates v by w*h with non-negative factors of the given
// rank, using multiplicative updates that minimise the Kullback-Leibler
// divergence. The starting point is seeded so that results are repeatable.
func factorize(ctx context.Context, v *mat.Dense, rank, iterations int, p *progress, from, to float64) (w, h *mat.Dense, err error) {
	bins, frames := v.Dims()
	rng := rand.New(rand.NewPCG(uint64(bins), uint64(rank)))

	w = mat.NewDense(bins, rank, nil)
	w.Apply(func(_, _ int, _ float64) float64 { return rng.Float64() + nmfEpsilon }, w)
	h = mat.NewDense(rank, frames, nil)
	h.Apply(func(_, _ int, _ float64) float64 { return rng.Float64() + nmfEpsilon }, h)

	var model, ratio, numH, numW mat.Dense
	sums := make([]float64, rank)
	divide := func(i, j int, m float64) float64 {
		return v.At(i, j) / (m + nmfEpsilon)
	}

	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		p.span(from, to, it, iterations)

		model.Mul(w, h)
		ratio.Apply(divide, &model)
		numH.Mul(w.T(), &ratio)
		for r := range sums {
			sums[r] = mat.Sum(w.ColView(r))
		}
		h.Apply(func(r, k int, x float64) float64 {
			return x * numH.At(r, k) / (sums[r] + nmfEpsilon)
		}, h)

		model.Mul(w, h)
		ratio.Apply(divide, &model)
		numW.Mul(&ratio, h.T())
		for r := range sums {
			sums[r] = mat.Sum(h.RowView(r))
		}
		w.Apply(func(f, r int, x float64) float64 {
			return x * numW.At(f, r) / (sums[r] + nmfEpsilon)
		}, w)
	}

	p.set(to)
	return w, h, nil
}
