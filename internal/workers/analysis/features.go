package analysis

import (
	"context"
	"math"
	"sort"
)

const (
	HopSize    = 512
	WindowSize = 1024

	// checkEvery is how many frames pass between cancellation checks and
	// progress updates.
	checkEvery = 64
)

// frameCount is the number of hops that fit a signal of n samples.
func frameCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + HopSize - 1) / HopSize
}

// rmsEnvelope returns the RMS of each window, one value per hop. Progress is
// reported in [from, to].
func rmsEnvelope(ctx context.Context, x []float64, p *progress, from, to float64) ([]float64, error) {
	frames := frameCount(len(x))
	env := make([]float64, frames)
	for i := 0; i < frames; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.span(from, to, i, frames)
		}
		start := i * HopSize
		end := start + WindowSize
		if end > len(x) {
			// Keep the last windows full length so a steady signal reads as steady.
			end = len(x)
			start = max(0, end-WindowSize)
		}
		var sum float64
		for _, v := range x[start:end] {
			sum += v * v
		}
		env[i] = math.Sqrt(sum / float64(end-start))
	}
	p.set(to)
	return env, nil
}

func toDB(v float64) float64 {
	if v <= 1e-10 {
		return -200
	}
	return 20 * math.Log10(v)
}

// minRiseDB is the smallest frame-to-frame rise positiveFlux keeps.
const minRiseDB = 1.0

// positiveFlux is the half-wave rectified first difference of env. Rises of
// less than minRiseDB are level jitter and count as zero.
func positiveFlux(env []float64) []float64 {
	out := make([]float64, len(env))
	for i := 1; i < len(env); i++ {
		d := env[i] - env[i-1]
		if d > 0 && toDB(env[i])-toDB(env[i-1]) >= minRiseDB {
			out[i] = d
		}
	}
	return out
}

// flatEpsilon is the largest value normalize still treats as zero.
const flatEpsilon = 1e-9

// normalize scales x in place so its maximum is 1. An input whose peak is
// below flatEpsilon is rounding noise and comes back all zero.
func normalize(x []float64) []float64 {
	var peak float64
	for _, v := range x {
		if v > peak {
			peak = v
		}
	}
	if peak < flatEpsilon {
		clear(x)
		return x
	}
	for i := range x {
		x[i] /= peak
	}
	return x
}

// medianFilter smooths x with a centred window, repeating the edge values.
func medianFilter(x []float64, size int) []float64 {
	if size < 2 {
		return x
	}
	half := size / 2
	out := make([]float64, len(x))
	window := make([]float64, 0, size)
	for i := range x {
		window = window[:0]
		for j := i - half; j <= i+half; j++ {
			window = append(window, x[clampIndex(j, len(x))])
		}
		sort.Float64s(window)
		out[i] = window[len(window)/2]
	}
	return out
}

// peakPick returns the indices of local maxima of det at or above threshold,
// at least minGap frames apart. When two peaks are too close the earlier one
// wins.
func peakPick(det []float64, threshold float64, minGap int) []int {
	if minGap < 1 {
		minGap = 1
	}
	var peaks []int
	last := -minGap
	for i := range det {
		v := det[i]
		if v < threshold || v <= 0 {
			continue
		}
		if i > 0 && det[i-1] > v {
			continue
		}
		if i+1 < len(det) && det[i+1] >= v {
			continue
		}
		if i-last < minGap {
			continue
		}
		peaks = append(peaks, i)
		last = i
	}
	return peaks
}

func frameSeconds(frame, sampleRate int) float64 {
	return float64(frame*HopSize) / float64(sampleRate)
}
