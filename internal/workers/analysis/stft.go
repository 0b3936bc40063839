package analysis

import (
	"context"
	"errors"
	"math"
	"math/cmplx"

	"github.com/JSH-Team/mediabatch/internal/audio"

	"gonum.org/v1/gonum/dsp/fourier"
)

var errEmptySource = errors.New("source has no samples")

// binCount is the number of Fourier coefficients per STFT frame.
const binCount = WindowSize/2 + 1

// stftPad is how far the first frame starts before sample 0, so that every
// sample is covered by two frames.
const stftPad = WindowSize - HopSize

// stft is a Hann-windowed short-time Fourier transform with 50% overlap. The
// periodic Hann window sums to one at that overlap, so overlap-adding the
// unmodified frames gives back the signal. Not safe for concurrent use.
type stft struct {
	fft    *fourier.FFT
	window []float64
	seg    []float64
}

func newSTFT() *stft {
	window := make([]float64, WindowSize)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/WindowSize)
	}
	return &stft{
		fft:    fourier.NewFFT(WindowSize),
		window: window,
		seg:    make([]float64, WindowSize),
	}
}

func stftFrames(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + stftPad + HopSize - 1) / HopSize
}

// forward returns one row of binCount coefficients per frame of x.
func (s *stft) forward(ctx context.Context, x []float64, p *progress, from, to float64) ([][]complex128, error) {
	frames := stftFrames(len(x))
	out := make([][]complex128, frames)
	for k := range out {
		if k%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.span(from, to, k, frames)
		}
		start := k*HopSize - stftPad
		for i := range s.seg {
			j := start + i
			if j < 0 || j >= len(x) {
				s.seg[i] = 0
				continue
			}
			s.seg[i] = x[j] * s.window[i]
		}
		out[k] = s.fft.Coefficients(nil, s.seg)
	}
	p.set(to)
	return out, nil
}

// synthesize overlap-adds frames into a signal of n samples. coeff fills dst
// with the coefficients of frame k.
func (s *stft) synthesize(ctx context.Context, frames, n int, coeff func(k int, dst []complex128), p *progress, from, to float64) ([]float64, error) {
	out := make([]float64, n)
	dst := make([]complex128, binCount)
	// Sequence is unnormalised.
	scale := 1.0 / WindowSize
	for k := 0; k < frames; k++ {
		if k%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p.span(from, to, k, frames)
		}
		coeff(k, dst)
		s.fft.Sequence(s.seg, dst)
		start := k*HopSize - stftPad
		for i, v := range s.seg {
			j := start + i
			if j < 0 || j >= n {
				continue
			}
			out[j] += v * scale
		}
	}
	p.set(to)
	return out, nil
}

func magnitudes(spec [][]complex128) [][]float64 {
	out := make([][]float64, len(spec))
	for k, frame := range spec {
		out[k] = make([]float64, len(frame))
		for f, c := range frame {
			out[k][f] = cmplx.Abs(c)
		}
	}
	return out
}

// channelOf deinterleaves channel c of buf.
func channelOf(buf *audio.Buffer, c int) []float64 {
	frames := buf.Frames()
	out := make([]float64, frames)
	for n := range out {
		out[n] = float64(buf.Data[n*buf.Channels+c])
	}
	return out
}

// setChannel interleaves x into channel c of buf.
func setChannel(buf *audio.Buffer, c int, x []float64) {
	for n, v := range x {
		buf.Data[n*buf.Channels+c] = float32(v)
	}
}

func silentLike(buf *audio.Buffer) *audio.Buffer {
	return &audio.Buffer{SampleRate: buf.SampleRate, Channels: buf.Channels, Data: make([]float32, len(buf.Data))}
}
