package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/JSH-Team/mediabatch/internal/audio"
	"github.com/JSH-Team/mediabatch/internal/batch"
	"github.com/JSH-Team/mediabatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, alg batch.Algorithm, buf *audio.Buffer) *Result {
	t.Helper()
	process, ok := processorFor(alg, config.DefaultAlgorithms())
	require.True(t, ok)

	var p progress
	res, err := process(context.Background(), buf, &p)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.get())
	return res
}

func assertNear(t *testing.T, want, got []float64, tolerance float64) {
	t.Helper()
	require.Len(t, got, len(want), "got %v", got)
	for i := range want {
		assert.InDelta(t, want[i], got[i], tolerance, "marker %d of %v", i, got)
	}
}

func TestOnsetSlice(t *testing.T) {
	buf := bursts(2, burst{0.5, 0.2, 0.8}, burst{1.25, 0.3, 0.8})

	res := analyze(t, batch.OnsetSlice, buf)

	assertNear(t, []float64{0.5, 1.25}, positions(res), 2*hopSeconds)
	assert.Empty(t, res.Takes)
}

func TestAmpGate(t *testing.T) {
	buf := bursts(2, burst{0.5, 0.2, 0.5}, burst{1.25, 0.2, 0.5})

	res := analyze(t, batch.AmpGate, buf)

	assertNear(t, []float64{0.5, 0.7, 1.25, 1.45}, positions(res), 2*hopSeconds)
	labels := []string{}
	for _, m := range res.Markers {
		labels = append(labels, m.Label)
	}
	assert.Equal(t, []string{"on", "off", "on", "off"}, labels)
}

func TestAmpGateIgnoresShortGates(t *testing.T) {
	// One hop of signal is below the minimum slice length.
	buf := bursts(1, burst{0.5, 0.005, 0.5})

	res := analyze(t, batch.AmpGate, buf)

	assert.Empty(t, res.Markers)
}

func TestAmpGateClosesAtEnd(t *testing.T) {
	buf := bursts(1, burst{0.5, 0.5, 0.5})

	res := analyze(t, batch.AmpGate, buf)

	require.Len(t, res.Markers, 2)
	assert.Equal(t, "off", res.Markers[1].Label)
	assert.InDelta(t, 1.0, res.Markers[1].Position, 2*hopSeconds)
}

func TestNoveltySlice(t *testing.T) {
	buf := bursts(2, burst{0, 1, 0.01}, burst{1, 1, 0.5})

	res := analyze(t, batch.NoveltySlice, buf)

	assertNear(t, []float64{1.0}, positions(res), 3*hopSeconds)
}

func TestTransientSlice(t *testing.T) {
	buf := impulses(1.5, 0.3, 0.9)

	res := analyze(t, batch.TransientSlice, buf)

	assertNear(t, []float64{0.3, 0.9}, positions(res), hopSeconds)
}

func TestSilenceHasNoSlices(t *testing.T) {
	for _, alg := range []batch.Algorithm{batch.OnsetSlice, batch.TransientSlice, batch.NoveltySlice, batch.AmpGate} {
		res := analyze(t, alg, bursts(1))
		assert.Empty(t, res.Markers, alg.String())
	}
}

func TestSteadyToneHasNoSlices(t *testing.T) {
	tone := bursts(2, burst{0, 2, 0.5})
	for _, alg := range []batch.Algorithm{batch.OnsetSlice, batch.TransientSlice, batch.NoveltySlice} {
		res := analyze(t, alg, tone)
		assert.Empty(t, res.Markers, alg.String())
	}
}

func TestNormalizeFlatInput(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0}, normalize([]float64{1e-16, 0, 3e-17}))
	assert.Equal(t, []float64{0.5, 1, 0}, normalize([]float64{0.25, 0.5, 0}))
}

func TestPositiveFluxIgnoresJitter(t *testing.T) {
	flux := positiveFlux([]float64{0.5, 0.501, 0.499, 1, 0})
	require.Len(t, flux, 5)
	assert.Zero(t, flux[1])
	assert.Zero(t, flux[2])
	assert.InDelta(t, 0.501, flux[3], 1e-12)
	assert.Zero(t, flux[4])
}

func TestTransientsSplitsSource(t *testing.T) {
	buf := bursts(1, burst{0.25, 0.5, 0.8})

	res := analyze(t, batch.Transients, buf)

	require.Len(t, res.Takes, 2)
	residual, attack := res.Takes[0], res.Takes[1]
	assert.Equal(t, "residual", residual.Suffix)
	assert.Equal(t, "transients", attack.Suffix)

	var attackEnergy float64
	for i, v := range buf.Data {
		assert.InDelta(t, v, attack.Buffer.Data[i]+residual.Buffer.Data[i], 1e-6)
		attackEnergy += float64(attack.Buffer.Data[i] * attack.Buffer.Data[i])
	}
	assert.Greater(t, attackEnergy, 0.0)

	// The steady middle of the burst belongs to the residual.
	mid := int(0.5 * testRate)
	assert.Zero(t, attack.Buffer.Data[mid])
}

func TestProcessorsHonourCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := bursts(1, burst{0.2, 0.5, 0.5})
	for _, alg := range batch.Algorithms() {
		process, ok := processorFor(alg, config.DefaultAlgorithms())
		require.True(t, ok)
		_, err := process(ctx, buf, &progress{})
		assert.ErrorIs(t, err, context.Canceled, alg.String())
	}
}

func TestEveryAlgorithmHasAProcessor(t *testing.T) {
	for _, alg := range batch.Algorithms() {
		_, ok := processorFor(alg, config.DefaultAlgorithms())
		assert.True(t, ok, alg.String())
	}
	_, ok := processorFor(batch.AlgorithmNone, config.DefaultAlgorithms())
	assert.False(t, ok)
}

func TestHPSSSeparatesToneFromClicks(t *testing.T) {
	buf := bursts(1, burst{0, 1, 0.3})
	clicks := []float64{0.25, 0.5, 0.75}
	for _, s := range clicks {
		buf.Data[int(s*testRate)] += 1
	}

	res := analyze(t, batch.HPSS, buf)

	require.Len(t, res.Takes, 2)
	harmonic, percussive := res.Takes[0], res.Takes[1]
	assert.Equal(t, "harmonic", harmonic.Suffix)
	assert.Equal(t, "percussive", percussive.Suffix)
	assertTakesSumToSource(t, buf, res.Takes)

	// Between the clicks the tone belongs to the harmonic take.
	from, to := int(0.35*testRate), int(0.45*testRate)
	assert.Greater(t, energy(harmonic.Buffer, from, to), 10*energy(percussive.Buffer, from, to))

	for _, s := range clicks {
		at := int(s * testRate)
		assert.Greater(t, float64(percussive.Buffer.Data[at]), 0.5, "click at %v", s)
	}
}

func TestHPSSKeepsChannels(t *testing.T) {
	mono := bursts(0.5, burst{0.1, 0.2, 0.5})
	stereo := &audio.Buffer{SampleRate: testRate, Channels: 2, Data: make([]float32, 2*len(mono.Data))}
	for n, v := range mono.Data {
		stereo.Data[2*n] = v
	}

	res := analyze(t, batch.HPSS, stereo)

	for _, take := range res.Takes {
		require.Equal(t, 2, take.Buffer.Channels)
		require.Len(t, take.Buffer.Data, len(stereo.Data))
		for n := range mono.Data {
			assert.Zero(t, take.Buffer.Data[2*n+1])
		}
	}
	assertTakesSumToSource(t, stereo, res.Takes)
}

func TestNMFSeparatesAlternatingTones(t *testing.T) {
	buf := bursts(1, burst{0, 0.5, 0.5})
	for n := int(0.5 * testRate); n < len(buf.Data); n++ {
		buf.Data[n] = float32(0.5 * math.Sin(2*math.Pi*1764*float64(n)/testRate))
	}

	res := analyze(t, batch.NMF, buf)

	require.Len(t, res.Takes, 2)
	assert.Equal(t, "nmf-1", res.Takes[0].Suffix)
	assert.Equal(t, "nmf-2", res.Takes[1].Suffix)
	assertTakesSumToSource(t, buf, res.Takes)

	// Each component owns one of the halves.
	half := len(buf.Data) / 2
	first := func(take RenderedTake) float64 {
		a, b := energy(take.Buffer, 0, half), energy(take.Buffer, half, len(buf.Data))
		return a / (a + b)
	}
	shares := []float64{first(res.Takes[0]), first(res.Takes[1])}
	if shares[0] < shares[1] {
		shares[0], shares[1] = shares[1], shares[0]
	}
	assert.Greater(t, shares[0], 0.8)
	assert.Less(t, shares[1], 0.2)
}

func TestSeparationRejectsEmptySource(t *testing.T) {
	for _, alg := range []batch.Algorithm{batch.HPSS, batch.NMF} {
		process, ok := processorFor(alg, config.DefaultAlgorithms())
		require.True(t, ok)
		_, err := process(context.Background(), &audio.Buffer{SampleRate: testRate, Channels: 1}, &progress{})
		assert.ErrorIs(t, err, errEmptySource, alg.String())
	}
}

func TestSTFTRoundTrip(t *testing.T) {
	x := channelOf(bursts(0.1, burst{0.01, 0.05, 0.7}), 0)
	st := newSTFT()
	var p progress

	spec, err := st.forward(context.Background(), x, &p, 0, 0.5)
	require.NoError(t, err)
	require.Len(t, spec, stftFrames(len(x)))

	y, err := st.synthesize(context.Background(), len(spec), len(x), func(k int, dst []complex128) {
		copy(dst, spec[k])
	}, &p, 0.5, 1)
	require.NoError(t, err)
	require.Len(t, y, len(x))
	for i := range x {
		assert.InDelta(t, x[i], y[i], 1e-9)
	}
}

func TestOddSize(t *testing.T) {
	assert.Equal(t, 3, oddSize(0))
	assert.Equal(t, 17, oddSize(17))
	assert.Equal(t, 31, oddSize(30))
}

func TestPeakPick(t *testing.T) {
	det := []float64{0, 0.5, 0.2, 1, 0.9, 0, 0.8, 0.1, 0.25, 0}

	assert.Equal(t, []int{1, 3, 6, 8}, peakPick(det, 0.2, 1))
	assert.Equal(t, []int{1, 6}, peakPick(det, 0.2, 3))
	assert.Equal(t, []int{3, 6}, peakPick(det, 0.6, 1))
	assert.Empty(t, peakPick(make([]float64, 5), 0, 1))
}

func TestMedianFilter(t *testing.T) {
	assert.Equal(t, []float64{0, 0, 0, 0}, medianFilter([]float64{0, 5, 0, 0}, 3))
	assert.Equal(t, []float64{1, 2}, medianFilter([]float64{1, 2}, 1))
}
