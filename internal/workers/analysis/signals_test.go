package analysis

import (
	"math"
	"testing"

	"github.com/JSH-Team/mediabatch/internal/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 44100

// burst describes a sine burst in seconds.
type burst struct {
	start, length, amp float64
}

func bursts(seconds float64, bs ...burst) *audio.Buffer {
	data := make([]float32, int(seconds*testRate))
	for _, b := range bs {
		from := int(b.start * testRate)
		to := from + int(b.length*testRate)
		for n := from; n < to && n < len(data); n++ {
			data[n] = float32(b.amp * math.Sin(2*math.Pi*441*float64(n)/testRate))
		}
	}
	return &audio.Buffer{SampleRate: testRate, Channels: 1, Data: data}
}

func impulses(seconds float64, at ...float64) *audio.Buffer {
	data := make([]float32, int(seconds*testRate))
	for _, s := range at {
		data[int(s*testRate)] = 1
	}
	return &audio.Buffer{SampleRate: testRate, Channels: 1, Data: data}
}

func positions(r *Result) []float64 {
	out := make([]float64, len(r.Markers))
	for i, m := range r.Markers {
		out[i] = m.Position
	}
	return out
}

// hopSeconds is the marker resolution at testRate.
const hopSeconds = float64(HopSize) / testRate

// energy is the sum of squares of samples [from, to) over all channels.
func energy(buf *audio.Buffer, from, to int) float64 {
	var sum float64
	for n := from * buf.Channels; n < to*buf.Channels && n < len(buf.Data); n++ {
		sum += float64(buf.Data[n]) * float64(buf.Data[n])
	}
	return sum
}

func assertTakesSumToSource(t *testing.T, src *audio.Buffer, takes []RenderedTake) {
	t.Helper()
	for _, take := range takes {
		require.Len(t, take.Buffer.Data, len(src.Data))
	}
	for i, v := range src.Data {
		var sum float32
		for _, take := range takes {
			sum += take.Buffer.Data[i]
		}
		if !assert.InDelta(t, v, sum, 1e-4, "sample %d", i) {
			return
		}
	}
}
