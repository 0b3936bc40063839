package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrNotWAV            = errors.New("not a RIFF/WAVE file")
	ErrUnsupportedFormat = errors.New("unsupported WAV sample format")
)

const (
	formatPCM        = 0x0001
	formatFloat      = 0x0003
	formatExtensible = 0xFFFE
)

// Buffer holds interleaved samples normalised to [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   int
	Data       []float32
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Mono averages all channels into one signal.
func (b *Buffer) Mono() []float64 {
	frames := b.Frames()
	out := make([]float64, frames)
	if frames == 0 {
		return out
	}
	scale := 1 / float64(b.Channels)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < b.Channels; c++ {
			sum += float64(b.Data[i*b.Channels+c])
		}
		out[i] = sum * scale
	}
	return out
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	buf, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Read decodes a PCM (8/16/24/32-bit) or 32-bit float WAV stream.
// Extensible files are read as integer PCM.
func Read(r io.ReadSeeker) (*Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
		}
		return nil, ErrNotWAV
	}

	convert, err := sampleConverter(d.WavAudioFormat, d.BitDepth)
	if err != nil {
		return nil, err
	}
	channels, rate := int(d.NumChans), int(d.SampleRate)
	if rate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, channels, rate)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}

	// Truncated data chunks are common; keep the whole frames.
	frames := len(pcm.Data) / channels
	buf := &Buffer{
		SampleRate: rate,
		Channels:   channels,
		Data:       make([]float32, frames*channels),
	}
	for i := range buf.Data {
		buf.Data[i] = convert(pcm.Data[i])
	}
	return buf, nil
}

// sampleConverter maps decoded integer samples onto [-1, 1]. Float samples
// arrive as their IEEE bits.
func sampleConverter(format, bits uint16) (func(int) float32, error) {
	switch {
	case format == formatFloat && bits == 32:
		return func(v int) float32 { return math.Float32frombits(uint32(int32(v))) }, nil
	case format != formatPCM && format != formatExtensible:
	case bits == 8:
		// 8-bit samples are unsigned
		return func(v int) float32 { return (float32(v) - 128) / 128 }, nil
	case bits == 16 || bits == 24 || bits == 32:
		scale := 1 / float64(int64(1)<<(bits-1))
		return func(v int) float32 { return float32(float64(v) * scale) }, nil
	}
	return nil, fmt.Errorf("%w: format 0x%04x, %d bits", ErrUnsupportedFormat, format, bits)
}

// WriteFile encodes buf as 32-bit float WAV, creating parent directories. The
// file is written to a temporary name first and renamed into place.
func WriteFile(path string, buf *Buffer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = Write(f, buf)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Write encodes buf as a 32-bit float WAV stream. The header is patched once
// the samples are written, so w has to seek.
func Write(w io.WriteSeeker, buf *Buffer) error {
	if buf.Channels <= 0 || buf.SampleRate <= 0 {
		return fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, buf.Channels, buf.SampleRate)
	}

	data := make([]int, buf.Frames()*buf.Channels)
	for i := range data {
		data[i] = int(int32(math.Float32bits(buf.Data[i])))
	}

	e := wav.NewEncoder(w, buf.SampleRate, 32, buf.Channels, formatFloat)
	err := e.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buf.Channels, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: 32,
	})
	if err != nil {
		return fmt.Errorf("encoding samples: %w", err)
	}
	return e.Close()
}
