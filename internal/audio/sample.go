// Package audio holds decoded PCM buffers and the codecs that produce them.
package audio

import (
	"encoding/binary"
	"math"

	"github.com/OneOfOne/xxhash"
	"github.com/linuxmatters/mixdesk/internal/fault"
)

// Sample is a decoded PCM buffer. Data is interleaved and normalised to [-1, 1].
//
// A Sample is owned by the request that decoded it and is never mutated in
// place: every transform returns a new Sample.
type Sample struct {
	Data       []float64
	SampleRate int
	Channels   int
	BitDepth   int
	SourcePath string // empty for buffers that never touched disk
	Metadata   Metadata
}

// Metadata contains descriptive information about a decoded file
type Metadata struct {
	Duration   float64 `json:"duration"` // seconds
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bit_depth"`
	Format     string  `json:"format"` // container, e.g. "WAV", "FLAC", "MP3"
	Title      string  `json:"title,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	Album      string  `json:"album,omitempty"`
}

// NewSample validates and wraps interleaved PCM data.
func NewSample(data []float64, sampleRate, channels, bitDepth int) (*Sample, error) {
	s := &Sample{
		Data:       data,
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Metadata = Metadata{
		Duration:   s.Duration(),
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
	}
	return s, nil
}

// Validate reports an input error for buffers the engine cannot analyse.
func (s *Sample) Validate() error {
	switch {
	case s == nil:
		return fault.Input("nil sample")
	case s.SampleRate <= 0:
		return fault.Input("sample rate %d", s.SampleRate)
	case s.Channels <= 0:
		return fault.Input("channel count %d", s.Channels)
	case len(s.Data) == 0:
		return fault.Input("empty buffer")
	case len(s.Data)%s.Channels != 0:
		return fault.Input("%d samples do not divide into %d channels", len(s.Data), s.Channels)
	}
	for i, v := range s.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fault.Input("non-finite sample at %d", i)
		}
	}
	return nil
}

// Frames returns the number of sample frames (samples per channel).
func (s *Sample) Frames() int {
	if s.Channels == 0 {
		return 0
	}
	return len(s.Data) / s.Channels
}

// Duration returns the buffer length in seconds.
func (s *Sample) Duration() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(s.Frames()) / float64(s.SampleRate)
}

// Channel returns a copy of one channel's samples.
func (s *Sample) Channel(c int) []float64 {
	n := s.Frames()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = s.Data[i*s.Channels+c]
	}
	return out
}

// Mono returns the average of all channels.
func (s *Sample) Mono() []float64 {
	if s.Channels == 1 {
		out := make([]float64, len(s.Data))
		copy(out, s.Data)
		return out
	}
	n := s.Frames()
	out := make([]float64, n)
	scale := 1.0 / float64(s.Channels)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < s.Channels; c++ {
			sum += s.Data[i*s.Channels+c]
		}
		out[i] = sum * scale
	}
	return out
}

// WithData returns a new Sample carrying data and this sample's format.
func (s *Sample) WithData(data []float64) *Sample {
	out := *s
	out.Data = data
	out.SourcePath = ""
	out.Metadata.Duration = float64(len(data)/max(s.Channels, 1)) / float64(max(s.SampleRate, 1))
	return &out
}

// Scale returns a copy with every sample multiplied by gain.
func (s *Sample) Scale(gain float64) *Sample {
	data := make([]float64, len(s.Data))
	for i, v := range s.Data {
		data[i] = v * gain
	}
	return s.WithData(data)
}

// Peak returns the largest absolute sample value.
func (s *Sample) Peak() float64 {
	var peak float64
	for _, v := range s.Data {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root mean square over all channels.
func (s *Sample) RMS() float64 {
	if len(s.Data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.Data {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(s.Data)))
}

// Interleave merges per-channel slices of equal length into one buffer.
func Interleave(channels [][]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	out := make([]float64, n*len(channels))
	for c, ch := range channels {
		for i := 0; i < n && i < len(ch); i++ {
			out[i*len(channels)+c] = ch[i]
		}
	}
	return out
}

// Fingerprint hashes the PCM content and format so identical buffers can be
// recognised across requests without keeping them around.
func Fingerprint(s *Sample) uint64 {
	h := xxhash.New64()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(s.SampleRate)<<16|uint64(s.Channels))
	h.Write(buf[:])
	for _, v := range s.Data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return h.Sum64()
}
