package processor

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/linuxmatters/mixdesk/internal/audio"
)

// TestAudioOptions configures the synthetic audio to generate
type TestAudioOptions struct {
	DurationSecs float64   // Total duration in seconds (default: 1)
	SampleRate   int       // Sample rate (default: 44100)
	Channels     int       // Channel count (default: 1)
	ToneFreqs    []float64 // Sine frequencies in Hz, summed
	ToneLevel    float64   // Level of each tone in dBFS (e.g., -23.0)
	NoiseLevel   float64   // White noise level in dBFS (0 = no noise, -60 = quiet noise)
	Width        float64   // 0 = identical channels; >0 decorrelates the right channel
	SilenceGap   struct {
		Start    float64 // Start time of silence gap in seconds
		Duration float64 // Duration of silence gap in seconds
	}
}

// generateTestAudio creates a synthetic sample for testing.
// The generated audio can include sine tones, white noise, and silence gaps.
func generateTestAudio(t *testing.T, opts TestAudioOptions) *audio.Sample {
	t.Helper()

	// Set defaults
	if opts.SampleRate == 0 {
		opts.SampleRate = 44100
	}
	if opts.DurationSecs == 0 {
		opts.DurationSecs = 1.0
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}

	frames := int(opts.DurationSecs * float64(opts.SampleRate))

	toneAmp := 0.0
	if len(opts.ToneFreqs) > 0 && opts.ToneLevel < 0 {
		toneAmp = math.Pow(10.0, opts.ToneLevel/20.0)
	}
	noiseAmp := 0.0
	if opts.NoiseLevel < 0 {
		noiseAmp = math.Pow(10.0, opts.NoiseLevel/20.0)
	}

	silenceStart := int(opts.SilenceGap.Start * float64(opts.SampleRate))
	silenceEnd := int((opts.SilenceGap.Start + opts.SilenceGap.Duration) * float64(opts.SampleRate))

	// Simple LCG random number generator for deterministic noise
	// (avoids importing math/rand and seeding complexity)
	rngState := uint32(12345)
	nextRandom := func() float64 {
		// LCG parameters from Numerical Recipes
		rngState = rngState*1664525 + 1013904223
		// Convert to -1.0 to 1.0 range
		return (float64(rngState)/float64(0xFFFFFFFF))*2.0 - 1.0
	}

	data := make([]float64, frames*opts.Channels)
	for i := 0; i < frames; i++ {
		if i >= silenceStart && i < silenceEnd && opts.SilenceGap.Duration > 0 {
			continue
		}

		var v float64
		tm := float64(i) / float64(opts.SampleRate)
		for _, f := range opts.ToneFreqs {
			v += toneAmp * math.Sin(2.0*math.Pi*f*tm)
		}
		if noiseAmp > 0 {
			v += noiseAmp * nextRandom()
		}

		for c := 0; c < opts.Channels; c++ {
			s := v
			if c == 1 && opts.Width > 0 {
				s = v*(1-opts.Width) + opts.Width*noiseOrTone(toneAmp, noiseAmp, tm, nextRandom)
			}
			data[i*opts.Channels+c] = math.Max(-1, math.Min(1, s))
		}
	}

	s, err := audio.NewSample(data, opts.SampleRate, opts.Channels, 16)
	if err != nil {
		t.Fatalf("failed to build test sample: %v", err)
	}
	return s
}

// noiseOrTone returns an uncorrelated signal of similar level for the right
// channel of a wide test sample.
func noiseOrTone(toneAmp, noiseAmp, tm float64, rnd func() float64) float64 {
	if noiseAmp > 0 {
		return noiseAmp * rnd()
	}
	return toneAmp * math.Cos(2.0*math.Pi*997*tm)
}

// silentSample returns an all-zero sample.
func silentSample(t *testing.T, secs float64, sampleRate, channels int) *audio.Sample {
	t.Helper()
	s, err := audio.NewSample(make([]float64, int(secs*float64(sampleRate))*channels), sampleRate, channels, 16)
	if err != nil {
		t.Fatalf("failed to build silent sample: %v", err)
	}
	return s
}

// writeTestAudio writes s as a WAV file in a per-test directory and returns its path.
func writeTestAudio(t *testing.T, s *audio.Sample, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := audio.WriteWAVFile(path, s); err != nil {
		t.Fatalf("failed to write WAV file: %v", err)
	}
	return path
}
