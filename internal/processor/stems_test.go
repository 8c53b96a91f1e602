package processor

import (
	"errors"
	"math"
	"testing"

	"github.com/linuxmatters/mixdesk/internal/fault"
)

func TestParseStem(t *testing.T) {
	tests := []struct {
		id      string
		want    Stem
		wantErr bool
	}{
		{"vocals", StemVocals, false},
		{"Drums", StemDrums, false},
		{"BASS", StemBass, false},
		{"melody", StemMelody, false},
		{"harmony", StemHarmony, false},
		{"kazoo", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseStem(tt.id)
			if tt.wantErr {
				if !errors.Is(err, fault.ErrInput) {
					t.Errorf("ParseStem(%q) error = %v, want ErrInput", tt.id, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStem(%q) error = %v", tt.id, err)
			}
			if got != tt.want {
				t.Errorf("ParseStem(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestStemConfidenceBounds(t *testing.T) {
	rmsValues := []float64{0, 0.001, 0.05, 0.5, 10}
	durations := []float64{0, 0.5, 30, 180, 3600}

	for _, stem := range AllStems {
		t.Run(stem.String(), func(t *testing.T) {
			base := stemBaseConfidence(stem)
			for _, rms := range rmsValues {
				for _, dur := range durations {
					c := StemConfidence(stem, rms, dur)
					if c < base || c > maxStemConfidence {
						t.Errorf("StemConfidence(rms=%v, dur=%v) = %v, want within [%v, %v]",
							rms, dur, c, base, maxStemConfidence)
					}
				}
			}
		})
	}
}

func TestStemBaseConfidenceRange(t *testing.T) {
	for _, stem := range AllStems {
		if b := stemBaseConfidence(stem); b < 0.76 || b > 0.88 {
			t.Errorf("%s base confidence = %v, want within [0.76, 0.88]", stem, b)
		}
	}
}

func TestAttenuationCurves(t *testing.T) {
	tests := []struct {
		stem Stem
		freq float64
		want float64
	}{
		{StemBass, 60, 1.0},
		{StemBass, 150, 1.0},
		{StemBass, 225, 0.6},
		{StemBass, 300, 0.2},
		{StemBass, 5000, 0.05},
		{StemDrums, 50, 0.6},
		{StemDrums, 1000, 0.9},
		{StemDrums, 8000, 0.5},
		{StemDrums, 15000, 0.3},
		{StemVocals, 100, 0.1},
		{StemVocals, 1000, 1.0},
		{StemVocals, 6000, 0.5},
		{StemVocals, 10000, 0.2},
		{StemMelody, 1000, 0.9},
		{StemMelody, 200, 0.4},
		{StemMelody, 7000, 0.4},
		{StemMelody, 50, 0.1},
		{StemHarmony, 2000, 0.85},
		{StemHarmony, 300, 0.4},
		{StemHarmony, 10000, 0.4},
		{StemHarmony, 16000, 0.1},
	}

	for _, tt := range tests {
		if got := attenuation(tt.stem, tt.freq); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("attenuation(%s, %v Hz) = %v, want %v", tt.stem, tt.freq, got, tt.want)
		}
	}
}

func TestFilterChannelUnityGainReconstructs(t *testing.T) {
	lengths := []int{100, FrameSize, 3*HopSize + 17, 44100}

	for _, n := range lengths {
		signal := toneBuffer(n, 44100, 0.4, 220, 3100)
		gains := make([]float64, FrameSize/2+1)
		for k := range gains {
			gains[k] = 1
		}

		out := filterChannel(signal, gains)
		if len(out) != len(signal) {
			t.Fatalf("length %d: output length = %d", n, len(out))
		}
		for i := range signal {
			if math.Abs(out[i]-signal[i]) > 1e-9 {
				t.Errorf("length %d: sample %d = %v, want %v", n, i, out[i], signal[i])
				break
			}
		}
	}
}

func TestExtractStemBassRaisesLowShare(t *testing.T) {
	s := generateTestAudio(t, TestAudioOptions{
		DurationSecs: 2,
		Channels:     2,
		ToneFreqs:    []float64{60, 1000, 5000, 12000},
		ToneLevel:    -20,
	})

	original, err := Analyze(s)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	result, err := ExtractStem(s, StemBass)
	if err != nil {
		t.Fatalf("ExtractStem() error = %v", err)
	}

	if got, was := result.Profile.Share(BandLow), original.Share(BandLow); got <= was {
		t.Errorf("bass stem low-band share = %.3f, want above original %.3f", got, was)
	}
	if result.Stem != StemBass {
		t.Errorf("Stem = %v, want bass", result.Stem)
	}
	if result.Confidence < stemBaseConfidence(StemBass) || result.Confidence > maxStemConfidence {
		t.Errorf("Confidence = %v out of range", result.Confidence)
	}
}

func TestExtractStemPreservesFormat(t *testing.T) {
	s := generateTestAudio(t, TestAudioOptions{Channels: 2, NoiseLevel: -20, Width: 0.3})
	before := make([]float64, len(s.Data))
	copy(before, s.Data)

	for _, stem := range AllStems {
		t.Run(stem.String(), func(t *testing.T) {
			result, err := ExtractStem(s, stem)
			if err != nil {
				t.Fatalf("ExtractStem() error = %v", err)
			}
			out := result.Sample
			if out == s {
				t.Fatal("ExtractStem returned the input sample")
			}
			if len(out.Data) != len(s.Data) || out.Channels != s.Channels || out.SampleRate != s.SampleRate {
				t.Errorf("output format = %d samples %d ch %d Hz, want %d samples %d ch %d Hz",
					len(out.Data), out.Channels, out.SampleRate, len(s.Data), s.Channels, s.SampleRate)
			}
			// Every curve attenuates somewhere, so the stem is quieter than the mix
			if out.RMS() >= s.RMS() {
				t.Errorf("stem RMS %v, want below input RMS %v", out.RMS(), s.RMS())
			}
		})
	}

	for i := range before {
		if s.Data[i] != before[i] {
			t.Fatal("ExtractStem mutated its input")
		}
	}
}

func TestExtractStemRejectsUnknownStem(t *testing.T) {
	s := generateTestAudio(t, TestAudioOptions{NoiseLevel: -20})
	if _, err := ExtractStem(s, Stem(42)); !errors.Is(err, fault.ErrInput) {
		t.Errorf("ExtractStem(Stem(42)) error = %v, want ErrInput", err)
	}
}
