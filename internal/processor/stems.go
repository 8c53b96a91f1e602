package processor

import (
	"fmt"
	"math"
	"strings"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Stem identifies a frequency-band isolation target.
//
// Stems here are band-limited versions of the full mix, not separated
// sources: any instrument sharing the stem's band leaks through. A "vocals"
// stem contains guitars, keys and snare body that sit between 200 Hz and
// 4 kHz just as surely as it contains the singer.
type Stem int

const (
	StemVocals Stem = iota
	StemDrums
	StemBass
	StemMelody
	StemHarmony
)

// AllStems lists every stem type in extraction order.
var AllStems = []Stem{StemVocals, StemDrums, StemBass, StemMelody, StemHarmony}

func (s Stem) String() string {
	switch s {
	case StemVocals:
		return "vocals"
	case StemDrums:
		return "drums"
	case StemBass:
		return "bass"
	case StemMelody:
		return "melody"
	case StemHarmony:
		return "harmony"
	default:
		return fmt.Sprintf("Stem(%d)", int(s))
	}
}

// ParseStem maps a stem id to its type. Unknown ids are an input error.
func ParseStem(id string) (Stem, error) {
	for _, s := range AllStems {
		if strings.EqualFold(id, s.String()) {
			return s, nil
		}
	}
	return 0, fault.Input("unknown stem type %q", id)
}

// StemExtractionResult is one band-filtered output.
type StemExtractionResult struct {
	Stem       Stem            `json:"stem"`
	Sample     *audio.Sample   `json:"-"`
	OutputPath string          `json:"output_path,omitempty"`
	Confidence float64         `json:"confidence"`
	Profile    SpectralProfile `json:"profile"`
}

// attenuation returns the gain applied to a bin at freq Hz for the stem.
// Curves are piecewise linear; the corner frequencies are the only tuning.
func attenuation(stem Stem, freq float64) float64 {
	switch stem {
	case StemBass:
		switch {
		case freq <= 150:
			return 1.0
		case freq <= 300:
			return lerp(1.0, 0.2, (freq-150)/150)
		case freq <= 600:
			return lerp(0.2, 0.05, (freq-300)/300)
		default:
			return 0.05
		}
	case StemDrums:
		switch {
		case freq < 100:
			return 0.6 // kick fundamental
		case freq <= 5000:
			return 0.9
		case freq <= 12000:
			return 0.5 // cymbal body
		default:
			return 0.3
		}
	case StemVocals:
		switch {
		case freq < 200:
			return 0.1
		case freq <= 4000:
			return 1.0
		case freq <= 8000:
			return 0.5 // sibilance and air
		default:
			return 0.2
		}
	case StemMelody:
		switch {
		case freq >= 300 && freq <= 5000:
			return 0.9
		case freq >= 150 && freq < 300, freq > 5000 && freq <= 8000:
			return 0.4
		default:
			return 0.1
		}
	case StemHarmony:
		switch {
		case freq >= 500 && freq <= 8000:
			return 0.85
		case freq >= 250 && freq < 500, freq > 8000 && freq <= 12000:
			return 0.4
		default:
			return 0.1
		}
	default:
		panic(fmt.Sprintf("processor: unhandled stem %d", int(stem)))
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Stem confidence heuristic constants
const (
	maxStemConfidence = 0.95
	maxEnergyBonus    = 0.04
	energyBonusScale  = 0.2  // bonus per unit of output RMS
	maxSizeBonus      = 0.03
	sizeBonusPerMin   = 0.01 // bonus per minute of input
)

// stemBaseConfidence is the starting point of StemConfidence per stem type.
// Bass is easiest to isolate by frequency alone; melody overlaps the most.
func stemBaseConfidence(stem Stem) float64 {
	switch stem {
	case StemVocals:
		return 0.82
	case StemDrums:
		return 0.80
	case StemBass:
		return 0.88
	case StemMelody:
		return 0.76
	case StemHarmony:
		return 0.78
	default:
		panic(fmt.Sprintf("processor: unhandled stem %d", int(stem)))
	}
}

// StemConfidence is a deterministic explainability score for a band-filtered
// stem: the stem type's base value plus small bonuses for output energy and
// input length, capped at 0.95. It is not a measure of separation quality;
// nothing is learned or estimated statistically.
func StemConfidence(stem Stem, outputRMS, durationSecs float64) float64 {
	c := stemBaseConfidence(stem)
	if outputRMS > 0 {
		c += math.Min(maxEnergyBonus, outputRMS*energyBonusScale)
	}
	if durationSecs > 0 {
		c += math.Min(maxSizeBonus, durationSecs/60*sizeBonusPerMin)
	}
	return math.Min(maxStemConfidence, c)
}

// ExtractStem band-filters every channel of s with the stem's attenuation
// curve and reconstructs the result by overlap-add.
func ExtractStem(s *audio.Sample, stem Stem) (StemExtractionResult, error) {
	if err := s.Validate(); err != nil {
		return StemExtractionResult{}, err
	}
	if stem < StemVocals || stem > StemHarmony {
		return StemExtractionResult{}, fault.Input("unknown stem type %d", int(stem))
	}

	gains := make([]float64, FrameSize/2+1)
	binHz := float64(s.SampleRate) / FrameSize
	for k := range gains {
		gains[k] = attenuation(stem, float64(k)*binHz)
	}

	channels := make([][]float64, s.Channels)
	for c := range channels {
		channels[c] = filterChannel(s.Channel(c), gains)
	}

	out := s.WithData(audio.Interleave(channels))
	profile, err := Analyze(out)
	if err != nil {
		return StemExtractionResult{}, err
	}

	return StemExtractionResult{
		Stem:       stem,
		Sample:     out,
		Confidence: StemConfidence(stem, out.RMS(), s.Duration()),
		Profile:    profile,
	}, nil
}

// filterChannel applies per-bin gains to each centred frame and overlap-adds
// the inverse transforms. The periodic Hann windows at 50% overlap sum to one,
// so an all-ones gain curve reproduces the input.
func filterChannel(signal, gains []float64) []float64 {
	fft := fourier.NewFFT(FrameSize)
	win := periodicHann(FrameSize)
	frame := make([]float64, FrameSize)
	coeffs := make([]complex128, FrameSize/2+1)
	inverse := make([]float64, FrameSize)
	out := make([]float64, len(signal))

	for _, pos := range frameStarts(len(signal), true) {
		fillFrame(frame, signal, win, pos)
		coeffs = fft.Coefficients(coeffs, frame)
		for k := range coeffs {
			coeffs[k] *= complex(gains[k], 0)
		}
		inverse = fft.Sequence(inverse, coeffs)
		for i, v := range inverse {
			j := pos + i
			if j >= 0 && j < len(out) {
				out[j] += v / FrameSize
			}
		}
	}
	return out
}
