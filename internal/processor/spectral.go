package processor

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Band identifies one of the five spectral energy bands.
type Band int

const (
	BandLow Band = iota
	BandLowMid
	BandMid
	BandHighMid
	BandHigh
	NumBands
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandLowMid:
		return "low-mid"
	case BandMid:
		return "mid"
	case BandHighMid:
		return "high-mid"
	case BandHigh:
		return "high"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// bandSplit is the proportional width of each band: 10/20/30/20/20%
var bandSplit = [NumBands]float64{0.10, 0.20, 0.30, 0.20, 0.20}

// rolloffFraction is the share of spectral magnitude that sits below the rolloff bin
const rolloffFraction = 0.85

// SpectralProfile aggregates every frame of one buffer.
type SpectralProfile struct {
	Bands      [NumBands]float64 `json:"bands"`       // mean magnitude per band
	Centroid   float64           `json:"centroid"`    // magnitude-weighted bin index
	CentroidHz float64           `json:"centroid_hz"` // centroid converted to Hz
	Rolloff    float64           `json:"rolloff"`     // bin below which 85% of magnitude lies
	RolloffHz  float64           `json:"rolloff_hz"`
	Flux       float64           `json:"flux"` // summed frame-to-frame magnitude change
	FrameCount int               `json:"frame_count"`
	BinCount   int               `json:"bin_count"`
	SampleRate int               `json:"sample_rate"`

	// MeanSpectrum is the per-bin mean magnitude across frames
	MeanSpectrum []float64 `json:"-"`
}

// Spectrogram holds the magnitude of the first half of every frame's spectrum.
type Spectrogram struct {
	Frames     [][]float64
	SampleRate int
}

// Flat concatenates every frame's magnitudes into one vector.
func (s *Spectrogram) Flat() []float64 {
	out := make([]float64, 0, len(s.Frames)*BinCount)
	for _, f := range s.Frames {
		out = append(out, f...)
	}
	return out
}

// BandBounds returns the bin boundaries of the five bands within one frame's
// half-spectrum. Band b spans [bounds[b], bounds[b+1]); the first bound is 0
// and the last is bins, so the bands tile the frame without gap or overlap.
func BandBounds(bins int) [NumBands + 1]int {
	var bounds [NumBands + 1]int
	cum := 0.0
	for b := Band(0); b < NumBands; b++ {
		cum += bandSplit[b]
		bounds[b+1] = int(math.Round(cum * float64(bins)))
	}
	bounds[NumBands] = bins
	return bounds
}

// Analyze computes the spectral profile of a sample's mono mixdown.
func Analyze(s *audio.Sample) (SpectralProfile, error) {
	if err := s.Validate(); err != nil {
		return SpectralProfile{}, err
	}
	return AnalyzeBuffer(s.Mono(), s.SampleRate)
}

// AnalyzeBuffer computes the spectral profile of a mono buffer.
// Buffers shorter than one frame are zero-padded.
func AnalyzeBuffer(mono []float64, sampleRate int) (SpectralProfile, error) {
	if len(mono) == 0 {
		return SpectralProfile{}, fault.Input("empty buffer")
	}
	if sampleRate <= 0 {
		return SpectralProfile{}, fault.Input("sample rate %d", sampleRate)
	}
	for i, v := range mono {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SpectralProfile{}, fault.Input("non-finite sample at %d", i)
		}
	}
	return profileFromSpectrogram(ComputeSpectrogram(mono, sampleRate)), nil
}

// ComputeSpectrogram frames mono at FrameSize with 50% overlap, applies a
// periodic Hann window and keeps the magnitude of the first BinCount bins.
func ComputeSpectrogram(mono []float64, sampleRate int) *Spectrogram {
	fft := fourier.NewFFT(FrameSize)
	win := periodicHann(FrameSize)
	frame := make([]float64, FrameSize)
	coeffs := make([]complex128, FrameSize/2+1)

	starts := frameStarts(len(mono), false)
	sg := &Spectrogram{Frames: make([][]float64, len(starts)), SampleRate: sampleRate}
	for i, pos := range starts {
		fillFrame(frame, mono, win, pos)
		coeffs = fft.Coefficients(coeffs, frame)
		mags := make([]float64, BinCount)
		for k := range mags {
			mags[k] = cmplx.Abs(coeffs[k])
		}
		sg.Frames[i] = mags
	}
	return sg
}

func profileFromSpectrogram(sg *Spectrogram) SpectralProfile {
	p := SpectralProfile{
		FrameCount: len(sg.Frames),
		BinCount:   BinCount,
		SampleRate: sg.SampleRate,
	}

	// Bands are sliced per frame out of the flat vector; slicing the whole
	// vector five ways would split by time instead of frequency.
	bounds := BandBounds(BinCount)
	flat := sg.Flat()
	var bandSums [NumBands]float64
	mean := make([]float64, BinCount)
	for t, mags := range sg.Frames {
		off := t * BinCount
		for b := Band(0); b < NumBands; b++ {
			bandSums[b] += floats.Sum(flat[off+bounds[b] : off+bounds[b+1]])
		}
		floats.Add(mean, mags)
		if t > 0 {
			prev := sg.Frames[t-1]
			for k := range mags {
				p.Flux += math.Abs(mags[k] - prev[k])
			}
		}
	}

	frames := float64(len(sg.Frames))
	for b := Band(0); b < NumBands; b++ {
		count := frames * float64(bounds[b+1]-bounds[b])
		p.Bands[b] = bandSums[b] / count
	}
	floats.Scale(1/frames, mean)
	p.MeanSpectrum = mean

	total := floats.Sum(mean)
	if total > 0 {
		var weighted, cum float64
		for k, m := range mean {
			weighted += float64(k) * m
		}
		p.Centroid = weighted / total

		for k, m := range mean {
			cum += m
			if cum >= rolloffFraction*total {
				p.Rolloff = float64(k)
				break
			}
		}
	}

	binHz := float64(sg.SampleRate) / FrameSize
	p.CentroidHz = p.Centroid * binHz
	p.RolloffHz = p.Rolloff * binHz
	return p
}

// BandShares returns each band's fraction of the summed band energies.
// A silent profile has all-zero shares.
func (p SpectralProfile) BandShares() [NumBands]float64 {
	var shares [NumBands]float64
	total := 0.0
	for _, e := range p.Bands {
		total += e
	}
	if total == 0 {
		return shares
	}
	for b, e := range p.Bands {
		shares[b] = e / total
	}
	return shares
}

// Share returns one band's fraction of the summed band energies.
func (p SpectralProfile) Share(b Band) float64 {
	return p.BandShares()[b]
}

// Hum detection thresholds
const (
	humProminenceDB = 12.0 // peak must stand this far above its neighbourhood
	humFloorRatio   = 1e-3 // ignore peaks below this fraction of the spectrum maximum
)

// DetectHum looks for a mains-frequency peak (fundamental or second harmonic)
// in the mean spectrum and returns a notch suggestion when one stands out.
// mainsHz is typically 50 or 60; zero disables the check.
func DetectHum(p SpectralProfile, mainsHz float64) *Suggestion {
	if mainsHz <= 0 || len(p.MeanSpectrum) == 0 || p.SampleRate == 0 {
		return nil
	}
	peak := floats.Max(p.MeanSpectrum)
	if peak == 0 {
		return nil
	}

	binHz := float64(p.SampleRate) / FrameSize
	for _, harmonic := range []float64{1, 2} {
		freq := mainsHz * harmonic
		bin := int(math.Round(freq / binHz))
		if bin < 1 || bin+8 >= len(p.MeanSpectrum) {
			continue
		}
		level := p.MeanSpectrum[bin]
		if level < humFloorRatio*peak {
			continue
		}

		var neighbours []float64
		for off := 3; off <= 8; off++ {
			neighbours = append(neighbours, p.MeanSpectrum[bin+off])
			if bin-off >= 1 {
				neighbours = append(neighbours, p.MeanSpectrum[bin-off])
			}
		}
		sort.Float64s(neighbours)
		floor := neighbours[len(neighbours)/2]
		if floor <= 0 {
			floor = math.SmallestNonzeroFloat64
		}

		prominence := math.Min(LinearToDb(level/floor), 60)
		if prominence < humProminenceDB {
			continue
		}
		what := "the local mains frequency"
		if harmonic > 1 {
			what = "twice the local mains frequency"
		}
		return &Suggestion{
			Category:   CategoryNoise,
			Priority:   PriorityHigh,
			Suggestion: fmt.Sprintf("Notch out %.0f Hz mains hum", freq),
			Reasoning:  fmt.Sprintf("The spectrum peaks %.1f dB above its neighbourhood at %.0f Hz, %s.", prominence, freq, what),
			Confidence: 0.7,
			Impact:     0.5,
			Parameters: map[string]float64{"frequency": freq, "prominenceDB": prominence},
			RuleID:     "mains_hum",
		}
	}
	return nil
}

// MeasureStereoWidth returns the side/mid RMS ratio scaled so that 1.0 is a
// side channel at half the mid level. Mono material measures 0 and the value
// is capped at 2.
func MeasureStereoWidth(s *audio.Sample) float64 {
	if s == nil || s.Channels < 2 {
		return 0
	}
	var midSum, sideSum float64
	n := s.Frames()
	for i := 0; i < n; i++ {
		l := s.Data[i*s.Channels]
		r := s.Data[i*s.Channels+1]
		mid := (l + r) / 2
		side := (l - r) / 2
		midSum += mid * mid
		sideSum += side * side
	}
	if sideSum == 0 {
		return 0
	}
	if midSum == 0 {
		return 2
	}
	return math.Min(2, 2*math.Sqrt(sideSum/midSum))
}
