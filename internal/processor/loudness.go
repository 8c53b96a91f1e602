package processor

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// Loudness model constants for the internal block-gated approximation.
// The K-weighting filter is approximated by its constant offset.
const (
	LoudnessFloor    = -70.0  // LUFS; integrated loudness never reports below this
	absoluteGate     = -70.0  // LUFS; quieter blocks are discarded
	kWeightingOffset = -0.691 // dB
	blockSeconds     = 0.4    // 400 ms gating blocks, 50% overlap
	shortTermSeconds = 3.0
	momentarySeconds = 0.4
	relativeGateLU   = 10.0 // reported threshold sits this far below integrated
)

// Loudness sources
const (
	SourceExternal = "external"
	SourceInternal = "internal"
)

// LoudnessMetrics is an immutable loudness measurement.
//
// Degraded is set when the figures come from the internal approximation
// rather than the external two-pass analyser. ShortTerm and Momentary from
// the external path are derived from integrated loudness and loudness range,
// not from sliding 3 s / 400 ms windows.
type LoudnessMetrics struct {
	Integrated    float64 `json:"integrated"`     // LUFS
	ShortTerm     float64 `json:"short_term"`     // LUFS
	Momentary     float64 `json:"momentary"`      // LUFS
	TruePeak      float64 `json:"true_peak"`      // dBTP
	DynamicRange  float64 `json:"dynamic_range"`  // dB, peak to RMS
	LoudnessRange float64 `json:"loudness_range"` // LU
	Threshold     float64 `json:"threshold"`      // LUFS, gating threshold
	Degraded      bool    `json:"degraded"`
	Source        string  `json:"source"`
}

// ExternalLoudness is what a two-pass loudness analyser reports.
type ExternalLoudness struct {
	Integrated    float64
	TruePeak      float64
	LoudnessRange float64
	Threshold     float64
}

// ExternalMeter measures a sample with a real psychoacoustic loudness model.
type ExternalMeter interface {
	MeasureSample(ctx context.Context, s *audio.Sample) (ExternalLoudness, error)
}

// Meter measures loudness, preferring the external analyser and falling back
// to the internal approximation when it is missing, slow or unintelligible.
type Meter struct {
	External ExternalMeter
	Timeout  time.Duration
	Logger   logrus.FieldLogger
}

// NewMeter returns a Meter. ext may be nil, in which case every measurement
// is internal and flagged degraded.
func NewMeter(ext ExternalMeter, timeout time.Duration, logger logrus.FieldLogger) *Meter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Meter{External: ext, Timeout: timeout, Logger: logger}
}

// Measure returns loudness metrics for s. Collaborator failures never fail
// the measurement; they select the degraded internal path instead.
func (m *Meter) Measure(ctx context.Context, s *audio.Sample) (LoudnessMetrics, error) {
	if err := s.Validate(); err != nil {
		return LoudnessMetrics{}, err
	}

	if m.External != nil {
		metrics, err := m.MeasureViaExternal(ctx, s)
		if err == nil {
			return metrics, nil
		}
		if ctx.Err() != nil {
			return LoudnessMetrics{}, ctx.Err()
		}
		m.Logger.WithFields(logrus.Fields{
			"error":       err,
			"unavailable": errors.Is(err, fault.ErrUnavailable),
			"parse":       errors.Is(err, fault.ErrParse),
		}).Warn("external loudness measurement failed, using internal approximation")
	}

	return MeasureInternal(s)
}

// MeasureViaExternal asks the external analyser only. Timeouts are reported
// as fault.ErrTimeout, which also matches fault.ErrUnavailable.
func (m *Meter) MeasureViaExternal(ctx context.Context, s *audio.Sample) (LoudnessMetrics, error) {
	if err := s.Validate(); err != nil {
		return LoudnessMetrics{}, err
	}
	if m.External == nil {
		return LoudnessMetrics{}, fault.Unavailable("loudness analyser", nil)
	}

	callCtx := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	ext, err := m.External.MeasureSample(callCtx, s)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, fault.ErrTimeout) {
			return LoudnessMetrics{}, fault.Timeout("loudness analyser", err)
		}
		return LoudnessMetrics{}, err
	}

	return fromExternal(ext, s), nil
}

// fromExternal fills the fields the analyser does not report. Short-term and
// momentary are offset from integrated by a third and a half of the
// loudness range respectively.
func fromExternal(ext ExternalLoudness, s *audio.Sample) LoudnessMetrics {
	integrated := clampFloor(ext.Integrated)
	lra := ext.LoudnessRange
	if math.IsNaN(lra) || math.IsInf(lra, 0) || lra < 0 {
		lra = 0
	}
	truePeak := ext.TruePeak
	if math.IsInf(truePeak, -1) || math.IsNaN(truePeak) {
		truePeak = LoudnessFloor
	}
	threshold := ext.Threshold
	if math.IsInf(threshold, -1) || math.IsNaN(threshold) {
		threshold = integrated - relativeGateLU
	}

	return LoudnessMetrics{
		Integrated:    integrated,
		ShortTerm:     integrated + lra/3,
		Momentary:     integrated + lra/2,
		TruePeak:      truePeak,
		DynamicRange:  peakToRMS(s),
		LoudnessRange: lra,
		Threshold:     threshold,
		Source:        SourceExternal,
	}
}

// MeasureInternal runs the block-gated RMS approximation. The result is
// always flagged Degraded.
func MeasureInternal(s *audio.Sample) (LoudnessMetrics, error) {
	if err := s.Validate(); err != nil {
		return LoudnessMetrics{}, err
	}

	blockLen := max(1, int(math.Round(blockSeconds*float64(s.SampleRate))))
	hop := max(1, blockLen/2)
	frames := s.Frames()

	var gatedPower, gatedLoudness []float64
	for start := 0; ; start += hop {
		end := min(start+blockLen, frames)
		ms := meanSquare(s, start, end)
		if l := powerToLoudness(ms); l >= absoluteGate {
			gatedPower = append(gatedPower, ms)
			gatedLoudness = append(gatedLoudness, l)
		}
		if end >= frames {
			break
		}
	}

	integrated := LoudnessFloor
	if len(gatedPower) > 0 {
		integrated = clampFloor(powerToLoudness(stat.Mean(gatedPower, nil)))
	}

	shortEnd := min(frames, int(math.Round(shortTermSeconds*float64(s.SampleRate))))
	momentaryEnd := min(frames, int(math.Round(momentarySeconds*float64(s.SampleRate))))

	truePeak := LoudnessFloor
	if peak := s.Peak(); peak > 0 {
		truePeak = LinearToDb(peak)
	}

	return LoudnessMetrics{
		Integrated:    integrated,
		ShortTerm:     clampFloor(powerToLoudness(meanSquare(s, 0, shortEnd))),
		Momentary:     clampFloor(powerToLoudness(meanSquare(s, 0, momentaryEnd))),
		TruePeak:      truePeak,
		DynamicRange:  peakToRMS(s),
		LoudnessRange: loudnessRange(gatedLoudness),
		Threshold:     integrated - relativeGateLU,
		Degraded:      true,
		Source:        SourceInternal,
	}, nil
}

// meanSquare sums each channel's mean square over frames [start, end).
func meanSquare(s *audio.Sample, start, end int) float64 {
	if end <= start {
		return 0
	}
	var total float64
	n := float64(end - start)
	for c := 0; c < s.Channels; c++ {
		var sum float64
		for i := start; i < end; i++ {
			v := s.Data[i*s.Channels+c]
			sum += v * v
		}
		total += sum / n
	}
	return total
}

func powerToLoudness(ms float64) float64 {
	if ms <= 0 {
		return math.Inf(-1)
	}
	return kWeightingOffset + 10*math.Log10(ms)
}

func clampFloor(lufs float64) float64 {
	if math.IsNaN(lufs) || lufs < LoudnessFloor {
		return LoudnessFloor
	}
	return lufs
}

// peakToRMS returns the crest factor in dB; silence has none.
func peakToRMS(s *audio.Sample) float64 {
	rms := s.RMS()
	if rms == 0 {
		return 0
	}
	return LinearToDb(s.Peak() / rms)
}

// loudnessRange is the spread between the 10th and 95th percentile of the
// gated block loudness values.
func loudnessRange(blocks []float64) float64 {
	if len(blocks) < 2 {
		return 0
	}
	sorted := make([]float64, len(blocks))
	copy(sorted, blocks)
	sort.Float64s(sorted)
	return stat.Quantile(0.95, stat.Empirical, sorted, nil) - stat.Quantile(0.10, stat.Empirical, sorted, nil)
}
