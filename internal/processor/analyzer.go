package processor

import (
	"context"
	"fmt"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"golang.org/x/sync/errgroup"
)

// Analysis stages reported through ProgressFunc
const (
	StageSpectrum = "Spectrum"
	StageLoudness = "Loudness"
	StageStereo   = "Stereo"
)

// ProgressFunc receives the stage name and its completion fraction (0-1).
// Implementations must be safe for concurrent use.
type ProgressFunc func(stage string, progress float64)

// ProfileTrack runs the analysis pass over s: spectral profile, loudness and
// stereo width. Spectrum and loudness run concurrently; the loudness meter
// may block on its external collaborator.
func ProfileTrack(ctx context.Context, meter *Meter, s *audio.Sample, progress ProgressFunc) (TrackProfile, error) {
	if err := s.Validate(); err != nil {
		return TrackProfile{}, err
	}
	if progress == nil {
		progress = func(string, float64) {}
	}
	if meter == nil {
		meter = NewMeter(nil, 0, nil)
	}

	var profile TrackProfile
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		progress(StageSpectrum, 0)
		spectrum, err := Analyze(s)
		if err != nil {
			return fmt.Errorf("spectral analysis: %w", err)
		}
		profile.Spectrum = spectrum
		progress(StageSpectrum, 1)
		return nil
	})

	g.Go(func() error {
		progress(StageLoudness, 0)
		loudness, err := meter.Measure(gctx, s)
		if err != nil {
			return fmt.Errorf("loudness measurement: %w", err)
		}
		profile.Loudness = loudness
		progress(StageLoudness, 1)
		return nil
	})

	if err := g.Wait(); err != nil {
		return TrackProfile{}, err
	}

	progress(StageStereo, 0)
	profile.StereoWidth = MeasureStereoWidth(s)
	progress(StageStereo, 1)

	return profile, nil
}

// Diagnostic thresholds for Diagnose
const (
	clipTruePeakDB      = -0.1 // dBTP at or above which the track is treated as clipped
	lowHeadroomDB       = -1.0
	narrowWidth         = 0.2 // stereo tracks narrower than this are near-mono
	crushedDynamicsDB   = 6.0 // peak-to-RMS below this suggests over-compression
	quietIntegratedLUFS = -30.0
)

// Diagnose runs the standalone track checks: mains hum, clipping, headroom,
// dynamics and stereo image. mainsHz of zero skips the hum check. The result
// is sorted by priority.
func Diagnose(p TrackProfile, channels int, mainsHz float64) []Suggestion {
	var out []Suggestion

	if hum := DetectHum(p.Spectrum, mainsHz); hum != nil {
		out = append(out, *hum)
	}

	l := p.Loudness
	switch {
	case l.TruePeak >= clipTruePeakDB:
		out = append(out, Suggestion{
			Category:   CategoryLoudness,
			Priority:   PriorityCritical,
			RuleID:     "clipping",
			Suggestion: "Reduce gain or add a true-peak limiter",
			Reasoning:  fmt.Sprintf("True peak reaches %.2f dBTP; the signal is at or over full scale.", l.TruePeak),
			Confidence: 0.9,
			Impact:     0.9,
			Parameters: map[string]float64{"truePeak": l.TruePeak, "ceiling": NormTargetTP},
		})
	case l.TruePeak > lowHeadroomDB:
		out = append(out, Suggestion{
			Category:   CategoryLoudness,
			Priority:   PriorityMedium,
			RuleID:     "low_headroom",
			Suggestion: fmt.Sprintf("Limit to %.1f dBTP before encoding", NormTargetTP),
			Reasoning:  fmt.Sprintf("True peak is %.2f dBTP; lossy encoders can overshoot by more than the remaining headroom.", l.TruePeak),
			Confidence: 0.75,
			Impact:     0.4,
			Parameters: map[string]float64{"truePeak": l.TruePeak, "ceiling": NormTargetTP},
		})
	}

	if l.DynamicRange > 0 && l.DynamicRange < crushedDynamicsDB {
		out = append(out, Suggestion{
			Category:   CategoryDynamics,
			Priority:   PriorityMedium,
			RuleID:     "crushed_dynamics",
			Suggestion: "Back off bus compression or limiting",
			Reasoning:  fmt.Sprintf("Peak-to-RMS is only %.1f dB.", l.DynamicRange),
			Confidence: 0.7,
			Impact:     0.5,
			Parameters: map[string]float64{"dynamicRange": l.DynamicRange},
		})
	}

	if l.Integrated > LoudnessFloor && l.Integrated < quietIntegratedLUFS {
		out = append(out, Suggestion{
			Category:   CategoryLoudness,
			Priority:   PriorityLow,
			RuleID:     "very_quiet",
			Suggestion: "Normalise before mastering decisions",
			Reasoning:  fmt.Sprintf("Integrated loudness is %.1f LUFS, far below any delivery target.", l.Integrated),
			Confidence: 0.8,
			Impact:     0.3,
			Parameters: map[string]float64{"integrated": l.Integrated},
		})
	}

	if channels >= 2 && p.StereoWidth < narrowWidth {
		out = append(out, Suggestion{
			Category:   CategoryStereo,
			Priority:   PriorityLow,
			RuleID:     "near_mono",
			Suggestion: "Check panning; the stereo image is nearly mono",
			Reasoning:  fmt.Sprintf("Measured stereo width is %.2f.", p.StereoWidth),
			Confidence: 0.65,
			Impact:     0.3,
			Parameters: map[string]float64{"width": p.StereoWidth},
		})
	}

	SortSuggestions(out)
	return out
}
