package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/inference"
	"github.com/linuxmatters/mixdesk/internal/presets"
	"github.com/linuxmatters/mixdesk/internal/processor"
	"github.com/linuxmatters/mixdesk/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Operation names recorded in audit entries and provenance
const (
	OpAnalyzeSpectrum  = "analyzeSpectrum"
	OpExtractAllStems  = "extractAllStems"
	OpMeasureLoudness  = "measureLoudness"
	OpApplyGenrePreset = "applyGenrePreset"
	OpMatchToReference = "matchToReference"
	OpNormalizeTo      = "normalizeTo"
	OpProfileTrack     = "profileTrack"
	OpRenderSettings   = "renderSettings"
)

// presetLoudnessGapLU is the distance from a genre's target loudness at
// which ApplyGenrePreset suggests normalising.
const presetLoudnessGapLU = 3.0

// SpectrumResult is the outcome of AnalyzeSpectrum.
type SpectrumResult struct {
	Profile     processor.SpectralProfile `json:"profile"`
	Suggestions []processor.Suggestion    `json:"suggestions,omitempty"`
}

// AnalyzeSpectrum computes the spectral profile of s and runs the hum check
// when a mains frequency is configured.
func (e *Engine) AnalyzeSpectrum(ctx context.Context, trackID string, s *audio.Sample) (SpectrumResult, error) {
	start := time.Now()
	var res SpectrumResult

	err := e.pool.Do(ctx, func() error {
		profile, err := processor.Analyze(s)
		if err != nil {
			return err
		}
		res.Profile = profile
		if e.mainsHz > 0 {
			if hum := processor.DetectHum(profile, e.mainsHz); hum != nil {
				res.Suggestions = append(res.Suggestions, *hum)
			}
		}
		return nil
	})

	e.audit(trackID, inference.ModelSpectral, OpAnalyzeSpectrum, start, summarise(s),
		fmt.Sprintf("centroid %.0fHz, rolloff %.0fHz", res.Profile.CentroidHz, res.Profile.RolloffHz),
		1, false, err)
	if err != nil {
		return SpectrumResult{}, err
	}
	return res, nil
}

// StemOptions controls ExtractAllStems output files.
type StemOptions struct {
	// WriteFiles writes each stem beside the source file as name-stem.wav.
	// Samples without a source path are never written.
	WriteFiles bool
}

// ExtractAllStems band-filters s into every stem type in parallel, one pool
// task per stem. Results are in processor.AllStems order.
func (e *Engine) ExtractAllStems(ctx context.Context, trackID string, s *audio.Sample, opts StemOptions) ([]processor.StemExtractionResult, error) {
	start := time.Now()
	if err := s.Validate(); err != nil {
		e.audit(trackID, inference.ModelStemFilter, OpExtractAllStems, start, summarise(s), "", 0, false, err)
		return nil, err
	}

	results := make([]processor.StemExtractionResult, len(processor.AllStems))
	g, gctx := errgroup.WithContext(ctx)

	for i, stem := range processor.AllStems {
		i, stem := i, stem
		g.Go(func() error {
			return e.pool.Do(gctx, func() error {
				res, err := processor.ExtractStem(s, stem)
				if err != nil {
					return fmt.Errorf("%s stem: %w", stem, err)
				}
				if opts.WriteFiles && s.SourcePath != "" {
					path := processor.StemOutputPath(s.SourcePath, stem)
					if err := audio.WriteWAVFile(path, res.Sample); err != nil {
						return fmt.Errorf("%s stem: %w", stem, err)
					}
					res.OutputPath = path
				}
				results[i] = res
				return nil
			})
		})
	}

	err := g.Wait()
	var confidence float64
	if err == nil {
		for _, r := range results {
			confidence += r.Confidence / float64(len(results))
		}
	}
	e.audit(trackID, inference.ModelStemFilter, OpExtractAllStems, start, summarise(s),
		fmt.Sprintf("%d stems", len(results)), confidence, false, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// MeasureLoudness measures s, falling back to the internal approximation
// when the external analyser is unavailable. Degraded results say so.
func (e *Engine) MeasureLoudness(ctx context.Context, trackID string, s *audio.Sample) (processor.LoudnessMetrics, error) {
	start := time.Now()
	var metrics processor.LoudnessMetrics

	err := e.pool.Do(ctx, func() error {
		var err error
		metrics, err = e.meter.Measure(ctx, s)
		return err
	})

	confidence := 1.0
	if metrics.Degraded {
		confidence = 0.6
	}
	e.audit(trackID, inference.ModelLoudness, OpMeasureLoudness, start, summarise(s),
		fmt.Sprintf("%.1f LUFS, %.1f dBTP (%s)", metrics.Integrated, metrics.TruePeak, metrics.Source),
		confidence, metrics.Degraded, err)
	if err != nil {
		return processor.LoudnessMetrics{}, err
	}
	return metrics, nil
}

// PresetResult is the outcome of ApplyGenrePreset.
type PresetResult struct {
	Genre       presets.Genre              `json:"genre"`
	Known       bool                       `json:"known"` // false when the id fell back to the default genre
	Intensity   float64                    `json:"intensity"`
	TargetLUFS  float64                    `json:"targetLUFS"`
	Mix         processor.MixSettings      `json:"mix"`
	Master      processor.MasterSettings   `json:"master"`
	Confidence  float64                    `json:"confidence"`
	Measured    *processor.LoudnessMetrics `json:"measured,omitempty"`
	Suggestions []processor.Suggestion     `json:"suggestions,omitempty"`
}

// ApplyGenrePreset blends the genre's preset with intensityPercent (0-100,
// clamped). Unknown genres fall back to the default genre. When s is
// non-nil its loudness is measured to inform confidence and suggestions.
func (e *Engine) ApplyGenrePreset(ctx context.Context, trackID, genre string, intensityPercent float64, s *audio.Sample) (PresetResult, error) {
	start := time.Now()
	preset, known := e.catalog.Get(genre)
	intensity := processor.IntensityFromPercent(intensityPercent)

	res := PresetResult{
		Genre:      preset.ID,
		Known:      known,
		Intensity:  intensity,
		TargetLUFS: preset.TargetLUFS,
		Mix:        processor.SanitizeMix(processor.ApplyIntensity(preset.Mix, intensity)),
		Master:     processor.SanitizeMaster(processor.ApplyMasterIntensity(preset.Master, intensity)),
	}

	if !known {
		res.Suggestions = append(res.Suggestions, processor.Suggestion{
			Category:   processor.CategoryPreset,
			Suggestion: fmt.Sprintf("Unknown genre %q, using the %s preset", genre, preset.Name),
			Reasoning:  "Genre ids outside the catalog resolve to the default preset",
			Confidence: 1,
			Priority:   processor.PriorityMedium,
			Impact:     0.5,
			RuleID:     "unknown_genre",
		})
	}

	if s != nil {
		measured, err := e.MeasureLoudness(ctx, trackID, s)
		if err != nil {
			e.audit(trackID, inference.ModelPreset, OpApplyGenrePreset, start, genre, "", 0, false, err)
			return PresetResult{}, err
		}
		res.Measured = &measured
		if gap := preset.TargetLUFS - measured.Integrated; math.Abs(gap) > presetLoudnessGapLU {
			res.Suggestions = append(res.Suggestions, processor.Suggestion{
				Category:   processor.CategoryLoudness,
				Suggestion: fmt.Sprintf("Normalise to %.0f LUFS for %s", preset.TargetLUFS, preset.Name),
				Reasoning:  fmt.Sprintf("Track measures %.1f LUFS, %.1f LU from the genre target", measured.Integrated, math.Abs(gap)),
				Confidence: 0.8,
				Priority:   processor.PriorityHigh,
				Parameters: map[string]float64{"targetLUFS": preset.TargetLUFS, "gainDB": gap},
				Impact:     0.7,
				RuleID:     "preset_loudness_target",
			})
		}
	}

	res.Confidence = processor.PresetConfidence(preset.TargetLUFS, res.Measured, intensity)
	processor.SortSuggestions(res.Suggestions)

	e.persist(ctx, trackID, store.ComputedSettings{Mix: &res.Mix, Master: &res.Master}, store.Provenance{
		Operation:   OpApplyGenrePreset,
		Genre:       preset.ID.String(),
		Intensity:   intensity,
		Fingerprint: fingerprint(s),
	})
	e.audit(trackID, inference.ModelPreset, OpApplyGenrePreset, start,
		fmt.Sprintf("genre %s, intensity %.0f%%", genre, intensity*100),
		fmt.Sprintf("%s preset, eq.lowGain %.2f dB, ratio %.2f", preset.ID, res.Mix.EQ.LowGain, res.Mix.Compression.Ratio),
		res.Confidence, res.Measured != nil && res.Measured.Degraded, nil)

	return res, nil
}

// ProfileResult is the outcome of ProfileTrack.
type ProfileResult struct {
	Profile     processor.TrackProfile `json:"profile"`
	Suggestions []processor.Suggestion `json:"suggestions,omitempty"`
}

// ProfileTrack runs the full analysis pass and the diagnostic rules.
func (e *Engine) ProfileTrack(ctx context.Context, trackID string, s *audio.Sample, progress processor.ProgressFunc) (ProfileResult, error) {
	start := time.Now()
	var res ProfileResult

	err := e.pool.Do(ctx, func() error {
		profile, err := processor.ProfileTrack(ctx, e.meter, s, progress)
		if err != nil {
			return err
		}
		res.Profile = profile
		res.Suggestions = processor.Diagnose(profile, s.Channels, e.mainsHz)
		return nil
	})

	e.audit(trackID, inference.ModelSpectral, OpProfileTrack, start, summarise(s),
		fmt.Sprintf("%.1f LUFS, width %.2f, %d suggestions", res.Profile.Loudness.Integrated, res.Profile.StereoWidth, len(res.Suggestions)),
		processor.MeanConfidence(res.Suggestions, 1), res.Profile.Loudness.Degraded, err)
	if err != nil {
		return ProfileResult{}, err
	}
	return res, nil
}

// MatchToReference profiles target and reference concurrently and compares
// them. current is the target's mix so far; nil means DefaultMixSettings.
func (e *Engine) MatchToReference(ctx context.Context, trackID string, target, reference *audio.Sample, current *processor.MixSettings) (processor.MatchResult, error) {
	start := time.Now()

	var targetProfile, refProfile processor.TrackProfile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.pool.Do(gctx, func() error {
			p, err := processor.ProfileTrack(gctx, e.meter, target, nil)
			if err != nil {
				return fmt.Errorf("target: %w", err)
			}
			targetProfile = p
			return nil
		})
	})
	g.Go(func() error {
		return e.pool.Do(gctx, func() error {
			p, err := processor.ProfileTrack(gctx, e.meter, reference, nil)
			if err != nil {
				return fmt.Errorf("reference: %w", err)
			}
			refProfile = p
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		e.audit(trackID, inference.ModelReference, OpMatchToReference, start, summarise(target), "", 0, false, err)
		return processor.MatchResult{}, err
	}

	return e.MatchProfiles(ctx, trackID, targetProfile, refProfile, current, fingerprint(target), start), nil
}

// MatchProfiles compares precomputed profiles. start is used for the audit
// entry's elapsed time; the zero time means now.
func (e *Engine) MatchProfiles(ctx context.Context, trackID string, target, reference processor.TrackProfile, current *processor.MixSettings, fp uint64, start time.Time) processor.MatchResult {
	if start.IsZero() {
		start = time.Now()
	}
	mix := processor.DefaultMixSettings()
	if current != nil {
		mix = *current
	}

	res := processor.MatchReference(target, reference, mix)

	e.persist(ctx, trackID, store.ComputedSettings{Mix: &res.Settings}, store.Provenance{
		Operation:   OpMatchToReference,
		Fingerprint: fp,
	})
	e.audit(trackID, inference.ModelReference, OpMatchToReference, start,
		fmt.Sprintf("target %.1f LUFS, reference %.1f LUFS", target.Loudness.Integrated, reference.Loudness.Integrated),
		fmt.Sprintf("%d suggestions", len(res.Suggestions)),
		res.Confidence, target.Loudness.Degraded || reference.Loudness.Degraded, nil)
	return res
}

// NormaliseResult is the outcome of NormalizeTo.
type NormaliseResult struct {
	Plan       processor.NormalisationPlan `json:"plan"`
	OutputPath string                      `json:"output_path,omitempty"`
}

// NormalizeTo measures s and plans the gain to targetLUFS. With render set
// the plan's loudnorm filter is applied to s's source file; rendering
// failures fail the operation.
func (e *Engine) NormalizeTo(ctx context.Context, trackID string, s *audio.Sample, targetLUFS float64, render bool) (NormaliseResult, error) {
	start := time.Now()
	if math.IsNaN(targetLUFS) || math.IsInf(targetLUFS, 0) || targetLUFS > 0 {
		err := fault.Input("target loudness %v LUFS", targetLUFS)
		e.audit(trackID, inference.ModelNormalise, OpNormalizeTo, start, summarise(s), "", 0, false, err)
		return NormaliseResult{}, err
	}

	measured, err := e.MeasureLoudness(ctx, trackID, s)
	if err != nil {
		e.audit(trackID, inference.ModelNormalise, OpNormalizeTo, start, summarise(s), "", 0, false, err)
		return NormaliseResult{}, err
	}

	res := NormaliseResult{Plan: processor.PlanNormalisation(measured, targetLUFS)}

	if render {
		out, err := e.render(ctx, s.SourcePath, []processor.FilterDescriptor{res.Plan.Filter})
		if err != nil {
			e.audit(trackID, inference.ModelNormalise, OpNormalizeTo, start, summarise(s), "", 0, measured.Degraded, err)
			return NormaliseResult{}, err
		}
		res.OutputPath = out
	}

	e.persist(ctx, trackID, store.ComputedSettings{Normalisation: &res.Plan}, store.Provenance{
		Operation:   OpNormalizeTo,
		Fingerprint: fingerprint(s),
	})
	e.audit(trackID, inference.ModelNormalise, OpNormalizeTo, start,
		fmt.Sprintf("%.1f LUFS to %.1f LUFS", measured.Integrated, targetLUFS),
		fmt.Sprintf("gain %+.2f dB, %d suggestions", res.Plan.Gain, len(res.Plan.Suggestions)),
		processor.MeanConfidence(res.Plan.Suggestions, 1), measured.Degraded, nil)
	return res, nil
}

// RenderSettings renders inputPath through the mix chain followed by the
// master chain.
func (e *Engine) RenderSettings(ctx context.Context, trackID, inputPath string, mix processor.MixSettings, master processor.MasterSettings) (string, error) {
	start := time.Now()
	chain := append(processor.BuildMixChain(mix), processor.BuildMasterChain(master)...)

	out, err := e.render(ctx, inputPath, chain)
	e.audit(trackID, inference.ModelPreset, OpRenderSettings, start, inputPath,
		fmt.Sprintf("%d filters", len(chain)), 1, false, err)
	if err != nil {
		e.logger.WithFields(logrus.Fields{"track": trackID, "input": inputPath}).WithError(err).Error("render failed")
		return "", err
	}
	return out, nil
}

func fingerprint(s *audio.Sample) uint64 {
	if s == nil || len(s.Data) == 0 {
		return 0
	}
	return audio.Fingerprint(s)
}
