package processor

import (
	"fmt"
	"math"
)

// Normalisation targets handed to the renderer's loudnorm filter
const (
	NormTargetTP  = -1.5 // dBTP ceiling
	NormTargetLRA = 11.0 // LU

	// compressionWarnGainDB is the gain change above which compression
	// should precede normalisation
	compressionWarnGainDB = 6.0
)

// NormalisationPlan describes how to bring a track to a loudness target.
type NormalisationPlan struct {
	TargetLUFS float64          `json:"target_lufs"`
	Measured   LoudnessMetrics  `json:"measured"`
	Gain       float64          `json:"gain"` // dB, target minus measured integrated
	Filter     FilterDescriptor `json:"-"`
	FilterSpec string           `json:"filter"`

	// Linear-mode diagnostics: whether a straight gain change reaches the
	// target without pushing true peak past NormTargetTP
	LinearPossible  bool    `json:"linear_possible"`
	EffectiveTarget float64 `json:"effective_target"` // loudest target reachable linearly
	LimiterCeiling  float64 `json:"limiter_ceiling"`  // dBTP, when a pre-limiter is needed
	LimiterNeeded   bool    `json:"limiter_needed"`
	LimiterClamped  bool    `json:"limiter_clamped"` // ceiling hit alimiter's floor

	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// PlanNormalisation computes the gain that takes measured to targetLUFS and
// the loudnorm descriptor that applies it. Measured values are passed to
// loudnorm so the renderer skips its own measurement pass.
func PlanNormalisation(measured LoudnessMetrics, targetLUFS float64) NormalisationPlan {
	gain := targetLUFS - measured.Integrated

	effectiveI, _, linear := calculateLinearModeTarget(measured.Integrated, measured.TruePeak, targetLUFS, NormTargetTP)
	ceiling, limiterNeeded, clamped := calculateLimiterCeiling(measured.Integrated, measured.TruePeak, targetLUFS, NormTargetTP)

	filter := buildLoudnormFilter(measured, targetLUFS)
	plan := NormalisationPlan{
		TargetLUFS:      targetLUFS,
		Measured:        measured,
		Gain:            gain,
		Filter:          filter,
		FilterSpec:      filter.String(),
		LinearPossible:  linear,
		EffectiveTarget: effectiveI,
		LimiterCeiling:  ceiling,
		LimiterNeeded:   limiterNeeded,
		LimiterClamped:  clamped,
	}

	if math.Abs(gain) > compressionWarnGainDB {
		plan.Suggestions = append(plan.Suggestions, Suggestion{
			Category:   CategoryDynamics,
			Priority:   PriorityHigh,
			RuleID:     "compress_before_gain",
			Suggestion: "Apply compression before the gain change",
			Reasoning: fmt.Sprintf("Reaching %.1f LUFS needs %+.1f dB of gain; a change that large risks clipping peaks or exposing the noise floor.",
				targetLUFS, gain),
			Confidence: 0.85,
			Impact:     0.7,
			Parameters: map[string]float64{"gainDB": gain, "targetLUFS": targetLUFS},
		})
	}
	if measured.Degraded {
		plan.Suggestions = append(plan.Suggestions, Suggestion{
			Category:   CategoryLoudness,
			Priority:   PriorityLow,
			RuleID:     "approximate_measurement",
			Suggestion: "Re-measure with ffmpeg installed before final delivery",
			Reasoning:  "The measured loudness comes from the internal block-gated approximation, not a full loudness model.",
			Confidence: 1,
			Impact:     0.2,
		})
	}
	return plan
}

// buildLoudnormFilter returns loudnorm's second-pass descriptor.
func buildLoudnormFilter(measured LoudnessMetrics, targetLUFS float64) FilterDescriptor {
	return NewFilter(FilterLoudnorm,
		"I", num(targetLUFS, 2),
		"TP", num(NormTargetTP, 2),
		"LRA", num(NormTargetLRA, 1),
		"measured_I", num(measured.Integrated, 2),
		"measured_TP", num(measured.TruePeak, 2),
		"measured_LRA", num(measured.LoudnessRange, 2),
		"measured_thresh", num(measured.Threshold, 2),
		"linear", boolToString(true),
		"print_format", "summary",
	)
}

// calculateLimiterCeiling returns the pre-limiter ceiling needed so that
// applying the target gain keeps true peak under targetTP.
//
// A 2 dB margin covers inter-sample peaks created by limiting: alimiter works
// on sample peaks and the subsequent gain amplifies any overshoot.
func calculateLimiterCeiling(measuredI, measuredTP, targetI, targetTP float64) (ceiling float64, needed bool, clamped bool) {
	const safetyMargin = 2.0 // dB

	// alimiter minimum: limit=0.0625 ≈ -24.08 dBTP
	const minLimiterCeilingDB = minCeilingDBTP

	gainRequired := targetI - measuredI
	projectedTP := measuredTP + gainRequired

	if projectedTP <= targetTP {
		return 0, false, false
	}

	ceiling = targetTP - gainRequired - safetyMargin
	if ceiling < minLimiterCeilingDB {
		ceiling = minLimiterCeilingDB
		clamped = true
	}

	return ceiling, true, clamped
}

// calculateLinearModeTarget returns the loudest integrated target reachable
// with a pure gain change, the offset to get there, and whether desiredI
// itself is reachable. A 0.1 dB margin absorbs rounding between our figures
// and the renderer's.
func calculateLinearModeTarget(measuredI, measuredTP, desiredI, targetTP float64) (effectiveTargetI, offset float64, linearPossible bool) {
	const safetyMargin = 0.1 // dB
	maxLinearTargetI := targetTP - measuredTP + measuredI - safetyMargin

	if desiredI <= maxLinearTargetI {
		return desiredI, desiredI - measuredI, true
	}

	return maxLinearTargetI, maxLinearTargetI - measuredI, false
}
