package processor

import (
	"fmt"
	"math"
)

// TrackProfile is everything the reference matcher knows about a track.
type TrackProfile struct {
	Spectrum    SpectralProfile `json:"spectrum"`
	Loudness    LoudnessMetrics `json:"loudness"`
	StereoWidth float64         `json:"stereo_width"` // see MeasureStereoWidth
}

// Reference matching thresholds
const (
	refLoudLUFS           = -14.0 // references louder than this trigger a loudness match
	refTrebleShare        = 0.7
	refTrebleBoostPerUnit = 20.0 // dB of high shelf per unit of share above refTrebleShare
	refTrebleMaxBoost     = 6.0
	refTrebleShelfHz      = 8000.0
	refWidth              = 1.0
	refBassShare          = 0.75
	refBassBoost          = 2.0 // dB, fixed
	refBassShelfHz        = 100.0

	// DefaultMatchConfidence is reported when no rule fires
	DefaultMatchConfidence = 0.8
)

// MixAdjustments are additive deltas for the fields the matcher touches.
type MixAdjustments struct {
	LowGain  float64 `json:"lowGain"`  // dB added to eq.lowGain
	HighGain float64 `json:"highGain"` // dB added to eq.highGain
	Width    float64 `json:"width"`    // added to stereo.width
}

// Apply merges the deltas into a copy of mix.
func (a MixAdjustments) Apply(mix MixSettings) MixSettings {
	mix.EQ.LowGain += a.LowGain
	mix.EQ.HighGain += a.HighGain
	mix.Stereo.Width += a.Width
	return SanitizeMix(mix)
}

func (a MixAdjustments) add(b MixAdjustments) MixAdjustments {
	return MixAdjustments{
		LowGain:  a.LowGain + b.LowGain,
		HighGain: a.HighGain + b.HighGain,
		Width:    a.Width + b.Width,
	}
}

// MatchResult is the outcome of comparing a target to a reference.
type MatchResult struct {
	Suggestions []Suggestion   `json:"suggestions"`
	Adjustments MixAdjustments `json:"adjustments"`
	Settings    MixSettings    `json:"settings"` // current settings with Adjustments merged
	Confidence  float64        `json:"confidence"`
}

type ruleOutcome struct {
	suggestion Suggestion
	adjust     MixAdjustments
}

type matchRule func(target, reference TrackProfile, current MixSettings) *ruleOutcome

// MatchReference compares target against reference. Each rule fires
// independently and contributes one suggestion; their deltas are summed and
// merged into current.
func MatchReference(target, reference TrackProfile, current MixSettings) MatchResult {
	rules := []matchRule{
		ruleReferenceLoudness,
		ruleReferenceTreble,
		ruleReferenceWidth,
		ruleReferenceBass,
	}

	var (
		suggestions []Suggestion
		adjust      MixAdjustments
	)
	for _, rule := range rules {
		if out := rule(target, reference, current); out != nil {
			suggestions = append(suggestions, out.suggestion)
			adjust = adjust.add(out.adjust)
		}
	}

	confidence := MeanConfidence(suggestions, DefaultMatchConfidence)
	SortSuggestions(suggestions)

	return MatchResult{
		Suggestions: suggestions,
		Adjustments: adjust,
		Settings:    adjust.Apply(current),
		Confidence:  confidence,
	}
}

// ruleReferenceLoudness fires when the reference is mastered louder than -14 LUFS.
func ruleReferenceLoudness(target, reference TrackProfile, _ MixSettings) *ruleOutcome {
	refI := reference.Loudness.Integrated
	if refI <= refLoudLUFS {
		return nil
	}
	return &ruleOutcome{suggestion: Suggestion{
		Category:   CategoryLoudness,
		Priority:   PriorityCritical,
		RuleID:     "reference_loudness",
		Suggestion: fmt.Sprintf("Raise the master to %.1f LUFS to match the reference", refI),
		Reasoning: fmt.Sprintf("The reference measures %.1f LUFS against %.1f LUFS for this track; listeners will hear the level gap before any tonal difference.",
			refI, target.Loudness.Integrated),
		Confidence: 0.9,
		Impact:     0.8,
		Parameters: map[string]float64{
			"targetLUFS": refI,
			"gainDB":     refI - target.Loudness.Integrated,
		},
	}}
}

// ruleReferenceTreble fires when the reference's high band dominates.
func ruleReferenceTreble(_, reference TrackProfile, _ MixSettings) *ruleOutcome {
	share := reference.Spectrum.Share(BandHigh)
	if share <= refTrebleShare {
		return nil
	}
	boost := math.Min(refTrebleMaxBoost, (share-refTrebleShare)*refTrebleBoostPerUnit)
	return &ruleOutcome{
		suggestion: Suggestion{
			Category:   CategoryEQ,
			Priority:   PriorityMedium,
			RuleID:     "reference_treble",
			Suggestion: fmt.Sprintf("Add a %.1f dB high shelf at %.0f Hz", boost, refTrebleShelfHz),
			Reasoning:  fmt.Sprintf("%.0f%% of the reference's band energy sits in the top band.", share*100),
			Confidence: 0.75,
			Impact:     0.6,
			Parameters: map[string]float64{"frequency": refTrebleShelfHz, "gainDB": boost},
		},
		adjust: MixAdjustments{HighGain: boost},
	}
}

// ruleReferenceWidth fires when the reference is wider than a typical stereo image.
func ruleReferenceWidth(_, reference TrackProfile, current MixSettings) *ruleOutcome {
	if reference.StereoWidth <= refWidth {
		return nil
	}
	delta := math.Max(0, reference.StereoWidth-current.Stereo.Width)
	return &ruleOutcome{
		suggestion: Suggestion{
			Category:   CategoryStereo,
			Priority:   PriorityMedium,
			RuleID:     "reference_width",
			Suggestion: fmt.Sprintf("Widen the stereo image to %.2f", current.Stereo.Width+delta),
			Reasoning:  fmt.Sprintf("The reference measures a stereo width of %.2f.", reference.StereoWidth),
			Confidence: 0.7,
			Impact:     0.5,
			Parameters: map[string]float64{"width": reference.StereoWidth},
		},
		adjust: MixAdjustments{Width: delta},
	}
}

// ruleReferenceBass fires when the reference's low band dominates.
func ruleReferenceBass(_, reference TrackProfile, _ MixSettings) *ruleOutcome {
	share := reference.Spectrum.Share(BandLow)
	if share <= refBassShare {
		return nil
	}
	return &ruleOutcome{
		suggestion: Suggestion{
			Category:   CategoryEQ,
			Priority:   PriorityMedium,
			RuleID:     "reference_bass",
			Suggestion: fmt.Sprintf("Add a %.0f dB low shelf at %.0f Hz", refBassBoost, refBassShelfHz),
			Reasoning:  fmt.Sprintf("%.0f%% of the reference's band energy sits in the low band.", share*100),
			Confidence: 0.8,
			Impact:     0.6,
			Parameters: map[string]float64{"frequency": refBassShelfHz, "gainDB": refBassBoost},
		},
		adjust: MixAdjustments{LowGain: refBassBoost},
	}
}
