package processor

import "math"

// Intensity blending rules.
//
// Additive parameters (EQ gains, makeup, effect amounts, trims) scale
// linearly with intensity. Ratios blend only their portion above unity and
// widths only their offset from 1.0, so intensity 0 means no compression and
// an unchanged image. Cutoffs, crossovers and every timing parameter pass
// through untouched: a preset's 30 Hz highpass is still a 30 Hz highpass at
// 10% intensity.

// Sanity bounds applied by SanitizeMix / SanitizeMaster
const (
	maxEQGainDB    = 18.0
	minCutoffHz    = 10.0
	maxCutoffHz    = 22000.0
	maxRatio       = 20.0
	maxWidth       = 2.0
	maxEffectLevel = 1.0
	maxMakeupDB    = 24.0
	minCeilingDBTP = -24.0 // alimiter's practical floor
)

// ClampIntensity limits intensity to [0, 1]. NaN becomes 0.
func ClampIntensity(i float64) float64 {
	if math.IsNaN(i) || i < 0 {
		return 0
	}
	if i > 1 {
		return 1
	}
	return i
}

// IntensityFromPercent converts a 0-100 percentage to a clamped 0-1 fraction.
func IntensityFromPercent(pct float64) float64 {
	return ClampIntensity(pct / 100)
}

// scaleAboveUnity blends a ratio or width toward 1.0. Full intensity returns
// v itself since 1+(v-1) does not always round-trip in floating point.
func scaleAboveUnity(v, intensity float64) float64 {
	if intensity == 1 {
		return v
	}
	return 1 + (v-1)*intensity
}

// ApplyIntensity blends mix toward the neutral baseline. Intensity 1 returns
// mix unchanged; intensity 0 returns NeutralMix(mix).
func ApplyIntensity(mix MixSettings, intensity float64) MixSettings {
	i := ClampIntensity(intensity)
	out := mix

	out.EQ.LowGain = mix.EQ.LowGain * i
	out.EQ.LowMidGain = mix.EQ.LowMidGain * i
	out.EQ.MidGain = mix.EQ.MidGain * i
	out.EQ.HighMidGain = mix.EQ.HighMidGain * i
	out.EQ.HighGain = mix.EQ.HighGain * i

	// Threshold relaxes toward 0 dB together with the ratio
	out.Compression.Threshold = mix.Compression.Threshold * i
	out.Compression.Ratio = scaleAboveUnity(mix.Compression.Ratio, i)
	out.Compression.Makeup = mix.Compression.Makeup * i

	out.Reverb.Wet = mix.Reverb.Wet * i
	out.Reverb.RoomSize = mix.Reverb.RoomSize * i
	out.Delay.Wet = mix.Delay.Wet * i
	out.Delay.Feedback = mix.Delay.Feedback * i
	out.Chorus.Wet = mix.Chorus.Wet * i
	out.Chorus.Depth = mix.Chorus.Depth * i
	out.Saturation.Drive = mix.Saturation.Drive * i
	out.Saturation.Warmth = mix.Saturation.Warmth * i

	out.Stereo.Width = scaleAboveUnity(mix.Stereo.Width, i)

	return out
}

// NeutralMix is the baseline ApplyIntensity blends toward: every blended
// field at its neutral value, every pass-through field as in mix.
func NeutralMix(mix MixSettings) MixSettings {
	return ApplyIntensity(mix, 0)
}

// ApplyMasterIntensity applies the same rule family to a master chain.
// Crossovers, timings, limiter and maximizer character pass through.
func ApplyMasterIntensity(master MasterSettings, intensity float64) MasterSettings {
	i := ClampIntensity(intensity)
	out := master

	for b, band := range master.Multiband.Bands {
		out.Multiband.Bands[b].Threshold = band.Threshold * i
		out.Multiband.Bands[b].Ratio = scaleAboveUnity(band.Ratio, i)
		out.Multiband.Bands[b].Gain = band.Gain * i
	}
	out.Maximizer.Amount = master.Maximizer.Amount * i
	out.StereoEnhancer.Width = scaleAboveUnity(master.StereoEnhancer.Width, i)
	out.SpectralBalance.LowShelf = master.SpectralBalance.LowShelf * i
	out.SpectralBalance.Presence = master.SpectralBalance.Presence * i
	out.SpectralBalance.HighShelf = master.SpectralBalance.HighShelf * i

	return out
}

// PresetConfidence is a deterministic heuristic for how well a genre preset
// should suit a track: it starts at 0.7, gains up to 0.15 as the track's
// loudness approaches the genre target and loses up to 0.1 at extreme
// intensities. It is not a learned estimate.
func PresetConfidence(targetLUFS float64, measured *LoudnessMetrics, intensity float64) float64 {
	c := 0.7
	if measured != nil {
		gap := math.Abs(targetLUFS - measured.Integrated)
		c += 0.15 * math.Max(0, 1-gap/20)
	} else {
		c += 0.05
	}
	c -= 0.2 * math.Abs(ClampIntensity(intensity)-0.5)
	return math.Max(0, math.Min(0.95, c))
}

// SanitizeMix clamps values the renderer would reject.
func SanitizeMix(m MixSettings) MixSettings {
	clampGain := func(v float64) float64 { return clamp(v, -maxEQGainDB, maxEQGainDB) }
	m.EQ.LowGain = clampGain(m.EQ.LowGain)
	m.EQ.LowMidGain = clampGain(m.EQ.LowMidGain)
	m.EQ.MidGain = clampGain(m.EQ.MidGain)
	m.EQ.HighMidGain = clampGain(m.EQ.HighMidGain)
	m.EQ.HighGain = clampGain(m.EQ.HighGain)
	m.EQ.LowCut = clamp(m.EQ.LowCut, minCutoffHz, maxCutoffHz)
	m.EQ.HighCut = clamp(m.EQ.HighCut, m.EQ.LowCut, maxCutoffHz)

	m.Compression.Ratio = clamp(m.Compression.Ratio, 1, maxRatio)
	m.Compression.Makeup = clamp(m.Compression.Makeup, -maxMakeupDB, maxMakeupDB)

	clampLevel := func(v float64) float64 { return clamp(v, 0, maxEffectLevel) }
	m.Reverb.Wet = clampLevel(m.Reverb.Wet)
	m.Reverb.RoomSize = clampLevel(m.Reverb.RoomSize)
	m.Delay.Wet = clampLevel(m.Delay.Wet)
	m.Delay.Feedback = clampLevel(m.Delay.Feedback)
	m.Chorus.Wet = clampLevel(m.Chorus.Wet)
	m.Chorus.Depth = clampLevel(m.Chorus.Depth)
	m.Saturation.Drive = clampLevel(m.Saturation.Drive)
	m.Saturation.Warmth = clampLevel(m.Saturation.Warmth)

	m.Stereo.Width = clamp(m.Stereo.Width, 0, maxWidth)
	return m
}

// SanitizeMaster clamps master values the renderer would reject.
func SanitizeMaster(m MasterSettings) MasterSettings {
	for b := range m.Multiband.Bands {
		m.Multiband.Bands[b].Ratio = clamp(m.Multiband.Bands[b].Ratio, 1, maxRatio)
		m.Multiband.Bands[b].Gain = clamp(m.Multiband.Bands[b].Gain, -maxEQGainDB, maxEQGainDB)
	}
	m.Limiter.Ceiling = clamp(m.Limiter.Ceiling, minCeilingDBTP, 0)
	m.Maximizer.Amount = clamp(m.Maximizer.Amount, 0, 100)
	m.StereoEnhancer.Width = clamp(m.StereoEnhancer.Width, 0, maxWidth)
	return m
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
