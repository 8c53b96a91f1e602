package processor

import (
	"math"
	"testing"
)

// loadedMix has every blended field away from neutral.
func loadedMix() MixSettings {
	return MixSettings{
		EQ:          EQSettings{LowGain: 4, LowMidGain: -2, MidGain: 1.5, HighMidGain: -1, HighGain: 3, LowCut: 30, HighCut: 18000},
		Compression: CompressionSettings{Threshold: -18, Ratio: 4, Attack: 5, Release: 80, Makeup: 3},
		Reverb:      ReverbSettings{Wet: 0.2, RoomSize: 0.6, Decay: 1800, PreDelay: 25},
		Delay:       DelaySettings{Wet: 0.15, Feedback: 0.35, Time: 375},
		Chorus:      ChorusSettings{Wet: 0.1, Depth: 0.4, Rate: 0.8},
		Saturation:  SaturationSettings{Drive: 0.3, Warmth: 0.6},
		Stereo:      StereoSettings{Width: 1.3, BassMonoFreq: 120},
	}
}

// blendedFields returns every field ApplyIntensity scales, keyed by name.
func blendedFields(m MixSettings) map[string]float64 {
	return map[string]float64{
		"eq.lowGain":         m.EQ.LowGain,
		"eq.lowMidGain":      m.EQ.LowMidGain,
		"eq.midGain":         m.EQ.MidGain,
		"eq.highMidGain":     m.EQ.HighMidGain,
		"eq.highGain":        m.EQ.HighGain,
		"compression.thresh": m.Compression.Threshold,
		"compression.ratio":  m.Compression.Ratio,
		"compression.makeup": m.Compression.Makeup,
		"reverb.wet":         m.Reverb.Wet,
		"reverb.roomSize":    m.Reverb.RoomSize,
		"delay.wet":          m.Delay.Wet,
		"delay.feedback":     m.Delay.Feedback,
		"chorus.wet":         m.Chorus.Wet,
		"chorus.depth":       m.Chorus.Depth,
		"saturation.drive":   m.Saturation.Drive,
		"saturation.warmth":  m.Saturation.Warmth,
		"stereo.width":       m.Stereo.Width,
	}
}

func TestApplyIntensityEndpoints(t *testing.T) {
	mix := loadedMix()

	if got := ApplyIntensity(mix, 1); got != mix {
		t.Errorf("ApplyIntensity(mix, 1) = %+v, want the preset unchanged", got)
	}

	neutral := ApplyIntensity(mix, 0)
	if neutral != NeutralMix(mix) {
		t.Errorf("ApplyIntensity(mix, 0) differs from NeutralMix")
	}

	want := mix
	want.EQ.LowGain, want.EQ.LowMidGain, want.EQ.MidGain, want.EQ.HighMidGain, want.EQ.HighGain = 0, 0, 0, 0, 0
	want.Compression.Threshold, want.Compression.Ratio, want.Compression.Makeup = 0, 1, 0
	want.Reverb.Wet, want.Reverb.RoomSize = 0, 0
	want.Delay.Wet, want.Delay.Feedback = 0, 0
	want.Chorus.Wet, want.Chorus.Depth = 0, 0
	want.Saturation.Drive, want.Saturation.Warmth = 0, 0
	want.Stereo.Width = 1
	if neutral != want {
		t.Errorf("NeutralMix = %+v\nwant %+v", neutral, want)
	}
}

func TestApplyIntensityPassThrough(t *testing.T) {
	mix := loadedMix()

	for _, i := range []float64{0, 0.25, 0.5, 0.9} {
		got := ApplyIntensity(mix, i)
		if got.EQ.LowCut != mix.EQ.LowCut || got.EQ.HighCut != mix.EQ.HighCut {
			t.Errorf("intensity %v: cutoffs changed to %v/%v", i, got.EQ.LowCut, got.EQ.HighCut)
		}
		if got.Compression.Attack != mix.Compression.Attack || got.Compression.Release != mix.Compression.Release {
			t.Errorf("intensity %v: compressor timing changed", i)
		}
		if got.Reverb.Decay != mix.Reverb.Decay || got.Reverb.PreDelay != mix.Reverb.PreDelay {
			t.Errorf("intensity %v: reverb timing changed", i)
		}
		if got.Delay.Time != mix.Delay.Time || got.Chorus.Rate != mix.Chorus.Rate {
			t.Errorf("intensity %v: effect timing changed", i)
		}
		if got.Stereo.BassMonoFreq != mix.Stereo.BassMonoFreq {
			t.Errorf("intensity %v: bass mono crossover changed", i)
		}
	}
}

func TestApplyIntensityHalfway(t *testing.T) {
	mix := loadedMix()
	got := ApplyIntensity(mix, 0.5)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"lowGain halves", got.EQ.LowGain, 2},
		{"highGain halves", got.EQ.HighGain, 1.5},
		{"ratio blends above unity", got.Compression.Ratio, 2.5},
		{"width offset halves", got.Stereo.Width, 1.15},
		{"reverb wet halves", got.Reverb.Wet, 0.1},
		{"makeup halves", got.Compression.Makeup, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestApplyIntensityMonotonic(t *testing.T) {
	mix := loadedMix()
	raw := blendedFields(mix)
	neutral := blendedFields(NeutralMix(mix))

	prev := neutral
	for step := 1; step <= 20; step++ {
		cur := blendedFields(ApplyIntensity(mix, float64(step)/20))
		for name, v := range cur {
			// Each field moves from its neutral value toward the preset value
			direction := math.Copysign(1, raw[name]-neutral[name])
			if (v-prev[name])*direction < -1e-12 {
				t.Errorf("step %d: %s went from %v to %v, away from %v", step, name, prev[name], v, raw[name])
			}
		}
		prev = cur
	}
}

func TestClampIntensity(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.3, 0.3},
		{1, 1},
		{1.7, 1},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		if got := ClampIntensity(tt.in); got != tt.want {
			t.Errorf("ClampIntensity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if got := IntensityFromPercent(50); got != 0.5 {
		t.Errorf("IntensityFromPercent(50) = %v, want 0.5", got)
	}
	if got := IntensityFromPercent(250); got != 1 {
		t.Errorf("IntensityFromPercent(250) = %v, want 1", got)
	}
}

func TestApplyMasterIntensity(t *testing.T) {
	master := DefaultMasterSettings()
	for b := range master.Multiband.Bands {
		master.Multiband.Bands[b].Threshold = -20
		master.Multiband.Bands[b].Ratio = 3
		master.Multiband.Bands[b].Gain = 1
	}
	master.Maximizer = MaximizerSettings{Amount: 60, Character: CharacterWarm}
	master.StereoEnhancer.Width = 1.2
	master.SpectralBalance = SpectralBalanceSettings{LowShelf: 1, Presence: -1, HighShelf: 2}

	if got := ApplyMasterIntensity(master, 1); got != master {
		t.Errorf("ApplyMasterIntensity(master, 1) changed the preset")
	}

	zero := ApplyMasterIntensity(master, 0)
	for b, band := range zero.Multiband.Bands {
		if band.Ratio != 1 || band.Gain != 0 || band.Threshold != 0 {
			t.Errorf("band %d at intensity 0 = %+v, want neutral", b, band)
		}
		if band.Attack != master.Multiband.Bands[b].Attack || band.Release != master.Multiband.Bands[b].Release {
			t.Errorf("band %d timing changed", b)
		}
	}
	if zero.Multiband.Crossovers != master.Multiband.Crossovers {
		t.Error("crossovers changed")
	}
	if zero.Limiter != master.Limiter {
		t.Error("limiter changed")
	}
	if zero.Maximizer.Amount != 0 || zero.Maximizer.Character != CharacterWarm {
		t.Errorf("maximizer = %+v, want amount 0 with character kept", zero.Maximizer)
	}
	if zero.StereoEnhancer.Width != 1 {
		t.Errorf("enhancer width = %v, want 1", zero.StereoEnhancer.Width)
	}
	if zero.SpectralBalance != (SpectralBalanceSettings{}) {
		t.Errorf("spectral balance = %+v, want zero trims", zero.SpectralBalance)
	}
}

func TestPresetConfidence(t *testing.T) {
	measured := &LoudnessMetrics{Integrated: -14}

	tests := []struct {
		name      string
		target    float64
		measured  *LoudnessMetrics
		intensity float64
		want      float64
	}{
		{"on target at half intensity", -14, measured, 0.5, 0.85},
		{"20 LU away at half intensity", -34, measured, 0.5, 0.7},
		{"on target at full intensity", -14, measured, 1, 0.75},
		{"unmeasured at half intensity", -14, nil, 0.5, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PresetConfidence(tt.target, tt.measured, tt.intensity)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PresetConfidence() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 0.95 {
				t.Errorf("PresetConfidence() = %v out of [0, 0.95]", got)
			}
		})
	}
}

func TestSanitizeMix(t *testing.T) {
	m := DefaultMixSettings()
	m.EQ.LowGain = 40
	m.EQ.HighGain = -40
	m.EQ.LowCut = 1
	m.Compression.Ratio = 0.5
	m.Reverb.Wet = 3
	m.Stereo.Width = 5

	got := SanitizeMix(m)
	if got.EQ.LowGain != maxEQGainDB || got.EQ.HighGain != -maxEQGainDB {
		t.Errorf("EQ gains = %v/%v, want ±%v", got.EQ.LowGain, got.EQ.HighGain, maxEQGainDB)
	}
	if got.EQ.LowCut != minCutoffHz {
		t.Errorf("LowCut = %v, want %v", got.EQ.LowCut, minCutoffHz)
	}
	if got.Compression.Ratio != 1 {
		t.Errorf("Ratio = %v, want 1", got.Compression.Ratio)
	}
	if got.Reverb.Wet != maxEffectLevel {
		t.Errorf("Reverb.Wet = %v, want %v", got.Reverb.Wet, maxEffectLevel)
	}
	if got.Stereo.Width != maxWidth {
		t.Errorf("Width = %v, want %v", got.Stereo.Width, maxWidth)
	}
}
