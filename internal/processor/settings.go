package processor

import (
	"fmt"
	"strings"
)

// MixSettings is the per-track mix parameter set.
type MixSettings struct {
	EQ          EQSettings          `json:"eq"`
	Compression CompressionSettings `json:"compression"`
	Reverb      ReverbSettings      `json:"reverb"`
	Delay       DelaySettings       `json:"delay"`
	Chorus      ChorusSettings      `json:"chorus"`
	Saturation  SaturationSettings  `json:"saturation"`
	Stereo      StereoSettings      `json:"stereo"`
}

// EQSettings holds five gain bands and the band-limiting cutoffs.
type EQSettings struct {
	LowGain     float64 `json:"lowGain"`     // dB, low shelf at 100 Hz
	LowMidGain  float64 `json:"lowMidGain"`  // dB, peak at 400 Hz
	MidGain     float64 `json:"midGain"`     // dB, peak at 1 kHz
	HighMidGain float64 `json:"highMidGain"` // dB, peak at 3.5 kHz
	HighGain    float64 `json:"highGain"`    // dB, high shelf at 8 kHz
	LowCut      float64 `json:"lowCut"`      // Hz, highpass corner
	HighCut     float64 `json:"highCut"`     // Hz, lowpass corner
}

// CompressionSettings is a single-band compressor.
type CompressionSettings struct {
	Threshold float64 `json:"threshold"` // dB
	Ratio     float64 `json:"ratio"`     // >= 1
	Attack    float64 `json:"attack"`    // ms
	Release   float64 `json:"release"`   // ms
	Makeup    float64 `json:"makeup"`    // dB
}

type ReverbSettings struct {
	Wet      float64 `json:"wet"`      // 0-1
	RoomSize float64 `json:"roomSize"` // 0-1
	Decay    float64 `json:"decay"`    // ms
	PreDelay float64 `json:"preDelay"` // ms
}

type DelaySettings struct {
	Wet      float64 `json:"wet"`      // 0-1
	Feedback float64 `json:"feedback"` // 0-1
	Time     float64 `json:"time"`     // ms
}

type ChorusSettings struct {
	Wet   float64 `json:"wet"`   // 0-1
	Depth float64 `json:"depth"` // 0-1
	Rate  float64 `json:"rate"`  // Hz
}

type SaturationSettings struct {
	Drive  float64 `json:"drive"`  // 0-1
	Warmth float64 `json:"warmth"` // 0-1
}

// StereoSettings controls image width and the mono-bass crossover.
type StereoSettings struct {
	Width        float64 `json:"width"`        // 1.0 = unchanged
	BassMonoFreq float64 `json:"bassMonoFreq"` // Hz, 0 = off
}

// Character selects the maximizer's colouration.
type Character int

const (
	CharacterTransparent Character = iota
	CharacterWarm
	CharacterAggressive
)

func (c Character) String() string {
	switch c {
	case CharacterTransparent:
		return "transparent"
	case CharacterWarm:
		return "warm"
	case CharacterAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("Character(%d)", int(c))
	}
}

// MarshalText encodes the character by name.
func (c Character) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts a character name.
func (c *Character) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "transparent":
		*c = CharacterTransparent
	case "warm":
		*c = CharacterWarm
	case "aggressive":
		*c = CharacterAggressive
	default:
		return fmt.Errorf("unknown maximizer character %q", b)
	}
	return nil
}

// NumMultibandBands is the band count of the master multiband compressor.
const NumMultibandBands = 5

// MasterSettings is the mastering chain parameter set.
type MasterSettings struct {
	Multiband       MultibandSettings       `json:"multiband"`
	Limiter         LimiterSettings         `json:"limiter"`
	Maximizer       MaximizerSettings       `json:"maximizer"`
	StereoEnhancer  StereoEnhancerSettings  `json:"stereoEnhancer"`
	SpectralBalance SpectralBalanceSettings `json:"spectralBalance"`
}

// MultibandSettings splits the signal at four crossovers into five bands.
type MultibandSettings struct {
	Crossovers [NumMultibandBands - 1]float64   `json:"crossovers"` // Hz, ascending
	Bands      [NumMultibandBands]MultibandBand `json:"bands"`
}

type MultibandBand struct {
	Threshold float64 `json:"threshold"` // dB
	Ratio     float64 `json:"ratio"`     // >= 1
	Attack    float64 `json:"attack"`    // ms
	Release   float64 `json:"release"`   // ms
	Gain      float64 `json:"gain"`      // dB
}

type LimiterSettings struct {
	Ceiling   float64 `json:"ceiling"`   // dBTP
	Release   float64 `json:"release"`   // ms
	Lookahead float64 `json:"lookahead"` // ms
}

type MaximizerSettings struct {
	Amount    float64   `json:"amount"` // 0-100
	Character Character `json:"character"`
}

type StereoEnhancerSettings struct {
	Width     float64 `json:"width"`     // 1.0 = unchanged
	MonoBelow float64 `json:"monoBelow"` // Hz
}

// SpectralBalanceSettings are broad tonal trims applied last.
type SpectralBalanceSettings struct {
	LowShelf  float64 `json:"lowShelf"`  // dB at 120 Hz
	Presence  float64 `json:"presence"`  // dB at 3 kHz
	HighShelf float64 `json:"highShelf"` // dB at 10 kHz
}

// DefaultMixSettings is a flat mix: no EQ, no compression, no effects,
// full bandwidth and an unchanged stereo image.
func DefaultMixSettings() MixSettings {
	return MixSettings{
		EQ:          EQSettings{LowCut: 20, HighCut: 20000},
		Compression: CompressionSettings{Threshold: 0, Ratio: 1, Attack: 10, Release: 100},
		Reverb:      ReverbSettings{Decay: 1500, PreDelay: 20},
		Delay:       DelaySettings{Time: 250},
		Chorus:      ChorusSettings{Rate: 0.5},
		Stereo:      StereoSettings{Width: 1},
	}
}

// DefaultMasterSettings is a transparent master with a safety limiter.
func DefaultMasterSettings() MasterSettings {
	m := MasterSettings{
		Multiband: MultibandSettings{Crossovers: [NumMultibandBands - 1]float64{120, 500, 2000, 8000}},
		Limiter:   LimiterSettings{Ceiling: -1.0, Release: 50, Lookahead: 5},
		Maximizer: MaximizerSettings{Character: CharacterTransparent},
		StereoEnhancer: StereoEnhancerSettings{
			Width: 1,
		},
	}
	for i := range m.Multiband.Bands {
		m.Multiband.Bands[i] = MultibandBand{Threshold: 0, Ratio: 1, Attack: 20, Release: 200}
	}
	return m
}
