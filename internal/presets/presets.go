// Package presets holds the genre preset catalog: baseline mix and master
// settings per genre, a loudness target and a descriptive characteristic
// vector. The catalog is built once with NewCatalog and never mutated.
package presets

import (
	"fmt"
	"strings"

	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/processor"
)

// Genre identifies a catalog entry.
type Genre int

const (
	GenrePop Genre = iota
	GenreHipHop
	GenreRock
	GenreElectronic
	GenreJazz
	GenreClassical
	GenreRnB
	GenreMetal
	GenreAcoustic
)

// DefaultGenre is returned for unknown genre ids.
const DefaultGenre = GenrePop

// AllGenres lists every genre in catalog order.
var AllGenres = []Genre{
	GenrePop, GenreHipHop, GenreRock, GenreElectronic, GenreJazz,
	GenreClassical, GenreRnB, GenreMetal, GenreAcoustic,
}

func (g Genre) String() string {
	switch g {
	case GenrePop:
		return "pop"
	case GenreHipHop:
		return "hip_hop"
	case GenreRock:
		return "rock"
	case GenreElectronic:
		return "electronic"
	case GenreJazz:
		return "jazz"
	case GenreClassical:
		return "classical"
	case GenreRnB:
		return "rnb"
	case GenreMetal:
		return "metal"
	case GenreAcoustic:
		return "acoustic"
	default:
		return fmt.Sprintf("Genre(%d)", int(g))
	}
}

// MarshalText encodes the genre by id.
func (g Genre) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText accepts anything ParseGenre accepts.
func (g *Genre) UnmarshalText(b []byte) error {
	parsed, err := ParseGenre(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// ParseGenre resolves a genre id. Case, surrounding space and the
// separator style ("hip-hop", "hip hop", "hiphop") are ignored.
func ParseGenre(id string) (Genre, error) {
	norm := strings.ToLower(strings.TrimSpace(id))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)

	switch norm {
	case "r&b", "r_and_b":
		return GenreRnB, nil
	case "hiphop":
		return GenreHipHop, nil
	case "edm":
		return GenreElectronic, nil
	}
	for _, g := range AllGenres {
		if g.String() == norm {
			return g, nil
		}
	}
	return DefaultGenre, fault.Input("unknown genre %q", id)
}

// Characteristics is a descriptive six-score vector, each in [0, 1].
type Characteristics struct {
	Energy     float64 `json:"energy"`
	Warmth     float64 `json:"warmth"`
	Brightness float64 `json:"brightness"`
	Punch      float64 `json:"punch"`
	Width      float64 `json:"width"`
	Dynamics   float64 `json:"dynamics"`
}

// GenrePreset is one immutable catalog entry. Every field is a value type,
// so a returned copy cannot alias the catalog.
type GenrePreset struct {
	ID              Genre                    `json:"id"`
	Name            string                   `json:"name"`
	TargetLUFS      float64                  `json:"targetLUFS"`
	Mix             processor.MixSettings    `json:"mix"`
	Master          processor.MasterSettings `json:"master"`
	Characteristics Characteristics          `json:"characteristics"`
}

// Catalog is the read-only genre table. Safe for concurrent reads.
type Catalog struct {
	presets map[Genre]GenrePreset
}

// NewCatalog builds every preset.
func NewCatalog() *Catalog {
	c := &Catalog{presets: make(map[Genre]GenrePreset, len(AllGenres))}
	for _, g := range AllGenres {
		c.presets[g] = buildPreset(g)
	}
	return c
}

// Get returns the preset for id. Unknown ids resolve to DefaultGenre with
// ok false; Get never fails.
func (c *Catalog) Get(id string) (GenrePreset, bool) {
	g, err := ParseGenre(id)
	if err != nil {
		return c.presets[DefaultGenre], false
	}
	return c.presets[g], true
}

// Preset returns the entry for g, or the default for an out-of-range value.
func (c *Catalog) Preset(g Genre) GenrePreset {
	if p, ok := c.presets[g]; ok {
		return p
	}
	return c.presets[DefaultGenre]
}

// Genres returns every preset in catalog order.
func (c *Catalog) Genres() []GenrePreset {
	out := make([]GenrePreset, 0, len(AllGenres))
	for _, g := range AllGenres {
		out = append(out, c.presets[g])
	}
	return out
}

// eq sets the five gains (low to high) and the cutoffs.
func eq(low, lowMid, mid, highMid, high, lowCut, highCut float64) processor.EQSettings {
	return processor.EQSettings{
		LowGain:     low,
		LowMidGain:  lowMid,
		MidGain:     mid,
		HighMidGain: highMid,
		HighGain:    high,
		LowCut:      lowCut,
		HighCut:     highCut,
	}
}

// multiband sets per-band threshold, ratio and gain over the default
// crossovers and timings.
func multiband(m *processor.MasterSettings, thresholds, ratios, gains [processor.NumMultibandBands]float64) {
	for b := range m.Multiband.Bands {
		m.Multiband.Bands[b].Threshold = thresholds[b]
		m.Multiband.Bands[b].Ratio = ratios[b]
		m.Multiband.Bands[b].Gain = gains[b]
	}
}

// buildPreset holds the per-genre tables. Adding a Genre without a case here
// panics in NewCatalog, which the catalog tests exercise.
func buildPreset(g Genre) GenrePreset {
	p := GenrePreset{
		ID:     g,
		Mix:    processor.DefaultMixSettings(),
		Master: processor.DefaultMasterSettings(),
	}
	mix, master := &p.Mix, &p.Master

	switch g {
	case GenrePop:
		p.Name = "Pop"
		p.TargetLUFS = -14
		mix.EQ = eq(1.5, -1, 0, 1.5, 2, 30, 20000)
		mix.Compression = processor.CompressionSettings{Threshold: -18, Ratio: 3, Attack: 10, Release: 120, Makeup: 3}
		mix.Reverb = processor.ReverbSettings{Wet: 0.15, RoomSize: 0.4, Decay: 1400, PreDelay: 20}
		mix.Delay = processor.DelaySettings{Wet: 0.08, Feedback: 0.25, Time: 250}
		mix.Saturation = processor.SaturationSettings{Drive: 0.1, Warmth: 0.2}
		mix.Stereo = processor.StereoSettings{Width: 1.15, BassMonoFreq: 120}
		multiband(master,
			[5]float64{-20, -18, -16, -18, -20},
			[5]float64{2, 2, 1.5, 2, 2},
			[5]float64{0.5, 0, 0, 0.5, 1})
		master.Maximizer = processor.MaximizerSettings{Amount: 40, Character: processor.CharacterTransparent}
		master.StereoEnhancer = processor.StereoEnhancerSettings{Width: 1.1, MonoBelow: 120}
		master.SpectralBalance = processor.SpectralBalanceSettings{LowShelf: 0.5, Presence: 1, HighShelf: 1}
		p.Characteristics = Characteristics{Energy: 0.7, Warmth: 0.5, Brightness: 0.7, Punch: 0.6, Width: 0.6, Dynamics: 0.4}

	case GenreHipHop:
		p.Name = "Hip-Hop"
		p.TargetLUFS = -12
		mix.EQ = eq(4, -2, -1, 2, 1.5, 25, 18000)
		mix.Compression = processor.CompressionSettings{Threshold: -20, Ratio: 4, Attack: 5, Release: 80, Makeup: 4}
		mix.Reverb = processor.ReverbSettings{Wet: 0.08, RoomSize: 0.25, Decay: 1000, PreDelay: 10}
		mix.Delay = processor.DelaySettings{Wet: 0.1, Feedback: 0.2, Time: 375}
		mix.Saturation = processor.SaturationSettings{Drive: 0.25, Warmth: 0.4}
		mix.Stereo = processor.StereoSettings{Width: 1.1, BassMonoFreq: 150}
		multiband(master,
			[5]float64{-16, -18, -18, -20, -22},
			[5]float64{3, 2.5, 2, 2, 1.5},
			[5]float64{1.5, 0, -0.5, 0.5, 0.5})
		master.Maximizer = processor.MaximizerSettings{Amount: 60, Character: processor.CharacterWarm}
		master.StereoEnhancer = processor.StereoEnhancerSettings{Width: 1.05, MonoBelow: 150}
		master.SpectralBalance = processor.SpectralBalanceSettings{LowShelf: 1.5, Presence: 0.5, HighShelf: 0.5}
		p.Characteristics = Characteristics{Energy: 0.8, Warmth: 0.7, Brightness: 0.5, Punch: 0.9, Width: 0.5, Dynamics: 0.3}

	case GenreRock:
		p.Name = "Rock"
		p.TargetLUFS = -12
		mix.EQ = eq(2, -1.5, 1, 2.5, 1.5, 40, 18000)
		mix.Compression = processor.CompressionSettings{Threshold: -16, Ratio: 4, Attack: 15, Release: 150, Makeup: 3}
		mix.Reverb = processor.ReverbSettings{Wet: 0.12, RoomSize: 0.5, Decay: 1600, PreDelay: 25}
		mix.Delay = processor.DelaySettings{Wet: 0.05, Feedback: 0.2, Time: 300}
		mix.Saturation = processor.SaturationSettings{Drive: 0.35, Warmth: 0.3}
		mix.Stereo = processor.StereoSettings{Width: 1.2, BassMonoFreq: 100}
		multiband(master,
			[5]float64{-18, -16, -16, -18, -20},
			[5]float64{2.5, 2, 2, 2.5, 2},
			[5]float64{0.5, 0, 0.5, 1, 0.5})
		master.Maximizer = processor.MaximizerSettings{Amount: 55, Character: processor.CharacterWarm}
		master.StereoEnhancer = processor.StereoEnhancerSettings{Width: 1.1, MonoBelow: 100}
		master.SpectralBalance = processor.SpectralBalanceSettings{LowShelf: 0.5, Presence: 1.5, HighShelf: 0.5}
		p.Characteristics = Characteristics{Energy: 0.85, Warmth: 0.6, Brightness: 0.6, Punch: 0.8, Width: 0.7, Dynamics: 0.45}

	case GenreElectronic:
		p.Name = "Electronic"
		p.TargetLUFS = -10
		mix.EQ = eq(3, -2, -0.5, 1, 3, 25, 20000)
		mix.Compression = processor.CompressionSettings{Threshold: -18, Ratio: 4, Attack: 3, Release: 60, Makeup: 4}
		mix.Reverb = processor.ReverbSettings{Wet: 0.2, RoomSize: 0.6, Decay: 2200, PreDelay: 30}
		mix.Delay = processor.DelaySettings{Wet: 0.15, Feedback: 0.35, Time: 375}
		mix.Chorus = processor.ChorusSettings{Wet: 0.1, Depth: 0.3, Rate: 0.8}
		mix.Saturation = processor.SaturationSettings{Drive: 0.2, Warmth: 0.15}
		mix.Stereo = processor.StereoSettings{Width: 1.35, BassMonoFreq: 140}
		multiband(master,
			[5]float64{-14, -18, -18, -18, -18},
			[5]float64{3, 2.5, 2, 2.5, 2.5},
			[5]float64{1.5, -0.5, 0, 1, 1.5})
		master.Maximizer = processor.MaximizerSettings{Amount: 75, Character: processor.CharacterAggressive}
		master.StereoEnhancer = processor.StereoEnhancerSettings{Width: 1.25, MonoBelow: 140}
		master.SpectralBalance = processor.SpectralBalanceSettings{LowShelf: 1, Presence: 0.5, HighShelf: 1.5}
		p.Characteristics = Characteristics{Energy: 0.95, Warmth: 0.4, Brightness: 0.8, Punch: 0.85, Width: 0.9, Dynamics: 0.2}

	case GenreJazz:
		p.Name = "Jazz"
		p.TargetLUFS = -18
		mix.EQ = eq(0.5, 0.5, 0, 0.5, 1, 30, 20000)
		mix.Compression = processor.CompressionSettings{Threshold: -24, Ratio: 1.8, Attack: 25, Release: 250, Makeup: 1.5}
		mix.Reverb = processor.ReverbSettings{Wet: 0.22, RoomSize: 0.55, Decay: 1800, PreDelay: 25}
		mix.Saturation = processor.SaturationSettings{Drive: 0.05, Warmth: 0.35}
		mix.Stereo = processor.StereoSettings{Width: 1.1, BassMonoFreq: 80}
		multiband(master,
			[5]float64{-24, -24, -22, -24, -24},
			[5]float64{1.5, 1.5, 1.3, 1.5, 1.5},
			[5]float64{0, 0, 0, 0, 0.5})
		master.Maximizer = processor.MaximizerSettings{Amount: 15, Character: processor.CharacterTransparent}
		master.StereoEnhancer = processor.StereoEnhancerSettings{Width: 1.05, MonoBelow: 80}
		master.SpectralBalance = processor.SpectralBalanceSettings{LowShelf: 0.5, Presence: 0, HighShelf: 0.5}
		p.Characteristics = Characteristics{Energy: 0.45, Warmth: 0.8, Brightness: 0.5, Punch: 0.4, Width: 0.6, Dynamics: 0.8}

	case GenreClassical:
		p.Name = "Classical"
		p.TargetLUFS = -23
		mix.EQ = eq(0, 0, 0, 0, 0.5, 20, 20000)
		mix.Compression = processor.CompressionSettings{Threshold: -30, Ratio: 1.3, Attack: 50, Release: 400, Makeup: 0.5}
		mix.Reverb = processor.ReverbSettings{Wet: 0.25, RoomSize: 0.8, Decay: 2600, PreDelay: 35}
		mix.Stereo = processor.StereoSettings{Width: 1.05}
		master.Maximizer = processor.MaximizerSettings{Amount: 0, Character: processor.CharacterTransparent}
		master.SpectralBalance = processor.SpectralBalanceSettings{HighShelf: 0.5}
		p.Characteristics = Characteristics{Energy: 0.3, Warmth: 0.7, Brightness: 0.5, Punch: 0.2, Width: 0.8, Dynamics: 0.95}

	case GenreRnB:
		p.Name = "R&B"
		p.TargetLUFS = -13
		mix.EQ = eq(3, -1, 0, 1, 2, 28, 19000)
		mix.Compression = processor.CompressionSettings{Threshold: -20, Ratio: 3, Attack: 8, Release: 120, Makeup: 3}
		mix.Reverb = processor.ReverbSettings{Wet: 0.18, RoomSize: 0.45, Decay: 1600, PreDelay: 20}
		mix.Delay = processor.DelaySettings{Wet: 0.1, Feedback: 0.25, Time: 500}
		mix.Chorus = processor.ChorusSettings{Wet: 0.08, Depth: 0.2, Rate: 0.4}
		mix.Saturation = processor.SaturationSettings{Drive: 0.15, Warmth: 0.45}
		mix.Stereo = processor.StereoSettings{Width: 1.2, BassMonoFreq: 120}
		multiband(master,
			[5]float64{-18, -20, -18, -20, -22},
			[5]float64{2.5, 2, 1.8, 2, 1.8},
			[5]float64{1, 0, 0, 0.5, 1})
		master.Maximizer = processor.MaximizerSettings{Amount: 45, Character: processor.CharacterWarm}
		master.StereoEnhancer = processor.StereoEnhancerSettings{Width: 1.1, MonoBelow: 120}
		master.SpectralBalance = processor.SpectralBalanceSettings{LowShelf: 1, Presence: 0.5, HighShelf: 1}
		p.Characteristics = Characteristics{Energy: 0.6, Warmth: 0.85, Brightness: 0.6, Punch: 0.65, Width: 0.7, Dynamics: 0.45}

	case GenreMetal:
		p.Name = "Metal"
		p.TargetLUFS = -10
		mix.EQ = eq(2.5, -3, -1.5, 3, 2, 45, 17000)
		mix.Compression = processor.CompressionSettings{Threshold: -14, Ratio: 6, Attack: 5, Release: 100, Makeup: 4}
		mix.Reverb = processor.ReverbSettings{Wet: 0.08, RoomSize: 0.35, Decay: 1200, PreDelay: 15}
		mix.Saturation = processor.SaturationSettings{Drive: 0.5, Warmth: 0.2}
		mix.Stereo = processor.StereoSettings{Width: 1.3, BassMonoFreq: 120}
		multiband(master,
			[5]float64{-16, -14, -14, -16, -18},
			[5]float64{3, 3, 2.5, 3, 2.5},
			[5]float64{1, -1, 0, 1, 0.5})
		master.Maximizer = processor.MaximizerSettings{Amount: 80, Character: processor.CharacterAggressive}
		master.StereoEnhancer = processor.StereoEnhancerSettings{Width: 1.2, MonoBelow: 120}
		master.SpectralBalance = processor.SpectralBalanceSettings{LowShelf: 1, Presence: 1.5, HighShelf: 0.5}
		p.Characteristics = Characteristics{Energy: 1, Warmth: 0.3, Brightness: 0.7, Punch: 0.95, Width: 0.8, Dynamics: 0.15}

	case GenreAcoustic:
		p.Name = "Acoustic"
		p.TargetLUFS = -16
		mix.EQ = eq(-0.5, -1, 0.5, 1, 1.5, 60, 20000)
		mix.Compression = processor.CompressionSettings{Threshold: -22, Ratio: 2, Attack: 20, Release: 200, Makeup: 2}
		mix.Reverb = processor.ReverbSettings{Wet: 0.18, RoomSize: 0.5, Decay: 1500, PreDelay: 20}
		mix.Saturation = processor.SaturationSettings{Drive: 0.05, Warmth: 0.3}
		mix.Stereo = processor.StereoSettings{Width: 1.1, BassMonoFreq: 90}
		multiband(master,
			[5]float64{-22, -22, -20, -22, -24},
			[5]float64{1.5, 1.5, 1.5, 1.8, 1.5},
			[5]float64{0, 0, 0.5, 0.5, 0.5})
		master.Maximizer = processor.MaximizerSettings{Amount: 25, Character: processor.CharacterTransparent}
		master.StereoEnhancer = processor.StereoEnhancerSettings{Width: 1.05, MonoBelow: 90}
		master.SpectralBalance = processor.SpectralBalanceSettings{Presence: 1, HighShelf: 1}
		p.Characteristics = Characteristics{Energy: 0.4, Warmth: 0.75, Brightness: 0.65, Punch: 0.35, Width: 0.55, Dynamics: 0.75}

	default:
		panic(fmt.Sprintf("presets: no table for %v", g))
	}

	return p
}
