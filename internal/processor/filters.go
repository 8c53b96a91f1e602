package processor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FilterID identifies an ffmpeg audio filter the renderer understands
type FilterID string

// Filter identifiers used by the mix, master and normalisation chains
const (
	FilterHighpass    FilterID = "highpass"
	FilterLowpass     FilterID = "lowpass"
	FilterLowShelf    FilterID = "lowshelf"
	FilterEqualizer   FilterID = "equalizer"
	FilterHighShelf   FilterID = "highshelf"
	FilterCompressor  FilterID = "acompressor"
	FilterEcho        FilterID = "aecho" // used for both the reverb and delay approximations
	FilterChorus      FilterID = "chorus"
	FilterSoftClip    FilterID = "asoftclip"
	FilterExtraStereo FilterID = "extrastereo"
	FilterMultiband   FilterID = "mcompand"
	FilterVolume      FilterID = "volume"
	FilterLimiter     FilterID = "alimiter"
	FilterLoudnorm    FilterID = "loudnorm"
)

// FilterArg is one key=value option of a filter
type FilterArg struct {
	Key   string
	Value string
}

// FilterDescriptor is a single filter with ordered options. Its String form
// is valid inside an ffmpeg -af filtergraph.
type FilterDescriptor struct {
	Name FilterID
	Args []FilterArg
}

// NewFilter builds a descriptor from alternating key/value strings.
func NewFilter(name FilterID, kv ...string) FilterDescriptor {
	d := FilterDescriptor{Name: name}
	for i := 0; i+1 < len(kv); i += 2 {
		d.Args = append(d.Args, FilterArg{Key: kv[i], Value: kv[i+1]})
	}
	return d
}

// Arg returns the value of key.
func (d FilterDescriptor) Arg(key string) (string, bool) {
	for _, a := range d.Args {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

func (d FilterDescriptor) String() string {
	if len(d.Args) == 0 {
		return string(d.Name)
	}
	parts := make([]string, len(d.Args))
	for i, a := range d.Args {
		parts[i] = a.Key + "=" + quoteFilterValue(a.Value)
	}
	return string(d.Name) + "=" + strings.Join(parts, ":")
}

// quoteFilterValue wraps values containing filtergraph separators in single quotes
func quoteFilterValue(v string) string {
	if strings.ContainsAny(v, ",:;[]= |'") {
		return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
	}
	return v
}

// BuildFilterSpec joins a chain into a single -af argument.
func BuildFilterSpec(chain []FilterDescriptor) string {
	parts := make([]string, len(chain))
	for i, d := range chain {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}

// DbToLinear converts decibel value to linear amplitude.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20.0)
}

// LinearToDb converts linear amplitude to decibel value.
// Inverse of DbToLinear.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return -120.0 // Practical floor for audio
	}
	return 20.0 * math.Log10(linear)
}

// num formats a float for a filter option with at most prec decimals
func num(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Mix chain order: band-limit first, then tone, dynamics, colour,
// time-based effects and finally the stereo image.
var mixFilterOrder = []string{
	"highpass", "lowpass", "eq_low", "eq_lowmid", "eq_mid", "eq_highmid", "eq_high",
	"compressor", "saturation", "chorus", "delay", "reverb", "stereo",
}

type mixFilterBuilder func(MixSettings) *FilterDescriptor

// mixBuilders maps each mix stage to its builder. A nil result means the
// stage is neutral and is left out of the chain.
var mixBuilders = map[string]mixFilterBuilder{
	"highpass":   buildHighpass,
	"lowpass":    buildLowpass,
	"eq_low":     func(m MixSettings) *FilterDescriptor { return shelf(FilterLowShelf, 100, m.EQ.LowGain) },
	"eq_lowmid":  func(m MixSettings) *FilterDescriptor { return peak(400, 1.0, m.EQ.LowMidGain) },
	"eq_mid":     func(m MixSettings) *FilterDescriptor { return peak(1000, 1.0, m.EQ.MidGain) },
	"eq_highmid": func(m MixSettings) *FilterDescriptor { return peak(3500, 1.0, m.EQ.HighMidGain) },
	"eq_high":    func(m MixSettings) *FilterDescriptor { return shelf(FilterHighShelf, 8000, m.EQ.HighGain) },
	"compressor": buildCompressor,
	"saturation": buildSaturation,
	"chorus":     buildChorus,
	"delay":      buildDelay,
	"reverb":     buildReverb,
	"stereo":     func(m MixSettings) *FilterDescriptor { return stereoWidth(m.Stereo.Width) },
}

// BuildMixChain renders MixSettings as an ordered filter chain. Neutral
// stages are omitted, so DefaultMixSettings yields an empty chain.
// The bass-mono crossover has no single-input ffmpeg equivalent and is
// carried in the settings only.
func BuildMixChain(m MixSettings) []FilterDescriptor {
	m = SanitizeMix(m)
	var chain []FilterDescriptor
	for _, stage := range mixFilterOrder {
		if d := mixBuilders[stage](m); d != nil {
			chain = append(chain, *d)
		}
	}
	return chain
}

func buildHighpass(m MixSettings) *FilterDescriptor {
	if m.EQ.LowCut <= 20 {
		return nil
	}
	d := NewFilter(FilterHighpass, "f", num(m.EQ.LowCut, 1), "poles", "2")
	return &d
}

func buildLowpass(m MixSettings) *FilterDescriptor {
	if m.EQ.HighCut <= 0 || m.EQ.HighCut >= 20000 {
		return nil
	}
	d := NewFilter(FilterLowpass, "f", num(m.EQ.HighCut, 1), "poles", "2")
	return &d
}

func shelf(id FilterID, freq, gain float64) *FilterDescriptor {
	if gain == 0 {
		return nil
	}
	d := NewFilter(id, "f", num(freq, 0), "g", num(gain, 2))
	return &d
}

func peak(freq, q, gain float64) *FilterDescriptor {
	if gain == 0 {
		return nil
	}
	d := NewFilter(FilterEqualizer, "f", num(freq, 0), "t", "q", "w", num(q, 2), "g", num(gain, 2))
	return &d
}

// buildCompressor maps the compressor onto acompressor, whose threshold and
// makeup are linear. acompressor's makeup cannot cut, so negative makeup is dropped.
func buildCompressor(m MixSettings) *FilterDescriptor {
	c := m.Compression
	if c.Ratio <= 1 {
		return nil
	}
	threshold := math.Max(DbToLinear(c.Threshold), 0.000976563)
	makeup := DbToLinear(math.Max(0, c.Makeup))
	d := NewFilter(FilterCompressor,
		"threshold", num(math.Min(threshold, 1), 6),
		"ratio", num(c.Ratio, 2),
		"attack", num(clamp(c.Attack, 0.01, 2000), 2),
		"release", num(clamp(c.Release, 0.01, 9000), 2),
		"makeup", num(math.Min(makeup, 64), 4),
	)
	return &d
}

// buildSaturation uses asoftclip; drive lowers the clipping threshold by up
// to 12 dB and warmth selects the smoother tanh curve.
func buildSaturation(m MixSettings) *FilterDescriptor {
	s := m.Saturation
	if s.Drive == 0 && s.Warmth == 0 {
		return nil
	}
	curve := "atan"
	if s.Warmth >= 0.5 {
		curve = "tanh"
	}
	d := NewFilter(FilterSoftClip,
		"type", curve,
		"threshold", num(DbToLinear(-12*s.Drive), 4),
	)
	return &d
}

func buildChorus(m MixSettings) *FilterDescriptor {
	c := m.Chorus
	if c.Wet == 0 {
		return nil
	}
	// chorus=in_gain:out_gain:delays:decays:speeds:depths, depth in ms
	d := NewFilter(FilterChorus,
		"in_gain", "0.7",
		"out_gain", "0.9",
		"delays", "40",
		"decays", num(c.Wet, 3),
		"speeds", num(math.Max(c.Rate, 0.1), 3),
		"depths", num(math.Max(c.Depth*4, 0.1), 3),
	)
	return &d
}

// buildDelay approximates a feedback delay with two aecho taps: the first at
// the delay time, the second a repeat attenuated by the feedback amount.
func buildDelay(m MixSettings) *FilterDescriptor {
	dl := m.Delay
	if dl.Wet == 0 || dl.Time <= 0 {
		return nil
	}
	d := NewFilter(FilterEcho,
		"in_gain", "1",
		"out_gain", "1",
		"delays", num(dl.Time, 1)+"|"+num(2*dl.Time, 1),
		"decays", num(dl.Wet, 3)+"|"+num(math.Max(dl.Wet*dl.Feedback, 0.001), 3),
	)
	return &d
}

// buildReverb approximates a room with three early-reflection taps spread by
// room size; each tap decays toward -60 dB at the decay time.
func buildReverb(m MixSettings) *FilterDescriptor {
	r := m.Reverb
	if r.Wet == 0 || r.Decay <= 0 {
		return nil
	}
	spread := 20 + 80*r.RoomSize
	var delays, decays []string
	for tap := 1; tap <= 3; tap++ {
		delay := math.Max(r.PreDelay, 1) + spread*float64(tap)
		decay := r.Wet * math.Pow(10, -3*delay/r.Decay)
		delays = append(delays, num(delay, 1))
		decays = append(decays, num(math.Max(decay, 0.001), 3))
	}
	d := NewFilter(FilterEcho,
		"in_gain", "0.8",
		"out_gain", "0.9",
		"delays", strings.Join(delays, "|"),
		"decays", strings.Join(decays, "|"),
	)
	return &d
}

// stereoWidth maps a width multiplier onto extrastereo, where m=1 is unchanged
func stereoWidth(width float64) *FilterDescriptor {
	if width == 1 {
		return nil
	}
	d := NewFilter(FilterExtraStereo, "m", num(width, 3))
	return &d
}

// BuildMasterChain renders MasterSettings as multiband compression, spectral
// balance, stereo enhancement, maximizer gain and the final limiter.
func BuildMasterChain(m MasterSettings) []FilterDescriptor {
	m = SanitizeMaster(m)
	var chain []FilterDescriptor

	if d := buildMultiband(m.Multiband); d != nil {
		chain = append(chain, *d)
	}
	if d := shelf(FilterLowShelf, 120, m.SpectralBalance.LowShelf); d != nil {
		chain = append(chain, *d)
	}
	if d := peak(3000, 0.8, m.SpectralBalance.Presence); d != nil {
		chain = append(chain, *d)
	}
	if d := shelf(FilterHighShelf, 10000, m.SpectralBalance.HighShelf); d != nil {
		chain = append(chain, *d)
	}
	if d := stereoWidth(m.StereoEnhancer.Width); d != nil {
		chain = append(chain, *d)
	}
	chain = append(chain, buildMaximizer(m.Maximizer)...)
	chain = append(chain, buildLimiter(m.Limiter))
	return chain
}

// buildMultiband renders mcompand bands as "attack,decay knee points crossover".
// Each band's transfer curve is unity below threshold and 1/ratio above it,
// shifted by the band gain. All-neutral bands are omitted.
func buildMultiband(mb MultibandSettings) *FilterDescriptor {
	neutral := true
	for _, b := range mb.Bands {
		if b.Ratio > 1 || b.Gain != 0 {
			neutral = false
			break
		}
	}
	if neutral {
		return nil
	}

	bands := make([]string, NumMultibandBands)
	for i, b := range mb.Bands {
		crossover := 20000.0
		if i < len(mb.Crossovers) {
			crossover = mb.Crossovers[i]
		}
		top := b.Threshold + (0-b.Threshold)/math.Max(b.Ratio, 1)
		points := fmt.Sprintf("-90/%s,%s/%s,0/%s",
			num(-90+b.Gain, 2), num(b.Threshold, 2), num(b.Threshold+b.Gain, 2), num(top+b.Gain, 2))
		bands[i] = fmt.Sprintf("%s,%s 6 %s %s",
			num(b.Attack/1000, 4), num(b.Release/1000, 4), points, num(crossover, 0))
	}
	d := NewFilter(FilterMultiband, "args", strings.Join(bands, " | "))
	return &d
}

// buildMaximizer drives the limiter with up to 6 dB of gain; warm and
// aggressive characters add a soft clipper ahead of the limiter.
func buildMaximizer(mx MaximizerSettings) []FilterDescriptor {
	if mx.Amount == 0 {
		return nil
	}
	gain := 6 * mx.Amount / 100
	chain := []FilterDescriptor{NewFilter(FilterVolume, "volume", num(gain, 2)+"dB")}
	switch mx.Character {
	case CharacterTransparent:
	case CharacterWarm:
		chain = append(chain, NewFilter(FilterSoftClip, "type", "tanh", "threshold", "0.9"))
	case CharacterAggressive:
		chain = append(chain, NewFilter(FilterSoftClip, "type", "hard", "threshold", "0.8"))
	default:
		panic(fmt.Sprintf("processor: unhandled maximizer character %d", int(mx.Character)))
	}
	return chain
}

// buildLimiter maps the limiter onto alimiter; limit is linear and attack
// doubles as lookahead.
func buildLimiter(l LimiterSettings) FilterDescriptor {
	return NewFilter(FilterLimiter,
		"limit", num(clamp(DbToLinear(l.Ceiling), 0.0625, 1), 4),
		"attack", num(clamp(l.Lookahead, 0.1, 80), 2),
		"release", num(clamp(l.Release, 1, 8000), 1),
		"level", "false",
	)
}
