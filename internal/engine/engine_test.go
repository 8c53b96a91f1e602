package engine

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/inference"
	"github.com/linuxmatters/mixdesk/internal/presets"
	"github.com/linuxmatters/mixdesk/internal/processor"
	"github.com/linuxmatters/mixdesk/internal/store"
	"github.com/sirupsen/logrus"
)

type fakeAnalyzer struct {
	result processor.ExternalLoudness
	err    error
	paths  []string
}

func (f *fakeAnalyzer) MeasureLoudness(_ context.Context, path string) (processor.ExternalLoudness, error) {
	f.paths = append(f.paths, path)
	return f.result, f.err
}

type fakeRenderer struct {
	block  bool
	chains [][]processor.FilterDescriptor
}

func (f *fakeRenderer) Render(ctx context.Context, inputPath string, chain []processor.FilterDescriptor) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.chains = append(f.chains, chain)
	return processor.OutputPath(inputPath, "rendered"), nil
}

type savedSettings struct {
	trackID  string
	settings store.ComputedSettings
	prov     store.Provenance
}

type fakeStore struct {
	mu    sync.Mutex
	saves []savedSettings
	err   error
}

func (f *fakeStore) SaveComputedSettings(_ context.Context, trackID string, settings store.ComputedSettings, prov store.Provenance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, savedSettings{trackID, settings, prov})
	return f.err
}

type recordingSink struct {
	mu      sync.Mutex
	records []inference.Record
}

func (s *recordingSink) LogInference(rec inference.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *recordingSink) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]string, len(s.records))
	for i, r := range s.records {
		ops[i] = r.OperationType
	}
	return ops
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// sine builds a 48 kHz sine at amp on every channel.
func sine(t *testing.T, freq, amp, secs float64, channels int) *audio.Sample {
	t.Helper()
	const sr = 48000
	n := int(secs * sr)
	data := make([]float64, n*channels)
	for i := 0; i < n; i++ {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/sr)
		for c := 0; c < channels; c++ {
			data[i*channels+c] = v
		}
	}
	s, err := audio.NewSample(data, sr, channels, 24)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Catalog == nil {
		opts.Catalog = presets.NewCatalog()
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func hasRule(s []processor.Suggestion, id string) bool {
	for _, sg := range s {
		if sg.RuleID == id {
			return true
		}
	}
	return false
}

func TestNewRequiresCatalog(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without a catalog succeeded")
	}
}

func TestApplyGenrePresetHalfIntensity(t *testing.T) {
	st := &fakeStore{}
	sink := &recordingSink{}
	e := newTestEngine(t, Options{Store: st, Sink: sink})

	raw, _ := e.Catalog().Get("hip_hop")
	res, err := e.ApplyGenrePreset(context.Background(), "track-7", "hip_hop", 50, nil)
	if err != nil {
		t.Fatalf("ApplyGenrePreset() error = %v", err)
	}

	if res.Mix.EQ.LowGain != raw.Mix.EQ.LowGain/2 {
		t.Errorf("eq.lowGain = %v, want exactly %v", res.Mix.EQ.LowGain, raw.Mix.EQ.LowGain/2)
	}
	if want := 1 + (raw.Mix.Compression.Ratio-1)/2; math.Abs(res.Mix.Compression.Ratio-want) > 1e-12 {
		t.Errorf("ratio = %v, want %v", res.Mix.Compression.Ratio, want)
	}
	if res.Mix.EQ.LowCut != raw.Mix.EQ.LowCut || res.Mix.Compression.Attack != raw.Mix.Compression.Attack {
		t.Error("cutoffs or timing changed with intensity")
	}
	if !res.Known || res.Genre != presets.GenreHipHop || res.Intensity != 0.5 {
		t.Errorf("result = %+v", res)
	}
	if res.Confidence <= 0 || res.Confidence > 0.95 {
		t.Errorf("Confidence = %v, want (0, 0.95]", res.Confidence)
	}

	if len(st.saves) != 1 {
		t.Fatalf("saved %d times, want 1", len(st.saves))
	}
	saved := st.saves[0]
	if saved.trackID != "track-7" || saved.prov.Genre != "hip_hop" || saved.prov.Intensity != 0.5 {
		t.Errorf("saved = %+v", saved.prov)
	}
	if saved.settings.Mix == nil || *saved.settings.Mix != res.Mix || saved.settings.Master == nil {
		t.Error("saved settings do not match the result")
	}

	if ops := sink.operations(); len(ops) != 1 || ops[0] != OpApplyGenrePreset {
		t.Errorf("audit operations = %v", ops)
	}
}

func TestApplyGenrePresetEndpoints(t *testing.T) {
	e := newTestEngine(t, Options{})
	raw, _ := e.Catalog().Get("rock")

	tests := []struct {
		name    string
		percent float64
		want    processor.MixSettings
	}{
		{"zero is neutral", 0, processor.NeutralMix(raw.Mix)},
		{"full is the preset", 100, raw.Mix},
		{"above range clamps", 250, raw.Mix},
		{"below range clamps", -20, processor.NeutralMix(raw.Mix)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.ApplyGenrePreset(context.Background(), "", "rock", tt.percent, nil)
			if err != nil {
				t.Fatal(err)
			}
			if res.Mix != tt.want {
				t.Errorf("Mix = %+v\nwant %+v", res.Mix, tt.want)
			}
		})
	}
}

func TestApplyGenrePresetUnknownGenre(t *testing.T) {
	e := newTestEngine(t, Options{})

	res, err := e.ApplyGenrePreset(context.Background(), "", "polka", 100, nil)
	if err != nil {
		t.Fatalf("unknown genre returned error %v", err)
	}
	if res.Known || res.Genre != presets.DefaultGenre {
		t.Errorf("Known = %v, Genre = %v", res.Known, res.Genre)
	}
	if !hasRule(res.Suggestions, "unknown_genre") {
		t.Error("no suggestion about the unknown genre")
	}
}

func TestApplyGenrePresetMeasuresSample(t *testing.T) {
	e := newTestEngine(t, Options{})

	// A quiet sine sits far below the electronic target
	res, err := e.ApplyGenrePreset(context.Background(), "", "electronic", 80, sine(t, 440, 0.01, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if res.Measured == nil || !res.Measured.Degraded {
		t.Fatalf("Measured = %+v, want a degraded internal measurement", res.Measured)
	}
	if !hasRule(res.Suggestions, "preset_loudness_target") {
		t.Errorf("suggestions = %v, want a loudness target suggestion", res.Suggestions)
	}
}

func TestMeasureLoudnessFallsBack(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unavailable", fault.Unavailable("ffmpeg", nil)},
		{"timeout", fault.Timeout("ffmpeg", context.DeadlineExceeded)},
		{"parse", fault.Parse("loudnorm output", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{err: tt.err}
			sink := &recordingSink{}
			e := newTestEngine(t, Options{Loudness: analyzer, Sink: sink})

			s := sine(t, 1000, 0.25, 1, 2)
			s.SourcePath = "song.wav"

			got, err := e.MeasureLoudness(context.Background(), "t", s)
			if err != nil {
				t.Fatalf("MeasureLoudness() error = %v", err)
			}
			if len(analyzer.paths) != 1 || analyzer.paths[0] != "song.wav" {
				t.Errorf("analyser called with %v", analyzer.paths)
			}
			want, _ := processor.MeasureInternal(s)
			if got != want {
				t.Errorf("got %+v, want internal %+v", got, want)
			}
			if !got.Degraded || got.Source != processor.SourceInternal {
				t.Errorf("Degraded = %v, Source = %q", got.Degraded, got.Source)
			}
			if recs := sink.records; len(recs) != 1 || !recs[0].Degraded {
				t.Errorf("audit records = %+v, want one degraded entry", recs)
			}
		})
	}
}

func TestMeasureLoudnessExternal(t *testing.T) {
	analyzer := &fakeAnalyzer{result: processor.ExternalLoudness{Integrated: -12, TruePeak: -1.2, LoudnessRange: 6, Threshold: -22}}
	e := newTestEngine(t, Options{Loudness: analyzer})

	s := sine(t, 1000, 0.25, 1, 2)
	s.SourcePath = "song.wav"
	got, err := e.MeasureLoudness(context.Background(), "t", s)
	if err != nil {
		t.Fatal(err)
	}
	if got.Degraded || got.Source != processor.SourceExternal || got.Integrated != -12 {
		t.Errorf("got %+v, want the external measurement", got)
	}

	// Buffers that never touched disk cannot reach a file-based analyser
	got, err = e.MeasureLoudness(context.Background(), "t", sine(t, 1000, 0.25, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Degraded {
		t.Error("in-memory buffer was not measured internally")
	}
}

func TestExtractAllStems(t *testing.T) {
	dir := t.TempDir()
	s := sine(t, 80, 0.3, 1, 2)
	s.SourcePath = filepath.Join(dir, "song.wav")

	e := newTestEngine(t, Options{Workers: 2})
	results, err := e.ExtractAllStems(context.Background(), "t", s, StemOptions{WriteFiles: true})
	if err != nil {
		t.Fatalf("ExtractAllStems() error = %v", err)
	}
	if len(results) != len(processor.AllStems) {
		t.Fatalf("got %d stems, want %d", len(results), len(processor.AllStems))
	}

	for i, r := range results {
		if r.Stem != processor.AllStems[i] {
			t.Errorf("result %d is %v, want %v", i, r.Stem, processor.AllStems[i])
		}
		if r.Confidence <= 0 || r.Confidence > 0.95 {
			t.Errorf("%v confidence = %v", r.Stem, r.Confidence)
		}
		if r.Sample.SampleRate != s.SampleRate || r.Sample.Channels != s.Channels || len(r.Sample.Data) != len(s.Data) {
			t.Errorf("%v changed the format", r.Stem)
		}
		if _, err := os.Stat(r.OutputPath); err != nil {
			t.Errorf("%v output %q: %v", r.Stem, r.OutputPath, err)
		}
	}
}

func TestExtractAllStemsRejectsEmpty(t *testing.T) {
	e := newTestEngine(t, Options{})
	_, err := e.ExtractAllStems(context.Background(), "t", &audio.Sample{SampleRate: 48000, Channels: 2}, StemOptions{})
	if !errors.Is(err, fault.ErrInput) {
		t.Errorf("error = %v, want ErrInput", err)
	}
}

func TestNormalizeTo(t *testing.T) {
	st := &fakeStore{}
	e := newTestEngine(t, Options{Store: st})
	s := sine(t, 1000, 0.05, 2, 2)

	res, err := e.NormalizeTo(context.Background(), "t", s, -14, false)
	if err != nil {
		t.Fatalf("NormalizeTo() error = %v", err)
	}
	want, _ := processor.MeasureInternal(s)
	if res.Plan.Gain != -14-want.Integrated {
		t.Errorf("Gain = %v, want exactly %v", res.Plan.Gain, -14-want.Integrated)
	}
	if res.OutputPath != "" {
		t.Errorf("OutputPath = %q without rendering", res.OutputPath)
	}
	if len(st.saves) != 1 || st.saves[0].settings.Normalisation == nil {
		t.Error("normalisation plan was not persisted")
	}
}

func TestNormalizeToRender(t *testing.T) {
	s := sine(t, 1000, 0.05, 1, 2)
	s.SourcePath = "/music/song.flac"

	t.Run("renders the loudnorm filter", func(t *testing.T) {
		r := &fakeRenderer{}
		e := newTestEngine(t, Options{Renderer: r})
		res, err := e.NormalizeTo(context.Background(), "t", s, -14, true)
		if err != nil {
			t.Fatalf("NormalizeTo() error = %v", err)
		}
		if len(r.chains) != 1 || len(r.chains[0]) != 1 || r.chains[0][0].Name != processor.FilterLoudnorm {
			t.Errorf("rendered chains = %v", r.chains)
		}
		if res.OutputPath != processor.OutputPath(s.SourcePath, "rendered") {
			t.Errorf("OutputPath = %q", res.OutputPath)
		}
	})

	t.Run("missing renderer fails", func(t *testing.T) {
		e := newTestEngine(t, Options{})
		if _, err := e.NormalizeTo(context.Background(), "t", s, -14, true); !errors.Is(err, fault.ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("slow renderer times out", func(t *testing.T) {
		e := newTestEngine(t, Options{Renderer: &fakeRenderer{block: true}, RenderTimeout: 50 * time.Millisecond})
		_, err := e.NormalizeTo(context.Background(), "t", s, -14, true)
		if !errors.Is(err, fault.ErrTimeout) || !errors.Is(err, fault.ErrUnavailable) {
			t.Errorf("error = %v, want ErrTimeout", err)
		}
	})

	t.Run("positive target is rejected", func(t *testing.T) {
		e := newTestEngine(t, Options{})
		if _, err := e.NormalizeTo(context.Background(), "t", s, 3, false); !errors.Is(err, fault.ErrInput) {
			t.Errorf("error = %v, want ErrInput", err)
		}
	})
}

func TestMatchToReference(t *testing.T) {
	st := &fakeStore{}
	e := newTestEngine(t, Options{Store: st})

	target := sine(t, 1000, 0.02, 1, 2)
	reference := sine(t, 1000, 0.5, 1, 2)

	res, err := e.MatchToReference(context.Background(), "t", target, reference, nil)
	if err != nil {
		t.Fatalf("MatchToReference() error = %v", err)
	}
	if !hasRule(res.Suggestions, "reference_loudness") {
		t.Errorf("suggestions = %v, want reference_loudness for a loud reference", res.Suggestions)
	}
	if len(st.saves) != 1 || st.saves[0].settings.Mix == nil || *st.saves[0].settings.Mix != res.Settings {
		t.Error("matched settings were not persisted")
	}

	if _, err := e.MatchToReference(context.Background(), "t", target, &audio.Sample{}, nil); !errors.Is(err, fault.ErrInput) {
		t.Errorf("empty reference error = %v, want ErrInput", err)
	}
}

func TestProfileTrackDiagnoses(t *testing.T) {
	e := newTestEngine(t, Options{})

	// Full-scale sine: true peak at 0 dBFS
	res, err := e.ProfileTrack(context.Background(), "t", sine(t, 1000, 1, 1, 2), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !hasRule(res.Suggestions, "clipping") {
		t.Errorf("suggestions = %v, want clipping", res.Suggestions)
	}
}

func TestAnalyzeSpectrumHumCheck(t *testing.T) {
	s := sine(t, 50, 0.3, 2, 1)

	off := newTestEngine(t, Options{})
	res, err := off.AnalyzeSpectrum(context.Background(), "t", s)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Suggestions) != 0 {
		t.Errorf("hum check ran without a mains frequency: %v", res.Suggestions)
	}
	if res.Profile.FrameCount == 0 {
		t.Error("no frames analysed")
	}

	on := newTestEngine(t, Options{MainsHz: 50})
	res, err = on.AnalyzeSpectrum(context.Background(), "t", s)
	if err != nil {
		t.Fatal(err)
	}
	if !hasRule(res.Suggestions, "mains_hum") {
		t.Errorf("suggestions = %v, want mains_hum", res.Suggestions)
	}
}

func TestRenderSettings(t *testing.T) {
	r := &fakeRenderer{}
	e := newTestEngine(t, Options{Renderer: r})

	preset, _ := e.Catalog().Get("pop")
	out, err := e.RenderSettings(context.Background(), "t", "/music/song.wav", preset.Mix, preset.Master)
	if err != nil {
		t.Fatalf("RenderSettings() error = %v", err)
	}
	if out != processor.OutputPath("/music/song.wav", "rendered") {
		t.Errorf("output = %q", out)
	}
	want := len(processor.BuildMixChain(preset.Mix)) + len(processor.BuildMasterChain(preset.Master))
	if len(r.chains) != 1 {
		t.Fatalf("rendered %d times, want 1", len(r.chains))
	}
	if len(r.chains[0]) != want {
		t.Errorf("rendered %d filters, want %d", len(r.chains[0]), want)
	}
}

func TestPersistFailureDoesNotFailOperation(t *testing.T) {
	e := newTestEngine(t, Options{Store: &fakeStore{err: errors.New("disk full")}})
	if _, err := e.ApplyGenrePreset(context.Background(), "t", "jazz", 60, nil); err != nil {
		t.Errorf("store failure surfaced: %v", err)
	}
}

func TestPoolRespectsContext(t *testing.T) {
	p := NewPool(1)
	if p.Size() != 1 {
		t.Fatalf("Size() = %d", p.Size())
	}

	release := make(chan struct{})
	started := make(chan struct{})
	go p.Do(context.Background(), func() error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ran := false
	err := p.Do(ctx, func() error { ran = true; return nil })
	if !errors.Is(err, context.DeadlineExceeded) || ran {
		t.Errorf("Do() on a full pool = %v, ran = %v", err, ran)
	}
	close(release)

	if NewPool(0).Size() < 1 {
		t.Error("NewPool(0) has no workers")
	}
}
