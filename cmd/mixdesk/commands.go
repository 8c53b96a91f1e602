package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/cli"
	"github.com/linuxmatters/mixdesk/internal/engine"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/ffmpeg"
	"github.com/linuxmatters/mixdesk/internal/logging"
	"github.com/linuxmatters/mixdesk/internal/processor"
	"github.com/linuxmatters/mixdesk/internal/store"
	"github.com/linuxmatters/mixdesk/internal/watch"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SpectrumCmd runs analyzeSpectrum.
type SpectrumCmd struct {
	File string `arg:"" type:"existingfile" help:"Audio file to analyse"`
}

func (c *SpectrumCmd) Run(ctx context.Context, a *App) error {
	start := time.Now()
	s, err := a.load(ctx, c.File)
	if err != nil {
		return err
	}
	id := a.trackID(ctx, c.File, s)

	res, err := a.engine.AnalyzeSpectrum(ctx, id, s)
	if err != nil {
		return err
	}

	data := reportBase(c.File, s, id, start)
	data.Profile = &processor.TrackProfile{Spectrum: res.Profile, StereoWidth: processor.MeasureStereoWidth(s)}
	data.Suggestions = res.Suggestions
	a.report(data)

	if a.json {
		return a.emitJSON(res)
	}
	cli.PrintSection(a.out, filepath.Base(c.File))
	shares := res.Profile.BandShares()
	for b := processor.Band(0); b < processor.NumBands; b++ {
		cli.PrintKeyValue(a.out, b.String(), fmt.Sprintf("%.1f%%", shares[b]*100))
	}
	cli.PrintKeyValue(a.out, "centroid", fmt.Sprintf("%.0f Hz", res.Profile.CentroidHz))
	cli.PrintKeyValue(a.out, "rolloff", fmt.Sprintf("%.0f Hz", res.Profile.RolloffHz))
	cli.PrintKeyValue(a.out, "flux", fmt.Sprintf("%.2f", res.Profile.Flux))
	printSuggestions(a, res.Suggestions)
	return nil
}

// StemsCmd runs extractAllStems.
type StemsCmd struct {
	File  string `arg:"" type:"existingfile" help:"Audio file to split"`
	Write bool   `default:"true" negatable:"" help:"Write each stem beside the source file"`
}

func (c *StemsCmd) Run(ctx context.Context, a *App) error {
	start := time.Now()
	s, err := a.load(ctx, c.File)
	if err != nil {
		return err
	}
	id := a.trackID(ctx, c.File, s)

	stems, err := a.engine.ExtractAllStems(ctx, id, s, engine.StemOptions{WriteFiles: c.Write})
	if err != nil {
		return err
	}

	data := reportBase(c.File, s, id, start)
	data.Stems = stems
	a.report(data)

	if a.json {
		return a.emitJSON(stems)
	}
	cli.PrintSection(a.out, filepath.Base(c.File))
	for _, st := range stems {
		line := fmt.Sprintf("confidence %.0f%%, centroid %.0f Hz", st.Confidence*100, st.Profile.CentroidHz)
		if st.OutputPath != "" {
			line += " → " + st.OutputPath
		}
		cli.PrintKeyValue(a.out, st.Stem.String(), line)
	}
	return nil
}

// LoudnessCmd runs measureLoudness on each file.
type LoudnessCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Audio files to measure"`
}

type loudnessOutput struct {
	File    string                    `json:"file"`
	TrackID string                    `json:"track_id"`
	Metrics processor.LoudnessMetrics `json:"metrics"`
}

func (c *LoudnessCmd) Run(ctx context.Context, a *App) error {
	var results []loudnessOutput
	for _, path := range c.Files {
		start := time.Now()
		s, err := a.load(ctx, path)
		if err != nil {
			return err
		}
		id := a.trackID(ctx, path, s)
		m, err := a.engine.MeasureLoudness(ctx, id, s)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, loudnessOutput{File: path, TrackID: id, Metrics: m})

		data := reportBase(path, s, id, start)
		data.Profile = &processor.TrackProfile{Loudness: m}
		a.report(data)
	}

	if a.json {
		return a.emitJSON(results)
	}
	for _, r := range results {
		m := r.Metrics
		cli.PrintSection(a.out, filepath.Base(r.File))
		cli.PrintKeyValue(a.out, "integrated", fmt.Sprintf("%.1f LUFS", m.Integrated))
		cli.PrintKeyValue(a.out, "true peak", fmt.Sprintf("%.1f dBTP", m.TruePeak))
		cli.PrintKeyValue(a.out, "range", fmt.Sprintf("%.1f LU", m.LoudnessRange))
		cli.PrintKeyValue(a.out, "short-term", fmt.Sprintf("%.1f LUFS", m.ShortTerm))
		cli.PrintKeyValue(a.out, "momentary", fmt.Sprintf("%.1f LUFS", m.Momentary))
		source := m.Source
		if m.Degraded {
			source += " (approximate)"
		}
		cli.PrintKeyValue(a.out, "measured by", source)
	}
	return nil
}

// PresetCmd runs applyGenrePreset, optionally rendering the result.
type PresetCmd struct {
	Genre     string  `arg:"" help:"Genre id, e.g. pop, hip_hop, electronic (see genres)"`
	File      string  `arg:"" optional:"" type:"existingfile" help:"Track to measure against the preset (optional)"`
	Intensity float64 `short:"i" default:"-1" help:"Intensity 0-100 (default from config)"`
	Render    bool    `help:"Render the mix and master chains to a new file"`
}

func (c *PresetCmd) Run(ctx context.Context, a *App) error {
	start := time.Now()
	intensity := c.Intensity
	if intensity < 0 {
		intensity = a.cfg.Engine.DefaultIntensity
	}
	if c.Render && c.File == "" {
		return fault.Input("--render needs a file")
	}

	data := logging.ReportData{InputPath: c.File, StartTime: start}
	id := a.track
	var res engine.PresetResult
	var err error
	if c.File != "" {
		s, lerr := a.load(ctx, c.File)
		if lerr != nil {
			return lerr
		}
		id = a.trackID(ctx, c.File, s)
		data = reportBase(c.File, s, id, start)
		res, err = a.engine.ApplyGenrePreset(ctx, id, c.Genre, intensity, s)
	} else {
		res, err = a.engine.ApplyGenrePreset(ctx, id, c.Genre, intensity, nil)
	}
	if err != nil {
		return err
	}

	var rendered string
	if c.Render {
		rendered, err = a.engine.RenderSettings(ctx, id, c.File, res.Mix, res.Master)
		if err != nil {
			return err
		}
	}

	if c.File != "" {
		data.Genre = res.Genre.String()
		data.Intensity = res.Intensity * 100
		data.Mix = &res.Mix
		data.Master = &res.Master
		data.Suggestions = res.Suggestions
		if res.Measured != nil {
			data.Profile = &processor.TrackProfile{Loudness: *res.Measured}
		}
		a.report(data)
	}

	if a.json {
		return a.emitJSON(struct {
			engine.PresetResult
			RenderedPath string `json:"rendered_path,omitempty"`
		}{res, rendered})
	}
	preset := a.engine.Catalog().Preset(res.Genre)
	cli.PrintSection(a.out, fmt.Sprintf("%s at %.0f%%", preset.Name, res.Intensity*100))
	cli.PrintKeyValue(a.out, "target", fmt.Sprintf("%.0f LUFS", res.TargetLUFS))
	if res.Measured != nil {
		cli.PrintKeyValue(a.out, "measured", fmt.Sprintf("%.1f LUFS", res.Measured.Integrated))
	}
	cli.PrintKeyValue(a.out, "eq", fmt.Sprintf("low %+.1f, mid %+.1f, high %+.1f dB", res.Mix.EQ.LowGain, res.Mix.EQ.MidGain, res.Mix.EQ.HighGain))
	cli.PrintKeyValue(a.out, "compression", fmt.Sprintf("%.1f:1 at %.0f dB", res.Mix.Compression.Ratio, res.Mix.Compression.Threshold))
	cli.PrintKeyValue(a.out, "mix chain", processor.BuildFilterSpec(processor.BuildMixChain(res.Mix)))
	cli.PrintKeyValue(a.out, "master chain", processor.BuildFilterSpec(processor.BuildMasterChain(res.Master)))
	cli.PrintKeyValue(a.out, "confidence", fmt.Sprintf("%.0f%%", res.Confidence*100))
	if rendered != "" {
		cli.PrintKeyValue(a.out, "rendered", rendered)
	}
	printSuggestions(a, res.Suggestions)
	return nil
}

// MatchCmd runs matchToReference. The target's stored mix, when there is
// one, is the starting point for the adjustments.
type MatchCmd struct {
	Target    string `arg:"" type:"existingfile" help:"Track being mixed"`
	Reference string `arg:"" type:"existingfile" help:"Reference track to move towards"`
	Fresh     bool   `help:"Ignore stored settings and start from the defaults"`
}

func (c *MatchCmd) Run(ctx context.Context, a *App) error {
	start := time.Now()
	target, err := a.load(ctx, c.Target)
	if err != nil {
		return err
	}
	reference, err := a.load(ctx, c.Reference)
	if err != nil {
		return err
	}
	id := a.trackID(ctx, c.Target, target)

	var current *processor.MixSettings
	if a.store != nil && !c.Fresh {
		mix, prov, err := a.store.LoadMix(ctx, id)
		switch {
		case err == nil:
			a.logger.WithField("from", prov.Operation).Debug("starting from stored mix")
			current = &mix
		case !errors.Is(err, store.ErrNotFound):
			a.logger.WithError(err).Warn("failed to load stored mix")
		}
	}

	data := reportBase(c.Target, target, id, start)
	var res processor.MatchResult
	if a.logs {
		// Reports need both profiles, so profile here and compare.
		var tp, rp engine.ProfileResult
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			tp, err = a.engine.ProfileTrack(gctx, id, target, nil)
			return err
		})
		g.Go(func() error {
			var err error
			rp, err = a.engine.ProfileTrack(gctx, id+"-reference", reference, nil)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}
		res = a.engine.MatchProfiles(ctx, id, tp.Profile, rp.Profile, current, audio.Fingerprint(target), start)
		data.Profile = &tp.Profile
		data.Reference = &rp.Profile
	} else {
		res, err = a.engine.MatchToReference(ctx, id, target, reference, current)
		if err != nil {
			return err
		}
	}
	data.Mix = &res.Settings
	data.Suggestions = res.Suggestions
	a.report(data)

	if a.json {
		return a.emitJSON(res)
	}
	cli.PrintSection(a.out, fmt.Sprintf("%s → %s", filepath.Base(c.Target), filepath.Base(c.Reference)))
	cli.PrintKeyValue(a.out, "low shelf", fmt.Sprintf("%+.1f dB", res.Adjustments.LowGain))
	cli.PrintKeyValue(a.out, "high shelf", fmt.Sprintf("%+.1f dB", res.Adjustments.HighGain))
	cli.PrintKeyValue(a.out, "width", fmt.Sprintf("%+.2f", res.Adjustments.Width))
	cli.PrintKeyValue(a.out, "confidence", fmt.Sprintf("%.0f%%", res.Confidence*100))
	printSuggestions(a, res.Suggestions)
	return nil
}

// NormaliseCmd runs normalizeTo.
type NormaliseCmd struct {
	File   string  `arg:"" type:"existingfile" help:"Audio file to normalise"`
	Target float64 `short:"t" help:"Target loudness in LUFS, 0 uses the config default"`
	Render bool    `help:"Apply the plan and write a new file"`
}

func (c *NormaliseCmd) Run(ctx context.Context, a *App) error {
	start := time.Now()
	target := c.Target
	if target == 0 {
		target = a.cfg.Engine.TargetLUFS
	}
	s, err := a.load(ctx, c.File)
	if err != nil {
		return err
	}
	id := a.trackID(ctx, c.File, s)

	res, err := a.engine.NormalizeTo(ctx, id, s, target, c.Render)
	if err != nil {
		return err
	}

	data := reportBase(c.File, s, id, start)
	data.Plan = &res.Plan
	data.Suggestions = res.Plan.Suggestions
	a.report(data)

	if a.json {
		return a.emitJSON(res)
	}
	cli.PrintSection(a.out, filepath.Base(c.File))
	cli.PrintKeyValue(a.out, "measured", fmt.Sprintf("%.1f LUFS", res.Plan.Measured.Integrated))
	cli.PrintKeyValue(a.out, "target", fmt.Sprintf("%.1f LUFS", res.Plan.TargetLUFS))
	cli.PrintKeyValue(a.out, "gain", fmt.Sprintf("%+.2f dB", res.Plan.Gain))
	cli.PrintKeyValue(a.out, "filter", res.Plan.FilterSpec)
	if res.OutputPath != "" {
		cli.PrintKeyValue(a.out, "rendered", res.OutputPath)
	}
	printSuggestions(a, res.Plan.Suggestions)
	return nil
}

// SettingsCmd shows the settings earlier commands stored for a track and
// can render the stored mix and master chains.
type SettingsCmd struct {
	File   string `arg:"" optional:"" type:"existingfile" help:"Track to look up (or use --track)"`
	Render bool   `help:"Render the stored mix and master chains to a new file"`
}

type storedSettings struct {
	TrackID        string                       `json:"track_id"`
	Mix            *processor.MixSettings       `json:"mix,omitempty"`
	MixFrom        *store.Provenance            `json:"mix_provenance,omitempty"`
	Master         *processor.MasterSettings    `json:"master,omitempty"`
	MasterFrom     *store.Provenance            `json:"master_provenance,omitempty"`
	Normalisation  *processor.NormalisationPlan `json:"normalisation,omitempty"`
	NormalisedFrom *store.Provenance            `json:"normalisation_provenance,omitempty"`
	RenderedPath   string                       `json:"rendered_path,omitempty"`
}

func (c *SettingsCmd) Run(ctx context.Context, a *App) error {
	if a.store == nil {
		return fault.Unavailable("settings store", nil)
	}
	if c.File == "" && a.track == "" {
		return fault.Input("settings needs a file or --track")
	}
	if c.Render && c.File == "" {
		return fault.Input("--render needs a file")
	}

	id := a.track
	if c.File != "" {
		s, err := a.load(ctx, c.File)
		if err != nil {
			return err
		}
		id = a.trackID(ctx, c.File, s)
	}

	found, err := loadStored(ctx, a.store, id)
	if err != nil {
		return err
	}

	if c.Render {
		mix := processor.DefaultMixSettings()
		if found.Mix != nil {
			mix = *found.Mix
		}
		master := processor.DefaultMasterSettings()
		if found.Master != nil {
			master = *found.Master
		}
		found.RenderedPath, err = a.engine.RenderSettings(ctx, id, c.File, mix, master)
		if err != nil {
			return err
		}
	}

	if a.json {
		return a.emitJSON(found)
	}
	cli.PrintSection(a.out, "Stored settings for "+id)
	if found.Mix != nil {
		cli.PrintKeyValue(a.out, "mix", provenanceLine(found.MixFrom))
		cli.PrintKeyValue(a.out, "mix chain", processor.BuildFilterSpec(processor.BuildMixChain(*found.Mix)))
	}
	if found.Master != nil {
		cli.PrintKeyValue(a.out, "master", provenanceLine(found.MasterFrom))
		cli.PrintKeyValue(a.out, "master chain", processor.BuildFilterSpec(processor.BuildMasterChain(*found.Master)))
	}
	if p := found.Normalisation; p != nil {
		cli.PrintKeyValue(a.out, "normalisation", provenanceLine(found.NormalisedFrom))
		cli.PrintKeyValue(a.out, "gain", fmt.Sprintf("%+.2f dB to %.1f LUFS", p.Gain, p.TargetLUFS))
		cli.PrintKeyValue(a.out, "filter", p.FilterSpec)
	}
	if found.RenderedPath != "" {
		cli.PrintKeyValue(a.out, "rendered", found.RenderedPath)
	}
	return nil
}

// loadStored collects every settings kind saved for id. It fails with
// store.ErrNotFound only when nothing at all is stored.
func loadStored(ctx context.Context, st *store.Store, id string) (storedSettings, error) {
	out := storedSettings{TrackID: id}

	mix, mixProv, err := st.LoadMix(ctx, id)
	switch {
	case err == nil:
		out.Mix, out.MixFrom = &mix, &mixProv
	case !errors.Is(err, store.ErrNotFound):
		return out, err
	}

	master, masterProv, err := st.LoadMaster(ctx, id)
	switch {
	case err == nil:
		out.Master, out.MasterFrom = &master, &masterProv
	case !errors.Is(err, store.ErrNotFound):
		return out, err
	}

	plan, planProv, err := st.LoadNormalisation(ctx, id)
	switch {
	case err == nil:
		out.Normalisation, out.NormalisedFrom = &plan, &planProv
	case !errors.Is(err, store.ErrNotFound):
		return out, err
	}

	if out.Mix == nil && out.Master == nil && out.Normalisation == nil {
		return out, fmt.Errorf("track %q: %w", id, store.ErrNotFound)
	}
	return out, nil
}

func provenanceLine(p *store.Provenance) string {
	line := fmt.Sprintf("from %s, %s", p.Operation, p.SavedAt.Local().Format(time.DateTime))
	if p.Genre != "" {
		line += fmt.Sprintf(" (%s at %.0f%%)", p.Genre, p.Intensity*100)
	}
	return line
}

// GenresCmd lists the preset catalog.
type GenresCmd struct{}

func (c *GenresCmd) Run(a *App) error {
	genres := a.engine.Catalog().Genres()
	if a.json {
		return a.emitJSON(genres)
	}
	t := logging.NewMetricTable("LUFS", "Energy", "Warmth", "Bright", "Punch", "Width", "Dynamics")
	for _, g := range genres {
		ch := g.Characteristics
		t.AddMetricRow(fmt.Sprintf("%-11s %s", g.ID, g.Name),
			[]float64{g.TargetLUFS, ch.Energy, ch.Warmth, ch.Brightness, ch.Punch, ch.Width, ch.Dynamics}, 1, "", "")
	}
	fmt.Fprint(a.out, t.String())
	return nil
}

// WatchCmd profiles every new file in a directory, optionally applying a
// genre preset, and saves a report beside it.
type WatchCmd struct {
	Dir       string  `arg:"" type:"existingdir" help:"Directory to watch"`
	Genre     string  `short:"g" help:"Genre preset to apply to each file (default from config)"`
	Intensity float64 `short:"i" default:"-1" help:"Preset intensity 0-100 (default from config)"`
}

func (c *WatchCmd) Run(ctx context.Context, a *App) error {
	genre := c.Genre
	if genre == "" {
		genre = a.cfg.Watch.Genre
	}
	intensity := c.Intensity
	if intensity < 0 {
		intensity = a.cfg.Watch.Intensity
	}

	w := watch.New(c.Dir, a.cfg.Watch.Debounce, a.logger)
	w.SkipSuffixes = append(w.SkipSuffixes, ffmpeg.RenderSuffix)
	for _, st := range processor.AllStems {
		w.SkipSuffixes = append(w.SkipSuffixes, st.String())
	}

	// Watched files always get a report.
	a.logs = true
	return w.Run(ctx, func(ctx context.Context, path string) error {
		start := time.Now()
		s, err := a.load(ctx, path)
		if err != nil {
			return err
		}
		id := a.trackID(ctx, path, s)

		prof, err := a.engine.ProfileTrack(ctx, id, s, nil)
		if err != nil {
			return err
		}
		data := reportBase(path, s, id, start)
		data.Profile = &prof.Profile
		data.Suggestions = prof.Suggestions

		if genre != "" {
			res, err := a.engine.ApplyGenrePreset(ctx, id, genre, intensity, s)
			if err != nil {
				return err
			}
			data.Genre = res.Genre.String()
			data.Intensity = res.Intensity * 100
			data.Mix = &res.Mix
			data.Master = &res.Master
			data.Suggestions = append(data.Suggestions, res.Suggestions...)
		}

		a.report(data)
		a.logger.WithFields(logrus.Fields{
			"file":        path,
			"track":       id,
			"integrated":  prof.Profile.Loudness.Integrated,
			"suggestions": len(data.Suggestions),
		}).Info("file analysed")
		return nil
	})
}

func printSuggestions(a *App, s []processor.Suggestion) {
	if len(s) == 0 {
		return
	}
	fmt.Fprintln(a.out)
	cli.PrintSection(a.out, "Suggestions")
	logging.FormatSuggestions(a.out, s, logging.MaxReportSuggestions)
}
