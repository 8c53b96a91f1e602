package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/mixdesk/internal/processor"
)

// ============================================================================
// Interpretation
// ============================================================================
// Rough descriptions of where a mixed music track sits. Thresholds follow
// common mastering guidance rather than any single standard.

// interpretCentroid describes brightness from the spectral centre of gravity.
// Full mixes typically sit between 1 and 3 kHz.
func interpretCentroid(hz float64) string {
	switch {
	case hz <= 0:
		return ""
	case hz < 800:
		return "dark, bass-heavy"
	case hz < 1500:
		return "warm"
	case hz < 3000:
		return "balanced"
	case hz < 5000:
		return "bright"
	default:
		return "very bright, potentially harsh"
	}
}

// interpretRolloff describes how far the top end extends.
func interpretRolloff(hz float64) string {
	switch {
	case hz <= 0:
		return ""
	case hz < 4000:
		return "dull, little air"
	case hz < 8000:
		return "moderate top end"
	case hz < 14000:
		return "open, airy"
	default:
		return "extended, check for hiss"
	}
}

// interpretWidth reads the side/mid measure where 1.0 is a typical mix.
func interpretWidth(width float64) string {
	switch {
	case width <= 0:
		return "mono"
	case width < 0.5:
		return "narrow"
	case width < 1.2:
		return "natural stereo"
	case width < 1.7:
		return "wide"
	default:
		return "very wide, check mono compatibility"
	}
}

// interpretLRA describes EBU R128 loudness range.
func interpretLRA(lu float64) string {
	switch {
	case lu < 4:
		return "heavily compressed"
	case lu < 8:
		return "controlled"
	case lu < 15:
		return "dynamic"
	default:
		return "very dynamic"
	}
}

// interpretCrest describes the peak-to-RMS ratio of the whole track.
func interpretCrest(db float64) string {
	switch {
	case db < 6:
		return "brickwalled"
	case db < 10:
		return "dense, modern master"
	case db < 14:
		return "punchy"
	default:
		return "open dynamics"
	}
}

// interpretTruePeak flags inter-sample overs and thin headroom.
func interpretTruePeak(dbtp float64) string {
	switch {
	case dbtp > 0:
		return "clipping"
	case dbtp > -1:
		return "little headroom"
	default:
		return "safe"
	}
}

// ============================================================================
// Report
// ============================================================================

// writeSection writes a section header with a dashed underline.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// ReportData is everything a report can show. Nil sections are omitted.
type ReportData struct {
	InputPath  string
	TrackID    string
	SampleRate int
	Channels   int
	Duration   float64 // seconds
	StartTime  time.Time
	EndTime    time.Time

	Profile     *processor.TrackProfile
	Reference   *processor.TrackProfile
	Stems       []processor.StemExtractionResult
	Genre       string
	Intensity   float64 // percent
	Mix         *processor.MixSettings
	Master      *processor.MasterSettings
	Plan        *processor.NormalisationPlan
	Suggestions []processor.Suggestion
}

// ReportPath is the report file saved beside inputPath.
// Example: /music/song.flac → /music/song-mixdesk.log
func ReportPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "-mixdesk.log"
}

// GenerateReport writes the report beside the input file and returns its path.
func GenerateReport(data ReportData) (string, error) {
	path := ReportPath(data.InputPath)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	if err := WriteReport(f, data); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// WriteReport writes the plain-text report to w.
func WriteReport(w io.Writer, data ReportData) error {
	ew := &errWriter{w: w}

	writeReportHeader(ew, data)
	// Single-purpose commands fill only part of the profile.
	if data.Profile != nil && data.Profile.Loudness.Source != "" {
		writeLoudnessTable(ew, data.Profile, data.Reference)
	}
	if data.Profile != nil && data.Profile.Spectrum.FrameCount > 0 {
		writeSpectrumTable(ew, data.Profile, data.Reference)
	}
	if len(data.Stems) > 0 {
		writeStems(ew, data.Stems)
	}
	if data.Mix != nil || data.Master != nil {
		writeSettings(ew, data)
	}
	if data.Plan != nil {
		writeNormalisation(ew, data.Plan)
	}
	if len(data.Suggestions) > 0 {
		writeSection(ew, "Suggestions")
		FormatSuggestions(ew, data.Suggestions, MaxReportSuggestions)
	}
	return ew.err
}

// errWriter keeps the first write error so sections need not check each line.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = fmt.Errorf("failed to write report: %w", err)
	}
	return n, nil
}

func writeReportHeader(w io.Writer, data ReportData) {
	fmt.Fprintln(w, "mixdesk analysis report")
	fmt.Fprintln(w, strings.Repeat("=", 23))
	fmt.Fprintf(w, "File:       %s\n", data.InputPath)
	if data.TrackID != "" {
		fmt.Fprintf(w, "Track:      %s\n", data.TrackID)
	}
	if data.SampleRate > 0 {
		fmt.Fprintf(w, "Format:     %d Hz, %s, %s\n", data.SampleRate, channelName(data.Channels), formatDurationHMS(data.Duration))
	}
	if !data.EndTime.IsZero() {
		fmt.Fprintf(w, "Generated:  %s\n", data.EndTime.Format(time.RFC3339))
		if !data.StartTime.IsZero() {
			fmt.Fprintf(w, "Elapsed:    %s\n", formatDuration(data.EndTime.Sub(data.StartTime)))
		}
	}
}

// columns returns the header set and the profiles to tabulate.
func columns(track, reference *processor.TrackProfile) ([]string, []*processor.TrackProfile) {
	if reference == nil {
		return []string{"Track"}, []*processor.TrackProfile{track}
	}
	return []string{"Track", "Reference"}, []*processor.TrackProfile{track, reference}
}

func writeLoudnessTable(w io.Writer, track, reference *processor.TrackProfile) {
	headers, profiles := columns(track, reference)
	t := NewMetricTable(headers...)

	row := func(label, unit, interp string, format func(float64, int) string, pick func(processor.LoudnessMetrics) float64) {
		values := make([]string, len(profiles))
		for i, p := range profiles {
			values[i] = format(pick(p.Loudness), 1)
		}
		t.AddRow(label, values, unit, interp)
	}

	l := track.Loudness
	row("Integrated", "LUFS", "", formatMetricLUFS, func(m processor.LoudnessMetrics) float64 { return m.Integrated })
	row("Short-term (max)", "LUFS", "", formatMetricLUFS, func(m processor.LoudnessMetrics) float64 { return m.ShortTerm })
	row("Momentary (max)", "LUFS", "", formatMetricLUFS, func(m processor.LoudnessMetrics) float64 { return m.Momentary })
	row("True Peak", "dBTP", interpretTruePeak(l.TruePeak), formatMetricDB, func(m processor.LoudnessMetrics) float64 { return m.TruePeak })
	row("Loudness Range", "LU", interpretLRA(l.LoudnessRange), formatMetric, func(m processor.LoudnessMetrics) float64 { return m.LoudnessRange })
	row("Crest Factor", "dB", interpretCrest(l.DynamicRange), formatMetric, func(m processor.LoudnessMetrics) float64 { return m.DynamicRange })
	row("Gate Threshold", "LUFS", "", formatMetricLUFS, func(m processor.LoudnessMetrics) float64 { return m.Threshold })

	writeSection(w, "Loudness")
	fmt.Fprint(w, t.String())
	fmt.Fprintf(w, "Measured by: %s\n", meterName(l))
}

func meterName(l processor.LoudnessMetrics) string {
	if l.Degraded {
		return l.Source + " (external analyser unavailable)"
	}
	return l.Source
}

func writeSpectrumTable(w io.Writer, track, reference *processor.TrackProfile) {
	headers, profiles := columns(track, reference)
	t := NewMetricTable(headers...)

	shares := make([][processor.NumBands]float64, len(profiles))
	for i, p := range profiles {
		shares[i] = p.Spectrum.BandShares()
	}
	for b := processor.Band(0); b < processor.NumBands; b++ {
		values := make([]string, len(profiles))
		for i := range profiles {
			values[i] = formatPercent(shares[i][b])
		}
		t.AddRow("Band "+b.String(), values, "%", "")
	}

	pick := func(f func(*processor.TrackProfile) float64) []float64 {
		out := make([]float64, len(profiles))
		for i, p := range profiles {
			out[i] = f(p)
		}
		return out
	}
	t.AddMetricRow("Centroid", pick(func(p *processor.TrackProfile) float64 { return p.Spectrum.CentroidHz }), 0, "Hz", interpretCentroid(track.Spectrum.CentroidHz))
	t.AddMetricRow("Rolloff (85%)", pick(func(p *processor.TrackProfile) float64 { return p.Spectrum.RolloffHz }), 0, "Hz", interpretRolloff(track.Spectrum.RolloffHz))
	t.AddMetricRow("Spectral Flux", pick(func(p *processor.TrackProfile) float64 { return p.Spectrum.Flux }), 2, "", "")
	t.AddMetricRow("Stereo Width", pick(func(p *processor.TrackProfile) float64 { return p.StereoWidth }), 2, "", interpretWidth(track.StereoWidth))

	writeSection(w, "Spectrum")
	fmt.Fprint(w, t.String())
	fmt.Fprintf(w, "Frames analysed: %d\n", track.Spectrum.FrameCount)
}

func writeStems(w io.Writer, stems []processor.StemExtractionResult) {
	writeSection(w, "Stems")
	t := NewMetricTable("Confidence", "Centroid")
	for _, st := range stems {
		t.AddRow(st.Stem.String(), []string{
			formatPercent(st.Confidence),
			formatMetric(st.Profile.CentroidHz, 0),
		}, "", st.OutputPath)
	}
	fmt.Fprint(w, t.String())
}

func writeSettings(w io.Writer, data ReportData) {
	title := "Settings"
	if data.Genre != "" {
		title = fmt.Sprintf("Settings: %s at %.0f%%", data.Genre, data.Intensity)
	}
	writeSection(w, title)

	if m := data.Mix; m != nil {
		fmt.Fprintf(w, "EQ:          low %s, low-mid %s, mid %s, high-mid %s, high %s dB; cuts %s-%s Hz\n",
			formatMetricSigned(m.EQ.LowGain, 1), formatMetricSigned(m.EQ.LowMidGain, 1),
			formatMetricSigned(m.EQ.MidGain, 1), formatMetricSigned(m.EQ.HighMidGain, 1),
			formatMetricSigned(m.EQ.HighGain, 1), formatMetric(m.EQ.LowCut, 0), formatMetric(m.EQ.HighCut, 0))
		fmt.Fprintf(w, "Compressor:  %s dB threshold, %s:1, %s/%s ms, makeup %s dB\n",
			formatMetric(m.Compression.Threshold, 1), formatMetric(m.Compression.Ratio, 1),
			formatMetric(m.Compression.Attack, 0), formatMetric(m.Compression.Release, 0),
			formatMetricSigned(m.Compression.Makeup, 1))
		fmt.Fprintf(w, "Space:       reverb %s%%, delay %s%%, chorus %s%%\n",
			formatPercent(m.Reverb.Wet), formatPercent(m.Delay.Wet), formatPercent(m.Chorus.Wet))
		fmt.Fprintf(w, "Colour:      drive %s, warmth %s, width %s\n",
			formatMetric(m.Saturation.Drive, 2), formatMetric(m.Saturation.Warmth, 2), formatMetric(m.Stereo.Width, 2))
		writeChain(w, "Mix chain", processor.BuildMixChain(*m))
	}

	if m := data.Master; m != nil {
		fmt.Fprintf(w, "Limiter:     ceiling %s dBTP, release %s ms\n",
			formatMetric(m.Limiter.Ceiling, 1), formatMetric(m.Limiter.Release, 0))
		fmt.Fprintf(w, "Maximizer:   %s%% %s\n", formatMetric(m.Maximizer.Amount, 0), m.Maximizer.Character)
		writeChain(w, "Master chain", processor.BuildMasterChain(*m))
	}
}

func writeChain(w io.Writer, label string, chain []processor.FilterDescriptor) {
	fmt.Fprintf(w, "%s:\n", label)
	if len(chain) == 0 {
		fmt.Fprintln(w, "    (none)")
		return
	}
	for _, d := range chain {
		fmt.Fprintf(w, "    %s\n", d.String())
	}
}

func writeNormalisation(w io.Writer, plan *processor.NormalisationPlan) {
	writeSection(w, "Normalisation")
	fmt.Fprintf(w, "Target:      %s LUFS\n", formatMetric(plan.TargetLUFS, 1))
	fmt.Fprintf(w, "Measured:    %s LUFS (%s)\n", formatMetricLUFS(plan.Measured.Integrated, 1), meterName(plan.Measured))
	fmt.Fprintf(w, "Gain:        %s dB\n", formatMetricSigned(plan.Gain, 2))
	mode := "linear"
	if !plan.LinearPossible {
		mode = fmt.Sprintf("dynamic (linear tops out at %s LUFS)", formatMetric(plan.EffectiveTarget, 1))
	}
	fmt.Fprintf(w, "Mode:        %s\n", mode)
	if plan.LimiterNeeded {
		fmt.Fprintf(w, "Pre-limiter: %s dBTP\n", formatMetric(plan.LimiterCeiling, 1))
	}
	fmt.Fprintf(w, "Filter:      %s\n", plan.FilterSpec)
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}

// formatDuration formats elapsed processing time.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// formatDurationHMS formats track length as h:mm:ss or m:ss.
func formatDurationHMS(seconds float64) string {
	total := int(seconds + 0.5)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
