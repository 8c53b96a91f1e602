package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/mixdesk/internal/processor"
)

func testProfile(integrated, centroid float64) *processor.TrackProfile {
	return &processor.TrackProfile{
		Spectrum: processor.SpectralProfile{
			Bands:      [processor.NumBands]float64{4, 3, 2, 1, 0.5},
			CentroidHz: centroid,
			RolloffHz:  9500,
			Flux:       12.5,
			FrameCount: 140,
		},
		Loudness: processor.LoudnessMetrics{
			Integrated:    integrated,
			ShortTerm:     integrated + 3,
			Momentary:     integrated + 5,
			TruePeak:      -0.4,
			LoudnessRange: 5.5,
			DynamicRange:  9,
			Threshold:     integrated - 10,
			Source:        "internal",
			Degraded:      true,
		},
		StereoWidth: 0.9,
	}
}

func TestWriteReport(t *testing.T) {
	mix := processor.DefaultMixSettings()
	master := processor.DefaultMasterSettings()
	plan := processor.PlanNormalisation(testProfile(-18, 2000).Loudness, -14)

	data := ReportData{
		InputPath:  "/music/song.flac",
		TrackID:    "song",
		SampleRate: 48000,
		Channels:   2,
		Duration:   185.4,
		StartTime:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 3, 1, 12, 0, 2, 500_000_000, time.UTC),
		Profile:    testProfile(-18, 2000),
		Reference:  testProfile(-9, 3200),
		Stems: []processor.StemExtractionResult{
			{Stem: processor.StemBass, Confidence: 0.75, OutputPath: "/music/song-bass.wav"},
		},
		Genre:     "rock",
		Intensity: 50,
		Mix:       &mix,
		Master:    &master,
		Plan:      &plan,
		Suggestions: []processor.Suggestion{
			{Category: processor.CategoryLoudness, Suggestion: "Raise the level", Priority: processor.PriorityHigh, RuleID: "quiet", Confidence: 0.8},
			{Category: processor.CategoryEQ, Suggestion: "Cut some low end", Priority: processor.PriorityLow, RuleID: "boomy"},
		},
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, data); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"File:       /music/song.flac",
		"48000 Hz, stereo, 3:05",
		"Elapsed:    2.5s",
		"Loudness\n--------",
		"Reference",
		"little headroom",
		"internal (external analyser unavailable)",
		"Band low-mid",
		"balanced",
		"natural stereo",
		"bass",
		"/music/song-bass.wav",
		"Settings: rock at 50%",
		"Mix chain:",
		"Master chain:",
		"Normalisation",
		"Gain:        +4.00 dB",
		"1. [high/loudness] Raise the level",
		"2. [low/eq] Cut some low end",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteReportOmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, ReportData{InputPath: "a.wav"}); err != nil {
		t.Fatal(err)
	}
	for _, unwanted := range []string{"Loudness", "Spectrum", "Stems", "Settings", "Normalisation", "Suggestions"} {
		if strings.Contains(buf.String(), unwanted) {
			t.Errorf("empty report contains %q section", unwanted)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteReportPropagatesWriteError(t *testing.T) {
	err := WriteReport(failingWriter{}, ReportData{InputPath: "a.wav", Profile: testProfile(-14, 1000)})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("WriteReport() error = %v, want disk full", err)
	}
}

func TestGenerateReport(t *testing.T) {
	input := filepath.Join(t.TempDir(), "take.wav")
	path, err := GenerateReport(ReportData{InputPath: input, Profile: testProfile(-14, 1000)})
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if want := strings.TrimSuffix(input, ".wav") + "-mixdesk.log"; path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "Integrated") {
		t.Error("report file has no loudness table")
	}
}

func TestTopSuggestions(t *testing.T) {
	in := []processor.Suggestion{
		{RuleID: "a", Priority: processor.PriorityLow},
		{RuleID: "b", Priority: processor.PriorityCritical},
		{RuleID: "a", Priority: processor.PriorityHigh},
		{RuleID: "c", Priority: processor.PriorityMedium},
	}
	got := topSuggestions(in, 2)
	if len(got) != 2 || got[0].RuleID != "b" || got[1].RuleID != "a" || got[1].Priority != processor.PriorityHigh {
		t.Errorf("topSuggestions = %+v", got)
	}
	if in[0].RuleID != "a" || in[1].RuleID != "b" {
		t.Error("input reordered")
	}
}

func TestInterpretations(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"dark", interpretCentroid(500), "dark, bass-heavy"},
		{"bright", interpretCentroid(4000), "bright"},
		{"dull", interpretRolloff(3000), "dull, little air"},
		{"mono", interpretWidth(0), "mono"},
		{"wide", interpretWidth(1.5), "wide"},
		{"squashed", interpretLRA(2), "heavily compressed"},
		{"brickwall", interpretCrest(5), "brickwalled"},
		{"over", interpretTruePeak(0.2), "clipping"},
		{"safe", interpretTruePeak(-2), "safe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
