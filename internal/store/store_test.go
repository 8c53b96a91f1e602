package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/processor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(nil)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	savedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mix := processor.DefaultMixSettings()
	mix.EQ.LowGain = 2
	mix.Compression.Ratio = 2.5
	master := processor.DefaultMasterSettings()
	master.Maximizer = processor.MaximizerSettings{Amount: 30, Character: processor.CharacterWarm}

	prov := Provenance{Operation: "applyGenrePreset", Genre: "hip_hop", Intensity: 0.5, Fingerprint: 0xbeef, SavedAt: savedAt}
	if err := s.SaveComputedSettings(ctx, "track-1", ComputedSettings{Mix: &mix, Master: &master}, prov); err != nil {
		t.Fatalf("SaveComputedSettings() error = %v", err)
	}

	gotMix, gotProv, err := s.LoadMix(ctx, "track-1")
	if err != nil {
		t.Fatalf("LoadMix() error = %v", err)
	}
	if gotMix != mix {
		t.Errorf("LoadMix() = %+v, want %+v", gotMix, mix)
	}
	if gotProv.Genre != "hip_hop" || gotProv.Intensity != 0.5 || !gotProv.SavedAt.Equal(savedAt) {
		t.Errorf("provenance = %+v", gotProv)
	}

	gotMaster, _, err := s.LoadMaster(ctx, "track-1")
	if err != nil {
		t.Fatalf("LoadMaster() error = %v", err)
	}
	if gotMaster != master {
		t.Errorf("LoadMaster() = %+v, want %+v", gotMaster, master)
	}

	if _, _, err := s.LoadNormalisation(ctx, "track-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadNormalisation() error = %v, want ErrNotFound", err)
	}

	track, err := s.TrackForFingerprint(ctx, 0xbeef)
	if err != nil || track != "track-1" {
		t.Errorf("TrackForFingerprint() = %q, %v", track, err)
	}
}

func TestSaveNormalisationPlan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	measured := processor.LoudnessMetrics{Integrated: -20, TruePeak: -4, LoudnessRange: 6, Threshold: -30, Source: processor.SourceInternal, Degraded: true}
	plan := processor.PlanNormalisation(measured, -14)
	if err := s.SaveComputedSettings(ctx, "track-2", ComputedSettings{Normalisation: &plan}, Provenance{Operation: "normalizeTo"}); err != nil {
		t.Fatalf("SaveComputedSettings() error = %v", err)
	}

	got, prov, err := s.LoadNormalisation(ctx, "track-2")
	if err != nil {
		t.Fatalf("LoadNormalisation() error = %v", err)
	}
	if got.Gain != plan.Gain || got.FilterSpec != plan.FilterSpec || !got.Measured.Degraded {
		t.Errorf("LoadNormalisation() = %+v", got)
	}
	if prov.SavedAt.IsZero() {
		t.Error("SavedAt was not stamped")
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, gain := range []float64{1, 3} {
		mix := processor.DefaultMixSettings()
		mix.EQ.HighGain = gain
		if err := s.SaveComputedSettings(ctx, "t", ComputedSettings{Mix: &mix}, Provenance{Operation: "matchToReference"}); err != nil {
			t.Fatal(err)
		}
	}
	got, _, err := s.LoadMix(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if got.EQ.HighGain != 3 {
		t.Errorf("HighGain = %v, want the latest save", got.EQ.HighGain)
	}
}

func TestSaveErrors(t *testing.T) {
	s := openTestStore(t)
	mix := processor.DefaultMixSettings()

	if err := s.SaveComputedSettings(context.Background(), "", ComputedSettings{Mix: &mix}, Provenance{}); !errors.Is(err, fault.ErrInput) {
		t.Errorf("empty track id error = %v, want ErrInput", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SaveComputedSettings(ctx, "t", ComputedSettings{Mix: &mix}, Provenance{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled save error = %v, want context.Canceled", err)
	}

	if _, _, err := s.LoadMix(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadMix(missing) error = %v, want ErrNotFound", err)
	}
}
