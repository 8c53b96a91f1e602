package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixdesk.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
	if cfg.Engine.DefaultGenre != "pop" || cfg.Engine.TargetLUFS != -14 {
		t.Errorf("defaults = %+v", cfg.Engine)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[ffmpeg]
path = "/opt/ffmpeg/bin/ffmpeg"
loudness_timeout = "45s"

[engine]
workers = 3
mains_hz = 60
default_genre = "hip-hop"

[inference]
sink = "mongo"
mongo_uri = "mongodb://localhost:27017"
timeout = "1m30s"

[watch]
debounce = "500ms"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"ffmpeg path", cfg.FFmpeg.Path, "/opt/ffmpeg/bin/ffmpeg"},
		{"loudness timeout", cfg.FFmpeg.LoudnessTimeout, 45 * time.Second},
		{"render timeout keeps default", cfg.FFmpeg.RenderTimeout, 10 * time.Minute},
		{"workers", cfg.Engine.Workers, 3},
		{"mains", cfg.Engine.MainsHz, 60.0},
		{"genre", cfg.Engine.DefaultGenre, "hip-hop"},
		{"intensity keeps default", cfg.Engine.DefaultIntensity, 70.0},
		{"sink", cfg.Inference.Sink, SinkMongo},
		{"inference timeout", cfg.Inference.Timeout, 90 * time.Second},
		{"buffer keeps default", cfg.Inference.Buffer, 256},
		{"debounce", cfg.Watch.Debounce, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"unknown key", "[engine]\nworkerz = 2\n", "unknown keys engine.workerz"},
		{"bad duration", "[ffmpeg]\nrender_timeout = \"soon\"\n", "render_timeout"},
		{"unknown sink", "[inference]\nsink = \"kafka\"\n", "unknown inference sink"},
		{"mongo without uri", "[inference]\nsink = \"mongo\"\n", "needs mongo_uri"},
		{"unknown genre", "[engine]\ndefault_genre = \"polka\"\n", "default_genre"},
		{"intensity out of range", "[watch]\nintensity = 120.0\n", "watch intensity"},
		{"positive target", "[engine]\ntarget_lufs = 3.0\n", "target_lufs"},
		{"malformed", "[engine\n", "mixdesk.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load(missing) succeeded")
	}
}
