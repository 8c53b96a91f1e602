// Package config loads mixdesk's optional TOML configuration file.
//
//	[ffmpeg]
//	path = "/usr/bin/ffmpeg"
//	loudness_timeout = "45s"
//
//	[engine]
//	workers = 4
//	mains_hz = 50
//
//	[inference]
//	sink = "mongo"
//	mongo_uri = "mongodb://localhost:27017"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/linuxmatters/mixdesk/internal/presets"
)

// Inference sink kinds
const (
	SinkNone  = "none"
	SinkLog   = "log"
	SinkMongo = "mongo"
)

// Config is the complete configuration. Zero values never reach the engine:
// Load starts from Default and overlays the file.
type Config struct {
	FFmpeg    FFmpeg    `toml:"ffmpeg"`
	Engine    Engine    `toml:"engine"`
	Store     Store     `toml:"store"`
	Inference Inference `toml:"inference"`
	Log       Log       `toml:"log"`
	Watch     Watch     `toml:"watch"`
}

type FFmpeg struct {
	Path            string        `toml:"path"` // "" means look up ffmpeg on PATH
	LoudnessTimeout time.Duration `toml:"loudness_timeout"`
	RenderTimeout   time.Duration `toml:"render_timeout"`
	TempDir         string        `toml:"temp_dir"`
}

type Engine struct {
	Workers          int     `toml:"workers"`  // 0 means one per CPU
	MainsHz          float64 `toml:"mains_hz"` // 0 means detect from the local timezone, -1 disables
	DefaultGenre     string  `toml:"default_genre"`
	DefaultIntensity float64 `toml:"default_intensity"` // percent
	TargetLUFS       float64 `toml:"target_lufs"`
}

type Store struct {
	Path     string `toml:"path"`
	Disabled bool   `toml:"disabled"`
}

type Inference struct {
	Sink       string        `toml:"sink"`
	MongoURI   string        `toml:"mongo_uri"`
	Database   string        `toml:"database"`
	Collection string        `toml:"collection"`
	Buffer     int           `toml:"buffer"`
	Timeout    time.Duration `toml:"timeout"`
}

type Log struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type Watch struct {
	Debounce  time.Duration `toml:"debounce"`
	Genre     string        `toml:"genre"`
	Intensity float64       `toml:"intensity"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FFmpeg: FFmpeg{
			LoudnessTimeout: 60 * time.Second,
			RenderTimeout:   10 * time.Minute,
		},
		Engine: Engine{
			DefaultGenre:     presets.DefaultGenre.String(),
			DefaultIntensity: 70,
			TargetLUFS:       -14,
		},
		Store: Store{
			Path: defaultStorePath(),
		},
		Inference: Inference{
			Sink:    SinkLog,
			Buffer:  256,
			Timeout: 5 * time.Second,
		},
		Log: Log{
			Level: "info",
		},
		Watch: Watch{
			Debounce:  2 * time.Second,
			Intensity: 70,
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mixdesk", "settings")
	}
	return filepath.Join(dir, "mixdesk", "settings")
}

// Load reads path over the defaults. An empty path returns Default.
// Unknown keys are an error so typos do not pass silently.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the engine cannot correct itself.
func (c Config) Validate() error {
	switch c.Inference.Sink {
	case SinkNone, SinkLog:
	case SinkMongo:
		if c.Inference.MongoURI == "" {
			return fmt.Errorf("inference sink %q needs mongo_uri", SinkMongo)
		}
	default:
		return fmt.Errorf("unknown inference sink %q", c.Inference.Sink)
	}

	if _, err := presets.ParseGenre(c.Engine.DefaultGenre); err != nil {
		return fmt.Errorf("default_genre: %w", err)
	}
	if c.Watch.Genre != "" {
		if _, err := presets.ParseGenre(c.Watch.Genre); err != nil {
			return fmt.Errorf("watch genre: %w", err)
		}
	}
	for name, pct := range map[string]float64{"default_intensity": c.Engine.DefaultIntensity, "watch intensity": c.Watch.Intensity} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%s %v outside 0-100", name, pct)
		}
	}
	if c.Engine.TargetLUFS > 0 || c.Engine.TargetLUFS < -70 {
		return fmt.Errorf("target_lufs %v outside -70 to 0", c.Engine.TargetLUFS)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("workers %d is negative", c.Engine.Workers)
	}
	if c.FFmpeg.LoudnessTimeout < 0 || c.FFmpeg.RenderTimeout < 0 || c.Inference.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
