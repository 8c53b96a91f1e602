package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/processor"
	"github.com/sirupsen/logrus"
)

// Measurement-pass targets. loudnorm reports input statistics regardless of
// the target, but it insists on valid ones.
const (
	probeTargetI   = -16.0
	probeTargetTP  = -1.5
	probeTargetLRA = 11.0
)

// LoudnormStats is the JSON block loudnorm prints with print_format=json.
// Every value arrives as a string.
type LoudnormStats struct {
	InputI            string `json:"input_i"`
	InputTP           string `json:"input_tp"`
	InputLRA          string `json:"input_lra"`
	InputThresh       string `json:"input_thresh"`
	OutputI           string `json:"output_i"`
	OutputTP          string `json:"output_tp"`
	OutputLRA         string `json:"output_lra"`
	OutputThresh      string `json:"output_thresh"`
	NormalizationType string `json:"normalization_type"`
	TargetOffset      string `json:"target_offset"`
}

// Client is the ffmpeg-backed renderer, loudness analyser and transcoder.
type Client struct {
	Runner  *Runner
	Timeout time.Duration // per call; 0 means the caller's context only
	TempDir string        // scratch files; "" means os.TempDir
	Logger  logrus.FieldLogger
}

// NewClient returns a Client around r.
func NewClient(r *Runner, timeout time.Duration, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{Runner: r, Timeout: timeout, Logger: logger}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// MeasureLoudness runs loudnorm's measurement pass over the file at
// inputPath and returns its input statistics.
func (c *Client) MeasureLoudness(ctx context.Context, inputPath string) (processor.ExternalLoudness, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f:print_format=json",
		probeTargetI, probeTargetTP, probeTargetLRA)

	_, stderr, err := c.Runner.Run(ctx,
		"-hide_banner", "-nostats", "-nostdin",
		"-i", inputPath,
		"-af", filter,
		"-f", "null", "-")
	if err != nil {
		return processor.ExternalLoudness{}, err
	}

	stats, err := ParseLoudnormOutput(stderr)
	if err != nil {
		c.Logger.WithField("input", inputPath).WithError(err).Warn("loudnorm output unreadable")
		return processor.ExternalLoudness{}, err
	}
	return stats.External()
}

// MeasureSample measures a decoded buffer. Buffers without a source file
// are written to a scratch WAV first.
func (c *Client) MeasureSample(ctx context.Context, s *audio.Sample) (processor.ExternalLoudness, error) {
	if err := s.Validate(); err != nil {
		return processor.ExternalLoudness{}, err
	}
	if s.SourcePath != "" {
		return c.MeasureLoudness(ctx, s.SourcePath)
	}

	path, cleanup, err := c.scratchWAV(s)
	if err != nil {
		return processor.ExternalLoudness{}, err
	}
	defer cleanup()
	return c.MeasureLoudness(ctx, path)
}

func (c *Client) scratchWAV(s *audio.Sample) (string, func(), error) {
	dir, err := os.MkdirTemp(c.TempDir, "mixdesk-")
	if err != nil {
		return "", nil, fmt.Errorf("scratch dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, "measure.wav")
	if err := audio.WriteWAVFile(path, s); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// ParseLoudnormOutput extracts the loudnorm JSON block from ffmpeg's stderr.
// loudnorm prints a single flat object last, after the filter's log prefix.
func ParseLoudnormOutput(output []byte) (LoudnormStats, error) {
	text := string(output)
	start := strings.LastIndex(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return LoudnormStats{}, fault.Parse("loudnorm output", fmt.Errorf("no JSON found (captured %d bytes)", len(output)))
	}

	var stats LoudnormStats
	if err := json.Unmarshal([]byte(text[start:end+1]), &stats); err != nil {
		return LoudnormStats{}, fault.Parse("loudnorm output", err)
	}
	if stats.InputI == "" {
		return LoudnormStats{}, fault.Parse("loudnorm output", fmt.Errorf("input_i missing"))
	}
	return stats, nil
}

// External converts the measured input statistics. loudnorm reports "-inf"
// for digital silence, which parses to -Inf and is sanitised by the meter.
func (s LoudnormStats) External() (processor.ExternalLoudness, error) {
	var (
		out  processor.ExternalLoudness
		errs []string
	)
	parse := func(name, v string, dst *float64) {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, name)
			return
		}
		*dst = f
	}
	parse("input_i", s.InputI, &out.Integrated)
	parse("input_tp", s.InputTP, &out.TruePeak)
	parse("input_lra", s.InputLRA, &out.LoudnessRange)
	parse("input_thresh", s.InputThresh, &out.Threshold)

	if len(errs) > 0 {
		return processor.ExternalLoudness{}, fault.Parse("loudnorm output", fmt.Errorf("non-numeric %s", strings.Join(errs, ", ")))
	}
	return out, nil
}
