package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/processor"
	"github.com/sirupsen/logrus"
)

// RenderSuffix names rendered files: song.flac becomes song-rendered.wav.
const RenderSuffix = "rendered"

// Render applies chain to the file at inputPath and writes a 24-bit WAV
// beside it. An empty chain produces a plain PCM copy.
func (c *Client) Render(ctx context.Context, inputPath string, chain []processor.FilterDescriptor) (string, error) {
	return c.RenderTo(ctx, inputPath, processor.OutputPath(inputPath, RenderSuffix), chain)
}

// RenderTo is Render with an explicit output path.
func (c *Client) RenderTo(ctx context.Context, inputPath, outputPath string, chain []processor.FilterDescriptor) (string, error) {
	if inputPath == "" {
		return "", fault.Input("render needs a source file")
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", fault.Input("render source: %v", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	args := []string{"-hide_banner", "-nostats", "-nostdin", "-y", "-i", inputPath}
	if spec := processor.BuildFilterSpec(chain); spec != "" {
		args = append(args, "-af", spec)
	}
	args = append(args, "-c:a", "pcm_s24le", outputPath)

	if _, _, err := c.Runner.Run(ctx, args...); err != nil {
		return "", fmt.Errorf("render %s: %w", filepath.Base(inputPath), err)
	}

	c.Logger.WithFields(logrus.Fields{
		"input":   inputPath,
		"output":  outputPath,
		"filters": len(chain),
	}).Info("rendered")
	return outputPath, nil
}

// containerExt maps MIME types to the extension ffmpeg probes best with.
var containerExt = map[string]string{
	"audio/flac": ".flac",
	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"audio/aac":  ".aac",
	"audio/ogg":  ".ogg",
	"audio/opus": ".opus",
	"audio/aiff": ".aiff",
	"audio/wav":  ".wav",
}

// TranscodeToWAV converts an encoded container into 24-bit PCM WAV bytes.
// Scratch files are used on both sides so the WAV header carries real sizes.
func (c *Client) TranscodeToWAV(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	dir, err := os.MkdirTemp(c.TempDir, "mixdesk-")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext, ok := containerExt[strings.ToLower(mimeType)]
	if !ok {
		ext = ".bin"
	}
	in := filepath.Join(dir, "input"+ext)
	out := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("scratch input: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, _, err := c.Runner.Run(ctx,
		"-hide_banner", "-nostats", "-nostdin", "-y",
		"-i", in,
		"-vn", "-c:a", "pcm_s24le",
		out); err != nil {
		return nil, fmt.Errorf("transcode %s: %w", mimeType, err)
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("transcoded output: %w", err)
	}
	return wav, nil
}
