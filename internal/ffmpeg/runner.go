// Package ffmpeg drives the ffmpeg binary for the collaborators the engine
// cannot host in-process: filter-graph rendering, two-pass loudness
// measurement and container transcoding.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/sirupsen/logrus"
)

// DefaultBinary is looked up on PATH when no explicit path is configured.
const DefaultBinary = "ffmpeg"

// stderrTail bounds how much ffmpeg chatter is quoted in errors.
const stderrTail = 512

// Runner executes ffmpeg with a bounded lifetime.
type Runner struct {
	Path   string
	Logger logrus.FieldLogger
}

// NewRunner returns a Runner for the binary at path, or DefaultBinary.
func NewRunner(path string, logger logrus.FieldLogger) *Runner {
	if path == "" {
		path = DefaultBinary
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{Path: path, Logger: logger}
}

// Available reports whether the binary can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.Path)
	return err == nil
}

// Run executes ffmpeg and returns its stdout and stderr.
//
// A missing binary is fault.ErrUnavailable, an expired deadline is
// fault.ErrTimeout and cancellation returns the context's error. A non-zero
// exit is reported with the tail of stderr.
func (r *Runner) Run(ctx context.Context, args ...string) (stdout, stderr []byte, err error) {
	var outBuf, errBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	r.Logger.WithFields(logrus.Fields{
		"binary":  r.Path,
		"args":    strings.Join(args, " "),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("ffmpeg finished")

	if runErr == nil {
		return outBuf.Bytes(), errBuf.Bytes(), nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, errBuf.Bytes(), fault.Timeout("ffmpeg", ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, errBuf.Bytes(), ctx.Err()
	case errors.Is(runErr, exec.ErrNotFound), errors.Is(runErr, fs.ErrNotExist), errors.Is(runErr, fs.ErrPermission):
		return nil, nil, fault.Unavailable("ffmpeg", runErr)
	}
	return nil, errBuf.Bytes(), fmt.Errorf("ffmpeg: %w: %s", runErr, tail(errBuf.Bytes()))
}

// tail returns the last stderrTail bytes of b, trimmed.
func tail(b []byte) string {
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return strings.TrimSpace(string(b))
}
