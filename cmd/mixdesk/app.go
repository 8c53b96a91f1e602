package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/config"
	"github.com/linuxmatters/mixdesk/internal/engine"
	"github.com/linuxmatters/mixdesk/internal/ffmpeg"
	"github.com/linuxmatters/mixdesk/internal/inference"
	"github.com/linuxmatters/mixdesk/internal/logging"
	"github.com/linuxmatters/mixdesk/internal/mains"
	"github.com/linuxmatters/mixdesk/internal/presets"
	"github.com/linuxmatters/mixdesk/internal/store"
	"github.com/sirupsen/logrus"
)

// App holds the wired collaborators shared by every command.
type App struct {
	cfg    config.Config
	logger *logrus.Logger
	engine *engine.Engine
	codec  *audio.Codec
	store  *store.Store // nil when disabled or unavailable

	out   io.Writer
	json  bool
	logs  bool
	plain bool
	track string

	closers []func()
}

// newApp loads configuration and wires the engine. Collaborators that
// cannot start are logged and left out; the engine degrades around them.
func newApp(ctx context.Context, args *CLI, command string) (*App, error) {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return nil, err
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}
	if args.LogFile != "" {
		cfg.Log.File = args.LogFile
	}

	logger, logCloser, err := logging.Setup(cfg.Log.Level, cfg.Log.File, os.Stderr)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		json:   args.JSON,
		logs:   args.Logs,
		plain:  args.Plain,
		track:  args.Track,
	}
	a.closers = append(a.closers, func() { logCloser.Close() })

	opts := engine.Options{
		Catalog:         presets.NewCatalog(),
		Workers:         cfg.Engine.Workers,
		LoudnessTimeout: cfg.FFmpeg.LoudnessTimeout,
		RenderTimeout:   cfg.FFmpeg.RenderTimeout,
		Logger:          logger,
	}

	runner := ffmpeg.NewRunner(cfg.FFmpeg.Path, logger)
	if runner.Available() {
		client := ffmpeg.NewClient(runner, cfg.FFmpeg.LoudnessTimeout, logger)
		client.TempDir = cfg.FFmpeg.TempDir
		a.codec = audio.NewCodec(client)
		opts.Renderer = client
		opts.Loudness = client
	} else {
		logger.WithField("path", runner.Path).Warn("ffmpeg not found, only WAV input is supported and loudness uses the internal meter")
		a.codec = audio.NewCodec(nil)
	}
	opts.Codec = a.codec

	detected := mains.Resolve(cfg.Engine.MainsHz)
	opts.MainsHz = detected.Hz
	logger.WithFields(logrus.Fields{
		"hz":       detected.Hz,
		"source":   detected.Source,
		"timezone": detected.Timezone,
	}).Debug("mains frequency")

	if !strings.HasPrefix(command, "genres") {
		if !cfg.Store.Disabled {
			st, err := store.Open(cfg.Store.Path, logger)
			if err != nil {
				logger.WithError(err).Warn("settings store unavailable, results will not be persisted")
			} else {
				a.store = st
				opts.Store = st
				a.closers = append(a.closers, func() {
					if err := st.Close(); err != nil {
						logger.WithError(err).Warn("failed to close settings store")
					}
				})
			}
		}
		opts.Sink = a.inferenceSink(ctx)
	}

	a.engine, err = engine.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// inferenceSink builds the configured audit sink. A Mongo sink that cannot
// connect falls back to the log.
func (a *App) inferenceSink(ctx context.Context) engine.InferenceSink {
	cfg := a.cfg.Inference
	if cfg.Sink == config.SinkNone {
		return inference.Discard{}
	}

	var w inference.Writer = inference.LogWriter{Logger: a.logger}
	if cfg.Sink == config.SinkMongo {
		cctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		mw, err := inference.NewMongoWriter(cctx, cfg.MongoURI, cfg.Database, cfg.Collection)
		cancel()
		if err != nil {
			a.logger.WithError(err).Warn("inference store unavailable, logging records instead")
		} else {
			w = mw
			a.closers = append(a.closers, func() {
				cctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
				defer cancel()
				if err := mw.Close(cctx); err != nil {
					a.logger.WithError(err).Warn("failed to disconnect inference store")
				}
			})
		}
	}

	// Registered after the writer so the queue drains before disconnecting.
	sink := inference.NewAsyncSink(w, cfg.Buffer, cfg.Timeout, a.logger)
	a.closers = append(a.closers, func() {
		sink.Close()
		if n := sink.Dropped(); n > 0 {
			a.logger.WithField("dropped", n).Warn("inference records dropped")
		}
	})
	return sink
}

// Close releases collaborators in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// load decodes a file through the engine's codec.
func (a *App) load(ctx context.Context, path string) (*audio.Sample, error) {
	return a.codec.OpenAudioFile(ctx, path)
}

// trackID picks the id settings are stored under: the --track flag, then a
// previous id for the same audio, then the file name.
func (a *App) trackID(ctx context.Context, path string, s *audio.Sample) string {
	if a.track != "" {
		return a.track
	}
	if a.store != nil && s != nil {
		id, err := a.store.TrackForFingerprint(ctx, audio.Fingerprint(s))
		if err == nil {
			return id
		}
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.WithError(err).Debug("fingerprint lookup failed")
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// emitJSON writes v as indented JSON.
func (a *App) emitJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// report saves a report when --logs is set. Failures only warn.
func (a *App) report(data logging.ReportData) {
	if !a.logs {
		return
	}
	data.EndTime = time.Now()
	path, err := logging.GenerateReport(data)
	if err != nil {
		a.logger.WithError(err).Warn("failed to write report")
		return
	}
	a.logger.WithField("report", path).Info("report saved")
}

func reportBase(path string, s *audio.Sample, trackID string, start time.Time) logging.ReportData {
	return logging.ReportData{
		InputPath:  path,
		TrackID:    trackID,
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		Duration:   s.Duration(),
		StartTime:  start,
	}
}
