// Package engine exposes the analysis and mix/master decision operations.
//
// An Engine is built once with its collaborators and the preset catalog,
// then shared by every request. CPU-bound work runs on the engine's bounded
// pool; collaborator calls run under their own timeouts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/linuxmatters/mixdesk/internal/fault"
	"github.com/linuxmatters/mixdesk/internal/inference"
	"github.com/linuxmatters/mixdesk/internal/presets"
	"github.com/linuxmatters/mixdesk/internal/processor"
	"github.com/linuxmatters/mixdesk/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Codec decodes request buffers and encodes rendered ones.
type Codec interface {
	Decode(ctx context.Context, data []byte, mimeType string) (*audio.Sample, error)
	Encode(s *audio.Sample) ([]byte, error)
}

// Renderer applies a filter chain to a file and returns the output path.
type Renderer interface {
	Render(ctx context.Context, inputPath string, chain []processor.FilterDescriptor) (string, error)
}

// LoudnessAnalyzer is the external two-pass loudness measurement.
type LoudnessAnalyzer interface {
	MeasureLoudness(ctx context.Context, inputPath string) (processor.ExternalLoudness, error)
}

// SettingsStore persists computed settings.
type SettingsStore interface {
	SaveComputedSettings(ctx context.Context, trackID string, settings store.ComputedSettings, prov store.Provenance) error
}

// InferenceSink receives an audit record per operation. It must not block.
type InferenceSink interface {
	LogInference(rec inference.Record)
}

// Default collaborator timeouts
const (
	DefaultLoudnessTimeout = 60 * time.Second
	DefaultRenderTimeout   = 10 * time.Minute
)

// Options configures New. Only Catalog is required.
type Options struct {
	Catalog  *presets.Catalog
	Codec    Codec
	Renderer Renderer
	Loudness LoudnessAnalyzer
	Store    SettingsStore
	Sink     InferenceSink

	Workers         int           // pool size; 0 means NumCPU
	LoudnessTimeout time.Duration // 0 means DefaultLoudnessTimeout
	RenderTimeout   time.Duration // 0 means DefaultRenderTimeout
	MainsHz         float64       // enables the hum check when > 0
	Logger          logrus.FieldLogger
}

// Engine runs the exposed operations.
type Engine struct {
	catalog  *presets.Catalog
	codec    Codec
	renderer Renderer
	store    SettingsStore
	sink     InferenceSink
	meter    *processor.Meter
	pool     *Pool
	logger   logrus.FieldLogger

	renderTimeout time.Duration
	mainsHz       float64
}

// New builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Catalog == nil {
		return nil, errors.New("engine: a preset catalog is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Sink == nil {
		opts.Sink = inference.Discard{}
	}
	if opts.Codec == nil {
		opts.Codec = audio.NewCodec(nil)
	}
	if opts.LoudnessTimeout <= 0 {
		opts.LoudnessTimeout = DefaultLoudnessTimeout
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = DefaultRenderTimeout
	}

	var ext processor.ExternalMeter
	if opts.Loudness != nil {
		ext = sampleMeter(opts.Loudness)
	}

	return &Engine{
		catalog:       opts.Catalog,
		codec:         opts.Codec,
		renderer:      opts.Renderer,
		store:         opts.Store,
		sink:          opts.Sink,
		meter:         processor.NewMeter(ext, opts.LoudnessTimeout, opts.Logger),
		pool:          NewPool(opts.Workers),
		logger:        opts.Logger,
		renderTimeout: opts.RenderTimeout,
		mainsHz:       opts.MainsHz,
	}, nil
}

// Catalog returns the injected preset catalog.
func (e *Engine) Catalog() *presets.Catalog {
	return e.catalog
}

// Decode turns an encoded request buffer into a Sample.
func (e *Engine) Decode(ctx context.Context, data []byte, mimeType string) (*audio.Sample, error) {
	return e.codec.Decode(ctx, data, mimeType)
}

// Pool bounds concurrent CPU-bound tasks.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool of size workers, or NumCPU when size < 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of concurrent tasks allowed.
func (p *Pool) Size() int {
	return p.size
}

// Do runs task once a slot is free. It returns ctx's error without running
// task if the context ends first.
func (p *Pool) Do(ctx context.Context, task func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return task()
}

// pathMeter adapts a file-based LoudnessAnalyzer to the sample-based
// processor.ExternalMeter. Buffers that never touched disk are reported
// unavailable so the meter falls back.
type pathMeter struct {
	analyzer LoudnessAnalyzer
}

func (m pathMeter) MeasureSample(ctx context.Context, s *audio.Sample) (processor.ExternalLoudness, error) {
	if s.SourcePath == "" {
		return processor.ExternalLoudness{}, fault.Unavailable("loudness analyser", errors.New("sample has no source file"))
	}
	return m.analyzer.MeasureLoudness(ctx, s.SourcePath)
}

// sampleMeter prefers the analyzer's own sample support when it has one.
func sampleMeter(a LoudnessAnalyzer) processor.ExternalMeter {
	if m, ok := a.(processor.ExternalMeter); ok {
		return m
	}
	return pathMeter{analyzer: a}
}

// audit sends one inference record. It never blocks the caller.
func (e *Engine) audit(trackID, model, operation string, start time.Time, input, output string, confidence float64, degraded bool, err error) {
	rec := inference.NewRecord(model, operation)
	rec.TrackID = trackID
	rec.InputSummary = input
	rec.OutputSummary = output
	rec.Confidence = confidence
	rec.ElapsedMs = time.Since(start).Milliseconds()
	rec.Degraded = degraded
	if err != nil {
		rec.Error = err.Error()
	}
	e.sink.LogInference(rec)
}

// persist saves settings when a store is configured. Failures are logged
// and do not fail the operation.
func (e *Engine) persist(ctx context.Context, trackID string, settings store.ComputedSettings, prov store.Provenance) {
	if e.store == nil || trackID == "" {
		return
	}
	if err := e.store.SaveComputedSettings(ctx, trackID, settings, prov); err != nil {
		e.logger.WithFields(logrus.Fields{
			"track":     trackID,
			"operation": prov.Operation,
		}).WithError(err).Warn("failed to persist computed settings")
	}
}

// render runs the renderer under the render timeout.
func (e *Engine) render(ctx context.Context, inputPath string, chain []processor.FilterDescriptor) (string, error) {
	if e.renderer == nil {
		return "", fault.Unavailable("renderer", nil)
	}
	if inputPath == "" {
		return "", fault.Input("rendering needs a source file")
	}

	rctx, cancel := context.WithTimeout(ctx, e.renderTimeout)
	defer cancel()

	out, err := e.renderer.Render(rctx, inputPath, chain)
	if err != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, fault.ErrTimeout) {
			return "", fault.Timeout("renderer", err)
		}
		return "", fmt.Errorf("render: %w", err)
	}
	return out, nil
}

func summarise(s *audio.Sample) string {
	if s == nil {
		return "no sample"
	}
	return fmt.Sprintf("%.1fs %dHz %dch", s.Duration(), s.SampleRate, s.Channels)
}
