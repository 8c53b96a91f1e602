// Package inference records an audit entry for every engine operation.
//
// Sinks never block or fail the operation that produced the record: the
// AsyncSink buffers records and drops them when the buffer is full.
package inference

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Model names the deterministic rule sets behind each operation. None of
// them is a learned model.
const (
	ModelSpectral   = "spectral-analyzer"
	ModelStemFilter = "band-filter-heuristic"
	ModelLoudness   = "loudness-meter"
	ModelPreset     = "genre-preset-heuristic"
	ModelReference  = "reference-rules"
	ModelNormalise  = "normalisation-planner"
)

// Record is one audit entry.
type Record struct {
	ID            string    `json:"id" bson:"_id"`
	TrackID       string    `json:"track_id,omitempty" bson:"track_id,omitempty"`
	ModelName     string    `json:"model_name" bson:"model_name"`
	OperationType string    `json:"operation_type" bson:"operation_type"`
	InputSummary  string    `json:"input_summary" bson:"input_summary"`
	OutputSummary string    `json:"output_summary" bson:"output_summary"`
	Confidence    float64   `json:"confidence" bson:"confidence"`
	ElapsedMs     int64     `json:"elapsed_ms" bson:"elapsed_ms"`
	Degraded      bool      `json:"degraded,omitempty" bson:"degraded,omitempty"`
	Error         string    `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// NewRecord stamps a record with a fresh id and the current time.
func NewRecord(model, operation string) Record {
	return Record{
		ID:            uuid.NewString(),
		ModelName:     model,
		OperationType: operation,
		CreatedAt:     time.Now().UTC(),
	}
}

// Sink accepts audit records. LogInference must not block.
type Sink interface {
	LogInference(rec Record)
}

// Writer is a blocking destination wrapped by AsyncSink.
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// Discard drops every record.
type Discard struct{}

func (Discard) LogInference(Record) {}

// LogWriter writes records as structured log lines.
type LogWriter struct {
	Logger logrus.FieldLogger
}

func (w LogWriter) Write(_ context.Context, rec Record) error {
	w.Logger.WithFields(logrus.Fields{
		"id":         rec.ID,
		"track":      rec.TrackID,
		"model":      rec.ModelName,
		"operation":  rec.OperationType,
		"input":      rec.InputSummary,
		"output":     rec.OutputSummary,
		"confidence": rec.Confidence,
		"elapsed_ms": rec.ElapsedMs,
		"degraded":   rec.Degraded,
	}).Info("inference")
	return nil
}

// AsyncSink hands records to a Writer on a background goroutine.
type AsyncSink struct {
	writer  Writer
	logger  logrus.FieldLogger
	timeout time.Duration
	records chan Record

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	done    chan struct{}
}

// NewAsyncSink starts the background writer. Each write is bounded by
// timeout; buffer is the number of records held before new ones are dropped.
func NewAsyncSink(w Writer, buffer int, timeout time.Duration, logger logrus.FieldLogger) *AsyncSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if buffer < 1 {
		buffer = 1
	}
	s := &AsyncSink{
		writer:  w,
		logger:  logger,
		timeout: timeout,
		records: make(chan Record, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// LogInference queues rec, dropping it with a warning when the buffer is
// full or the sink is closed.
func (s *AsyncSink) LogInference(rec Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.records <- rec:
	default:
		s.dropped.Add(1)
		s.logger.WithFields(logrus.Fields{
			"operation": rec.OperationType,
			"id":        rec.ID,
		}).Warn("inference sink full, record dropped")
	}
}

// Dropped returns how many records were discarded for lack of space.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for rec := range s.records {
		if err := s.write(rec); err != nil {
			s.logger.WithFields(logrus.Fields{
				"operation": rec.OperationType,
				"id":        rec.ID,
			}).WithError(err).Warn("inference record not written")
		}
	}
}

func (s *AsyncSink) write(rec Record) error {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.writer.Write(ctx, rec)
}

// Close stops accepting records and waits for queued ones to be written.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.records)
	s.mu.Unlock()
	<-s.done
}
