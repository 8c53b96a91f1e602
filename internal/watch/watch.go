// Package watch analyses audio files as they land in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/linuxmatters/mixdesk/internal/audio"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 2 * time.Second

// Handler processes one settled file. Errors are logged and do not stop
// the watcher.
type Handler func(ctx context.Context, path string) error

// Watcher queues supported audio files created or rewritten in Dir.
type Watcher struct {
	Dir      string
	Debounce time.Duration

	// SkipSuffixes are filename suffixes (before the extension) of files
	// mixdesk writes itself, such as "rendered" for song-rendered.wav.
	SkipSuffixes []string

	Logger logrus.FieldLogger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New returns a Watcher for dir.
func New(dir string, debounce time.Duration, logger logrus.FieldLogger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Watcher{
		Dir:      dir,
		Debounce: debounce,
		Logger:   logger.WithField("dir", dir),
	}
}

// Wants reports whether path should be handled.
func (w *Watcher) Wants(path string) bool {
	if !audio.SupportedExtension(path) {
		return false
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	for _, s := range w.SkipSuffixes {
		if strings.HasSuffix(name, "-"+s) {
			return false
		}
	}
	return true
}

// Run watches until ctx ends, handling settled files one at a time in
// arrival order. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.Dir, err)
	}
	w.Logger.Info("watching for new audio files")

	ready := make(chan string, 64)
	w.mu.Lock()
	w.pending = make(map[string]*time.Timer)
	w.mu.Unlock()
	defer w.stopTimers()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case path := <-ready:
				if err := handle(gctx, path); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					w.Logger.WithField("file", path).WithError(err).Warn("failed to analyse file")
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case event, ok := <-fw.Events:
				if !ok {
					return errors.New("watcher closed")
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					if w.Wants(event.Name) {
						w.schedule(gctx, event.Name, ready)
					}
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return errors.New("watcher closed")
				}
				w.Logger.WithError(err).Warn("watcher error")
			}
		}
	})

	return g.Wait()
}

// schedule (re)starts the quiet timer for path. Copies in progress keep
// pushing the timer back.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case ready <- path:
			w.Logger.WithField("file", path).Debug("file settled")
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}
