// Package ingest analyzes video files dropped into a watched directory.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/analysis"
	"github.com/FairForge/scoutline/internal/metrics"
	"github.com/FairForge/scoutline/internal/sampler"
)

// Ingest outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

const defaultDebounce = 500 * time.Millisecond

// Analyzer is the part of analysis.Analyzer the watcher needs.
type Analyzer interface {
	Analyze(ctx context.Context, f sampler.RawFile, opts analysis.Options) (*analysis.Result, error)
}

// Event reports one processed file.
type Event struct {
	Path   string
	Result *analysis.Result
	Err    error
}

// Config configures a Watcher.
type Config struct {
	Dir      string
	Debounce time.Duration
	// Owner is recorded on every analysis made from the folder.
	Owner string
	// Existing also analyzes video files already present when Run starts.
	Existing bool
}

// Watcher turns create and write events on video files into analyses. A
// file is analyzed once it has been quiet for the debounce window, so a
// copy in progress is not sampled halfway.
type Watcher struct {
	cfg      Config
	analyzer Analyzer
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer

	events    chan Event
	closeOnce sync.Once
}

func New(cfg Config, analyzer Analyzer, m *metrics.Collector, logger *zap.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("ingest: directory is required")
	}
	if analyzer == nil {
		return nil, errors.New("ingest: analyzer is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		cfg:      cfg,
		analyzer: analyzer,
		metrics:  m,
		logger:   logger.With(zap.String("dir", cfg.Dir)),
		timers:   make(map[string]*time.Timer),
		events:   make(chan Event, 16),
	}, nil
}

// Events delivers one Event per processed file and is closed when Run
// returns. Sends are dropped when the buffer is full.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run watches the directory until ctx is done or the watcher shuts down. A
// Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.closeOnce.Do(func() { close(w.events) })

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("watching for clips", zap.Duration("debounce", w.cfg.Debounce))

	ready := make(chan string)
	done := make(chan struct{})
	defer func() {
		close(done)
		w.stopTimers()
	}()

	if w.cfg.Existing {
		if err := w.scheduleExisting(ready, done); err != nil {
			w.logger.Warn("failed to scan existing files", zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !sampler.IsVideo(ev.Name) {
				continue
			}
			w.schedule(ev.Name, ready, done)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case path := <-ready:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) scheduleExisting(ready chan<- string, done <-chan struct{}) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !sampler.IsVideo(e.Name()) {
			continue
		}
		w.schedule(filepath.Join(w.cfg.Dir, e.Name()), ready, done)
	}
	return nil
}

// schedule (re)starts the quiet-period timer for path. A timer that fires
// after Run has returned gives up on done.
func (w *Watcher) schedule(path string, ready chan<- string, done <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.cfg.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case ready <- path:
		case <-done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// Pending returns the number of files waiting out their debounce window.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

func (w *Watcher) process(ctx context.Context, path string) {
	log := w.logger.With(zap.String("file", filepath.Base(path)))

	f, err := sampler.OpenFile(path)
	if err != nil {
		// Removed or renamed before the debounce fired.
		log.Debug("file vanished before analysis", zap.Error(err))
		w.finish(Event{Path: path, Err: err}, OutcomeFailed)
		return
	}

	res, err := w.analyzer.Analyze(ctx, f, analysis.Options{Owner: w.cfg.Owner})
	switch {
	case err != nil && res == nil:
		log.Error("ingest analysis failed", zap.Error(err))
		w.finish(Event{Path: path, Err: err}, OutcomeFailed)
		return
	case err != nil:
		log.Warn("ingested clip not persisted", zap.Error(err))
	}

	outcome := OutcomeOK
	if res.Degraded {
		outcome = OutcomeDegraded
	}
	log.Info("clip ingested",
		zap.String("fingerprint", res.Fingerprint),
		zap.Int64("seed", res.Seed),
		zap.String("outcome", outcome))
	w.finish(Event{Path: path, Result: res, Err: err}, outcome)
}

func (w *Watcher) finish(ev Event, outcome string) {
	if w.metrics != nil {
		w.metrics.RecordIngest(outcome)
	}
	select {
	case w.events <- ev:
	default:
	}
}
