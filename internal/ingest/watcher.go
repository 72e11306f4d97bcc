package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/ignore"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watcher ingests extractor JSON files as they land in a directory.
type Watcher struct {
	pipeline *Pipeline
	dir      string
	settle   time.Duration
	watcher  *fsnotify.Watcher
	rules    *ignore.Rules
	logger   *zap.Logger

	stop    chan struct{}
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a directory watcher feeding the pipeline.
func NewWatcher(pipeline *Pipeline, dir string, logger *zap.Logger) (*Watcher, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("%w: pipeline is required", ErrInvalidConfig)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		pipeline: pipeline,
		dir:      dir,
		settle:   defaultSettle,
		watcher:  fsw,
		logger:   logger,
		stop:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the directory. Events are processed on a background
// goroutine until Stop or context cancellation. Ignore rules are read once
// here; editing .lexdignore requires a watcher restart.
func (w *Watcher) Start(ctx context.Context) error {
	w.rules = ignore.Load(w.dir, w.logger)
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	go w.processEvents(ctx)
	w.logger.Info("watching for extractor documents", zap.String("dir", w.dir))
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			if w.rules.Match(event.Name) {
				continue
			}
			watcherEvents.Inc()
			w.schedule(ctx, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// schedule arms (or re-arms) the settle timer for a path. Extractors write
// documents incrementally; ingestion starts only once writes go quiet.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		if _, err := w.pipeline.IngestFile(ctx, path); err != nil {
			w.logger.Error("document ingestion failed",
				zap.String("path", path),
				zap.Error(err))
		}
	})
}
