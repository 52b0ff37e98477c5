package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/models"
)

// GraphReloadCallback is invoked with the freshly parsed graph file each
// time the watched file changes. An error is logged but does not stop the
// watcher; the previous, last-known-good graph file keeps being served.
type GraphReloadCallback func(file *models.GraphImportFile) error

// GraphWatcherConfig configures a GraphWatcher.
type GraphWatcherConfig struct {
	// FilePath is the graph YAML file to watch.
	FilePath string
	// DebounceMillis coalesces bursts of filesystem events from editor
	// save sequences and atomic renames. Defaults to 500ms.
	DebounceMillis int
}

// GraphWatcher watches the config-driven graph file for changes and
// triggers a reload callback with debouncing.
type GraphWatcher struct {
	cfg      GraphWatcherConfig
	callback GraphReloadCallback
	logger   *logging.Logger

	cancel  context.CancelFunc
	stopped chan struct{}
	ready   chan struct{}

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewGraphWatcher returns a watcher for cfg.FilePath. callback must not be nil.
func NewGraphWatcher(cfg GraphWatcherConfig, callback GraphReloadCallback) (*GraphWatcher, error) {
	if cfg.FilePath == "" {
		return nil, coreerrors.NewValidation("GraphWatcherConfig.FilePath must not be empty")
	}
	if callback == nil {
		return nil, coreerrors.NewValidation("GraphWatcher callback must not be nil")
	}
	if cfg.DebounceMillis <= 0 {
		cfg.DebounceMillis = 500
	}
	return &GraphWatcher{
		cfg:      cfg,
		callback: callback,
		logger:   logging.GetLogger("config.graphwatcher"),
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Start loads the initial graph file, invokes callback, then watches the
// file for changes until ctx is cancelled or Stop is called. It blocks
// until the underlying fsnotify watcher is initialized.
func (w *GraphWatcher) Start(ctx context.Context) error {
	initial, err := LoadGraphFile(w.cfg.FilePath)
	if err != nil {
		return err
	}
	if err := w.callback(initial); err != nil {
		return coreerrors.Wrap(coreerrors.KindInvariantViolation, err, "initial graph reload callback")
	}
	w.logger.InfoWithFields("loaded initial graph file", logging.Field("path", w.cfg.FilePath))

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.watchLoop(watchCtx)

	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return coreerrors.NewTimeout("timeout waiting for graph file watcher to initialize")
	}
	return nil
}

func (w *GraphWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *GraphWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.ErrorWithErr("create graph file watcher", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.cfg.FilePath); err != nil {
		w.logger.ErrorWithErr("watch graph file", err)
		return
	}
	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Rename == fsnotify.Rename ||
				event.Op&fsnotify.Remove == fsnotify.Remove {
				if event.Op&fsnotify.Rename == fsnotify.Rename || event.Op&fsnotify.Remove == fsnotify.Remove {
					time.Sleep(50 * time.Millisecond)
					if err := watcher.Add(w.cfg.FilePath); err != nil {
						w.logger.WarnWithFields("failed to re-add graph file watch", logging.Field("error", err.Error()))
					}
				}
				w.scheduleReload(ctx)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.ErrorWithErr("graph file watcher error", err)
		}
	}
}

func (w *GraphWatcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(time.Duration(w.cfg.DebounceMillis)*time.Millisecond, func() {
		w.reload(ctx)
	})
}

func (w *GraphWatcher) reload(ctx context.Context) {
	file, err := LoadGraphFile(w.cfg.FilePath)
	if err != nil {
		w.logger.ErrorWithErr("reload graph file, keeping previous graph", err)
		return
	}
	if err := w.callback(file); err != nil {
		w.logger.ErrorWithErr("graph reload callback", err)
		return
	}
	w.logger.Info("graph file reloaded")
}

// Stop cancels the watch loop and waits for it to exit, up to 5 seconds.
func (w *GraphWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.stopped:
		return nil
	case <-time.After(5 * time.Second):
		return coreerrors.NewTimeout("timeout waiting for graph file watcher to stop")
	}
}
