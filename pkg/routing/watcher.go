package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a changed table is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Path is the table file.
	Path string

	// Debounce is the quiet period before a reload (default: 100ms).
	Debounce time.Duration
}

// Watcher reloads a table file when it changes. It watches the parent
// directory so that editors which save by renaming are seen too.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	config   WatcherConfig
	debounce *Debouncer

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for cfg.Path.
func NewWatcher(cfg WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("watcher: path is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:  fw,
		logger:   logger.With("component", "routing.watcher"),
		config:   cfg,
		debounce: NewDebouncer(cfg.Debounce),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called, calling onReload
// after each burst of changes to the table file.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	w.mu.Lock()
	if w.running || w.stopped {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	dir := filepath.Dir(w.config.Path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("routing table watcher started",
		"path", w.config.Path,
		"debounce_ms", w.config.Debounce.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("routing table watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("routing table watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("routing table event", "path", event.Name, "op", event.Op.String())

			w.debounce.Trigger(func() {
				if err := onReload(); err != nil {
					w.logger.Error("routing table reload failed", "path", w.config.Path, "error", err)
					return
				}
				w.logger.Info("routing table reloaded", "path", w.config.Path)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("routing table watcher error", "error", err)
		}
	}
}

// Stop ends Watch and releases the underlying watcher. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	running := w.running
	w.mu.Unlock()

	close(w.stopCh)
	if running {
		<-w.doneCh
	}
	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.config.Path)
}

// Debouncer runs the latest callback once no new trigger has arrived for
// the interval.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
