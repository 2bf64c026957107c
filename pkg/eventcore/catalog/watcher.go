package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

// Watcher re-applies a catalog file whenever it changes.
type Watcher struct {
	path     string
	registry *eventcore.ManagerRegistry

	// Configuration
	types    *schema.Types
	debounce time.Duration
	logger   *slog.Logger
	onApply  func(Report, error)

	mu sync.Mutex // serializes reloads
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a reload.
// Default: 100ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for reload outcomes. Default: slog.Default().
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTypes sets the converter table used to parse the catalog.
func WithTypes(types *schema.Types) WatcherOption {
	return func(w *Watcher) {
		w.types = types
	}
}

// WithOnApply sets a callback run after every reload.
func WithOnApply(fn func(Report, error)) WatcherOption {
	return func(w *Watcher) {
		w.onApply = fn
	}
}

// NewWatcher creates a watcher applying path to reg.
func NewWatcher(path string, reg *eventcore.ManagerRegistry, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     path,
		registry: reg,
		debounce: 100 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reload loads and applies the catalog once.
func (w *Watcher) Reload() (Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	report, err := w.reload()
	if err != nil {
		observability.LogReloadError(w.logger, w.path, err)
	} else {
		observability.LogReload(w.logger, w.path, len(report.Added), len(report.Unchanged), len(report.Replaced))
	}
	if w.onApply != nil {
		w.onApply(report, err)
	}
	return report, err
}

func (w *Watcher) reload() (Report, error) {
	defs, err := Load(w.path, w.types)
	if err != nil {
		return Report{}, err
	}
	return Apply(w.registry, defs, w.logger)
}

// Run watches the catalog until ctx is done. The directory holding the file
// is watched so that editors replacing the file are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			observability.LogReloadError(w.logger, w.path, err)
		case <-timer.C:
			_, _ = w.Reload()
		}
	}
}
