package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/catalog"
	"github.com/randalmurphal/eventcore/pkg/eventcore/codec"
	"github.com/randalmurphal/eventcore/pkg/eventcore/config"
	"github.com/randalmurphal/eventcore/pkg/eventcore/journal"
	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
	"github.com/randalmurphal/eventcore/pkg/eventcore/retry"
)

// runtime is the event system assembled from settings for one command.
type runtime struct {
	settings config.Settings
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	system   *eventcore.System
	codec    codec.Codec
	journal  journal.Store

	// prometheus is set when the prometheus backend is selected.
	prometheus *prometheus.Registry

	closers []func() error
}

// newRuntime loads settings and builds the system. Log lines go to logOut.
func newRuntime(flags *globalFlags, logOut io.Writer) (*runtime, error) {
	settings, err := config.LoadSettings(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if flags.logLevel != "" {
		settings.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		settings.Log.Format = strings.ToLower(flags.logFormat)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	rt := &runtime{settings: settings}
	rt.logger, err = newLogger(settings.Log, logOut)
	if err != nil {
		return nil, err
	}
	if err := rt.setupMetrics(); err != nil {
		return nil, err
	}

	if settings.Journal.Path != "" {
		store, err := openJournal(settings.Journal.Path)
		if err != nil {
			_ = rt.close(context.Background())
			return nil, err
		}
		rt.journal = store
		rt.closers = append(rt.closers, store.Close)
	}

	rt.system = eventcore.NewSystem(
		eventcore.WithSettings(settings),
		eventcore.WithLogger(rt.logger),
		eventcore.WithMetrics(rt.metrics),
	)

	rt.codec, err = codec.New(flags.codec, codec.WithBuilder(rt.system.Managers()))
	if err != nil {
		_ = rt.close(context.Background())
		return nil, err
	}
	return rt, nil
}

func newLogger(s config.LogSettings, out io.Writer) (*slog.Logger, error) {
	level, err := s.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	}
	return slog.New(slog.NewTextHandler(out, opts)), nil
}

func (rt *runtime) setupMetrics() error {
	switch rt.settings.Metrics.Backend {
	case config.MetricsOTel:
		rt.metrics = observability.NewMetricsRecorder()
	case config.MetricsPrometheus:
		rt.prometheus = prometheus.NewRegistry()
		rec, err := observability.NewPrometheusRecorder(rt.prometheus, "eventcore")
		if err != nil {
			return err
		}
		rt.metrics = rec
	case config.MetricsStatsd:
		rec, client, err := observability.DialStatsd(rt.settings.Metrics.StatsdAddr)
		if err != nil {
			return err
		}
		rt.metrics = rec
		rt.closers = append(rt.closers, client.Close)
	default:
		rt.metrics = observability.NoopMetrics{}
	}
	return nil
}

func openJournal(path string) (journal.Store, error) {
	if path == ":memory:" {
		return journal.NewMemoryStore(), nil
	}
	store, err := journal.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}

// applyCatalog loads path into the system. When a journal is configured,
// failed deliveries of every added type are recorded in it; the on-error
// hooks run for sync and async deliveries alike.
func (rt *runtime) applyCatalog(path string) (catalog.Report, error) {
	defs, err := catalog.Load(path, nil)
	if err != nil {
		return catalog.Report{}, err
	}
	report, err := catalog.Apply(rt.system.Managers(), defs, rt.logger)
	rt.attachJournal(report.Added)
	if err != nil {
		return report, err
	}
	observability.LogReload(rt.logger, path, len(report.Added), len(report.Unchanged), len(report.Replaced))
	return report, nil
}

func (rt *runtime) attachJournal(types []string) {
	if rt.journal == nil {
		return
	}
	hook := journal.ErrorHook(rt.journal, rt.codec)
	for _, typ := range types {
		if m, err := rt.system.Manager(typ); err == nil {
			m.OnError(hook)
		}
	}
}

func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	if rt.system != nil {
		errs = append(errs, rt.system.Close(ctx))
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// publishRetry returns the retry policy for broker publishes.
func (rt *runtime) publishRetry() retry.Config {
	p := rt.settings.Publish
	return retry.Config{
		MaxAttempts:    p.MaxAttempts,
		InitialBackoff: p.InitialBackoff,
		MaxBackoff:     p.MaxBackoff,
		BackoffFactor:  p.BackoffFactor,
		Jitter:         p.Jitter,
		OnRetry: func(attempt int, err error) {
			rt.logger.Warn("publish retry", slog.Int("attempt", attempt), slog.String("error", err.Error()))
		},
	}
}
