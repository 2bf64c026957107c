package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Metrics backends accepted in Settings.Metrics.Backend.
const (
	MetricsNone       = "none"
	MetricsOTel       = "otel"
	MetricsPrometheus = "prometheus"
	MetricsStatsd     = "statsd"
)

// Settings is the typed process configuration of an event system.
type Settings struct {
	// DefaultAdapter is used by definitions that name no adapter.
	DefaultAdapter string
	// DefaultSelector is used by Observe calls that name no selector.
	DefaultSelector string

	Async   AsyncSettings
	Log     LogSettings
	Metrics MetricsSettings
	Journal JournalSettings
	Catalog CatalogSettings
	Publish PublishSettings
}

// AsyncSettings tunes the built-in async adapter.
type AsyncSettings struct {
	Workers      int
	QueueSize    int
	OrderedTypes []string
}

// LogSettings selects the slog handler.
type LogSettings struct {
	Level  string
	Format string
}

// MetricsSettings selects the metrics backend.
type MetricsSettings struct {
	Backend    string
	StatsdAddr string
}

// JournalSettings locates the failure journal. An empty path disables it;
// ":memory:" keeps it in process.
type JournalSettings struct {
	Path string
}

// CatalogSettings tunes catalog hot reload.
type CatalogSettings struct {
	// Debounce is the quiet period after a file change before reloading.
	Debounce time.Duration
}

// PublishSettings is the retry policy for publishing events to a broker.
type PublishSettings struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         float64
}

// Defaults returns the settings used when no file is given.
func Defaults() Settings {
	return Settings{
		DefaultAdapter:  "sync",
		DefaultSelector: "Call",
		Async: AsyncSettings{
			Workers:   8,
			QueueSize: 1024,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsSettings{
			Backend:    MetricsNone,
			StatsdAddr: "127.0.0.1:8125",
		},
		Catalog: CatalogSettings{
			Debounce: 100 * time.Millisecond,
		},
		Publish: PublishSettings{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			BackoffFactor:  2.0,
			Jitter:         0.1,
		},
	}
}

// SettingsFrom reads settings from c, falling back to Defaults for every
// missing key.
//
//	default_adapter: async
//	default_selector: Handle
//	async:
//	  workers: 4
//	  queue_size: 256
//	  ordered_types: [order_placed]
//	log:
//	  level: debug
//	  format: json
//	metrics:
//	  backend: prometheus
//	journal:
//	  path: failures.db
//	catalog:
//	  debounce: 250ms
//	publish:
//	  max_attempts: 5
//	  initial_backoff: 50ms
//	  max_backoff: 2s
//	  backoff_factor: 1.5
//	  jitter: 0.2
func SettingsFrom(c Config) (Settings, error) {
	d := Defaults()
	s := Settings{
		DefaultAdapter:  c.String("default_adapter", d.DefaultAdapter),
		DefaultSelector: c.String("default_selector", d.DefaultSelector),
		Async: AsyncSettings{
			Workers:      c.Int("async.workers", d.Async.Workers),
			QueueSize:    c.Int("async.queue_size", d.Async.QueueSize),
			OrderedTypes: c.StringSlice("async.ordered_types", nil),
		},
		Log: LogSettings{
			Level:  strings.ToLower(c.String("log.level", d.Log.Level)),
			Format: strings.ToLower(c.String("log.format", d.Log.Format)),
		},
		Metrics: MetricsSettings{
			Backend:    strings.ToLower(c.String("metrics.backend", d.Metrics.Backend)),
			StatsdAddr: c.String("metrics.statsd_addr", d.Metrics.StatsdAddr),
		},
		Journal: JournalSettings{
			Path: c.String("journal.path", ""),
		},
		Catalog: CatalogSettings{
			Debounce: c.Duration("catalog.debounce", d.Catalog.Debounce),
		},
		Publish: PublishSettings{
			MaxAttempts:    c.Int("publish.max_attempts", d.Publish.MaxAttempts),
			InitialBackoff: c.Duration("publish.initial_backoff", d.Publish.InitialBackoff),
			MaxBackoff:     c.Duration("publish.max_backoff", d.Publish.MaxBackoff),
			BackoffFactor:  c.Float("publish.backoff_factor", d.Publish.BackoffFactor),
			Jitter:         c.Float("publish.jitter", d.Publish.Jitter),
		},
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadSettings reads a settings file, expanding ${NAME} references from
// the environment. An empty path returns Defaults.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return Defaults(), nil
	}
	c, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	if c, err = ExpandEnv(c); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return SettingsFrom(c)
}

// Validate checks value ranges and enumerations.
func (s Settings) Validate() error {
	if s.Async.Workers <= 0 {
		return fmt.Errorf("async.workers must be positive, got %d", s.Async.Workers)
	}
	if s.Async.QueueSize <= 0 {
		return fmt.Errorf("async.queue_size must be positive, got %d", s.Async.QueueSize)
	}
	if _, err := s.Log.SlogLevel(); err != nil {
		return err
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", s.Log.Format)
	}
	switch s.Metrics.Backend {
	case MetricsNone, MetricsOTel, MetricsPrometheus, MetricsStatsd:
	default:
		return fmt.Errorf("unknown metrics.backend %q", s.Metrics.Backend)
	}
	if s.Catalog.Debounce <= 0 {
		return fmt.Errorf("catalog.debounce must be positive, got %s", s.Catalog.Debounce)
	}
	if s.Publish.MaxAttempts <= 0 {
		return fmt.Errorf("publish.max_attempts must be positive, got %d", s.Publish.MaxAttempts)
	}
	if s.Publish.BackoffFactor < 1 {
		return fmt.Errorf("publish.backoff_factor must be at least 1, got %g", s.Publish.BackoffFactor)
	}
	if s.Publish.Jitter < 0 || s.Publish.Jitter > 1 {
		return fmt.Errorf("publish.jitter must be within [0, 1], got %g", s.Publish.Jitter)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogSettings) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
