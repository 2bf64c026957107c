package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/catalog"
	"github.com/randalmurphal/eventcore/pkg/eventcore/config"
)

const documents = `
events:
  - type: document
    abstract: true
    payload:
      - {name: document_type, type: string}
  - type: document_removed
    extends: document
    adapter: sync
    default_selector: Process
    payload:
      - {name: reason, type: string, default: violation}
    metadata:
      - {name: at, type: time, optional: true}
  - type: document_uploaded
    extends: document
    name: DocumentUploaded
`

func writeCatalog(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadBuildsDefinitionsInOrder(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), "events.yaml", documents)

	defs, err := catalog.Load(path, nil)
	require.NoError(t, err)
	require.Len(t, defs, 3)

	assert.True(t, defs[0].IsAbstract())

	removed := defs[1]
	assert.Equal(t, "document_removed", removed.Type())
	assert.Equal(t, "sync", removed.Adapter())
	assert.Equal(t, "Process", removed.Selector())
	assert.Same(t, defs[0], removed.Base())
	assert.Equal(t, []string{"document_type", "reason"}, removed.Payload().Names())
	assert.Equal(t, []string{"at"}, removed.Metadata().Names())

	evt, err := removed.NewEvent(map[string]any{"document_type": "bank_card"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "violation", evt.Payload().Value("reason"))

	assert.Equal(t, "DocumentUploaded", defs[2].Name())
}

func TestParseAcceptsJSONAndTOML(t *testing.T) {
	fromJSON, err := config.FromJSON([]byte(`{"events":[{"type":"ping","payload":[{"name":"n","type":"int"}]}]}`))
	require.NoError(t, err)
	fromTOML, err := config.FromTOML([]byte("[[events]]\ntype = \"ping\"\n[[events.payload]]\nname = \"n\"\ntype = \"int\"\n"))
	require.NoError(t, err)

	for name, cfg := range map[string]config.Config{"json": fromJSON, "toml": fromTOML} {
		t.Run(name, func(t *testing.T) {
			defs, err := catalog.Parse(cfg, nil)
			require.NoError(t, err)
			require.Len(t, defs, 1)
			assert.Equal(t, []string{"n"}, defs[0].Payload().Names())
		})
	}
}

func TestParseRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing type", "events:\n  - adapter: sync\n"},
		{"unknown base", "events:\n  - type: a\n    extends: b\n"},
		{"base listed later", "events:\n  - type: a\n    extends: b\n  - type: b\n    abstract: true\n"},
		{"listed twice", "events:\n  - type: a\n  - type: a\n"},
		{"unknown attribute type", "events:\n  - type: a\n    payload:\n      - {name: x, type: sequence}\n"},
		{"bad default", "events:\n  - type: a\n    payload:\n      - {name: x, type: int, default: nope}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromYAML([]byte(tt.body))
			require.NoError(t, err)

			_, err = catalog.Parse(cfg, nil)
			assert.ErrorIs(t, err, catalog.ErrInvalidCatalog)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestApplyAddsThenLeavesUnchanged(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), "events.yaml", documents)
	reg := eventcore.NewManagerRegistry()

	defs, err := catalog.Load(path, nil)
	require.NoError(t, err)

	report, err := catalog.Apply(reg, defs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"document_removed", "document_uploaded"}, report.Added)
	assert.Empty(t, report.Unchanged)
	assert.False(t, reg.IsManaged("document"), "abstract entries are never registered")

	again, err := catalog.Load(path, nil)
	require.NoError(t, err)
	report, err = catalog.Apply(reg, again, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Equal(t, []string{"document_removed", "document_uploaded"}, report.Unchanged)
	assert.Empty(t, report.Replaced)
}

func TestApplyReplacesDriftedTypesKeepingObservers(t *testing.T) {
	dir := t.TempDir()
	reg := eventcore.NewManagerRegistry()

	path := writeCatalog(t, dir, "events.yaml", "events:\n  - type: ping\n    payload:\n      - {name: n, type: int}\n")
	defs, err := catalog.Load(path, nil)
	require.NoError(t, err)
	_, err = catalog.Apply(reg, defs, nil)
	require.NoError(t, err)

	mgr, err := reg.Lookup("ping")
	require.NoError(t, err)
	_, err = mgr.Observe(func(*eventcore.Event) error { return nil }, "")
	require.NoError(t, err)

	writeCatalog(t, dir, "events.yaml", "events:\n  - type: ping\n    payload:\n      - {name: n, type: int}\n      - {name: note, type: string, optional: true}\n")
	defs, err = catalog.Load(path, nil)
	require.NoError(t, err)

	report, err := catalog.Apply(reg, defs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, report.Replaced)

	replaced, err := reg.Lookup("ping")
	require.NoError(t, err)
	assert.NotSame(t, mgr, replaced)
	assert.Len(t, replaced.Subscriptions(), 1)
	assert.Equal(t, []string{"n", "note"}, replaced.Definition().Payload().Names())
}

func TestApplyContinuesPastFailures(t *testing.T) {
	reg := eventcore.NewManagerRegistry()
	base := eventcore.MustDefinition("document")
	_, err := reg.Register(base)
	require.NoError(t, err)

	child := eventcore.MustDefinition("document_removed", eventcore.Extends(base))
	other := eventcore.MustDefinition("ping")

	report, err := catalog.Apply(reg, []*eventcore.Definition{child, other}, nil)
	assert.ErrorIs(t, err, eventcore.ErrAlreadyManaged)
	assert.Equal(t, []string{"ping"}, report.Added)
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, "events.yaml", "events:\n  - type: ping\n")
	reg := eventcore.NewManagerRegistry()

	var mu sync.Mutex
	var reports []catalog.Report
	w := catalog.NewWatcher(path, reg,
		catalog.WithDebounce(20*time.Millisecond),
		catalog.WithOnApply(func(r catalog.Report, err error) {
			if err != nil {
				return
			}
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
		}),
	)

	report, err := w.Reload()
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, report.Added)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeCatalog(t, dir, "events.yaml", "events:\n  - type: ping\n  - type: pong\n")

	assert.Eventually(t, func() bool {
		return reg.IsManaged("pong")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(reports), 2)
	assert.Contains(t, reports[len(reports)-1].Unchanged, "ping")
}

func TestWatcherKeepsRegistryOnBrokenFile(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), "events.yaml", "events:\n  - type: ping\n")
	reg := eventcore.NewManagerRegistry()
	w := catalog.NewWatcher(path, reg)

	_, err := w.Reload()
	require.NoError(t, err)

	writeCatalog(t, filepath.Dir(path), "events.yaml", "events:\n  - extends: nowhere\n")
	_, err = w.Reload()
	require.Error(t, err)
	assert.True(t, reg.IsManaged("ping"))
}
