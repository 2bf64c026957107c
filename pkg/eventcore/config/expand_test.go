package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventcore/pkg/eventcore/config"
)

func lookupFrom(vars map[string]string) config.LookupFunc {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
journal:
  path: ${STATE_DIR}/journal.db
metrics:
  statsd_addr: ${STATSD_HOST:-127.0.0.1}:8125
events:
  - type: ${PREFIX}_created
    tags: [a, "${PREFIX}"]
price: $5
workers: 4
`))
	require.NoError(t, err)

	out, err := config.Expand(cfg, lookupFrom(map[string]string{"STATE_DIR": "/var/lib/app", "PREFIX": "order"}))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/app/journal.db", out.String("journal.path", ""))
	assert.Equal(t, "127.0.0.1:8125", out.String("metrics.statsd_addr", ""))
	assert.Equal(t, "$5", out.String("price", ""), "only the brace form expands")
	assert.Equal(t, 4, out.Int("workers", 0))

	events := out.Slice("events")
	require.Len(t, events, 1)
	assert.Equal(t, "order_created", events[0].String("type", ""))
	assert.Equal(t, []string{"a", "order"}, events[0].StringSlice("tags", nil))

	assert.Equal(t, "${STATE_DIR}/journal.db", cfg.String("journal.path", ""), "input is left untouched")
}

func TestExpandReportsEveryMissingVariable(t *testing.T) {
	cfg := config.New(map[string]any{"a": "${ONE}", "b": "${TWO} and ${THREE:-}"})

	_, err := config.Expand(cfg, lookupFrom(nil))
	var undefined *config.UndefinedVariableError
	require.ErrorAs(t, err, &undefined)
	assert.ElementsMatch(t, []string{"ONE", "TWO"}, undefined.Names)
}

func TestLoadSettingsExpandsEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EVENTCORE_TEST_DIR", dir)

	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  path: ${EVENTCORE_TEST_DIR}/journal.db\n"), 0o644))

	s, err := config.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "journal.db"), s.Journal.Path)

	require.NoError(t, os.WriteFile(path, []byte("journal:\n  path: ${EVENTCORE_TEST_UNSET_VAR}\n"), 0o644))
	_, err = config.LoadSettings(path)
	assert.ErrorContains(t, err, "EVENTCORE_TEST_UNSET_VAR")
}
