package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackbox/pkg/testutil"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:8871", cfg.Listen.WS)
	assert.Equal(t, 0.88, cfg.Resolver.AcceptThreshold)
	assert.Equal(t, 0.82, cfg.Resolver.LLMThreshold)
	assert.Equal(t, 0.75, cfg.Resolver.ConfirmThreshold)
	assert.False(t, cfg.LLM.Enabled)
	assert.Equal(t, 300*time.Second, cfg.Vault.IdleTimeout())
	assert.Equal(t, time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 4*time.Second, cfg.Turn.Deadline())
}

func TestFromFile(t *testing.T) {
	testutil.Given(t, "no config file exists", func(t *testing.T) {
		cfg, err := FromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err, "a fresh install runs on defaults")
		assert.Equal(t, Default(), cfg)
	})

	testutil.Given(t, "a partial config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
vault:
  path: /tmp/test-vault.db
  idle_timeout_seconds: 60
  kdf:
    time_cost: 2
    memory_kib: 32768
    parallelism: 2
log:
  level: debug
`), 0o644))

		cfg, err := FromFile(path)
		require.NoError(t, err)

		testutil.Then(t, "file values win", func(t *testing.T) {
			assert.Equal(t, "/tmp/test-vault.db", cfg.Vault.Path)
			assert.Equal(t, time.Minute, cfg.Vault.IdleTimeout())
			assert.Equal(t, "debug", cfg.Log.Level)
		})
		testutil.Then(t, "unset sections keep defaults", func(t *testing.T) {
			assert.Equal(t, Default().Resolver, cfg.Resolver)
			assert.Equal(t, Default().Listen, cfg.Listen)
		})
	})

	testutil.Given(t, "a config that breaks validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: loud
`), 0o644))

		_, err := FromFile(path)
		assert.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BLACKBOX_VAULT_PATH", "/tmp/env-vault.db")
	t.Setenv("BLACKBOX_CATALOG_PATH", "/tmp/env-sites.json")
	t.Setenv("BLACKBOX_LOG_LEVEL", "warn")
	t.Setenv("BLACKBOX_LLM_ENABLED", "true")

	cfg, err := FromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env-vault.db", cfg.Vault.Path)
	assert.Equal(t, "/tmp/env-sites.json", cfg.Catalog.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.LLM.Enabled)
}

func TestThresholdOrdering(t *testing.T) {
	tests := []struct {
		name                 string
		accept, llm, confirm float64
		wantErr              bool
	}{
		{name: "ordered", accept: 0.88, llm: 0.82, confirm: 0.75},
		{name: "accept equals llm", accept: 0.82, llm: 0.82, confirm: 0.75, wantErr: true},
		{name: "confirm above llm", accept: 0.88, llm: 0.75, confirm: 0.82, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Resolver.AcceptThreshold = tt.accept
			cfg.Resolver.LLMThreshold = tt.llm
			cfg.Resolver.ConfirmThreshold = tt.confirm

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
