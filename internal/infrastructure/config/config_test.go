package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "explicit missing path is an error")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "greedy-cover", cfg.Recommender.AlgorithmID)
	assert.Equal(t, 3, cfg.Recommender.DefaultTopK)
	assert.Equal(t, 90*24*time.Hour, cfg.Confidence.Window)
	assert.Equal(t, 3, cfg.Confidence.BreakerThreshold)
	assert.Equal(t, 0.20, cfg.Confidence.Deltas["algorithm_error"])
	assert.Equal(t, 0.00, cfg.Confidence.Deltas["user_preference"])
	assert.Equal(t, 30, cfg.Observation.MinObservationDays)
	assert.Equal(t, 0.95, cfg.Observation.AccuracyThreshold)
	assert.Equal(t, "2025-01", cfg.Catalog.Version)
	assert.Equal(t, 35.0, cfg.Catalog.Prices["operational"])
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
confidence:
  breaker_threshold: 5
catalog:
  version: "2026-02"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Confidence.BreakerThreshold)
	assert.Equal(t, "2026-02", cfg.Catalog.Version)

	// Untouched values keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "greedy-cover", cfg.Recommender.AlgorithmID)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ADVISOR_SERVER_PORT", "7070")
	t.Setenv("ADVISOR_DATABASE_URL", "postgres://override:5432/advisor")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://override:5432/advisor", cfg.Database.URL)
}
