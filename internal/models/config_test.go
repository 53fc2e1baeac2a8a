package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, 1, cfg.ForecastHorizon)
	assert.Equal(t, 3, cfg.MinObservations)
	assert.Equal(t, 30*time.Second, cfg.FitTimeout)
	assert.Equal(t, []string{SinkJSONL}, cfg.Sinks)
	assert.Equal(t, "orders", cfg.MongoCollection)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messforecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage: postgres
database_url: postgres://mess@localhost/mess
forecast_horizon: 4
fit_timeout: 5s
sinks: [jsonl, postgres]
cloud_storage:
  provider: s3
  bucket_name: forecasts
`), 0o644))

	cfg, err := LoadConfigWith(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, 4, cfg.ForecastHorizon)
	assert.Equal(t, 5*time.Second, cfg.FitTimeout)
	assert.Equal(t, []string{SinkJSONL, SinkPostgres}, cfg.Sinks)
	assert.Equal(t, "forecasts", cfg.CloudStorage.BucketName)
	assert.Equal(t, 3, cfg.MinObservations, "unset keys keep their defaults")
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("MESS_FORECAST_HORIZON", "6")
	t.Setenv("MESS_INGREDIENT_MATCH_POLICY", MatchPolicySubstring)

	cfg, err := LoadConfigWith(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.ForecastHorizon)
	assert.Equal(t, MatchPolicySubstring, cfg.IngredientMatchPolicy)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfigWith(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage = "mysql" }},
		{"postgres without url", func(c *Config) { c.Storage = StoragePostgres }},
		{"horizon too long", func(c *Config) { c.ForecastHorizon = 53 }},
		{"zero ingredient weeks", func(c *Config) { c.IngredientWeeks = 0 }},
		{"one observation", func(c *Config) { c.MinObservations = 1 }},
		{"negative season", func(c *Config) { c.SeasonLength = -1 }},
		{"zero timeout", func(c *Config) { c.FitTimeout = 0 }},
		{"unknown policy", func(c *Config) { c.IngredientMatchPolicy = "fuzzy" }},
		{"unknown sink", func(c *Config) { c.Sinks = []string{"redis"} }},
		{"postgres sink without url", func(c *Config) { c.Sinks = []string{SinkPostgres} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
