package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, "sparse", cfg.Features.Strategy)
	assert.Equal(t, 5, cfg.Recommend.HistorySize)
	assert.Equal(t, 20*time.Second, cfg.TMDB.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Features.Remote.Backoff)
	assert.True(t, cfg.Normalize.RemoveStopWords)
	assert.Equal(t, "original_title", cfg.Catalog.Columns.Title)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
seed: 7
features:
  strategy: dense
  dense:
    dimension: 50
cluster:
  algorithm: dbscan
  epsilon: 0.25
  min_points: 4
classifiers:
  names: [logistic, forest]
`)
	t.Setenv("CINEMATCH_RECOMMEND_N", "9")
	t.Setenv("TMDB_API_KEY", "secret")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 9, cfg.Recommend.N)
	assert.Equal(t, "secret", cfg.TMDB.APIKey)
	assert.Equal(t, []string{"logistic", "forest"}, cfg.Classifiers.Names)

	fc := cfg.FeatureConfig()
	assert.Equal(t, "dense", fc.Strategy)
	assert.Equal(t, 50, fc.Dense.Dimension)
	assert.Equal(t, uint64(7), fc.Seed)

	cc := cfg.ClusterConfig()
	assert.Equal(t, 0.25, cc.DBSCAN.Epsilon)
	assert.Equal(t, 4, cc.DBSCAN.MinPoints)
	assert.Equal(t, uint64(7), cc.KMeans.Seed)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad strategy", func(c *Config) { c.Features.Strategy = "bert" }},
		{"bad algorithm", func(c *Config) { c.Cluster.Algorithm = "spectral" }},
		{"zero k", func(c *Config) { c.Cluster.K = 0 }},
		{"bad linkage", func(c *Config) { c.Cluster.Algorithm = "agglomerative"; c.Cluster.Linkage = "ward" }},
		{"dbscan epsilon", func(c *Config) { c.Cluster.Algorithm = "dbscan"; c.Cluster.Epsilon = 0 }},
		{"test ratio", func(c *Config) { c.Corpus.TestRatio = 1 }},
		{"recommend n", func(c *Config) { c.Recommend.N = 0 }},
		{"unknown classifier", func(c *Config) { c.Classifiers.Names = []string{"svm"} }},
		{"remote without key", func(c *Config) {
			c.Features.Strategy = "remote"
			c.Features.Remote.Provider = "openai"
			c.Features.Remote.OpenaiApiKey = ""
		}},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"server mode", func(c *Config) { c.Server.Mode = "production" }},
		{"queue priority", func(c *Config) { c.Worker.Queues = map[string]int{"experiments": 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), models.ErrConfiguration)
		})
	}
}
