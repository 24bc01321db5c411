package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Pipeline.MinTrainingRecords)
	assert.Equal(t, 100, cfg.Pipeline.ForestTrees)
	assert.Equal(t, 5, cfg.Pipeline.ForestMaxDepth)
	assert.Equal(t, int64(42), cfg.Pipeline.ForestSeed)
	assert.Equal(t, 0.1, cfg.Pipeline.MinSupport)
	assert.Equal(t, 0.5, cfg.Pipeline.MinConfidence)
	assert.Equal(t, 6, cfg.Pipeline.MinTransactions)
	assert.Equal(t, "deepseek-chat", cfg.Prose.Model)
	assert.Equal(t, 500, cfg.Prose.MaxTokens)
	assert.False(t, cfg.Prose.Enabled())
	assert.NotNil(t, cfg.Features)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("DEEPSEEK_REQUEST_TIMEOUT", "5s")
	t.Setenv("PIPELINE_MIN_TRANSACTIONS", "5")
	t.Setenv("FEATURE_ROLLOUT", "prose.rewrite=false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.True(t, cfg.Prose.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Prose.RequestTimeout)
	assert.Equal(t, 5, cfg.Pipeline.MinTransactions)
	assert.False(t, cfg.Features.IsEnabled(FeatureProseRewrite, nil))
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("pipeline:\n  forest_trees: 20\nhttp:\n  port: 8081\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "8082")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Pipeline.ForestTrees)
	// env wins over the file
	assert.Equal(t, 8082, cfg.HTTP.Port)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.App.Environment = EnvProduction
	cfg.Pipeline.MinSupport = 0
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required in production")
	assert.Contains(t, err.Error(), "PIPELINE_MIN_SUPPORT")
	assert.Contains(t, err.Error(), "HTTP_PORT")
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "prose.api_key", envTransformFunc("DEEPSEEK_API_KEY"))
	assert.Equal(t, "database.url", envTransformFunc("DATABASE_URL"))
	assert.Equal(t, "", envTransformFunc("PATH"))
}

func TestFeatureFlags(t *testing.T) {
	t.Run("defaults enabled", func(t *testing.T) {
		ff := LoadFeatureFlags("")
		assert.True(t, ff.IsEnabled(FeatureLearnedEstimator, nil))
		assert.True(t, ff.IsEnabled(FeaturePatternMining, nil))
		assert.False(t, ff.IsEnabled("unknown", nil))
	})

	t.Run("rollout is stable per student", func(t *testing.T) {
		ff := LoadFeatureFlags("prose.rewrite=50")
		in := 0
		for id := int64(1); id <= 200; id++ {
			ctx := &FeatureContext{StudentID: id}
			first := ff.IsEnabled(FeatureProseRewrite, ctx)
			assert.Equal(t, first, ff.IsEnabled(FeatureProseRewrite, ctx))
			if first {
				in++
			}
		}
		assert.Greater(t, in, 0)
		assert.Less(t, in, 200)
		assert.False(t, ff.IsEnabled(FeatureProseRewrite, nil))
	})

	t.Run("override wins", func(t *testing.T) {
		ff := LoadFeatureFlags("prose.rewrite=false")
		ff.SetStudentOverride(7, FeatureProseRewrite, true)
		assert.True(t, ff.IsEnabled(FeatureProseRewrite, &FeatureContext{StudentID: 7}))
		assert.False(t, ff.IsEnabled(FeatureProseRewrite, &FeatureContext{StudentID: 8}))
	})

	t.Run("set rollout", func(t *testing.T) {
		ff := LoadFeatureFlags("")
		assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)
		assert.ErrorIs(t, ff.SetRolloutPercent(FeatureResultCache, 101), ErrInvalidRolloutPercent)
		require.NoError(t, ff.DisableFeature(FeatureResultCache))
		assert.False(t, ff.IsEnabled(FeatureResultCache, nil))
	})
}
