package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker = "localhost:9092"
	testToken     = "raster-test-token"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, BackendRemote, cfg.RasterBackend)
	assert.Equal(t, "http://localhost:8090", cfg.RasterAPIURL)
	assert.Empty(t, cfg.RasterAPIToken)
	assert.Equal(t, 60*time.Second, cfg.RasterTimeout)
	assert.Equal(t, 1000, cfg.RasterCacheSize)
	assert.Empty(t, cfg.RasterManifest)

	assert.Equal(t, "fuzzy", cfg.AnalysisMode)
	assert.Equal(t, 5*time.Minute, cfg.AnalysisTimeout)
	assert.Equal(t, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), cfg.OpticalStart)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), cfg.OpticalEnd, "whole of 2023")
	assert.Empty(t, cfg.ReferenceFloodsDir)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "flood-analyses", cfg.KafkaResultTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RASTER_API_URL", "https://raster.example")
	t.Setenv("RASTER_API_TOKEN", testToken)
	t.Setenv("RASTER_API_TIMEOUT", "2m")
	t.Setenv("RASTER_CACHE_SIZE", "500")
	t.Setenv("ANALYSIS_MODE", "threshold")
	t.Setenv("ANALYSIS_TIMEOUT", "90s")
	t.Setenv("OPTICAL_WINDOW_START", "2022-06-01")
	t.Setenv("OPTICAL_WINDOW_END", "2022-09-01")
	t.Setenv("REFERENCE_FLOODS_DIR", "/srv/floods")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_RESULT_TOPIC", "custom-results")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://raster.example", cfg.RasterAPIURL)
	assert.Equal(t, testToken, cfg.RasterAPIToken)
	assert.Equal(t, 2*time.Minute, cfg.RasterTimeout)
	assert.Equal(t, 500, cfg.RasterCacheSize)
	assert.Equal(t, "threshold", cfg.AnalysisMode)
	assert.Equal(t, 90*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC), cfg.OpticalStart)
	assert.Equal(t, time.Date(2022, time.September, 2, 0, 0, 0, 0, time.UTC), cfg.OpticalEnd)
	assert.Equal(t, "/srv/floods", cfg.ReferenceFloodsDir)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-results", cfg.KafkaResultTopic)
}

func TestLoad_MemoryBackend(t *testing.T) {
	t.Setenv("RASTER_BACKEND", "memory")
	t.Setenv("RASTER_MANIFEST", "testdata/valencia/manifest.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.RasterBackend)
	assert.Equal(t, "testdata/valencia/manifest.json", cfg.RasterManifest)
}

func TestLoad_MemoryBackendWithoutManifest(t *testing.T) {
	t.Setenv("RASTER_BACKEND", "memory")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RASTER_MANIFEST")
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("RASTER_BACKEND", "gdal")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RASTER_BACKEND")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"RASTER_API_TIMEOUT", "ANALYSIS_TIMEOUT"} {
		for _, v := range []string{"bad", "0s", "-5s"} {
			t.Run(key+"="+v, func(t *testing.T) {
				t.Setenv(key, v)
				_, err := Load()
				require.Error(t, err)
				assert.Contains(t, err.Error(), key)
			})
		}
	}
}

func TestLoad_InvalidAnalysisMode(t *testing.T) {
	t.Setenv("ANALYSIS_MODE", "fancy")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYSIS_MODE")
}

func TestLoad_InvalidOpticalWindow(t *testing.T) {
	t.Run("bad date", func(t *testing.T) {
		t.Setenv("OPTICAL_WINDOW_START", "01/01/2023")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPTICAL_WINDOW_START")
	})

	t.Run("reversed", func(t *testing.T) {
		t.Setenv("OPTICAL_WINDOW_START", "2023-12-31")
		t.Setenv("OPTICAL_WINDOW_END", "2023-01-01")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPTICAL_WINDOW_START")
	})
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("RASTER_CACHE_SIZE", "-3")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.RasterCacheSize)
}
