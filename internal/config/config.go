package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Raster backends.
const (
	BackendRemote = "remote"
	BackendMemory = "memory"
)

const dateLayout = "2006-01-02"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Raster backend configuration.
	RasterBackend   string
	RasterAPIURL    string
	RasterAPIToken  string
	RasterTimeout   time.Duration
	RasterCacheSize int
	RasterManifest  string

	// Analysis configuration.
	AnalysisMode       string
	AnalysisTimeout    time.Duration
	OpticalStart       time.Time
	OpticalEnd         time.Time // exclusive; OPTICAL_WINDOW_END names the last included day
	ReferenceFloodsDir string

	// Result publication.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaResultTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	rasterTimeout, err := parsePositiveDuration("RASTER_API_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	analysisTimeout, err := parsePositiveDuration("ANALYSIS_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}

	opticalStart, err := parseDate("OPTICAL_WINDOW_START", "2023-01-01")
	if err != nil {
		return nil, err
	}
	opticalEnd, err := parseDate("OPTICAL_WINDOW_END", "2023-12-31")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RasterBackend:   sharedcfg.EnvOrDefault("RASTER_BACKEND", BackendRemote),
		RasterAPIURL:    sharedcfg.EnvOrDefault("RASTER_API_URL", "http://localhost:8090"),
		RasterAPIToken:  os.Getenv("RASTER_API_TOKEN"),
		RasterTimeout:   rasterTimeout,
		RasterCacheSize: parseCacheSize(),
		RasterManifest:  os.Getenv("RASTER_MANIFEST"),

		AnalysisMode:       sharedcfg.EnvOrDefault("ANALYSIS_MODE", "fuzzy"),
		AnalysisTimeout:    analysisTimeout,
		OpticalStart:       opticalStart,
		OpticalEnd:         opticalEnd.AddDate(0, 0, 1),
		ReferenceFloodsDir: os.Getenv("REFERENCE_FLOODS_DIR"),

		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaResultTopic: sharedcfg.EnvOrDefault("KAFKA_RESULT_TOPIC", "flood-analyses"),
	}

	switch cfg.RasterBackend {
	case BackendRemote:
		if cfg.RasterAPIURL == "" {
			return nil, errors.New("RASTER_API_URL is required for the remote backend")
		}
	case BackendMemory:
		if cfg.RasterManifest == "" {
			return nil, errors.New("RASTER_MANIFEST is required for the memory backend")
		}
	default:
		return nil, fmt.Errorf("invalid RASTER_BACKEND %q: must be remote or memory", cfg.RasterBackend)
	}
	if cfg.AnalysisMode != "fuzzy" && cfg.AnalysisMode != "threshold" {
		return nil, fmt.Errorf("invalid ANALYSIS_MODE %q: must be fuzzy or threshold", cfg.AnalysisMode)
	}
	if !cfg.OpticalStart.Before(cfg.OpticalEnd) {
		return nil, errors.New("OPTICAL_WINDOW_START must be before OPTICAL_WINDOW_END")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaResultTopic == "" {
			return nil, errors.New("KAFKA_RESULT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseDate(key, def string) (time.Time, error) {
	t, err := time.Parse(dateLayout, sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: expected YYYY-MM-DD", key)
	}
	return t, nil
}

func parseCacheSize() int {
	if s := os.Getenv("RASTER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
