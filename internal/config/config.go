package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upload handling.
	MaxUploadBytes   int64
	PreviewRows      int
	InvalidRowPolicy domain.InvalidPolicy
	ReportCacheSize  int

	// Report event publishing.
	KafkaBrokers  []string
	ReportTopic   string
	EventsEnabled bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	maxUpload, err := parsePositiveInt("MAX_UPLOAD_BYTES", 32<<20)
	if err != nil {
		return nil, err
	}
	previewRows, err := parsePositiveInt("PREVIEW_ROWS", 5)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("REPORT_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}

	policy, err := domain.ParseInvalidPolicy(sharedcfg.EnvOrDefault("INVALID_ROW_POLICY", string(domain.PolicyAbort)))
	if err != nil {
		return nil, fmt.Errorf("invalid INVALID_ROW_POLICY: %w", err)
	}

	eventsEnabled, err := parseBool("REPORT_EVENTS_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MaxUploadBytes:   int64(maxUpload),
		PreviewRows:      previewRows,
		InvalidRowPolicy: policy,
		ReportCacheSize:  cacheSize,

		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		ReportTopic:   sharedcfg.EnvOrDefault("REPORT_TOPIC", "crop-yield-reports"),
		EventsEnabled: eventsEnabled,
	}

	if cfg.EventsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("REPORT_EVENTS_ENABLED is true but KAFKA_BROKERS is empty")
	}

	return cfg, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.FormatBool(fallback))
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return b, nil
}
