package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crop-yield-dashboard/internal/domain"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, int64(33554432), cfg.MaxUploadBytes)
	assert.Equal(t, 5, cfg.PreviewRows)
	assert.Equal(t, domain.PolicyAbort, cfg.InvalidRowPolicy)
	assert.Equal(t, 64, cfg.ReportCacheSize)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "crop-yield-reports", cfg.ReportTopic)
	assert.False(t, cfg.EventsEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("PREVIEW_ROWS", "10")
	t.Setenv("INVALID_ROW_POLICY", "skip")
	t.Setenv("REPORT_CACHE_SIZE", "8")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("REPORT_TOPIC", "custom-reports")
	t.Setenv("REPORT_EVENTS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, int64(1048576), cfg.MaxUploadBytes)
	assert.Equal(t, 10, cfg.PreviewRows)
	assert.Equal(t, domain.PolicySkip, cfg.InvalidRowPolicy)
	assert.Equal(t, 8, cfg.ReportCacheSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-reports", cfg.ReportTopic)
	assert.True(t, cfg.EventsEnabled)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"MAX_UPLOAD_BYTES", "lots"},
		{"MAX_UPLOAD_BYTES", "0"},
		{"PREVIEW_ROWS", "-5"},
		{"REPORT_CACHE_SIZE", "x"},
		{"INVALID_ROW_POLICY", "ignore"},
		{"REPORT_EVENTS_ENABLED", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_EventsEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("REPORT_EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_PolicyCaseInsensitive(t *testing.T) {
	t.Setenv("INVALID_ROW_POLICY", "NULL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyNull, cfg.InvalidRowPolicy)
}
