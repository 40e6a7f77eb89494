package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("APP_TIMEZONE", "UTC")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.False(t, cfg.IsProduction())
	require.Equal(t, 168*time.Hour, cfg.IdempotencyRetention)
	require.Equal(t, 3, cfg.InvoiceNumberRetries)
	require.Equal(t, time.UTC, cfg.Location())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "APP_TIMEZONE")

	t.Setenv("APP_TIMEZONE", "America/Chicago")
	t.Setenv("INVOICE_NUMBER_RETRIES", "0")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "INVOICE_NUMBER_RETRIES")

	t.Setenv("INVOICE_NUMBER_RETRIES", "5")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "America/Chicago", cfg.Location().String())
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, &Config{LogFormat: "json"}).Info("hello", slog.Int64("invoice_id", 7))
	require.Contains(t, buf.String(), `"invoice_id":7`)

	buf.Reset()
	NewLoggerTo(&buf, &Config{LogFormat: "pretty"}).Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
}
