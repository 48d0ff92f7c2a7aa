package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itcctvonlinetif-sudo/BillTracker/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "billtracker.db", filepath.Base(cfg.Storage.Path))
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "30s", cfg.Server.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.Reminder.Interval)
	assert.Equal(t, 15*time.Second, cfg.Reminder.SendTimeout)
	assert.Equal(t, "Local", cfg.Reminder.Timezone)
	assert.True(t, cfg.Reminder.AdvanceOnFailure)
	assert.True(t, cfg.Reminder.RunOnStart)
	assert.Equal(t, "http", cfg.Mail.Provider)
	assert.Equal(t, 587, cfg.Mail.SMTP.Port)
	assert.Equal(t, "mandatory", cfg.Mail.SMTP.TLS)
	assert.Equal(t, 10*time.Second, cfg.Telegram.Timeout)
	assert.Contains(t, cfg.Telegram.APIEndpoint, "api.telegram.org")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	loc, err := cfg.Reminder.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	data := []byte(`
storage:
  driver: postgres
  dsn: postgres://bills@localhost/bills
server:
  listen: ":9090"
reminder:
  interval: 30s
  timezone: Europe/Istanbul
  advance_on_failure: false
mail:
  provider: smtp
  smtp:
    host: smtp.example.com
    port: 465
    tls: none
notify:
  webhook:
    url: https://hooks.example.com/bills
logging:
  level: debug
`)
	err := os.WriteFile(cfgPath, data, 0o644)
	require.NoError(t, err)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://bills@localhost/bills", cfg.Storage.DSN)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Reminder.Interval)
	assert.False(t, cfg.Reminder.AdvanceOnFailure)
	assert.Equal(t, "smtp", cfg.Mail.Provider)
	assert.Equal(t, "smtp.example.com", cfg.Mail.SMTP.Host)
	assert.Equal(t, 465, cfg.Mail.SMTP.Port)
	assert.Equal(t, "https://hooks.example.com/bills", cfg.Notify.Webhook.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)

	loc, err := cfg.Reminder.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Istanbul", loc.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BILLTRACKER_LOGGING_LEVEL", "error")
	t.Setenv("BILLTRACKER_SERVER_LISTEN", ":7070")
	t.Setenv("BILLTRACKER_REMINDER_INTERVAL", "5m")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, 5*time.Minute, cfg.Reminder.Interval)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	err := os.WriteFile(cfgPath, []byte("invalid: [yaml"), 0o644)
	require.NoError(t, err)

	_, err = config.Load(cfgPath)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"driver", "storage:\n  driver: mysql\n", "storage.driver"},
		{"postgres without dsn", "storage:\n  driver: postgres\n", "storage.dsn"},
		{"mail provider", "mail:\n  provider: pigeon\n", "mail.provider"},
		{"interval", "reminder:\n  interval: 0s\n", "reminder.interval"},
		{"timezone", "reminder:\n  timezone: Mars/Olympus\n", "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte(tt.yaml), 0o644))

			_, err := config.Load(cfgPath)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
