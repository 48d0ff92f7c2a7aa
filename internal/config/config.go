package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/viper"
)

// Config holds all BillTracker configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Server   ServerConfig   `mapstructure:"server"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Mail     MailConfig     `mapstructure:"mail"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig defines the HTTP API listener.
type ServerConfig struct {
	Listen       string `mapstructure:"listen"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// ReminderConfig tunes the reminder scheduler.
type ReminderConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	Timezone         string        `mapstructure:"timezone"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
	AdvanceOnFailure bool          `mapstructure:"advance_on_failure"`
	RunOnStart       bool          `mapstructure:"run_on_start"`
}

// Location resolves the configured timezone. "Local" and empty mean the
// host timezone.
func (r ReminderConfig) Location() (*time.Location, error) {
	if r.Timezone == "" || strings.EqualFold(r.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// MailConfig selects and configures the email transport.
type MailConfig struct {
	Provider string     `mapstructure:"provider"`
	From     string     `mapstructure:"from"`
	APIURL   string     `mapstructure:"api_url"`
	APIKey   string     `mapstructure:"api_key"`
	SMTP     SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP relay settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      string `mapstructure:"tls"`
}

// TelegramConfig defines the Bot API client. Token and chat id live in the
// stored settings.
type TelegramConfig struct {
	APIEndpoint string        `mapstructure:"api_endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// NotifyConfig defines additional notification integrations.
type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".billtracker"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", filepath.Join(home, ".billtracker", "billtracker.db"))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("reminder.interval", "1m")
	v.SetDefault("reminder.timezone", "Local")
	v.SetDefault("reminder.send_timeout", "15s")
	v.SetDefault("reminder.advance_on_failure", true)
	v.SetDefault("reminder.run_on_start", true)
	v.SetDefault("mail.provider", "http")
	v.SetDefault("mail.from", "BillTracker <reminders@billtracker.local>")
	v.SetDefault("mail.api_url", "https://api.resend.com/emails")
	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.smtp.host", "")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.username", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.tls", "mandatory")
	v.SetDefault("telegram.api_endpoint", tgbotapi.APIEndpoint)
	v.SetDefault("telegram.timeout", "10s")
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.webhook.secret", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("BILLTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values and durations.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid storage.driver %q: must be sqlite or postgres", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the postgres driver")
	}
	switch c.Mail.Provider {
	case "http", "smtp":
	default:
		return fmt.Errorf("invalid mail.provider %q: must be http or smtp", c.Mail.Provider)
	}
	if c.Reminder.Interval <= 0 {
		return fmt.Errorf("reminder.interval must be positive, got %s", c.Reminder.Interval)
	}
	if c.Reminder.SendTimeout <= 0 {
		return fmt.Errorf("reminder.send_timeout must be positive, got %s", c.Reminder.SendTimeout)
	}
	if _, err := c.Reminder.Location(); err != nil {
		return err
	}
	return nil
}
