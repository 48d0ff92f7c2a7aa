package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmhodges/clock"
	"github.com/spf13/cobra"

	"github.com/itcctvonlinetif-sudo/BillTracker/internal/config"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/channels"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/reminder"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "billtracker",
	Short: "BillTracker - bill tracking with urgency-based reminders",
	Long: `BillTracker keeps track of one-off and recurring bills, classifies them by
how soon they are due, and reminds you by email, Telegram and an audible alert
as due dates approach.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.billtracker/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	store, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// initMailer builds the configured mail transport. A missing configuration
// yields a nil mailer, which leaves the email channel disabled.
func initMailer(cfg *config.Config, logger *slog.Logger) channels.Mailer {
	switch cfg.Mail.Provider {
	case "smtp":
		if cfg.Mail.SMTP.Host == "" {
			logger.Warn("email disabled: mail.smtp.host is not set")
			return nil
		}
		m, err := channels.NewSMTPMailer(channels.SMTPConfig{
			Host:     cfg.Mail.SMTP.Host,
			Port:     cfg.Mail.SMTP.Port,
			Username: cfg.Mail.SMTP.Username,
			Password: cfg.Mail.SMTP.Password,
			TLS:      cfg.Mail.SMTP.TLS,
			From:     cfg.Mail.From,
		})
		if err != nil {
			logger.Warn("email disabled", "error", err)
			return nil
		}
		return m
	default:
		if cfg.Mail.APIKey == "" {
			logger.Warn("email disabled: mail.api_key is not set")
			return nil
		}
		m, err := channels.NewHTTPMailer(cfg.Mail.APIURL, cfg.Mail.APIKey, cfg.Mail.From)
		if err != nil {
			logger.Warn("email disabled", "error", err)
			return nil
		}
		return m
	}
}

// initChannels creates the channel registry. Message channels are registered
// before the sound channel so a sweep sends email and chat first. A nil board
// leaves the sound channel out.
func initChannels(cfg *config.Config, board *channels.AlertBoard, logger *slog.Logger) (*channels.Registry, error) {
	reg := channels.NewRegistry()

	all := []channels.Channel{
		channels.NewEmailChannel(initMailer(cfg, logger)),
		channels.NewTelegramChannel(channels.NewBotSender(cfg.Telegram.APIEndpoint, cfg.Telegram.Timeout)),
	}
	if cfg.Notify.Webhook.URL != "" {
		all = append(all, channels.NewWebhookChannel(cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Secret))
	}
	if board != nil {
		all = append(all, channels.NewSoundChannel(board))
	}

	for _, c := range all {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// app is a fully wired BillTracker.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Storage
	clock     clock.Clock
	alerts    *channels.AlertBoard
	channels  *channels.Registry
	scheduler *reminder.Scheduler
}

// initApp wires storage, channels and the scheduler from config. Only a
// process serving /api/v1/alerts passes liveAlerts; without it the sound
// channel is left out and sound cadence timestamps are never written.
func initApp(ctx context.Context, liveAlerts bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clk := clock.New()
	var board *channels.AlertBoard
	if liveAlerts {
		board = channels.NewAlertBoard(clk)
	}
	reg, err := initChannels(cfg, board, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	sched := reminder.NewScheduler(store, reg, clk, logger, reminder.Options{
		Interval:         cfg.Reminder.Interval,
		SendTimeout:      cfg.Reminder.SendTimeout,
		Location:         loc,
		AdvanceOnFailure: cfg.Reminder.AdvanceOnFailure,
		RunOnStart:       cfg.Reminder.RunOnStart,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		clock:     clk,
		alerts:    board,
		channels:  reg,
		scheduler: sched,
	}, nil
}

// openStore loads config and opens storage only, for commands that do not
// send anything.
func openStore(ctx context.Context) (storage.Storage, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}
