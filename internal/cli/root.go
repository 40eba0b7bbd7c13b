package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdfmill/pdfmill/internal/config"
	"github.com/pdfmill/pdfmill/pkg/alerts"
	"github.com/pdfmill/pdfmill/pkg/convert"
	"github.com/pdfmill/pdfmill/pkg/dispatch"
	"github.com/pdfmill/pdfmill/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pdfmill",
	Short: "PDFMill - document to PDF conversion service",
	Long: `PDFMill converts uploaded documents (text, markdown, images, spreadsheets,
CSV and office files) to PDF over HTTP. Every client gets a daily conversion
quota, and each successful conversion is recorded in an append-only audit log.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.pdfmill/config.yaml)")
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
func initStorage(cfg *config.Config) (storage.Store, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// initDispatcher creates a fully wired dispatcher with its registry and store.
func initDispatcher(cfg *config.Config, logger *slog.Logger) (*dispatch.Dispatcher, *convert.Registry, storage.Store, error) {
	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	registry := convert.DefaultRegistry(convert.NewSofficeRenderer(cfg.Convert.SofficePath))
	notifiers := initNotifiers(cfg)

	timeout, _ := time.ParseDuration(cfg.Convert.Timeout)
	d := dispatch.NewDispatcher(registry, store, notifiers, logger, dispatch.Options{
		DailyLimit:     cfg.Quota.DailyLimit,
		Timeout:        timeout,
		ValidateOutput: cfg.Convert.ValidateOutput,
	})

	return d, registry, store, nil
}
