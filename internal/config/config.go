package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all PDFMill configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	Convert ConvertConfig `mapstructure:"convert"`
	Output  OutputConfig  `mapstructure:"output"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Listen         string `mapstructure:"listen"`
	ReadTimeout    string `mapstructure:"read_timeout"`
	WriteTimeout   string `mapstructure:"write_timeout"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// QuotaConfig defines the per-client usage allowance.
type QuotaConfig struct {
	DailyLimit int `mapstructure:"daily_limit"`
}

// ConvertConfig defines conversion engine settings.
type ConvertConfig struct {
	Timeout        string `mapstructure:"timeout"`
	SofficePath    string `mapstructure:"soffice_path"`
	ValidateOutput bool   `mapstructure:"validate_output"`
}

// OutputConfig defines optional server-side artifact retention.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// AlertsConfig defines alerting integrations.
type AlertsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
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

		v.AddConfigPath(filepath.Join(home, ".pdfmill"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.max_upload_bytes", 16*1024*1024) // 16 MB
	v.SetDefault("storage.path", filepath.Join(home, ".pdfmill", "pdfmill.db"))
	v.SetDefault("quota.daily_limit", 5)
	v.SetDefault("convert.timeout", "30s")
	v.SetDefault("convert.soffice_path", "soffice")
	v.SetDefault("convert.validate_output", true)
	v.SetDefault("output.dir", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("alerts.slack.channel", "#conversions")

	// Environment variables
	v.SetEnvPrefix("PDFMILL")
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

	return &cfg, nil
}
