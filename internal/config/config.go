package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"redfishd/internal/events"
)

type Config struct {
	ListenAddr         string   `mapstructure:"listen_addr"`
	TLSCertFile        string   `mapstructure:"tls_cert_file"`
	TLSKeyFile         string   `mapstructure:"tls_key_file"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_seconds"`

	Log          LogConfig          `mapstructure:"log"`
	Provider     ProviderConfig     `mapstructure:"provider"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Chassis      ChassisConfig      `mapstructure:"chassis"`
	EventService EventServiceConfig `mapstructure:"event_service"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or console
	Output     string `mapstructure:"output"` // stdout, stderr or a file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type ProviderConfig struct {
	Kind        string `mapstructure:"kind"` // static or dbus
	FixturePath string `mapstructure:"fixture_path"`
}

type RegistryConfig struct {
	Dir string `mapstructure:"dir"`
}

type ChassisConfig struct {
	ID string `mapstructure:"id"`
}

type EventServiceConfig struct {
	ServiceEnabled         bool   `mapstructure:"service_enabled"`
	RetryAttempts          int    `mapstructure:"retry_attempts"`
	RetryIntervalSeconds   int    `mapstructure:"retry_interval_seconds"`
	Workers                int    `mapstructure:"workers"`
	DeliveryTimeoutSeconds int    `mapstructure:"delivery_timeout_seconds"`
	Store                  string `mapstructure:"store"` // file or sqlite
	SubscriptionsPath      string `mapstructure:"subscriptions_path"`
	DatabasePath           string `mapstructure:"database_path"`
	SigningKeyPath         string `mapstructure:"signing_key_path"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// EnvPrefix prefixes environment overrides, e.g. RFD_EVENT_SERVICE_RETRY_ATTEMPTS.
const EnvPrefix = "RFD"

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("shutdown_timeout_seconds", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("provider.kind", "static")
	v.SetDefault("provider.fixture_path", "")
	v.SetDefault("registry.dir", "")
	v.SetDefault("chassis.id", "1U")

	v.SetDefault("event_service.service_enabled", true)
	v.SetDefault("event_service.retry_attempts", 3)
	v.SetDefault("event_service.retry_interval_seconds", 5)
	v.SetDefault("event_service.workers", 8)
	v.SetDefault("event_service.delivery_timeout_seconds", 10)
	v.SetDefault("event_service.store", "file")
	v.SetDefault("event_service.subscriptions_path", "/var/tmp/subscriptions.json")
	v.SetDefault("event_service.database_path", "./data/subscriptions.db")
	v.SetDefault("event_service.signing_key_path", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration from path, or when path is empty from
// rf-server.yaml in /etc/redfishd, $HOME/.redfishd or the working directory.
// A missing file is not an error; defaults and RFD_* variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rf-server")
		v.AddConfigPath("/etc/redfishd/")
		v.AddConfigPath("$HOME/.redfishd")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	es := c.EventService
	if es.RetryAttempts < 1 {
		errs = append(errs, fmt.Sprintf("event_service.retry_attempts must be at least 1, got %d", es.RetryAttempts))
	}
	if es.RetryIntervalSeconds < 0 {
		errs = append(errs, fmt.Sprintf("event_service.retry_interval_seconds must not be negative, got %d", es.RetryIntervalSeconds))
	}
	if es.Workers < 1 {
		errs = append(errs, fmt.Sprintf("event_service.workers must be at least 1, got %d", es.Workers))
	}
	if es.DeliveryTimeoutSeconds < 0 {
		errs = append(errs, "event_service.delivery_timeout_seconds must not be negative")
	}
	switch es.Store {
	case "file":
		if es.SubscriptionsPath == "" {
			errs = append(errs, "event_service.subscriptions_path is required for the file store")
		}
	case "sqlite":
		if es.DatabasePath == "" {
			errs = append(errs, "event_service.database_path is required for the sqlite store")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown event_service.store %q", es.Store))
	}
	switch c.Provider.Kind {
	case "static", "dbus":
	default:
		errs = append(errs, fmt.Sprintf("unknown provider.kind %q", c.Provider.Kind))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}
	if c.Chassis.ID == "" {
		errs = append(errs, "chassis.id must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Publisher converts the event service section to publisher settings.
func (c *Config) Publisher() events.Config {
	es := c.EventService
	return events.Config{
		ServiceEnabled: es.ServiceEnabled,
		RetryAttempts:  es.RetryAttempts,
		RetryInterval:  time.Duration(es.RetryIntervalSeconds) * time.Second,
		Workers:        es.Workers,
		Timeout:        time.Duration(es.DeliveryTimeoutSeconds) * time.Second,
	}
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
