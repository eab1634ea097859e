package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Rate       RateConfig       `yaml:"rate" mapstructure:"rate"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// VerifyConfig configures the verification channels.
type VerifyConfig struct {
	Email          EmailConfig `yaml:"email" mapstructure:"email"`
	Phone          PhoneConfig `yaml:"phone" mapstructure:"phone"`
	ValidThreshold float64     `yaml:"valid_threshold" mapstructure:"valid_threshold"`
}

// EmailConfig configures the email channel stages.
type EmailConfig struct {
	DNSTimeoutSecs  int    `yaml:"dns_timeout_secs" mapstructure:"dns_timeout_secs"`
	SMTPTimeoutSecs int    `yaml:"smtp_timeout_secs" mapstructure:"smtp_timeout_secs"`
	SMTPHelloDomain string `yaml:"smtp_hello_domain" mapstructure:"smtp_hello_domain"`
	MaxSuggestions  int    `yaml:"max_suggestions" mapstructure:"max_suggestions"`
}

// PhoneConfig configures the phone channel.
type PhoneConfig struct {
	DefaultRegion string `yaml:"default_region" mapstructure:"default_region"`
}

// BatchConfig configures batch orchestration.
type BatchConfig struct {
	ContactDelayMs       int `yaml:"contact_delay_ms" mapstructure:"contact_delay_ms"`
	Workers              int `yaml:"workers" mapstructure:"workers"`
	MaxConcurrentBatches int `yaml:"max_concurrent_batches" mapstructure:"max_concurrent_batches"`
}

// RateConfig holds per-collaborator request budgets in requests per second.
// SMTP, DNS, and the identity registry have independent budgets.
type RateConfig struct {
	DNSRPS      float64 `yaml:"dns_rps" mapstructure:"dns_rps"`
	SMTPRPS     float64 `yaml:"smtp_rps" mapstructure:"smtp_rps"`
	RegistryRPS float64 `yaml:"registry_rps" mapstructure:"registry_rps"`
}

// SalesforceConfig holds Salesforce JWT auth settings. When credentials are
// absent the fixture registry is used instead of the live one.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// HasCredentials reports whether a live Salesforce connection is configured.
func (c SalesforceConfig) HasCredentials() bool {
	return c.ClientID != "" && c.Username != "" && c.KeyPath != ""
}

// AnthropicConfig holds Anthropic API settings for batch insights.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "contacts.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("verify.valid_threshold", 0.7)
	v.SetDefault("verify.email.dns_timeout_secs", 10)
	v.SetDefault("verify.email.smtp_timeout_secs", 10)
	v.SetDefault("verify.email.smtp_hello_domain", "verification.test")
	v.SetDefault("verify.email.max_suggestions", 5)
	v.SetDefault("verify.phone.default_region", "US")
	v.SetDefault("batch.contact_delay_ms", 100)
	v.SetDefault("batch.workers", 1)
	v.SetDefault("batch.max_concurrent_batches", 5)
	v.SetDefault("rate.dns_rps", 5)
	v.SetDefault("rate.smtp_rps", 2)
	v.SetDefault("rate.registry_rps", 5)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
