package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// IDScheme selects how message identifiers are minted while paging.
type IDScheme string

const (
	// IDSchemeSequence mints "mailbox:sequence" tokens.
	IDSchemeSequence IDScheme = "sequence"
	// IDSchemeUID mints "mailbox;UID=n" tokens when the server reports UIDs.
	IDSchemeUID IDScheme = "uid"
)

// ServerConfig holds connection settings shared by every provider.
type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`

	// StartTLS upgrades a plain connection instead of dialing implicit TLS.
	StartTLS bool `mapstructure:"starttls" yaml:"starttls"`
}

// Fallbacks are the placeholder strings shown when a header is missing.
type Fallbacks struct {
	Sender    string `mapstructure:"sender" yaml:"sender"`
	Recipient string `mapstructure:"recipient" yaml:"recipient"`
	Subject   string `mapstructure:"subject" yaml:"subject"`
	Date      string `mapstructure:"date" yaml:"date"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// Providers is the allow-list of email domains a user may log in with.
	Providers []string `mapstructure:"providers" yaml:"providers"`

	IMAP ServerConfig `mapstructure:"imap" yaml:"imap"`
	SMTP ServerConfig `mapstructure:"smtp" yaml:"smtp"`

	DialTimeoutSec int `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec"`

	IDScheme IDScheme `mapstructure:"id_scheme" yaml:"id_scheme"`

	// PageSize caps how many messages one list request walks. Zero walks
	// to the end of the mailbox.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	Fallbacks Fallbacks `mapstructure:"fallbacks" yaml:"fallbacks"`
	Log       LogConfig `mapstructure:"log" yaml:"log"`
}

// DialTimeout returns the configured dial timeout.
func (c *AppConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSec) * time.Second
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailclient/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailclient", "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Providers:      append([]string(nil), DefaultProviders...),
		IMAP:           ServerConfig{Port: 993},
		SMTP:           ServerConfig{Port: 465},
		DialTimeoutSec: 30,
		IDScheme:       IDSchemeSequence,
		Fallbacks: Fallbacks{
			Sender:    "[unknown sender]",
			Recipient: "[unknown recipient]",
			Subject:   "[no subject]",
			Date:      "[unknown date]",
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with MAILCLIENT_ override file values
// (MAILCLIENT_SMTP_PORT, MAILCLIENT_LOG_LEVEL, ...). If the file does not
// exist, defaults plus environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultAppConfig()
	v.SetDefault("providers", def.Providers)
	v.SetDefault("imap.port", def.IMAP.Port)
	v.SetDefault("imap.starttls", def.IMAP.StartTLS)
	v.SetDefault("smtp.port", def.SMTP.Port)
	v.SetDefault("smtp.starttls", def.SMTP.StartTLS)
	v.SetDefault("dial_timeout_sec", def.DialTimeoutSec)
	v.SetDefault("id_scheme", string(def.IDScheme))
	v.SetDefault("page_size", def.PageSize)
	v.SetDefault("fallbacks.sender", def.Fallbacks.Sender)
	v.SetDefault("fallbacks.recipient", def.Fallbacks.Recipient)
	v.SetDefault("fallbacks.subject", def.Fallbacks.Subject)
	v.SetDefault("fallbacks.date", def.Fallbacks.Date)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *AppConfig) validate() error {
	if len(c.Providers) == 0 {
		return errors.New("providers must list at least one domain")
	}
	switch c.IDScheme {
	case IDSchemeSequence, IDSchemeUID:
	default:
		return fmt.Errorf("unknown id_scheme %q", c.IDScheme)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative, got %d", c.PageSize)
	}
	if c.DialTimeoutSec <= 0 {
		c.DialTimeoutSec = 30
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("providers", cfg.Providers)
	v.Set("imap", cfg.IMAP)
	v.Set("smtp", cfg.SMTP)
	v.Set("dial_timeout_sec", cfg.DialTimeoutSec)
	v.Set("id_scheme", string(cfg.IDScheme))
	v.Set("page_size", cfg.PageSize)
	v.Set("fallbacks", cfg.Fallbacks)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
