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

// Password schemes for newly provisioned employees.
const (
	PasswordSchemeRandom = "random"
	PasswordSchemeLegacy = "legacy"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	Timezone        string `mapstructure:"timezone" yaml:"timezone"`
	SessionTTLHours int    `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
	SecureCookies   bool   `mapstructure:"secure_cookies" yaml:"secure_cookies"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// EmployeeConfig controls employee provisioning.
type EmployeeConfig struct {
	// PasswordScheme is "random" or "legacy".
	PasswordScheme string `mapstructure:"password_scheme" yaml:"password_scheme"`

	// PasswordPrefix is the fixed prefix used by the legacy scheme.
	PasswordPrefix string `mapstructure:"password_prefix" yaml:"password_prefix"`
}

// NotificationConfig holds notification listing preferences.
type NotificationConfig struct {
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// SweepConfig schedules the background overdue check. An empty schedule
// disables it.
type SweepConfig struct {
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// MailConfig enables e-mail copies of notifications.
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	From     string `mapstructure:"from" yaml:"from"`

	// TLS selects implicit TLS (usually port 465). Otherwise STARTTLS is
	// used when the server offers it.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// BaseURL is the public root used to build task links in mail bodies.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server        ServerConfig       `mapstructure:"server" yaml:"server"`
	Database      DatabaseConfig     `mapstructure:"database" yaml:"database"`
	Employees     EmployeeConfig     `mapstructure:"employees" yaml:"employees"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Sweep         SweepConfig        `mapstructure:"sweep" yaml:"sweep"`
	Mail          MailConfig         `mapstructure:"mail" yaml:"mail"`
}

// Location resolves the configured timezone, defaulting to time.Local.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Server.Timezone == "" || c.Server.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Server.Timezone, err)
	}
	return loc, nil
}

// SessionTTL returns the session lifetime.
func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLHours) * time.Hour
}

// configDir returns ~/.config/taskboard, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "taskboard")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/taskboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			Timezone:        "Local",
			SessionTTLHours: 24 * 14,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(configDir(), "taskboard.db"),
		},
		Employees: EmployeeConfig{
			PasswordScheme: PasswordSchemeRandom,
			PasswordPrefix: "1234",
		},
		Notifications: NotificationConfig{
			PageSize: 10,
		},
		Mail: MailConfig{
			Port: 587,
		},
	}
}

// setDefaults mirrors DefaultAppConfig into viper so missing keys resolve.
func setDefaults(v *viper.Viper, d *AppConfig) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.timezone", d.Server.Timezone)
	v.SetDefault("server.session_ttl_hours", d.Server.SessionTTLHours)
	v.SetDefault("server.secure_cookies", d.Server.SecureCookies)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("employees.password_scheme", d.Employees.PasswordScheme)
	v.SetDefault("employees.password_prefix", d.Employees.PasswordPrefix)
	v.SetDefault("notifications.page_size", d.Notifications.PageSize)
	v.SetDefault("sweep.schedule", d.Sweep.Schedule)
	v.SetDefault("mail.enabled", d.Mail.Enabled)
	v.SetDefault("mail.host", d.Mail.Host)
	v.SetDefault("mail.port", d.Mail.Port)
	v.SetDefault("mail.username", d.Mail.Username)
	v.SetDefault("mail.from", d.Mail.From)
	v.SetDefault("mail.tls", d.Mail.TLS)
	v.SetDefault("mail.base_url", d.Mail.BaseURL)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with TASKBOARD_ override file values
// (e.g. TASKBOARD_SERVER_ADDR). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultAppConfig())

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted silently.
func (c *AppConfig) Validate() error {
	switch c.Employees.PasswordScheme {
	case PasswordSchemeRandom, PasswordSchemeLegacy:
	default:
		return fmt.Errorf("employees.password_scheme must be %q or %q, got %q",
			PasswordSchemeRandom, PasswordSchemeLegacy, c.Employees.PasswordScheme)
	}
	if c.Notifications.PageSize <= 0 {
		c.Notifications.PageSize = 10
	}
	if c.Server.SessionTTLHours <= 0 {
		c.Server.SessionTTLHours = 24 * 14
	}
	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.From == "") {
		return fmt.Errorf("mail.host and mail.from are required when mail is enabled")
	}
	if _, err := c.Location(); err != nil {
		return err
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

	v.Set("server", cfg.Server)
	v.Set("database", cfg.Database)
	v.Set("employees", cfg.Employees)
	v.Set("notifications", cfg.Notifications)
	v.Set("sweep", cfg.Sweep)
	v.Set("mail", cfg.Mail)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
