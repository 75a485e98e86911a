// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"leadwatch/internal/lead"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Scrape    ScrapeConfig      `mapstructure:"scrape"`
	Browser   BrowserConfig     `mapstructure:"browser"`
	Facebook  CredentialsConfig `mapstructure:"facebook"`
	Nextdoor  CredentialsConfig `mapstructure:"nextdoor"`
	Notify    NotifyConfig      `mapstructure:"notify"`
	Publisher PublisherConfig   `mapstructure:"publisher"`
	Logging   LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls the operator HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DatabaseConfig selects and configures the match store backend.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ScrapeConfig governs scrape cycle behavior.
type ScrapeConfig struct {
	IntervalMinutes    int `mapstructure:"interval_minutes"`
	MaxPostsPerSource  int `mapstructure:"max_posts_per_source"`
	PageTimeoutSeconds int `mapstructure:"page_timeout_seconds"`
}

// BrowserConfig controls the headless browser used by connectors.
type BrowserConfig struct {
	Headless  bool   `mapstructure:"headless"`
	UserAgent string `mapstructure:"user_agent"`
}

// CredentialsConfig holds per-source-type login material. CookiesJSON is
// a JSON array of {name, value, domain, path} cookies; when set it is
// preferred over email/password.
type CredentialsConfig struct {
	Email       string `mapstructure:"email"`
	Password    string `mapstructure:"password"`
	CookiesJSON string `mapstructure:"cookies_json"`
}

// NotifyConfig governs the notify cycle and the channel defaults used to
// seed the notification settings row when none exists yet.
type NotifyConfig struct {
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	EmailEnabled    bool   `mapstructure:"email_enabled"`
	EmailAddress    string `mapstructure:"email_address"`
	EmailFrom       string `mapstructure:"email_from"`
	SMTPHost        string `mapstructure:"smtp_host"`
	SMTPPort        int    `mapstructure:"smtp_port"`
	SMTPUsername    string `mapstructure:"smtp_username"`
	SMTPPassword    string `mapstructure:"smtp_password"`
	SlackEnabled    bool   `mapstructure:"slack_enabled"`
	SlackWebhook    string `mapstructure:"slack_webhook"`
}

// PublisherConfig holds metadata for match event publishing.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.provider", "memory")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("scrape.interval_minutes", 60)
	v.SetDefault("scrape.max_posts_per_source", 20)
	v.SetDefault("scrape.page_timeout_seconds", 30)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("notify.interval_minutes", 5)
	v.SetDefault("notify.smtp_port", 587)
	v.SetDefault("notify.email_from", "alerts@leadwatch.local")
	v.SetDefault("publisher.provider", "noop")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Database.Provider {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set when database.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown database.provider %q", c.Database.Provider)
	}
	if c.Scrape.IntervalMinutes <= 0 {
		return fmt.Errorf("scrape.interval_minutes must be > 0")
	}
	if c.Scrape.MaxPostsPerSource <= 0 {
		return fmt.Errorf("scrape.max_posts_per_source must be > 0")
	}
	if c.Scrape.PageTimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.page_timeout_seconds must be > 0")
	}
	if c.Notify.IntervalMinutes <= 0 {
		return fmt.Errorf("notify.interval_minutes must be > 0")
	}
	if c.Notify.EmailEnabled && c.Notify.SMTPHost == "" {
		return fmt.Errorf("notify.smtp_host must be set when notify.email_enabled is true")
	}
	switch c.Publisher.Provider {
	case "noop":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicID == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_id must be set when publisher.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher.provider %q", c.Publisher.Provider)
	}
	return nil
}

// ScrapeInterval returns the period between scrape cycles.
func (c Config) ScrapeInterval() time.Duration {
	return time.Duration(c.Scrape.IntervalMinutes) * time.Minute
}

// NotifyInterval returns the period between notify cycles.
func (c Config) NotifyInterval() time.Duration {
	return time.Duration(c.Notify.IntervalMinutes) * time.Minute
}

// PageTimeout returns the per-page-load budget for connectors.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.Scrape.PageTimeoutSeconds) * time.Second
}

// Credentials returns the login material for a source type.
func (c Config) Credentials(t lead.SourceType) CredentialsConfig {
	if t == lead.SourceNextdoor {
		return c.Nextdoor
	}
	return c.Facebook
}

// DefaultNotificationSettings derives the settings used to seed the
// notification settings row on first use, mirroring how a fresh
// deployment behaves before the dashboard has written anything.
func (c Config) DefaultNotificationSettings() lead.NotificationSettings {
	return lead.NotificationSettings{
		EmailEnabled: c.Notify.EmailEnabled && c.Notify.EmailAddress != "",
		EmailAddress: c.Notify.EmailAddress,
		SlackEnabled: c.Notify.SlackEnabled && c.Notify.SlackWebhook != "",
		SlackWebhook: c.Notify.SlackWebhook,
	}
}
