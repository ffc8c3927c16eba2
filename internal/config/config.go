// Package config loads and validates digest configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/JakeFAU/devops-job-digest/internal/sites"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Sites    []sites.Site   `mapstructure:"sites"`
	Digest   DigestConfig   `mapstructure:"digest"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the HTTP server started by serve.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScrapeConfig governs fetching, retries and fan-out.
type ScrapeConfig struct {
	UserAgent        string            `mapstructure:"user_agent"`
	RequestTimeout   time.Duration     `mapstructure:"request_timeout"`
	MaxAttempts      int               `mapstructure:"max_attempts"`
	BackoffUnit      time.Duration     `mapstructure:"backoff_unit"`
	BackoffMax       time.Duration     `mapstructure:"backoff_max"`
	Concurrency      int               `mapstructure:"concurrency"`
	RateLimitPerHost float64           `mapstructure:"rate_limit_per_host"`
	RateLimitBurst   int               `mapstructure:"rate_limit_burst"`
	MaxTitleLength   int               `mapstructure:"max_title_length"`
	Headers          map[string]string `mapstructure:"headers"`
}

// FilterConfig holds the phrase lists a posting's anchor text must match.
type FilterConfig struct {
	Keywords   []string `mapstructure:"keywords"`
	RemoteTags []string `mapstructure:"remote_tags"`
}

// DigestConfig controls rendering and archiving of the digest.
type DigestConfig struct {
	SubjectPrefix string `mapstructure:"subject_prefix"`
	ArchiveDir    string `mapstructure:"archive_dir"`
}

// DeliveryConfig holds SMTP settings. APIKey is the only secret.
type DeliveryConfig struct {
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	APIKey   string   `mapstructure:"api_key"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// ScheduleConfig drives the serve command's cron trigger.
type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("delivery.api_key", "DIGEST_DELIVERY_API_KEY", "SENDGRID_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind delivery credential: %w", err)
	}

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
	if len(cfg.Sites) == 0 {
		cfg.Sites = sites.Default()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (JobScraper)")
	v.SetDefault("scrape.request_timeout", 20*time.Second)
	v.SetDefault("scrape.max_attempts", 3)
	v.SetDefault("scrape.backoff_unit", time.Second)
	v.SetDefault("scrape.backoff_max", 30*time.Second)
	v.SetDefault("scrape.concurrency", 1)
	v.SetDefault("scrape.rate_limit_per_host", 0)
	v.SetDefault("scrape.rate_limit_burst", 1)
	v.SetDefault("scrape.max_title_length", 150)
	v.SetDefault("filter.keywords", []string{"devops", "sre", "infrastructure", "site reliability"})
	v.SetDefault("filter.remote_tags", []string{"work from anywhere", "worldwide remote"})
	v.SetDefault("digest.subject_prefix", "Daily Worldwide Remote DevOps Job Digest")
	v.SetDefault("digest.archive_dir", "")
	v.SetDefault("delivery.smtp_host", "smtp.sendgrid.net")
	v.SetDefault("delivery.smtp_port", 587)
	v.SetDefault("delivery.username", "apikey")
	v.SetDefault("delivery.from", "noreply@example.com")
	v.SetDefault("delivery.to", []string{})
	v.SetDefault("schedule.cron", "0 7 * * *")
	v.SetDefault("schedule.run_on_start", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scrape.RequestTimeout <= 0 {
		return fmt.Errorf("scrape.request_timeout must be > 0")
	}
	if c.Scrape.MaxAttempts <= 0 {
		return fmt.Errorf("scrape.max_attempts must be > 0")
	}
	if c.Scrape.BackoffUnit < 0 || c.Scrape.BackoffMax < 0 {
		return fmt.Errorf("scrape.backoff_unit and scrape.backoff_max must be >= 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.Scrape.RateLimitPerHost < 0 {
		return fmt.Errorf("scrape.rate_limit_per_host must be >= 0")
	}
	if c.Scrape.MaxTitleLength <= 0 {
		return fmt.Errorf("scrape.max_title_length must be > 0")
	}
	if len(c.Filter.Keywords) == 0 || len(c.Filter.RemoteTags) == 0 {
		return fmt.Errorf("filter.keywords and filter.remote_tags must not be empty")
	}
	if err := sites.Validate(c.Sites); err != nil {
		return fmt.Errorf("sites: %w", err)
	}
	if c.Delivery.SMTPHost == "" || c.Delivery.SMTPPort <= 0 {
		return fmt.Errorf("delivery.smtp_host and delivery.smtp_port are required")
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron %q: %w", c.Schedule.Cron, err)
	}
	return nil
}

// DeliveryProblems lists settings that will make delivery fail at send time.
// They are reported, not rejected, so a run still scrapes and exits cleanly.
func (c Config) DeliveryProblems() []string {
	if !c.DeliveryConfigured() {
		return nil
	}
	var problems []string
	if c.Delivery.From == "" {
		problems = append(problems, "delivery.from is empty")
	}
	if len(c.Delivery.To) == 0 {
		problems = append(problems, "delivery.to lists no recipients")
	}
	return problems
}

// DeliveryConfigured reports whether a delivery credential was supplied.
func (c Config) DeliveryConfigured() bool {
	return c.Delivery.APIKey != ""
}
