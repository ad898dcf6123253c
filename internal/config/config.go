package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CLERK"

// Config holds all configuration for the bot. It is built once at startup
// and treated as read-only afterwards.
type Config struct {
	// APIURL is the MediaWiki Action API endpoint (".../w/api.php").
	APIURL string `yaml:"api_url" envconfig:"API_URL" validate:"required,url"`

	// User is the bot-password login name ("Account@BotPasswordName").
	User string `yaml:"user" envconfig:"BOT_USER"`

	// BotPassword is the bot password secret.
	BotPassword string `yaml:"bot_password" envconfig:"BOT_PASSWORD"`

	// OAuthToken is an owner-only OAuth 2 access token. When set it replaces
	// bot-password login.
	OAuthToken string `yaml:"oauth_token" envconfig:"OAUTH_TOKEN"`

	// UserAgent identifies the bot to the wiki, as Wikimedia policy requires.
	UserAgent string `yaml:"user_agent" envconfig:"USER_AGENT" validate:"required"`

	// MaxLag is the maxlag parameter sent with API requests, in seconds.
	MaxLag int `yaml:"max_lag" envconfig:"MAX_LAG" validate:"gte=0"`

	// RequestTimeout bounds a single HTTP request to the wiki.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`

	MembersPage     string `yaml:"members_page" envconfig:"MEMBERS_PAGE" validate:"required"`
	ProceedingsPage string `yaml:"proceedings_page" envconfig:"PROCEEDINGS_PAGE" validate:"required"`
	ReportPage      string `yaml:"target_page" envconfig:"REPORT_PAGE" validate:"required"`
	DataPage        string `yaml:"data_page" envconfig:"DATA_PAGE" validate:"required"`

	ReportSummary string `yaml:"report_summary" envconfig:"REPORT_SUMMARY"`
	DataSummary   string `yaml:"data_summary" envconfig:"DATA_SUMMARY"`

	// Banner opens the report page, normally an HTML comment telling
	// editors the page is generated.
	Banner string `yaml:"banner" envconfig:"BANNER"`

	// ParticipantColumn heads the name column of the report tables.
	ParticipantColumn string `yaml:"participant_column" envconfig:"PARTICIPANT_COLUMN"`

	// RunInterval is the pause between cycles.
	RunInterval time.Duration `yaml:"run_interval" envconfig:"RUN_INTERVAL" validate:"gt=0"`

	// RunRetention is how long run history is kept.
	RunRetention time.Duration `yaml:"run_retention" envconfig:"RUN_RETENTION" validate:"gt=0"`

	// DryRun sends generated pages to the local database instead of the wiki.
	DryRun bool `yaml:"dry_run" envconfig:"DRY_RUN"`

	// DatabasePath is the SQLite file for run history and dry-run pages.
	// Empty disables both.
	DatabasePath string `yaml:"database_path" envconfig:"DATABASE_PATH" validate:"required_if=DryRun true"`

	// HTTPAddr is the status server listen address. Empty disables it.
	HTTPAddr string `yaml:"http_addr" envconfig:"HTTP_ADDR"`

	// RedisAddr enables publishing cycle summaries when set.
	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
	RedisChannel  string `yaml:"redis_channel" envconfig:"REDIS_CHANNEL" validate:"required_with=RedisAddr"`

	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT" validate:"oneof=json text"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		APIURL:            "https://en.wikipedia.org/w/api.php",
		UserAgent:         "ActivityClerk/1.0 (committee activity reports)",
		MaxLag:            5,
		RequestTimeout:    30 * time.Second,
		MembersPage:       "Wikipedia:Arbitration Committee/Members",
		ProceedingsPage:   "User:ActivityClerk/Ongoing proceedings",
		ReportPage:        "User:ActivityClerk/Activity",
		DataPage:          "User:ActivityClerk/Activity/data",
		ReportSummary:     "update activity report",
		DataSummary:       "update data template",
		Banner:            "<!-- This page is updated automatically by a bot. Manual changes will be overwritten. -->",
		ParticipantColumn: "Arbitrator",
		RunInterval:       10 * time.Minute,
		RunRetention:      30 * 24 * time.Hour,
		DatabasePath:      "activity-clerk.db",
		RedisChannel:      "activity-clerk:cycles",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load builds the configuration in layers: defaults, then the YAML settings
// file at settingsPath (skipped when empty or missing), then a .env file if
// present, then CLERK_* environment variables. The result is validated.
func Load(settingsPath string) (*Config, error) {
	cfg := Default()

	if settingsPath != "" {
		if err := cfg.loadSettings(settingsPath); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadSettings(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and credential pairing.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if (c.User == "") != (c.BotPassword == "") {
		return fmt.Errorf("invalid config: %s_BOT_USER and %s_BOT_PASSWORD must be set together", EnvPrefix, EnvPrefix)
	}
	return nil
}

// ServiceConfig extracts the pipeline settings.
func (c *Config) ServiceConfig() domain.ServiceConfig {
	return domain.ServiceConfig{
		MembersPage:     c.MembersPage,
		ProceedingsPage: c.ProceedingsPage,
		ReportPage:      c.ReportPage,
		DataPage:        c.DataPage,
		ReportSummary:   c.ReportSummary,
		DataSummary:     c.DataSummary,
		Render: domain.RenderOptions{
			Banner:            c.Banner,
			ParticipantColumn: c.ParticipantColumn,
		},
	}
}

// Authenticated reports whether the bot has credentials to edit.
func (c *Config) Authenticated() bool {
	return c.OAuthToken != "" || c.User != ""
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
