package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the configuration file
const (
	EnvRepository = "REPO_WATCHER_REPOSITORY"
	EnvToken      = "REPO_WATCHER_GITHUB_TOKEN"
	EnvGitHubCLI  = "GITHUB_TOKEN"
	EnvWebhookURL = "REPO_WATCHER_DISCORD_WEBHOOK_URL"
	EnvInterval   = "REPO_WATCHER_INTERVAL"
)

// KeyringTokenKey is the keyring entry holding the GitHub token
const KeyringTokenKey = "github_token"

var repositoryPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Config represents the application configuration
type Config struct {
	GitHub    GitHubConfig    `yaml:"github"`
	Discord   DiscordConfig   `yaml:"discord"`
	Notifiers NotifiersConfig `yaml:"notifiers"`
	Watch     WatchConfig     `yaml:"watch"`
	Log       LogConfig       `yaml:"log"`
}

// GitHubConfig describes the watched repository and how to reach the API
type GitHubConfig struct {
	Repository     string        `yaml:"repository" validate:"required,repository"`
	Token          string        `yaml:"token" validate:"required"`
	APIURL         string        `yaml:"api_url" validate:"omitempty,url"`
	WebURL         string        `yaml:"web_url" validate:"required,url"`
	KeyringService string        `yaml:"keyring_service"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DiscordConfig holds the chat webhook
type DiscordConfig struct {
	WebhookURL string        `yaml:"webhook_url" validate:"required,url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// NotifiersConfig holds the optional extra notification sinks
type NotifiersConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
}

// SMTPConfig enables e-mail notifications when Host is set
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from" validate:"required_with=Host"`
	To       []string `yaml:"to" validate:"required_with=Host,dive,email"`
}

// WatchConfig controls the polling loop
type WatchConfig struct {
	Interval       time.Duration `yaml:"interval" validate:"min=1s"`
	SeedOnStart    bool          `yaml:"seed_on_start"`
	BranchBaseline bool          `yaml:"branch_baseline"`
}

// LogConfig controls logging output
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=json text"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Stdout     bool   `yaml:"stdout"`
}

// Default returns the configuration used for values absent from the file
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			WebURL:  "https://github.com",
			Timeout: 15 * time.Second,
		},
		Discord: DiscordConfig{
			Timeout: 15 * time.Second,
		},
		Notifiers: NotifiersConfig{
			SMTP: SMTPConfig{Port: 587},
		},
		Watch: WatchConfig{
			Interval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the configuration file, applies environment overrides and the
// keyring fallback for the token, and validates the result.
// A missing file is not an error; the environment may supply everything.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("Configuration file not found, using defaults and environment", "path", path)
	case err != nil:
		return nil, fmt.Errorf("error reading configuration file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing YAML: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	// Trim spaces from secrets pasted into the file or environment
	originalToken := config.GitHub.Token
	originalWebhook := config.Discord.WebhookURL
	config.GitHub.Token = strings.TrimSpace(config.GitHub.Token)
	config.Discord.WebhookURL = strings.TrimSpace(config.Discord.WebhookURL)
	if config.GitHub.Token != originalToken {
		slog.Debug("Trimmed spaces from GitHub token in config.")
	}
	if config.Discord.WebhookURL != originalWebhook {
		slog.Debug("Trimmed spaces from Discord webhook URL in config.")
	}

	if config.GitHub.Token == "" && config.GitHub.KeyringService != "" {
		config.GitHub.Token = tokenFromKeyring(config.GitHub.KeyringService)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvRepository); v != "" {
		c.GitHub.Repository = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.GitHub.Token = v
	} else if v := os.Getenv(EnvGitHubCLI); v != "" && c.GitHub.Token == "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv(EnvWebhookURL); v != "" {
		c.Discord.WebhookURL = v
	}
	if v := os.Getenv(EnvInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvInterval, v, err)
		}
		c.Watch.Interval = d
	}
	return nil
}

func tokenFromKeyring(service string) string {
	token, err := keyring.Get(service, KeyringTokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("No GitHub token in keyring", "service", service)
		return ""
	}
	if err != nil {
		slog.Warn("Failed to read GitHub token from keyring", "service", service, "error", err)
		return ""
	}
	return strings.TrimSpace(token)
}

// Validate checks required values and formats
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("repository", validateRepository); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func validateRepository(fl validator.FieldLevel) bool {
	return repositoryPattern.MatchString(fl.Field().String())
}

// OwnerAndName splits the repository identifier
func (g GitHubConfig) OwnerAndName() (owner, name string) {
	owner, name, _ = strings.Cut(g.Repository, "/")
	return owner, name
}

// SMTPEnabled reports whether the e-mail notifier is configured
func (c *Config) SMTPEnabled() bool {
	return c.Notifiers.SMTP.Host != ""
}
