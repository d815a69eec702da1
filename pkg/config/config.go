// Package config loads the backend configuration from YAML with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/auralabs/aura/pkg/provider"
)

// Default configuration values.
const (
	DefaultBind            = "127.0.0.1:8700"
	DefaultApprovalTimeout = 30 * time.Minute
	DefaultRetention       = time.Hour
	DefaultSweepInterval   = 5 * time.Minute
	DefaultBlockTimeout    = 5 * time.Minute
	DefaultGateMode        = "async"
	DefaultBusKind         = "memory"
	DefaultMaxCompilations = 3
	DefaultLogLevel        = "info"
)

// Config is the complete backend configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Approval  ApprovalConfig  `yaml:"approval"`
	Bus       BusConfig       `yaml:"bus"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Latex     LatexConfig     `yaml:"latex"`
	Providers ProvidersConfig `yaml:"providers"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// NotifyConfig enables optional out-of-band channels for the approval
// feed. Both are off unless configured.
type NotifyConfig struct {
	SlackWebhook     string `yaml:"slack_webhook"`
	SlackChannel     string `yaml:"slack_channel"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Bind      string `yaml:"bind"`
	JWTSecret string `yaml:"jwt_secret"`

	// ProjectsDir is the directory holding LaTeX projects; operations
	// execute against subdirectories of it.
	ProjectsDir string `yaml:"projects_dir"`
}

// ApprovalConfig tunes the approval pipeline.
type ApprovalConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	Retention     time.Duration `yaml:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// Mode is "async" or "blocking".
	Mode         string        `yaml:"mode"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// BusConfig selects the event transport: "memory" or "nats".
type BusConfig struct {
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls the JSONL logs.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// LatexConfig tunes compilation.
type LatexConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ProvidersConfig holds LLM endpoints.
type ProvidersConfig struct {
	OpenRouterKey string            `yaml:"openrouter_key"`
	Active        string            `yaml:"active"`
	Custom        []provider.Config `yaml:"custom"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Bind:        DefaultBind,
			ProjectsDir: filepath.Join(home, "aura", "projects"),
		},
		Approval: ApprovalConfig{
			Timeout:       DefaultApprovalTimeout,
			Retention:     DefaultRetention,
			SweepInterval: DefaultSweepInterval,
			Mode:          DefaultGateMode,
			BlockTimeout:  DefaultBlockTimeout,
		},
		Bus:     BusConfig{Kind: DefaultBusKind},
		Storage: StorageConfig{Path: filepath.Join(home, ".aura", "aura.db")},
		Logging: LoggingConfig{Dir: filepath.Join(home, ".aura", "logs"), Level: DefaultLogLevel},
		Latex:   LatexConfig{MaxConcurrent: DefaultMaxCompilations, Timeout: 2 * time.Minute},
	}
}

// Load reads ~/.aura/config.yaml, falling back to defaults when the
// file is missing, then applies environment overrides.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return LoadFromPath(filepath.Join(home, ".aura", "config.yaml"))
}

// LoadFromPath reads a specific config file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets secrets stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("AURA_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("AURA_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("AURA_OPENROUTER_KEY"); v != "" {
		c.Providers.OpenRouterKey = v
	}
	if v := os.Getenv("AURA_NATS_URL"); v != "" {
		c.Bus.Kind = "nats"
		c.Bus.URL = v
	}
	if v := os.Getenv("AURA_PROJECTS_DIR"); v != "" {
		c.Server.ProjectsDir = v
	}
	if v := os.Getenv("AURA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AURA_SLACK_WEBHOOK"); v != "" {
		c.Notify.SlackWebhook = v
	}
	if v := os.Getenv("AURA_TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.TelegramBotToken = v
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.Server.ProjectsDir == "" {
		c.Server.ProjectsDir = def.Server.ProjectsDir
	}
	if c.Approval.Timeout <= 0 {
		c.Approval.Timeout = DefaultApprovalTimeout
	}
	if c.Approval.Retention <= 0 {
		c.Approval.Retention = DefaultRetention
	}
	if c.Approval.SweepInterval <= 0 {
		c.Approval.SweepInterval = DefaultSweepInterval
	}
	if c.Approval.Mode == "" {
		c.Approval.Mode = DefaultGateMode
	}
	if c.Approval.BlockTimeout <= 0 {
		c.Approval.BlockTimeout = DefaultBlockTimeout
	}
	if c.Bus.Kind == "" {
		c.Bus.Kind = DefaultBusKind
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = def.Logging.Dir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Latex.MaxConcurrent <= 0 {
		c.Latex.MaxConcurrent = DefaultMaxCompilations
	}
	if c.Latex.Timeout <= 0 {
		c.Latex.Timeout = def.Latex.Timeout
	}
}

func (c *Config) validate() error {
	switch c.Approval.Mode {
	case "async", "blocking":
	default:
		return fmt.Errorf("approval.mode must be async or blocking, got %q", c.Approval.Mode)
	}
	switch c.Bus.Kind {
	case "memory":
	case "nats":
		if c.Bus.URL == "" {
			return fmt.Errorf("bus.url is required when bus.kind is nats")
		}
	default:
		return fmt.Errorf("bus.kind must be memory or nats, got %q", c.Bus.Kind)
	}
	return nil
}
