package config

import (
	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/ifuryst/postpone/internal/durable"
	"github.com/ifuryst/postpone/internal/store"
	"github.com/ifuryst/postpone/pkg/git"
	"github.com/ifuryst/postpone/pkg/logger"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logger    logger.Config   `yaml:"logger"`
	Store     store.Config    `yaml:"store"`
	Processor ProcessorConfig `yaml:"processor"`
	Accounts  Accounts        `yaml:"accounts"`
	Publisher PublisherConfig `yaml:"publisher"`
	Caption   CaptionConfig   `yaml:"caption"`
	Durable   DurableConfig   `yaml:"durable"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig points at the optional Postgres attempt journal
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type ProcessorConfig struct {
	// Timezone applied to scheduled_time values without an offset
	Timezone string `yaml:"timezone"`
}

type PublisherConfig struct {
	BaseURL       string `yaml:"base_url"`
	Timeout       string `yaml:"timeout"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

type CaptionConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens"`
	MaxChars    int    `yaml:"max_chars"`
	DefaultTone string `yaml:"default_tone"`
	Timeout     string `yaml:"timeout"`
}

type DurableConfig struct {
	Backend        string               `yaml:"backend"`
	Push           bool                 `yaml:"push"`
	CommitFailures bool                 `yaml:"commit_failures"`
	Git            git.RepositoryConfig `yaml:"git"`
	S3             durable.S3Config     `yaml:"s3"`
}

type SchedulerConfig struct {
	Cron    string `yaml:"cron"`
	Enabled bool   `yaml:"enabled"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5334
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Store.Root == "" {
		cfg.Store.Root = "."
	}
	if cfg.Store.PendingDir == "" {
		cfg.Store.PendingDir = "schedules"
	}
	if cfg.Store.ProcessedDir == "" {
		cfg.Store.ProcessedDir = "schedules/processed"
	}
	if cfg.Processor.Timezone == "" {
		cfg.Processor.Timezone = "Local"
	}
	if cfg.Publisher.BaseURL == "" {
		cfg.Publisher.BaseURL = "https://graph.facebook.com/v17.0"
	}
	if cfg.Publisher.Timeout == "" {
		cfg.Publisher.Timeout = "30s"
	}
	if cfg.Caption.BaseURL == "" {
		cfg.Caption.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Caption.Model == "" {
		cfg.Caption.Model = "gpt-4o-mini"
	}
	if cfg.Caption.MaxTokens == 0 {
		cfg.Caption.MaxTokens = 60
	}
	if cfg.Caption.MaxChars == 0 {
		cfg.Caption.MaxChars = 140
	}
	if cfg.Caption.Timeout == "" {
		cfg.Caption.Timeout = "20s"
	}
	if cfg.Durable.Backend == "" {
		cfg.Durable.Backend = durable.BackendGit
	}
	if cfg.Durable.Git.LocalPath == "" && cfg.Durable.Git.URL == "" {
		cfg.Durable.Git.LocalPath = cfg.Store.Root
	}
	if cfg.Scheduler.Cron == "" {
		cfg.Scheduler.Cron = "@every 15m"
	}
}
