package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the digest agent.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	PromptPath     string        `mapstructure:"prompt_path"`
	DataDir        string        `mapstructure:"data_dir"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains the completion provider settings.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model is required")
	}
	return nil
}

// SearchConfig contains context-gathering settings.
type SearchConfig struct {
	Provider    string        `mapstructure:"provider"` // tavily, duckduckgo, feeds, none
	Query       string        `mapstructure:"query"`
	MaxResults  int           `mapstructure:"max_results"`
	MaxBlobSize int           `mapstructure:"max_blob_size"`
	Freshness   time.Duration `mapstructure:"freshness"`
	ProbeLinks  bool          `mapstructure:"probe_links"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Tavily      TavilyConfig  `mapstructure:"tavily"`
	FeedsFile   string        `mapstructure:"feeds_file"`
}

// TavilyConfig contains Tavily API settings.
type TavilyConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	CABundle string `mapstructure:"ca_bundle"`
	Depth    string `mapstructure:"depth"`
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "tavily":
		if strings.TrimSpace(s.Tavily.APIKey) == "" {
			return fmt.Errorf("search.tavily.api_key required for the tavily provider")
		}
	case "feeds":
		if strings.TrimSpace(s.FeedsFile) == "" {
			return fmt.Errorf("search.feeds_file required for the feeds provider")
		}
	case "duckduckgo", "none", "":
	default:
		return fmt.Errorf("unknown search.provider %q", s.Provider)
	}
	if s.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	return nil
}

// ScheduleConfig defines when the standing process fires a run.
type ScheduleConfig struct {
	Timezone      string `mapstructure:"timezone"`
	Hour          int    `mapstructure:"hour"`
	Minute        int    `mapstructure:"minute"`
	ToleranceMins int    `mapstructure:"tolerance_mins"`
	CronSpec      string `mapstructure:"cron_spec"`
}

func (s ScheduleConfig) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("schedule.hour must be within 0-23")
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("schedule.minute must be within 0-59")
	}
	if s.ToleranceMins < 0 {
		return fmt.Errorf("schedule.tolerance_mins cannot be negative")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}

// PublishConfig contains artifact sink settings.
type PublishConfig struct {
	GitHub     GitHubConfig  `mapstructure:"github"`
	Notion     NotionConfig  `mapstructure:"notion"`
	OutputDir  string        `mapstructure:"output_dir"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// GitHubConfig contains issue tracker credentials: token and "owner/repo".
type GitHubConfig struct {
	Token   string        `mapstructure:"token"`
	Repo    string        `mapstructure:"repo"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (g GitHubConfig) Validate() error {
	if strings.TrimSpace(g.Token) == "" {
		return fmt.Errorf("publish.github.token is required")
	}
	repo := strings.TrimSpace(g.Repo)
	if repo == "" {
		return fmt.Errorf("publish.github.repo is required")
	}
	if parts := strings.Split(repo, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("publish.github.repo must be owner/repo, got %q", repo)
	}
	return nil
}

// NotionConfig contains the optional document-append sink settings.
// Enabled when both values are set.
type NotionConfig struct {
	Token  string `mapstructure:"token"`
	PageID string `mapstructure:"page_id"`
}

func (n NotionConfig) Enabled() bool {
	return strings.TrimSpace(n.Token) != "" && strings.TrimSpace(n.PageID) != ""
}

// ServerConfig contains the ops HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file and DIGEST_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.prompt_path", "sys_prompt.md")
	v.SetDefault("general.data_dir", "data")
	v.SetDefault("general.default_timeout", 30*time.Second)
	v.SetDefault("llm.base_url", "https://api.openai.com")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1500)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("search.provider", "duckduckgo")
	v.SetDefault("search.query", `open science news (preprint OR policy OR "open-access" OR reproducibility) (today OR yesterday OR "past 48 hours")`)
	v.SetDefault("search.max_results", 8)
	v.SetDefault("search.max_blob_size", 4000)
	v.SetDefault("search.freshness", 48*time.Hour)
	v.SetDefault("search.probe_links", false)
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("search.tavily.endpoint", "https://api.tavily.com/search")
	v.SetDefault("search.tavily.depth", "advanced")
	v.SetDefault("schedule.timezone", "Europe/Paris")
	v.SetDefault("schedule.hour", 6)
	v.SetDefault("schedule.minute", 0)
	v.SetDefault("schedule.tolerance_mins", 2)
	v.SetDefault("publish.output_dir", "summaries")
	v.SetDefault("publish.retry_delay", 30*time.Second)
	v.SetDefault("publish.github.base_url", "https://api.github.com")
	v.SetDefault("publish.github.timeout", 30*time.Second)
	v.SetDefault("server.address", ":10010")
	v.SetDefault("telemetry.enabled", true)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper already knows about. Keys with no
	// default (secrets and optional overrides) must be bound explicitly or
	// their environment values are dropped.
	for _, key := range []string{
		"general.debug",
		"llm.api_key",
		"search.tavily.api_key",
		"search.tavily.ca_bundle",
		"search.feeds_file",
		"schedule.cron_spec",
		"publish.github.token",
		"publish.github.repo",
		"publish.notion.token",
		"publish.notion.page_id",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional: env vars plus defaults are a complete configuration.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
