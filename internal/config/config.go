// File: internal/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"telegram-ai-autoposter/internal/domain/model"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token          string `yaml:"token" env:"TELEGRAM_BOT_TOKEN,overwrite"`
	Mode           string `yaml:"mode"` // polling | webhook
	Username       string `yaml:"username"`
	Workers        int    `yaml:"workers"`    // update workers
	QueueSize      int    `yaml:"queue_size"` // buffered updates
	WebhookBaseURL string `yaml:"webhook_base_url" env:"WEBHOOK_BASE_URL,overwrite"`
	WebhookSecret  string `yaml:"webhook_secret" env:"WEBHOOK_SECRET,overwrite"`
	// RateLimit is the number of commands a user may send per RateWindow.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL,overwrite"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                          // json|console
	Sampling bool   `yaml:"sampling"`                        // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AdminAPIKey    string        `yaml:"admin_api_key" env:"ADMIN_API_KEY,overwrite"`
	JWTSecret      string        `yaml:"jwt_secret" env:"JWT_SECRET,overwrite"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver"` // postgres | sqlite
	URL         string `yaml:"url" env:"DATABASE_URL,overwrite"`
	MaxConns    int32  `yaml:"max_conns"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL,overwrite"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD,overwrite"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // post cache TTL
}

type AIConfig struct {
	Provider              string        `yaml:"provider"` // openai | gemini | noop
	Fallback              []string      `yaml:"fallback"` // providers tried after Provider fails
	OpenAIKey             string        `yaml:"openai_key" env:"OPENAI_API_KEY,overwrite"`
	OpenAIBaseURL         string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL,overwrite"`
	GeminiKey             string        `yaml:"gemini_key" env:"GEMINI_API_KEY,overwrite"`
	GeminiURL             string        `yaml:"gemini_url"`
	DefaultModel          string        `yaml:"default_model"`
	GeminiModel           string        `yaml:"gemini_model"`
	MaxTokens             int           `yaml:"max_tokens"`
	Temperature           float64       `yaml:"temperature"`
	RegenerateTemperature float64       `yaml:"regenerate_temperature"`
	ConcurrentLimit       int           `yaml:"concurrent_limit"` // max concurrent AI calls
	Timeout               time.Duration `yaml:"timeout"`
}

type MediumConfig struct {
	APIKey        string `yaml:"api_key" env:"MEDIUM_API_KEY,overwrite"`
	BaseURL       string `yaml:"base_url"`
	PublishStatus string `yaml:"publish_status"` // public | draft | unlisted
}

func (c MediumConfig) Configured() bool { return c.APIKey != "" }

type DevToConfig struct {
	APIKey  string `yaml:"api_key" env:"DEV_TO_API_KEY,overwrite"`
	BaseURL string `yaml:"base_url"`
}

func (c DevToConfig) Configured() bool { return c.APIKey != "" }

type RedditConfig struct {
	ClientID     string `yaml:"client_id" env:"REDDIT_CLIENT_ID,overwrite"`
	ClientSecret string `yaml:"client_secret" env:"REDDIT_CLIENT_SECRET,overwrite"`
	Username     string `yaml:"username" env:"REDDIT_USERNAME,overwrite"`
	Password     string `yaml:"password" env:"REDDIT_PASSWORD,overwrite"`
	Subreddit    string `yaml:"subreddit" env:"REDDIT_SUBREDDIT,overwrite"`
	UserAgent    string `yaml:"user_agent"`
	AuthURL      string `yaml:"auth_url"`
	APIURL       string `yaml:"api_url"`
}

func (c RedditConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.Username != "" && c.Password != "" && c.Subreddit != ""
}

type PublishersConfig struct {
	DefaultPlatforms []string      `yaml:"default_platforms"`
	Concurrency      int           `yaml:"concurrency"`
	RatePerMinute    int           `yaml:"rate_per_minute"` // per platform, 0 = unlimited
	Timeout          time.Duration `yaml:"timeout"`
	Medium           MediumConfig  `yaml:"medium"`
	DevTo            DevToConfig   `yaml:"devto"`
	Reddit           RedditConfig  `yaml:"reddit"`
}

type PostsConfig struct {
	MaxTopicLength int `yaml:"max_topic_length"`
	PreviewLength  int `yaml:"preview_length"`
	ListLimit      int `yaml:"list_limit"`
}

type RetryConfig struct {
	Generation model.RetryPolicy `yaml:"generation"`
	Publish    model.RetryPolicy `yaml:"publish"`
	// Store covers writing the outcome of a generation or publish call.
	Store model.RetryPolicy `yaml:"store"`
}

type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	AI         AIConfig         `yaml:"ai"`
	Publishers PublishersConfig `yaml:"publishers"`
	Posts      PostsConfig      `yaml:"posts"`
	Retry      RetryConfig      `yaml:"retry"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (optional when empty), applies
// environment overrides for secrets, fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	return load(context.Background(), path, dev, envconfig.OsLookuper())
}

func load(ctx context.Context, path string, dev bool, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.ProcessWith(ctx, &cfg, lookuper); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.QueueSize <= 0 {
		cfg.Bot.QueueSize = 256
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 15 * time.Second
	}
	if cfg.HTTP.TokenTTL <= 0 {
		cfg.HTTP.TokenTTL = 12 * time.Hour
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.URL == "" {
		cfg.Database.URL = "file:autoposter.db?_foreign_keys=on"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.5-flash"
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 2000
	}
	if cfg.AI.Temperature <= 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.RegenerateTemperature <= 0 {
		cfg.AI.RegenerateTemperature = 0.8
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 90 * time.Second
	}

	if cfg.Publishers.Concurrency <= 0 {
		cfg.Publishers.Concurrency = len(model.AllPlatforms())
	}
	if cfg.Publishers.Timeout <= 0 {
		cfg.Publishers.Timeout = 30 * time.Second
	}
	if cfg.Publishers.Medium.BaseURL == "" {
		cfg.Publishers.Medium.BaseURL = "https://api.medium.com/v1"
	}
	if cfg.Publishers.Medium.PublishStatus == "" {
		cfg.Publishers.Medium.PublishStatus = "public"
	}
	if cfg.Publishers.DevTo.BaseURL == "" {
		cfg.Publishers.DevTo.BaseURL = "https://dev.to/api"
	}
	if cfg.Publishers.Reddit.UserAgent == "" {
		cfg.Publishers.Reddit.UserAgent = "AutoPoster/1.0"
	}
	if cfg.Publishers.Reddit.AuthURL == "" {
		cfg.Publishers.Reddit.AuthURL = "https://www.reddit.com/api/v1/access_token"
	}
	if cfg.Publishers.Reddit.APIURL == "" {
		cfg.Publishers.Reddit.APIURL = "https://oauth.reddit.com"
	}

	if cfg.Posts.MaxTopicLength <= 0 {
		cfg.Posts.MaxTopicLength = 200
	}
	if cfg.Posts.PreviewLength <= 0 {
		cfg.Posts.PreviewLength = 500
	}
	if cfg.Posts.ListLimit <= 0 {
		cfg.Posts.ListLimit = 10
	}

	if cfg.Retry.Store.Retries <= 0 {
		cfg.Retry.Store.Retries = 3
	}
	if cfg.Retry.Store.Backoff <= 0 {
		cfg.Retry.Store.Backoff = 200 * time.Millisecond
	}
}

func (cfg *Config) validate() error {
	if cfg.Bot.Token == "" {
		return errors.New("bot.token is required")
	}
	switch cfg.Bot.Mode {
	case "polling":
	case "webhook":
		if cfg.Bot.WebhookBaseURL == "" || cfg.Bot.WebhookSecret == "" {
			return errors.New("bot.webhook_base_url and bot.webhook_secret are required in webhook mode")
		}
	default:
		return fmt.Errorf("bot.mode %q is not supported", cfg.Bot.Mode)
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	for _, p := range append([]string{cfg.AI.Provider}, cfg.AI.Fallback...) {
		switch strings.ToLower(p) {
		case "openai":
			if cfg.AI.OpenAIKey == "" {
				return errors.New("ai.openai_key is required for the openai provider")
			}
		case "gemini":
			if cfg.AI.GeminiKey == "" {
				return errors.New("ai.gemini_key is required for the gemini provider")
			}
		case "noop":
		default:
			return fmt.Errorf("ai provider %q is not supported", p)
		}
	}
	if _, err := cfg.Publishers.Defaults(); err != nil {
		return fmt.Errorf("publishers.default_platforms: %w", err)
	}
	if cfg.HTTP.AdminAPIKey != "" && cfg.HTTP.JWTSecret == "" {
		return errors.New("http.jwt_secret is required when http.admin_api_key is set")
	}
	return nil
}

// Defaults returns the parsed default platform selection.
func (c PublishersConfig) Defaults() ([]model.Platform, error) {
	out := make([]model.Platform, 0, len(c.DefaultPlatforms))
	for _, s := range c.DefaultPlatforms {
		p, err := model.ParsePlatform(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
