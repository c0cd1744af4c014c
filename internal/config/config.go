// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev     bool
	Version string
	Commit  string
}

type HTTPConfig struct {
	Port           int           `yaml:"port" env:"HTTP_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                // enable sampling in prod
}

type DatabaseConfig struct {
	URL            string        `yaml:"url" env:"DATABASE_URL"`
	MaxConns       int32         `yaml:"max_conns"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	MigrateOnStart bool          `yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	HMACSecret string `yaml:"hmac_secret" env:"AUTH_HMAC_SECRET"`
	CookieName string `yaml:"cookie_name"`
	Issuer     string `yaml:"issuer"`
}

type AdminConfig struct {
	APIKey string `yaml:"api_key" env:"ADMIN_API_KEY"`
}

type AIConfig struct {
	GeminiKey       string `yaml:"gemini_key" env:"GEMINI_API_KEY"`
	GeminiURL       string `yaml:"gemini_url"`
	GeminiModel     string `yaml:"gemini_model"`
	OpenAIKey       string `yaml:"openai_key" env:"OPENAI_API_KEY"`
	OpenAIModel     string `yaml:"openai_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

type ImageConfig struct {
	RemoveBGKey     string        `yaml:"removebg_key" env:"REMOVE_BG_API_KEY"`
	RemoveBGURL     string        `yaml:"removebg_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ConcurrentLimit int           `yaml:"concurrent_limit"`
}

type TrialConfig struct {
	Credits int64 `yaml:"credits"`
	Days    int   `yaml:"days"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
}

type SchedulerConfig struct {
	ExpiryInterval    time.Duration `yaml:"expiry_interval"`
	PoolStatsInterval time.Duration `yaml:"pool_stats_interval"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Admin     AdminConfig     `yaml:"admin"`
	AI        AIConfig        `yaml:"ai"`
	Image     ImageConfig     `yaml:"image"`
	Trial     TrialConfig     `yaml:"trial"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (optional when every required value
// comes from the environment), applies env overrides and defaults, and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.ReadTimeout = orDuration(cfg.HTTP.ReadTimeout, 15*time.Second)
	cfg.HTTP.WriteTimeout = orDuration(cfg.HTTP.WriteTimeout, 90*time.Second)
	cfg.HTTP.RequestTimeout = orDuration(cfg.HTTP.RequestTimeout, 60*time.Second)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.RetryAttempts <= 0 {
		cfg.Database.RetryAttempts = 3
	}
	cfg.Database.RetryInterval = orDuration(cfg.Database.RetryInterval, 2*time.Second)

	cfg.Redis.TTL = orDuration(cfg.Redis.TTL, time.Hour)

	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "__session"
	}

	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.5-flash"
	}
	if cfg.AI.OpenAIModel == "" {
		cfg.AI.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.AI.MaxPromptTokens <= 0 {
		cfg.AI.MaxPromptTokens = 4000
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.Image.RemoveBGURL == "" {
		cfg.Image.RemoveBGURL = "https://api.remove.bg/v1.0/removebg"
	}
	cfg.Image.Timeout = orDuration(cfg.Image.Timeout, 60*time.Second)
	if cfg.Image.MaxUploadBytes <= 0 {
		cfg.Image.MaxUploadBytes = 12 << 20
	}
	if cfg.Image.ConcurrentLimit <= 0 {
		cfg.Image.ConcurrentLimit = 8
	}

	if cfg.Trial.Credits <= 0 {
		cfg.Trial.Credits = 5
	}
	if cfg.Trial.Days <= 0 {
		cfg.Trial.Days = 30
	}
	if cfg.RateLimit.PerMinute <= 0 {
		cfg.RateLimit.PerMinute = 20
	}

	cfg.Scheduler.ExpiryInterval = orDuration(cfg.Scheduler.ExpiryInterval, time.Hour)
	cfg.Scheduler.PoolStatsInterval = orDuration(cfg.Scheduler.PoolStatsInterval, 15*time.Second)
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Auth.HMACSecret == "" && !c.Runtime.Dev {
		return errors.New("auth.hmac_secret is required")
	}
	return nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
