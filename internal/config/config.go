package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mozilla/clouseau/pkg/logger"
	"gopkg.in/yaml.v3"
)

var configValidator = validator.New()

// Config is the resolved dashboard configuration
type Config struct {
	Env        string           `yaml:"-"`
	LogLevel   string           `yaml:"log_level"`
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Deployment DeploymentConfig `yaml:"deployment"`
	Links      LinksConfig      `yaml:"links"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Cache      CacheConfig      `yaml:"cache"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	Mode         string        `yaml:"mode" validate:"oneof=debug release test"`
	AllowOrigins string        `yaml:"allow_origins"`
	RenderWait   time.Duration `yaml:"render_wait" validate:"gt=0"`
}

// UpstreamConfig points at the REST service serving catalogs and datasets
type UpstreamConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	CatalogPath string        `yaml:"catalog_path" validate:"required"`
	DatasetPath string        `yaml:"dataset_path" validate:"required"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// DeploymentConfig holds what is fixed per deployment
type DeploymentConfig struct {
	Channel  string   `yaml:"channel" validate:"required"`
	Products []string `yaml:"products"`
}

type LinksConfig struct {
	Repository string `yaml:"repository" validate:"omitempty,url"`
	CrashStats string `yaml:"crash_stats" validate:"omitempty,url"`
}

type SessionConfig struct {
	CookieName string        `yaml:"cookie_name" validate:"required"`
	IdleTTL    time.Duration `yaml:"idle_ttl" validate:"gt=0"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// CacheConfig sets how long upstream responses are reused across sessions
type CacheConfig struct {
	CatalogTTL time.Duration `yaml:"catalog_ttl"`
	DatasetTTL time.Duration `yaml:"dataset_ttl"`
	// FlushOnStart drops cached datasets left by a previous deployment
	FlushOnStart bool `yaml:"flush_on_start"`
}

// Default returns the configuration used when no file overrides it
func Default() *Config {
	return &Config{
		Env:      "local",
		LogLevel: "info",
		Server: ServerConfig{
			Port:       8080,
			Mode:       "debug",
			RenderWait: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:     "http://localhost/clouseau/rest",
			CatalogPath: "/patches",
			DatasetPath: "/patches",
			Timeout:     30 * time.Second,
		},
		Deployment: DeploymentConfig{
			Channel:  "nightly",
			Products: []string{"Firefox", "FennecAndroid"},
		},
		Session: SessionConfig{
			CookieName: "clouseau_session",
			IdleTTL:    30 * time.Minute,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
		},
		Cache: CacheConfig{
			CatalogTTL: time.Minute,
			DatasetTTL: 5 * time.Minute,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("config file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.Mode = v
	}
	if v := os.Getenv("CLOUSEAU_UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("CLOUSEAU_CHANNEL"); v != "" {
		cfg.Deployment.Channel = v
	}
	if v := os.Getenv("CLOUSEAU_PRODUCTS"); v != "" {
		cfg.Deployment.Products = SplitAndTrim(v, ",")
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = v
	}
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}

// IsDevelopment reports whether the dashboard runs in a local environment
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "local" || c.Env == "development" || c.Env == "dev"
}

// LogResolved logs the effective configuration without secrets
func LogResolved(cfg *Config) {
	logger.GetLogger().Info().
		Str("env", cfg.Env).
		Int("port", cfg.Server.Port).
		Str("mode", cfg.Server.Mode).
		Str("upstream", cfg.Upstream.BaseURL).
		Str("channel", cfg.Deployment.Channel).
		Strs("products", cfg.Deployment.Products).
		Bool("redis", cfg.Redis.Enabled).
		Dur("session_idle_ttl", cfg.Session.IdleTTL).
		Msg("config resolved")
}

// SplitAndTrim splits s by sep and drops empty parts
func SplitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
