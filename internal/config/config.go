package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Cache     CacheConfig     `yaml:"cache"`
	Derive    DeriveConfig    `yaml:"derive"`
	Sync      SyncConfig      `yaml:"sync"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ProviderConfig struct {
	BaseURL     string      `yaml:"base_url"`
	AccessToken string      `yaml:"access_token"`
	OAuth       OAuthConfig `yaml:"oauth"`

	Timeout          time.Duration `yaml:"timeout"`
	RateLimitPerHour int           `yaml:"rate_limit_per_hour"`
	RateBurst        int           `yaml:"rate_burst"`

	MaxRetries     int           `yaml:"max_retries"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`

	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// OAuthConfig enables refreshing tokens. The token file must hold a token
// obtained through the authorization-code flow; refreshed tokens are written
// back to it.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenFile    string `yaml:"token_file"`
}

// Enabled reports whether the OAuth section is filled in.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" || o.TokenFile != ""
}

// Cache backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type CacheConfig struct {
	Backend    string         `yaml:"backend"`
	SQLitePath string         `yaml:"sqlite_path"`
	Database   DatabaseConfig `yaml:"database"`
	Redis      RedisConfig    `yaml:"redis"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type DeriveConfig struct {
	IntradayPoints int `yaml:"intraday_points"`
}

// SyncConfig controls the optional periodic sync. An interval of 0 leaves
// sync to explicit requests only.
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval"`
	Granularities []string      `yaml:"granularities"`
	Timeout       time.Duration `yaml:"timeout"`
}

// AuthConfig holds the optional API key required for POST /api/v1/sync.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// SlogLevel maps the configured level name; unknown names mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Default returns a Config with every optional field set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Provider: ProviderConfig{
			BaseURL:          "https://api.fitbit.com",
			Timeout:          30 * time.Second,
			RateLimitPerHour: 150,
			RateBurst:        10,
			MaxRetries:       2,
			BackoffInitial:   500 * time.Millisecond,
			BackoffMax:       5 * time.Second,
			BreakerFailures:  5,
			BreakerTimeout:   time.Minute,
		},
		Cache: CacheConfig{
			Backend:    BackendSQLite,
			SQLitePath: "fitdash-cache.db",
			Redis:      RedisConfig{Prefix: "fitdash:"},
		},
		Derive: DeriveConfig{IntradayPoints: 80},
		Sync: SyncConfig{
			Granularities: []string{"daily", "weekly"},
			Timeout:       2 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. A missing file leaves the defaults in
// place, so a deployment can be configured from the environment alone. A .env file in the working directory is
// loaded first if present; variables already set in the environment win.
// Env vars use the prefix FITDASH_:
//
//	FITDASH_SERVER_HOST, FITDASH_SERVER_PORT,
//	FITDASH_PROVIDER_BASE_URL, FITDASH_PROVIDER_ACCESS_TOKEN, FITDASH_PROVIDER_TIMEOUT,
//	FITDASH_OAUTH_CLIENT_ID, FITDASH_OAUTH_CLIENT_SECRET, FITDASH_OAUTH_TOKEN_FILE,
//	FITDASH_CACHE_BACKEND, FITDASH_CACHE_SQLITE_PATH,
//	FITDASH_DB_HOST, FITDASH_DB_PORT, FITDASH_DB_NAME,
//	FITDASH_DB_USER, FITDASH_DB_PASSWORD, FITDASH_DB_SSLMODE,
//	FITDASH_REDIS_ADDR, FITDASH_REDIS_PASSWORD, FITDASH_REDIS_DB,
//	FITDASH_SYNC_INTERVAL, FITDASH_AUTH_API_KEY, FITDASH_LOG_LEVEL
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString("FITDASH_SERVER_HOST", &cfg.Server.Host)
	setInt("FITDASH_SERVER_PORT", &cfg.Server.Port)

	setString("FITDASH_PROVIDER_BASE_URL", &cfg.Provider.BaseURL)
	setString("FITDASH_PROVIDER_ACCESS_TOKEN", &cfg.Provider.AccessToken)
	setDuration("FITDASH_PROVIDER_TIMEOUT", &cfg.Provider.Timeout)
	setString("FITDASH_OAUTH_CLIENT_ID", &cfg.Provider.OAuth.ClientID)
	setString("FITDASH_OAUTH_CLIENT_SECRET", &cfg.Provider.OAuth.ClientSecret)
	setString("FITDASH_OAUTH_TOKEN_FILE", &cfg.Provider.OAuth.TokenFile)

	setString("FITDASH_CACHE_BACKEND", &cfg.Cache.Backend)
	setString("FITDASH_CACHE_SQLITE_PATH", &cfg.Cache.SQLitePath)
	setString("FITDASH_DB_HOST", &cfg.Cache.Database.Host)
	setInt("FITDASH_DB_PORT", &cfg.Cache.Database.Port)
	setString("FITDASH_DB_NAME", &cfg.Cache.Database.Name)
	setString("FITDASH_DB_USER", &cfg.Cache.Database.User)
	setString("FITDASH_DB_PASSWORD", &cfg.Cache.Database.Password)
	setString("FITDASH_DB_SSLMODE", &cfg.Cache.Database.SSLMode)
	setString("FITDASH_REDIS_ADDR", &cfg.Cache.Redis.Addr)
	setString("FITDASH_REDIS_PASSWORD", &cfg.Cache.Redis.Password)
	setInt("FITDASH_REDIS_DB", &cfg.Cache.Redis.DB)

	setDuration("FITDASH_SYNC_INTERVAL", &cfg.Sync.Interval)
	setString("FITDASH_AUTH_API_KEY", &cfg.Auth.APIKey)
	setString("FITDASH_LOG_LEVEL", &cfg.Log.Level)
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.AccessToken == "" && !c.Provider.OAuth.Enabled() {
		return fmt.Errorf("provider.access_token or provider.oauth is required")
	}
	if c.Provider.OAuth.Enabled() {
		if c.Provider.OAuth.ClientID == "" {
			return fmt.Errorf("provider.oauth.client_id is required")
		}
		if c.Provider.OAuth.TokenFile == "" {
			return fmt.Errorf("provider.oauth.token_file is required")
		}
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider.max_retries must not be negative")
	}
	if c.Provider.BackoffInitial <= 0 {
		return fmt.Errorf("provider.backoff_initial must be positive")
	}

	switch c.Cache.Backend {
	case BackendSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("cache.sqlite_path is required")
		}
	case BackendPostgres:
		d := c.Cache.Database
		if d.Host == "" {
			return fmt.Errorf("cache.database.host is required")
		}
		if d.Port == 0 {
			return fmt.Errorf("cache.database.port is required")
		}
		if d.Name == "" {
			return fmt.Errorf("cache.database.name is required")
		}
		if d.User == "" {
			return fmt.Errorf("cache.database.user is required")
		}
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("cache.backend %q is not one of sqlite, postgres, redis, memory", c.Cache.Backend)
	}

	if c.Derive.IntradayPoints <= 0 {
		return fmt.Errorf("derive.intraday_points must be positive")
	}
	if c.Sync.Interval < 0 {
		return fmt.Errorf("sync.interval must not be negative")
	}
	for _, g := range c.Sync.Granularities {
		switch strings.ToLower(g) {
		case "daily", "today", "day", "weekly", "week":
		default:
			return fmt.Errorf("sync.granularities: unknown granularity %q", g)
		}
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
