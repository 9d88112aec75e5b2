// Package config loads runtime configuration and holds the business-rule
// constants of the support chat.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Reaper    ReaperConfig    `mapstructure:"reaper"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Log       LogConfig       `mapstructure:"log"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString returns the explicit DSN when set, otherwise builds a key=value one.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	// URL takes precedence over the discrete fields, e.g. redis://:pass@host:6379/0.
	URL      string `mapstructure:"url"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	AnonTokenTTL time.Duration `mapstructure:"anon_token_ttl"`
}

type ChatConfig struct {
	UserTimeout          time.Duration `mapstructure:"user_timeout"`
	AvailabilityOverride string        `mapstructure:"availability_override"`
}

type ReaperConfig struct {
	Secret               string `mapstructure:"secret"`
	AllowUnauthenticated bool   `mapstructure:"allow_unauthenticated"`
}

type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// IsProduction reports whether testing-only switches must be ignored.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, EnvironmentProduction)
}

// EffectiveOverride returns the availability override, or none in production.
func (c *Config) EffectiveOverride() string {
	if c.IsProduction() {
		return OverrideNone
	}
	return c.Chat.AvailabilityOverride
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return DatabaseConfig{DSN: dbURL}, nil
}

// Load reads an optional config file at path and applies environment overrides.
// An empty path or a missing file leaves defaults plus environment in place.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.environment", "development")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "supportdesk")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.anon_token_ttl", DefaultAnonTTL)
	v.SetDefault("chat.user_timeout", UserInactivityTimeout)
	v.SetDefault("chat.availability_override", OverrideNone)
	v.SetDefault("reaper.secret", "")
	v.SetDefault("reaper.allow_unauthenticated", false)
	v.SetDefault("ratelimit.limit", 30)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("log.development", false)

	v.SetEnvPrefix("SUPPORTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Unprefixed names used by hosting platforms.
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_url", "REDIS_URL")
	_ = v.BindEnv("redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("reaper_secret", "REAPER_SECRET")
	_ = v.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")

	if dbURL := v.GetString("database_url"); dbURL != "" {
		db, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		cfg.Database = db
	}
	if u := v.GetString("redis_url"); u != "" {
		cfg.Redis.URL = u
	}
	if addr := v.GetString("redis_addr"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if secret := v.GetString("jwt_secret"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if secret := v.GetString("reaper_secret"); secret != "" {
		cfg.Reaper.Secret = secret
	}
	if token := v.GetString("telegram_bot_token"); token != "" {
		cfg.Telegram.Token = token
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) is required")
	}
	if c.Chat.UserTimeout <= 0 {
		return fmt.Errorf("chat.user_timeout must be positive")
	}
	switch c.Chat.AvailabilityOverride {
	case OverrideNone, OverrideForceAvailable, OverrideForceOffline:
	default:
		return fmt.Errorf("chat.availability_override: unknown value %q", c.Chat.AvailabilityOverride)
	}
	return nil
}
