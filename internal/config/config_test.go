package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"supportdesk/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks the unprefixed variables a developer shell might carry.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "REDIS_URL", "REDIS_ADDR", "JWT_SECRET", "REAPER_SECRET", "TELEGRAM_BOT_TOKEN"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, config.UserInactivityTimeout, cfg.Chat.UserTimeout)
	assert.Equal(t, config.DefaultAnonTTL, cfg.Auth.AnonTokenTTL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.False(t, cfg.Reaper.AllowUnauthenticated)
	assert.Equal(t, "host=localhost port=5432 user=user password=password dbname=supportdesk sslmode=disable", cfg.Database.ConnString())
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	clearEnv(t)

	_, err := config.Load("")

	assert.ErrorContains(t, err, "jwt_secret")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/peso?sslmode=require")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("REAPER_SECRET", "cron-token")
	t.Setenv("SUPPORTDESK_CHAT_AVAILABILITY_OVERRIDE", config.OverrideForceOffline)

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/peso?sslmode=require", cfg.Database.ConnString())
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, "cron-token", cfg.Reaper.Secret)
	assert.Equal(t, config.OverrideForceOffline, cfg.EffectiveOverride())
}

func TestLoad_PrefixedEnvironmentReachesEveryKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("SUPPORTDESK_AUTH_JWT_SECRET", "from-prefix")
	t.Setenv("SUPPORTDESK_TELEGRAM_ADMIN_CHAT_ID", "12345")
	t.Setenv("SUPPORTDESK_TELEGRAM_TOKEN", "bot-token")
	t.Setenv("SUPPORTDESK_DATABASE_DSN", "postgres://a@b/c")
	t.Setenv("SUPPORTDESK_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("SUPPORTDESK_REDIS_PASSWORD", "hunter2")
	t.Setenv("SUPPORTDESK_REAPER_SECRET", "cron")

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, "from-prefix", cfg.Auth.JWTSecret)
	assert.Equal(t, int64(12345), cfg.Telegram.AdminChatID)
	assert.Equal(t, "bot-token", cfg.Telegram.Token)
	assert.Equal(t, "postgres://a@b/c", cfg.Database.ConnString())
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, "cron", cfg.Reaper.Secret)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"mysql url", map[string]string{"DATABASE_URL": "mysql://u@h/db"}, "DATABASE_URL"},
		{"unknown override", map[string]string{"SUPPORTDESK_CHAT_AVAILABILITY_OVERRIDE": "always"}, "availability_override"},
		{"zero timeout", map[string]string{"SUPPORTDESK_CHAT_USER_TIMEOUT": "0s"}, "user_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load("")

			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
chat:
  user_timeout: 3m
ratelimit:
  limit: 5
  window: 10s
telegram:
  admin_chat_id: -1001234
`), 0o600))

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Minute, cfg.Chat.UserTimeout)
	assert.Equal(t, 5, cfg.RateLimit.Limit)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, int64(-1001234), cfg.Telegram.AdminChatID)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.NoError(t, err)
}

func TestEffectiveOverride_IgnoredInProduction(t *testing.T) {
	cfg := &config.Config{
		App:  config.AppConfig{Environment: "Production"},
		Chat: config.ChatConfig{AvailabilityOverride: config.OverrideForceAvailable},
	}

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, config.OverrideNone, cfg.EffectiveOverride())

	cfg.App.Environment = "staging"
	assert.Equal(t, config.OverrideForceAvailable, cfg.EffectiveOverride())
}
