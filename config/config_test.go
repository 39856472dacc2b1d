package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg := LoadConfig()
	require.Equal(t, 3000, cfg.ServerPort)
	require.Equal(t, "natours", cfg.Database.DBName)
	require.Equal(t, 90*24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, 100, cfg.HTTP.RateLimitRequests)
	require.Equal(t, time.Hour, cfg.HTTP.RateLimitWindow)
	require.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
	require.Empty(t, cfg.Storage.Backend)
	require.Equal(t, 5, cfg.MQ.RabbitMQ.MaxAttempts)
	require.Equal(t, ".dead", cfg.MQ.RabbitMQ.DeadLetterSuffix)
	require.Equal(t, time.Minute, cfg.MQ.PubSub.AckDeadline)
	require.Equal(t, 5, cfg.MQ.PubSub.MaxDeliveryAttempts)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("JWT_SECRET", "  s3cret  ")
	t.Setenv("JWT_EXPIRES_IN", "7d")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("PUBLIC_URL", "https://natours.dev/")

	cfg := LoadConfig()
	require.True(t, cfg.IsProduction())
	require.Equal(t, 8081, cfg.ServerPort)
	require.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	require.True(t, cfg.Database.UseSSL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSAllowedOrigins)
	require.Equal(t, "minio", cfg.Storage.Backend)
	require.Equal(t, "https://natours.dev", cfg.PublicURL)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DURATION", "15m")
	require.Equal(t, 15*time.Minute, getEnvDuration("X_DURATION", time.Hour))

	t.Setenv("X_DURATION", "garbage")
	require.Equal(t, time.Hour, getEnvDuration("X_DURATION", time.Hour))

	t.Setenv("X_DURATION", "0d")
	require.Equal(t, time.Hour, getEnvDuration("X_DURATION", time.Hour))
}
