package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func setSQLiteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", ":memory:")
}

func TestLoadDefaults(t *testing.T) {
	setSQLiteEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Env != "dev" {
		t.Fatalf("unexpected app defaults: %+v", cfg)
	}
	if cfg.AccessTTLMin != 15 || cfg.RefreshTTLDays != 7 || cfg.BcryptCost != 10 {
		t.Fatalf("unexpected token defaults: %+v", cfg)
	}
	if cfg.CalendarMaxDays != 92 {
		t.Fatalf("calendar max = %d", cfg.CalendarMaxDays)
	}
	if cfg.AMQP.Queue != "reservation.events" || cfg.AMQP.URL == "" {
		t.Fatalf("unexpected amqp defaults: %+v", cfg.AMQP)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("location = %v", cfg.Location())
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadMySQLNeedsConnectionFields(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "DB_NAME, DB_USER") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_DRIVER", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadTimeZone(t *testing.T) {
	setSQLiteEnv(t)
	t.Setenv("APP_TIMEZONE", "America/Sao_Paulo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Location().String() != "America/Sao_Paulo" {
		t.Fatalf("location = %v", cfg.Location())
	}

	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Fatal("expected bad zone error")
	}
}

func TestAMQPURLFallsBackToRabbitMQURL(t *testing.T) {
	setSQLiteEnv(t)
	t.Setenv("AMQP_URL", "")
	t.Setenv("RABBITMQ_URL", "amqp://u:p@broker:5672/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AMQP.URL != "amqp://u:p@broker:5672/" {
		t.Fatalf("url = %q", cfg.AMQP.URL)
	}
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "1m")

	cfg, err := LoadCacheConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || cfg.Methods["POST"] {
		t.Fatalf("methods = %v", cfg.Methods)
	}
	if cfg.TTL != time.Minute || cfg.Prefix != "cache" {
		t.Fatalf("unexpected cache config: %+v", cfg)
	}
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg, err := LoadRateLimitConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Capacity != 1 {
		t.Fatalf("capacity = %d", cfg.Capacity)
	}
	if cfg.RefillTokens != 1 || cfg.RefillInterval != 2*time.Second {
		t.Fatalf("refill = %d/%s", cfg.RefillTokens, cfg.RefillInterval)
	}
	if cfg.TTL != 10*time.Second {
		t.Fatalf("ttl = %s", cfg.TTL)
	}
}

func TestLoadRedisConfigHostPort(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := LoadRedisConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "cache:6380" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
}

func TestNewLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":1`) {
		t.Fatalf("unexpected json output: %s", out)
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatal("unknown level should default to info")
	}
}
