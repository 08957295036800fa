package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Redis.LicenseCacheTTL != 5*time.Second {
		t.Fatalf("expected 5s license cache ttl, got %s", cfg.Redis.LicenseCacheTTL)
	}
	if cfg.JWT.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected 15m access token ttl, got %s", cfg.JWT.AccessTokenTTL)
	}
	if cfg.Redis.DegradationPolicy != "lenient" {
		t.Fatalf("unexpected degradation policy %q", cfg.Redis.DegradationPolicy)
	}
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("AUTHZ_REDIS_LICENSE_CACHE_TTL", "2s")
	t.Setenv("AUTHZ_APP_PORT", "9000")
	t.Setenv("JWT_KEY_ID", "2024-06")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Redis.LicenseCacheTTL != 2*time.Second {
		t.Fatalf("expected 2s license cache ttl, got %s", cfg.Redis.LicenseCacheTTL)
	}
	if cfg.App.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.App.Port)
	}
	if cfg.JWT.KeyID != "2024-06" {
		t.Fatalf("expected bare env name to bind, got %q", cfg.JWT.KeyID)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.yaml")
	content := "redis:\n  degradation_policy: strict\nkafka:\n  brokers:\n    - kafka-1:9092\n    - kafka-2:9092\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AUTHZ_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Redis.DegradationPolicy != "strict" {
		t.Fatalf("expected strict policy from file, got %q", cfg.Redis.DegradationPolicy)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{
			App:   AppSettings{Port: 8080},
			GRPC:  GRPCSettings{Port: 50051},
			JWT:   JWTSettings{AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: 24 * time.Hour},
			Redis: RedisSettings{DegradationPolicy: "lenient"},
		}
	}

	cases := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{name: "valid", mutate: func(*AppConfig) {}},
		{name: "bad port", mutate: func(c *AppConfig) { c.App.Port = 0 }, want: "app.port"},
		{name: "refresh shorter than access", mutate: func(c *AppConfig) { c.JWT.RefreshTokenTTL = time.Minute }, want: "refresh_token_ttl"},
		{name: "unknown policy", mutate: func(c *AppConfig) { c.Redis.DegradationPolicy = "yolo" }, want: "degradation_policy"},
		{name: "sampling out of range", mutate: func(c *AppConfig) { c.Telemetry.SamplingRate = 1.5 }, want: "sampling_rate"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
