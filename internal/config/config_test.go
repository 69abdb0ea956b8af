package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	for _, k := range []string{"ADDR", "DB_DRIVER", "TOKEN_TTL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DBDriver != DriverSQLite {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("expected stats cache disabled by default")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=from-file\nTOKEN_TTL=90m\nRATE_LIMIT_RPS=2.5\nDB_DRIVER=postgres\nDATABASE_URL=postgres://localhost/kudos\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	for _, k := range []string{"JWT_SECRET", "TOKEN_TTL", "RATE_LIMIT_RPS", "DB_DRIVER", "DATABASE_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	// The environment wins over the file.
	t.Setenv("RATE_LIMIT_BURST", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.JWTSecret != "from-file" || cfg.TokenTTL != 90*time.Minute || cfg.RateLimitRPS != 2.5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.RateLimitBurst != 7 {
		t.Errorf("RateLimitBurst = %d, want 7", cfg.RateLimitBurst)
	}
	if cfg.DBDriver != DriverPostgres || cfg.DatabaseURL == "" {
		t.Errorf("unexpected store config: %+v", cfg)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"bad ttl", map[string]string{"TOKEN_TTL": "forever"}},
		{"bad driver", map[string]string{"DB_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"zero burst", map[string]string{"RATE_LIMIT_BURST": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s3cret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Error("expected error")
			}
		})
	}
}
