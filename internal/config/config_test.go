package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.Mode != "release" {
		t.Errorf("port/mode = %d/%s", cfg.Port, cfg.Mode)
	}
	if cfg.PingPeriod != 54*time.Second {
		t.Errorf("ping period = %v", cfg.PingPeriod)
	}
	if cfg.Directory.Driver != "memory" || cfg.Directory.Timeout != 3*time.Second {
		t.Errorf("directory = %+v", cfg.Directory)
	}
	if cfg.RateLimit.Messages != 10 || cfg.RateLimit.Interval != 5*time.Second {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	data := []byte("port: 9090\ndirectory:\n  driver: redis\n  redis_addr: cache:6379\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.Directory.Driver != "redis" || cfg.Directory.RedisAddr != "cache:6379" {
		t.Errorf("directory = %+v", cfg.Directory)
	}
	if cfg.Directory.MongoDatabase != "spaces" {
		t.Errorf("mongo database default lost: %q", cfg.Directory.MongoDatabase)
	}
}
