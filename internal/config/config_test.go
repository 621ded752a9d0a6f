package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, ,broker-b:9092")
	t.Setenv("FEED_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.StorageDriver != DriverMemory {
		t.Errorf("StorageDriver = %q, want %q", cfg.StorageDriver, DriverMemory)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", cfg.RetentionDays)
	}
	if cfg.SchedulerEnabled {
		t.Error("SchedulerEnabled should be false")
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-b:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	// Unparsable ints keep the default
	if cfg.FeedTimeout() != 0 {
		t.Errorf("FeedTimeout = %v, want 0", cfg.FeedTimeout())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := []byte("port: 7000\ncaptureIntervalMinutes: 5\ntimezone: UTC\nstorageDriver: redis\nredisAddr: cache:6379\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 7001 {
		t.Errorf("env should win over file: Port = %d", cfg.Port)
	}
	if cfg.CaptureInterval() != 5*time.Minute {
		t.Errorf("CaptureInterval = %v, want 5m", cfg.CaptureInterval())
	}
	if cfg.RedisAddr != "cache:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	os.WriteFile(path, []byte("invalid: yaml: content: [[["), 0644)
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("invalid YAML should return an error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"unknown driver", func(c *Config) { c.StorageDriver = "mongo" }, true},
		{"postgres without url", func(c *Config) { c.StorageDriver = DriverPostgres }, true},
		{"postgres with url", func(c *Config) {
			c.StorageDriver = DriverPostgres
			c.DatabaseURL = "postgres://localhost/trenes"
		}, false},
		{"bad feed url", func(c *Config) { c.AlertsURL = "not a url" }, true},
		{"zero interval", func(c *Config) { c.CaptureIntervalMinutes = 0 }, true},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"memory driver", func(c *Config) { c.StorageDriver = DriverMemory }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
