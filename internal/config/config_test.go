package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "api_token: pk_123\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIToken != "pk_123" {
		t.Errorf("token = %q", cfg.APIToken)
	}
	if cfg.BaseURL != "https://api.clickup.com/api/v2" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.RateLimitRPM != 1000 || cfg.MaxWorkers != 60 {
		t.Errorf("limits = %d rpm / %d workers", cfg.RateLimitRPM, cfg.MaxWorkers)
	}
	if cfg.HTTPTimeout() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.HTTPTimeout())
	}
	if cfg.ListenAddr != ":8080" || cfg.DBPath != "./tracksync.db" {
		t.Errorf("addr=%q db=%q", cfg.ListenAddr, cfg.DBPath)
	}
}

func TestLoadYAMLValues(t *testing.T) {
	path := writeConfig(t, `
api_token: pk_456
team_id: "9001"
rate_limit_rpm: 500
max_workers: 10
db_path: /tmp/x.db
sync_schedule: "*/30 * * * *"
stale_days: 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TeamID != "9001" || cfg.RateLimitRPM != 500 || cfg.MaxWorkers != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SyncSchedule != "*/30 * * * *" || cfg.StaleDays != 30 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissingToken(t *testing.T) {
	path := writeConfig(t, "max_workers: 5\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing api token")
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	t.Setenv("CLICKUP_API_TOKEN", "pk_env")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIToken != "pk_env" {
		t.Errorf("token = %q", cfg.APIToken)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "api_token: pk_file\nmax_workers: 10\n")
	t.Setenv("CLICKUP_API_TOKEN", "pk_env")
	t.Setenv("TRACKSYNC_MAX_WORKERS", "25")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIToken != "pk_env" {
		t.Errorf("token = %q, want env value", cfg.APIToken)
	}
	if cfg.MaxWorkers != 25 {
		t.Errorf("workers = %d, want 25", cfg.MaxWorkers)
	}
}

func TestConfigPathEnvOverride(t *testing.T) {
	real := writeConfig(t, "api_token: pk_real\n")
	t.Setenv("TRACKSYNC_CONFIG", real)

	cfg, err := Load("does-not-exist.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIToken != "pk_real" {
		t.Errorf("token = %q", cfg.APIToken)
	}
}

func TestInvalidYAML(t *testing.T) {
	path := writeConfig(t, "api_token: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
