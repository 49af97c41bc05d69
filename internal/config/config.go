// Package config loads service configuration from a yaml file with
// environment variable overrides. The API token is the only hard
// requirement; everything else has a default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIToken string `yaml:"api_token"`
	BaseURL  string `yaml:"base_url"`
	TeamID   string `yaml:"team_id"`

	RateLimitRPM       int `yaml:"rate_limit_rpm"`
	MaxWorkers         int `yaml:"max_workers"`
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`
	RetryAttempts      int `yaml:"retry_attempts"`

	DBPath       string `yaml:"db_path"`
	SyncSchedule string `yaml:"sync_schedule"`
	ListenAddr   string `yaml:"listen_addr"`

	StaleDays    int `yaml:"stale_days"`
	RiskDays     int `yaml:"risk_days"`
	InactiveDays int `yaml:"inactive_days"`
}

// HTTPTimeout returns the outbound request timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Load reads the yaml file at path (TRACKSYNC_CONFIG overrides it, a missing
// file is fine), applies env overrides, fills defaults, and validates.
func Load(path string) (Config, error) {
	var cfg Config

	if envPath := os.Getenv("TRACKSYNC_CONFIG"); envPath != "" {
		path = envPath
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	envOverride(&cfg.APIToken, "CLICKUP_API_TOKEN")
	envOverride(&cfg.BaseURL, "CLICKUP_BASE_URL")
	envOverride(&cfg.TeamID, "CLICKUP_TEAM_ID")
	envOverride(&cfg.DBPath, "TRACKSYNC_DB_PATH")
	envOverride(&cfg.SyncSchedule, "TRACKSYNC_SYNC_SCHEDULE")
	envOverride(&cfg.ListenAddr, "TRACKSYNC_LISTEN_ADDR")
	envOverrideInt(&cfg.RateLimitRPM, "TRACKSYNC_RATE_LIMIT_RPM")
	envOverrideInt(&cfg.MaxWorkers, "TRACKSYNC_MAX_WORKERS")

	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.clickup.com/api/v2"
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = 1000
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 60
	}
	if cfg.HTTPTimeoutSeconds == 0 {
		cfg.HTTPTimeoutSeconds = 30
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 6
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./tracksync.db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.StaleDays == 0 {
		cfg.StaleDays = 14
	}
	if cfg.RiskDays == 0 {
		cfg.RiskDays = 7
	}
	if cfg.InactiveDays == 0 {
		cfg.InactiveDays = 14
	}

	if cfg.APIToken == "" {
		return cfg, fmt.Errorf("required config 'api_token' is not set (via yaml or CLICKUP_API_TOKEN)")
	}
	if cfg.RateLimitRPM < 1 {
		return cfg, fmt.Errorf("invalid rate_limit_rpm %d: must be >= 1", cfg.RateLimitRPM)
	}
	if cfg.MaxWorkers < 1 {
		return cfg, fmt.Errorf("invalid max_workers %d: must be >= 1", cfg.MaxWorkers)
	}

	return cfg, nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err == nil {
			*field = parsed
		}
	}
}
