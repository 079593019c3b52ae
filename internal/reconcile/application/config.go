package application

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultWorkers       = 8
	defaultProgressEvery = 100
	defaultRunTimeout    = 10 * time.Minute
)

// Config tunes the bulk reconciliation driver.
type Config struct {
	Workers       int            `yaml:"workers"`
	ProgressEvery int            `yaml:"progress_every"`
	RunTimeoutRaw string         `yaml:"run_timeout"`
	Schedule      ScheduleConfig `yaml:"schedule"`

	RunTimeout time.Duration `yaml:"-"`
}

// ScheduleConfig defines the daily bulk run schedule.
type ScheduleConfig struct {
	DailyAt string `yaml:"daily_at"`
}

// LoadConfig loads reconciler config from yaml or env. The yaml file named
// by RECONCILE_CONFIG, when present, overrides the env-derived defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Workers:       getenvIntDefault("RECONCILE_WORKERS", defaultWorkers),
		ProgressEvery: getenvIntDefault("RECONCILE_PROGRESS_EVERY", defaultProgressEvery),
		RunTimeout:    getenvDuration("RECONCILE_RUN_TIMEOUT", defaultRunTimeout),
		Schedule: ScheduleConfig{
			DailyAt: os.Getenv("RECONCILE_DAILY_AT"),
		},
	}

	if path := os.Getenv("RECONCILE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		if cfg.RunTimeoutRaw != "" {
			parsed, err := time.ParseDuration(cfg.RunTimeoutRaw)
			if err != nil {
				return cfg, err
			}
			cfg.RunTimeout = parsed
		}
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	return cfg, nil
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
