package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Business struct {
		Timezone            string `yaml:"timezone"`
		SlotDurationMinutes int    `yaml:"slot_duration_minutes"`
		DayEnd              string `yaml:"day_end"`
		MinNoticeMinutes    int    `yaml:"min_notice_minutes"`
		MaxAdvanceDays      int    `yaml:"max_advance_days"`
		GuardLookaheadDays  int    `yaml:"guard_lookahead_days"`
	} `yaml:"business"`

	OTP struct {
		TTLMinutes           int `yaml:"ttl_minutes"`
		MaxAttempts          int `yaml:"max_attempts"`
		IssueIntervalSeconds int `yaml:"issue_interval_seconds"`
	} `yaml:"otp"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/slotwise.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	if cfg.Business.SlotDurationMinutes <= 0 {
		cfg.Business.SlotDurationMinutes = 15
	}
	if 1440%cfg.Business.SlotDurationMinutes != 0 {
		return nil, fmt.Errorf("slot_duration_minutes %d must divide the day evenly", cfg.Business.SlotDurationMinutes)
	}

	return &cfg, nil
}

// Location returns the business IANA timezone; "now" comparisons are only
// meaningful in this zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Business.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Business.Timezone, err)
	}
	return loc, nil
}

func (c *Config) MinNotice() time.Duration {
	if c.Business.MinNoticeMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.Business.MinNoticeMinutes) * time.Minute
}

func (c *Config) MaxAdvance() time.Duration {
	if c.Business.MaxAdvanceDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.Business.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) GuardLookahead() int {
	if c.Business.GuardLookaheadDays <= 0 {
		return 28
	}
	return c.Business.GuardLookaheadDays
}

func (c *Config) OTPTTL() time.Duration {
	if c.OTP.TTLMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.OTP.TTLMinutes) * time.Minute
}

func (c *Config) OTPIssueInterval() time.Duration {
	if c.OTP.IssueIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.OTP.IssueIntervalSeconds) * time.Second
}
