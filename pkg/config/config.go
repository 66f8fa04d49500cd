// Package config loads the optional YAML file that tunes lane geometry, commits, locks and audits.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dukex/machineline/pkg/layout"
	"github.com/dukex/machineline/pkg/services"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const currentVersion = 1

// ErrInvalidConfig is returned when a loaded file holds values the service cannot run with.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Version    int                       `yaml:"version"`
	Geometry   layout.Geometry           `yaml:"geometry"`
	Scheduling services.SchedulingConfig `yaml:"scheduling"`
	Lock       LockConfig                `yaml:"lock"`
	Audit      AuditConfig               `yaml:"audit"`
}

// LockConfig tunes the distributed lock; TTL bounds how long a crashed holder blocks a machine.
type LockConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// AuditConfig holds the cron expression of the periodic schedule audit.
type AuditConfig struct {
	Schedule string `yaml:"schedule"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version:  currentVersion,
		Geometry: layout.DefaultGeometry(),
		Scheduling: services.SchedulingConfig{
			CommitRetries: 3,
			LockTimeout:   5 * time.Second,
			SnapMinutes:   15,
		},
		Lock:  LockConfig{TTL: 10 * time.Second},
		Audit: AuditConfig{Schedule: "@every 5m"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Version != currentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidConfig, c.Version)
	}

	if c.Geometry.BaseHeight <= 0 || c.Geometry.LayerHeight < 0 {
		return fmt.Errorf("%w: geometry heights must be positive", ErrInvalidConfig)
	}

	if c.Scheduling.CommitRetries < 1 {
		return fmt.Errorf("%w: scheduling.commit_retries must be at least 1", ErrInvalidConfig)
	}

	if c.Scheduling.SnapMinutes < 0 {
		return fmt.Errorf("%w: scheduling.snap_minutes must not be negative", ErrInvalidConfig)
	}

	if c.Scheduling.LockTimeout <= 0 || c.Lock.TTL <= 0 {
		return fmt.Errorf("%w: lock timeouts must be positive", ErrInvalidConfig)
	}

	if c.Audit.Schedule != "" {
		if _, err := cron.ParseStandard(c.Audit.Schedule); err != nil {
			return fmt.Errorf("%w: audit.schedule: %w", ErrInvalidConfig, err)
		}
	}

	return nil
}
