package types

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{DataDir: "/tmp/aegis"}.WithDefaults()

	if cfg.CacheGeneration != DefaultCacheGeneration {
		t.Errorf("CacheGeneration = %q", cfg.CacheGeneration)
	}
	if cfg.SyncTimeout != DefaultSyncTimeout {
		t.Errorf("SyncTimeout = %v", cfg.SyncTimeout)
	}
	if cfg.PositionTimeout != DefaultPositionTimeout {
		t.Errorf("PositionTimeout = %v", cfg.PositionTimeout)
	}
	if cfg.ProbeInterval != DefaultProbeInterval {
		t.Errorf("ProbeInterval = %v", cfg.ProbeInterval)
	}

	// Explicit values are preserved.
	cfg = Config{DataDir: "/tmp/aegis", SyncTimeout: time.Minute, CacheGeneration: "g9"}.WithDefaults()
	if cfg.SyncTimeout != time.Minute || cfg.CacheGeneration != "g9" {
		t.Errorf("explicit values clobbered: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{DataDir: "/tmp/aegis"}.WithDefaults()
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Config)
		want error
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, ErrDataDirEmpty},
		{"empty generation", func(c *Config) { c.CacheGeneration = "" }, ErrGenerationEmpty},
		{"zero sync timeout", func(c *Config) { c.SyncTimeout = 0 }, ErrSyncTimeoutInvalid},
		{"zero position timeout", func(c *Config) { c.PositionTimeout = 0 }, ErrPositionTimeoutInvalid},
		{"negative batch limit", func(c *Config) { c.SyncBatchLimit = -1 }, ErrBatchLimitInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mut(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("got %v; want %v", err, tc.want)
			}
		})
	}
}
