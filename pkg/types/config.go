package types

import (
	"errors"
	"time"
)

// Config validation errors.
var (
	ErrDataDirEmpty           = errors.New("data directory must not be empty")
	ErrGenerationEmpty        = errors.New("cache generation must not be empty")
	ErrSyncTimeoutInvalid     = errors.New("sync timeout must be positive")
	ErrBatchLimitInvalid      = errors.New("sync batch limit must not be negative")
	ErrPositionTimeoutInvalid = errors.New("position timeout must be positive")
)

// Default configuration values.
const (
	DefaultCacheGeneration = "aegis-v1"
	DefaultSyncTimeout     = 30 * time.Second
	DefaultPositionTimeout = 5 * time.Second
	DefaultProbeInterval   = 15 * time.Second
)

// Config holds the parameters for opening the store and wiring the
// sync engine, asset cache, and connectivity probe.
type Config struct {
	// DataDir holds the SQLite databases. Created if missing.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// AuthorityURL is the remote report-ingestion endpoint.
	AuthorityURL string `json:"authority_url" yaml:"authority_url"`

	// OriginURL is the upstream origin the asset cache fetches shell
	// assets from and falls through to on cache misses.
	OriginURL string `json:"origin_url" yaml:"origin_url"`

	// CacheGeneration names the active asset cache partition. Bumping
	// it invalidates all assets of prior deployments at activation.
	CacheGeneration string `json:"cache_generation" yaml:"cache_generation"`

	// ListenAddr is the address the serve command binds.
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// PositionURL is an optional positioning endpoint returning
	// {"latitude": ..., "longitude": ...}. Empty disables live fixes.
	PositionURL string `json:"position_url" yaml:"position_url"`

	// SyncSchedule is an optional cron expression for periodic sync
	// passes while serving. Empty disables the schedule.
	SyncSchedule string `json:"sync_schedule" yaml:"sync_schedule"`

	// SyncBatchLimit bounds the number of reports per authority
	// request. Zero submits the whole pending set in one batch.
	SyncBatchLimit int `json:"sync_batch_limit" yaml:"sync_batch_limit"`

	SyncTimeout     time.Duration `json:"sync_timeout" yaml:"sync_timeout"`
	PositionTimeout time.Duration `json:"position_timeout" yaml:"position_timeout"`
	ProbeInterval   time.Duration `json:"probe_interval" yaml:"probe_interval"`

	// LogLevel is a logrus level name; unrecognized values fall back
	// to info.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// WithDefaults returns a copy of the Config with zero-valued fields
// replaced by their defaults.
func (c Config) WithDefaults() Config {
	if c.CacheGeneration == "" {
		c.CacheGeneration = DefaultCacheGeneration
	}
	if c.SyncTimeout == 0 {
		c.SyncTimeout = DefaultSyncTimeout
	}
	if c.PositionTimeout == 0 {
		c.PositionTimeout = DefaultPositionTimeout
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	return c
}

// Validate checks that the Config is well-formed. It returns a
// sentinel error from this package on failure.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	if c.CacheGeneration == "" {
		return ErrGenerationEmpty
	}
	if c.SyncTimeout <= 0 {
		return ErrSyncTimeoutInvalid
	}
	if c.PositionTimeout <= 0 {
		return ErrPositionTimeoutInvalid
	}
	if c.SyncBatchLimit < 0 {
		return ErrBatchLimitInvalid
	}
	return nil
}
