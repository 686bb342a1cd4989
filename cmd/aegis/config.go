// Config loading for the aegis CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	defaultConfigDir  = ".aegis"
	defaultDataDir    = ".aegis-db"
	defaultListenAddr = ":8790"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# Aegis configuration

# Data directory holding the local databases
data_dir: .aegis-db

# Remote report-ingestion endpoint
# authority_url: https://authority.example.org/api/reports/batch

# Upstream origin serving the application shell
# origin_url: https://shell.example.org

# Cache generation; bump on each shell deployment
cache_generation: aegis-v1

# Address the serve command binds
listen_addr: ":8790"

# Optional positioning endpoint returning {"latitude", "longitude"}
# position_url: http://127.0.0.1:7117/fix

# Optional cron expression for periodic sync while serving
# sync_schedule: "@every 5m"

# Reports per authority request; 0 sends the whole pending set
sync_batch_limit: 0

log_level: info
`

// resolveConfigDir returns the config directory from flag, env, or
// default.
func resolveConfigDir() string {
	if configDir != "" {
		return configDir
	}
	if v := os.Getenv("AEGIS_CONFIG_DIR"); v != "" {
		return v
	}
	return defaultConfigDir
}

// loadConfig reads config.yaml from the config directory with Viper,
// creating the directory and a default config.yaml on first run.
// Values are overridable through AEGIS_* environment variables; a
// .env file is loaded first when present.
func loadConfig(dir string) (types.Config, error) {
	// .env is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return types.Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.Config{}, fmt.Errorf("create config directory: %w", err)
	}
	if err := writeDefaultConfigIfMissing(filepath.Join(dir, "config.yaml")); err != nil {
		return types.Config{}, err
	}

	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", defaultDataDir)
	v.SetDefault("cache_generation", types.DefaultCacheGeneration)
	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("sync_batch_limit", 0)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		// A missing config.yaml is not an error; defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := types.Config{
		DataDir:         v.GetString("data_dir"),
		AuthorityURL:    v.GetString("authority_url"),
		OriginURL:       v.GetString("origin_url"),
		CacheGeneration: v.GetString("cache_generation"),
		ListenAddr:      v.GetString("listen_addr"),
		PositionURL:     v.GetString("position_url"),
		SyncSchedule:    v.GetString("sync_schedule"),
		SyncBatchLimit:  v.GetInt("sync_batch_limit"),
		SyncTimeout:     v.GetDuration("sync_timeout"),
		PositionTimeout: v.GetDuration("position_timeout"),
		ProbeInterval:   v.GetDuration("probe_interval"),
		LogLevel:        v.GetString("log_level"),
	}.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// writeDefaultConfigIfMissing creates config.yaml with the default
// content when absent. An existing file is never overwritten.
func writeDefaultConfigIfMissing(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// deviceID returns this device's stable identifier, generating and
// persisting one under the data directory on first use. The authority
// keys its duplicate detection on (device, report id), so the id must
// survive restarts.
func deviceID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, "device_id")
	if raw, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(raw))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}
