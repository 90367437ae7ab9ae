// Package config loads taskgraph's configuration: a YAML file on disk,
// overridden by environment variables, in turn overridden by CLI flags
// bound through viper at the cmd/taskgraph layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved configuration for a taskgraph process.
type Config struct {
	MachineID    string   `yaml:"machine_id"`
	SharedRoot   string   `yaml:"shared_root"`
	StorageRoots []string `yaml:"storage_roots"`
	TestMode     bool     `yaml:"test_mode"`

	Cache     CacheConfig     `yaml:"cache"`
	Hierarchy HierarchyConfig `yaml:"hierarchy"`
	CommitLog CommitLogConfig `yaml:"commit_log"`
	Log       LogConfig       `yaml:"log"`
}

// CacheConfig holds the skeleton cache settings. TTL is used as the
// interval of the background cache rebuild sweep; MaxEntries is not read
// by the cache, which never evicts.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// HierarchyConfig gates the Hierarchy Reconstruction Engine's optional
// diagnostics. Per spec, these never relax correctness: strict mode has
// no "off" switch that enables fuzzy resolution.
type HierarchyConfig struct {
	StrictMode   bool `yaml:"strict_mode"`
	DebugMode    bool `yaml:"debug_mode"`
	ForceRebuild bool `yaml:"force_rebuild"`
	BatchSize    int  `yaml:"batch_size"`
}

// CommitLogConfig tunes retention, retries and auto-sync for the commit
// log. HashAlgorithm is recorded but not read: entries are always hashed
// with sha256.
type CommitLogConfig struct {
	CompressionAge   time.Duration `yaml:"compression_age"`
	MaxRetryAttempts int           `yaml:"max_retry_attempts"`
	HashAlgorithm    string        `yaml:"hash_algorithm"`
	SyncInterval     time.Duration `yaml:"sync_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		MachineID: "local",
		Cache: CacheConfig{
			TTL:        60 * time.Second,
			MaxEntries: 10000,
		},
		Hierarchy: HierarchyConfig{
			StrictMode: true,
			BatchSize:  25,
		},
		CommitLog: CommitLogConfig{
			CompressionAge:   30 * 24 * time.Hour,
			MaxRetryAttempts: 3,
			HashAlgorithm:    "sha256",
			SyncInterval:     5 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads configuration using the real environment.
func Load() (*Config, error) {
	return LoadWithEnv(os.Getenv)
}

// LoadWithEnv loads configuration using the provided environment lookup
// function, so tests can supply isolated environment values without
// mutating process-global state.
func LoadWithEnv(getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPathWithEnv(getenv)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if machineID := getenv("TASKGRAPH_MACHINE_ID"); machineID != "" {
		cfg.MachineID = machineID
	}
	if sharedRoot := getenv("TASKGRAPH_SHARED_ROOT"); sharedRoot != "" {
		cfg.SharedRoot = sharedRoot
	}
	if getenv("TASKGRAPH_TEST_MODE") == "1" || getenv("TASKGRAPH_TEST_MODE") == "true" {
		cfg.TestMode = true
	}

	return cfg, nil
}

func getConfigPath() string {
	return getConfigPathWithEnv(os.Getenv)
}

func getConfigPathWithEnv(getenv func(string) string) string {
	if xdgConfig := getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskgraph", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskgraph", "config.yaml")
}
