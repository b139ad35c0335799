// Package config defines the TOML configuration for a stateberry
// application: chain identity, store backend, pruning, snapshots, metrics
// and logging.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Backend identifies a storage backend.
type Backend string

// Storage backend constants.
const (
	// BackendMemory is the merkleized in-memory store. It is the only
	// backend that supports proofs and historical height reads.
	BackendMemory Backend = "memory"

	// BackendLevelDB is the durable LevelDB store.
	BackendLevelDB Backend = "leveldb"

	// BackendBadger is the durable Badger store.
	BackendBadger Backend = "badger"
)

// ValidBackends contains all valid storage backends.
var ValidBackends = []Backend{BackendMemory, BackendLevelDB, BackendBadger}

// IsValid returns true if the backend is valid.
func (b Backend) IsValid() bool {
	for _, valid := range ValidBackends {
		if b == valid {
			return true
		}
	}
	return false
}

// Config is the main configuration for a stateberry application.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Store    StoreConfig    `toml:"store"`
	Pruning  PruningConfig  `toml:"pruning"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ChainConfig contains chain identity configuration.
type ChainConfig struct {
	// ChainID is the unique identifier for the chain.
	ChainID string `toml:"chain_id"`

	// GenesisPath is the path to the genesis document.
	GenesisPath string `toml:"genesis_path"`
}

// StoreConfig contains state storage configuration.
type StoreConfig struct {
	// Backend is the storage backend to use ("memory", "leveldb" or
	// "badger").
	Backend Backend `toml:"backend"`

	// Path is the directory path for durable backends. Ignored for the
	// memory backend.
	Path string `toml:"path"`

	// CacheSize is the committed-read cache size for durable backends.
	CacheSize int `toml:"cache_size"`
}

// PruningConfig contains height pruning configuration.
type PruningConfig struct {
	// Enabled determines whether automatic pruning is active.
	Enabled bool `toml:"enabled"`

	// KeepRecent is the number of recent heights to always keep.
	KeepRecent uint64 `toml:"keep_recent"`

	// Interval is the time between automatic pruning runs.
	Interval Duration `toml:"interval"`
}

// SnapshotConfig contains state snapshot configuration.
type SnapshotConfig struct {
	// Enabled determines whether snapshots are taken.
	Enabled bool `toml:"enabled"`

	// Path is the directory snapshots are written to.
	Path string `toml:"path"`

	// ChunkSize is the maximum snapshot chunk size in bytes.
	ChunkSize int `toml:"chunk_size"`

	// KeepRecent is the number of snapshots to retain.
	KeepRecent int `toml:"keep_recent"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled determines whether metrics collection is active.
	Enabled bool `toml:"enabled"`

	// Namespace is the Prometheus metrics namespace prefix.
	Namespace string `toml:"namespace"`

	// ListenAddr is the address to serve metrics on (e.g., ":9090").
	ListenAddr string `toml:"listen_addr"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`

	// Output is the log output destination ("stdout", "stderr", or a file path).
	Output string `toml:"output"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Chain: ChainConfig{
			ChainID:     "stateberry-testnet-1",
			GenesisPath: "genesis.json",
		},
		Store: StoreConfig{
			Backend:   BackendMemory,
			Path:      "data/state",
			CacheSize: 1024,
		},
		Pruning: PruningConfig{
			Enabled:    true,
			KeepRecent: 100,
			Interval:   Duration(time.Hour),
		},
		Snapshot: SnapshotConfig{
			Enabled:    false,
			Path:       "data/snapshots",
			ChunkSize:  10 * 1024 * 1024,
			KeepRecent: 2,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Namespace:  "stateberry",
			ListenAddr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validation errors.
var (
	ErrEmptyChainID           = errors.New("chain_id cannot be empty")
	ErrEmptyGenesisPath       = errors.New("genesis_path cannot be empty")
	ErrInvalidBackend         = errors.New("store backend must be one of: memory, leveldb, badger")
	ErrEmptyStorePath         = errors.New("store path cannot be empty for durable backends")
	ErrInvalidCacheSize       = errors.New("store cache_size must be non-negative")
	ErrInvalidPruneInterval   = errors.New("pruning interval must be positive when enabled")
	ErrEmptySnapshotPath      = errors.New("snapshot path cannot be empty when enabled")
	ErrInvalidChunkSize       = errors.New("snapshot chunk_size must be positive when enabled")
	ErrInvalidSnapshotKeep    = errors.New("snapshot keep_recent must be positive when enabled")
	ErrEmptyMetricsNamespace  = errors.New("metrics namespace cannot be empty when enabled")
	ErrEmptyMetricsListenAddr = errors.New("metrics listen_addr cannot be empty when enabled")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be 'text' or 'json'")
	ErrEmptyLogOutput         = errors.New("log output cannot be empty")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Chain.Validate(); err != nil {
		return fmt.Errorf("chain config: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if err := c.Pruning.Validate(); err != nil {
		return fmt.Errorf("pruning config: %w", err)
	}
	if err := c.Snapshot.Validate(); err != nil {
		return fmt.Errorf("snapshot config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the chain configuration for errors.
func (c *ChainConfig) Validate() error {
	if c.ChainID == "" {
		return ErrEmptyChainID
	}
	if c.GenesisPath == "" {
		return ErrEmptyGenesisPath
	}
	return nil
}

// Validate checks the store configuration for errors.
func (c *StoreConfig) Validate() error {
	if !c.Backend.IsValid() {
		return ErrInvalidBackend
	}
	if c.Backend != BackendMemory && c.Path == "" {
		return ErrEmptyStorePath
	}
	if c.CacheSize < 0 {
		return ErrInvalidCacheSize
	}
	return nil
}

// Validate checks the pruning configuration for errors.
func (c *PruningConfig) Validate() error {
	if c.Enabled && c.Interval.Duration() <= 0 {
		return ErrInvalidPruneInterval
	}
	return nil
}

// Validate checks the snapshot configuration for errors.
func (c *SnapshotConfig) Validate() error {
	if c.Enabled {
		if c.Path == "" {
			return ErrEmptySnapshotPath
		}
		if c.ChunkSize <= 0 {
			return ErrInvalidChunkSize
		}
		if c.KeepRecent <= 0 {
			return ErrInvalidSnapshotKeep
		}
	}
	return nil
}

// Validate checks the metrics configuration for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled {
		if c.Namespace == "" {
			return ErrEmptyMetricsNamespace
		}
		if c.ListenAddr == "" {
			return ErrEmptyMetricsListenAddr
		}
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return ErrInvalidLogLevel
	}

	switch c.Format {
	case "text", "json":
		// Valid formats
	default:
		return ErrInvalidLogFormat
	}

	if c.Output == "" {
		return ErrEmptyLogOutput
	}

	return nil
}

// WriteConfigFile writes the configuration to a TOML file.
func WriteConfigFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}

// EnsureDataDirs creates the data directories specified in the configuration.
func (c *Config) EnsureDataDirs() error {
	dirs := []string{
		c.Store.Path,
		c.Snapshot.Path,
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	return nil
}
