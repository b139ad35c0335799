package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blockberries/stateberry/config"
)

var (
	initChainID  string
	initDataDir  string
	initBackend  string
	initOverride bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new application directory",
	Long: `Initialize a stateberry application directory.

This command creates:
  - config.toml: Application configuration
  - genesis.json: Empty genesis document
  - data/: Data directory for state and snapshots

Example:
  stateberry init --chain-id mychain --backend leveldb`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initChainID, "chain-id", "stateberry-testnet-1", "chain ID")
	initCmd.Flags().StringVar(&initDataDir, "data-dir", ".", "directory for configuration and data")
	initCmd.Flags().StringVar(&initBackend, "backend", "memory", "store backend (memory, leveldb, badger)")
	initCmd.Flags().BoolVar(&initOverride, "force", false, "override existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir := initDataDir
	if dataDir == "" {
		dataDir = "."
	}

	configPath := filepath.Join(dataDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil && !initOverride {
		return fmt.Errorf("config.toml already exists; use --force to override")
	}

	cfg := config.DefaultConfig()
	cfg.Chain.ChainID = initChainID
	cfg.Chain.GenesisPath = filepath.Join(dataDir, "genesis.json")
	cfg.Store.Backend = config.Backend(initBackend)
	cfg.Store.Path = filepath.Join(dataDir, "data", "state")
	cfg.Snapshot.Path = filepath.Join(dataDir, "data", "snapshots")

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.WriteConfigFile(configPath, cfg); err != nil {
		return err
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Chain.GenesisPath); os.IsNotExist(err) || initOverride {
		genesis := map[string]any{
			"chain_id":  initChainID,
			"app_state": map[string]json.RawMessage{},
		}
		data, err := json.MarshalIndent(genesis, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding genesis: %w", err)
		}
		if err := os.WriteFile(cfg.Chain.GenesisPath, data, 0o644); err != nil {
			return fmt.Errorf("writing genesis: %w", err)
		}
	}

	fmt.Printf("Initialized %s in %s\n", initChainID, dataDir)
	fmt.Printf("  Config:  %s\n", configPath)
	fmt.Printf("  Genesis: %s\n", cfg.Chain.GenesisPath)
	fmt.Printf("  Backend: %s\n", cfg.Store.Backend)
	return nil
}
