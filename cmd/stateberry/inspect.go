package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockberries/stateberry/config"
	"github.com/blockberries/stateberry/logging"
	"github.com/blockberries/stateberry/store"
	"github.com/blockberries/stateberry/types"
)

var inspectKey string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect a durable state store",
	Long: `Open the configured durable store and print its committed height
and key count. With --key, also print the value stored under that path.

Example:
  stateberry inspect --config config.toml --key accounts/alice`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectKey, "key", "", "path to look up")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(&cfg.Logging).WithComponent("inspect")

	var s store.Store
	switch cfg.Store.Backend {
	case config.BackendLevelDB:
		s, err = store.NewLevelDBStore(cfg.Store.Path, cfg.Store.CacheSize)
	case config.BackendBadger:
		s, err = store.NewBadgerStore(cfg.Store.Path, cfg.Store.CacheSize)
	default:
		return fmt.Errorf("backend %q holds no on-disk state to inspect", cfg.Store.Backend)
	}
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()
	logger.Debug("store opened", logging.Backend(string(cfg.Store.Backend)))

	keys, err := s.GetKeys(types.Path{})
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}

	fmt.Printf("Backend: %s\n", cfg.Store.Backend)
	fmt.Printf("Height:  %d\n", s.CurrentHeight())
	fmt.Printf("Keys:    %d\n", len(keys))

	if inspectKey != "" {
		path, err := types.ParsePath(inspectKey)
		if err != nil {
			return fmt.Errorf("parsing key: %w", err)
		}
		value, err := s.Get(types.Latest(), path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		if value == nil {
			fmt.Printf("Value:   %q is absent\n", inspectKey)
		} else {
			fmt.Printf("Value:   %s\n", value)
		}
	}
	return nil
}
