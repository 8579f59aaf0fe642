package cmd

import (
	"fmt"

	"authrelay/internal/config"
	"authrelay/internal/relay"
)

// loadConfig resolves the configuration directory and loads config.yaml,
// falling back to defaults when the file is absent.
func loadConfig() (config.Config, string, error) {
	configPath := rootConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, configPath, nil
}

// fileStores builds the file-backed store pair on the configured state
// directory. Used whenever initiator and callback receiver may live in
// different processes.
func fileStores(cfg config.Config, configPath string) (*relay.FilePendingStore, *relay.FileResultStore, error) {
	stateDir := cfg.StateDir(configPath)

	pending, err := relay.NewFilePendingStore(stateDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pending-state storage: %w", err)
	}
	results, err := relay.NewFileResultStore(stateDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open result storage: %w", err)
	}
	return pending, results, nil
}
