package config

import (
	"path/filepath"

	"authrelay/internal/relay"
)

const (
	// DefaultNamespace is the default result-store isolation prefix.
	DefaultNamespace = "authrelay"

	// DefaultCallbackHost is the default callback server bind host.
	DefaultCallbackHost = "localhost"

	// DefaultCallbackPort is the default callback server port.
	DefaultCallbackPort = 3000

	// DefaultCallbackPath is the default path for OAuth callbacks.
	DefaultCallbackPath = "/oauth/callback"

	// stateDirName is the storage subdirectory under the config directory.
	stateDirName = "state"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Namespace: DefaultNamespace,
		Callback: CallbackConfig{
			Host: DefaultCallbackHost,
			Port: DefaultCallbackPort,
			Path: DefaultCallbackPath,
		},
		Flow: FlowConfig{
			PendingTTL:   Duration(relay.DefaultPendingTTL),
			OutcomeTTL:   Duration(relay.DefaultOutcomeTTL),
			PollInterval: Duration(relay.DefaultPollInterval),
			WaitTimeout:  Duration(relay.DefaultWaitTimeout),
			GraceDelay:   Duration(relay.DefaultGraceDelay),
		},
	}
}

// StateDir resolves the storage directory for file-backed stores: the
// configured one when set, otherwise the "state" subdirectory of the config
// directory.
func (c Config) StateDir(configPath string) string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return filepath.Join(configPath, stateDirName)
}
