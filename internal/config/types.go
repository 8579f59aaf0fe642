package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from Go duration syntax
// ("500ms", "2m") instead of integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration structure for authrelay.
type Config struct {
	// Namespace isolates this instance's outcomes in a shared storage
	// domain.
	Namespace string `yaml:"namespace,omitempty"`

	Callback CallbackConfig `yaml:"callback,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	Flow     FlowConfig     `yaml:"flow,omitempty"`
}

// CallbackConfig defines where the callback HTTP server listens.
type CallbackConfig struct {
	Host string `yaml:"host,omitempty"` // Bind host (default: localhost)
	Port int    `yaml:"port,omitempty"` // Bind port (default: 3000)
	Path string `yaml:"path,omitempty"` // Endpoint path (default: /oauth/callback)
}

// RedirectURI returns the redirect URI the callback server answers on.
func (c CallbackConfig) RedirectURI() string {
	return fmt.Sprintf("http://%s:%d%s", c.Host, c.Port, c.Path)
}

// Addr returns the listen address for the callback server.
func (c CallbackConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig defines where file-backed stores keep their records.
type StorageConfig struct {
	// Dir is the state directory. Empty means "<config dir>/state".
	Dir string `yaml:"dir,omitempty"`
}

// FlowConfig defines the timing parameters of the authorization flow.
type FlowConfig struct {
	PendingTTL   Duration `yaml:"pendingTTL,omitempty"`   // Pending attempt validity (default: 10m)
	OutcomeTTL   Duration `yaml:"outcomeTTL,omitempty"`   // Outcome validity (default: 5m)
	PollInterval Duration `yaml:"pollInterval,omitempty"` // Result polling interval (default: 500ms)
	WaitTimeout  Duration `yaml:"waitTimeout,omitempty"`  // Overall wait deadline (default: 2m)
	GraceDelay   Duration `yaml:"graceDelay,omitempty"`   // Post-callback shutdown delay (default: 100ms)
}
