// Package config provides configuration management for authrelay.
//
// Configuration is loaded from a single directory containing config.yaml.
// The default location is ~/.config/authrelay, overridable with the
// --config-path flag. A missing config.yaml is not an error; defaults apply.
//
// # Configuration Structure
//
//	namespace: "authrelay"        # result-store isolation prefix
//	callback:
//	  host: "localhost"           # callback server bind host
//	  port: 3000                  # callback server port
//	  path: "/oauth/callback"     # callback endpoint path
//	storage:
//	  dir: ""                     # state directory (default: <config dir>/state)
//	flow:
//	  pendingTTL: 10m             # pending attempt validity window
//	  outcomeTTL: 5m              # published outcome validity window
//	  pollInterval: 500ms         # result polling interval
//	  waitTimeout: 2m             # overall wait deadline
//	  graceDelay: 100ms           # shutdown delay after a callback completes
//
// Durations use Go duration syntax ("500ms", "2m", "1h30m").
package config
