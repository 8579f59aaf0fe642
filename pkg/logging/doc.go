// Package logging provides a structured logging system for authrelay built
// on Go's standard slog package.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about application operation
//   - **Warn**: Warning messages that indicate potential issues
//   - **Error**: Error messages for failures and exceptional conditions
//
// # Structured Logging
//
// All log entries include a timestamp, the log level, a subsystem identifier
// for categorization, the message content with optional formatting, and
// optional error information.
//
// # Usage
//
//	import "authrelay/pkg/logging"
//
//	// Initialize with Info level logging to stderr
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Relay", "Callback server listening on %s", addr)
//	logging.Debug("Store", "Consumed pending entry for state=%s", state)
//	logging.Error("Exchange", err, "Token exchange failed")
//
// # Subsystem Organization
//
// Logs are organized by subsystem to enable filtering:
//
//   - **Relay**: Callback reconciliation and outcome publication
//   - **Store**: Pending-state and result store operations
//   - **Exchange**: Authorization-code exchange against the token endpoint
//   - **Bridge**: Direct-channel result notification
//   - **Callback**: Callback HTTP server lifecycle
//   - **ConfigLoader**: Configuration loading and validation
//
// # Security
//
// Session identifiers are truncated via TruncateSessionID before logging so
// that full session IDs never appear in log output. Authorization codes and
// tokens are never logged.
//
// # Thread Safety
//
// The logging system is safe for concurrent use from multiple goroutines.
package logging
