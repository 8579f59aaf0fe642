package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"authrelay/pkg/logging"
)

// Exit codes for CLI commands.
// These follow common conventions for scripting and automation.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeTimeout indicates the flow did not complete in time.
	ExitCodeTimeout = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// Global flags shared across subcommands.
var (
	rootConfigPath string
	rootDebug      bool
)

// rootCmd represents the base command for the authrelay application.
var rootCmd = &cobra.Command{
	Use:   "authrelay",
	Short: "Relay OAuth authorization-code callbacks back to their initiator",
	Long: `authrelay runs the browser-redirect half of OAuth 2.0 authorization-code
flows. It records each attempt before the user is redirected, receives the
provider's callback, exchanges the authorization code for tokens using the
stored PKCE verifier, and delivers the result back to whichever process
started the flow.

The initiator and the callback receiver may share a process ('authrelay
login') or run separately ('authrelay serve' plus 'authrelay login
--external') sharing only a state directory.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if rootDebug {
			level = logging.LevelDebug
		}
		logging.Init(level, os.Stderr)
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the
// application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles
// subcommands and flags. This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "authrelay version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var timeout *FlowTimeoutError
	if errors.As(err, &timeout) {
		return ExitCodeTimeout
	}

	var authFailed *AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", "",
		"Configuration directory (default: ~/.config/authrelay)")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false,
		"Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
}
