package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"authrelay/internal/config"
	"authrelay/internal/relay"
	pkgoauth "authrelay/pkg/oauth"
)

// Login-specific flags
var (
	loginIssuer    string
	loginClientID  string
	loginScope     string
	loginAuthURL   string
	loginTokenURL  string
	loginNoBrowser bool
	loginExternal  bool
	loginTimeout   time.Duration
)

// newLoginCmd creates the login command.
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against an OAuth authorization server",
		Long: `Run a browser-based OAuth authorization-code flow.

By default, login hosts its own short-lived callback server, opens the
browser, and waits for the result. With --external, login only creates the
pending attempt and waits; a separately running 'authrelay serve' receives
the callback and publishes the result through the shared state directory.

Examples:
  authrelay login --issuer https://idp.example.com --client-id my-client
  authrelay login --issuer https://idp.example.com --client-id my-client --scope "openid profile"
  authrelay login --issuer https://idp.example.com --client-id my-client --external`,
		RunE: runLogin,
	}

	cmd.Flags().StringVar(&loginIssuer, "issuer", "", "Authorization server issuer URL")
	cmd.Flags().StringVar(&loginClientID, "client-id", "", "OAuth client ID")
	cmd.Flags().StringVar(&loginScope, "scope", "", "Space-separated scopes to request")
	cmd.Flags().StringVar(&loginAuthURL, "auth-url", "", "Authorization endpoint (skips metadata discovery)")
	cmd.Flags().StringVar(&loginTokenURL, "token-url", "", "Token endpoint (skips metadata discovery)")
	cmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	cmd.Flags().BoolVar(&loginExternal, "external", false, "Rely on a running 'authrelay serve' for the callback")
	cmd.Flags().DurationVar(&loginTimeout, "timeout", 0, "Wait deadline (default from config, 2m)")
	cmd.MarkFlagRequired("issuer")
	cmd.MarkFlagRequired("client-id")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	waitTimeout := cfg.Flow.WaitTimeout.AsDuration()
	if loginTimeout > 0 {
		waitTimeout = loginTimeout
	}

	if loginExternal {
		return runExternalLogin(cmd, cfg, configPath, waitTimeout)
	}
	return runEmbeddedLogin(cmd, cfg, configPath, waitTimeout)
}

// runEmbeddedLogin hosts a one-shot callback server in this process. Stores
// are still file-backed so an interrupted login leaves an inspectable trail
// for 'authrelay status'.
func runEmbeddedLogin(cmd *cobra.Command, cfg config.Config, configPath string, waitTimeout time.Duration) error {
	ctx := cmd.Context()

	pending, results, err := fileStores(cfg, configPath)
	if err != nil {
		return err
	}
	bridge := relay.NewChannelBridge()

	reconciler, err := relay.NewReconciler(relay.ReconcilerConfig{
		PendingStore: pending,
		ResultStore:  results,
		Bridge:       bridge,
		OutcomeTTL:   cfg.Flow.OutcomeTTL.AsDuration(),
	})
	if err != nil {
		return err
	}

	var srv *relay.CallbackServer
	handler := relay.NewHandler(relay.HandlerConfig{
		Reconciler: reconciler,
		GraceDelay: cfg.Flow.GraceDelay.AsDuration(),
		Release:    func() { srv.Stop() },
	})
	srv = relay.NewCallbackServer(cfg.Callback.Addr(), cfg.Callback.Path, handler)

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()
	redirectURI, err := srv.Start(serverCtx)
	if err != nil {
		return err
	}
	defer srv.Stop()

	initiator, err := relay.NewInitiator(relay.InitiatorConfig{
		PendingStore: pending,
		ResultStore:  results,
		Bridge:       bridge,
		Namespace:    cfg.Namespace,
		PendingTTL:   cfg.Flow.PendingTTL.AsDuration(),
		PollInterval: cfg.Flow.PollInterval.AsDuration(),
		WaitTimeout:  waitTimeout,
	})
	if err != nil {
		return err
	}

	return runFlow(cmd, ctx, initiator, redirectURI)
}

// runExternalLogin creates the attempt and waits; the callback is received by
// a separately running 'authrelay serve' on the same state directory.
func runExternalLogin(cmd *cobra.Command, cfg config.Config, configPath string, waitTimeout time.Duration) error {
	pending, results, err := fileStores(cfg, configPath)
	if err != nil {
		return err
	}

	initiator, err := relay.NewInitiator(relay.InitiatorConfig{
		PendingStore: pending,
		ResultStore:  results,
		Namespace:    cfg.Namespace,
		PendingTTL:   cfg.Flow.PendingTTL.AsDuration(),
		PollInterval: cfg.Flow.PollInterval.AsDuration(),
		WaitTimeout:  waitTimeout,
	})
	if err != nil {
		return err
	}

	return runFlow(cmd, cmd.Context(), initiator, cfg.Callback.RedirectURI())
}

// runFlow drives one authorization attempt end to end: begin, hand the URL
// to the user, wait for the outcome, report it.
func runFlow(cmd *cobra.Command, ctx context.Context, initiator *relay.Initiator, redirectURI string) error {
	attempt, err := initiator.Begin(ctx, relay.BeginRequest{
		Issuer:        loginIssuer,
		AuthEndpoint:  loginAuthURL,
		TokenEndpoint: loginTokenURL,
		ClientID:      loginClientID,
		RedirectURI:   redirectURI,
		Scope:         loginScope,
	})
	if err != nil {
		return fmt.Errorf("failed to start authorization flow: %w", err)
	}

	out := cmd.OutOrStdout()
	if loginNoBrowser {
		fmt.Fprintf(out, "Open the following URL to authenticate:\n\n  %s\n\n", attempt.AuthURL)
	} else {
		fmt.Fprintln(out, "Opening browser for authentication...")
		if err := pkgoauth.OpenBrowser(attempt.AuthURL); err != nil {
			fmt.Fprintf(out, "Could not open browser: %v\n", err)
			fmt.Fprintf(out, "Open the following URL manually:\n\n  %s\n\n", attempt.AuthURL)
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for authentication..."
	s.Writer = cmd.ErrOrStderr()
	s.Start()

	outcome, err := attempt.Wait(ctx)
	s.Stop()

	if err != nil {
		if errors.Is(err, relay.ErrWaitTimeout) {
			return &FlowTimeoutError{Issuer: loginIssuer}
		}
		return err
	}

	if !outcome.Success {
		fmt.Fprintln(out, text.FgRed.Sprint("Authentication failed"))
		return &AuthFailedError{Issuer: loginIssuer, Reason: outcome.Error}
	}

	fmt.Fprintln(out, text.FgGreen.Sprint("Authentication successful"))
	return nil
}
