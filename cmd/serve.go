package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"authrelay/internal/relay"
	"authrelay/pkg/logging"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a long-lived OAuth callback server",
		Long: `Run the callback half of the authorization flow as a standalone server.

The server receives provider redirects, performs the code exchange using the
pending attempts recorded in the shared state directory, and publishes the
results there for waiting 'authrelay login --external' processes.

The server keeps running across flows; stop it with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	pending, results, err := fileStores(cfg, configPath)
	if err != nil {
		return err
	}

	reconciler, err := relay.NewReconciler(relay.ReconcilerConfig{
		PendingStore: pending,
		ResultStore:  results,
		OutcomeTTL:   cfg.Flow.OutcomeTTL.AsDuration(),
	})
	if err != nil {
		return err
	}

	// No release hook: the server outlives individual flows.
	handler := relay.NewHandler(relay.HandlerConfig{
		Reconciler: reconciler,
		GraceDelay: cfg.Flow.GraceDelay.AsDuration(),
	})
	srv := relay.NewCallbackServer(cfg.Callback.Addr(), cfg.Callback.Path, handler)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callbackURL, err := srv.Start(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Callback server listening on %s\n", callbackURL)
	fmt.Fprintf(cmd.OutOrStdout(), "State directory: %s\n", cfg.StateDir(configPath))
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop.")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-srv.Err():
			return fmt.Errorf("callback server failed: %w", err)
		case <-ctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		srv.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logging.Info("Callback", "Callback server stopped")
	return nil
}
