package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"authrelay/pkg/logging"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending authorization attempts and recent outcomes",
		Long: `List the in-flight authorization attempts and recent outcomes recorded in
the state directory. Expired records are cleaned up as a side effect.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	pending, results, err := fileStores(cfg, configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	now := time.Now()

	entries, err := pending.List()
	if err != nil {
		return fmt.Errorf("failed to list pending attempts: %w", err)
	}

	fmt.Fprintln(out, "Pending attempts")
	if len(entries) == 0 {
		fmt.Fprintln(out, "  none")
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"SESSION", "ISSUER", "CREATED", "EXPIRES IN"})
		for _, e := range entries {
			t.AppendRow(table.Row{
				logging.TruncateSessionID(e.SessionID),
				e.Resume.Issuer,
				e.CreatedAt.Format(time.RFC3339),
				e.ExpiresAt.Sub(now).Round(time.Second),
			})
		}
		t.Render()
	}

	records, err := results.List(cfg.Namespace)
	if err != nil {
		return fmt.Errorf("failed to list outcomes: %w", err)
	}

	fmt.Fprintln(out, "\nRecent outcomes")
	if len(records) == 0 {
		fmt.Fprintln(out, "  none")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"SESSION", "RESULT", "DETAIL", "RECORDED"})
	for _, r := range records {
		result := text.FgGreen.Sprint("success")
		detail := ""
		if !r.Outcome.Success {
			result = text.FgRed.Sprint("failed")
			detail = r.Outcome.Error
		}
		t.AppendRow(table.Row{
			logging.TruncateSessionID(r.SessionID),
			result,
			detail,
			r.Outcome.Timestamp.Format(time.RFC3339),
		})
	}
	t.Render()
	return nil
}
