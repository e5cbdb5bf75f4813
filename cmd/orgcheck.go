package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/auditor-cli/internal/auditor"
	"github.com/sells-group/auditor-cli/internal/checks"
	"github.com/sells-group/auditor-cli/internal/orgcheck"
	"github.com/sells-group/auditor-cli/internal/resilience"
)

var orgcheckCmd = &cobra.Command{
	Use:   "orgcheck",
	Short: "Run the organization-wide checks only",
	Long:  "Lists the monitored items and reports organization-wide problems such as duplicate titles without checking or fixing any item.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("orgcheck"); err != nil {
			return err
		}

		portal := initPortal()
		tables, closeTables, err := initMetatables(ctx, portal)
		defer closeTables()
		if err != nil {
			return err
		}

		a := auditor.New(portal, auditor.Options{
			Tables:        tables,
			Rules:         checks.DefaultRules(),
			MonitoredType: cfg.Audit.MonitoredType,
			Retry:         resilience.FromRetrySettings(cfg.Retry.MaxRetries, cfg.Retry.DelaySecs),
		})
		if err := a.Setup(ctx); err != nil {
			return err
		}

		formatOrgResults(os.Stdout, a.CheckOrganizationWide())
		return nil
	},
}

// formatOrgResults writes one block per check to w.
func formatOrgResults(out io.Writer, results orgcheck.Results) {
	for _, line := range results.Lines() {
		_, _ = fmt.Fprintln(out, line)
	}
}

func init() {
	rootCmd.AddCommand(orgcheckCmd)
}
