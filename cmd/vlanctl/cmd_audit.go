package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vland/pkg/audit"
	"github.com/newtron-network/vland/pkg/auth"
	"github.com/newtron-network/vland/pkg/cli"
	"github.com/newtron-network/vland/pkg/util"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the audit log",
	Long: `View the audit log of VLAN configuration transactions.

Both vland and vlanctl record every transaction they attempt, together
with the rejection code of the ones that failed validation.

Examples:
  vlanctl audit list --last 24h
  vlanctl audit list --failures
  vlanctl audit list --source resync`,
}

var (
	auditUser     string
	auditSource   string
	auditLast     string
	auditLimit    int
	auditFailures bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authorize(auth.PermAuditView, "audit log"); err != nil {
			return err
		}
		filter := audit.Filter{
			User:        auditUser,
			Source:      audit.Source(auditSource),
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}
		if auditLast != "" {
			d, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-d)
		}

		if cfg.Audit.Path == "" {
			return fmt.Errorf("%w: audit.path is not set", util.ErrInvalidConfig)
		}
		logger, err := audit.NewFileLogger(cfg.Audit.Path, audit.RotationConfig{})
		if err != nil {
			return err
		}
		defer logger.Close()

		events, err := logger.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		if jsonOutput {
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		t := cli.NewTable("TIMESTAMP", "USER", "SOURCE", "OPERATION", "STATUS", "CHANGES")
		for _, e := range events {
			status := cli.Green("ok")
			if !e.Success {
				status = cli.Red(dash(string(e.Code)))
			}
			t.Row(e.Timestamp.Format("2006-01-02 15:04:05"), e.User, string(e.Source),
				e.Operation, status, dash(strings.Join(e.Changes, "; ")))
		}
		t.Flush()
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditSource, "source", "", "Filter by source: user, system or resync")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed transactions")

	auditCmd.AddCommand(auditListCmd)
}
