package main

import (
	"fmt"
	"io"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/newtron-network/nsxctl/pkg/audit"
	"github.com/newtron-network/nsxctl/pkg/cli"
	"github.com/newtron-network/nsxctl/pkg/settings"
	"github.com/newtron-network/nsxctl/pkg/util"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: heredoc.Doc(`
		View the audit log of mutating API requests.

		Every POST, PUT, PATCH and DELETE is logged with:
		  - Timestamp
		  - User and manager
		  - Method and path
		  - Result code, or dry-run in safe mode

		Examples:
		  nsxctl audit list --method PATCH
		  nsxctl audit list --last 24h
		  nsxctl audit list --path /policy/api/v1/infra/segments --failures`),
}

var (
	auditManager  string
	auditUser     string
	auditMethod   string
	auditPath     string
	auditLast     string
	auditLimit    int
	auditFailures bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Manager:     auditManager,
			User:        auditUser,
			Method:      auditMethod,
			PathPrefix:  auditPath,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
		}

		// Parse --last duration
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return util.NewValidationError(fmt.Sprintf("invalid duration: %s", auditLast))
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		s := userSettings
		if s == nil {
			s = &settings.Settings{}
		}
		logger, err := audit.NewFileLogger(s.AuditLogPath(), audit.RotationConfig{})
		if err != nil {
			return err
		}
		defer logger.Close()

		events, err := logger.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		format, err := cli.ParseFormat(outputFormat())
		if err != nil {
			return err
		}
		if format != cli.FormatTable {
			if events == nil {
				events = []*audit.Event{}
			}
			return cli.NewPrinter(cmd.OutOrStdout(), format).Value(events)
		}
		return printEvents(cmd.OutOrStdout(), events)
	},
}

// outputFormat returns the resolved -o option.
func outputFormat() string {
	if options == nil {
		return ""
	}
	return options.GetString(flagOutput)
}

func printEvents(out io.Writer, events []*audit.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(out, "No audit events found")
		return nil
	}

	t := cli.NewTable(out, "TIMESTAMP", "USER", "METHOD", "PATH", "CODE", "STATUS")
	for _, event := range events {
		status := cli.Green("ok")
		if !event.Success {
			status = cli.Red("failed")
		}
		if event.DryRun {
			status = cli.Yellow("dry-run")
		}
		code := cli.Dim("-")
		if event.Status != 0 {
			code = fmt.Sprint(event.Status)
		}
		t.Row(
			event.Timestamp.Format("2006-01-02 15:04:05"),
			event.User,
			event.Method,
			util.Truncate(event.Path, 60),
			code,
			status,
		)
	}
	return t.Render()
}

func init() {
	auditListCmd.Flags().StringVar(&auditManager, "manager-host", "", "Filter by manager")
	auditListCmd.Flags().StringVar(&auditUser, "user-name", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditMethod, "method", "", "Filter by HTTP method")
	auditListCmd.Flags().StringVar(&auditPath, "path", "", "Filter by API path prefix")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 1h, 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed operations")

	auditCmd.AddCommand(auditListCmd)
}
