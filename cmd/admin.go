package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/admin"
	"github.com/jarqyn/jarqyn/internal/app"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/reports"
	"github.com/jarqyn/jarqyn/internal/session"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Edit or delete reports (staff)",
	Long: `Staff commands that change reports on the report service.

Every successful change is followed by a full re-fetch of the report list.
A change that succeeded but could not be followed by a refresh is reported
as a warning, not an error.`,
}

var (
	adminStatus      string
	adminPriority    string
	adminDescription string
)

var adminUpdateCmd = &cobra.Command{
	Use:   "update <REPORT_ID>",
	Short: "Change the status, priority or description of a report",
	Example: `  jarqyn admin update 42 --status in_process
  jarqyn admin update 42 --priority critical --description "Яма на проезжей части"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseReportID(args[0])
		if err != nil {
			return err
		}
		p := patchFromFlags(cmd)
		if err := p.Validate(); err != nil {
			return err
		}

		deps, bridge, err := adminDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		return adminOutcome(cmd, deps, bridge.Update(cmd.Context(), id, p))
	},
}

var adminDeleteCmd = &cobra.Command{
	Use:     "delete <REPORT_ID>",
	Short:   "Delete a report",
	Example: `  jarqyn admin delete 42`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseReportID(args[0])
		if err != nil {
			return err
		}
		deps, bridge, err := adminDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		return adminOutcome(cmd, deps, bridge.Delete(cmd.Context(), id))
	},
}

// patchFromFlags sets only the fields whose flags were given.
func patchFromFlags(cmd *cobra.Command) reports.Patch {
	var p reports.Patch
	if cmd.Flags().Changed("status") {
		st := model.ParseStatus(adminStatus)
		p.Status = &st
	}
	if cmd.Flags().Changed("priority") {
		pr := model.ParsePriority(adminPriority)
		p.Priority = &pr
	}
	if cmd.Flags().Changed("description") {
		d := strings.TrimSpace(adminDescription)
		p.Description = &d
	}
	return p
}

func adminDeps() (*app.Deps, *admin.Bridge, error) {
	deps, err := buildDeps()
	if err != nil {
		return nil, nil, err
	}
	if deps.Offline() {
		deps.Close()
		return nil, nil, fmt.Errorf("admin commands need the live report service (source is %s)", deps.Source)
	}
	return deps, admin.New(deps.Client, deps.Session), nil
}

// adminOutcome prints the bridge notifications and maps a refresh failure
// after an applied change to a warning.
func adminOutcome(cmd *cobra.Command, deps *app.Deps, err error) error {
	if !globalFlags.Quiet {
		for _, n := range deps.Notes.All() {
			if n.Kind == session.KindSuccess {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", n.Message)
			}
		}
	}
	var refreshErr *admin.RefreshError
	if errors.As(err, &refreshErr) {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠  %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}
	if !globalFlags.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d reports after refresh\n", len(deps.Session.Store()))
	}
	return nil
}

func init() {
	f := adminUpdateCmd.Flags()
	f.StringVar(&adminStatus, "status", "", "new status: received|in_process|done")
	f.StringVar(&adminPriority, "priority", "", "new priority: low|medium|high|critical")
	f.StringVar(&adminDescription, "description", "", "new description text")
	_ = adminUpdateCmd.RegisterFlagCompletionFunc("status", fixedValues(statusValues(false)))
	_ = adminUpdateCmd.RegisterFlagCompletionFunc("priority", fixedValues(priorityValues(false)))

	adminCmd.AddCommand(adminUpdateCmd, adminDeleteCmd)
	rootCmd.AddCommand(adminCmd)
}
