package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/render"
)

// ─── list ─────────────────────────────────────────────────────────────────────

var listFilter filterFlags

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports matching the filter",
	Long: `Fetch the full report list and show the reports that match every
selected filter dimension. Filters are applied locally; the search term is
matched case-insensitively against the report description.`,
	Example: `  jarqyn list
  jarqyn list --status received --priority high
  jarqyn list --category ROADS -q яма
  jarqyn list --format jsonl | jarqyn map --stdin --out map.html`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		snap, err := loadSnapshot(cmd.Context(), deps, listFilter)
		if err != nil {
			return err
		}

		result := buildReportsResult("list "+snap.Filter.String(), deps, snap, start)
		w, closeOut, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		r := render.Renderer{Location: deps.Location}
		if err := r.Render(w, result, resolveFormat(deps.Config.Format)); err != nil {
			closeOut()
			return err
		}
		if err := closeOut(); err != nil {
			return err
		}
		render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
		return nil
	},
}

// ─── show ─────────────────────────────────────────────────────────────────────

var showCmd = &cobra.Command{
	Use:     "show <REPORT_ID>",
	Short:   "Show every field of one report",
	Example: `  jarqyn show 42
  jarqyn show 42 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseReportID(args[0])
		if err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		if err := deps.Session.FetchAll(cmd.Context()); err != nil {
			return err
		}
		var found *model.ReportView
		for _, v := range deps.Session.Store() {
			if v.ID == id {
				v := v
				found = &v
				break
			}
		}
		if found == nil {
			return fmt.Errorf("report %d not found", id)
		}

		result := &model.Result{
			Kind:        model.KindReport,
			GeneratedAt: time.Now(),
			Command:     "show " + args[0],
			Data:        found,
			Stats: model.ResultStats{
				Offline:    deps.Offline(),
				DurationMs: time.Since(start).Milliseconds(),
				Items:      1,
				Total:      len(deps.Session.Store()),
			},
		}
		r := render.Renderer{Location: deps.Location}
		if err := r.RenderTo(globalFlags.Out, result, resolveFormat(deps.Config.Format)); err != nil {
			return err
		}
		render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
		return nil
	},
}

// ─── counts ───────────────────────────────────────────────────────────────────

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Count reports by status, priority and category",
	Long: `Count the full report list along each filter dimension. Counts always
cover the whole store, so they show how many reports each filter choice
would select.`,
	Example: `  jarqyn counts
  jarqyn counts --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		if err := deps.Session.FetchAll(cmd.Context()); err != nil {
			return err
		}
		snap := deps.Session.Snapshot()
		counts := filter.Count(snap.Store)
		result := &model.Result{
			Kind:        model.KindCounts,
			GeneratedAt: time.Now(),
			Command:     "counts",
			Data:        counts,
			Warnings:    snap.Warnings,
			Stats: model.ResultStats{
				Offline:    deps.Offline(),
				DurationMs: time.Since(start).Milliseconds(),
				Items:      counts.Total,
				Total:      counts.Total,
			},
		}
		if err := (render.Renderer{}).RenderTo(globalFlags.Out, result, resolveFormat(deps.Config.Format)); err != nil {
			return err
		}
		render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
		return nil
	},
}

func init() {
	addFilterFlags(listCmd, &listFilter)
	rootCmd.AddCommand(listCmd, showCmd, countsCmd)
}
