package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/chart"
	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/session"
	"github.com/jarqyn/jarqyn/internal/util"
)

var (
	chartFilter  filterFlags
	chartBy      string
	chartWidth   int
	chartHeight  int
	chartMaxBars int
	chartTitle   string
	chartStdin   bool
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the filtered reports as an ASCII chart",
	Long: `Chart the reports that match the filter in the terminal.

  --by status|priority|category   horizontal bar chart, one bar per bucket
  --by day                        line plot of reports per day

Days are counted in the display time zone; reports with an unparseable
timestamp are skipped and reported on stderr.`,
	Example: `  jarqyn chart --by status
  jarqyn chart --by category --max-bars 5 --status received
  jarqyn chart --by day --priority high
  jarqyn list --format jsonl | jarqyn chart --stdin --by priority`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			snap session.Snapshot
			loc  = time.UTC
		)
		if chartStdin {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if snap, err = snapshotFromStdin(chartFilter); err != nil {
				return err
			}
			loc = util.LoadLocation(cfg.Timezone)
		} else {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()
			if snap, err = loadSnapshot(cmd.Context(), deps, chartFilter); err != nil {
				return err
			}
			loc = deps.Location
		}

		w, closeOut, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeOut()

		if chartBy == "day" {
			pts, skipped := chart.Daily(snap.View, loc)
			if skipped > 0 && !globalFlags.Quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠  %d reports skipped: unparseable timestamp\n", skipped)
			}
			return chart.Plot(w, pts, chart.PlotOptions{Width: chartWidth, Height: chartHeight, Title: chartTitle})
		}

		facet, title, err := facetBy(filter.Count(snap.View), chartBy)
		if err != nil {
			return err
		}
		if chartTitle != "" {
			title = chartTitle
		}
		return chart.Bar(w, title, facet, chart.BarOptions{Width: chartWidth, MaxBars: chartMaxBars})
	},
}

func facetBy(c model.Counts, by string) ([]model.Count, string, error) {
	switch by {
	case "status":
		return c.ByStatus, "По статусу", nil
	case "priority":
		return c.ByPriority, "По приоритету", nil
	case "category":
		return c.ByCategory, "По категории", nil
	default:
		return nil, "", fmt.Errorf("--by: expected status, priority, category or day, got %q", by)
	}
}

func init() {
	addFilterFlags(chartCmd, &chartFilter)
	f := chartCmd.Flags()
	f.StringVar(&chartBy, "by", "status", "dimension: status|priority|category|day")
	f.IntVar(&chartWidth, "width", 0, "chart width in characters (default: terminal width)")
	f.IntVar(&chartHeight, "height", 0, "plot height in rows for --by day (default: 12)")
	f.IntVar(&chartMaxBars, "max-bars", 0, "keep only the largest N bars")
	f.StringVar(&chartTitle, "title", "", "override the chart title")
	f.BoolVar(&chartStdin, "stdin", false, "read reports as JSONL from stdin instead of fetching")
	_ = chartCmd.RegisterFlagCompletionFunc("by", fixedValues([]string{"status", "priority", "category", "day"}))
	rootCmd.AddCommand(chartCmd)
}
