package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/config"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/normalize"
	"github.com/jarqyn/jarqyn/internal/render"
	"github.com/jarqyn/jarqyn/internal/store"
	"github.com/jarqyn/jarqyn/internal/util"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and manage the local payload archive",
	Long: `Commands for the local bbolt archive.

Every successful live fetch stores the raw listing payload; the newest
archive_keep payloads are kept (default 20). --offline reads the latest
one instead of the report service.`,
}

// openArchive opens the archive without building a session.
func openArchive() (*store.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

// ─── archive stats ────────────────────────────────────────────────────────────

var archiveStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  jarqyn archive stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Stats()
		if err != nil {
			return fmt.Errorf("reading archive stats: %w", err)
		}
		sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", s.Path())
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, st := range stats {
				add(st.Name, strconv.Itoa(st.Count), humanBytes(st.Bytes))
			}
		})
		return nil
	},
}

// ─── archive list ─────────────────────────────────────────────────────────────

var archiveListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List archived payloads, oldest first",
	Example: `  jarqyn archive list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cfg, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := s.ListPayloads()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Archive is empty.")
			return nil
		}
		loc := util.LoadLocation(cfg.Timezone)
		printSimpleTable(cmd.OutOrStdout(), []string{"KEY", "FETCHED", "SOURCE", "QUERY", "SIZE"}, func(add func(...string)) {
			for _, e := range entries {
				add(e.Key, e.FetchedAt.In(loc).Format("2006-01-02 15:04:05"), e.Source, e.Query, humanBytes(int64(e.Bytes)))
			}
		})
		return nil
	},
}

// ─── archive show ─────────────────────────────────────────────────────────────

var archiveShowCmd = &cobra.Command{
	Use:   "show [KEY]",
	Short: "Show the reports in an archived payload (default: the latest)",
	Example: `  jarqyn archive show
  jarqyn archive show fetch:20261019T090500.000000000Z --format jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cfg, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		var (
			p  store.Payload
			ok bool
		)
		if len(args) == 1 {
			p, ok, err = s.GetPayload(args[0])
		} else {
			p, ok, err = s.Latest()
		}
		if err != nil {
			return err
		}
		if !ok {
			if len(args) == 1 {
				return fmt.Errorf("no archived payload %q", args[0])
			}
			return store.ErrEmpty
		}

		raw, warnings, err := normalize.Decode(p.Body)
		if err != nil {
			return fmt.Errorf("archived payload %s: %w", p.Key, err)
		}
		views, more := normalize.Normalizer{MediaBaseURL: cfg.MediaBaseURL}.Normalize(raw)

		loc := util.LoadLocation(cfg.Timezone)
		result := &model.Result{
			Kind:        model.KindReports,
			GeneratedAt: time.Now(),
			Command:     "archive show " + p.Key,
			Data:        views,
			Warnings:    append(warnings, more...),
			Stats:       model.ResultStats{Offline: true, Items: len(views), Total: len(views)},
		}
		if err := (render.Renderer{Location: loc}).RenderTo(globalFlags.Out, result, resolveFormat(cfg.Format)); err != nil {
			return err
		}
		render.PrintFooter(cmd.ErrOrStderr(), result, globalFlags.Verbose)
		return nil
	},
}

// ─── archive prune / clear ────────────────────────────────────────────────────

var archivePruneKeep int

var archivePruneCmd = &cobra.Command{
	Use:     "prune",
	Short:   "Delete all but the newest payloads",
	Example: `  jarqyn archive prune --keep 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cfg, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		keep := archivePruneKeep
		if keep <= 0 {
			keep = cfg.Keep
		}
		n, err := s.Prune(keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d payloads, kept the newest %d\n", n, keep)
		return nil
	},
}

var archiveClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every archived payload",
	Long: `Delete every archived payload.

bbolt does not shrink the database file after deletes. Run
'jarqyn archive compact' afterwards to reclaim disk space.`,
	Example: `  jarqyn archive clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("clearing archive: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared archive")
		fmt.Fprintln(cmd.OutOrStdout(), "  Run 'jarqyn archive compact' to reclaim disk space.")
		return nil
	},
}

// ─── archive compact ──────────────────────────────────────────────────────────

var archiveCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim freed disk space",
	Long: `Compact copies all live data into a new bbolt file and replaces the
original with it. Pages freed by prune and clear are only reused internally
until the file is compacted.`,
	Example: `  jarqyn archive compact`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openArchive()
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Compacting %s ...\n", s.Path())
		before, after, err := s.Compact()
		if err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}

		saved := before - after
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Compaction complete\n")
		fmt.Fprintf(cmd.OutOrStdout(), "  Before: %s\n", humanBytes(before))
		fmt.Fprintf(cmd.OutOrStdout(), "  After:  %s\n", humanBytes(after))
		if saved > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  Saved:  %s\n", humanBytes(saved))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "  No space reclaimed (database was already compact).")
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveStatsCmd, archiveListCmd, archiveShowCmd,
		archivePruneCmd, archiveClearCmd, archiveCompactCmd)

	archivePruneCmd.Flags().IntVar(&archivePruneKeep, "keep", 0, "payloads to keep (default: config archive_keep)")
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
