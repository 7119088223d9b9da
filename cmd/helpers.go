package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/app"
	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/render"
	"github.com/jarqyn/jarqyn/internal/session"
)

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns def, or a file created at --out. The returned close
// function is always safe to call.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// ─── Filter flags ─────────────────────────────────────────────────────────────

// filterFlags are the four filter dimensions shared by every command that
// reads the report list.
type filterFlags struct {
	Status   string
	Priority string
	Category string
	Search   string
}

func addFilterFlags(cmd *cobra.Command, ff *filterFlags) {
	f := cmd.Flags()
	f.StringVar(&ff.Status, "status", filter.All, "status: all|received|in_process|done")
	f.StringVar(&ff.Priority, "priority", filter.All, "priority: all|low|medium|high|critical")
	f.StringVar(&ff.Category, "category", filter.All, "category value, e.g. WASTE or ROAD_DEFECTS")
	f.StringVarP(&ff.Search, "search", "q", "", "case-insensitive text to look for in descriptions")
	registerFilterCompletions(cmd)
}

func (ff filterFlags) state() (filter.State, error) {
	return filter.Parse(ff.Status, ff.Priority, ff.Category, ff.Search)
}

// loadSnapshot applies the filter, fetches the full list once and returns
// the resulting snapshot.
func loadSnapshot(ctx context.Context, deps *app.Deps, ff filterFlags) (session.Snapshot, error) {
	st, err := ff.state()
	if err != nil {
		return session.Snapshot{}, err
	}
	if err := deps.Session.SetFilter(st); err != nil {
		return session.Snapshot{}, err
	}
	if err := deps.Session.FetchAll(ctx); err != nil {
		return session.Snapshot{}, err
	}
	return deps.Session.Snapshot(), nil
}

// buildReportsResult wraps the snapshot's filtered view in a Result envelope.
func buildReportsResult(command string, deps *app.Deps, snap session.Snapshot, start time.Time) *model.Result {
	return &model.Result{
		Kind:        model.KindReports,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        snap.View,
		Warnings:    snap.Warnings,
		Stats: model.ResultStats{
			Offline:    deps.Offline(),
			DurationMs: time.Since(start).Milliseconds(),
			Items:      len(snap.View),
			Total:      len(snap.Store),
		},
	}
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := render.NewTable(w, headers)
	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// parseReportID parses a report id, which must be a positive integer.
func parseReportID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid report id %q: expected a positive integer", s)
	}
	return id, nil
}
