// Package cmd implements the jarqyn CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/app"
	"github.com/jarqyn/jarqyn/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	BaseURL  string
	MediaURL string
	Format   string
	Out      string
	Timeout  string
	Rate     float64
	Offline  bool
	Input    string
	Quiet    bool
	Verbose  bool
	Debug    bool
}

// rootCmd is the base command. Running `jarqyn` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "jarqyn",
	Short: "jarqyn: city problem reports dashboard",
	Long: `jarqyn reads citizen problem reports from the city report service,
filters them by status, priority, category and free text, and shows them
as tables, charts or an interactive map.

Reports can also be served over HTTP for the staff dashboard, where
status, priority and description can be edited.

Quick start:
  jarqyn config init               # create a config.json
  jarqyn list --status received    # list new reports
  jarqyn map --out map.html        # render the map page
  jarqyn serve                     # run the dashboard API`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves config and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.BaseURL, globalFlags.MediaURL)
	if err != nil {
		return nil, err
	}

	cfg.Offline = globalFlags.Offline
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("--timeout: invalid duration %q", globalFlags.Timeout)
		}
		cfg.Timeout = d
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}
	return cfg, nil
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE. The caller closes the deps.
func buildDeps() (*app.Deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := app.NewLogger(os.Stderr, cfg.Debug, cfg.Quiet)
	slog.SetDefault(logger)

	return app.New(cfg, logger, app.Options{Input: globalFlags.Input})
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.BaseURL, "base-url", "",
		"report service listing URL (overrides env JARQYN_BASE_URL and config.json)")
	pf.StringVar(&globalFlags.MediaURL, "media-url", "",
		"base URL prepended to photo paths (overrides env JARQYN_MEDIA_URL)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 10s, 1m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max requests per second to the report service (default: 5.0)")
	pf.BoolVar(&globalFlags.Offline, "offline", false,
		"read the latest archived payload instead of the live service")
	pf.StringVar(&globalFlags.Input, "input", "",
		"read reports from a saved listing payload (JSON array)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show source and timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests and responses")
}
