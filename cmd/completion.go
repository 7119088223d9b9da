package cmd

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/normalize"
	"github.com/jarqyn/jarqyn/internal/store"
)

// completionCmd wraps Cobra's built-in shell completion generator. Report ids
// and archive keys are completed from the local archive, never the network.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for jarqyn.

Besides commands and flags, the scripts complete:
  - report ids for show, admin update and admin delete (from the latest
    archived listing, so run "jarqyn list" once first)
  - archive keys for archive show
  - status, priority and category values for the filter flags

Load completions in the current shell:

  source <(jarqyn completion bash)
  source <(jarqyn completion zsh)
  jarqyn completion fish | source

Add the same line to ~/.bashrc, ~/.zshrc or
~/.config/fish/completions/jarqyn.fish to keep them.`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(w, true)
		case "zsh":
			return root.GenZshCompletion(w)
		case "fish":
			return root.GenFishCompletion(w, true)
		default:
			return root.GenPowerShellCompletionWithDesc(w)
		}
	},
}

// ─── Value completions ────────────────────────────────────────────────────────

func statusValues(withAll bool) []string {
	var out []string
	if withAll {
		out = append(out, filter.All+"\tвсе статусы")
	}
	for _, s := range model.Statuses {
		out = append(out, string(s)+"\t"+s.Badge().Label)
	}
	return out
}

func priorityValues(withAll bool) []string {
	var out []string
	if withAll {
		out = append(out, filter.All+"\tвсе приоритеты")
	}
	for _, p := range model.Priorities {
		out = append(out, string(p)+"\t"+p.Badge().Label)
	}
	return out
}

func categoryValues() []string {
	out := []string{filter.All + "\tвсе категории"}
	for _, c := range model.Categories {
		out = append(out, c.Value+"\t"+c.Label)
	}
	return out
}

// fixedValues completes from a closed list and suppresses file completion.
func fixedValues(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

func registerFilterCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("status", fixedValues(statusValues(true)))
	_ = cmd.RegisterFlagCompletionFunc("priority", fixedValues(priorityValues(true)))
	_ = cmd.RegisterFlagCompletionFunc("category", fixedValues(categoryValues()))
}

// ─── Archive-backed completions ───────────────────────────────────────────────

// completionArchive opens the archive only if it already exists.
func completionArchive() (*store.Store, string, bool) {
	cfg, err := loadConfig()
	if err != nil || cfg.DBPath == "" {
		return nil, "", false
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, "", false
	}
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, "", false
	}
	return s, cfg.MediaBaseURL, true
}

// completeReportIDs offers the ids of the latest archived listing, with the
// report title as the description.
func completeReportIDs(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	s, media, ok := completionArchive()
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer s.Close()

	raw, _, err := s.List(context.Background(), filter.Default())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	views, _ := normalize.Normalizer{MediaBaseURL: media}.Normalize(raw)
	var out []string
	for _, v := range views {
		id := strconv.FormatInt(v.ID, 10)
		if strings.HasPrefix(id, toComplete) {
			out = append(out, id+"\t"+v.Title)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeArchiveKeys offers archived payload keys, newest first.
func completeArchiveKeys(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	s, _, ok := completionArchive()
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer s.Close()

	entries, err := s.ListPayloads()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if strings.HasPrefix(e.Key, toComplete) {
			out = append(out, e.Key+"\t"+humanBytes(int64(e.Bytes)))
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	showCmd.ValidArgsFunction = completeReportIDs
	adminUpdateCmd.ValidArgsFunction = completeReportIDs
	adminDeleteCmd.ValidArgsFunction = completeReportIDs
	archiveShowCmd.ValidArgsFunction = completeArchiveKeys

	rootCmd.AddCommand(completionCmd)
}
