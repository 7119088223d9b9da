package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/config"
	"github.com/jarqyn/jarqyn/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage jarqyn configuration",
	Long:  `Read and write jarqyn configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Edit base_url and media_base_url to point at your report service.")
		return nil
	},
}

// configOut is the resolved configuration as printed by `config get`.
type configOut struct {
	BaseURL         string  `json:"base_url"`
	MediaBaseURL    string  `json:"media_base_url"`
	Format          string  `json:"default_format"`
	Timeout         string  `json:"timeout"`
	Rate            float64 `json:"rate"`
	DBPath          string  `json:"db_path"`
	Keep            int     `json:"archive_keep"`
	TileURL         string  `json:"tile_url"`
	CenterLat       float64 `json:"center_lat"`
	CenterLon       float64 `json:"center_lon"`
	Zoom            int     `json:"zoom"`
	Timezone        string  `json:"timezone"`
	ListenAddr      string  `json:"listen_addr"`
	ServerFiltering bool    `json:"server_filtering"`
	SearchDebounce  string  `json:"search_debounce"`
	RefreshInterval string  `json:"refresh_interval"`
	ConfigFile      string  `json:"config_file"`
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}
		refresh := "off"
		if cfg.RefreshInterval > 0 {
			refresh = cfg.RefreshInterval.String()
		}
		out := configOut{
			BaseURL:         cfg.BaseURL,
			MediaBaseURL:    cfg.MediaBaseURL,
			Format:          cfg.Format,
			Timeout:         cfg.Timeout.String(),
			Rate:            cfg.Rate,
			DBPath:          cfg.DBPath,
			Keep:            cfg.Keep,
			TileURL:         cfg.TileURL,
			CenterLat:       cfg.CenterLat,
			CenterLon:       cfg.CenterLon,
			Zoom:            cfg.Zoom,
			Timezone:        cfg.Timezone,
			ListenAddr:      cfg.ListenAddr,
			ServerFiltering: cfg.ServerFiltering,
			SearchDebounce:  cfg.SearchDebounce.String(),
			RefreshInterval: refresh,
			ConfigFile:      src,
		}

		if resolveFormat(cfg.Format) == render.FormatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printKVTable(cmd.OutOrStdout(), [][]string{
			{"base_url", out.BaseURL},
			{"media_base_url", out.MediaBaseURL},
			{"default_format", out.Format},
			{"timeout", out.Timeout},
			{"rate", fmt.Sprintf("%.1f req/s", out.Rate)},
			{"db_path", out.DBPath},
			{"archive_keep", strconv.Itoa(out.Keep)},
			{"tile_url", out.TileURL},
			{"center", fmt.Sprintf("%.4f, %.4f (zoom %d)", out.CenterLat, out.CenterLon, out.Zoom)},
			{"timezone", out.Timezone},
			{"listen_addr", out.ListenAddr},
			{"server_filtering", strconv.FormatBool(out.ServerFiltering)},
			{"search_debounce", out.SearchDebounce},
			{"refresh_interval", out.RefreshInterval},
			{"config_file", out.ConfigFile},
		})
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Long: "Set a configuration value in config.json.\n\nKeys: " +
		strings.Join(config.Keys(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		tmpl := config.Template()
		f := &tmpl
		if _, err := os.Stat(path); err == nil {
			if f, err = config.ReadFile(path); err != nil {
				return err
			}
		}
		if err := f.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, *f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", strings.ToLower(args[0]), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

// printKVTable renders a two-column key/value table using aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}
