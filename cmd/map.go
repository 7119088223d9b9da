package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/config"
	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/geo"
	"github.com/jarqyn/jarqyn/internal/pipeline"
	"github.com/jarqyn/jarqyn/internal/session"
	"github.com/jarqyn/jarqyn/internal/util"
)

var (
	mapFilter filterFlags
	mapFormat string
	mapStdin  bool
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Render the filtered reports as a Leaflet map page or GeoJSON",
	Long: `Render the reports that match the filter as a standalone HTML page with
a Leaflet map and a list of report cards, or as a GeoJSON FeatureCollection.

Only reports with both coordinates get a marker; every matching report gets
a card. Marker colour follows priority.

With --stdin the reports are read as JSONL (one report per line, the output
of 'jarqyn list --format jsonl') instead of being fetched.`,
	Example: `  jarqyn map --out map.html
  jarqyn map --priority high --format geojson
  jarqyn list --status received --format jsonl | jarqyn map --stdin --out map.html`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mapFormat != "html" && mapFormat != "geojson" {
			return fmt.Errorf("--format: expected html or geojson, got %q", mapFormat)
		}

		var (
			snap session.Snapshot
			opts geo.Options
		)
		if mapStdin {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if snap, err = snapshotFromStdin(mapFilter); err != nil {
				return err
			}
			opts = mapOptions(cfg, util.LoadLocation(cfg.Timezone))
		} else {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()
			if snap, err = loadSnapshot(cmd.Context(), deps, mapFilter); err != nil {
				return err
			}
			opts = mapOptions(deps.Config, deps.Location)
		}

		w, closeOut, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if mapFormat == "geojson" {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			err = enc.Encode(geo.FeatureCollection(geo.Markers(snap.View, opts.Location)))
		} else {
			err = geo.RenderHTML(w, snap, opts)
		}
		if err != nil {
			closeOut()
			return err
		}
		if err := closeOut(); err != nil {
			return err
		}
		if !globalFlags.Quiet {
			fmt.Fprintln(cmd.ErrOrStderr(), geo.MarkerSummary(snap.Located(), locatedIn(snap)))
		}
		return nil
	},
}

// snapshotFromStdin builds a snapshot from JSONL on stdin, filtered locally.
func snapshotFromStdin(ff filterFlags) (session.Snapshot, error) {
	if !pipeline.StdinIsPiped() {
		return session.Snapshot{}, fmt.Errorf("--stdin: nothing piped on stdin")
	}
	st, err := ff.state()
	if err != nil {
		return session.Snapshot{}, err
	}
	views, err := pipeline.ReadViews(os.Stdin)
	if err != nil {
		return session.Snapshot{}, err
	}
	return session.Snapshot{
		Filter:    st,
		Store:     views,
		View:      filter.Apply(views, st),
		FetchedAt: time.Now(),
	}, nil
}

func mapOptions(cfg *config.Config, loc *time.Location) geo.Options {
	return geo.Options{
		TileURL:     cfg.TileURL,
		Attribution: cfg.TileAttribution,
		CenterLat:   cfg.CenterLat,
		CenterLon:   cfg.CenterLon,
		Zoom:        cfg.Zoom,
		Location:    loc,
	}
}

func locatedIn(snap session.Snapshot) int {
	n := 0
	for _, v := range snap.Store {
		if v.HasLocation() {
			n++
		}
	}
	return n
}

func init() {
	addFilterFlags(mapCmd, &mapFilter)
	mapCmd.Flags().StringVar(&mapFormat, "format", "html", "map output: html|geojson")
	mapCmd.Flags().BoolVar(&mapStdin, "stdin", false, "read reports as JSONL from stdin instead of fetching")
	_ = mapCmd.RegisterFlagCompletionFunc("format", fixedValues([]string{"html", "geojson"}))
	rootCmd.AddCommand(mapCmd)
}
