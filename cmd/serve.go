package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/admin"
	"github.com/jarqyn/jarqyn/internal/server"
)

var (
	serveAddr     string
	serveReadOnly bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API and map page over HTTP",
	Long: `Fetch the report list once and serve it over HTTP:

  GET    /map                    Leaflet page for the filtered reports
  GET    /api/reports            filtered list (status, priority, category, search)
  GET    /api/reports/:id        one report
  GET    /api/markers            GeoJSON markers for the filtered list
  GET    /api/counts             facet counts and the marker summary
  GET    /api/notifications      outcomes of fetches and staff changes
  POST   /api/refresh            re-fetch the list
  PATCH  /api/reports/:id        change status, priority or description
  DELETE /api/reports/:id        delete a report

The mutation routes are not registered with --read-only or in offline mode.`,
	Example: `  jarqyn serve
  jarqyn serve --addr :8080 --read-only
  jarqyn serve --offline`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		addr := deps.Config.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		if err := deps.Session.FetchAll(cmd.Context()); err != nil {
			// The server still starts; /api/refresh can retry.
			deps.Logger.Warn("initial fetch failed", "err", err)
		}

		var bridge *admin.Bridge
		if !serveReadOnly && !deps.Offline() {
			bridge = admin.New(deps.Client, deps.Session)
		}
		if !deps.Config.Debug {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := server.New(server.Options{
			Session:         deps.Session,
			Bridge:          bridge,
			Notes:           deps.Notes,
			Logger:          deps.Logger,
			Map:             mapOptions(deps.Config, deps.Location),
			RefreshInterval: deps.Config.RefreshInterval,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !globalFlags.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "Serving %d reports from %s on http://%s/map\n",
				len(deps.Session.Store()), deps.Source, addr)
		}
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: config listen_addr)")
	serveCmd.Flags().BoolVar(&serveReadOnly, "read-only", false, "do not register the mutation routes")
	rootCmd.AddCommand(serveCmd)
}
