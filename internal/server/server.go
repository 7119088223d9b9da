// Package server exposes the session over HTTP: the filtered report list,
// map markers, facet counts, the Leaflet page and the staff mutation
// endpoints. Every request reads one consistent snapshot, so the list and
// the markers in a response pair always agree.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jarqyn/jarqyn/internal/admin"
	"github.com/jarqyn/jarqyn/internal/geo"
	"github.com/jarqyn/jarqyn/internal/session"
)

// Options configures a Server.
type Options struct {
	Session *session.Session
	// Bridge handles PATCH and DELETE. Nil makes the server read-only.
	Bridge *admin.Bridge
	// Notes backs /api/notifications. Nil serves an empty list.
	Notes  *session.Recorder
	Logger *slog.Logger
	Map    geo.Options
	// RefreshInterval re-fetches the store periodically while Run is
	// active. Zero disables it.
	RefreshInterval time.Duration
}

// Server is the HTTP front end.
type Server struct {
	sess    *session.Session
	bridge  *admin.Bridge
	notes   *session.Recorder
	log     *slog.Logger
	mapOpts geo.Options
	refresh time.Duration
}

// New creates a Server.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		sess:    opts.Session,
		bridge:  opts.Bridge,
		notes:   opts.Notes,
		log:     log,
		mapOpts: opts.Map,
		refresh: opts.RefreshInterval,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())

	r.GET("/healthz", s.healthHandler)
	r.GET("/map", s.mapHandler)

	api := r.Group("/api")
	{
		api.GET("/reports", s.listHandler)
		api.GET("/reports/:id", s.reportHandler)
		api.GET("/markers", s.markersHandler)
		api.GET("/counts", s.countsHandler)
		api.GET("/notifications", s.notificationsHandler)
		api.POST("/refresh", s.refreshHandler)

		if s.bridge != nil {
			api.PATCH("/reports/:id", s.updateHandler)
			api.DELETE("/reports/:id", s.deleteHandler)
		}
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
// When a refresh interval is configured the store is re-fetched on a ticker.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.refresh > 0 {
		go s.refreshLoop(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("starting gin API", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) refreshLoop(ctx context.Context) {
	t := time.NewTicker(s.refresh)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.sess.FetchAll(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("periodic refresh failed", "err", err)
			}
		}
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}
