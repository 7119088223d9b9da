// Package app wires together configuration, the report client, the local
// archive and the session into a single Deps struct that commands receive
// at runtime.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jarqyn/jarqyn/internal/config"
	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/normalize"
	"github.com/jarqyn/jarqyn/internal/pipeline"
	"github.com/jarqyn/jarqyn/internal/reports"
	"github.com/jarqyn/jarqyn/internal/session"
	"github.com/jarqyn/jarqyn/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
type Deps struct {
	Config   *config.Config
	Client   *reports.Client
	Archive  *store.Store // nil when the archive could not be opened
	Session  *session.Session
	Notes    *session.Recorder
	Location *time.Location
	Logger   *slog.Logger

	// Source names where the session reads from: "live", "archive" or a file path.
	Source string
}

// Options selects the session's data source.
type Options struct {
	// Input is a saved listing payload to read instead of the service.
	Input string
}

// New builds a Deps from resolved config. The archive is optional: when it
// cannot be opened online fetches still work and the failure is logged.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}

	client := reports.NewClient(cfg.BaseURL, cfg.Timeout, cfg.Rate, cfg.Debug)
	client.ServerFiltering = cfg.ServerFiltering

	d := &Deps{
		Config:   cfg,
		Client:   client,
		Notes:    &session.Recorder{},
		Location: loc,
		Logger:   logger,
		Source:   "live",
	}

	if opts.Input == "" {
		if s, err := store.Open(cfg.DBPath); err != nil {
			if cfg.Offline {
				return nil, fmt.Errorf("opening archive: %w", err)
			}
			logger.Warn("archive unavailable, fetches will not be saved", "path", cfg.DBPath, "err", err)
		} else {
			d.Archive = s
		}
	}

	var fetcher session.Fetcher
	switch {
	case opts.Input != "":
		fetcher = pipeline.FileFetcher{Path: opts.Input}
		d.Source = opts.Input
	case cfg.Offline:
		fetcher = d.Archive
		d.Source = "archive"
	default:
		fetcher = &Archiving{Client: client, Archive: d.Archive, Keep: cfg.Keep, Logger: logger}
	}

	d.Session = session.New(fetcher, session.Options{
		Normalizer:     normalize.Normalizer{MediaBaseURL: cfg.MediaBaseURL, Logger: logger},
		Notifier:       d.Notes,
		SearchDebounce: cfg.SearchDebounce,
		Logger:         logger,
	})
	return d, nil
}

// Close releases the archive.
func (d *Deps) Close() error {
	if d.Archive == nil {
		return nil
	}
	return d.Archive.Close()
}

// Offline reports whether the session reads from something other than the
// live service.
func (d *Deps) Offline() bool { return d.Source != "live" }

// NewLogger returns a text logger on w. debug lowers the level to Debug;
// quiet raises it to Error.
func NewLogger(w io.Writer, debug, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case debug:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ─── Archiving fetcher ────────────────────────────────────────────────────────

// Archiving fetches from the report service and saves each successfully
// decoded payload, keeping the newest Keep entries. Listings narrowed by a
// server-side query are not archived, since the archive must hold the full
// result set. Archive failures are logged and never fail the fetch.
type Archiving struct {
	Client  *reports.Client
	Archive *store.Store
	Keep    int
	Logger  *slog.Logger
}

// List implements session.Fetcher.
func (a *Archiving) List(ctx context.Context, f filter.State) ([]model.RawReport, []string, error) {
	body, err := a.Client.Payload(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	raw, warnings, err := normalize.Decode(body)
	if err != nil {
		return nil, nil, fmt.Errorf("listing reports: %w", err)
	}
	if a.Archive != nil && a.query(f) == "" {
		a.save(body)
	}
	return raw, warnings, nil
}

// query is the query string the client sent for f.
func (a *Archiving) query(f filter.State) string {
	if !a.Client.ServerFiltering {
		return ""
	}
	return f.Query().Encode()
}

func (a *Archiving) save(body []byte) {
	log := a.Logger
	if log == nil {
		log = slog.Default()
	}
	key, err := a.Archive.PutPayload(store.Payload{Source: a.Client.BaseURL(), Body: body})
	if err != nil {
		log.Warn("archiving payload failed", "err", err)
		return
	}
	keep := a.Keep
	if keep <= 0 {
		keep = store.DefaultKeep
	}
	n, err := a.Archive.Prune(keep)
	if err != nil {
		log.Warn("pruning archive failed", "err", err)
		return
	}
	log.Debug("archived payload", "key", key, "bytes", len(body), "pruned", n)
}
