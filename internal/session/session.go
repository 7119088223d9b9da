// Package session owns the report store for one session and the shared
// snapshot both renderers draw from.
//
// The store is replaced wholesale on each successful fetch. Every fetch is
// tagged with a monotonically increasing sequence number; a fetch whose
// number is no longer the latest when it completes is discarded, success or
// failure, so the store always reflects the most recently initiated fetch.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/normalize"
)

// Fetcher retrieves raw report records. The filter state is passed so a
// fetcher may narrow the request server-side; the session filters the
// result again regardless.
type Fetcher interface {
	List(ctx context.Context, f filter.State) ([]model.RawReport, []string, error)
}

// Snapshot is an immutable view of the session at one point in time.
// Store and View must not be modified by callers.
type Snapshot struct {
	// Generation increments each time the store is replaced.
	Generation uint64             `json:"generation"`
	Filter     filter.State       `json:"filter"`
	Store      []model.ReportView `json:"-"`
	View       []model.ReportView `json:"reports"`
	Loading    bool               `json:"loading"`
	FetchedAt  time.Time          `json:"fetched_at"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Located counts the views in the snapshot that carry a location.
func (s Snapshot) Located() int {
	n := 0
	for _, v := range s.View {
		if v.HasLocation() {
			n++
		}
	}
	return n
}

// Options configures a Session.
type Options struct {
	Normalizer normalize.Normalizer
	// Notifier receives fetch failures and mutation outcomes. Nil discards.
	Notifier Notifier
	// SearchDebounce delays SetSearch; zero applies it immediately.
	SearchDebounce time.Duration
	Logger         *slog.Logger
}

// Session is safe for concurrent use.
type Session struct {
	fetcher  Fetcher
	norm     normalize.Normalizer
	notifier Notifier
	debounce time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	seq       uint64
	gen       uint64
	store     []model.ReportView
	filter    filter.State
	loading   bool
	fetchedAt time.Time
	warnings  []string
	snap      Snapshot
	search    *time.Timer
	searchTok uint64

	pubMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// New creates a session with an empty store and the default filter.
func New(f Fetcher, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Normalizer.Logger == nil {
		opts.Normalizer.Logger = log
	}
	s := &Session{
		fetcher:  f,
		norm:     opts.Normalizer,
		notifier: opts.Notifier,
		debounce: opts.SearchDebounce,
		log:      log,
		filter:   filter.Default(),
		subs:     map[int]func(Snapshot){},
	}
	s.rebuildLocked()
	return s
}

// ─── Fetch Lifecycle ──────────────────────────────────────────────────────────

// FetchAll performs one fetch, normalizes the result and replaces the store.
// On failure the store is left intact, one error notification is sent and
// the error is returned. A fetch superseded by a later FetchAll is discarded
// and returns nil.
func (s *Session) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.loading = true
	f := s.filter
	s.rebuildLocked()
	s.mu.Unlock()
	s.publish()

	raw, warnings, err := s.fetcher.List(ctx, f)
	var views []model.ReportView
	if err == nil {
		var nw []string
		views, nw = s.norm.Normalize(raw)
		warnings = append(warnings, nw...)
	}

	s.mu.Lock()
	if latest := s.seq; seq != latest {
		s.mu.Unlock()
		s.log.Debug("discarding stale fetch", "seq", seq, "latest", latest, "err", err)
		return nil
	}
	s.loading = false
	if err != nil {
		s.rebuildLocked()
		s.mu.Unlock()
		s.publish()
		s.log.Warn("fetch failed", "seq", seq, "err", err)
		s.Notify(KindError, "Ошибка загрузки заявок", err)
		return fmt.Errorf("fetching reports: %w", err)
	}
	s.store = views
	s.gen++
	s.fetchedAt = time.Now()
	s.warnings = warnings
	s.rebuildLocked()
	s.mu.Unlock()

	s.log.Debug("store replaced", "seq", seq, "reports", len(views), "warnings", len(warnings))
	s.publish()
	return nil
}

// Loading reports whether the most recently initiated fetch is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Store returns the full normalized collection.
func (s *Session) Store() []model.ReportView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// ─── Filter ───────────────────────────────────────────────────────────────────

// Filter returns the current filter state.
func (s *Session) Filter() filter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetFilter replaces the filter state and recomputes the view immediately.
// A pending debounced search is cancelled.
func (s *Session) SetFilter(f filter.State) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.stopSearchLocked()
	s.filter = f
	s.rebuildLocked()
	s.mu.Unlock()
	s.publish()
	return nil
}

// SetSearch updates the free-text term. With a debounce configured, only
// the last term within the window is applied.
func (s *Session) SetSearch(term string) {
	s.mu.Lock()
	s.stopSearchLocked()
	tok := s.searchTok
	if s.debounce > 0 {
		s.search = time.AfterFunc(s.debounce, func() { s.applySearch(tok, term) })
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.applySearch(tok, term)
}

// applySearch is a no-op when the search was superseded after tok was taken.
func (s *Session) applySearch(tok uint64, term string) {
	s.mu.Lock()
	if tok != s.searchTok {
		s.mu.Unlock()
		return
	}
	s.search = nil
	s.filter = s.filter.WithSearch(term)
	s.rebuildLocked()
	s.mu.Unlock()
	s.publish()
}

func (s *Session) stopSearchLocked() {
	s.searchTok++
	if s.search != nil {
		s.search.Stop()
		s.search = nil
	}
}

// ─── Snapshots ────────────────────────────────────────────────────────────────

// Snapshot returns the current shared snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// SnapshotFor derives a snapshot with a different filter over the current
// store without changing the session filter.
func (s *Session) SnapshotFor(f filter.State) Snapshot {
	s.mu.Lock()
	snap := s.snap
	s.mu.Unlock()
	snap.Filter = f
	snap.View = filter.Apply(snap.Store, f)
	return snap
}

func (s *Session) rebuildLocked() {
	s.snap = Snapshot{
		Generation: s.gen,
		Filter:     s.filter,
		Store:      s.store,
		View:       filter.Apply(s.store, s.filter),
		Loading:    s.loading,
		FetchedAt:  s.fetchedAt,
		Warnings:   s.warnings,
	}
}

// Subscribe registers fn to receive every new snapshot. fn is called
// outside the session lock, one snapshot at a time, and must not subscribe
// or unsubscribe itself. The returned function unregisters it.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.pubMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.pubMu.Unlock()
	return func() {
		s.pubMu.Lock()
		delete(s.subs, id)
		s.pubMu.Unlock()
	}
}

func (s *Session) publish() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range s.subs {
		fn(snap)
	}
}
