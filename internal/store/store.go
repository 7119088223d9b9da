// Package store provides a thin bbolt wrapper for jarqyn's local archive.
//
// The archive keeps the raw listing payloads of recent successful fetches so
// the tool can run offline against the last known report set. Payloads are
// stored verbatim and decoded on read, which keeps them subject to the same
// tolerant decoding as live data.
//
// Buckets:
//
//	payloads: raw listing bodies keyed by fetch time
//	_meta:    internal: schema version, created_at
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/normalize"
	"github.com/jarqyn/jarqyn/internal/util"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// DefaultKeep is the number of payloads retained by Prune when no limit is
// configured.
const DefaultKeep = 20

// Bucket name constants.
var (
	bucketPayloads = []byte("payloads")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"payloads"}

// ErrEmpty is returned when the archive holds no payload.
var ErrEmpty = errors.New("archive is empty: run a fetch while online first")

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPayloads, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Payloads ─────────────────────────────────────────────────────────────────

// Payload is one archived listing response.
type Payload struct {
	Key       string          `json:"key"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    string          `json:"source"`
	Query     string          `json:"query,omitempty"`
	Body      json.RawMessage `json:"body"`
}

// Entry describes an archived payload without its body.
type Entry struct {
	Key       string    `json:"key"`
	FetchedAt time.Time `json:"fetched_at"`
	Source    string    `json:"source"`
	Query     string    `json:"query,omitempty"`
	Bytes     int       `json:"bytes"`
}

// PayloadKey builds the key for a payload fetched at t. Keys sort
// chronologically.
func PayloadKey(t time.Time) string {
	return "fetch:" + t.UTC().Format("20060102T150405.000000000Z")
}

// PutPayload archives a listing body. FetchedAt defaults to now.
func (s *Store) PutPayload(p Payload) (string, error) {
	if !json.Valid(p.Body) {
		return "", errors.New("payload body is not valid JSON")
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now()
	}
	p.FetchedAt = p.FetchedAt.UTC()
	p.Key = PayloadKey(p.FetchedAt)
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPayloads).Put([]byte(p.Key), b)
	})
	return p.Key, err
}

// GetPayload retrieves a payload by key.
// Returns (payload, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetPayload(key string) (Payload, bool, error) {
	var p Payload
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPayloads).Get([]byte(key))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return p, false, err
	}
	return p, p.Key != "", nil
}

// Latest returns the most recently archived payload.
func (s *Store) Latest() (Payload, bool, error) {
	var p Payload
	err := s.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(bucketPayloads).Cursor().Last()
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return p, false, err
	}
	return p, p.Key != "", nil
}

// LatestFull returns the most recent payload that was fetched without a
// server-side query. Filtered payloads written by older versions are skipped.
func (s *Store) LatestFull() (Payload, bool, error) {
	var p Payload
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPayloads).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var cand Payload
			if err := json.Unmarshal(v, &cand); err != nil {
				return err
			}
			if cand.Query == "" {
				p = cand
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return p, false, err
	}
	return p, p.Key != "", nil
}

// ListPayloads returns every archived payload, oldest first, without bodies.
func (s *Store) ListPayloads() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPayloads).ForEach(func(k, v []byte) error {
			var p Payload
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			entries = append(entries, Entry{
				Key:       p.Key,
				FetchedAt: p.FetchedAt,
				Source:    p.Source,
				Query:     p.Query,
				Bytes:     len(p.Body),
			})
			return nil
		})
	})
	return entries, err
}

// Prune keeps the newest keep payloads and deletes the rest.
// It returns the number deleted.
func (s *Store) Prune(keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPayloads)
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		if len(keys) <= keep {
			return nil
		}
		for _, k := range keys[:len(keys)-keep] {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// ─── Offline Fetcher ──────────────────────────────────────────────────────────

// List decodes the latest unfiltered archived payload. It lets the archive
// stand in for the report service; the filter is applied later by the session.
func (s *Store) List(ctx context.Context, _ filter.State) ([]model.RawReport, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p, ok, err := s.LatestFull()
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive: %w", err)
	}
	if !ok {
		return nil, nil, ErrEmpty
	}
	raw, warnings, err := normalize.Decode(p.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("archived payload %s: %w", p.Key, err)
	}
	return raw, warnings, nil
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket. Every bucket is
// attempted; failures are returned together as a *util.MultiError.
func (s *Store) ClearAll() error {
	var errs util.MultiError
	for _, name := range AllBuckets {
		errs.Add(s.ClearBucket(name))
	}
	return errs.Err()
}

// Compact rewrites the database into a fresh file, reclaiming the pages freed
// by pruning, and reopens it. It returns the file size before and after.
func (s *Store) Compact() (before, after int64, err error) {
	path := s.db.Path()
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	before = fi.Size()

	tmp := path + ".compact"
	_ = os.Remove(tmp)
	dst, err := bolt.Open(tmp, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("opening compaction target: %w", err)
	}
	if err := bolt.Compact(dst, s.db, 1<<16); err != nil {
		dst.Close()
		_ = os.Remove(tmp)
		return before, 0, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return before, 0, err
	}
	if err := s.db.Close(); err != nil {
		return before, 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return before, 0, fmt.Errorf("replacing db: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("reopening db: %w", err)
	}
	s.db = db

	if fi, err = os.Stat(path); err != nil {
		return before, 0, err
	}
	return before, fi.Size(), nil
}
