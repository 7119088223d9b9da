// Package model defines the canonical data types used throughout jarqyn.
// RawReport mirrors what the report service sends; ReportView is the
// normalized, render-ready form every consumer works with.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// PlaceholderTitle is the generic title the backend assigns to reports that
// were submitted without one.
const PlaceholderTitle = "Новый отчет"

// ─── Backend Types ────────────────────────────────────────────────────────────

// RawReport is a single report record as returned by the report service.
// Every field except ID is optional; OptFloat tracks coordinate presence.
type RawReport struct {
	ID                   int64    `json:"id"`
	Category             string   `json:"category"`
	Title                string   `json:"title"`
	GeneratedDescription string   `json:"generated_description"`
	OriginalDescription  string   `json:"original_description"`
	Priority             string   `json:"priority"`
	Status               string   `json:"status"`
	Latitude             OptFloat `json:"latitude"`
	Longitude            OptFloat `json:"longitude"`
	ImageURL             string   `json:"image_url"`
	CreatedAt            string   `json:"created_at"`
}

// OptFloat is a nullable number. The backend sends coordinates as JSON
// numbers, numeric strings, empty strings or null.
type OptFloat struct {
	Value float64
	Valid bool
}

// Float returns a present OptFloat.
func Float(v float64) OptFloat { return OptFloat{Value: v, Valid: true} }

// UnmarshalJSON accepts a number, a numeric string, "" or null.
// Anything unparseable decodes as absent rather than failing the record.
func (f *OptFloat) UnmarshalJSON(b []byte) error {
	*f = OptFloat{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	*f = OptFloat{Value: v, Valid: true}
	return nil
}

// MarshalJSON writes null for an absent value.
func (f OptFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f.Value, 'f', -1, 64)), nil
}

// Truthy reports whether the value is present and non-zero.
func (f OptFloat) Truthy() bool {
	return f.Valid && f.Value != 0
}

// ─── View Types ───────────────────────────────────────────────────────────────

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ReportView is the canonical, immutable form of a report.
// Location and PhotoURL are nil when absent; Description is never nil-like,
// only possibly empty. Timestamp stays the raw backend string and is parsed
// only when displayed.
type ReportView struct {
	ID          int64     `json:"id"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	Location    *Location `json:"location"`
	PhotoURL    *string   `json:"photo_url"`
	Timestamp   string    `json:"timestamp"`
}

// HasLocation reports whether the report can be placed on the map.
func (r ReportView) HasLocation() bool { return r.Location != nil }

// Photo returns the photo URL or "" when there is none.
func (r ReportView) Photo() string {
	if r.PhotoURL == nil {
		return ""
	}
	return *r.PhotoURL
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing and size metadata for a command result.
type ResultStats struct {
	Offline    bool  `json:"offline"`
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
	Total      int   `json:"total"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindReports = "reports"
	KindReport  = "report"
	KindCounts  = "counts"
	KindTable   = "table"
)

// Table is a generic header-plus-rows payload for KindTable results.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Count is a single facet bucket.
type Count struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Counts summarises a report collection along each filter dimension.
// Located is the number of reports that carry a location.
type Counts struct {
	Total      int     `json:"total"`
	Located    int     `json:"located"`
	ByStatus   []Count `json:"by_status"`
	ByPriority []Count `json:"by_priority"`
	ByCategory []Count `json:"by_category"`
}
