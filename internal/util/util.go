// Package util provides shared utilities: lazy timestamp parsing, Russian
// date formatting for display, text truncation, and error aggregation.
package util

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Almaty must resolve on hosts without zoneinfo
	"unicode/utf8"
)

// ─── Timestamp Parsing ────────────────────────────────────────────────────────

// timestampLayouts are tried in order. Layouts without a zone are read in
// the display location passed to ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses a backend created_at string.
// Zone-less values are interpreted in loc (UTC if loc is nil).
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ─── Localized Formatting ─────────────────────────────────────────────────────

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

var monthsShort = [...]string{
	"янв.", "февр.", "мар.", "апр.", "мая", "июн.",
	"июл.", "авг.", "сент.", "окт.", "нояб.", "дек.",
}

// FormatTimestamp renders a raw timestamp as "19 октября 2026 г., 14:05"
// in loc. Unparseable input is returned unchanged; empty input yields "".
func FormatTimestamp(raw string, loc *time.Location) string {
	t, err := ParseTimestamp(raw, loc)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d %s %d г., %02d:%02d",
		t.Day(), monthsGenitive[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// FormatDateShort renders a raw timestamp as "19 окт. 2026 г." in loc.
func FormatDateShort(raw string, loc *time.Location) string {
	t, err := ParseTimestamp(raw, loc)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d %s %d г.", t.Day(), monthsShort[t.Month()-1], t.Year())
}

// LoadLocation resolves an IANA zone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ─── Text ─────────────────────────────────────────────────────────────────────

// TruncateRunes returns the first n runes of s. Cyrillic text makes byte
// slicing unsafe here.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Ellipsize shortens s to at most n runes, ending in "…" when cut.
func Ellipsize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return TruncateRunes(s, n-1) + "…"
}

// ─── Error Helpers ────────────────────────────────────────────────────────────

// MultiError collects multiple errors and presents them as one.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
