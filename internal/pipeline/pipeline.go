// Package pipeline provides helpers for reading and writing ReportView
// streams via stdin/stdout in JSONL, the pipe format shared by list, map and
// chart, and for loading raw listing payloads from files.
package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/normalize"
)

// ReadViews reads JSONL ReportView records from r (stdin).
// Each line must be a JSON object with a non-zero "id".
func ReadViews(r io.Reader) ([]model.ReportView, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var views []model.ReportView
	seen := map[int64]int{}

	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var v model.ReportView
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		if v.ID == 0 {
			return nil, fmt.Errorf("line %d: missing report id", lineNum)
		}
		if prev, dup := seen[v.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate report id %d (first on line %d)", lineNum, v.ID, prev)
		}
		seen[v.ID] = lineNum
		views = append(views, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("no reports read from input (is stdin empty?)")
	}
	return views, nil
}

// WriteJSONL writes views as JSONL to w.
func WriteJSONL(w io.Writer, views []model.ReportView) error {
	enc := json.NewEncoder(w)
	for _, v := range views {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// FileFetcher serves a saved listing payload (a JSON array of raw records)
// in place of the report service.
type FileFetcher struct {
	Path string
}

// List decodes the file at f.Path. The filter is applied later by the
// session.
func (f FileFetcher) List(ctx context.Context, _ filter.State) ([]model.RawReport, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	raw, warnings, err := normalize.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return raw, warnings, nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// StdinIsPiped returns true if stdin is not a terminal.
func StdinIsPiped() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}
