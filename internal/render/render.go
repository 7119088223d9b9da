// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/util"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Placeholders shown in human-readable output.
const (
	EmptyList     = "Заявок не найдено"
	NoPhoto       = "Нет фото"
	NoDescription = "Без описания"
	NoLocation    = "—"
)

// Renderer carries display settings shared by every format.
type Renderer struct {
	// Location is the display time zone for timestamps. Nil means UTC.
	Location *time.Location
}

// Render writes result to w in the specified format using UTC timestamps.
func Render(w io.Writer, result *model.Result, format string) error {
	return Renderer{}.Render(w, result, format)
}

// Render writes result to w in the specified format.
func (r Renderer) Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return r.renderDelimited(w, result, ',')
	case FormatTSV:
		return r.renderDelimited(w, result, '\t')
	case FormatMD:
		return r.renderMarkdown(w, result)
	default:
		return r.renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func (r Renderer) RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return r.Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return r.Render(f, result, format)
}

func (r Renderer) loc() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes one report per line so the output can feed
// "map --stdin". Other kinds are written as a single line.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch result.Kind {
	case model.KindReports:
		views, ok := result.Data.([]model.ReportView)
		if !ok {
			return enc.Encode(result.Data)
		}
		for _, v := range views {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func (r Renderer) renderTable(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindReports:
		views, ok := result.Data.([]model.ReportView)
		if !ok {
			return fmt.Errorf("unexpected data type for reports")
		}
		return r.renderReportsTable(w, views)
	case model.KindReport:
		v, ok := result.Data.(*model.ReportView)
		if !ok {
			return fmt.Errorf("unexpected data type for report")
		}
		return r.renderReportDetail(w, v)
	case model.KindCounts:
		c, ok := result.Data.(model.Counts)
		if !ok {
			return fmt.Errorf("unexpected data type for counts")
		}
		return renderCountsTable(w, c)
	case model.KindTable:
		t, ok := result.Data.(model.Table)
		if !ok {
			return fmt.Errorf("unexpected data type for table")
		}
		return renderGenericTable(w, t)
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

// NewTable returns a left-aligned bordered table writer with the given
// headers. Every table the CLI prints starts from it.
func NewTable(w io.Writer, headers []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	return tw
}

func (r Renderer) renderReportsTable(w io.Writer, views []model.ReportView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, EmptyList)
		return err
	}
	tw := NewTable(w, []string{"ID", "CATEGORY", "TITLE", "PRIORITY", "STATUS", "LOCATION", "PHOTO", "CREATED"})
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
	})
	for _, v := range views {
		tw.Append(r.listRow(v))
	}
	tw.Render()
	return nil
}

// listRow is the human-readable row for one report.
func (r Renderer) listRow(v model.ReportView) []string {
	return []string{
		strconv.FormatInt(v.ID, 10),
		util.Ellipsize(model.CategoryLabel(v.Category), 28),
		util.Ellipsize(v.Title, 48),
		v.Priority.Badge().Label,
		v.Status.Badge().Label,
		FormatLocation(v.Location),
		PhotoCell(v),
		util.FormatDateShort(v.Timestamp, r.loc()),
	}
}

func (r Renderer) renderReportDetail(w io.Writer, v *model.ReportView) error {
	tw := NewTable(w, []string{"FIELD", "VALUE"})
	tw.SetColWidth(80)
	tw.SetAutoWrapText(true)

	desc := v.Description
	if desc == "" {
		desc = NoDescription
	}
	rows := [][]string{
		{"ID", strconv.FormatInt(v.ID, 10)},
		{"Category", model.CategoryLabel(v.Category)},
		{"Title", v.Title},
		{"Description", desc},
		{"Priority", v.Priority.Badge().Label},
		{"Status", v.Status.Badge().Label},
		{"Location", FormatLocation(v.Location)},
		{"Photo", PhotoCell(*v)},
		{"Created", util.FormatTimestamp(v.Timestamp, r.loc())},
	}
	for _, row := range rows {
		tw.Append(row)
	}
	tw.Render()
	return nil
}

func renderCountsTable(w io.Writer, c model.Counts) error {
	tw := NewTable(w, []string{"DIMENSION", "KEY", "LABEL", "COUNT"})
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, row := range countRows(c) {
		tw.Append(row)
	}
	tw.Render()
	_, err := fmt.Fprintf(w, "Всего: %d · с геолокацией: %d\n", c.Total, c.Located)
	return err
}

func countRows(c model.Counts) [][]string {
	var rows [][]string
	add := func(dim string, facet []model.Count) {
		for _, f := range facet {
			rows = append(rows, []string{dim, f.Key, f.Label, strconv.Itoa(f.Count)})
		}
	}
	add("status", c.ByStatus)
	add("priority", c.ByPriority)
	add("category", c.ByCategory)
	return rows
}

func renderGenericTable(w io.Writer, t model.Table) error {
	tw := NewTable(w, t.Headers)
	for _, row := range t.Rows {
		tw.Append(row)
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func (r Renderer) renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch result.Kind {
	case model.KindReports:
		views, ok := result.Data.([]model.ReportView)
		if !ok {
			return fmt.Errorf("unexpected data type for reports")
		}
		_ = cw.Write([]string{"id", "category", "title", "description", "priority", "status", "lat", "lon", "photo_url", "timestamp"})
		for _, v := range views {
			lat, lon := "", ""
			if v.Location != nil {
				lat = formatCoord(v.Location.Lat)
				lon = formatCoord(v.Location.Lon)
			}
			_ = cw.Write([]string{
				strconv.FormatInt(v.ID, 10),
				v.Category,
				v.Title,
				v.Description,
				string(v.Priority),
				string(v.Status),
				lat, lon,
				v.Photo(),
				v.Timestamp,
			})
		}
	case model.KindCounts:
		c, ok := result.Data.(model.Counts)
		if !ok {
			return fmt.Errorf("unexpected data type for counts")
		}
		_ = cw.Write([]string{"dimension", "key", "label", "count"})
		for _, row := range countRows(c) {
			_ = cw.Write(row)
		}
	case model.KindTable:
		if t, ok := result.Data.(model.Table); ok {
			_ = cw.Write(t.Headers)
			for _, row := range t.Rows {
				_ = cw.Write(row)
			}
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func (r Renderer) renderMarkdown(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindReports:
		views, ok := result.Data.([]model.ReportView)
		if !ok {
			return renderJSON(w, result)
		}
		if len(views) == 0 {
			_, err := fmt.Fprintf(w, "_%s_\n", EmptyList)
			return err
		}
		fmt.Fprintf(w, "| ID | CATEGORY | TITLE | PRIORITY | STATUS | LOCATION | PHOTO | CREATED |\n|----|----|----|----|----|----|----|----|\n")
		for _, v := range views {
			cells := r.listRow(v)
			for i := range cells {
				cells[i] = mdEscape(cells[i])
			}
			fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
		}
		return nil
	case model.KindCounts:
		c, ok := result.Data.(model.Counts)
		if !ok {
			return renderJSON(w, result)
		}
		fmt.Fprintf(w, "| DIMENSION | KEY | LABEL | COUNT |\n|----|----|----|----:|\n")
		for _, row := range countRows(c) {
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n", row[0], row[1], mdEscape(row[2]), row[3])
		}
		return nil
	default:
		return renderJSON(w, result)
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		src := "live"
		if result.Stats.Offline {
			src = "archive"
		}
		fmt.Fprintf(w, "\n[%s • %d of %d items • %dms • %s]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.Total,
			result.Stats.DurationMs,
			src,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// FormatLocation renders a coordinate pair with four decimals, or a dash.
func FormatLocation(l *model.Location) string {
	if l == nil {
		return NoLocation
	}
	return fmt.Sprintf("%.4f, %.4f", l.Lat, l.Lon)
}

// PhotoCell is the photo URL or the no-photo placeholder.
func PhotoCell(v model.ReportView) string {
	if v.PhotoURL == nil {
		return NoPhoto
	}
	return *v.PhotoURL
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
