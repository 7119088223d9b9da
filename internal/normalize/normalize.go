// Package normalize converts report-service records into ReportViews.
//
// Normalization is total: every RawReport yields exactly one ReportView, in
// input order, and missing optional data maps to a defined absent value
// (nil Location, nil PhotoURL, empty Description). Data-quality problems are
// reported as warnings, never as errors.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/util"
)

// TitlePrefixLen is the number of description runes used in place of the
// placeholder title.
const TitlePrefixLen = 50

// Normalizer holds the settings normalization depends on.
type Normalizer struct {
	// MediaBaseURL is prepended to relative image paths. When empty, no
	// report gets a photo URL.
	MediaBaseURL string
	// Logger receives data-quality warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// Normalize converts raw records into views, one per record, in order.
// The returned warnings describe unknown enum values.
func (n Normalizer) Normalize(raw []model.RawReport) ([]model.ReportView, []string) {
	views := make([]model.ReportView, len(raw))
	var warnings []string
	for i, r := range raw {
		v, w := n.One(r)
		views[i] = v
		warnings = append(warnings, w...)
	}
	for _, w := range warnings {
		n.logger().Warn("report data quality", "detail", w)
	}
	return views, warnings
}

// One normalizes a single record.
func (n Normalizer) One(r model.RawReport) (model.ReportView, []string) {
	var warnings []string

	priority := model.ParsePriority(r.Priority)
	if !priority.Known() {
		warnings = append(warnings, fmt.Sprintf("report %d: unknown priority %q", r.ID, r.Priority))
	}
	status := model.ParseStatus(r.Status)
	if !status.Known() {
		warnings = append(warnings, fmt.Sprintf("report %d: unknown status %q", r.ID, r.Status))
	}
	category := strings.TrimSpace(r.Category)
	if !model.KnownCategory(category) {
		warnings = append(warnings, fmt.Sprintf("report %d: unknown category %q", r.ID, r.Category))
	}

	return model.ReportView{
		ID:          r.ID,
		Category:    category,
		Title:       Title(r.Title, r.GeneratedDescription),
		Description: Description(r.GeneratedDescription, r.OriginalDescription),
		Priority:    priority,
		Status:      status,
		Location:    Location(r.Latitude, r.Longitude),
		PhotoURL:    PhotoURL(n.MediaBaseURL, r.ImageURL),
		Timestamp:   r.CreatedAt,
	}, warnings
}

func (n Normalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// ─── Field Rules ──────────────────────────────────────────────────────────────

// Title replaces the backend placeholder title with the first TitlePrefixLen
// runes of the generated description plus "...". The placeholder match is
// exact and case-sensitive. Without a generated description the placeholder
// is kept.
func Title(title, generated string) string {
	if title != model.PlaceholderTitle {
		return title
	}
	if strings.TrimSpace(generated) == "" {
		return title
	}
	return util.TruncateRunes(generated, TitlePrefixLen) + "..."
}

// Description prefers the generated description, then the original one.
func Description(generated, original string) string {
	if generated != "" {
		return generated
	}
	return original
}

// Location is non-nil only when both coordinates are present and non-zero.
func Location(lat, lon model.OptFloat) *model.Location {
	if !lat.Truthy() || !lon.Truthy() {
		return nil
	}
	return &model.Location{Lat: lat.Value, Lon: lon.Value}
}

// PhotoURL joins the media base URL and a relative image path. It returns
// nil when either is missing, so a bare relative path never leaves here.
func PhotoURL(base, imagePath string) *string {
	base = strings.TrimSpace(base)
	imagePath = strings.TrimSpace(imagePath)
	if base == "" || imagePath == "" {
		return nil
	}
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(imagePath, "/")
	return &u
}
