// Package chart provides ASCII terminal charts for report collections.
// Two renderers are available:
//
//   - Bar: horizontal bar chart, one bar per facet bucket (status, priority
//     or category counts)
//   - Plot: multi-line ASCII chart of reports received per day
//
// Labels are padded by display width so Cyrillic category names line up.
package chart

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/util"
)

// ─── Bar ─────────────────────────────────────────────────────────────────────

// BarOptions controls horizontal bar chart rendering.
type BarOptions struct {
	// Width is the total character width available for the chart.
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// MaxBars caps the number of bars; the largest buckets are kept in
	// their original order. If 0, no limit is applied.
	MaxBars int
	// SkipZero drops empty buckets.
	SkipZero bool
}

// Bar renders a horizontal bar chart of a facet to w, one bar per bucket.
//
// Output example:
//
//	По статусу  (всего 10)
//	Получено   4  ████████████████
//	В работе   3  ████████████
//	Выполнено  3  ████████████
func Bar(w io.Writer, title string, facet []model.Count, opts BarOptions) error {
	totalWidth := opts.Width
	if totalWidth <= 0 {
		totalWidth = termWidth()
	}

	var buckets []model.Count
	for _, c := range facet {
		if opts.SkipZero && c.Count == 0 {
			continue
		}
		buckets = append(buckets, c)
	}
	if len(buckets) == 0 {
		return fmt.Errorf("chart bar: no buckets to render")
	}
	if opts.MaxBars > 0 && len(buckets) > opts.MaxBars {
		buckets = largest(buckets, opts.MaxBars)
	}

	total, maxVal := 0, 0
	for _, c := range buckets {
		total += c.Count
		if c.Count > maxVal {
			maxVal = c.Count
		}
	}

	labelWidth, valWidth := 0, 0
	for _, c := range buckets {
		if l := runewidth.StringWidth(label(c)); l > labelWidth {
			labelWidth = l
		}
		if l := len(strconv.Itoa(c.Count)); l > valWidth {
			valWidth = l
		}
	}

	// Bar area width = totalWidth - labelWidth - valWidth - separators (4 chars)
	barAreaWidth := totalWidth - labelWidth - valWidth - 4
	if barAreaWidth < 4 {
		barAreaWidth = 4
	}

	fmt.Fprintf(w, "%s  (всего %d)\n", title, total)

	for _, c := range buckets {
		bar := ""
		if maxVal > 0 && c.Count > 0 {
			barLen := int(math.Round(float64(c.Count) / float64(maxVal) * float64(barAreaWidth)))
			if barLen < 1 {
				barLen = 1 // minimum 1 block so every non-empty bucket is visible
			}
			bar = strings.Repeat("█", barLen)
		}
		fmt.Fprintf(w, "%s  %*d  %s\n",
			runewidth.FillRight(label(c), labelWidth),
			valWidth, c.Count,
			bar,
		)
	}

	return nil
}

func label(c model.Count) string {
	if c.Label != "" {
		return c.Label
	}
	return c.Key
}

// largest keeps the n biggest buckets, preserving their order in facet.
func largest(facet []model.Count, n int) []model.Count {
	// ties go to the earlier bucket
	keep := make([]bool, len(facet))
	for k := 0; k < n; k++ {
		best := -1
		for i, c := range facet {
			if keep[i] {
				continue
			}
			if best < 0 || c.Count > facet[best].Count {
				best = i
			}
		}
		keep[best] = true
	}
	out := make([]model.Count, 0, n)
	for i, c := range facet {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

// ─── Daily intake ─────────────────────────────────────────────────────────────

// Point is one day on the intake timeline.
type Point struct {
	Date  time.Time
	Value float64
}

// Daily counts reports per calendar day in loc, from the first to the last
// day seen, with zero-filled gaps. Reports whose timestamp cannot be parsed
// are skipped and counted in the second return value.
func Daily(views []model.ReportView, loc *time.Location) ([]Point, int) {
	if loc == nil {
		loc = time.UTC
	}
	perDay := map[time.Time]int{}
	var first, last time.Time
	skipped := 0
	for _, v := range views {
		t, err := util.ParseTimestamp(v.Timestamp, loc)
		if err != nil {
			skipped++
			continue
		}
		t = t.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		perDay[day]++
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}
	if len(perDay) == 0 {
		return nil, skipped
	}
	var out []Point
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, Point{Date: d, Value: float64(perDay[d])})
	}
	return out, skipped
}

// ─── Plot ─────────────────────────────────────────────────────────────────────

// PlotOptions controls multi-line ASCII plot rendering.
type PlotOptions struct {
	// Width is the total character width of the chart (including Y-axis label).
	// If 0, auto-detects from $COLUMNS, falls back to 80.
	Width int
	// Height is the number of data rows in the chart body (not counting axis labels).
	// If 0, defaults to 12.
	Height int
	// Title overrides the default title. Empty = "Заявок в день".
	Title string
}

// Plot renders a multi-line ASCII chart of pts to w.
func Plot(w io.Writer, pts []Point, opts PlotOptions) error {
	width := opts.Width
	if width <= 0 {
		width = termWidth()
	}
	height := opts.Height
	if height <= 0 {
		height = 12
	}
	title := opts.Title
	if title == "" {
		title = "Заявок в день"
	}
	if len(pts) < 2 {
		return fmt.Errorf("chart plot: need at least 2 days of data (got %d)", len(pts))
	}

	minVal, maxVal := pts[0].Value, pts[0].Value
	for _, p := range pts[1:] {
		if p.Value < minVal {
			minVal = p.Value
		}
		if p.Value > maxVal {
			maxVal = p.Value
		}
	}

	ticks := yTicks(minVal, maxVal, height)
	yLabelWidth := 0
	for _, t := range ticks {
		if l := len(formatFloat(t)); l > yLabelWidth {
			yLabelWidth = l
		}
	}
	yAxisWidth := yLabelWidth + 2

	plotWidth := width - yAxisWidth
	if plotWidth < 10 {
		plotWidth = 10
	}

	cols := sampleCols(pts, plotWidth)
	grid := buildGrid(cols, minVal, maxVal, height)

	fmt.Fprintf(w, "%s  (%s – %s)\n", title, pts[0].Date.Format("2006-01-02"), pts[len(pts)-1].Date.Format("2006-01-02"))

	for row := 0; row < height; row++ {
		tick := ""
		for _, t := range ticks {
			if math.Abs(rowForValue(t, minVal, maxVal, height)-float64(row)) < 0.5 {
				tick = formatFloat(t)
				break
			}
		}
		labelPadded := fmt.Sprintf("%*s", yLabelWidth, tick)

		axisCh := "┤"
		if tick != "" && math.Abs(minVal) < 1e-9 && row == height-1 {
			axisCh = "┼"
		} else if tick == "" {
			axisCh = " "
		}

		fmt.Fprintf(w, "%s%s%s\n", labelPadded, axisCh, string(grid[row]))
	}

	fmt.Fprintf(w, "%s└%s\n", strings.Repeat(" ", yLabelWidth), strings.Repeat("─", plotWidth))
	fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", yLabelWidth), xAxisLabels(pts, plotWidth))

	return nil
}

// ─── Grid building ────────────────────────────────────────────────────────────

// sampleCols reduces pts to exactly n columns. Each column holds the average
// of its bucket; a series shorter than n repeats points across columns.
func sampleCols(pts []Point, n int) []float64 {
	total := len(pts)
	cols := make([]float64, n)
	for col := 0; col < n; col++ {
		lo := col * total / n
		hi := (col+1)*total/n - 1
		if hi >= total {
			hi = total - 1
		}
		if hi < lo {
			hi = lo
		}
		sum := 0.0
		for i := lo; i <= hi; i++ {
			sum += pts[i].Value
		}
		cols[col] = sum / float64(hi-lo+1)
	}
	return cols
}

// rowForValue returns the float row index (0=top=max) for a given value.
func rowForValue(v, minVal, maxVal float64, height int) float64 {
	if maxVal == minVal {
		return float64(height) / 2
	}
	return (maxVal - v) / (maxVal - minVal) * float64(height-1)
}

// buildGrid renders columns into a height×width rune grid using
// box-drawing characters to connect adjacent data points.
func buildGrid(cols []float64, minVal, maxVal float64, height int) [][]rune {
	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}

	rowOf := make([]int, len(cols))
	for col, v := range cols {
		r := int(math.Round(rowForValue(v, minVal, maxVal, height)))
		if r < 0 {
			r = 0
		}
		if r >= height {
			r = height - 1
		}
		rowOf[col] = r
	}

	for col := 0; col < len(cols); col++ {
		r := rowOf[col]
		prevRow, nextRow := -1, -1
		if col > 0 {
			prevRow = rowOf[col-1]
		}
		if col < len(cols)-1 {
			nextRow = rowOf[col+1]
		}

		switch {
		case prevRow < 0 && nextRow < 0:
			grid[r][col] = '·'
		case (prevRow < 0 || prevRow == r) && (nextRow < 0 || nextRow == r):
			grid[r][col] = '─'
		case (prevRow < 0 || prevRow <= r) && nextRow > r:
			grid[r][col] = '╮'
		case (prevRow < 0 || prevRow >= r) && nextRow >= 0 && nextRow < r:
			grid[r][col] = '╯'
		case prevRow >= 0 && prevRow < r:
			grid[r][col] = '╰'
		case prevRow > r:
			grid[r][col] = '╭'
		default:
			grid[r][col] = '─'
		}

		// vertical connector to the previous column's row
		if prevRow >= 0 && prevRow != r {
			lo, hi := r, prevRow
			if lo > hi {
				lo, hi = hi, lo
			}
			for fill := lo + 1; fill < hi; fill++ {
				if grid[fill][col] == ' ' {
					grid[fill][col] = '│'
				}
			}
		}
	}

	return grid
}

// ─── Axis helpers ─────────────────────────────────────────────────────────────

// yTicks returns 3–4 evenly-spaced tick values for the Y axis.
func yTicks(minVal, maxVal float64, height int) []float64 {
	if maxVal == minVal {
		return []float64{minVal}
	}
	nTicks := 4
	if height <= 6 {
		nTicks = 3
	}
	ticks := make([]float64, nTicks)
	for i := 0; i < nTicks; i++ {
		ticks[i] = minVal + float64(i)*(maxVal-minVal)/float64(nTicks-1)
	}
	return ticks
}

// xAxisLabels builds a padded string with start, middle, and end dates.
func xAxisLabels(pts []Point, plotWidth int) string {
	const layout = "01-02"
	startLabel := pts[0].Date.Format(layout)
	midLabel := pts[len(pts)/2].Date.Format(layout)
	endLabel := pts[len(pts)-1].Date.Format(layout)

	buf := []rune(strings.Repeat(" ", plotWidth))
	writeAt := func(pos int, s string) {
		for i, ch := range s {
			if pos+i >= 0 && pos+i < len(buf) {
				buf[pos+i] = ch
			}
		}
	}
	writeAt(0, startLabel)
	writeAt(plotWidth/2-len(midLabel)/2, midLabel)
	writeAt(plotWidth-len(endLabel), endLabel)

	return string(buf)
}

// ─── Utilities ────────────────────────────────────────────────────────────────

// formatFloat formats an axis label: integers without decimals, otherwise
// one decimal place.
func formatFloat(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// termWidth returns the terminal width from $COLUMNS, defaulting to 80.
func termWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if n, err := strconv.Atoi(cols); err == nil && n > 20 {
			return n
		}
	}
	return 80
}
