// Package benchmarks measures the report pipeline on generated listing
// payloads: decoding, normalization, filtering and JSONL encoding. No
// network access is needed.
//
//	go test ./tests/benchmarks/... -bench=. -benchmem -count=10 | tee bench.txt
package benchmarks_test

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jarqyn/jarqyn/internal/filter"
	"github.com/jarqyn/jarqyn/internal/geo"
	"github.com/jarqyn/jarqyn/internal/model"
	"github.com/jarqyn/jarqyn/internal/normalize"
	"github.com/jarqyn/jarqyn/internal/pipeline"
)

var (
	categories = []string{"ROAD_DEFECTS", "LIGHTING", "WASTE", "TREES", "SNOW_ICE", "PARKING"}
	priorities = []string{"low", "medium", "high", "critical"}
	statuses   = []string{"received", "in_process", "done"}
)

// payload builds a listing body of n reports. A tenth of the records use the
// placeholder title, a third lack coordinates and some carry numeric strings.
func payload(n int) []byte {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		title := fmt.Sprintf("Заявка %d", i)
		if i%10 == 0 {
			title = model.PlaceholderTitle
		}
		coords := fmt.Sprintf(`"latitude":"52.%04d","longitude":76.%04d`, i%10000, i%10000)
		if i%3 == 0 {
			coords = `"latitude":null,"longitude":null`
		}
		fmt.Fprintf(&b, `{"id":%d,"category":%q,"title":%q,"generated_description":"Описание проблемы номер %d у дома %d","priority":%q,"status":%q,%s,"image_url":"/uploads/%d.jpg","created_at":"2026-10-19T09:05:00Z"}`,
			i+1, categories[i%len(categories)], title, i, i%50, priorities[i%len(priorities)], statuses[i%len(statuses)], coords, i)
	}
	b.WriteString("]")
	return []byte(b.String())
}

func views(b *testing.B, n int) []model.ReportView {
	b.Helper()
	raw, _, err := normalize.Decode(payload(n))
	if err != nil {
		b.Fatal(err)
	}
	v, _ := normalize.Normalizer{MediaBaseURL: "http://media.test", Logger: discardLogger()}.Normalize(raw)
	return v
}

// ─── Decode / Normalize ───────────────────────────────────────────────────────

func benchmarkDecode(b *testing.B, n int) {
	data := payload(n)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := normalize.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode_100(b *testing.B)  { benchmarkDecode(b, 100) }
func BenchmarkDecode_5000(b *testing.B) { benchmarkDecode(b, 5000) }

func BenchmarkNormalize_5000(b *testing.B) {
	raw, _, err := normalize.Decode(payload(5000))
	if err != nil {
		b.Fatal(err)
	}
	n := normalize.Normalizer{MediaBaseURL: "http://media.test", Logger: discardLogger()}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n.Normalize(raw)
	}
}

// ─── Filter ───────────────────────────────────────────────────────────────────

func BenchmarkApply_Default(b *testing.B) {
	v := views(b, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filter.Apply(v, filter.Default())
	}
}

func BenchmarkApply_AllDimensions(b *testing.B) {
	v := views(b, 5000)
	st := filter.Default().WithStatus("done").WithPriority("high").WithCategory("WASTE").WithSearch("ДОМА 1")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filter.Apply(v, st)
	}
}

func BenchmarkCount_5000(b *testing.B) {
	v := views(b, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filter.Count(v)
	}
}

// ─── Output ───────────────────────────────────────────────────────────────────

func BenchmarkMarkers_5000(b *testing.B) {
	v := views(b, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		geo.Markers(v, time.UTC)
	}
}

func BenchmarkWriteJSONL_5000(b *testing.B) {
	v := views(b, 5000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := pipeline.WriteJSONL(io.Discard, v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadViews_5000(b *testing.B) {
	v := views(b, 5000)
	var buf bytes.Buffer
	if err := pipeline.WriteJSONL(&buf, v); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pipeline.ReadViews(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
