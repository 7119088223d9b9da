package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/jarqyn/jarqyn/internal/store"
)

// completionEnv points config at an isolated home and archive path.
func completionEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("JARQYN_BASE_URL", "http://reports.test/api/reports")
	db := filepath.Join(dir, "jarqyn.db")
	t.Setenv("JARQYN_DB_PATH", db)
	return db
}

func TestCompleteReportIDs(t *testing.T) {
	db := completionEnv(t)
	s, err := store.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	body := `[{"id":1,"title":"Яма","status":"received"},{"id":12,"title":"Фонарь","status":"done"},{"id":7,"title":"Люк","status":"done"}]`
	if _, err := s.PutPayload(store.Payload{Body: []byte(body)}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	got, dir := completeReportIDs(showCmd, nil, "1")
	if dir != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive: %v", dir)
	}
	if len(got) != 2 {
		t.Fatalf("expected ids 1 and 12, got %q", got)
	}
	for _, c := range got {
		if !strings.HasPrefix(c, "1") || !strings.Contains(c, "\t") {
			t.Errorf("unexpected candidate %q", c)
		}
	}
	if got, _ := completeReportIDs(showCmd, []string{"1"}, ""); len(got) != 0 {
		t.Errorf("a second id should not be offered: %q", got)
	}
}

func TestCompleteReportIDsWithoutArchive(t *testing.T) {
	db := completionEnv(t)
	if got, _ := completeReportIDs(showCmd, nil, ""); len(got) != 0 {
		t.Errorf("expected no candidates, got %q", got)
	}
	if _, err := os.Stat(db); !os.IsNotExist(err) {
		t.Errorf("completion must not create the archive: %v", err)
	}
}

func TestCompleteArchiveKeysNewestFirst(t *testing.T) {
	db := completionEnv(t)
	s, err := store.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	first, _ := s.PutPayload(store.Payload{FetchedAt: at, Body: []byte(`[]`)})
	second, _ := s.PutPayload(store.Payload{FetchedAt: at.Add(time.Minute), Body: []byte(`[{"id":1}]`)})
	_ = s.Close()

	got, _ := completeArchiveKeys(archiveShowCmd, nil, "fetch:")
	if len(got) != 2 {
		t.Fatalf("expected 2 keys, got %q", got)
	}
	if !strings.HasPrefix(got[0], second) || !strings.HasPrefix(got[1], first) {
		t.Errorf("keys should be newest first: %q", got)
	}
}

func TestFilterFlagCompletions(t *testing.T) {
	fn, ok := listCmd.GetFlagCompletionFunc("status")
	if !ok {
		t.Fatal("list --status has no completion")
	}
	got, _ := fn(listCmd, nil, "")
	if len(got) != 4 || !strings.HasPrefix(got[0], "all\t") {
		t.Errorf("status candidates: %q", got)
	}
	if got := statusValues(false); len(got) != 3 || !strings.HasPrefix(got[0], "received\t") {
		t.Errorf("admin status candidates: %q", got)
	}
	if got := categoryValues(); !strings.HasPrefix(got[1], "ROAD_DEFECTS\t") {
		t.Errorf("category candidates: %q", got)
	}
}

func TestCompletionScript(t *testing.T) {
	var buf bytes.Buffer
	completionCmd.SetOut(&buf)
	t.Cleanup(func() { completionCmd.SetOut(nil) })
	if err := completionCmd.RunE(completionCmd, []string{"bash"}); err != nil {
		t.Fatalf("completion bash: %v", err)
	}
	if !strings.Contains(buf.String(), "jarqyn") || !strings.Contains(buf.String(), "__complete") {
		t.Errorf("unexpected bash script:\n%.200s", buf.String())
	}
}
