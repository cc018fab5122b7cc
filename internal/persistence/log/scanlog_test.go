package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScanLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewScanLogger(dir)
	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	l.w.clock = func() time.Time { return at }

	for _, e := range []ScanEntry{
		{Time: at, Path: "/a.bo2", Format: "bo2", Valid: true, ParseMode: "strict", Outcome: OutcomeProcessed},
		{Time: at, Path: "/b.schem", Format: "schematic", Outcome: OutcomeFailed, Errors: 1, LeadingError: "WORKER_FAILURE"},
	} {
		if err := l.WriteEntry(e); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
	}
	path := l.Path()
	if filepath.Base(path) != "scan-2024-03-01-10.jsonl.zst" {
		t.Fatalf("path = %s", path)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadJSONL[ScanEntry](path)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(got) != 2 || got[1].LeadingError != "WORKER_FAILURE" || !got[0].Time.Equal(at) {
		t.Fatalf("entries = %+v", got)
	}
}

func TestHourlyWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewHourlyWriter(dir, "scan")
		w.clock = func() time.Time { return at }
		if err := w.Write(map[string]int{"n": i}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("files = %d, want 1", len(entries))
	}
	got, err := ReadJSONL[map[string]int](filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if len(got) != 2 || got[1]["n"] != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestHourlyWriter_RotatesPerHour(t *testing.T) {
	dir := t.TempDir()
	w := NewHourlyWriter(dir, "scan")
	at := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
	w.clock = func() time.Time { return at }
	_ = w.Write(1)
	at = at.Add(2 * time.Minute)
	_ = w.Write(2)
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("files = %d, want 2", len(entries))
	}
}
