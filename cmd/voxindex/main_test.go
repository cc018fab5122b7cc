package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelindex.ai/internal/indexer"
	"voxelindex.ai/internal/ingest"
)

const treeBO2 = "[META]\nauthor=Tester\n[DATA]\n0,0,0:17:0\n0,0,1:17:0\n0,0,2:18:0\n"

func setup(t *testing.T) (cfgPath, objects string) {
	t.Helper()
	dir := t.TempDir()
	objects = filepath.Join(dir, "objects")
	if err := os.MkdirAll(objects, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(objects, "tree.bo2"), []byte(treeBO2), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfgPath = filepath.Join(dir, "voxindex.yaml")
	cfg := "preview:\n  size: 16\npaths:\n  db: out/catalog.db\n  thumbs: out/thumbs\n  cache: out/cache\n  reports: out/reports\n  scan_log: out/logs\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, objects
}

func TestScanThenStats(t *testing.T) {
	cfgPath, objects := setup(t)

	var out bytes.Buffer
	if err := run([]string{"scan", "--config", cfgPath, "--workers", "2", objects}, &out); err != nil {
		t.Fatalf("scan: %v", err)
	}
	var sum indexer.Summary
	if err := json.Unmarshal(out.Bytes(), &sum); err != nil {
		t.Fatalf("summary %q: %v", out.String(), err)
	}
	if sum.Scanned != 1 || sum.Processed != 1 || sum.Invalid != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	logs, _ := filepath.Glob(filepath.Join(filepath.Dir(cfgPath), "out", "logs", "scan-*.jsonl.zst"))
	if len(logs) != 1 {
		t.Fatalf("scan logs = %v", logs)
	}

	out.Reset()
	if err := run([]string{"stats", "-c", cfgPath}, &out); err != nil {
		t.Fatalf("stats: %v", err)
	}
	var st struct {
		Total    int            `json:"total"`
		ByFormat map[string]int `json:"by_format"`
	}
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatalf("stats %q: %v", out.String(), err)
	}
	if st.Total != 1 || st.ByFormat["bo2"] != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestInspect(t *testing.T) {
	cfgPath, objects := setup(t)
	var out bytes.Buffer
	if err := run([]string{"inspect", "-c", cfgPath, "--mode", "salvage", filepath.Join(objects, "tree.bo2")}, &out); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var res ingest.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if !res.Valid || res.BlockCount != 3 || res.ParseMode != "salvage" {
		t.Fatalf("result = %+v", res)
	}
}

func TestUsageErrors(t *testing.T) {
	var out bytes.Buffer
	if err := run(nil, &out); err != nil || !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("usage: err=%v out=%q", err, out.String())
	}
	if err := run([]string{"frobnicate"}, &out); err == nil {
		t.Fatalf("expected unknown command error")
	}
	if err := run([]string{"scan"}, &out); err == nil {
		t.Fatalf("expected missing dir error")
	}
	if err := run([]string{"scan", "--help"}, &out); err != nil {
		t.Fatalf("help: %v", err)
	}
	if err := run([]string{"inspect", "--mode", "lenient", "x.bo2"}, &out); err == nil || !strings.Contains(err.Error(), "parse mode") {
		t.Fatalf("bad mode err = %v", err)
	}
}
