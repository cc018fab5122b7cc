// Package indexer keeps the catalog in step with a directory tree. Each
// scan ingests new and changed files in parallel and commits the batch in
// one transaction.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/ingest"
	"voxelindex.ai/internal/persistence/indexdb"
	scanlog "voxelindex.ai/internal/persistence/log"
)

// Catalog is the part of the catalog store a scan needs.
type Catalog interface {
	Rows(ctx context.Context) (map[string]indexdb.Object, error)
	Meta(ctx context.Context, key string) (string, error)
	Commit(ctx context.Context, b indexdb.Batch) error
}

type Options struct {
	Root    string
	Workers int
	// Force reprocesses files even when mtime and size are unchanged.
	Force bool
	// RegistryDigest identifies the block tables in use. A catalog written
	// under a different digest is reprocessed in full.
	RegistryDigest string
	ToolVersions   map[string]string
	ScanLog        *scanlog.ScanLogger
	Logger         *log.Logger
}

type Summary struct {
	Scanned   int           `json:"scanned"`
	Processed int           `json:"processed"`
	Cached    int           `json:"cached"`
	Removed   int           `json:"removed"`
	Invalid   int           `json:"invalid"`
	Fallbacks int           `json:"fallbacks"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}

// Scan walks opts.Root, ingests what changed and commits the result. The
// catalog is only written after every task has finished; a canceled ctx
// at that point leaves it untouched.
func Scan(ctx context.Context, opts Options, cat Catalog, exec Executor) (Summary, []ingest.Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	var sum Summary

	files, err := Walk(opts.Root)
	if err != nil {
		return sum, nil, fmt.Errorf("indexer: walk %s: %w", opts.Root, err)
	}
	sum.Scanned = len(files)

	rows, err := cat.Rows(ctx)
	if err != nil {
		return sum, nil, err
	}
	reprocess := opts.Force
	if opts.RegistryDigest != "" && len(rows) > 0 {
		prev, err := cat.Meta(ctx, indexdb.MetaRegistryDigest)
		if err != nil {
			return sum, nil, err
		}
		if prev != opts.RegistryDigest {
			logger.Printf("block registry changed (%.12s -> %.12s); reprocessing all files", prev, opts.RegistryDigest)
			reprocess = true
		}
	}

	seen := make(map[string]struct{}, len(files))
	results := make([]ingest.Result, 0, len(files))
	var tasks []ingest.Task
	for _, f := range files {
		seen[f.Path] = struct{}{}
		if row, ok := rows[f.Path]; ok && !reprocess && row.SourceMtimeMs == f.MtimeMs && row.SourceSize == f.Size {
			results = append(results, ingest.CachedResult(row))
			sum.Cached++
			continue
		}
		tasks = append(tasks, ingest.Task{Path: f.Path, MtimeMs: f.MtimeMs, Size: f.Size})
	}

	var deletes []string
	for path := range rows {
		if _, ok := seen[path]; !ok {
			deletes = append(deletes, path)
		}
	}
	sort.Strings(deletes)
	sum.Removed = len(deletes)

	if len(tasks) > 0 {
		workers := opts.Workers
		if workers <= 0 {
			workers = DefaultWorkers()
		}
		pool := NewPool(exec, min(workers, len(tasks)))
		pool.Start()
		resps, err := pool.Run(tasks)
		pool.Close()
		if err != nil {
			return sum, nil, err
		}
		for _, r := range resps {
			res := r.Result
			if r.Err != nil {
				logger.Printf("worker failed, retrying inline: path=%s err=%v", r.Task.Path, r.Err)
				res, err = runTask(exec, r.Task)
				if err != nil {
					logger.Printf("ERROR ingest failed after retry: path=%s err=%v", r.Task.Path, err)
					res = exec.Failure(r.Task, err)
				}
			}
			results = append(results, res)
		}
		sum.Processed = len(tasks)
	}

	upserts := make([]indexdb.Object, 0, len(tasks))
	for _, res := range results {
		if !res.Valid {
			sum.Invalid++
		}
		if res.Cached {
			continue
		}
		if res.Failed {
			sum.Failed++
		}
		if res.Fallback() {
			sum.Fallbacks++
		}
		upserts = append(upserts, res.Row())
	}

	if err := ctx.Err(); err != nil {
		return sum, results, err
	}
	batch := indexdb.Batch{Upserts: upserts, Deletes: deletes, Meta: map[string]string{}}
	if opts.RegistryDigest != "" {
		batch.Meta[indexdb.MetaRegistryDigest] = opts.RegistryDigest
	}
	if len(opts.ToolVersions) > 0 {
		if b, err := json.Marshal(opts.ToolVersions); err == nil {
			batch.Meta[indexdb.MetaToolVersions] = string(b)
		}
	}
	if err := cat.Commit(ctx, batch); err != nil {
		return sum, results, fmt.Errorf("indexer: commit: %w", err)
	}

	if opts.ScanLog != nil {
		writeScanLog(opts.ScanLog, results, deletes, logger)
	}
	sum.Duration = time.Since(start)
	logger.Printf("scan done: scanned=%d processed=%d cached=%d removed=%d invalid=%d fallbacks=%d failed=%d in %s",
		sum.Scanned, sum.Processed, sum.Cached, sum.Removed, sum.Invalid, sum.Fallbacks, sum.Failed, sum.Duration)
	return sum, results, nil
}

func writeScanLog(l *scanlog.ScanLogger, results []ingest.Result, deletes []string, logger *log.Logger) {
	now := time.Now().UTC()
	for _, res := range results {
		e := scanlog.ScanEntry{
			Time:          now,
			Path:          res.Path,
			Format:        string(res.Format),
			SHA256:        res.SHA256,
			Valid:         res.Valid,
			ParseMode:     string(res.ParseMode),
			Outcome:       scanlog.OutcomeProcessed,
			Warnings:      len(res.Warnings),
			Errors:        len(res.Errors),
			LeadingError:  leadingError(res),
			ReportPath:    res.ReportPath,
			ThumbPath:     res.ThumbPath,
			MeshCachePath: res.MeshCachePath,
		}
		switch {
		case res.Cached:
			e.Outcome = scanlog.OutcomeCached
		case res.Failed:
			e.Outcome = scanlog.OutcomeFailed
		}
		if err := l.WriteEntry(e); err != nil {
			logger.Printf("scan log write failed: %v", err)
			return
		}
	}
	for _, path := range deletes {
		if err := l.WriteEntry(scanlog.ScanEntry{Time: now, Path: path, Outcome: scanlog.OutcomeRemoved}); err != nil {
			logger.Printf("scan log write failed: %v", err)
			return
		}
	}
}

// leadingError prefers the in-memory diagnostics and falls back to the
// stored JSON for cached rows.
func leadingError(res ingest.Result) string {
	if len(res.Errors) > 0 {
		return diag.LeadingCode(res.Errors, "")
	}
	if res.Valid || res.ErrorsJSON == "" {
		return ""
	}
	var errs []diag.Diagnostic
	if err := json.Unmarshal([]byte(res.ErrorsJSON), &errs); err != nil {
		return ""
	}
	return diag.LeadingCode(errs, "")
}
