package ingest

import (
	"strings"

	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/persistence/indexdb"
)

// Task is one file to ingest. MtimeMs and Size are carried into the
// catalog row for change detection.
type Task struct {
	Path    string
	MtimeMs int64
	Size    int64
}

// Result is the per-file outcome in the catalog row shape.
type Result struct {
	Path          string           `json:"path"`
	Format        loaders.Format   `json:"format"`
	SHA256        string           `json:"sha256"`
	Valid         bool             `json:"valid"`
	ParseMode     loaders.ModeUsed `json:"parse_mode"`
	DX            int              `json:"dx"`
	DY            int              `json:"dy"`
	DZ            int              `json:"dz"`
	BlockCount    int              `json:"block_count"`
	UniqueBlocks  int              `json:"unique_blocks"`
	UnknownBlocks int              `json:"unknown_blocks"`
	Author        string           `json:"author,omitempty"`
	Description   string           `json:"description,omitempty"`
	WarningsJSON  string           `json:"warnings_json"`
	ErrorsJSON    string           `json:"errors_json"`
	ThumbPath     string           `json:"thumb_path"`
	MeshCachePath string           `json:"mesh_cache_path"`
	ReportPath    string           `json:"ingest_report_path"`

	SourceMtimeMs int64 `json:"-"`
	SourceSize    int64 `json:"-"`

	// Cached is set for results synthesized from an unchanged catalog row.
	Cached bool `json:"-"`
	// Failed marks a worker failure rather than a decoding outcome.
	Failed bool `json:"-"`

	Warnings []diag.Diagnostic `json:"-"`
	Errors   []diag.Diagnostic `json:"-"`
}

// Fallback reports whether the salvage pass produced this result after
// strict decoding failed.
func (r Result) Fallback() bool {
	for _, w := range r.Warnings {
		if strings.HasPrefix(w.Code, diag.StrictFallbackPrefix) {
			return true
		}
	}
	return false
}

func (r Result) Row() indexdb.Object {
	return indexdb.Object{
		Path:          r.Path,
		Format:        string(r.Format),
		SHA256:        r.SHA256,
		Valid:         r.Valid,
		ParseMode:     string(r.ParseMode),
		DX:            r.DX,
		DY:            r.DY,
		DZ:            r.DZ,
		BlockCount:    r.BlockCount,
		UniqueBlocks:  r.UniqueBlocks,
		UnknownBlocks: r.UnknownBlocks,
		Author:        r.Author,
		Description:   r.Description,
		WarningsJSON:  r.WarningsJSON,
		ErrorsJSON:    r.ErrorsJSON,
		ThumbPath:     r.ThumbPath,
		MeshCachePath: r.MeshCachePath,
		ReportPath:    r.ReportPath,
		SourceMtimeMs: r.SourceMtimeMs,
		SourceSize:    r.SourceSize,
	}
}

// CachedResult rebuilds a result from a stored row without touching the
// source file. The stored report stays authoritative.
func CachedResult(o indexdb.Object) Result {
	return Result{
		Path:          o.Path,
		Format:        loaders.Format(o.Format),
		SHA256:        o.SHA256,
		Valid:         o.Valid,
		ParseMode:     loaders.ModeUsed(o.ParseMode),
		DX:            o.DX,
		DY:            o.DY,
		DZ:            o.DZ,
		BlockCount:    o.BlockCount,
		UniqueBlocks:  o.UniqueBlocks,
		UnknownBlocks: o.UnknownBlocks,
		Author:        o.Author,
		Description:   o.Description,
		WarningsJSON:  o.WarningsJSON,
		ErrorsJSON:    o.ErrorsJSON,
		ThumbPath:     o.ThumbPath,
		MeshCachePath: o.MeshCachePath,
		ReportPath:    o.ReportPath,
		SourceMtimeMs: o.SourceMtimeMs,
		SourceSize:    o.SourceSize,
		Cached:        true,
	}
}
