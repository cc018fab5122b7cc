package ingest

import (
	"runtime"
	"time"

	"voxelindex.ai/internal/blocks"
	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/mesh"
	"voxelindex.ai/internal/preview"
)

// Version tags reports written by this pipeline.
const Version = "0.1.0"

// bytesPerBlock is the rough in-memory footprint of one canonical voxel.
const bytesPerBlock = 40

// Report is the immutable per-file JSON artifact. It is written for every
// file, valid or not.
type Report struct {
	Path                string               `json:"path"`
	FormatDetected      loaders.Format       `json:"format_detected"`
	Confidence          string               `json:"confidence"`
	Variant             string               `json:"variant,omitempty"`
	ParseMode           loaders.ModeUsed     `json:"parse_mode"`
	Valid               bool                 `json:"valid"`
	SHA256              string               `json:"sha256"`
	SourceSHA256        string               `json:"source_sha256"`
	Warnings            []diag.Diagnostic    `json:"warnings"`
	Errors              []diag.Diagnostic    `json:"errors"`
	UnknownBlocks       blocks.UnknownReport `json:"unknown_blocks"`
	Metadata            map[string]string    `json:"metadata"`
	Stats               ReportStats          `json:"stats"`
	Artifacts           ReportArtifacts      `json:"artifacts"`
	Timing              Timing               `json:"timing_ms"`
	MemoryEstimateBytes int64                `json:"memory_estimate_bytes"`
	ToolVersions        map[string]string    `json:"tool_versions"`
}

type Bounds struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
	DZ int `json:"dz"`
}

type ReportStats struct {
	BlockCount    int    `json:"block_count"`
	UniqueBlocks  int    `json:"unique_blocks"`
	QuadCount     int    `json:"quad_count"`
	Transparent   int    `json:"transparent_quads"`
	FaceArea      int    `json:"face_area"`
	Bounds        Bounds `json:"bounds"`
	CellsDecoded  int    `json:"cells_decoded,omitempty"`
	CellsExpected int    `json:"cells_expected,omitempty"`
}

type ReportArtifacts struct {
	MeshKey     string            `json:"mesh_key,omitempty"`
	PreviewKey  string            `json:"preview_key,omitempty"`
	Thumb       string            `json:"thumb_path"`
	Mesh        string            `json:"mesh_cache_path,omitempty"`
	MeshCached  bool              `json:"mesh_cached"`
	ThumbCached bool              `json:"thumb_cached"`
	Projections map[string]string `json:"projections,omitempty"`
}

// Timing holds per-stage wall time in milliseconds.
type Timing struct {
	Sniff        float64 `json:"sniff"`
	Parse        float64 `json:"parse"`
	Canonicalize float64 `json:"canonicalize"`
	Mesh         float64 `json:"mesh"`
	Preview      float64 `json:"preview"`
	Total        float64 `json:"total"`
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func toolVersions(reg *blocks.Registry) map[string]string {
	return map[string]string{
		"indexer":  Version,
		"mesh":     mesh.Version,
		"render":   preview.Version,
		"profile":  string(reg.Profile()),
		"registry": reg.Digest(),
		"go":       runtime.Version(),
	}
}

func (r *Report) fillEmpty() {
	if r.Warnings == nil {
		r.Warnings = []diag.Diagnostic{}
	}
	if r.Errors == nil {
		r.Errors = []diag.Diagnostic{}
	}
	if r.UnknownBlocks.Entries == nil {
		r.UnknownBlocks.Entries = []blocks.UnknownEntry{}
	}
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
}
