// Package ingest runs one file through detection, decoding, hashing and
// artifact generation, and records the outcome as a report and a catalog
// row.
package ingest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"voxelindex.ai/internal/blocks"
	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/loaders/bo2"
	"voxelindex.ai/internal/loaders/hytale"
	"voxelindex.ai/internal/loaders/schematic"
	"voxelindex.ai/internal/mesh"
	"voxelindex.ai/internal/persistence/artifacts"
	"voxelindex.ai/internal/preview"
	"voxelindex.ai/internal/voxel"
)

type Config struct {
	Registry         *blocks.Registry
	Mode             loaders.Mode
	Store            *artifacts.Store
	ReportsDir       string
	Preview          preview.Options
	DebugProjections bool
	Logger           *log.Logger
}

// Pipeline is safe for concurrent use; all of its state is read-only after
// New.
type Pipeline struct {
	registry    *blocks.Registry
	mode        loaders.Mode
	store       *artifacts.Store
	reportsDir  string
	preview     preview.Options
	projections bool
	logger      *log.Logger
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Registry == nil {
		return nil, errors.New("ingest: nil registry")
	}
	if cfg.Store == nil {
		return nil, errors.New("ingest: nil artifact store")
	}
	if cfg.ReportsDir == "" {
		return nil, errors.New("ingest: empty reports dir")
	}
	if err := cfg.Preview.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if cfg.Mode == "" {
		cfg.Mode = loaders.ModeStrictThenSalvage
	}
	if err := os.MkdirAll(cfg.ReportsDir, 0o755); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Pipeline{
		registry:    cfg.Registry,
		mode:        cfg.Mode,
		store:       cfg.Store,
		reportsDir:  cfg.ReportsDir,
		preview:     cfg.Preview,
		projections: cfg.DebugProjections,
		logger:      logger,
	}, nil
}

func (p *Pipeline) Profile() blocks.ProfileName { return p.registry.Profile() }

// RegistryDigest identifies the block mapping results were produced under.
func (p *Pipeline) RegistryDigest() string { return p.registry.Digest() }

// ToolVersions lists the component versions stamped into every report.
func (p *Pipeline) ToolVersions() map[string]string { return toolVersions(p.registry) }

// Ingest reads task.Path and ingests it. An unreadable file yields an
// invalid result; the returned error is reserved for failures to persist
// artifacts or the report.
func (p *Pipeline) Ingest(task Task) (Result, error) {
	data, err := os.ReadFile(task.Path)
	if err != nil {
		res, werr := p.failure(task, diag.Errorf(diag.CodeReadFailed, "read: %v", err))
		return res, werr
	}
	res, err := p.IngestBytes(task.Path, data)
	res.SourceMtimeMs, res.SourceSize = task.MtimeMs, task.Size
	return res, err
}

// IngestBytes runs the pipeline on data as if read from path.
func (p *Pipeline) IngestBytes(path string, data []byte) (Result, error) {
	start := time.Now()
	var timing Timing

	sum := sha256.Sum256(data)
	rawSHA := hex.EncodeToString(sum[:])

	t := time.Now()
	det := Detect(data, path)
	timing.Sniff = ms(time.Since(t))

	t = time.Now()
	lr := p.load(det, data, path)
	timing.Parse = ms(time.Since(t))
	lr.Warnings = append(append([]diag.Diagnostic(nil), det.Warnings...), lr.Warnings...)
	if lr.Invariant != nil {
		p.logger.Printf("ERROR internal invariant violated: path=%s err=%v", path, lr.Invariant)
	}

	rep := Report{
		Path:           path,
		FormatDetected: det.Format,
		Confidence:     det.Confidence.String(),
		Variant:        lr.Variant,
		ParseMode:      lr.ModeUsed,
		Valid:          lr.Valid && lr.Canonical != nil,
		SHA256:         rawSHA,
		SourceSHA256:   rawSHA,
		Warnings:       lr.Warnings,
		Errors:         lr.Errors,
		UnknownBlocks:  lr.Unknown,
		Metadata:       lr.Metadata,
		ToolVersions:   toolVersions(p.registry),
		Stats: ReportStats{
			CellsDecoded:  lr.CellsDecoded,
			CellsExpected: lr.CellsExpected,
		},
	}

	res := Result{
		Path:          path,
		Format:        det.Format,
		SHA256:        rawSHA,
		ParseMode:     lr.ModeUsed,
		UnknownBlocks: lr.Unknown.TotalUnknown,
		Author:        lr.Metadata["author"],
		Description:   lr.Metadata["description"],
		Warnings:      lr.Warnings,
		Errors:        lr.Errors,
	}

	var err error
	if rep.Valid {
		err = p.derive(lr.Canonical, &rep, &res, &timing)
	} else {
		err = p.placeholder(diag.LeadingCode(lr.Errors, diag.CodeInvalidObject), &rep, &res)
	}
	if err != nil {
		return res, err
	}

	timing.Total = ms(time.Since(start))
	rep.Timing = timing
	return res, p.writeReport(&rep, &res, rawSHA)
}

func (p *Pipeline) load(det Detection, data []byte, path string) loaders.Result {
	opts := loaders.Options{Mode: p.mode, Registry: p.registry, SourcePath: path}
	switch det.Format {
	case loaders.FormatBO2:
		return bo2.Load(data, opts)
	case loaders.FormatSchematic:
		return schematic.Load(data, opts)
	case loaders.FormatHytale:
		return hytale.Load(data, opts)
	}
	return loaders.Result{
		Format:   loaders.FormatUnknown,
		ModeUsed: loaders.UsedNone,
		Errors:   det.Errors,
		Metadata: map[string]string{},
	}
}

// derive hashes obj and makes sure its mesh and preview exist under their
// cache keys. Existing artifacts are reused as-is.
func (p *Pipeline) derive(obj *voxel.CanonicalObject, rep *Report, res *Result, timing *Timing) error {
	t := time.Now()
	digest := voxel.Hash(*obj)
	timing.Canonicalize = ms(time.Since(t))

	b := obj.BoundsNormalized
	res.Valid = true
	res.SHA256 = digest.SHA256
	res.DX, res.DY, res.DZ = b.DX, b.DY, b.DZ
	res.BlockCount = len(obj.Voxels)
	res.UniqueBlocks = obj.UniqueBlocks()

	rep.SHA256 = digest.SHA256
	rep.Stats.BlockCount = res.BlockCount
	rep.Stats.UniqueBlocks = res.UniqueBlocks
	rep.Stats.Bounds = Bounds{DX: b.DX, DY: b.DY, DZ: b.DZ}
	rep.MemoryEstimateBytes = int64(res.BlockCount) * bytesPerBlock

	meshKey := artifacts.MeshKey(digest.SHA256, string(p.registry.Profile()))
	previewKey := artifacts.PreviewKey(meshKey, p.preview)
	rep.Artifacts.MeshKey, rep.Artifacts.PreviewKey = meshKey, previewKey

	t = time.Now()
	quads, cached, err := p.mesh(meshKey, digest.SHA256, obj)
	timing.Mesh = ms(time.Since(t))
	if err != nil {
		return err
	}
	st := mesh.Summarize(quads)
	rep.Stats.QuadCount, rep.Stats.Transparent, rep.Stats.FaceArea = st.Quads, st.Transparent, st.FaceArea
	res.MeshCachePath = p.store.MeshPath(meshKey)
	rep.Artifacts.Mesh, rep.Artifacts.MeshCached = res.MeshCachePath, cached

	t = time.Now()
	thumb := p.store.PreviewPath(previewKey)
	created, err := p.store.Ensure(thumb, func() ([]byte, error) {
		return preview.RenderPNG(b, quads, p.preview)
	})
	if err != nil {
		return fmt.Errorf("ingest: preview %s: %w", res.Path, err)
	}
	res.ThumbPath = thumb
	rep.Artifacts.Thumb, rep.Artifacts.ThumbCached = thumb, !created

	if p.projections {
		rep.Artifacts.Projections = make(map[string]string, len(preview.Projections))
		for _, v := range preview.Projections {
			opts := p.preview.WithView(v)
			path := p.store.ProjectionPath(previewKey, v.Name)
			if _, err := p.store.Ensure(path, func() ([]byte, error) {
				return preview.RenderPNG(b, quads, opts)
			}); err != nil {
				return fmt.Errorf("ingest: %s projection %s: %w", v.Name, res.Path, err)
			}
			rep.Artifacts.Projections[v.Name] = path
		}
	}
	timing.Preview = ms(time.Since(t))
	return nil
}

// mesh returns the quads for meshKey, reading the cached artifact when it
// exists and decodes.
func (p *Pipeline) mesh(meshKey, sha string, obj *voxel.CanonicalObject) ([]mesh.Quad, bool, error) {
	m, err := p.store.GetMesh(meshKey)
	if err == nil && m.SHA256 == sha {
		return m.Quads, true, nil
	}
	switch {
	case err == nil:
		p.logger.Printf("mesh cache holds another object, rebuilding: key=%s", meshKey)
	case !errors.Is(err, artifacts.ErrNotFound):
		p.logger.Printf("mesh cache unreadable, rebuilding: key=%s err=%v", meshKey, err)
	}
	if !errors.Is(err, artifacts.ErrNotFound) {
		// PutMesh never overwrites an existing file.
		if err := p.store.RemoveMesh(meshKey); err != nil {
			return nil, false, err
		}
	}
	quads := mesh.Greedy(*obj)
	if _, err := p.store.PutMesh(meshKey, mesh.Mesh{SHA256: sha, Quads: quads}); err != nil {
		return nil, false, err
	}
	return quads, false, nil
}

func (p *Pipeline) placeholder(code string, rep *Report, res *Result) error {
	key := artifacts.PlaceholderKey(code, p.preview.Size)
	path := p.store.PlaceholderPath(key)
	created, err := p.store.Ensure(path, func() ([]byte, error) {
		return preview.PlaceholderPNG(code, p.preview.Size)
	})
	if err != nil {
		return fmt.Errorf("ingest: placeholder %s: %w", code, err)
	}
	res.ThumbPath = path
	rep.Artifacts.Thumb, rep.Artifacts.ThumbCached = path, !created
	return nil
}

func (p *Pipeline) writeReport(rep *Report, res *Result, rawSHA string) error {
	rep.fillEmpty()
	res.WarningsJSON = diag.MarshalList(rep.Warnings)
	res.ErrorsJSON = diag.MarshalList(rep.Errors)

	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("ingest: encode report: %w", err)
	}
	path := ReportPath(p.reportsDir, rawSHA, res.Path)
	if err := artifacts.WriteAtomic(path, b); err != nil {
		return fmt.Errorf("ingest: write report: %w", err)
	}
	res.ReportPath = path
	return nil
}

// ReportPath names the report for a source file by its raw content hash
// and a short hash of its path, so renamed copies keep separate reports.
func ReportPath(dir, rawSHA, sourcePath string) string {
	ph := sha1.Sum([]byte(sourcePath))
	return filepath.Join(dir, rawSHA+"-"+hex.EncodeToString(ph[:])[:12]+".json")
}

// Failure builds the hard-failure result for a task whose worker did not
// complete. Artifact and report writes are best effort.
func (p *Pipeline) Failure(task Task, cause error) Result {
	res, err := p.failure(task, diag.Errorf(diag.CodeWorkerFailure, "ingest failed after retry: %v", cause))
	if err != nil {
		p.logger.Printf("failure report not written: path=%s err=%v", task.Path, err)
	}
	res.Failed = true
	return res
}

func (p *Pipeline) failure(task Task, d diag.Diagnostic) (Result, error) {
	rep := Report{
		Path:           task.Path,
		FormatDetected: FormatForExtension(task.Path),
		Confidence:     loaders.Confidence(0).String(),
		ParseMode:      loaders.UsedNone,
		Errors:         []diag.Diagnostic{d},
		ToolVersions:   toolVersions(p.registry),
	}
	res := Result{
		Path:          task.Path,
		Format:        rep.FormatDetected,
		ParseMode:     loaders.UsedNone,
		Errors:        rep.Errors,
		SourceMtimeMs: task.MtimeMs,
		SourceSize:    task.Size,
	}
	// Without readable bytes the path stands in for the content hash.
	sum := sha256.Sum256([]byte(task.Path))
	pathSHA := hex.EncodeToString(sum[:])
	rep.SHA256, rep.SourceSHA256, res.SHA256 = pathSHA, pathSHA, pathSHA

	err := p.placeholder(d.Code, &rep, &res)
	if werr := p.writeReport(&rep, &res, pathSHA); err == nil {
		err = werr
	}
	return res, err
}
