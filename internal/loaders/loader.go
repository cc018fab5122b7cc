// Package loaders holds the contract shared by the per-format decoders.
package loaders

import (
	"errors"
	"fmt"
	"strings"

	"voxelindex.ai/internal/blocks"
	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/voxel"
)

type Format string

const (
	FormatBO2       Format = "bo2"
	FormatSchematic Format = "schematic"
	FormatHytale    Format = "hytale"
	FormatUnknown   Format = "unknown"
)

type Mode string

const (
	ModeStrict            Mode = "strict"
	ModeSalvage           Mode = "salvage"
	ModeStrictThenSalvage Mode = "strict-then-salvage"
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return ModeStrict, nil
	case "salvage":
		return ModeSalvage, nil
	case "", "strict-then-salvage", "strict+salvage":
		return ModeStrictThenSalvage, nil
	}
	return "", fmt.Errorf("unknown parse mode %q", s)
}

// ModeUsed records which decoding pass produced a result.
type ModeUsed string

const (
	UsedStrict  ModeUsed = "strict"
	UsedSalvage ModeUsed = "salvage"
	UsedNone    ModeUsed = "none"
)

type Confidence int

const (
	Low Confidence = iota + 1
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	}
	return "none"
}

type SniffResult struct {
	Match      bool
	Confidence Confidence
	Reasons    []string
}

type Options struct {
	Mode       Mode
	Registry   *blocks.Registry
	SourcePath string
}

type Result struct {
	Format        Format
	Variant       string
	Valid         bool
	ModeUsed      ModeUsed
	Canonical     *voxel.CanonicalObject
	Metadata      map[string]string
	Warnings      []diag.Diagnostic
	Errors        []diag.Diagnostic
	Unknown       blocks.UnknownReport
	CellsDecoded  int
	CellsExpected int
	// Invariant is set when canonicalization reported an internal bug.
	Invariant error
}

// Pass is one self-contained decoding attempt.
type Pass func() Result

// Run applies the requested mode.
func Run(mode Mode, strict, salvage Pass) Result {
	switch mode {
	case ModeStrict:
		return strict()
	case ModeSalvage:
		return salvage()
	}
	return StrictThenSalvage(strict, salvage)
}

// StrictThenSalvage keeps a valid strict result. Otherwise the salvage pass
// starts from scratch and strict errors are carried over as warnings.
func StrictThenSalvage(strict, salvage Pass) Result {
	s := strict()
	if s.Valid {
		return s
	}
	res := salvage()
	if len(s.Errors) > 0 {
		res.Warnings = append(diag.FallbackWarnings(s.Errors), res.Warnings...)
	}
	return res
}

// Finalize canonicalizes voxels and fills the shared result fields. A failed
// canonicalization is recorded under failCode and leaves the result invalid.
func Finalize(res *Result, voxels []voxel.Voxel, meta voxel.Metadata, failCode string) {
	if res.Metadata == nil {
		res.Metadata = map[string]string{}
	}
	if len(voxels) == 0 {
		if len(res.Errors) == 0 {
			res.Errors = append(res.Errors, diag.Errorf(diag.CodeNoVoxels, "no voxel records decoded"))
		}
		res.Valid = false
		return
	}
	obj, err := voxel.Canonicalize(voxels, meta, voxel.LastWriteWins)
	if err != nil {
		code := failCode
		if errors.Is(err, voxel.ErrInvariant) {
			code = diag.CodeInternalInvariant
			res.Invariant = err
		}
		res.Errors = append(res.Errors, diag.Errorf(code, "canonicalization failed: %v", err))
		res.Valid = false
		return
	}
	res.Canonical = &obj
	res.Valid = len(res.Errors) == 0
}

// MetadataFrom copies the descriptive fields a loader discovered. A key
// present with an empty value stays present.
func MetadataFrom(m map[string]string, sourcePath string) voxel.Metadata {
	meta := voxel.Metadata{SourcePath: sourcePath}
	if s, ok := m["author"]; ok {
		meta.Author = &s
	}
	if s, ok := m["description"]; ok {
		meta.Description = &s
	}
	return meta
}
