package ingest

import (
	"path/filepath"
	"strings"

	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/loaders/bo2"
	"voxelindex.ai/internal/loaders/hytale"
	"voxelindex.ai/internal/loaders/schematic"
)

// Detection is the outcome of format selection. Warnings carry the
// FORMAT_AMBIGUOUS finding; Errors is set only when no format was chosen.
type Detection struct {
	Format     loaders.Format
	Confidence loaders.Confidence
	Sniffs     map[loaders.Format]loaders.SniffResult
	Warnings   []diag.Diagnostic
	Errors     []diag.Diagnostic
}

type sniffer struct {
	format loaders.Format
	sniff  func([]byte, string) loaders.SniffResult
}

// Fixed order; also the last tie breaker.
var sniffers = []sniffer{
	{loaders.FormatBO2, bo2.Sniff},
	{loaders.FormatSchematic, schematic.Sniff},
	{loaders.FormatHytale, hytale.Sniff},
}

// FormatForExtension maps a file name to the format its extension claims.
func FormatForExtension(path string) loaders.Format {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".bo2":
		return loaders.FormatBO2
	case ".schematic", ".schem", ".nbt":
		return loaders.FormatSchematic
	case ".json", ".jsonc", ".prefab":
		return loaders.FormatHytale
	}
	return loaders.FormatUnknown
}

// Detect sniffs b with every loader and picks the highest-confidence match.
// Ties go to the format the extension names. With no match the extension
// alone decides, flagged as ambiguous; with neither the file is unknown.
func Detect(b []byte, path string) Detection {
	d := Detection{Format: loaders.FormatUnknown, Sniffs: make(map[loaders.Format]loaders.SniffResult, len(sniffers))}
	byExt := FormatForExtension(path)

	var best []loaders.Format
	bestConf := loaders.Confidence(0)
	for _, s := range sniffers {
		r := s.sniff(b, path)
		d.Sniffs[s.format] = r
		if !r.Match {
			continue
		}
		switch {
		case r.Confidence > bestConf:
			bestConf = r.Confidence
			best = []loaders.Format{s.format}
		case r.Confidence == bestConf:
			best = append(best, s.format)
		}
	}

	switch {
	case len(best) == 1:
		d.Format, d.Confidence = best[0], bestConf
	case len(best) > 1:
		d.Format, d.Confidence = best[0], bestConf
		for _, f := range best {
			if f == byExt {
				d.Format = f
			}
		}
		if d.Format != byExt {
			d.Warnings = append(d.Warnings, diag.Warnf(diag.CodeFormatAmbiguous,
				"%d formats match with %s confidence; chose %s", len(best), bestConf, d.Format))
			return d
		}
	case byExt != loaders.FormatUnknown:
		d.Format, d.Confidence = byExt, loaders.Low
		d.Warnings = append(d.Warnings, diag.Warnf(diag.CodeFormatAmbiguous,
			"no format signature found; using %s from file extension", byExt))
		return d
	default:
		d.Errors = append(d.Errors, diag.Errorf(diag.CodeFormatUnknown, "unsupported or misnamed file format"))
		return d
	}

	if d.Confidence == loaders.Low {
		d.Warnings = append(d.Warnings, diag.Warnf(diag.CodeFormatAmbiguous,
			"%s selected on a low-confidence signature", d.Format))
	}
	return d
}
