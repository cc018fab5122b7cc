// Package hytale decodes JSON prefab exports. Input may carry // and /* */
// comments and trailing commas; they are stripped before decoding.
package hytale

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"voxelindex.ai/internal/blocks"
	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/voxel"
)

const sniffWindow = 8192

var hints = []string{`"blocks"`, `"palette"`, `"prefab"`}

func Sniff(b []byte, _ string) loaders.SniffResult {
	head := b[:min(len(b), sniffWindow)]
	text := strings.TrimLeft(string(head), " \t\r\n\ufeff")
	if strings.HasPrefix(text, "//") || strings.HasPrefix(text, "/*") {
		text = strings.TrimLeft(string(jsonc.ToJSON([]byte(text))), " \t\r\n")
	}
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return loaders.SniffResult{Match: false, Confidence: loaders.High, Reasons: []string{"NOT_JSON"}}
	}
	lower := strings.ToLower(text)
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return loaders.SniffResult{Match: true, Confidence: loaders.Medium, Reasons: []string{"JSON_WITH_PREFAB_HINTS"}}
		}
	}
	return loaders.SniffResult{Match: true, Confidence: loaders.Low, Reasons: []string{"JSON_NO_STRONG_HINTS"}}
}

// Load has a single pass: record level problems are always warnings, so the
// mode only affects how the result is labelled.
func Load(b []byte, opts loaders.Options) loaders.Result {
	res := loaders.Result{Format: loaders.FormatHytale, Variant: "prefab", ModeUsed: loaders.UsedSalvage}
	if opts.Mode == loaders.ModeStrict {
		res.ModeUsed = loaders.UsedStrict
	}
	var (
		diags diag.Set
		tally blocks.Tally
	)

	doc, err := decode(b)
	if err != nil {
		diags.Add(diag.Errorf(diag.CodeHytaleJSONInvalid, "invalid JSON: %v", err))
		res.Errors = diags.Errors
		res.Metadata = map[string]string{}
		res.Unknown = tally.Report()
		return res
	}

	root, _ := doc.(map[string]any)
	if prefab, ok := root["prefab"].(map[string]any); ok {
		root = prefab
	}
	meta := metadata(root)
	records := blockRecords(root)
	if len(records) == 0 {
		diags.Add(diag.Errorf(diag.CodeHytaleMissingCoreField, "no blocks/voxels array detected"))
	}
	res.CellsExpected = len(records)

	voxels := make([]voxel.Voxel, 0, len(records))
	for i, raw := range records {
		rec, ok := raw.(map[string]any)
		if !ok {
			diags.Add(diag.Warnf(diag.CodeHytaleBlockRecordInvalid, "record %d: not an object", i))
			continue
		}
		v, err := coordinates(rec)
		if err != nil {
			diags.Add(diag.Warnf(diag.CodeHytaleBlockRecordInvalid, "record %d: %v", i, err))
			continue
		}
		r := opts.Registry.Resolve(query(root, rec))
		if r.Unknown {
			diags.Add(diag.Warnf(diag.CodeHytaleBlockUnknown, "record %d: unknown block %s", i, r.Source))
			tally.Add(r)
		}
		v.BlockKey = r.Canonical
		voxels = append(voxels, v)
	}

	res.Warnings = diags.Warnings
	res.Errors = diags.Errors
	res.Unknown = tally.Report()
	res.Metadata = meta
	res.CellsDecoded = len(voxels)
	if diags.HasErrors() {
		return res
	}
	loaders.Finalize(&res, voxels, loaders.MetadataFrom(meta, opts.SourcePath), diag.CodeHytaleBlockRecordInvalid)
	return res
}

func decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(b)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return doc, nil
}

func metadata(root map[string]any) map[string]string {
	out := map[string]string{}
	pick := func(dst string, keys ...string) {
		for _, k := range keys {
			if s, ok := root[k].(string); ok {
				out[dst] = s
				return
			}
		}
	}
	pick("author", "author", "creator")
	pick("description", "description", "desc")
	return out
}

func blockRecords(root map[string]any) []any {
	if list, ok := root["blocks"].([]any); ok {
		return list
	}
	if list, ok := root["voxels"].([]any); ok {
		return list
	}
	return nil
}

func coordinates(rec map[string]any) (voxel.Voxel, error) {
	var c [3]float64
	for i, k := range []string{"x", "y", "z"} {
		n, ok := rec[k].(json.Number)
		if !ok {
			return voxel.Voxel{}, errors.New("missing or non-numeric coordinate " + k)
		}
		f, err := n.Float64()
		if err != nil {
			return voxel.Voxel{}, err
		}
		c[i] = f
	}
	return voxel.FromFloat(c[0], c[1], c[2], "")
}

func integer(v any) (int, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// query prefers an explicit name, then a palette reference, then the legacy
// id/data pair.
func query(root, rec map[string]any) blocks.Query {
	if name, ok := rec["name"].(string); ok {
		return blocks.Namespaced(name)
	}
	if name, ok := rec["block"].(string); ok {
		return blocks.Namespaced(name)
	}
	if idx, ok := integer(rec["palette"]); ok {
		switch p := root["palette"].(type) {
		case []any:
			if idx >= 0 && idx < len(p) {
				if name, ok := p[idx].(string); ok {
					return blocks.Namespaced(name)
				}
			}
		case map[string]any:
			if name, ok := p[strconv.Itoa(idx)].(string); ok {
				return blocks.Namespaced(name)
			}
		}
	}
	if id, ok := integer(rec["id"]); ok {
		data, _ := integer(rec["data"])
		return blocks.Legacy(id, data)
	}
	return blocks.Query{}
}
