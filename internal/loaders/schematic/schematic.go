// Package schematic decodes MCEdit and Sponge schematics: a named binary tag
// tree, optionally wrapped in a compression envelope.
package schematic

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	"voxelindex.ai/internal/blocks"
	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/encoding"
	"voxelindex.ai/internal/envelope"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/nbt"
	"voxelindex.ai/internal/voxel"
)

const (
	VariantMCEdit  = "mcedit"
	VariantSponge  = "sponge"
	VariantUnknown = "unknown"
)

// maxCells bounds the declared volume; anything larger cannot be backed by
// an envelope within envelope.MaxDecoded anyway.
const maxCells = 1 << 31

func Sniff(b []byte, pathHint string) loaders.SniffResult {
	switch strings.ToLower(filepath.Ext(pathHint)) {
	case ".schematic", ".schem":
		return loaders.SniffResult{Match: true, Confidence: loaders.High, Reasons: []string{"EXTENSION_MATCH"}}
	}
	if len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b {
		return loaders.SniffResult{Match: true, Confidence: loaders.Medium, Reasons: []string{"GZIP_MAGIC"}}
	}
	if len(b) >= 3 && b[0] == byte(nbt.TagCompound) && b[1] == 0x00 {
		return loaders.SniffResult{Match: true, Confidence: loaders.Medium, Reasons: []string{"NBT_MAGIC_LIKE"}}
	}
	if k := envelope.Detect(b); k != envelope.None {
		return loaders.SniffResult{Match: true, Confidence: loaders.Low, Reasons: []string{"ENVELOPE_" + strings.ToUpper(string(k))}}
	}
	return loaders.SniffResult{Match: false, Confidence: loaders.Low, Reasons: []string{"NO_NBT_HINT"}}
}

func Load(b []byte, opts loaders.Options) loaders.Result {
	return loaders.Run(opts.Mode,
		func() loaders.Result { return parse(b, opts, true) },
		func() loaders.Result { return parse(b, opts, false) },
	)
}

type state struct {
	strict bool
	reg    *blocks.Registry
	diags  diag.Set
	tally  blocks.Tally
	voxels []voxel.Voxel
	meta   map[string]string
}

func parse(b []byte, opts loaders.Options, strict bool) loaders.Result {
	st := &state{strict: strict, reg: opts.Registry, meta: map[string]string{}}
	res := loaders.Result{Format: loaders.FormatSchematic, Variant: VariantUnknown, ModeUsed: loaders.UsedSalvage}
	if strict {
		res.ModeUsed = loaders.UsedStrict
	}

	payload, kind, err := envelope.Unwrap(b)
	if kind != envelope.None {
		st.meta["envelope"] = string(kind)
	}
	if err != nil {
		if strict || len(payload) == 0 {
			st.fatal(diag.CodeSchemEnvelopeCorrupt, err.Error())
			return st.finish(res, opts)
		}
		st.diags.Add(diag.Warnf(diag.CodeSchemEnvelopeCorrupt, "%v (recovered %d bytes)", err, len(payload)))
	}

	_, root, err := nbt.Decode(payload)
	if err != nil {
		code := diag.CodeSchemNBTParseFailed
		if errors.Is(err, nbt.ErrTruncated) {
			code = diag.CodeSchemNBTTruncated
		}
		if strict || root == nil {
			st.fatal(code, "nbt: "+err.Error())
			return st.finish(res, opts)
		}
		st.diags.Add(diag.Warnf(code, "using partial tag tree: %v", err))
	}

	lower := root.Lower()
	// Sponge v3 nests everything under a "Schematic" compound.
	if inner, ok := nbt.AsCompound(lower["schematic"]); ok {
		if _, hasWidth := lower["width"]; !hasWidth {
			lower = inner.Lower()
		}
	}
	st.readMetadata(lower)

	w, h, l, ok := dimensions(lower)
	if !ok {
		st.fatal(diag.CodeSchemDimensionsInvalid, "missing or invalid Width/Height/Length")
		return st.finish(res, opts)
	}
	expected := w * h * l
	res.CellsExpected = expected

	blockArr, hasBlocks := nbt.Bytes(lower["blocks"])
	dataArr, hasData := nbt.Bytes(lower["data"])
	palette, paletteStream, isSponge := spongeLayout(lower)
	switch {
	case hasBlocks && hasData:
		res.Variant = VariantMCEdit
		addArr, _ := nbt.Bytes(lower["addblocks"])
		res.CellsDecoded = st.decodeMCEdit(w, l, expected, blockArr, dataArr, addArr)
	case isSponge:
		res.Variant = VariantSponge
		res.CellsDecoded = st.decodeSponge(w, l, expected, palette, paletteStream)
	default:
		st.fatal(diag.CodeSchemLayoutUnsupported, "missing (Blocks+Data) and missing (Palette+BlockData)")
	}
	return st.finish(res, opts)
}

// fatal records an error that no mode can recover from.
func (st *state) fatal(code, msg string) {
	st.diags.Add(diag.Errorf(code, "%s", msg))
}

func dimensions(root nbt.Compound) (w, h, l int, ok bool) {
	var dims [3]int
	for i, key := range []string{"width", "height", "length"} {
		n, isInt := nbt.Int(root[key])
		if !isInt || n <= 0 || n > 1<<20 {
			return 0, 0, 0, false
		}
		dims[i] = int(n)
	}
	if dims[0]*dims[1]*dims[2] > maxCells {
		return 0, 0, 0, false
	}
	return dims[0], dims[1], dims[2], true
}

func (st *state) readMetadata(root nbt.Compound) {
	if s, ok := nbt.String(root["author"]); ok && s != "" {
		st.meta["author"] = s
	}
	if s, ok := nbt.String(root["description"]); ok && s != "" {
		st.meta["description"] = s
	}
	if n, ok := nbt.Int(root["version"]); ok {
		st.meta["version"] = strconv.FormatInt(n, 10)
	}
	if m, ok := nbt.AsCompound(root["metadata"]); ok {
		m = m.Lower()
		if s, ok := nbt.String(m["author"]); ok && s != "" && st.meta["author"] == "" {
			st.meta["author"] = s
		}
		if s, ok := nbt.String(m["name"]); ok && s != "" && st.meta["description"] == "" {
			st.meta["description"] = s
		}
	}
}

// spongeLayout finds the palette and index stream in either the v2 root
// layout or the v3 Blocks{Palette, Data} container.
func spongeLayout(root nbt.Compound) (nbt.Compound, []byte, bool) {
	if p, ok := nbt.AsCompound(root["palette"]); ok {
		if stream, ok := nbt.Bytes(root["blockdata"]); ok {
			return p, stream, true
		}
	}
	if container, ok := nbt.AsCompound(root["blocks"]); ok {
		container = container.Lower()
		p, okP := nbt.AsCompound(container["palette"])
		stream, okD := nbt.Bytes(container["data"])
		if okP && okD {
			return p, stream, true
		}
	}
	return nil, nil, false
}

func cellCoord(i, w, l int) (x, y, z int) {
	return i % w, i / (w * l), (i / w) % l
}

func (st *state) decodeMCEdit(w, l, expected int, blockArr, dataArr, addArr []byte) int {
	count := min(expected, len(blockArr), len(dataArr))
	if count < expected {
		st.diags.Report(st.strict, diag.Errorf(diag.CodeSchemBlockArrayTruncated,
			"Blocks/Data arrays too short: blocks=%d data=%d, recovered %d/%d cells",
			len(blockArr), len(dataArr), count, expected))
		if st.strict {
			return count
		}
	}
	for i := 0; i < count; i++ {
		var add byte
		if i/2 < len(addArr) {
			add = addArr[i/2]
		}
		hi := add & 0x0f
		if i%2 == 1 {
			hi = add >> 4
		}
		id := int(blockArr[i]) | int(hi)<<8
		res := st.reg.Resolve(blocks.Legacy(id, int(dataArr[i])))
		st.tally.Add(res)
		if blocks.IsAir(res.Canonical) {
			continue
		}
		x, y, z := cellCoord(i, w, l)
		st.voxels = append(st.voxels, voxel.Voxel{X: x, Y: y, Z: z, BlockKey: res.Canonical})
	}
	return count
}

func (st *state) decodeSponge(w, l, expected int, palette nbt.Compound, stream []byte) int {
	names := make(map[uint32]string, len(palette))
	for name, v := range palette {
		idx, ok := nbt.Int(v)
		if !ok || idx < 0 || idx > 1<<32-1 {
			continue
		}
		if prev, dup := names[uint32(idx)]; !dup || name < prev {
			names[uint32(idx)] = name
		}
	}

	indices, err := encoding.DecodeVarints(stream, expected)
	if err != nil {
		code := diag.CodeSchemBlockDataTruncated
		if errors.Is(err, encoding.ErrVarintTooLong) {
			code = diag.CodeSchemVarintInvalid
		}
		st.diags.Report(st.strict, diag.Errorf(code, "BlockData: %v", err))
	}
	count := len(indices)
	if count < expected {
		if st.strict {
			st.diags.Add(diag.Errorf(diag.CodeSchemCountMismatch, "decoded %d palette indices, expected %d", count, expected))
			return count
		}
		st.diags.Add(diag.Warnf(diag.CodeSchemBlockDataTruncated, "recovered %d/%d cells", count, expected))
	}
	if st.strict && st.diags.HasErrors() {
		return count
	}

	for i, idx := range indices {
		name, ok := names[idx]
		var res blocks.Resolution
		if !ok {
			key := "unknown:palette:" + strconv.FormatUint(uint64(idx), 10)
			res = blocks.Resolution{Canonical: key, Unknown: true, Source: "palette:" + strconv.FormatUint(uint64(idx), 10)}
		} else {
			if cut := strings.IndexByte(name, '['); cut >= 0 {
				name = name[:cut]
			}
			res = st.reg.Resolve(blocks.Namespaced(name))
		}
		st.tally.Add(res)
		if blocks.IsAir(res.Canonical) {
			continue
		}
		x, y, z := cellCoord(i, w, l)
		st.voxels = append(st.voxels, voxel.Voxel{X: x, Y: y, Z: z, BlockKey: res.Canonical})
	}
	return count
}

func (st *state) finish(res loaders.Result, opts loaders.Options) loaders.Result {
	res.Warnings = st.diags.Warnings
	res.Errors = st.diags.Errors
	res.Unknown = st.tally.Report()
	res.Metadata = st.meta
	if st.diags.HasErrors() {
		res.Valid = false
		return res
	}
	loaders.Finalize(&res, st.voxels, loaders.MetadataFrom(st.meta, opts.SourcePath), diag.CodeSchemCanonicalizeFailed)
	return res
}
