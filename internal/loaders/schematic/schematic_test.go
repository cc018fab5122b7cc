package schematic

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"voxelindex.ai/internal/blocks"
	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/encoding"
	"voxelindex.ai/internal/loaders"
	"voxelindex.ai/internal/nbt"
)

func opts(t testing.TB, mode loaders.Mode) loaders.Options {
	t.Helper()
	reg, err := blocks.New(blocks.ProfileLegacy112, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return loaders.Options{Mode: mode, Registry: reg, SourcePath: "house.schematic"}
}

func encode(t testing.TB, root nbt.Compound) []byte {
	t.Helper()
	b, err := nbt.Encode("Schematic", root)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}

func gzipped(t testing.TB, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	return buf.Bytes()
}

func hasCode(list []diag.Diagnostic, code string) bool {
	for _, d := range list {
		if d.Code == code {
			return true
		}
	}
	return false
}

func mcedit(blocksArr, data []byte, w, h, l int16) nbt.Compound {
	return nbt.Compound{
		"Width":     w,
		"Height":    h,
		"Length":    l,
		"Materials": "Alpha",
		"Blocks":    blocksArr,
		"Data":      data,
		"Author":    "Builder",
	}
}

func TestSniff(t *testing.T) {
	raw := encode(t, mcedit([]byte{1}, []byte{0}, 1, 1, 1))
	var zbuf bytes.Buffer
	zw, _ := zstd.NewWriter(&zbuf)
	_, _ = zw.Write(raw)
	_ = zw.Close()

	cases := []struct {
		name  string
		in    []byte
		path  string
		match bool
		conf  loaders.Confidence
	}{
		{"extension", []byte("anything"), "a/b.SCHEM", true, loaders.High},
		{"gzip", gzipped(t, raw), "blob", true, loaders.Medium},
		{"raw nbt", raw, "blob", true, loaders.Medium},
		{"zstd", zbuf.Bytes(), "blob", true, loaders.Low},
		{"text", []byte("[META]\n"), "x.bo2", false, loaders.Low},
	}
	for _, tc := range cases {
		got := Sniff(tc.in, tc.path)
		if got.Match != tc.match || got.Confidence != tc.conf {
			t.Fatalf("%s: match=%v conf=%s", tc.name, got.Match, got.Confidence)
		}
	}
}

func TestLoad_MCEdit(t *testing.T) {
	root := mcedit([]byte{1, 0, 3, 20}, []byte{0, 0, 0, 0}, 2, 1, 2)
	res := Load(gzipped(t, encode(t, root)), opts(t, loaders.ModeStrictThenSalvage))
	if !res.Valid || res.ModeUsed != loaders.UsedStrict {
		t.Fatalf("valid=%v mode=%s errors=%+v", res.Valid, res.ModeUsed, res.Errors)
	}
	if res.Variant != VariantMCEdit || res.Metadata["envelope"] != "gzip" {
		t.Fatalf("variant=%s metadata=%+v", res.Variant, res.Metadata)
	}
	if res.CellsDecoded != 4 || res.CellsExpected != 4 {
		t.Fatalf("cells %d/%d", res.CellsDecoded, res.CellsExpected)
	}
	obj := res.Canonical
	if len(obj.Voxels) != 3 {
		t.Fatalf("air should be dropped, got %+v", obj.Voxels)
	}
	keys := map[string]bool{}
	for _, v := range obj.Voxels {
		keys[v.BlockKey] = true
	}
	for _, k := range []string{"minecraft:stone", "minecraft:dirt", "minecraft:glass"} {
		if !keys[k] {
			t.Fatalf("missing %s in %+v", k, obj.Voxels)
		}
	}
	if obj.BoundsNormalized.DX != 2 || obj.BoundsNormalized.DY != 1 || obj.BoundsNormalized.DZ != 2 {
		t.Fatalf("bounds = %+v", obj.BoundsNormalized)
	}
	if a := obj.Metadata.Author; a == nil || *a != "Builder" {
		t.Fatalf("author = %v", a)
	}
}

func TestLoad_MCEditAddBlocks(t *testing.T) {
	root := mcedit([]byte{1, 1}, []byte{0, 0}, 2, 1, 1)
	root["AddBlocks"] = []byte{0x10}
	res := Load(encode(t, root), opts(t, loaders.ModeStrict))
	if !res.Valid {
		t.Fatalf("errors = %+v", res.Errors)
	}
	if res.Unknown.TotalUnknown != 1 || res.Unknown.Entries[0].Source != "257:0" {
		t.Fatalf("unknown = %+v", res.Unknown)
	}
}

func TestLoad_MCEditTruncated(t *testing.T) {
	root := mcedit([]byte{1, 1, 1}, []byte{0, 0, 0, 0}, 2, 1, 2)
	b := encode(t, root)

	strict := Load(b, opts(t, loaders.ModeStrict))
	if strict.Valid || !hasCode(strict.Errors, diag.CodeSchemBlockArrayTruncated) {
		t.Fatalf("strict = %+v", strict.Errors)
	}

	res := Load(b, opts(t, loaders.ModeStrictThenSalvage))
	if !res.Valid || res.ModeUsed != loaders.UsedSalvage {
		t.Fatalf("salvage: valid=%v errors=%+v", res.Valid, res.Errors)
	}
	if !hasCode(res.Warnings, "STRICT_FALLBACK_SCHEM_BLOCK_ARRAY_TRUNCATED") {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	if res.CellsDecoded != 3 || res.CellsExpected != 4 || len(res.Canonical.Voxels) != 3 {
		t.Fatalf("cells %d/%d voxels %d", res.CellsDecoded, res.CellsExpected, len(res.Canonical.Voxels))
	}
}

func TestLoad_Sponge(t *testing.T) {
	root := nbt.Compound{
		"Version": int32(2),
		"Width":   int16(3),
		"Height":  int16(1),
		"Length":  int16(1),
		"Palette": nbt.Compound{
			"minecraft:air":                         int32(0),
			"minecraft:stone":                       int32(1),
			"minecraft:oak_leaves[persistent=true]": int32(2),
		},
		"BlockData": encoding.EncodeVarints([]uint32{1, 0, 2}),
	}
	res := Load(gzipped(t, encode(t, root)), opts(t, loaders.ModeStrict))
	if !res.Valid || res.Variant != VariantSponge {
		t.Fatalf("valid=%v variant=%s errors=%+v", res.Valid, res.Variant, res.Errors)
	}
	v := res.Canonical.Voxels
	if len(v) != 2 || v[0].BlockKey != "minecraft:stone" || v[1].BlockKey != "minecraft:oak_leaves" || v[1].X != 2 {
		t.Fatalf("voxels = %+v", v)
	}
	if res.Metadata["version"] != "2" {
		t.Fatalf("metadata = %+v", res.Metadata)
	}
}

func TestLoad_SpongeV3(t *testing.T) {
	root := nbt.Compound{
		"Schematic": nbt.Compound{
			"Version": int32(3),
			"Width":   int16(1),
			"Height":  int16(2),
			"Length":  int16(1),
			"Blocks": nbt.Compound{
				"Palette": nbt.Compound{"minecraft:dirt": int32(0), "minecraft:glass": int32(1)},
				"Data":    encoding.EncodeVarints([]uint32{0, 1}),
			},
			"Metadata": nbt.Compound{"Name": "Hut", "Author": "Someone"},
		},
	}
	res := Load(encode(t, root), opts(t, loaders.ModeStrict))
	if !res.Valid || res.Variant != VariantSponge {
		t.Fatalf("valid=%v errors=%+v", res.Valid, res.Errors)
	}
	if m := res.Canonical.Metadata; m.Description == nil || *m.Description != "Hut" || m.Author == nil || *m.Author != "Someone" {
		t.Fatalf("metadata = %+v", res.Canonical.Metadata)
	}
	if len(res.Canonical.Voxels) != 2 || res.Canonical.BoundsNormalized.DY != 2 {
		t.Fatalf("voxels = %+v", res.Canonical.Voxels)
	}
}

func TestLoad_SpongeStreamErrors(t *testing.T) {
	base := func(stream []byte, w int16) nbt.Compound {
		return nbt.Compound{
			"Width": w, "Height": int16(1), "Length": int16(1),
			"Palette":   nbt.Compound{"minecraft:stone": int32(1)},
			"BlockData": stream,
		}
	}

	truncated := encode(t, base([]byte{1, 0x80}, 2))
	strict := Load(truncated, opts(t, loaders.ModeStrict))
	if strict.Valid || !hasCode(strict.Errors, diag.CodeSchemBlockDataTruncated) || !hasCode(strict.Errors, diag.CodeSchemCountMismatch) {
		t.Fatalf("strict = %+v", strict.Errors)
	}
	salvage := Load(truncated, opts(t, loaders.ModeSalvage))
	if !salvage.Valid || salvage.CellsDecoded != 1 || !hasCode(salvage.Warnings, diag.CodeSchemBlockDataTruncated) {
		t.Fatalf("salvage = %+v", salvage)
	}

	tooLong := encode(t, base([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}, 1))
	res := Load(tooLong, opts(t, loaders.ModeStrict))
	if res.Valid || !hasCode(res.Errors, diag.CodeSchemVarintInvalid) {
		t.Fatalf("too long = %+v", res.Errors)
	}
}

func TestLoad_UnknownPaletteIndex(t *testing.T) {
	root := nbt.Compound{
		"Width": int16(1), "Height": int16(1), "Length": int16(1),
		"Palette":   nbt.Compound{"minecraft:stone": int32(0)},
		"BlockData": encoding.EncodeVarints([]uint32{9}),
	}
	res := Load(encode(t, root), opts(t, loaders.ModeStrict))
	if !res.Valid || res.Canonical.Voxels[0].BlockKey != "unknown:palette:9" || res.Unknown.TotalUnknown != 1 {
		t.Fatalf("res = %+v", res)
	}
}

func TestLoad_StructuralErrors(t *testing.T) {
	o := opts(t, loaders.ModeStrictThenSalvage)

	noDims := encode(t, nbt.Compound{"Blocks": []byte{1}, "Data": []byte{0}})
	if res := Load(noDims, o); res.Valid || !hasCode(res.Errors, diag.CodeSchemDimensionsInvalid) {
		t.Fatalf("dims: %+v", res.Errors)
	}

	noLayout := encode(t, nbt.Compound{"Width": int16(1), "Height": int16(1), "Length": int16(1)})
	if res := Load(noLayout, o); res.Valid || !hasCode(res.Errors, diag.CodeSchemLayoutUnsupported) {
		t.Fatalf("layout: %+v", res.Errors)
	}

	full := encode(t, mcedit([]byte{1, 1, 1, 1}, []byte{0, 0, 0, 0}, 2, 1, 2))
	cut := full[:len(full)-6]
	if res := Load(cut, opts(t, loaders.ModeStrict)); res.Valid || !hasCode(res.Errors, diag.CodeSchemNBTTruncated) {
		t.Fatalf("truncated: %+v", res.Errors)
	}

	if res := Load([]byte{0x1f, 0x8b, 0x08, 0x00}, o); res.Valid || !hasCode(res.Errors, diag.CodeSchemEnvelopeCorrupt) {
		t.Fatalf("envelope: %+v", res.Errors)
	}
}

func TestLoad_RandomBytesNeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	o := opts(t, loaders.ModeStrictThenSalvage)
	for i := 0; i < 200; i++ {
		b := make([]byte, 128)
		rng.Read(b)
		if i%2 == 0 {
			b[0], b[1] = 0x0a, 0x00
		}
		res := Load(b, o)
		if res.Valid && res.Canonical == nil {
			t.Fatalf("valid result without canonical object")
		}
	}
}

func FuzzLoad(f *testing.F) {
	seed, err := nbt.Encode("", mcedit([]byte{1, 2}, []byte{0, 0}, 2, 1, 1))
	if err != nil {
		f.Fatalf("encode: %v", err)
	}
	f.Add(seed)
	f.Add([]byte{0x0a, 0x00, 0x00, 0x07})
	o := opts(f, loaders.ModeStrictThenSalvage)
	f.Fuzz(func(t *testing.T, b []byte) {
		res := Load(b, o)
		if res.Valid && len(res.Errors) > 0 {
			t.Fatalf("valid result carries errors")
		}
	})
}
