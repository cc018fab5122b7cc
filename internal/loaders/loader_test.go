package loaders

import (
	"errors"
	"testing"

	"voxelindex.ai/internal/diag"
	"voxelindex.ai/internal/voxel"
)

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"strict":              ModeStrict,
		" Salvage ":           ModeSalvage,
		"strict+salvage":      ModeStrictThenSalvage,
		"strict-then-salvage": ModeStrictThenSalvage,
		"":                    ModeStrictThenSalvage,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseMode("lenient"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRun_StrictThenSalvage(t *testing.T) {
	salvageCalls := 0
	strict := func() Result {
		return Result{ModeUsed: UsedStrict, Errors: []diag.Diagnostic{diag.Errorf("X_BAD", "bad")}}
	}
	salvage := func() Result {
		salvageCalls++
		return Result{ModeUsed: UsedSalvage, Valid: true, Warnings: []diag.Diagnostic{diag.Warnf("X_SKIP", "skip")}}
	}
	res := Run(ModeStrictThenSalvage, strict, salvage)
	if salvageCalls != 1 || res.ModeUsed != UsedSalvage || !res.Valid {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Warnings) != 2 || res.Warnings[0].Code != "STRICT_FALLBACK_X_BAD" || res.Warnings[1].Code != "X_SKIP" {
		t.Fatalf("warnings = %+v", res.Warnings)
	}

	ok := func() Result { return Result{ModeUsed: UsedStrict, Valid: true} }
	salvageCalls = 0
	if res := Run(ModeStrictThenSalvage, ok, salvage); res.ModeUsed != UsedStrict || salvageCalls != 0 {
		t.Fatalf("valid strict result should short-circuit")
	}
	if res := Run(ModeStrict, strict, salvage); res.Valid || salvageCalls != 0 {
		t.Fatalf("strict mode must not salvage")
	}
}

func TestFinalize(t *testing.T) {
	var res Result
	meta := MetadataFrom(map[string]string{"author": "a", "description": ""}, "obj.bo2")
	Finalize(&res, []voxel.Voxel{{X: 2, Y: 2, Z: 2, BlockKey: "k"}}, meta, "FAIL")
	if !res.Valid || res.Canonical == nil || *res.Canonical.Metadata.Author != "a" {
		t.Fatalf("finalize: %+v", res)
	}
	// A key present with an empty value stays present.
	if d := res.Canonical.Metadata.Description; d == nil || *d != "" {
		t.Fatalf("description = %v", d)
	}
	if MetadataFrom(map[string]string{}, "x").Author != nil {
		t.Fatalf("missing author should stay nil")
	}

	var empty Result
	Finalize(&empty, nil, voxel.Metadata{}, "FAIL")
	if empty.Valid || empty.Canonical != nil {
		t.Fatalf("no voxels must be invalid")
	}
	if len(empty.Errors) != 1 || empty.Errors[0].Code != diag.CodeNoVoxels {
		t.Fatalf("errors = %+v", empty.Errors)
	}

	var far Result
	Finalize(&far, []voxel.Voxel{{X: -1 << 31}, {X: 1<<31 - 1}}, voxel.Metadata{}, "FAIL")
	if far.Valid || len(far.Errors) != 1 || far.Errors[0].Code != "FAIL" {
		t.Fatalf("range failure: %+v", far)
	}
	if far.Invariant != nil || errors.Is(far.Invariant, voxel.ErrInvariant) {
		t.Fatalf("range failure is not an invariant violation")
	}
}
