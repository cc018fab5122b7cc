package voxel

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func sample() []Voxel {
	return []Voxel{
		{X: 5, Y: 2, Z: -1, BlockKey: "minecraft:stone"},
		{X: 3, Y: 2, Z: -1, BlockKey: "minecraft:dirt"},
		{X: 4, Y: 3, Z: 0, BlockKey: "minecraft:oak_planks"},
		{X: 3, Y: 4, Z: 2, BlockKey: "minecraft:glass"},
	}
}

func TestCanonicalize_PermutationInvariant(t *testing.T) {
	base := sample()
	want, err := Canonicalize(base, Metadata{Author: text("a")}, LastWriteWins)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	wantHash := Hash(want).SHA256

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		perm := make([]Voxel, len(base))
		for j, k := range rng.Perm(len(base)) {
			perm[j] = base[k]
		}
		got, err := Canonicalize(perm, Metadata{Author: text("a")}, LastWriteWins)
		if err != nil {
			t.Fatalf("Canonicalize perm: %v", err)
		}
		if len(got.Voxels) != len(want.Voxels) {
			t.Fatalf("len mismatch: %d vs %d", len(got.Voxels), len(want.Voxels))
		}
		for j := range want.Voxels {
			if got.Voxels[j] != want.Voxels[j] {
				t.Fatalf("voxel %d mismatch: %+v vs %+v", j, got.Voxels[j], want.Voxels[j])
			}
		}
		if h := Hash(got).SHA256; h != wantHash {
			t.Fatalf("hash mismatch on permutation %d: %s vs %s", i, h, wantHash)
		}
	}
}

func TestCanonicalize_NormalizedMinIsOrigin(t *testing.T) {
	obj, err := Canonicalize(sample(), Metadata{}, LastWriteWins)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	b := obj.BoundsNormalized
	if b.MinX != 0 || b.MinY != 0 || b.MinZ != 0 {
		t.Fatalf("normalized min = (%d,%d,%d)", b.MinX, b.MinY, b.MinZ)
	}
	if b.DX != 3 || b.DY != 3 || b.DZ != 4 {
		t.Fatalf("extents = %d,%d,%d", b.DX, b.DY, b.DZ)
	}
	off := obj.Metadata.OriginalOffset
	if off == nil || *off != (Offset{X: 3, Y: 2, Z: -1}) {
		t.Fatalf("offset = %+v", off)
	}
	if obj.BoundsOriginal.MinZ != -1 || obj.BoundsOriginal.MaxX != 5 {
		t.Fatalf("original bounds = %+v", obj.BoundsOriginal)
	}
	for i := 1; i < len(obj.Voxels); i++ {
		if Less(obj.Voxels[i], obj.Voxels[i-1]) {
			t.Fatalf("voxels not sorted at %d", i)
		}
	}
}

func TestCanonicalize_Empty(t *testing.T) {
	obj, err := Canonicalize(nil, Metadata{}, LastWriteWins)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if len(obj.Voxels) != 0 {
		t.Fatalf("expected no voxels")
	}
	if obj.BoundsNormalized != EmptyBounds() || !obj.BoundsNormalized.Empty() {
		t.Fatalf("bounds = %+v", obj.BoundsNormalized)
	}
	if obj.BoundsNormalized.MaxX != -1 {
		t.Fatalf("empty max should be -1")
	}
}

func TestResolveDuplicates_Strategies(t *testing.T) {
	in := []Voxel{
		{X: 1, Y: 1, Z: 1, BlockKey: "first"},
		{X: 2, Y: 1, Z: 1, BlockKey: "other"},
		{X: 1, Y: 1, Z: 1, BlockKey: "second"},
		{X: 1, Y: 1, Z: 1, BlockKey: "third"},
	}
	last, n := ResolveDuplicates(in, LastWriteWins)
	if n != 2 || len(last) != 2 || last[0].BlockKey != "third" {
		t.Fatalf("last-write-wins: n=%d out=%+v", n, last)
	}
	first, n := ResolveDuplicates(in, FirstWriteWins)
	if n != 2 || len(first) != 2 || first[0].BlockKey != "first" {
		t.Fatalf("first-write-wins: n=%d out=%+v", n, first)
	}
	if in[0].BlockKey != "first" {
		t.Fatalf("input mutated")
	}
}

func TestCanonicalize_CoordinateRange(t *testing.T) {
	in := []Voxel{
		{X: math.MinInt32, BlockKey: "a"},
		{X: math.MaxInt32, BlockKey: "b"},
	}
	_, err := Canonicalize(in, Metadata{}, LastWriteWins)
	if !errors.Is(err, ErrCoordinateRange) {
		t.Fatalf("expected ErrCoordinateRange, got %v", err)
	}
}

func TestFromFloat(t *testing.T) {
	v, err := FromFloat(1, -2, 3, "k")
	if err != nil || v != (Voxel{X: 1, Y: -2, Z: 3, BlockKey: "k"}) {
		t.Fatalf("FromFloat: %+v %v", v, err)
	}
	if _, err := FromFloat(1.5, 0, 0, "k"); !errors.Is(err, ErrNonInteger) {
		t.Fatalf("expected ErrNonInteger, got %v", err)
	}
	if _, err := FromFloat(math.NaN(), 0, 0, "k"); !errors.Is(err, ErrNonInteger) {
		t.Fatalf("expected ErrNonInteger for NaN, got %v", err)
	}
	if _, err := FromFloat(1e12, 0, 0, "k"); !errors.Is(err, ErrCoordinateRange) {
		t.Fatalf("expected ErrCoordinateRange, got %v", err)
	}
}

func TestUniqueBlocks(t *testing.T) {
	obj, _ := Canonicalize(append(sample(), Voxel{X: 9, BlockKey: "minecraft:stone"}), Metadata{}, LastWriteWins)
	if got := obj.UniqueBlocks(); got != 4 {
		t.Fatalf("UniqueBlocks = %d", got)
	}
}
