package voxel

import (
	"fmt"
	"sort"
)

type DuplicateStrategy int

const (
	LastWriteWins DuplicateStrategy = iota
	FirstWriteWins
)

func (s DuplicateStrategy) String() string {
	if s == FirstWriteWins {
		return "first-write-wins"
	}
	return "last-write-wins"
}

type coord struct{ x, y, z int }

// ResolveDuplicates keeps one voxel per coordinate. Output order follows the
// first appearance of each coordinate.
func ResolveDuplicates(voxels []Voxel, strategy DuplicateStrategy) ([]Voxel, int) {
	if len(voxels) == 0 {
		return nil, 0
	}
	index := make(map[coord]int, len(voxels))
	out := make([]Voxel, 0, len(voxels))
	dups := 0
	for _, v := range voxels {
		c := coord{v.X, v.Y, v.Z}
		if i, ok := index[c]; ok {
			dups++
			if strategy == LastWriteWins {
				out[i] = v
			}
			continue
		}
		index[c] = len(out)
		out = append(out, v)
	}
	return out, dups
}

// Less orders voxels z-major, then y, then x, then block key.
func Less(a, b Voxel) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	if a.X != b.X {
		return a.X < b.X
	}
	return a.BlockKey < b.BlockKey
}

func SortCanonical(voxels []Voxel) {
	sort.Slice(voxels, func(i, j int) bool { return Less(voxels[i], voxels[j]) })
}

// Normalize returns a copy translated so the minimum corner sits at the
// origin, plus the offset that was subtracted.
func Normalize(voxels []Voxel) ([]Voxel, Offset) {
	b := ComputeBounds(voxels)
	off := Offset{X: b.MinX, Y: b.MinY, Z: b.MinZ}
	out := make([]Voxel, len(voxels))
	for i, v := range voxels {
		out[i] = Voxel{X: v.X - off.X, Y: v.Y - off.Y, Z: v.Z - off.Z, BlockKey: v.BlockKey}
	}
	return out, off
}

// Canonicalize deduplicates, normalizes and orders voxels. The input slice
// is not modified.
func Canonicalize(voxels []Voxel, meta Metadata, strategy DuplicateStrategy) (CanonicalObject, error) {
	if err := checkCoordinates(voxels); err != nil {
		return CanonicalObject{}, err
	}
	deduped, _ := ResolveDuplicates(voxels, strategy)
	original := ComputeBounds(deduped)
	normalized, off := Normalize(deduped)
	if err := checkCoordinates(normalized); err != nil {
		return CanonicalObject{}, err
	}
	SortCanonical(normalized)
	nb := ComputeBounds(normalized)

	if len(normalized) > 0 && (nb.MinX != 0 || nb.MinY != 0 || nb.MinZ != 0) {
		return CanonicalObject{}, fmt.Errorf("%w: normalized min is (%d,%d,%d)", ErrInvariant, nb.MinX, nb.MinY, nb.MinZ)
	}

	meta.OriginalOffset = &off
	if normalized == nil {
		normalized = []Voxel{}
	}
	return CanonicalObject{
		Voxels:           normalized,
		BoundsOriginal:   original,
		BoundsNormalized: nb,
		Metadata:         meta,
	}, nil
}
