package voxel

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvariant marks an internal bug: canonicalization produced a result
	// that breaks its own guarantees.
	ErrInvariant = errors.New("canonical invariant violated")
	// ErrNonInteger is returned for coordinates that are not whole numbers.
	ErrNonInteger = errors.New("non-integer voxel coordinate")
	// ErrCoordinateRange is returned for coordinates outside the signed
	// 32-bit range the hash encoding can represent.
	ErrCoordinateRange = errors.New("voxel coordinate out of int32 range")
)

type Voxel struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	BlockKey string `json:"blockKey"`
}

type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Metadata is the descriptive part of a canonical object. A nil author or
// description is absent; an empty one is present and hashed. An empty source
// path and a nil offset count as absent.
type Metadata struct {
	Author         *string `json:"author,omitempty"`
	Description    *string `json:"description,omitempty"`
	SourcePath     string  `json:"sourcePath,omitempty"`
	OriginalOffset *Offset `json:"originalOffset,omitempty"`
}

type CanonicalObject struct {
	Voxels           []Voxel  `json:"voxels"`
	BoundsOriginal   Bounds   `json:"boundsOriginal"`
	BoundsNormalized Bounds   `json:"boundsNormalized"`
	Metadata         Metadata `json:"metadata"`
}

// UniqueBlocks counts distinct block keys.
func (o *CanonicalObject) UniqueBlocks() int {
	seen := make(map[string]struct{}, 16)
	for _, v := range o.Voxels {
		seen[v.BlockKey] = struct{}{}
	}
	return len(seen)
}

// FromFloat builds a voxel from loosely typed numeric coordinates, rejecting
// anything that is not a whole number.
func FromFloat(x, y, z float64, key string) (Voxel, error) {
	for _, c := range [3]float64{x, y, z} {
		if math.IsNaN(c) || math.IsInf(c, 0) || c != math.Trunc(c) {
			return Voxel{}, fmt.Errorf("%w: (%v,%v,%v)", ErrNonInteger, x, y, z)
		}
		if c < math.MinInt32 || c > math.MaxInt32 {
			return Voxel{}, fmt.Errorf("%w: (%v,%v,%v)", ErrCoordinateRange, x, y, z)
		}
	}
	return Voxel{X: int(x), Y: int(y), Z: int(z), BlockKey: key}, nil
}

func checkCoordinates(voxels []Voxel) error {
	for _, v := range voxels {
		if !fitsInt32(v.X) || !fitsInt32(v.Y) || !fitsInt32(v.Z) {
			return fmt.Errorf("%w: (%d,%d,%d)", ErrCoordinateRange, v.X, v.Y, v.Z)
		}
	}
	return nil
}

func fitsInt32(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}
