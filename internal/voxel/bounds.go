package voxel

// Bounds is an inclusive axis-aligned box. The empty box has min 0, max -1
// and zero extents.
type Bounds struct {
	MinX int `json:"minX"`
	MinY int `json:"minY"`
	MinZ int `json:"minZ"`
	MaxX int `json:"maxX"`
	MaxY int `json:"maxY"`
	MaxZ int `json:"maxZ"`
	DX   int `json:"dx"`
	DY   int `json:"dy"`
	DZ   int `json:"dz"`
}

func EmptyBounds() Bounds {
	return Bounds{MaxX: -1, MaxY: -1, MaxZ: -1}
}

func (b Bounds) Empty() bool { return b.DX == 0 || b.DY == 0 || b.DZ == 0 }

func (b Bounds) Dims() [3]int { return [3]int{b.DX, b.DY, b.DZ} }

func ComputeBounds(voxels []Voxel) Bounds {
	if len(voxels) == 0 {
		return EmptyBounds()
	}
	b := Bounds{
		MinX: voxels[0].X, MinY: voxels[0].Y, MinZ: voxels[0].Z,
		MaxX: voxels[0].X, MaxY: voxels[0].Y, MaxZ: voxels[0].Z,
	}
	for _, v := range voxels[1:] {
		b.MinX = min(b.MinX, v.X)
		b.MinY = min(b.MinY, v.Y)
		b.MinZ = min(b.MinZ, v.Z)
		b.MaxX = max(b.MaxX, v.X)
		b.MaxY = max(b.MaxY, v.Y)
		b.MaxZ = max(b.MaxZ, v.Z)
	}
	b.DX = b.MaxX - b.MinX + 1
	b.DY = b.MaxY - b.MinY + 1
	b.DZ = b.MaxZ - b.MinZ + 1
	return b
}
