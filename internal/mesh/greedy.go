// Package mesh turns canonical voxel sets into merged rectangular faces.
package mesh

import (
	"sort"
	"strings"

	"voxelindex.ai/internal/voxel"
)

// Version tags mesh artifacts; bump it whenever Greedy output changes.
const Version = "mesh_v1"

// Quad is one merged face. (X, Y, Z) is the minimum corner; W spans the
// axis after Axis and H the one after that, both modulo 3.
type Quad struct {
	Axis        int    `json:"axis" cbor:"axis"`
	Dir         int    `json:"dir" cbor:"dir"`
	X           int    `json:"x" cbor:"x"`
	Y           int    `json:"y" cbor:"y"`
	Z           int    `json:"z" cbor:"z"`
	W           int    `json:"w" cbor:"w"`
	H           int    `json:"h" cbor:"h"`
	BlockKey    string `json:"blockKey" cbor:"blockKey"`
	Transparent bool   `json:"transparent" cbor:"transparent"`
}

// Mesh is the cached artifact for one canonical object.
type Mesh struct {
	SHA256 string `json:"sha256" cbor:"sha256"`
	Quads  []Quad `json:"quads" cbor:"quads"`
}

var transparentMarkers = []string{"glass", "water", "leaves", "ice"}

func IsTransparent(key string) bool {
	k := strings.ToLower(key)
	for _, m := range transparentMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

type cell struct {
	key         string
	dir         int
	transparent bool
}

// plane holds the exposed faces of one slice: faces between layer slice and
// slice+1 along axis, keyed by their (u, v) position.
type plane struct {
	axis, slice int
	faces       map[[2]int]cell
}

// Greedy merges exposed faces into rectangles, first along u and then along
// v. Where two different blocks touch only the face of the lower-coordinate
// block is emitted. Work and memory grow with the number of voxels, not with
// the bounding box, so far-apart voxels cost no more than adjacent ones.
func Greedy(obj voxel.CanonicalObject) []Quad {
	occupied := make(map[[3]int]string, len(obj.Voxels))
	for _, v := range obj.Voxels {
		occupied[[3]int{v.X, v.Y, v.Z}] = v.BlockKey
	}

	planes := map[[2]int]*plane{}
	addFace := func(d, slice int, at [3]int, c cell) {
		pk := [2]int{d, slice}
		pl := planes[pk]
		if pl == nil {
			pl = &plane{axis: d, slice: slice, faces: map[[2]int]cell{}}
			planes[pk] = pl
		}
		pl.faces[[2]int{at[(d+1)%3], at[(d+2)%3]}] = c
	}
	for _, vx := range obj.Voxels {
		p := [3]int{vx.X, vx.Y, vx.Z}
		transparent := IsTransparent(vx.BlockKey)
		for d := 0; d < 3; d++ {
			next, prev := p, p
			next[d]++
			prev[d]--
			if k, ok := occupied[next]; !ok || k != vx.BlockKey {
				addFace(d, p[d], p, cell{key: vx.BlockKey, dir: 1, transparent: transparent})
			}
			if _, ok := occupied[prev]; !ok {
				addFace(d, p[d]-1, p, cell{key: vx.BlockKey, dir: -1, transparent: transparent})
			}
		}
	}

	quads := []Quad{}
	for _, pl := range planes {
		quads = pl.merge(quads)
	}
	sort.Slice(quads, func(i, j int) bool { return less(quads[i], quads[j]) })
	return quads
}

// merge visits faces in row order (v, then u) and grows each unconsumed face
// into the widest, then tallest, rectangle of matching faces.
func (pl *plane) merge(quads []Quad) []Quad {
	order := make([][2]int, 0, len(pl.faces))
	for at := range pl.faces {
		order = append(order, at)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i][1] != order[j][1] {
			return order[i][1] < order[j][1]
		}
		return order[i][0] < order[j][0]
	})

	matches := func(u, v int, c cell) bool {
		o, ok := pl.faces[[2]int{u, v}]
		return ok && o == c
	}
	d := pl.axis
	u, v := (d+1)%3, (d+2)%3
	for _, at := range order {
		c, ok := pl.faces[at]
		if !ok {
			continue
		}
		i, j := at[0], at[1]
		w := 1
		for matches(i+w, j, c) {
			w++
		}
		h := 1
	grow:
		for ; ; h++ {
			for k := 0; k < w; k++ {
				if !matches(i+k, j+h, c) {
					break grow
				}
			}
		}
		for l := 0; l < h; l++ {
			for k := 0; k < w; k++ {
				delete(pl.faces, [2]int{i + k, j + l})
			}
		}

		var origin [3]int
		origin[u], origin[v] = i, j
		origin[d] = pl.slice
		if c.dir == 1 {
			origin[d]++
		}
		quads = append(quads, Quad{
			Axis: d, Dir: c.dir,
			X: origin[0], Y: origin[1], Z: origin[2],
			W: w, H: h,
			BlockKey: c.key, Transparent: c.transparent,
		})
	}
	return quads
}

func less(a, b Quad) bool {
	switch {
	case a.Axis != b.Axis:
		return a.Axis < b.Axis
	case a.Dir != b.Dir:
		return a.Dir < b.Dir
	case a.Z != b.Z:
		return a.Z < b.Z
	case a.Y != b.Y:
		return a.Y < b.Y
	case a.X != b.X:
		return a.X < b.X
	}
	return a.BlockKey < b.BlockKey
}

type Stats struct {
	Quads       int `json:"quad_count"`
	Transparent int `json:"transparent_quads"`
	FaceArea    int `json:"face_area"`
}

func Summarize(quads []Quad) Stats {
	var s Stats
	for _, q := range quads {
		s.Quads++
		s.FaceArea += q.W * q.H
		if q.Transparent {
			s.Transparent++
		}
	}
	return s
}
