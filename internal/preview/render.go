// Package preview rasterizes greedy meshes into small square thumbnails.
// Output depends only on the mesh and Options, so previews can be cached by
// key.
package preview

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sort"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/image/vector"

	"voxelindex.ai/internal/mesh"
	"voxelindex.ai/internal/voxel"
)

// Version tags preview artifacts; bump it whenever rendering output changes.
const Version = "render_v1"

var background = color.RGBA{R: 238, G: 241, B: 246, A: 255}

const (
	transparentAlpha = 180
	unknownPrefix    = "unknown:"
)

type Options struct {
	Size     int     `yaml:"size"`
	YawDeg   float64 `yaml:"yaw_deg"`
	PitchDeg float64 `yaml:"pitch_deg"`
	FovDeg   float64 `yaml:"fov_deg"`
}

// DefaultOptions is an isometric-ish three quarter view.
func DefaultOptions() Options {
	return Options{Size: 256, YawDeg: 45, PitchDeg: 35.26438968, FovDeg: 35}
}

func (o Options) Validate() error {
	if o.Size < 8 || o.Size > 4096 {
		return fmt.Errorf("preview size must be in [8, 4096], got %d", o.Size)
	}
	if o.FovDeg <= 0 || o.FovDeg >= 180 {
		return fmt.Errorf("preview fov must be in (0, 180), got %v", o.FovDeg)
	}
	return nil
}

// Key is the canonical text form used in cache keys.
func (o Options) Key() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return "size=" + strconv.Itoa(o.Size) + ",yaw=" + f(o.YawDeg) + ",pitch=" + f(o.PitchDeg) + ",fov=" + f(o.FovDeg)
}

// View is a named camera angle.
type View struct {
	Name     string
	YawDeg   float64
	PitchDeg float64
}

// Projections are the axis-aligned debug views.
var Projections = []View{
	{Name: "front", YawDeg: 0, PitchDeg: 0},
	{Name: "top", YawDeg: 0, PitchDeg: 89},
	{Name: "side", YawDeg: 90, PitchDeg: 0},
}

// WithView returns o looking from v.
func (o Options) WithView(v View) Options {
	o.YawDeg, o.PitchDeg = v.YawDeg, v.PitchDeg
	return o
}

type rgb struct{ r, g, b uint8 }

func hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// BlockColor derives a stable base colour from a block key. Unresolved
// blocks are always magenta.
func BlockColor(key string) color.RGBA {
	if strings.HasPrefix(key, unknownPrefix) {
		return color.RGBA{R: 210, G: 80, B: 160, A: 255}
	}
	h := hash32(key)
	return color.RGBA{
		R: uint8(48 + (h>>16)&0x7f),
		G: uint8(48 + (h>>8)&0x7f),
		B: uint8(48 + h&0x7f),
		A: 255,
	}
}

func shade(c color.RGBA, factor float64) rgb {
	ch := func(v uint8) uint8 {
		return uint8(math.Max(0, math.Min(255, math.Round(float64(v)*factor))))
	}
	return rgb{ch(c.R), ch(c.G), ch(c.B)}
}

// Top faces are lit brightest, X faces slightly dimmed, Z faces darkest.
var axisLight = [3]float64{0.92, 1.12, 0.82}

type face struct {
	pts         [4][2]float32
	depth       float64
	fill        rgb
	transparent bool
}

func corners(q mesh.Quad) [4]v3.Vec {
	var du, dv [3]float64
	du[(q.Axis+1)%3] = float64(q.W)
	dv[(q.Axis+2)%3] = float64(q.H)
	p := v3.Vec{X: float64(q.X), Y: float64(q.Y), Z: float64(q.Z)}
	u := v3.Vec{X: du[0], Y: du[1], Z: du[2]}
	v := v3.Vec{X: dv[0], Y: dv[1], Z: dv[2]}
	a, b, c, d := p, p.Add(u), p.Add(u).Add(v), p.Add(v)
	if q.Dir == 1 {
		return [4]v3.Vec{a, b, c, d}
	}
	return [4]v3.Vec{a, d, c, b}
}

// Render draws quads with a painter's algorithm: faces are sorted far to
// near by mean camera-space depth and filled in that order.
func Render(bounds voxel.Bounds, quads []mesh.Quad, opts Options) *image.RGBA {
	size := opts.Size
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	if len(quads) == 0 {
		return img
	}

	dims := bounds.Dims()
	center := v3.Vec{X: float64(dims[0]) / 2, Y: float64(dims[1]) / 2, Z: float64(dims[2]) / 2}
	maxDim := float64(max(dims[0], dims[1], dims[2]))
	cam := orbit(center, maxDim*2.8+6, opts.YawDeg, opts.PitchDeg, opts.FovDeg, 1)

	faces := make([]face, 0, len(quads))
	for _, q := range quads {
		var f face
		var depth float64
		for i, p := range corners(q) {
			c := cam.view(p)
			depth += c.Z
			x, y := cam.project(c)
			f.pts[i][0], f.pts[i][1] = toScreen(x, y, size, size)
		}
		f.depth = depth / 4
		f.fill = shade(BlockColor(q.BlockKey), axisLight[q.Axis])
		f.transparent = q.Transparent
		faces = append(faces, f)
	}
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].depth < faces[j].depth })

	r := vector.NewRasterizer(size, size)
	for _, f := range faces {
		alpha := uint8(255)
		if f.transparent {
			alpha = transparentAlpha
		}
		src := image.NewUniform(color.NRGBA{R: f.fill.r, G: f.fill.g, B: f.fill.b, A: alpha})
		r.Reset(size, size)
		r.DrawOp = draw.Over
		r.MoveTo(f.pts[0][0], f.pts[0][1])
		for _, p := range f.pts[1:] {
			r.LineTo(p[0], p[1])
		}
		r.ClosePath()
		r.Draw(img, img.Bounds(), src, image.Point{})
	}
	return img
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func RenderPNG(bounds voxel.Bounds, quads []mesh.Quad, opts Options) ([]byte, error) {
	return EncodePNG(Render(bounds, quads, opts))
}
