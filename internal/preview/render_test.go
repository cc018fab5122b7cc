package preview

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"voxelindex.ai/internal/mesh"
	"voxelindex.ai/internal/voxel"
)

func sample(t *testing.T) voxel.CanonicalObject {
	t.Helper()
	var vs []voxel.Voxel
	for x := 0; x < 3; x++ {
		for z := 0; z < 3; z++ {
			vs = append(vs, voxel.Voxel{X: x, Y: 0, Z: z, BlockKey: "minecraft:stone"})
		}
	}
	vs = append(vs,
		voxel.Voxel{X: 1, Y: 1, Z: 1, BlockKey: "minecraft:glass"},
		voxel.Voxel{X: 1, Y: 2, Z: 1, BlockKey: "unknown:namespaced:mod:thing"},
	)
	obj, err := voxel.Canonicalize(vs, voxel.Metadata{}, voxel.LastWriteWins)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	return obj
}

func TestRender_Deterministic(t *testing.T) {
	obj := sample(t)
	quads := mesh.Greedy(obj)
	opts := DefaultOptions()
	opts.Size = 64

	a, err := RenderPNG(obj.BoundsNormalized, quads, opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := RenderPNG(obj.BoundsNormalized, mesh.Greedy(obj), opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("renders differ")
	}

	img, err := png.Decode(bytes.NewReader(a))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := img.Bounds().Dx(); got != 64 || img.Bounds().Dy() != 64 {
		t.Fatalf("size = %v", img.Bounds())
	}
	// The object sits in the middle of the frame.
	if c := color.RGBAModel.Convert(img.At(32, 32)).(color.RGBA); c == background {
		t.Fatalf("centre pixel is background")
	}
	if c := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA); c != background {
		t.Fatalf("corner pixel = %v, want background", c)
	}
}

func TestRender_ViewsDiffer(t *testing.T) {
	obj := sample(t)
	quads := mesh.Greedy(obj)
	opts := DefaultOptions()
	opts.Size = 48
	seen := map[string]string{}
	for _, v := range Projections {
		b, err := RenderPNG(obj.BoundsNormalized, quads, opts.WithView(v))
		if err != nil {
			t.Fatalf("%s: %v", v.Name, err)
		}
		if prev, dup := seen[string(b)]; dup {
			t.Fatalf("%s renders identically to %s", v.Name, prev)
		}
		seen[string(b)] = v.Name
	}
}

func TestRender_EmptyIsBackground(t *testing.T) {
	img := Render(voxel.EmptyBounds(), nil, Options{Size: 16, FovDeg: 35})
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if img.RGBAAt(x, y) != background {
				t.Fatalf("pixel %d,%d = %v", x, y, img.RGBAAt(x, y))
			}
		}
	}
}

func TestPlaceholder(t *testing.T) {
	a := Placeholder("SCHEM_NBT_TRUNCATED", 32)
	b := Placeholder("SCHEM_NBT_TRUNCATED", 32)
	c := Placeholder("FORMAT_UNKNOWN", 32)
	y := 32 * 86 / 100
	if a.RGBAAt(3, y) != b.RGBAAt(3, y) {
		t.Fatalf("placeholder not deterministic")
	}
	if a.RGBAAt(3, y) == c.RGBAAt(3, y) {
		t.Fatalf("different codes should produce different stripes")
	}
	if a.RGBAAt(10, 10) != placeholderCross || a.RGBAAt(0, 0) != placeholderFill {
		t.Fatalf("cross/fill pixels wrong")
	}
	if _, err := PlaceholderPNG("X", 16); err != nil {
		t.Fatalf("png: %v", err)
	}
}

func TestOptions(t *testing.T) {
	o := DefaultOptions()
	if err := o.Validate(); err != nil {
		t.Fatalf("default options invalid: %v", err)
	}
	if got := o.Key(); got != "size=256,yaw=45,pitch=35.26438968,fov=35" {
		t.Fatalf("key = %q", got)
	}
	o.Size = 2
	if err := o.Validate(); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestBlockColor(t *testing.T) {
	if c := BlockColor("unknown:legacy:1:20"); c != (color.RGBA{R: 210, G: 80, B: 160, A: 255}) {
		t.Fatalf("unknown colour = %v", c)
	}
	c := BlockColor("minecraft:stone")
	if c != BlockColor("minecraft:stone") || c.R < 48 || c.R > 48+0x7f {
		t.Fatalf("colour = %v", c)
	}
}
