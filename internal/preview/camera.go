package preview

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// camera is a right-handed look-at camera looking down its local -Z axis.
type camera struct {
	eye     v3.Vec
	right   v3.Vec
	up      v3.Vec
	back    v3.Vec
	tanHalf float64
	aspect  float64
}

// orbit places the camera on a sphere around center. Yaw turns around +Y,
// pitch lifts towards +Y; both are in degrees.
func orbit(center v3.Vec, radius, yawDeg, pitchDeg, fovDeg, aspect float64) camera {
	yaw := yawDeg * math.Pi / 180
	pitch := pitchDeg * math.Pi / 180
	dir := v3.Vec{
		X: math.Cos(pitch) * math.Cos(yaw),
		Y: math.Sin(pitch),
		Z: math.Cos(pitch) * math.Sin(yaw),
	}.Normalize()
	eye := center.Add(dir.MulScalar(radius))

	worldUp := v3.Vec{Y: 1}
	if math.Abs(dir.Dot(worldUp)) > 0.9999 {
		worldUp = v3.Vec{Z: -1}
	}
	back := dir
	right := worldUp.Cross(back).Normalize()
	up := back.Cross(right)
	return camera{
		eye:     eye,
		right:   right,
		up:      up,
		back:    back,
		tanHalf: math.Tan(fovDeg * math.Pi / 360),
		aspect:  aspect,
	}
}

// view maps a world point into camera space. Points in front of the camera
// have negative Z.
func (c camera) view(p v3.Vec) v3.Vec {
	rel := p.Sub(c.eye)
	return v3.Vec{X: rel.Dot(c.right), Y: rel.Dot(c.up), Z: rel.Dot(c.back)}
}

// project returns normalized device coordinates in [-1, 1] for visible
// points.
func (c camera) project(cam v3.Vec) (x, y float64) {
	depth := -cam.Z
	if depth < 1e-6 {
		depth = 1e-6
	}
	return cam.X / (depth * c.tanHalf * c.aspect), cam.Y / (depth * c.tanHalf)
}

// toScreen converts NDC to pixel coordinates with Y pointing down.
func toScreen(x, y float64, w, h int) (float32, float32) {
	sx := (x*0.5 + 0.5) * float64(w-1)
	sy := (1 - (y*0.5 + 0.5)) * float64(h-1)
	return float32(sx), float32(sy)
}
