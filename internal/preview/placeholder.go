package preview

import (
	"image"
	"image/color"
	"image/draw"
)

var (
	placeholderFill  = color.RGBA{R: 120, G: 16, B: 24, A: 255}
	placeholderCross = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Placeholder draws the stand-in preview for files that produced no
// canonical object: a dark red tile with a white cross and a stripe whose
// colour is derived from the error code.
func Placeholder(code string, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(placeholderFill), image.Point{}, draw.Src)
	if size <= 0 {
		return img
	}

	margin := size / 5
	for i := margin; i < size-margin; i++ {
		img.SetRGBA(i, i, placeholderCross)
		img.SetRGBA(i, size-i-1, placeholderCross)
	}

	h := hash32(code)
	stripe := color.RGBA{R: uint8(h >> 16), G: uint8(h >> 8), B: uint8(h), A: 255}
	y := size * 86 / 100
	for x := 0; x < size; x++ {
		img.SetRGBA(x, y, stripe)
	}
	return img
}

func PlaceholderPNG(code string, size int) ([]byte, error) {
	return EncodePNG(Placeholder(code, size))
}
