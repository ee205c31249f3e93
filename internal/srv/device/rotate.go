package device

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// toPortrait turns a landscape frame a quarter turn so it fits a panel
// mounted in portrait: landscape (x, y) lands on portrait (y, width-1-x).
func toPortrait(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	s2d := f64.Aff3{
		0, 1, -float64(b.Min.Y),
		-1, 0, float64(b.Max.X),
	}
	draw.NearestNeighbor.Transform(dst, s2d, img, b, draw.Src, nil)
	return dst
}

// scaleTo fits a frame into the panel bounds.
func scaleTo(img image.Image, bounds image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(bounds)
	draw.BiLinear.Scale(dst, bounds, img, img.Bounds(), draw.Src, nil)
	return dst
}
