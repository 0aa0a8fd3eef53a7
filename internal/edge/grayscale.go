package edge

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// ToGray converts img to 8-bit luminance using BT.601 weights
// (0.299 R + 0.587 G + 0.114 B). Alpha is ignored. The result starts at (0,0).
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}

	// imaging.Grayscale writes the luminance into all three channels
	nrgba := imaging.Grayscale(img)
	bounds := nrgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return gray
}

// smooth applies a Gaussian blur of the given radius to a gray image
func smooth(gray *image.Gray, radius float64) *image.Gray {
	if radius <= 0 {
		return gray
	}

	blurred := blur.Gaussian(gray, radius)
	bounds := blurred.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		src := blurred.Pix[y*blurred.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < bounds.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return out
}
