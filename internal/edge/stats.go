package edge

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes an edge map for logs and metrics
type Stats struct {
	Width      int
	Height     int
	EdgePixels int
	// Density is the fraction of pixels marked as edges, in [0, 1]
	Density float64
	// RowSpread is the standard deviation of per-row densities
	RowSpread float64
}

// Summarize computes edge statistics over a binary edge map
func Summarize(edges *image.Gray) Stats {
	bounds := edges.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	s := Stats{Width: width, Height: height}
	if width == 0 || height == 0 {
		return s
	}

	rowDensity := make([]float64, height)
	for y := 0; y < height; y++ {
		off := edges.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		row := edges.Pix[off : off+width]
		count := 0
		for _, v := range row {
			if v != edgeOff {
				count++
			}
		}
		s.EdgePixels += count
		rowDensity[y] = float64(count) / float64(width)
	}

	// Rows are equally wide, so the mean of row densities is the image density
	s.Density, s.RowSpread = stat.MeanStdDev(rowDensity, nil)
	if height == 1 {
		s.RowSpread = 0
	}
	return s
}
