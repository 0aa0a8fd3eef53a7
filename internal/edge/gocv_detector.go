//go:build gocv

package edge

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// gocvDetector delegates to OpenCV's Canny. Build with -tags gocv and an
// OpenCV 4 installation.
type gocvDetector struct{}

func init() {
	RegisterEngine("gocv", func(int) (Detector, error) {
		return &gocvDetector{}, nil
	})
}

func (d *gocvDetector) Name() string {
	return "gocv"
}

func (d *gocvDetector) Close() error {
	return nil
}

func (d *gocvDetector) Detect(ctx context.Context, img image.Image, opts Options) (*image.Gray, error) {
	gray := smooth(ToGray(img), opts.BlurRadius)

	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("gray image to mat: %w", err)
	}
	defer src.Close()

	edges := gocv.NewMat()
	defer edges.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	low, high := opts.ordered()
	gocv.CannyWithParams(src, &edges, float32(low), float32(high), 3, opts.L2Gradient)

	out, err := edges.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	result, ok := out.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected edge image type %T", out)
	}
	return result, nil
}
