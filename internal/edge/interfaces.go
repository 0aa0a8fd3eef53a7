package edge

import (
	"context"
	"image"
)

// Detector turns a color image into a binary edge map
type Detector interface {
	// Detect returns a single-channel image of the input's size where edge
	// pixels are 255 and everything else is 0.
	Detect(ctx context.Context, img image.Image, opts Options) (*image.Gray, error)

	// Name identifies the engine in logs and metrics
	Name() string

	// Lifecycle management
	Close() error
}
