package validation

import (
	"bytes"
	"fmt"
	"image"

	apperrors "go-canny-edge/internal/errors"
)

// ImageValidator inspects fetched bytes before they are fully decoded
type ImageValidator struct {
	maxPixels int64
}

// NewImageValidator creates a validator rejecting images above maxPixels.
// maxPixels <= 0 disables the size check.
func NewImageValidator(maxPixels int64) *ImageValidator {
	return &ImageValidator{maxPixels: maxPixels}
}

// ImageHeader is what could be learned from the image header alone
type ImageHeader struct {
	Format string
	Width  int
	Height int
}

// Inspect reads only the header of data. It fails with a decode error for
// unrecognized formats, empty images and images above the pixel limit.
func (v *ImageValidator) Inspect(data []byte) (*ImageHeader, error) {
	if len(data) == 0 {
		return nil, apperrors.NewDecodeError("image: empty body", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDecodeError(err.Error(), err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperrors.NewDecodeError(
			fmt.Sprintf("image: invalid dimensions %dx%d", cfg.Width, cfg.Height), nil)
	}

	if v.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > v.maxPixels {
		return nil, apperrors.NewDecodeError(
			fmt.Sprintf("image: %dx%d exceeds the %d pixel limit", cfg.Width, cfg.Height, v.maxPixels), nil)
	}

	return &ImageHeader{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
