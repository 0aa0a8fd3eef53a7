package encoder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// ImageEncoder serializes an edge map into a lossless raster format
type ImageEncoder interface {
	Encode(img image.Image) ([]byte, error)
}

// PNGEncoder writes PNG. *image.Gray input stays single-channel 8-bit.
type PNGEncoder struct {
	level png.CompressionLevel
}

// NewPNGEncoder creates a PNG encoder for a named compression level:
// "default", "none", "speed" or "best". Unknown names fall back to default.
func NewPNGEncoder(level string) *PNGEncoder {
	return &PNGEncoder{level: compressionLevel(level)}
}

func (e *PNGEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(e.level)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 encodes img and returns the standard base64 text
func EncodeBase64(enc ImageEncoder, img image.Image) (string, error) {
	data, err := enc.Encode(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func compressionLevel(name string) png.CompressionLevel {
	switch name {
	case "none":
		return png.NoCompression
	case "speed":
		return png.BestSpeed
	case "best":
		return png.BestCompression
	default:
		return png.DefaultCompression
	}
}
