package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// GrayImage wraps stretched 8-bit samples as an image.Gray.
func GrayImage(width, height int, samples []uint8) *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, width, height))
	copy(gray.Pix, samples)
	return gray
}

// ResizeToFit scales an image down to fit within the specified bounding box
// edge, preserving aspect ratio. A non-positive edge returns the image
// unchanged, as does an image already within bounds.
func ResizeToFit(source image.Image, edge int) image.Image {
	if edge <= 0 {
		return source
	}
	bounds := source.Bounds()
	if bounds.Dx() <= edge && bounds.Dy() <= edge {
		return source
	}
	return imaging.Fit(source, edge, edge, imaging.Lanczos)
}

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(source image.Image) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buffer, source); err != nil {
		return nil, fmt.Errorf("unable to encode PNG: %w", err)
	}
	return buffer.Bytes(), nil
}

// RenderPreview stretches a FITS image and encodes it as a PNG bounded by
// the specified edge.
func RenderPreview(fits *FITSImage, options StretchOptions, edge int) ([]byte, error) {
	samples := Stretch(fits, options)
	var result image.Image = GrayImage(fits.Width, fits.Height, samples)
	result = ResizeToFit(result, edge)
	return EncodePNG(result)
}
