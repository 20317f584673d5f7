package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// annotationColor is the marker color for annotated images.
var annotationColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}

// RenderAnnotated renders a stretched FITS image with circles and HFR labels
// over the brightest detected stars, bounded by the specified edge.
func RenderAnnotated(fits *FITSImage, options StretchOptions, maxStars, edge int) ([]byte, error) {
	// Base layer: the stretched image promoted to RGBA.
	samples := Stretch(fits, options)
	gray := GrayImage(fits.Width, fits.Height, samples)
	canvas := image.NewRGBA(gray.Bounds())
	draw.Draw(canvas, canvas.Bounds(), gray, image.Point{}, draw.Src)

	// Detect and mark stars.
	stars := DetectStars(fits, maxStars)
	for _, star := range stars {
		radius := int(math.Max(star.HFR*2, 6))
		drawCircle(canvas, int(star.X), int(star.Y), radius)
		drawLabel(canvas,
			int(star.X)+radius+2, int(star.Y),
			fmt.Sprintf("%.2f", star.HFR),
		)
	}

	result := ResizeToFit(canvas, edge)
	return EncodePNG(result)
}

// drawCircle draws a one-pixel circle outline.
func drawCircle(canvas *image.RGBA, centerX, centerY, radius int) {
	steps := 8 * radius
	if steps < 32 {
		steps = 32
	}
	for i := 0; i < steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		x := centerX + int(float64(radius)*math.Cos(angle)+0.5)
		y := centerY + int(float64(radius)*math.Sin(angle)+0.5)
		if image.Pt(x, y).In(canvas.Bounds()) {
			canvas.SetRGBA(x, y, annotationColor)
		}
	}
}

// drawLabel draws a small text label.
func drawLabel(canvas *image.RGBA, x, y int, text string) {
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(annotationColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
