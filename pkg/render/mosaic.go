package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/disintegration/imaging"
)

// MosaicOptions parameterizes PSF mosaic rendering.
type MosaicOptions struct {
	// NumStars is the number of stars in the mosaic.
	NumStars int
	// PSFType is the fitted model name ("gaussian" or "moffat").
	PSFType string
	// SortBy orders the candidate stars: "r2", "hfr", or "brightness".
	SortBy string
	// Selection picks the sampled end: "top", "bottom", or "spread".
	Selection string
	// GridCols is the mosaic column count.
	GridCols int
	// Stretch is the tone mapping applied to cutouts.
	Stretch StretchOptions
}

const (
	// cutoutRadius is the half-size of per-star cutouts.
	cutoutRadius = 16
	// cellSize is the rendered size of a mosaic cell.
	cellSize = 96
	// cellLabelHeight reserves space beneath each cell for its label.
	cellLabelHeight = 14
)

// RenderPSFMosaic renders a grid of per-star cutouts annotated with their
// PSF fit quality.
func RenderPSFMosaic(fits *FITSImage, options MosaicOptions) ([]byte, error) {
	// Detect a generous candidate pool and fit each candidate.
	candidates := DetectStars(fits, options.NumStars*10)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no stars detected")
	}
	type fitted struct {
		star Star
		fit  PSFFit
	}
	entries := make([]fitted, 0, len(candidates))
	for _, star := range candidates {
		entries = append(entries, fitted{
			star: star,
			fit:  FitPSF(fits, star, options.PSFType, cutoutRadius),
		})
	}

	// Order candidates.
	sort.SliceStable(entries, func(i, j int) bool {
		switch options.SortBy {
		case "hfr":
			return entries[i].star.HFR < entries[j].star.HFR
		case "brightness":
			return entries[i].star.Brightness > entries[j].star.Brightness
		default:
			return entries[i].fit.R2 > entries[j].fit.R2
		}
	})

	// Sample the requested count from the requested end.
	count := options.NumStars
	if count <= 0 || count > len(entries) {
		count = len(entries)
	}
	var selected []fitted
	switch options.Selection {
	case "bottom":
		selected = entries[len(entries)-count:]
	case "spread":
		// A deterministic spread across the ordering.
		stride := len(entries) / count
		if stride < 1 {
			stride = 1
		}
		for i := 0; i < len(entries) && len(selected) < count; i += stride {
			selected = append(selected, entries[i])
		}
	default:
		selected = entries[:count]
	}

	// Lay out the grid.
	columns := options.GridCols
	if columns <= 0 {
		columns = 3
	}
	rows := (len(selected) + columns - 1) / columns
	cellHeight := cellSize + cellLabelHeight
	canvas := image.NewRGBA(image.Rect(0, 0, columns*cellSize, rows*cellHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	samples := Stretch(fits, options.Stretch)
	base := GrayImage(fits.Width, fits.Height, samples)
	for i, entry := range selected {
		column, row := i%columns, i/columns

		// Extract and scale the cutout.
		x0 := int(entry.star.X) - cutoutRadius
		y0 := int(entry.star.Y) - cutoutRadius
		cutout := imaging.Crop(base, image.Rect(x0, y0, x0+2*cutoutRadius, y0+2*cutoutRadius))
		scaled := imaging.Resize(cutout, cellSize, cellSize, imaging.NearestNeighbor)

		origin := image.Pt(column*cellSize, row*cellHeight)
		draw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(cellSize, cellSize))},
			scaled, image.Point{}, draw.Src)

		// Label with the fit quality and width.
		drawLabel(canvas,
			origin.X+2, origin.Y+cellSize+cellLabelHeight-3,
			fmt.Sprintf("R2 %.2f  FWHM %.1f", entry.fit.R2, entry.fit.FWHM),
		)
	}

	return EncodePNG(canvas)
}
