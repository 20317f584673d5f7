// Package artifact provides deterministic, content-keyed on-disk caching of
// expensive per-image render products, plus the background worker that
// pre-generates them.
package artifact

import (
	"fmt"
	"math"
	"strings"

	"github.com/fitsight-io/fitsight/pkg/catalog"
)

// Category identifies an artifact family. Each category lives under its own
// subdirectory of the cache root.
type Category string

const (
	// CategoryPreviews holds stretched preview PNGs.
	CategoryPreviews Category = "previews"
	// CategoryAnnotated holds annotated PNGs.
	CategoryAnnotated Category = "annotated"
	// CategoryStars holds star-detection JSON documents.
	CategoryStars Category = "stars"
	// CategoryPSFMulti holds PSF mosaic PNGs.
	CategoryPSFMulti Category = "psf_multi"
	// CategoryStats holds FITS statistics JSON documents.
	CategoryStats Category = "stats"
)

// Categories enumerates all artifact categories.
func Categories() []Category {
	return []Category{
		CategoryPreviews, CategoryAnnotated, CategoryStars,
		CategoryPSFMulti, CategoryStats,
	}
}

// PreviewSize selects the bounding box of a rendered preview.
type PreviewSize uint8

const (
	// SizeScreen bounds previews to 1200x1200.
	SizeScreen PreviewSize = iota
	// SizeLarge bounds previews to 2000x2000.
	SizeLarge
	// SizeOriginal leaves previews at full resolution.
	SizeOriginal
)

// ParsePreviewSize converts a string-based size representation, rejecting
// unknown values.
func ParsePreviewSize(name string) (PreviewSize, error) {
	switch name {
	case "screen", "":
		return SizeScreen, nil
	case "large":
		return SizeLarge, nil
	case "original":
		return SizeOriginal, nil
	default:
		return 0, fmt.Errorf("unknown preview size: %s", name)
	}
}

// String provides the wire representation of the size.
func (s PreviewSize) String() string {
	switch s {
	case SizeScreen:
		return "screen"
	case SizeLarge:
		return "large"
	case SizeOriginal:
		return "original"
	default:
		return "unknown"
	}
}

// Bounds returns the bounding box edge for the size, or 0 for unbounded.
func (s PreviewSize) Bounds() int {
	switch s {
	case SizeScreen:
		return 1200
	case SizeLarge:
		return 2000
	default:
		return 0
	}
}

// StretchMode selects the tone mapping applied to a preview.
type StretchMode uint8

const (
	// StretchModeStretch applies the midtone transfer function.
	StretchModeStretch StretchMode = iota
	// StretchModeLinear applies a linear mapping.
	StretchModeLinear
)

// ParseStretchMode converts a string-based stretch representation, rejecting
// unknown values.
func ParseStretchMode(name string) (StretchMode, error) {
	switch name {
	case "stretch", "":
		return StretchModeStretch, nil
	case "linear":
		return StretchModeLinear, nil
	default:
		return 0, fmt.Errorf("unknown stretch mode: %s", name)
	}
}

// String provides the wire representation of the stretch mode.
func (m StretchMode) String() string {
	if m == StretchModeLinear {
		return "linear"
	}
	return "stretch"
}

// PreviewOptions parameterizes preview rendering.
type PreviewOptions struct {
	// Size is the preview bounding box.
	Size PreviewSize
	// Mode is the tone mapping mode.
	Mode StretchMode
	// Midtone is the midtone transfer factor.
	Midtone float64
	// Shadow is the shadow clipping point.
	Shadow float64
}

// DefaultPreviewOptions returns the preview options used when a request
// specifies none and by the pre-generation worker.
func DefaultPreviewOptions(size PreviewSize) PreviewOptions {
	return PreviewOptions{
		Size:    size,
		Mode:    StretchModeStretch,
		Midtone: 0.2,
		Shadow:  -2.8,
	}
}

// AnnotatedOptions parameterizes annotated rendering.
type AnnotatedOptions struct {
	// Size is the output bounding box.
	Size PreviewSize
	// MaxStars bounds the number of annotated stars.
	MaxStars int
}

// PSFSortBy selects the star ordering for PSF mosaics.
type PSFSortBy uint8

const (
	// PSFSortByR2 orders stars by fit quality.
	PSFSortByR2 PSFSortBy = iota
	// PSFSortByHFR orders stars by half-flux radius.
	PSFSortByHFR
	// PSFSortByBrightness orders stars by brightness.
	PSFSortByBrightness
)

// ParsePSFSortBy converts a string-based sort representation, rejecting
// unknown values.
func ParsePSFSortBy(name string) (PSFSortBy, error) {
	switch name {
	case "r2", "":
		return PSFSortByR2, nil
	case "hfr":
		return PSFSortByHFR, nil
	case "brightness":
		return PSFSortByBrightness, nil
	default:
		return 0, fmt.Errorf("unknown sort order: %s", name)
	}
}

// String provides the wire representation of the sort order.
func (s PSFSortBy) String() string {
	switch s {
	case PSFSortByHFR:
		return "hfr"
	case PSFSortByBrightness:
		return "brightness"
	default:
		return "r2"
	}
}

// PSFSelection selects which end of the ordering a PSF mosaic draws from.
type PSFSelection uint8

const (
	// PSFSelectionTop selects the best stars under the ordering.
	PSFSelectionTop PSFSelection = iota
	// PSFSelectionBottom selects the worst stars under the ordering.
	PSFSelectionBottom
	// PSFSelectionSpread selects a deterministic spread across the ordering.
	PSFSelectionSpread
)

// ParsePSFSelection converts a string-based selection representation,
// rejecting unknown values.
func ParsePSFSelection(name string) (PSFSelection, error) {
	switch name {
	case "top", "":
		return PSFSelectionTop, nil
	case "bottom":
		return PSFSelectionBottom, nil
	case "spread":
		return PSFSelectionSpread, nil
	default:
		return 0, fmt.Errorf("unknown selection: %s", name)
	}
}

// String provides the wire representation of the selection.
func (s PSFSelection) String() string {
	switch s {
	case PSFSelectionBottom:
		return "bottom"
	case PSFSelectionSpread:
		return "spread"
	default:
		return "top"
	}
}

// PSFType selects the point-spread-function model.
type PSFType uint8

const (
	// PSFTypeGaussian fits a Gaussian model.
	PSFTypeGaussian PSFType = iota
	// PSFTypeMoffat fits a Moffat model.
	PSFTypeMoffat
)

// ParsePSFType converts a string-based model representation, rejecting
// unknown values.
func ParsePSFType(name string) (PSFType, error) {
	switch name {
	case "gaussian", "":
		return PSFTypeGaussian, nil
	case "moffat":
		return PSFTypeMoffat, nil
	default:
		return 0, fmt.Errorf("unknown PSF type: %s", name)
	}
}

// String provides the wire representation of the PSF type.
func (t PSFType) String() string {
	if t == PSFTypeMoffat {
		return "moffat"
	}
	return "gaussian"
}

// PSFOptions parameterizes PSF mosaic rendering.
type PSFOptions struct {
	// NumStars is the number of stars in the mosaic.
	NumStars int
	// Type is the PSF model.
	Type PSFType
	// SortBy is the star ordering.
	SortBy PSFSortBy
	// Selection picks the sampled end of the ordering.
	Selection PSFSelection
	// GridCols is the mosaic column count.
	GridCols int
}

// sanitizeBasename makes a filename portable for use inside a cache key by
// replacing dots, spaces, and dashes with underscores.
func sanitizeBasename(basename string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '-':
			return '_'
		default:
			return r
		}
	}, basename)
}

// quantize converts a float parameter to a stable integer filename
// component. Rounding keeps values like -2.8 exact despite binary
// representation error.
func quantize(value float64) int {
	return int(math.Round(value * 10000))
}

// identity renders the image identity component shared by all keys.
func identity(image *catalog.AcquiredImage) string {
	var acquired int64
	if image.AcquiredDate != nil {
		acquired = *image.AcquiredDate
	}
	return fmt.Sprintf("%d_%d_%d_%d", image.ID, image.ProjectID, image.TargetID, acquired)
}

// PreviewKey computes the content key for a preview artifact. The key
// encodes every parameter that affects the output, so identical inputs yield
// byte-identical keys.
func PreviewKey(image *catalog.AcquiredImage, basename string, options PreviewOptions) string {
	return fmt.Sprintf(
		"%s_%s_%s_%s_%d_%d",
		identity(image),
		sanitizeBasename(basename),
		options.Size,
		options.Mode,
		quantize(options.Midtone),
		quantize(options.Shadow),
	)
}

// AnnotatedKey computes the content key for an annotated artifact.
func AnnotatedKey(image *catalog.AcquiredImage, basename string, options AnnotatedOptions) string {
	return fmt.Sprintf(
		"annotated_%s_%s_%s_%d",
		identity(image),
		sanitizeBasename(basename),
		options.Size,
		options.MaxStars,
	)
}

// StarsKey computes the content key for a star-detection artifact. Detector
// parameters are fixed by policy; the key must be revised if they become
// tunable.
func StarsKey(image *catalog.AcquiredImage, basename string) string {
	return fmt.Sprintf(
		"stars_%s_%s",
		identity(image),
		sanitizeBasename(basename),
	)
}

// PSFKey computes the content key for a PSF mosaic artifact.
func PSFKey(image *catalog.AcquiredImage, basename string, options PSFOptions) string {
	return fmt.Sprintf(
		"psf_multi_%s_%s_%d_%s_%s_%s_%d",
		identity(image),
		sanitizeBasename(basename),
		options.NumStars,
		options.Type,
		options.SortBy,
		options.Selection,
		options.GridCols,
	)
}

// StatsKey computes the content key for a FITS statistics artifact.
func StatsKey(image *catalog.AcquiredImage) string {
	return fmt.Sprintf("stats_%s", identity(image))
}
