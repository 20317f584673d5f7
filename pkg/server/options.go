package server

import (
	"net/http"
	"strconv"

	"github.com/fitsight-io/fitsight/pkg/api"
	"github.com/fitsight-io/fitsight/pkg/artifact"
)

// queryFloat parses an optional float query parameter with bounds.
func queryFloat(request *http.Request, name string, fallback, low, high float64) (float64, error) {
	raw := request.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, api.BadRequest("invalid %s: %s", name, raw)
	}
	if value < low || value > high {
		return 0, api.BadRequest("%s out of range [%g, %g]: %g", name, low, high, value)
	}
	return value, nil
}

// queryInt parses an optional integer query parameter with bounds.
func queryInt(request *http.Request, name string, fallback, low, high int) (int, error) {
	raw := request.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, api.BadRequest("invalid %s: %s", name, raw)
	}
	if value < low || value > high {
		return 0, api.BadRequest("%s out of range [%d, %d]: %d", name, low, high, value)
	}
	return value, nil
}

// parsePreviewOptions validates preview parameters at the request boundary.
func parsePreviewOptions(request *http.Request) (artifact.PreviewOptions, error) {
	size, err := artifact.ParsePreviewSize(request.URL.Query().Get("size"))
	if err != nil {
		return artifact.PreviewOptions{}, api.BadRequest("%v", err)
	}
	mode, err := artifact.ParseStretchMode(request.URL.Query().Get("stretch"))
	if err != nil {
		return artifact.PreviewOptions{}, api.BadRequest("%v", err)
	}
	midtone, err := queryFloat(request, "midtone", 0.2, 0, 1)
	if err != nil {
		return artifact.PreviewOptions{}, err
	}
	shadow, err := queryFloat(request, "shadow", -2.8, -5, 5)
	if err != nil {
		return artifact.PreviewOptions{}, err
	}
	return artifact.PreviewOptions{
		Size:    size,
		Mode:    mode,
		Midtone: midtone,
		Shadow:  shadow,
	}, nil
}

// parseAnnotatedOptions validates annotation parameters at the request
// boundary.
func parseAnnotatedOptions(request *http.Request) (artifact.AnnotatedOptions, error) {
	size, err := artifact.ParsePreviewSize(request.URL.Query().Get("size"))
	if err != nil {
		return artifact.AnnotatedOptions{}, api.BadRequest("%v", err)
	}
	maxStars, err := queryInt(request, "max_stars", 1000, 1, 5000)
	if err != nil {
		return artifact.AnnotatedOptions{}, err
	}
	return artifact.AnnotatedOptions{Size: size, MaxStars: maxStars}, nil
}

// parsePSFOptions validates PSF mosaic parameters at the request boundary.
func parsePSFOptions(request *http.Request) (artifact.PSFOptions, error) {
	numStars, err := queryInt(request, "num_stars", 9, 1, 100)
	if err != nil {
		return artifact.PSFOptions{}, err
	}
	psfType, err := artifact.ParsePSFType(request.URL.Query().Get("psf_type"))
	if err != nil {
		return artifact.PSFOptions{}, api.BadRequest("%v", err)
	}
	sortBy, err := artifact.ParsePSFSortBy(request.URL.Query().Get("sort_by"))
	if err != nil {
		return artifact.PSFOptions{}, api.BadRequest("%v", err)
	}
	selection, err := artifact.ParsePSFSelection(request.URL.Query().Get("selection"))
	if err != nil {
		return artifact.PSFOptions{}, api.BadRequest("%v", err)
	}
	gridCols, err := queryInt(request, "grid_cols", 3, 1, 10)
	if err != nil {
		return artifact.PSFOptions{}, err
	}
	return artifact.PSFOptions{
		NumStars:  numStars,
		Type:      psfType,
		SortBy:    sortBy,
		Selection: selection,
		GridCols:  gridCols,
	}, nil
}
