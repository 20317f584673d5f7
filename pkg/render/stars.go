package render

import (
	"math"
	"sort"
)

// Star describes a detected star.
type Star struct {
	// X and Y are the centroid coordinates.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// HFR is the half-flux radius.
	HFR float64 `json:"hfr"`
	// FWHM is the full width at half maximum.
	FWHM float64 `json:"fwhm"`
	// Brightness is the background-subtracted integrated flux.
	Brightness float64 `json:"brightness"`
	// Eccentricity measures the elongation of the star profile.
	Eccentricity float64 `json:"eccentricity"`
}

// detectionSigma is the detection threshold in noise units above background.
const detectionSigma = 3.0

// minStarArea discards single-pixel noise hits.
const minStarArea = 4

// maxStarArea discards extended structures that are not stars.
const maxStarArea = 2500

// DetectStars finds stars in a FITS image via background thresholding and
// connected-component extraction, returning at most maxStars stars ordered
// by descending brightness.
func DetectStars(fits *FITSImage, maxStars int) []Star {
	width, height := fits.Width, fits.Height
	if width == 0 || height == 0 {
		return nil
	}

	// Estimate the background level and noise from the global median and
	// MAD.
	median, mad := medianAndMAD(fits.Pixels)
	noise := 1.4826 * mad
	if noise <= 0 {
		noise = 1e-9
	}
	threshold := median + detectionSigma*noise

	// Extract connected components above the threshold with an iterative
	// flood fill.
	visited := make([]bool, len(fits.Pixels))
	var stars []Star
	var stack []int
	for index := range fits.Pixels {
		if visited[index] || fits.Pixels[index] < threshold {
			continue
		}

		// Collect the component.
		stack = append(stack[:0], index)
		visited[index] = true
		var component []int
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, current)

			x, y := current%width, current/width
			for _, delta := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nx, ny := x+delta[0], y+delta[1]
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				neighbor := ny*width + nx
				if !visited[neighbor] && fits.Pixels[neighbor] >= threshold {
					visited[neighbor] = true
					stack = append(stack, neighbor)
				}
			}
		}

		if len(component) < minStarArea || len(component) > maxStarArea {
			continue
		}
		if star, ok := measureStar(fits, component, median); ok {
			stars = append(stars, star)
		}
	}

	// Order by descending brightness and truncate.
	sort.Slice(stars, func(i, j int) bool {
		return stars[i].Brightness > stars[j].Brightness
	})
	if maxStars > 0 && len(stars) > maxStars {
		stars = stars[:maxStars]
	}
	return stars
}

// measureStar computes centroid, flux, HFR, and shape moments for a
// connected component.
func measureStar(fits *FITSImage, component []int, background float64) (Star, bool) {
	width := fits.Width

	// Flux-weighted centroid.
	var flux, sumX, sumY float64
	for _, index := range component {
		value := fits.Pixels[index] - background
		if value <= 0 {
			continue
		}
		flux += value
		sumX += value * float64(index%width)
		sumY += value * float64(index/width)
	}
	if flux <= 0 {
		return Star{}, false
	}
	centerX := sumX / flux
	centerY := sumY / flux

	// Half-flux radius: radius containing half the flux, computed from the
	// flux-weighted radial distribution.
	type radialSample struct {
		radius float64
		value  float64
	}
	samples := make([]radialSample, 0, len(component))
	for _, index := range component {
		value := fits.Pixels[index] - background
		if value <= 0 {
			continue
		}
		dx := float64(index%width) - centerX
		dy := float64(index/width) - centerY
		samples = append(samples, radialSample{math.Hypot(dx, dy), value})
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].radius < samples[j].radius
	})
	var hfr float64
	accumulated := 0.0
	for _, sample := range samples {
		accumulated += sample.value
		if accumulated >= flux/2 {
			hfr = sample.radius
			break
		}
	}
	if hfr == 0 && len(samples) > 0 {
		hfr = samples[len(samples)-1].radius
	}

	// Second moments give the shape: eccentricity and FWHM.
	var mxx, myy, mxy float64
	for _, index := range component {
		value := fits.Pixels[index] - background
		if value <= 0 {
			continue
		}
		dx := float64(index%width) - centerX
		dy := float64(index/width) - centerY
		mxx += value * dx * dx
		myy += value * dy * dy
		mxy += value * dx * dy
	}
	mxx /= flux
	myy /= flux
	mxy /= flux

	// Eigenvalues of the moment matrix.
	trace := mxx + myy
	diff := math.Sqrt((mxx-myy)*(mxx-myy) + 4*mxy*mxy)
	major := (trace + diff) / 2
	minor := (trace - diff) / 2
	var eccentricity float64
	if major > 0 && minor >= 0 {
		eccentricity = math.Sqrt(math.Max(0, 1-minor/major))
	}
	sigma := math.Sqrt(math.Max(trace/2, 0))
	fwhm := 2.3548 * sigma

	return Star{
		X:            centerX,
		Y:            centerY,
		HFR:          hfr,
		FWHM:         fwhm,
		Brightness:   flux,
		Eccentricity: eccentricity,
	}, true
}
