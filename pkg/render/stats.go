package render

import (
	"math"
	"sort"
)

// Statistics summarizes the pixel distribution and star population of a FITS
// image.
type Statistics struct {
	// Width and Height are the image dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`
	// Min, Max, Mean, Median, StdDev, and MAD describe the sample
	// distribution.
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	MAD    float64 `json:"mad"`
	// StarCount is the number of detected stars.
	StarCount int `json:"star_count"`
	// MeanHFR, MinHFR, and MaxHFR describe the detected star widths; zero
	// when no stars were detected.
	MeanHFR float64 `json:"mean_hfr"`
	MinHFR  float64 `json:"min_hfr"`
	MaxHFR  float64 `json:"max_hfr"`
	// MeanEccentricity describes the detected star shapes.
	MeanEccentricity float64 `json:"mean_eccentricity"`
}

// statisticsStarLimit bounds the star population considered for statistics.
const statisticsStarLimit = 500

// ComputeStatistics computes distribution and star statistics for a FITS
// image.
func ComputeStatistics(fits *FITSImage) Statistics {
	statistics := Statistics{
		Width:  fits.Width,
		Height: fits.Height,
	}
	if len(fits.Pixels) == 0 {
		return statistics
	}

	// Distribution.
	sorted := make([]float64, len(fits.Pixels))
	copy(sorted, fits.Pixels)
	sort.Float64s(sorted)
	statistics.Min = sorted[0]
	statistics.Max = sorted[len(sorted)-1]
	statistics.Median = sorted[len(sorted)/2]

	var sum float64
	for _, sample := range fits.Pixels {
		sum += sample
	}
	statistics.Mean = sum / float64(len(fits.Pixels))

	var variance float64
	for _, sample := range fits.Pixels {
		delta := sample - statistics.Mean
		variance += delta * delta
	}
	statistics.StdDev = math.Sqrt(variance / float64(len(fits.Pixels)))

	_, statistics.MAD = medianAndMAD(fits.Pixels)

	// Star population.
	stars := DetectStars(fits, statisticsStarLimit)
	statistics.StarCount = len(stars)
	if len(stars) > 0 {
		statistics.MinHFR = stars[0].HFR
		statistics.MaxHFR = stars[0].HFR
		var hfrSum, eccentricitySum float64
		for _, star := range stars {
			hfrSum += star.HFR
			eccentricitySum += star.Eccentricity
			if star.HFR < statistics.MinHFR {
				statistics.MinHFR = star.HFR
			}
			if star.HFR > statistics.MaxHFR {
				statistics.MaxHFR = star.HFR
			}
		}
		statistics.MeanHFR = hfrSum / float64(len(stars))
		statistics.MeanEccentricity = eccentricitySum / float64(len(stars))
	}

	return statistics
}
