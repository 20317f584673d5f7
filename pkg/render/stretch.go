package render

import (
	"math"
	"sort"
)

// StretchOptions parameterizes tone mapping.
type StretchOptions struct {
	// Midtone is the midtone transfer factor.
	Midtone float64
	// Shadow is the shadow clipping point relative to the median, in units
	// of 1.4826×MAD.
	Shadow float64
	// Linear disables the midtone transfer function in favor of a linear
	// mapping.
	Linear bool
}

// medianAndMAD computes the median and the median absolute deviation of a
// sample slice.
func medianAndMAD(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	deviations := make([]float64, len(sorted))
	for i, value := range sorted {
		deviations[i] = math.Abs(value - median)
	}
	sort.Float64s(deviations)
	return median, deviations[len(deviations)/2]
}

// mtf is the midtone transfer function.
func mtf(midtone, x float64) float64 {
	if x <= 0 {
		return 0
	} else if x >= 1 {
		return 1
	}
	return ((midtone - 1) * x) / ((2*midtone-1)*x - midtone)
}

// Stretch maps FITS samples to 8-bit display values. The stretch mode clips
// shadows at median + shadow×1.4826×MAD (shadow is typically negative) and applies
// the midtone transfer function; the linear mode scales between the sample
// extremes.
func Stretch(fits *FITSImage, options StretchOptions) []uint8 {
	pixels := fits.Pixels
	result := make([]uint8, len(pixels))
	if len(pixels) == 0 {
		return result
	}

	if options.Linear {
		low, high := pixels[0], pixels[0]
		for _, sample := range pixels {
			if sample < low {
				low = sample
			}
			if sample > high {
				high = sample
			}
		}
		spread := high - low
		if spread <= 0 {
			return result
		}
		for i, sample := range pixels {
			result[i] = uint8(255 * (sample - low) / spread)
		}
		return result
	}

	// Estimate the background and noise floor. A MAD of zero (synthetic or
	// heavily clipped data) degrades to a tiny epsilon so the normalization
	// below stays finite.
	median, mad := medianAndMAD(pixels)
	if mad <= 0 {
		mad = 1e-9
	}
	shadowPoint := median + options.Shadow*1.4826*mad

	// Find the sample maximum for normalization.
	high := pixels[0]
	for _, sample := range pixels {
		if sample > high {
			high = sample
		}
	}
	spread := high - shadowPoint
	if spread <= 0 {
		spread = 1e-9
	}

	for i, sample := range pixels {
		normalized := (sample - shadowPoint) / spread
		result[i] = uint8(255 * mtf(options.Midtone, normalized))
	}
	return result
}
