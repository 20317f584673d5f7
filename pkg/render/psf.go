package render

import (
	"math"
)

// PSFFit describes a fitted point-spread-function model for a single star.
type PSFFit struct {
	// Type is the fitted model ("gaussian" or "moffat").
	Type string `json:"type"`
	// R2 is the coefficient of determination of the fit.
	R2 float64 `json:"r2"`
	// SigmaX and SigmaY are the model widths along the principal axes.
	SigmaX float64 `json:"sigma_x"`
	SigmaY float64 `json:"sigma_y"`
	// Theta is the principal axis rotation in radians.
	Theta float64 `json:"theta"`
	// FWHM is the geometric-mean full width at half maximum.
	FWHM float64 `json:"fwhm"`
	// Eccentricity measures the model elongation.
	Eccentricity float64 `json:"eccentricity"`
	// Amplitude is the fitted peak height above background.
	Amplitude float64 `json:"amplitude"`
	// Background is the fitted local background.
	Background float64 `json:"background"`
}

// moffatBeta is the fixed Moffat shape parameter used by the fitter.
const moffatBeta = 2.5

// FitPSF fits a PSF model to the star cutout of the specified radius using
// moment-based estimation, reporting fit quality against the chosen model.
func FitPSF(fits *FITSImage, star Star, psfType string, radius int) PSFFit {
	x0, y0 := int(star.X+0.5), int(star.Y+0.5)

	// Local background from the cutout border.
	var border []float64
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx > -radius && dx < radius && dy > -radius && dy < radius {
				continue
			}
			border = append(border, fits.At(x0+dx, y0+dy))
		}
	}
	background, _ := medianAndMAD(border)

	// Weighted moments over the cutout.
	var flux, sumX, sumY float64
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			value := fits.At(x0+dx, y0+dy) - background
			if value <= 0 {
				continue
			}
			flux += value
			sumX += value * float64(dx)
			sumY += value * float64(dy)
		}
	}
	if flux <= 0 {
		return PSFFit{Type: psfType}
	}
	meanX, meanY := sumX/flux, sumY/flux

	var mxx, myy, mxy, peak float64
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			value := fits.At(x0+dx, y0+dy) - background
			if value <= 0 {
				continue
			}
			if value > peak {
				peak = value
			}
			ex := float64(dx) - meanX
			ey := float64(dy) - meanY
			mxx += value * ex * ex
			myy += value * ey * ey
			mxy += value * ex * ey
		}
	}
	mxx /= flux
	myy /= flux
	mxy /= flux

	// Principal axes.
	theta := 0.5 * math.Atan2(2*mxy, mxx-myy)
	trace := mxx + myy
	diff := math.Sqrt((mxx-myy)*(mxx-myy) + 4*mxy*mxy)
	sigmaX := math.Sqrt(math.Max((trace+diff)/2, 1e-9))
	sigmaY := math.Sqrt(math.Max((trace-diff)/2, 1e-9))

	var eccentricity float64
	if sigmaX > 0 {
		eccentricity = math.Sqrt(math.Max(0, 1-(sigmaY*sigmaY)/(sigmaX*sigmaX)))
	}

	// Evaluate fit quality against the model.
	model := func(dx, dy float64) float64 {
		// Rotate into the principal frame.
		cos, sin := math.Cos(theta), math.Sin(theta)
		rx := cos*dx + sin*dy
		ry := -sin*dx + cos*dy
		r2 := (rx*rx)/(2*sigmaX*sigmaX) + (ry*ry)/(2*sigmaY*sigmaY)
		if psfType == "moffat" {
			return peak * math.Pow(1+r2/moffatBeta, -moffatBeta)
		}
		return peak * math.Exp(-r2)
	}

	var residual, total, mean float64
	var count int
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			mean += fits.At(x0+dx, y0+dy) - background
			count++
		}
	}
	mean /= float64(count)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			observed := fits.At(x0+dx, y0+dy) - background
			predicted := model(float64(dx)-meanX, float64(dy)-meanY)
			residual += (observed - predicted) * (observed - predicted)
			total += (observed - mean) * (observed - mean)
		}
	}
	r2 := 0.0
	if total > 0 {
		r2 = math.Max(0, 1-residual/total)
	}

	// Geometric mean FWHM.
	fwhm := 2.3548 * math.Sqrt(sigmaX*sigmaY)
	if psfType == "moffat" {
		fwhm = 2 * math.Sqrt(sigmaX*sigmaY) * math.Sqrt(math.Pow(2, 1/moffatBeta)-1)
	}

	return PSFFit{
		Type:         psfType,
		R2:           r2,
		SigmaX:       sigmaX,
		SigmaY:       sigmaY,
		Theta:        theta,
		FWHM:         fwhm,
		Eccentricity: eccentricity,
		Amplitude:    peak,
		Background:   background,
	}
}
