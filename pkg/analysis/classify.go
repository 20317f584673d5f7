package analysis

import (
	"fmt"
	"math"
	"sort"
)

// localBaselineWindow is the number of preceding frames considered when
// computing local baselines for classification.
const localBaselineWindow = 5

// gradualChangeWindow is the number of trailing frames examined for gradual
// change detection.
const gradualChangeWindow = 3

// classifyIssues assigns at most one diagnosis to each image whose final
// score fell below 0.7. Rules are evaluated in a fixed order; the first
// match wins.
func (a *Analyzer) classifyIssues(results []ImageQualityResult, images []ImageMetrics) {
	if len(images) < 2 {
		return
	}
	configuration := &a.configuration

	for i := range images {
		if results[i].QualityScore >= 0.7 {
			continue
		}

		starDrop := fractionalDrop(images, i, func(m ImageMetrics) *float64 { return m.StarCount })
		backgroundRise := fractionalRise(images, i, func(m ImageMetrics) *float64 { return m.Background })
		hfrRise := fractionalRise(images, i, func(m ImageMetrics) *float64 { return m.HFR })
		eccentricityRise := fractionalRise(images, i, func(m ImageMetrics) *float64 { return m.Eccentricity })

		gradualHFR := a.isGradualChange(images, i, func(m ImageMetrics) *float64 { return m.HFR })
		gradualBackground := a.isGradualChange(images, i, func(m ImageMetrics) *float64 { return m.Background })

		starStable := starDrop < configuration.StarDropThreshold
		backgroundStable := backgroundRise <= configuration.BackgroundRiseThreshold
		eccentricityStable := eccentricityRise < 0.15

		var category IssueCategory
		var details string
		switch {
		case starDrop > configuration.StarDropThreshold && backgroundRise > configuration.BackgroundRiseThreshold:
			category = IssueLikelyClouds
			details = fmt.Sprintf(
				"Star count dropped %.0f%% from baseline while background increased %.0f%%. Pattern consistent with cloud passage.",
				starDrop*100, backgroundRise*100,
			)
		case starDrop > configuration.StarDropThreshold && backgroundStable:
			category = IssuePossibleObstruction
			details = fmt.Sprintf(
				"Star count dropped %.0f%% with stable background. Possible obstruction (tree, dome slit, dew cap).",
				starDrop*100,
			)
		case hfrRise > configuration.HFRRiseThreshold && gradualHFR && eccentricityStable:
			category = IssueFocusDrift
			details = fmt.Sprintf(
				"HFR increased %.0f%% gradually over multiple frames with stable eccentricity. Consistent with focus drift.",
				hfrRise*100,
			)
		case eccentricityRise > 0.15 && starStable:
			category = IssueTrackingError
			details = fmt.Sprintf(
				"Eccentricity increased by %.2f with stable star count. Consistent with tracking/guiding error.",
				eccentricityRise,
			)
		case hfrRise > configuration.HFRRiseThreshold && starDrop > configuration.StarDropThreshold && !eccentricityStable:
			category = IssueWindShake
			details = "HFR increased, star count dropped, and eccentricity changed. Consistent with wind shake affecting guiding and seeing."
		case backgroundRise > configuration.BackgroundRiseThreshold && gradualBackground && starStable:
			category = IssueSkyBrightening
			details = fmt.Sprintf(
				"Background increased %.0f%% gradually with stable star count. Consistent with sky brightening (dawn, moon rise).",
				backgroundRise*100,
			)
		case results[i].QualityScore < 0.5:
			category = IssueUnknownDegradation
			details = "Quality degraded but no clear pattern matches known issue types."
		default:
			continue
		}

		categoryValue := category
		detailsValue := details
		results[i].Category = &categoryValue
		results[i].Details = &detailsValue
	}
}

// localBaseline computes the median of a metric over the preceding window of
// frames, falling back to the current value when the window is empty.
func localBaseline(images []ImageMetrics, index int, metric func(ImageMetrics) *float64) float64 {
	start := index - localBaselineWindow
	if start < 0 {
		start = 0
	}
	var values []float64
	for j := start; j < index; j++ {
		if value := metric(images[j]); value != nil {
			values = append(values, *value)
		}
	}
	if len(values) == 0 {
		if value := metric(images[index]); value != nil {
			return *value
		}
		return 0
	}
	sort.Float64s(values)
	return values[len(values)/2]
}

// fractionalDrop computes the nonnegative fractional drop of a metric versus
// its local baseline.
func fractionalDrop(images []ImageMetrics, index int, metric func(ImageMetrics) *float64) float64 {
	current := metric(images[index])
	if current == nil {
		return 0
	}
	baseline := localBaseline(images, index, metric)
	if math.Abs(baseline) < epsilon {
		return 0
	}
	return math.Max((baseline-*current)/baseline, 0)
}

// fractionalRise computes the nonnegative fractional rise of a metric versus
// its local baseline.
func fractionalRise(images []ImageMetrics, index int, metric func(ImageMetrics) *float64) float64 {
	current := metric(images[index])
	if current == nil {
		return 0
	}
	baseline := localBaseline(images, index, metric)
	if math.Abs(baseline) < epsilon {
		return 0
	}
	return math.Max((*current-baseline)/baseline, 0)
}

// isGradualChange reports whether a metric changed gradually over the
// trailing window: at least window-1 of the last window consecutive
// frame-to-frame rates must be below the sudden change rate.
func (a *Analyzer) isGradualChange(images []ImageMetrics, index int, metric func(ImageMetrics) *float64) bool {
	window := gradualChangeWindow
	if index < window {
		return false
	}

	smallSteps := 0
	for j := index - window + 1; j <= index; j++ {
		previous := metric(images[j-1])
		if previous == nil || *previous <= 0 {
			continue
		}
		current := metric(images[j])
		if current == nil {
			continue
		}
		rate := math.Abs((*current - *previous) / *previous)
		if rate < a.configuration.SuddenChangeRate {
			smallSteps++
		}
	}
	return smallSteps >= window-1
}
