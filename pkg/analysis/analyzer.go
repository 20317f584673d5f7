package analysis

import (
	"math"
	"sort"
)

// epsilon guards against division by vanishing baselines and degenerate
// percentile spreads.
const epsilon = 1e-10

// Analyzer scores image quality within acquisition sequences.
type Analyzer struct {
	// configuration is the analyzer configuration with normalized quality
	// weights.
	configuration Configuration
}

// NewAnalyzer creates an analyzer, normalizing the quality weights.
func NewAnalyzer(configuration Configuration) *Analyzer {
	configuration.QualityWeights = configuration.QualityWeights.Normalized()
	return &Analyzer{configuration: configuration}
}

// Analyze groups the specified images into sessions and scores each. All
// images are expected to share the specified target and filter. Empty input
// yields an empty result, not an error.
func (a *Analyzer) Analyze(images []ImageMetrics, targetID int64, targetName, filterName string) []ScoredSequence {
	sequences := a.splitIntoSequences(images)
	results := make([]ScoredSequence, 0, len(sequences))
	for _, sequence := range sequences {
		results = append(results, a.scoreSequence(sequence, targetID, targetName, filterName))
	}
	return results
}

// splitIntoSequences sorts images by timestamp and splits them wherever the
// gap to the previous image exceeds the configured session gap.
func (a *Analyzer) splitIntoSequences(images []ImageMetrics) [][]ImageMetrics {
	if len(images) == 0 {
		return nil
	}

	sorted := make([]ImageMetrics, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool {
		return timestampOrZero(sorted[i]) < timestampOrZero(sorted[j])
	})

	gapSeconds := a.configuration.SessionGapMinutes * 60
	var sequences [][]ImageMetrics
	current := []ImageMetrics{sorted[0]}
	for _, image := range sorted[1:] {
		previous := timestampOrZero(current[len(current)-1])
		if timestampOrZero(image)-previous > gapSeconds {
			sequences = append(sequences, current)
			current = nil
		}
		current = append(current, image)
	}
	if len(current) > 0 {
		sequences = append(sequences, current)
	}
	return sequences
}

func timestampOrZero(image ImageMetrics) int64 {
	if image.Timestamp != nil {
		return *image.Timestamp
	}
	return 0
}

// scoreSequence scores a single session.
func (a *Analyzer) scoreSequence(images []ImageMetrics, targetID int64, targetName, filterName string) ScoredSequence {
	imageCount := len(images)
	var sessionStart, sessionEnd *int64
	if imageCount > 0 {
		sessionStart = images[0].Timestamp
		sessionEnd = images[imageCount-1].Timestamp
	}

	// Sequences below the minimum length short-circuit: every image scores
	// 1.0 with no anomalies and no categories, and the summary counts them
	// all as excellent.
	if imageCount < a.configuration.MinSequenceLength {
		results := make([]ImageQualityResult, 0, imageCount)
		for _, image := range images {
			one := 1.0
			results = append(results, ImageQualityResult{
				ImageID:              image.ImageID,
				QualityScore:         1.0,
				TemporalAnomalyScore: 0.0,
				NormalizedMetrics: NormalizedMetrics{
					StarCount:    &one,
					HFR:          &one,
					Eccentricity: &one,
					SNR:          &one,
					Background:   &one,
				},
			})
		}
		return ScoredSequence{
			TargetID:     targetID,
			TargetName:   targetName,
			FilterName:   filterName,
			SessionStart: sessionStart,
			SessionEnd:   sessionEnd,
			ImageCount:   imageCount,
			Images:       results,
			Summary: SequenceSummary{
				ExcellentCount: imageCount,
			},
		}
	}

	// Normalize each metric over the session.
	normalizedStars := normalizeHigherBetter(collect(images, func(i ImageMetrics) *float64 { return i.StarCount }))
	normalizedHFR := normalizeLowerBetter(collect(images, func(i ImageMetrics) *float64 { return i.HFR }))
	normalizedEccentricity := normalizeLowerBetter(collect(images, func(i ImageMetrics) *float64 { return i.Eccentricity }))
	normalizedSNR := normalizeHigherBetter(collect(images, func(i ImageMetrics) *float64 { return i.SNR }))
	normalizedBackground := normalizeLowerBetter(collect(images, func(i ImageMetrics) *float64 { return i.Background }))

	// Compute EWMA temporal deviation scores.
	temporalScores := a.computeTemporalScores(images)

	// Compute composite quality scores with weight redistribution over the
	// available metrics.
	weights := a.configuration.QualityWeights
	results := make([]ImageQualityResult, 0, imageCount)
	for i := range images {
		sum, totalWeight := 0.0, 0.0
		accumulate := func(value *float64, weight float64) {
			if value != nil {
				sum += *value * weight
				totalWeight += weight
			}
		}
		accumulate(normalizedStars[i], weights.StarCount)
		accumulate(normalizedHFR[i], weights.HFR)
		accumulate(normalizedEccentricity[i], weights.Eccentricity)
		accumulate(normalizedSNR[i], weights.SNR)
		accumulate(normalizedBackground[i], weights.Background)

		qualityScore := 1.0
		if totalWeight > 0 {
			qualityScore = sum / totalWeight
		}

		// Temporal anomalies reduce but never eliminate the score, capped at
		// a 50% reduction.
		temporal := temporalScores[i]
		penalty := 1.0 - math.Min(temporal, 0.5)
		finalScore := clamp(qualityScore*penalty, 0, 1)

		results = append(results, ImageQualityResult{
			ImageID:              images[i].ImageID,
			QualityScore:         finalScore,
			TemporalAnomalyScore: temporal,
			NormalizedMetrics: NormalizedMetrics{
				StarCount:    normalizedStars[i],
				HFR:          normalizedHFR[i],
				Eccentricity: normalizedEccentricity[i],
				SNR:          normalizedSNR[i],
				Background:   normalizedBackground[i],
			},
		})
	}

	// Classify degraded frames.
	a.classifyIssues(results, images)

	return ScoredSequence{
		TargetID:     targetID,
		TargetName:   targetName,
		FilterName:   filterName,
		SessionStart: sessionStart,
		SessionEnd:   sessionEnd,
		ImageCount:   imageCount,
		ReferenceValues: ReferenceValues{
			BestStarCount:    bestValue(images, func(i ImageMetrics) *float64 { return i.StarCount }, true),
			BestHFR:          bestValue(images, func(i ImageMetrics) *float64 { return i.HFR }, false),
			BestEccentricity: bestValue(images, func(i ImageMetrics) *float64 { return i.Eccentricity }, false),
			BestSNR:          bestValue(images, func(i ImageMetrics) *float64 { return i.SNR }, true),
			BestBackground:   bestValue(images, func(i ImageMetrics) *float64 { return i.Background }, false),
		},
		Images:  results,
		Summary: buildSummary(results),
	}
}

// computeTemporalScores maintains EWMA baselines for star count, background,
// HFR, and SNR, measuring each image's deviation before updating the
// baselines.
func (a *Analyzer) computeTemporalScores(images []ImageMetrics) []float64 {
	alpha := a.configuration.EWMAAlpha
	weights := a.configuration.TemporalWeights
	scores := make([]float64, len(images))

	var baselineStars, baselineBackground, baselineHFR, baselineSNR *float64

	// deviation computes a nonnegative fractional deviation against a
	// baseline; drop = true measures drops, otherwise rises.
	deviation := func(value, baseline *float64, drop bool) float64 {
		if value == nil || baseline == nil || math.Abs(*baseline) <= epsilon {
			return 0
		}
		var fraction float64
		if drop {
			fraction = (*baseline - *value) / *baseline
		} else {
			fraction = (*value - *baseline) / *baseline
		}
		return math.Max(fraction, 0)
	}

	// update folds a value into an EWMA baseline; the first observation
	// becomes the baseline itself.
	update := func(baseline, value *float64) *float64 {
		if value == nil {
			return baseline
		}
		if baseline == nil {
			v := *value
			return &v
		}
		updated := alpha**value + (1-alpha)**baseline
		return &updated
	}

	for i, image := range images {
		scores[i] = weights.StarCount*deviation(image.StarCount, baselineStars, true) +
			weights.Background*deviation(image.Background, baselineBackground, false) +
			weights.HFR*deviation(image.HFR, baselineHFR, false) +
			weights.SNR*deviation(image.SNR, baselineSNR, true)

		baselineStars = update(baselineStars, image.StarCount)
		baselineBackground = update(baselineBackground, image.Background)
		baselineHFR = update(baselineHFR, image.HFR)
		baselineSNR = update(baselineSNR, image.SNR)
	}

	return scores
}

// buildSummary aggregates per-image results into bucket counts and issue
// flags.
func buildSummary(results []ImageQualityResult) SequenceSummary {
	var summary SequenceSummary
	for _, result := range results {
		switch score := result.QualityScore; {
		case score >= 0.90:
			summary.ExcellentCount++
		case score >= 0.70:
			summary.GoodCount++
		case score >= 0.50:
			summary.FairCount++
		case score >= 0.30:
			summary.PoorCount++
		default:
			summary.BadCount++
		}
		if result.Category != nil {
			switch *result.Category {
			case IssueLikelyClouds:
				summary.CloudEventsDetected++
			case IssueFocusDrift:
				summary.FocusDriftDetected = true
			case IssueTrackingError:
				summary.TrackingIssuesDetected = true
			}
		}
	}
	return summary
}

// collect extracts a single metric across the session.
func collect(images []ImageMetrics, metric func(ImageMetrics) *float64) []*float64 {
	values := make([]*float64, len(images))
	for i, image := range images {
		values[i] = metric(image)
	}
	return values
}

// percentileBounds computes the 5th and 95th percentile values of a
// non-empty slice.
func percentileBounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	p5 := int(math.Floor(float64(n) * 0.05))
	if p5 > n-1 {
		p5 = n - 1
	}
	p95 := int(math.Ceil(float64(n) * 0.95))
	if p95 > n-1 {
		p95 = n - 1
	}
	return sorted[p5], sorted[p95]
}

// normalize maps values into [0, 1] via linear clamp against the 5th/95th
// percentile bounds. Missing values stay missing; a degenerate spread maps
// every present value to exactly 1.
func normalize(values []*float64, higherBetter bool) []*float64 {
	var present []float64
	for _, value := range values {
		if value != nil {
			present = append(present, *value)
		}
	}
	results := make([]*float64, len(values))
	if len(present) == 0 {
		return results
	}

	p5, p95 := percentileBounds(present)
	spread := p95 - p5
	for i, value := range values {
		if value == nil {
			continue
		}
		var normalized float64
		if math.Abs(spread) < epsilon {
			normalized = 1.0
		} else if higherBetter {
			normalized = clamp((*value-p5)/spread, 0, 1)
		} else {
			normalized = clamp((p95-*value)/spread, 0, 1)
		}
		v := normalized
		results[i] = &v
	}
	return results
}

func normalizeHigherBetter(values []*float64) []*float64 {
	return normalize(values, true)
}

func normalizeLowerBetter(values []*float64) []*float64 {
	return normalize(values, false)
}

// bestValue finds the best observed value of a metric across the session, or
// nil if the metric is absent everywhere.
func bestValue(images []ImageMetrics, metric func(ImageMetrics) *float64, higherBetter bool) *float64 {
	var best *float64
	for _, image := range images {
		value := metric(image)
		if value == nil {
			continue
		}
		if best == nil || (higherBetter && *value > *best) || (!higherBetter && *value < *best) {
			v := *value
			best = &v
		}
	}
	return best
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	} else if value > high {
		return high
	}
	return value
}
