// Package analysis scores the quality of time-ordered image sequences and
// classifies the likely root cause of degraded frames.
package analysis

import (
	"github.com/fitsight-io/fitsight/pkg/catalog"
)

// IssueCategory identifies a rule-based diagnosis for a degraded frame.
type IssueCategory string

const (
	// IssueLikelyClouds indicates a star count drop with a background rise.
	IssueLikelyClouds IssueCategory = "likely_clouds"
	// IssuePossibleObstruction indicates a star count drop with a stable
	// background.
	IssuePossibleObstruction IssueCategory = "possible_obstruction"
	// IssueFocusDrift indicates a gradual HFR rise with stable eccentricity.
	IssueFocusDrift IssueCategory = "focus_drift"
	// IssueTrackingError indicates an eccentricity rise with a stable star
	// count.
	IssueTrackingError IssueCategory = "tracking_error"
	// IssueWindShake indicates simultaneous HFR, star count, and
	// eccentricity disturbance.
	IssueWindShake IssueCategory = "wind_shake"
	// IssueSkyBrightening indicates a gradual background rise with a stable
	// star count.
	IssueSkyBrightening IssueCategory = "sky_brightening"
	// IssueUnknownDegradation indicates degradation with no matching
	// pattern.
	IssueUnknownDegradation IssueCategory = "unknown_degradation"
)

// ImageMetrics holds the raw metric values extracted from an image's
// metadata. Nil fields indicate missing metrics.
type ImageMetrics struct {
	// ImageID identifies the image.
	ImageID int64 `json:"image_id"`
	// Timestamp is the sort timestamp in Unix seconds, if known.
	Timestamp *int64 `json:"timestamp"`
	// StarCount is the detected star count.
	StarCount *float64 `json:"star_count"`
	// HFR is the half-flux radius.
	HFR *float64 `json:"hfr"`
	// Eccentricity is the mean star eccentricity.
	Eccentricity *float64 `json:"eccentricity"`
	// SNR is the signal-to-noise ratio.
	SNR *float64 `json:"snr"`
	// Background is the background level.
	Background *float64 `json:"background"`
}

// NormalizedMetrics holds per-image normalized metric values, where 0 is the
// worst in the sequence and 1 the best. Nil fields indicate missing inputs.
type NormalizedMetrics struct {
	StarCount    *float64 `json:"star_count"`
	HFR          *float64 `json:"hfr"`
	Eccentricity *float64 `json:"eccentricity"`
	SNR          *float64 `json:"snr"`
	Background   *float64 `json:"background"`
}

// ImageQualityResult is the quality verdict for a single image within its
// sequence.
type ImageQualityResult struct {
	// ImageID identifies the image.
	ImageID int64 `json:"image_id"`
	// QualityScore is the final composite score in [0, 1].
	QualityScore float64 `json:"quality_score"`
	// TemporalAnomalyScore is the nonnegative EWMA deviation score.
	TemporalAnomalyScore float64 `json:"temporal_anomaly_score"`
	// Category is the rule-based diagnosis, if any.
	Category *IssueCategory `json:"category"`
	// NormalizedMetrics are the per-metric normalized values.
	NormalizedMetrics NormalizedMetrics `json:"normalized_metrics"`
	// Details is a human-readable explanation of the diagnosis, if any.
	Details *string `json:"details"`
}

// ReferenceValues holds the best observed value of each metric in a
// sequence, or nil where a metric is absent everywhere.
type ReferenceValues struct {
	BestStarCount    *float64 `json:"best_star_count"`
	BestHFR          *float64 `json:"best_hfr"`
	BestEccentricity *float64 `json:"best_eccentricity"`
	BestSNR          *float64 `json:"best_snr"`
	BestBackground   *float64 `json:"best_background"`
}

// SequenceSummary aggregates a scored sequence into quality buckets and
// issue flags.
type SequenceSummary struct {
	ExcellentCount        int  `json:"excellent_count"`
	GoodCount             int  `json:"good_count"`
	FairCount             int  `json:"fair_count"`
	PoorCount             int  `json:"poor_count"`
	BadCount              int  `json:"bad_count"`
	CloudEventsDetected   int  `json:"cloud_events_detected"`
	FocusDriftDetected    bool `json:"focus_drift_detected"`
	TrackingIssuesDetected bool `json:"tracking_issues_detected"`
}

// ScoredSequence is the analyzer output for one session.
type ScoredSequence struct {
	// TargetID identifies the target.
	TargetID int64 `json:"target_id"`
	// TargetName is the target name.
	TargetName string `json:"target_name"`
	// FilterName is the filter name the sequence was restricted to.
	FilterName string `json:"filter_name"`
	// SessionStart is the first image timestamp, if known.
	SessionStart *int64 `json:"session_start"`
	// SessionEnd is the last image timestamp, if known.
	SessionEnd *int64 `json:"session_end"`
	// ImageCount is the number of images in the session.
	ImageCount int `json:"image_count"`
	// ReferenceValues are the best observed metric values.
	ReferenceValues ReferenceValues `json:"reference_values"`
	// Images are the per-image results in timestamp order.
	Images []ImageQualityResult `json:"images"`
	// Summary aggregates the results.
	Summary SequenceSummary `json:"summary"`
}

// QualityWeights weights the composite quality score.
type QualityWeights struct {
	StarCount    float64 `json:"star_count"`
	HFR          float64 `json:"hfr"`
	Eccentricity float64 `json:"eccentricity"`
	SNR          float64 `json:"snr"`
	Background   float64 `json:"background"`
}

// DefaultQualityWeights returns the default composite weights, which sum to
// one.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		StarCount:    0.30,
		HFR:          0.25,
		Eccentricity: 0.10,
		SNR:          0.25,
		Background:   0.10,
	}
}

// Normalized returns the weights scaled to sum to one. All-zero weights fall
// back to the defaults.
func (w QualityWeights) Normalized() QualityWeights {
	sum := w.StarCount + w.HFR + w.Eccentricity + w.SNR + w.Background
	if sum < 1e-10 {
		return DefaultQualityWeights()
	}
	if diff := sum - 1.0; diff > -1e-10 && diff < 1e-10 {
		return w
	}
	return QualityWeights{
		StarCount:    w.StarCount / sum,
		HFR:          w.HFR / sum,
		Eccentricity: w.Eccentricity / sum,
		SNR:          w.SNR / sum,
		Background:   w.Background / sum,
	}
}

// TemporalWeights weights the temporal anomaly score.
type TemporalWeights struct {
	StarCount  float64 `json:"star_count"`
	Background float64 `json:"background"`
	HFR        float64 `json:"hfr"`
	SNR        float64 `json:"snr"`
}

// DefaultTemporalWeights returns the default temporal weights.
func DefaultTemporalWeights() TemporalWeights {
	return TemporalWeights{
		StarCount:  0.40,
		Background: 0.25,
		HFR:        0.20,
		SNR:        0.15,
	}
}

// Configuration parameterizes the analyzer.
type Configuration struct {
	// SessionGapMinutes is the gap beyond which a new session starts.
	SessionGapMinutes int64 `json:"session_gap_minutes"`
	// MinSequenceLength is the length below which the short-sequence
	// short-circuit applies.
	MinSequenceLength int `json:"min_sequence_length"`
	// EWMAAlpha is the baseline smoothing factor.
	EWMAAlpha float64 `json:"ewma_alpha"`
	// QualityWeights weight the composite score.
	QualityWeights QualityWeights `json:"quality_weights"`
	// TemporalWeights weight the temporal anomaly score.
	TemporalWeights TemporalWeights `json:"temporal_weights"`
	// StarDropThreshold is the fractional star count drop threshold.
	StarDropThreshold float64 `json:"star_drop_threshold"`
	// BackgroundRiseThreshold is the fractional background rise threshold.
	BackgroundRiseThreshold float64 `json:"bg_rise_threshold"`
	// HFRRiseThreshold is the fractional HFR rise threshold.
	HFRRiseThreshold float64 `json:"hfr_rise_threshold"`
	// SuddenChangeRate is the per-frame rate below which a change counts as
	// gradual.
	SuddenChangeRate float64 `json:"sudden_change_rate"`
}

// DefaultConfiguration returns the default analyzer configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		SessionGapMinutes:       60,
		MinSequenceLength:       3,
		EWMAAlpha:               0.3,
		QualityWeights:          DefaultQualityWeights(),
		TemporalWeights:         DefaultTemporalWeights(),
		StarDropThreshold:       0.25,
		BackgroundRiseThreshold: 0.10,
		HFRRiseThreshold:        0.15,
		SuddenChangeRate:        0.15,
	}
}

// ExtractMetrics derives analyzer inputs from an acquired image's metadata
// blob. The acquisition date, when present, is the sort timestamp; otherwise
// the exposure start time from the metadata is used.
func ExtractMetrics(imageID int64, metadataBlob string, acquiredDate *int64) ImageMetrics {
	metadata := catalog.ParseMetadata(metadataBlob)

	timestamp := acquiredDate
	if timestamp == nil {
		timestamp = metadata.StartTimestamp()
	}

	return ImageMetrics{
		ImageID:      imageID,
		Timestamp:    timestamp,
		StarCount:    metadata.DetectedStars,
		HFR:          metadata.HFR,
		Eccentricity: metadata.Eccentricity,
		SNR:          metadata.SNR,
		Background:   metadata.BackgroundLevel(),
	}
}
