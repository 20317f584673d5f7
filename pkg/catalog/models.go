package catalog

import (
	"fmt"
)

// GradingStatus represents the grading state of an acquired image.
type GradingStatus int

const (
	// GradingPending indicates that an image has not been graded.
	GradingPending GradingStatus = 0
	// GradingAccepted indicates that an image has been accepted.
	GradingAccepted GradingStatus = 1
	// GradingRejected indicates that an image has been rejected.
	GradingRejected GradingStatus = 2
)

// Description returns a human-readable description of the grading status.
func (s GradingStatus) Description() string {
	switch s {
	case GradingPending:
		return "Pending"
	case GradingAccepted:
		return "Accepted"
	case GradingRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.MarshalText.
func (s GradingStatus) MarshalText() ([]byte, error) {
	var result string
	switch s {
	case GradingPending:
		result = "pending"
	case GradingAccepted:
		result = "accepted"
	case GradingRejected:
		result = "rejected"
	default:
		return nil, fmt.Errorf("invalid grading status: %d", s)
	}
	return []byte(result), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (s *GradingStatus) UnmarshalText(textBytes []byte) error {
	text := string(textBytes)
	switch text {
	case "pending":
		*s = GradingPending
	case "accepted":
		*s = GradingAccepted
	case "rejected":
		*s = GradingRejected
	default:
		return fmt.Errorf("unknown grading status: %s", text)
	}
	return nil
}

// ParseGradingStatus converts a numeric status value to a GradingStatus,
// validating its range.
func ParseGradingStatus(value int) (GradingStatus, error) {
	switch value {
	case 0, 1, 2:
		return GradingStatus(value), nil
	default:
		return 0, fmt.Errorf("invalid grading status value: %d", value)
	}
}

// Project represents a capture project owned by the catalog.
type Project struct {
	// ID is the stable project identifier.
	ID int64 `json:"id"`
	// ProfileID is the capture profile tag.
	ProfileID string `json:"profile_id"`
	// Name is the human-readable project name.
	Name string `json:"name"`
	// Description is the optional project description.
	Description *string `json:"description"`
}

// Target represents a celestial target belonging to a project.
type Target struct {
	// ID is the stable target identifier.
	ID int64 `json:"id"`
	// ProjectID identifies the owning project.
	ProjectID int64 `json:"project_id"`
	// Name is the target name.
	Name string `json:"name"`
	// Active indicates whether or not the target is active.
	Active bool `json:"active"`
	// RA is the optional right ascension.
	RA *float64 `json:"ra"`
	// Dec is the optional declination.
	Dec *float64 `json:"dec"`
}

// AcquiredImage represents a single logged exposure.
type AcquiredImage struct {
	// ID is the stable image identifier.
	ID int64 `json:"id"`
	// ProjectID identifies the owning project.
	ProjectID int64 `json:"project_id"`
	// TargetID identifies the owning target.
	TargetID int64 `json:"target_id"`
	// AcquiredDate is the optional acquisition time in Unix seconds.
	AcquiredDate *int64 `json:"acquired_date"`
	// FilterName is the filter in use at acquisition time.
	FilterName string `json:"filter_name"`
	// GradingStatus is the numeric grading state.
	GradingStatus int `json:"grading_status"`
	// Metadata is the opaque textual metadata blob.
	Metadata string `json:"metadata"`
	// RejectReason is the optional rejection reason.
	RejectReason *string `json:"reject_reason"`
	// ProfileID is the optional capture profile tag.
	ProfileID *string `json:"profile_id"`
}

// ImageRecord bundles an acquired image with its project and target names,
// the shape most queries return.
type ImageRecord struct {
	// Image is the acquired image.
	Image AcquiredImage
	// ProjectName is the owning project's name.
	ProjectName string
	// TargetName is the owning target's name.
	TargetName string
}

// TargetStats bundles a target with its per-status image counts.
type TargetStats struct {
	// Target is the target.
	Target Target
	// ImageCount is the total number of images for the target.
	ImageCount int64
	// AcceptedCount is the number of accepted images.
	AcceptedCount int64
	// RejectedCount is the number of rejected images.
	RejectedCount int64
	// PendingCount is the number of pending images.
	PendingCount int64
}

// TargetProjectStats extends TargetStats with project identity and desired
// exposure totals.
type TargetProjectStats struct {
	TargetStats
	// ProjectName is the owning project's name.
	ProjectName string
	// TotalDesired is the summed desired exposure count from exposure plans.
	TotalDesired int64
}

// ProjectStats captures per-project aggregate statistics.
type ProjectStats struct {
	// TotalImages is the total image count.
	TotalImages int64
	// AcceptedImages is the accepted image count.
	AcceptedImages int64
	// RejectedImages is the rejected image count.
	RejectedImages int64
	// PendingImages is the pending image count.
	PendingImages int64
	// FiltersUsed are the distinct filter names used by the project.
	FiltersUsed []string
	// EarliestDate is the earliest acquisition time, if any.
	EarliestDate *int64
	// LatestDate is the latest acquisition time, if any.
	LatestDate *int64
}

// OverallStats captures catalog-wide aggregate statistics.
type OverallStats struct {
	// TotalProjects is the total project count.
	TotalProjects int64
	// ActiveProjects is the count of projects with at least one image.
	ActiveProjects int64
	// TotalTargets is the total target count.
	TotalTargets int64
	// ActiveTargets is the count of targets with at least one image.
	ActiveTargets int64
	// TotalImages is the total image count.
	TotalImages int64
	// AcceptedImages is the accepted image count.
	AcceptedImages int64
	// RejectedImages is the rejected image count.
	RejectedImages int64
	// PendingImages is the pending image count.
	PendingImages int64
	// UniqueFilters are the distinct filter names in use.
	UniqueFilters []string
	// EarliestDate is the earliest acquisition time, if any.
	EarliestDate *int64
	// LatestDate is the latest acquisition time, if any.
	LatestDate *int64
}

// PlanStats captures desired/acquired/accepted exposure counts for a filter.
type PlanStats struct {
	// FilterName is the exposure template's filter.
	FilterName string `json:"filter_name"`
	// Desired is the planned exposure count.
	Desired int64 `json:"desired"`
	// Acquired is the acquired exposure count.
	Acquired int64 `json:"acquired"`
	// Accepted is the accepted exposure count.
	Accepted int64 `json:"accepted"`
}

// RequestedStats captures summed plan counters plus the filters they cover.
type RequestedStats struct {
	// TotalDesired is the summed desired exposure count.
	TotalDesired int64
	// TotalAcquired is the summed acquired exposure count.
	TotalAcquired int64
	// TotalAccepted is the summed accepted exposure count.
	TotalAccepted int64
	// FiltersUsed are the filters covered by the plans.
	FiltersUsed []string
}

// ActivityBucket captures per-day activity counts.
type ActivityBucket struct {
	// Day is the bucket day formatted as YYYY-MM-DD.
	Day string `json:"day"`
	// Added is the number of images acquired on the day.
	Added int64 `json:"added"`
	// Graded is the number of the day's acquired images that are no longer
	// pending; when they were graded is not taken into account.
	Graded int64 `json:"graded"`
}
