// Package overview derives the aggregate projections behind the overview
// screens, layering catalog statistics with file-existence information.
package overview

import (
	"context"
	"fmt"
	"time"

	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/filecheck"
)

// DateRange is an optional acquisition time span.
type DateRange struct {
	// Earliest is the earliest acquisition time in Unix seconds, if any.
	Earliest *int64 `json:"earliest"`
	// Latest is the latest acquisition time in Unix seconds, if any.
	Latest *int64 `json:"latest"`
}

// OverallStats is the catalog-wide statistics bundle.
type OverallStats struct {
	TotalImages    int64    `json:"total_images"`
	AcceptedImages int64    `json:"accepted_images"`
	RejectedImages int64    `json:"rejected_images"`
	PendingImages  int64    `json:"pending_images"`
	ActiveProjects int64    `json:"active_projects"`
	TotalProjects  int64    `json:"total_projects"`
	ActiveTargets  int64    `json:"active_targets"`
	TotalTargets   int64    `json:"total_targets"`
	UniqueFilters  []string `json:"unique_filters"`
	EarliestDate   *int64   `json:"earliest_date"`
	LatestDate     *int64   `json:"latest_date"`
	TotalDesired   int64    `json:"total_desired"`
	TotalAcquired  int64    `json:"total_acquired"`
	TotalAccepted  int64    `json:"total_accepted"`
	FilesFound     int      `json:"files_found"`
	FilesMissing   int      `json:"files_missing"`
}

// ProjectOverview is the per-project statistics bundle.
type ProjectOverview struct {
	ID             int64     `json:"id"`
	ProfileID      string    `json:"profile_id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	HasFiles       bool      `json:"has_files"`
	TargetCount    int64     `json:"target_count"`
	TotalImages    int64     `json:"total_images"`
	AcceptedImages int64     `json:"accepted_images"`
	RejectedImages int64     `json:"rejected_images"`
	PendingImages  int64     `json:"pending_images"`
	TotalDesired   int64     `json:"total_desired"`
	DateRange      DateRange `json:"date_range"`
	FiltersUsed    []string  `json:"filters_used"`
}

// TargetOverview is the per-target statistics bundle.
type TargetOverview struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	RA            *float64 `json:"ra"`
	Dec           *float64 `json:"dec"`
	Active        bool     `json:"active"`
	ProjectID     int64    `json:"project_id"`
	ProjectName   string   `json:"project_name"`
	ImageCount    int64    `json:"image_count"`
	AcceptedCount int64    `json:"accepted_count"`
	RejectedCount int64    `json:"rejected_count"`
	PendingCount  int64    `json:"pending_count"`
	TotalDesired  int64    `json:"total_desired"`
	HasFiles      bool     `json:"has_files"`
}

// recentActivityWindow is the trailing span covered by activity buckets.
const recentActivityWindow = 30 * 24 * time.Hour

// Service computes overview projections.
type Service struct {
	// catalog is the acquisition catalog.
	catalog *catalog.Catalog
	// cache is the file-existence cache used for enrichment.
	cache *filecheck.Cache
}

// NewService creates an overview service over the specified catalog and
// file-existence cache.
func NewService(cat *catalog.Catalog, cache *filecheck.Cache) *Service {
	return &Service{
		catalog: cat,
		cache:   cache,
	}
}

// Overall computes the global statistics bundle.
func (s *Service) Overall(ctx context.Context) (OverallStats, error) {
	statistics, err := s.catalog.OverallStatistics(ctx)
	if err != nil {
		return OverallStats{}, err
	}
	requested, err := s.catalog.OverallRequestedStatistics(ctx)
	if err != nil {
		return OverallStats{}, err
	}
	found, missing := s.cache.FileCounts()

	return OverallStats{
		TotalImages:    statistics.TotalImages,
		AcceptedImages: statistics.AcceptedImages,
		RejectedImages: statistics.RejectedImages,
		PendingImages:  statistics.PendingImages,
		ActiveProjects: statistics.ActiveProjects,
		TotalProjects:  statistics.TotalProjects,
		ActiveTargets:  statistics.ActiveTargets,
		TotalTargets:   statistics.TotalTargets,
		UniqueFilters:  statistics.UniqueFilters,
		EarliestDate:   statistics.EarliestDate,
		LatestDate:     statistics.LatestDate,
		TotalDesired:   requested.TotalDesired,
		TotalAcquired:  requested.TotalAcquired,
		TotalAccepted:  requested.TotalAccepted,
		FilesFound:     found,
		FilesMissing:   missing,
	}, nil
}

// Projects computes the per-project overview bundles.
func (s *Service) Projects(ctx context.Context) ([]ProjectOverview, error) {
	projects, err := s.catalog.ProjectsWithImages(ctx)
	if err != nil {
		return nil, err
	}

	overviews := make([]ProjectOverview, 0, len(projects))
	for _, project := range projects {
		statistics, err := s.catalog.ProjectOverviewStats(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("unable to compute statistics for project %d: %w", project.ID, err)
		}
		targetCount, err := s.catalog.TargetCountForProject(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		requested, err := s.catalog.ProjectRequestedStats(ctx, project.ID)
		if err != nil {
			return nil, err
		}

		overviews = append(overviews, ProjectOverview{
			ID:             project.ID,
			ProfileID:      project.ProfileID,
			Name:           project.Name,
			Description:    project.Description,
			HasFiles:       s.cache.ProjectHasFiles(project.ID),
			TargetCount:    targetCount,
			TotalImages:    statistics.TotalImages,
			AcceptedImages: statistics.AcceptedImages,
			RejectedImages: statistics.RejectedImages,
			PendingImages:  statistics.PendingImages,
			TotalDesired:   requested.TotalDesired,
			DateRange: DateRange{
				Earliest: statistics.EarliestDate,
				Latest:   statistics.LatestDate,
			},
			FiltersUsed: statistics.FiltersUsed,
		})
	}
	return overviews, nil
}

// Targets computes the cross-project target overview.
func (s *Service) Targets(ctx context.Context) ([]TargetOverview, error) {
	targets, err := s.catalog.TargetsWithRequestedStats(ctx)
	if err != nil {
		return nil, err
	}

	overviews := make([]TargetOverview, 0, len(targets))
	for _, target := range targets {
		overviews = append(overviews, TargetOverview{
			ID:            target.Target.ID,
			Name:          target.Target.Name,
			RA:            target.Target.RA,
			Dec:           target.Target.Dec,
			Active:        target.Target.Active,
			ProjectID:     target.Target.ProjectID,
			ProjectName:   target.ProjectName,
			ImageCount:    target.ImageCount,
			AcceptedCount: target.AcceptedCount,
			RejectedCount: target.RejectedCount,
			PendingCount:  target.PendingCount,
			TotalDesired:  target.TotalDesired,
			HasFiles:      s.cache.TargetHasFiles(target.Target.ID),
		})
	}
	return overviews, nil
}

// RecentActivity computes per-day buckets of added and graded images over
// the trailing window.
func (s *Service) RecentActivity(ctx context.Context) ([]catalog.ActivityBucket, error) {
	return s.catalog.RecentActivity(ctx, time.Now().Add(-recentActivityWindow))
}
