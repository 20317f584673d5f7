package catalog

import (
	"context"
	"fmt"
	"time"
)

// ProjectOverviewStats returns aggregate statistics for a single project.
func (c *Catalog) ProjectOverviewStats(ctx context.Context, projectID int64) (ProjectStats, error) {
	var stats ProjectStats
	err := c.db.QueryRowContext(ctx,
		`SELECT
		    COUNT(*) AS total_images,
		    COALESCE(SUM(CASE WHEN gradingStatus = 1 THEN 1 ELSE 0 END), 0) AS accepted,
		    COALESCE(SUM(CASE WHEN gradingStatus = 2 THEN 1 ELSE 0 END), 0) AS rejected,
		    COALESCE(SUM(CASE WHEN gradingStatus = 0 THEN 1 ELSE 0 END), 0) AS pending,
		    MIN(acquireddate) AS earliest_date,
		    MAX(acquireddate) AS latest_date
		 FROM acquiredimage
		 WHERE projectId = ?`,
		projectID,
	).Scan(
		&stats.TotalImages, &stats.AcceptedImages, &stats.RejectedImages,
		&stats.PendingImages, &stats.EarliestDate, &stats.LatestDate,
	)
	if err != nil {
		return ProjectStats{}, fmt.Errorf("unable to query project statistics: %w", err)
	}

	// Grab the distinct filters for the project.
	rows, err := c.db.QueryContext(ctx,
		`SELECT DISTINCT filtername FROM acquiredimage
		 WHERE projectId = ? AND filtername IS NOT NULL
		 ORDER BY filtername`,
		projectID,
	)
	if err != nil {
		return ProjectStats{}, fmt.Errorf("unable to query project filters: %w", err)
	}
	if stats.FiltersUsed, err = collectStrings(rows); err != nil {
		return ProjectStats{}, fmt.Errorf("unable to scan project filters: %w", err)
	}

	return stats, nil
}

// OverallStatistics returns catalog-wide aggregate statistics.
func (c *Catalog) OverallStatistics(ctx context.Context) (OverallStats, error) {
	var stats OverallStats
	err := c.db.QueryRowContext(ctx,
		`SELECT
		    COUNT(*) AS total_images,
		    COALESCE(SUM(CASE WHEN gradingStatus = 1 THEN 1 ELSE 0 END), 0) AS accepted,
		    COALESCE(SUM(CASE WHEN gradingStatus = 2 THEN 1 ELSE 0 END), 0) AS rejected,
		    COALESCE(SUM(CASE WHEN gradingStatus = 0 THEN 1 ELSE 0 END), 0) AS pending,
		    MIN(acquireddate) AS earliest_date,
		    MAX(acquireddate) AS latest_date
		 FROM acquiredimage`,
	).Scan(
		&stats.TotalImages, &stats.AcceptedImages, &stats.RejectedImages,
		&stats.PendingImages, &stats.EarliestDate, &stats.LatestDate,
	)
	if err != nil {
		return OverallStats{}, fmt.Errorf("unable to query image statistics: %w", err)
	}

	// Project counts: total, and active (having at least one image).
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project`,
	).Scan(&stats.TotalProjects); err != nil {
		return OverallStats{}, fmt.Errorf("unable to count projects: %w", err)
	}
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT projectId) FROM acquiredimage`,
	).Scan(&stats.ActiveProjects); err != nil {
		return OverallStats{}, fmt.Errorf("unable to count active projects: %w", err)
	}

	// Target counts.
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM target`,
	).Scan(&stats.TotalTargets); err != nil {
		return OverallStats{}, fmt.Errorf("unable to count targets: %w", err)
	}
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT targetId) FROM acquiredimage`,
	).Scan(&stats.ActiveTargets); err != nil {
		return OverallStats{}, fmt.Errorf("unable to count active targets: %w", err)
	}

	// Distinct filters.
	rows, err := c.db.QueryContext(ctx,
		`SELECT DISTINCT filtername FROM acquiredimage
		 WHERE filtername IS NOT NULL
		 ORDER BY filtername`,
	)
	if err != nil {
		return OverallStats{}, fmt.Errorf("unable to query filters: %w", err)
	}
	if stats.UniqueFilters, err = collectStrings(rows); err != nil {
		return OverallStats{}, fmt.Errorf("unable to scan filters: %w", err)
	}

	return stats, nil
}

// RecentActivity returns per-acquisition-day buckets over the specified
// trailing window: the images acquired on each day and how many of them are
// no longer pending. When an image was graded is not taken into account.
func (c *Catalog) RecentActivity(ctx context.Context, since time.Time) ([]ActivityBucket, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT
		    DATE(acquireddate, 'unixepoch') AS day,
		    COUNT(*) AS added,
		    COALESCE(SUM(CASE WHEN gradingStatus != 0 THEN 1 ELSE 0 END), 0) AS graded
		 FROM acquiredimage
		 WHERE acquireddate IS NOT NULL AND acquireddate >= ?
		 GROUP BY day
		 ORDER BY day`,
		since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query recent activity: %w", err)
	}
	defer rows.Close()

	var buckets []ActivityBucket
	for rows.Next() {
		var bucket ActivityBucket
		if err := rows.Scan(&bucket.Day, &bucket.Added, &bucket.Graded); err != nil {
			return nil, fmt.Errorf("unable to scan activity bucket: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}
