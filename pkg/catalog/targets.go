package catalog

import (
	"context"
	"fmt"
	"strings"
)

// TargetsWithStats returns the targets of a project with per-status image
// counts, ordered by name. Targets without images are included with zero
// counts.
func (c *Catalog) TargetsWithStats(ctx context.Context, projectID int64) ([]TargetStats, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT t.Id, t.name, t.active, t.ra, t.dec,
		        COUNT(ai.Id) AS image_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 1 THEN 1 ELSE 0 END), 0) AS accepted_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 2 THEN 1 ELSE 0 END), 0) AS rejected_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 0 THEN 1 ELSE 0 END), 0) AS pending_count
		 FROM target t
		 LEFT JOIN acquiredimage ai ON t.Id = ai.targetId
		 WHERE t.projectId = ?
		 GROUP BY t.Id, t.name, t.active, t.ra, t.dec
		 ORDER BY t.name`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query targets: %w", err)
	}
	defer rows.Close()

	var targets []TargetStats
	for rows.Next() {
		var stats TargetStats
		stats.Target.ProjectID = projectID
		if err := rows.Scan(
			&stats.Target.ID, &stats.Target.Name, &stats.Target.Active,
			&stats.Target.RA, &stats.Target.Dec,
			&stats.ImageCount, &stats.AcceptedCount, &stats.RejectedCount,
			&stats.PendingCount,
		); err != nil {
			return nil, fmt.Errorf("unable to scan target: %w", err)
		}
		targets = append(targets, stats)
	}
	return targets, rows.Err()
}

// TargetsByIDs fetches targets by identifier.
func (c *Catalog) TargetsByIDs(ctx context.Context, ids []int64) ([]Target, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	arguments := make([]interface{}, len(ids))
	for i, id := range ids {
		arguments[i] = id
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT Id, projectId, name, active, ra, dec
		 FROM target
		 WHERE Id IN (`+placeholders+`)`,
		arguments...,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query targets: %w", err)
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var target Target
		if err := rows.Scan(
			&target.ID, &target.ProjectID, &target.Name, &target.Active,
			&target.RA, &target.Dec,
		); err != nil {
			return nil, fmt.Errorf("unable to scan target: %w", err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// TargetsWithProjectInfo returns every target that has at least one image,
// together with project identity and per-status counts, ordered by project
// then target name.
func (c *Catalog) TargetsWithProjectInfo(ctx context.Context) ([]TargetProjectStats, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT t.Id, t.name, t.active, t.ra, t.dec, t.projectId, p.name,
		        COUNT(ai.Id) AS image_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 1 THEN 1 ELSE 0 END), 0) AS accepted_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 2 THEN 1 ELSE 0 END), 0) AS rejected_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 0 THEN 1 ELSE 0 END), 0) AS pending_count
		 FROM target t
		 INNER JOIN project p ON t.projectId = p.Id
		 LEFT JOIN acquiredimage ai ON t.Id = ai.targetId
		 GROUP BY t.Id, t.name, t.active, t.ra, t.dec, t.projectId, p.name
		 HAVING COUNT(ai.Id) > 0
		 ORDER BY p.name, t.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query targets: %w", err)
	}
	defer rows.Close()

	var targets []TargetProjectStats
	for rows.Next() {
		var stats TargetProjectStats
		if err := rows.Scan(
			&stats.Target.ID, &stats.Target.Name, &stats.Target.Active,
			&stats.Target.RA, &stats.Target.Dec, &stats.Target.ProjectID,
			&stats.ProjectName,
			&stats.ImageCount, &stats.AcceptedCount, &stats.RejectedCount,
			&stats.PendingCount,
		); err != nil {
			return nil, fmt.Errorf("unable to scan target: %w", err)
		}
		targets = append(targets, stats)
	}
	return targets, rows.Err()
}

// TargetsWithRequestedStats returns every target with at least one image or a
// non-empty exposure plan, enriched with desired exposure totals.
func (c *Catalog) TargetsWithRequestedStats(ctx context.Context) ([]TargetProjectStats, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT t.Id, t.name, t.active, t.ra, t.dec, t.projectId, p.name,
		        COUNT(DISTINCT ai.Id) AS image_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 1 THEN 1 ELSE 0 END), 0) AS accepted_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 2 THEN 1 ELSE 0 END), 0) AS rejected_count,
		        COALESCE(SUM(CASE WHEN ai.gradingStatus = 0 THEN 1 ELSE 0 END), 0) AS pending_count,
		        COALESCE((SELECT SUM(ep.desired) FROM exposureplan ep WHERE ep.targetid = t.Id), 0) AS total_desired
		 FROM target t
		 INNER JOIN project p ON t.projectId = p.Id
		 LEFT JOIN acquiredimage ai ON t.Id = ai.targetId
		 GROUP BY t.Id, t.name, t.active, t.ra, t.dec, t.projectId, p.name
		 HAVING COUNT(ai.Id) > 0 OR total_desired > 0
		 ORDER BY p.name, t.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query targets: %w", err)
	}
	defer rows.Close()

	var targets []TargetProjectStats
	for rows.Next() {
		var stats TargetProjectStats
		if err := rows.Scan(
			&stats.Target.ID, &stats.Target.Name, &stats.Target.Active,
			&stats.Target.RA, &stats.Target.Dec, &stats.Target.ProjectID,
			&stats.ProjectName,
			&stats.ImageCount, &stats.AcceptedCount, &stats.RejectedCount,
			&stats.PendingCount, &stats.TotalDesired,
		); err != nil {
			return nil, fmt.Errorf("unable to scan target: %w", err)
		}
		targets = append(targets, stats)
	}
	return targets, rows.Err()
}
