package catalog

import (
	"context"
	"fmt"
)

// ProjectRequestedStats returns summed exposure plan counters for a project,
// together with the filters the plans cover.
func (c *Catalog) ProjectRequestedStats(ctx context.Context, projectID int64) (RequestedStats, error) {
	var stats RequestedStats
	err := c.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(ep.desired), 0) AS total_desired,
		    COALESCE(SUM(ep.acquired), 0) AS total_acquired,
		    COALESCE(SUM(ep.accepted), 0) AS total_accepted
		 FROM target t
		 JOIN exposureplan ep ON t.Id = ep.targetid
		 WHERE t.projectId = ?`,
		projectID,
	).Scan(&stats.TotalDesired, &stats.TotalAcquired, &stats.TotalAccepted)
	if err != nil {
		return RequestedStats{}, fmt.Errorf("unable to query project plans: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT DISTINCT et.filtername
		 FROM target t
		 JOIN exposureplan ep ON t.Id = ep.targetid
		 JOIN exposuretemplate et ON ep.exposureTemplateId = et.Id
		 WHERE t.projectId = ?
		 ORDER BY et.filtername`,
		projectID,
	)
	if err != nil {
		return RequestedStats{}, fmt.Errorf("unable to query plan filters: %w", err)
	}
	if stats.FiltersUsed, err = collectStrings(rows); err != nil {
		return RequestedStats{}, fmt.Errorf("unable to scan plan filters: %w", err)
	}

	return stats, nil
}

// TargetRequestedStats returns per-filter exposure plan projections for a
// target.
func (c *Catalog) TargetRequestedStats(ctx context.Context, targetID int64) ([]PlanStats, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT et.filtername, ep.desired, ep.acquired, ep.accepted
		 FROM exposureplan ep
		 JOIN exposuretemplate et ON ep.exposureTemplateId = et.Id
		 WHERE ep.targetid = ?
		 ORDER BY et.filtername`,
		targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query target plans: %w", err)
	}
	defer rows.Close()

	var plans []PlanStats
	for rows.Next() {
		var plan PlanStats
		if err := rows.Scan(&plan.FilterName, &plan.Desired, &plan.Acquired, &plan.Accepted); err != nil {
			return nil, fmt.Errorf("unable to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// OverallRequestedStatistics returns catalog-wide summed exposure plan
// counters.
func (c *Catalog) OverallRequestedStatistics(ctx context.Context) (RequestedStats, error) {
	var stats RequestedStats
	err := c.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(desired), 0) AS total_desired,
		    COALESCE(SUM(acquired), 0) AS total_acquired,
		    COALESCE(SUM(accepted), 0) AS total_accepted
		 FROM exposureplan`,
	).Scan(&stats.TotalDesired, &stats.TotalAcquired, &stats.TotalAccepted)
	if err != nil {
		return RequestedStats{}, fmt.Errorf("unable to query plan statistics: %w", err)
	}
	return stats, nil
}
