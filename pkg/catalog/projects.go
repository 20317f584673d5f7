package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested catalog entity does not exist.
var ErrNotFound = errors.New("not found")

// Projects returns all projects, ordered by name.
func (c *Catalog) Projects(ctx context.Context) ([]Project, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT Id, profileId, name, description
		 FROM project
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var project Project
		if err := rows.Scan(&project.ID, &project.ProfileID, &project.Name, &project.Description); err != nil {
			return nil, fmt.Errorf("unable to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// ProjectsWithImages returns all projects that have at least one acquired
// image, ordered by name.
func (c *Catalog) ProjectsWithImages(ctx context.Context) ([]Project, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT DISTINCT p.Id, p.profileId, p.name, p.description
		 FROM project p
		 INNER JOIN acquiredimage ai ON p.Id = ai.projectId
		 ORDER BY p.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query projects with images: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var project Project
		if err := rows.Scan(&project.ID, &project.ProfileID, &project.Name, &project.Description); err != nil {
			return nil, fmt.Errorf("unable to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// FindProjectIDByName resolves a project identifier by exact name.
func (c *Catalog) FindProjectIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := c.db.QueryRowContext(ctx,
		`SELECT Id FROM project WHERE name = ?`, name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("project %q: %w", name, ErrNotFound)
	} else if err != nil {
		return 0, fmt.Errorf("unable to resolve project: %w", err)
	}
	return id, nil
}

// TargetCountForProject returns the number of targets belonging to a project.
func (c *Catalog) TargetCountForProject(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM target WHERE projectId = ?`, projectID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("unable to count targets: %w", err)
	}
	return count, nil
}
