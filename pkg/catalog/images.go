package catalog

import (
	"context"
	"fmt"
	"strings"
)

// ImageFilter constrains an image query. Zero-valued fields are ignored.
type ImageFilter struct {
	// Status restricts results to a single grading status.
	Status *GradingStatus
	// ProjectName restricts results to projects whose name contains the
	// specified substring.
	ProjectName string
	// TargetName restricts results to targets whose name contains the
	// specified substring.
	TargetName string
	// TargetID restricts results to a single target.
	TargetID int64
	// FilterName restricts results to a single filter by exact name.
	FilterName string
	// MinTimestamp restricts results to images acquired at or after the
	// specified Unix timestamp.
	MinTimestamp int64
	// Limit bounds the number of results (0 means unbounded).
	Limit int64
	// Offset skips the specified number of results.
	Offset int64
}

const imageRecordColumns = `ai.Id, ai.projectId, ai.targetId, ai.acquireddate, ai.filtername,
       ai.gradingStatus, ai.metadata, ai.rejectreason, ai.profileId,
       p.name AS project_name, t.name AS target_name`

// QueryImages returns image records matching the specified filter, newest
// first.
func (c *Catalog) QueryImages(ctx context.Context, filter ImageFilter) ([]ImageRecord, error) {
	query := `SELECT ` + imageRecordColumns + `
	 FROM acquiredimage ai
	 JOIN project p ON ai.projectId = p.Id
	 JOIN target t ON ai.targetId = t.Id
	 WHERE 1=1`
	var arguments []interface{}

	if filter.Status != nil {
		query += " AND ai.gradingStatus = ?"
		arguments = append(arguments, int(*filter.Status))
	}
	if filter.ProjectName != "" {
		query += " AND p.name LIKE ?"
		arguments = append(arguments, "%"+filter.ProjectName+"%")
	}
	if filter.TargetName != "" {
		query += " AND t.name LIKE ?"
		arguments = append(arguments, "%"+filter.TargetName+"%")
	}
	if filter.TargetID != 0 {
		query += " AND ai.targetId = ?"
		arguments = append(arguments, filter.TargetID)
	}
	if filter.FilterName != "" {
		query += " AND ai.filtername = ?"
		arguments = append(arguments, filter.FilterName)
	}
	if filter.MinTimestamp != 0 {
		query += " AND ai.acquireddate >= ?"
		arguments = append(arguments, filter.MinTimestamp)
	}

	query += " ORDER BY ai.acquireddate DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		arguments = append(arguments, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			arguments = append(arguments, filter.Offset)
		}
	}

	rows, err := c.db.QueryContext(ctx, query, arguments...)
	if err != nil {
		return nil, fmt.Errorf("unable to query images: %w", err)
	}
	defer rows.Close()

	var records []ImageRecord
	for rows.Next() {
		record, err := scanImageRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan image: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ImagesByProject returns all image records for a project, newest first.
func (c *Catalog) ImagesByProject(ctx context.Context, projectID int64) ([]ImageRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+imageRecordColumns+`
		 FROM acquiredimage ai
		 JOIN project p ON ai.projectId = p.Id
		 JOIN target t ON ai.targetId = t.Id
		 WHERE ai.projectId = ?
		 ORDER BY ai.acquireddate DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query images: %w", err)
	}
	defer rows.Close()

	var records []ImageRecord
	for rows.Next() {
		record, err := scanImageRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan image: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ImagesByTarget returns all image records for a target, newest first.
func (c *Catalog) ImagesByTarget(ctx context.Context, targetID int64) ([]ImageRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+imageRecordColumns+`
		 FROM acquiredimage ai
		 JOIN project p ON ai.projectId = p.Id
		 JOIN target t ON ai.targetId = t.Id
		 WHERE ai.targetId = ?
		 ORDER BY ai.acquireddate DESC`,
		targetID,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query images: %w", err)
	}
	defer rows.Close()

	var records []ImageRecord
	for rows.Next() {
		record, err := scanImageRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan image: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ImagesByIDs fetches images by identifier.
func (c *Catalog) ImagesByIDs(ctx context.Context, ids []int64) ([]AcquiredImage, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	arguments := make([]interface{}, len(ids))
	for i, id := range ids {
		arguments[i] = id
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT Id, projectId, targetId, acquireddate, filtername,
		        gradingStatus, metadata, rejectreason, profileId
		 FROM acquiredimage
		 WHERE Id IN (`+placeholders+`)`,
		arguments...,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query images: %w", err)
	}
	defer rows.Close()

	var images []AcquiredImage
	for rows.Next() {
		var image AcquiredImage
		if err := rows.Scan(
			&image.ID, &image.ProjectID, &image.TargetID, &image.AcquiredDate,
			&image.FilterName, &image.GradingStatus, &image.Metadata,
			&image.RejectReason, &image.ProfileID,
		); err != nil {
			return nil, fmt.Errorf("unable to scan image: %w", err)
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

// ImageRecordByID fetches a single image record (with project and target
// names) by identifier.
func (c *Catalog) ImageRecordByID(ctx context.Context, id int64) (ImageRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+imageRecordColumns+`
		 FROM acquiredimage ai
		 JOIN project p ON ai.projectId = p.Id
		 JOIN target t ON ai.targetId = t.Id
		 WHERE ai.Id = ?`,
		id,
	)
	if err != nil {
		return ImageRecord{}, fmt.Errorf("unable to query image: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return ImageRecord{}, fmt.Errorf("unable to query image: %w", err)
		}
		return ImageRecord{}, fmt.Errorf("image %d: %w", id, ErrNotFound)
	}
	record, err := scanImageRecord(rows)
	if err != nil {
		return ImageRecord{}, fmt.Errorf("unable to scan image: %w", err)
	}
	return record, nil
}
