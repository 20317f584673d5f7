package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// GradingUpdate encodes a single grading status change.
type GradingUpdate struct {
	// ImageID identifies the image to update.
	ImageID int64
	// Status is the new grading status.
	Status GradingStatus
	// RejectReason is the optional rejection reason.
	RejectReason *string
}

// ResetMode selects the population affected by a grading reset.
type ResetMode string

const (
	// ResetModeFull resets every non-pending record since the cutoff.
	ResetModeFull ResetMode = "full"
	// ResetModeAutomatic additionally spares records whose rejection reason
	// contains the literal token "Manual".
	ResetModeAutomatic ResetMode = "automatic"
)

// UpdateGradingStatus updates the grading status of a single image inside a
// transaction.
func (c *Catalog) UpdateGradingStatus(ctx context.Context, update GradingUpdate) error {
	return c.withTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE acquiredimage
			 SET gradingStatus = ?, rejectreason = ?
			 WHERE Id = ?`,
			int(update.Status), update.RejectReason, update.ImageID,
		)
		if err != nil {
			return fmt.Errorf("unable to update grading status: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("image %d: %w", update.ImageID, ErrNotFound)
		}
		return nil
	})
}

// BatchUpdateGradingStatus applies a set of grading updates atomically.
// Either every update lands or none do.
func (c *Catalog) BatchUpdateGradingStatus(ctx context.Context, updates []GradingUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return c.withTransaction(ctx, func(tx *sql.Tx) error {
		for _, update := range updates {
			if _, err := tx.ExecContext(ctx,
				`UPDATE acquiredimage
				 SET gradingStatus = ?, rejectreason = ?
				 WHERE Id = ?`,
				int(update.Status), update.RejectReason, update.ImageID,
			); err != nil {
				return fmt.Errorf("unable to update image %d: %w", update.ImageID, err)
			}
		}
		return nil
	})
}

// resetConditions builds the WHERE clause fragment shared by reset and
// count-to-reset so that both operate on the same population.
func resetConditions(mode ResetMode, projectFilter, targetFilter string) (string, []interface{}) {
	var conditions string
	var arguments []interface{}

	if projectFilter != "" {
		conditions += " AND projectId IN (SELECT Id FROM project WHERE name LIKE ?)"
		arguments = append(arguments, "%"+projectFilter+"%")
	}
	if targetFilter != "" {
		conditions += " AND targetId IN (SELECT Id FROM target WHERE name LIKE ?)"
		arguments = append(arguments, "%"+targetFilter+"%")
	}
	if mode == ResetModeAutomatic {
		conditions += " AND (gradingStatus != 2 OR rejectreason NOT LIKE '%Manual%')"
	}

	// Pending records are already reset; excluding them keeps the affected
	// population identical between counting and updating.
	conditions += " AND gradingStatus != 0"

	return conditions, arguments
}

// ResetGradingStatus resets grading status to pending for every record
// acquired at or after the cutoff, constrained by mode and optional project
// and target name filters. It returns the number of affected records.
func (c *Catalog) ResetGradingStatus(ctx context.Context, mode ResetMode, cutoff int64, projectFilter, targetFilter string) (int64, error) {
	conditions, arguments := resetConditions(mode, projectFilter, targetFilter)

	var affected int64
	err := c.withTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE acquiredimage
			 SET gradingStatus = 0, rejectreason = NULL
			 WHERE acquireddate >= ?`+conditions,
			append([]interface{}{cutoff}, arguments...)...,
		)
		if err != nil {
			return fmt.Errorf("unable to reset grading status: %w", err)
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("unable to determine affected rows: %w", err)
		}
		return nil
	})
	return affected, err
}

// CountImagesToReset returns the size of the population that
// ResetGradingStatus would affect with the same parameters.
func (c *Catalog) CountImagesToReset(ctx context.Context, mode ResetMode, cutoff int64, projectFilter, targetFilter string) (int64, error) {
	conditions, arguments := resetConditions(mode, projectFilter, targetFilter)

	var count int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM acquiredimage
		 WHERE acquireddate >= ?`+conditions,
		append([]interface{}{cutoff}, arguments...)...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unable to count images to reset: %w", err)
	}
	return count, nil
}
