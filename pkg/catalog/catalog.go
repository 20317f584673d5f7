package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fitsight-io/fitsight/pkg/logging"
)

// Catalog provides access to the acquisition catalog. It is safe for
// concurrent use; the underlying pool is restricted to a single connection so
// that all SQL calls are serialized.
type Catalog struct {
	// db is the underlying database handle.
	db *sql.DB
	// path is the catalog path, retained for diagnostics.
	path string
	// logger is the catalog logger.
	logger *logging.Logger
}

// Open opens the acquisition catalog at the specified path.
func Open(path string, logger *logging.Logger) (*Catalog, error) {
	// Open the database. The busy timeout keeps concurrent writers from the
	// capture tool from surfacing as spurious errors.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("unable to open catalog: %w", err)
	}

	// Restrict the pool to a single connection. The catalog connection is a
	// shared handle serialized behind the pool's internal locking.
	db.SetMaxOpenConns(1)

	// Verify connectivity.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to catalog: %w", err)
	}

	logger.Infof("Opened acquisition catalog: %s", path)

	// Success.
	return &Catalog{
		db:     db,
		path:   path,
		logger: logger,
	}, nil
}

// Path returns the catalog path.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the catalog.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// collectStrings drains a single-column string result set.
func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var results []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		results = append(results, value)
	}
	return results, rows.Err()
}

// scanImageRecord scans an image row joined with project and target names.
func scanImageRecord(rows *sql.Rows) (ImageRecord, error) {
	var record ImageRecord
	err := rows.Scan(
		&record.Image.ID,
		&record.Image.ProjectID,
		&record.Image.TargetID,
		&record.Image.AcquiredDate,
		&record.Image.FilterName,
		&record.Image.GradingStatus,
		&record.Image.Metadata,
		&record.Image.RejectReason,
		&record.Image.ProfileID,
		&record.ProjectName,
		&record.TargetName,
	)
	return record, err
}

// withTransaction runs the specified callback inside a transaction,
// committing on success and rolling back on error.
func (c *Catalog) withTransaction(ctx context.Context, callback func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	if err := callback(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unable to commit transaction: %w", err)
	}
	return nil
}
