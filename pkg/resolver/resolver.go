// Package resolver locates the FITS file backing a catalog image record,
// first by probing the fixed set of layouts the capture tool writes and then
// by falling back to the directory tree index.
package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/dirtree"
	"github.com/fitsight-io/fitsight/pkg/logging"
)

// ErrNotFound indicates that no file could be located for an image.
var ErrNotFound = errors.New("file not found")

// Resolver resolves catalog image records to filesystem paths.
type Resolver struct {
	// roots are the configured image roots, in priority order.
	roots []string
	// trees is the directory tree cache used for fallback lookups.
	trees *dirtree.Cache
	// logger is the resolver logger.
	logger *logging.Logger
}

// New creates a new resolver over the specified roots and directory tree
// cache.
func New(roots []string, trees *dirtree.Cache, logger *logging.Logger) *Resolver {
	return &Resolver{
		roots:  roots,
		trees:  trees,
		logger: logger,
	}
}

// CandidatePaths enumerates the layouts the capture tool is known to write
// for the specified acquisition date, target, and filename beneath a single
// root.
func CandidatePaths(root, date, targetName, filename string) []string {
	return []string{
		filepath.Join(root, date, targetName, filename),
		filepath.Join(root, targetName, date, filename),
		filepath.Join(root, targetName, date, "LIGHT", filename),
		filepath.Join(root, date, targetName, "LIGHT", filename),
		filepath.Join(root, targetName, filename),
		filepath.Join(root, date, filename),
		filepath.Join(root, filename),
	}
}

// FindFITSFile locates the FITS file for the specified image. It first
// probes the candidate layouts across all roots, then falls back to the
// directory tree index, skipping stale index entries silently. If a path is
// returned, it existed on disk at the moment of return. The resolution never
// mutates state and never walks directories.
func (r *Resolver) FindFITSFile(image *catalog.AcquiredImage, targetName, filename string) (string, error) {
	r.logger.Debugf(
		"Resolving image %d (file %s, target %s)",
		image.ID, filename, targetName,
	)

	// Probe candidate layouts. Template resolution requires the acquisition
	// date; images without one go straight to the index.
	if image.AcquiredDate != nil {
		date := time.Unix(*image.AcquiredDate, 0).UTC().Format("2006-01-02")
		for _, root := range r.roots {
			for _, candidate := range CandidatePaths(root, date, targetName, filename) {
				if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
					r.logger.Debugf("Resolved image %d via layout: %s", image.ID, candidate)
					return candidate, nil
				}
			}
		}
	}

	// Fall back to the directory tree index. The lookup itself is an
	// in-memory map access; only the existence probes touch disk.
	tree, err := r.trees.Get()
	if err != nil {
		return "", err
	}
	for _, candidate := range tree.FindFile(filename) {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			r.logger.Debugf("Resolved image %d via index: %s", image.ID, candidate)
			return candidate, nil
		}
		r.logger.Trace("Stale index entry for %s: %s", filename, candidate)
	}

	// Nothing matched.
	return "", ErrNotFound
}
