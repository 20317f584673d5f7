package filecheck

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/dirtree"
	"github.com/fitsight-io/fitsight/pkg/logging"
)

// Coordinator drives singleton background refreshes of the file-existence
// cache. Only one refresh runs at a time; starting one is an atomic
// compare-and-set on the cache's in-progress flag.
type Coordinator struct {
	// ctx bounds the lifetime of spawned refreshes. It is typically the
	// server's run context.
	ctx context.Context
	// cache is the file-existence cache being maintained.
	cache *Cache
	// catalog is the acquisition catalog.
	catalog *catalog.Catalog
	// trees is the directory tree cache rebuilt during refreshes.
	trees *dirtree.Cache
	// logger is the coordinator logger.
	logger *logging.Logger
}

// NewCoordinator creates a refresh coordinator over the specified cache,
// catalog, and directory tree cache. Spawned refreshes are bounded by the
// specified context.
func NewCoordinator(ctx context.Context, cache *Cache, cat *catalog.Catalog, trees *dirtree.Cache, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		ctx:     ctx,
		cache:   cache,
		catalog: cat,
		trees:   trees,
		logger:  logger,
	}
}

// Cache returns the underlying file-existence cache.
func (c *Coordinator) Cache() *Cache {
	return c.cache
}

// EnsureAvailable checks the cache state and starts the singleton refresh if
// one is needed. It never blocks on the refresh itself, and it returns the
// status a read at this moment should annotate responses with. Two
// consecutive calls without a state change return the same status.
func (c *Coordinator) EnsureAvailable() RefreshStatus {
	status := c.cache.Status()
	if status != RefreshStatusNeedsRefresh {
		return status
	}

	// The cache needs a refresh. Try to claim the singleton slot; losing the
	// race just means another request claimed it first.
	if !c.start() {
		return c.cache.Status()
	}

	// A refresh is now running. Readers with stale data keep serving it.
	if c.cache.HasInitialData() {
		return RefreshStatusInProgressServeStale
	}
	return RefreshStatusInProgressWait
}

// ForceRefresh starts a refresh regardless of cache freshness. It returns
// the resulting status without blocking. If a refresh is already running, no
// new refresh is started.
func (c *Coordinator) ForceRefresh() RefreshStatus {
	c.start()
	return c.cache.Status()
}

// start attempts to claim the refresh slot and spawn the refresh task. It
// returns false if a refresh was already running.
func (c *Coordinator) start() bool {
	runID := uuid.NewString()
	if !c.cache.tryBeginRefresh(runID, len(c.trees.Roots())) {
		return false
	}
	c.logger.Infof("Starting file cache refresh (run %s)", runID)
	go c.run(runID)
	return true
}

// run executes one refresh. It catches every failure at this top frame so
// that the in-progress flag is always cleared and the singleton invariant
// preserved; partial results are never published.
func (c *Coordinator) run(runID string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(fmt.Errorf("refresh %s panicked: %v", runID, r))
			c.cache.endRefresh(StageIdle)
		}
	}()

	if err := c.refresh(); err != nil {
		c.logger.Error(fmt.Errorf("refresh %s failed: %w", runID, err))
		c.cache.endRefresh(StageIdle)
		return
	}

	c.cache.endRefresh(StageCompleted)
	found, missing := c.cache.FileCounts()
	c.logger.Infof(
		"File cache refresh %s completed: %d files found, %d missing",
		runID, found, missing,
	)
}

// refresh runs the staged algorithm.
func (c *Coordinator) refresh() error {
	ctx := c.ctx

	// Stage 1: rebuild the directory tree with live telemetry.
	c.cache.updateProgress(func(p *Progress) {
		p.Stage = StageInitializingDirectoryTree
	})
	tree, err := c.trees.Rebuild(func(directories, files int, current string) {
		c.cache.updateProgress(func(p *Progress) {
			p.DirectoriesProcessed = directories
			p.FilesScanned = files
			p.CurrentDirectory = current
		})
	})
	if err != nil {
		return fmt.Errorf("unable to rebuild directory tree: %w", err)
	}

	// Stage 2: load the projects that have images.
	c.cache.updateProgress(func(p *Progress) {
		p.Stage = StageLoadingProjects
	})
	projects, err := c.catalog.ProjectsWithImages(ctx)
	if err != nil {
		return fmt.Errorf("unable to load projects: %w", err)
	}

	// Stage 3: probe every project's images against the index. Each image
	// record is counted, not just the first hit.
	c.cache.updateProgress(func(p *Progress) {
		p.Stage = StageProcessingProjects
		p.ProjectsTotal = len(projects)
	})
	projectResults := make(map[int64]bool, len(projects))
	var filesFound, filesMissing int
	for i, project := range projects {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.cache.updateProgress(func(p *Progress) {
			p.CurrentProject = project.Name
		})

		records, err := c.catalog.ImagesByProject(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("unable to load images for project %d: %w", project.ID, err)
		}
		found := 0
		for _, record := range records {
			basename := catalog.ParseMetadata(record.Image.Metadata).Basename()
			if basename == "" {
				continue
			}
			if _, ok := tree.FindFileFirst(basename); ok {
				found++
				filesFound++
			} else {
				filesMissing++
			}
		}
		projectResults[project.ID] = found > 0

		processed := i + 1
		c.cache.updateProgress(func(p *Progress) {
			p.ProjectsProcessed = processed
			p.FilesFound = filesFound
			p.FilesMissing = filesMissing
		})
	}

	// Stage 4: probe every target's images the same way.
	targets, err := c.catalog.TargetsWithProjectInfo(ctx)
	if err != nil {
		return fmt.Errorf("unable to load targets: %w", err)
	}
	c.cache.updateProgress(func(p *Progress) {
		p.Stage = StageProcessingTargets
		p.TargetsTotal = len(targets)
	})
	targetResults := make(map[int64]bool, len(targets))
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.cache.updateProgress(func(p *Progress) {
			p.CurrentTarget = target.Target.Name
		})

		records, err := c.catalog.ImagesByTarget(ctx, target.Target.ID)
		if err != nil {
			return fmt.Errorf("unable to load images for target %d: %w", target.Target.ID, err)
		}
		hasFiles := false
		for _, record := range records {
			basename := catalog.ParseMetadata(record.Image.Metadata).Basename()
			if basename == "" {
				continue
			}
			if _, ok := tree.FindFileFirst(basename); ok {
				hasFiles = true
				break
			}
		}
		targetResults[target.Target.ID] = hasFiles

		processed := i + 1
		c.cache.updateProgress(func(p *Progress) {
			p.TargetsProcessed = processed
		})
	}

	// Stage 5: swap in the new contents atomically.
	c.cache.updateProgress(func(p *Progress) {
		p.Stage = StageUpdatingCache
	})
	c.cache.publish(projectResults, targetResults, filesFound, filesMissing)

	// Success.
	return nil
}
