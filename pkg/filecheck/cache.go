// Package filecheck maintains per-project and per-target booleans indicating
// whether the FITS files for an entity can be found via the directory tree
// index, refreshed by a singleton background coordinator.
package filecheck

import (
	"time"

	"github.com/fitsight-io/fitsight/pkg/state"
)

// Cache is the file-existence cache. All fields are guarded by a tracking
// lock so that every mutation notifies pollers of the associated tracker
// (used by progress observers).
type Cache struct {
	// guard guards all remaining fields.
	guard *state.TrackingLock
	// projects maps project identifier to "any known file findable".
	projects map[int64]bool
	// targets maps target identifier to "any known file findable".
	targets map[int64]bool
	// lastUpdated is the completion time of the last successful refresh.
	lastUpdated time.Time
	// refreshInProgress is true iff the singleton refresh task is running.
	refreshInProgress bool
	// hasInitialData is true iff at least one full refresh has completed
	// since startup.
	hasInitialData bool
	// ttl is the cache freshness window.
	ttl time.Duration
	// progress is the current refresh telemetry.
	progress Progress
	// filesFound and filesMissing are the totals from the last completed
	// refresh.
	filesFound   int
	filesMissing int
}

// NewCache creates an empty file-existence cache with the specified
// freshness window, guarded by the specified tracker.
func NewCache(ttl time.Duration, tracker *state.Tracker) *Cache {
	return &Cache{
		guard:    state.NewTrackingLock(tracker),
		projects: make(map[int64]bool),
		targets:  make(map[int64]bool),
		ttl:      ttl,
	}
}

// statusLocked derives the refresh status. The guard must be held.
func (c *Cache) statusLocked() RefreshStatus {
	if c.refreshInProgress {
		if c.hasInitialData {
			return RefreshStatusInProgressServeStale
		}
		return RefreshStatusInProgressWait
	}
	if !c.hasInitialData || time.Since(c.lastUpdated) > c.ttl {
		return RefreshStatusNeedsRefresh
	}
	return RefreshStatusNotNeeded
}

// Status derives the refresh status for a read.
func (c *Cache) Status() RefreshStatus {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	return c.statusLocked()
}

// HasInitialData indicates whether or not a full refresh has completed since
// startup.
func (c *Cache) HasInitialData() bool {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	return c.hasInitialData
}

// RefreshInProgress indicates whether or not a refresh is currently running.
func (c *Cache) RefreshInProgress() bool {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	return c.refreshInProgress
}

// ProjectHasFiles returns the cached boolean for a project, defaulting to
// false for unknown projects.
func (c *Cache) ProjectHasFiles(projectID int64) bool {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	return c.projects[projectID]
}

// TargetHasFiles returns the cached boolean for a target, defaulting to
// false for unknown targets.
func (c *Cache) TargetHasFiles(targetID int64) bool {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	return c.targets[targetID]
}

// ProjectsWithFiles returns a copy of the per-project map.
func (c *Cache) ProjectsWithFiles() map[int64]bool {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	projects := make(map[int64]bool, len(c.projects))
	for id, hasFiles := range c.projects {
		projects[id] = hasFiles
	}
	return projects
}

// TargetsWithFiles returns a copy of the per-target map.
func (c *Cache) TargetsWithFiles() map[int64]bool {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	targets := make(map[int64]bool, len(c.targets))
	for id, hasFiles := range c.targets {
		targets[id] = hasFiles
	}
	return targets
}

// FileCounts returns the files-found and files-missing totals from the last
// completed refresh.
func (c *Cache) FileCounts() (int, int) {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	return c.filesFound, c.filesMissing
}

// Progress returns a snapshot of the current refresh telemetry.
func (c *Cache) Progress() Progress {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	return c.progress
}

// LastUpdated returns the completion time of the last successful refresh.
func (c *Cache) LastUpdated() time.Time {
	c.guard.Lock()
	defer c.guard.UnlockWithoutNotify()
	return c.lastUpdated
}

// tryBeginRefresh atomically claims the singleton refresh slot. It returns
// false if a refresh is already running. On success it resets the progress
// telemetry for the new run.
func (c *Cache) tryBeginRefresh(runID string, rootCount int) bool {
	c.guard.Lock()
	defer c.guard.Unlock()
	if c.refreshInProgress {
		return false
	}
	c.refreshInProgress = true
	c.progress = Progress{
		Stage:            StageIdle,
		RunID:            runID,
		StartedAt:        time.Now().Unix(),
		DirectoriesTotal: rootCount,
	}
	return true
}

// updateProgress applies a mutation to the progress telemetry under the
// guard, notifying observers.
func (c *Cache) updateProgress(mutate func(*Progress)) {
	c.guard.Lock()
	defer c.guard.Unlock()
	mutate(&c.progress)
}

// publish atomically swaps in freshly computed cache contents and marks the
// cache populated.
func (c *Cache) publish(projects, targets map[int64]bool, filesFound, filesMissing int) {
	c.guard.Lock()
	defer c.guard.Unlock()
	c.projects = projects
	c.targets = targets
	c.filesFound = filesFound
	c.filesMissing = filesMissing
	c.lastUpdated = time.Now()
	c.hasInitialData = true
}

// endRefresh clears the in-progress flag and records the terminal stage. It
// always runs, even when the refresh failed, so that the next request can
// retry.
func (c *Cache) endRefresh(stage Stage) {
	c.guard.Lock()
	defer c.guard.Unlock()
	c.refreshInProgress = false
	c.progress.Stage = stage
	c.progress.CurrentDirectory = ""
	c.progress.CurrentProject = ""
	c.progress.CurrentTarget = ""
}
