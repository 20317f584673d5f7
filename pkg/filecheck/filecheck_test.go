package filecheck

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/dirtree"
	"github.com/fitsight-io/fitsight/pkg/state"
)

func TestProgressRoundTrip(t *testing.T) {
	original := Progress{
		Stage:                StageProcessingProjects,
		RunID:                "4a1e6d2c",
		StartedAt:            1705352400,
		DirectoriesTotal:     2,
		DirectoriesProcessed: 40,
		FilesScanned:         1200,
		CurrentDirectory:     "/data/images/M31",
		ProjectsTotal:        5,
		ProjectsProcessed:    2,
		CurrentProject:       "Andromeda Survey",
		TargetsTotal:         9,
		TargetsProcessed:     0,
		FilesFound:           700,
		FilesMissing:         12,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal("unable to marshal progress:", err)
	}
	var decoded Progress
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal("unable to unmarshal progress:", err)
	}
	if decoded != original {
		t.Error("progress did not round-trip")
	}
}

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		progress Progress
		expected float64
	}{
		{Progress{Stage: StageIdle}, 0},
		{Progress{Stage: StageInitializingDirectoryTree, DirectoriesTotal: 2}, 2},
		{Progress{Stage: StageInitializingDirectoryTree, DirectoriesTotal: 2, DirectoriesProcessed: 100}, 10},
		{Progress{Stage: StageLoadingProjects}, 10},
		{Progress{Stage: StageProcessingProjects, ProjectsTotal: 4}, 15},
		{Progress{Stage: StageProcessingProjects, ProjectsTotal: 4, ProjectsProcessed: 2}, 40},
		{Progress{Stage: StageProcessingProjects, ProjectsTotal: 4, ProjectsProcessed: 4}, 65},
		{Progress{Stage: StageProcessingTargets, TargetsTotal: 5}, 65},
		{Progress{Stage: StageProcessingTargets, TargetsTotal: 5, TargetsProcessed: 5}, 90},
		{Progress{Stage: StageUpdatingCache}, 95},
		{Progress{Stage: StageCompleted}, 100},
	}
	for _, c := range cases {
		if percentage := c.progress.Percentage(); percentage != c.expected {
			t.Errorf(
				"stage %s: expected %.0f%%, got %.1f%%",
				c.progress.Stage.Description(), c.expected, percentage,
			)
		}
	}
}

func TestStageTextRoundTrip(t *testing.T) {
	stages := []Stage{
		StageIdle, StageInitializingDirectoryTree, StageLoadingProjects,
		StageProcessingProjects, StageProcessingTargets, StageUpdatingCache,
		StageCompleted,
	}
	for _, stage := range stages {
		text, err := stage.MarshalText()
		if err != nil {
			t.Fatal("unable to marshal stage:", err)
		}
		var decoded Stage
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatal("unable to unmarshal stage:", err)
		}
		if decoded != stage {
			t.Error("stage did not round-trip:", stage.Description())
		}
	}
}

// newTestCoordinator assembles a coordinator over a small catalog and image
// tree. The catalog holds one project with two images: one whose file exists
// beneath the root and one whose file is missing.
func newTestCoordinator(t *testing.T, ttl time.Duration) *Coordinator {
	t.Helper()

	// Create the image root with one real file.
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "L_001.fits"), []byte("fits"), 0600); err != nil {
		t.Fatal(err)
	}

	// Create the catalog fixture.
	path := filepath.Join(t.TempDir(), "catalog.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal("unable to create fixture database:", err)
	}
	statements := []string{
		`CREATE TABLE project (Id INTEGER PRIMARY KEY, profileId TEXT, name TEXT, description TEXT)`,
		`CREATE TABLE target (Id INTEGER PRIMARY KEY, projectId INTEGER, name TEXT, active INTEGER, ra REAL, dec REAL)`,
		`CREATE TABLE acquiredimage (Id INTEGER PRIMARY KEY, projectId INTEGER, targetId INTEGER,
			acquireddate INTEGER, filtername TEXT, gradingStatus INTEGER, metadata TEXT,
			rejectreason TEXT, profileId TEXT)`,
		`CREATE TABLE exposuretemplate (Id INTEGER PRIMARY KEY, filtername TEXT)`,
		`CREATE TABLE exposureplan (targetid INTEGER, exposureTemplateId INTEGER, desired INTEGER, acquired INTEGER, accepted INTEGER)`,
		`INSERT INTO project VALUES (1, 'p', 'Survey', NULL)`,
		`INSERT INTO target VALUES (10, 1, 'M31', 1, NULL, NULL)`,
		`INSERT INTO target VALUES (11, 1, 'M110', 1, NULL, NULL)`,
		`INSERT INTO acquiredimage VALUES (100, 1, 10, 1705352400, 'L', 0, '{"FileName": "L_001.fits"}', NULL, 'p')`,
		`INSERT INTO acquiredimage VALUES (101, 1, 11, 1705352700, 'L', 0, '{"FileName": "missing.fits"}', NULL, 'p')`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatal("unable to create fixture:", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	cat, err := catalog.Open(path, nil)
	if err != nil {
		t.Fatal("unable to open catalog:", err)
	}
	t.Cleanup(func() { cat.Close() })

	trees := dirtree.NewCache([]string{root}, nil, time.Hour, nil)
	tracker := state.NewTracker()
	t.Cleanup(tracker.Terminate)
	cache := NewCache(ttl, tracker)
	return NewCoordinator(context.Background(), cache, cat, trees, nil)
}

// waitForRefresh polls until no refresh is running.
func waitForRefresh(t *testing.T, cache *Cache) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for cache.RefreshInProgress() {
		if time.Now().After(deadline) {
			t.Fatal("refresh never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRefreshLifecycle(t *testing.T) {
	coordinator := newTestCoordinator(t, time.Hour)
	cache := coordinator.Cache()

	// Empty cache needs a refresh.
	if status := cache.Status(); status != RefreshStatusNeedsRefresh {
		t.Fatal("unexpected initial status:", status.Description())
	}

	// EnsureAvailable starts the singleton and reports a wait, since no
	// prior data exists.
	if status := coordinator.EnsureAvailable(); status != RefreshStatusInProgressWait {
		t.Fatal("unexpected status after ensure:", status.Description())
	}

	waitForRefresh(t, cache)

	// The refresh completed: initial data exists, the flag is clear, and the
	// cache is fresh.
	if !cache.HasInitialData() {
		t.Error("no initial data after completed refresh")
	}
	if cache.RefreshInProgress() {
		t.Error("refresh still marked in progress")
	}
	if status := cache.Status(); status != RefreshStatusNotNeeded {
		t.Error("unexpected status after refresh:", status.Description())
	}
	if stage := cache.Progress().Stage; stage != StageCompleted {
		t.Error("unexpected terminal stage:", stage.Description())
	}

	// Two consecutive calls without state change are idempotent.
	first := coordinator.EnsureAvailable()
	second := coordinator.EnsureAvailable()
	if first != second || first != RefreshStatusNotNeeded {
		t.Error("ensure is not idempotent:", first.Description(), second.Description())
	}

	// Contents: the project has files (one image resolves); target M31 has
	// files, target M110 does not.
	if !cache.ProjectHasFiles(1) {
		t.Error("project file flag not set")
	}
	if !cache.TargetHasFiles(10) {
		t.Error("target 10 file flag not set")
	}
	if cache.TargetHasFiles(11) {
		t.Error("target 11 file flag set despite missing file")
	}

	// Counters: one record found, one missing.
	found, missing := cache.FileCounts()
	if found != 1 || missing != 1 {
		t.Error("unexpected file counts:", found, missing)
	}
}

func TestRefreshExpiryServesStale(t *testing.T) {
	coordinator := newTestCoordinator(t, 20*time.Millisecond)
	cache := coordinator.Cache()

	// Warm the cache.
	coordinator.EnsureAvailable()
	waitForRefresh(t, cache)

	// Let it expire.
	time.Sleep(30 * time.Millisecond)
	if status := cache.Status(); status != RefreshStatusNeedsRefresh {
		t.Fatal("expired cache not detected:", status.Description())
	}

	// A read now starts a refresh but keeps serving stale data.
	status := coordinator.EnsureAvailable()
	if status != RefreshStatusInProgressServeStale {
		// The refresh may already have completed on a fast machine; accept
		// the fresh status too, but data must be available either way.
		if status != RefreshStatusNotNeeded {
			t.Error("unexpected status during background refresh:", status.Description())
		}
	}
	if !cache.HasInitialData() {
		t.Error("stale data unavailable during refresh")
	}
	waitForRefresh(t, cache)
}

func TestSingletonRefresh(t *testing.T) {
	coordinator := newTestCoordinator(t, time.Hour)
	cache := coordinator.Cache()

	// Hammer EnsureAvailable from many goroutines; the singleton invariant
	// means every observed status is consistent and exactly one refresh run
	// publishes data.
	done := make(chan struct{})
	for i := 0; i < 16; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 10; j++ {
				coordinator.EnsureAvailable()
			}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
	waitForRefresh(t, cache)

	if !cache.HasInitialData() {
		t.Error("refresh never completed")
	}
	runID := cache.Progress().RunID
	if runID == "" {
		t.Error("no run identifier recorded")
	}
	close(done)
}

func TestForceRefresh(t *testing.T) {
	coordinator := newTestCoordinator(t, time.Hour)
	cache := coordinator.Cache()

	coordinator.EnsureAvailable()
	waitForRefresh(t, cache)
	firstRun := cache.Progress().RunID

	// Force a refresh despite freshness.
	coordinator.ForceRefresh()
	waitForRefresh(t, cache)
	if cache.Progress().RunID == firstRun {
		t.Error("forced refresh did not run")
	}
}
