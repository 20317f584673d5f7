package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// catalogSchema mirrors the capture tool's schema, limited to the tables the
// service reads.
const catalogSchema = `
CREATE TABLE project (
	Id INTEGER PRIMARY KEY,
	profileId TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT
);
CREATE TABLE target (
	Id INTEGER PRIMARY KEY,
	projectId INTEGER NOT NULL,
	name TEXT NOT NULL,
	active INTEGER NOT NULL,
	ra REAL,
	dec REAL
);
CREATE TABLE acquiredimage (
	Id INTEGER PRIMARY KEY,
	projectId INTEGER NOT NULL,
	targetId INTEGER NOT NULL,
	acquireddate INTEGER,
	filtername TEXT NOT NULL,
	gradingStatus INTEGER NOT NULL,
	metadata TEXT NOT NULL,
	rejectreason TEXT,
	profileId TEXT
);
CREATE TABLE exposuretemplate (
	Id INTEGER PRIMARY KEY,
	filtername TEXT NOT NULL
);
CREATE TABLE exposureplan (
	targetid INTEGER NOT NULL,
	exposureTemplateId INTEGER NOT NULL,
	desired INTEGER NOT NULL,
	acquired INTEGER NOT NULL,
	accepted INTEGER NOT NULL
);
`

// openTestCatalog creates a populated catalog fixture backed by a temporary
// file.
func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.sqlite")

	// Create the schema and fixture rows with a throwaway connection.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal("unable to create fixture database:", err)
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		t.Fatal("unable to create schema:", err)
	}
	fixtures := []string{
		`INSERT INTO project VALUES (1, 'profile-a', 'Andromeda Survey', 'M31 mosaic')`,
		`INSERT INTO project VALUES (2, 'profile-a', 'Empty Project', NULL)`,
		`INSERT INTO target VALUES (10, 1, 'M31', 1, 10.68, 41.27)`,
		`INSERT INTO target VALUES (11, 1, 'M110', 0, 10.09, 41.69)`,
		`INSERT INTO acquiredimage VALUES
			(100, 1, 10, 1705352400, 'L', 0, '{"FileName": "C:\\Astro\\M31\\L_001.fits", "DetectedStars": 320, "HFR": 2.4}', NULL, 'profile-a')`,
		`INSERT INTO acquiredimage VALUES
			(101, 1, 10, 1705352700, 'L', 1, '{"FileName": "C:\\Astro\\M31\\L_002.fits", "DetectedStars": 335, "HFR": 2.3}', NULL, 'profile-a')`,
		`INSERT INTO acquiredimage VALUES
			(102, 1, 10, 1705353000, 'Ha', 2, '{"FileName": "/astro/M31/Ha_001.fits"}', 'Manual rejection', 'profile-a')`,
		`INSERT INTO acquiredimage VALUES
			(103, 1, 11, 1705353300, 'L', 2, '{"FileName": "/astro/M110/L_001.fits"}', 'Low star count', 'profile-a')`,
		`INSERT INTO exposuretemplate VALUES (1, 'L')`,
		`INSERT INTO exposuretemplate VALUES (2, 'Ha')`,
		`INSERT INTO exposureplan VALUES (10, 1, 50, 20, 15)`,
		`INSERT INTO exposureplan VALUES (10, 2, 30, 5, 4)`,
	}
	for _, fixture := range fixtures {
		if _, err := db.Exec(fixture); err != nil {
			t.Fatal("unable to insert fixture:", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal("unable to close fixture connection:", err)
	}

	// Open the catalog under test.
	catalog, err := Open(path, nil)
	if err != nil {
		t.Fatal("unable to open catalog:", err)
	}
	t.Cleanup(func() { catalog.Close() })
	return catalog
}

func TestProjectsWithImages(t *testing.T) {
	catalog := openTestCatalog(t)

	projects, err := catalog.ProjectsWithImages(context.Background())
	if err != nil {
		t.Fatal("unable to list projects:", err)
	}
	if len(projects) != 1 {
		t.Fatal("unexpected project count:", len(projects))
	}
	if projects[0].Name != "Andromeda Survey" {
		t.Error("unexpected project name:", projects[0].Name)
	}

	// The full listing includes the empty project.
	all, err := catalog.Projects(context.Background())
	if err != nil {
		t.Fatal("unable to list all projects:", err)
	}
	if len(all) != 2 {
		t.Error("unexpected total project count:", len(all))
	}
}

func TestFindProjectIDByName(t *testing.T) {
	catalog := openTestCatalog(t)

	id, err := catalog.FindProjectIDByName(context.Background(), "Andromeda Survey")
	if err != nil {
		t.Fatal("unable to resolve project:", err)
	}
	if id != 1 {
		t.Error("unexpected project id:", id)
	}

	if _, err := catalog.FindProjectIDByName(context.Background(), "Nonexistent"); err == nil {
		t.Error("nonexistent project resolved")
	}
}

func TestTargetsWithStats(t *testing.T) {
	catalog := openTestCatalog(t)

	targets, err := catalog.TargetsWithStats(context.Background(), 1)
	if err != nil {
		t.Fatal("unable to list targets:", err)
	}
	if len(targets) != 2 {
		t.Fatal("unexpected target count:", len(targets))
	}

	// Targets are ordered by name: M110 before M31.
	if targets[0].Target.Name != "M110" || targets[1].Target.Name != "M31" {
		t.Fatal("unexpected target ordering")
	}
	m31 := targets[1]
	if m31.ImageCount != 3 || m31.AcceptedCount != 1 || m31.RejectedCount != 1 || m31.PendingCount != 1 {
		t.Error("unexpected M31 counts:", m31.ImageCount, m31.AcceptedCount, m31.RejectedCount, m31.PendingCount)
	}
}

func TestQueryImages(t *testing.T) {
	catalog := openTestCatalog(t)
	ctx := context.Background()

	// Unfiltered query returns everything, newest first.
	records, err := catalog.QueryImages(ctx, ImageFilter{})
	if err != nil {
		t.Fatal("unable to query images:", err)
	}
	if len(records) != 4 {
		t.Fatal("unexpected image count:", len(records))
	}
	if records[0].Image.ID != 103 {
		t.Error("images not ordered newest first:", records[0].Image.ID)
	}

	// Status filter.
	status := GradingRejected
	records, err = catalog.QueryImages(ctx, ImageFilter{Status: &status})
	if err != nil {
		t.Fatal("unable to query rejected images:", err)
	}
	if len(records) != 2 {
		t.Error("unexpected rejected count:", len(records))
	}

	// Target substring filter.
	records, err = catalog.QueryImages(ctx, ImageFilter{TargetName: "M110"})
	if err != nil {
		t.Fatal("unable to query by target:", err)
	}
	if len(records) != 1 || records[0].TargetName != "M110" {
		t.Error("unexpected target filter results")
	}

	// Timestamp cutoff.
	records, err = catalog.QueryImages(ctx, ImageFilter{MinTimestamp: 1705353000})
	if err != nil {
		t.Fatal("unable to query by timestamp:", err)
	}
	if len(records) != 2 {
		t.Error("unexpected cutoff count:", len(records))
	}

	// Limit and offset.
	records, err = catalog.QueryImages(ctx, ImageFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal("unable to query with pagination:", err)
	}
	if len(records) != 2 || records[0].Image.ID != 102 {
		t.Error("unexpected pagination results")
	}
}

func TestGradingUpdates(t *testing.T) {
	catalog := openTestCatalog(t)
	ctx := context.Background()

	// Single update.
	reason := "Clouds"
	if err := catalog.UpdateGradingStatus(ctx, GradingUpdate{
		ImageID:      100,
		Status:       GradingRejected,
		RejectReason: &reason,
	}); err != nil {
		t.Fatal("unable to update grading status:", err)
	}
	images, err := catalog.ImagesByIDs(ctx, []int64{100})
	if err != nil || len(images) != 1 {
		t.Fatal("unable to fetch updated image:", err)
	}
	if images[0].GradingStatus != 2 || images[0].RejectReason == nil || *images[0].RejectReason != "Clouds" {
		t.Error("update not applied")
	}

	// Update of a nonexistent image fails.
	if err := catalog.UpdateGradingStatus(ctx, GradingUpdate{ImageID: 999, Status: GradingAccepted}); err == nil {
		t.Error("update of nonexistent image succeeded")
	}

	// Batch update.
	if err := catalog.BatchUpdateGradingStatus(ctx, []GradingUpdate{
		{ImageID: 100, Status: GradingAccepted},
		{ImageID: 101, Status: GradingPending},
	}); err != nil {
		t.Fatal("unable to batch update:", err)
	}
	images, err = catalog.ImagesByIDs(ctx, []int64{100, 101})
	if err != nil || len(images) != 2 {
		t.Fatal("unable to fetch batch updated images:", err)
	}
	for _, image := range images {
		if image.ID == 100 && image.GradingStatus != 1 {
			t.Error("batch update missed image 100")
		}
		if image.ID == 101 && image.GradingStatus != 0 {
			t.Error("batch update missed image 101")
		}
	}
}

func TestResetGradingStatus(t *testing.T) {
	catalog := openTestCatalog(t)
	ctx := context.Background()

	// Automatic mode spares the manual rejection (image 102) and skips the
	// pending image (100), leaving 101 (accepted) and 103 (auto-rejected).
	count, err := catalog.CountImagesToReset(ctx, ResetModeAutomatic, 0, "", "")
	if err != nil {
		t.Fatal("unable to count images to reset:", err)
	}
	if count != 2 {
		t.Error("unexpected automatic reset population:", count)
	}

	affected, err := catalog.ResetGradingStatus(ctx, ResetModeAutomatic, 0, "", "")
	if err != nil {
		t.Fatal("unable to reset grading status:", err)
	}
	if affected != count {
		t.Error("reset affected a different population than counted:", affected, count)
	}

	// The manual rejection survives.
	images, err := catalog.ImagesByIDs(ctx, []int64{102})
	if err != nil || len(images) != 1 {
		t.Fatal("unable to fetch manual rejection:", err)
	}
	if images[0].GradingStatus != 2 {
		t.Error("automatic reset cleared a manual rejection")
	}

	// Full mode resets the remainder.
	affected, err = catalog.ResetGradingStatus(ctx, ResetModeFull, 0, "", "")
	if err != nil {
		t.Fatal("unable to fully reset:", err)
	}
	if affected != 1 {
		t.Error("unexpected full reset count:", affected)
	}
}

func TestOverallStatistics(t *testing.T) {
	catalog := openTestCatalog(t)

	stats, err := catalog.OverallStatistics(context.Background())
	if err != nil {
		t.Fatal("unable to query overall statistics:", err)
	}
	if stats.TotalImages != 4 || stats.AcceptedImages != 1 || stats.RejectedImages != 2 || stats.PendingImages != 1 {
		t.Error("unexpected image counts")
	}
	if stats.TotalProjects != 2 || stats.ActiveProjects != 1 {
		t.Error("unexpected project counts:", stats.TotalProjects, stats.ActiveProjects)
	}
	if stats.TotalTargets != 2 || stats.ActiveTargets != 2 {
		t.Error("unexpected target counts:", stats.TotalTargets, stats.ActiveTargets)
	}
	if len(stats.UniqueFilters) != 2 {
		t.Error("unexpected filter list:", stats.UniqueFilters)
	}
	if stats.EarliestDate == nil || *stats.EarliestDate != 1705352400 {
		t.Error("unexpected earliest date")
	}
}

func TestRequestedStats(t *testing.T) {
	catalog := openTestCatalog(t)
	ctx := context.Background()

	project, err := catalog.ProjectRequestedStats(ctx, 1)
	if err != nil {
		t.Fatal("unable to query project plans:", err)
	}
	if project.TotalDesired != 80 || project.TotalAcquired != 25 || project.TotalAccepted != 19 {
		t.Error("unexpected project plan totals")
	}
	if len(project.FiltersUsed) != 2 {
		t.Error("unexpected plan filters:", project.FiltersUsed)
	}

	plans, err := catalog.TargetRequestedStats(ctx, 10)
	if err != nil {
		t.Fatal("unable to query target plans:", err)
	}
	if len(plans) != 2 {
		t.Fatal("unexpected plan count:", len(plans))
	}
	if plans[0].FilterName != "Ha" || plans[0].Desired != 30 {
		t.Error("unexpected plan ordering or values")
	}

	overall, err := catalog.OverallRequestedStatistics(ctx)
	if err != nil {
		t.Fatal("unable to query overall plans:", err)
	}
	if overall.TotalDesired != 80 {
		t.Error("unexpected overall desired total:", overall.TotalDesired)
	}
}

func TestParseMetadata(t *testing.T) {
	metadata := ParseMetadata(`{"FileName": "C:\\Astro\\M31\\L_001.fits", "DetectedStars": 320, "HFR": 2.4, "Median": 1200}`)
	if metadata.Basename() != "L_001.fits" {
		t.Error("unexpected basename:", metadata.Basename())
	}
	if metadata.DetectedStars == nil || *metadata.DetectedStars != 320 {
		t.Error("star count not decoded")
	}
	if metadata.BackgroundLevel() == nil || *metadata.BackgroundLevel() != 1200 {
		t.Error("median not used as background fallback")
	}

	// Background preferred over Median.
	metadata = ParseMetadata(`{"Background": 1100, "Median": 1200}`)
	if metadata.BackgroundLevel() == nil || *metadata.BackgroundLevel() != 1100 {
		t.Error("background not preferred over median")
	}

	// Forward slash basenames.
	metadata = ParseMetadata(`{"FileName": "/astro/M31/Ha_001.fits"}`)
	if metadata.Basename() != "Ha_001.fits" {
		t.Error("unexpected basename:", metadata.Basename())
	}

	// Malformed blobs decode to empty metadata.
	metadata = ParseMetadata("not json")
	if metadata.FileName != "" || metadata.Basename() != "" {
		t.Error("malformed blob not handled")
	}

	// Exposure start time parsing.
	metadata = ParseMetadata(`{"ExposureStartTime": "2024-01-15T21:00:00Z"}`)
	if timestamp := metadata.StartTimestamp(); timestamp == nil || *timestamp != 1705352400 {
		t.Error("exposure start time not parsed")
	}
}
