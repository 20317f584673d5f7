package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fitsight-io/fitsight/pkg/api"
	"github.com/fitsight-io/fitsight/pkg/configuration"
	"github.com/fitsight-io/fitsight/pkg/filecheck"
)

// newTestServer assembles a full application over fixture data and returns
// its router.
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	// Image root with one resolvable file.
	imageRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(imageRoot, "L_001.fits"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	// Catalog fixture.
	databasePath := filepath.Join(t.TempDir(), "catalog.sqlite")
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		t.Fatal(err)
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
		`INSERT INTO target VALUES (10, 1, 'M31', 1, 10.68, 41.27)`,
	}
	// Ten-image healthy sequence for the analysis endpoints.
	stars := []int{320, 335, 310, 345, 300, 330, 315, 340, 325, 350}
	for i, count := range stars {
		statements = append(statements, `INSERT INTO acquiredimage VALUES (`+
			itoa(100+i)+`, 1, 10, `+itoa64(1705352400+int64(i)*300)+`, 'L', 0,
			'{"FileName": "L_001.fits", "DetectedStars": `+itoa(count)+`, "HFR": 2.4}', NULL, 'p')`)
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatal("unable to create fixture:", err, statement)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	config := configuration.Default()
	config.Database.Path = databasePath
	config.Images.Directories = []string{imageRoot}
	config.Cache.Directory = filepath.Join(t.TempDir(), "cache")

	ctx, cancel := context.WithCancel(context.Background())
	application, err := NewApplication(ctx, config, nil)
	if err != nil {
		t.Fatal("unable to build application:", err)
	}
	t.Cleanup(func() {
		cancel()
		application.Close()
	})

	server := NewServer(application)
	return server, server.router()
}

func itoa(value int) string {
	return strconv.Itoa(value)
}

func itoa64(value int64) string {
	return strconv.FormatInt(value, 10)
}

// decodeEnvelope decodes a response envelope.
func decodeEnvelope(t *testing.T, recorder *httptest.ResponseRecorder) api.Envelope {
	t.Helper()
	var envelope api.Envelope
	if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
		t.Fatal("unable to decode envelope:", err)
	}
	return envelope
}

// TestFreshnessEnvelope covers the cache freshness envelope transitions: an
// empty cache yields a loading envelope and starts the singleton refresh;
// after completion, reads are ready with data.
func TestFreshnessEnvelope(t *testing.T) {
	server, router := newTestServer(t)

	// First read: loading, no data, refresh started.
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	envelope := decodeEnvelope(t, recorder)
	if !envelope.Success {
		t.Fatal("loading envelope not successful")
	}
	if envelope.Status == nil || *envelope.Status != api.RefreshStatusLoading {
		t.Fatal("first read not loading:", envelope.Status)
	}

	// Wait for the singleton refresh to finish.
	cache := server.application.coordinator.Cache()
	deadline := time.Now().Add(10 * time.Second)
	for !cache.HasInitialData() || cache.RefreshInProgress() {
		if time.Now().After(deadline) {
			t.Fatal("startup refresh never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Second read: ready with data.
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	envelope = decodeEnvelope(t, recorder)
	if envelope.Status == nil || *envelope.Status != api.RefreshStatusReady {
		t.Fatal("post-refresh read not ready")
	}
	projects, ok := envelope.Data.([]interface{})
	if !ok || len(projects) != 1 {
		t.Fatal("unexpected project payload:", envelope.Data)
	}
	project := projects[0].(map[string]interface{})
	if project["has_files"] != true {
		t.Error("project file flag not set in response")
	}
}

// TestWireStatusMapping covers the status machine to wire status mapping.
func TestWireStatusMapping(t *testing.T) {
	cases := map[filecheck.RefreshStatus]api.RefreshStatus{
		filecheck.RefreshStatusNotNeeded:            api.RefreshStatusReady,
		filecheck.RefreshStatusNeedsRefresh:         api.RefreshStatusLoading,
		filecheck.RefreshStatusInProgressWait:       api.RefreshStatusLoading,
		filecheck.RefreshStatusInProgressServeStale: api.RefreshStatusRefreshing,
	}
	for status, expected := range cases {
		if wire := api.WireStatus(status); wire != expected {
			t.Errorf("%s mapped to %s, expected %s", status.Description(), wire, expected)
		}
	}
}

// TestAnalysisSequenceEndpoint covers the sequence analysis endpoint,
// including the nonexistent-target boundary.
func TestAnalysisSequenceEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	// Healthy target yields one scored sequence.
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(
		http.MethodGet, "/api/analysis/sequence?target_id=10&filter_name=L", nil,
	))
	if recorder.Code != http.StatusOK {
		t.Fatal("unexpected status:", recorder.Code, recorder.Body.String())
	}
	envelope := decodeEnvelope(t, recorder)
	sequences, ok := envelope.Data.([]interface{})
	if !ok || len(sequences) != 1 {
		t.Fatal("unexpected sequence payload")
	}
	sequence := sequences[0].(map[string]interface{})
	if sequence["image_count"].(float64) != 10 {
		t.Error("unexpected image count:", sequence["image_count"])
	}

	// Nonexistent target: 400 with a message containing "not found".
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(
		http.MethodGet, "/api/analysis/sequence?target_id=999", nil,
	))
	if recorder.Code != http.StatusBadRequest {
		t.Fatal("nonexistent target did not yield 400:", recorder.Code)
	}
	envelope = decodeEnvelope(t, recorder)
	if envelope.Error == nil || !strings.Contains(*envelope.Error, "not found") {
		t.Error("error message missing 'not found':", envelope.Error)
	}

	// Missing target_id is rejected.
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/analysis/sequence", nil))
	if recorder.Code != http.StatusBadRequest {
		t.Error("missing target_id accepted:", recorder.Code)
	}
}

// TestPreviewOptionValidation covers enum and bound rejection at the request
// boundary.
func TestPreviewOptionValidation(t *testing.T) {
	_, router := newTestServer(t)

	cases := []string{
		"/api/images/100/preview?size=gigantic",
		"/api/images/100/preview?stretch=log",
		"/api/images/100/preview?midtone=2",
		"/api/images/100/preview?shadow=-9",
		"/api/images/100/annotated?max_stars=0",
		"/api/images/100/psf?psf_type=airy",
		"/api/images/100/psf?grid_cols=99",
		"/api/images/abc/preview",
	}
	for _, target := range cases {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, recorder.Code)
		}
	}
}

// TestGradeEndpoint covers grading updates, including rejection of unknown
// statuses.
func TestGradeEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(
		http.MethodPut, "/api/images/100/grade",
		strings.NewReader(`{"status": 2, "reason": "Clouds"}`),
	))
	if recorder.Code != http.StatusOK {
		t.Fatal("grade update failed:", recorder.Code, recorder.Body.String())
	}

	// Unknown status values are rejected.
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(
		http.MethodPut, "/api/images/100/grade",
		strings.NewReader(`{"status": 7}`),
	))
	if recorder.Code != http.StatusBadRequest {
		t.Error("unknown grading status accepted:", recorder.Code)
	}

	// Nonexistent images yield 404.
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(
		http.MethodPut, "/api/images/999/grade",
		strings.NewReader(`{"status": 1}`),
	))
	if recorder.Code != http.StatusNotFound {
		t.Error("nonexistent image grade did not yield 404:", recorder.Code)
	}
}

// TestCacheProgressEndpoint covers the progress snapshot endpoint.
func TestCacheProgressEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/cache-progress", nil))
	if recorder.Code != http.StatusOK {
		t.Fatal("progress endpoint failed:", recorder.Code)
	}
	envelope := decodeEnvelope(t, recorder)
	payload, ok := envelope.Data.(map[string]interface{})
	if !ok {
		t.Fatal("unexpected progress payload")
	}
	if _, ok := payload["progress"]; !ok {
		t.Error("progress snapshot missing")
	}
	if _, ok := payload["percentage"]; !ok {
		t.Error("percentage missing")
	}
}

// TestInfoEndpoint covers identity reporting.
func TestInfoEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/info", nil))
	if recorder.Code != http.StatusOK {
		t.Fatal("info endpoint failed:", recorder.Code)
	}
	envelope := decodeEnvelope(t, recorder)
	payload := envelope.Data.(map[string]interface{})
	if payload["version"] == "" {
		t.Error("version missing from info")
	}
}
