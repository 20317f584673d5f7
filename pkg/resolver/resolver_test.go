package resolver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/dirtree"
)

// timestampFor returns the Unix timestamp of noon UTC on the specified day.
func timestampFor(year int, month time.Month, day int) *int64 {
	timestamp := time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Unix()
	return &timestamp
}

func TestFindFITSFileViaLayout(t *testing.T) {
	root := t.TempDir()

	// Lay the file out as <root>/<date>/<target>/<file>.
	directory := filepath.Join(root, "2024-01-15", "M31")
	if err := os.MkdirAll(directory, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(directory, "L_001.fits")
	if err := os.WriteFile(path, []byte("fits"), 0600); err != nil {
		t.Fatal(err)
	}

	trees := dirtree.NewCache([]string{root}, nil, time.Hour, nil)
	resolver := New([]string{root}, trees, nil)

	image := &catalog.AcquiredImage{
		ID:           1,
		AcquiredDate: timestampFor(2024, time.January, 15),
	}
	resolved, err := resolver.FindFITSFile(image, "M31", "L_001.fits")
	if err != nil {
		t.Fatal("unable to resolve:", err)
	}
	if resolved != path {
		t.Error("unexpected resolved path:", resolved)
	}

	// The resolved path must exist at the moment of return.
	if _, err := os.Stat(resolved); err != nil {
		t.Error("resolved path does not exist:", err)
	}
}

func TestFindFITSFileLightSubdirectory(t *testing.T) {
	root := t.TempDir()

	directory := filepath.Join(root, "M31", "2024-01-15", "LIGHT")
	if err := os.MkdirAll(directory, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(directory, "L_001.fits")
	if err := os.WriteFile(path, []byte("fits"), 0600); err != nil {
		t.Fatal(err)
	}

	trees := dirtree.NewCache([]string{root}, nil, time.Hour, nil)
	resolver := New([]string{root}, trees, nil)

	image := &catalog.AcquiredImage{
		ID:           1,
		AcquiredDate: timestampFor(2024, time.January, 15),
	}
	resolved, err := resolver.FindFITSFile(image, "M31", "L_001.fits")
	if err != nil {
		t.Fatal("unable to resolve:", err)
	}
	if resolved != path {
		t.Error("unexpected resolved path:", resolved)
	}
}

func TestFindFITSFileViaIndex(t *testing.T) {
	root := t.TempDir()

	// Lay the file out in a nonstandard location that no template covers.
	directory := filepath.Join(root, "archive", "2023", "winter")
	if err := os.MkdirAll(directory, 0700); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(directory, "L_042.fits")
	if err := os.WriteFile(path, []byte("fits"), 0600); err != nil {
		t.Fatal(err)
	}

	trees := dirtree.NewCache([]string{root}, nil, time.Hour, nil)
	resolver := New([]string{root}, trees, nil)

	image := &catalog.AcquiredImage{
		ID:           2,
		AcquiredDate: timestampFor(2023, time.December, 1),
	}
	resolved, err := resolver.FindFITSFile(image, "M42", "L_042.fits")
	if err != nil {
		t.Fatal("unable to resolve via index:", err)
	}
	if filepath.Base(resolved) != "L_042.fits" {
		t.Error("unexpected resolved path:", resolved)
	}
}

func TestFindFITSFileStaleIndexEntry(t *testing.T) {
	root := t.TempDir()

	path := filepath.Join(root, "stale.fits")
	if err := os.WriteFile(path, []byte("fits"), 0600); err != nil {
		t.Fatal(err)
	}

	trees := dirtree.NewCache([]string{root}, nil, time.Hour, nil)
	if _, err := trees.Get(); err != nil {
		t.Fatal("unable to warm tree cache:", err)
	}

	// Remove the file after the snapshot was taken, making the entry stale.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	resolver := New([]string{root}, trees, nil)
	image := &catalog.AcquiredImage{ID: 3}
	if _, err := resolver.FindFITSFile(image, "M1", "stale.fits"); err != ErrNotFound {
		t.Error("stale entry resolved or unexpected error:", err)
	}
}

func TestFindFITSFileWithoutDate(t *testing.T) {
	root := t.TempDir()

	path := filepath.Join(root, "nodate.fits")
	if err := os.WriteFile(path, []byte("fits"), 0600); err != nil {
		t.Fatal(err)
	}

	trees := dirtree.NewCache([]string{root}, nil, time.Hour, nil)
	resolver := New([]string{root}, trees, nil)

	// An image without an acquisition date resolves via the index.
	image := &catalog.AcquiredImage{ID: 4}
	resolved, err := resolver.FindFITSFile(image, "M1", "nodate.fits")
	if err != nil {
		t.Fatal("unable to resolve dateless image:", err)
	}
	if filepath.Base(resolved) != "nodate.fits" {
		t.Error("unexpected resolved path:", resolved)
	}
}

func TestCandidatePaths(t *testing.T) {
	paths := CandidatePaths("/root", "2024-01-15", "M31", "L.fits")
	if len(paths) != 7 {
		t.Fatal("unexpected candidate count:", len(paths))
	}
	if paths[0] != filepath.Join("/root", "2024-01-15", "M31", "L.fits") {
		t.Error("unexpected first candidate:", paths[0])
	}
	// Determinism.
	again := CandidatePaths("/root", "2024-01-15", "M31", "L.fits")
	for i := range paths {
		if paths[i] != again[i] {
			t.Error("candidate paths not deterministic")
		}
	}
}
