package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fitsight-io/fitsight/pkg/catalog"
)

// fixtureImage returns a stable image identity for key tests.
func fixtureImage() *catalog.AcquiredImage {
	acquired := int64(1705352400)
	return &catalog.AcquiredImage{
		ID:           42,
		ProjectID:    1,
		TargetID:     10,
		AcquiredDate: &acquired,
	}
}

func TestPreviewKeyDeterminism(t *testing.T) {
	image := fixtureImage()
	options := DefaultPreviewOptions(SizeScreen)

	first := PreviewKey(image, "M31 L-001.fits", options)
	second := PreviewKey(image, "M31 L-001.fits", options)
	if first != second {
		t.Error("identical inputs produced different keys")
	}

	expected := "42_1_10_1705352400_M31_L_001_fits_screen_stretch_2000_-28000"
	if first != expected {
		t.Errorf("unexpected key: %s", first)
	}

	// Any parameter change produces a different key.
	options.Midtone = 0.25
	if PreviewKey(image, "M31 L-001.fits", options) == first {
		t.Error("midtone change did not change the key")
	}
}

func TestKeySanitization(t *testing.T) {
	image := fixtureImage()
	key := StarsKey(image, "a b-c.d.fits")
	if key != "stars_42_1_10_1705352400_a_b_c_d_fits" {
		t.Error("unexpected sanitized key:", key)
	}
}

func TestKeysWithoutAcquiredDate(t *testing.T) {
	image := fixtureImage()
	image.AcquiredDate = nil
	if key := StatsKey(image); key != "stats_42_1_10_0" {
		t.Error("unexpected key for dateless image:", key)
	}
}

func TestAnnotatedAndPSFKeys(t *testing.T) {
	image := fixtureImage()

	annotated := AnnotatedKey(image, "L.fits", AnnotatedOptions{Size: SizeScreen, MaxStars: 1000})
	if annotated != "annotated_42_1_10_1705352400_L_fits_screen_1000" {
		t.Error("unexpected annotated key:", annotated)
	}

	psf := PSFKey(image, "L.fits", PSFOptions{
		NumStars:  9,
		Type:      PSFTypeGaussian,
		SortBy:    PSFSortByR2,
		Selection: PSFSelectionTop,
		GridCols:  3,
	})
	if psf != "psf_multi_42_1_10_1705352400_L_fits_9_gaussian_r2_top_3" {
		t.Error("unexpected PSF key:", psf)
	}
}

func TestOptionParsers(t *testing.T) {
	// Valid values, including empty-string defaults.
	if size, err := ParsePreviewSize(""); err != nil || size != SizeScreen {
		t.Error("default size parse failed")
	}
	if size, err := ParsePreviewSize("large"); err != nil || size != SizeLarge {
		t.Error("large size parse failed")
	}
	if mode, err := ParseStretchMode("linear"); err != nil || mode != StretchModeLinear {
		t.Error("linear mode parse failed")
	}

	// Unknown values are rejected.
	if _, err := ParsePreviewSize("gigantic"); err == nil {
		t.Error("unknown size accepted")
	}
	if _, err := ParseStretchMode("log"); err == nil {
		t.Error("unknown stretch mode accepted")
	}
	if _, err := ParsePSFType("airy"); err == nil {
		t.Error("unknown PSF type accepted")
	}
	if _, err := ParsePSFSortBy("magnitude"); err == nil {
		t.Error("unknown sort order accepted")
	}
	if _, err := ParsePSFSelection("middle"); err == nil {
		t.Error("unknown selection accepted")
	}
}

func TestManagerLifecycle(t *testing.T) {
	manager, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal("unable to create manager:", err)
	}

	// Category directories exist and creation is idempotent.
	for _, category := range Categories() {
		if err := manager.EnsureCategoryDir(category); err != nil {
			t.Error("category directory creation not idempotent:", err)
		}
	}

	path := manager.Path(CategoryPreviews, "key", "png")
	if filepath.Dir(path) != filepath.Join(manager.Root(), "previews") {
		t.Error("unexpected cache path:", path)
	}
	if manager.IsCached(path) {
		t.Error("absent artifact reported cached")
	}

	// Store returns the served bytes.
	served, err := manager.Store(path, []byte("png-bytes"))
	if err != nil {
		t.Fatal("unable to store artifact:", err)
	}
	if string(served) != "png-bytes" {
		t.Error("store did not return stored bytes")
	}
	if !manager.IsCached(path) {
		t.Error("stored artifact not reported cached")
	}

	// Freshness.
	if !manager.IsFresh(path, time.Hour) {
		t.Error("young artifact not fresh")
	}
	if manager.IsFresh(path, time.Nanosecond) {
		t.Error("expired artifact reported fresh")
	}

	// Read.
	data, err := manager.Read(path)
	if err != nil || string(data) != "png-bytes" {
		t.Error("unable to read artifact back")
	}
}

func TestManagerMaterialize(t *testing.T) {
	manager, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal("unable to create manager:", err)
	}
	path := manager.Path(CategoryStars, "key", "json")

	var generations int32
	generate := func() ([]byte, error) {
		atomic.AddInt32(&generations, 1)
		return []byte(`{"stars": []}`), nil
	}

	// First call generates.
	data, err := manager.Materialize(path, generate)
	if err != nil {
		t.Fatal("unable to materialize:", err)
	}
	if string(data) != `{"stars": []}` {
		t.Error("unexpected materialized data")
	}

	// Second call serves the cache.
	if _, err := manager.Materialize(path, generate); err != nil {
		t.Fatal("unable to materialize from cache:", err)
	}
	if atomic.LoadInt32(&generations) != 1 {
		t.Error("cached artifact regenerated")
	}
}

func TestManagerMaterializeCoalesces(t *testing.T) {
	manager, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal("unable to create manager:", err)
	}
	path := manager.Path(CategoryStats, "key", "json")

	// A slow generator exercises the single-flight path.
	var generations int32
	release := make(chan struct{})
	generate := func() ([]byte, error) {
		atomic.AddInt32(&generations, 1)
		<-release
		return []byte("{}"), nil
	}

	var waitGroup sync.WaitGroup
	for i := 0; i < 8; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if _, err := manager.Materialize(path, generate); err != nil {
				t.Error("materialize failed:", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	waitGroup.Wait()

	if atomic.LoadInt32(&generations) != 1 {
		t.Error("duplicate misses not coalesced:", generations)
	}
}

func TestManagerMaterializeFailureLeavesCleanMiss(t *testing.T) {
	manager, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatal("unable to create manager:", err)
	}
	path := manager.Path(CategoryPreviews, "broken", "png")

	if _, err := manager.Materialize(path, func() ([]byte, error) {
		return nil, errors.New("render failed")
	}); err == nil {
		t.Fatal("failed generation reported success")
	}

	// The failure leaves no file behind.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed generation left a cache file")
	}

	// The next attempt is a clean miss that can succeed.
	data, err := manager.Materialize(path, func() ([]byte, error) {
		return []byte("ok"), nil
	})
	if err != nil || string(data) != "ok" {
		t.Error("clean retry failed")
	}
}
