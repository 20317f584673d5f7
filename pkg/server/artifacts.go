package server

import (
	"context"
	"fmt"
	"time"

	"github.com/fitsight-io/fitsight/pkg/api"
	"github.com/fitsight-io/fitsight/pkg/artifact"
	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/encoding"
	"github.com/fitsight-io/fitsight/pkg/logging"
	"github.com/fitsight-io/fitsight/pkg/render"
	"github.com/fitsight-io/fitsight/pkg/resolver"
)

// Artifacts generates render products on demand through the artifact cache,
// delegating compute-heavy work to the render pool. It also implements
// artifact.Materializer for the pre-generation worker, so on-demand and
// background generation share one code path.
type Artifacts struct {
	// catalog is the acquisition catalog.
	catalog *catalog.Catalog
	// resolver resolves image records to FITS paths.
	resolver *resolver.Resolver
	// manager is the artifact cache manager.
	manager *artifact.Manager
	// pool bounds CPU-heavy render work.
	pool *render.Pool
	// cacheExpiry is the age beyond which pre-generation regenerates.
	cacheExpiry time.Duration
	// logger is the service logger.
	logger *logging.Logger
}

// NewArtifacts creates the artifact generation service.
func NewArtifacts(cat *catalog.Catalog, fileResolver *resolver.Resolver, manager *artifact.Manager, pool *render.Pool, cacheExpiry time.Duration, logger *logging.Logger) *Artifacts {
	return &Artifacts{
		catalog:     cat,
		resolver:    fileResolver,
		manager:     manager,
		pool:        pool,
		cacheExpiry: cacheExpiry,
		logger:      logger,
	}
}

// loadFITS resolves and decodes the FITS file for an image record.
func (a *Artifacts) loadFITS(image *catalog.AcquiredImage, targetName, basename string) (*render.FITSImage, error) {
	path, err := a.resolver.FindFITSFile(image, targetName, basename)
	if err != nil {
		return nil, api.NotFound("FITS file not found for image %d", image.ID)
	}
	fits, err := render.LoadFITS(path)
	if err != nil {
		return nil, api.Internal(fmt.Sprintf("unable to load FITS file for image %d", image.ID), err)
	}
	return fits, nil
}

// Preview returns the preview PNG for an image, from cache or freshly
// rendered.
func (a *Artifacts) Preview(ctx context.Context, image *catalog.AcquiredImage, targetName, basename string, options artifact.PreviewOptions) ([]byte, error) {
	path := a.manager.Path(artifact.CategoryPreviews, artifact.PreviewKey(image, basename, options), "png")
	return a.manager.Materialize(path, func() ([]byte, error) {
		fits, err := a.loadFITS(image, targetName, basename)
		if err != nil {
			return nil, err
		}
		return a.pool.Do(ctx, func() ([]byte, error) {
			return render.RenderPreview(fits, render.StretchOptions{
				Midtone: options.Midtone,
				Shadow:  options.Shadow,
				Linear:  options.Mode == artifact.StretchModeLinear,
			}, options.Size.Bounds())
		})
	})
}

// Annotated returns the annotated PNG for an image.
func (a *Artifacts) Annotated(ctx context.Context, image *catalog.AcquiredImage, targetName, basename string, options artifact.AnnotatedOptions) ([]byte, error) {
	path := a.manager.Path(artifact.CategoryAnnotated, artifact.AnnotatedKey(image, basename, options), "png")
	return a.manager.Materialize(path, func() ([]byte, error) {
		fits, err := a.loadFITS(image, targetName, basename)
		if err != nil {
			return nil, err
		}
		return a.pool.Do(ctx, func() ([]byte, error) {
			stretch := render.StretchOptions{Midtone: 0.2, Shadow: -2.8}
			return render.RenderAnnotated(fits, stretch, options.MaxStars, options.Size.Bounds())
		})
	})
}

// Stars returns the star-detection JSON for an image.
func (a *Artifacts) Stars(ctx context.Context, image *catalog.AcquiredImage, targetName, basename string) ([]byte, error) {
	path := a.manager.Path(artifact.CategoryStars, artifact.StarsKey(image, basename), "json")
	return a.manager.Materialize(path, func() ([]byte, error) {
		fits, err := a.loadFITS(image, targetName, basename)
		if err != nil {
			return nil, err
		}
		return a.pool.Do(ctx, func() ([]byte, error) {
			stars := render.DetectStars(fits, 0)
			return encoding.MarshalJSON(struct {
				Count int           `json:"count"`
				Stars []render.Star `json:"stars"`
			}{Count: len(stars), Stars: stars})
		})
	})
}

// PSFMosaic returns the PSF mosaic PNG for an image.
func (a *Artifacts) PSFMosaic(ctx context.Context, image *catalog.AcquiredImage, targetName, basename string, options artifact.PSFOptions) ([]byte, error) {
	path := a.manager.Path(artifact.CategoryPSFMulti, artifact.PSFKey(image, basename, options), "png")
	return a.manager.Materialize(path, func() ([]byte, error) {
		fits, err := a.loadFITS(image, targetName, basename)
		if err != nil {
			return nil, err
		}
		return a.pool.Do(ctx, func() ([]byte, error) {
			return render.RenderPSFMosaic(fits, render.MosaicOptions{
				NumStars:  options.NumStars,
				PSFType:   options.Type.String(),
				SortBy:    options.SortBy.String(),
				Selection: options.Selection.String(),
				GridCols:  options.GridCols,
				Stretch:   render.StretchOptions{Midtone: 0.2, Shadow: -2.8},
			})
		})
	})
}

// Statistics returns the FITS statistics JSON for an image.
func (a *Artifacts) Statistics(ctx context.Context, image *catalog.AcquiredImage, targetName, basename string) ([]byte, error) {
	path := a.manager.Path(artifact.CategoryStats, artifact.StatsKey(image), "json")
	return a.manager.Materialize(path, func() ([]byte, error) {
		fits, err := a.loadFITS(image, targetName, basename)
		if err != nil {
			return nil, err
		}
		return a.pool.Do(ctx, func() ([]byte, error) {
			return encoding.MarshalJSON(render.ComputeStatistics(fits))
		})
	})
}

// PregenerateFormat implements artifact.Materializer. It takes the same
// generation path an on-demand request would, skipping fresh artifacts when
// allowed.
func (a *Artifacts) PregenerateFormat(ctx context.Context, image *catalog.AcquiredImage, targetName, basename, format string, allowSkipIfFresh bool) (bool, error) {
	// Compute the cache path for the format.
	var path string
	var generate func() error
	switch format {
	case "screen", "large", "original":
		size, err := artifact.ParsePreviewSize(format)
		if err != nil {
			return false, err
		}
		options := artifact.DefaultPreviewOptions(size)
		path = a.manager.Path(artifact.CategoryPreviews, artifact.PreviewKey(image, basename, options), "png")
		generate = func() error {
			_, err := a.Preview(ctx, image, targetName, basename, options)
			return err
		}
	case "annotated":
		options := artifact.AnnotatedOptions{Size: artifact.SizeScreen, MaxStars: 1000}
		path = a.manager.Path(artifact.CategoryAnnotated, artifact.AnnotatedKey(image, basename, options), "png")
		generate = func() error {
			_, err := a.Annotated(ctx, image, targetName, basename, options)
			return err
		}
	default:
		return false, fmt.Errorf("unknown pre-generation format: %s", format)
	}

	// Skip sufficiently young artifacts.
	if allowSkipIfFresh && a.manager.IsFresh(path, a.cacheExpiry) {
		return false, nil
	}

	// An expired artifact must actually regenerate, not serve the stale
	// bytes; clear it first so the shared path treats this as a miss.
	if a.manager.IsCached(path) {
		a.manager.Remove(path)
	}

	if err := generate(); err != nil {
		return false, err
	}
	return true, nil
}
