package artifact

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/logging"
)

const (
	// defaultScanInterval is the pause between pre-generation cycles.
	defaultScanInterval = 5 * time.Minute
	// defaultRateLimitDelay is the pause between images within a cycle.
	defaultRateLimitDelay = 500 * time.Millisecond
	// defaultBatchSize is the number of images per logging batch.
	defaultBatchSize = 10
)

// Materializer generates a single artifact format for an image through the
// same path an on-demand request would take.
type Materializer interface {
	// PregenerateFormat generates the specified format for an image. When
	// allowSkipIfFresh is set and a sufficiently young artifact exists, the
	// generation is skipped. It reports whether an artifact was generated.
	PregenerateFormat(ctx context.Context, image *catalog.AcquiredImage, targetName, basename, format string, allowSkipIfFresh bool) (bool, error)
}

// PregeneratorConfiguration parameterizes the pre-generation worker.
type PregeneratorConfiguration struct {
	// Formats are the artifact formats to generate each cycle.
	Formats []string
	// ScanInterval is the pause between cycles (default five minutes).
	ScanInterval time.Duration
	// RateLimitDelay is the pause between images (default 500ms).
	RateLimitDelay time.Duration
	// BatchSize is the number of images per logging batch (default 10).
	BatchSize int
	// CacheExpiry is the age beyond which artifacts are regenerated.
	CacheExpiry time.Duration
}

// Pregenerator is the background task that steadily fills the artifact
// cache. It exits at the next tick or delay boundary when its context is
// cancelled, and it never retries a failed generation within a cycle.
type Pregenerator struct {
	// configuration is the worker configuration.
	configuration PregeneratorConfiguration
	// catalog is the acquisition catalog.
	catalog *catalog.Catalog
	// materializer performs per-format generation.
	materializer Materializer
	// logger is the worker logger.
	logger *logging.Logger
}

// NewPregenerator creates a pre-generation worker.
func NewPregenerator(configuration PregeneratorConfiguration, cat *catalog.Catalog, materializer Materializer, logger *logging.Logger) *Pregenerator {
	if configuration.ScanInterval <= 0 {
		configuration.ScanInterval = defaultScanInterval
	}
	if configuration.RateLimitDelay <= 0 {
		configuration.RateLimitDelay = defaultRateLimitDelay
	}
	if configuration.BatchSize <= 0 {
		configuration.BatchSize = defaultBatchSize
	}
	return &Pregenerator{
		configuration: configuration,
		catalog:       cat,
		materializer:  materializer,
		logger:        logger,
	}
}

// Run executes the pre-generation loop until the context is cancelled.
func (p *Pregenerator) Run(ctx context.Context) {
	p.logger.Infof(
		"Starting pre-generation worker (formats: %v, expiry: %s)",
		p.configuration.Formats, p.configuration.CacheExpiry,
	)

	ticker := time.NewTicker(p.configuration.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Pre-generation worker stopped")
			return
		case <-ticker.C:
		}
		p.cycle(ctx)
	}
}

// cycle performs one pass over all catalog images.
func (p *Pregenerator) cycle(ctx context.Context) {
	p.logger.Debugf("Scanning for images needing pre-generation")

	records, err := p.catalog.QueryImages(ctx, catalog.ImageFilter{})
	if err != nil {
		p.logger.Error(err)
		return
	}
	if len(records) == 0 {
		p.logger.Debugf("No images found for pre-generation")
		return
	}

	// The limiter paces per-image work; its first permit is immediate.
	limiter := rate.NewLimiter(rate.Every(p.configuration.RateLimitDelay), 1)

	var processed, generated, skipped, failed int
	for _, record := range records {
		if ctx.Err() != nil {
			return
		}

		// Records without a resolvable filename are skipped entirely.
		basename := catalog.ParseMetadata(record.Image.Metadata).Basename()
		if basename == "" {
			continue
		}

		for _, format := range p.configuration.Formats {
			wasGenerated, err := p.materializer.PregenerateFormat(
				ctx, &record.Image, record.TargetName, basename, format, true,
			)
			if err != nil {
				failed++
				p.logger.Warnf(
					"unable to pre-generate %s for image %d: %v",
					format, record.Image.ID, err,
				)
				continue
			}
			if wasGenerated {
				generated++
			} else {
				skipped++
			}
		}

		processed++
		if processed%p.configuration.BatchSize == 0 {
			p.logger.Debugf(
				"Pre-generation progress: %d/%d images processed",
				processed, len(records),
			)
		}

		// Rate limiting delay, responsive to cancellation.
		if err := limiter.Wait(ctx); err != nil {
			return
		}
	}

	if processed > 0 {
		p.logger.Infof(
			"Pre-generation cycle complete: %d generated, %d skipped, %d errors (%d images processed)",
			generated, skipped, failed, processed,
		)
	}
}
