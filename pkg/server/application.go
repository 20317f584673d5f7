// Package server assembles the application context and exposes the HTTP API
// over it.
package server

import (
	"context"
	"fmt"

	"github.com/fitsight-io/fitsight/pkg/artifact"
	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/configuration"
	"github.com/fitsight-io/fitsight/pkg/dirtree"
	"github.com/fitsight-io/fitsight/pkg/filecheck"
	"github.com/fitsight-io/fitsight/pkg/logging"
	"github.com/fitsight-io/fitsight/pkg/overview"
	"github.com/fitsight-io/fitsight/pkg/render"
	"github.com/fitsight-io/fitsight/pkg/resolver"
	"github.com/fitsight-io/fitsight/pkg/state"
)

// Application is the context value injected into request handlers. It holds
// every long-lived component; nothing is read from process-wide globals.
type Application struct {
	// configuration is the validated configuration.
	configuration *configuration.Configuration
	// logger is the application root logger.
	logger *logging.Logger
	// catalog is the acquisition catalog.
	catalog *catalog.Catalog
	// trees is the directory tree cache.
	trees *dirtree.Cache
	// tracker tracks file-check cache changes.
	tracker *state.Tracker
	// coordinator drives file-check cache refreshes.
	coordinator *filecheck.Coordinator
	// resolver resolves image records to FITS paths.
	resolver *resolver.Resolver
	// artifacts generates and caches render products.
	artifacts *Artifacts
	// overviews computes aggregate projections.
	overviews *overview.Service
	// pregenerator is the background artifact worker, nil when disabled.
	pregenerator *artifact.Pregenerator
}

// NewApplication assembles an application context from a validated
// configuration. The specified context bounds background refreshes.
func NewApplication(ctx context.Context, config *configuration.Configuration, logger *logging.Logger) (*Application, error) {
	// Open the catalog.
	cat, err := catalog.Open(config.Database.Path, logger.Sublogger("catalog"))
	if err != nil {
		return nil, fmt.Errorf("unable to open catalog: %w", err)
	}

	// Create the lookup caches and refresh machinery.
	trees := dirtree.NewCache(
		config.Images.Directories,
		config.Images.Exclude,
		config.DirectoryTTL(),
		logger.Sublogger("dirtree"),
	)
	tracker := state.NewTracker()
	cache := filecheck.NewCache(config.FileTTL(), tracker)
	coordinator := filecheck.NewCoordinator(ctx, cache, cat, trees, logger.Sublogger("filecheck"))

	// Create the resolver and render capabilities.
	fileResolver := resolver.New(config.Images.Directories, trees, logger.Sublogger("resolver"))
	manager, err := artifact.NewManager(config.Cache.Directory, logger.Sublogger("artifacts"))
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("unable to create artifact cache: %w", err)
	}
	artifacts := NewArtifacts(cat, fileResolver, manager, render.NewPool(0), config.CacheExpiry(), logger.Sublogger("artifacts"))

	application := &Application{
		configuration: config,
		logger:        logger,
		catalog:       cat,
		trees:         trees,
		tracker:       tracker,
		coordinator:   coordinator,
		resolver:      fileResolver,
		artifacts:     artifacts,
		overviews:     overview.NewService(cat, cache),
	}

	// Wire the pre-generation worker when enabled.
	if config.Pregeneration.Enabled {
		application.pregenerator = artifact.NewPregenerator(
			artifact.PregeneratorConfiguration{
				Formats:     config.Pregeneration.EnabledFormats(),
				CacheExpiry: config.CacheExpiry(),
			},
			cat,
			artifacts,
			logger.Sublogger("pregen"),
		)
	}

	// Success.
	return application, nil
}

// Close releases application resources.
func (a *Application) Close() error {
	a.tracker.Terminate()
	return a.catalog.Close()
}

// Coordinator returns the refresh coordinator.
func (a *Application) Coordinator() *filecheck.Coordinator {
	return a.coordinator
}
