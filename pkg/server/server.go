package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/fitsight-io/fitsight/pkg/filecheck"
)

// shutdownGracePeriod bounds how long in-flight handlers may drain during
// shutdown.
const shutdownGracePeriod = 10 * time.Second

// Server hosts the HTTP API over an application context.
type Server struct {
	// application is the application context.
	application *Application
}

// NewServer creates a server over the specified application context.
func NewServer(application *Application) *Server {
	return &Server{application: application}
}

// router builds the chi router with the API mounted under /api.
func (s *Server) router() http.Handler {
	root := chi.NewRouter()
	if s.application.configuration.Server.CORS {
		root.Use(cors.AllowAll().Handler)
	}

	root.Route("/api", func(router chi.Router) {
		router.Get("/info", s.handleInfo)
		router.Put("/refresh-cache", s.handleRefreshCache)
		router.Put("/refresh-directory-cache", s.handleRefreshDirectoryCache)
		router.Get("/cache-progress", s.handleCacheProgress)

		router.Get("/projects", s.handleListProjects)
		router.Get("/projects/overview", s.handleProjectsOverview)
		router.Get("/projects/{pid}/targets", s.handleListTargets)
		router.Get("/targets/overview", s.handleTargetsOverview)
		router.Get("/stats/overall", s.handleOverallStats)
		router.Get("/stats/activity", s.handleRecentActivity)

		router.Get("/images", s.handleListImages)
		router.Get("/images/{id}", s.handleGetImage)
		router.Get("/images/{id}/preview", s.handleImagePreview)
		router.Get("/images/{id}/annotated", s.handleImageAnnotated)
		router.Get("/images/{id}/stars", s.handleImageStars)
		router.Get("/images/{id}/psf", s.handleImagePSF)
		router.Get("/images/{id}/stats", s.handleImageStatistics)
		router.Put("/images/{id}/grade", s.handleGradeImage)

		router.Get("/analysis/sequence", s.handleAnalyzeSequence)
		router.Get("/analysis/image/{id}", s.handleAnalyzeImage)
	})

	return root
}

// Run serves the API until the context is cancelled, then drains in-flight
// handlers and stops the background workers.
func (s *Server) Run(ctx context.Context) error {
	logger := s.application.logger

	// Warm the file-check cache immediately.
	switch status := s.application.coordinator.EnsureAvailable(); status {
	case filecheck.RefreshStatusInProgressWait, filecheck.RefreshStatusInProgressServeStale:
		logger.Info("Cache refresh started at server startup")
	case filecheck.RefreshStatusNotNeeded:
		logger.Info("Cache already available at startup")
	}

	// Start the pre-generation worker when enabled.
	if s.application.pregenerator != nil {
		go s.application.pregenerator.Run(ctx)
	} else {
		logger.Info("Background pre-generation disabled")
	}

	// Bind the listener.
	address := fmt.Sprintf(
		"%s:%d",
		s.application.configuration.Server.Host,
		s.application.configuration.Server.Port,
	)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("unable to bind listener: %w", err)
	}
	logger.Infof("Server listening on http://%s", address)

	// Serve until cancellation.
	server := &http.Server{
		Handler: s.router(),
	}
	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- server.Serve(listener)
	}()

	select {
	case err := <-serveErrors:
		return fmt.Errorf("server terminated unexpectedly: %w", err)
	case <-ctx.Done():
	}

	// Drain in-flight handlers within the grace period.
	logger.Info("Shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("unable to shut down cleanly: %w", err)
	}
	logger.Info("Server shutdown completed")
	return nil
}
