package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fitsight-io/fitsight/pkg/api"
	"github.com/fitsight-io/fitsight/pkg/catalog"
	"github.com/fitsight-io/fitsight/pkg/fitsight"
)

// serverInfo is the payload of the info endpoint.
type serverInfo struct {
	DatabasePath     string   `json:"database_path"`
	ImageDirectories []string `json:"image_directories"`
	CacheDirectory   string   `json:"cache_directory"`
	Version          string   `json:"version"`
}

// projectResponse enriches a project with its file-existence flag.
type projectResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	HasFiles    bool    `json:"has_files"`
}

// targetResponse enriches a target with counts and its file-existence flag.
type targetResponse struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	RA            *float64 `json:"ra"`
	Dec           *float64 `json:"dec"`
	Active        bool     `json:"active"`
	ImageCount    int64    `json:"image_count"`
	AcceptedCount int64    `json:"accepted_count"`
	RejectedCount int64    `json:"rejected_count"`
	PendingCount  int64    `json:"pending_count"`
	HasFiles      bool     `json:"has_files"`
}

// imageResponse is an image record with grading text and names resolved.
type imageResponse struct {
	catalog.AcquiredImage
	GradingText  string `json:"grading_text"`
	ProjectName  string `json:"project_name"`
	TargetName   string `json:"target_name"`
	ResolvedPath string `json:"resolved_path,omitempty"`
}

// pathParamID parses a positive integer path parameter.
func pathParamID(request *http.Request, name string) (int64, error) {
	raw := chi.URLParam(request, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, api.BadRequest("invalid %s: %s", name, raw)
	}
	return id, nil
}

// wrapCatalogError maps catalog failures to API error kinds.
func wrapCatalogError(err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return api.NotFound("%v", err)
	}
	return api.Database(err)
}

// handleInfo serves identity and version information.
func (s *Server) handleInfo(writer http.ResponseWriter, request *http.Request) {
	api.WriteJSON(writer, http.StatusOK, api.Success(serverInfo{
		DatabasePath:     s.application.configuration.Database.Path,
		ImageDirectories: s.application.configuration.Images.Directories,
		CacheDirectory:   s.application.configuration.Cache.Directory,
		Version:          fitsight.Version,
	}))
}

// respondWithFreshness runs the standard read pattern: ensure the cache is
// available, serve a loading envelope when no data exists, and otherwise
// invoke the loader and annotate its result with the refresh status.
func (s *Server) respondWithFreshness(writer http.ResponseWriter, load func() (interface{}, error)) {
	status := s.application.coordinator.EnsureAvailable()
	wireStatus := api.WireStatus(status)

	// With no prior data at all, reads return a loading envelope.
	if wireStatus == api.RefreshStatusLoading && !s.application.coordinator.Cache().HasInitialData() {
		api.WriteJSON(writer, http.StatusOK, api.Loading())
		return
	}

	data, err := load()
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	api.WriteJSON(writer, http.StatusOK, api.SuccessWithStatus(data, wireStatus))
}

// handleListProjects lists projects enriched with file-existence flags.
func (s *Server) handleListProjects(writer http.ResponseWriter, request *http.Request) {
	s.respondWithFreshness(writer, func() (interface{}, error) {
		projects, err := s.application.catalog.ProjectsWithImages(request.Context())
		if err != nil {
			return nil, wrapCatalogError(err)
		}
		cache := s.application.coordinator.Cache()
		responses := make([]projectResponse, 0, len(projects))
		for _, project := range projects {
			responses = append(responses, projectResponse{
				ID:          project.ID,
				Name:        project.Name,
				Description: project.Description,
				HasFiles:    cache.ProjectHasFiles(project.ID),
			})
		}
		return responses, nil
	})
}

// handleListTargets lists a project's targets enriched with file-existence
// flags.
func (s *Server) handleListTargets(writer http.ResponseWriter, request *http.Request) {
	projectID, err := pathParamID(request, "pid")
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	s.respondWithFreshness(writer, func() (interface{}, error) {
		targets, err := s.application.catalog.TargetsWithStats(request.Context(), projectID)
		if err != nil {
			return nil, wrapCatalogError(err)
		}
		cache := s.application.coordinator.Cache()
		responses := make([]targetResponse, 0, len(targets))
		for _, target := range targets {
			responses = append(responses, targetResponse{
				ID:            target.Target.ID,
				Name:          target.Target.Name,
				RA:            target.Target.RA,
				Dec:           target.Target.Dec,
				Active:        target.Target.Active,
				ImageCount:    target.ImageCount,
				AcceptedCount: target.AcceptedCount,
				RejectedCount: target.RejectedCount,
				PendingCount:  target.PendingCount,
				HasFiles:      cache.TargetHasFiles(target.Target.ID),
			})
		}
		return responses, nil
	})
}

// handleProjectsOverview serves the per-project statistics bundles.
func (s *Server) handleProjectsOverview(writer http.ResponseWriter, request *http.Request) {
	s.respondWithFreshness(writer, func() (interface{}, error) {
		overviews, err := s.application.overviews.Projects(request.Context())
		if err != nil {
			return nil, wrapCatalogError(err)
		}
		return overviews, nil
	})
}

// handleTargetsOverview serves the cross-project target overview.
func (s *Server) handleTargetsOverview(writer http.ResponseWriter, request *http.Request) {
	s.respondWithFreshness(writer, func() (interface{}, error) {
		overviews, err := s.application.overviews.Targets(request.Context())
		if err != nil {
			return nil, wrapCatalogError(err)
		}
		return overviews, nil
	})
}

// handleOverallStats serves the global statistics bundle.
func (s *Server) handleOverallStats(writer http.ResponseWriter, request *http.Request) {
	s.respondWithFreshness(writer, func() (interface{}, error) {
		stats, err := s.application.overviews.Overall(request.Context())
		if err != nil {
			return nil, wrapCatalogError(err)
		}
		return stats, nil
	})
}

// handleRecentActivity serves per-day activity buckets.
func (s *Server) handleRecentActivity(writer http.ResponseWriter, request *http.Request) {
	buckets, err := s.application.overviews.RecentActivity(request.Context())
	if err != nil {
		api.WriteError(writer, wrapCatalogError(err))
		return
	}
	api.WriteJSON(writer, http.StatusOK, api.Success(buckets))
}

// handleListImages serves filtered image listings.
func (s *Server) handleListImages(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	filter := catalog.ImageFilter{
		ProjectName: query.Get("project"),
		TargetName:  query.Get("target"),
	}
	if raw := query.Get("status"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			api.WriteError(writer, api.BadRequest("invalid status: %s", raw))
			return
		}
		status, err := catalog.ParseGradingStatus(value)
		if err != nil {
			api.WriteError(writer, api.BadRequest("%v", err))
			return
		}
		filter.Status = &status
	}
	limit, err := queryInt(request, "limit", 100, 1, 10000)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	offset, err := queryInt(request, "offset", 0, 0, 1<<30)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	filter.Limit = int64(limit)
	filter.Offset = int64(offset)

	records, err := s.application.catalog.QueryImages(request.Context(), filter)
	if err != nil {
		api.WriteError(writer, wrapCatalogError(err))
		return
	}
	responses := make([]imageResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, imageResponse{
			AcquiredImage: record.Image,
			GradingText:   catalog.GradingStatus(record.Image.GradingStatus).Description(),
			ProjectName:   record.ProjectName,
			TargetName:    record.TargetName,
		})
	}
	api.WriteJSON(writer, http.StatusOK, api.Success(responses))
}

// handleGetImage serves a single image with its resolved filesystem path.
func (s *Server) handleGetImage(writer http.ResponseWriter, request *http.Request) {
	id, err := pathParamID(request, "id")
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	record, err := s.application.catalog.ImageRecordByID(request.Context(), id)
	if err != nil {
		api.WriteError(writer, wrapCatalogError(err))
		return
	}

	response := imageResponse{
		AcquiredImage: record.Image,
		GradingText:   catalog.GradingStatus(record.Image.GradingStatus).Description(),
		ProjectName:   record.ProjectName,
		TargetName:    record.TargetName,
	}
	if basename := catalog.ParseMetadata(record.Image.Metadata).Basename(); basename != "" {
		if path, err := s.application.resolver.FindFITSFile(&record.Image, record.TargetName, basename); err == nil {
			response.ResolvedPath = path
		}
	}
	api.WriteJSON(writer, http.StatusOK, api.Success(response))
}

// gradeRequest is the body of the grading endpoint.
type gradeRequest struct {
	Status int     `json:"status"`
	Reason *string `json:"reason"`
}

// handleGradeImage updates an image's grading status.
func (s *Server) handleGradeImage(writer http.ResponseWriter, request *http.Request) {
	id, err := pathParamID(request, "id")
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	var body gradeRequest
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		api.WriteError(writer, api.BadRequest("invalid request body"))
		return
	}
	status, err := catalog.ParseGradingStatus(body.Status)
	if err != nil {
		api.WriteError(writer, api.BadRequest("%v", err))
		return
	}

	if err := s.application.catalog.UpdateGradingStatus(request.Context(), catalog.GradingUpdate{
		ImageID:      id,
		Status:       status,
		RejectReason: body.Reason,
	}); err != nil {
		api.WriteError(writer, wrapCatalogError(err))
		return
	}
	api.WriteJSON(writer, http.StatusOK, api.Success(map[string]interface{}{
		"id":     id,
		"status": status,
	}))
}
