package server

import (
	"net/http"

	"github.com/fitsight-io/fitsight/pkg/api"
	"github.com/fitsight-io/fitsight/pkg/catalog"
)

// imageArtifactContext resolves the image record and basename an artifact
// endpoint operates on.
func (s *Server) imageArtifactContext(request *http.Request) (*catalog.ImageRecord, string, error) {
	id, err := pathParamID(request, "id")
	if err != nil {
		return nil, "", err
	}
	record, err := s.application.catalog.ImageRecordByID(request.Context(), id)
	if err != nil {
		return nil, "", wrapCatalogError(err)
	}
	basename := catalog.ParseMetadata(record.Image.Metadata).Basename()
	if basename == "" {
		return nil, "", api.BadRequest("image %d has no recorded file name", id)
	}
	return &record, basename, nil
}

// writePNG writes PNG bytes.
func writePNG(writer http.ResponseWriter, data []byte) {
	writer.Header().Set("Content-Type", "image/png")
	writer.WriteHeader(http.StatusOK)
	writer.Write(data)
}

// writeJSONBytes writes a pre-encoded JSON document.
func writeJSONBytes(writer http.ResponseWriter, data []byte) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusOK)
	writer.Write(data)
}

// handleImagePreview serves the preview PNG for an image.
func (s *Server) handleImagePreview(writer http.ResponseWriter, request *http.Request) {
	record, basename, err := s.imageArtifactContext(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	options, err := parsePreviewOptions(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	data, err := s.application.artifacts.Preview(request.Context(), &record.Image, record.TargetName, basename, options)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	writePNG(writer, data)
}

// handleImageAnnotated serves the annotated PNG for an image.
func (s *Server) handleImageAnnotated(writer http.ResponseWriter, request *http.Request) {
	record, basename, err := s.imageArtifactContext(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	options, err := parseAnnotatedOptions(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	data, err := s.application.artifacts.Annotated(request.Context(), &record.Image, record.TargetName, basename, options)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	writePNG(writer, data)
}

// handleImageStars serves the star-detection JSON for an image.
func (s *Server) handleImageStars(writer http.ResponseWriter, request *http.Request) {
	record, basename, err := s.imageArtifactContext(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	data, err := s.application.artifacts.Stars(request.Context(), &record.Image, record.TargetName, basename)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	writeJSONBytes(writer, data)
}

// handleImagePSF serves the PSF mosaic PNG for an image.
func (s *Server) handleImagePSF(writer http.ResponseWriter, request *http.Request) {
	record, basename, err := s.imageArtifactContext(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	options, err := parsePSFOptions(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	data, err := s.application.artifacts.PSFMosaic(request.Context(), &record.Image, record.TargetName, basename, options)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	writePNG(writer, data)
}

// handleImageStatistics serves the FITS statistics JSON for an image.
func (s *Server) handleImageStatistics(writer http.ResponseWriter, request *http.Request) {
	record, basename, err := s.imageArtifactContext(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	data, err := s.application.artifacts.Statistics(request.Context(), &record.Image, record.TargetName, basename)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	writeJSONBytes(writer, data)
}

// handleRefreshCache forces a file-check cache refresh without blocking.
func (s *Server) handleRefreshCache(writer http.ResponseWriter, request *http.Request) {
	status := s.application.coordinator.ForceRefresh()
	api.WriteJSON(writer, http.StatusOK, api.SuccessWithStatus(map[string]interface{}{
		"refresh_status": status,
	}, api.WireStatus(status)))
}

// handleRefreshDirectoryCache forces a directory tree rebuild.
func (s *Server) handleRefreshDirectoryCache(writer http.ResponseWriter, request *http.Request) {
	tree, err := s.application.trees.Rebuild(nil)
	if err != nil {
		api.WriteError(writer, api.Internal("cache rebuild failed", err))
		return
	}
	api.WriteJSON(writer, http.StatusOK, api.Success(tree.Stats()))
}

// handleCacheProgress serves the refresh progress snapshot.
func (s *Server) handleCacheProgress(writer http.ResponseWriter, request *http.Request) {
	progress := s.application.coordinator.Cache().Progress()
	api.WriteJSON(writer, http.StatusOK, api.Success(map[string]interface{}{
		"progress":   progress,
		"percentage": progress.Percentage(),
	}))
}
