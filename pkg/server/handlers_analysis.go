package server

import (
	"net/http"
	"strconv"

	"github.com/fitsight-io/fitsight/pkg/analysis"
	"github.com/fitsight-io/fitsight/pkg/api"
	"github.com/fitsight-io/fitsight/pkg/catalog"
)

// parseAnalyzerConfiguration derives an analyzer configuration from query
// parameters, starting from the defaults.
func parseAnalyzerConfiguration(request *http.Request) (analysis.Configuration, error) {
	configuration := analysis.DefaultConfiguration()

	gap, err := queryInt(request, "session_gap_minutes", int(configuration.SessionGapMinutes), 1, 24*60)
	if err != nil {
		return configuration, err
	}
	configuration.SessionGapMinutes = int64(gap)

	minLength, err := queryInt(request, "min_sequence_length", configuration.MinSequenceLength, 1, 1000)
	if err != nil {
		return configuration, err
	}
	configuration.MinSequenceLength = minLength

	// Weight overrides apply only when at least one weight parameter is
	// present. Omitted weights then default to zero, and the analyzer
	// renormalizes whatever arrives.
	var weights analysis.QualityWeights
	present := false
	parseWeight := func(name string, field *float64) error {
		raw := request.URL.Query().Get(name)
		if raw == "" {
			return nil
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return api.BadRequest("invalid %s: %s", name, raw)
		}
		*field = value
		present = true
		return nil
	}
	for _, parameter := range []struct {
		name  string
		field *float64
	}{
		{"weight_star_count", &weights.StarCount},
		{"weight_hfr", &weights.HFR},
		{"weight_eccentricity", &weights.Eccentricity},
		{"weight_snr", &weights.SNR},
		{"weight_background", &weights.Background},
	} {
		if err := parseWeight(parameter.name, parameter.field); err != nil {
			return configuration, err
		}
	}
	if present {
		configuration.QualityWeights = weights
	}

	return configuration, nil
}

// loadTargetMetrics fetches the metric stream for a target, optionally
// restricted to one filter.
func (s *Server) loadTargetMetrics(request *http.Request, targetID int64, filterName string) (*catalog.Target, []analysis.ImageMetrics, error) {
	targets, err := s.application.catalog.TargetsByIDs(request.Context(), []int64{targetID})
	if err != nil {
		return nil, nil, api.Database(err)
	}
	if len(targets) == 0 {
		return nil, nil, api.BadRequest("target %d not found", targetID)
	}
	target := targets[0]

	records, err := s.application.catalog.QueryImages(request.Context(), catalog.ImageFilter{
		TargetID:   targetID,
		FilterName: filterName,
	})
	if err != nil {
		return nil, nil, api.Database(err)
	}

	metrics := make([]analysis.ImageMetrics, 0, len(records))
	for _, record := range records {
		metrics = append(metrics, analysis.ExtractMetrics(
			record.Image.ID, record.Image.Metadata, record.Image.AcquiredDate,
		))
	}
	return &target, metrics, nil
}

// handleAnalyzeSequence scores the sequences of a target.
func (s *Server) handleAnalyzeSequence(writer http.ResponseWriter, request *http.Request) {
	targetID, err := queryInt(request, "target_id", 0, 1, 1<<30)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	if targetID == 0 {
		api.WriteError(writer, api.BadRequest("target_id is required"))
		return
	}
	configuration, err := parseAnalyzerConfiguration(request)
	if err != nil {
		api.WriteError(writer, err)
		return
	}
	filterName := request.URL.Query().Get("filter_name")

	target, metrics, err := s.loadTargetMetrics(request, int64(targetID), filterName)
	if err != nil {
		api.WriteError(writer, err)
		return
	}

	analyzer := analysis.NewAnalyzer(configuration)
	sequences := analyzer.Analyze(metrics, target.ID, target.Name, filterName)
	api.WriteJSON(writer, http.StatusOK, api.Success(sequences))
}

// imageAnalysisResponse pairs a single image's quality verdict with its
// sequence context.
type imageAnalysisResponse struct {
	Image    analysis.ImageQualityResult `json:"image"`
	Sequence analysis.ScoredSequence     `json:"sequence"`
}

// handleAnalyzeImage scores a single image within its sequence context.
func (s *Server) handleAnalyzeImage(writer http.ResponseWriter, request *http.Request) {
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

	target, metrics, err := s.loadTargetMetrics(request, record.Image.TargetID, record.Image.FilterName)
	if err != nil {
		api.WriteError(writer, err)
		return
	}

	analyzer := analysis.NewAnalyzer(analysis.DefaultConfiguration())
	sequences := analyzer.Analyze(metrics, target.ID, target.Name, record.Image.FilterName)
	for _, sequence := range sequences {
		for _, image := range sequence.Images {
			if image.ImageID == id {
				api.WriteJSON(writer, http.StatusOK, api.Success(imageAnalysisResponse{
					Image:    image,
					Sequence: sequence,
				}))
				return
			}
		}
	}
	api.WriteError(writer, api.NotFound("image %d not found in any sequence", id))
}
