package api

import (
	"encoding/json"
	"net/http"

	"github.com/fitsight-io/fitsight/pkg/filecheck"
)

// RefreshStatus is the wire form of the cache refresh state carried in every
// envelope.
type RefreshStatus string

const (
	// RefreshStatusReady indicates fresh data.
	RefreshStatusReady RefreshStatus = "ready"
	// RefreshStatusLoading indicates that no data is available yet.
	RefreshStatusLoading RefreshStatus = "loading"
	// RefreshStatusRefreshing indicates stale data with a refresh in flight.
	RefreshStatusRefreshing RefreshStatus = "refreshing"
)

// WireStatus converts a cache refresh status to its wire form.
func WireStatus(status filecheck.RefreshStatus) RefreshStatus {
	switch status {
	case filecheck.RefreshStatusNotNeeded:
		return RefreshStatusReady
	case filecheck.RefreshStatusInProgressServeStale:
		return RefreshStatusRefreshing
	default:
		return RefreshStatusLoading
	}
}

// Envelope is the uniform JSON response shape.
type Envelope struct {
	// Success indicates whether or not the request succeeded.
	Success bool `json:"success"`
	// Data is the response payload, if any.
	Data interface{} `json:"data"`
	// Error is the error message, if any.
	Error *string `json:"error"`
	// Status is the refresh status, absent on errors.
	Status *RefreshStatus `json:"status"`
}

// Success creates a success envelope with ready status.
func Success(data interface{}) Envelope {
	status := RefreshStatusReady
	return Envelope{Success: true, Data: data, Status: &status}
}

// SuccessWithStatus creates a success envelope with an explicit status.
func SuccessWithStatus(data interface{}, status RefreshStatus) Envelope {
	return Envelope{Success: true, Data: data, Status: &status}
}

// Loading creates a data-less success envelope with loading status.
func Loading() Envelope {
	status := RefreshStatusLoading
	return Envelope{Success: true, Status: &status}
}

// Failure creates an error envelope.
func Failure(message string) Envelope {
	return Envelope{Success: false, Error: &message}
}

// WriteJSON writes an envelope with the specified HTTP status.
func WriteJSON(writer http.ResponseWriter, statusCode int, envelope Envelope) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	json.NewEncoder(writer).Encode(envelope)
}

// WriteError writes an error as its envelope and HTTP status.
func WriteError(writer http.ResponseWriter, err error) {
	apiError := AsError(err)
	WriteJSON(writer, apiError.StatusCode(), Failure(apiError.Message))
}
