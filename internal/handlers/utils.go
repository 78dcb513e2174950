package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"clipstream/internal/logging"
	"clipstream/internal/middleware"
	"clipstream/internal/pipeline"
)

// StatusClientClosedRequest is the de facto status for a request abandoned
// by its caller.
const StatusClientClosedRequest = 499

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// ErrorResponse is the body of a failed upload.
type ErrorResponse struct {
	Error string        `json:"error"`
	Kind  pipeline.Kind `json:"kind,omitempty"`
	JobID string        `json:"jobId,omitempty"`
}

// statusForKind maps a failure kind to its HTTP status.
func statusForKind(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindProbeFailed, pipeline.KindEncodeFailed, pipeline.KindThumbnailFailed:
		return http.StatusUnprocessableEntity
	case pipeline.KindTimeout:
		return http.StatusGatewayTimeout
	case pipeline.KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writePipelineError reports a failed upload with one user-facing message
// per kind. Stage detail was already logged by the coordinator.
func writePipelineError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		logging.Error("Upload failed: %v", err)
		writeJSONError(w, "The video could not be processed", http.StatusInternalServerError)
		return
	}

	if perr.JobID != "" {
		w.Header().Set(middleware.JobIDHeader, perr.JobID)
	}
	writeJSONStatus(w, statusForKind(perr.Kind), ErrorResponse{
		Error: perr.Kind.Message(),
		Kind:  perr.Kind,
		JobID: perr.JobID,
	})
}
