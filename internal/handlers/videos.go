package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"clipstream/internal/database"
	"clipstream/internal/jobstatus"
	"clipstream/internal/logging"
	"clipstream/internal/middleware"
)

// ListVideos returns visible entries, newest first.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	opts := database.ListOptions{
		UploaderID: r.URL.Query().Get("uploader"),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}

	entries, err := h.catalog.List(r.Context(), opts)
	if err != nil {
		logging.Error("ListVideos: %v", err)
		writeJSONError(w, "Failed to list videos", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, entries)
}

// GetVideo returns one visible entry.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entry, err := h.catalog.GetByID(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !entry.IsPublic) {
		writeJSONError(w, "Video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("GetVideo %s: %v", id, err)
		writeJSONError(w, "Failed to load video", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, entry)
}

// GetJob returns the status record of an upload job.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if h.tracker == nil {
		writeJSONError(w, "Job not found", http.StatusNotFound)
		return
	}

	rec, err := h.tracker.Get(r.Context(), id)
	if errors.Is(err, jobstatus.ErrNotFound) {
		writeJSONError(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("GetJob %s: %v", id, err)
		writeJSONError(w, "Failed to load job status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(middleware.JobIDHeader, rec.ID)
	writeJSONStatus(w, http.StatusOK, rec)
}
