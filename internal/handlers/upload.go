package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"clipstream/internal/filesystem"
	"clipstream/internal/logging"
	"clipstream/internal/mediatypes"
	"clipstream/internal/metrics"
	"clipstream/internal/middleware"
	"clipstream/internal/pipeline"
)

const (
	maxFieldSize      = 64 << 10
	retryAfterSeconds = "30"
)

var (
	errTooLarge      = errors.New("upload exceeds the size limit")
	errBadExtension  = errors.New("unsupported file type")
	errMissingFile   = errors.New("missing file part")
	errFieldTooLarge = errors.New("form field too large")
)

// UploadAcceptedResponse is returned for asynchronous uploads.
type UploadAcceptedResponse struct {
	JobID     string          `json:"jobId"`
	Status    pipeline.Status `json:"status"`
	StatusURL string          `json:"statusUrl"`
}

type uploadForm struct {
	rawPath     string
	title       string
	description string
	size        int64
}

// UploadVideo accepts a multipart upload and runs it through the pipeline.
// By default the request waits for the published entry; with ?async=1 it
// returns as soon as the job is queued.
func (h *Handlers) UploadVideo(w http.ResponseWriter, r *http.Request) {
	uploader, ok := middleware.UploaderFromContext(r.Context())
	if !ok {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if h.memory != nil && h.memory.IsPaused() {
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSONError(w, "Server is busy, try again later", http.StatusServiceUnavailable)
		return
	}

	if h.maxUploadSize > 0 {
		// Room for the form fields and multipart framing.
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+maxFieldSize*4)
	}

	form, err := h.readUploadForm(r)
	if err != nil {
		if form.rawPath != "" {
			h.removeSpool(form.rawPath)
		}
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, errTooLarge), errors.As(err, &maxErr):
			writeJSONError(w, "File too large", http.StatusRequestEntityTooLarge)
		case errors.Is(err, errBadExtension), errors.Is(err, errMissingFile), errors.Is(err, errFieldTooLarge):
			writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{
				Error: pipeline.KindInvalidInput.Message(),
				Kind:  pipeline.KindInvalidInput,
			})
		default:
			logging.Warn("Upload from %s could not be read: %v", uploader, err)
			writeJSONError(w, "Invalid upload", http.StatusBadRequest)
		}
		return
	}
	metrics.HTTPUploadBytes.Add(float64(form.size))

	req := pipeline.UploadRequest{
		RawPath:     form.rawPath,
		Title:       form.title,
		Description: form.description,
		UploaderID:  uploader,
	}

	if isAsync(r) {
		job, err := h.pool.Submit(req)
		if err != nil {
			h.handleEnqueueError(w, form.rawPath, err)
			return
		}
		w.Header().Set(middleware.JobIDHeader, job.ID)
		writeJSONStatus(w, http.StatusAccepted, UploadAcceptedResponse{
			JobID:     job.ID,
			Status:    pipeline.StatusReceived,
			StatusURL: "/api/jobs/" + job.ID,
		})
		return
	}

	entry, err := h.pool.Do(r.Context(), req)
	if err != nil {
		h.handleEnqueueError(w, form.rawPath, err)
		return
	}
	w.Header().Set(middleware.JobIDHeader, entry.ID)
	writeJSONStatus(w, http.StatusCreated, entry)
}

// handleEnqueueError reports err. A full or closing queue did not take
// ownership of the raw file, so it is removed here.
func (h *Handlers) handleEnqueueError(w http.ResponseWriter, rawPath string, err error) {
	if errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrShuttingDown) {
		h.removeSpool(rawPath)
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSONError(w, "Server is busy, try again later", http.StatusServiceUnavailable)
		return
	}
	writePipelineError(w, err)
}

// readUploadForm streams the multipart body. The file part is spooled to
// the upload directory without buffering it in memory.
func (h *Handlers) readUploadForm(r *http.Request) (uploadForm, error) {
	var form uploadForm

	reader, err := r.MultipartReader()
	if err != nil {
		return form, err
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return form, err
		}

		switch part.FormName() {
		case "file":
			if form.rawPath != "" {
				part.Close()
				continue
			}
			form.rawPath, form.size, err = h.spool(part)
		case "title":
			form.title, err = readField(part)
		case "description":
			form.description, err = readField(part)
		}
		part.Close()
		if err != nil {
			return form, err
		}
	}

	if form.rawPath == "" {
		return form, errMissingFile
	}
	return form, nil
}

// spool copies part into a uniquely named file. On error the returned path
// is set whenever a file was created.
func (h *Handlers) spool(part *multipart.Part) (string, int64, error) {
	ext := mediatypes.Ext(part.FileName())
	if !mediatypes.IsUploadExtension(ext) {
		return "", 0, fmt.Errorf("%w: %q", errBadExtension, ext)
	}

	path := filepath.Join(h.uploadDir, uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}

	var src io.Reader = part
	if h.maxUploadSize > 0 {
		src = io.LimitReader(part, h.maxUploadSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return path, n, err
	}
	if h.maxUploadSize > 0 && n > h.maxUploadSize {
		return path, n, errTooLarge
	}
	return path, n, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxFieldSize {
		return "", errFieldTooLarge
	}
	return string(data), nil
}

func (h *Handlers) removeSpool(path string) {
	if err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
		logging.Warn("Failed to remove upload %s: %v", path, err)
	}
}

func isAsync(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("async")) {
	case "1", "true", "yes":
		return true
	}
	return false
}
