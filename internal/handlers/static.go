package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"clipstream/internal/filesystem"
	"clipstream/internal/logging"
	"clipstream/internal/mediatypes"
	"clipstream/internal/streaming"
)

// ServeAsset serves manifests, segments and thumbnails from the asset root
// byte for byte. The manifest gets its own media type so players can tell
// it from the segments.
func (h *Handlers) ServeAsset(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]
	if rel == "" {
		http.Error(w, "Path is required", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.assetsDir, filepath.FromSlash(rel))
	if !isSubPath(h.assetsDir, fullPath) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	info, err := filesystem.StatWithRetry(fullPath, filesystem.DefaultRetryConfig())
	if err != nil || info.IsDir() {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	f, err := filesystem.OpenWithRetry(fullPath, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		logging.Error("ServeAsset: failed to open %s: %v", fullPath, err)
		http.Error(w, "Failed to access file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	ext := mediatypes.Ext(fullPath)
	assetType := mediatypes.GetAssetType(ext)
	w.Header().Set("Content-Type", mediatypes.GetMimeType(ext))
	switch assetType {
	case mediatypes.AssetTypeManifest:
		w.Header().Set("Cache-Control", "public, max-age=60")
	default:
		w.Header().Set("Cache-Control", "public, max-age=86400")
	}

	sw := streaming.NewWriter(r.Context(), w, h.stream)
	defer sw.Finish(string(assetType))
	http.ServeContent(sw, r, info.Name(), info.ModTime(), f)
}

// isSubPath reports whether child is inside parent.
func isSubPath(parent, child string) bool {
	absParent, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	absChild, err := filepath.Abs(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absParent, absChild)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
