package mediatypes

import (
	"path/filepath"
	"strings"
)

// AssetType represents the kind of a published asset file.
type AssetType string

const (
	// AssetTypeManifest is an HLS index playlist.
	AssetTypeManifest AssetType = "manifest"
	// AssetTypeSegment is an MPEG-TS media segment.
	AssetTypeSegment AssetType = "segment"
	// AssetTypeThumbnail is a still image.
	AssetTypeThumbnail AssetType = "thumbnail"
	// AssetTypeOther represents anything the asset root should not contain.
	AssetTypeOther AssetType = "other"
)

// UploadExtensions maps file extensions to whether they are accepted as raw uploads.
var UploadExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

var assetTypes = map[string]AssetType{
	".m3u8": AssetTypeManifest,
	".ts":   AssetTypeSegment,
	".jpg":  AssetTypeThumbnail,
	".jpeg": AssetTypeThumbnail,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Published assets
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",

	// Uploads
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
}

// Ext returns the lowercase extension of name including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsUploadExtension reports whether a raw upload with this extension is accepted.
// The extension should be lowercase and include the leading dot (e.g., ".mp4").
func IsUploadExtension(ext string) bool {
	return UploadExtensions[ext]
}

// GetAssetType returns the AssetType for a given file extension.
func GetAssetType(ext string) AssetType {
	if t, ok := assetTypes[ext]; ok {
		return t
	}
	return AssetTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
