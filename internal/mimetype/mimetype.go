// Package mimetype maps file extensions to content types.
package mimetype

import (
	"path"
	"strings"
)

// Default is served for extensions missing from the table.
const Default = "application/octet-stream"

const (
	HLSManifest = "application/vnd.apple.mpegurl"
	MPEGTS      = "video/mp2t"
)

var byExtension = map[string]string{
	// video
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
	".wmv":  "video/x-ms-wmv",
	".3gp":  "video/3gpp",
	".ts":   MPEGTS,
	".m3u8": HLSManifest,

	// audio
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".flac": "audio/flac",
	".opus": "audio/opus",

	// images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".avif": "image/avif",

	// documents
	".pdf":  "application/pdf",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
	".json": "application/json",
	".xml":  "application/xml",
	".html": "text/html; charset=utf-8",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".zip":  "application/zip",
}

// ByName returns the content type for a file name or object key.
// Unknown extensions map to Default.
func ByName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := byExtension[ext]; ok {
		return ct
	}
	return Default
}

// IsVideo reports whether a file should be handed to the transcode pipeline.
// An explicit video/* content type wins; otherwise the extension decides.
// HLS output itself is never treated as a transcode source.
func IsVideo(name, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == HLSManifest || ct == MPEGTS {
		return false
	}
	if strings.HasPrefix(ct, "video/") {
		return true
	}
	byExt := ByName(name)
	return strings.HasPrefix(byExt, "video/") && byExt != MPEGTS
}
