package audio

import (
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtension is used when neither the filename nor the content type identifies the format.
const DefaultExtension = "mp3"

// SupportedExtensions lists the file extensions accepted as-is from an upload's filename.
var SupportedExtensions = []string{"mp3", "wav", "m4a", "flac", "aac", "ogg", "mp4", "wma"}

var subtypeExtensions = map[string]string{
	"mpeg":   "mp3",
	"mp3":    "mp3",
	"wav":    "wav",
	"x-wav":  "wav",
	"wave":   "wav",
	"aac":    "aac",
	"ogg":    "ogg",
	"vorbis": "ogg",
	"flac":   "flac",
}

// ResolveExtension picks the extension for a stored upload: the filename's extension if
// it is supported, then the declared content type, then DefaultExtension.
func ResolveExtension(filename, contentType string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if slices.Contains(SupportedExtensions, ext) {
		return ext
	}

	if i := strings.LastIndex(contentType, "/"); i >= 0 {
		subtype := strings.ToLower(contentType[i+1:])
		if j := strings.IndexByte(subtype, ';'); j >= 0 {
			subtype = subtype[:j]
		}
		if ext, ok := subtypeExtensions[strings.TrimSpace(subtype)]; ok {
			return ext
		}
	}

	return DefaultExtension
}

// IsMediaContentType reports whether a declared content type looks like audio or video.
// An empty content type is treated as unknown and accepted.
func IsMediaContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/")
}
