package bulkupload

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var whitespace = regexp.MustCompile(`\s+`)

// RemoteName flattens a path relative to the entry directory into one file
// name: separators and whitespace runs become "_", and the result is NFC so
// names typed on different systems compare equal.
func RemoteName(rel string) string {
	n := filepath.ToSlash(rel)
	n = strings.TrimPrefix(n, "./")
	n = strings.ReplaceAll(n, "/", "_")
	n = whitespace.ReplaceAllString(strings.TrimSpace(n), "_")
	return norm.NFC.String(n)
}

// extraTypes covers extensions the platform MIME table often lacks.
var extraTypes = map[string]string{
	".heic": "image/heic",
	".heif": "image/heif",
	".webp": "image/webp",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".hwp":  "application/x-hwp",
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// MimeType resolves a content type from the file extension.
func MimeType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "application/octet-stream"
	}
	if t, ok := extraTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	return "application/octet-stream"
}
