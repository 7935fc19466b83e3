package upload

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// AcceptedExtensions are the audio formats the backend transcribes.
var AcceptedExtensions = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg"}

// Accepts reports whether name has an accepted audio extension.
func Accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AcceptedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// AcceptsMIME reports whether contentType is an audio type.
func AcceptsMIME(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "audio/")
}

// Partition splits names into accepted and rejected.
func Partition(names []string) (accepted, rejected []string) {
	for _, n := range names {
		if Accepts(n) {
			accepted = append(accepted, n)
		} else {
			rejected = append(rejected, n)
		}
	}
	return accepted, rejected
}

// FormatSize renders a byte count in megabytes with two decimals.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}
