package helpers

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"
)

func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

func IsVideo(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "video/")
}

// mediaTypes covers extensions the platform APIs accept; the system mime
// table is not guaranteed to know them.
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".m4v":  "video/x-m4v",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

// MimeType returns declared when set, otherwise a guess from the file extension.
func MimeType(declared, fileURL string) string {
	if declared != "" {
		return declared
	}
	ext := GetFileExtension(fileURL)
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func GetFileExtension(url string) string {
	params := strings.Split(url, "?")
	// Split the URL by the last "/"
	parts := strings.Split(params[0], "/")
	filename := parts[len(parts)-1]
	return strings.ToLower(filepath.Ext(filename))
}

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

// ExtractHashtags returns the hashtags in text without the leading '#',
// in order of appearance and without duplicates.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		tags = append(tags, m[1])
	}
	return tags
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
