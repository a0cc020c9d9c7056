// Package util is a set of utility variables or methods
package util

import (
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var PhotoExt = mapset.NewSet(
	".jpeg", ".jpg",
	".png",
	".gif",
	".bmp",
	".webp",
)

var VideoExt = mapset.NewSet(
	".mp4",
	".mov",
	".mkv",
	".avi",
	".webm",
	".wmv",
)

// IsPhoto reports whether path has a supported photo extension, ignoring case.
func IsPhoto(path string) bool {
	return PhotoExt.Contains(strings.ToLower(filepath.Ext(path)))
}

// IsVideo reports whether path has a supported video extension, ignoring case.
func IsVideo(path string) bool {
	return VideoExt.Contains(strings.ToLower(filepath.Ext(path)))
}

// IsMedia reports whether path is a supported photo or video.
func IsMedia(path string) bool {
	return IsPhoto(path) || IsVideo(path)
}
