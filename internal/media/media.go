// Package media provides centralized media type detection
// for the player, distinguishing between video and image content.
package media

import (
	"path/filepath"
	"strings"
)

// Type represents the kind of media file.
type Type int

const (
	Unknown Type = iota
	Video
	Image
)

func (t Type) String() string {
	switch t {
	case Video:
		return "video"
	case Image:
		return "image"
	default:
		return "unknown"
	}
}

var videoExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
	".ts":   true,
	".m4v":  true,
	".hevc": true,
	".flv":  true,
	".wmv":  true,
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".webp": true,
	".tiff": true,
	".svg":  true,
}

// isoExts are the containers Probe can read natively.
var isoExts = map[string]bool{
	".mp4": true,
	".m4v": true,
	".mov": true,
}

// Detect returns the media type for a given locator based on extension.
// Query strings on URLs are ignored.
func Detect(locator string) Type {
	ext := ext(locator)
	if videoExts[ext] {
		return Video
	}
	if imageExts[ext] {
		return Image
	}
	return Unknown
}

// IsSupported returns true if the locator has a recognized media extension.
func IsSupported(locator string) bool {
	return Detect(locator) != Unknown
}

// IsRemote reports whether the locator is a URL rather than a local path.
func IsRemote(locator string) bool {
	return strings.Contains(locator, "://")
}

func ext(locator string) string {
	if i := strings.IndexAny(locator, "?#"); i >= 0 && IsRemote(locator) {
		locator = locator[:i]
	}
	return strings.ToLower(filepath.Ext(locator))
}

// DefaultImageDuration is how long (in seconds) an image is displayed
// before advancing to the next item in the playlist.
const DefaultImageDuration = 10
