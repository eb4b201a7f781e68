// Package storage owns the on-disk archive layout of a profile and the flush
// that sorts freshly downloaded files into it.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sdheenr/Auto-Insta/pkg/logger"
)

// File classes recognized by the flush. Anything else stays where it is.
var (
	mediaExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
		".mp4": true, ".mov": true,
	}
	metadataExtensions = map[string]bool{
		".txt": true, ".json": true, ".xz": true, ".xml": true, ".log": true,
	}
)

// Layout describes one profile's directory tree:
//
//	<base>/<profile>/               raw download target
//	<base>/<profile>/media/         sorted media files
//	<base>/<profile>/metadata/      sorted metadata plus markers
//	<base>/<profile>/stories/       story assets
//	<base>/<profile>/highlights/    one subdirectory per highlight title
type Layout struct {
	Root string
	log  logger.Logger
}

// NewLayout creates the layout for one profile under the base directory.
func NewLayout(baseDir, profile string, log logger.Logger) *Layout {
	return &Layout{
		Root: filepath.Join(baseDir, profile),
		log:  log,
	}
}

// MediaDir returns the sorted-media directory.
func (l *Layout) MediaDir() string { return filepath.Join(l.Root, "media") }

// MetadataDir returns the metadata directory.
func (l *Layout) MetadataDir() string { return filepath.Join(l.Root, "metadata") }

// StoriesDir returns the stories directory.
func (l *Layout) StoriesDir() string { return filepath.Join(l.Root, "stories") }

// HighlightsDir returns the directory for one highlight collection. An empty
// title maps to "untitled".
func (l *Layout) HighlightsDir(title string) string {
	return filepath.Join(l.Root, "highlights", SanitizeTitle(title))
}

// EnsureDirs creates the fixed directories of the layout.
func (l *Layout) EnsureDirs() error {
	for _, dir := range []string{l.Root, l.MediaDir(), l.MetadataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MoveSorted moves finished downloads out of the raw profile root: media
// files into media/, metadata files into metadata/. Partial downloads
// (.tmp, .part, trailing ~) and subdirectories are left untouched. An
// existing destination file is never overwritten.
func (l *Layout) MoveSorted() (moved int, err error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read profile directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if isPartial(name) {
			continue
		}

		ext := strings.ToLower(filepath.Ext(name))
		var destDir string
		switch {
		case mediaExtensions[ext]:
			destDir = l.MediaDir()
		case metadataExtensions[ext]:
			destDir = l.MetadataDir()
		default:
			continue
		}

		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return moved, fmt.Errorf("failed to create directory %s: %w", destDir, err)
		}

		src := filepath.Join(l.Root, name)
		dst := filepath.Join(destDir, name)
		if _, err := os.Stat(dst); err == nil {
			// Already sorted earlier; drop the duplicate.
			if err := os.Remove(src); err != nil {
				l.log.WithField("file", name).WithError(err).Warn("failed to drop duplicate raw file")
			}
			continue
		}

		if err := os.Rename(src, dst); err != nil {
			l.log.WithField("file", name).WithError(err).Warn("failed to sort file")
			continue
		}
		moved++
	}

	if moved > 0 {
		l.log.DebugWithFields("sorted raw downloads", map[string]interface{}{
			"root":  l.Root,
			"moved": moved,
		})
	}
	return moved, nil
}

func isPartial(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".tmp") ||
		strings.HasSuffix(lower, ".part") ||
		strings.HasSuffix(name, "~")
}

var unsafeTitleChars = regexp.MustCompile(`[^\p{L}\p{N}_\- ]+`)

// SanitizeTitle turns a highlight title into a safe directory name.
func SanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = unsafeTitleChars.ReplaceAllString(title, "_")
	title = strings.Trim(title, " ._")
	if title == "" {
		return "untitled"
	}
	return title
}
