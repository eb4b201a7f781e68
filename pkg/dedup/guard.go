// Package dedup suppresses re-downloads of items already archived. It
// consults two authorities: the per-profile media-log ledger CSV and the
// files actually present on disk.
package dedup

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/sdheenr/Auto-Insta/pkg/logger"
)

// Guard answers "have we already got this item?" using the media-log ledger
// and the on-disk archive. Ledger files are parsed once per profile and
// cached for the run.
type Guard struct {
	// ledgerRoot holds per-profile ledger CSVs named <profile>_media_log.csv.
	ledgerRoot string
	log        logger.Logger

	mu     sync.Mutex
	byProf map[string][]string
}

// NewGuard creates a guard over the given ledger root.
func NewGuard(ledgerRoot string, log logger.Logger) *Guard {
	return &Guard{
		ledgerRoot: ledgerRoot,
		log:        log,
		byProf:     make(map[string][]string),
	}
}

// Logged reports whether an item with the given basename or shortcode appears
// in the profile's ledger. mediaDir is the profile's media directory, used as
// the fallback ledger location. A missing or unreadable ledger means "not
// logged".
func (g *Guard) Logged(profile, mediaDir, basename, shortcode string) bool {
	entries := g.entries(profile, mediaDir)
	for _, filename := range entries {
		if basename != "" && strings.HasPrefix(filename, basename) {
			return true
		}
		if shortcode != "" && strings.Contains(filename, shortcode) {
			return true
		}
	}
	return false
}

// entries returns the cached filename column of the profile's ledger, loading
// it on first use.
func (g *Guard) entries(profile, mediaDir string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cached, ok := g.byProf[profile]; ok {
		return cached
	}

	entries := g.loadLedger(profile, mediaDir)
	g.byProf[profile] = entries
	return entries
}

// loadLedger reads the filename column from the profile's ledger CSV. The
// central ledger root is tried first, then the legacy per-profile location
// inside the media directory.
func (g *Guard) loadLedger(profile, mediaDir string) []string {
	candidates := []string{
		filepath.Join(g.ledgerRoot, profile+"_media_log.csv"),
	}
	if mediaDir != "" {
		candidates = append(candidates, filepath.Join(mediaDir, "media_log.csv"))
	}

	for _, path := range candidates {
		entries, err := readFilenameColumn(path)
		if err != nil {
			if !os.IsNotExist(err) {
				g.log.WithField("path", path).WithError(err).Warn("failed to read ledger, ignoring it")
			}
			continue
		}
		g.log.DebugWithFields("ledger loaded", map[string]interface{}{
			"profile": profile,
			"path":    path,
			"entries": len(entries),
		})
		return entries
	}
	return nil
}

// readFilenameColumn extracts the "filename" column (matched
// case-insensitively) from a ledger CSV.
func readFilenameColumn(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}

	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "filename") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("ledger %s has no filename column", path)
	}

	var entries []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger row: %w", err)
		}
		if col < len(record) {
			if filename := strings.TrimSpace(record[col]); filename != "" {
				entries = append(entries, filename)
			}
		}
	}
	return entries, nil
}

// mediaExtPattern matches media files whose stem is the key, allowing the
// numbered suffixes multi-asset items produce (key_1.jpg, key_2.mp4, ...).
func mediaKeyRegexp(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(key) + `(?:_.+)?\.(jpg|jpeg|png|webp|mp4|mov)$`)
}

func videoKeyRegexp(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(key) + `(?:_.+)?\.mp4$`)
}

// MediaOnDisk reports whether any media file for the basename or shortcode
// exists in the given directories.
func MediaOnDisk(dirs []string, basename, shortcode string) bool {
	return anyFileMatches(dirs, basename, shortcode, mediaKeyRegexp)
}

// VideoOnDisk reports whether a video file for the basename or shortcode
// exists in the given directories.
func VideoOnDisk(dirs []string, basename, shortcode string) bool {
	return anyFileMatches(dirs, basename, shortcode, videoKeyRegexp)
}

func anyFileMatches(dirs []string, basename, shortcode string, build func(string) *regexp.Regexp) bool {
	var patterns []*regexp.Regexp
	if basename != "" {
		patterns = append(patterns, build(basename))
	}
	if shortcode != "" && shortcode != basename {
		patterns = append(patterns, build(shortcode))
	}
	if len(patterns) == 0 {
		return false
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			for _, re := range patterns {
				if re.MatchString(name) {
					return true
				}
			}
		}
	}
	return false
}
