// Package marker persists the per-profile, per-stream incremental boundary:
// the identity of the newest item known to be archived. A scan that reaches
// the boundary can stop instead of walking the whole history.
package marker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sdheenr/Auto-Insta/pkg/logger"
)

// identTimeLayout is the wire format of marker timestamps. Lexicographic
// order on this layout equals chronological order, which is what Compare
// relies on.
const identTimeLayout = "2006-01-02T15:04:05"

// Ident identifies one item for boundary purposes.
type Ident struct {
	// TS is the item's UTC publish time in identTimeLayout.
	TS string `json:"ts"`
	// Shortcode is the provider's public item identifier.
	Shortcode string `json:"shortcode"`
}

// FromTime builds an Ident from a publish time and shortcode.
func FromTime(t time.Time, shortcode string) Ident {
	return Ident{
		TS:        t.UTC().Format(identTimeLayout),
		Shortcode: shortcode,
	}
}

// IsZero reports whether the ident carries no boundary.
func (id Ident) IsZero() bool {
	return id.TS == "" && id.Shortcode == ""
}

// Compare orders idents by timestamp, shortcode breaking ties: -1 when id
// is older than other, 0 when equal, +1 when newer.
func (id Ident) Compare(other Ident) int {
	if c := strings.Compare(id.TS, other.TS); c != 0 {
		return c
	}
	return strings.Compare(id.Shortcode, other.Shortcode)
}

// Newer reports whether id is strictly newer than other. A zero other never
// wins.
func (id Ident) Newer(other Ident) bool {
	if other.IsZero() {
		return !id.IsZero()
	}
	return id.Compare(other) > 0
}

// Time parses the ident's timestamp. Zero time when unset or malformed.
func (id Ident) Time() time.Time {
	t, err := time.Parse(identTimeLayout, id.TS)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Tracker loads and saves the boundary markers of one profile. Markers live
// under the profile's metadata directory as latest_seen_<stream>.json.
type Tracker struct {
	profileDir string
	log        logger.Logger
}

// NewTracker creates a tracker over a profile directory.
func NewTracker(profileDir string, log logger.Logger) *Tracker {
	return &Tracker{profileDir: profileDir, log: log}
}

func (t *Tracker) path(stream string) string {
	return filepath.Join(t.profileDir, "metadata", fmt.Sprintf("latest_seen_%s.json", stream))
}

// Load reads the marker for a stream. A missing or corrupt marker file
// yields a zero Ident; corruption is logged and treated as no boundary.
func (t *Tracker) Load(stream string) Ident {
	data, err := os.ReadFile(t.path(stream))
	if err != nil {
		return Ident{}
	}

	var id Ident
	if err := json.Unmarshal(data, &id); err != nil {
		t.log.WithField("stream", stream).WithError(err).Warn("corrupt marker file, starting without boundary")
		return Ident{}
	}
	return id
}

// Save atomically writes the marker for a stream. The reason is logged so a
// run log explains every boundary movement.
func (t *Tracker) Save(stream string, id Ident, reason string) error {
	path := t.path(stream)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}

	// Write to a temp file first, then rename for atomicity.
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write marker file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save marker file: %w", err)
	}

	t.log.InfoWithFields("marker saved", map[string]interface{}{
		"stream":    stream,
		"ts":        id.TS,
		"shortcode": id.Shortcode,
		"reason":    reason,
	})
	return nil
}

// timestampKeys are the metadata fields consulted, in order, when recovering
// an item's publish time from an archived metadata JSON.
var timestampKeys = []string{"date_utc", "taken_at", "date"}

// stemTimeLayout matches archive file stems like 2024-01-31_23-59-59_UTC.
const stemTimeLayout = "2006-01-02_15-04-05_UTC"

// NewestFromDisk recovers the newest archived item of a profile by scanning
// its metadata directory. Used to seed a marker when none was persisted but
// an archive already exists. Returns a zero Ident when nothing is found.
func NewestFromDisk(profileDir string) Ident {
	metaDir := filepath.Join(profileDir, "metadata")
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		return Ident{}
	}

	var newest Ident
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if strings.HasPrefix(entry.Name(), "latest_seen_") {
			continue
		}

		id := identFromMetadataFile(filepath.Join(metaDir, entry.Name()))
		if id.IsZero() {
			id = identFromStem(entry.Name())
		}
		if id.Newer(newest) {
			newest = id
		}
	}
	return newest
}

// identFromMetadataFile extracts an ident from an archived metadata JSON.
func identFromMetadataFile(path string) Ident {
	data, err := os.ReadFile(path)
	if err != nil {
		return Ident{}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Ident{}
	}

	shortcode, _ := doc["shortcode"].(string)

	for _, key := range timestampKeys {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		if t, ok := parseTimestampValue(raw); ok {
			return FromTime(t, shortcode)
		}
	}
	return Ident{}
}

// parseTimestampValue handles the timestamp shapes found in archived
// metadata: unix seconds or a handful of string layouts.
func parseTimestampValue(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(v), 0).UTC(), true
	case string:
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			identTimeLayout,
			stemTimeLayout,
		} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// identFromStem recovers a publish time from an archive filename stem.
func identFromStem(name string) Ident {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if len(stem) < len(stemTimeLayout) {
		return Ident{}
	}
	t, err := time.Parse(stemTimeLayout, stem[:len(stemTimeLayout)])
	if err != nil {
		return Ident{}
	}
	return FromTime(t, "")
}
