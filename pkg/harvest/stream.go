package harvest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sdheenr/Auto-Insta/pkg/config"
	"github.com/sdheenr/Auto-Insta/pkg/contentsource"
	"github.com/sdheenr/Auto-Insta/pkg/dedup"
	"github.com/sdheenr/Auto-Insta/pkg/logger"
	"github.com/sdheenr/Auto-Insta/pkg/marker"
	"github.com/sdheenr/Auto-Insta/pkg/ratelimit"
	"github.com/sdheenr/Auto-Insta/pkg/retry"
	"github.com/sdheenr/Auto-Insta/pkg/storage"
)

// streamHarvester walks one stream of one profile newest-first and downloads
// everything the archive does not yet hold.
type streamHarvester struct {
	cfg      *config.HarvestConfig
	sessions SessionSource
	guard    *dedup.Guard
	tracker  *marker.Tracker
	layout   *storage.Layout
	log      logger.Logger
	sleep    sleeper

	mode   Mode
	window Window
}

// usesMarkers reports whether the stream kind has an incremental boundary.
// Stories and highlights are small, ephemeral or finite; they are always
// walked in full and deduplicated purely against disk.
func usesMarkers(kind contentsource.StreamKind) bool {
	return kind == contentsource.StreamFeed || kind == contentsource.StreamReels
}

// destDir returns the download target for an item of the given stream.
func (h *streamHarvester) destDir(kind contentsource.StreamKind, item *contentsource.Item) string {
	switch kind {
	case contentsource.StreamStories:
		return h.layout.StoriesDir()
	case contentsource.StreamHighlights:
		return h.layout.HighlightsDir(item.Collection)
	default:
		// Feed and reels land in the raw profile root and are sorted into
		// media/ and metadata/ by the flush at the end of the profile.
		return h.layout.Root
	}
}

// searchDirs returns the directories consulted when checking whether an item
// is already archived.
func (h *streamHarvester) searchDirs(kind contentsource.StreamKind, item *contentsource.Item) []string {
	switch kind {
	case contentsource.StreamStories:
		return []string{h.layout.StoriesDir()}
	case contentsource.StreamHighlights:
		return []string{h.layout.HighlightsDir(item.Collection)}
	default:
		return []string{h.layout.Root, h.layout.MediaDir()}
	}
}

// harvest walks one stream. Provider failures during enumeration are
// returned to the caller for profile-level recovery; per-item download
// failures only burn their own retry budget.
func (h *streamHarvester) harvest(ctx context.Context, profile string, kind contentsource.StreamKind) (StreamStats, error) {
	var stats StreamStats

	streamName := string(kind)
	log := h.log.WithFields(map[string]interface{}{
		"profile": profile,
		"stream":  streamName,
	})

	withMarkers := usesMarkers(kind)
	var boundary marker.Ident
	if withMarkers {
		boundary = h.tracker.Load(streamName)
	}
	seeded := !boundary.IsZero()

	it, err := h.sessions.Active().Items(profile, kind)
	if err != nil {
		return stats, fmt.Errorf("failed to open %s stream: %w", streamName, err)
	}

	pacer := ratelimit.NewPacer(h.cfg.IterThrottle)
	itemPolicy := retry.ItemPolicy(h.cfg.ItemRetries, h.cfg.ItemBackoffBase, h.cfg.ItemBackoffCap)

	var (
		consecSeen    int
		topSeen       marker.Ident
		maxDownloaded marker.Ident
	)

	for {
		if err := pacer.Wait(ctx); err != nil {
			return stats, err
		}
		h.sessions.MaybeTimeRotate()

		item, err := it.Next()
		if err == contentsource.ErrEndOfStream {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to advance %s stream: %w", streamName, err)
		}

		ident := marker.FromTime(item.TakenAt, item.Shortcode)

		// Date-window filter. The scan is newest-first, so in bulk mode an
		// item at or under the lower bound ends it; in the other modes
		// out-of-window items are merely skipped.
		if h.mode == ModeBulk && h.window.Below(item.TakenAt) {
			log.Debug("reached window lower bound, ending scan")
			break
		}
		if !h.window.Contains(item.TakenAt) {
			continue
		}

		if topSeen.IsZero() {
			topSeen = ident
		}

		// Boundary check. The marker bounds the scan, it does not skip
		// items: one at or under the marker feeds the seen streak and still
		// falls through to the duplicate guard, so holes in the archive get
		// filled. Once this run has downloaded something, crossing back
		// under the boundary means the gap is closed and the scan ends
		// immediately. The streak exists to step over pinned items that
		// sort out of order at the top of the stream.
		streakCounted := false
		if h.mode == ModeIncremental && withMarkers && seeded {
			if ident.Compare(boundary) <= 0 {
				if stats.Downloaded > 0 {
					log.DebugWithFields("crossed back under boundary, ending scan", map[string]interface{}{
						"shortcode": item.Shortcode,
					})
					break
				}
				consecSeen++
				streakCounted = true
				if consecSeen >= h.cfg.SeenStreakStop {
					log.DebugWithFields("seen streak reached, ending scan", map[string]interface{}{
						"streak": consecSeen,
					})
					break
				}
			} else {
				// An item above the boundary interrupts the streak.
				consecSeen = 0
			}
		}

		// Duplicate suppression against the ledger and the archive.
		basename := item.Basename()
		dirs := h.searchDirs(kind, item)
		archived := dedup.MediaOnDisk(dirs, basename, item.Shortcode)
		if !archived && withMarkers {
			archived = h.guard.Logged(profile, h.layout.MediaDir(), basename, item.Shortcode)
		}
		if archived {
			stats.Seen++
			if h.mode == ModeIncremental && withMarkers && !streakCounted {
				consecSeen++
				if stats.Downloaded == 0 && consecSeen >= h.cfg.SeenStreakStop {
					log.DebugWithFields("seen streak reached, ending scan", map[string]interface{}{
						"streak": consecSeen,
					})
					break
				}
			}
			continue
		}

		destDir := h.destDir(kind, item)
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return stats, fmt.Errorf("failed to create download directory: %w", err)
		}

		res := retry.Do(ctx, func() error {
			return h.sessions.Active().FetchItem(item, destDir)
		}, itemPolicy, h.sessions, log)

		switch res.Outcome {
		case retry.Fatal:
			logger.LogItemFailure(log, profile, streamName, item.Shortcode, string(errorCategory(res.Err)), res.Err)
			return stats, res.Err
		case retry.Skipped:
			stats.Failed++
			logger.LogItemFailure(log, profile, streamName, item.Shortcode, string(errorCategory(res.Err)), res.Err)
			continue
		}

		stats.Downloaded++
		consecSeen = 0
		if ident.Newer(maxDownloaded) {
			maxDownloaded = ident
		}
		logger.LogDownload(log, profile, streamName, item.Shortcode, true, nil)

		stats.Rescued += h.ensureVideos(item, destDir, dirs, log)

		// Flush the raw landing zone after every item so an interrupted run
		// leaves the archive sorted up to the last completed item.
		if withMarkers {
			if _, err := h.layout.MoveSorted(); err != nil {
				log.WithError(err).Warn("failed to sort downloads")
			}
		}

		if err := h.sleep(ctx, h.cfg.ItemDelay); err != nil {
			return stats, err
		}
	}

	// Bulk runs never move markers: a window-bounded backfill would plant
	// a boundary over items it never downloaded.
	if withMarkers && h.mode != ModeBulk {
		h.updateMarker(streamName, boundary, seeded, topSeen, maxDownloaded, stats.Downloaded)
	}

	return stats, nil
}

// updateMarker applies the boundary movement rules at the end of a scan:
// advance to the newest downloaded item when anything was downloaded, seed
// from the newest observed item when no marker existed yet, otherwise leave
// the marker untouched.
func (h *streamHarvester) updateMarker(stream string, boundary marker.Ident, seeded bool, topSeen, maxDownloaded marker.Ident, downloaded int) {
	switch {
	case downloaded > 0 && maxDownloaded.Newer(boundary):
		if err := h.tracker.Save(stream, maxDownloaded, "advanced after downloads"); err != nil {
			h.log.WithField("stream", stream).WithError(err).Warn("failed to save marker")
		}
	case !seeded && !topSeen.IsZero():
		if err := h.tracker.Save(stream, topSeen, "seeded from newest observed item"); err != nil {
			h.log.WithField("stream", stream).WithError(err).Warn("failed to save marker")
		}
	}
}

// ensureVideos verifies that every video asset of a freshly downloaded item
// actually landed on disk, fetching each missing one directly. Providers
// occasionally omit the video variant from a bundled download. The main
// video's presence check tolerates alternative names the way the duplicate
// guard does. Returns the number of rescued assets.
func (h *streamHarvester) ensureVideos(item *contentsource.Item, destDir string, searchDirs []string, log logger.Logger) int {
	base := item.Basename()

	rescued := 0
	fetch := func(name, locator string) {
		log.WarnWithFields("video missing after download, fetching directly", map[string]interface{}{
			"shortcode": item.Shortcode,
			"file":      name,
		})
		if err := h.sessions.Active().FetchMedia(locator, filepath.Join(destDir, name)); err != nil {
			log.WithField("file", name).WithError(err).Error("direct video fetch failed")
			return
		}
		rescued++
	}

	if len(item.Children) == 0 {
		if item.IsVideo && !dedup.VideoOnDisk(searchDirs, base, item.Shortcode) {
			fetch(base+".mp4", item.Locator)
		}
		return rescued
	}
	for i, child := range item.Children {
		if !child.IsVideo {
			continue
		}
		name := fmt.Sprintf("%s_%d.mp4", base, i+1)
		if fileExistsIn(searchDirs, name) {
			continue
		}
		fetch(name, child.Locator)
	}
	return rescued
}

func fileExistsIn(dirs []string, name string) bool {
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
