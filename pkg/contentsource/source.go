// Package contentsource defines the provider-facing abstraction the harvest
// engine iterates over. Implementations adapt a concrete content provider to
// these interfaces; the engine itself never talks to the network directly.
package contentsource

import (
	"errors"
	"time"

	"github.com/sdheenr/Auto-Insta/pkg/auth"
)

// StreamKind identifies one of the per-profile content streams.
type StreamKind string

const (
	StreamFeed       StreamKind = "feed"
	StreamReels      StreamKind = "reels"
	StreamStories    StreamKind = "stories"
	StreamHighlights StreamKind = "highlights"
)

// ErrEndOfStream is returned by Iterator.Next when the stream is exhausted.
var ErrEndOfStream = errors.New("end of stream")

// Media is one downloadable asset belonging to an item.
type Media struct {
	IsVideo bool
	// Locator addresses the asset at the provider (typically a URL).
	Locator string
}

// Item is one post-like unit returned by a stream, newest first.
type Item struct {
	// Shortcode is the provider's stable public identifier for the item.
	Shortcode string
	// TakenAt is the item's publish time in UTC.
	TakenAt time.Time
	// IsVideo reports whether the primary asset is a video.
	IsVideo bool
	// Locator addresses the primary asset directly.
	Locator string
	// Children holds the assets of a multi-asset item, in order. Empty for
	// single-asset items.
	Children []Media
	// Collection names the grouping the item belongs to (highlight title).
	// Empty outside the highlights stream.
	Collection string
}

// Basename returns the canonical on-disk stem for the item, derived from its
// UTC publish time. All files belonging to the item share this prefix.
func (it *Item) Basename() string {
	return it.TakenAt.UTC().Format("2006-01-02_15-04-05") + "_UTC"
}

// Iterator walks a stream newest-first. Next returns ErrEndOfStream when the
// stream is exhausted; any other error is a provider failure at the current
// position and the iterator may be advanced again after recovery.
type Iterator interface {
	Next() (*Item, error)
}

// Session is one authenticated connection to the provider.
type Session interface {
	// Items opens an iterator over the given stream of a profile.
	Items(profile string, kind StreamKind) (Iterator, error)
	// FetchItem downloads all assets and metadata of an item into destDir.
	FetchItem(item *Item, destDir string) error
	// FetchMedia downloads a single asset addressed by locator to destPath.
	FetchMedia(locator, destPath string) error
}

// Connector turns a credential into a live Session.
type Connector interface {
	Authenticate(cred auth.Credential) (Session, error)
}
