// Package harvest implements the incremental content-harvest engine: it
// walks each profile's streams newest-first, downloads what the archive does
// not yet hold, and maintains the per-stream boundary markers that let the
// next run stop early.
package harvest

import (
	"context"
	"time"

	"github.com/sdheenr/Auto-Insta/pkg/contentsource"
)

// Mode selects the harvesting strategy for a run.
type Mode int

const (
	// ModeIncremental stops at the per-stream boundary marker.
	ModeIncremental Mode = iota
	// ModeBulk walks history inside a date window, ignoring markers.
	ModeBulk
	// ModeAll walks the full history, ignoring markers.
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeIncremental:
		return "incremental"
	case ModeBulk:
		return "bulk"
	case ModeAll:
		return "all"
	default:
		return "unknown"
	}
}

// Window bounds a harvest by publish time. Both bounds are strict: an item
// exactly at a bound is outside the window. Zero bounds are open.
type Window struct {
	// After is the exclusive lower bound; in bulk mode reaching it ends
	// the scan.
	After time.Time
	// Before is the exclusive upper bound; newer items are skipped over.
	Before time.Time
}

// Contains reports whether t falls strictly inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Before.IsZero() && !t.Before(w.Before) {
		return false
	}
	if !w.After.IsZero() && !t.After(w.After) {
		return false
	}
	return true
}

// Below reports whether t is at or under the window's lower bound. Once a
// newest-first scan reaches such an item there is nothing left to find.
func (w Window) Below(t time.Time) bool {
	return !w.After.IsZero() && !t.After(w.After)
}

// Options configures one engine run.
type Options struct {
	Mode    Mode
	Window  Window
	Streams []contentsource.StreamKind
}

// StreamStats counts the outcomes of one stream harvest.
type StreamStats struct {
	Downloaded int
	Seen       int
	Failed     int
	// Rescued counts video assets fetched directly after the bundled
	// download missed them.
	Rescued int
}

func (s *StreamStats) add(other StreamStats) {
	s.Downloaded += other.Downloaded
	s.Seen += other.Seen
	s.Failed += other.Failed
	s.Rescued += other.Rescued
}

// ProfileResult is the outcome of one profile's harvest.
type ProfileResult struct {
	Profile string
	Stats   StreamStats
	// Err is set when the profile was abandoned.
	Err error
}

// Summary aggregates a whole run.
type Summary struct {
	Profiles []ProfileResult
	Totals   StreamStats
	// Abandoned counts profiles that ended with an error.
	Abandoned int
}

// SessionSource is the slice of the session manager the engine needs.
type SessionSource interface {
	Active() contentsource.Session
	MaybeTimeRotate()
	RotateOnError() bool
	Label() string
}

// sleeper is injectable in tests so harvest pauses take no wall time.
type sleeper func(ctx context.Context, d time.Duration) error
