package harvest

import (
	"context"
	"fmt"

	"github.com/sdheenr/Auto-Insta/pkg/config"
	"github.com/sdheenr/Auto-Insta/pkg/contentsource"
	"github.com/sdheenr/Auto-Insta/pkg/dedup"
	errs "github.com/sdheenr/Auto-Insta/pkg/errors"
	"github.com/sdheenr/Auto-Insta/pkg/logger"
	"github.com/sdheenr/Auto-Insta/pkg/marker"
	"github.com/sdheenr/Auto-Insta/pkg/retry"
	"github.com/sdheenr/Auto-Insta/pkg/storage"
)

// Orchestrator runs a harvest over a set of profiles: probe, per-stream
// harvest under profile-level recovery, then the flush that sorts raw
// downloads into the archive.
type Orchestrator struct {
	cfg      *config.Config
	sessions SessionSource
	guard    *dedup.Guard
	log      logger.Logger
	sleep    sleeper
}

// NewOrchestrator creates an orchestrator over an activated session source.
func NewOrchestrator(cfg *config.Config, sessions SessionSource, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		guard:    dedup.NewGuard(cfg.Output.LedgerRoot, log),
		log:      log,
		sleep:    retry.Wait,
	}
}

// Run harvests every profile in order. A profile failure never aborts the
// run; it is recorded in the summary and the next profile proceeds.
func (o *Orchestrator) Run(ctx context.Context, profiles []string, opts Options) (*Summary, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles to harvest")
	}
	streams := opts.Streams
	if len(streams) == 0 {
		streams = defaultStreams(opts.Mode)
	}

	o.log.InfoWithFields("run started", map[string]interface{}{
		"mode":     opts.Mode.String(),
		"profiles": len(profiles),
		"streams":  streamNames(streams),
	})

	summary := &Summary{}
	for _, profile := range profiles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := o.harvestProfile(ctx, profile, streams, opts)
		summary.Profiles = append(summary.Profiles, result)
		summary.Totals.add(result.Stats)
		if result.Err != nil {
			summary.Abandoned++
		}
	}

	o.log.InfoWithFields("run finished", map[string]interface{}{
		"downloaded": summary.Totals.Downloaded,
		"seen":       summary.Totals.Seen,
		"failed":     summary.Totals.Failed,
		"abandoned":  summary.Abandoned,
	})
	return summary, nil
}

// harvestProfile runs one profile under the profile-level retry budget.
func (o *Orchestrator) harvestProfile(ctx context.Context, profile string, streams []contentsource.StreamKind, opts Options) ProfileResult {
	result := ProfileResult{Profile: profile}
	log := o.log.WithField("profile", profile)

	layout := storage.NewLayout(o.cfg.Output.BaseDirectory, profile, o.log)
	if err := layout.EnsureDirs(); err != nil {
		result.Err = err
		logger.LogProfileFailure(o.log, profile, string(errs.CategoryUnknown), err)
		return result
	}
	tracker := marker.NewTracker(layout.Root, o.log)

	profileBackoff := retry.ProfilePolicy(o.cfg.Harvest.ProfileRetries,
		o.cfg.Harvest.ProfileBackoffBase, o.cfg.Harvest.ProfileBackoffCap)

	for attempt := 1; attempt <= o.cfg.Harvest.ProfileRetries; attempt++ {
		stats, err := o.harvestStreams(ctx, profile, layout, tracker, streams, opts)
		result.Stats.add(stats)
		if err == nil {
			result.Err = nil
			break
		}
		result.Err = err

		if ctx.Err() != nil {
			break
		}
		if errs.IsTerminal(err) {
			logger.LogProfileFailure(o.log, profile, string(errs.CategoryOf(err)), err)
			break
		}
		if errs.IsHardRotate(err) {
			o.sessions.RotateOnError()
		}
		if attempt == o.cfg.Harvest.ProfileRetries {
			logger.LogProfileFailure(o.log, profile, string(errs.CategoryOf(err)), err)
			break
		}

		delay := profileBackoff.Backoff.NextDelay(attempt)
		log.WarnWithFields("profile harvest interrupted, backing off", map[string]interface{}{
			"attempt": attempt,
			"delay_s": int(delay.Seconds()),
			"error":   err.Error(),
		})
		if err := o.sleep(ctx, delay); err != nil {
			break
		}
	}

	if moved, err := layout.MoveSorted(); err != nil {
		log.WithError(err).Warn("failed to sort downloads")
	} else if moved > 0 {
		log.InfoWithFields("downloads sorted", map[string]interface{}{"moved": moved})
	}

	return result
}

// harvestStreams walks the selected streams once. Each stream is preceded by
// a bounded liveness probe; a stream the probe cannot reach is skipped, and
// its marker is seeded from the archive when none exists yet. The first
// enumeration failure aborts the pass; completed streams are not revisited on
// retry because their markers have already moved.
func (o *Orchestrator) harvestStreams(ctx context.Context, profile string, layout *storage.Layout, tracker *marker.Tracker, streams []contentsource.StreamKind, opts Options) (StreamStats, error) {
	var stats StreamStats
	var skipped int
	var lastProbeErr error

	for _, kind := range streams {
		probeRes := o.probe(ctx, profile, kind)
		if probeRes.Outcome != retry.OK {
			if probeRes.Outcome == retry.Fatal {
				return stats, probeRes.Err
			}
			if usesMarkers(kind) {
				o.seedStreamFromDisk(layout, tracker, kind)
			}
			o.log.WarnWithFields("stream unreachable, skipping", map[string]interface{}{
				"profile": profile,
				"stream":  string(kind),
				"error":   probeRes.Err.Error(),
			})
			skipped++
			lastProbeErr = probeRes.Err
			continue
		}

		h := &streamHarvester{
			cfg:      &o.cfg.Harvest,
			sessions: o.sessions,
			guard:    o.guard,
			tracker:  tracker,
			layout:   layout,
			log:      o.log,
			sleep:    o.sleep,
			mode:     opts.Mode,
			window:   opts.Window,
		}
		streamStats, err := h.harvest(ctx, profile, kind)
		stats.add(streamStats)
		if err != nil {
			return stats, err
		}
		o.log.InfoWithFields("stream finished", map[string]interface{}{
			"profile":    profile,
			"stream":     string(kind),
			"downloaded": streamStats.Downloaded,
			"seen":       streamStats.Seen,
			"failed":     streamStats.Failed,
			"rescued":    streamStats.Rescued,
		})
	}

	if skipped == len(streams) && lastProbeErr != nil {
		return stats, fmt.Errorf("no stream reachable: %w", lastProbeErr)
	}
	return stats, nil
}

// probe checks that one stream of the profile is reachable with the current
// credential, by opening it and pulling at most one item.
func (o *Orchestrator) probe(ctx context.Context, profile string, kind contentsource.StreamKind) retry.Result {
	op := func() error {
		it, err := o.sessions.Active().Items(profile, kind)
		if err != nil {
			return err
		}
		if _, err := it.Next(); err != nil && err != contentsource.ErrEndOfStream {
			return err
		}
		return nil
	}

	policy := retry.Policy{
		MaxAttempts: o.cfg.Harvest.ProbeRetries,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay: o.cfg.Harvest.ItemBackoffBase,
			MaxDelay:  o.cfg.Harvest.ItemBackoffCap,
		},
	}
	return retry.Do(ctx, op, policy, o.sessions, o.log.WithFields(map[string]interface{}{
		"profile": profile,
		"stream":  string(kind),
	}))
}

// seedStreamFromDisk sets a missing marker from the newest archived item, so
// an unreachable stream with an existing archive still gains a boundary.
func (o *Orchestrator) seedStreamFromDisk(layout *storage.Layout, tracker *marker.Tracker, kind contentsource.StreamKind) {
	stream := string(kind)
	if !tracker.Load(stream).IsZero() {
		return
	}
	newest := marker.NewestFromDisk(layout.Root)
	if newest.IsZero() {
		return
	}
	if err := tracker.Save(stream, newest, "seeded from archive scan"); err != nil {
		o.log.WithField("stream", stream).WithError(err).Warn("failed to seed marker")
	}
}

// defaultStreams returns the streams harvested when none were selected.
// Stories are ephemeral and highlights finite; both are only worth walking
// on full runs unless explicitly requested.
func defaultStreams(mode Mode) []contentsource.StreamKind {
	switch mode {
	case ModeAll:
		return []contentsource.StreamKind{
			contentsource.StreamFeed,
			contentsource.StreamReels,
			contentsource.StreamStories,
			contentsource.StreamHighlights,
		}
	default:
		return []contentsource.StreamKind{
			contentsource.StreamFeed,
			contentsource.StreamReels,
		}
	}
}

func streamNames(streams []contentsource.StreamKind) []string {
	names := make([]string, len(streams))
	for i, s := range streams {
		names[i] = string(s)
	}
	return names
}

func errorCategory(err error) errs.Category {
	return errs.CategoryOf(err)
}
