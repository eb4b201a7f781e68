package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdheenr/Auto-Insta/pkg/auth"
	"github.com/sdheenr/Auto-Insta/pkg/config"
	"github.com/sdheenr/Auto-Insta/pkg/contentsource"
	"github.com/sdheenr/Auto-Insta/pkg/harvest"
	"github.com/sdheenr/Auto-Insta/pkg/logger"
	"github.com/sdheenr/Auto-Insta/pkg/session"
)

var (
	afterFlag          string
	beforeFlag         string
	profilesFileFlag   string
	sourceFlag         string
	rotateIntervalFlag int

	feedOnly       bool
	reelsOnly      bool
	storiesOnly    bool
	highlightsOnly bool
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest <daily|init|all> [profiles...]",
	Short: "Harvest new content for a set of profiles",
	Long: `Harvest content for the given profiles.

Modes:
  daily   incremental run; each stream stops at its boundary marker
  init    bulk backfill inside a date window (--after / --before)
  all     full history walk, ignoring markers

Profiles come from the command line, from --profiles-file, or from the
configured profiles file when neither is given.`,
	Example: `  # Daily incremental run over the configured profiles file
  autoinsta harvest daily

  # Backfill two profiles for the first half of 2024
  autoinsta harvest init alice bob --after 2024-01-01 --before 2024-06-30

  # Everything, reels only
  autoinsta harvest all alice --reels-only`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVar(&afterFlag, "after", "", "only items strictly after this time (YYYY-MM-DD or 'YYYY-MM-DD HH:MM', UTC)")
	harvestCmd.Flags().StringVar(&beforeFlag, "before", "", "only items strictly before this time; a bare date includes that whole day (UTC)")
	harvestCmd.Flags().StringVarP(&profilesFileFlag, "profiles-file", "f", "", "file listing profiles, one per line")
	harvestCmd.Flags().StringVar(&sourceFlag, "source", "", "content source connector to use")
	harvestCmd.Flags().IntVar(&rotateIntervalFlag, "rotate-interval", 0, "seconds between proactive credential rotations")

	harvestCmd.Flags().BoolVar(&feedOnly, "feed-only", false, "harvest only the feed stream")
	harvestCmd.Flags().BoolVar(&reelsOnly, "reels-only", false, "harvest only the reels stream")
	harvestCmd.Flags().BoolVar(&storiesOnly, "stories-only", false, "harvest only the stories stream")
	harvestCmd.Flags().BoolVar(&highlightsOnly, "highlights-only", false, "harvest only the highlights stream")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if rotateIntervalFlag > 0 {
		cfg.Sessions.RotateInterval = time.Duration(rotateIntervalFlag) * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()

	window, err := parseWindow(afterFlag, beforeFlag)
	if err != nil {
		return err
	}
	if mode == harvest.ModeBulk && window.After.IsZero() && window.Before.IsZero() {
		return fmt.Errorf("init mode needs --after and/or --before")
	}

	streams, err := selectStreams()
	if err != nil {
		return err
	}

	profiles, err := gatherProfiles(args[1:], profilesFileFlag, cfg.Output.ProfilesFile)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return fmt.Errorf("no profiles given; pass them as arguments or via --profiles-file")
	}

	creds, err := loadCredentials(cfg.Sessions.File)
	if err != nil {
		return err
	}

	connector, err := contentsource.Open(sourceFlag)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(connector, creds, cfg.Sessions.RotateInterval, log)
	if err != nil {
		return err
	}
	if err := sessions.Activate(); err != nil {
		return fmt.Errorf("failed to activate a session: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := harvest.NewOrchestrator(cfg, sessions, log)
	summary, err := orch.Run(ctx, profiles, harvest.Options{
		Mode:    mode,
		Window:  window,
		Streams: streams,
	})
	if err != nil {
		return err
	}

	printSummary(summary)
	if summary.Abandoned == len(summary.Profiles) {
		return fmt.Errorf("all %d profiles failed", summary.Abandoned)
	}
	return nil
}

// loadCredentials reads the sessions file; when it does not exist, accounts
// stored via `auth login` serve as the fallback pool.
func loadCredentials(path string) ([]auth.Credential, error) {
	creds, err := auth.LoadFile(path)
	if err == nil {
		return creds, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	manager, mgrErr := auth.NewManager()
	if mgrErr != nil {
		return nil, err
	}
	stored, listErr := manager.List()
	if listErr != nil || len(stored) == 0 {
		return nil, fmt.Errorf("sessions file %s does not exist and no stored accounts are available", path)
	}

	creds = make([]auth.Credential, 0, len(stored))
	for _, cred := range stored {
		creds = append(creds, *cred)
	}
	return creds, nil
}

func parseMode(s string) (harvest.Mode, error) {
	switch strings.ToLower(s) {
	case "daily":
		return harvest.ModeIncremental, nil
	case "init":
		return harvest.ModeBulk, nil
	case "all":
		return harvest.ModeAll, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want daily, init or all)", s)
	}
}

// parseWindow parses the --after/--before bounds. The window bounds are
// strict, so a date-only --before extends to the following midnight and the
// whole named day still passes.
func parseWindow(after, before string) (harvest.Window, error) {
	var w harvest.Window

	if after != "" {
		t, _, err := parseCutoff(after)
		if err != nil {
			return w, fmt.Errorf("invalid --after: %w", err)
		}
		w.After = t
	}
	if before != "" {
		t, dateOnly, err := parseCutoff(before)
		if err != nil {
			return w, fmt.Errorf("invalid --before: %w", err)
		}
		if dateOnly {
			t = t.Add(24 * time.Hour)
		}
		w.Before = t
	}
	if !w.After.IsZero() && !w.Before.IsZero() && w.Before.Before(w.After) {
		return w, fmt.Errorf("--before (%s) precedes --after (%s)", before, after)
	}
	return w, nil
}

func parseCutoff(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, time.UTC); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%q is not YYYY-MM-DD or 'YYYY-MM-DD HH:MM'", s)
}

func selectStreams() ([]contentsource.StreamKind, error) {
	var streams []contentsource.StreamKind
	if feedOnly {
		streams = append(streams, contentsource.StreamFeed)
	}
	if reelsOnly {
		streams = append(streams, contentsource.StreamReels)
	}
	if storiesOnly {
		streams = append(streams, contentsource.StreamStories)
	}
	if highlightsOnly {
		streams = append(streams, contentsource.StreamHighlights)
	}
	if len(streams) > 1 {
		return nil, fmt.Errorf("the --*-only flags are mutually exclusive")
	}
	// Empty means the mode's default stream set.
	return streams, nil
}

// gatherProfiles merges command-line profiles with a profiles file. Explicit
// arguments win; the configured default file is only consulted when nothing
// else was given.
func gatherProfiles(args []string, fileFlag, defaultFile string) ([]string, error) {
	var raw []string
	raw = append(raw, args...)

	path := fileFlag
	if path == "" && len(raw) == 0 {
		path = defaultFile
	}
	if path != "" {
		fromFile, err := readProfilesFile(path)
		if err != nil {
			if fileFlag != "" || !os.IsNotExist(err) {
				return nil, err
			}
			// A missing default file is fine; arguments may still exist.
		}
		raw = append(raw, fromFile...)
	}

	seen := make(map[string]bool)
	var profiles []string
	for _, entry := range raw {
		for _, token := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(token), "@"))
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			profiles = append(profiles, name)
		}
	}
	return profiles, nil
}

func readProfilesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func printSummary(summary *harvest.Summary) {
	fmt.Println()
	for _, p := range summary.Profiles {
		status := "ok"
		if p.Err != nil {
			status = "abandoned: " + p.Err.Error()
		}
		fmt.Printf("  %-24s downloaded=%-4d seen=%-4d failed=%-4d %s\n",
			p.Profile, p.Stats.Downloaded, p.Stats.Seen, p.Stats.Failed, status)
	}
	fmt.Printf("\nTotal: %d downloaded, %d already archived, %d failed, %d profiles abandoned\n",
		summary.Totals.Downloaded, summary.Totals.Seen, summary.Totals.Failed, summary.Abandoned)
}
