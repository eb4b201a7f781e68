package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the harvest engine.
type Config struct {
	// Sessions configures where credentials come from.
	Sessions SessionsConfig `yaml:"sessions" json:"sessions"`

	// Output configures the on-disk layout.
	Output OutputConfig `yaml:"output" json:"output"`

	// Harvest configures iteration, throttling and retry budgets.
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SessionsConfig holds credential-source configuration.
type SessionsConfig struct {
	// File is the sessions file, one credential entry per line.
	File string `yaml:"file" json:"file"`
	// RotateInterval is the wall-clock interval between proactive
	// credential rotations.
	RotateInterval time.Duration `yaml:"rotate_interval" json:"rotate_interval"`
}

// OutputConfig holds directory layout configuration.
type OutputConfig struct {
	// BaseDirectory is the root under which each profile gets a folder.
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	// LedgerRoot is where per-profile media-log CSVs live.
	LedgerRoot string `yaml:"ledger_root" json:"ledger_root"`
	// ProfilesFile is an optional default list of profiles, one per line.
	ProfilesFile string `yaml:"profiles_file" json:"profiles_file"`
}

// HarvestConfig holds iteration and retry tuning.
type HarvestConfig struct {
	// ItemDelay is slept after every successfully downloaded item.
	ItemDelay time.Duration `yaml:"item_delay" json:"item_delay"`
	// IterThrottle is slept before every enumerated item to keep
	// provider request pressure low.
	IterThrottle time.Duration `yaml:"iter_throttle" json:"iter_throttle"`
	// SeenStreakStop is the number of consecutive already-seen items after
	// which an incremental scan bails when nothing new was downloaded.
	SeenStreakStop int `yaml:"seen_streak_stop" json:"seen_streak_stop"`

	// ItemRetries caps download attempts for a single item.
	ItemRetries int `yaml:"item_retries" json:"item_retries"`
	// ProfileRetries caps recovery attempts for a whole profile.
	ProfileRetries int `yaml:"profile_retries" json:"profile_retries"`
	// ProbeRetries caps attempts of the single-item liveness probe.
	ProbeRetries int `yaml:"probe_retries" json:"probe_retries"`

	// ItemBackoffBase/Cap tune the per-item exponential backoff.
	ItemBackoffBase time.Duration `yaml:"item_backoff_base" json:"item_backoff_base"`
	ItemBackoffCap  time.Duration `yaml:"item_backoff_cap" json:"item_backoff_cap"`
	// ProfileBackoffBase/Cap tune the per-profile exponential backoff.
	ProfileBackoffBase time.Duration `yaml:"profile_backoff_base" json:"profile_backoff_base"`
	ProfileBackoffCap  time.Duration `yaml:"profile_backoff_cap" json:"profile_backoff_cap"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// File, when set, receives the durable run log in addition to console
	// output.
	File string `yaml:"file" json:"file"`
}

// parseYAMLDuration accepts Go duration strings ("90s", "2m") and bare
// second counts ("90").
func parseYAMLDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// UnmarshalYAML decodes duration fields from strings, leaving absent fields
// at their current (default) values.
func (s *SessionsConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		File           string `yaml:"file"`
		RotateInterval string `yaml:"rotate_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.File != "" {
		s.File = raw.File
	}
	if raw.RotateInterval != "" {
		d, err := parseYAMLDuration(raw.RotateInterval)
		if err != nil {
			return fmt.Errorf("invalid rotate_interval: %w", err)
		}
		s.RotateInterval = d
	}
	return nil
}

// UnmarshalYAML decodes duration fields from strings, leaving absent fields
// at their current (default) values.
func (h *HarvestConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ItemDelay          string `yaml:"item_delay"`
		IterThrottle       string `yaml:"iter_throttle"`
		SeenStreakStop     *int   `yaml:"seen_streak_stop"`
		ItemRetries        *int   `yaml:"item_retries"`
		ProfileRetries     *int   `yaml:"profile_retries"`
		ProbeRetries       *int   `yaml:"probe_retries"`
		ItemBackoffBase    string `yaml:"item_backoff_base"`
		ItemBackoffCap     string `yaml:"item_backoff_cap"`
		ProfileBackoffBase string `yaml:"profile_backoff_base"`
		ProfileBackoffCap  string `yaml:"profile_backoff_cap"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	durations := []struct {
		dst   *time.Duration
		field string
		value string
	}{
		{&h.ItemDelay, "item_delay", raw.ItemDelay},
		{&h.IterThrottle, "iter_throttle", raw.IterThrottle},
		{&h.ItemBackoffBase, "item_backoff_base", raw.ItemBackoffBase},
		{&h.ItemBackoffCap, "item_backoff_cap", raw.ItemBackoffCap},
		{&h.ProfileBackoffBase, "profile_backoff_base", raw.ProfileBackoffBase},
		{&h.ProfileBackoffCap, "profile_backoff_cap", raw.ProfileBackoffCap},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := parseYAMLDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.field, err)
		}
		*d.dst = parsed
	}

	if raw.SeenStreakStop != nil {
		h.SeenStreakStop = *raw.SeenStreakStop
	}
	if raw.ItemRetries != nil {
		h.ItemRetries = *raw.ItemRetries
	}
	if raw.ProfileRetries != nil {
		h.ProfileRetries = *raw.ProfileRetries
	}
	if raw.ProbeRetries != nil {
		h.ProbeRetries = *raw.ProbeRetries
	}
	return nil
}

// DefaultConfig returns a Config with the engine's stock tuning.
func DefaultConfig() *Config {
	return &Config{
		Sessions: SessionsConfig{
			File:           "sessions.txt",
			RotateInterval: 120 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
			LedgerRoot:    "./media_log",
			ProfilesFile:  "profiles.txt",
		},
		Harvest: HarvestConfig{
			ItemDelay:          time.Second,
			IterThrottle:       750 * time.Millisecond,
			SeenStreakStop:     8,
			ItemRetries:        2,
			ProfileRetries:     6,
			ProbeRetries:       4,
			ItemBackoffBase:    30 * time.Second,
			ItemBackoffCap:     120 * time.Second,
			ProfileBackoffBase: 120 * time.Second,
			ProfileBackoffCap:  480 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the standard locations and is not an error when nothing is found.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".autoinsta.yaml",
		".autoinsta.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "autoinsta", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".autoinsta.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv overrides configuration from AUTOINSTA_* environment variables.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("AUTOINSTA_SESSIONS_FILE"); v != "" {
		c.Sessions.File = v
	}
	if v := os.Getenv("AUTOINSTA_ROTATE_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Sessions.RotateInterval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("AUTOINSTA_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("AUTOINSTA_LEDGER_ROOT"); v != "" {
		c.Output.LedgerRoot = v
	}
	if v := os.Getenv("AUTOINSTA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AUTOINSTA_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	return nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	var errs []error

	if c.Sessions.File == "" {
		errs = append(errs, errors.New("sessions file is required"))
	}
	if c.Sessions.RotateInterval < 10*time.Second {
		errs = append(errs, errors.New("rotate interval must be at least 10s"))
	}
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.LedgerRoot == "" {
		errs = append(errs, errors.New("ledger root is required"))
	}
	if c.Harvest.SeenStreakStop <= 0 {
		errs = append(errs, errors.New("seen streak stop must be positive"))
	}
	if c.Harvest.ItemRetries <= 0 {
		errs = append(errs, errors.New("item retries must be positive"))
	}
	if c.Harvest.ProfileRetries <= 0 {
		errs = append(errs, errors.New("profile retries must be positive"))
	}
	if c.Harvest.ProbeRetries <= 0 {
		errs = append(errs, errors.New("probe retries must be positive"))
	}
	if c.Harvest.ItemBackoffBase <= 0 || c.Harvest.ItemBackoffCap < c.Harvest.ItemBackoffBase {
		errs = append(errs, errors.New("item backoff base/cap are inconsistent"))
	}
	if c.Harvest.ProfileBackoffBase <= 0 || c.Harvest.ProfileBackoffCap < c.Harvest.ProfileBackoffBase {
		errs = append(errs, errors.New("profile backoff base/cap are inconsistent"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Load loads configuration from all sources with proper precedence:
// environment variables (including .env) > config file > defaults.
// Command-line flags are applied by the caller after Load.
func Load(configPath string) (*Config, error) {
	// Best effort; missing .env files are fine.
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".autoinsta.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return cfg, nil
}
