package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/huddle/internal/availability"
	"github.com/roach88/huddle/internal/feeds"
)

//go:embed schema.cue
var schemaSource string

// Defaults applied to keys the file leaves out.
const (
	DefaultDatabase     = "huddle.db"
	DefaultLogLevel     = "info"
	DefaultSlotMinutes  = 30
	DefaultSyncSchedule = "@every 15m"
)

// Config is the decoded configuration file.
type Config struct {
	Database     string             `yaml:"database" json:"database,omitempty"`
	Log          LogConfig          `yaml:"log" json:"log,omitempty"`
	Availability AvailabilityConfig `yaml:"availability" json:"availability,omitempty"`
	Sync         SyncConfig         `yaml:"sync" json:"sync,omitempty"`
	Feeds        []FeedConfig       `yaml:"feeds" json:"feeds,omitempty"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level string `yaml:"level" json:"level,omitempty"`
}

// AvailabilityConfig controls the window engine.
type AvailabilityConfig struct {
	DefaultSlotMinutes int      `yaml:"default_slot_minutes" json:"default_slot_minutes,omitempty"`
	Uncovered          string   `yaml:"uncovered" json:"uncovered,omitempty"`
	MaxRecordAge       Duration `yaml:"max_record_age" json:"max_record_age,omitempty"`
}

// SyncConfig controls scheduled feed imports.
type SyncConfig struct {
	Schedule string `yaml:"schedule" json:"schedule,omitempty"`
}

// FeedConfig binds one ICS feed to one user.
type FeedConfig struct {
	Organization string   `yaml:"organization" json:"organization,omitempty"`
	User         string   `yaml:"user" json:"user,omitempty"`
	Source       string   `yaml:"source" json:"source,omitempty"`
	Label        string   `yaml:"label" json:"label,omitempty"`
	Horizon      Duration `yaml:"horizon" json:"horizon,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("90m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string", node.Line)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	if parsed < 0 {
		return fmt.Errorf("line %d: duration %q is negative", node.Line, s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a Go duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON writes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates the file at path. An empty path returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes a YAML document.
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true) // Reject unknown fields
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateSchema checks the raw document against #Config.
func validateSchema(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Availability.DefaultSlotMinutes == 0 {
		c.Availability.DefaultSlotMinutes = DefaultSlotMinutes
	}
	if c.Availability.Uncovered == "" {
		c.Availability.Uncovered = string(availability.UncoveredBusy)
	}
	if c.Sync.Schedule == "" {
		c.Sync.Schedule = DefaultSyncSchedule
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, err := availability.ParseUncovered(c.Availability.Uncovered); err != nil {
		errs = append(errs, err)
	}
	if err := feeds.ValidateSchedule(c.Sync.Schedule); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		key := f.Organization + "/" + f.User
		if seen[key] {
			errs = append(errs, fmt.Errorf("feeds[%d]: duplicate feed for %s", i, key))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Policy returns the availability staleness policy.
func (c *Config) Policy() availability.Policy {
	uncovered, err := availability.ParseUncovered(c.Availability.Uncovered)
	if err != nil {
		uncovered = availability.UncoveredBusy
	}
	return availability.Policy{
		Uncovered: uncovered,
		MaxAge:    time.Duration(c.Availability.MaxRecordAge),
	}
}

// DefaultSlot returns the engine's default slot size.
func (c *Config) DefaultSlot() time.Duration {
	return time.Duration(c.Availability.DefaultSlotMinutes) * time.Minute
}

// FeedList converts the configured feeds for the importer.
func (c *Config) FeedList() []feeds.Feed {
	out := make([]feeds.Feed, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		out = append(out, feeds.Feed{
			OrganizationID: f.Organization,
			UserID:         f.User,
			Location:       f.Source,
			Label:          f.Label,
			Horizon:        time.Duration(f.Horizon),
		})
	}
	return out
}
