package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/huddle/internal/availability"
	"github.com/roach88/huddle/internal/clock"
	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
)

// DefaultHorizon is how far ahead an import looks when a feed names no
// horizon.
const DefaultHorizon = 14 * 24 * time.Hour

// Feed binds one calendar to one user's cache record.
type Feed struct {
	OrganizationID string
	UserID         string
	// Location is an http(s) URL, a file:// URL, or a path.
	Location string
	// Label replaces event summaries when set.
	Label   string
	Horizon time.Duration
}

func (f Feed) String() string {
	return f.OrganizationID + "/" + f.UserID
}

// CacheWriter replaces a user's cache record. Satisfied by
// *availability.Cache.
type CacheWriter interface {
	UpdateCache(ctx context.Context, in availability.UpdateCacheInput) (model.CacheRecord, error)
}

// Result reports one import.
type Result struct {
	Record model.CacheRecord
	Stats  ParseStats
}

// Option configures an Importer.
type Option func(*Importer)

// WithClock sets the clock that anchors import ranges.
func WithClock(c clock.Clock) Option {
	return func(im *Importer) {
		if c != nil {
			im.clock = c
		}
	}
}

// WithLogger sets the importer logger.
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) {
		if l != nil {
			im.logger = l
		}
	}
}

// WithFetcher sets the fetcher used by Import.
func WithFetcher(f *Fetcher) Option {
	return func(im *Importer) {
		if f != nil {
			im.fetcher = f
		}
	}
}

// Importer turns feeds into cache records.
type Importer struct {
	cache   CacheWriter
	fetcher *Fetcher
	clock   clock.Clock
	logger  *slog.Logger
}

// NewImporter creates an Importer writing to cache.
func NewImporter(cache CacheWriter, opts ...Option) *Importer {
	im := &Importer{
		cache:   cache,
		fetcher: NewFetcher(nil),
		clock:   clock.System{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Range returns the range an import of f covers when run now: from the
// start of the current UTC day to Horizon after it.
func (im *Importer) Range(f Feed) interval.Span {
	horizon := f.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	start := im.clock.Now().UTC().Truncate(24 * time.Hour)
	return interval.New(start, start.Add(horizon))
}

// Import fetches f and replaces the user's cache record with its busy time
// over Range(f).
func (im *Importer) Import(ctx context.Context, f Feed) (Result, error) {
	body, err := im.fetcher.Fetch(ctx, f.Location)
	if err != nil {
		return Result{}, fmt.Errorf("import %s: %w", f, err)
	}
	return im.ImportReader(ctx, f, bytes.NewReader(body), im.Range(f))
}

// ImportReader parses the calendar in r and replaces the user's cache record
// with its busy time over rng. The record is only written if the whole
// calendar parses.
func (im *Importer) ImportReader(ctx context.Context, f Feed, r io.Reader, rng interval.Span) (Result, error) {
	if strings.TrimSpace(f.OrganizationID) == "" || strings.TrimSpace(f.UserID) == "" {
		return Result{}, model.InvalidArgument("feed needs an organization and a user")
	}
	busy, stats, err := ParseBusy(r, rng, ParseOptions{Label: f.Label})
	if err != nil {
		return Result{}, fmt.Errorf("import %s: %w", f, err)
	}

	rec, err := im.cache.UpdateCache(ctx, availability.UpdateCacheInput{
		OrganizationID: f.OrganizationID,
		UserID:         f.UserID,
		RangeStart:     rng.Start,
		RangeEnd:       rng.End,
		Busy:           busy,
	})
	if err != nil {
		return Result{}, fmt.Errorf("import %s: %w", f, err)
	}

	im.logger.Info("feed imported",
		"org", f.OrganizationID,
		"user", f.UserID,
		"location", redactURL(f.Location),
		"events", stats.Events,
		"imported", stats.Imported,
		"recurring", stats.Recurring,
	)
	im.logger.Debug("feed events not imported",
		"location", redactURL(f.Location),
		"recurring_first_only", stats.Recurring,
		"skipped", stats.Skipped,
		"outside", stats.Outside,
	)
	return Result{Record: rec, Stats: stats}, nil
}
