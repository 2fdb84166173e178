package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
)

// Repository is the persistence collaborator for cache records.
//
// PutRecord must replace the (organization, user) record atomically.
type Repository interface {
	PutRecord(ctx context.Context, rec model.CacheRecord) error
	GetRecord(ctx context.Context, orgID, userID string) (model.CacheRecord, bool, error)
	ListRecords(ctx context.Context, orgID string, userIDs []string) ([]model.CacheRecord, error)
	DeleteRecords(ctx context.Context, orgID, userID string) (int64, error)
}

// UpdateCacheInput is a complete replacement for one user's busy time over
// [RangeStart, RangeEnd).
type UpdateCacheInput struct {
	OrganizationID string
	UserID         string
	RangeStart     time.Time
	RangeEnd       time.Time
	Busy           []model.BusyInterval
}

// Cache is the Availability Cache.
//
// Thread-safety: Cache is safe for concurrent use if its Repository is.
type Cache struct {
	repo Repository
	opts options
}

// NewCache creates a Cache over repo.
func NewCache(repo Repository, opts ...Option) *Cache {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{repo: repo, opts: o}
}

// UpdateCache validates in, normalizes its busy list, and replaces the
// stored record for (organization, user).
//
// Busy entries get the default source when none is given, are clipped to the
// declared range (entries entirely outside it are dropped), and are sorted by
// start.
func (c *Cache) UpdateCache(ctx context.Context, in UpdateCacheInput) (model.CacheRecord, error) {
	org, user, err := recordKey(in.OrganizationID, in.UserID)
	if err != nil {
		return model.CacheRecord{}, err
	}
	if in.RangeStart.IsZero() || in.RangeEnd.IsZero() || !in.RangeStart.Before(in.RangeEnd) {
		return model.CacheRecord{}, model.InvalidArgument("range start must be before range end")
	}
	if !model.InTimeRange(in.RangeStart, in.RangeEnd) {
		return model.CacheRecord{}, errTimeRange()
	}
	rng := interval.New(in.RangeStart.UTC(), in.RangeEnd.UTC())

	busy := make([]model.BusyInterval, 0, len(in.Busy))
	for i, b := range in.Busy {
		if !b.Start.Before(b.End) {
			return model.CacheRecord{}, model.InvalidArgument("busy entry %d: start must be before end", i)
		}
		span, ok := interval.Clip(interval.New(b.Start.UTC(), b.End.UTC()), rng)
		if !ok {
			continue
		}
		b.Start, b.End = span.Start, span.End
		if strings.TrimSpace(b.Source) == "" {
			b.Source = model.SourceExternal
		}
		busy = append(busy, b)
	}
	sort.SliceStable(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})

	rec := model.CacheRecord{
		OrganizationID: org,
		UserID:         user,
		RangeStart:     rng.Start,
		RangeEnd:       rng.End,
		Busy:           busy,
		FetchedAt:      c.opts.clock.Now().UTC(),
	}
	if err := c.repo.PutRecord(ctx, rec.Clone()); err != nil {
		return model.CacheRecord{}, fmt.Errorf("update cache: %w", err)
	}

	c.opts.logger.Debug("cache updated",
		"org", org,
		"user", user,
		"busy", len(busy),
		"dropped", len(in.Busy)-len(busy),
	)
	return rec, nil
}

// GetCacheRecord returns the record for (organization, user), if any.
func (c *Cache) GetCacheRecord(ctx context.Context, orgID, userID string) (model.CacheRecord, bool, error) {
	org, user, err := recordKey(orgID, userID)
	if err != nil {
		return model.CacheRecord{}, false, err
	}
	rec, ok, err := c.repo.GetRecord(ctx, org, user)
	if err != nil {
		return model.CacheRecord{}, false, fmt.Errorf("get cache record: %w", err)
	}
	return rec, ok, nil
}

// ListCacheRecords returns the organization's records ordered by user. A nil
// or empty userIDs selects every user.
func (c *Cache) ListCacheRecords(ctx context.Context, orgID string, userIDs []string) ([]model.CacheRecord, error) {
	org := strings.TrimSpace(orgID)
	if org == "" {
		return nil, model.InvalidArgument("organization is required")
	}
	recs, err := c.repo.ListRecords(ctx, org, userIDs)
	if err != nil {
		return nil, fmt.Errorf("list cache records: %w", err)
	}
	return recs, nil
}

// ClearCache removes the record for (organization, user), or every record
// of the organization when userID is empty. Reports whether anything was
// removed.
func (c *Cache) ClearCache(ctx context.Context, orgID, userID string) (bool, error) {
	org := strings.TrimSpace(orgID)
	if org == "" {
		return false, model.InvalidArgument("organization is required")
	}
	n, err := c.repo.DeleteRecords(ctx, org, strings.TrimSpace(userID))
	if err != nil {
		return false, fmt.Errorf("clear cache: %w", err)
	}
	c.opts.logger.Debug("cache cleared", "org", org, "user", userID, "removed", n)
	return n > 0, nil
}

func errTimeRange() *model.Error {
	return model.InvalidArgument("range must fall between %s and %s",
		model.MinTime.Format(time.RFC3339), model.MaxTime.Format(time.RFC3339))
}

// recordKey trims and checks the (organization, user) key of a record.
func recordKey(orgID, userID string) (string, string, error) {
	org := strings.TrimSpace(orgID)
	user := strings.TrimSpace(userID)
	if org == "" {
		return "", "", model.InvalidArgument("organization is required")
	}
	if user == "" {
		return "", "", model.InvalidArgument("user is required")
	}
	return org, user, nil
}
