package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard five-field specs and descriptors such as
// "@hourly" or "@every 15m".
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec is a usable cron schedule.
func ValidateSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler re-imports a fixed set of feeds on a cron schedule.
type Scheduler struct {
	importer *Importer
	feeds    []Feed
	spec     string
	logger   *slog.Logger

	mu sync.Mutex
	c  *cron.Cron
}

// NewScheduler creates a Scheduler. An invalid schedule fails here, before
// anything starts.
func NewScheduler(im *Importer, feeds []Feed, spec string, logger *slog.Logger) (*Scheduler, error) {
	if err := ValidateSchedule(spec); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		importer: im,
		feeds:    append([]Feed(nil), feeds...),
		spec:     spec,
		logger:   logger,
	}, nil
}

// SyncAll imports every feed once, in order. A failing feed does not stop
// the others; all failures are joined into the returned error.
func (s *Scheduler) SyncAll(ctx context.Context) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for _, f := range s.feeds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := s.importer.Import(ctx, f)
		if err != nil {
			s.logger.Warn("feed sync failed", "feed", f.String(), "error", err)
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Start begins running SyncAll on the schedule until Stop is called or ctx
// is cancelled. Overlapping runs are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return errors.New("scheduler already started")
	}

	s.c = cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := s.c.AddFunc(s.spec, func() {
		results, err := s.SyncAll(ctx)
		s.logger.Info("feed sync finished", "imported", len(results), "failed", err != nil)
	}); err != nil {
		s.c = nil
		return fmt.Errorf("schedule sync: %w", err)
	}
	s.c.Start()
	s.logger.Info("feed scheduler started", "schedule", s.spec, "feeds", len(s.feeds))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running sync to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("feed scheduler stopped")
}

// cronLogger routes cron's own messages to slog at debug level, and its
// errors (recovered job panics) at error level.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
