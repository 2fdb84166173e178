package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/huddle/internal/availability"
	"github.com/roach88/huddle/internal/bus"
	"github.com/roach88/huddle/internal/clock"
	"github.com/roach88/huddle/internal/config"
	"github.com/roach88/huddle/internal/feeds"
	"github.com/roach88/huddle/internal/schedule"
	"github.com/roach88/huddle/internal/store"
)

// app wires the components a command needs over one database.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      *store.SQLite
	bus       *bus.Bus
	events    *schedule.Store
	cache     *availability.Cache
	engine    *availability.Engine
	importer  *feeds.Importer
	formatter *OutputFormatter
}

// openApp loads configuration, opens the database, and builds the
// components. Callers must Close the app.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	path := cfg.Database
	if opts.Database != "" {
		path = opts.Database
	}
	logger.Debug("opening database", "path", path)
	repo, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	// Sequences continue from the last invocation against this database.
	last, err := repo.LastSequence(contextOrBackground(cmd.Context()))
	if err != nil {
		repo.Close()
		return nil, WrapExitError(ExitCommandError, "failed to read bus state", err)
	}

	clk := clock.System{}
	b := bus.New(clk, bus.WithLogger(logger), bus.WithSequence(clock.NewSequenceAt(last)))
	availOpts := []availability.Option{
		availability.WithClock(clk),
		availability.WithLogger(logger),
		availability.WithPolicy(cfg.Policy()),
		availability.WithDefaultSlot(cfg.DefaultSlot()),
	}
	cache := availability.NewCache(repo, availOpts...)
	events := schedule.New(repo, b,
		schedule.WithClock(clk),
		schedule.WithLogger(logger),
	)

	return &app{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		bus:       b,
		events:    events,
		cache:     cache,
		engine:    availability.NewEngine(events, cache, availOpts...),
		importer:  feeds.NewImporter(cache, feeds.WithClock(clk), feeds.WithLogger(logger)),
		formatter: formatter,
	}, nil
}

// audit logs every lifecycle message published for orgID and saves its
// sequence number for the next invocation.
func (a *app) audit(ctx context.Context, orgID string) {
	a.bus.Subscribe(bus.OrgChannel(orgID), func(m bus.Message) error {
		a.logger.Info("lifecycle",
			"channel", m.Channel,
			"type", m.Type,
			"sequence", m.Sequence,
		)
		return a.repo.SaveSequence(ctx, m.Sequence)
	})
}

// Close releases the database.
func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(*app) error) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return reportSetupError(newFormatter(opts, cmd), err)
	}
	defer a.Close()
	return fn(a)
}

// reportSetupError prints a configuration or database failure and returns
// it with its exit code.
func reportSetupError(f *OutputFormatter, err error) error {
	if outErr := f.Error(ErrCodeSetup, err.Error(), nil); outErr != nil {
		return outErr
	}
	return reported(GetExitCode(err), err)
}
