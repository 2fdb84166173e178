package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/huddle/internal/feeds"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Watch    bool
	Schedule string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import every configured calendar feed",
		Long: `Import every feed listed in the configuration file, replacing each user's
cache record. A failing feed does not stop the others.

With --watch, sync once and then keep syncing on the configured schedule
(cron syntax or @every) until interrupted.

Exit codes:
  0 - All feeds imported
  1 - One or more feeds failed
  2 - Command error (bad config, database not found, etc.)`,
		Example: `  huddle sync --config huddle.yaml
  huddle sync --config huddle.yaml --watch --schedule "*/10 * * * *"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				return runSync(cmd, a, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep syncing on the schedule until interrupted")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "override the configured sync schedule")
	return cmd
}

func runSync(cmd *cobra.Command, a *app, opts *SyncOptions) error {
	feedList := a.cfg.FeedList()
	schedule := a.cfg.Sync.Schedule
	if opts.Schedule != "" {
		schedule = opts.Schedule
	}

	sched, err := feeds.NewScheduler(a.importer, feedList, schedule, a.logger)
	if err != nil {
		if outErr := a.formatter.Error(ErrCodeConfig, err.Error(), nil); outErr != nil {
			return outErr
		}
		return reported(ExitCommandError, err)
	}

	ctx, cancel := context.WithCancel(contextOrBackground(cmd.Context()))
	defer cancel()

	a.formatter.VerboseLog("syncing %d feed(s)", len(feedList))
	view := syncOnce(ctx, a, sched, feedList)
	if err := a.formatter.Success(view); err != nil {
		return err
	}

	if opts.Watch {
		if err := watch(ctx, cancel, a, sched); err != nil {
			return err
		}
	}

	if len(view.Failed) > 0 {
		return reported(ExitFailure, fmt.Errorf("%d feed(s) failed", len(view.Failed)))
	}
	return nil
}

// syncOnce imports every feed and pairs each result with its feed.
func syncOnce(ctx context.Context, a *app, sched *feeds.Scheduler, feedList []feeds.Feed) syncView {
	results, _ := sched.SyncAll(ctx)

	view := syncView{Imports: []importView{}}
	byFeed := make(map[string]feeds.Result, len(results))
	for _, res := range results {
		byFeed[res.Record.OrganizationID+"/"+res.Record.UserID] = res
	}
	for _, f := range feedList {
		if res, ok := byFeed[f.String()]; ok {
			view.Imports = append(view.Imports, newImportView(f, res))
		} else {
			view.Failed = append(view.Failed, f.String())
		}
	}
	return view
}

// watch runs the scheduler until SIGINT/SIGTERM or ctx is cancelled.
func watch(ctx context.Context, cancel context.CancelFunc, a *app, sched *feeds.Scheduler) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start scheduler", err)
	}
	<-ctx.Done()
	sched.Stop()
	return nil
}
