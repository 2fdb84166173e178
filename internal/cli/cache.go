package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/huddle/internal/availability"
	"github.com/roach88/huddle/internal/feeds"
	"github.com/roach88/huddle/internal/model"
)

// ErrCodeRecordNotFound reports a missing cache record on "cache get".
const ErrCodeRecordNotFound = "CACHE_RECORD_NOT_FOUND"

// CacheOptions holds flags shared by the cache subcommands.
type CacheOptions struct {
	*RootOptions
	Organization string
	User         string
	Users        []string
	RangeStart   string
	RangeEnd     string
	Busy         []string
	Source       string
	Label        string
	Horizon      time.Duration
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached external busy time",
		Long: `Manage the per-user cache of busy time from external calendars.

Each write replaces the user's whole record: the declared range and every
busy interval in it. Availability queries treat time outside the declared
range according to the configured uncovered policy.`,
	}

	cmd.AddCommand(newCachePutCommand(rootOpts))
	cmd.AddCommand(newCacheGetCommand(rootOpts))
	cmd.AddCommand(newCacheListCommand(rootOpts))
	cmd.AddCommand(newCacheClearCommand(rootOpts))
	cmd.AddCommand(newCacheImportCommand(rootOpts))
	return cmd
}

func newCachePutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Replace a user's busy time over a range",
		Example: `  huddle cache put --org acme --user bob \
    --range-start 2026-01-05T00:00:00Z --range-end 2026-01-06T00:00:00Z \
    --busy 2026-01-05T11:00:00Z,2026-01-05T11:30:00Z,gcal-1,Dentist`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				in, err := opts.updateInput()
				if err != nil {
					return a.formatter.Fail(err)
				}
				rec, err := a.cache.UpdateCache(contextOrBackground(cmd.Context()), in)
				if err != nil {
					return a.formatter.Fail(err)
				}
				return a.formatter.Success(recordView(rec))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization (required)")
	cmd.Flags().StringVar(&opts.User, "user", "", "user (required)")
	cmd.Flags().StringVar(&opts.RangeStart, "range-start", "", "start of the declared range, RFC 3339 (required)")
	cmd.Flags().StringVar(&opts.RangeEnd, "range-end", "", "end of the declared range, RFC 3339 (required)")
	cmd.Flags().StringArrayVar(&opts.Busy, "busy", nil, "busy interval START,END[,REFERENCE[,LABEL]] (repeatable)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source recorded on every busy interval (default external-calendar)")
	return cmd
}

// updateInput converts the put flags.
func (o *CacheOptions) updateInput() (availability.UpdateCacheInput, error) {
	in := availability.UpdateCacheInput{OrganizationID: o.Organization, UserID: o.User}
	var err error
	if in.RangeStart, err = parseTimeFlag("range-start", o.RangeStart); err != nil {
		return in, model.InvalidArgument("%v", err)
	}
	if in.RangeEnd, err = parseTimeFlag("range-end", o.RangeEnd); err != nil {
		return in, model.InvalidArgument("%v", err)
	}
	for _, spec := range o.Busy {
		b, err := parseBusyFlag(spec)
		if err != nil {
			return in, err
		}
		b.Source = o.Source
		in.Busy = append(in.Busy, b)
	}
	return in, nil
}

// parseBusyFlag parses START,END[,REFERENCE[,LABEL]]. The label may
// contain commas.
func parseBusyFlag(spec string) (model.BusyInterval, error) {
	parts := strings.SplitN(spec, ",", 4)
	if len(parts) < 2 {
		return model.BusyInterval{}, model.InvalidArgument("--busy %q: want START,END[,REFERENCE[,LABEL]]", spec)
	}
	start, err := parseTimeFlag("busy", parts[0])
	if err != nil {
		return model.BusyInterval{}, model.InvalidArgument("%v", err)
	}
	end, err := parseTimeFlag("busy", parts[1])
	if err != nil {
		return model.BusyInterval{}, model.InvalidArgument("%v", err)
	}
	b := model.BusyInterval{Start: start, End: end}
	if len(parts) > 2 {
		b.ReferenceID = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		b.Label = strings.TrimSpace(parts[3])
	}
	return b, nil
}

func newCacheGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "get",
		Short:         "Show a user's cache record",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				rec, ok, err := a.cache.GetCacheRecord(contextOrBackground(cmd.Context()), opts.Organization, opts.User)
				if err != nil {
					return a.formatter.Fail(err)
				}
				if !ok {
					msg := fmt.Sprintf("no cache record for %s/%s", opts.Organization, opts.User)
					if err := a.formatter.Error(ErrCodeRecordNotFound, msg, nil); err != nil {
						return err
					}
					return reported(ExitFailure, NewExitError(ExitFailure, msg))
				}
				return a.formatter.Success(recordView(rec))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization (required)")
	cmd.Flags().StringVar(&opts.User, "user", "", "user (required)")
	return cmd
}

func newCacheListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List an organization's cache records",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				recs, err := a.cache.ListCacheRecords(contextOrBackground(cmd.Context()), opts.Organization, opts.Users)
				if err != nil {
					return a.formatter.Fail(err)
				}
				if recs == nil {
					recs = []model.CacheRecord{}
				}
				return a.formatter.Success(recordListView(recs))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization (required)")
	cmd.Flags().StringSliceVar(&opts.Users, "user", nil, "only these users (repeatable)")
	return cmd
}

type clearedView struct {
	Organization string `json:"organization"`
	User         string `json:"user,omitempty"`
	Removed      bool   `json:"removed"`
}

func (v clearedView) String() string {
	target := v.Organization
	if v.User != "" {
		target += "/" + v.User
	}
	if !v.Removed {
		return "Nothing cached for " + target
	}
	return "✓ Cleared " + target
}

func newCacheClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "clear",
		Short:         "Remove one user's record, or every record of an organization",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				removed, err := a.cache.ClearCache(contextOrBackground(cmd.Context()), opts.Organization, opts.User)
				if err != nil {
					return a.formatter.Fail(err)
				}
				return a.formatter.Success(clearedView{Organization: opts.Organization, User: opts.User, Removed: removed})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization (required)")
	cmd.Flags().StringVar(&opts.User, "user", "", "user (default all users)")
	return cmd
}

func newCacheImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace a user's record from an ICS calendar",
		Long: `Fetch an ICS calendar (http(s) URL, file:// URL, or path) and replace the
user's cache record with its busy time from the start of today (UTC) to
--horizon after it. Recurring, cancelled, and transparent events are skipped.`,
		Example:       `  huddle cache import --org acme --user bob --source https://example.com/bob.ics --label Busy`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				f := feeds.Feed{
					OrganizationID: opts.Organization,
					UserID:         opts.User,
					Location:       opts.Source,
					Label:          opts.Label,
					Horizon:        opts.Horizon,
				}
				res, err := a.importer.Import(contextOrBackground(cmd.Context()), f)
				if err != nil {
					return failFeed(a.formatter, err)
				}
				return a.formatter.Success(newImportView(f, res))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization (required)")
	cmd.Flags().StringVar(&opts.User, "user", "", "user (required)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "calendar URL or path (required)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label for every imported interval instead of event summaries")
	cmd.Flags().DurationVar(&opts.Horizon, "horizon", feeds.DefaultHorizon, "how far ahead to import")
	return cmd
}

// failFeed reports an import failure. Validation errors keep their code;
// fetch and parse failures are E_FEED.
func failFeed(f *OutputFormatter, err error) error {
	if model.CodeOf(err) != "" {
		return f.Fail(err)
	}
	if outErr := f.Error(ErrCodeFeed, err.Error(), nil); outErr != nil {
		return outErr
	}
	return reported(ExitFailure, err)
}
