package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/huddle/internal/model"
	"github.com/roach88/huddle/internal/schedule"
)

// EventOptions holds flags shared by the event subcommands.
type EventOptions struct {
	*RootOptions
	Organization    string
	Title           string
	Start           string
	End             string
	Assignees       []string
	CreatedBy       string
	ExpectedVersion int64
	From            string
	To              string
}

// NewEventCommand creates the event command group.
func NewEventCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Create, change, and inspect events",
		Long: `Manage events in the local store.

A write is rejected with EVENT_CONFLICT when any assignee already has an
overlapping event in the same organization. Updates and deletes can be
guarded with --expected-version.

Exit codes:
  0 - Success
  1 - Request rejected (conflict, version mismatch, not found, invalid input)
  2 - Command error (bad config, database not found, etc.)`,
	}

	cmd.AddCommand(newEventCreateCommand(rootOpts))
	cmd.AddCommand(newEventUpdateCommand(rootOpts))
	cmd.AddCommand(newEventDeleteCommand(rootOpts))
	cmd.AddCommand(newEventGetCommand(rootOpts))
	cmd.AddCommand(newEventListCommand(rootOpts))
	return cmd
}

func newEventCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event",
		Example: `  huddle event create --org acme --title Planning \
    --start 2026-01-05T09:30:00Z --end 2026-01-05T10:30:00Z --assignee alice --assignee bob`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				return runEventCreate(cmd.Context(), a, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "event title (required)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start time, RFC 3339 (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end time, RFC 3339 (required)")
	cmd.Flags().StringSliceVar(&opts.Assignees, "assignee", nil, "assigned user (repeatable)")
	cmd.Flags().StringVar(&opts.CreatedBy, "created-by", "", "creator recorded on the event")
	return cmd
}

func runEventCreate(ctx context.Context, a *app, opts *EventOptions) error {
	start, err := parseTimeFlag("start", opts.Start)
	if err != nil {
		return a.formatter.Fail(model.EventInvalid("%v", err))
	}
	end, err := parseTimeFlag("end", opts.End)
	if err != nil {
		return a.formatter.Fail(model.EventInvalid("%v", err))
	}

	a.audit(contextOrBackground(ctx), opts.Organization)
	e, err := a.events.CreateEvent(contextOrBackground(ctx), schedule.CreateInput{
		OrganizationID: opts.Organization,
		Title:          opts.Title,
		Start:          start,
		End:            end,
		Assignees:      opts.Assignees,
		CreatedBy:      opts.CreatedBy,
	})
	if err != nil {
		return a.formatter.Fail(err)
	}
	return a.formatter.Success(eventView(e))
}

func newEventUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <event-id>",
		Short: "Change an event's title, interval, or assignees",
		Example: `  huddle event update evt-1 --start 2026-01-05T11:00:00Z --end 2026-01-05T12:00:00Z --expected-version 1
  huddle event update evt-1 --assignee alice --assignee carol`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				return runEventUpdate(cmd, a, opts, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Start, "start", "", "new start time, RFC 3339")
	cmd.Flags().StringVar(&opts.End, "end", "", "new end time, RFC 3339")
	cmd.Flags().StringSliceVar(&opts.Assignees, "assignee", nil, "replacement assignee list (repeatable)")
	cmd.Flags().Int64Var(&opts.ExpectedVersion, "expected-version", 0, "reject unless the stored version matches")
	return cmd
}

func runEventUpdate(cmd *cobra.Command, a *app, opts *EventOptions, id string) error {
	var in schedule.UpdateInput
	flags := cmd.Flags()
	if flags.Changed("title") {
		in.Title = &opts.Title
	}
	if flags.Changed("start") {
		t, err := parseTimeFlag("start", opts.Start)
		if err != nil {
			return a.formatter.Fail(model.EventInvalid("%v", err))
		}
		in.Start = &t
	}
	if flags.Changed("end") {
		t, err := parseTimeFlag("end", opts.End)
		if err != nil {
			return a.formatter.Fail(model.EventInvalid("%v", err))
		}
		in.End = &t
	}
	if flags.Changed("assignee") {
		in.Assignees = opts.Assignees
	}
	if flags.Changed("expected-version") {
		in.ExpectedVersion = &opts.ExpectedVersion
	}

	ctx := contextOrBackground(cmd.Context())
	if cur, err := a.events.GetEvent(ctx, id); err == nil {
		a.audit(ctx, cur.OrganizationID)
	}
	e, err := a.events.UpdateEvent(ctx, id, in)
	if err != nil {
		return a.formatter.Fail(err)
	}
	return a.formatter.Success(eventView(e))
}

func newEventDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "delete <event-id>",
		Short:         "Delete an event",
		Example:       `  huddle event delete evt-1 --expected-version 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				var del schedule.DeleteOptions
				if cmd.Flags().Changed("expected-version") {
					del.ExpectedVersion = &opts.ExpectedVersion
				}
				ctx := contextOrBackground(cmd.Context())
				if cur, err := a.events.GetEvent(ctx, args[0]); err == nil {
					a.audit(ctx, cur.OrganizationID)
				}
				if err := a.events.DeleteEvent(ctx, args[0], del); err != nil {
					return a.formatter.Fail(err)
				}
				return a.formatter.Success(deletedView{ID: args[0]})
			})
		},
	}

	cmd.Flags().Int64Var(&opts.ExpectedVersion, "expected-version", 0, "reject unless the stored version matches")
	return cmd
}

type deletedView struct {
	ID string `json:"deleted"`
}

func (v deletedView) String() string {
	return fmt.Sprintf("✓ Deleted %s", v.ID)
}

func newEventGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <event-id>",
		Short:         "Show one event",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app) error {
				e, err := a.events.GetEvent(contextOrBackground(cmd.Context()), args[0])
				if err != nil {
					return a.formatter.Fail(err)
				}
				return a.formatter.Success(eventView(e))
			})
		},
	}
}

func newEventListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List an organization's events",
		Example:       `  huddle event list --org acme --from 2026-01-05T00:00:00Z --to 2026-01-06T00:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				return runEventList(cmd, a, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization (required)")
	cmd.Flags().StringVar(&opts.From, "from", "", "only events ending after this time, RFC 3339")
	cmd.Flags().StringVar(&opts.To, "to", "", "only events starting before this time, RFC 3339")
	cmd.Flags().StringSliceVar(&opts.Assignees, "assignee", nil, "only events with one of these assignees")
	return cmd
}

func runEventList(cmd *cobra.Command, a *app, opts *EventOptions) error {
	q := schedule.ListQuery{OrganizationID: opts.Organization, Assignees: opts.Assignees}
	if opts.From != "" {
		t, err := parseTimeFlag("from", opts.From)
		if err != nil {
			return a.formatter.Fail(model.EventInvalid("%v", err))
		}
		q.Start = &t
	}
	if opts.To != "" {
		t, err := parseTimeFlag("to", opts.To)
		if err != nil {
			return a.formatter.Fail(model.EventInvalid("%v", err))
		}
		q.End = &t
	}
	events, err := a.events.ListEvents(contextOrBackground(cmd.Context()), q)
	if err != nil {
		return a.formatter.Fail(err)
	}
	if events == nil {
		events = []model.Event{}
	}
	sortEvents(events)
	return a.formatter.Success(eventListView(events))
}

// contextOrBackground returns ctx, or context.Background when a command
// runs without one (direct Execute in tests).
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
