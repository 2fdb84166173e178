package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/huddle/internal/availability"
	"github.com/roach88/huddle/internal/model"
)

// AvailabilityOptions holds flags for the availability command.
type AvailabilityOptions struct {
	*RootOptions
	Organization string
	Users        []string
	From         string
	To           string
	SlotMinutes  int
}

// NewAvailabilityCommand creates the availability command.
func NewAvailabilityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AvailabilityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "availability",
		Aliases: []string{"free"},
		Short:   "Find when every listed user is free",
		Long: `Split the range into slots and report the windows in which no listed user
is busy, merged where adjacent, together with each user's busy time in the
range. Busy time comes from stored events and cached external calendars.`,
		Example: `  huddle availability --org acme --user alice --user bob \
    --from 2026-01-05T09:00:00Z --to 2026-01-05T17:00:00Z --slot 30`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts.RootOptions, cmd, func(a *app) error {
				return runAvailability(cmd, a, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Organization, "org", "", "organization (required)")
	cmd.Flags().StringSliceVar(&opts.Users, "user", nil, "user to include (repeatable, required)")
	cmd.Flags().StringVar(&opts.From, "from", "", "range start, RFC 3339 (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "range end, RFC 3339 (required)")
	cmd.Flags().IntVar(&opts.SlotMinutes, "slot", 0, "slot size in minutes (default from config)")
	return cmd
}

func runAvailability(cmd *cobra.Command, a *app, opts *AvailabilityOptions) error {
	start, err := parseTimeFlag("from", opts.From)
	if err != nil {
		return a.formatter.Fail(model.InvalidArgument("%v", err))
	}
	end, err := parseTimeFlag("to", opts.To)
	if err != nil {
		return a.formatter.Fail(model.InvalidArgument("%v", err))
	}

	res, err := a.engine.GetAvailabilityWindows(contextOrBackground(cmd.Context()), availability.WindowQuery{
		OrganizationID: opts.Organization,
		UserIDs:        opts.Users,
		RangeStart:     start,
		RangeEnd:       end,
		SlotMinutes:    opts.SlotMinutes,
	})
	if err != nil {
		return a.formatter.Fail(err)
	}
	a.formatter.VerboseLog("policy: uncovered=%s max_age=%s", a.engine.Policy().Uncovered, a.engine.Policy().MaxAge)
	return a.formatter.Success(availabilityView(res))
}
