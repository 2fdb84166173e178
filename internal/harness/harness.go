package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/huddle/internal/availability"
	"github.com/roach88/huddle/internal/bus"
	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
	"github.com/roach88/huddle/internal/schedule"
	"github.com/roach88/huddle/internal/store"
	"github.com/roach88/huddle/internal/testutil"
)

// Option configures a scenario run.
type Option func(*runOptions)

type runOptions struct {
	logger *slog.Logger
}

// WithLogger routes component logs of the run to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// runner holds the components of one scenario execution.
type runner struct {
	scenario *Scenario
	day      time.Time
	clock    *testutil.StepClock
	bus      *bus.Bus
	repo     *store.SQLite
	events   *schedule.Store
	cache    *availability.Cache
	engine   *availability.Engine
	result   *Result

	// names maps "as" aliases to event IDs.
	names map[string]string

	// subscribed records organizations whose channel is traced.
	subscribed map[string]bool
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a frozen clock at
// midnight UTC of the scenario date and sequential event IDs (evt-1, evt-2,
// ...), so the trace is reproducible. A returned error means the scenario
// could not be executed at all; step and assertion failures are reported in
// the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	day, err := scenario.day()
	if err != nil {
		return nil, err
	}
	policy, slot, err := scenario.policy()
	if err != nil {
		return nil, err
	}

	repo, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer repo.Close()

	clk := testutil.NewFrozenClock(day)
	b := bus.New(clk, bus.WithLogger(o.logger))
	cacheOpts := []availability.Option{
		availability.WithClock(clk),
		availability.WithLogger(o.logger),
		availability.WithPolicy(policy),
	}
	if slot > 0 {
		cacheOpts = append(cacheOpts, availability.WithDefaultSlot(slot))
	}
	cache := availability.NewCache(repo, cacheOpts...)
	events := schedule.New(repo, b,
		schedule.WithClock(clk),
		schedule.WithIDGenerator(testutil.NewSequentialIDs("evt")),
		schedule.WithLogger(o.logger),
	)

	r := &runner{
		scenario:   scenario,
		day:        day,
		clock:      clk,
		bus:        b,
		repo:       repo,
		events:     events,
		cache:      cache,
		engine:     availability.NewEngine(events, cache, cacheOpts...),
		result:     NewResult(),
		names:      make(map[string]string),
		subscribed: make(map[string]bool),
	}

	ctx := context.Background()
	for i, step := range scenario.Steps {
		r.execute(ctx, i, step)
	}

	actx := &AssertionContext{
		Ctx:          ctx,
		Events:       r.events,
		Cache:        r.cache,
		Organization: scenario.organization(""),
		Day:          day,
		Names:        r.names,
	}
	for _, msg := range EvaluateAssertions(r.result, scenario.Assertions, actx) {
		r.result.AddError(msg)
	}
	return r.result, nil
}

// trace subscribes to org's lifecycle channel the first time it is used.
// The bus delivers synchronously, so messages land in the trace before the
// entry of the step that caused them.
func (r *runner) trace(org string) {
	if r.subscribed[org] {
		return
	}
	r.subscribed[org] = true
	r.bus.Subscribe(bus.OrgChannel(org), func(m bus.Message) error {
		ev := TraceEvent{Kind: KindMessage, Seq: m.Sequence, Type: m.Type}
		if e, ok := m.Payload.(model.Event); ok {
			ev.EventID = e.ID
			ev.Version = e.Version
		}
		r.result.Trace = append(r.result.Trace, ev)
		return nil
	})
}

// execute runs one step, appends its trace entry, and checks its
// expectation.
func (r *runner) execute(ctx context.Context, index int, step Step) {
	org := r.scenario.organization(step.Organization)
	r.trace(org)

	entry := TraceEvent{Kind: KindStep, Step: index, Op: step.Op()}
	var err error
	switch entry.Op {
	case OpCreate:
		err = r.create(ctx, org, step, &entry)
	case OpUpdate:
		err = r.update(ctx, step.Update, &entry)
	case OpDelete:
		err = r.delete(ctx, step.Delete, &entry)
	case OpCache:
		err = r.putCache(ctx, org, step.Cache)
	case OpClearCache:
		_, err = r.cache.ClearCache(ctx, org, step.ClearCache.User)
	case OpAvailability:
		err = r.availability(ctx, org, step.Availability, &entry)
	case OpAdvance:
		var d time.Duration
		if d, err = time.ParseDuration(step.Advance); err == nil {
			r.clock.Advance(d)
		}
	default:
		err = fmt.Errorf("exactly one operation is required")
	}

	entry.Status = "ok"
	if err != nil {
		entry.Status = "error"
		entry.Error = string(model.CodeOf(err))
		if entry.Error == "" {
			entry.Error = err.Error()
		}
	}
	r.result.Trace = append(r.result.Trace, entry)
	r.check(index, step, entry)
}

// check compares a step outcome with its expectation.
func (r *runner) check(index int, step Step, entry TraceEvent) {
	expect := step.Expect
	if expect == nil {
		expect = &StepExpect{}
	}
	if entry.Error != expect.Error {
		if expect.Error == "" {
			r.result.AddError(fmt.Sprintf("step %d (%s): unexpected error %s", index, entry.Op, entry.Error))
		} else {
			r.result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %q", index, entry.Op, expect.Error, entry.Error))
		}
		return
	}
	if expect.Version != nil && entry.Version != *expect.Version {
		r.result.AddError(fmt.Sprintf("step %d (%s): expected version %d, got %d", index, entry.Op, *expect.Version, entry.Version))
	}
	if expect.Windows != nil {
		want := make([]interval.Span, 0, len(expect.Windows))
		for _, w := range expect.Windows {
			start, _ := parseTime(r.day, w[0])
			end, _ := parseTime(r.day, w[1])
			want = append(want, interval.New(start, end))
		}
		if !spansEqual(want, entry.Windows) {
			r.result.AddError(fmt.Sprintf("step %d (%s): expected windows %s, got %s",
				index, entry.Op, formatSpans(want), formatSpans(entry.Windows)))
		}
	}
	for user, refs := range expect.Conflicts {
		got := make([]string, 0, len(entry.Conflicts[user]))
		for _, b := range entry.Conflicts[user] {
			got = append(got, b.ReferenceID)
		}
		want := make([]string, len(refs))
		for i, ref := range refs {
			want[i] = r.resolve(ref)
		}
		if fmt.Sprint(want) != fmt.Sprint(got) {
			r.result.AddError(fmt.Sprintf("step %d (%s): expected conflicts for %s %v, got %v",
				index, entry.Op, user, want, got))
		}
	}
}

// resolve maps an "as" alias to its event ID. Other names pass through.
func (r *runner) resolve(name string) string {
	if id, ok := r.names[name]; ok {
		return id
	}
	return name
}

func (r *runner) create(ctx context.Context, org string, step Step, entry *TraceEvent) error {
	c := step.Create
	start, err := parseTime(r.day, c.Start)
	if err != nil {
		return err
	}
	end, err := parseTime(r.day, c.End)
	if err != nil {
		return err
	}
	e, err := r.events.CreateEvent(ctx, schedule.CreateInput{
		OrganizationID: org,
		Title:          c.Title,
		Start:          start,
		End:            end,
		Assignees:      c.Assignees,
		CreatedBy:      c.CreatedBy,
	})
	if err != nil {
		return err
	}
	if step.As != "" {
		r.names[step.As] = e.ID
	}
	entry.EventID = e.ID
	entry.Version = e.Version
	return nil
}

func (r *runner) update(ctx context.Context, u *UpdateStep, entry *TraceEvent) error {
	in := schedule.UpdateInput{
		Title:           u.Title,
		Assignees:       u.Assignees,
		ExpectedVersion: u.ExpectedVersion,
	}
	if u.Start != nil {
		t, err := parseTime(r.day, *u.Start)
		if err != nil {
			return err
		}
		in.Start = &t
	}
	if u.End != nil {
		t, err := parseTime(r.day, *u.End)
		if err != nil {
			return err
		}
		in.End = &t
	}
	id := r.resolve(u.Event)
	entry.EventID = id
	e, err := r.events.UpdateEvent(ctx, id, in)
	if err != nil {
		return err
	}
	entry.Version = e.Version
	return nil
}

func (r *runner) delete(ctx context.Context, d *DeleteStep, entry *TraceEvent) error {
	id := r.resolve(d.Event)
	entry.EventID = id
	return r.events.DeleteEvent(ctx, id, schedule.DeleteOptions{ExpectedVersion: d.ExpectedVersion})
}

func (r *runner) putCache(ctx context.Context, org string, c *CacheStep) error {
	in := availability.UpdateCacheInput{OrganizationID: org, UserID: c.User}
	var err error
	if in.RangeStart, err = parseTime(r.day, c.RangeStart); err != nil {
		return err
	}
	if in.RangeEnd, err = parseTime(r.day, c.RangeEnd); err != nil {
		return err
	}
	for _, b := range c.Busy {
		bi := model.BusyInterval{Source: b.Source, ReferenceID: b.ReferenceID, Label: b.Label}
		if bi.Start, err = parseTime(r.day, b.Start); err != nil {
			return err
		}
		if bi.End, err = parseTime(r.day, b.End); err != nil {
			return err
		}
		in.Busy = append(in.Busy, bi)
	}
	_, err = r.cache.UpdateCache(ctx, in)
	return err
}

func (r *runner) availability(ctx context.Context, org string, a *AvailabilityStep, entry *TraceEvent) error {
	start, err := parseTime(r.day, a.RangeStart)
	if err != nil {
		return err
	}
	end, err := parseTime(r.day, a.RangeEnd)
	if err != nil {
		return err
	}
	res, err := r.engine.GetAvailabilityWindows(ctx, availability.WindowQuery{
		OrganizationID: org,
		UserIDs:        a.Users,
		RangeStart:     start,
		RangeEnd:       end,
		SlotMinutes:    a.SlotMinutes,
	})
	if err != nil {
		return err
	}
	entry.Windows = res.Windows
	entry.Conflicts = res.Conflicts
	return nil
}

func spansEqual(a, b []interval.Span) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || !a[i].End.Equal(b[i].End) {
			return false
		}
	}
	return true
}

func formatSpans(spans []interval.Span) string {
	out := "["
	for i, s := range spans {
		if i > 0 {
			out += " "
		}
		out += "[" + model.FormatTime(s.Start) + ", " + model.FormatTime(s.End) + ")"
	}
	return out + "]"
}
