// Package feeds imports iCalendar (ICS) feeds into the availability cache.
//
// An import reads one feed, turns each timed VEVENT into a busy interval
// clipped to the import range, and replaces the user's cache record with the
// result. Recurring events (those carrying an RRULE) are not expanded: only
// their first instance is blocked. Cancelled and transparent events are
// skipped.
//
// Scheduler re-imports every configured feed on a cron schedule.
package feeds
