// Package availability holds externally sourced busy time and answers
// shared free-time queries.
//
// Cache stores one record per (organization, user). Every update replaces
// the whole record, so readers see either the old busy list or the new one,
// never a mix.
//
// Engine combines the organization's events with cached busy time, cuts the
// query range into fixed slots, and returns the slots no requested user is
// busy in, merged into windows, together with a per-user conflict report.
package availability
