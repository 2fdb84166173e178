// Package schedule implements the Event Store: the authoritative owner of
// calendar events.
//
// Every mutation runs inside a per-organization critical section:
//
//  1. Read current state (for update/delete)
//  2. Check the expected version, if supplied
//  3. Check every assignee for an overlapping event
//  4. Write through the Repository
//  5. Publish the lifecycle message on "org:<organization>"
//
// Publishing happens after the write commits and before the lock is
// released, so messages for one organization are delivered in commit order
// and carry increasing bus sequence numbers. A failed call writes nothing
// and publishes nothing.
//
// Bus handlers run synchronously inside that critical section. A handler
// must not call back into the store for the same organization.
package schedule
