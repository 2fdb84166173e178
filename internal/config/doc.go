// Package config loads the huddle configuration file.
//
// The file is YAML. It is checked twice: first against an embedded CUE
// schema, which catches unknown keys, wrong types and out-of-range values
// with a readable path, then decoded into Config with strict field
// matching. Durations and the sync schedule are parsed last.
//
// Example:
//
//	database: /var/lib/huddle/huddle.db
//	log:
//	  level: info
//	availability:
//	  default_slot_minutes: 30
//	  uncovered: busy
//	  max_record_age: 6h
//	sync:
//	  schedule: "*/15 * * * *"
//	feeds:
//	  - organization: acme
//	    user: alice
//	    source: https://calendar.example.com/alice.ics
//	    label: Busy
//	    horizon: 336h
package config
