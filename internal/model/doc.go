// Package model provides the shared scheduling types for huddle.
//
// This package contains type definitions, the error taxonomy, and the
// canonical JSON encoding. Every other internal package imports model;
// model imports only interval. This keeps the data model the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - All intervals are half-open [Start, End)
//   - Values crossing a package boundary are copied, never shared
//   - Times are stored and emitted in UTC
package model
