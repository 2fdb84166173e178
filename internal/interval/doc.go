// Package interval provides half-open time interval algebra used by the
// scheduler and the availability engine.
//
// Every Span is [Start, End): End is excluded, so spans that touch at a
// boundary do not overlap. All functions are pure and never mutate their
// inputs.
package interval
