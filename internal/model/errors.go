package model

import (
	"errors"
	"fmt"
)

// Repository sentinel errors. Persistence adapters return these; the event
// store translates them into coded errors for callers.
var (
	// ErrStaleWrite indicates a replace or delete whose expected version no
	// longer matches the stored row (or the row is gone).
	ErrStaleWrite = errors.New("stored event version changed")

	// ErrOverlap indicates an insert or replace would overlap another event
	// of the same organization sharing an assignee.
	ErrOverlap = errors.New("event overlaps an existing assignment")
)

// ErrorCode categorizes scheduling errors.
type ErrorCode string

const (
	// CodeInvalidArgument indicates a missing or malformed field on an
	// availability cache or window query call.
	CodeInvalidArgument ErrorCode = "AVAILABILITY_INVALID_ARGUMENT"

	// CodeEventInvalid indicates a malformed event create/update input.
	CodeEventInvalid ErrorCode = "EVENT_INVALID_ARGUMENT"

	// CodeEventConflict indicates a write would double-book an assignee.
	CodeEventConflict ErrorCode = "EVENT_CONFLICT"

	// CodeVersionMismatch indicates a stale expected version.
	CodeVersionMismatch ErrorCode = "EVENT_VERSION_MISMATCH"

	// CodeEventNotFound indicates an unknown event identifier.
	CodeEventNotFound ErrorCode = "EVENT_NOT_FOUND"
)

// Error is a caller-correctable scheduling error.
//
// Error includes structured fields so callers (and the CLI) can report the
// exact cause without parsing the message.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// OrganizationID identifies the affected organization, if known.
	OrganizationID string

	// EventID identifies the affected event, if any.
	EventID string

	// Details contains additional context (conflicting IDs, versions).
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.EventID)
	}
	if e.OrganizationID != "" {
		return fmt.Sprintf("%s: %s (org=%s)", e.Code, e.Message, e.OrganizationID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInvalidArgument reports whether err is an availability or event
// validation error.
func IsInvalidArgument(err error) bool {
	code := CodeOf(err)
	return code == CodeInvalidArgument || code == CodeEventInvalid
}

// IsConflict reports whether err is an EVENT_CONFLICT error.
func IsConflict(err error) bool {
	return CodeOf(err) == CodeEventConflict
}

// IsVersionMismatch reports whether err is an EVENT_VERSION_MISMATCH error.
func IsVersionMismatch(err error) bool {
	return CodeOf(err) == CodeVersionMismatch
}

// IsNotFound reports whether err is an EVENT_NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeEventNotFound
}

// InvalidArgument creates an AVAILABILITY_INVALID_ARGUMENT error.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// EventInvalid creates an EVENT_INVALID_ARGUMENT error.
func EventInvalid(format string, args ...any) *Error {
	return &Error{Code: CodeEventInvalid, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates an EVENT_NOT_FOUND error.
func NotFound(eventID string) *Error {
	return &Error{
		Code:    CodeEventNotFound,
		Message: "event does not exist",
		EventID: eventID,
	}
}

// VersionMismatch creates an EVENT_VERSION_MISMATCH error.
func VersionMismatch(eventID string, expected, actual int64) *Error {
	return &Error{
		Code:    CodeVersionMismatch,
		Message: fmt.Sprintf("expected version %d, stored version is %d", expected, actual),
		EventID: eventID,
		Details: map[string]string{
			"expected_version": fmt.Sprintf("%d", expected),
			"actual_version":   fmt.Sprintf("%d", actual),
		},
	}
}

// Conflict creates an EVENT_CONFLICT error naming the first clashing event
// and the assignees it shares with the proposed interval.
func Conflict(orgID, eventID, conflictingID string, users []string) *Error {
	details := map[string]string{"conflicting_event_id": conflictingID}
	for i, u := range users {
		details[fmt.Sprintf("user.%d", i)] = u
	}
	return &Error{
		Code:           CodeEventConflict,
		Message:        fmt.Sprintf("overlaps event %s for %d shared assignee(s)", conflictingID, len(users)),
		OrganizationID: orgID,
		EventID:        eventID,
		Details:        details,
	}
}
