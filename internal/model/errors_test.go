package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	assert.Equal(t,
		"EVENT_NOT_FOUND: event does not exist (event=evt-1)",
		NotFound("evt-1").Error(),
	)
	assert.Equal(t,
		"AVAILABILITY_INVALID_ARGUMENT: organization is required",
		InvalidArgument("organization is required").Error(),
	)

	err := &Error{Code: CodeEventConflict, Message: "x", OrganizationID: "org-1"}
	assert.Equal(t, "EVENT_CONFLICT: x (org=org-1)", err.Error())
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("update event: %w", VersionMismatch("evt-1", 1, 2))

	assert.True(t, IsVersionMismatch(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.Equal(t, CodeVersionMismatch, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestInvalidArgumentCoversBothCodes(t *testing.T) {
	assert.True(t, IsInvalidArgument(InvalidArgument("a")))
	assert.True(t, IsInvalidArgument(EventInvalid("b")))
	assert.False(t, IsInvalidArgument(NotFound("c")))
}

func TestConflictDetails(t *testing.T) {
	err := Conflict("org-1", "", "evt-9", []string{"user-1", "user-2"})

	assert.True(t, IsConflict(err))
	assert.Equal(t, "evt-9", err.Details["conflicting_event_id"])
	assert.Equal(t, "user-1", err.Details["user.0"])
	assert.Equal(t, "user-2", err.Details["user.1"])
}

func TestVersionMismatchDetails(t *testing.T) {
	err := VersionMismatch("evt-1", 3, 4)
	assert.Equal(t, "3", err.Details["expected_version"])
	assert.Equal(t, "4", err.Details["actual_version"])
}
