package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/huddle/internal/model"
)

// marshalAssignees converts the ordered assignee list to canonical JSON TEXT.
func marshalAssignees(assignees []string) (string, error) {
	data, err := model.MarshalCanonical(assignees)
	if err != nil {
		return "", fmt.Errorf("marshal assignees: %w", err)
	}
	return string(data), nil
}

func unmarshalAssignees(data string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal assignees: %w", err)
	}
	return out, nil
}

// marshalBusy converts a busy list to canonical JSON TEXT so identical
// records always produce identical rows.
func marshalBusy(busy []model.BusyInterval) (string, error) {
	data, err := model.MarshalCanonical(model.BusyToCanonical(busy))
	if err != nil {
		return "", fmt.Errorf("marshal busy: %w", err)
	}
	return string(data), nil
}

func unmarshalBusy(data string) ([]model.BusyInterval, error) {
	out := []model.BusyInterval{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal busy: %w", err)
	}
	for i := range out {
		out[i].Start = out[i].Start.UTC()
		out[i].End = out[i].End.UTC()
	}
	return out, nil
}
