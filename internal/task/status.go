package task

import (
	"fmt"
	"strings"
)

// StatusType is the normalized category of a task status.
type StatusType string

const (
	StatusTodo       StatusType = "TODO"
	StatusInProgress StatusType = "IN_PROGRESS"
	StatusDone       StatusType = "DONE"
	StatusCancelled  StatusType = "CANCELLED"
)

// statusTypes maps checkbox symbols and status names to their category.
// Names are matched case-insensitively; symbols exactly.
var statusTypes = map[string]StatusType{
	" ": StatusTodo,
	"/": StatusInProgress,
	"x": StatusDone,
	"X": StatusDone,
	"-": StatusCancelled,

	"todo":        StatusTodo,
	"open":        StatusTodo,
	"pending":     StatusTodo,
	"in_progress": StatusInProgress,
	"in-progress": StatusInProgress,
	"done":        StatusDone,
	"closed":      StatusDone,
	"completed":   StatusDone,
	"cancelled":   StatusCancelled,
	"canceled":    StatusCancelled,
}

// LookupStatusType normalizes a status symbol or name.
func LookupStatusType(status string) (StatusType, bool) {
	if st, ok := statusTypes[status]; ok {
		return st, true
	}
	st, ok := statusTypes[strings.ToLower(strings.TrimSpace(status))]
	return st, ok
}

// ParseStatusType parses a status type as written in a query
// ("todo", "IN_PROGRESS", "in-progress", "cancelled").
func ParseStatusType(s string) (StatusType, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "TODO":
		return StatusTodo, nil
	case "IN_PROGRESS":
		return StatusInProgress, nil
	case "DONE":
		return StatusDone, nil
	case "CANCELLED", "CANCELED":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown status type %q (expected TODO, IN_PROGRESS, DONE, or CANCELLED)", s)
	}
}

// String returns the status type name.
func (s StatusType) String() string {
	return string(s)
}
