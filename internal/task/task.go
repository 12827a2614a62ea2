// Package task defines the read-only task record consumed by the query
// engine and the global filter, together with its priority and status
// vocabularies.
package task

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Task is a single work item. Every optional field has a documented
// "absent" value: nil pointers, empty strings, and empty slices.
// Nothing in this module mutates a Task after it has been loaded.
type Task struct {
	// ===== Core Identification =====
	ID string `json:"id"`

	// ===== Task Content =====
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"` // checkbox symbol (" ", "x", "/", "-") or name (todo, done, ...)

	// ===== Priority & Scheduling =====
	Priority    *Priority  `json:"priority,omitempty"` // nil compares as PriorityNormal
	DueAt       *time.Time `json:"due_at,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	Frequency   *Frequency `json:"frequency,omitempty"`

	// ===== Classification =====
	Tags    []string `json:"tags,omitempty"`
	Heading string   `json:"heading,omitempty"`
	Path    string   `json:"path,omitempty"`

	// ===== Dependencies =====
	DependsOn []string `json:"depends_on,omitempty"` // tasks this one waits for
	BlockedBy []string `json:"blocked_by,omitempty"` // tasks waiting on this one

	// ===== Timestamps =====
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Frequency describes a recurrence rule. Only its presence matters here;
// computing the next occurrence belongs to the recurrence collaborator.
type Frequency struct {
	Every    string `json:"every"`              // day, week, month, year
	Interval int    `json:"interval,omitempty"` // 0 and 1 both mean "every"
}

// IsRecurring reports whether the frequency describes a real recurrence.
func (f *Frequency) IsRecurring() bool {
	if f == nil {
		return false
	}
	every := strings.ToLower(strings.TrimSpace(f.Every))
	return every != "" && every != "none" && f.Interval >= 0
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.Priority != nil && !t.Priority.IsValid() {
		return fmt.Errorf("priority must be between %d and %d (got %d)", PriorityLowest, PriorityHighest, *t.Priority)
	}
	if _, ok := LookupStatusType(t.Status); !ok && t.Status != "" {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = " "
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = t.UpdatedAt
	}
}

// StatusType returns the normalized status category of the task.
// Unknown or empty statuses are treated as TODO.
func (t *Task) StatusType() StatusType {
	st, ok := LookupStatusType(t.Status)
	if !ok {
		return StatusTodo
	}
	return st
}

// IsDone reports whether the task is finished, either done or cancelled.
func (t *Task) IsDone() bool {
	switch t.StatusType() {
	case StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

// PriorityRank returns the task priority, defaulting to PriorityNormal.
func (t *Task) PriorityRank() Priority {
	if t.Priority == nil {
		return PriorityNormal
	}
	return *t.Priority
}

// Text returns the searchable text of the task: title and description.
func (t *Task) Text() string {
	if t.Description == "" {
		return t.Title
	}
	return t.Title + "\n" + t.Description
}

// HasPath reports whether the task carries path metadata.
func (t *Task) HasPath() bool {
	return t.Path != ""
}

// SlashPath returns the task path with separators normalized to "/".
func (t *Task) SlashPath() string {
	return strings.ReplaceAll(t.Path, "\\", "/")
}

// FileName returns the last element of the task path, or "" without a path.
func (t *Task) FileName() string {
	if !t.HasPath() {
		return ""
	}
	return path.Base(t.SlashPath())
}

// Folder returns the directory of the task path with a trailing slash,
// or "" when the task has no path.
func (t *Task) Folder() string {
	if !t.HasPath() {
		return ""
	}
	dir := path.Dir(t.SlashPath())
	if dir == "." {
		return "/"
	}
	return dir + "/"
}

// DateField names one of the dated fields of a task.
type DateField string

const (
	DateDue       DateField = "due"
	DateScheduled DateField = "scheduled"
	DateStart     DateField = "start"
)

// Date returns the value of the named date field, or nil when absent.
func (t *Task) Date(field DateField) *time.Time {
	switch field {
	case DateDue:
		return t.DueAt
	case DateScheduled:
		return t.ScheduledAt
	case DateStart:
		return t.StartAt
	default:
		return nil
	}
}

// ParseDateField resolves user spellings ("starts", "Due") to a DateField.
func ParseDateField(s string) (DateField, bool) {
	switch strings.ToLower(s) {
	case "due":
		return DateDue, true
	case "scheduled":
		return DateScheduled, true
	case "start", "starts":
		return DateStart, true
	default:
		return "", false
	}
}
