package predicate

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/taskql/internal/task"
)

// DateOp is the operator of a date predicate.
type DateOp int

const (
	DateBefore DateOp = iota
	DateAfter
	DateOn
	DateHas
	DateNone
)

// String returns the query spelling of the operator.
func (op DateOp) String() string {
	switch op {
	case DateBefore:
		return "before"
	case DateAfter:
		return "after"
	case DateOn:
		return "on"
	case DateHas:
		return "has"
	case DateNone:
		return "no"
	default:
		return "unknown"
	}
}

// DateValue is a calendar day operand: either an absolute date or an
// offset in days from the reference day.
type DateValue struct {
	Absolute time.Time // set when Relative is false; only Y/M/D are used
	Offset   int
	Relative bool
}

// ParseDateValue accepts YYYY-MM-DD, today, tomorrow, and yesterday.
// Anything richer belongs to a natural-language date collaborator.
func ParseDateValue(s string) (DateValue, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return DateValue{Relative: true}, nil
	case "tomorrow":
		return DateValue{Relative: true, Offset: 1}, nil
	case "yesterday":
		return DateValue{Relative: true, Offset: -1}, nil
	}

	d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return DateValue{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD, today, tomorrow, or yesterday)", s)
	}
	return DateValue{Absolute: d}, nil
}

// Resolve returns the operand as midnight in now's location.
func (v DateValue) Resolve(now time.Time) time.Time {
	if v.Relative {
		return StartOfDay(now).AddDate(0, 0, v.Offset)
	}
	y, m, d := v.Absolute.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateCompare tests one dated field. Comparisons use calendar days in the
// location of Day. A task missing the field fails before/after/on and
// satisfies only DateNone.
type DateCompare struct {
	Field task.DateField
	Op    DateOp
	Day   time.Time
}

func (p DateCompare) Matches(t *task.Task) bool {
	value := t.Date(p.Field)
	if value == nil {
		return p.Op == DateNone
	}

	switch p.Op {
	case DateHas:
		return true
	case DateNone:
		return false
	}

	day := StartOfDay(value.In(p.Day.Location()))
	switch p.Op {
	case DateBefore:
		return day.Before(p.Day)
	case DateAfter:
		return day.After(p.Day)
	default:
		return day.Equal(p.Day)
	}
}
