// Package urgency computes the default urgency score used by the query
// engine for "urgency above/below" filters and "sort by urgency".
//
// The score is a weighted sum of independent signals; a higher score means
// more urgent. Finished tasks always score 0.
package urgency

import (
	"time"

	"github.com/steveyegge/taskql/internal/task"
)

const day = 24 * time.Hour

// Weights controls the score formula. Zero-valued weights are replaced with
// defaults by applyDefaults, so set a weight to a tiny positive value to
// effectively disable it.
type Weights struct {
	Priority  float64 // multiplier for the priority factor (0..1)
	Due       float64 // multiplier for due-date proximity (0.2..1)
	Scheduled float64 // added when the scheduled date has arrived
	Blocking  float64 // added when other tasks wait on this one
	Blocked   float64 // subtracted when this task waits on others
	Tags      float64 // multiplier for the tag factor (0..1)
	Age       float64 // multiplier for age, saturating after a year
}

// DefaultWeights returns the default weights. Due dates and priority
// dominate; dependencies shift a task by roughly one priority step.
func DefaultWeights() Weights {
	return Weights{
		Priority:  9.0,
		Due:       12.0,
		Scheduled: 5.0,
		Blocking:  8.0,
		Blocked:   5.0,
		Tags:      1.0,
		Age:       2.0,
	}
}

func (w Weights) applyDefaults() Weights {
	d := DefaultWeights()
	if w.Priority == 0 {
		w.Priority = d.Priority
	}
	if w.Due == 0 {
		w.Due = d.Due
	}
	if w.Scheduled == 0 {
		w.Scheduled = d.Scheduled
	}
	if w.Blocking == 0 {
		w.Blocking = d.Blocking
	}
	if w.Blocked == 0 {
		w.Blocked = d.Blocked
	}
	if w.Tags == 0 {
		w.Tags = d.Tags
	}
	if w.Age == 0 {
		w.Age = d.Age
	}
	return w
}

// Scorer returns a scoring function using w.
func Scorer(w Weights) func(*task.Task, time.Time) float64 {
	w = w.applyDefaults()
	return func(t *task.Task, now time.Time) float64 {
		return w.score(t, now)
	}
}

// Score scores t at now with the default weights.
func Score(t *task.Task, now time.Time) float64 {
	return DefaultWeights().score(t, now)
}

func (w Weights) score(t *task.Task, now time.Time) float64 {
	if t.IsDone() {
		return 0
	}

	s := w.Priority * priorityFactor(t.PriorityRank())
	if t.DueAt != nil {
		s += w.Due * dueFactor(*t.DueAt, now)
	}
	if t.ScheduledAt != nil && !t.ScheduledAt.After(now) {
		s += w.Scheduled
	}
	if len(t.BlockedBy) > 0 {
		s += w.Blocking
	}
	if len(t.DependsOn) > 0 {
		s -= w.Blocked
	}
	s += w.Tags * tagFactor(len(t.Tags))
	if !t.CreatedAt.IsZero() {
		s += w.Age * ageFactor(t.CreatedAt, now)
	}
	return s
}

// priorityFactor maps ranks onto 0..1; normal sits just below the middle
// so that an unprioritized task outranks a low one.
func priorityFactor(p task.Priority) float64 {
	switch p {
	case task.PriorityHighest:
		return 1.0
	case task.PriorityHigh:
		return 0.65
	case task.PriorityNormal:
		return 0.43
	case task.PriorityLow:
		return 0.2
	default:
		return 0
	}
}

// dueFactor is 1.0 for tasks at least a week overdue, 0.2 for tasks due in
// more than two weeks, and linear in between.
func dueFactor(due, now time.Time) float64 {
	overdue := now.Sub(due).Hours() / 24
	switch {
	case overdue >= 7:
		return 1.0
	case overdue >= -14:
		return (overdue+14)*0.8/21 + 0.2
	default:
		return 0.2
	}
}

func tagFactor(n int) float64 {
	switch {
	case n == 0:
		return 0
	case n == 1:
		return 0.8
	case n == 2:
		return 0.9
	default:
		return 1.0
	}
}

func ageFactor(created, now time.Time) float64 {
	age := now.Sub(created)
	if age <= 0 {
		return 0
	}
	if age >= 365*day {
		return 1.0
	}
	return float64(age) / float64(365*day)
}
