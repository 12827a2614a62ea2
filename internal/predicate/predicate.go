// Package predicate implements the filter predicates referenced by query
// trees. Every predicate fixes its operands at construction time and then
// answers Matches for any number of tasks without side effects.
//
// Predicates never fail at evaluation time: a missing task field takes the
// branch documented on each type, and an invalid regular expression simply
// matches nothing.
package predicate

import (
	"strings"

	"github.com/steveyegge/taskql/internal/task"
)

// Predicate decides whether a single task satisfies a condition.
type Predicate interface {
	Matches(t *task.Task) bool
}

// Compare is the comparison direction for ordinal predicates.
type Compare int

const (
	Equal Compare = iota
	Above
	Below
)

// String returns the query spelling of the comparison.
func (c Compare) String() string {
	switch c {
	case Equal:
		return "is"
	case Above:
		return "above"
	case Below:
		return "below"
	default:
		return "unknown"
	}
}

// True matches every task. It is the predicate of a query without filters.
type True struct{}

func (True) Matches(*task.Task) bool { return true }

// Done matches finished tasks (status type DONE or CANCELLED).
type Done struct{}

func (Done) Matches(t *task.Task) bool { return t.IsDone() }

// StatusIs compares the normalized status type. A task with an unknown
// status is treated as TODO.
type StatusIs struct {
	Type   task.StatusType
	Negate bool
}

func (p StatusIs) Matches(t *task.Task) bool {
	return (t.StatusType() == p.Type) != p.Negate
}

// PriorityIs compares priority ranks. A task without priority ranks as normal.
type PriorityIs struct {
	Op   Compare
	Rank task.Priority
}

func (p PriorityIs) Matches(t *task.Task) bool {
	rank := t.PriorityRank()
	switch p.Op {
	case Above:
		return rank > p.Rank
	case Below:
		return rank < p.Rank
	default:
		return rank == p.Rank
	}
}

// TagIncludes matches when any task tag equals Tag or contains it as a
// case-sensitive substring. The leading "#" is optional on both sides.
// A task without tags never includes anything.
type TagIncludes struct {
	Tag    string
	Negate bool
}

func (p TagIncludes) Matches(t *task.Task) bool {
	needle := withHash(p.Tag)
	found := false
	for _, tag := range t.Tags {
		if strings.Contains(withHash(tag), needle) {
			found = true
			break
		}
	}
	return found != p.Negate
}

// HasTags tests whether the tag list is non-empty (Want) or empty (!Want).
type HasTags struct {
	Want bool
}

func (p HasTags) Matches(t *task.Task) bool {
	return (len(t.Tags) > 0) == p.Want
}

// HeadingIncludes is a case-insensitive substring test on the heading.
// An absent heading behaves as the empty string.
type HeadingIncludes struct {
	Text   string
	Negate bool
}

func (p HeadingIncludes) Matches(t *task.Task) bool {
	return containsFold(t.Heading, p.Text) != p.Negate
}

// DependencyKind selects which side of a dependency edge is inspected.
type DependencyKind int

const (
	// Blocked tasks wait on at least one other task.
	Blocked DependencyKind = iota
	// Blocking tasks are waited on by at least one other task.
	Blocking
)

// Dependency inspects DependsOn (Blocked) or BlockedBy (Blocking).
// Absent lists count as empty.
type Dependency struct {
	Kind   DependencyKind
	Negate bool
}

func (p Dependency) Matches(t *task.Task) bool {
	var has bool
	switch p.Kind {
	case Blocking:
		has = len(t.BlockedBy) > 0
	default:
		has = len(t.DependsOn) > 0
	}
	return has != p.Negate
}

// Recurring matches tasks that carry a non-trivial frequency.
type Recurring struct {
	Negate bool
}

func (p Recurring) Matches(t *task.Task) bool {
	return t.Frequency.IsRecurring() != p.Negate
}

// TextIncludes is a case-insensitive substring test on title and description.
type TextIncludes struct {
	Text   string
	Negate bool
}

func (p TextIncludes) Matches(t *task.Task) bool {
	return containsFold(t.Text(), p.Text) != p.Negate
}

// PathIncludes is a case-insensitive substring test on the slash-normalized
// path. A task without a path fails includes and satisfies does-not-include.
type PathIncludes struct {
	Text   string
	Negate bool
}

func (p PathIncludes) Matches(t *task.Task) bool {
	if !t.HasPath() {
		return p.Negate
	}
	return containsFold(t.SlashPath(), strings.ReplaceAll(p.Text, "\\", "/")) != p.Negate
}

// And matches when both operands match. Both are always evaluated.
type And struct {
	Left, Right Predicate
}

func (p And) Matches(t *task.Task) bool {
	l := p.Left.Matches(t)
	r := p.Right.Matches(t)
	return l && r
}

// Or matches when at least one operand matches. Both are always evaluated.
type Or struct {
	Left, Right Predicate
}

func (p Or) Matches(t *task.Task) bool {
	l := p.Left.Matches(t)
	r := p.Right.Matches(t)
	return l || r
}

// Not inverts its operand.
type Not struct {
	Inner Predicate
}

func (p Not) Matches(t *task.Task) bool {
	return !p.Inner.Matches(t)
}

// All AND-combines predicates left to right. No predicates yields True.
func All(preds ...Predicate) Predicate {
	if len(preds) == 0 {
		return True{}
	}
	combined := preds[0]
	for _, p := range preds[1:] {
		combined = And{Left: combined, Right: p}
	}
	return combined
}

func withHash(tag string) string {
	if strings.HasPrefix(tag, "#") {
		return tag
	}
	return "#" + tag
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
