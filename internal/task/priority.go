package task

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority is an ordinal rank; a larger value is more important.
type Priority int

const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
)

var priorityNames = map[Priority]string{
	PriorityLowest:  "lowest",
	PriorityLow:     "low",
	PriorityNormal:  "normal",
	PriorityHigh:    "high",
	PriorityHighest: "highest",
}

// priorityAliases maps every accepted spelling, including synonyms,
// to its rank. "medium" and "normal" share a rank, as do "urgent" and "highest".
var priorityAliases = map[string]Priority{
	"lowest":  PriorityLowest,
	"low":     PriorityLow,
	"normal":  PriorityNormal,
	"medium":  PriorityNormal,
	"none":    PriorityNormal,
	"high":    PriorityHigh,
	"highest": PriorityHighest,
	"urgent":  PriorityHighest,
}

// ParsePriority parses a priority name case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p, ok := priorityAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown priority %q (expected lowest, low, normal, medium, high, highest, or urgent)", s)
	}
	return p, nil
}

// IsValid reports whether p is one of the five ranks.
func (p Priority) IsValid() bool {
	return p >= PriorityLowest && p <= PriorityHighest
}

// String returns the canonical name of the rank.
func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Ptr returns a pointer to a copy of p, convenient for building tasks.
func (p Priority) Ptr() *Priority {
	return &p
}

// MarshalJSON encodes the priority by name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either a name ("high") or a rank number (3).
func (p *Priority) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParsePriority(name)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}

	var rank int
	if err := json.Unmarshal(data, &rank); err != nil {
		return fmt.Errorf("priority must be a name or a number: %w", err)
	}
	if !Priority(rank).IsValid() {
		return fmt.Errorf("priority must be between %d and %d (got %d)", PriorityLowest, PriorityHighest, rank)
	}
	*p = Priority(rank)
	return nil
}
