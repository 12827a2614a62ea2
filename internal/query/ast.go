package query

import (
	"fmt"
	"strings"
)

// Node is a node of a filter tree. The set of implementations is closed:
// *Leaf, *And, *Or, and *Not. Trees are never modified after parsing.
type Node interface {
	// filterNode is a marker method that seals the interface.
	filterNode()
	// String returns the node in query syntax, fully parenthesized.
	String() string
}

// Kind is the filter category of a leaf.
type Kind int

const (
	KindDone Kind = iota
	KindStatus
	KindPriority
	KindDate
	KindTag
	KindHeading
	KindDependency
	KindRecurrence
	KindUrgency
	KindRegex
	KindPath
	KindDescription
)

var kindNames = map[Kind]string{
	KindDone:        "done",
	KindStatus:      "status",
	KindPriority:    "priority",
	KindDate:        "date",
	KindTag:         "tag",
	KindHeading:     "heading",
	KindDependency:  "dependency",
	KindRecurrence:  "recurrence",
	KindUrgency:     "urgency",
	KindRegex:       "regex",
	KindPath:        "path",
	KindDescription: "description",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Operator is the comparison a leaf applies to its value.
type Operator int

const (
	OpIs Operator = iota
	OpIsNot
	OpAbove
	OpBelow
	OpBefore
	OpAfter
	OpOn
	OpHas
	OpNo
	OpIncludes
	OpNotIncludes
	OpMatches
	OpNotMatches
)

var operatorNames = map[Operator]string{
	OpIs:          "is",
	OpIsNot:       "is not",
	OpAbove:       "above",
	OpBelow:       "below",
	OpBefore:      "before",
	OpAfter:       "after",
	OpOn:          "on",
	OpHas:         "has",
	OpNo:          "no",
	OpIncludes:    "includes",
	OpNotIncludes: "does not include",
	OpMatches:     "regex matches",
	OpNotMatches:  "regex does not match",
}

// String returns the query spelling of the operator.
func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operator(%d)", int(o))
}

// Leaf is a single filter condition.
type Leaf struct {
	Kind     Kind
	Operator Operator
	// Field is the date field (due, scheduled, start) for KindDate and the
	// regex target (description, heading, path, tags) for KindRegex.
	Field string
	// Value is the raw operand as written, without quotes.
	Value string
}

func (*Leaf) filterNode() {}

// String renders the leaf in canonical query syntax.
func (l *Leaf) String() string {
	switch l.Kind {
	case KindDone:
		return "done"
	case KindStatus:
		return "status.type " + l.Operator.String() + " " + l.Value
	case KindPriority:
		if l.Operator == OpIs {
			return "priority is " + l.Value
		}
		return "priority is " + l.Operator.String() + " " + l.Value
	case KindDate:
		switch l.Operator {
		case OpHas, OpNo:
			return l.Operator.String() + " " + l.Field + " date"
		default:
			return l.Field + " " + l.Operator.String() + " " + l.Value
		}
	case KindTag:
		switch l.Operator {
		case OpHas, OpNo:
			return l.Operator.String() + " tags"
		default:
			return "tags " + l.Operator.String() + " " + quoteIfNeeded(l.Value)
		}
	case KindDependency, KindRecurrence:
		return l.Operator.String() + " " + l.Value
	case KindUrgency:
		return "urgency " + l.Operator.String() + " " + l.Value
	case KindRegex:
		return l.Field + " " + l.Operator.String() + " " + l.Value
	case KindHeading, KindPath, KindDescription:
		return l.Kind.String() + " " + l.Operator.String() + " " + quoteIfNeeded(l.Value)
	default:
		return l.Kind.String() + " " + l.Operator.String() + " " + l.Value
	}
}

// And matches when both operands match.
type And struct {
	Left, Right Node
}

func (*And) filterNode() {}

func (a *And) String() string {
	return "(" + a.Left.String() + ") AND (" + a.Right.String() + ")"
}

// Or matches when at least one operand matches.
type Or struct {
	Left, Right Node
}

func (*Or) filterNode() {}

func (o *Or) String() string {
	return "(" + o.Left.String() + ") OR (" + o.Right.String() + ")"
}

// Not inverts its operand.
type Not struct {
	Inner Node
}

func (*Not) filterNode() {}

func (n *Not) String() string {
	return "NOT (" + n.Inner.String() + ")"
}

// SortSpec is a sort directive.
type SortSpec struct {
	Key     string
	Reverse bool
}

// GroupSpec is a group directive.
type GroupSpec struct {
	Key string
}

// AST is a parsed query. Filters holds one node per filter line; the
// engine ANDs them together.
type AST struct {
	Filters []Node
	Sort    *SortSpec
	Group   *GroupSpec
	Limit   *int
	Explain bool
	// Source is the query text the AST was parsed from.
	Source string
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t()\"'") || keywords[strings.ToLower(s)] != 0 {
		return fmt.Sprintf("%q", s)
	}
	return s
}
