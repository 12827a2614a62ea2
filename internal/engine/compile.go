package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/steveyegge/taskql/internal/predicate"
	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/task"
)

// compiler turns filter trees into predicates. Leaf values were validated
// by the parser, so a value that fails to convert here means the tree was
// built by hand incorrectly; that is a programming error and panics.
type compiler struct {
	now          time.Time
	urgency      UrgencyFunc
	onRegexError func(pattern string, err error)
}

func (c *compiler) compileFilters(nodes []query.Node) predicate.Predicate {
	preds := make([]predicate.Predicate, 0, len(nodes))
	for _, n := range nodes {
		preds = append(preds, c.compile(n))
	}
	return predicate.All(preds...)
}

func (c *compiler) compile(node query.Node) predicate.Predicate {
	switch n := node.(type) {
	case *query.And:
		return predicate.And{Left: c.compile(n.Left), Right: c.compile(n.Right)}
	case *query.Or:
		return predicate.Or{Left: c.compile(n.Left), Right: c.compile(n.Right)}
	case *query.Not:
		return predicate.Not{Inner: c.compile(n.Inner)}
	case *query.Leaf:
		return c.compileLeaf(n)
	case nil:
		panic("engine: nil filter node")
	default:
		panic(fmt.Sprintf("engine: unknown filter node %T", node))
	}
}

func (c *compiler) compileLeaf(l *query.Leaf) predicate.Predicate {
	negate := l.Operator == query.OpIsNot || l.Operator == query.OpNotIncludes || l.Operator == query.OpNotMatches

	switch l.Kind {
	case query.KindDone:
		return predicate.Done{}

	case query.KindStatus:
		st, err := task.ParseStatusType(l.Value)
		mustCompile(l, err)
		return predicate.StatusIs{Type: st, Negate: negate}

	case query.KindPriority:
		rank, err := task.ParsePriority(l.Value)
		mustCompile(l, err)
		return predicate.PriorityIs{Op: compareOf(l), Rank: rank}

	case query.KindDate:
		field, ok := task.ParseDateField(l.Field)
		if !ok {
			mustCompile(l, fmt.Errorf("unknown date field %q", l.Field))
		}
		switch l.Operator {
		case query.OpHas:
			return predicate.DateCompare{Field: field, Op: predicate.DateHas}
		case query.OpNo:
			return predicate.DateCompare{Field: field, Op: predicate.DateNone}
		}
		value, err := predicate.ParseDateValue(l.Value)
		mustCompile(l, err)
		return predicate.DateCompare{Field: field, Op: dateOpOf(l), Day: value.Resolve(c.now)}

	case query.KindTag:
		switch l.Operator {
		case query.OpHas:
			return predicate.HasTags{Want: true}
		case query.OpNo:
			return predicate.HasTags{Want: false}
		}
		return predicate.TagIncludes{Tag: l.Value, Negate: negate}

	case query.KindHeading:
		return predicate.HeadingIncludes{Text: l.Value, Negate: negate}

	case query.KindDependency:
		kind := predicate.Blocked
		if l.Value == "blocking" {
			kind = predicate.Blocking
		}
		return predicate.Dependency{Kind: kind, Negate: negate}

	case query.KindRecurrence:
		return predicate.Recurring{Negate: negate}

	case query.KindUrgency:
		threshold, err := strconv.ParseFloat(l.Value, 64)
		mustCompile(l, err)
		return predicate.Urgency{Op: compareOf(l), Threshold: threshold, Score: c.urgency, Now: c.now}

	case query.KindRegex:
		target, ok := predicate.ParseRegexTarget(l.Field)
		if !ok {
			mustCompile(l, fmt.Errorf("unknown regex target %q", l.Field))
		}
		re := predicate.NewRegex(target, l.Value, negate)
		if err := re.Err(); err != nil && c.onRegexError != nil {
			c.onRegexError(l.Value, err)
		}
		return re

	case query.KindPath:
		return predicate.PathIncludes{Text: l.Value, Negate: negate}

	case query.KindDescription:
		return predicate.TextIncludes{Text: l.Value, Negate: negate}

	default:
		panic(fmt.Sprintf("engine: unknown filter kind %v", l.Kind))
	}
}

func compareOf(l *query.Leaf) predicate.Compare {
	switch l.Operator {
	case query.OpAbove:
		return predicate.Above
	case query.OpBelow:
		return predicate.Below
	default:
		return predicate.Equal
	}
}

func dateOpOf(l *query.Leaf) predicate.DateOp {
	switch l.Operator {
	case query.OpBefore:
		return predicate.DateBefore
	case query.OpAfter:
		return predicate.DateAfter
	default:
		return predicate.DateOn
	}
}

func mustCompile(l *query.Leaf, err error) {
	if err != nil {
		panic(fmt.Sprintf("engine: malformed filter %q: %v", l.String(), err))
	}
}
