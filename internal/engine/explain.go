package engine

import (
	"fmt"
	"strings"

	"github.com/steveyegge/taskql/internal/query"
)

// ExplainAST describes the plan of ast without executing it. The text has
// one section per stage, labelled "Filters:", "Sort:", "Group:", and
// "Limit:"; a stage the query does not use reads "None". Filter trees are
// printed one node per line, children indented under their operator.
func ExplainAST(ast *query.AST) string {
	var sb strings.Builder

	sb.WriteString("Filters:\n")
	switch len(ast.Filters) {
	case 0:
		sb.WriteString("  None\n")
	case 1:
		writeNode(&sb, ast.Filters[0], 1)
	default:
		sb.WriteString("  AND (all lines)\n")
		for _, n := range ast.Filters {
			writeNode(&sb, n, 2)
		}
	}

	sb.WriteString("\nSort:\n")
	if ast.Sort == nil {
		sb.WriteString("  None\n")
	} else {
		dir := "ascending"
		if ast.Sort.Reverse {
			dir = "descending"
		}
		fmt.Fprintf(&sb, "  %s (%s)\n", ast.Sort.Key, dir)
	}

	sb.WriteString("\nGroup:\n")
	if ast.Group == nil {
		sb.WriteString("  None\n")
	} else {
		fmt.Fprintf(&sb, "  %s\n", ast.Group.Key)
	}

	sb.WriteString("\nLimit:\n")
	if ast.Limit == nil {
		sb.WriteString("  None\n")
	} else {
		fmt.Fprintf(&sb, "  %d\n", *ast.Limit)
	}

	return sb.String()
}

func writeNode(sb *strings.Builder, node query.Node, depth int) {
	indent := strings.Repeat("  ", depth)

	switch n := node.(type) {
	case *query.And:
		sb.WriteString(indent + "AND\n")
		writeNode(sb, n.Left, depth+1)
		writeNode(sb, n.Right, depth+1)
	case *query.Or:
		sb.WriteString(indent + "OR\n")
		writeNode(sb, n.Left, depth+1)
		writeNode(sb, n.Right, depth+1)
	case *query.Not:
		sb.WriteString(indent + "NOT\n")
		writeNode(sb, n.Inner, depth+1)
	case *query.Leaf:
		sb.WriteString(indent + n.String() + "\n")
	default:
		panic(fmt.Sprintf("engine: unknown filter node %T", node))
	}
}
