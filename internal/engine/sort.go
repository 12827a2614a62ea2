package engine

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/task"
)

// statusOrder puts actionable work first.
var statusOrder = map[task.StatusType]int{
	task.StatusInProgress: 0,
	task.StatusTodo:       1,
	task.StatusDone:       2,
	task.StatusCancelled:  3,
}

// sortTasks stably sorts tasks in place. Ascending order is the natural
// reading order of each key: earliest date, most important priority, most
// urgent score, alphabetical text. Tasks missing the key sort last in both
// directions; reverse only flips the order of tasks that have it.
func sortTasks(tasks []*task.Task, spec query.SortSpec, urgency UrgencyFunc, now time.Time) {
	var compare func(a, b *task.Task) int
	var missing func(t *task.Task) bool

	switch spec.Key {
	case "due", "scheduled", "start":
		field := task.DateField(spec.Key)
		missing = func(t *task.Task) bool { return t.Date(field) == nil }
		compare = func(a, b *task.Task) int { return a.Date(field).Compare(*b.Date(field)) }
	case "priority":
		compare = func(a, b *task.Task) int { return cmp.Compare(b.PriorityRank(), a.PriorityRank()) }
	case "urgency":
		scores := make(map[*task.Task]float64, len(tasks))
		for _, t := range tasks {
			if urgency != nil {
				scores[t] = urgency(t, now)
			}
		}
		compare = func(a, b *task.Task) int { return cmp.Compare(scores[b], scores[a]) }
	case "heading":
		missing = func(t *task.Task) bool { return t.Heading == "" }
		compare = func(a, b *task.Task) int { return compareFold(a.Heading, b.Heading) }
	case "description":
		compare = func(a, b *task.Task) int { return compareFold(a.Text(), b.Text()) }
	case "status":
		compare = func(a, b *task.Task) int {
			return cmp.Compare(statusOrder[a.StatusType()], statusOrder[b.StatusType()])
		}
	case "path":
		missing = func(t *task.Task) bool { return !t.HasPath() }
		compare = func(a, b *task.Task) int { return strings.Compare(a.SlashPath(), b.SlashPath()) }
	case "id":
		compare = func(a, b *task.Task) int { return strings.Compare(a.ID, b.ID) }
	default:
		panic("engine: unknown sort key " + spec.Key)
	}

	slices.SortStableFunc(tasks, func(a, b *task.Task) int {
		if missing != nil {
			ma, mb := missing(a), missing(b)
			switch {
			case ma && mb:
				return 0
			case ma:
				return 1
			case mb:
				return -1
			}
		}
		if spec.Reverse {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
