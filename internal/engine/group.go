package engine

import (
	"time"

	"github.com/steveyegge/taskql/internal/task"
)

// Group is one bucket of a grouped result.
type Group struct {
	Key   string       `json:"key"`
	Tasks []*task.Task `json:"tasks"`
}

// groupTasks buckets tasks by key in first-seen order. A task with several
// tags lands in every tag's bucket; tasks keep their relative order inside
// each bucket.
func groupTasks(tasks []*task.Task, key string) []Group {
	var groups []Group
	index := make(map[string]int)

	add := func(k string, t *task.Task) {
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}

	for _, t := range tasks {
		for _, k := range groupKeys(t, key) {
			add(k, t)
		}
	}
	return groups
}

func groupKeys(t *task.Task, key string) []string {
	switch key {
	case "priority":
		return []string{t.PriorityRank().String()}
	case "status":
		return []string{t.StatusType().String()}
	case "heading":
		return []string{orNone(t.Heading, "(no heading)")}
	case "path":
		return []string{orNone(t.SlashPath(), "(no path)")}
	case "folder":
		return []string{orNone(t.Folder(), "(no path)")}
	case "filename":
		return []string{orNone(t.FileName(), "(no path)")}
	case "due", "scheduled", "start":
		d := t.Date(task.DateField(key))
		if d == nil {
			return []string{"(no " + key + " date)"}
		}
		return []string{d.Format(time.DateOnly)}
	case "tags":
		if len(t.Tags) == 0 {
			return []string{"(no tags)"}
		}
		keys := make([]string, 0, len(t.Tags))
		seen := make(map[string]bool, len(t.Tags))
		for _, tag := range t.Tags {
			if !seen[tag] {
				seen[tag] = true
				keys = append(keys, tag)
			}
		}
		return keys
	case "recurring":
		if t.Frequency.IsRecurring() {
			return []string{"recurring"}
		}
		return []string{"not recurring"}
	default:
		panic("engine: unknown group key " + key)
	}
}

func orNone(s, none string) string {
	if s == "" {
		return none
	}
	return s
}
