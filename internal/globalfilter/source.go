package globalfilter

import (
	"context"

	"github.com/steveyegge/taskql/internal/task"
)

// TaskSource is anything that can list tasks.
type TaskSource interface {
	AllTasks(ctx context.Context) ([]*task.Task, error)
}

// FilteredSource serves only the tasks of Source that Filter accepts.
type FilteredSource struct {
	Source TaskSource
	Filter *Engine
}

// AllTasks lists the inner source and drops ineligible tasks.
func (s FilteredSource) AllTasks(ctx context.Context) ([]*task.Task, error) {
	tasks, err := s.Source.AllTasks(ctx)
	if err != nil {
		return nil, err
	}
	if s.Filter == nil {
		return tasks, nil
	}
	return s.Filter.FilterTasks(tasks), nil
}
