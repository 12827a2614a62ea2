// Package store provides the task sources the query engine reads from.
//
// Three sources share the AllTasks(ctx) shape:
//   - DirSource: a directory of {id}.json task files (the source of truth)
//   - JSONLSource: a single file with one JSON task per line
//   - SQLite: an embedded SQLite index kept current by Syncer
//
// Workflow:
//  1. Task files are edited in the tasks directory
//  2. Syncer upserts changed files into the SQLite index
//  3. Queries read from whichever source the configuration names
package store

import (
	"context"
	"errors"
	"log"

	"github.com/steveyegge/taskql/internal/task"
)

// ErrNotFound is returned when a task does not exist in the index.
var ErrNotFound = errors.New("task not found")

// DirSource reads task files from Dir on every call.
type DirSource struct {
	Dir    string
	Logger *log.Logger // receives skipped-file warnings; may be nil
}

// AllTasks reads every valid *.json task in Dir, sorted by filename.
// A missing directory yields no tasks.
func (s DirSource) AllTasks(ctx context.Context) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return task.ReadDir(s.Dir, s.Logger)
}
