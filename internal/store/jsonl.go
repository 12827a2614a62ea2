package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"

	"github.com/steveyegge/taskql/internal/task"
)

// JSONLSource reads tasks from a file holding one JSON task per line.
type JSONLSource struct {
	Path string
}

// AllTasks reads and validates every task in the file. Blank lines are
// ignored. A missing file yields no tasks.
func (s JSONLSource) AllTasks(ctx context.Context) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*task.Task{}, nil
		}
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer f.Close()

	return ReadJSONL(f)
}

// ReadJSONL decodes one task per line from r.
func ReadJSONL(r io.Reader) ([]*task.Task, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var tasks []*task.Task
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var t task.Task
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("invalid task at line %d: %w", lineNum, err)
		}
		tasks = append(tasks, &t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}

	if tasks == nil {
		tasks = []*task.Task{}
	}
	return tasks, nil
}

// WriteJSONL replaces path with tasks, one per line.
func WriteJSONL(path string, tasks []*task.Task) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range tasks {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", t.ID, err)
		}
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write JSONL file %s: %w", path, err)
	}
	return nil
}
