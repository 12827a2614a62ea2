package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Filename returns the canonical filename for this task: {id}.json
func (t *Task) Filename() string {
	return fmt.Sprintf("%s.json", t.ID)
}

// ReadFile reads and parses a task JSON file from the given path.
func ReadFile(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file %s: %w", path, err)
	}

	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task file %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task file %s: %w", path, err)
	}

	return &t, nil
}

// WriteFile writes a Task to dir/{id}.json as pretty-printed JSON. The file
// is replaced atomically so watchers never observe a partial write.
func WriteFile(dir string, t *Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid task: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create tasks directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", t.ID, err)
	}

	path := filepath.Join(dir, t.Filename())
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write task file %s: %w", path, err)
	}

	return nil
}

// ReadDir reads all *.json task files from dir, sorted by filename.
// Invalid files are skipped and reported to logger (when non-nil).
// A missing directory yields an empty slice.
func ReadDir(dir string, logger *log.Logger) ([]*Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Task{}, nil
		}
		return nil, fmt.Errorf("failed to read tasks directory: %w", err)
	}

	tasks := make([]*Task, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		t, err := ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			if logger != nil {
				logger.Printf("WARNING: skipping invalid task file %s: %v", entry.Name(), err)
			}
			continue
		}

		tasks = append(tasks, t)
	}

	return tasks, nil
}
