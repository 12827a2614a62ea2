package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/taskql/internal/task"
)

// SyncStats summarizes a full sync.
type SyncStats struct {
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Deleted int `json:"deleted"`
}

// Syncer keeps the SQLite index in step with a tasks directory.
//
// Individual file failures are logged and counted; they never stop a
// full sync.
type Syncer struct {
	db     *SQLite
	dir    string
	logger *log.Logger
}

// NewSyncer creates a syncer from dir into db. If logger is nil, a
// default logger writing to stderr is used.
func NewSyncer(db *SQLite, dir string, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Syncer{db: db, dir: dir, logger: logger}
}

// SyncFile reads one task file and upserts it.
func (s *Syncer) SyncFile(ctx context.Context, path string) error {
	t, err := task.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read task file: %w", err)
	}

	if err := s.db.UpsertTask(ctx, t); err != nil {
		return fmt.Errorf("failed to sync task to database: %w", err)
	}

	s.logger.Printf("Synced task: %s (%s)", t.ID, t.Title)
	return nil
}

// HandleRemove drops the task whose file at path was removed.
func (s *Syncer) HandleRemove(ctx context.Context, path string) error {
	id := strings.TrimSuffix(filepath.Base(path), ".json")
	if err := s.db.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.Printf("Deleted task: %s", id)
	return nil
}

// FullSync upserts every task file in the directory and deletes indexed
// tasks whose files are gone.
func (s *Syncer) FullSync(ctx context.Context) (SyncStats, error) {
	var stats SyncStats
	s.logger.Printf("Starting full sync from %s", s.dir)

	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return stats, fmt.Errorf("failed to read tasks directory: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		// A file that fails to parse still counts as present, so its last
		// good version stays indexed.
		seen[strings.TrimSuffix(entry.Name(), ".json")] = true

		if err := s.SyncFile(ctx, filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Printf("WARNING: Failed to sync task %s: %v", entry.Name(), err)
			stats.Failed++
			continue
		}
		stats.Synced++
	}

	ids, err := s.db.TaskIDs(ctx)
	if err != nil {
		return stats, err
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if err := s.db.DeleteTask(ctx, id); err != nil {
			return stats, err
		}
		stats.Deleted++
	}

	s.logger.Printf("Full sync complete: synced=%d failed=%d deleted=%d", stats.Synced, stats.Failed, stats.Deleted)
	return stats, nil
}
