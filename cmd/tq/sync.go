package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskql/internal/logging"
	"github.com/steveyegge/taskql/internal/store"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "index",
	Short:   "Full sync from task files to the SQLite index",
	Long: `Sync all task files to the SQLite index used by --source sqlite.

This performs a full sync:
  1. Reads all tasks/*.json files
  2. Upserts them into the index (--db-path)
  3. Deletes indexed tasks whose files are gone

With --export-jsonl, the task files are also written to a JSONL file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		a := &app{cfg: cfg, sink: logging.NewSink(cfg.Log)}
		defer a.sink.Close()

		fmt.Printf("Syncing from %s...\n", cfg.TasksDir)
		start := time.Now()

		stats, err := store.NewSyncer(db, cfg.TasksDir, a.logger("sync")).FullSync(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		count, err := db.TaskCount(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Synced: %d (failed: %d, deleted: %d)\n", stats.Synced, stats.Failed, stats.Deleted)
		fmt.Printf("   Tasks: %d\n", count)
		fmt.Printf("   Index: %s\n", db.Path())

		if out, _ := cmd.Flags().GetString("export-jsonl"); out != "" {
			tasks, err := db.AllTasks(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.WriteJSONL(out, tasks); err != nil {
				return err
			}
			fmt.Printf("   Exported: %s\n", out)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().String("export-jsonl", "", "also write all tasks to this JSONL file")
	rootCmd.AddCommand(syncCmd)
}

// syncChanged applies watched task file changes to the index.
func syncChanged(ctx context.Context, a *app, paths []string) error {
	dir, err := filepath.Abs(a.cfg.TasksDir)
	if err != nil {
		return err
	}
	s := store.NewSyncer(a.db, a.cfg.TasksDir, a.logger("sync"))

	var errs []error
	for _, p := range paths {
		if filepath.Dir(p) != dir {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			errs = append(errs, s.HandleRemove(ctx, p))
			continue
		}
		errs = append(errs, s.SyncFile(ctx, p))
	}
	return errors.Join(errs...)
}
