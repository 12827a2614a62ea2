// Command tq queries task collections with the taskql query language.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskql/internal/config"
	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/ui"
)

var (
	// Version is set at build time with -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = ""

	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tq",
	Short: "Query tasks with a small line-oriented query language",
	Long: `tq filters, sorts, groups, and explains task collections.

A query has one instruction per line:

  not done
  due before tomorrow
  (tags include #work) OR (path includes daily/)
  sort by priority
  group by status
  limit 10
  explain

Tasks are read from a directory of JSON files, a JSONL file, or a SQLite
index (see "tq sync"). A global filter profile can hide tasks from every
query.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.Options{File: configFile, Flags: cmd.Flags()})
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "query", Title: "Querying:"},
		&cobra.Group{ID: "filter", Title: "Global filter:"},
		&cobra.Group{ID: "index", Title: "Index:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: taskql.{toml,yaml,json} in . or ~/.config/taskql)")
	flags.String("source", config.SourceDir, "task source: dir, jsonl, or sqlite")
	flags.String("tasks-dir", "tasks", "directory of {id}.json task files")
	flags.String("jsonl-path", "tasks.jsonl", "JSONL task file")
	flags.String("db-path", ".taskql/tasks.db", "SQLite index path")
	flags.String("profile-path", "", "global filter profile file (.toml, .yaml, .json)")
	flags.String("profile", "", "global filter profile name (default: the file's active profile)")
	flags.String("color", "auto", "color output: auto, always, or never")
	flags.String("log-file", "", "write diagnostics to a rotating log file instead of stderr")
	flags.Int("cache-capacity", 64, "maximum cached query results")
	flags.Duration("cache-ttl", 30*time.Second, "cached result lifetime")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		report(err)
		cancel()
		os.Exit(1)
	}
}

// report prints err to stderr, with a caret diagnostic for parse errors.
func report(err error) {
	color := "auto"
	if cfg != nil {
		color = cfg.Color
	}
	r := ui.NewRenderer(os.Stderr, color)

	var pe *query.ParseError
	if errors.As(err, &pe) {
		r.ParseError(pe)
		return
	}
	r.Error(err)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
