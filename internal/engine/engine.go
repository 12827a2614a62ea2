// Package engine executes parsed queries against a task collection.
//
// # Overview
//
// Execute runs a fixed pipeline over the tasks supplied by a Source:
//
//  1. compile the AST filters into one predicate (true when there are none)
//  2. filter, keeping the original relative order
//  3. stable sort by the sort key, reversed on request
//  4. record the filtered count
//  5. truncate to the limit
//  6. bucket the limited list by the group key
//  7. render an explanation when the query asks for one
//
// Evaluation never fails: predicates degrade to "no match". Execute only
// returns errors for a nil AST, a failing Source, or a cancelled context.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/steveyegge/taskql/internal/predicate"
	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/task"
)

// UrgencyFunc scores a task at a reference time; higher is more urgent.
type UrgencyFunc = predicate.UrgencyFunc

// Source supplies the full task collection for one execution.
type Source interface {
	AllTasks(ctx context.Context) ([]*task.Task, error)
}

// StaticSource serves a fixed slice of tasks.
type StaticSource []*task.Task

// AllTasks returns the slice itself; callers must not modify it.
func (s StaticSource) AllTasks(context.Context) ([]*task.Task, error) {
	return s, nil
}

// Config holds configuration for the engine.
type Config struct {
	// Urgency scores tasks for urgency filters and sorting. Nil scores
	// every task as 0.
	Urgency UrgencyFunc

	// Now returns the reference time for relative dates and urgency.
	Now func() time.Time

	// Logger for soft failures such as invalid regex patterns
	Logger *log.Logger
}

// DefaultConfig returns a config with the wall clock and a stderr logger.
func DefaultConfig() *Config {
	return &Config{
		Now:    time.Now,
		Logger: log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
}

// Result is the outcome of one execution.
type Result struct {
	// Tasks is the filtered, sorted, and limited list.
	Tasks []*task.Task `json:"tasks"`
	// Groups partitions Tasks when the query has a group directive.
	Groups []Group `json:"groups,omitempty"`
	// Explanation is set when the query has an explain directive.
	Explanation string `json:"explanation,omitempty"`
	// TotalCount is the number of tasks that passed the filters, before
	// the limit was applied.
	TotalCount int `json:"total_count"`
	// ExecutionTime covers compiling, filtering, sorting, limiting, and grouping.
	ExecutionTime time.Duration `json:"-"`
	// ExecutionTimeMs is ExecutionTime in milliseconds, for JSON output.
	ExecutionTimeMs float64 `json:"execution_time_ms"`
	// Cached is set by CachedRunner when the result came from its cache.
	Cached bool `json:"cached"`
}

// Engine executes queries. It is safe for concurrent use.
type Engine struct {
	config *Config

	warnedMu sync.Mutex
	warned   map[string]bool // regex patterns already reported as invalid
}

// New creates an engine with the default configuration and the given
// urgency scorer.
func New(urgency UrgencyFunc) *Engine {
	cfg := DefaultConfig()
	cfg.Urgency = urgency
	return NewWithConfig(cfg)
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	return &Engine{config: config, warned: make(map[string]bool)}
}

// Execute runs ast against the tasks of source.
func (e *Engine) Execute(ctx context.Context, ast *query.AST, source Source) (*Result, error) {
	if ast == nil {
		return nil, fmt.Errorf("cannot execute a nil query")
	}
	if source == nil {
		return nil, fmt.Errorf("cannot execute without a task source")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tasks, err := source.AllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return e.Run(ast, tasks), nil
}

// Run executes ast over an in-memory task list. tasks is not modified.
func (e *Engine) Run(ast *query.AST, tasks []*task.Task) *Result {
	start := time.Now()
	now := e.config.Now()

	c := &compiler{now: now, urgency: e.config.Urgency, onRegexError: e.warnRegex}
	pred := c.compileFilters(ast.Filters)

	selected := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if pred.Matches(t) {
			selected = append(selected, t)
		}
	}

	if ast.Sort != nil {
		sortTasks(selected, *ast.Sort, e.config.Urgency, now)
	}

	result := &Result{TotalCount: len(selected)}

	if ast.Limit != nil && *ast.Limit < len(selected) {
		selected = selected[:*ast.Limit]
	}
	result.Tasks = selected

	if ast.Group != nil {
		result.Groups = groupTasks(selected, ast.Group.Key)
	}

	result.ExecutionTime = time.Since(start)
	result.ExecutionTimeMs = float64(result.ExecutionTime.Microseconds()) / 1000
	observeExecution(ast, result)

	if ast.Explain {
		result.Explanation = ExplainAST(ast)
	}

	return result
}

func (e *Engine) warnRegex(pattern string, err error) {
	e.warnedMu.Lock()
	defer e.warnedMu.Unlock()

	if e.warned[pattern] {
		return
	}
	e.warned[pattern] = true
	e.config.Logger.Printf("WARNING: regex %s never matches: %v", pattern, err)
}
