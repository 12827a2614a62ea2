package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/steveyegge/taskql/internal/cache"
	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/task"
)

// CachedRunner parses and executes query text, serving repeated runs over
// an unchanged task collection from a cache.
//
// Cached results are shared between callers and must be treated as
// read-only.
type CachedRunner struct {
	engine *Engine
	cache  *cache.Cache[*Result]
	now    func() time.Time
}

// NewCachedRunner wraps engine with c.
func NewCachedRunner(engine *Engine, c *cache.Cache[*Result]) *CachedRunner {
	return &CachedRunner{engine: engine, cache: c, now: engine.config.Now}
}

// Cache returns the underlying cache, for metrics.
func (r *CachedRunner) Cache() *cache.Cache[*Result] {
	return r.cache
}

// Run parses text and executes it against source. Parse errors are
// returned as *query.ParseError and never cached.
func (r *CachedRunner) Run(ctx context.Context, text string, source Source) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tasks, err := source.AllTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	hash, err := ContextHash(tasks, r.now())
	if err != nil {
		return nil, err
	}
	key := cache.BuildKey(text, hash)

	if entry, ok := r.cache.Get(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		res := *entry.Value
		res.Cached = true
		return &res, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	ast, err := query.Parse(text)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := r.engine.Run(ast, tasks)
	r.cache.Set(key, res)
	return res, nil
}

// ContextHash fingerprints the inputs a query result depends on besides
// its text: the task collection and the reference day used to resolve
// relative dates.
func ContextHash(tasks []*task.Task, now time.Time) (string, error) {
	ctx := struct {
		Tasks []*task.Task
		Day   string
	}{Tasks: tasks, Day: now.Format(time.DateOnly)}

	h, err := hashstructure.Hash(ctx, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash task collection: %w", err)
	}
	return strconv.FormatUint(h, 16), nil
}
