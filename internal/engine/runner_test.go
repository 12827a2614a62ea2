package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/steveyegge/taskql/internal/cache"
	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/task"
)

func TestCachedRunner(t *testing.T) {
	e, _ := newTestEngine(t)
	c := cache.New[*Result](cache.Config{Name: "test", Capacity: 4, TTL: time.Minute})
	r := NewCachedRunner(e, c)
	ctx := context.Background()
	tasks := StaticSource(sampleTasks())

	first, err := r.Run(ctx, "not done", tasks)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("first run should not be cached")
	}

	second, err := r.Run(ctx, "not done", tasks)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Error("second run should come from the cache")
	}
	if len(second.Tasks) != len(first.Tasks) {
		t.Errorf("cached result has %d tasks, want %d", len(second.Tasks), len(first.Tasks))
	}
	if first.Cached {
		t.Error("marking a hit must not modify the stored result")
	}

	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 1 {
		t.Errorf("metrics = %+v, want 1 hit and 1 miss", m)
	}
}

func TestCachedRunnerMissesWhenTasksChange(t *testing.T) {
	e, _ := newTestEngine(t)
	r := NewCachedRunner(e, cache.New[*Result](cache.Config{Capacity: 4}))
	ctx := context.Background()

	tasks := sampleTasks()
	if _, err := r.Run(ctx, "done", StaticSource(tasks)); err != nil {
		t.Fatal(err)
	}

	changed := sampleTasks()
	changed[0].Status = "x"
	res, err := r.Run(ctx, "done", StaticSource(changed))
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached {
		t.Error("a changed task collection must not hit the cache")
	}
	if len(res.Tasks) != 3 {
		t.Errorf("got %d done tasks, want 3", len(res.Tasks))
	}
}

func TestCachedRunnerParseError(t *testing.T) {
	e, _ := newTestEngine(t)
	c := cache.New[*Result](cache.Config{Capacity: 4})
	r := NewCachedRunner(e, c)

	_, err := r.Run(context.Background(), "priority is enormous", StaticSource(sampleTasks()))
	var perr *query.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Run() error = %v, want *query.ParseError", err)
	}
	if c.Len() != 0 {
		t.Errorf("parse errors must not be cached, Len() = %d", c.Len())
	}
}

func TestContextHash(t *testing.T) {
	day1 := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

	a, err := ContextHash(sampleTasks(), day1)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := ContextHash(sampleTasks(), day1.Add(3*time.Hour))
	if a != b {
		t.Error("hash should only depend on the reference day, not the time of day")
	}

	c, _ := ContextHash(sampleTasks(), day1.AddDate(0, 0, 1))
	if a == c {
		t.Error("hash should change with the reference day")
	}

	changed := sampleTasks()
	changed[2].Tags = append(changed[2].Tags, "#new")
	d, _ := ContextHash(changed, day1)
	if a == d {
		t.Error("hash should change when a task changes")
	}

	empty, err := ContextHash([]*task.Task{}, day1)
	if err != nil || empty == "" {
		t.Errorf("ContextHash(empty) = %q, %v", empty, err)
	}
}
