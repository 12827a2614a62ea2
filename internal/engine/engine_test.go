package engine

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/task"
)

var refTime = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func newTestEngine(t *testing.T) (*Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	e := NewWithConfig(&Config{
		Now:    func() time.Time { return refTime },
		Logger: log.New(&buf, "[engine] ", 0),
	})
	return e, &buf
}

func run(t *testing.T, e *Engine, q string, tasks []*task.Task) *Result {
	t.Helper()
	ast, err := query.Parse(q)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", q, err)
	}
	res, err := e.Execute(context.Background(), ast, StaticSource(tasks))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return res
}

func ids(tasks []*task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func sampleTasks() []*task.Task {
	return []*task.Task{
		{ID: "t1", Title: "Write report", Status: " ", Priority: task.PriorityHigh.Ptr(), DueAt: date(2024, 1, 12), Tags: []string{"#work"}, Heading: "Today", Path: "daily/2024-01-10.md"},
		{ID: "t2", Title: "Buy milk", Status: "x", Priority: task.PriorityLow.Ptr(), Tags: []string{"#home"}, Path: "daily/2024-01-09.md"},
		{ID: "t3", Title: "Plan trip", Status: "/", DueAt: date(2024, 1, 8), Tags: []string{"#home", "#travel"}, Heading: "Later", DependsOn: []string{"t1"}},
		{ID: "t4", Title: "Call mom", Description: "about the weekend", Status: " ", Priority: task.PriorityHighest.Ptr(), Frequency: &task.Frequency{Every: "week"}, Path: "notes/family.md"},
		{ID: "t5", Title: "Old idea", Status: "-", Priority: task.PriorityLowest.Ptr(), BlockedBy: []string{"t6"}},
	}
}

func TestDailyExample(t *testing.T) {
	e, _ := newTestEngine(t)
	tasks := []*task.Task{
		{ID: "high-done", Status: "x", Priority: task.PriorityHigh.Ptr()},
		{ID: "medium-todo", Status: " ", Priority: task.PriorityNormal.Ptr()},
	}

	res := run(t, e, "priority is high OR priority is medium AND not done", tasks)

	if diff := cmp.Diff([]string{"high-done", "medium-todo"}, ids(res.Tasks)); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestFilters(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"t1", "t2", "t3", "t4", "t5"}},
		{"done", []string{"t2", "t5"}},
		{"not done", []string{"t1", "t3", "t4"}},
		{"status.type is in_progress", []string{"t3"}},
		{"priority is above normal", []string{"t1", "t4"}},
		{"priority is normal", []string{"t3"}},
		{"due before today", []string{"t3"}},
		{"due after 2024-01-11", []string{"t1"}},
		{"no due date", []string{"t2", "t4", "t5"}},
		{"tags include home", []string{"t2", "t3"}},
		{"tags do not include #home", []string{"t1", "t4", "t5"}},
		{"no tags", []string{"t4", "t5"}},
		{"heading includes today", []string{"t1"}},
		{"is blocked", []string{"t3"}},
		{"is blocking", []string{"t5"}},
		{"is recurring", []string{"t4"}},
		{"description includes WEEKEND", []string{"t4"}},
		{"path includes daily/", []string{"t1", "t2"}},
		{"path does not include daily", []string{"t3", "t4", "t5"}},
		{"regex matches /^(buy|call)/i", []string{"t2", "t4"}},
		{"path regex matches /\\.md$/", []string{"t1", "t2", "t4"}},
		{"not done\ntags include home", []string{"t3"}},
		{"(done OR is blocked) AND tags include home", []string{"t2", "t3"}},
	}

	e, _ := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := run(t, e, tt.query, sampleTasks())
			if diff := cmp.Diff(tt.want, ids(res.Tasks), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("tasks mismatch (-want +got):\n%s", diff)
			}
			if res.TotalCount != len(tt.want) {
				t.Errorf("TotalCount = %d, want %d", res.TotalCount, len(tt.want))
			}
		})
	}
}

func TestInvalidRegexMatchesNothingAndLogsOnce(t *testing.T) {
	e, logs := newTestEngine(t)

	for _, q := range []string{"regex matches /[oops/", "regex does not match /[oops/"} {
		res := run(t, e, q, sampleTasks())
		if len(res.Tasks) != 0 {
			t.Errorf("%q selected %v, want none", q, ids(res.Tasks))
		}
	}
	run(t, e, "regex matches /[oops/", sampleTasks())

	if got := strings.Count(logs.String(), "never matches"); got != 1 {
		t.Errorf("logged %d warnings, want 1:\n%s", got, logs.String())
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"sort by due", []string{"t3", "t1", "t2", "t4", "t5"}},
		{"sort by due reverse", []string{"t1", "t3", "t2", "t4", "t5"}},
		{"sort by priority", []string{"t4", "t1", "t3", "t2", "t5"}},
		{"sort by priority reverse", []string{"t5", "t2", "t3", "t1", "t4"}},
		{"sort by status", []string{"t3", "t1", "t4", "t2", "t5"}},
		{"sort by heading", []string{"t3", "t1", "t2", "t4", "t5"}},
		{"sort by path", []string{"t2", "t1", "t4", "t3", "t5"}},
		{"sort by description", []string{"t2", "t4", "t5", "t3", "t1"}},
		{"sort by id reverse", []string{"t5", "t4", "t3", "t2", "t1"}},
	}

	e, _ := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := run(t, e, tt.query, sampleTasks())
			if diff := cmp.Diff(tt.want, ids(res.Tasks)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSortIsStable(t *testing.T) {
	e, _ := newTestEngine(t)
	tasks := []*task.Task{
		{ID: "a", Priority: task.PriorityHigh.Ptr()},
		{ID: "b"},
		{ID: "c", Priority: task.PriorityHigh.Ptr()},
		{ID: "d"},
		{ID: "e", Priority: task.PriorityHigh.Ptr()},
	}

	res := run(t, e, "sort by priority", tasks)
	if diff := cmp.Diff([]string{"a", "c", "e", "b", "d"}, ids(res.Tasks)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	res = run(t, e, "sort by priority reverse", tasks)
	if diff := cmp.Diff([]string{"b", "d", "a", "c", "e"}, ids(res.Tasks)); diff != "" {
		t.Errorf("reverse order mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, ids(tasks)); diff != "" {
		t.Errorf("input was reordered (-want +got):\n%s", diff)
	}
}

func TestSortByUrgency(t *testing.T) {
	scores := map[string]float64{"a": 1, "b": 7, "c": 3}
	e := NewWithConfig(&Config{
		Now:     func() time.Time { return refTime },
		Urgency: func(t *task.Task, _ time.Time) float64 { return scores[t.ID] },
	})
	tasks := []*task.Task{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	res := run(t, e, "sort by urgency", tasks)
	if diff := cmp.Diff([]string{"b", "c", "a"}, ids(res.Tasks)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	res = run(t, e, "urgency above 2", tasks)
	if diff := cmp.Diff([]string{"b", "c"}, ids(res.Tasks)); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupByPriority(t *testing.T) {
	e, _ := newTestEngine(t)
	tasks := []*task.Task{
		{ID: "low", Priority: task.PriorityLow.Ptr()},
		{ID: "normal", Priority: task.PriorityNormal.Ptr()},
		{ID: "high", Priority: task.PriorityHigh.Ptr()},
		{ID: "highest", Priority: task.PriorityHighest.Ptr()},
	}

	res := run(t, e, "group by priority", tasks)

	want := []Group{
		{Key: "low", Tasks: []*task.Task{tasks[0]}},
		{Key: "normal", Tasks: []*task.Task{tasks[1]}},
		{Key: "high", Tasks: []*task.Task{tasks[2]}},
		{Key: "highest", Tasks: []*task.Task{tasks[3]}},
	}
	if diff := cmp.Diff(want, res.Groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func groupSummary(groups []Group) map[string][]string {
	out := make(map[string][]string, len(groups))
	for _, g := range groups {
		out[g.Key] = ids(g.Tasks)
	}
	return out
}

func groupOrder(groups []Group) []string {
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	return keys
}

func TestGroupKeys(t *testing.T) {
	tests := []struct {
		query string
		order []string
		want  map[string][]string
	}{
		{
			query: "group by tags",
			order: []string{"#work", "#home", "#travel", "(no tags)"},
			want: map[string][]string{
				"#work": {"t1"}, "#home": {"t2", "t3"}, "#travel": {"t3"}, "(no tags)": {"t4", "t5"},
			},
		},
		{
			query: "group by folder",
			order: []string{"daily/", "(no path)", "notes/"},
			want: map[string][]string{
				"daily/": {"t1", "t2"}, "(no path)": {"t3", "t5"}, "notes/": {"t4"},
			},
		},
		{
			query: "group by status",
			order: []string{"TODO", "DONE", "IN_PROGRESS", "CANCELLED"},
			want: map[string][]string{
				"TODO": {"t1", "t4"}, "DONE": {"t2"}, "IN_PROGRESS": {"t3"}, "CANCELLED": {"t5"},
			},
		},
		{
			query: "group by due",
			order: []string{"2024-01-12", "(no due date)", "2024-01-08"},
			want: map[string][]string{
				"2024-01-12": {"t1"}, "(no due date)": {"t2", "t4", "t5"}, "2024-01-08": {"t3"},
			},
		},
		{
			query: "group by recurring",
			order: []string{"not recurring", "recurring"},
			want: map[string][]string{
				"not recurring": {"t1", "t2", "t3", "t5"}, "recurring": {"t4"},
			},
		},
		{
			query: "sort by priority\ngroup by heading",
			order: []string{"(no heading)", "Today", "Later"},
			want: map[string][]string{
				"(no heading)": {"t4", "t2", "t5"}, "Today": {"t1"}, "Later": {"t3"},
			},
		},
	}

	e, _ := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := run(t, e, tt.query, sampleTasks())
			if diff := cmp.Diff(tt.order, groupOrder(res.Groups)); diff != "" {
				t.Errorf("group order mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, groupSummary(res.Groups)); diff != "" {
				t.Errorf("groups mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLimitAppliesBeforeGrouping(t *testing.T) {
	e, _ := newTestEngine(t)

	res := run(t, e, "sort by priority\nlimit 2\ngroup by tags", sampleTasks())

	if diff := cmp.Diff([]string{"t4", "t1"}, ids(res.Tasks)); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
	if res.TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5", res.TotalCount)
	}
	if diff := cmp.Diff([]string{"(no tags)", "#work"}, groupOrder(res.Groups)); diff != "" {
		t.Errorf("group order mismatch (-want +got):\n%s", diff)
	}
}

func TestLimitLargerThanResult(t *testing.T) {
	e, _ := newTestEngine(t)
	res := run(t, e, "done\nlimit 10", sampleTasks())
	if len(res.Tasks) != 2 || res.TotalCount != 2 {
		t.Errorf("got %d tasks, TotalCount %d; want 2, 2", len(res.Tasks), res.TotalCount)
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	tasks := sampleTasks()
	const q = "not done OR tags include home\nsort by due\ngroup by tags\nlimit 4"

	first := run(t, e, q, tasks)
	second := run(t, e, q, tasks)

	opts := cmpopts.IgnoreFields(Result{}, "ExecutionTime", "ExecutionTimeMs")
	if diff := cmp.Diff(first, second, opts); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
}

func TestExplain(t *testing.T) {
	e, _ := newTestEngine(t)

	res := run(t, e, "priority is high OR not done\nsort by due reverse\nlimit 3\nexplain", sampleTasks())

	want := `Filters:
  OR
    priority is high
    NOT
      done

Sort:
  due (descending)

Group:
  None

Limit:
  3
`
	if diff := cmp.Diff(want, res.Explanation); diff != "" {
		t.Errorf("explanation mismatch (-want +got):\n%s", diff)
	}

	plain := run(t, e, "done", sampleTasks())
	if plain.Explanation != "" {
		t.Errorf("Explanation without explain = %q, want empty", plain.Explanation)
	}
}

func TestExplainASTEmptyQuery(t *testing.T) {
	got := ExplainAST(&query.AST{})
	for _, section := range []string{"Filters:\n  None", "Sort:\n  None", "Group:\n  None", "Limit:\n  None"} {
		if !strings.Contains(got, section) {
			t.Errorf("ExplainAST() missing %q:\n%s", section, got)
		}
	}
}

func TestExplainMultipleLines(t *testing.T) {
	ast, err := query.Parse("done\ngroup by tags")
	if err != nil {
		t.Fatal(err)
	}
	ast.Filters = append(ast.Filters, &query.Leaf{Kind: query.KindDependency, Operator: query.OpIs, Value: "blocked"})

	got := ExplainAST(ast)
	if !strings.Contains(got, "  AND (all lines)\n    done\n    is blocked\n") {
		t.Errorf("ExplainAST() =\n%s", got)
	}
	if !strings.Contains(got, "Group:\n  tags") {
		t.Errorf("ExplainAST() missing group:\n%s", got)
	}
}

func TestExecutionTimeReported(t *testing.T) {
	e, _ := newTestEngine(t)
	res := run(t, e, "done", sampleTasks())
	if res.ExecutionTime <= 0 {
		t.Errorf("ExecutionTime = %v, want > 0", res.ExecutionTime)
	}
}

type failingSource struct{ err error }

func (s failingSource) AllTasks(context.Context) ([]*task.Task, error) { return nil, s.err }

func TestExecuteErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	ast := &query.AST{}

	if _, err := e.Execute(context.Background(), nil, StaticSource(nil)); err == nil {
		t.Error("expected error for nil AST")
	}

	boom := errors.New("boom")
	if _, err := e.Execute(context.Background(), ast, failingSource{boom}); !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want wrapped boom", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Execute(ctx, ast, StaticSource(nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestCompilePanicsOnMalformedLeaf(t *testing.T) {
	e, _ := newTestEngine(t)
	ast := &query.AST{Filters: []query.Node{&query.Leaf{Kind: query.KindPriority, Value: "enormous"}}}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for a hand-built malformed leaf")
		}
	}()
	e.Run(ast, sampleTasks())
}
