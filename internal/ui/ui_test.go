package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/steveyegge/taskql/internal/cache"
	"github.com/steveyegge/taskql/internal/engine"
	"github.com/steveyegge/taskql/internal/globalfilter"
	"github.com/steveyegge/taskql/internal/query"
	"github.com/steveyegge/taskql/internal/task"
)

func plain() (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewRenderer(&buf, "never"), &buf
}

func sample() []*task.Task {
	due := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	return []*task.Task{
		{ID: "1", Title: "Write report", Status: " ", DueAt: &due, Priority: task.PriorityHigh.Ptr(), Tags: []string{"#work"}, Path: "daily/2024-01-10.md"},
		{ID: "2", Title: "Call mom", Status: "x"},
		{ID: "3", Title: "Water plants", Status: "/", Frequency: &task.Frequency{Every: "week"}, Priority: task.PriorityNormal.Ptr()},
	}
}

func TestResultPlain(t *testing.T) {
	r, buf := plain()
	tasks := sample()
	r.Result(&engine.Result{Tasks: tasks, TotalCount: 5, ExecutionTimeMs: 1.5})

	want := strings.Join([]string{
		"- [ ] Write report  due 2024-01-12, priority high #work  daily/2024-01-10.md",
		"- [x] Call mom",
		"- [/] Water plants  recurring",
		"3 of 5 tasks (1.50ms)",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Result() mismatch (-want +got):\n%s", diff)
	}
}

func TestResultGrouped(t *testing.T) {
	r, buf := plain()
	tasks := sample()
	r.Result(&engine.Result{
		Tasks:       tasks[:2],
		Groups:      []engine.Group{{Key: "todo", Tasks: tasks[:1]}, {Key: "done", Tasks: tasks[1:2]}},
		TotalCount:  2,
		Explanation: "Filters:\n  None",
		Cached:      true,
	})

	want := strings.Join([]string{
		"Filters:",
		"  None",
		"todo (1)",
		"- [ ] Write report  due 2024-01-12, priority high #work  daily/2024-01-10.md",
		"",
		"done (1)",
		"- [x] Call mom",
		"2 tasks (0.00ms, cached)",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Result() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		res  engine.Result
		want string
	}{
		{engine.Result{}, "0 tasks (0.00ms)"},
		{engine.Result{Tasks: make([]*task.Task, 1), TotalCount: 1}, "1 task (0.00ms)"},
		{engine.Result{Tasks: make([]*task.Task, 2), TotalCount: 9, ExecutionTimeMs: 12.346, Cached: true}, "2 of 9 tasks (12.35ms, cached)"},
	}
	for _, tt := range tests {
		if got := Summary(&tt.res); got != tt.want {
			t.Errorf("Summary() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseErrorDiagnostic(t *testing.T) {
	_, err := query.Parse("priorty is high")
	var pe *query.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Parse() error = %v, want *ParseError", err)
	}

	r, buf := plain()
	r.ParseError(pe)
	out := buf.String()
	for _, want := range []string{"Query error:", "priorty is high", "^^^^^^^", "hint:"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostic %q missing %q", out, want)
		}
	}
}

func TestDecision(t *testing.T) {
	r, buf := plain()
	r.Decision(globalfilter.Decision{
		Included:    false,
		Reason:      "path daily/archive/a.md matches excluded path daily/archive/**",
		MatchedRule: &globalfilter.Rule{Type: globalfilter.RuleExcludePath, Pattern: "daily/archive/**"},
	})
	r.Decision(globalfilter.Decision{Included: true, Reason: "no rule excludes the task"})

	want := "excluded: path daily/archive/a.md matches excluded path daily/archive/**\n" +
		"  rule: excludePath daily/archive/**\n" +
		"included: no rule excludes the task\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Decision() mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheMetrics(t *testing.T) {
	r, buf := plain()
	r.CacheMetrics("queries", cache.Metrics{Hits: 3, Misses: 1, Size: 2})

	out := buf.String()
	for _, want := range []string{"Cache queries", "hits:        3", "misses:      1", "entries:     2", "hit rate:    75.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestErrorAndWarning(t *testing.T) {
	r, buf := plain()
	r.Error(errors.New("boom"))
	r.Warning("careful")
	if diff := cmp.Diff("Error: boom\nWarning: careful\n", buf.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRuleWidth(t *testing.T) {
	r, buf := plain()
	r.Rule()
	if got := strings.Count(buf.String(), "─"); got != defaultWidth {
		t.Errorf("rule width = %d, want %d", got, defaultWidth)
	}
}
