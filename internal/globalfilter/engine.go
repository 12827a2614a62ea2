// Package globalfilter decides whether a block of text or a task is
// eligible at all, independently of any query.
//
// # Overview
//
// An Engine is compiled from a Profile: path globs, tag patterns, and
// regexes are compiled once, at construction and on UpdateConfig, never per
// evaluation. Rules are applied in a fixed order and exclusions always win:
//
//  1. exclude paths
//  2. exclude tags
//  3. exclude regex
//  4. exclude status types
//  5. include paths (a task without a path fails when any are configured)
//  6. include tags (any one suffices)
//  7. include regex
//
// An empty include rule allows everything. A rule whose pattern does not
// compile never matches: an invalid exclusion excludes nothing and an
// invalid inclusion includes nothing. Compile errors are logged once and
// kept in Errors.
//
// Explain returns the same decision as EvaluateTask together with the
// rule that decided it.
package globalfilter

import (
	"fmt"
	"log"
	"os"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/steveyegge/taskql/internal/task"
)

// RuleType names the kind of rule that decided a Decision.
type RuleType string

const (
	RuleExcludePath   RuleType = "excludePath"
	RuleExcludeTag    RuleType = "excludeTag"
	RuleExcludeRegex  RuleType = "excludeRegex"
	RuleExcludeStatus RuleType = "excludeStatusType"
	RuleIncludePath   RuleType = "includePath"
	RuleIncludeTag    RuleType = "includeTag"
	RuleIncludeRegex  RuleType = "includeRegex"
	RuleMissingPath   RuleType = "missingPath"
)

// Rule identifies one configured rule.
type Rule struct {
	Type    RuleType `json:"type"`
	Pattern string   `json:"pattern"`
}

// Decision is the outcome of evaluating one task. MatchedRule is the rule
// that decided it: the exclusion that fired, the inclusion that failed, or
// the first inclusion that matched. It is nil when no rule applied.
type Decision struct {
	Included    bool   `json:"included"`
	Reason      string `json:"reason"`
	MatchedRule *Rule  `json:"matched_rule,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for compile errors.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine evaluates tasks against a compiled profile. It is safe for
// concurrent use, including UpdateConfig during evaluation.
type Engine struct {
	logger *log.Logger

	mu       sync.RWMutex
	compiled *compiledProfile
}

// New compiles profile into an engine.
func New(profile Profile, opts ...Option) *Engine {
	e := &Engine{logger: log.New(os.Stderr, "[globalfilter] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(e)
	}
	e.compiled = e.compile(profile)
	return e
}

// UpdateConfig recompiles the engine from profile.
func (e *Engine) UpdateConfig(profile Profile) {
	c := e.compile(profile)

	e.mu.Lock()
	e.compiled = c
	e.mu.Unlock()
}

// Profile returns the profile the engine was compiled from.
func (e *Engine) Profile() Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.compiled.profile
}

// Errors returns the compile errors of the current profile.
func (e *Engine) Errors() []error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]error(nil), e.compiled.errs...)
}

// Evaluate reports whether a block of text at path is eligible. Tags
// (#tag) and the checkbox status symbol are read from content; path may
// be empty.
func (e *Engine) Evaluate(content, path string) bool {
	return e.ExplainContent(content, path).Included
}

// ExplainContent is Evaluate with the deciding rule.
func (e *Engine) ExplainContent(content, path string) Decision {
	return e.Explain(TaskFromContent(content, path))
}

// EvaluateTask reports whether t is eligible.
func (e *Engine) EvaluateTask(t *task.Task) bool {
	return e.Explain(t).Included
}

// FilterTasks returns the eligible tasks in their original order.
func (e *Engine) FilterTasks(tasks []*task.Task) []*task.Task {
	e.mu.RLock()
	c := e.compiled
	e.mu.RUnlock()

	out := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if c.decide(t).Included {
			out = append(out, t)
		}
	}
	return out
}

// Explain evaluates t and names the deciding rule.
func (e *Engine) Explain(t *task.Task) Decision {
	e.mu.RLock()
	c := e.compiled
	e.mu.RUnlock()
	return c.decide(t)
}

type pathRule struct {
	pattern string
	g       glob.Glob // nil when the pattern did not compile
}

type tagRule struct {
	pattern string
	re      *regexp.Regexp // nil when the pattern was empty
}

type regexRule struct {
	pattern string
	re      *regexp.Regexp // nil when the pattern did not compile
}

type compiledProfile struct {
	profile Profile

	excludePaths  []pathRule
	includePaths  []pathRule
	excludeTags   []tagRule
	includeTags   []tagRule
	excludeRegex  *regexRule
	includeRegex  *regexRule
	targets       []RegexTarget
	excludeStatus map[task.StatusType]bool

	errs []error
}

func (e *Engine) compile(p Profile) *compiledProfile {
	c := &compiledProfile{profile: p, excludeStatus: make(map[task.StatusType]bool)}

	fail := func(err error) {
		c.errs = append(c.errs, err)
		e.logger.Printf("WARNING: rule disabled: %v", err)
	}

	compilePaths := func(patterns []string) []pathRule {
		rules := make([]pathRule, 0, len(patterns))
		for _, pattern := range patterns {
			g, err := glob.Compile(globPattern(pattern), '/')
			if err != nil {
				fail(fmt.Errorf("invalid path glob %q: %w", pattern, err))
				g = nil
			}
			rules = append(rules, pathRule{pattern: pattern, g: g})
		}
		return rules
	}
	c.excludePaths = compilePaths(p.ExcludePaths)
	c.includePaths = compilePaths(p.IncludePaths)

	compileTags := func(patterns []string) []tagRule {
		rules := make([]tagRule, 0, len(patterns))
		for _, pattern := range patterns {
			re := tagPattern(pattern)
			if re == nil {
				fail(fmt.Errorf("empty tag pattern %q", pattern))
			}
			rules = append(rules, tagRule{pattern: pattern, re: re})
		}
		return rules
	}
	c.excludeTags = compileTags(p.ExcludeTags)
	c.includeTags = compileTags(p.IncludeTags)

	compileRegex := func(expr string) *regexRule {
		if expr == "" {
			return nil
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			fail(fmt.Errorf("invalid regex %q: %w", expr, err))
		}
		return &regexRule{pattern: expr, re: re}
	}
	c.excludeRegex = compileRegex(p.ExcludeRegex)
	c.includeRegex = compileRegex(p.IncludeRegex)

	for _, target := range p.RegexTargets {
		if !target.valid() {
			fail(fmt.Errorf("unknown regex target %q", target))
			continue
		}
		c.targets = append(c.targets, target)
	}
	if len(c.targets) == 0 {
		c.targets = []RegexTarget{TargetTaskText}
	}

	for _, st := range p.ExcludeStatusTypes {
		parsed, err := task.ParseStatusType(string(st))
		if err != nil {
			fail(err)
			continue
		}
		c.excludeStatus[parsed] = true
	}

	return c
}

// tagPattern compiles a tag rule to an anchored, case-insensitive regex
// over normalized tags (lowercase, no "#"). "*" matches any run of
// characters. A rule also matches nested tags: "work" matches "work/q1".
func tagPattern(pattern string) *regexp.Regexp {
	norm := normalizeTag(pattern)
	if norm == "" {
		return nil
	}

	parts := strings.Split(norm, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile("^" + strings.Join(parts, ".*") + "(/.*)?$")
}

func (c *compiledProfile) decide(t *task.Task) Decision {
	hasPath := t.HasPath()
	p := normalizePath(t.SlashPath())

	// Exclusions
	if hasPath {
		for _, r := range c.excludePaths {
			if r.g != nil && r.g.Match(p) {
				return excluded(RuleExcludePath, r.pattern, "path %s matches excluded path %s", p, r.pattern)
			}
		}
	}

	for _, r := range c.excludeTags {
		if tag, ok := r.match(t.Tags); ok {
			return excluded(RuleExcludeTag, r.pattern, "tag %s matches excluded tag %s", tag, r.pattern)
		}
	}

	if r := c.excludeRegex; r != nil && r.re != nil {
		if target, ok := c.matchRegex(r.re, t); ok {
			return excluded(RuleExcludeRegex, r.pattern, "%s matches excluded regex %s", target, r.pattern)
		}
	}

	if st := t.StatusType(); c.excludeStatus[st] {
		return excluded(RuleExcludeStatus, string(st), "status type %s is excluded", st)
	}

	// Inclusions
	var first *Rule

	if len(c.includePaths) > 0 {
		if !hasPath {
			return Decision{
				Reason:      "task has no path metadata but include paths are configured",
				MatchedRule: &Rule{Type: RuleMissingPath, Pattern: strings.Join(c.profile.IncludePaths, ", ")},
			}
		}
		matched := false
		for _, r := range c.includePaths {
			if r.g != nil && r.g.Match(p) {
				matched = true
				first = &Rule{Type: RuleIncludePath, Pattern: r.pattern}
				break
			}
		}
		if !matched {
			return excluded(RuleIncludePath, strings.Join(c.profile.IncludePaths, ", "), "path %s matches no included path", p)
		}
	}

	if len(c.includeTags) > 0 {
		matched := false
		for _, r := range c.includeTags {
			if _, ok := r.match(t.Tags); ok {
				matched = true
				if first == nil {
					first = &Rule{Type: RuleIncludeTag, Pattern: r.pattern}
				}
				break
			}
		}
		if !matched {
			return excluded(RuleIncludeTag, strings.Join(c.profile.IncludeTags, ", "), "no tag matches the included tags")
		}
	}

	if r := c.includeRegex; r != nil {
		matched := false
		if r.re != nil {
			_, matched = c.matchRegex(r.re, t)
		}
		if !matched {
			return excluded(RuleIncludeRegex, r.pattern, "no regex target matches included regex %s", r.pattern)
		}
		if first == nil {
			first = &Rule{Type: RuleIncludeRegex, Pattern: r.pattern}
		}
	}

	if first == nil {
		return Decision{Included: true, Reason: "no rule excludes the task"}
	}
	return Decision{Included: true, Reason: fmt.Sprintf("included by %s %s", first.Type, first.Pattern), MatchedRule: first}
}

func excluded(typ RuleType, pattern, format string, args ...any) Decision {
	return Decision{
		Included:    false,
		Reason:      fmt.Sprintf(format, args...),
		MatchedRule: &Rule{Type: typ, Pattern: pattern},
	}
}

func (r tagRule) match(tags []string) (string, bool) {
	if r.re == nil {
		return "", false
	}
	for _, tag := range tags {
		if r.re.MatchString(normalizeTag(tag)) {
			return tag, true
		}
	}
	return "", false
}

// matchRegex tests re against each configured target and returns the
// first target that matches.
func (c *compiledProfile) matchRegex(re *regexp.Regexp, t *task.Task) (RegexTarget, bool) {
	for _, target := range c.targets {
		var text string
		switch target {
		case TargetPath:
			if !t.HasPath() {
				continue
			}
			text = normalizePath(t.SlashPath())
		case TargetFileName:
			if !t.HasPath() {
				continue
			}
			text = t.FileName()
		default:
			text = t.Text()
		}
		if re.MatchString(text) {
			return target, true
		}
	}
	return "", false
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(p), "./")
}
