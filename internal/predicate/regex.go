package predicate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/taskql/internal/task"
)

// RegexTarget selects the task text a regex predicate is applied to.
type RegexTarget string

const (
	TargetDescription RegexTarget = "description"
	TargetHeading     RegexTarget = "heading"
	TargetPath        RegexTarget = "path"
	TargetTags        RegexTarget = "tags"
)

// ParseRegexTarget resolves a query field name to a RegexTarget.
func ParseRegexTarget(s string) (RegexTarget, bool) {
	switch strings.ToLower(s) {
	case "", "description", "text":
		return TargetDescription, true
	case "heading":
		return TargetHeading, true
	case "path":
		return TargetPath, true
	case "tag", "tags":
		return TargetTags, true
	default:
		return "", false
	}
}

// Regex matches a compiled pattern against its target. When the pattern
// failed to compile the predicate matches nothing, whichever way it is
// negated; Err reports why.
type Regex struct {
	Target  RegexTarget
	Pattern string
	Negate  bool

	re  *regexp.Regexp
	err error
}

// NewRegex compiles literal, which is either /pattern/flags or a bare
// pattern. Supported flags are i, m, and s.
func NewRegex(target RegexTarget, literal string, negate bool) *Regex {
	p := &Regex{Target: target, Pattern: literal, Negate: negate}
	expr, err := RegexSource(literal)
	if err == nil {
		p.re, err = regexp.Compile(expr)
	}
	p.err = err
	return p
}

// Err returns the compilation error, or nil for a usable pattern.
func (p *Regex) Err() error {
	return p.err
}

func (p *Regex) Matches(t *task.Task) bool {
	if p.re == nil {
		return false
	}

	var matched bool
	switch p.Target {
	case TargetHeading:
		matched = p.re.MatchString(t.Heading)
	case TargetPath:
		matched = t.HasPath() && p.re.MatchString(t.SlashPath())
	case TargetTags:
		for _, tag := range t.Tags {
			if p.re.MatchString(tag) {
				matched = true
				break
			}
		}
	default:
		matched = p.re.MatchString(t.Text())
	}
	return matched != p.Negate
}

// RegexSource converts /pattern/flags into a Go regexp source with inline
// flags. A literal without slashes is returned unchanged.
func RegexSource(literal string) (string, error) {
	if len(literal) < 2 || literal[0] != '/' {
		return literal, nil
	}

	end := strings.LastIndexByte(literal, '/')
	if end == 0 {
		return "", fmt.Errorf("unterminated regex literal %q", literal)
	}

	pattern, flags := literal[1:end], literal[end+1:]
	for _, f := range flags {
		if !strings.ContainsRune("ims", f) {
			return "", fmt.Errorf("unsupported regex flag %q in %q", f, literal)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	return pattern, nil
}
