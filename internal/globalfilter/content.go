package globalfilter

import (
	"regexp"
	"strings"

	"github.com/steveyegge/taskql/internal/task"
)

var (
	// checkboxRe matches a list item checkbox: "- [ ] ", "* [x] ", "1. [/] ".
	checkboxRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+\[(.)\]\s*`)

	// tagRe matches #tags preceded by start of text or whitespace. Tags may
	// nest with "/" and contain letters, digits, "_" and "-".
	tagRe = regexp.MustCompile(`(?:^|\s)(#[\p{L}\p{N}_\-/]+)`)
)

// TaskFromContent builds the task view of a block of text: the first line
// without its checkbox becomes the title, later lines the description,
// and #tags anywhere in the block become tags.
func TaskFromContent(content, path string) *task.Task {
	t := &task.Task{Path: path}

	first, rest, _ := strings.Cut(content, "\n")
	if m := checkboxRe.FindStringSubmatchIndex(first); m != nil {
		t.Status = first[m[2]:m[3]]
		first = first[m[1]:]
	}
	t.Title = strings.TrimSpace(first)
	t.Description = strings.TrimSpace(rest)

	for _, m := range tagRe.FindAllStringSubmatch(content, -1) {
		t.Tags = append(t.Tags, strings.TrimRight(m[1], "/"))
	}
	return t
}
