package predicate

import (
	"time"

	"github.com/steveyegge/taskql/internal/task"
)

// UrgencyFunc is the externally supplied urgency scorer.
type UrgencyFunc func(t *task.Task, now time.Time) float64

// Urgency compares a task's urgency score with a threshold. It only holds
// the threshold and direction; the score comes from Score. A nil Score
// scores every task as 0.
type Urgency struct {
	Op        Compare
	Threshold float64
	Score     UrgencyFunc
	Now       time.Time
}

func (p Urgency) Matches(t *task.Task) bool {
	var score float64
	if p.Score != nil {
		score = p.Score(t, p.Now)
	}

	switch p.Op {
	case Above:
		return score > p.Threshold
	case Below:
		return score < p.Threshold
	default:
		return score == p.Threshold
	}
}
