package grading

import "encoding/json"

// Question types understood by the engine.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeText           = "text"
	TypeEssay          = "essay"
)

// Q is a minimal view of a question needed for scoring. Keep this in sync
// with whatever fields the exam store uses.
type Q struct {
	Type         string
	Points       float64
	CorrectIndex *int
}

// Result is the outcome of scoring a single question answer.
type Result struct {
	AutoPoints  float64 // points awarded automatically
	MaxPoints   float64 // the question's max points
	NeedsManual bool    // true if teacher review is required
}

// Strategy scores a single question.
type Strategy interface {
	Grade(q Q, answer any) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(q Q, answer any) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(q Q, answer any) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsManual: true}
	}
	return s.Grade(q, answer)
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMultipleChoice: choiceStrategy{},
			TypeText:           manualStrategy{},
			TypeEssay:          manualStrategy{},
		},
	}
}

// --- Strategies ---

// choiceStrategy awards full points on an exact index match, 0 otherwise.
type choiceStrategy struct{}

func (choiceStrategy) Grade(q Q, answer any) Result {
	res := Result{MaxPoints: q.Points}
	idx, ok := toIndex(answer)
	if !ok || q.CorrectIndex == nil {
		return res
	}
	if idx == *q.CorrectIndex {
		res.AutoPoints = q.Points
	}
	return res
}

// manualStrategy defers text and essay answers to teacher review.
type manualStrategy struct{}

func (manualStrategy) Grade(q Q, _ any) Result {
	return Result{MaxPoints: q.Points, NeedsManual: true}
}

// toIndex accepts the shapes an answer index arrives in after JSON decoding.
func toIndex(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == float64(int(t)) {
			return int(t), true
		}
		return 0, false
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
