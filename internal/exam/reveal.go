package exam

import (
	"time"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

// ShouldReveal decides whether correct answers and explanations may be
// served to this viewer. Teachers and admins always see them. A student sees
// them only once the exam has ended, they have an attempt on record, and
// that attempt's score is present and passing. Never cached across requests.
func ShouldReveal(id rbac.Identity, e Exam, attempt *Attempt, now time.Time) bool {
	if id.IsTeacher() || id.IsAdmin() {
		return true
	}
	if now.Unix() <= e.EndAt {
		return false
	}
	if attempt == nil || attempt.Score == nil {
		return false
	}
	return *attempt.Score >= e.PassingScore
}

// Redact strips answer keys and explanations for serving.
func Redact(questions []Question) []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		q.CorrectIndex = nil
		q.Explanation = ""
		out[i] = q
	}
	return out
}
