package course

import (
	"context"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/grading"
)

// PassThreshold is the minimum average exam percentage that counts a
// prerequisite course as passed.
const PassThreshold = 60.0

type PrerequisiteEvaluator struct {
	store Store
}

func NewPrerequisiteEvaluator(store Store) *PrerequisiteEvaluator {
	return &PrerequisiteEvaluator{store: store}
}

// Unmet returns every prerequisite of courseID the learner has not passed,
// with titles for message composition. A prerequisite is passed iff the
// average percentage over the learner's scored attempts in it reaches
// PassThreshold; zero scored attempts never passes.
func (e *PrerequisiteEvaluator) Unmet(ctx context.Context, courseID, userID string) ([]Course, error) {
	prereqs, err := e.store.ListPrerequisites(ctx, courseID)
	if err != nil {
		return nil, err
	}
	var unmet []Course
	for _, p := range prereqs {
		passed, err := e.passed(ctx, userID, p.ID)
		if err != nil {
			return nil, err
		}
		if !passed {
			unmet = append(unmet, p)
		}
	}
	return unmet, nil
}

func (e *PrerequisiteEvaluator) passed(ctx context.Context, userID, courseID string) (bool, error) {
	attempts, err := e.store.ScoredAttempts(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	sum, n := 0.0, 0
	for _, a := range attempts {
		score := a.Score
		if p := grading.Percentage(&score, a.MaxScore); p != nil {
			sum += *p
			n++
		}
	}
	if n == 0 {
		return false, nil
	}
	return sum/float64(n) >= PassThreshold, nil
}
