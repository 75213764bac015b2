package course

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/db"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/fault"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

// EnrollmentGate decides enrollment requests. The checks are a strict,
// ordered chain; each step short-circuits except prerequisite evaluation,
// which reports every unmet course at once.
type EnrollmentGate struct {
	store   Store
	prereqs *PrerequisiteEvaluator
}

func NewEnrollmentGate(store Store) *EnrollmentGate {
	return &EnrollmentGate{store: store, prereqs: NewPrerequisiteEvaluator(store)}
}

func (g *EnrollmentGate) Enroll(ctx context.Context, id rbac.Identity, courseID string) (Enrollment, error) {
	if !id.IsStudent() && !id.IsAdmin() {
		return Enrollment{}, fault.Forbidden("only students may enroll")
	}

	c, err := g.store.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Enrollment{}, fault.NotFound("course not found")
		}
		return Enrollment{}, err
	}
	if c.Status != StatusPublished {
		return Enrollment{}, fault.InvalidState("course is not published")
	}

	unmet, err := g.prereqs.Unmet(ctx, courseID, id.UserID)
	if err != nil {
		return Enrollment{}, err
	}
	if len(unmet) > 0 {
		titles := make([]string, len(unmet))
		for i, u := range unmet {
			titles[i] = u.Title
		}
		return Enrollment{}, fault.PrerequisiteUnmet(
			"prerequisite courses not passed: %s", strings.Join(titles, ", "))
	}

	if _, exists, err := g.store.GetEnrollment(ctx, id.UserID, courseID); err != nil {
		return Enrollment{}, err
	} else if exists {
		return Enrollment{}, fault.AlreadyExists("already enrolled in this course")
	}

	e := Enrollment{
		ID:       uuid.NewString(),
		UserID:   id.UserID,
		CourseID: courseID,
		Status:   EnrollmentActive,
	}
	if err := g.store.CreateEnrollment(ctx, e); err != nil {
		// the unique index is the real guard against a concurrent duplicate
		if db.IsUniqueViolation(err) {
			return Enrollment{}, fault.AlreadyExists("already enrolled in this course")
		}
		return Enrollment{}, err
	}
	return e, nil
}
