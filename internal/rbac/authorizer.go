package rbac

import (
	"context"
	"errors"
)

// ParentKind identifies the content node an access check is scoped to.
// Lessons resolve to their owning course; the course is the unit of
// authorization for all nested material.
type ParentKind string

const (
	ParentCourse ParentKind = "course"
	ParentLesson ParentKind = "lesson"
)

type Parent struct {
	Kind ParentKind
	ID   string
}

func CourseParent(id string) Parent { return Parent{Kind: ParentCourse, ID: id} }
func LessonParent(id string) Parent { return Parent{Kind: ParentLesson, ID: id} }

// Decision carries the verdict plus the resolved course so callers don't
// re-resolve the lesson -> course edge.
type Decision struct {
	Allowed  bool
	CourseID string
}

// CourseRef is the slice of a course the authorizer needs.
type CourseRef struct {
	ID        string
	TeacherID string
}

// ErrParentNotFound is returned by CourseFacts when the parent's course
// cannot be resolved (deleted or never existed). The authorizer treats it as
// a denial.
var ErrParentNotFound = errors.New("parent course not found")

// CourseFacts supplies the persisted facts the authorizer composes. The
// course store satisfies this.
type CourseFacts interface {
	ResolveCourse(ctx context.Context, parent Parent) (CourseRef, error)
	HasActiveEnrollment(ctx context.Context, userID, courseID string) (bool, error)
}

// Authorizer is the single point of truth for whether an identity may touch
// a course's material. Every content-scoped operation consults it instead of
// re-implementing role branches.
type Authorizer struct {
	facts CourseFacts
}

func NewAuthorizer(facts CourseFacts) *Authorizer { return &Authorizer{facts: facts} }

// CheckRead allows admins, the owning teacher, and actively enrolled
// learners.
func (a *Authorizer) CheckRead(ctx context.Context, id Identity, parent Parent) (Decision, error) {
	ref, err := a.facts.ResolveCourse(ctx, parent)
	if err != nil {
		if errors.Is(err, ErrParentNotFound) {
			return Decision{}, nil
		}
		return Decision{}, err
	}
	if id.IsAdmin() || ref.TeacherID == id.UserID {
		return Decision{Allowed: true, CourseID: ref.ID}, nil
	}
	enrolled, err := a.facts.HasActiveEnrollment(ctx, id.UserID, ref.ID)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: enrolled, CourseID: ref.ID}, nil
}

// CheckWrite allows admins and the owning teacher only. Enrollment never
// grants write access.
func (a *Authorizer) CheckWrite(ctx context.Context, id Identity, parent Parent) (Decision, error) {
	ref, err := a.facts.ResolveCourse(ctx, parent)
	if err != nil {
		if errors.Is(err, ErrParentNotFound) {
			return Decision{}, nil
		}
		return Decision{}, err
	}
	allowed := id.IsAdmin() || ref.TeacherID == id.UserID
	return Decision{Allowed: allowed, CourseID: ref.ID}, nil
}
