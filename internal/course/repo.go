package course

import (
	"context"
	"errors"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

var (
	ErrNotFound       = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")
)

type ListOpts struct {
	TeacherID string
	Status    Status // optional filter
	Limit     int
	Offset    int
}

// Store is the persistence surface for courses, lessons, prerequisites and
// enrollments. It also satisfies rbac.CourseFacts so the Authorizer can
// resolve parents and enrollment state.
type Store interface {
	CreateCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context, opts ListOpts) ([]Course, error)
	SetCourseStatus(ctx context.Context, id string, status Status) error

	AddPrerequisite(ctx context.Context, courseID, prereqID string) error
	ListPrerequisites(ctx context.Context, courseID string) ([]Course, error)
	ListPrerequisiteIDs(ctx context.Context, courseID string) ([]string, error)

	CreateLesson(ctx context.Context, l Lesson) error
	GetLesson(ctx context.Context, id string) (Lesson, error)
	ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
	MarkLessonComplete(ctx context.Context, userID, lessonID string) error
	AllLessonsCompleted(ctx context.Context, userID, courseID string) (bool, error)

	CreateEnrollment(ctx context.Context, e Enrollment) error
	GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, bool, error)
	SetEnrollmentStatus(ctx context.Context, id string, status EnrollmentStatus) error

	// ScoredAttempts returns the learner's non-null-score attempts within a
	// course, for prerequisite averaging.
	ScoredAttempts(ctx context.Context, userID, courseID string) ([]ScoredAttempt, error)

	rbac.CourseFacts
}
