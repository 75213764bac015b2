package exam

import (
	"context"
	"errors"
)

var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrDuplicateAttempt = errors.New("attempt already exists")
)

type AttemptListOpts struct {
	ExamID string
	UserID string
	Status AttemptStatus
	Limit  int
	Offset int
}

// Store is the persistence surface for exams, attempts and derived grades.
// CreateAttempt and UpdateAttempt run as single transactions: the attempt
// write, the grade upsert and the event append commit together or not at
// all.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error) // full, with answer keys
	ListExams(ctx context.Context, courseID string) ([]Exam, error)

	CreateAttempt(ctx context.Context, a Attempt, g *Grade, ev Event) error
	UpdateAttempt(ctx context.Context, a Attempt, g *Grade, ev Event) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	GetAttemptByExamUser(ctx context.Context, examID, userID string) (Attempt, bool, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	ListGrades(ctx context.Context, userID, courseID string) ([]Grade, error)
}
