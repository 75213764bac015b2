package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/fault"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/grading"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

// BonusCapFactor bounds any manually graded or amended score at 150% of the
// exam's nominal maximum. Bonus points may exceed MaxScore by design; the
// percentage is still computed against MaxScore itself.
const BonusCapFactor = 1.5

// CourseFacts is the slice of the course store the attempt lifecycle needs.
type CourseFacts interface {
	HasActiveEnrollment(ctx context.Context, userID, courseID string) (bool, error)
	AllLessonsCompleted(ctx context.Context, userID, courseID string) (bool, error)
}

type Service struct {
	store   Store
	courses CourseFacts
	authz   *rbac.Authorizer
	grader  grading.Grader
	now     func() time.Time
}

func NewService(store Store, courses CourseFacts, authz *rbac.Authorizer) *Service {
	return &Service{
		store:   store,
		courses: courses,
		authz:   authz,
		grader:  grading.NewDefaultGrader(),
		now:     time.Now,
	}
}

// TransitionResult is the shape every attempt transition returns.
type TransitionResult struct {
	Attempt    Attempt         `json:"attempt"`
	Percentage *float64        `json:"percentage,omitempty"`
	Letter     *grading.Letter `json:"letter_grade,omitempty"`
}

// ---- authoring ----

// SaveExam creates or updates an exam; write access on the course required.
func (s *Service) SaveExam(ctx context.Context, id rbac.Identity, e Exam) (Exam, error) {
	dec, err := s.authz.CheckWrite(ctx, id, rbac.CourseParent(e.CourseID))
	if err != nil {
		return Exam{}, err
	}
	if !dec.Allowed {
		if dec.CourseID == "" {
			return Exam{}, fault.NotFound("course not found")
		}
		return Exam{}, fault.Forbidden("not the course teacher")
	}
	if err := validateExam(&e); err != nil {
		return Exam{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := s.store.PutExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func validateExam(e *Exam) error {
	if strings.TrimSpace(e.Title) == "" {
		return fault.InvalidState("title required")
	}
	if e.MaxScore <= 0 {
		return fault.InvalidState("max_score must be positive")
	}
	for i := range e.Questions {
		q := &e.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.Position == 0 {
			q.Position = i + 1
		}
		if q.Points < 0 {
			return fault.InvalidState("question %d: points must not be negative", i+1)
		}
		switch q.Type {
		case TypeMultipleChoice:
			if len(q.Choices) < 2 {
				return fault.InvalidState("question %d: at least two choices required", i+1)
			}
			if q.CorrectIndex == nil || *q.CorrectIndex < 0 || *q.CorrectIndex >= len(q.Choices) {
				return fault.InvalidState("question %d: correct_index out of range", i+1)
			}
		case TypeText, TypeEssay:
			// manually graded; nothing to validate beyond points
		default:
			return fault.InvalidState("question %d: unknown type %q", i+1, q.Type)
		}
	}
	return nil
}

// ---- submission transition: initial -> auto_graded | pending ----

func (s *Service) Submit(ctx context.Context, id rbac.Identity, examID string, answers map[string]any) (TransitionResult, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, ErrExamNotFound) {
			return TransitionResult{}, fault.NotFound("exam not found")
		}
		return TransitionResult{}, err
	}

	if !id.IsAdmin() {
		enrolled, err := s.courses.HasActiveEnrollment(ctx, id.UserID, e.CourseID)
		if err != nil {
			return TransitionResult{}, err
		}
		if !enrolled {
			return TransitionResult{}, fault.Forbidden("not enrolled in this course")
		}
	}
	if id.IsStudent() {
		done, err := s.courses.AllLessonsCompleted(ctx, id.UserID, e.CourseID)
		if err != nil {
			return TransitionResult{}, err
		}
		if !done {
			return TransitionResult{}, fault.InvalidState("complete all course lessons before taking the exam")
		}
	}

	// optimization only; the unique index catches the race
	if _, exists, err := s.store.GetAttemptByExamUser(ctx, examID, id.UserID); err != nil {
		return TransitionResult{}, err
	} else if exists {
		return TransitionResult{}, fault.DuplicateAttempt("exam already attempted")
	}

	if answers == nil {
		answers = map[string]any{}
	}
	raw, needsManual := s.scoreObjective(e.Questions, answers)

	a := Attempt{
		ID:          uuid.NewString(),
		ExamID:      examID,
		UserID:      id.UserID,
		Answers:     answers,
		SubmittedAt: s.now().Unix(),
	}

	var g *Grade
	if needsManual {
		a.Status = StatusPending
		a.Score = nil
	} else {
		if raw > e.MaxScore {
			raw = e.MaxScore
		}
		a.Status = StatusAutoGraded
		a.Score = &raw
		grade := s.buildGrade(e, a)
		g = &grade
	}

	ev := Event{Type: EventAttemptSubmitted, Key: a.ID, DataJSON: eventData(a)}
	if err := s.store.CreateAttempt(ctx, a, g, ev); err != nil {
		if errors.Is(err, ErrDuplicateAttempt) {
			return TransitionResult{}, fault.DuplicateAttempt("exam already attempted")
		}
		return TransitionResult{}, err
	}
	return s.result(e, a), nil
}

// scoreObjective sums auto points over objective items and reports whether
// any item defers to manual grading.
func (s *Service) scoreObjective(questions []Question, answers map[string]any) (float64, bool) {
	sum, needsManual := 0.0, false
	for _, q := range questions {
		res := s.grader.Grade(gradingQ(q), answers[q.ID])
		if res.NeedsManual {
			needsManual = true
			continue
		}
		sum += res.AutoPoints
	}
	return sum, needsManual
}

// ---- manual-grading transition: pending -> graded ----

type ManualGradeInput struct {
	// Scores holds per-question points for non-objective items; objective
	// items are re-scored from the stored answers regardless.
	Scores map[string]float64 `json:"scores,omitempty"`
	// FinalScore, when Scores is absent, is the base score as a whole.
	FinalScore *float64 `json:"final_score,omitempty"`
	Bonus      float64  `json:"bonus,omitempty"`
}

func (s *Service) GradeManual(ctx context.Context, id rbac.Identity, attemptID string, in ManualGradeInput) (TransitionResult, error) {
	a, e, err := s.attemptForGrading(ctx, id, attemptID)
	if err != nil {
		return TransitionResult{}, err
	}
	if a.Status != StatusPending {
		return TransitionResult{}, fault.InvalidState("attempt already graded")
	}

	var base float64
	switch {
	case in.Scores != nil:
		base = s.combineScores(e.Questions, a.Answers, in.Scores)
	case in.FinalScore != nil:
		base = *in.FinalScore
	default:
		return TransitionResult{}, fault.InvalidState("per-question scores or final score required")
	}

	score := capScore(base+in.Bonus, e.MaxScore)
	now := s.now().Unix()
	a.Status = StatusGraded
	a.Score = &score
	a.GradedAt = &now

	grade := s.buildGrade(e, a)
	ev := Event{Type: EventAttemptGraded, Key: a.ID, DataJSON: eventData(a)}
	if err := s.store.UpdateAttempt(ctx, a, &grade, ev); err != nil {
		return TransitionResult{}, err
	}
	return s.result(e, a), nil
}

// combineScores re-scores objective items from the stored answers (identical
// to submission, so re-grading is idempotent) and takes supplied points for
// manual items, capped per question.
func (s *Service) combineScores(questions []Question, answers map[string]any, scores map[string]float64) float64 {
	sum := 0.0
	for _, q := range questions {
		res := s.grader.Grade(gradingQ(q), answers[q.ID])
		if !res.NeedsManual {
			sum += res.AutoPoints
			continue
		}
		manual := scores[q.ID]
		if manual > q.Points {
			manual = q.Points
		}
		if manual < 0 {
			manual = 0
		}
		sum += manual
	}
	return sum
}

// ---- score-amendment transition: graded -> graded ----

type AmendInput struct {
	FinalScore *float64 `json:"final_score,omitempty"` // replaces when set
	Bonus      float64  `json:"bonus,omitempty"`       // increments
}

// AmendScore is the only transition that may run more than once per attempt.
func (s *Service) AmendScore(ctx context.Context, id rbac.Identity, attemptID string, in AmendInput) (TransitionResult, error) {
	a, e, err := s.attemptForGrading(ctx, id, attemptID)
	if err != nil {
		return TransitionResult{}, err
	}
	if a.Status != StatusGraded {
		return TransitionResult{}, fault.InvalidState("attempt is not graded yet")
	}
	if in.FinalScore == nil && in.Bonus == 0 {
		return TransitionResult{}, fault.InvalidState("final score or bonus required")
	}

	base := *a.Score
	if in.FinalScore != nil {
		base = *in.FinalScore
	}
	score := capScore(base+in.Bonus, e.MaxScore)
	now := s.now().Unix()
	a.Score = &score
	a.GradedAt = &now

	grade := s.buildGrade(e, a)
	ev := Event{Type: EventScoreAmended, Key: a.ID, DataJSON: eventData(a)}
	if err := s.store.UpdateAttempt(ctx, a, &grade, ev); err != nil {
		return TransitionResult{}, err
	}
	return s.result(e, a), nil
}

// attemptForGrading loads the attempt and its exam, enforcing write access
// scoped to the exam's course.
func (s *Service) attemptForGrading(ctx context.Context, id rbac.Identity, attemptID string) (Attempt, Exam, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			return Attempt{}, Exam{}, fault.NotFound("attempt not found")
		}
		return Attempt{}, Exam{}, err
	}
	e, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return Attempt{}, Exam{}, err
	}
	dec, err := s.authz.CheckWrite(ctx, id, rbac.CourseParent(e.CourseID))
	if err != nil {
		return Attempt{}, Exam{}, err
	}
	if !dec.Allowed {
		return Attempt{}, Exam{}, fault.Forbidden("not the course teacher")
	}
	return a, e, nil
}

// ---- viewing ----

// GetAttempt serves an attempt to its owner or to a course writer.
func (s *Service) GetAttempt(ctx context.Context, id rbac.Identity, attemptID string) (TransitionResult, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			return TransitionResult{}, fault.NotFound("attempt not found")
		}
		return TransitionResult{}, err
	}
	e, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return TransitionResult{}, err
	}
	if a.UserID != id.UserID {
		dec, err := s.authz.CheckWrite(ctx, id, rbac.CourseParent(e.CourseID))
		if err != nil {
			return TransitionResult{}, err
		}
		if !dec.Allowed {
			return TransitionResult{}, fault.Forbidden("not your attempt")
		}
	}
	return s.result(e, a), nil
}

// ListAttempts serves a course writer's view of attempts for one exam.
func (s *Service) ListAttempts(ctx context.Context, id rbac.Identity, examID string, opts AttemptListOpts) ([]Attempt, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, ErrExamNotFound) {
			return nil, fault.NotFound("exam not found")
		}
		return nil, err
	}
	dec, err := s.authz.CheckWrite(ctx, id, rbac.CourseParent(e.CourseID))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, fault.Forbidden("not the course teacher")
	}
	opts.ExamID = examID
	return s.store.ListAttempts(ctx, opts)
}

// ExamForViewer loads an exam for the caller, enforcing read access and
// applying the answer reveal policy. Evaluated per request; time and attempt
// state change the outcome.
func (s *Service) ExamForViewer(ctx context.Context, id rbac.Identity, examID string) (Exam, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, ErrExamNotFound) {
			return Exam{}, fault.NotFound("exam not found")
		}
		return Exam{}, err
	}
	dec, err := s.authz.CheckRead(ctx, id, rbac.CourseParent(e.CourseID))
	if err != nil {
		return Exam{}, err
	}
	if !dec.Allowed {
		return Exam{}, fault.Forbidden("not enrolled in this course")
	}

	var attempt *Attempt
	if a, ok, err := s.store.GetAttemptByExamUser(ctx, examID, id.UserID); err != nil {
		return Exam{}, err
	} else if ok {
		attempt = &a
	}
	if !ShouldReveal(id, e, attempt, s.now()) {
		e.Questions = Redact(e.Questions)
	}
	return e, nil
}

// ListExams serves a course's exams to any reader; answer keys are only
// kept for course writers.
func (s *Service) ListExams(ctx context.Context, id rbac.Identity, courseID string) ([]Exam, error) {
	dec, err := s.authz.CheckRead(ctx, id, rbac.CourseParent(courseID))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, fault.Forbidden("not enrolled in this course")
	}
	exams, err := s.store.ListExams(ctx, courseID)
	if err != nil {
		return nil, err
	}
	wdec, err := s.authz.CheckWrite(ctx, id, rbac.CourseParent(courseID))
	if err != nil {
		return nil, err
	}
	if !wdec.Allowed {
		for i := range exams {
			exams[i].Questions = Redact(exams[i].Questions)
		}
	}
	return exams, nil
}

func (s *Service) Grades(ctx context.Context, id rbac.Identity, userID, courseID string) ([]Grade, error) {
	if userID == "" {
		userID = id.UserID
	}
	if userID != id.UserID && !id.IsAdmin() && !id.IsTeacher() {
		return nil, fault.Forbidden("not your grades")
	}
	return s.store.ListGrades(ctx, userID, courseID)
}

// GradeSummary is a learner's grade rows plus their aggregate GPA.
type GradeSummary struct {
	Grades []Grade `json:"grades"`
	GPA    float64 `json:"gpa"`
}

func (s *Service) GradeSummary(ctx context.Context, id rbac.Identity, userID, courseID string) (GradeSummary, error) {
	grades, err := s.Grades(ctx, id, userID, courseID)
	if err != nil {
		return GradeSummary{}, err
	}
	var letters []grading.Letter
	for _, g := range grades {
		if g.Letter != nil {
			letters = append(letters, *g.Letter)
		}
	}
	return GradeSummary{Grades: grades, GPA: grading.GPA(letters)}, nil
}

// ---- helpers ----

func (s *Service) buildGrade(e Exam, a Attempt) Grade {
	pct := grading.Percentage(a.Score, e.MaxScore)
	return Grade{
		UserID:     a.UserID,
		CourseID:   e.CourseID,
		Type:       GradeTypeExam,
		ItemID:     e.ID,
		Score:      *a.Score,
		MaxScore:   e.MaxScore,
		Percentage: pct,
		Letter:     grading.LetterFromPercentage(pct),
	}
}

func (s *Service) result(e Exam, a Attempt) TransitionResult {
	pct := grading.Percentage(a.Score, e.MaxScore)
	return TransitionResult{
		Attempt:    a,
		Percentage: pct,
		Letter:     grading.LetterFromPercentage(pct),
	}
}

func capScore(score, maxScore float64) float64 {
	if ceiling := BonusCapFactor * maxScore; score > ceiling {
		return ceiling
	}
	return score
}

func gradingQ(q Question) grading.Q {
	return grading.Q{Type: q.Type, Points: q.Points, CorrectIndex: q.CorrectIndex}
}

func eventData(a Attempt) string {
	buf, err := json.Marshal(map[string]any{
		"attempt_id": a.ID,
		"exam_id":    a.ExamID,
		"user_id":    a.UserID,
		"status":     a.Status,
		"score":      a.Score,
	})
	if err != nil {
		return fmt.Sprintf(`{"attempt_id":%q}`, a.ID)
	}
	return string(buf)
}
