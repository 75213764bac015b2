package exam

import (
	"context"
	"testing"
	"time"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/fault"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/grading"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

/* ---------------- in-memory fakes ---------------- */

type fakeStore struct {
	exams          map[string]Exam
	attempts       map[string]Attempt
	byExamUser     map[string]string // examID|userID -> attemptID
	grades         map[string]Grade  // userID|courseID|type|itemID
	events         []Event
	forceCreateDup bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		exams:      map[string]Exam{},
		attempts:   map[string]Attempt{},
		byExamUser: map[string]string{},
		grades:     map[string]Grade{},
	}
}

func gradeKey(g Grade) string { return g.UserID + "|" + g.CourseID + "|" + g.Type + "|" + g.ItemID }

func (s *fakeStore) PutExam(_ context.Context, e Exam) error {
	s.exams[e.ID] = e
	return nil
}

func (s *fakeStore) GetExam(_ context.Context, id string) (Exam, error) {
	e, ok := s.exams[id]
	if !ok {
		return Exam{}, ErrExamNotFound
	}
	return e, nil
}

func (s *fakeStore) ListExams(_ context.Context, courseID string) ([]Exam, error) {
	var out []Exam
	for _, e := range s.exams {
		if e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateAttempt(_ context.Context, a Attempt, g *Grade, ev Event) error {
	k := a.ExamID + "|" + a.UserID
	if _, dup := s.byExamUser[k]; dup || s.forceCreateDup {
		return ErrDuplicateAttempt
	}
	s.byExamUser[k] = a.ID
	s.attempts[a.ID] = a
	if g != nil {
		s.grades[gradeKey(*g)] = *g
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) UpdateAttempt(_ context.Context, a Attempt, g *Grade, ev Event) error {
	if _, ok := s.attempts[a.ID]; !ok {
		return ErrAttemptNotFound
	}
	s.attempts[a.ID] = a
	if g != nil {
		s.grades[gradeKey(*g)] = *g
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	a, ok := s.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (s *fakeStore) GetAttemptByExamUser(_ context.Context, examID, userID string) (Attempt, bool, error) {
	id, ok := s.byExamUser[examID+"|"+userID]
	if !ok {
		return Attempt{}, false, nil
	}
	return s.attempts[id], true, nil
}

func (s *fakeStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	var out []Attempt
	for _, a := range s.attempts {
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) ListGrades(_ context.Context, userID, courseID string) ([]Grade, error) {
	var out []Grade
	for _, g := range s.grades {
		if g.UserID == userID && (courseID == "" || g.CourseID == courseID) {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeFacts struct {
	courses   map[string]rbac.CourseRef // courseID -> ref
	byLesson  map[string]string         // lessonID -> courseID
	enrolled  map[string]bool           // userID|courseID
	completed map[string]bool           // userID|courseID
}

func newFakeFacts() *fakeFacts {
	return &fakeFacts{
		courses:   map[string]rbac.CourseRef{},
		byLesson:  map[string]string{},
		enrolled:  map[string]bool{},
		completed: map[string]bool{},
	}
}

func (f *fakeFacts) ResolveCourse(_ context.Context, p rbac.Parent) (rbac.CourseRef, error) {
	id := p.ID
	if p.Kind == rbac.ParentLesson {
		var ok bool
		if id, ok = f.byLesson[p.ID]; !ok {
			return rbac.CourseRef{}, rbac.ErrParentNotFound
		}
	}
	ref, ok := f.courses[id]
	if !ok {
		return rbac.CourseRef{}, rbac.ErrParentNotFound
	}
	return ref, nil
}

func (f *fakeFacts) HasActiveEnrollment(_ context.Context, userID, courseID string) (bool, error) {
	return f.enrolled[userID+"|"+courseID], nil
}

func (f *fakeFacts) AllLessonsCompleted(_ context.Context, userID, courseID string) (bool, error) {
	return f.completed[userID+"|"+courseID], nil
}

/* ---------------- fixtures ---------------- */

var (
	teacherID = rbac.Identity{UserID: "t1", Role: rbac.RoleTeacher}
	otherTeac = rbac.Identity{UserID: "t2", Role: rbac.RoleTeacher}
	studentID = rbac.Identity{UserID: "s1", Role: rbac.RoleStudent}
	adminID   = rbac.Identity{UserID: "adm", Role: rbac.RoleAdmin}
)

func intp(v int) *int         { return &v }
func fltp(v float64) *float64 { return &v }

func objectiveExam() Exam {
	return Exam{
		ID:           "ex1",
		CourseID:     "c1",
		Title:        "Unit 1",
		MaxScore:     10,
		PassingScore: 6,
		EndAt:        time.Now().Add(time.Hour).Unix(),
		Questions: []Question{
			{ID: "q1", Type: TypeMultipleChoice, Choices: []string{"a", "b", "c"}, CorrectIndex: intp(1), Points: 6},
			{ID: "q2", Type: TypeMultipleChoice, Choices: []string{"x", "y"}, CorrectIndex: intp(0), Points: 4},
		},
	}
}

func mixedExam() Exam {
	e := objectiveExam()
	e.ID = "ex2"
	e.MaxScore = 15
	e.Questions = append(e.Questions,
		Question{ID: "q3", Type: TypeEssay, Prompt: "discuss", Points: 5})
	return e
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeFacts) {
	t.Helper()
	store := newFakeStore()
	facts := newFakeFacts()
	facts.courses["c1"] = rbac.CourseRef{ID: "c1", TeacherID: "t1"}
	facts.enrolled["s1|c1"] = true
	facts.completed["s1|c1"] = true
	svc := NewService(store, facts, rbac.NewAuthorizer(facts))
	store.exams["ex1"] = objectiveExam()
	store.exams["ex2"] = mixedExam()
	return svc, store, facts
}

func wantKind(t *testing.T, err error, kind fault.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want %s error, got nil", kind)
	}
	if got := fault.KindOf(err); got != kind {
		t.Fatalf("want kind %s, got %s (%v)", kind, got, err)
	}
}

/* ---------------- submission ---------------- */

func TestSubmitAutoGraded(t *testing.T) {
	svc, store, _ := newTestService(t)

	res, err := svc.Submit(context.Background(), studentID, "ex1",
		map[string]any{"q1": 1, "q2": 0})
	if err != nil {
		t.Fatal(err)
	}
	a := res.Attempt
	if a.Status != StatusAutoGraded {
		t.Fatalf("status = %s", a.Status)
	}
	if a.Score == nil || *a.Score != 10 {
		t.Fatalf("score = %v", a.Score)
	}
	if res.Percentage == nil || *res.Percentage != 100 {
		t.Fatalf("percentage = %v", res.Percentage)
	}
	if res.Letter == nil || *res.Letter != grading.LetterAPlus {
		t.Fatalf("letter = %v", res.Letter)
	}
	g, ok := store.grades["s1|c1|exam|ex1"]
	if !ok {
		t.Fatal("grade record not upserted")
	}
	if g.Score != 10 || g.MaxScore != 10 {
		t.Fatalf("grade = %+v", g)
	}
	if len(store.events) != 1 || store.events[0].Type != EventAttemptSubmitted {
		t.Fatalf("events = %+v", store.events)
	}
}

func TestSubmitPartialAnswers(t *testing.T) {
	svc, _, _ := newTestService(t)

	// one right, one wrong
	res, err := svc.Submit(context.Background(), studentID, "ex1",
		map[string]any{"q1": 1, "q2": 1})
	if err != nil {
		t.Fatal(err)
	}
	if *res.Attempt.Score != 6 {
		t.Fatalf("score = %v", *res.Attempt.Score)
	}
	if *res.Percentage != 60 || *res.Letter != grading.LetterD {
		t.Fatalf("pct=%v letter=%v", *res.Percentage, *res.Letter)
	}
}

func TestSubmitMixedDefersToManual(t *testing.T) {
	svc, store, _ := newTestService(t)

	res, err := svc.Submit(context.Background(), studentID, "ex2",
		map[string]any{"q1": 1, "q2": 0, "q3": "my essay"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempt.Status != StatusPending {
		t.Fatalf("status = %s", res.Attempt.Status)
	}
	if res.Attempt.Score != nil {
		t.Fatalf("pending attempt must have nil score, got %v", *res.Attempt.Score)
	}
	if res.Percentage != nil || res.Letter != nil {
		t.Fatal("pending attempt must not carry percentage or letter")
	}
	if _, ok := store.grades["s1|c1|exam|ex2"]; ok {
		t.Fatal("no grade record before manual grading")
	}
}

func TestSubmitDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, studentID, "ex1", map[string]any{"q1": 1}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Submit(ctx, studentID, "ex1", map[string]any{"q1": 1})
	wantKind(t, err, fault.KindDuplicateAttempt)
}

func TestSubmitRaceLostToUniqueIndex(t *testing.T) {
	svc, store, _ := newTestService(t)
	// simulate the pre-check passing but the insert hitting the unique index
	store.forceCreateDup = true

	_, err := svc.Submit(context.Background(), studentID, "ex1", map[string]any{})
	wantKind(t, err, fault.KindDuplicateAttempt)
}

func TestSubmitPreconditions(t *testing.T) {
	svc, _, facts := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, studentID, "missing", nil)
	wantKind(t, err, fault.KindNotFound)

	// unenrolled student
	unenrolled := rbac.Identity{UserID: "s9", Role: rbac.RoleStudent}
	_, err = svc.Submit(ctx, unenrolled, "ex1", nil)
	wantKind(t, err, fault.KindForbidden)

	// enrolled but lessons incomplete
	facts.enrolled["s9|c1"] = true
	_, err = svc.Submit(ctx, unenrolled, "ex1", nil)
	wantKind(t, err, fault.KindInvalidState)

	// admins skip both checks
	if _, err := svc.Submit(ctx, adminID, "ex1", map[string]any{"q1": 1, "q2": 0}); err != nil {
		t.Fatalf("admin submit: %v", err)
	}
}

func TestSubmitCapsAtMaxScore(t *testing.T) {
	svc, store, _ := newTestService(t)
	// weights exceed the nominal maximum; raw sum caps at MaxScore
	e := objectiveExam()
	e.ID = "ex3"
	e.MaxScore = 8
	store.exams["ex3"] = e

	res, err := svc.Submit(context.Background(), studentID, "ex3",
		map[string]any{"q1": 1, "q2": 0})
	if err != nil {
		t.Fatal(err)
	}
	if *res.Attempt.Score != 8 {
		t.Fatalf("score = %v, want capped 8", *res.Attempt.Score)
	}
}

/* ---------------- manual grading ---------------- */

func submitMixed(t *testing.T, svc *Service) string {
	t.Helper()
	res, err := svc.Submit(context.Background(), studentID, "ex2",
		map[string]any{"q1": 1, "q2": 0, "q3": "essay text"})
	if err != nil {
		t.Fatal(err)
	}
	return res.Attempt.ID
}

func TestGradeManualPerQuestion(t *testing.T) {
	svc, store, _ := newTestService(t)
	attemptID := submitMixed(t, svc)

	res, err := svc.GradeManual(context.Background(), teacherID, attemptID,
		ManualGradeInput{Scores: map[string]float64{"q3": 3}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempt.Status != StatusGraded {
		t.Fatalf("status = %s", res.Attempt.Status)
	}
	if *res.Attempt.Score != 13 { // 6 + 4 objective, 3 manual
		t.Fatalf("score = %v", *res.Attempt.Score)
	}
	if *res.Percentage < 86.66 || *res.Percentage > 86.67 {
		t.Fatalf("percentage = %v", *res.Percentage)
	}
	if *res.Letter != grading.LetterBPlus {
		t.Fatalf("letter = %v", *res.Letter)
	}
	if _, ok := store.grades["s1|c1|exam|ex2"]; !ok {
		t.Fatal("grade record missing after manual grading")
	}
}

func TestGradeManualCapsQuestionPoints(t *testing.T) {
	svc, _, _ := newTestService(t)
	attemptID := submitMixed(t, svc)

	res, err := svc.GradeManual(context.Background(), teacherID, attemptID,
		ManualGradeInput{Scores: map[string]float64{"q3": 99}})
	if err != nil {
		t.Fatal(err)
	}
	if *res.Attempt.Score != 15 { // manual capped at the question's 5 points
		t.Fatalf("score = %v", *res.Attempt.Score)
	}
}

func TestGradeManualFinalScoreAndBonusCap(t *testing.T) {
	svc, store, _ := newTestService(t)
	e := mixedExam()
	e.ID = "ex100"
	e.MaxScore = 100
	store.exams["ex100"] = e

	res, err := svc.Submit(context.Background(), studentID, "ex100",
		map[string]any{"q3": "essay"})
	if err != nil {
		t.Fatal(err)
	}
	graded, err := svc.GradeManual(context.Background(), teacherID, res.Attempt.ID,
		ManualGradeInput{FinalScore: fltp(100), Bonus: 40})
	if err != nil {
		t.Fatal(err)
	}
	if *graded.Attempt.Score != 140 {
		t.Fatalf("score = %v, want 140", *graded.Attempt.Score)
	}
	// percentage is computed against MaxScore, not the 1.5x ceiling
	if *graded.Percentage != 140 {
		t.Fatalf("percentage = %v", *graded.Percentage)
	}

	// a bigger bonus hits the ceiling
	res2, err := svc.Submit(context.Background(), adminID, "ex100",
		map[string]any{"q3": "essay"})
	if err != nil {
		t.Fatal(err)
	}
	graded2, err := svc.GradeManual(context.Background(), teacherID, res2.Attempt.ID,
		ManualGradeInput{FinalScore: fltp(120), Bonus: 60})
	if err != nil {
		t.Fatal(err)
	}
	if *graded2.Attempt.Score != 150 {
		t.Fatalf("score = %v, want ceiling 150", *graded2.Attempt.Score)
	}
}

func TestGradeManualGuards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	attemptID := submitMixed(t, svc)

	_, err := svc.GradeManual(ctx, teacherID, "missing", ManualGradeInput{FinalScore: fltp(1)})
	wantKind(t, err, fault.KindNotFound)

	// non-owner teacher cannot grade
	_, err = svc.GradeManual(ctx, otherTeac, attemptID, ManualGradeInput{FinalScore: fltp(1)})
	wantKind(t, err, fault.KindForbidden)

	// missing input
	_, err = svc.GradeManual(ctx, teacherID, attemptID, ManualGradeInput{})
	wantKind(t, err, fault.KindInvalidState)

	if _, err := svc.GradeManual(ctx, teacherID, attemptID, ManualGradeInput{FinalScore: fltp(10)}); err != nil {
		t.Fatal(err)
	}
	// second grading is rejected
	_, err = svc.GradeManual(ctx, teacherID, attemptID, ManualGradeInput{FinalScore: fltp(10)})
	wantKind(t, err, fault.KindInvalidState)
}

func TestGradeManualRejectsAutoGraded(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	res, err := svc.Submit(ctx, studentID, "ex1", map[string]any{"q1": 1, "q2": 0})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.GradeManual(ctx, teacherID, res.Attempt.ID, ManualGradeInput{FinalScore: fltp(5)})
	wantKind(t, err, fault.KindInvalidState)
}

/* ---------------- amendment ---------------- */

func TestAmendScore(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	attemptID := submitMixed(t, svc)
	if _, err := svc.GradeManual(ctx, teacherID, attemptID,
		ManualGradeInput{Scores: map[string]float64{"q3": 3}}); err != nil {
		t.Fatal(err)
	}

	// increment by bonus
	res, err := svc.AmendScore(ctx, teacherID, attemptID, AmendInput{Bonus: 1})
	if err != nil {
		t.Fatal(err)
	}
	if *res.Attempt.Score != 14 {
		t.Fatalf("score = %v", *res.Attempt.Score)
	}

	// replacement; amendment is repeatable
	res, err = svc.AmendScore(ctx, teacherID, attemptID, AmendInput{FinalScore: fltp(12)})
	if err != nil {
		t.Fatal(err)
	}
	if *res.Attempt.Score != 12 {
		t.Fatalf("score = %v", *res.Attempt.Score)
	}

	// the 1.5x ceiling applies here too (max 15 -> 22.5)
	res, err = svc.AmendScore(ctx, teacherID, attemptID, AmendInput{FinalScore: fltp(100)})
	if err != nil {
		t.Fatal(err)
	}
	if *res.Attempt.Score != 22.5 {
		t.Fatalf("score = %v", *res.Attempt.Score)
	}
}

func TestAmendRequiresGraded(t *testing.T) {
	svc, _, _ := newTestService(t)
	attemptID := submitMixed(t, svc)
	_, err := svc.AmendScore(context.Background(), teacherID, attemptID, AmendInput{Bonus: 1})
	wantKind(t, err, fault.KindInvalidState)
}

/* ---------------- viewing ---------------- */

func TestGetAttemptOwnership(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	attemptID := submitMixed(t, svc)

	if _, err := svc.GetAttempt(ctx, studentID, attemptID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.GetAttempt(ctx, teacherID, attemptID); err != nil {
		t.Fatalf("course teacher read: %v", err)
	}
	_, err := svc.GetAttempt(ctx, otherTeac, attemptID)
	wantKind(t, err, fault.KindForbidden)
}

func TestExamForViewerRedaction(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	// exam still open: student sees no answer keys
	e, err := svc.ExamForViewer(ctx, studentID, "ex1")
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range e.Questions {
		if q.CorrectIndex != nil || q.Explanation != "" {
			t.Fatalf("question %s not redacted", q.ID)
		}
	}

	// course teacher always sees keys
	e, err = svc.ExamForViewer(ctx, teacherID, "ex1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Questions[0].CorrectIndex == nil {
		t.Fatal("teacher must see answer keys")
	}

	// unenrolled viewer is rejected outright
	_, err = svc.ExamForViewer(ctx, rbac.Identity{UserID: "s9", Role: rbac.RoleStudent}, "ex1")
	wantKind(t, err, fault.KindForbidden)

	// passing attempt on an ended exam reveals keys
	if _, err := svc.Submit(ctx, studentID, "ex1", map[string]any{"q1": 1, "q2": 0}); err != nil {
		t.Fatal(err)
	}
	ended := store.exams["ex1"]
	ended.EndAt = time.Now().Add(-time.Hour).Unix()
	store.exams["ex1"] = ended

	e, err = svc.ExamForViewer(ctx, studentID, "ex1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Questions[0].CorrectIndex == nil {
		t.Fatal("passing student must see keys after the end date")
	}
}

func TestSaveExamValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	e := objectiveExam()
	e.ID = ""
	saved, err := svc.SaveExam(ctx, teacherID, e)
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" {
		t.Fatal("exam id not assigned")
	}

	bad := objectiveExam()
	bad.Questions[0].Choices = []string{"only one"}
	_, err = svc.SaveExam(ctx, teacherID, bad)
	wantKind(t, err, fault.KindInvalidState)

	bad = objectiveExam()
	bad.Questions[0].CorrectIndex = intp(9)
	_, err = svc.SaveExam(ctx, teacherID, bad)
	wantKind(t, err, fault.KindInvalidState)

	_, err = svc.SaveExam(ctx, otherTeac, objectiveExam())
	wantKind(t, err, fault.KindForbidden)
}

func TestListAttemptsRequiresCourseWriter(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	submitMixed(t, svc)

	list, err := svc.ListAttempts(ctx, teacherID, "ex2", AttemptListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("attempts = %d", len(list))
	}
	_, err = svc.ListAttempts(ctx, otherTeac, "ex2", AttemptListOpts{})
	wantKind(t, err, fault.KindForbidden)
}

func TestGradeSummary(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// 100% on ex1 (A+, weight 4.0), then 60% on ex2 after manual grading (D, 1.0)
	if _, err := svc.Submit(ctx, studentID, "ex1", map[string]any{"q1": 1, "q2": 0}); err != nil {
		t.Fatal(err)
	}
	attemptID := submitMixed(t, svc)
	if _, err := svc.GradeManual(ctx, teacherID, attemptID, ManualGradeInput{FinalScore: fltp(9)}); err != nil {
		t.Fatal(err)
	}

	sum, err := svc.GradeSummary(ctx, studentID, "", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Grades) != 2 {
		t.Fatalf("grades = %d", len(sum.Grades))
	}
	if sum.GPA != 2.5 { // (4.0 + 1.0) / 2
		t.Fatalf("gpa = %v", sum.GPA)
	}

	// students cannot read someone else's summary
	_, err = svc.GradeSummary(ctx, studentID, "other", "c1")
	wantKind(t, err, fault.KindForbidden)
}

func TestRegradeIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	attemptID := submitMixed(t, svc)

	if _, err := svc.GradeManual(ctx, teacherID, attemptID,
		ManualGradeInput{Scores: map[string]float64{"q3": 3}}); err != nil {
		t.Fatal(err)
	}
	before := len(store.grades)
	// amendment re-upserts the same grade row, never a second one
	if _, err := svc.AmendScore(ctx, teacherID, attemptID, AmendInput{FinalScore: fltp(13)}); err != nil {
		t.Fatal(err)
	}
	if len(store.grades) != before {
		t.Fatalf("grade rows grew from %d to %d", before, len(store.grades))
	}
}
