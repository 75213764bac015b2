package course_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/course"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/db"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

func openStore(t *testing.T) (*course.SQLStore, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return course.NewSQLStore(dbh), dbh
}

func TestSQLStoreEnrollmentUnique(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()

	if err := st.CreateCourse(ctx, course.Course{ID: "c1", TeacherID: "t1", Title: "Fiqh I", Status: course.StatusPublished}); err != nil {
		t.Fatal(err)
	}
	e := course.Enrollment{ID: "en1", UserID: "u1", CourseID: "c1", Status: course.EnrollmentActive}
	if err := st.CreateEnrollment(ctx, e); err != nil {
		t.Fatal(err)
	}

	e.ID = "en2"
	err := st.CreateEnrollment(ctx, e)
	if err == nil || !db.IsUniqueViolation(err) {
		t.Fatalf("want unique violation, got %v", err)
	}

	active, err := st.HasActiveEnrollment(ctx, "u1", "c1")
	if err != nil || !active {
		t.Fatalf("enrollment not visible: %v %v", active, err)
	}

	// dropped enrollments no longer count as active
	if err := st.SetEnrollmentStatus(ctx, "en1", course.EnrollmentDropped); err != nil {
		t.Fatal(err)
	}
	active, _ = st.HasActiveEnrollment(ctx, "u1", "c1")
	if active {
		t.Fatal("dropped enrollment still reported active")
	}
}

func TestSQLStoreLessonProgress(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()

	if err := st.CreateCourse(ctx, course.Course{ID: "c1", TeacherID: "t1", Title: "Seerah", Status: course.StatusPublished}); err != nil {
		t.Fatal(err)
	}
	for _, l := range []course.Lesson{
		{ID: "l1", CourseID: "c1", Title: "Intro", Position: 1},
		{ID: "l2", CourseID: "c1", Title: "Makkah", Position: 2},
	} {
		if err := st.CreateLesson(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	done, err := st.AllLessonsCompleted(ctx, "u1", "c1")
	if err != nil || done {
		t.Fatalf("no progress yet, want incomplete: %v %v", done, err)
	}

	if err := st.MarkLessonComplete(ctx, "u1", "l1"); err != nil {
		t.Fatal(err)
	}
	// idempotent
	if err := st.MarkLessonComplete(ctx, "u1", "l1"); err != nil {
		t.Fatal(err)
	}
	if done, _ := st.AllLessonsCompleted(ctx, "u1", "c1"); done {
		t.Fatal("one of two lessons done, want incomplete")
	}

	if err := st.MarkLessonComplete(ctx, "u1", "l2"); err != nil {
		t.Fatal(err)
	}
	if done, _ := st.AllLessonsCompleted(ctx, "u1", "c1"); !done {
		t.Fatal("all lessons done, want complete")
	}

	// a lesson resolves to its owning course for authorization
	ref, err := st.ResolveCourse(ctx, rbac.LessonParent("l2"))
	if err != nil || ref.ID != "c1" || ref.TeacherID != "t1" {
		t.Fatalf("resolve lesson parent: %+v %v", ref, err)
	}
}

func TestSQLStoreScoredAttempts(t *testing.T) {
	st, dbh := openStore(t)
	ctx := context.Background()

	if err := st.CreateCourse(ctx, course.Course{ID: "c1", TeacherID: "t1", Title: "Aqeedah", Status: course.StatusPublished}); err != nil {
		t.Fatal(err)
	}
	// seed exam + attempts directly; score NULL rows must be excluded
	now := time.Now().Unix()
	if _, err := dbh.Exec(
		`INSERT INTO exams (id, course_id, title, max_score, passing_score, start_at, end_at, questions_json, created_at)
		 VALUES ('e1','c1','Final',20,12,0,0,'[]',?)`, now); err != nil {
		t.Fatal(err)
	}
	if _, err := dbh.Exec(
		`INSERT INTO attempts (id, exam_id, user_id, status, score, answers_json, submitted_at)
		 VALUES ('a1','e1','u1','auto_graded',15,'{}',?)`, now); err != nil {
		t.Fatal(err)
	}
	if _, err := dbh.Exec(
		`INSERT INTO attempts (id, exam_id, user_id, status, score, answers_json, submitted_at)
		 VALUES ('a2','e1','u2','pending',NULL,'{}',?)`, now); err != nil {
		t.Fatal(err)
	}

	got, err := st.ScoredAttempts(ctx, "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Score != 15 || got[0].MaxScore != 20 {
		t.Fatalf("scored attempts: %+v", got)
	}

	got, _ = st.ScoredAttempts(ctx, "u2", "c1")
	if len(got) != 0 {
		t.Fatalf("pending attempt must not count: %+v", got)
	}
}
