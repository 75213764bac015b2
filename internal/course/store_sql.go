package course

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) CreateCourse(ctx context.Context, c Course) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (id, teacher_id, title, status, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.TeacherID, c.Title, string(c.Status), time.Now().Unix())
	return err
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, teacher_id, title, status, created_at FROM courses WHERE id=$1`, id)
	var c Course
	if err := row.Scan(&c.ID, &c.TeacherID, &c.Title, &c.Status, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, err
	}
	return c, nil
}

func (s *SQLStore) ListCourses(ctx context.Context, opts ListOpts) ([]Course, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT id, teacher_id, title, status, created_at FROM courses WHERE 1=1`
	args := []any{}
	n := 0
	next := func() string { n++; return placeholder(n) }
	if opts.TeacherID != "" {
		q += ` AND teacher_id=` + next()
		args = append(args, opts.TeacherID)
	}
	if opts.Status != "" {
		q += ` AND status=` + next()
		args = append(args, string(opts.Status))
	}
	q += ` ORDER BY created_at DESC LIMIT ` + next()
	args = append(args, limit)
	q += ` OFFSET ` + next()
	args = append(args, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.TeacherID, &c.Title, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetCourseStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE courses SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) AddPrerequisite(ctx context.Context, courseID, prereqID string) error {
	// duplicates collapse on the composite primary key
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1,$2)
		 ON CONFLICT DO NOTHING`,
		courseID, prereqID)
	return err
}

func (s *SQLStore) ListPrerequisites(ctx context.Context, courseID string) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.teacher_id, c.title, c.status, c.created_at
		   FROM course_prerequisites p
		   JOIN courses c ON c.id = p.prerequisite_id
		  WHERE p.course_id=$1`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.TeacherID, &c.Title, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListPrerequisiteIDs(ctx context.Context, courseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prerequisite_id FROM course_prerequisites WHERE course_id=$1`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateLesson(ctx context.Context, l Lesson) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lessons (id, course_id, title, position, resource_key)
		 VALUES ($1,$2,$3,$4,$5)`,
		l.ID, l.CourseID, l.Title, l.Position, l.ResourceKey)
	return err
}

func (s *SQLStore) GetLesson(ctx context.Context, id string) (Lesson, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, position, resource_key FROM lessons WHERE id=$1`, id)
	var l Lesson
	if err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.Position, &l.ResourceKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lesson{}, ErrLessonNotFound
		}
		return Lesson{}, err
	}
	return l, nil
}

func (s *SQLStore) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, title, position, resource_key
		   FROM lessons WHERE course_id=$1 ORDER BY position`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.Position, &l.ResourceKey); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkLessonComplete(ctx context.Context, userID, lessonID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lesson_progress (user_id, lesson_id, completed_at)
		 VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
		userID, lessonID, time.Now().Unix())
	return err
}

func (s *SQLStore) AllLessonsCompleted(ctx context.Context, userID, courseID string) (bool, error) {
	// complete iff no lesson in the course lacks a progress row
	var missing int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lessons l
		  WHERE l.course_id=$1
		    AND NOT EXISTS (
		      SELECT 1 FROM lesson_progress p
		       WHERE p.lesson_id=l.id AND p.user_id=$2)`,
		courseID, userID).Scan(&missing)
	if err != nil {
		return false, err
	}
	return missing == 0, nil
}

func (s *SQLStore) CreateEnrollment(ctx context.Context, e Enrollment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (id, user_id, course_id, status, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.ID, e.UserID, e.CourseID, string(e.Status), time.Now().Unix())
	return err
}

func (s *SQLStore) GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, course_id, status, created_at
		   FROM enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID)
	var e Enrollment
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, false, nil
		}
		return Enrollment{}, false, err
	}
	return e, true, nil
}

func (s *SQLStore) SetEnrollmentStatus(ctx context.Context, id string, status EnrollmentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("enrollment not found")
	}
	return nil
}

func (s *SQLStore) ScoredAttempts(ctx context.Context, userID, courseID string) ([]ScoredAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.score, e.max_score
		   FROM attempts a
		   JOIN exams e ON e.id = a.exam_id
		  WHERE a.user_id=$1 AND e.course_id=$2 AND a.score IS NOT NULL`,
		userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScoredAttempt
	for rows.Next() {
		var sa ScoredAttempt
		if err := rows.Scan(&sa.Score, &sa.MaxScore); err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}

// ---- rbac.CourseFacts ----

func (s *SQLStore) ResolveCourse(ctx context.Context, parent rbac.Parent) (rbac.CourseRef, error) {
	var (
		id, teacherID string
		err           error
	)
	switch parent.Kind {
	case rbac.ParentCourse:
		err = s.db.QueryRowContext(ctx,
			`SELECT id, teacher_id FROM courses WHERE id=$1`, parent.ID).
			Scan(&id, &teacherID)
	case rbac.ParentLesson:
		err = s.db.QueryRowContext(ctx,
			`SELECT c.id, c.teacher_id FROM lessons l
			   JOIN courses c ON c.id = l.course_id
			  WHERE l.id=$1`, parent.ID).
			Scan(&id, &teacherID)
	default:
		return rbac.CourseRef{}, rbac.ErrParentNotFound
	}
	if errors.Is(err, sql.ErrNoRows) {
		return rbac.CourseRef{}, rbac.ErrParentNotFound
	}
	if err != nil {
		return rbac.CourseRef{}, err
	}
	return rbac.CourseRef{ID: id, TeacherID: teacherID}, nil
}

func (s *SQLStore) HasActiveEnrollment(ctx context.Context, userID, courseID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments
		  WHERE user_id=$1 AND course_id=$2 AND status=$3`,
		userID, courseID, string(EnrollmentActive)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// both pgx and modernc sqlite accept $N placeholders
func placeholder(n int) string { return "$" + strconv.Itoa(n) }
