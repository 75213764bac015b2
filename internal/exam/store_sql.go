package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/db"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/grading"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(sdb *sql.DB) *SQLStore { return &SQLStore{db: sdb} }

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	qj, err := json.Marshal(e.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exams (id, course_id, title, max_score, passing_score, start_at, end_at, questions_json, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE SET
		   title=EXCLUDED.title, max_score=EXCLUDED.max_score,
		   passing_score=EXCLUDED.passing_score, start_at=EXCLUDED.start_at,
		   end_at=EXCLUDED.end_at, questions_json=EXCLUDED.questions_json`,
		e.ID, e.CourseID, e.Title, e.MaxScore, e.PassingScore, e.StartAt, e.EndAt,
		string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, max_score, passing_score, start_at, end_at, questions_json, created_at
		   FROM exams WHERE id=$1`, id)
	return scanExam(row)
}

func (s *SQLStore) ListExams(ctx context.Context, courseID string) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, title, max_score, passing_score, start_at, end_at, questions_json, created_at
		   FROM exams WHERE course_id=$1 ORDER BY created_at DESC`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanExam(row rowScanner) (Exam, error) {
	var e Exam
	var qjson string
	err := row.Scan(&e.ID, &e.CourseID, &e.Title, &e.MaxScore, &e.PassingScore,
		&e.StartAt, &e.EndAt, &qjson, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrExamNotFound
		}
		return Exam{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &e.Questions); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt, g *Grade, ev Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (id, exam_id, user_id, status, score, answers_json, submitted_at, graded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.ExamID, a.UserID, string(a.Status), a.Score, string(aj), a.SubmittedAt, a.GradedAt)
	if err != nil {
		// the unique index on (exam_id, user_id) is the authoritative guard
		if db.IsUniqueViolation(err) {
			return ErrDuplicateAttempt
		}
		return err
	}
	if g != nil {
		if err := upsertGrade(ctx, tx, *g); err != nil {
			return err
		}
	}
	if err := appendEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) UpdateAttempt(ctx context.Context, a Attempt, g *Grade, ev Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE attempts SET status=$1, score=$2, graded_at=$3 WHERE id=$4`,
		string(a.Status), a.Score, a.GradedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAttemptNotFound
	}
	if g != nil {
		if err := upsertGrade(ctx, tx, *g); err != nil {
			return err
		}
	}
	if err := appendEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertGrade(ctx context.Context, tx *sql.Tx, g Grade) error {
	var letter *string
	if g.Letter != nil {
		s := string(*g.Letter)
		letter = &s
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO grades (id, user_id, course_id, type, item_id, score, max_score, percentage, letter_grade, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (user_id, course_id, type, item_id) DO UPDATE SET
		   score=EXCLUDED.score, max_score=EXCLUDED.max_score,
		   percentage=EXCLUDED.percentage, letter_grade=EXCLUDED.letter_grade,
		   updated_at=EXCLUDED.updated_at`,
		uuid.NewString(), g.UserID, g.CourseID, g.Type, g.ItemID,
		g.Score, g.MaxScore, g.Percentage, letter, time.Now().Unix())
	return err
}

func appendEvent(ctx context.Context, tx *sql.Tx, ev Event) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		ev.Type, ev.Key, ev.DataJSON, time.Now().Unix())
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, user_id, status, score, answers_json, submitted_at, graded_at
		   FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAttemptByExamUser(ctx context.Context, examID, userID string) (Attempt, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, user_id, status, score, answers_json, submitted_at, graded_at
		   FROM attempts WHERE exam_id=$1 AND user_id=$2`, examID, userID)
	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, false, nil
		}
		return Attempt{}, false, err
	}
	return a, true, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT id, exam_id, user_id, status, score, answers_json, submitted_at, graded_at
	        FROM attempts WHERE 1=1`
	args := []any{}
	if opts.ExamID != "" {
		args = append(args, opts.ExamID)
		q += ` AND exam_id=$` + itoa(len(args))
	}
	if opts.UserID != "" {
		args = append(args, opts.UserID)
		q += ` AND user_id=$` + itoa(len(args))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += ` AND status=$` + itoa(len(args))
	}
	args = append(args, limit)
	q += ` ORDER BY submitted_at DESC LIMIT $` + itoa(len(args))
	args = append(args, opts.Offset)
	q += ` OFFSET $` + itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var status, ajson string
	var score sql.NullFloat64
	var gradedAt sql.NullInt64
	err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &status, &score, &ajson, &a.SubmittedAt, &gradedAt)
	if err != nil {
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	if score.Valid {
		a.Score = &score.Float64
	}
	if gradedAt.Valid {
		a.GradedAt = &gradedAt.Int64
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		a.Answers = map[string]any{}
	}
	return a, nil
}

func (s *SQLStore) ListGrades(ctx context.Context, userID, courseID string) ([]Grade, error) {
	q := `SELECT id, user_id, course_id, type, item_id, score, max_score, percentage, letter_grade
	        FROM grades WHERE user_id=$1`
	args := []any{userID}
	if courseID != "" {
		q += ` AND course_id=$2`
		args = append(args, courseID)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Grade
	for rows.Next() {
		var g Grade
		var pct sql.NullFloat64
		var letter sql.NullString
		if err := rows.Scan(&g.ID, &g.UserID, &g.CourseID, &g.Type, &g.ItemID,
			&g.Score, &g.MaxScore, &pct, &letter); err != nil {
			return nil, err
		}
		if pct.Valid {
			g.Percentage = &pct.Float64
		}
		if letter.Valid {
			l := letterOf(letter.String)
			g.Letter = &l
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func itoa(n int) string { return strconv.Itoa(n) }

func letterOf(s string) grading.Letter { return grading.Letter(s) }
