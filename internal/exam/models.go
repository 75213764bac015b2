package exam

import (
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/grading"
)

// Question types mirror the grading engine's strategies.
const (
	TypeMultipleChoice = grading.TypeMultipleChoice
	TypeText           = grading.TypeText
	TypeEssay          = grading.TypeEssay
)

type Question struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"` // multiple_choice, text, essay
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
	// CorrectIndex and Explanation are stripped before serving unless the
	// reveal policy allows them.
	CorrectIndex *int    `json:"correct_index,omitempty"`
	Explanation  string  `json:"explanation,omitempty"`
	Points       float64 `json:"points"`
	Position     int     `json:"position"`
}

type Exam struct {
	ID           string     `json:"id"`
	CourseID     string     `json:"course_id"`
	Title        string     `json:"title"`
	MaxScore     float64    `json:"max_score"`
	PassingScore float64    `json:"passing_score"`
	StartAt      int64      `json:"start_at"` // unix seconds
	EndAt        int64      `json:"end_at"`
	Questions    []Question `json:"questions"`
	CreatedAt    int64      `json:"created_at,omitempty"`
}

// AttemptStatus is the closed state set of the attempt lifecycle.
//
//	(submit) ──► auto_graded            fully objective, terminal
//	(submit) ──► pending ──► graded     manual grading; graded repeats only
//	                                    via score amendment
type AttemptStatus string

const (
	StatusPending    AttemptStatus = "pending"
	StatusAutoGraded AttemptStatus = "auto_graded"
	StatusGraded     AttemptStatus = "graded"
)

type Attempt struct {
	ID          string         `json:"id"`
	ExamID      string         `json:"exam_id"`
	UserID      string         `json:"user_id"`
	Status      AttemptStatus  `json:"status"`
	Score       *float64       `json:"score"`
	Answers     map[string]any `json:"answers"` // questionID -> answer payload
	SubmittedAt int64          `json:"submitted_at,omitempty"`
	GradedAt    *int64         `json:"graded_at,omitempty"`
}

// GradeTypeExam tags exam-derived Grade rows; homework and quizzes reuse the
// same table with their own type.
const GradeTypeExam = "exam"

// Grade is a system-derived record, never writable by a caller directly.
// Upserts key on (user, course, type, item).
type Grade struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	CourseID   string          `json:"course_id"`
	Type       string          `json:"type"`
	ItemID     string          `json:"item_id"`
	Score      float64         `json:"score"`
	MaxScore   float64         `json:"max_score"`
	Percentage *float64        `json:"percentage"`
	Letter     *grading.Letter `json:"letter_grade"`
}
