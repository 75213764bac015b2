package course

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

type Course struct {
	ID        string `json:"id"`
	TeacherID string `json:"teacher_id"`
	Title     string `json:"title"`
	Status    Status `json:"status"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

type Lesson struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Position    int    `json:"position"`
	ResourceKey string `json:"resource_key,omitempty"` // blob store key, optional
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

type Enrollment struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	CourseID  string           `json:"course_id"`
	Status    EnrollmentStatus `json:"status"`
	CreatedAt int64            `json:"created_at,omitempty"`
}

// ScoredAttempt is the (score, max) pair the prerequisite evaluator averages
// over. Only attempts with a non-null score are returned by the store.
type ScoredAttempt struct {
	Score    float64
	MaxScore float64
}
