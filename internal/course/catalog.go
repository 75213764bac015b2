package course

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/fault"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

// Catalog is the authoring and browsing surface for courses and lessons.
// Every content-scoped operation goes through the Authorizer rather than
// re-implementing role branches.
type Catalog struct {
	store Store
	authz *rbac.Authorizer
}

func NewCatalog(store Store, authz *rbac.Authorizer) *Catalog {
	return &Catalog{store: store, authz: authz}
}

func (c *Catalog) CreateCourse(ctx context.Context, id rbac.Identity, title string) (Course, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Course{}, fault.InvalidState("title required")
	}
	crs := Course{
		ID:        uuid.NewString(),
		TeacherID: id.UserID,
		Title:     title,
		Status:    StatusDraft,
	}
	if err := c.store.CreateCourse(ctx, crs); err != nil {
		return Course{}, err
	}
	return crs, nil
}

// GetCourse serves published courses to anyone; drafts only to writers.
func (c *Catalog) GetCourse(ctx context.Context, id rbac.Identity, courseID string) (Course, error) {
	crs, err := c.store.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Course{}, fault.NotFound("course not found")
		}
		return Course{}, err
	}
	if crs.Status == StatusPublished {
		return crs, nil
	}
	dec, err := c.authz.CheckWrite(ctx, id, rbac.CourseParent(courseID))
	if err != nil {
		return Course{}, err
	}
	if !dec.Allowed {
		return Course{}, fault.NotFound("course not found")
	}
	return crs, nil
}

func (c *Catalog) ListCourses(ctx context.Context, id rbac.Identity, opts ListOpts) ([]Course, error) {
	// non-admins browsing the catalog only see published courses, unless
	// they filter to their own
	if !id.IsAdmin() && opts.TeacherID != id.UserID {
		opts.Status = StatusPublished
	}
	return c.store.ListCourses(ctx, opts)
}

func (c *Catalog) Publish(ctx context.Context, id rbac.Identity, courseID string) (Course, error) {
	if err := c.requireWrite(ctx, id, courseID); err != nil {
		return Course{}, err
	}
	if err := c.store.SetCourseStatus(ctx, courseID, StatusPublished); err != nil {
		return Course{}, err
	}
	return c.store.GetCourse(ctx, courseID)
}

// AddPrerequisite links prereqID as a requirement of courseID. Self-loops
// and links that would close a cycle are rejected at authoring time; a
// cyclic graph would make every course on the cycle permanently
// unenrollable.
func (c *Catalog) AddPrerequisite(ctx context.Context, id rbac.Identity, courseID, prereqID string) error {
	if err := c.requireWrite(ctx, id, courseID); err != nil {
		return err
	}
	if courseID == prereqID {
		return fault.InvalidState("a course cannot require itself")
	}
	if _, err := c.store.GetCourse(ctx, prereqID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fault.NotFound("prerequisite course not found")
		}
		return err
	}
	cyclic, err := c.reaches(ctx, prereqID, courseID)
	if err != nil {
		return err
	}
	if cyclic {
		return fault.InvalidState("prerequisite link would create a cycle")
	}
	return c.store.AddPrerequisite(ctx, courseID, prereqID)
}

// reaches walks prerequisite edges from fromID looking for targetID.
func (c *Catalog) reaches(ctx context.Context, fromID, targetID string) (bool, error) {
	seen := map[string]bool{}
	stack := []string{fromID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == targetID {
			return true, nil
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		next, err := c.store.ListPrerequisiteIDs(ctx, cur)
		if err != nil {
			return false, err
		}
		stack = append(stack, next...)
	}
	return false, nil
}

func (c *Catalog) Prerequisites(ctx context.Context, courseID string) ([]Course, error) {
	return c.store.ListPrerequisites(ctx, courseID)
}

func (c *Catalog) CreateLesson(ctx context.Context, id rbac.Identity, l Lesson) (Lesson, error) {
	if err := c.requireWrite(ctx, id, l.CourseID); err != nil {
		return Lesson{}, err
	}
	if strings.TrimSpace(l.Title) == "" {
		return Lesson{}, fault.InvalidState("title required")
	}
	l.ID = uuid.NewString()
	if err := c.store.CreateLesson(ctx, l); err != nil {
		return Lesson{}, err
	}
	return l, nil
}

func (c *Catalog) Lessons(ctx context.Context, id rbac.Identity, courseID string) ([]Lesson, error) {
	dec, err := c.authz.CheckRead(ctx, id, rbac.CourseParent(courseID))
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, fault.Forbidden("not enrolled in this course")
	}
	return c.store.ListLessons(ctx, courseID)
}

// CompleteLesson records a learner's progress; read access on the lesson's
// course is required, so unenrolled students cannot mark progress.
func (c *Catalog) CompleteLesson(ctx context.Context, id rbac.Identity, lessonID string) error {
	dec, err := c.authz.CheckRead(ctx, id, rbac.LessonParent(lessonID))
	if err != nil {
		return err
	}
	if !dec.Allowed {
		return fault.Forbidden("not enrolled in this course")
	}
	return c.store.MarkLessonComplete(ctx, id.UserID, lessonID)
}

func (c *Catalog) requireWrite(ctx context.Context, id rbac.Identity, courseID string) error {
	dec, err := c.authz.CheckWrite(ctx, id, rbac.CourseParent(courseID))
	if err != nil {
		return err
	}
	if !dec.Allowed {
		if dec.CourseID == "" {
			return fault.NotFound("course not found")
		}
		return fault.Forbidden("not the course teacher")
	}
	return nil
}
