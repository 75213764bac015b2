package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/course"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

// Handlers only; routes remain in main.go.

func CreateCourseHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		id := rbac.IdentityFromContext(r.Context())
		c, err := cat.CreateCourse(r.Context(), id, req.Title)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func GetCourseHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		c, err := cat.GetCourse(r.Context(), id, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func ListCoursesHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		opts := course.ListOpts{
			TeacherID: r.URL.Query().Get("teacher_id"),
		}
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
			opts.Limit = v
		}
		if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
			opts.Offset = v
		}
		list, err := cat.ListCourses(r.Context(), id, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func PublishCourseHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		c, err := cat.Publish(r.Context(), id, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func AddPrerequisiteHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PrerequisiteID string `json:"prerequisite_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PrerequisiteID == "" {
			badRequest(w, "prerequisite_id required")
			return
		}
		id := rbac.IdentityFromContext(r.Context())
		courseID := chi.URLParam(r, "courseID")
		if err := cat.AddPrerequisite(r.Context(), id, courseID, req.PrerequisiteID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"course_id":       courseID,
			"prerequisite_id": req.PrerequisiteID,
		})
	}
}

func ListPrerequisitesHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := cat.Prerequisites(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CreateLessonHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title    string `json:"title"`
			Position int    `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		id := rbac.IdentityFromContext(r.Context())
		l, err := cat.CreateLesson(r.Context(), id, course.Lesson{
			CourseID: chi.URLParam(r, "courseID"),
			Title:    req.Title,
			Position: req.Position,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func ListLessonsHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		list, err := cat.Lessons(r.Context(), id, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func CompleteLessonHandler(cat *course.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		if err := cat.CompleteLesson(r.Context(), id, chi.URLParam(r, "lessonID")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"lesson_id": chi.URLParam(r, "lessonID"), "status": "completed"})
	}
}

func EnrollHandler(gate *course.EnrollmentGate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CourseID string `json:"course_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CourseID == "" {
			badRequest(w, "course_id required")
			return
		}
		id := rbac.IdentityFromContext(r.Context())
		e, err := gate.Enroll(r.Context(), id, req.CourseID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}
