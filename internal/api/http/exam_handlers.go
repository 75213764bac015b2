package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/exam"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

func SaveExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			badRequest(w, "bad json")
			return
		}
		id := rbac.IdentityFromContext(r.Context())
		saved, err := svc.SaveExam(r.Context(), id, e)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

// GetExamHandler serves the exam with correct answers and explanations
// included or stripped per the reveal policy, re-evaluated on every request.
func GetExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		e, err := svc.ExamForViewer(r.Context(), id, chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func SubmitAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answers map[string]any `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		id := rbac.IdentityFromContext(r.Context())
		res, err := svc.Submit(r.Context(), id, chi.URLParam(r, "examID"), req.Answers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func GradeAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.ManualGradeInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			badRequest(w, "bad json")
			return
		}
		id := rbac.IdentityFromContext(r.Context())
		res, err := svc.GradeManual(r.Context(), id, chi.URLParam(r, "attemptID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func AmendScoreHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in exam.AmendInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			badRequest(w, "bad json")
			return
		}
		id := rbac.IdentityFromContext(r.Context())
		res, err := svc.AmendScore(r.Context(), id, chi.URLParam(r, "attemptID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func GetAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		res, err := svc.GetAttempt(r.Context(), id, chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func ListAttemptsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := exam.AttemptListOpts{
			UserID: r.URL.Query().Get("user_id"),
			Status: exam.AttemptStatus(r.URL.Query().Get("status")),
		}
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
			opts.Limit = v
		}
		if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
			opts.Offset = v
		}
		id := rbac.IdentityFromContext(r.Context())
		list, err := svc.ListAttempts(r.Context(), id, chi.URLParam(r, "examID"), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func ListCourseExamsHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		list, err := svc.ListExams(r.Context(), id, chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func ListGradesHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := rbac.IdentityFromContext(r.Context())
		sum, err := svc.GradeSummary(r.Context(), id,
			r.URL.Query().Get("user_id"), chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}
