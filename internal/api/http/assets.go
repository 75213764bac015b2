package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/storage"
)

// Lesson resources ride the same authorizer as every other content-scoped
// operation: writers upload, readers download.

func UploadLessonResourceHandler(authz *rbac.Authorizer, bs storage.ResourceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID := chi.URLParam(r, "lessonID")
		id := rbac.IdentityFromContext(r.Context())
		dec, err := authz.CheckWrite(r.Context(), id, rbac.LessonParent(lessonID))
		if err != nil {
			writeError(w, err)
			return
		}
		if !dec.Allowed {
			writeJSON(w, http.StatusForbidden, errorBody{Status: http.StatusForbidden, Message: "not the course teacher"})
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "file required")
			return
		}
		defer f.Close()
		key := storage.LessonKey(dec.CourseID, lessonID, hdr.Filename)
		if _, err := bs.Save(key, f); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": key})
	}
}

func DownloadLessonResourceHandler(authz *rbac.Authorizer, bs storage.ResourceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lessonID := chi.URLParam(r, "lessonID")
		id := rbac.IdentityFromContext(r.Context())
		dec, err := authz.CheckRead(r.Context(), id, rbac.LessonParent(lessonID))
		if err != nil {
			writeError(w, err)
			return
		}
		if !dec.Allowed {
			writeJSON(w, http.StatusForbidden, errorBody{Status: http.StatusForbidden, Message: "not enrolled in this course"})
			return
		}
		key := storage.LessonKey(dec.CourseID, lessonID, chi.URLParam(r, "filename"))
		rc, err := bs.Open(key)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorBody{Status: http.StatusNotFound, Message: "resource not found"})
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	}
}
