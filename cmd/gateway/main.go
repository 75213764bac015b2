package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/api/http"
	auth "github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/auth/middleware"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/config"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/course"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/db"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/exam"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	courseStore := course.NewSQLStore(dbh)
	authz := rbac.NewAuthorizer(courseStore)
	catalog := course.NewCatalog(courseStore, authz)
	gate := course.NewEnrollmentGate(courseStore)

	examStore := exam.NewSQLStore(dbh)
	examSvc := exam.NewService(examStore, courseStore, authz)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT → role in context → RBAC → authorizer inside services)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, true))

		// Courses
		pr.With(rbac.Require("course:create")).
			Post("/courses", api.CreateCourseHandler(catalog))
		pr.With(rbac.Require("course:view")).
			Get("/courses", api.ListCoursesHandler(catalog))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}", api.GetCourseHandler(catalog))
		pr.With(rbac.Require("course:create")).
			Post("/courses/{courseID}/publish", api.PublishCourseHandler(catalog))

		// Prerequisites
		pr.With(rbac.Require("prerequisite:create")).
			Post("/courses/{courseID}/prerequisites", api.AddPrerequisiteHandler(catalog))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}/prerequisites", api.ListPrerequisitesHandler(catalog))

		// Lessons
		pr.With(rbac.Require("lesson:create")).
			Post("/courses/{courseID}/lessons", api.CreateLessonHandler(catalog))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}/lessons", api.ListLessonsHandler(catalog))
		pr.With(rbac.Require("lesson:complete")).
			Post("/courses/{courseID}/lessons/{lessonID}/complete", api.CompleteLessonHandler(catalog))

		// Lesson resources
		pr.With(rbac.Require("lesson:create")).
			Post("/lessons/{lessonID}/resources", api.UploadLessonResourceHandler(authz, bs))
		pr.With(rbac.Require("course:view")).
			Get("/lessons/{lessonID}/resources/{filename}", api.DownloadLessonResourceHandler(authz, bs))

		// Enrollment
		pr.With(rbac.Require("enrollment:create")).
			Post("/enrollments", api.EnrollHandler(gate))

		// Exams
		pr.With(rbac.Require("exam:create")).
			Post("/exams", api.SaveExamHandler(examSvc))
		pr.With(rbac.Require("exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(examSvc))
		pr.With(rbac.Require("exam:view")).
			Get("/courses/{courseID}/exams", api.ListCourseExamsHandler(examSvc))

		// Attempts
		pr.With(rbac.Require("attempt:create")).
			Post("/exams/{examID}/attempts", api.SubmitAttemptHandler(examSvc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(examSvc))
		pr.With(rbac.Require("attempt:view-all")).
			Get("/exams/{examID}/attempts", api.ListAttemptsHandler(examSvc))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/grade", api.GradeAttemptHandler(examSvc))
		pr.With(rbac.Require("attempt:grade")).
			Post("/attempts/{attemptID}/score", api.AmendScoreHandler(examSvc))

		// Grades
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}/grades", api.ListGradesHandler(examSvc))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
