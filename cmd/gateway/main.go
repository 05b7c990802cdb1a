package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/icitysystems/academia-sub002/internal/api/http"
	auth "github.com/icitysystems/academia-sub002/internal/auth/middleware"
	"github.com/icitysystems/academia-sub002/internal/batch"
	"github.com/icitysystems/academia-sub002/internal/calibration"
	"github.com/icitysystems/academia-sub002/internal/config"
	"github.com/icitysystems/academia-sub002/internal/db"
	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/grading"
	"github.com/icitysystems/academia-sub002/internal/ocr"
	"github.com/icitysystems/academia-sub002/internal/rbac"
	"github.com/icitysystems/academia-sub002/internal/review"
	"github.com/icitysystems/academia-sub002/internal/training"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := exam.NewSQLStore(dbh, cfg.DBDriver)

	// --- Grading core ---
	registry := grading.NewRegistry()
	grader := grading.NewService(cfg.Grading, registry)
	regions := &ocr.StoredRegions{Engine: ocr.NewTesseractOCR()}
	orch := batch.New(store, grader, regions, registry)
	reviews := review.NewService(store, cfg.Grading)
	calibrator := calibration.NewEngine(store, grader, registry, cfg.Grading)
	trainer := training.NewPipeline(store, grader.Hybrid(), registry, cfg.Grading)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	checker := rbac.NewChecker(rbac.RolePermissions)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", api.HealthzHandler(dbh, registry))
	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))

	// Protected API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authSvc.JWTMiddleware)

		pr.With(rbac.Require(checker, "exam:create")).
			Post("/exams", api.CreateExamHandler(store))
		pr.With(rbac.Require(checker, "exam:view")).
			Get("/exams/{examID}", api.GetExamHandler(store))

		pr.With(rbac.Require(checker, "sheet:upload")).
			Post("/exams/{examID}/sheets", api.UploadSheetHandler(store))
		pr.With(rbac.Require(checker, "sheet:view-all")).
			Get("/exams/{examID}/sheets", api.ListSheetsHandler(store))
		pr.With(rbac.RequireAny(checker, "sheet:view-own", "sheet:view-all")).
			Get("/sheets/{sheetID}", api.GetSheetHandler(store))

		pr.With(rbac.Require(checker, "grading:start")).
			Post("/exams/{examID}/grade", api.StartBatchHandler(orch))
		pr.With(rbac.Require(checker, "grading:status")).
			Get("/exams/{examID}/grading-session", api.GetGradingSessionHandler(store))

		pr.With(rbac.Require(checker, "review:list")).
			Get("/exams/{examID}/reviews", api.ListReviewsHandler(reviews))
		pr.With(rbac.Require(checker, "review:approve")).
			Post("/exams/{examID}/reviews/approve", api.BatchApproveHandler(reviews))
		pr.With(rbac.Require(checker, "review:override")).
			Post("/responses/{responseID}/review", api.ReviewResponseHandler(reviews))

		pr.With(rbac.Require(checker, "samples:upload")).
			Post("/exams/{examID}/samples", api.UploadSampleHandler(store))
		pr.With(rbac.Require(checker, "calibration:run")).
			Post("/exams/{examID}/calibrate", api.CalibrateHandler(calibrator))
		pr.With(rbac.Require(checker, "training:run")).
			Post("/exams/{examID}/train", api.TrainHandler(trainer))
		pr.With(rbac.Require(checker, "models:list")).
			Get("/exams/{examID}/models", api.ListModelsHandler(store))
	})

	log.Printf("gateway listening on %s (mode=%s driver=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatalf("server: %v", err)
	}
}
