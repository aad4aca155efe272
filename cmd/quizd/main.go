package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/quizraft/quizraft/internal/api/http"
	"github.com/quizraft/quizraft/internal/auth"
	"github.com/quizraft/quizraft/internal/catalog"
	"github.com/quizraft/quizraft/internal/config"
	"github.com/quizraft/quizraft/internal/db"
	"github.com/quizraft/quizraft/internal/grading"
	"github.com/quizraft/quizraft/internal/quiz"
	"github.com/quizraft/quizraft/internal/rbac"
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
	if err := auth.SeedAdmin(dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	// --- Engine ---
	grader := grading.NewRegistry(
		grading.WithPartialMulti(cfg.PartialMultiCredit),
		grading.WithMaxEditDistance(cfg.ShortAnswerMaxEdit),
	)
	eng := quiz.NewEngine(catalog.NewSQL(dbh), quiz.NewSQLStore(dbh), grader)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	checker := rbac.NewChecker(nil)

	// --- Router ---
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

	// Protected API (JWT -> subject/role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("attempt:start")).
			Post("/quizzes/{quizID}/attempts", api.StartAttemptHandler(eng))
		pr.With(rbac.Require("attempt:resume")).
			Post("/attempts/resume", api.ResumeAttemptHandler(eng))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptKey}/answer", api.AnswerQuestionHandler(eng))
		pr.With(rbac.Require("attempt:end")).
			Post("/attempts/{attemptKey}/end", api.EndAttemptHandler(eng))

		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptKey}", api.GetAttemptHandler(eng))
		pr.With(rbac.Require("attempt:view-own")).
			Get("/attempts/{attemptKey}/questions/{questionID}", api.GetQuestionHandler(eng))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}/attempts-remaining", api.AttemptsRemainingHandler(eng))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/quizzes/{quizID}/attempts", api.ListAttemptsHandler(eng, checker))
	})

	log.Printf("quizd listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
