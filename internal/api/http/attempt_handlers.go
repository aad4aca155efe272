package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quizraft/quizraft/internal/auth"
	"github.com/quizraft/quizraft/internal/quiz"
	"github.com/quizraft/quizraft/internal/rbac"
)

// StartAttemptHandler begins a fresh attempt at a quiz.
// POST /quizzes/{quizID}/attempts  { "lesson_id": "..." }
func StartAttemptHandler(eng *quiz.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LessonID string `json:"lesson_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		studentID := auth.SubjectFromContext(r.Context())
		p, err := eng.Start(r.Context(), studentID, chi.URLParam(r, "quizID"), req.LessonID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// ResumeAttemptHandler re-enters an open attempt.
// POST /attempts/resume  { "attempt_key": "..." }
func ResumeAttemptHandler(eng *quiz.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AttemptKey string `json:"attempt_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.AttemptKey == "" {
			http.Error(w, "attempt_key required", http.StatusBadRequest)
			return
		}
		studentID := auth.SubjectFromContext(r.Context())
		p, err := eng.Resume(r.Context(), studentID, req.AttemptKey)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// AnswerQuestionHandler records one submission.
// POST /attempts/{attemptKey}/answer
// { "question_id": "...", "answer": ..., "navigation": "next|previous|exit" }
func AnswerQuestionHandler(eng *quiz.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID string      `json:"question_id"`
			Answer     interface{} `json:"answer"`
			Navigation string      `json:"navigation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		var nav quiz.Navigation
		switch req.Navigation {
		case "", string(quiz.NavNext):
			nav = quiz.NavNext
		case string(quiz.NavPrevious):
			nav = quiz.NavPrevious
		case string(quiz.NavExit):
			nav = quiz.NavExit
		default:
			http.Error(w, "unknown navigation", http.StatusBadRequest)
			return
		}
		studentID := auth.SubjectFromContext(r.Context())
		p, err := eng.Answer(r.Context(), studentID, chi.URLParam(r, "attemptKey"), req.QuestionID, req.Answer, nav)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// EndAttemptHandler finalizes an attempt.
// POST /attempts/{attemptKey}/end
func EndAttemptHandler(eng *quiz.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		res, err := eng.End(r.Context(), studentID, chi.URLParam(r, "attemptKey"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

// GetAttemptHandler returns the caller's attempt by key.
// GET /attempts/{attemptKey}
func GetAttemptHandler(eng *quiz.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		a, err := eng.GetAttempt(r.Context(), studentID, chi.URLParam(r, "attemptKey"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// GetQuestionHandler re-fetches one question of an open attempt.
// GET /attempts/{attemptKey}/questions/{questionID}
func GetQuestionHandler(eng *quiz.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		def, err := eng.GetQuestion(r.Context(), studentID,
			chi.URLParam(r, "attemptKey"), chi.URLParam(r, "questionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, def)
	}
}

// AttemptsRemainingHandler reports how many attempts the caller may still
// start. GET /quizzes/{quizID}/attempts-remaining
func AttemptsRemainingHandler(eng *quiz.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := auth.SubjectFromContext(r.Context())
		n, err := eng.AttemptsRemaining(r.Context(), studentID, chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if n == quiz.Unlimited {
			writeJSON(w, map[string]interface{}{"unlimited": true})
			return
		}
		writeJSON(w, map[string]interface{}{"unlimited": false, "remaining": n})
	}
}

// ListAttemptsHandler lists attempt history for a quiz: the caller's own
// attempts, or every student's when the role carries attempt:view-all.
// GET /quizzes/{quizID}/attempts
func ListAttemptsHandler(eng *quiz.Engine, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		role := rbac.RoleFromContext(r.Context())
		if checker.Has(role, "attempt:view-all") {
			list, err := eng.ListQuizAttempts(r.Context(), quizID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, list)
			return
		}
		studentID := auth.SubjectFromContext(r.Context())
		list, err := eng.ListAttempts(r.Context(), studentID, quizID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, list)
	}
}
