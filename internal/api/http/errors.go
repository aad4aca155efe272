package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quizraft/quizraft/internal/quiz"
)

// writeError maps the engine's typed errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, quiz.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, quiz.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, quiz.ErrAttemptLimitReached),
		errors.Is(err, quiz.ErrRetakeDisabled):
		status = http.StatusForbidden
	case errors.Is(err, quiz.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, quiz.ErrInvalidAnswer):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, quiz.ErrResumeNotAllowed),
		errors.Is(err, quiz.ErrAttemptClosed),
		errors.Is(err, quiz.ErrNoQuestions):
		status = http.StatusBadRequest
	default:
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
