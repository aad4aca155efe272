package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quizraft/quizraft/internal/quiz"
)

// SQL reads quiz configuration, questions and lessons from the shared
// database (schema in internal/db).
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) GetQuiz(ctx context.Context, quizID string) (quiz.QuizConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, passing_percent,
		limit_attempts, allowed_attempts, limit_time, time_limit_minutes,
		can_be_resumed, random_questions, show_correct_answer, disable_retake
		FROM quizzes WHERE id=$1`, quizID)
	var cfg quiz.QuizConfig
	err := row.Scan(&cfg.ID, &cfg.Title, &cfg.PassingPercent,
		&cfg.LimitAttempts, &cfg.AllowedAttempts, &cfg.LimitTime, &cfg.TimeLimitMin,
		&cfg.CanBeResumed, &cfg.RandomQuestions, &cfg.ShowCorrectAnswer, &cfg.DisableRetake)
	if errors.Is(err, sql.ErrNoRows) {
		return quiz.QuizConfig{}, fmt.Errorf("quiz %s: %w", quizID, quiz.ErrNotFound)
	}
	if err != nil {
		return quiz.QuizConfig{}, err
	}
	return cfg.Normalized(), nil
}

func (s *SQL) GetQuestions(ctx context.Context, quizID string) ([]quiz.QuestionDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, quiz_id, type, points,
		answer_key_json, content_only, position
		FROM questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quiz.QuestionDefinition
	for rows.Next() {
		var (
			d       quiz.QuestionDefinition
			keyJSON string
		)
		if err := rows.Scan(&d.ID, &d.QuizID, &d.Type, &d.Points,
			&keyJSON, &d.ContentOnly, &d.Position); err != nil {
			return nil, err
		}
		if keyJSON != "" {
			if err := json.Unmarshal([]byte(keyJSON), &d.AnswerKey); err != nil {
				return nil, fmt.Errorf("question %s: decode answer key: %w", d.ID, err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQL) GetLesson(ctx context.Context, lessonID string) (quiz.LessonRef, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, course_id, title FROM lessons WHERE id=$1`, lessonID)
	var l quiz.LessonRef
	err := row.Scan(&l.ID, &l.CourseID, &l.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return quiz.LessonRef{}, fmt.Errorf("lesson %s: %w", lessonID, quiz.ErrNotFound)
	}
	if err != nil {
		return quiz.LessonRef{}, err
	}
	return l, nil
}

var _ quiz.Catalog = (*SQL)(nil)
