package quiz

import "context"

// Catalog is the read-only lookup of quiz configuration and question
// definitions. Implementations live outside the engine (see
// internal/catalog); the engine only consumes it.
//
// GetQuiz must return configs with QuizConfig.Normalized applied.
type Catalog interface {
	GetQuiz(ctx context.Context, quizID string) (QuizConfig, error)
	GetQuestions(ctx context.Context, quizID string) ([]QuestionDefinition, error)
	GetLesson(ctx context.Context, lessonID string) (LessonRef, error)
}
