// Package catalog provides the content-repository implementations the
// engine reads quiz configuration and question definitions from.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/quizraft/quizraft/internal/quiz"
)

// Memory is an in-process quiz.Catalog, used in tests and offline seeding.
type Memory struct {
	mu        sync.RWMutex
	quizzes   map[string]quiz.QuizConfig
	questions map[string][]quiz.QuestionDefinition // quizID -> defs
	lessons   map[string]quiz.LessonRef
}

func NewMemory() *Memory {
	return &Memory{
		quizzes:   map[string]quiz.QuizConfig{},
		questions: map[string][]quiz.QuestionDefinition{},
		lessons:   map[string]quiz.LessonRef{},
	}
}

func (m *Memory) PutQuiz(cfg quiz.QuizConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[cfg.ID] = cfg
}

func (m *Memory) PutQuestions(quizID string, defs []quiz.QuestionDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[quizID] = append([]quiz.QuestionDefinition(nil), defs...)
}

func (m *Memory) PutLesson(l quiz.LessonRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lessons[l.ID] = l
}

func (m *Memory) GetQuiz(_ context.Context, quizID string) (quiz.QuizConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.quizzes[quizID]
	if !ok {
		return quiz.QuizConfig{}, fmt.Errorf("quiz %s: %w", quizID, quiz.ErrNotFound)
	}
	return cfg.Normalized(), nil
}

func (m *Memory) GetQuestions(_ context.Context, quizID string) ([]quiz.QuestionDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	defs := append([]quiz.QuestionDefinition(nil), m.questions[quizID]...)
	sort.Slice(defs, func(i, j int) bool { return defs[i].Position < defs[j].Position })
	return defs, nil
}

func (m *Memory) GetLesson(_ context.Context, lessonID string) (quiz.LessonRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lessons[lessonID]
	if !ok {
		return quiz.LessonRef{}, fmt.Errorf("lesson %s: %w", lessonID, quiz.ErrNotFound)
	}
	return l, nil
}

var _ quiz.Catalog = (*Memory)(nil)
