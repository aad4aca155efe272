package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// AttemptStore is the single point of mutable shared state. Implementations
// must serialize writes per attempt key, and must run the Create guard in
// the same critical section as the insert so that two concurrent starts
// cannot both claim the last attempt slot.
type AttemptStore interface {
	// Create persists a new attempt. guard is invoked with the student's
	// existing attempts for the same quiz, inside the critical section
	// that performs the insert; a guard error aborts the create.
	Create(ctx context.Context, a *Attempt, guard func(siblings []Attempt) error) error

	// Get returns the attempt identified by key, or ErrNotFound.
	Get(ctx context.Context, key string) (Attempt, error)

	// Update applies mutate to the current attempt state under per-key
	// serialization and persists the result. A mutate error aborts the
	// write and is returned unchanged; nothing partial is persisted.
	Update(ctx context.Context, key string, mutate func(a *Attempt) error) (Attempt, error)

	// ListByStudentQuiz returns the student's attempts at a quiz, ordered
	// by attempt number ascending.
	ListByStudentQuiz(ctx context.Context, studentID, quizID string) ([]Attempt, error)

	// ListByQuiz returns every attempt at a quiz, ordered by attempt
	// number ascending. Used for history/review listings.
	ListByQuiz(ctx context.Context, quizID string) ([]Attempt, error)
}

type memoryStore struct {
	mu       sync.Mutex
	nextID   int64
	attempts map[string]*Attempt // key -> attempt
}

// NewMemoryStore returns an in-process AttemptStore. The single mutex
// gives both per-key write serialization and an atomic guard+insert.
func NewMemoryStore() AttemptStore {
	return &memoryStore{attempts: map[string]*Attempt{}}
}

func (m *memoryStore) Create(_ context.Context, a *Attempt, guard func(siblings []Attempt) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[a.Key]; ok {
		return fmt.Errorf("attempt key %q already exists", a.Key)
	}
	if guard != nil {
		if err := guard(m.siblingsLocked(a.StudentID, a.QuizID)); err != nil {
			return err
		}
	}
	m.nextID++
	a.ID = m.nextID
	c := a.clone()
	m.attempts[a.Key] = &c
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[key]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a.clone(), nil
}

func (m *memoryStore) Update(_ context.Context, key string, mutate func(a *Attempt) error) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[key]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	work := a.clone()
	if err := mutate(&work); err != nil {
		return Attempt{}, err
	}
	work.Version = a.Version + 1
	m.attempts[key] = &work
	return work.clone(), nil
}

func (m *memoryStore) ListByStudentQuiz(_ context.Context, studentID, quizID string) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.siblingsLocked(studentID, quizID), nil
}

func (m *memoryStore) ListByQuiz(_ context.Context, quizID string) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if a.QuizID == quizID {
			out = append(out, a.clone())
		}
	}
	sortAttempts(out)
	return out, nil
}

func (m *memoryStore) siblingsLocked(studentID, quizID string) []Attempt {
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if a.StudentID == studentID && a.QuizID == quizID {
			out = append(out, a.clone())
		}
	}
	sortAttempts(out)
	return out
}

func sortAttempts(list []Attempt) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].AttemptNumber != list[j].AttemptNumber {
			return list[i].AttemptNumber < list[j].AttemptNumber
		}
		return list[i].ID < list[j].ID
	})
}
