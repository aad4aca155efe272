package quiz

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/quizraft/quizraft/internal/grading"
)

// Unlimited is the AttemptsRemaining sentinel for quizzes without an
// attempt limit.
const Unlimited = -1

// Engine orchestrates the attempt state machine:
//
//	new (transient) -> incomplete -> pending | pass | fail
//
// Every operation takes an explicit studentID; the engine never reads
// ambient request state. All shared mutable state lives in the
// AttemptStore, so independent request handlers may call concurrently.
type Engine struct {
	catalog Catalog
	store   AttemptStore
	grader  grading.Grader
	now     func() time.Time
}

type EngineOption func(*Engine)

// WithClock overrides the wall-clock source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(c Catalog, s AttemptStore, g grading.Grader, opts ...EngineOption) *Engine {
	e := &Engine{catalog: c, store: s, grader: g, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start atomically creates an attempt and transitions it to incomplete.
// If the student has a previous incomplete attempt at this quiz it is
// forcibly ended first: an attempt budget never contains two open
// attempts. The question order is computed exactly once, here.
func (e *Engine) Start(ctx context.Context, studentID, quizID, lessonID string) (Progress, error) {
	if studentID == "" {
		return Progress{}, ErrNotAuthenticated
	}
	cfg, err := e.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return Progress{}, err
	}
	cfg = cfg.Normalized()
	if _, err := e.catalog.GetLesson(ctx, lessonID); err != nil {
		return Progress{}, err
	}
	questions, err := e.catalog.GetQuestions(ctx, quizID)
	if err != nil {
		return Progress{}, err
	}
	if len(questions) == 0 {
		return Progress{}, ErrNoQuestions
	}
	defs := defMap(questions)

	siblings, err := e.store.ListByStudentQuiz(ctx, studentID, quizID)
	if err != nil {
		return Progress{}, err
	}
	if err := checkBudget(cfg, siblings); err != nil {
		return Progress{}, err
	}
	// Force-ending an open sibling settles it against the budget. Check
	// that the new attempt still fits before touching anything: a failing
	// Start must leave the open sibling resumable.
	if cfg.LimitAttempts && remainingAttempts(cfg, siblings)-countOpen(siblings) <= 0 {
		return Progress{}, ErrAttemptLimitReached
	}

	// End any open sibling before creating the new attempt. Expired
	// time-boxed attempts get their lazy finalization here too.
	for _, sib := range siblings {
		if sib.Status != StatusIncomplete {
			continue
		}
		if _, err := e.store.Update(ctx, sib.Key, func(a *Attempt) error {
			if a.Status == StatusIncomplete {
				e.finalize(a, cfg, defs)
			}
			return nil
		}); err != nil {
			return Progress{}, err
		}
	}

	order := Sequence(questions, cfg.RandomQuestions)
	a := &Attempt{
		Key:               uuid.NewString(),
		QuizID:            quizID,
		LessonID:          lessonID,
		StudentID:         studentID,
		Status:            StatusIncomplete,
		AttemptNumber:     len(siblings) + 1,
		QuestionOrder:     order,
		CurrentQuestionID: order[0],
		Answers:           map[string]Answer{},
		StartTime:         e.now(),
	}
	// The guard re-runs the budget checks inside the store's critical
	// section: two simultaneous starts must not both claim the last slot.
	err = e.store.Create(ctx, a, func(sibs []Attempt) error {
		if err := checkBudget(cfg, sibs); err != nil {
			return err
		}
		for _, s := range sibs {
			if s.Status == StatusIncomplete {
				return ErrConcurrencyConflict
			}
		}
		a.AttemptNumber = len(sibs) + 1
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return e.progress(cfg, a, defs), nil
}

// Resume re-enters the answering loop of the student's last attempt.
// Allowed only while the attempt is incomplete, it is the newest sibling,
// and the quiz permits resuming (never when time-boxed). When nothing is
// left to answer, resume degenerates into End.
func (e *Engine) Resume(ctx context.Context, studentID, key string) (Progress, error) {
	a, cfg, defs, err := e.load(ctx, studentID, key)
	if err != nil {
		return Progress{}, err
	}
	siblings, err := e.store.ListByStudentQuiz(ctx, studentID, a.QuizID)
	if err != nil {
		return Progress{}, err
	}
	if a.Status != StatusIncomplete || !cfg.CanBeResumed || !isLastAttempt(a, siblings) {
		return Progress{}, ErrResumeNotAllowed
	}

	current := a.CurrentQuestionID
	if current == "" {
		current = a.FirstUnanswered(contentIDs(defs))
	}
	if current == "" {
		final, err := e.end(ctx, key, cfg, defs)
		if err != nil {
			return Progress{}, err
		}
		p := e.progress(cfg, &a, defs)
		p.CurrentQuestionID = ""
		p.Completed = true
		p.Result = &final
		return p, nil
	}

	updated, err := e.store.Update(ctx, key, func(a *Attempt) error {
		if a.Status != StatusIncomplete {
			return ErrResumeNotAllowed
		}
		a.CurrentQuestionID = current
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return e.progress(cfg, &updated, defs), nil
}

// Answer grades and records one submission, then moves the
// current-question pointer according to nav. Re-answering an open
// question recomputes its record in place. Answering the final order
// entry with NavNext finishes the attempt.
func (e *Engine) Answer(ctx context.Context, studentID, key, questionID string, submission interface{}, nav Navigation) (Progress, error) {
	a, cfg, defs, err := e.load(ctx, studentID, key)
	if err != nil {
		return Progress{}, err
	}
	if a.Status != StatusIncomplete {
		return Progress{}, ErrAttemptClosed
	}
	if e.expired(cfg, &a) {
		if _, err := e.end(ctx, key, cfg, defs); err != nil {
			return Progress{}, err
		}
		return Progress{}, ErrAttemptClosed
	}

	// Answer-time limit re-validation: the in-flight attempt is still
	// incomplete and therefore uncounted, so anything below zero means a
	// sibling consumed the budget since this attempt started.
	if cfg.LimitAttempts {
		siblings, err := e.store.ListByStudentQuiz(ctx, studentID, a.QuizID)
		if err != nil {
			return Progress{}, err
		}
		if remainingAttempts(cfg, siblings) < 0 {
			return Progress{}, ErrAttemptLimitReached
		}
	}

	if !a.HasQuestion(questionID) {
		return Progress{}, fmt.Errorf("question %s not part of attempt: %w", questionID, ErrNotFound)
	}
	def, ok := defs[questionID]
	if !ok {
		return Progress{}, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}

	var res grading.Result
	if !def.ContentOnly {
		res, err = e.grader.Grade(ctx, grading.Q{Type: def.Type, Points: def.Points, AnswerKey: def.AnswerKey}, submission)
		if err != nil {
			return Progress{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
		}
	}

	var final *FinalResult
	updated, err := e.store.Update(ctx, key, func(a *Attempt) error {
		final = nil
		if a.Status != StatusIncomplete {
			return ErrAttemptClosed
		}
		if !def.ContentOnly {
			a.Answers[questionID] = Answer{Raw: submission, Correct: res.Correct, Points: res.Points}
		}
		switch nav {
		case NavPrevious:
			if prev := a.PrevQuestion(questionID); prev != "" {
				a.CurrentQuestionID = prev
			} else {
				a.CurrentQuestionID = questionID
			}
		case NavExit:
			a.CurrentQuestionID = questionID
		default:
			next := a.NextQuestion(questionID)
			if next == "" {
				fr := e.finalize(a, cfg, defs)
				final = &fr
			} else {
				a.CurrentQuestionID = next
			}
		}
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	p := e.progress(cfg, &updated, defs)
	if final != nil {
		p.Completed = true
		p.Result = final
	}
	return p, nil
}

// End finalizes the attempt: records end time, computes the grade, and
// settles the terminal status. Attempts with unreviewed manual answers
// become pending instead of pass/fail.
func (e *Engine) End(ctx context.Context, studentID, key string) (FinalResult, error) {
	a, cfg, defs, err := e.load(ctx, studentID, key)
	if err != nil {
		return FinalResult{}, err
	}
	if a.Status != StatusIncomplete {
		return FinalResult{}, ErrAttemptClosed
	}
	return e.end(ctx, key, cfg, defs)
}

// AttemptsRemaining returns how many attempts the student may still
// start, or Unlimited when the quiz does not limit attempts. Only
// non-incomplete attempts consume the budget.
func (e *Engine) AttemptsRemaining(ctx context.Context, studentID, quizID string) (int, error) {
	if studentID == "" {
		return 0, ErrNotAuthenticated
	}
	cfg, err := e.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return 0, err
	}
	cfg = cfg.Normalized()
	if !cfg.LimitAttempts {
		return Unlimited, nil
	}
	siblings, err := e.store.ListByStudentQuiz(ctx, studentID, quizID)
	if err != nil {
		return 0, err
	}
	n := remainingAttempts(cfg, siblings)
	if n < 0 {
		n = 0
	}
	return n, nil
}

// GetAttempt returns the attempt identified by key, after lazily
// finalizing it when it turns out to have expired.
func (e *Engine) GetAttempt(ctx context.Context, studentID, key string) (Attempt, error) {
	a, cfg, defs, err := e.load(ctx, studentID, key)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusIncomplete && e.expired(cfg, &a) {
		if _, err := e.end(ctx, key, cfg, defs); err != nil {
			return Attempt{}, err
		}
		return e.store.Get(ctx, key)
	}
	return a, nil
}

// GetQuestion re-fetches one order entry while the attempt is still
// answerable, with the answer key stripped.
func (e *Engine) GetQuestion(ctx context.Context, studentID, key, questionID string) (QuestionDefinition, error) {
	a, cfg, defs, err := e.load(ctx, studentID, key)
	if err != nil {
		return QuestionDefinition{}, err
	}
	if a.Status != StatusIncomplete {
		return QuestionDefinition{}, ErrAttemptClosed
	}
	if e.expired(cfg, &a) {
		if _, err := e.end(ctx, key, cfg, defs); err != nil {
			return QuestionDefinition{}, err
		}
		return QuestionDefinition{}, ErrAttemptClosed
	}
	if !a.HasQuestion(questionID) {
		return QuestionDefinition{}, fmt.Errorf("question %s not part of attempt: %w", questionID, ErrNotFound)
	}
	def, ok := defs[questionID]
	if !ok {
		return QuestionDefinition{}, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	def.AnswerKey = nil
	return def, nil
}

// ListAttempts returns the student's attempt history for a quiz.
func (e *Engine) ListAttempts(ctx context.Context, studentID, quizID string) ([]Attempt, error) {
	if studentID == "" {
		return nil, ErrNotAuthenticated
	}
	return e.store.ListByStudentQuiz(ctx, studentID, quizID)
}

// ListQuizAttempts returns every attempt at a quiz, for review listings.
func (e *Engine) ListQuizAttempts(ctx context.Context, quizID string) ([]Attempt, error) {
	return e.store.ListByQuiz(ctx, quizID)
}

// ---- internals ----

func (e *Engine) load(ctx context.Context, studentID, key string) (Attempt, QuizConfig, map[string]QuestionDefinition, error) {
	if studentID == "" {
		return Attempt{}, QuizConfig{}, nil, ErrNotAuthenticated
	}
	a, err := e.store.Get(ctx, key)
	if err != nil {
		return Attempt{}, QuizConfig{}, nil, err
	}
	if a.StudentID != studentID {
		// Do not leak other students' attempt keys.
		return Attempt{}, QuizConfig{}, nil, ErrNotFound
	}
	cfg, err := e.catalog.GetQuiz(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, QuizConfig{}, nil, err
	}
	cfg = cfg.Normalized()
	questions, err := e.catalog.GetQuestions(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, QuizConfig{}, nil, err
	}
	return a, cfg, defMap(questions), nil
}

// end commits the full finalization transition through the store; either
// status, counts and pointers all land, or nothing does.
func (e *Engine) end(ctx context.Context, key string, cfg QuizConfig, defs map[string]QuestionDefinition) (FinalResult, error) {
	var final FinalResult
	_, err := e.store.Update(ctx, key, func(a *Attempt) error {
		if a.Status != StatusIncomplete {
			return ErrAttemptClosed
		}
		final = e.finalize(a, cfg, defs)
		return nil
	})
	if err != nil {
		return FinalResult{}, err
	}
	return final, nil
}

// finalize mutates a into its terminal state and returns the result.
// Content-only questions never count toward the totals.
func (e *Engine) finalize(a *Attempt, cfg QuizConfig, defs map[string]QuestionDefinition) FinalResult {
	now := e.now()
	a.EndTime = &now
	a.CurrentQuestionID = ""

	var earned, available float64
	pending := false
	for _, qid := range a.QuestionOrder {
		def, ok := defs[qid]
		if !ok || def.ContentOnly {
			continue
		}
		available += def.Points
		if ans, ok := a.Answers[qid]; ok {
			earned += ans.Points
			if ans.Correct == nil {
				pending = true
			}
		}
	}

	grade := 0.0
	if available > 0 {
		grade = round2(earned / available * 100)
	}
	switch {
	case pending:
		a.Status = StatusPending
	case grade >= cfg.PassingPercent:
		a.Status = StatusPass
	default:
		a.Status = StatusFail
	}
	return FinalResult{
		AttemptKey:      a.Key,
		Status:          a.Status,
		Grade:           grade,
		PointsEarned:    earned,
		PointsAvailable: available,
	}
}

// expired reports whether a time-boxed attempt has run out. The boundary
// is inclusive: elapsed == limit is already expired.
func (e *Engine) expired(cfg QuizConfig, a *Attempt) bool {
	if !cfg.LimitTime {
		return false
	}
	return e.now().Sub(a.StartTime) >= cfg.TimeLimit()
}

func (e *Engine) progress(cfg QuizConfig, a *Attempt, defs map[string]QuestionDefinition) Progress {
	p := Progress{
		AttemptKey:        a.Key,
		CurrentQuestionID: a.CurrentQuestionID,
		QuestionsTotal:    countGradable(a.QuestionOrder, defs),
		CanBeResumed:      cfg.CanBeResumed,
	}
	if cfg.LimitTime {
		v := cfg.TimeLimitMin
		p.TimeLimitMin = &v
	}
	return p
}

func checkBudget(cfg QuizConfig, siblings []Attempt) error {
	if cfg.DisableRetake {
		for _, s := range siblings {
			if s.Status == StatusPass {
				return ErrRetakeDisabled
			}
		}
	}
	if cfg.LimitAttempts && remainingAttempts(cfg, siblings) <= 0 {
		return ErrAttemptLimitReached
	}
	return nil
}

// remainingAttempts counts only settled attempts against the budget; an
// attempt still incomplete does not consume a slot until it ends.
func remainingAttempts(cfg QuizConfig, siblings []Attempt) int {
	used := 0
	for _, s := range siblings {
		if s.Status != StatusIncomplete {
			used++
		}
	}
	return cfg.AllowedAttempts - used
}

func countOpen(siblings []Attempt) int {
	n := 0
	for _, s := range siblings {
		if s.Status == StatusIncomplete {
			n++
		}
	}
	return n
}

func isLastAttempt(a Attempt, siblings []Attempt) bool {
	for _, s := range siblings {
		if s.AttemptNumber > a.AttemptNumber {
			return false
		}
	}
	return true
}

func defMap(questions []QuestionDefinition) map[string]QuestionDefinition {
	m := make(map[string]QuestionDefinition, len(questions))
	for _, q := range questions {
		m[q.ID] = q
	}
	return m
}

func contentIDs(defs map[string]QuestionDefinition) map[string]bool {
	m := map[string]bool{}
	for id, d := range defs {
		if d.ContentOnly {
			m[id] = true
		}
	}
	return m
}

func countGradable(order []string, defs map[string]QuestionDefinition) int {
	n := 0
	for _, qid := range order {
		if d, ok := defs[qid]; ok && !d.ContentOnly {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
