package grading

import (
	"context"
	"fmt"
)

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type      string
	Points    float64
	AnswerKey []string
}

// Result is the outcome of grading a single submitted answer. Correct is
// nil when the question type requires manual review; the owning attempt
// then finishes as pending instead of auto-grading.
type Result struct {
	Points    float64 // points awarded
	MaxPoints float64 // the question's max points
	Correct   *bool   // nil = requires manual review
}

// Strategy grades one question type. Implementations must be
// deterministic: the same submission always yields the same score.
type Strategy interface {
	Grade(ctx context.Context, q Q, submission interface{}) (Result, error)
}

// Grader routes a submission to the Strategy registered for its question
// type.
type Grader interface {
	Grade(ctx context.Context, q Q, submission interface{}) (Result, error)
}

// Registry is the default Grader. New question types register a Strategy
// under their type tag instead of being special-cased inline.
type Registry struct {
	strategies map[string]Strategy
}

func (r *Registry) Grade(ctx context.Context, q Q, submission interface{}) (Result, error) {
	s, ok := r.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("no grading strategy for question type %q", q.Type)
	}
	return s.Grade(ctx, q, submission)
}

// Register adds or replaces the Strategy for a question type.
func (r *Registry) Register(qtype string, s Strategy) {
	if qtype == "" || s == nil {
		return
	}
	r.strategies[qtype] = s
}

type Option func(*config)

type config struct {
	MaxEditDistance int  // fuzzy tolerance for short_answer
	PartialMulti    bool // proportional credit for multi-selection types
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialMulti(b bool) Option   { return func(c *config) { c.PartialMulti = b } }

// NewRegistry installs the built-in strategies.
func NewRegistry(opts ...Option) *Registry {
	cfg := &config{
		MaxEditDistance: 0,
		PartialMulti:    true,
	}
	for _, o := range opts {
		o(cfg)
	}
	r := &Registry{strategies: map[string]Strategy{}}
	r.Register("choice", choiceStrategy{})
	r.Register("true_false", choiceStrategy{})
	r.Register("multi_choice", multiChoiceStrategy{partial: cfg.PartialMulti})
	r.Register("picture_choice", multiChoiceStrategy{partial: cfg.PartialMulti})
	r.Register("blank", blankStrategy{maxEdit: cfg.MaxEditDistance})
	r.Register("short_answer", blankStrategy{maxEdit: cfg.MaxEditDistance})
	r.Register("numeric", numericStrategy{})
	r.Register("long_answer", manualStrategy{})
	r.Register("upload", manualStrategy{})
	return r
}

// choiceStrategy: single selection, exact match against any key.
type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Q, submission interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points, Correct: boolPtr(false)}
	s, ok := submission.(string)
	if !ok {
		return Result{}, fmt.Errorf("submission must be a string, got %T", submission)
	}
	for _, k := range q.AnswerKey {
		if s == k {
			res.Points = q.Points
			res.Correct = boolPtr(true)
			return res, nil
		}
	}
	return res, nil
}

// multiChoiceStrategy: set of selections. With partial credit enabled the
// award is proportional and deterministic: each correct selection earns
// points/len(key), each wrong selection cancels one, floored at zero.
// Correct is true only on an exact set match.
type multiChoiceStrategy struct{ partial bool }

func (s multiChoiceStrategy) Grade(_ context.Context, q Q, submission interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points, Correct: boolPtr(false)}
	picks, ok := toStringSlice(submission)
	if !ok {
		return Result{}, fmt.Errorf("submission must be a list of strings, got %T", submission)
	}
	key := toSet(q.AnswerKey)
	if len(key) == 0 {
		return res, nil
	}

	hits, misses := 0, 0
	seen := map[string]bool{}
	for _, p := range picks {
		if seen[p] {
			continue
		}
		seen[p] = true
		if key[p] {
			hits++
		} else {
			misses++
		}
	}

	if hits == len(key) && misses == 0 {
		res.Points = q.Points
		res.Correct = boolPtr(true)
		return res, nil
	}
	if s.partial {
		share := hits - misses
		if share < 0 {
			share = 0
		}
		res.Points = q.Points * float64(share) / float64(len(key))
	}
	return res, nil
}

// manualStrategy marks the answer for review; no points until a reviewer
// scores it.
type manualStrategy struct{}

func (manualStrategy) Grade(_ context.Context, q Q, submission interface{}) (Result, error) {
	if _, ok := submission.(string); !ok {
		return Result{}, fmt.Errorf("submission must be a string, got %T", submission)
	}
	return Result{MaxPoints: q.Points, Correct: nil}, nil
}

func boolPtr(b bool) *bool { return &b }

func toStringSlice(v interface{}) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, s := range list {
		m[s] = true
	}
	return m
}
