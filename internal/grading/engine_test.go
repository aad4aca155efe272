package grading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoiceGrading(t *testing.T) {
	r := NewRegistry()
	q := Q{Type: "choice", Points: 2, AnswerKey: []string{"b"}}

	res, err := r.Grade(context.Background(), q, "b")
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Points)
	require.NotNil(t, res.Correct)
	assert.True(t, *res.Correct)

	res, err = r.Grade(context.Background(), q, "a")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Points)
	require.NotNil(t, res.Correct)
	assert.False(t, *res.Correct)
}

func TestChoiceRejectsNonString(t *testing.T) {
	r := NewRegistry()
	q := Q{Type: "choice", Points: 1, AnswerKey: []string{"a"}}
	_, err := r.Grade(context.Background(), q, 7)
	require.Error(t, err)
}

func TestUnknownTypeErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Grade(context.Background(), Q{Type: "telepathy", Points: 1}, "x")
	require.Error(t, err)
}

func TestMultiChoiceExactMatch(t *testing.T) {
	r := NewRegistry()
	q := Q{Type: "multi_choice", Points: 4, AnswerKey: []string{"a", "b"}}

	res, err := r.Grade(context.Background(), q, []string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Points)
	require.NotNil(t, res.Correct)
	assert.True(t, *res.Correct)
}

func TestMultiChoicePartialCredit(t *testing.T) {
	r := NewRegistry()
	q := Q{Type: "multi_choice", Points: 4, AnswerKey: []string{"a", "b"}}

	tests := []struct {
		name  string
		picks []string
		want  float64
	}{
		{"half right", []string{"a"}, 2},
		{"hit plus miss cancel", []string{"a", "c"}, 0},
		{"all wrong", []string{"c", "d"}, 0},
		{"duplicates ignored", []string{"a", "a"}, 2},
		{"nothing picked", []string{}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := r.Grade(context.Background(), q, tc.picks)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Points)
			require.NotNil(t, res.Correct)
			assert.False(t, *res.Correct)
		})
	}
}

func TestMultiChoiceDeterministic(t *testing.T) {
	r := NewRegistry()
	q := Q{Type: "multi_choice", Points: 3, AnswerKey: []string{"a", "b", "c"}}
	first, err := r.Grade(context.Background(), q, []string{"a", "b"})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		res, err := r.Grade(context.Background(), q, []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, first.Points, res.Points)
	}
}

func TestMultiChoiceNoPartial(t *testing.T) {
	r := NewRegistry(WithPartialMulti(false))
	q := Q{Type: "multi_choice", Points: 4, AnswerKey: []string{"a", "b"}}
	res, err := r.Grade(context.Background(), q, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Points)
}

func TestMultiChoiceAcceptsInterfaceSlice(t *testing.T) {
	// JSON-decoded submissions arrive as []interface{}.
	r := NewRegistry()
	q := Q{Type: "multi_choice", Points: 2, AnswerKey: []string{"a", "b"}}
	res, err := r.Grade(context.Background(), q, []interface{}{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Points)
}

func TestManualTypesNeedReview(t *testing.T) {
	r := NewRegistry()
	for _, typ := range []string{"long_answer", "upload"} {
		res, err := r.Grade(context.Background(), Q{Type: typ, Points: 5}, "my work")
		require.NoError(t, err)
		assert.Nil(t, res.Correct, "type %s must require review", typ)
		assert.Equal(t, 0.0, res.Points)
		assert.Equal(t, 5.0, res.MaxPoints)
	}
}

func TestRegisterCustomStrategy(t *testing.T) {
	r := NewRegistry()
	r.Register("always_right", strategyFunc(func(_ context.Context, q Q, _ interface{}) (Result, error) {
		ok := true
		return Result{Points: q.Points, MaxPoints: q.Points, Correct: &ok}, nil
	}))
	res, err := r.Grade(context.Background(), Q{Type: "always_right", Points: 1}, "anything")
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Points)
}

type strategyFunc func(ctx context.Context, q Q, submission interface{}) (Result, error)

func (f strategyFunc) Grade(ctx context.Context, q Q, submission interface{}) (Result, error) {
	return f(ctx, q, submission)
}
