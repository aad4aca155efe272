package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// maxUpdateRetries bounds the optimistic-retry loop before the conflict
// surfaces to the caller as ErrConcurrencyConflict.
const maxUpdateRetries = 3

// SQLStore persists attempts in sqlite or postgres (see internal/db for
// the schema). Per-key write serialization is optimistic: every row
// carries a version counter and updates are compare-and-swap on it. The
// partial unique index on (student_id, quiz_id) WHERE status='incomplete'
// backs the Create guard against budget races the transaction alone
// cannot exclude.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Create(ctx context.Context, a *Attempt, guard func(siblings []Attempt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if guard != nil {
		siblings, err := scanAttempts(tx.QueryContext(ctx,
			selectCols+` FROM attempts WHERE student_id=$1 AND quiz_id=$2 ORDER BY attempt_number`,
			a.StudentID, a.QuizID))
		if err != nil {
			return err
		}
		if err := guard(siblings); err != nil {
			return err
		}
	}

	orderJSON, err := json.Marshal(a.QuestionOrder)
	if err != nil {
		return err
	}
	answersJSON, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO attempts
		(attempt_key, quiz_id, lesson_id, student_id, status, attempt_number,
		 question_order_json, current_question_id, answers_json, start_time, end_time, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULL,0)`,
		a.Key, a.QuizID, a.LessonID, a.StudentID, string(a.Status), a.AttemptNumber,
		string(orderJSON), a.CurrentQuestionID, string(answersJSON), a.StartTime.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the race against a concurrent start for the same slot.
			return ErrConcurrencyConflict
		}
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return tx.Commit()
}

func (s *SQLStore) Get(ctx context.Context, key string) (Attempt, error) {
	list, err := scanAttempts(s.db.QueryContext(ctx,
		selectCols+` FROM attempts WHERE attempt_key=$1`, key))
	if err != nil {
		return Attempt{}, err
	}
	if len(list) == 0 {
		return Attempt{}, ErrNotFound
	}
	return list[0], nil
}

func (s *SQLStore) Update(ctx context.Context, key string, mutate func(a *Attempt) error) (Attempt, error) {
	for i := 0; i < maxUpdateRetries; i++ {
		a, err := s.Get(ctx, key)
		if err != nil {
			return Attempt{}, err
		}
		if err := mutate(&a); err != nil {
			return Attempt{}, err
		}

		orderJSON, err := json.Marshal(a.QuestionOrder)
		if err != nil {
			return Attempt{}, err
		}
		answersJSON, err := json.Marshal(a.Answers)
		if err != nil {
			return Attempt{}, err
		}
		var end interface{}
		if a.EndTime != nil {
			end = a.EndTime.Unix()
		}
		res, err := s.db.ExecContext(ctx, `UPDATE attempts SET
			status=$1, question_order_json=$2, current_question_id=$3,
			answers_json=$4, end_time=$5, version=version+1
			WHERE attempt_key=$6 AND version=$7`,
			string(a.Status), string(orderJSON), a.CurrentQuestionID,
			string(answersJSON), end, key, a.Version)
		if err != nil {
			return Attempt{}, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return Attempt{}, err
		}
		if n == 1 {
			a.Version++
			return a, nil
		}
		// Someone else committed first; reload and retry the mutation.
	}
	return Attempt{}, ErrConcurrencyConflict
}

func (s *SQLStore) ListByStudentQuiz(ctx context.Context, studentID, quizID string) ([]Attempt, error) {
	return scanAttempts(s.db.QueryContext(ctx,
		selectCols+` FROM attempts WHERE student_id=$1 AND quiz_id=$2 ORDER BY attempt_number`,
		studentID, quizID))
}

func (s *SQLStore) ListByQuiz(ctx context.Context, quizID string) ([]Attempt, error) {
	return scanAttempts(s.db.QueryContext(ctx,
		selectCols+` FROM attempts WHERE quiz_id=$1 ORDER BY attempt_number, id`, quizID))
}

const selectCols = `SELECT id, attempt_key, quiz_id, lesson_id, student_id, status,
	attempt_number, question_order_json, current_question_id, answers_json,
	start_time, end_time, version`

func scanAttempts(rows *sql.Rows, err error) ([]Attempt, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a           Attempt
			status      string
			orderJSON   string
			answersJSON string
			start       int64
			end         sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Key, &a.QuizID, &a.LessonID, &a.StudentID, &status,
			&a.AttemptNumber, &orderJSON, &a.CurrentQuestionID, &answersJSON,
			&start, &end, &a.Version); err != nil {
			return nil, err
		}
		a.Status = Status(status)
		if err := json.Unmarshal([]byte(orderJSON), &a.QuestionOrder); err != nil {
			return nil, fmt.Errorf("attempt %s: decode question order: %w", a.Key, err)
		}
		if err := json.Unmarshal([]byte(answersJSON), &a.Answers); err != nil {
			return nil, fmt.Errorf("attempt %s: decode answers: %w", a.Key, err)
		}
		if a.Answers == nil {
			a.Answers = map[string]Answer{}
		}
		a.StartTime = time.Unix(start, 0).UTC()
		if end.Valid {
			t := time.Unix(end.Int64, 0).UTC()
			a.EndTime = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

var _ AttemptStore = (*SQLStore)(nil)
