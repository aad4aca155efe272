package quiz_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/quizraft/quizraft/internal/catalog"
	"github.com/quizraft/quizraft/internal/db"
	"github.com/quizraft/quizraft/internal/grading"
	"github.com/quizraft/quizraft/internal/quiz"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "quizraft_test.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedQuiz(t *testing.T, dbh *sql.DB) {
	t.Helper()
	if _, err := dbh.Exec(`INSERT INTO quizzes
		(id, title, passing_percent, limit_attempts, allowed_attempts)
		VALUES ('quiz-1','Unit Quiz',70,1,2)`); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	if _, err := dbh.Exec(`INSERT INTO lessons (id, course_id, title)
		VALUES ('lesson-1','course-1','Lesson One')`); err != nil {
		t.Fatalf("seed lesson: %v", err)
	}
	rows := [][4]interface{}{
		{"q1", "choice", `["a"]`, 0},
		{"q2", "choice", `["b"]`, 1},
	}
	for _, r := range rows {
		if _, err := dbh.Exec(`INSERT INTO questions
			(id, quiz_id, type, points, answer_key_json, content_only, position)
			VALUES ($1,'quiz-1',$2,1,$3,0,$4)`, r[0], r[1], r[2], r[3]); err != nil {
			t.Fatalf("seed question %v: %v", r[0], err)
		}
	}
}

func TestSQLStoreRoundTrip(t *testing.T) {
	dbh := openTestDB(t)
	store := quiz.NewSQLStore(dbh)
	ctx := context.Background()

	a := &quiz.Attempt{
		Key:               "key-1",
		QuizID:            "quiz-1",
		LessonID:          "lesson-1",
		StudentID:         "stu-1",
		Status:            quiz.StatusIncomplete,
		AttemptNumber:     1,
		QuestionOrder:     []string{"q1", "q2"},
		CurrentQuestionID: "q1",
		Answers:           map[string]quiz.Answer{},
		StartTime:         testStart(),
	}
	if err := store.Create(ctx, a, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QuizID != "quiz-1" || got.Status != quiz.StatusIncomplete || got.AttemptNumber != 1 {
		t.Fatalf("unexpected attempt: %+v", got)
	}
	if len(got.QuestionOrder) != 2 || got.QuestionOrder[0] != "q1" {
		t.Fatalf("question order lost: %v", got.QuestionOrder)
	}
	if !got.StartTime.Equal(testStart()) {
		t.Fatalf("start time = %v, want %v", got.StartTime, testStart())
	}

	ok := true
	updated, err := store.Update(ctx, "key-1", func(a *quiz.Attempt) error {
		a.Answers["q1"] = quiz.Answer{Raw: "a", Correct: &ok, Points: 1}
		a.CurrentQuestionID = "q2"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 1 {
		t.Fatalf("version = %d, want 1", updated.Version)
	}

	got, err = store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.CurrentQuestionID != "q2" {
		t.Fatalf("current = %s, want q2", got.CurrentQuestionID)
	}
	if ans := got.Answers["q1"]; ans.Points != 1 || ans.Correct == nil || !*ans.Correct {
		t.Fatalf("answer lost: %+v", ans)
	}
}

func TestSQLStoreGetMissing(t *testing.T) {
	store := quiz.NewSQLStore(openTestDB(t))
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSQLStoreMutateErrorAbortsWrite(t *testing.T) {
	dbh := openTestDB(t)
	store := quiz.NewSQLStore(dbh)
	ctx := context.Background()

	a := minimalAttempt("key-1", "stu-1")
	if err := store.Create(ctx, a, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	_, err := store.Update(ctx, "key-1", func(a *quiz.Attempt) error {
		a.Status = quiz.StatusPass
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want mutate error back, got %v", err)
	}

	got, _ := store.Get(ctx, "key-1")
	if got.Status != quiz.StatusIncomplete {
		t.Fatalf("aborted mutate persisted: %s", got.Status)
	}
}

func TestSQLStoreGuardRejectsCreate(t *testing.T) {
	dbh := openTestDB(t)
	store := quiz.NewSQLStore(dbh)
	ctx := context.Background()

	if err := store.Create(ctx, minimalAttempt("key-1", "stu-1"), nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	rejected := errors.New("budget spent")
	err := store.Create(ctx, minimalAttempt("key-2", "stu-1"), func(siblings []quiz.Attempt) error {
		if len(siblings) != 1 {
			t.Fatalf("guard saw %d siblings, want 1", len(siblings))
		}
		return rejected
	})
	if !errors.Is(err, rejected) {
		t.Fatalf("want guard error, got %v", err)
	}
	if _, err := store.Get(ctx, "key-2"); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("rejected attempt was persisted: %v", err)
	}
}

// The partial unique index blocks a second open attempt per student+quiz.
func TestSQLStoreOneOpenAttempt(t *testing.T) {
	dbh := openTestDB(t)
	store := quiz.NewSQLStore(dbh)
	ctx := context.Background()

	if err := store.Create(ctx, minimalAttempt("key-1", "stu-1"), nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Create(ctx, minimalAttempt("key-2", "stu-1"), nil)
	if !errors.Is(err, quiz.ErrConcurrencyConflict) {
		t.Fatalf("want ErrConcurrencyConflict, got %v", err)
	}

	// A different student is unaffected.
	if err := store.Create(ctx, minimalAttempt("key-3", "stu-2"), nil); err != nil {
		t.Fatalf("create other student: %v", err)
	}
}

func TestSQLStoreListByStudentQuiz(t *testing.T) {
	dbh := openTestDB(t)
	store := quiz.NewSQLStore(dbh)
	ctx := context.Background()

	a1 := minimalAttempt("key-1", "stu-1")
	if err := store.Create(ctx, a1, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Update(ctx, "key-1", func(a *quiz.Attempt) error {
		a.Status = quiz.StatusFail
		return nil
	}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	a2 := minimalAttempt("key-2", "stu-1")
	a2.AttemptNumber = 2
	if err := store.Create(ctx, a2, nil); err != nil {
		t.Fatalf("create second: %v", err)
	}

	list, err := store.ListByStudentQuiz(ctx, "stu-1", "quiz-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].AttemptNumber != 1 || list[1].AttemptNumber != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
}

// Full engine flow through the SQL store and SQL catalog.
func TestEngineOverSQL(t *testing.T) {
	dbh := openTestDB(t)
	seedQuiz(t, dbh)
	eng := quiz.NewEngine(catalog.NewSQL(dbh), quiz.NewSQLStore(dbh), grading.NewRegistry())
	ctx := context.Background()

	p, err := eng.Start(ctx, "stu-1", "quiz-1", "lesson-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if p.QuestionsTotal != 2 || p.CurrentQuestionID != "q1" {
		t.Fatalf("unexpected progress: %+v", p)
	}

	if _, err := eng.Answer(ctx, "stu-1", p.AttemptKey, "q1", "a", quiz.NavNext); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	last, err := eng.Answer(ctx, "stu-1", p.AttemptKey, "q2", "b", quiz.NavNext)
	if err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	if last.Result == nil || last.Result.Status != quiz.StatusPass || last.Result.Grade != 100 {
		t.Fatalf("unexpected result: %+v", last.Result)
	}

	// allowed_attempts=2: one settled, one more allowed, then closed.
	p2, err := eng.Start(ctx, "stu-1", "quiz-1", "lesson-1")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if _, err := eng.End(ctx, "stu-1", p2.AttemptKey); err != nil {
		t.Fatalf("end second: %v", err)
	}
	if _, err := eng.Start(ctx, "stu-1", "quiz-1", "lesson-1"); !errors.Is(err, quiz.ErrAttemptLimitReached) {
		t.Fatalf("want ErrAttemptLimitReached, got %v", err)
	}
}

// The store persists timestamps at second precision.
func testStart() time.Time {
	return time.Unix(1700000000, 0).UTC()
}

func minimalAttempt(key, studentID string) *quiz.Attempt {
	return &quiz.Attempt{
		Key:               key,
		QuizID:            "quiz-1",
		LessonID:          "lesson-1",
		StudentID:         studentID,
		Status:            quiz.StatusIncomplete,
		AttemptNumber:     1,
		QuestionOrder:     []string{"q1", "q2"},
		CurrentQuestionID: "q1",
		Answers:           map[string]quiz.Answer{},
		StartTime:         testStart(),
	}
}
