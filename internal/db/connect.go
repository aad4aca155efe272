package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:quizraft.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/quizraft?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  passing_percent REAL NOT NULL DEFAULT 0,
  limit_attempts INTEGER NOT NULL DEFAULT 0,
  allowed_attempts INTEGER NOT NULL DEFAULT 0,
  limit_time INTEGER NOT NULL DEFAULT 0,
  time_limit_minutes INTEGER NOT NULL DEFAULT 0,
  can_be_resumed INTEGER NOT NULL DEFAULT 0,
  random_questions INTEGER NOT NULL DEFAULT 0,
  show_correct_answer INTEGER NOT NULL DEFAULT 0,
  disable_retake INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  type TEXT NOT NULL,
  points REAL NOT NULL DEFAULT 0,
  answer_key_json TEXT NOT NULL DEFAULT '[]',
  content_only INTEGER NOT NULL DEFAULT 0,
  position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attempts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  attempt_key TEXT NOT NULL UNIQUE,
  quiz_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL DEFAULT '',
  student_id TEXT NOT NULL,
  status TEXT NOT NULL,
  attempt_number INTEGER NOT NULL,
  question_order_json TEXT NOT NULL,
  current_question_id TEXT NOT NULL DEFAULT '',
  answers_json TEXT NOT NULL,
  start_time INTEGER NOT NULL,
  end_time INTEGER,
  version INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_attempts_student_quiz
  ON attempts(student_id, quiz_id);

-- One open attempt per (student, quiz): the backstop for start races.
CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_open
  ON attempts(student_id, quiz_id) WHERE status='incomplete';

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'student'
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS quizzes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  passing_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
  limit_attempts BOOLEAN NOT NULL DEFAULT FALSE,
  allowed_attempts INTEGER NOT NULL DEFAULT 0,
  limit_time BOOLEAN NOT NULL DEFAULT FALSE,
  time_limit_minutes INTEGER NOT NULL DEFAULT 0,
  can_be_resumed BOOLEAN NOT NULL DEFAULT FALSE,
  random_questions BOOLEAN NOT NULL DEFAULT FALSE,
  show_correct_answer BOOLEAN NOT NULL DEFAULT FALSE,
  disable_retake BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  quiz_id TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
  type TEXT NOT NULL,
  points DOUBLE PRECISION NOT NULL DEFAULT 0,
  answer_key_json TEXT NOT NULL DEFAULT '[]',
  content_only BOOLEAN NOT NULL DEFAULT FALSE,
  position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attempts (
  id BIGSERIAL PRIMARY KEY,
  attempt_key TEXT NOT NULL UNIQUE,
  quiz_id TEXT NOT NULL,
  lesson_id TEXT NOT NULL DEFAULT '',
  student_id TEXT NOT NULL,
  status TEXT NOT NULL,
  attempt_number INTEGER NOT NULL,
  question_order_json TEXT NOT NULL,
  current_question_id TEXT NOT NULL DEFAULT '',
  answers_json TEXT NOT NULL,
  start_time BIGINT NOT NULL,
  end_time BIGINT,
  version BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_attempts_student_quiz
  ON attempts(student_id, quiz_id);

CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_one_open
  ON attempts(student_id, quiz_id) WHERE status='incomplete';

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'student'
);
`
