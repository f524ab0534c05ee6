package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // driver: sqlite
)

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store persists question sets, attempts, answers and results.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(context.Background(), DriverSQLite, dbPath)
}

// Open opens a database for the given driver and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "eduflow.db"
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/eduflow?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sqlx.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection serializes writers, which is what gives
		// read-modify-write transactions their per-attempt exclusivity.
		db.SetMaxOpenConns(1)
	}
	if err := ping(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// ping waits for the database to be ready, backing off 100ms more between attempts.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	const maxAttempts = 10
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		slog.Warn("database not ready", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("ping database: %w", err)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS question_sets (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	set_id TEXT NOT NULL REFERENCES question_sets(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	type TEXT NOT NULL,
	prompt TEXT NOT NULL DEFAULT '',
	marks REAL NOT NULL,
	correct_answer TEXT NOT NULL DEFAULT '',
	keywords_json TEXT NOT NULL DEFAULT '[]',
	sample_answer TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS question_options (
	question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	id TEXT NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	correct BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (question_id, id)
);

CREATE TABLE IF NOT EXISTS attempts (
	id TEXT PRIMARY KEY,
	question_set_id TEXT NOT NULL REFERENCES question_sets(id),
	learner_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'not_started',
	total_marks REAL NOT NULL DEFAULT 0,
	auto_marks REAL NOT NULL DEFAULT 0,
	manual_marks REAL NOT NULL DEFAULT 0,
	max_marks REAL NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	submitted_at DATETIME,
	graded_at DATETIME
);

CREATE INDEX IF NOT EXISTS attempts_learner_idx ON attempts (learner_id, question_set_id);

CREATE TABLE IF NOT EXISTS answers (
	id TEXT PRIMARY KEY,
	attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
	question_id TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	selected_json TEXT NOT NULL DEFAULT '[]',
	text_answer TEXT NOT NULL DEFAULT '',
	attachment_ref TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL,
	UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS answer_results (
	answer_id TEXT PRIMARY KEY REFERENCES answers(id) ON DELETE CASCADE,
	is_correct BOOLEAN NOT NULL DEFAULT 0,
	marks_obtained REAL NOT NULL DEFAULT 0,
	needs_manual BOOLEAN NOT NULL DEFAULT 0,
	feedback TEXT NOT NULL DEFAULT '',
	auto_graded BOOLEAN NOT NULL DEFAULT 0,
	graded_by TEXT NOT NULL DEFAULT '',
	manually_graded_at DATETIME
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS question_sets (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id TEXT PRIMARY KEY,
	set_id TEXT NOT NULL REFERENCES question_sets(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	type TEXT NOT NULL,
	prompt TEXT NOT NULL DEFAULT '',
	marks DOUBLE PRECISION NOT NULL,
	correct_answer TEXT NOT NULL DEFAULT '',
	keywords_json TEXT NOT NULL DEFAULT '[]',
	sample_answer TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS question_options (
	question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
	id TEXT NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	correct BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (question_id, id)
);

CREATE TABLE IF NOT EXISTS attempts (
	id TEXT PRIMARY KEY,
	question_set_id TEXT NOT NULL REFERENCES question_sets(id),
	learner_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'not_started',
	total_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
	auto_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
	manual_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	submitted_at TIMESTAMPTZ,
	graded_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS attempts_learner_idx ON attempts (learner_id, question_set_id);

CREATE TABLE IF NOT EXISTS answers (
	id TEXT PRIMARY KEY,
	attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
	question_id TEXT NOT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	selected_json TEXT NOT NULL DEFAULT '[]',
	text_answer TEXT NOT NULL DEFAULT '',
	attachment_ref TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS answer_results (
	answer_id TEXT PRIMARY KEY REFERENCES answers(id) ON DELETE CASCADE,
	is_correct BOOLEAN NOT NULL DEFAULT FALSE,
	marks_obtained DOUBLE PRECISION NOT NULL DEFAULT 0,
	needs_manual BOOLEAN NOT NULL DEFAULT FALSE,
	feedback TEXT NOT NULL DEFAULT '',
	auto_graded BOOLEAN NOT NULL DEFAULT FALSE,
	graded_by TEXT NOT NULL DEFAULT '',
	manually_graded_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
