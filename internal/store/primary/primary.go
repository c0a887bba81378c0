package primary

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/store"
)

// StoreImpl implements store.PrimaryStore on SQLite.
type StoreImpl struct {
	db *sqlx.DB
}

var _ store.PrimaryStore = (*StoreImpl)(nil)

// NewPrimaryStore opens (creating if needed) the SQLite database at dsn and
// applies the schema. ":memory:" gives a private in-memory database.
func NewPrimaryStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	s := &StoreImpl{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("Opened primary store %s", dsn)
	return s, nil
}

var schema = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS movies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		natural_key TEXT NOT NULL UNIQUE,
		imdb_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		director TEXT NOT NULL DEFAULT '',
		genres TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movies_title ON movies(title)`,
	`CREATE TABLE IF NOT EXISTS extractor_fits (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		snapshot BLOB NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS movie_vectors (
		fit_id TEXT NOT NULL REFERENCES extractor_fits(id) ON DELETE CASCADE,
		movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
		vector BLOB NOT NULL,
		PRIMARY KEY (fit_id, movie_id)
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		strategy TEXT NOT NULL,
		config BLOB,
		started_at DATETIME NOT NULL,
		duration INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		model TEXT NOT NULL,
		accuracy REAL NOT NULL,
		tp INTEGER NOT NULL,
		tn INTEGER NOT NULL,
		fp INTEGER NOT NULL,
		fn INTEGER NOT NULL,
		train_duration INTEGER NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS cluster_assignments (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		movie_id INTEGER NOT NULL,
		label INTEGER NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS views (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		movie_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		viewed_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		task_type TEXT NOT NULL,
		payload BLOB,
		queue TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

func (s *StoreImpl) initSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *StoreImpl) Close() error {
	return s.db.Close()
}

// clampPage applies the list defaults used by every List method.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
