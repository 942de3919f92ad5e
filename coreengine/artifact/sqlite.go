package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists artifacts in a SQLite database.
//
// The pool is limited to one connection and saves run inside a transaction,
// so version allocation stays atomic per (scope, name).
type SQLiteStore struct {
	db   *sql.DB
	opts options
	mu   sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at dsn.
// Use "file::memory:" for a store that lives as long as the process.
func NewSQLiteStore(dsn string, opts ...StoreOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db, opts: buildOptions(opts)}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS artifacts (
			app_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			mime_type TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (app_id, user_id, session_id, name, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_scope ON artifacts(app_id, user_id, session_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save appends a new version of name.
func (s *SQLiteStore) Save(ctx context.Context, scope Scope, name, mimeType string, data []byte) (int, error) {
	if name == "" {
		return 0, fmt.Errorf("artifact name is required")
	}
	if data == nil {
		data = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM artifacts
		 WHERE app_id = ? AND user_id = ? AND session_id = ? AND name = ?`,
		scope.AppID, scope.UserID, scope.SessionID, name,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("allocate version for %s: %w", name, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO artifacts (app_id, user_id, session_id, name, version, mime_type, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		scope.AppID, scope.UserID, scope.SessionID, name, version, mimeType, data,
		s.opts.now().UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert %s v%d: %w", name, version, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s v%d: %w", name, version, err)
	}
	return version, nil
}

// Load returns one version of name.
func (s *SQLiteStore) Load(ctx context.Context, scope Scope, name string, version int) (*Artifact, error) {
	query := `SELECT version, mime_type, data, created_at FROM artifacts
		 WHERE app_id = ? AND user_id = ? AND session_id = ? AND name = ?`
	args := []any{scope.AppID, scope.UserID, scope.SessionID, name}
	if version == Latest {
		query += ` ORDER BY version DESC LIMIT 1`
	} else {
		query += ` AND version = ?`
		args = append(args, version)
	}

	a := &Artifact{Name: name}
	var created int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&a.Version, &a.MIMEType, &a.Data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError(name, version)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	a.CreatedAt = time.Unix(0, created).UTC()
	return a, nil
}

// Versions lists the stored versions of name.
func (s *SQLiteStore) Versions(ctx context.Context, scope Scope, name string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version FROM artifacts
		 WHERE app_id = ? AND user_id = ? AND session_id = ? AND name = ?
		 ORDER BY version`,
		scope.AppID, scope.UserID, scope.SessionID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", name, err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, NewNotFoundError(name, Latest)
	}
	return out, nil
}

// Names lists every name saved in scope.
func (s *SQLiteStore) Names(ctx context.Context, scope Scope) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT name FROM artifacts
		 WHERE app_id = ? AND user_id = ? AND session_id = ?
		 ORDER BY name`,
		scope.AppID, scope.UserID, scope.SessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
