package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound means no grant exists under the given token.
	ErrNotFound = errors.New("authorization not found")
	// ErrTokenExists means the token already names a grant of either kind.
	ErrTokenExists = errors.New("token already in use")
)

// Store persists authorizations in a SQLite database shared by the CLI and
// the resident service.
type Store struct {
	db *sql.DB
}

// Open creates or opens the authorization database at path.
func Open(path string) (*Store, error) {
	// Concurrent writers are expected: every CLI invocation opens the
	// same file the resident service sweeps.
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS authorizations (
		token TEXT PRIMARY KEY,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		line_mode TEXT NOT NULL DEFAULT '',
		line_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS git_authorizations (
		token TEXT PRIMARY KEY,
		repo_path TEXT NOT NULL,
		commit_sha TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_auth_expires ON authorizations(expires_at);
	CREATE INDEX IF NOT EXISTS idx_git_expires ON git_authorizations(expires_at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Insert stores a file grant. The token must be unused across both grant
// kinds; a collision returns ErrTokenExists.
func (s *Store) Insert(a Authorization) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := tokenInTable(tx, "git_authorizations", a.Token)
	if err != nil {
		return err
	}
	if taken {
		return ErrTokenExists
	}

	_, err = tx.Exec(`
		INSERT INTO authorizations (token, file_path, file_name, created_at, expires_at, line_mode, line_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.Token, a.FilePath, a.FileName,
		a.CreatedAt.UTC().Format(time.RFC3339), a.ExpiresAt.UTC().Format(time.RFC3339),
		string(a.Window.Mode), a.Window.Count)
	if err != nil {
		if isConstraintErr(err) {
			return ErrTokenExists
		}
		return fmt.Errorf("failed to insert authorization: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// InsertGit stores a commit grant under the same token namespace as file
// grants.
func (s *Store) InsertGit(g GitAuthorization) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	taken, err := tokenInTable(tx, "authorizations", g.Token)
	if err != nil {
		return err
	}
	if taken {
		return ErrTokenExists
	}

	_, err = tx.Exec(`
		INSERT INTO git_authorizations (token, repo_path, commit_sha, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, g.Token, g.RepoPath, g.Commit,
		g.CreatedAt.UTC().Format(time.RFC3339), g.ExpiresAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintErr(err) {
			return ErrTokenExists
		}
		return fmt.Errorf("failed to insert git authorization: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get returns the file grant for a token, expired or not.
func (s *Store) Get(token string) (*Authorization, error) {
	var a Authorization
	var createdAt, expiresAt, lineMode string

	err := s.db.QueryRow(`
		SELECT token, file_path, file_name, created_at, expires_at, line_mode, line_count
		FROM authorizations
		WHERE token = ?
	`, token).Scan(&a.Token, &a.FilePath, &a.FileName, &createdAt, &expiresAt, &lineMode, &a.Window.Count)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization: %w", err)
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	a.Window.Mode = LineMode(lineMode)

	return &a, nil
}

// GetGit returns the commit grant for a token, expired or not.
func (s *Store) GetGit(token string) (*GitAuthorization, error) {
	var g GitAuthorization
	var createdAt, expiresAt string

	err := s.db.QueryRow(`
		SELECT token, repo_path, commit_sha, created_at, expires_at
		FROM git_authorizations
		WHERE token = ?
	`, token).Scan(&g.Token, &g.RepoPath, &g.Commit, &createdAt, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get git authorization: %w", err)
	}

	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	g.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)

	return &g, nil
}

// Delete removes the token from both tables and reports whether any grant
// existed. Deleting an unknown token is not an error.
func (s *Store) Delete(token string) (bool, error) {
	var removed int64

	for _, table := range []string{"authorizations", "git_authorizations"} {
		res, err := s.db.Exec("DELETE FROM "+table+" WHERE token = ?", token)
		if err != nil {
			return false, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to count deleted rows: %w", err)
		}
		removed += n
	}

	return removed > 0, nil
}

// List returns file grants ordered newest first. Expired grants are
// included only when includeExpired is set.
func (s *Store) List(now time.Time, includeExpired bool) ([]Authorization, error) {
	query := `
		SELECT token, file_path, file_name, created_at, expires_at, line_mode, line_count
		FROM authorizations
	`
	args := []any{}
	if !includeExpired {
		query += " WHERE expires_at > ?"
		args = append(args, now.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query authorizations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var auths []Authorization
	for rows.Next() {
		var a Authorization
		var createdAt, expiresAt, lineMode string

		if err := rows.Scan(&a.Token, &a.FilePath, &a.FileName, &createdAt, &expiresAt, &lineMode, &a.Window.Count); err != nil {
			return nil, err
		}

		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		a.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
		a.Window.Mode = LineMode(lineMode)

		auths = append(auths, a)
	}

	return auths, rows.Err()
}

// ListGit returns commit grants ordered newest first.
func (s *Store) ListGit(now time.Time, includeExpired bool) ([]GitAuthorization, error) {
	query := `
		SELECT token, repo_path, commit_sha, created_at, expires_at
		FROM git_authorizations
	`
	args := []any{}
	if !includeExpired {
		query += " WHERE expires_at > ?"
		args = append(args, now.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query git authorizations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var auths []GitAuthorization
	for rows.Next() {
		var g GitAuthorization
		var createdAt, expiresAt string

		if err := rows.Scan(&g.Token, &g.RepoPath, &g.Commit, &createdAt, &expiresAt); err != nil {
			return nil, err
		}

		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		g.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)

		auths = append(auths, g)
	}

	return auths, rows.Err()
}

// DeleteExpired removes all grants past their deadline and returns how many
// were removed.
func (s *Store) DeleteExpired(now time.Time) (int64, error) {
	cutoff := now.UTC().Format(time.RFC3339)
	var removed int64

	for _, table := range []string{"authorizations", "git_authorizations"} {
		res, err := s.db.Exec("DELETE FROM "+table+" WHERE expires_at <= ?", cutoff)
		if err != nil {
			return removed, fmt.Errorf("failed to delete expired from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, fmt.Errorf("failed to count deleted rows: %w", err)
		}
		removed += n
	}

	return removed, nil
}

// AnyActive reports whether at least one unexpired grant of either kind
// remains.
func (s *Store) AnyActive(now time.Time) (bool, error) {
	cutoff := now.UTC().Format(time.RFC3339)

	var exists int
	err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM authorizations WHERE expires_at > ?
			UNION ALL
			SELECT 1 FROM git_authorizations WHERE expires_at > ?
		)
	`, cutoff, cutoff).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active authorizations: %w", err)
	}

	return exists != 0, nil
}

// CountActive returns the number of unexpired grants across both kinds.
func (s *Store) CountActive(now time.Time) (int, error) {
	cutoff := now.UTC().Format(time.RFC3339)

	var count int
	err := s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM authorizations WHERE expires_at > ?) +
			(SELECT COUNT(*) FROM git_authorizations WHERE expires_at > ?)
	`, cutoff, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active authorizations: %w", err)
	}

	return count, nil
}

func tokenInTable(tx *sql.Tx, table, token string) (bool, error) {
	var one int
	err := tx.QueryRow("SELECT 1 FROM "+table+" WHERE token = ?", token).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return true, nil
}

func isConstraintErr(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
