// Package history persists finished and in-flight downloads to a local
// SQLite database so past downloads survive restarts.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded download.
type Entry struct {
	ID         string
	URL        string
	Dest       string
	Filename   string
	Status     string
	TotalSize  int64
	Downloaded int64
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store wraps the downloads database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS downloads (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		dest_path TEXT NOT NULL,
		filename TEXT,
		status TEXT,
		total_size INTEGER,
		downloaded INTEGER,
		error TEXT,
		created_at INTEGER,
		updated_at INTEGER
	);
	`
	if _, err := db.Exec(query); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts or updates an entry keyed by id.
func (s *Store) Record(e Entry) error {
	now := time.Now().Unix()
	created := now
	if !e.CreatedAt.IsZero() {
		created = e.CreatedAt.Unix()
	}
	_, err := s.db.Exec(`
	INSERT INTO downloads (id, url, dest_path, filename, status, total_size, downloaded, error, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		dest_path = excluded.dest_path,
		filename = excluded.filename,
		status = excluded.status,
		total_size = excluded.total_size,
		downloaded = excluded.downloaded,
		error = excluded.error,
		updated_at = excluded.updated_at`,
		e.ID, e.URL, e.Dest, e.Filename, e.Status, e.TotalSize, e.Downloaded, e.Error, created, now)
	return err
}

// List returns all entries, most recently updated first.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`
	SELECT id, url, dest_path, filename, status, total_size, downloaded, error, created_at, updated_at
	FROM downloads ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, updated int64
		if err := rows.Scan(&e.ID, &e.URL, &e.Dest, &e.Filename, &e.Status,
			&e.TotalSize, &e.Downloaded, &e.Error, &created, &updated); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(created, 0)
		e.UpdatedAt = time.Unix(updated, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove deletes one entry.
func (s *Store) Remove(id string) error {
	_, err := s.db.Exec(`DELETE FROM downloads WHERE id = ?`, id)
	return err
}

// RemoveCompleted deletes all entries that finished successfully.
func (s *Store) RemoveCompleted() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM downloads WHERE status = 'completed'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
