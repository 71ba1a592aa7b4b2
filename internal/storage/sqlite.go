package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// NameStore holds the place reference names used to label pools that
// arrive without a display name. It ships seeded with the known pools
// and accepts operator overrides.
type NameStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite name store at the given path.
// Pass ":memory:" for an in-memory store.
func Open(path string) (*NameStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createNameSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &NameStore{db: db}, nil
}

// Close closes the database connection.
func (s *NameStore) Close() error {
	return s.db.Close()
}

func createNameSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS place_names (
		place_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		updated_at TEXT DEFAULT (datetime('now'))
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	// Seed the known pools. INSERT OR IGNORE keeps operator overrides.
	seed := `
	INSERT OR IGNORE INTO place_names (place_id, name) VALUES
		(1, 'Sudirman'),
		(2, 'Thamrin'),
		(3, 'Kuningan');
	`
	_, err := db.Exec(seed)
	return err
}

// All returns every stored place name keyed by place ID.
func (s *NameStore) All(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT place_id, name FROM place_names`)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// Get returns the name for a place ID, or "" when none is stored.
func (s *NameStore) Get(ctx context.Context, placeID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM place_names WHERE place_id = ?`, placeID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// Upsert stores or replaces the name for a place ID.
func (s *NameStore) Upsert(ctx context.Context, placeID int64, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO place_names (place_id, name) VALUES (?, ?)
		ON CONFLICT (place_id) DO UPDATE SET
			name = excluded.name,
			updated_at = datetime('now')
	`, placeID, name)
	if err != nil {
		return fmt.Errorf("upsert name: %w", err)
	}
	return nil
}

// Delete removes a stored name, falling back to the built-in labels.
func (s *NameStore) Delete(ctx context.Context, placeID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM place_names WHERE place_id = ?`, placeID)
	return err
}
