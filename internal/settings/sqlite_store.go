package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the record in a single-row SQLite table. It exists for
// deployments that already keep application state in SQLite and want the
// connection record in the same database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates the
// schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS connection (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			token_expiry DATETIME,
			realm_id TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads the persisted record. An empty database yields an empty record.
func (s *SQLiteStore) Load(ctx context.Context) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_expiry, realm_id, updated_at
		FROM connection WHERE id = 1`)

	var record Record
	var expiry sql.NullTime
	err := row.Scan(&record.AccessToken, &record.RefreshToken, &expiry, &record.RealmID, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection record: %w", err)
	}
	if expiry.Valid {
		record.TokenExpiry = expiry.Time
	}
	return &record, nil
}

// Save upserts the single connection row durably before returning.
func (s *SQLiteStore) Save(ctx context.Context, record *Record) error {
	record.UpdatedAt = time.Now()

	var expiry interface{}
	if !record.TokenExpiry.IsZero() {
		expiry = record.TokenExpiry
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connection (id, access_token, refresh_token, token_expiry, realm_id, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			realm_id = excluded.realm_id,
			updated_at = excluded.updated_at`,
		record.AccessToken, record.RefreshToken, expiry, record.RealmID, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save connection record: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
