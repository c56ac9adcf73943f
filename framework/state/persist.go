package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Persister stores the exported tree between sessions.
type Persister interface {
	// Load returns the saved tree, or nil when nothing was saved yet.
	Load(ctx context.Context) (Tree, error)
	Save(ctx context.Context, t Tree) error
}

const defaultStateKey = "app"

const createStateTable = `
	CREATE TABLE IF NOT EXISTS app_state (
		key        TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

// SQLitePersister keeps the tree as JSON in a single row of app_state.
type SQLitePersister struct {
	db  *sql.DB
	key string
}

// OpenSQLite opens the database at path and prepares the state table.
// The path can be ":memory:" for an in-memory database.
func OpenSQLite(path string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p, err := NewSQLitePersister(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewSQLitePersister uses an open database, creating the state table if needed.
func NewSQLitePersister(db *sql.DB) (*SQLitePersister, error) {
	if _, err := db.Exec(createStateTable); err != nil {
		return nil, fmt.Errorf("failed to create app_state table: %w", err)
	}
	return &SQLitePersister{db: db, key: defaultStateKey}, nil
}

// Load implements Persister.
func (p *SQLitePersister) Load(ctx context.Context) (Tree, error) {
	var data string
	err := p.db.QueryRowContext(ctx, `SELECT data FROM app_state WHERE key = ?`, p.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if snap.State == nil {
		snap.State = make(Tree)
	}
	return snap.State, nil
}

// Save implements Persister.
func (p *SQLitePersister) Save(ctx context.Context, t Tree) error {
	data, err := json.Marshal(Snapshot{State: t})
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	query := `
		INSERT INTO app_state (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := p.db.ExecContext(ctx, query, p.key, string(data)); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
