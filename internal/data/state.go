package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
	"github.com/AlexSolari/botFramework-sub000/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// stateRepo implements the state-document repository over SQLite. Each
// action key owns one row holding the JSON document for all its tenants.
type stateRepo struct {
	db *sql.DB
}

// NewStateRepo opens (and if needed creates) the state database.
func NewStateRepo(dbPath string) (repo.StateRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS action_states (
			action_key TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &stateRepo{db: db}, nil
}

// LoadDocument reads one action's full record set. A missing row reads as
// an empty document; a row that fails to decode is a fatal load error.
func (r *stateRepo) LoadDocument(ctx context.Context, actionKey string) (map[string]*domain.ActionState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT document FROM action_states WHERE action_key = ?
	`, actionKey)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return make(map[string]*domain.ActionState), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query state document: %w", err)
	}

	var doc map[string]*domain.ActionState
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: action %q: %v", repo.ErrMalformedDocument, actionKey, err)
	}
	if doc == nil {
		doc = make(map[string]*domain.ActionState)
	}
	return doc, nil
}

// SaveDocument replaces one action's record set wholesale.
func (r *stateRepo) SaveDocument(ctx context.Context, actionKey string, doc map[string]*domain.ActionState) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode state document: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO action_states (action_key, document, updated_at)
		VALUES (?, ?, ?)
	`, actionKey, string(raw), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save state document: %w", err)
	}
	return nil
}

// ListActionKeys lists action keys with a persisted document.
func (r *stateRepo) ListActionKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT action_key FROM action_states ORDER BY action_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list action keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan action key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the database connection.
func (r *stateRepo) Close() error {
	return r.db.Close()
}
