package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/neurotune/internal/models"
)

// CredentialRepository persists a [models.Credential] under a fixed key.
type CredentialRepository struct {
	db  *sql.DB
	key string
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection and storage key
func NewCredentialRepository(db *sql.DB, key string) *CredentialRepository {
	return &CredentialRepository{db: db, key: key}
}

// Get returns the stored credential, or nil when none exists
func (r *CredentialRepository) Get(ctx context.Context) (*models.Credential, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM credentials WHERE key = ?`, r.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	var c models.Credential
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}
	return &c, nil
}

// Set inserts or replaces the credential
func (r *CredentialRepository) Set(ctx context.Context, c *models.Credential) error {
	if c == nil {
		return fmt.Errorf("cannot store nil credential")
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	query := `
		INSERT INTO credentials (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, r.key, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// Clear deletes the credential. Deleting a missing row is not an error.
func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, r.key); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// UpdatedAt returns when the credential was last written, or the zero time.
func (r *CredentialRepository) UpdatedAt(ctx context.Context) (time.Time, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `SELECT updated_at FROM credentials WHERE key = ?`, r.key).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query credential: %w", err)
	}
	return at, nil
}
